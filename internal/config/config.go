// Package config loads server settings from flags, environment and an
// optional YAML file. Precedence: flags, then environment, then file, then
// defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendAuto     = ""
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendGCS      = "gcs"
	BackendS3       = "s3"
)

// Config holds all server settings.
type Config struct {
	Addr            string        `yaml:"addr"`
	Dev             bool          `yaml:"dev"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`

	Backend  string   `yaml:"backend"`
	Postgres Postgres `yaml:"postgres"`
	GCS      GCS      `yaml:"gcs"`
	S3       S3       `yaml:"s3"`
	RedisURL string   `yaml:"redisUrl"`

	JWTKey    string        `yaml:"jwtKey"`
	AccessTTL time.Duration `yaml:"accessTtl"`

	ExternalCodesURL string        `yaml:"externalCodesUrl"`
	ExternalCodesTTL time.Duration `yaml:"externalCodesTtl"`
}

type Postgres struct {
	DSN string `yaml:"dsn"`
}

type GCS struct {
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentialsFile"`
	Endpoint        string `yaml:"endpoint"`
}

type S3 struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr:             ":8080",
		ShutdownTimeout:  10 * time.Second,
		RequestTimeout:   30 * time.Second,
		AccessTTL:        8 * time.Hour,
		ExternalCodesTTL: 15 * time.Minute,
		S3:               S3{Region: "eu-north-1"},
	}
}

// Load builds the configuration for args (without the program name).
// getenv defaults to os.Getenv.
func Load(args []string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	// First pass only finds the config file.
	var path string
	probe := flag.NewFlagSet("kodeverk-server", flag.ContinueOnError)
	probe.SetOutput(discard{})
	bind(probe, &Config{}, &path)
	if err := probe.Parse(args); err != nil {
		return Config{}, err
	}
	if path == "" {
		path = getenv("KODEVERK_CONFIG")
	}

	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}

	// Second pass: explicitly given flags win over file and environment.
	fs := flag.NewFlagSet("kodeverk-server", flag.ContinueOnError)
	fs.SetOutput(discard{})
	bind(fs, &cfg, &path)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.resolve(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func bind(fs *flag.FlagSet, c *Config, path *string) {
	fs.StringVar(path, "config", *path, "YAML config file")
	fs.StringVar(&c.Addr, "addr", c.Addr, "listen address")
	fs.BoolVar(&c.Dev, "dev", c.Dev, "development logging")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "graceful shutdown timeout")
	fs.DurationVar(&c.RequestTimeout, "request-timeout", c.RequestTimeout, "per-request storage timeout")
	fs.StringVar(&c.Backend, "backend", c.Backend, "storage backend: memory, postgres, gcs or s3 (empty: detect)")
	fs.StringVar(&c.Postgres.DSN, "dsn", c.Postgres.DSN, "PostgreSQL DSN")
	fs.StringVar(&c.GCS.Bucket, "gcs-bucket", c.GCS.Bucket, "GCS bucket")
	fs.StringVar(&c.GCS.CredentialsFile, "gcs-credentials", c.GCS.CredentialsFile, "GCS service account JSON")
	fs.StringVar(&c.GCS.Endpoint, "gcs-endpoint", c.GCS.Endpoint, "GCS endpoint override (emulator)")
	fs.StringVar(&c.S3.Bucket, "s3-bucket", c.S3.Bucket, "S3 bucket")
	fs.StringVar(&c.S3.Region, "s3-region", c.S3.Region, "S3 region")
	fs.StringVar(&c.S3.Endpoint, "s3-endpoint", c.S3.Endpoint, "S3 endpoint override (MinIO)")
	fs.StringVar(&c.RedisURL, "redis-url", c.RedisURL, "Redis URL for caches")
	fs.StringVar(&c.JWTKey, "jwt-key", c.JWTKey, "HS256 key for editor tokens (empty: no auth)")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "lifetime of issued tokens")
	fs.StringVar(&c.ExternalCodesURL, "external-codes-url", c.ExternalCodesURL, "URL of the external rule-code list")
	fs.DurationVar(&c.ExternalCodesTTL, "external-codes-ttl", c.ExternalCodesTTL, "cache TTL for the external list")
}

func loadFile(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(c *Config, getenv func(string) string) error {
	str := map[string]*string{
		"KODEVERK_ADDR":               &c.Addr,
		"KODEVERK_BACKEND":            &c.Backend,
		"KODEVERK_DATABASE_DSN":       &c.Postgres.DSN,
		"KODEVERK_GCS_BUCKET":         &c.GCS.Bucket,
		"KODEVERK_GCS_CREDENTIALS":    &c.GCS.CredentialsFile,
		"KODEVERK_GCS_ENDPOINT":       &c.GCS.Endpoint,
		"KODEVERK_S3_BUCKET":          &c.S3.Bucket,
		"KODEVERK_S3_REGION":          &c.S3.Region,
		"KODEVERK_S3_ENDPOINT":        &c.S3.Endpoint,
		"KODEVERK_REDIS_URL":          &c.RedisURL,
		"KODEVERK_JWT_KEY":            &c.JWTKey,
		"KODEVERK_EXTERNAL_CODES_URL": &c.ExternalCodesURL,
	}
	for k, dst := range str {
		if v := getenv(k); v != "" {
			*dst = v
		}
	}
	dur := map[string]*time.Duration{
		"KODEVERK_SHUTDOWN_TIMEOUT":   &c.ShutdownTimeout,
		"KODEVERK_REQUEST_TIMEOUT":    &c.RequestTimeout,
		"KODEVERK_ACCESS_TTL":         &c.AccessTTL,
		"KODEVERK_EXTERNAL_CODES_TTL": &c.ExternalCodesTTL,
	}
	for k, dst := range dur {
		if v := getenv(k); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			*dst = d
		}
	}
	if v := getenv("KODEVERK_DEV"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("KODEVERK_DEV: %w", err)
		}
		c.Dev = b
	}
	return nil
}

// resolve picks a backend when none is named and checks required settings.
func (c *Config) resolve() error {
	if c.Backend == BackendAuto {
		switch {
		case c.Postgres.DSN != "":
			c.Backend = BackendPostgres
		case c.GCS.Bucket != "":
			c.Backend = BackendGCS
		case c.S3.Bucket != "":
			c.Backend = BackendS3
		default:
			c.Backend = BackendMemory
		}
	}
	switch c.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("backend postgres requires --dsn")
		}
	case BackendGCS:
		if c.GCS.Bucket == "" {
			return errors.New("backend gcs requires --gcs-bucket")
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return errors.New("backend s3 requires --s3-bucket")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Addr == "" {
		return errors.New("empty listen address")
	}
	return nil
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
