package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "kodeverkctl")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "kodeverkctl")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func etagPath() string { return filepath.Join(cfgDir(), "etags.json") }

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

func saveToken(tok string, exp time.Time) error {
	return writeJSON(tokenPath(), tokenFile{AccessToken: tok, ExpiresAt: exp})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || (!tf.ExpiresAt.IsZero() && time.Now().After(tf.ExpiresAt)) {
		return "", errors.New("no valid token (run kodeverkctl login)")
	}
	return tf.AccessToken, nil
}

// loadETags returns the last seen version token per document kind.
func loadETags() map[string]string {
	out := map[string]string{}
	b, err := os.ReadFile(etagPath())
	if err != nil {
		return out
	}
	_ = json.Unmarshal(b, &out)
	return out
}

func saveETag(kind, etag string) error {
	tags := loadETags()
	if etag == "" {
		delete(tags, kind)
	} else {
		tags[kind] = etag
	}
	return writeJSON(etagPath(), tags)
}
