// Command kodeverkctl is a CLI client for the kodeverk admin API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/and161185/kodeverk-admin/internal/errs"
	"github.com/and161185/kodeverk-admin/internal/model"
	"github.com/and161185/kodeverk-admin/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// app holds the global flags shared by subcommands.
type app struct {
	server  string
	token   string
	timeout time.Duration
}

func (a *app) client() *client {
	tok := a.token
	if tok == "" {
		tok = os.Getenv("KODEVERK_TOKEN")
	}
	if tok == "" {
		tok, _ = loadToken()
	}
	return newClient(a.server, tok, a.timeout)
}

func (a *app) ctx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), a.timeout)
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "kodeverkctl",
		Short:         "Manage versioned kodeverk documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	server := os.Getenv("KODEVERK_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&a.server, "server", server, "API base URL (env KODEVERK_SERVER)")
	root.PersistentFlags().StringVar(&a.token, "token", "", "bearer token (env KODEVERK_TOKEN, else saved login)")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(
		versionCmd(),
		loginCmd(),
		tokenCmd(),
		getCmd(a),
		putCmd(a),
		versionsCmd(a),
		showCmd(a),
		checkCmd(a),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kodeverkctl %s (%s)\n", version, buildDate)
		},
	}
}

func loginCmd() *cobra.Command {
	var tok string
	c := &cobra.Command{
		Use:   "login",
		Short: "Save a bearer token for later commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				return errors.New("need --token")
			}
			if err := saveToken(tok, tokenExpiry(tok)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	c.Flags().StringVar(&tok, "token", "", "JWT issued for the editor")
	return c
}

// tokenExpiry reads exp without verifying the signature; the server verifies.
func tokenExpiry(tok string) time.Time {
	var claims jwt.RegisteredClaims
	_, _, err := jwt.NewParser().ParseUnverified(tok, &claims)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

func tokenCmd() *cobra.Command {
	var (
		key, sub, name string
		ttl            time.Duration
		save           bool
	)
	c := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed editor token (development)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				key = os.Getenv("KODEVERK_JWT_KEY")
			}
			if key == "" || sub == "" {
				return errors.New("need --key (or KODEVERK_JWT_KEY) and --sub")
			}
			tok, exp, err := service.NewAuthenticator([]byte(key), ttl).Issue(sub, name)
			if err != nil {
				return err
			}
			if save {
				if err := saveToken(tok, exp); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	c.Flags().StringVar(&key, "key", "", "HS256 signing key")
	c.Flags().StringVar(&sub, "sub", "", "editor subject (NAV ident)")
	c.Flags().StringVar(&name, "name", "", "editor display name")
	c.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "token lifetime")
	c.Flags().BoolVar(&save, "save", false, "also save as login token")
	return c
}

func getCmd(a *app) *cobra.Command {
	var out string
	c := &cobra.Command{
		Use:   "get KIND",
		Short: "Fetch the current document and remember its version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := model.ParseKind(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			body, etag, err := a.client().get(ctx, kind)
			if err != nil {
				return err
			}
			if err := saveETag(string(kind), etag); err != nil {
				return err
			}
			if out == "" || out == "-" {
				return printRaw(cmd.OutOrStdout(), body)
			}
			return os.WriteFile(out, body, 0o644)
		},
	}
	c.Flags().StringVarP(&out, "output", "o", "", "write body to file instead of stdout")
	return c
}

func putCmd(a *app) *cobra.Command {
	var (
		force   bool
		ifMatch string
	)
	c := &cobra.Command{
		Use:   "put KIND FILE",
		Short: "Save a new version; FILE may be - for stdin",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := model.ParseKind(args[0])
			if err != nil {
				return err
			}
			body, err := readAll(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			if ifMatch == "" && !force {
				ifMatch = loadETags()[string(kind)]
			}
			if force {
				ifMatch = ""
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			res, etag, err := a.client().put(ctx, kind, body, ifMatch)
			if err != nil {
				return explain(cmd.ErrOrStderr(), err)
			}
			if err := saveETag(string(kind), etag); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	c.Flags().BoolVar(&force, "force", false, "skip the version check")
	c.Flags().StringVar(&ifMatch, "if-match", "", "expected version (default: last fetched)")
	return c
}

func versionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "versions KIND",
		Short: "List saved versions, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := model.ParseKind(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			vs, err := a.client().versions(ctx, kind)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), vs)
		},
	}
}

func showCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show KIND VERSION_ID",
		Short: "Print one historical version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := model.ParseKind(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			body, err := a.client().version(ctx, kind, args[1])
			if err != nil {
				return err
			}
			return printRaw(cmd.OutOrStdout(), body)
		},
	}
}

func checkCmd(a *app) *cobra.Command {
	var strict bool
	c := &cobra.Command{
		Use:   "check",
		Short: "Run the cross-document consistency report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			r, err := a.client().check(ctx)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), r); err != nil {
				return err
			}
			if strict && r.Findings() > 0 {
				return fmt.Errorf("%d consistency findings", r.Findings())
			}
			return nil
		},
	}
	c.Flags().BoolVar(&strict, "strict", false, "exit non-zero when there are findings")
	return c
}

// explain prints a human-readable account of conflicts and validation errors.
func explain(w io.Writer, err error) error {
	var ce *errs.ConflictError
	var ve *errs.ValidationError
	switch {
	case errors.As(err, &ce):
		fmt.Fprintf(w, "Dokumentet ble endret av %s %s etter at du hentet det.\n",
			ce.LastModifiedBy, ce.LastModifiedAt.UTC().Format(time.RFC3339))
		fmt.Fprintf(w, "Hentet versjon: %s\nGjeldende versjon: %s\n", ce.ExpectedVersion, ce.CurrentVersion)
	case errors.As(err, &ve):
		for _, is := range ve.Issues {
			fmt.Fprintf(w, "%s: %s\n", is.Path, is.Message)
		}
	}
	return err
}

// ---- utils ----

func readAll(stdin io.Reader, p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(p)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printRaw indents body keeping key order; non-JSON is written as is.
func printRaw(w io.Writer, body []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		_, err = w.Write(body)
		return err
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if errors.Is(err, errs.ErrVersionConflict) {
			os.Exit(3)
		}
		os.Exit(1)
	}
}
