package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/kodeverk-admin/internal/errs"
)

// EditorClaims are the JWT claims accepted from editors.
type EditorClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Principal returns the display identity: name, else subject.
func (c *EditorClaims) Principal() string {
	if n := strings.TrimSpace(c.Name); n != "" {
		return n
	}
	return strings.TrimSpace(c.Subject)
}

// Authenticator verifies and issues HS256 editor tokens.
type Authenticator struct {
	signKey   []byte
	accessTTL time.Duration
	now       func() time.Time
}

// NewAuthenticator constructs an Authenticator. An empty signKey disables
// authentication.
func NewAuthenticator(signKey []byte, accessTTL time.Duration) *Authenticator {
	if accessTTL <= 0 {
		accessTTL = 8 * time.Hour
	}
	return &Authenticator{signKey: signKey, accessTTL: accessTTL, now: time.Now}
}

// Enabled reports whether requests must carry a token.
func (a *Authenticator) Enabled() bool { return len(a.signKey) > 0 }

// Verify checks the token signature and time claims and returns the principal.
func (a *Authenticator) Verify(token string) (string, error) {
	if !a.Enabled() {
		return "", errors.New("authentication disabled")
	}
	var claims EditorClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return a.signKey, nil
	}, jwt.WithLeeway(30*time.Second), jwt.WithTimeFunc(a.now))
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: invalid token", errs.ErrUnauthorized)
	}
	p := claims.Principal()
	if p == "" {
		return "", fmt.Errorf("%w: token has neither name nor sub", errs.ErrUnauthorized)
	}
	return p, nil
}

// Issue creates a signed token for subject with an optional display name.
func (a *Authenticator) Issue(subject, name string) (string, time.Time, error) {
	if !a.Enabled() {
		return "", time.Time{}, errors.New("no signing key configured")
	}
	now := a.now()
	exp := now.Add(a.accessTTL)
	claims := EditorClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(a.signKey)
	return signed, exp, err
}
