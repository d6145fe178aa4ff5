// Package token encodes and verifies the signed, expiring credentials handed to
// clients. Access and refresh tokens are HS256 JWTs signed with two distinct
// secrets and tagged with their kind, so neither verifies as the other.
package token

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/arihantjainmp/hackernews-clone/backend/internal/apperr"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/config"
)

// Kind distinguishes access from refresh credentials.
type Kind string

const (
	Access  Kind = "access"
	Refresh Kind = "refresh"
)

type claims struct {
	Kind Kind `json:"typ"`
	jwt.RegisteredClaims
}

// Codec is stateless apart from its configuration; safe for concurrent use.
type Codec struct {
	cfg config.TokenConfig
	now func() time.Time
}

// Option customises a Codec.
type Option func(*Codec)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec builds a codec from explicit configuration. Missing secrets are not
// rejected here; issuing with an unset secret fails with a configuration error.
func NewCodec(cfg config.TokenConfig, opts ...Option) *Codec {
	c := &Codec{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate reports a configuration error if the codec cannot issue both
// credential kinds.
func (c *Codec) Validate() error {
	return c.cfg.Validate()
}

func (c *Codec) IssueAccess(subjectID int) (string, time.Time, error) {
	return c.issue(Access, subjectID)
}

func (c *Codec) IssueRefresh(subjectID int) (string, time.Time, error) {
	return c.issue(Refresh, subjectID)
}

func (c *Codec) VerifyAccess(tokenString string) (int, error) {
	return c.verify(Access, tokenString)
}

func (c *Codec) VerifyRefresh(tokenString string) (int, error) {
	return c.verify(Refresh, tokenString)
}

func (c *Codec) policy(kind Kind) (secret []byte, ttl time.Duration) {
	if kind == Access {
		return []byte(c.cfg.AccessSecret), c.cfg.AccessTTL
	}
	return []byte(c.cfg.RefreshSecret), c.cfg.RefreshTTL
}

func (c *Codec) issue(kind Kind, subjectID int) (string, time.Time, error) {
	op := "token.Issue" + kindSuffix(kind)

	secret, ttl := c.policy(kind)
	if len(secret) == 0 {
		return "", time.Time{}, apperr.Configuration(op, string(kind)+" signing secret is not set")
	}
	if subjectID <= 0 {
		return "", time.Time{}, apperr.Validation(op, "subject id must be positive")
	}

	now := c.now().UTC()
	exp := jwt.NewNumericDate(now.Add(ttl))
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(subjectID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
			// Two tokens minted for one subject within the same second must
			// still differ.
			ID: uuid.NewString(),
		},
	})

	signed, err := tok.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp.Time, nil
}

func (c *Codec) verify(kind Kind, tokenString string) (int, error) {
	op := "token.Verify" + kindSuffix(kind)

	secret, _ := c.policy(kind)
	if len(secret) == 0 {
		return 0, apperr.Configuration(op, string(kind)+" signing secret is not set")
	}

	var cl claims
	_, err := jwt.ParseWithClaims(tokenString, &cl,
		func(*jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return 0, apperr.Authentication(op, "invalid token", err)
	}
	if cl.Kind != kind {
		return 0, apperr.Authentication(op, "wrong token kind", nil)
	}

	subjectID, err := strconv.Atoi(cl.Subject)
	if err != nil || subjectID <= 0 {
		return 0, apperr.Authentication(op, "invalid subject", err)
	}
	return subjectID, nil
}

func kindSuffix(kind Kind) string {
	if kind == Access {
		return "Access"
	}
	return "Refresh"
}
