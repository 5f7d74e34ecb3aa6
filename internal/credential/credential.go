// Package credential extracts identity and expiry from the bearer token
// issued by the backend. Signatures are never checked here; the backend
// verifies every request.
package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalid covers malformed and expired credentials alike.
var ErrInvalid = errors.New("credential invalid")

// Claims is the part of a credential the client relies on.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// Expired reports whether the credential is no longer usable at now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

var parser = jwt.NewParser()

// Decode reads the subject and expiry out of token.
func Decode(token string) (Claims, error) {
	if token == "" {
		return Claims{}, fmt.Errorf("%w: empty", ErrInvalid)
	}
	var rc jwt.RegisteredClaims
	if _, _, err := parser.ParseUnverified(token, &rc); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if rc.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing sub", ErrInvalid)
	}
	if rc.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%w: missing exp", ErrInvalid)
	}
	return Claims{Subject: rc.Subject, ExpiresAt: rc.ExpiresAt.Time}, nil
}

// Validate decodes token and rejects it when expired at now.
func Validate(token string, now time.Time) (Claims, error) {
	c, err := Decode(token)
	if err != nil {
		return Claims{}, err
	}
	if c.Expired(now) {
		return Claims{}, fmt.Errorf("%w: expired at %s", ErrInvalid, c.ExpiresAt.Format(time.RFC3339))
	}
	return c, nil
}

// Issue signs a HS256 credential. The dashboard itself never issues
// tokens; the mock backend and tests do.
func Issue(subject string, expiresAt time.Time, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
