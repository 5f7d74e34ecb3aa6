package mockapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/tradebot/dashboard/internal/credential"
)

const userKey = "user"

// issue signs a credential for email.
func (s *Server) issue(email string) (string, error) {
	return credential.Issue(email, s.now().Add(s.opts.TokenTTL), s.opts.Secret)
}

// verify checks the signature and expiry of tok and returns its subject.
func (s *Server) verify(tok string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return s.opts.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithLeeway(time.Second),
	)
	if err != nil {
		return "", fmt.Errorf("verifying token: %w", err)
	}
	if claims.Subject == "" || !s.store.Exists(claims.Subject) {
		return "", fmt.Errorf("verifying token: unknown subject %q", claims.Subject)
	}
	return claims.Subject, nil
}

// requireAuth rejects requests without a valid bearer credential.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		scheme, tok, ok := strings.Cut(c.Request().Header.Get(echo.HeaderAuthorization), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || tok == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
		}
		user, err := s.verify(tok)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Could not validate credentials")
		}
		c.Set(userKey, user)
		return next(c)
	}
}

func currentUser(c echo.Context) string {
	u, _ := c.Get(userKey).(string)
	return u
}
