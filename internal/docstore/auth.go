// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package docstore

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// TokenIssuer is the iss claim on every token.
const TokenIssuer = "codecraft-docstore"

// claimsKey is the echo context key holding the authenticated *Claims.
const claimsKey = "docstore.claims"

var (
	// ErrInvalidToken is returned for a malformed, expired or revoked token.
	ErrInvalidToken = errors.New("invalid token")

	// ErrBadCredentials is returned when an email/password pair does not match.
	ErrBadCredentials = errors.New("invalid email or password")
)

// Claims are the JWT claims. Subject is the user id and ID (jti) is a
// random uuid used for revocation.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// tokens signs and verifies HS256 tokens.
type tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func (t *tokens) issue(userID, email string) (string, *Claims, error) {
	now := t.now()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to sign token")
	}
	return signed, claims, nil
}

func (t *tokens) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func hashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", errors.Wrap(err, "failed to hash password")
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

// requireAuth rejects requests without a valid, unrevoked bearer token and
// stores the claims on the context.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok {
			s.denied(c, "missing_auth_header")
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}

		claims, err := s.tokens.parse(raw)
		if err != nil {
			s.denied(c, "invalid_token")
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		revoked, err := s.db.IsRevoked(c.Request().Context(), claims.ID)
		if err != nil {
			return err
		}
		if revoked {
			s.denied(c, "revoked_token")
			return echo.NewHTTPError(http.StatusUnauthorized, "token has been signed out")
		}

		c.Set(claimsKey, claims)
		return next(c)
	}
}

func (s *Server) denied(c echo.Context, reason string) {
	s.logger.Warn("auth denied",
		slog.String("ip", c.RealIP()),
		slog.String("path", c.Path()),
		slog.String("reason", reason))
}

// claimsFrom returns the claims set by requireAuth.
func claimsFrom(c echo.Context) *Claims {
	claims, _ := c.Get(claimsKey).(*Claims)
	return claims
}
