// Package auth verifies bearer credentials for both HTTP requests and
// realtime connection handshakes.
package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dkeye/curriculum-relay/internal/domain"
)

var (
	ErrNoCredential      = errors.New("no bearer credential")
	ErrInvalidCredential = errors.New("invalid bearer credential")
)

const bearerPrefix = "Bearer "

// Subject accepts both numeric and string "sub" claims.
type Subject string

func (s *Subject) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		*s = Subject(t)
	case json.Number:
		*s = Subject(t.String())
	default:
		return fmt.Errorf("sub: unexpected %T", v)
	}
	return nil
}

// Claims are the token fields the relay consumes.
type Claims struct {
	Sub   Subject `json:"sub"`
	Email string  `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (c Claims) GetSubject() (string, error) { return string(c.Sub), nil }

// ExtractBearer pulls the token out of an Authorization header.
func ExtractBearer(h http.Header) (string, error) {
	v := h.Get("Authorization")
	if !strings.HasPrefix(v, bearerPrefix) {
		return "", ErrNoCredential
	}
	tok := strings.TrimSpace(v[len(bearerPrefix):])
	if tok == "" {
		return "", ErrNoCredential
	}
	return tok, nil
}

// Verify checks signature and expiry against the shared secret.
func (a *Authenticator) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := a.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return claims, nil
}

// Issue signs a token for user. Login lives outside the relay; this is
// used by the tokengen tool and tests.
func (a *Authenticator) Issue(user domain.User, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		Sub:   Subject(user.ID.String()),
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
