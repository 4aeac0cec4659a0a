package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/curriculum-relay/internal/domain"
	"github.com/dkeye/curriculum-relay/internal/metrics"
)

// UserLookup resolves a verified subject to a user record.
type UserLookup interface {
	LookupUser(ctx context.Context, id domain.UserID) (*domain.User, error)
}

type Authenticator struct {
	secret  []byte
	users   UserLookup
	parser  *jwt.Parser
	leeway  time.Duration
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Authenticator)

func WithLeeway(d time.Duration) Option { return func(a *Authenticator) { a.leeway = d } }

func WithMetrics(m *metrics.Metrics) Option { return func(a *Authenticator) { a.metrics = m } }

// WithClock replaces time.Now for both issuing and expiry checks.
func WithClock(now func() time.Time) Option { return func(a *Authenticator) { a.now = now } }

func New(secret string, users UserLookup, opts ...Option) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("auth: empty signing secret")
	}
	if users == nil {
		return nil, errors.New("auth: nil user lookup")
	}
	a := &Authenticator{
		secret: []byte(secret),
		users:  users,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(a.leeway),
		jwt.WithTimeFunc(a.now),
	)
	return a, nil
}

// Authenticate runs extraction, verification and subject resolution.
func (a *Authenticator) Authenticate(ctx context.Context, h http.Header) (domain.Identity, *domain.User, error) {
	tok, err := ExtractBearer(h)
	if err != nil {
		return domain.Identity{}, nil, err
	}
	claims, err := a.Verify(tok)
	if err != nil {
		return domain.Identity{}, nil, err
	}
	id, err := domain.ParseUserID(string(claims.Sub))
	if err != nil {
		return domain.Identity{}, nil, fmt.Errorf("%w: subject %q", ErrInvalidCredential, claims.Sub)
	}
	user, err := a.users.LookupUser(ctx, id)
	if err != nil {
		return domain.Identity{}, nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return domain.Identity{UserID: user.ID, Email: claims.Email}, user, nil
}

// Check is the realtime guard: it re-verifies a handshake header snapshot.
func (a *Authenticator) Check(ctx context.Context, handshake http.Header) (domain.Identity, *domain.User, error) {
	id, user, err := a.Authenticate(ctx, handshake)
	if err != nil {
		a.recordFailure("ws", err)
		return domain.Identity{}, nil, err
	}
	return id, user, nil
}

func (a *Authenticator) recordFailure(transport string, err error) {
	reason := Reason(err)
	log.Debug().Str("module", "auth").Str("transport", transport).Str("reason", reason).Err(err).Msg("credential rejected")
	if a.metrics != nil {
		a.metrics.AuthFailures.WithLabelValues(transport, reason).Inc()
	}
}

// Reason maps an authentication error to a short label.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrNoCredential):
		return "no_credential"
	case errors.Is(err, ErrInvalidCredential):
		return "invalid_credential"
	default:
		return "other"
	}
}
