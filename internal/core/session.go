package core

import (
	"maps"
	"net/http"
	"sync"

	"github.com/dkeye/curriculum-relay/internal/domain"
)

type ConnID string

// Session data keys written on successful authentication.
const (
	DataUserID = "userId"
	DataUser   = "user"
)

// Session is the per-connection state owned by the lifecycle manager.
// The handshake header snapshot is taken once at upgrade and re-verified
// on every gated event.
type Session struct {
	id        ConnID
	handshake http.Header
	signal    SignalConnection

	mu       sync.RWMutex
	data     map[string]any
	identity domain.Identity
}

func NewSession(id ConnID, handshake http.Header, signal SignalConnection) *Session {
	return &Session{
		id:        id,
		handshake: handshake.Clone(),
		signal:    signal,
		data:      make(map[string]any),
	}
}

func (s *Session) ID() ConnID               { return s.id }
func (s *Session) Signal() SignalConnection { return s.signal }

// Handshake returns a copy of the headers captured at connection-open time.
func (s *Session) Handshake() http.Header { return s.handshake.Clone() }

// Attach records a verified identity. Existing session data is kept and
// only the auth keys are overwritten.
func (s *Session) Attach(id domain.Identity, user *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = id
	s.data[DataUserID] = id.UserID
	if user != nil {
		s.data[DataUser] = *user
	}
}

// Identity returns the last identity attached, if any.
func (s *Session) Identity() (domain.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, !s.identity.IsZero()
}

func (s *Session) Set(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = v
}

func (s *Session) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Data returns a snapshot of the session data.
func (s *Session) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.data)
}
