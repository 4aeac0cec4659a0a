package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/curriculum-relay/internal/core"
	"github.com/dkeye/curriculum-relay/internal/domain"
)

type fakeSignal struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (f *fakeSignal) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return core.ErrClosed
	}
	if f.full {
		return core.ErrBackpressure
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeSignal) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSignal) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSignal) events(t *testing.T) []domain.Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Envelope, 0, len(f.frames))
	for _, fr := range f.frames {
		var env domain.Envelope
		require.NoError(t, json.Unmarshal(fr, &env))
		out = append(out, env)
	}
	return out
}

func (f *fakeSignal) named(t *testing.T, event string) []domain.Envelope {
	t.Helper()
	var out []domain.Envelope
	for _, env := range f.events(t) {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

func (f *fakeSignal) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

// tokenGuard accepts "Bearer u<id>" for the ids it knows.
type tokenGuard struct {
	known map[string]domain.UserID
}

var errBadToken = errors.New("bad token")

func (g tokenGuard) Check(_ context.Context, h http.Header) (domain.Identity, *domain.User, error) {
	v, ok := strings.CutPrefix(h.Get("Authorization"), "Bearer ")
	if !ok {
		return domain.Identity{}, nil, errBadToken
	}
	id, ok := g.known[v]
	if !ok {
		return domain.Identity{}, nil, errBadToken
	}
	u := &domain.User{ID: id, Email: v + "@example.com"}
	return domain.Identity{UserID: id, Email: u.Email}, u, nil
}

func member(conn string, user domain.UserID) (Member, *fakeSignal) {
	sig := &fakeSignal{}
	return Member{Conn: core.ConnID(conn), User: user, Signal: sig}, sig
}

func checkInvariant(t *testing.T, r *Registry) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, rooms := range r.roomsOf {
		require.NotEmpty(t, rooms, "empty roomsOf entry for %v", k)
		for room := range rooms {
			_, ok := r.membersOf[room][k]
			require.True(t, ok, "%v lists %s but room does not list it", k, room)
		}
	}
	for room, members := range r.membersOf {
		require.NotEmpty(t, members, "empty membersOf entry for %s", room)
		for k := range members {
			_, ok := r.roomsOf[k][room]
			require.True(t, ok, "%s lists %v but member does not list it", room, k)
		}
	}
}

func bothModes(t *testing.T, fn func(t *testing.T, r *Registry)) {
	for _, mode := range []Mode{ByConnection, ByIdentity} {
		t.Run(mode.String(), func(t *testing.T) {
			r := NewRegistry(mode)
			fn(t, r)
			checkInvariant(t, r)
		})
	}
}
