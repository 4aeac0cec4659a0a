package core

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dkeye/curriculum-relay/internal/domain"
)

type nopSignal struct{}

func (nopSignal) TrySend(Frame) error { return nil }
func (nopSignal) Close()              {}

func TestAttachMergesSessionData(t *testing.T) {
	s := NewSession("c1", http.Header{}, nopSignal{})
	s.Set("cursor", "blue")

	_, ok := s.Identity()
	assert.False(t, ok)

	s.Attach(domain.Identity{UserID: 3, Email: "c@example.com"}, &domain.User{ID: 3})

	id, ok := s.Identity()
	assert.True(t, ok)
	assert.Equal(t, domain.UserID(3), id.UserID)

	data := s.Data()
	assert.Equal(t, "blue", data["cursor"])
	assert.Equal(t, domain.UserID(3), data[DataUserID])
	assert.Equal(t, domain.User{ID: 3}, data[DataUser])
}

func TestHandshakeIsSnapshot(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer a")
	s := NewSession("c1", h, nopSignal{})

	h.Set("Authorization", "Bearer b")
	assert.Equal(t, "Bearer a", s.Handshake().Get("Authorization"))

	s.Handshake().Set("Authorization", "Bearer c")
	assert.Equal(t, "Bearer a", s.Handshake().Get("Authorization"))
}
