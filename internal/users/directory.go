// Package users is the lookupUser collaborator consumed by the authenticator.
// Persistence lives elsewhere; this directory holds the records the relay
// process is configured with.
package users

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/curriculum-relay/internal/domain"
)

var ErrNotFound = errors.New("user not found")

type Directory struct {
	mu    sync.RWMutex
	users map[domain.UserID]domain.User
}

func NewDirectory(seed []domain.User) *Directory {
	d := &Directory{users: make(map[domain.UserID]domain.User, len(seed))}
	for _, u := range seed {
		d.Put(u)
	}
	return d
}

// Put adds or replaces a record.
func (d *Directory) Put(u domain.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
	log.Debug().Str("module", "users").Int64("user", int64(u.ID)).Msg("user record stored")
}

func (d *Directory) LookupUser(_ context.Context, id domain.UserID) (*domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}
