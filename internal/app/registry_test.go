package app

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/curriculum-relay/internal/domain"
)

func TestParseMode(t *testing.T) {
	m, err := ParseMode("identity")
	require.NoError(t, err)
	assert.Equal(t, ByIdentity, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ByConnection, m)

	_, err = ParseMode("socket")
	assert.Error(t, err)
}

func TestJoinIsIdempotent(t *testing.T) {
	bothModes(t, func(t *testing.T, r *Registry) {
		u1, _ := member("c1", 1)
		u2, _ := member("c2", 2)

		first := r.Join(u1, "default")
		assert.True(t, first.Entered)
		assert.Empty(t, first.Notify)

		res := r.Join(u2, "default")
		assert.True(t, res.Entered)
		require.Len(t, res.Notify, 1)
		assert.Equal(t, u1.Conn, res.Notify[0].Conn)

		again := r.Join(u2, "default")
		assert.False(t, again.Entered)
		assert.Empty(t, again.Notify)

		assert.Equal(t, []domain.UserID{1, 2}, r.Occupants("default"))
		assert.Equal(t, []domain.RoomID{"default"}, r.RoomsOf(u2))
	})
}

func TestLeaveUnknownPairIsNoop(t *testing.T) {
	bothModes(t, func(t *testing.T, r *Registry) {
		u1, _ := member("c1", 1)
		u2, _ := member("c2", 2)
		r.Join(u2, "default")

		res := r.Leave(u1, "default")
		assert.False(t, res.Removed)
		assert.Empty(t, res.Notify)

		res = r.Leave(u1, "nowhere")
		assert.False(t, res.Removed)

		assert.Equal(t, []domain.UserID{2}, r.Occupants("default"))
		assert.Empty(t, r.RoomsOf(u1))
	})
}

func TestLeaveNotifiesRemaining(t *testing.T) {
	bothModes(t, func(t *testing.T, r *Registry) {
		u1, _ := member("c1", 1)
		u2, _ := member("c2", 2)
		r.Join(u1, "default")
		r.Join(u2, "default")

		res := r.Leave(u1, "default")
		assert.True(t, res.Removed)
		assert.True(t, res.Departed)
		require.Len(t, res.Notify, 1)
		assert.Equal(t, domain.UserID(2), res.Notify[0].User)

		r.Leave(u2, "default")
		assert.Empty(t, r.Rooms())
	})
}

func TestPurgeCompleteness(t *testing.T) {
	bothModes(t, func(t *testing.T, r *Registry) {
		u1, _ := member("c1", 1)
		u2, _ := member("c2", 2)
		for _, room := range []domain.RoomID{"a", "b", "c"} {
			r.Join(u1, room)
		}
		r.Join(u2, "b")

		deps := r.Purge(u1)
		require.Len(t, deps, 3)
		assert.Equal(t, domain.RoomID("a"), deps[0].Room)
		assert.Empty(t, deps[0].Notify)
		assert.Equal(t, domain.RoomID("b"), deps[1].Room)
		require.Len(t, deps[1].Notify, 1)
		assert.Equal(t, u2.Conn, deps[1].Notify[0].Conn)

		assert.Empty(t, r.RoomsOf(u1))
		for _, info := range r.Rooms() {
			assert.NotContains(t, r.Occupants(info.ID), domain.UserID(1))
		}
		assert.Nil(t, r.Purge(u1))
	})
}

func TestMembersExcludingSender(t *testing.T) {
	bothModes(t, func(t *testing.T, r *Registry) {
		u1, _ := member("c1", 1)
		u2, _ := member("c2", 2)
		u3, _ := member("c3", 3)
		r.Join(u1, "default")
		r.Join(u2, "default")
		r.Join(u3, "other")

		got := r.MembersExcluding("default", u1)
		require.Len(t, got, 1)
		assert.Equal(t, u2.Conn, got[0].Conn)

		assert.Empty(t, r.MembersExcluding("missing", u1))
	})
}

func TestConnectionModeKeepsSecondConnection(t *testing.T) {
	r := NewRegistry(ByConnection)
	tab1, _ := member("c1", 1)
	tab2, _ := member("c2", 1)
	other, _ := member("c3", 2)

	r.Join(other, "default")
	assert.True(t, r.Join(tab1, "default").Entered)
	second := r.Join(tab2, "default")
	assert.False(t, second.Entered, "second tab of a present user is not an arrival")

	// The other tab of the same user receives relayed frames.
	got := r.MembersExcluding("default", tab1)
	assert.Len(t, got, 2)

	deps := r.Purge(tab1)
	assert.Empty(t, deps, "user is still present through tab2")
	assert.True(t, r.IsMember(tab2, "default"))
	assert.Equal(t, []domain.UserID{1, 2}, r.Occupants("default"))

	deps = r.Purge(tab2)
	require.Len(t, deps, 1)
	require.Len(t, deps[0].Notify, 1)
	assert.Equal(t, other.Conn, deps[0].Notify[0].Conn)
	checkInvariant(t, r)
}

func TestIdentityModeEvictsAllConnections(t *testing.T) {
	r := NewRegistry(ByIdentity)
	tab1, _ := member("c1", 1)
	tab2, sig2 := member("c2", 1)
	idle, _ := member("c9", 1)

	r.Join(tab1, "default")
	assert.False(t, r.Join(tab2, "default").Entered)

	// The latest join owns delivery for the user.
	other, _ := member("c3", 2)
	r.Join(other, "default")
	got := r.MembersExcluding("default", other)
	require.Len(t, got, 1)
	assert.Same(t, sig2, got[0].Signal.(*fakeSignal))

	// Any connection carrying the identity purges it everywhere,
	// even one that never joined.
	deps := r.Purge(idle)
	require.Len(t, deps, 1)
	assert.False(t, r.IsMember(tab2, "default"))
	assert.Equal(t, []domain.UserID{2}, r.Occupants("default"))
	checkInvariant(t, r)
}

func TestRoomsInfo(t *testing.T) {
	r := NewRegistry(ByConnection)
	a, _ := member("c1", 1)
	b, _ := member("c2", 1)
	c, _ := member("c3", 2)
	r.Join(a, "x")
	r.Join(b, "x")
	r.Join(c, "y")

	assert.Equal(t, []domain.RoomInfo{{ID: "x", Occupants: 1}, {ID: "y", Occupants: 1}}, r.Rooms())
}

func TestRegistryConcurrentUse(t *testing.T) {
	bothModes(t, func(t *testing.T, r *Registry) {
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				m, _ := member(fmt.Sprintf("c%d", i), domain.UserID(i%5+1))
				for j := 0; j < 50; j++ {
					room := domain.RoomID(fmt.Sprintf("r%d", j%3))
					r.Join(m, room)
					r.MembersExcluding(room, m)
					if j%4 == 0 {
						r.Leave(m, room)
					}
					if j%10 == 0 {
						r.Purge(m)
					}
				}
			}(i)
		}
		wg.Wait()
	})
}
