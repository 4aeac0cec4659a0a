package app

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/curriculum-relay/internal/core"
	"github.com/dkeye/curriculum-relay/internal/domain"
)

// Mode selects what a membership entry is keyed on.
type Mode int

const (
	// ByConnection keys membership on the connection and aggregates
	// presence per identity: a user is present in a room while any of
	// its connections is.
	ByConnection Mode = iota
	// ByIdentity keys membership on the user. One session per user is
	// assumed: a later join replaces the delivery target and any
	// disconnect carrying the identity purges it from every room.
	ByIdentity
)

func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "connection":
		return ByConnection, nil
	case "identity":
		return ByIdentity, nil
	}
	return 0, fmt.Errorf("unknown presence mode %q", s)
}

func (m Mode) String() string {
	if m == ByIdentity {
		return "identity"
	}
	return "connection"
}

// Member is one delivery target inside a room.
type Member struct {
	Conn   core.ConnID
	User   domain.UserID
	Signal core.SignalConnection
}

type memberKey struct {
	conn core.ConnID
	user domain.UserID
}

type JoinResult struct {
	// Entered is true when the identity was absent from the room before.
	Entered bool
	// Notify lists the other members to tell about the arrival.
	Notify []Member
}

type LeaveResult struct {
	Removed bool
	// Departed is true when no entry of the identity is left in the room.
	Departed bool
	Notify   []Member
}

type Departure struct {
	Room   domain.RoomID
	Notify []Member
}

// Registry is the presence index. The two mirror maps are only touched
// under mu: room ∈ roomsOf[k] ⟺ k ∈ membersOf[room].
type Registry struct {
	mode Mode

	mu        sync.Mutex
	roomsOf   map[memberKey]map[domain.RoomID]struct{}
	membersOf map[domain.RoomID]map[memberKey]Member
}

func NewRegistry(mode Mode) *Registry {
	return &Registry{
		mode:      mode,
		roomsOf:   make(map[memberKey]map[domain.RoomID]struct{}),
		membersOf: make(map[domain.RoomID]map[memberKey]Member),
	}
}

func (r *Registry) Mode() Mode { return r.mode }

func (r *Registry) key(m Member) memberKey {
	if r.mode == ByIdentity {
		return memberKey{user: m.User}
	}
	return memberKey{conn: m.Conn, user: m.User}
}

func (r *Registry) Join(m Member, room domain.RoomID) JoinResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := r.key(m)
	entered := !r.presentLocked(room, m.User)

	members, ok := r.membersOf[room]
	if !ok {
		members = make(map[memberKey]Member)
		r.membersOf[room] = members
	}
	members[k] = m

	rooms, ok := r.roomsOf[k]
	if !ok {
		rooms = make(map[domain.RoomID]struct{})
		r.roomsOf[k] = rooms
	}
	rooms[room] = struct{}{}

	res := JoinResult{Entered: entered}
	if entered {
		res.Notify = r.othersLocked(room, m.User)
		log.Info().Str("module", "app.registry").Str("conn", string(m.Conn)).Int64("user", int64(m.User)).Str("room", string(room)).Msg("entered room")
	}
	return res
}

// Leave removes the pair. Unknown pairs are a silent no-op.
func (r *Registry) Leave(m Member, room domain.RoomID) LeaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := r.key(m)
	if !r.removeLocked(k, room) {
		return LeaveResult{}
	}
	rooms := r.roomsOf[k]
	delete(rooms, room)
	if len(rooms) == 0 {
		delete(r.roomsOf, k)
	}

	res := LeaveResult{Removed: true}
	if !r.presentLocked(room, m.User) {
		res.Departed = true
		res.Notify = r.othersLocked(room, m.User)
		log.Info().Str("module", "app.registry").Str("conn", string(m.Conn)).Int64("user", int64(m.User)).Str("room", string(room)).Msg("left room")
	}
	return res
}

// Purge drops every membership of m and reports the rooms the identity
// is no longer present in.
func (r *Registry) Purge(m Member) []Departure {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := r.key(m)
	rooms, ok := r.roomsOf[k]
	if !ok {
		return nil
	}
	delete(r.roomsOf, k)

	out := make([]Departure, 0, len(rooms))
	for room := range rooms {
		r.removeLocked(k, room)
		if r.presentLocked(room, m.User) {
			continue
		}
		out = append(out, Departure{Room: room, Notify: r.othersLocked(room, m.User)})
	}
	slices.SortFunc(out, func(a, b Departure) int { return cmp.Compare(a.Room, b.Room) })
	log.Info().Str("module", "app.registry").Str("conn", string(m.Conn)).Int64("user", int64(m.User)).Int("rooms", len(rooms)).Msg("purged")
	return out
}

// MembersExcluding snapshots the room minus the sender's own entry.
func (r *Registry) MembersExcluding(room domain.RoomID, sender Member) []Member {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := r.key(sender)
	members := r.membersOf[room]
	out := make([]Member, 0, len(members))
	for mk, m := range members {
		if mk == k {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (r *Registry) IsMember(m Member, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.membersOf[room][r.key(m)]
	return ok
}

func (r *Registry) RoomsOf(m Member) []domain.RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()
	rooms := r.roomsOf[r.key(m)]
	out := make([]domain.RoomID, 0, len(rooms))
	for room := range rooms {
		out = append(out, room)
	}
	slices.Sort(out)
	return out
}

// Occupants returns the distinct identities present in room.
func (r *Registry) Occupants(room domain.RoomID) []domain.UserID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.occupantsLocked(room)
}

func (r *Registry) Rooms() []domain.RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.RoomInfo, 0, len(r.membersOf))
	for room := range r.membersOf {
		out = append(out, domain.RoomInfo{ID: room, Occupants: len(r.occupantsLocked(room))})
	}
	slices.SortFunc(out, func(a, b domain.RoomInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (r *Registry) occupantsLocked(room domain.RoomID) []domain.UserID {
	seen := make(map[domain.UserID]struct{})
	out := make([]domain.UserID, 0, len(r.membersOf[room]))
	for k := range r.membersOf[room] {
		if _, dup := seen[k.user]; dup {
			continue
		}
		seen[k.user] = struct{}{}
		out = append(out, k.user)
	}
	slices.Sort(out)
	return out
}

// removeLocked deletes k from membersOf[room] only; empty rooms vanish.
func (r *Registry) removeLocked(k memberKey, room domain.RoomID) bool {
	members, ok := r.membersOf[room]
	if !ok {
		return false
	}
	if _, ok := members[k]; !ok {
		return false
	}
	delete(members, k)
	if len(members) == 0 {
		delete(r.membersOf, room)
	}
	return true
}

func (r *Registry) presentLocked(room domain.RoomID, user domain.UserID) bool {
	for k := range r.membersOf[room] {
		if k.user == user {
			return true
		}
	}
	return false
}

func (r *Registry) othersLocked(room domain.RoomID, user domain.UserID) []Member {
	members := r.membersOf[room]
	out := make([]Member, 0, len(members))
	for k, m := range members {
		if k.user != user {
			out = append(out, m)
		}
	}
	return out
}
