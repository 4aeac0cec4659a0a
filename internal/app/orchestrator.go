package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/curriculum-relay/internal/core"
	"github.com/dkeye/curriculum-relay/internal/domain"
	"github.com/dkeye/curriculum-relay/internal/metrics"
)

var ErrNotAuthenticated = errors.New("not authenticated")

// Messages sent in error events.
const (
	MsgNotAuthenticated = "User not authenticated"
	MsgRateLimited      = "rate limited"
	MsgRoomRequired     = "roomId required"
)

// Guard re-verifies a handshake snapshot before each gated event.
type Guard interface {
	Check(ctx context.Context, handshake http.Header) (domain.Identity, *domain.User, error)
}

type Limiter interface {
	Allow(uid domain.UserID) bool
}

// Orchestrator is the connection lifecycle manager: it owns sessions,
// gates inbound events and drives the registry and relay.
type Orchestrator struct {
	Registry *Registry
	Relay    *Relay
	Guard    Guard
	Policy   Policy
	Limiter  Limiter
	Metrics  *metrics.Metrics

	mu       sync.RWMutex
	sessions map[core.ConnID]*core.Session
}

func NewOrchestrator(reg *Registry, relay *Relay, guard Guard, policy Policy) *Orchestrator {
	return &Orchestrator{
		Registry: reg,
		Relay:    relay,
		Guard:    guard,
		Policy:   policy,
		sessions: make(map[core.ConnID]*core.Session),
	}
}

// OnConnect records an unauthenticated session.
func (o *Orchestrator) OnConnect(sess *core.Session) {
	o.mu.Lock()
	o.sessions[sess.ID()] = sess
	o.mu.Unlock()
	if o.Metrics != nil {
		o.Metrics.Connections.Inc()
	}
	log.Info().Str("module", "app.orch").Str("conn", string(sess.ID())).Msg("connection open")
}

func (o *Orchestrator) Session(id core.ConnID) (*core.Session, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.sessions[id]
	return s, ok
}

// OnDisconnect is terminal. It purges the attached identity, if any.
func (o *Orchestrator) OnDisconnect(id core.ConnID) {
	o.mu.Lock()
	sess, ok := o.sessions[id]
	delete(o.sessions, id)
	o.mu.Unlock()
	if !ok {
		return
	}
	if o.Metrics != nil {
		o.Metrics.Connections.Dec()
	}
	log.Info().Str("module", "app.orch").Str("conn", string(id)).Msg("connection closed")

	ident, ok := sess.Identity()
	if !ok {
		return
	}
	for _, d := range o.Registry.Purge(memberOf(sess, ident)) {
		if o.Metrics != nil {
			o.Metrics.Leaves.Inc()
		}
		o.notify(d.Room, d.Notify, domain.EventUserLeft, domain.UserPayload{UserID: ident.UserID})
	}
}

// OnEvent dispatches one inbound envelope.
func (o *Orchestrator) OnEvent(ctx context.Context, id core.ConnID, env domain.Envelope) {
	sess, ok := o.Session(id)
	if !ok {
		return
	}

	switch {
	case env.Event == domain.EventPing:
		o.reply(sess, domain.EventPong, nil)
		return
	case env.Event == domain.EventJoinRoom, env.Event == domain.EventLeaveRoom, domain.IsRelayEvent(env.Event):
	default:
		log.Warn().Str("module", "app.orch").Str("conn", string(id)).Str("event", env.Event).Msg("unknown event")
		return
	}

	ident, err := o.authenticate(ctx, sess)
	if err != nil {
		o.reply(sess, domain.EventError, domain.ErrorPayload{Message: MsgNotAuthenticated})
		return
	}
	m := memberOf(sess, ident)

	switch env.Event {
	case domain.EventJoinRoom:
		o.join(sess, m, env.Data)
	case domain.EventLeaveRoom:
		o.leave(sess, m, env.Data)
	default:
		o.relay(m, env.Event, env.Data)
	}
}

func (o *Orchestrator) authenticate(ctx context.Context, sess *core.Session) (domain.Identity, error) {
	if o.Guard == nil {
		return domain.Identity{}, ErrNotAuthenticated
	}
	ident, user, err := o.Guard.Check(ctx, sess.Handshake())
	if err != nil {
		log.Debug().Err(err).Str("module", "app.orch").Str("conn", string(sess.ID())).Msg("gated event rejected")
		return domain.Identity{}, errors.Join(ErrNotAuthenticated, err)
	}
	sess.Attach(ident, user)
	return ident, nil
}

func (o *Orchestrator) join(sess *core.Session, m Member, data json.RawMessage) {
	room, ok := roomOf(data)
	if !ok {
		o.reply(sess, domain.EventError, domain.ErrorPayload{Message: MsgRoomRequired})
		return
	}
	if o.Limiter != nil && !o.Limiter.Allow(m.User) {
		log.Warn().Str("module", "app.orch").Int64("user", int64(m.User)).Msg("join rate limited")
		o.reply(sess, domain.EventError, domain.ErrorPayload{Message: MsgRateLimited})
		return
	}

	res := o.Registry.Join(m, room)
	if res.Entered {
		if o.Metrics != nil {
			o.Metrics.Joins.Inc()
		}
		o.notify(room, res.Notify, domain.EventUserJoined, domain.UserPayload{UserID: m.User})
	}
	o.reply(sess, domain.EventRoomJoined, domain.RoomPayload{RoomID: room})
}

func (o *Orchestrator) leave(sess *core.Session, m Member, data json.RawMessage) {
	room, ok := roomOf(data)
	if !ok {
		o.reply(sess, domain.EventError, domain.ErrorPayload{Message: MsgRoomRequired})
		return
	}
	res := o.Registry.Leave(m, room)
	if !res.Removed {
		return
	}
	if res.Departed {
		if o.Metrics != nil {
			o.Metrics.Leaves.Inc()
		}
		o.notify(room, res.Notify, domain.EventUserLeft, domain.UserPayload{UserID: m.User})
	}
	o.reply(sess, domain.EventRoomLeft, domain.RoomPayload{RoomID: room})
}

func (o *Orchestrator) relay(m Member, event string, data json.RawMessage) {
	room, rest, ok := SplitRoom(data)
	if !ok {
		log.Debug().Str("module", "app.orch").Str("conn", string(m.Conn)).Str("event", event).Msg("relay without room")
		return
	}
	if !o.Registry.IsMember(m, room) {
		log.Debug().Str("module", "app.orch").Str("conn", string(m.Conn)).Str("room", string(room)).Msg("relay from non-member")
		return
	}
	o.applyPolicy(room, o.Relay.Broadcast(room, m, event, rest))
}

func (o *Orchestrator) notify(room domain.RoomID, to []Member, event string, v any) {
	o.applyPolicy(room, o.Relay.Notify(room, to, event, v))
}

func (o *Orchestrator) applyPolicy(room domain.RoomID, res PublishResult) {
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case KickMember:
			log.Warn().Str("module", "app.orch").Str("conn", string(slow.Conn)).Str("room", string(room)).Msg("kicking slow member")
			slow.Signal.Close()
		case DropFrame, NoAction:
		}
	}
}

func (o *Orchestrator) reply(sess *core.Session, event string, v any) {
	frame, err := Encode(event, v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Str("event", event).Msg("encode reply")
		return
	}
	if err := sess.Signal().TrySend(frame); err != nil {
		log.Debug().Err(err).Str("module", "app.orch").Str("conn", string(sess.ID())).Str("event", event).Msg("reply dropped")
	}
}

func memberOf(sess *core.Session, ident domain.Identity) Member {
	return Member{Conn: sess.ID(), User: ident.UserID, Signal: sess.Signal()}
}

func roomOf(data json.RawMessage) (domain.RoomID, bool) {
	var p domain.RoomPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		return "", false
	}
	return p.RoomID, true
}
