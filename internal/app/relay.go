package app

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/curriculum-relay/internal/core"
	"github.com/dkeye/curriculum-relay/internal/domain"
	"github.com/dkeye/curriculum-relay/internal/metrics"
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []Member
}

// Relay fans frames out to room members. It never holds the registry
// lock while sending.
type Relay struct {
	Registry *Registry
	Metrics  *metrics.Metrics
}

func NewRelay(reg *Registry, m *metrics.Metrics) *Relay {
	return &Relay{Registry: reg, Metrics: m}
}

// Broadcast delivers payload under event to every member of room except sender.
func (rl *Relay) Broadcast(room domain.RoomID, sender Member, event string, payload json.RawMessage) PublishResult {
	frame, err := Encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("event", event).Msg("encode broadcast")
		return PublishResult{}
	}
	return rl.deliver(room, rl.Registry.MembersExcluding(room, sender), event, frame)
}

// Notify sends v to an explicit recipient list, e.g. the snapshot
// returned by a registry mutation.
func (rl *Relay) Notify(room domain.RoomID, to []Member, event string, v any) PublishResult {
	if len(to) == 0 {
		return PublishResult{}
	}
	frame, err := Encode(event, v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("event", event).Msg("encode notify")
		return PublishResult{}
	}
	return rl.deliver(room, to, event, frame)
}

func (rl *Relay) deliver(room domain.RoomID, to []Member, event string, frame core.Frame) PublishResult {
	res := PublishResult{}
	for _, m := range to {
		if err := m.Signal.TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SendTo++
	}
	if rl.Metrics != nil {
		rl.Metrics.Relayed.WithLabelValues(event).Add(float64(res.SendTo))
		rl.Metrics.Dropped.Add(float64(len(res.Dropped)))
	}
	log.Debug().Str("module", "app.relay").Str("room", string(room)).Str("event", event).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

// Encode builds one outbound envelope.
func Encode(event string, v any) (core.Frame, error) {
	env := domain.Envelope{Event: event}
	switch d := v.(type) {
	case nil:
	case json.RawMessage:
		env.Data = d
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", event, err)
		}
		env.Data = raw
	}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", event, err)
	}
	return b, nil
}

// SplitRoom pulls "roomId" out of a client payload and returns the rest
// untouched. ok is false when the payload is not an object or carries no
// usable room.
func SplitRoom(data json.RawMessage) (room domain.RoomID, rest json.RawMessage, ok bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return "", nil, false
	}
	raw, found := fields["roomId"]
	if !found {
		return "", nil, false
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil || id == "" {
		return "", nil, false
	}
	delete(fields, "roomId")
	rest, err := json.Marshal(fields)
	if err != nil {
		return "", nil, false
	}
	return domain.RoomID(id), rest, true
}
