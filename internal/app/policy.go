package app

import "github.com/dkeye/curriculum-relay/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a member whose send buffer was full.
type Policy interface {
	OnBackPressure(room domain.RoomID, member Member) BackpressureAction
}

// DropPolicy loses the frame and keeps the member.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.RoomID, Member) BackpressureAction { return DropFrame }

// KickPolicy closes the slow member's connection; its disconnect then
// runs the normal purge.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(domain.RoomID, Member) BackpressureAction { return KickMember }

func PolicyFor(name string) Policy {
	if name == "kick" {
		return KickPolicy{}
	}
	return DropPolicy{}
}
