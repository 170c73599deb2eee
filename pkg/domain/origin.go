package domain

import "sync/atomic"

// Origin tags the source of a native parameter change so that a component can
// recognize the notifications caused by its own writes.
type Origin uint64

const (
	OriginHost       Origin = 1 // State restore and other host-driven writes
	OriginAutomation Origin = 2 // Host automation lanes
)

var lastOrigin atomic.Uint64

func init() {
	lastOrigin.Store(uint64(OriginAutomation))
}

// NewOrigin allocates a process-unique origin tag.
func NewOrigin() Origin {
	return Origin(lastOrigin.Add(1))
}

// String names the well-known origins.
func (o Origin) String() string {
	switch o {
	case OriginHost:
		return "host"
	case OriginAutomation:
		return "automation"
	default:
		return "attachment"
	}
}
