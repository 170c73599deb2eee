package ports

import (
	"context"

	"github.com/aretw0/relaykit/pkg/domain"
)

// Dispatcher marshals work onto the owner goroutine.
// Post never blocks, so it is safe to call from the owner goroutine itself.
type Dispatcher interface {
	Post(fn func())
}

// Inbox receives UI-originated commands from a transport.
type Inbox interface {
	// Dispatch applies cmd on the owner goroutine and returns once it has been applied.
	Dispatch(ctx context.Context, cmd domain.Command) error

	// Sync calls fn on the owner goroutine with the current value of every relay.
	// Relay updates are also delivered on the owner, so nothing can interleave with fn.
	Sync(ctx context.Context, fn func([]domain.RelayUpdate)) error
}

// UISink is the native-to-UI delivery end of the event channel.
type UISink interface {
	// Visible reports whether the UI is currently able to consume events.
	Visible() bool

	// SendEvent delivers e on a best-effort basis. It must not block.
	SendEvent(e domain.Event)
}

// TelemetrySource builds the payload of the periodic event.
type TelemetrySource interface {
	// Telemetry returns the event to emit on this tick; ok is false to skip the tick.
	Telemetry() (e domain.Event, ok bool)
}

// Transport is the UI-facing endpoint, built once from the sealed relay set.
type Transport interface {
	UISink

	// Close disconnects every UI client.
	Close() error
}
