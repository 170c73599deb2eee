package editor

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/relaykit/pkg/attachment"
	"github.com/aretw0/relaykit/pkg/domain"
)

// Dispatch applies a UI command on the owner goroutine. Visibility and sync commands
// are answered by the transport itself and are accepted here as no-ops.
func (e *Editor) Dispatch(ctx context.Context, cmd domain.Command) error {
	return e.call(ctx, func() error { return e.apply(cmd) })
}

func (e *Editor) apply(cmd domain.Command) error {
	switch cmd.Type {
	case domain.CommandVisibility, domain.CommandSync:
		return nil
	case domain.CommandGestureStart, domain.CommandValue, domain.CommandGestureEnd:
	default:
		return fmt.Errorf("%w: unknown command %q", domain.ErrMalformedValue, cmd.Type)
	}

	a, err := e.attachment(cmd.ID)
	if err != nil {
		return err
	}
	switch cmd.Type {
	case domain.CommandGestureStart:
		a.BeginGesture()
	case domain.CommandGestureEnd:
		a.EndGesture()
	default:
		v, err := cmd.Resolve(a.Relay().Spec())
		if err != nil {
			return fmt.Errorf("relay %q: %w", cmd.ID, err)
		}
		return a.SetValue(v)
	}
	return nil
}

func (e *Editor) attachment(id domain.ParameterID) (*attachment.Attachment, error) {
	a, ok := e.attachments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownParameter, id)
	}
	return a, nil
}

// Sync calls fn on the owner goroutine with the current relay state.
func (e *Editor) Sync(ctx context.Context, fn func([]domain.RelayUpdate)) error {
	return e.Do(ctx, func() { fn(e.state()) })
}

// State returns the current value of every relay in registration order.
func (e *Editor) State(ctx context.Context) ([]domain.RelayUpdate, error) {
	ch := make(chan []domain.RelayUpdate, 1)
	if err := e.Sync(ctx, func(u []domain.RelayUpdate) { ch <- u }); err != nil {
		return nil, err
	}
	return <-ch, nil
}

func (e *Editor) state() []domain.RelayUpdate {
	all := e.relays.All()
	updates := make([]domain.RelayUpdate, 0, len(all))
	for _, r := range all {
		updates = append(updates, r.Update())
	}
	return updates
}

// Capture records the current native value of every parameter as a named snapshot.
func (e *Editor) Capture(ctx context.Context, name string) (*domain.Snapshot, error) {
	snap := domain.NewSnapshot(name)
	err := e.Do(ctx, func() {
		for _, a := range e.order {
			snap.Values[a.ID()] = a.Parameter().Value()
		}
		snap.SavedAt = time.Now().UTC()
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Restore writes the snapshot's values to the native parameters as a host change, so
// every relay and UI observes them like any other external update. Entries for unknown
// parameters or with a mismatched kind are skipped. It returns the number applied.
func (e *Editor) Restore(ctx context.Context, snap *domain.Snapshot) (int, error) {
	var applied int
	err := e.Do(ctx, func() {
		for _, a := range e.order {
			v, ok := snap.Values[a.ID()]
			if !ok {
				continue
			}
			if _, err := a.Parameter().Set(v, domain.OriginHost); err != nil {
				e.logger.Warn("Snapshot entry skipped", "snapshot", snap.Name, "relay", string(a.ID()), "err", err)
				continue
			}
			applied++
		}
		for id := range snap.Values {
			if _, ok := e.attachments[id]; !ok {
				e.logger.Warn("Snapshot entry for unknown parameter", "snapshot", snap.Name, "relay", string(id))
			}
		}
	})
	if err != nil {
		return 0, err
	}
	return applied, nil
}
