package ports

import (
	"context"

	"github.com/aretw0/relaykit/pkg/domain"
)

// SnapshotStore defines the interface for persisting parameter snapshots.
// This backs the host's "save state / restore state" cycle and named presets.
type SnapshotStore interface {
	// Save persists the snapshot under snap.Name, replacing any previous content.
	Save(ctx context.Context, snap *domain.Snapshot) error

	// Load retrieves a snapshot by name.
	// Returns domain.ErrSnapshotNotFound if the snapshot does not exist.
	Load(ctx context.Context, name string) (*domain.Snapshot, error)

	// Delete removes a snapshot. Deleting a missing snapshot is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of the stored snapshots.
	List(ctx context.Context) ([]string, error)
}
