package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/relaykit/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore implementation
// adheres to the defined interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	name := "contract-test-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		snap := domain.NewSnapshot(name)
		snap.Values["gain"] = domain.FloatValue(0.8)
		snap.Values["bypass"] = domain.BoolValue(true)
		snap.Values["mode"] = domain.IndexValue(2)

		require.NoError(t, store.Save(ctx, snap), "Save should not return error")

		loaded, err := store.Load(ctx, name)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, name, loaded.Name)
		assert.Equal(t, domain.FloatValue(0.8), loaded.Values["gain"])
		assert.Equal(t, domain.BoolValue(true), loaded.Values["bypass"])
		assert.Equal(t, domain.IndexValue(2), loaded.Values["mode"])
	})

	t.Run("Load is isolated from caller mutation", func(t *testing.T) {
		snap := domain.NewSnapshot(name + "-iso")
		snap.Values["gain"] = domain.FloatValue(0.1)
		require.NoError(t, store.Save(ctx, snap))
		defer func() { _ = store.Delete(ctx, snap.Name) }()

		snap.Values["gain"] = domain.FloatValue(0.9)

		loaded, err := store.Load(ctx, snap.Name)
		require.NoError(t, err)
		assert.Equal(t, 0.1, loaded.Values["gain"].Float)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+name)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, domain.NewSnapshot(name)))

		require.NoError(t, store.Delete(ctx, name), "Delete should not return error")

		_, err := store.Load(ctx, name)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound, "Load after Delete should return ErrSnapshotNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := name + "-1"
		id2 := name + "-2"
		_ = store.Save(ctx, domain.NewSnapshot(id1))
		_ = store.Save(ctx, domain.NewSnapshot(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		names, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, names, id1)
		assert.Contains(t, names, id2)
	})
}
