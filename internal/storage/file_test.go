package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorage(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, s.Store(ctx, "settings.json", []byte(`{"threshold_days":90}`)))
		data, err := s.Retrieve(ctx, "settings.json")
		require.NoError(t, err)
		assert.JSONEq(t, `{"threshold_days":90}`, string(data))
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, s.Store(ctx, "settings.json", []byte(`{}`)))
		data, err := s.Retrieve(ctx, "settings.json")
		require.NoError(t, err)
		assert.Equal(t, "{}", string(data))
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := s.Retrieve(ctx, "nope.json")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list by prefix", func(t *testing.T) {
		require.NoError(t, s.Store(ctx, "digests/admin/2026-06-01", []byte("1")))
		require.NoError(t, s.Store(ctx, "digests/author/2026-W22", []byte("1")))
		keys, err := s.List(ctx, "digests/")
		require.NoError(t, err)
		assert.Equal(t, []string{"digests/admin/2026-06-01", "digests/author/2026-W22"}, keys)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "digests/admin/2026-06-01"))
		require.NoError(t, s.Delete(ctx, "digests/admin/2026-06-01"))
		_, err := s.Retrieve(ctx, "digests/admin/2026-06-01")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("rejects escaping keys", func(t *testing.T) {
		assert.Error(t, s.Store(ctx, "../outside", []byte("x")))
		_, err := s.Retrieve(ctx, "/etc/passwd")
		assert.Error(t, err)
	})
}
