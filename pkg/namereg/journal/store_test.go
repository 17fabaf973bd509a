package journal

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreTests exercises the Store contract against any implementation.
func runStoreTests(t *testing.T, open func(t *testing.T) Store) {
	t.Helper()

	rec := func(i int, typ, key, owner string) Record {
		return Record{
			ID:      fmt.Sprintf("evt-%04d", i),
			Type:    typ,
			Key:     key,
			OwnerID: owner,
			Value:   fmt.Sprintf("v%d", i),
			Time:    time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC),
		}
	}

	t.Run("AppendAndListByKey", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		require.NoError(t, s.Append(rec(1, "put", "k1", "own-a")))
		require.NoError(t, s.Append(rec(2, "put", "k2", "own-a")))
		require.NoError(t, s.Append(rec(3, "del", "k1", "own-a")))

		got, err := s.ListByKey("k1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "put", got[0].Type)
		assert.Equal(t, "del", got[1].Type)

		got, err = s.ListByKey("missing")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("ListByOwner", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		require.NoError(t, s.Append(rec(1, "put", "k1", "own-a")))
		require.NoError(t, s.Append(rec(2, "granted", "k2", "own-b")))
		require.NoError(t, s.Append(rec(3, "purged", "", "own-b")))

		got, err := s.ListByOwner("own-b")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "granted", got[0].Type)
		assert.Equal(t, "purged", got[1].Type)
	})

	t.Run("RoundTripFields", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		want := rec(7, "handover", "leader", "own-c")
		require.NoError(t, s.Append(want))

		got, err := s.ListByKey("leader")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, want.ID, got[0].ID)
		assert.Equal(t, want.Value, got[0].Value)
		assert.True(t, want.Time.Equal(got[0].Time))
	})

	t.Run("Prune", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		require.NoError(t, s.Append(rec(1, "put", "k", "own-a")))
		require.NoError(t, s.Append(rec(2, "del", "k", "own-a")))
		require.NoError(t, s.Append(rec(3, "put", "k", "own-a")))

		cutoff := time.Date(2026, 1, 1, 0, 0, 3, 0, time.UTC)
		require.NoError(t, s.Prune(cutoff))

		got, err := s.ListByKey("k")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "evt-0003", got[0].ID)
	})

	t.Run("ClosedStore", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Close())

		assert.ErrorIs(t, s.Append(rec(1, "put", "k", "o")), ErrStoreClosed)
		_, err := s.ListByKey("k")
		assert.ErrorIs(t, err, ErrStoreClosed)
		_, err = s.ListByOwner("o")
		assert.ErrorIs(t, err, ErrStoreClosed)
		assert.ErrorIs(t, s.Prune(time.Now()), ErrStoreClosed)

		// Double close is safe.
		assert.NoError(t, s.Close())
	})
}
