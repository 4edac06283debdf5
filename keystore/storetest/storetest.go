// Package storetest is a conformance suite for keystore.Store backends.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stegseal/stegseal-go/internal/crypto"
	"github.com/stegseal/stegseal-go/keystore"
)

// Run exercises a Store returned by newStore. Every subtest gets a fresh
// store.
func Run(t *testing.T, newStore func(t *testing.T) keystore.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGet", func(t *testing.T) {
		s := newStore(t)
		kp := mustKeyPair(t)

		require.NoError(t, s.Put(ctx, "alice", kp))

		got, err := s.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, kp.PublicKey, got.PublicKey)
		assert.Equal(t, kp.PrivateKey, got.PrivateKey)
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Get(ctx, "nobody")
		assert.ErrorIs(t, err, keystore.ErrNotFound)
	})

	t.Run("PutReplaces", func(t *testing.T) {
		s := newStore(t)
		first, second := mustKeyPair(t), mustKeyPair(t)

		require.NoError(t, s.Put(ctx, "alice", first))
		entries, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		created := entries[0].CreatedAt

		require.NoError(t, s.Put(ctx, "alice", second))

		got, err := s.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, second.PublicKey, got.PublicKey)

		entries, err = s.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.WithinDuration(t, created, entries[0].CreatedAt, time.Second, "created_at should survive replacement")
	})

	t.Run("IdentitiesAreIsolated", func(t *testing.T) {
		s := newStore(t)
		a, b := mustKeyPair(t), mustKeyPair(t)

		require.NoError(t, s.Put(ctx, "alice", a))
		require.NoError(t, s.Put(ctx, "bob", b))

		got, err := s.Get(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, b.PublicKey, got.PublicKey)
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "alice", mustKeyPair(t)))

		require.NoError(t, s.Delete(ctx, "alice"))

		_, err := s.Get(ctx, "alice")
		assert.ErrorIs(t, err, keystore.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "alice"), keystore.ErrNotFound)
	})

	t.Run("List", func(t *testing.T) {
		s := newStore(t)

		entries, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)

		keys := map[string]*crypto.KeyPair{}
		for _, id := range []string{"carol", "alice", "bob"} {
			keys[id] = mustKeyPair(t)
			require.NoError(t, s.Put(ctx, id, keys[id]))
		}

		entries, err = s.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		for i, id := range []string{"alice", "bob", "carol"} {
			assert.Equal(t, id, entries[i].Identity)
			assert.Equal(t, keys[id].PublicKey, entries[i].PublicKey)
			assert.False(t, entries[i].CreatedAt.IsZero())
		}
	})

	t.Run("RejectsInvalidInput", func(t *testing.T) {
		s := newStore(t)

		assert.ErrorIs(t, s.Put(ctx, "", mustKeyPair(t)), keystore.ErrInvalidIdentity)
		assert.ErrorIs(t, s.Put(ctx, "bad\x00id", mustKeyPair(t)), keystore.ErrInvalidIdentity)

		tampered := mustKeyPair(t)
		tampered.PublicKey[0] ^= 1
		assert.ErrorIs(t, s.Put(ctx, "alice", tampered), crypto.ErrKeyMismatch)
	})

	t.Run("ReturnsCopies", func(t *testing.T) {
		s := newStore(t)
		kp := mustKeyPair(t)
		want := kp.PublicKey

		require.NoError(t, s.Put(ctx, "alice", kp))
		kp.PublicKey[0] ^= 1

		got, err := s.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, want, got.PublicKey)

		got.PrivateKey[0] ^= 1
		again, err := s.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, want, again.PublicKey)
		assert.True(t, crypto.ValidateKeyPair(again))
	})

	t.Run("ConcurrentPuts", func(t *testing.T) {
		s := newStore(t)

		keys := make([]*crypto.KeyPair, 8)
		for i := range keys {
			keys[i] = mustKeyPair(t)
		}

		var wg sync.WaitGroup
		for i, kp := range keys {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.Put(ctx, fmt.Sprintf("user-%d", i), kp))
			}()
		}
		wg.Wait()

		entries, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, entries, 8)
	})
}

func mustKeyPair(t *testing.T) *crypto.KeyPair {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return kp
}
