package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStoreContract exercises the behaviour every backend must share.
func testStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		v, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Nil(t, v)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "cart", []byte(`[{"id":"boda-elegante"}]`)))

		v, err := s.Get(ctx, "cart")
		require.NoError(t, err)
		assert.JSONEq(t, `[{"id":"boda-elegante"}]`, string(v))
	})

	t.Run("last write wins", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "orders", []byte(`[1]`)))
		require.NoError(t, s.Set(ctx, "orders", []byte(`[1,2]`)))

		v, err := s.Get(ctx, "orders")
		require.NoError(t, err)
		assert.Equal(t, `[1,2]`, string(v))
	})

	t.Run("keys are independent", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "cart:a", []byte(`[]`)))

		_, err := s.Get(ctx, "cart:b")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, s.Ping(ctx))
	})
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", value))
	value[0] = 'x'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'y'
	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}
