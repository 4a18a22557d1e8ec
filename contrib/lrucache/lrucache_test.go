package lrucache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/stackgen"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestCache(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(WithClock(clk.now))

	t.Run("miss", func(t *testing.T) {
		v, err := c.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("set_get_copies", func(t *testing.T) {
		buf := []byte("abc")
		require.NoError(t, c.Set(ctx, "k", buf, 0))
		buf[0] = 'x'
		v, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), v)
	})

	t.Run("entry_ttl", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "ttl", []byte("v"), time.Minute))
		v, err := c.Get(ctx, "ttl")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), v)

		clk.t = clk.t.Add(time.Minute)
		v, err = c.Get(ctx, "ttl")
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("delete_prefix", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, stackgen.CacheKey("identity", "a"), []byte("1"), 0))
		require.NoError(t, c.Set(ctx, stackgen.CacheKey("identity", "b"), []byte("2"), 0))
		require.NoError(t, c.Set(ctx, stackgen.CacheKey("other", "a"), []byte("3"), 0))
		require.NoError(t, c.DeletePrefix(ctx, "identity:"))

		v, err := c.Get(ctx, "identity:a")
		require.NoError(t, err)
		assert.Nil(t, v)
		v, err = c.Get(ctx, "other:a")
		require.NoError(t, err)
		assert.Equal(t, []byte("3"), v)
	})

	t.Run("delete_and_clear", func(t *testing.T) {
		require.NoError(t, c.Delete(ctx, "other:a"))
		v, err := c.Get(ctx, "other:a")
		require.NoError(t, err)
		assert.Nil(t, v)

		require.NoError(t, c.Clear(ctx))
		assert.Zero(t, c.Len())
	})
}

func TestCacheSize(t *testing.T) {
	ctx := context.Background()
	c := New(WithSize(2))
	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))
	assert.Equal(t, 2, c.Len())

	v, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, v, "oldest entry evicted")
}
