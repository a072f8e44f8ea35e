package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopCacheNeverHits(t *testing.T) {
	ctx := context.Background()
	var c Cache = NewNoop()

	require.NoError(t, c.Set(ctx, "service-packages:list", []byte("[]"), time.Minute))
	val, ok, err := c.Get(ctx, "service-packages:list")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, val)
	assert.NoError(t, c.Delete(ctx, "service-packages:list"))
	assert.NoError(t, c.DeletePrefix(ctx, "service-packages:"))
}

func TestNewRedisFromURL(t *testing.T) {
	c, err := NewRedisFromURL("redis://:secret@localhost:6379/2")
	require.NoError(t, err)
	defer c.Close()

	opts := c.Client().Options()
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	_, err = NewRedisFromURL("http://localhost:6379")
	assert.Error(t, err)
}
