package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNilClientCache(t *testing.T) {
	c := NewService(nil)
	ctx := context.Background()

	assert.False(t, c.IsAvailable())
	assert.Error(t, c.Ping(ctx))

	// writes are dropped, reads miss
	assert.NoError(t, c.SetStatusCounts(ctx, "org1", "", map[string]int{"all": 3}))
	var dest map[string]int
	assert.ErrorIs(t, c.GetStatusCounts(ctx, "org1", "", &dest), ErrUnavailable)
	assert.NoError(t, c.InvalidateStatusCounts(ctx, "org1"))
	assert.NoError(t, c.InvalidateQueue(ctx, "org1"))

	ok, err := c.Exists(ctx, "counts:org1:all")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestCountsKey(t *testing.T) {
	assert.Equal(t, "counts:org1:all", countsKey("org1", ""))
	assert.Equal(t, "counts:org1:adv1", countsKey("org1", "adv1"))
	assert.Equal(t, "queue:org1", queueKey("org1"))
}
