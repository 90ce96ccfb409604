package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCache(rdb), mr
}

func TestOrderStatusCache(t *testing.T) {
	ctx := context.Background()
	c, mr := newCache(t)

	_, ok, err := c.GetOrderStatus(ctx, "o-1")
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	require.NoError(t, c.SetOrderStatus(ctx, "o-1", OrderStatus{Status: "processing", PaymentStatus: "paid", UpdatedAt: at}))

	st, ok, err := c.GetOrderStatus(ctx, "o-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "processing", st.Status)
	assert.True(t, st.UpdatedAt.Equal(at))
	assert.Equal(t, TTLStatusCache, mr.TTL("order_status:o-1"))

	require.NoError(t, c.DropOrderStatus(ctx, "o-1"))
	_, ok, err = c.GetOrderStatus(ctx, "o-1")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(time.Minute)
	require.NoError(t, c.SetOrderStatus(ctx, "o-2", OrderStatus{Status: "pending"}))
	mr.FastForward(TTLStatusCache + time.Second)
	_, ok, err = c.GetOrderStatus(ctx, "o-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckoutIdempotency(t *testing.T) {
	ctx := context.Background()
	c, mr := newCache(t)

	_, ok, err := c.CheckoutResult(ctx, "u-1", "k-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.RememberCheckout(ctx, "u-1", "k-1", "o-9"))
	id, ok, err := c.CheckoutResult(ctx, "u-1", "k-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "o-9", id)
	assert.Equal(t, TTLIdempotency, mr.TTL("idem:checkout:u-1:k-1"))

	// same key, different customer
	_, ok, err = c.CheckoutResult(ctx, "u-2", "k-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClaimAndRelease(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache(t)

	first, err := c.Claim(ctx, "inventory", "e-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := c.Claim(ctx, "inventory", "e-1")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := c.Claim(ctx, "billing", "e-1")
	require.NoError(t, err)
	assert.True(t, other)

	require.NoError(t, c.Release(ctx, "inventory", "e-1"))
	retry, err := c.Claim(ctx, "inventory", "e-1")
	require.NoError(t, err)
	assert.True(t, retry)
}

func TestErrorsSurface(t *testing.T) {
	ctx := context.Background()
	c, mr := newCache(t)
	mr.Close()

	_, _, err := c.GetOrderStatus(ctx, "o-1")
	assert.Error(t, err)
	_, err = c.Claim(ctx, "inventory", "e-1")
	assert.Error(t, err)
}
