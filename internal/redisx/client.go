package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Cache is the redis side of the API and the receipt consumer. Every method
// is best-effort from the caller's point of view: the ledger stays the
// source of truth, so callers log redis errors and carry on.
type Cache struct {
	rdb redis.Cmdable
}

func NewCache(rdb redis.Cmdable) *Cache {
	return &Cache{rdb: rdb}
}

type OrderStatus struct {
	UserID        string    `json:"user_id,omitempty"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (c *Cache) SetOrderStatus(ctx context.Context, orderID string, st OrderStatus) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), b, TTLStatusCache).Err()
}

// GetOrderStatus reports ok=false on a cache miss.
func (c *Cache) GetOrderStatus(ctx context.Context, orderID string) (st OrderStatus, ok bool, err error) {
	b, err := c.rdb.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return st, false, nil
	}
	if err != nil {
		return st, false, err
	}
	if err := json.Unmarshal(b, &st); err != nil {
		return st, false, fmt.Errorf("decode cached status: %w", err)
	}
	return st, true, nil
}

func (c *Cache) DropOrderStatus(ctx context.Context, orderID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Err()
}

// CheckoutResult returns the order userID created earlier under key,
// ok=false when the key is new. Keys are scoped per user so one customer's
// key never resolves to another customer's order.
func (c *Cache) CheckoutResult(ctx context.Context, userID, key string) (orderID string, ok bool, err error) {
	orderID, err = c.rdb.Get(ctx, fmt.Sprintf(KeyIdemCheckout, userID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return orderID, true, nil
}

func (c *Cache) RememberCheckout(ctx context.Context, userID, key, orderID string) error {
	return c.rdb.Set(ctx, fmt.Sprintf(KeyIdemCheckout, userID, key), orderID, TTLIdempotency).Err()
}

// Claim marks an event as taken by service. It returns false when another
// delivery already claimed or finished it.
func (c *Cache) Claim(ctx context.Context, service, eventID string) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, service, eventID), "1", TTLDedup).Result()
}

// Release gives a claim back after a failed attempt so redelivery can retry.
func (c *Cache) Release(ctx context.Context, service, eventID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf(KeyDedup, service, eventID)).Err()
}
