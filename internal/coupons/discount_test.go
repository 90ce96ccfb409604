package coupons

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-order-fulfillment/internal/apperr"
	"github.com/ariefcatur/go-order-fulfillment/internal/catalog"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
func intPtr(v int) *int            { return &v }
func strPtr(s string) *string      { return &s }

func TestCalculateDiscount(t *testing.T) {
	nine := []LineItem{
		{ProductID: "a", Quantity: 2, UnitPrice: dec("10.00")},
		{ProductID: "b", Quantity: 3, UnitPrice: dec("10.00")},
		{ProductID: "c", Quantity: 4, UnitPrice: dec("10.00")},
	}

	tests := []struct {
		name   string
		coupon orders.Coupon
		total  string
		items  []LineItem
		want   string
	}{
		{
			name:   "percentage",
			coupon: orders.Coupon{DiscountType: orders.DiscountPercentage, DiscountValue: dec("20")},
			total:  "100.00",
			want:   "20.00",
		},
		{
			name:   "percentage rounds to cents",
			coupon: orders.Coupon{DiscountType: orders.DiscountPercentage, DiscountValue: dec("15")},
			total:  "33.33",
			want:   "5.00",
		},
		{
			name:   "fixed amount capped at total",
			coupon: orders.Coupon{DiscountType: orders.DiscountFixedAmount, DiscountValue: dec("30")},
			total:  "10.00",
			want:   "10.00",
		},
		{
			name:   "fixed amount below total",
			coupon: orders.Coupon{DiscountType: orders.DiscountFixedAmount, DiscountValue: dec("7.5")},
			total:  "40.00",
			want:   "7.50",
		},
		{
			name:   "free shipping leaves merchandise alone",
			coupon: orders.Coupon{DiscountType: orders.DiscountFreeShipping},
			total:  "80.00",
			want:   "0",
		},
		{
			name:   "buy two get one",
			coupon: orders.Coupon{DiscountType: orders.DiscountBuyXGetY, BuyQuantity: intPtr(2), GetQuantity: intPtr(1)},
			total:  "90.00",
			items:  nine,
			want:   "30.00",
		},
		{
			name:   "buy x get y without a full set",
			coupon: orders.Coupon{DiscountType: orders.DiscountBuyXGetY, BuyQuantity: intPtr(5), GetQuantity: intPtr(5)},
			total:  "90.00",
			items:  nine,
			want:   "0",
		},
		{
			name:   "buy x get y averages mixed prices",
			coupon: orders.Coupon{DiscountType: orders.DiscountBuyXGetY, BuyQuantity: intPtr(1), GetQuantity: intPtr(1)},
			total:  "40.00",
			items: []LineItem{
				{ProductID: "a", Quantity: 1, UnitPrice: dec("30.00")},
				{ProductID: "b", Quantity: 2, UnitPrice: dec("5.00")},
			},
			// sets=1, avg=40/3
			want: "13.33",
		},
		{
			name:   "zero total",
			coupon: orders.Coupon{DiscountType: orders.DiscountFixedAmount, DiscountValue: dec("5")},
			total:  "0",
			want:   "0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateDiscount(&tt.coupon, dec(tt.total), tt.items)
			assert.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestPredicates(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Hour), now.Add(time.Hour)

	c := &orders.Coupon{IsActive: true}
	assert.True(t, IsValid(c, now))

	c.StartsAt = &future
	assert.False(t, IsStarted(c, now))
	assert.False(t, IsValid(c, now))

	c.StartsAt = &now
	assert.True(t, IsStarted(c, now))

	c.ExpiresAt = &now
	assert.True(t, IsExpired(c, now))
	c.ExpiresAt = &future
	assert.False(t, IsExpired(c, now))
	c.ExpiresAt = &past
	assert.True(t, IsExpired(c, now))

	// non-UTC instants compare by instant
	local := future.In(time.FixedZone("WIB", 7*3600))
	c.ExpiresAt = &local
	assert.False(t, IsExpired(c, now))

	c.UsageLimit = intPtr(3)
	c.CurrentUsageCount = 2
	assert.False(t, IsUsageLimitReached(c))
	c.CurrentUsageCount = 3
	assert.True(t, IsUsageLimitReached(c))
}

func TestInScope(t *testing.T) {
	tree, err := catalog.Build([]orders.Category{
		{ID: "apparel", Name: "Apparel"},
		{ID: "shirts", ParentID: strPtr("apparel"), Name: "Shirts"},
		{ID: "books", Name: "Books"},
	})
	require.NoError(t, err)

	shirt := LineItem{ProductID: "p-shirt", CategoryID: strPtr("shirts"), Quantity: 1}
	book := LineItem{ProductID: "p-book", CategoryID: strPtr("books"), Quantity: 1}

	tests := []struct {
		name   string
		coupon orders.Coupon
		items  []LineItem
		want   bool
	}{
		{"no lists", orders.Coupon{}, []LineItem{book}, true},
		{"product allowed", orders.Coupon{ProductIDs: []string{"p-book"}}, []LineItem{shirt, book}, true},
		{"product not allowed", orders.Coupon{ProductIDs: []string{"p-other"}}, []LineItem{shirt, book}, false},
		{"category allowed directly", orders.Coupon{CategoryIDs: []string{"books"}}, []LineItem{book}, true},
		{"category allowed through parent", orders.Coupon{CategoryIDs: []string{"apparel"}}, []LineItem{shirt}, true},
		{"category not allowed", orders.Coupon{CategoryIDs: []string{"apparel"}}, []LineItem{book}, false},
		{"all items excluded", orders.Coupon{ExcludedProductIDs: []string{"p-book"}, ExcludedCategoryIDs: []string{"apparel"}}, []LineItem{shirt, book}, false},
		{"some items excluded", orders.Coupon{ExcludedCategoryIDs: []string{"books"}}, []LineItem{shirt, book}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InScope(&tt.coupon, tt.items, tree))
		})
	}
}

func TestCheckDefinition(t *testing.T) {
	tests := []struct {
		name string
		c    orders.Coupon
		ok   bool
	}{
		{"percentage", orders.Coupon{Code: "A", DiscountType: orders.DiscountPercentage, DiscountValue: dec("10")}, true},
		{"no code", orders.Coupon{DiscountType: orders.DiscountPercentage}, false},
		{"unknown type", orders.Coupon{Code: "A", DiscountType: "bogo"}, false},
		{"over 100 percent", orders.Coupon{Code: "A", DiscountType: orders.DiscountPercentage, DiscountValue: dec("120")}, false},
		{"negative value", orders.Coupon{Code: "A", DiscountType: orders.DiscountFixedAmount, DiscountValue: dec("-1")}, false},
		{"bxgy missing get", orders.Coupon{Code: "A", DiscountType: orders.DiscountBuyXGetY, BuyQuantity: intPtr(2)}, false},
		{"bxgy complete", orders.Coupon{Code: "A", DiscountType: orders.DiscountBuyXGetY, BuyQuantity: intPtr(2), GetQuantity: intPtr(1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckDefinition(&tt.c)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidCoupon)
			assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
		})
	}
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "SAVE20", NormalizeCode("  save20 "))
}
