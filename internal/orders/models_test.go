package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestAvailable(t *testing.T) {
	assert.Equal(t, 7, (&InventoryRecord{Quantity: 10, ReservedQuantity: 3}).Available())
	assert.Equal(t, 0, (&InventoryRecord{Quantity: 2, ReservedQuantity: 5}).Available())
	assert.Equal(t, 0, (&InventoryRecord{}).Available())
}

func TestRefreshStatus(t *testing.T) {
	tests := []struct {
		name string
		rec  InventoryRecord
		want InventoryStatus
	}{
		{"plenty", InventoryRecord{Quantity: 50, ReorderPoint: intPtr(5), Status: InventoryOutOfStock}, InventoryInStock},
		{"at reorder point", InventoryRecord{Quantity: 5, ReorderPoint: intPtr(5)}, InventoryLowStock},
		{"reserved counts", InventoryRecord{Quantity: 10, ReservedQuantity: 6, ReorderPoint: intPtr(5)}, InventoryLowStock},
		{"empty", InventoryRecord{Quantity: 0, Status: InventoryInStock}, InventoryOutOfStock},
		{"discontinued kept", InventoryRecord{Quantity: 10, Status: InventoryDiscontinued}, InventoryDiscontinued},
		{"backorder kept", InventoryRecord{Quantity: 0, Status: InventoryBackorder}, InventoryBackorder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.rec
			rec.RefreshStatus()
			assert.Equal(t, tt.want, rec.Status)
		})
	}
}

func TestCartCouponCode(t *testing.T) {
	c := &Cart{}
	_, ok := c.CouponCode()
	assert.False(t, ok)

	c.Metadata = map[string]any{"coupon_code": "SAVE20"}
	code, ok := c.CouponCode()
	assert.True(t, ok)
	assert.Equal(t, "SAVE20", code)

	c.Metadata["coupon_code"] = 42
	_, ok = c.CouponCode()
	assert.False(t, ok)
}
