package orders

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Tx lookups that match no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert hits a unique key the store
	// does not retry on (coupon code, inventory product/variant pair).
	ErrDuplicate = errors.New("duplicate key")
)

// Store runs fn inside one database transaction. fn's error rolls it back.
// Storage-level races are retried by the store by calling fn again, so fn
// must not have side effects outside tx.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Tx interface {
	InventoryRepo
	CouponRepo
	OrderRepo
	CartRepo
	CatalogRepo
}

type InventoryRepo interface {
	// InventoryForUpdate locks the row until the transaction ends.
	InventoryForUpdate(ctx context.Context, id string) (*InventoryRecord, error)
	InventoryByProductForUpdate(ctx context.Context, productID string, variantID *string) (*InventoryRecord, error)
	InventoryByProduct(ctx context.Context, productID string, variantID *string) (*InventoryRecord, error)
	CreateInventory(ctx context.Context, rec *InventoryRecord) error
	UpdateInventory(ctx context.Context, rec *InventoryRecord) error
	InsertMovement(ctx context.Context, m *StockMovement) error
	ListMovements(ctx context.Context, inventoryID string) ([]StockMovement, error)
}

type CouponRepo interface {
	CouponByCode(ctx context.Context, code string) (*Coupon, error)
	CouponByCodeForUpdate(ctx context.Context, code string) (*Coupon, error)
	CreateCoupon(ctx context.Context, c *Coupon) error
	UpdateCouponUsageCount(ctx context.Context, couponID string, count int) error
	InsertCouponUsage(ctx context.Context, u *CouponUsage) error
	CountCouponUsageByUser(ctx context.Context, couponID, userID string) (int, error)
}

type OrderRepo interface {
	OrderByID(ctx context.Context, id string) (*Order, error)
	OrderForUpdate(ctx context.Context, id string) (*Order, error)
	OrderByGuestToken(ctx context.Context, token string) (*Order, error)
	InsertOrder(ctx context.Context, o *Order) error
	InsertOrderItem(ctx context.Context, it *OrderItem) error
	UpdateOrderStatus(ctx context.Context, o *Order) error
	ListOrderItems(ctx context.Context, orderID string) ([]OrderItem, error)
	CountOrdersByUser(ctx context.Context, userID string) (int, error)
	// MaxOrderNumberWithPrefix returns "" when no order carries the prefix.
	MaxOrderNumberWithPrefix(ctx context.Context, prefix string) (string, error)
	InsertPayment(ctx context.Context, p *Payment) error
	ListPayments(ctx context.Context, orderID string) ([]Payment, error)
	Address(ctx context.Context, id string) (*Address, error)
	InsertAddress(ctx context.Context, a *Address) error
}

type CartRepo interface {
	// CartForUpdate loads the cart with its items and locks the cart row.
	CartForUpdate(ctx context.Context, id string) (*Cart, error)
	CreateCart(ctx context.Context, c *Cart) error
	DeactivateCart(ctx context.Context, id string) error
}

type CatalogRepo interface {
	Product(ctx context.Context, id string) (*Product, error)
	Variant(ctx context.Context, id string) (*Variant, error)
	ListCategories(ctx context.Context) ([]Category, error)
	CreateProduct(ctx context.Context, p *Product) error
	CreateVariant(ctx context.Context, v *Variant) error
	CreateCategory(ctx context.Context, c *Category) error
}
