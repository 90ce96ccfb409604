package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID         string
	SKU        string
	Name       string
	Price      decimal.Decimal
	CategoryID *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Variant struct {
	ID        string
	ProductID string
	SKU       string
	Name      string
	Price     decimal.NullDecimal // nil -> product price
}

type Category struct {
	ID       string
	ParentID *string
	Name     string
}

type Address struct {
	ID         string
	UserID     *string
	FullName   string
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string
	Phone      string
	CreatedAt  time.Time
}

// Cart and CartItem are owned by the cart manager; checkout only reads them
// and flips IsActive.
type Cart struct {
	ID        string
	UserID    *string
	IsActive  bool
	Metadata  map[string]any
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CartItem struct {
	ID        string
	CartID    string
	ProductID string
	VariantID *string
	Quantity  int
	UnitPrice decimal.NullDecimal // price frozen when the item was added
	Metadata  map[string]any
}

const CartMetaCouponCode = "coupon_code"

// CouponCode returns the coupon code attached to the cart metadata, if any.
func (c *Cart) CouponCode() (string, bool) {
	if c.Metadata == nil {
		return "", false
	}
	s, ok := c.Metadata[CartMetaCouponCode].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

type InventoryRecord struct {
	ID               string
	ProductID        string
	VariantID        *string
	Quantity         int
	ReservedQuantity int
	ReorderPoint     *int
	Status           InventoryStatus
	LocationID       *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Available is on-hand minus reserved, floored at zero.
func (r *InventoryRecord) Available() int {
	if a := r.Quantity - r.ReservedQuantity; a > 0 {
		return a
	}
	return 0
}

// Label names the product (and variant) for user-facing messages.
func (r *InventoryRecord) Label() string {
	if r.VariantID != nil {
		return "product " + r.ProductID + " variant " + *r.VariantID
	}
	return "product " + r.ProductID
}

// RefreshStatus recomputes the stock status after a quantity change.
// backorder and discontinued are set by hand and left alone.
func (r *InventoryRecord) RefreshStatus() {
	switch r.Status {
	case InventoryBackorder, InventoryDiscontinued:
		return
	}
	avail := r.Available()
	switch {
	case avail == 0:
		r.Status = InventoryOutOfStock
	case r.ReorderPoint != nil && avail <= *r.ReorderPoint:
		r.Status = InventoryLowStock
	default:
		r.Status = InventoryInStock
	}
}

type StockMovement struct {
	ID            string
	Seq           int64 // store-assigned, causal order per inventory row
	InventoryID   string
	Quantity      int // signed delta as requested
	MovementType  MovementType
	ReferenceID   *string
	ReferenceType *string
	Notes         string
	ActorID       *string
	CreatedAt     time.Time
}

type Coupon struct {
	ID                    string
	Code                  string
	Description           string
	DiscountType          DiscountType
	DiscountValue         decimal.Decimal
	BuyQuantity           *int
	GetQuantity           *int
	UsageLimit            *int
	UsageLimitPerUser     *int
	CurrentUsageCount     int
	StartsAt              *time.Time
	ExpiresAt             *time.Time
	MinimumOrderAmount    decimal.NullDecimal
	MinimumQuantity       *int
	AppliesToAllProducts  bool
	ProductIDs            []string
	CategoryIDs           []string
	ExcludedProductIDs    []string
	ExcludedCategoryIDs   []string
	AppliesToAllCustomers bool
	CustomerIDs           []string
	IsFirstOrderOnly      bool
	IsOneTimeUse          bool
	IsActive              bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type CouponUsage struct {
	ID             string
	CouponID       string
	OrderID        string
	UserID         *string
	DiscountAmount decimal.Decimal
	CreatedAt      time.Time
}

type Order struct {
	ID                string
	OrderNumber       string
	UserID            *string
	Status            Status // lihat status.go
	PaymentStatus     PaymentStatus
	Subtotal          decimal.Decimal
	ShippingAmount    decimal.Decimal
	TaxAmount         decimal.Decimal
	DiscountAmount    decimal.Decimal
	TotalAmount       decimal.Decimal
	Currency          string
	CustomerEmail     string
	CustomerName      string
	CustomerPhone     string
	ShippingAddressID *string
	BillingAddressID  *string
	CouponCode        *string
	GuestToken        *string
	CartID            *string
	Notes             string
	CompletedAt       *time.Time
	CancelledAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time

	Items []OrderItem
}

// IsOwnedBy reports whether userID may act on the order. Guest orders are
// never owned by an authenticated user.
func (o *Order) IsOwnedBy(userID string) bool {
	return o.UserID != nil && *o.UserID == userID
}

type OrderItem struct {
	ID             string
	OrderID        string
	ProductID      string
	VariantID      *string
	ProductName    string
	ProductSKU     string
	VariantName    *string
	Quantity       int
	UnitPrice      decimal.Decimal
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
	Options        map[string]any
	CreatedAt      time.Time
}

type Payment struct {
	ID            string
	OrderID       string
	Provider      PaymentProvider
	Amount        decimal.Decimal
	Currency      string
	Status        PaymentStatus
	TransactionID *string
	Data          map[string]any
	CreatedAt     time.Time
}
