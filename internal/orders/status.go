package orders

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusOnHold     Status = "on_hold"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusReturned   Status = "returned"
	StatusRefunded   Status = "refunded"
	StatusFailed     Status = "failed"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusOnHold: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true, StatusOnHold: true, StatusCancelled: true},
	StatusOnHold:     {StatusProcessing: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true, StatusReturned: true, StatusFailed: true},
	StatusDelivered:  {StatusCompleted: true, StatusReturned: true},
	StatusCompleted:  {StatusReturned: true, StatusRefunded: true},
	StatusReturned:   {StatusRefunded: true},
	StatusCancelled:  {StatusRefunded: true},
	StatusFailed:     {StatusProcessing: true, StatusCancelled: true},
	StatusRefunded:   {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentAuthorized        PaymentStatus = "authorized"
	PaymentPaid              PaymentStatus = "paid"
	PaymentPartiallyPaid     PaymentStatus = "partially_paid"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentVoided            PaymentStatus = "voided"
	PaymentFailed            PaymentStatus = "failed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentAuthorized, PaymentPaid, PaymentPartiallyPaid,
		PaymentRefunded, PaymentPartiallyRefunded, PaymentVoided, PaymentFailed:
		return true
	}
	return false
}

type PaymentProvider string

const (
	ProviderCashOnDelivery PaymentProvider = "cash_on_delivery"
	ProviderBankTransfer   PaymentProvider = "bank_transfer"
	ProviderCard           PaymentProvider = "card"
	ProviderPayPal         PaymentProvider = "paypal"
	ProviderStripe         PaymentProvider = "stripe"
)

type InventoryStatus string

const (
	InventoryInStock      InventoryStatus = "in_stock"
	InventoryLowStock     InventoryStatus = "low_stock"
	InventoryOutOfStock   InventoryStatus = "out_of_stock"
	InventoryBackorder    InventoryStatus = "backorder"
	InventoryDiscontinued InventoryStatus = "discontinued"
)

type MovementType string

const (
	MovementReceipt    MovementType = "receipt"
	MovementSale       MovementType = "sale"
	MovementAdjustment MovementType = "adjustment"
	MovementReturn     MovementType = "return"
	MovementTransfer   MovementType = "transfer"
	MovementDamaged    MovementType = "damaged"
	MovementReserved   MovementType = "reserved"
	MovementReleased   MovementType = "released"
)

func (t MovementType) Valid() bool {
	switch t {
	case MovementReceipt, MovementSale, MovementAdjustment, MovementReturn,
		MovementTransfer, MovementDamaged, MovementReserved, MovementReleased:
		return true
	}
	return false
}

// AffectsOnHand is false for reservation bookkeeping, which moves
// reserved_quantity instead of quantity.
func (t MovementType) AffectsOnHand() bool {
	return t != MovementReserved && t != MovementReleased
}

type DiscountType string

const (
	DiscountPercentage   DiscountType = "percentage"
	DiscountFixedAmount  DiscountType = "fixed_amount"
	DiscountFreeShipping DiscountType = "free_shipping"
	DiscountBuyXGetY     DiscountType = "buy_x_get_y"
)

func (t DiscountType) Valid() bool {
	switch t {
	case DiscountPercentage, DiscountFixedAmount, DiscountFreeShipping, DiscountBuyXGetY:
		return true
	}
	return false
}
