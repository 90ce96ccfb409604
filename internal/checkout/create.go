package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/apperr"
	"github.com/ariefcatur/go-order-fulfillment/internal/coupons"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type AddressInput struct {
	FullName   string `json:"full_name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

// OrderRequest carries the customer details checkout cannot read off the cart.
// An address is given either by id (a saved address) or inline.
type OrderRequest struct {
	CustomerEmail         string        `json:"customer_email"`
	CustomerName          string        `json:"customer_name"`
	CustomerPhone         string        `json:"customer_phone"`
	ShippingAddressID     *string       `json:"shipping_address_id,omitempty"`
	ShippingAddress       *AddressInput `json:"shipping_address,omitempty"`
	BillingSameAsShipping bool          `json:"billing_same_as_shipping"`
	BillingAddressID      *string       `json:"billing_address_id,omitempty"`
	BillingAddress        *AddressInput `json:"billing_address,omitempty"`
	Notes                 string        `json:"notes"`
}

// line is one cart item resolved against catalog and inventory.
type line struct {
	item    orders.CartItem
	product *orders.Product
	variant *orders.Variant
	inv     *orders.InventoryRecord
	price   decimal.Decimal
}

// CreateOrderFromCart commits the cart as an order in a single transaction:
// stock check, address snapshot, pricing, coupon usage, order rows, stock
// debits and cart deactivation all land together or not at all.
func (o *Orchestrator) CreateOrderFromCart(ctx context.Context, cartID string, req OrderRequest, userID *string) (order *orders.Order, err error) {
	ctx, span := o.startSpan(ctx, "CreateOrderFromCart", attribute.String("cart.id", cartID))
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = apperr.KindOf(err).String()
		}
		o.metrics.Checkout(result, time.Since(start))
		endSpan(span, err)
	}()

	if userID == nil && strings.TrimSpace(req.CustomerEmail) == "" {
		return nil, apperr.Wrap(apperr.KindBadRequest, ErrGuestEmailRequired, "customer email is required for guest checkout")
	}
	if req.ShippingAddressID == nil && req.ShippingAddress == nil {
		return nil, apperr.Wrap(apperr.KindBadRequest, ErrAddressRequired, "shipping address is required")
	}

	err = o.store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		order, err = o.commitCart(ctx, tx, cartID, req, userID)
		return err
	})
	if err != nil {
		o.logger.Info("checkout rejected", zap.String("cart_id", cartID), zap.Error(err))
		return nil, err
	}

	o.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("total", order.TotalAmount.StringFixed(2)),
		zap.Int("items", len(order.Items)))
	o.publish(ctx, []pending{{
		topic:     orders.TopicOrderCreated,
		eventType: orders.EventOrderCreated,
		orderID:   order.ID,
		payload: orders.OrderCreatedPayload{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			Items:       orders.ItemsOf(order.Items),
			Total:       order.TotalAmount.StringFixed(2),
			Currency:    order.Currency,
			CouponCode:  order.CouponCode,
		},
	}})
	return order, nil
}

// commitCart is one attempt of the checkout transaction. Every id and
// timestamp is created here so a retried attempt starts clean.
func (o *Orchestrator) commitCart(ctx context.Context, tx orders.Tx, cartID string, req OrderRequest, userID *string) (*orders.Order, error) {
	now := o.now()

	cart, err := tx.CartForUpdate(ctx, cartID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return nil, apperr.NotFound("cart %s not found", cartID)
		}
		return nil, err
	}
	if !cart.IsActive {
		return nil, apperr.Wrap(apperr.KindBadRequest, ErrCartInactive, "cart %s is no longer active", cartID)
	}
	if cart.UserID != nil && (userID == nil || *cart.UserID != *userID) {
		return nil, apperr.Wrap(apperr.KindForbidden, ErrNotOwner, "cart %s belongs to another customer", cartID)
	}
	if len(cart.Items) == 0 {
		return nil, apperr.Wrap(apperr.KindBadRequest, ErrEmptyCart, "cart is empty")
	}

	lines, err := o.resolveLines(ctx, tx, cart.Items)
	if err != nil {
		return nil, err
	}
	if err := checkStock(ctx, tx, lines); err != nil {
		o.metrics.StockRejected()
		return nil, err
	}

	shipID, billID, err := o.materializeAddresses(ctx, tx, req, userID, now)
	if err != nil {
		return nil, err
	}

	order := &orders.Order{
		ID:                uuid.NewString(),
		UserID:            userID,
		Status:            orders.StatusPending,
		PaymentStatus:     orders.PaymentPending,
		ShippingAmount:    orders.RoundMoney(o.pricing.ShippingFlatRate),
		DiscountAmount:    decimal.Zero,
		Currency:          o.pricing.Currency,
		CustomerEmail:     strings.TrimSpace(req.CustomerEmail),
		CustomerName:      req.CustomerName,
		CustomerPhone:     req.CustomerPhone,
		ShippingAddressID: shipID,
		BillingAddressID:  billID,
		CartID:            &cart.ID,
		Notes:             req.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	items := make([]orders.OrderItem, len(lines))
	couponLines := make([]coupons.LineItem, len(lines))
	subtotal := decimal.Zero
	for i, l := range lines {
		sub := orders.LineTotal(l.price, l.item.Quantity)
		subtotal = subtotal.Add(sub)
		items[i] = orders.OrderItem{
			ID:          uuid.NewString(),
			OrderID:     order.ID,
			ProductID:   l.product.ID,
			VariantID:   l.item.VariantID,
			ProductName: l.product.Name,
			ProductSKU:  l.product.SKU,
			Quantity:    l.item.Quantity,
			UnitPrice:   l.price,
			Subtotal:    sub,
			Options:     l.item.Metadata,
			CreatedAt:   now,
		}
		if l.variant != nil {
			name := l.variant.Name
			items[i].VariantName = &name
			if l.variant.SKU != "" {
				items[i].ProductSKU = l.variant.SKU
			}
		}
		couponLines[i] = coupons.LineItem{
			ProductID:  l.product.ID,
			CategoryID: l.product.CategoryID,
			Quantity:   l.item.Quantity,
			UnitPrice:  l.price,
		}
	}
	order.Subtotal = subtotal
	order.TaxAmount = orders.RoundMoney(subtotal.Mul(o.pricing.TaxRate))
	allocateTax(items, order.TaxAmount)

	if code, ok := cart.CouponCode(); ok {
		c, discount, err := o.coupons.Apply(ctx, tx, code, order.ID, userID, subtotal, couponLines)
		if err != nil {
			return nil, err
		}
		order.CouponCode = &c.Code
		order.DiscountAmount = discount
		if c.DiscountType == orders.DiscountFreeShipping {
			order.ShippingAmount = decimal.Zero
		}
		allocateDiscount(items, discount)
	}
	for i := range items {
		it := &items[i]
		it.TotalAmount = it.Subtotal.Add(it.TaxAmount).Sub(it.DiscountAmount)
	}
	order.TotalAmount = order.Subtotal.Add(order.ShippingAmount).Add(order.TaxAmount).Sub(order.DiscountAmount)

	last, err := tx.MaxOrderNumberWithPrefix(ctx, orders.OrderNumberPrefix(now)+"-")
	if err != nil {
		return nil, err
	}
	if order.OrderNumber, err = orders.NextOrderNumber(now, last); err != nil {
		return nil, err
	}
	if userID == nil {
		token, err := o.newToken()
		if err != nil {
			return nil, err
		}
		order.GuestToken = &token
	}

	if err := tx.InsertOrder(ctx, order); err != nil {
		return nil, err
	}
	for i := range items {
		if err := tx.InsertOrderItem(ctx, &items[i]); err != nil {
			return nil, err
		}
	}
	ref := inventory.OrderRef(order.ID)
	for _, l := range lines {
		if _, err := o.inventory.DebitForSaleTx(ctx, tx, l.inv.ID, l.item.Quantity, ref); err != nil {
			return nil, err
		}
	}
	if err := tx.DeactivateCart(ctx, cart.ID); err != nil {
		return nil, fmt.Errorf("deactivate cart: %w", err)
	}

	order.Items = items
	return order, nil
}

func (o *Orchestrator) resolveLines(ctx context.Context, tx orders.Tx, cartItems []orders.CartItem) ([]line, error) {
	lines := make([]line, 0, len(cartItems))
	for _, it := range cartItems {
		if it.Quantity <= 0 {
			return nil, apperr.Wrap(apperr.KindBadRequest, inventory.ErrInvalidQuantity,
				"cart item %s has quantity %d", it.ID, it.Quantity)
		}
		p, err := tx.Product(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, orders.ErrNotFound) {
				return nil, apperr.NotFound("product %s not found", it.ProductID)
			}
			return nil, err
		}
		l := line{item: it, product: p, price: p.Price}
		if it.VariantID != nil {
			v, err := tx.Variant(ctx, *it.VariantID)
			if err != nil {
				if errors.Is(err, orders.ErrNotFound) {
					return nil, apperr.NotFound("variant %s not found", *it.VariantID)
				}
				return nil, err
			}
			l.variant = v
			if v.Price.Valid {
				l.price = v.Price.Decimal
			}
		}
		if it.UnitPrice.Valid {
			l.price = it.UnitPrice.Decimal
		}
		l.price = orders.RoundMoney(l.price)

		rec, err := tx.InventoryByProduct(ctx, it.ProductID, it.VariantID)
		if err != nil {
			if errors.Is(err, orders.ErrNotFound) {
				return nil, apperr.Wrap(apperr.KindNotFound, inventory.ErrInventoryNotFound,
					"no inventory record for %s", labelOf(p, l.variant))
			}
			return nil, err
		}
		l.inv = rec
		lines = append(lines, l)
	}
	return lines, nil
}

// checkStock locks every touched inventory row in ascending id order and
// verifies on-hand stock covers the summed cart quantity for that row.
func checkStock(ctx context.Context, tx orders.InventoryRepo, lines []line) error {
	want := map[string]int{}
	firstLine := map[string]int{}
	for i, l := range lines {
		if _, ok := firstLine[l.inv.ID]; !ok {
			firstLine[l.inv.ID] = i
		}
		want[l.inv.ID] += l.item.Quantity
	}
	ids := make([]string, 0, len(want))
	for id := range want {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		rec, err := tx.InventoryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if rec.Quantity < want[id] {
			l := lines[firstLine[id]]
			return apperr.Wrap(apperr.KindBadRequest, inventory.ErrInsufficientStock,
				"insufficient stock for %s: requested %d, available %d",
				labelOf(l.product, l.variant), want[id], rec.Quantity)
		}
	}
	return nil
}

func labelOf(p *orders.Product, v *orders.Variant) string {
	if v != nil {
		return fmt.Sprintf("%s (%s)", p.Name, v.Name)
	}
	return p.Name
}

func (o *Orchestrator) materializeAddresses(ctx context.Context, tx orders.Tx, req OrderRequest, userID *string, now time.Time) (ship, bill *string, err error) {
	ship, err = o.address(ctx, tx, req.ShippingAddressID, req.ShippingAddress, userID, now)
	if err != nil {
		return nil, nil, err
	}
	if req.BillingSameAsShipping || (req.BillingAddressID == nil && req.BillingAddress == nil) {
		return ship, ship, nil
	}
	bill, err = o.address(ctx, tx, req.BillingAddressID, req.BillingAddress, userID, now)
	if err != nil {
		return nil, nil, err
	}
	return ship, bill, nil
}

// address returns the id of a saved address the caller may use, or stores
// the inline one.
func (o *Orchestrator) address(ctx context.Context, tx orders.Tx, id *string, in *AddressInput, userID *string, now time.Time) (*string, error) {
	if id != nil {
		a, err := tx.Address(ctx, *id)
		if err != nil {
			if errors.Is(err, orders.ErrNotFound) {
				return nil, apperr.NotFound("address %s not found", *id)
			}
			return nil, err
		}
		if a.UserID != nil && (userID == nil || *a.UserID != *userID) {
			return nil, apperr.Wrap(apperr.KindForbidden, ErrNotOwner, "address %s belongs to another customer", *id)
		}
		return &a.ID, nil
	}
	if in == nil {
		return nil, apperr.Wrap(apperr.KindBadRequest, ErrAddressRequired, "shipping address is required")
	}
	if in.Line1 == "" || in.City == "" || in.Country == "" {
		return nil, apperr.BadRequest("address needs at least line1, city and country")
	}
	a := &orders.Address{
		ID:         uuid.NewString(),
		UserID:     userID,
		FullName:   in.FullName,
		Line1:      in.Line1,
		Line2:      in.Line2,
		City:       in.City,
		Region:     in.Region,
		PostalCode: in.PostalCode,
		Country:    in.Country,
		Phone:      in.Phone,
		CreatedAt:  now,
	}
	if err := tx.InsertAddress(ctx, a); err != nil {
		return nil, err
	}
	return &a.ID, nil
}

// allocateDiscount spreads discount over the lines in proportion to their
// subtotals. The last line takes the rounding remainder.
func allocateDiscount(items []orders.OrderItem, discount decimal.Decimal) {
	for i, share := range prorate(items, discount) {
		items[i].DiscountAmount = share
	}
}

// allocateTax splits the order tax the same way, so line taxes always sum
// to the order's.
func allocateTax(items []orders.OrderItem, tax decimal.Decimal) {
	for i, share := range prorate(items, tax) {
		items[i].TaxAmount = share
	}
}

func prorate(items []orders.OrderItem, amount decimal.Decimal) []decimal.Decimal {
	if len(items) == 0 || !amount.IsPositive() {
		return nil
	}
	out := make([]decimal.Decimal, len(items))
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal)
	}
	if !total.IsPositive() {
		out[len(out)-1] = amount
		return out
	}
	left := amount
	for i := range items[:len(items)-1] {
		share := orders.RoundMoney(amount.Mul(items[i].Subtotal).Div(total))
		if share.GreaterThan(left) {
			share = left
		}
		out[i] = share
		left = left.Sub(share)
	}
	out[len(out)-1] = left
	return out
}
