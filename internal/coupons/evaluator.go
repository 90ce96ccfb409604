package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/apperr"
	"github.com/ariefcatur/go-order-fulfillment/internal/catalog"
	"github.com/ariefcatur/go-order-fulfillment/internal/metrics"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

// Each failed check has its own error so checkout can tell the customer
// exactly what is wrong with the code.
var (
	ErrCouponNotFound       = errors.New("coupon not found")
	ErrInactive             = errors.New("coupon inactive")
	ErrNotStarted           = errors.New("coupon not started")
	ErrExpired              = errors.New("coupon expired")
	ErrUsageLimitReached    = errors.New("coupon usage limit reached")
	ErrCustomerNotEligible  = errors.New("customer not eligible")
	ErrPerUserLimitReached  = errors.New("per-user usage limit reached")
	ErrFirstOrderOnly       = errors.New("first order only")
	ErrBelowMinimumAmount   = errors.New("below minimum order amount")
	ErrBelowMinimumQuantity = errors.New("below minimum quantity")
	ErrNotApplicable        = errors.New("coupon not applicable")
	ErrInvalidCoupon        = errors.New("invalid coupon definition")
)

type LineItem struct {
	ProductID  string
	CategoryID *string
	Quantity   int
	UnitPrice  decimal.Decimal
}

// Input is the order context a coupon is checked against. Nil OrderTotal
// or Items skip the checks that need them.
type Input struct {
	UserID     *string
	OrderTotal *decimal.Decimal
	Items      []LineItem
}

type Evaluator struct {
	store   orders.Store
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewEvaluator(store orders.Store, logger *zap.Logger, m *metrics.Metrics) *Evaluator {
	return &Evaluator{
		store:   store,
		logger:  logger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Create stores a new coupon after normalizing its code.
func (e *Evaluator) Create(ctx context.Context, c orders.Coupon) (*orders.Coupon, error) {
	c.Code = NormalizeCode(c.Code)
	if err := CheckDefinition(&c); err != nil {
		return nil, err
	}
	now := e.now()
	c.ID = uuid.NewString()
	c.CurrentUsageCount = 0
	c.CreatedAt, c.UpdatedAt = now, now
	err := e.store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return tx.CreateCoupon(ctx, &c)
	})
	if errors.Is(err, orders.ErrDuplicate) {
		return nil, apperr.BadRequest("coupon code %s already exists", c.Code)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CheckDefinition rejects coupons that could never be evaluated.
func CheckDefinition(c *orders.Coupon) error {
	bad := func(format string, args ...any) error {
		return apperr.Wrap(apperr.KindBadRequest, ErrInvalidCoupon, format, args...)
	}
	switch {
	case c.Code == "":
		return bad("coupon code is required")
	case !c.DiscountType.Valid():
		return bad("unknown discount type %q", c.DiscountType)
	case c.DiscountValue.IsNegative():
		return bad("discount value must not be negative")
	case c.DiscountType == orders.DiscountPercentage && c.DiscountValue.GreaterThan(decimal.NewFromInt(100)):
		return bad("percentage discount cannot exceed 100")
	case c.UsageLimit != nil && *c.UsageLimit < 0:
		return bad("usage limit must not be negative")
	case c.StartsAt != nil && c.ExpiresAt != nil && !c.ExpiresAt.After(*c.StartsAt):
		return bad("expiry must be after start")
	}
	if c.DiscountType == orders.DiscountBuyXGetY {
		if c.BuyQuantity == nil || c.GetQuantity == nil || *c.BuyQuantity <= 0 || *c.GetQuantity <= 0 {
			return bad("buy_x_get_y coupons need positive buy and get quantities")
		}
	}
	return nil
}

// Check validates a code and prices the discount without recording usage.
// Without an OrderTotal the total is taken from the items, if any.
func (e *Evaluator) Check(ctx context.Context, code string, in Input) (*orders.Coupon, decimal.Decimal, error) {
	var (
		c        *orders.Coupon
		discount decimal.Decimal
	)
	if in.OrderTotal == nil && len(in.Items) > 0 {
		t := ItemsTotal(in.Items)
		in.OrderTotal = &t
	}
	err := e.store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		c, err = e.Validate(ctx, tx, code, in)
		if err != nil {
			return err
		}
		total := decimal.Zero
		if in.OrderTotal != nil {
			total = *in.OrderTotal
		}
		discount = CalculateDiscount(c, total, in.Items)
		return nil
	})
	if err != nil {
		return nil, decimal.Zero, err
	}
	return c, discount, nil
}

// Validate loads the coupon and runs every eligibility check in order,
// stopping at the first failure.
func (e *Evaluator) Validate(ctx context.Context, tx orders.Tx, code string, in Input) (*orders.Coupon, error) {
	c, err := tx.CouponByCode(ctx, NormalizeCode(code))
	if err != nil {
		return nil, e.lookupErr(err, code)
	}
	if err := e.check(ctx, tx, c, in); err != nil {
		return nil, err
	}
	return c, nil
}

// Apply validates under a row lock, prices the discount, bumps the usage
// counter and logs the usage, all inside the caller's transaction.
func (e *Evaluator) Apply(ctx context.Context, tx orders.Tx, code, orderID string, userID *string, orderTotal decimal.Decimal, items []LineItem) (*orders.Coupon, decimal.Decimal, error) {
	c, err := tx.CouponByCodeForUpdate(ctx, NormalizeCode(code))
	if err != nil {
		return nil, decimal.Zero, e.lookupErr(err, code)
	}
	if err := e.check(ctx, tx, c, Input{UserID: userID, OrderTotal: &orderTotal, Items: items}); err != nil {
		return nil, decimal.Zero, err
	}

	discount := CalculateDiscount(c, orderTotal, items)
	c.CurrentUsageCount++
	if err := tx.UpdateCouponUsageCount(ctx, c.ID, c.CurrentUsageCount); err != nil {
		return nil, decimal.Zero, fmt.Errorf("bump coupon usage: %w", err)
	}
	usage := &orders.CouponUsage{
		ID:             uuid.NewString(),
		CouponID:       c.ID,
		OrderID:        orderID,
		UserID:         userID,
		DiscountAmount: discount,
		CreatedAt:      e.now(),
	}
	if err := tx.InsertCouponUsage(ctx, usage); err != nil {
		return nil, decimal.Zero, fmt.Errorf("insert coupon usage: %w", err)
	}
	e.metrics.Coupon("applied")
	e.logger.Info("coupon applied",
		zap.String("code", c.Code),
		zap.String("order_id", orderID),
		zap.String("discount", discount.StringFixed(2)),
		zap.Int("usage_count", c.CurrentUsageCount))
	return c, discount, nil
}

func (e *Evaluator) lookupErr(err error, code string) error {
	if errors.Is(err, orders.ErrNotFound) {
		e.metrics.Coupon("not_found")
		return apperr.Wrap(apperr.KindNotFound, ErrCouponNotFound, "Coupon %s not found", NormalizeCode(code))
	}
	return err
}

func (e *Evaluator) check(ctx context.Context, tx orders.Tx, c *orders.Coupon, in Input) error {
	err := e.runChecks(ctx, tx, c, in)
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) && ae.Err != nil {
			e.metrics.Coupon(strings.ReplaceAll(ae.Err.Error(), " ", "_"))
		}
	}
	return err
}

func (e *Evaluator) runChecks(ctx context.Context, tx orders.Tx, c *orders.Coupon, in Input) error {
	now := e.now()
	reject := func(sentinel error, format string, args ...any) error {
		return apperr.Wrap(apperr.KindBadRequest, sentinel, format, args...)
	}

	if !c.IsActive {
		return reject(ErrInactive, "Coupon is inactive")
	}
	if !IsStarted(c, now) {
		return reject(ErrNotStarted, "Coupon is not yet valid")
	}
	if IsExpired(c, now) {
		return reject(ErrExpired, "Coupon has expired")
	}
	if IsUsageLimitReached(c) {
		return reject(ErrUsageLimitReached, "Coupon usage limit has been reached")
	}

	if in.UserID != nil {
		user := *in.UserID
		if !c.AppliesToAllCustomers && !contains(c.CustomerIDs, user) {
			return reject(ErrCustomerNotEligible, "Coupon is not available for this customer")
		}
		if limit := perUserLimit(c); limit != nil {
			used, err := tx.CountCouponUsageByUser(ctx, c.ID, user)
			if err != nil {
				return fmt.Errorf("count coupon usage: %w", err)
			}
			if used >= *limit {
				return reject(ErrPerUserLimitReached, "You have already used this coupon the maximum number of times")
			}
		}
		if c.IsFirstOrderOnly {
			n, err := tx.CountOrdersByUser(ctx, user)
			if err != nil {
				return fmt.Errorf("count orders: %w", err)
			}
			if n > 0 {
				return reject(ErrFirstOrderOnly, "Coupon is only valid on your first order")
			}
		}
	}

	if c.MinimumOrderAmount.Valid && in.OrderTotal != nil && in.OrderTotal.LessThan(c.MinimumOrderAmount.Decimal) {
		return reject(ErrBelowMinimumAmount, "Minimum order amount of %s required for this coupon",
			c.MinimumOrderAmount.Decimal.StringFixed(2))
	}
	if c.MinimumQuantity != nil && in.Items != nil && totalQuantity(in.Items) < *c.MinimumQuantity {
		return reject(ErrBelowMinimumQuantity, "At least %d items required for this coupon", *c.MinimumQuantity)
	}

	if in.Items != nil && !c.AppliesToAllProducts {
		ok, err := e.inScope(ctx, tx, c, in.Items)
		if err != nil {
			return err
		}
		if !ok {
			return reject(ErrNotApplicable, "Coupon is not applicable to the items in your cart")
		}
	}
	return nil
}

func (e *Evaluator) inScope(ctx context.Context, tx orders.Tx, c *orders.Coupon, items []LineItem) (bool, error) {
	var tree *catalog.Tree
	if len(c.CategoryIDs) > 0 || len(c.ExcludedCategoryIDs) > 0 {
		cats, err := tx.ListCategories(ctx)
		if err != nil {
			return false, fmt.Errorf("load categories: %w", err)
		}
		if tree, err = catalog.Build(cats); err != nil {
			return false, err
		}
	}
	return InScope(c, items, tree), nil
}

// InScope applies the product/category allow and deny lists. An item matches
// a category when its own category or any ancestor is listed.
func InScope(c *orders.Coupon, items []LineItem, tree *catalog.Tree) bool {
	allowProducts, allowCats := set(c.ProductIDs), set(c.CategoryIDs)
	denyProducts, denyCats := set(c.ExcludedProductIDs), set(c.ExcludedCategoryIDs)

	matches := func(it LineItem, products, cats map[string]bool) bool {
		if products[it.ProductID] {
			return true
		}
		return it.CategoryID != nil && tree.InAny(*it.CategoryID, cats)
	}

	if len(allowProducts) > 0 || len(allowCats) > 0 {
		hit := false
		for _, it := range items {
			if matches(it, allowProducts, allowCats) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if len(denyProducts) > 0 || len(denyCats) > 0 {
		for _, it := range items {
			if !matches(it, denyProducts, denyCats) {
				return true
			}
		}
		return len(items) == 0
	}
	return true
}

// CalculateDiscount prices a coupon against an order total, rounded to
// cents and never more than the total.
func CalculateDiscount(c *orders.Coupon, orderTotal decimal.Decimal, items []LineItem) decimal.Decimal {
	if !orderTotal.IsPositive() {
		return decimal.Zero
	}
	var d decimal.Decimal
	switch c.DiscountType {
	case orders.DiscountPercentage:
		d = orderTotal.Mul(c.DiscountValue).Div(decimal.NewFromInt(100))
	case orders.DiscountFixedAmount:
		d = decimal.Min(orderTotal, c.DiscountValue)
	case orders.DiscountFreeShipping:
		// waived on the shipping line by the caller
		return decimal.Zero
	case orders.DiscountBuyXGetY:
		d = buyXGetY(c, items)
	default:
		return decimal.Zero
	}
	d = orders.RoundMoney(d)
	if d.GreaterThan(orderTotal) {
		return orderTotal
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// buyXGetY approximates the free units at the cart's average unit price
// rather than pricing specific SKUs.
func buyXGetY(c *orders.Coupon, items []LineItem) decimal.Decimal {
	if c.BuyQuantity == nil || c.GetQuantity == nil {
		return decimal.Zero
	}
	qty := totalQuantity(items)
	group := *c.BuyQuantity + *c.GetQuantity
	if qty <= 0 || group <= 0 {
		return decimal.Zero
	}
	sets := qty / group
	if sets <= 0 {
		return decimal.Zero
	}
	avg := ItemsTotal(items).Div(decimal.NewFromInt(int64(qty)))
	return avg.Mul(decimal.NewFromInt(int64(sets * *c.GetQuantity)))
}

func IsStarted(c *orders.Coupon, now time.Time) bool {
	return c.StartsAt == nil || !c.StartsAt.UTC().After(now.UTC())
}

func IsExpired(c *orders.Coupon, now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.UTC().After(now.UTC())
}

func IsValid(c *orders.Coupon, now time.Time) bool {
	return c.IsActive && IsStarted(c, now) && !IsExpired(c, now)
}

func IsUsageLimitReached(c *orders.Coupon) bool {
	return c.UsageLimit != nil && c.CurrentUsageCount >= *c.UsageLimit
}

// perUserLimit folds is_one_time_use into the per-user limit.
func perUserLimit(c *orders.Coupon) *int {
	if c.IsOneTimeUse {
		one := 1
		if c.UsageLimitPerUser == nil || *c.UsageLimitPerUser > 1 {
			return &one
		}
	}
	return c.UsageLimitPerUser
}

// ItemsTotal is the sum of unit price times quantity.
func ItemsTotal(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

func totalQuantity(items []LineItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

func set(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
