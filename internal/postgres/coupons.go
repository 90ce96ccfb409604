package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

const couponCols = `id, code, description, discount_type, discount_value::text, buy_quantity, get_quantity,
	usage_limit, usage_limit_per_user, current_usage_count, starts_at, expires_at,
	minimum_order_amount::text, minimum_quantity, applies_to_all_products, product_ids, category_ids,
	excluded_product_ids, excluded_category_ids, applies_to_all_customers, customer_ids,
	is_first_order_only, is_one_time_use, is_active, created_at, updated_at`

func scanCoupon(row pgx.Row) (*orders.Coupon, error) {
	var (
		c        orders.Coupon
		a        amounts
		minOrder *string
	)
	err := row.Scan(&c.ID, &c.Code, &c.Description, &c.DiscountType, a.col(&c.DiscountValue), &c.BuyQuantity, &c.GetQuantity,
		&c.UsageLimit, &c.UsageLimitPerUser, &c.CurrentUsageCount, &c.StartsAt, &c.ExpiresAt,
		&minOrder, &c.MinimumQuantity, &c.AppliesToAllProducts, &c.ProductIDs, &c.CategoryIDs,
		&c.ExcludedProductIDs, &c.ExcludedCategoryIDs, &c.AppliesToAllCustomers, &c.CustomerIDs,
		&c.IsFirstOrderOnly, &c.IsOneTimeUse, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := a.parse(); err != nil {
		return nil, err
	}
	if c.MinimumOrderAmount, err = parseNullMoney(minOrder); err != nil {
		return nil, err
	}
	c.ProductIDs, c.CategoryIDs = emptyNil(c.ProductIDs), emptyNil(c.CategoryIDs)
	c.ExcludedProductIDs, c.ExcludedCategoryIDs = emptyNil(c.ExcludedProductIDs), emptyNil(c.ExcludedCategoryIDs)
	c.CustomerIDs = emptyNil(c.CustomerIDs)
	return &c, nil
}

func (t *tx) CouponByCode(ctx context.Context, code string) (*orders.Coupon, error) {
	c, err := scanCoupon(t.tx.QueryRow(ctx, `SELECT `+couponCols+` FROM coupons WHERE code = $1`, code))
	if err != nil {
		return nil, notFound(err, "coupon "+code)
	}
	return c, nil
}

// CouponByCodeForUpdate serializes concurrent applications of one code.
func (t *tx) CouponByCodeForUpdate(ctx context.Context, code string) (*orders.Coupon, error) {
	c, err := scanCoupon(t.tx.QueryRow(ctx, `SELECT `+couponCols+` FROM coupons WHERE code = $1 FOR UPDATE`, code))
	if err != nil {
		return nil, notFound(err, "coupon "+code)
	}
	return c, nil
}

func (t *tx) CreateCoupon(ctx context.Context, c *orders.Coupon) error {
	return t.exec(ctx, "create coupon", `
		INSERT INTO coupons (id, code, description, discount_type, discount_value, buy_quantity, get_quantity,
			usage_limit, usage_limit_per_user, current_usage_count, starts_at, expires_at,
			minimum_order_amount, minimum_quantity, applies_to_all_products, product_ids, category_ids,
			excluded_product_ids, excluded_category_ids, applies_to_all_customers, customer_ids,
			is_first_order_only, is_one_time_use, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26)`,
		c.ID, c.Code, c.Description, string(c.DiscountType), money(c.DiscountValue), c.BuyQuantity, c.GetQuantity,
		c.UsageLimit, c.UsageLimitPerUser, c.CurrentUsageCount, c.StartsAt, c.ExpiresAt,
		nullMoney(c.MinimumOrderAmount), c.MinimumQuantity, c.AppliesToAllProducts, ids(c.ProductIDs), ids(c.CategoryIDs),
		ids(c.ExcludedProductIDs), ids(c.ExcludedCategoryIDs), c.AppliesToAllCustomers, ids(c.CustomerIDs),
		c.IsFirstOrderOnly, c.IsOneTimeUse, c.IsActive, c.CreatedAt, c.UpdatedAt)
}

func (t *tx) UpdateCouponUsageCount(ctx context.Context, couponID string, count int) error {
	return t.execOne(ctx, "update coupon usage",
		`UPDATE coupons SET current_usage_count = $2, updated_at = now() WHERE id = $1`, couponID, count)
}

func (t *tx) InsertCouponUsage(ctx context.Context, u *orders.CouponUsage) error {
	return t.exec(ctx, "insert coupon usage", `
		INSERT INTO coupon_usages (id, coupon_id, order_id, user_id, discount_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.CouponID, u.OrderID, u.UserID, money(u.DiscountAmount), u.CreatedAt)
}

func (t *tx) CountCouponUsageByUser(ctx context.Context, couponID, userID string) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2`, couponID, userID).Scan(&n)
	return n, mapErr(err, "count coupon usage")
}
