package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

const couponCols = `id, code, description, discount_type, discount_value, buy_quantity, get_quantity,
	usage_limit, usage_limit_per_user, current_usage_count, starts_at, expires_at,
	minimum_order_amount, minimum_quantity, applies_to_all_products, product_ids, category_ids,
	excluded_product_ids, excluded_category_ids, applies_to_all_customers, customer_ids,
	is_first_order_only, is_one_time_use, is_active, created_at, updated_at`

func scanCoupon(row interface{ Scan(...any) error }) (*orders.Coupon, error) {
	var (
		c                                      orders.Coupon
		buy, get, limit, perUser, minQty       sql.NullInt64
		startsAt, expiresAt                    sql.NullString
		products, cats, exProducts, exCats, cs string
		createdAt, updatedAt                   string
	)
	err := row.Scan(&c.ID, &c.Code, &c.Description, &c.DiscountType, &c.DiscountValue, &buy, &get,
		&limit, &perUser, &c.CurrentUsageCount, &startsAt, &expiresAt,
		&c.MinimumOrderAmount, &minQty, &c.AppliesToAllProducts, &products, &cats,
		&exProducts, &exCats, &c.AppliesToAllCustomers, &cs,
		&c.IsFirstOrderOnly, &c.IsOneTimeUse, &c.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	c.BuyQuantity, c.GetQuantity = intPtr(buy), intPtr(get)
	c.UsageLimit, c.UsageLimitPerUser, c.MinimumQuantity = intPtr(limit), intPtr(perUser), intPtr(minQty)
	if c.StartsAt, err = parseNullTime(startsAt); err != nil {
		return nil, err
	}
	if c.ExpiresAt, err = parseNullTime(expiresAt); err != nil {
		return nil, err
	}
	for _, l := range []struct {
		dst *[]string
		src string
	}{{&c.ProductIDs, products}, {&c.CategoryIDs, cats}, {&c.ExcludedProductIDs, exProducts},
		{&c.ExcludedCategoryIDs, exCats}, {&c.CustomerIDs, cs}} {
		if *l.dst, err = fromIDList(l.src); err != nil {
			return nil, err
		}
	}
	if c.CreatedAt, err = parseRFC3339(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseRFC3339(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (t *tx) CouponByCode(ctx context.Context, code string) (*orders.Coupon, error) {
	c, err := scanCoupon(t.tx.QueryRowContext(ctx,
		`SELECT `+couponCols+` FROM coupons WHERE code = ?`, code))
	if err != nil {
		return nil, notFound(err, "coupon "+code)
	}
	return c, nil
}

func (t *tx) CouponByCodeForUpdate(ctx context.Context, code string) (*orders.Coupon, error) {
	return t.CouponByCode(ctx, code)
}

func (t *tx) CreateCoupon(ctx context.Context, c *orders.Coupon) error {
	lists := make([]string, 0, 5)
	for _, ids := range [][]string{c.ProductIDs, c.CategoryIDs, c.ExcludedProductIDs, c.ExcludedCategoryIDs, c.CustomerIDs} {
		s, err := idList(ids)
		if err != nil {
			return err
		}
		lists = append(lists, s)
	}
	_, err := t.exec(ctx, "create coupon", `
		INSERT INTO coupons (`+couponCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Code, c.Description, string(c.DiscountType), c.DiscountValue, num(c.BuyQuantity), num(c.GetQuantity),
		num(c.UsageLimit), num(c.UsageLimitPerUser), c.CurrentUsageCount, tsPtr(c.StartsAt), tsPtr(c.ExpiresAt),
		c.MinimumOrderAmount, num(c.MinimumQuantity), c.AppliesToAllProducts, lists[0], lists[1],
		lists[2], lists[3], c.AppliesToAllCustomers, lists[4],
		c.IsFirstOrderOnly, c.IsOneTimeUse, c.IsActive, ts(c.CreatedAt), ts(c.UpdatedAt))
	return err
}

func (t *tx) UpdateCouponUsageCount(ctx context.Context, couponID string, count int) error {
	return t.execOne(ctx, "update coupon usage",
		`UPDATE coupons SET current_usage_count = ? WHERE id = ?`, count, couponID)
}

func (t *tx) InsertCouponUsage(ctx context.Context, u *orders.CouponUsage) error {
	_, err := t.exec(ctx, "insert coupon usage", `
		INSERT INTO coupon_usages (id, coupon_id, order_id, user_id, discount_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.CouponID, u.OrderID, str(u.UserID), u.DiscountAmount, ts(u.CreatedAt))
	return err
}

func (t *tx) CountCouponUsageByUser(ctx context.Context, couponID, userID string) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = ? AND user_id = ?`, couponID, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count coupon usage: %w", err)
	}
	return n, nil
}
