package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

const orderCols = `id, order_number, user_id, status, payment_status, subtotal::text, shipping_amount::text,
	tax_amount::text, discount_amount::text, total_amount::text, currency, customer_email, customer_name,
	customer_phone, shipping_address_id, billing_address_id, coupon_code, guest_token, cart_id,
	notes, completed_at, cancelled_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*orders.Order, error) {
	var (
		o orders.Order
		a amounts
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.PaymentStatus,
		a.col(&o.Subtotal), a.col(&o.ShippingAmount), a.col(&o.TaxAmount), a.col(&o.DiscountAmount), a.col(&o.TotalAmount),
		&o.Currency, &o.CustomerEmail, &o.CustomerName, &o.CustomerPhone, &o.ShippingAddressID, &o.BillingAddressID,
		&o.CouponCode, &o.GuestToken, &o.CartID, &o.Notes, &o.CompletedAt, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := a.parse(); err != nil {
		return nil, err
	}
	return &o, nil
}

func (t *tx) OrderByID(ctx context.Context, id string) (*orders.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "order "+id)
	}
	return o, nil
}

func (t *tx) OrderForUpdate(ctx context.Context, id string) (*orders.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "order "+id)
	}
	return o, nil
}

func (t *tx) OrderByGuestToken(ctx context.Context, token string) (*orders.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE guest_token = $1`, token))
	if err != nil {
		return nil, notFound(err, "order by guest token")
	}
	return o, nil
}

func (t *tx) InsertOrder(ctx context.Context, o *orders.Order) error {
	return t.exec(ctx, "insert order", `
		INSERT INTO orders (id, order_number, user_id, status, payment_status, subtotal, shipping_amount,
			tax_amount, discount_amount, total_amount, currency, customer_email, customer_name,
			customer_phone, shipping_address_id, billing_address_id, coupon_code, guest_token, cart_id,
			notes, completed_at, cancelled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24)`,
		o.ID, o.OrderNumber, o.UserID, string(o.Status), string(o.PaymentStatus), money(o.Subtotal), money(o.ShippingAmount),
		money(o.TaxAmount), money(o.DiscountAmount), money(o.TotalAmount), o.Currency, o.CustomerEmail, o.CustomerName,
		o.CustomerPhone, o.ShippingAddressID, o.BillingAddressID, o.CouponCode, o.GuestToken, o.CartID,
		o.Notes, o.CompletedAt, o.CancelledAt, o.CreatedAt, o.UpdatedAt)
}

func (t *tx) UpdateOrderStatus(ctx context.Context, o *orders.Order) error {
	return t.execOne(ctx, "update order status", `
		UPDATE orders
		SET status = $2, payment_status = $3, completed_at = $4, cancelled_at = $5, updated_at = $6
		WHERE id = $1`,
		o.ID, string(o.Status), string(o.PaymentStatus), o.CompletedAt, o.CancelledAt, o.UpdatedAt)
}

func (t *tx) InsertOrderItem(ctx context.Context, it *orders.OrderItem) error {
	return t.exec(ctx, "insert order item", `
		INSERT INTO order_items
			(id, order_id, product_id, variant_id, product_name, product_sku, variant_name, quantity,
			 unit_price, subtotal, tax_amount, discount_amount, total_amount, options, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		it.ID, it.OrderID, it.ProductID, it.VariantID, it.ProductName, it.ProductSKU, it.VariantName, it.Quantity,
		money(it.UnitPrice), money(it.Subtotal), money(it.TaxAmount), money(it.DiscountAmount), money(it.TotalAmount),
		meta(it.Options), it.CreatedAt)
}

func (t *tx) ListOrderItems(ctx context.Context, orderID string) ([]orders.OrderItem, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, order_id, product_id, variant_id, product_name, product_sku, variant_name, quantity,
		       unit_price::text, subtotal::text, tax_amount::text, discount_amount::text, total_amount::text,
		       options, created_at
		FROM order_items WHERE order_id = $1 ORDER BY position`, orderID)
	if err != nil {
		return nil, mapErr(err, "list order items")
	}
	defer rows.Close()

	var out []orders.OrderItem
	for rows.Next() {
		var (
			it orders.OrderItem
			a  amounts
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.ProductName, &it.ProductSKU,
			&it.VariantName, &it.Quantity, a.col(&it.UnitPrice), a.col(&it.Subtotal), a.col(&it.TaxAmount),
			a.col(&it.DiscountAmount), a.col(&it.TotalAmount), &it.Options, &it.CreatedAt); err != nil {
			return nil, mapErr(err, "scan order item")
		}
		if err := a.parse(); err != nil {
			return nil, err
		}
		it.Options = metaOut(it.Options)
		out = append(out, it)
	}
	return out, rows.Err()
}

func (t *tx) CountOrdersByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&n)
	return n, mapErr(err, "count orders")
}

// MaxOrderNumberWithPrefix orders by length first so -10000 sorts after -9999.
func (t *tx) MaxOrderNumberWithPrefix(ctx context.Context, prefix string) (string, error) {
	var n string
	err := t.tx.QueryRow(ctx, `
		SELECT order_number FROM orders
		WHERE left(order_number, length($1)) = $1
		ORDER BY length(order_number) DESC, order_number DESC
		LIMIT 1`, prefix).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return n, mapErr(err, "max order number")
}

func (t *tx) InsertPayment(ctx context.Context, p *orders.Payment) error {
	return t.exec(ctx, "insert payment", `
		INSERT INTO payments (id, order_id, provider, amount, currency, status, transaction_id, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.OrderID, string(p.Provider), money(p.Amount), p.Currency, string(p.Status), p.TransactionID,
		meta(p.Data), p.CreatedAt)
}

func (t *tx) ListPayments(ctx context.Context, orderID string) ([]orders.Payment, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, order_id, provider, amount::text, currency, status, transaction_id, data, created_at
		FROM payments WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, mapErr(err, "list payments")
	}
	defer rows.Close()

	var out []orders.Payment
	for rows.Next() {
		var (
			p orders.Payment
			a amounts
		)
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Provider, a.col(&p.Amount), &p.Currency, &p.Status,
			&p.TransactionID, &p.Data, &p.CreatedAt); err != nil {
			return nil, mapErr(err, "scan payment")
		}
		if err := a.parse(); err != nil {
			return nil, err
		}
		p.Data = metaOut(p.Data)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *tx) Address(ctx context.Context, id string) (*orders.Address, error) {
	var a orders.Address
	err := t.tx.QueryRow(ctx, `
		SELECT id, user_id, full_name, line1, line2, city, region, postal_code, country, phone, created_at
		FROM addresses WHERE id = $1`, id).
		Scan(&a.ID, &a.UserID, &a.FullName, &a.Line1, &a.Line2, &a.City, &a.Region, &a.PostalCode, &a.Country, &a.Phone, &a.CreatedAt)
	if err != nil {
		return nil, notFound(err, "address "+id)
	}
	return &a, nil
}

func (t *tx) InsertAddress(ctx context.Context, a *orders.Address) error {
	return t.exec(ctx, "insert address", `
		INSERT INTO addresses (id, user_id, full_name, line1, line2, city, region, postal_code, country, phone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.UserID, a.FullName, a.Line1, a.Line2, a.City, a.Region, a.PostalCode, a.Country, a.Phone, a.CreatedAt)
}
