package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

const orderCols = `id, order_number, user_id, status, payment_status, subtotal, shipping_amount,
	tax_amount, discount_amount, total_amount, currency, customer_email, customer_name,
	customer_phone, shipping_address_id, billing_address_id, coupon_code, guest_token, cart_id,
	notes, completed_at, cancelled_at, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*orders.Order, error) {
	var (
		o                                     orders.Order
		user, ship, bill, coupon, guest, cart sql.NullString
		completed, cancelled                  sql.NullString
		createdAt, updatedAt                  string
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &user, &o.Status, &o.PaymentStatus, &o.Subtotal, &o.ShippingAmount,
		&o.TaxAmount, &o.DiscountAmount, &o.TotalAmount, &o.Currency, &o.CustomerEmail, &o.CustomerName,
		&o.CustomerPhone, &ship, &bill, &coupon, &guest, &cart,
		&o.Notes, &completed, &cancelled, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	o.UserID, o.ShippingAddressID, o.BillingAddressID = strPtr(user), strPtr(ship), strPtr(bill)
	o.CouponCode, o.GuestToken, o.CartID = strPtr(coupon), strPtr(guest), strPtr(cart)
	if o.CompletedAt, err = parseNullTime(completed); err != nil {
		return nil, err
	}
	if o.CancelledAt, err = parseNullTime(cancelled); err != nil {
		return nil, err
	}
	if o.CreatedAt, err = parseRFC3339(createdAt); err != nil {
		return nil, err
	}
	if o.UpdatedAt, err = parseRFC3339(updatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (t *tx) OrderByID(ctx context.Context, id string) (*orders.Order, error) {
	o, err := scanOrder(t.tx.QueryRowContext(ctx, `SELECT `+orderCols+` FROM orders WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "order "+id)
	}
	return o, nil
}

func (t *tx) OrderForUpdate(ctx context.Context, id string) (*orders.Order, error) {
	return t.OrderByID(ctx, id)
}

func (t *tx) OrderByGuestToken(ctx context.Context, token string) (*orders.Order, error) {
	o, err := scanOrder(t.tx.QueryRowContext(ctx, `SELECT `+orderCols+` FROM orders WHERE guest_token = ?`, token))
	if err != nil {
		return nil, notFound(err, "order by guest token")
	}
	return o, nil
}

func (t *tx) InsertOrder(ctx context.Context, o *orders.Order) error {
	_, err := t.exec(ctx, "insert order", `
		INSERT INTO orders (`+orderCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.OrderNumber, str(o.UserID), string(o.Status), string(o.PaymentStatus), o.Subtotal, o.ShippingAmount,
		o.TaxAmount, o.DiscountAmount, o.TotalAmount, o.Currency, o.CustomerEmail, o.CustomerName,
		o.CustomerPhone, str(o.ShippingAddressID), str(o.BillingAddressID), str(o.CouponCode), str(o.GuestToken), str(o.CartID),
		o.Notes, tsPtr(o.CompletedAt), tsPtr(o.CancelledAt), ts(o.CreatedAt), ts(o.UpdatedAt))
	return err
}

func (t *tx) UpdateOrderStatus(ctx context.Context, o *orders.Order) error {
	return t.execOne(ctx, "update order status", `
		UPDATE orders
		SET status = ?, payment_status = ?, completed_at = ?, cancelled_at = ?, updated_at = ?
		WHERE id = ?`,
		string(o.Status), string(o.PaymentStatus), tsPtr(o.CompletedAt), tsPtr(o.CancelledAt), ts(o.UpdatedAt), o.ID)
}

func (t *tx) InsertOrderItem(ctx context.Context, it *orders.OrderItem) error {
	opts, err := metaJSON(it.Options)
	if err != nil {
		return err
	}
	_, err = t.exec(ctx, "insert order item", `
		INSERT INTO order_items
			(id, order_id, product_id, variant_id, product_name, product_sku, variant_name, quantity,
			 unit_price, subtotal, tax_amount, discount_amount, total_amount, options, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.OrderID, it.ProductID, str(it.VariantID), it.ProductName, it.ProductSKU, str(it.VariantName), it.Quantity,
		it.UnitPrice, it.Subtotal, it.TaxAmount, it.DiscountAmount, it.TotalAmount, opts, ts(it.CreatedAt))
	return err
}

func (t *tx) ListOrderItems(ctx context.Context, orderID string) ([]orders.OrderItem, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, order_id, product_id, variant_id, product_name, product_sku, variant_name, quantity,
		       unit_price, subtotal, tax_amount, discount_amount, total_amount, options, created_at
		FROM order_items WHERE order_id = ? ORDER BY rowid`, orderID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list order items: %w", err)
	}
	defer rows.Close()

	var out []orders.OrderItem
	for rows.Next() {
		var (
			it                   orders.OrderItem
			variant, variantName sql.NullString
			opts, createdAt      string
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &variant, &it.ProductName, &it.ProductSKU,
			&variantName, &it.Quantity, &it.UnitPrice, &it.Subtotal, &it.TaxAmount, &it.DiscountAmount,
			&it.TotalAmount, &opts, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan order item: %w", err)
		}
		it.VariantID, it.VariantName = strPtr(variant), strPtr(variantName)
		if it.Options, err = fromMeta(opts); err != nil {
			return nil, err
		}
		if it.CreatedAt, err = parseRFC3339(createdAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (t *tx) CountOrdersByUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count orders: %w", err)
	}
	return n, nil
}

// MaxOrderNumberWithPrefix compares by length first so -10000 sorts after -9999.
func (t *tx) MaxOrderNumberWithPrefix(ctx context.Context, prefix string) (string, error) {
	var n string
	err := t.tx.QueryRowContext(ctx, `
		SELECT order_number FROM orders
		WHERE substr(order_number, 1, ?) = ?
		ORDER BY length(order_number) DESC, order_number DESC
		LIMIT 1`, len(prefix), prefix).Scan(&n)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: max order number: %w", err)
	}
	return n, nil
}

func (t *tx) InsertPayment(ctx context.Context, p *orders.Payment) error {
	data, err := metaJSON(p.Data)
	if err != nil {
		return err
	}
	_, err = t.exec(ctx, "insert payment", `
		INSERT INTO payments (id, order_id, provider, amount, currency, status, transaction_id, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OrderID, string(p.Provider), p.Amount, p.Currency, string(p.Status), str(p.TransactionID), data, ts(p.CreatedAt))
	return err
}

func (t *tx) ListPayments(ctx context.Context, orderID string) ([]orders.Payment, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, order_id, provider, amount, currency, status, transaction_id, data, created_at
		FROM payments WHERE order_id = ? ORDER BY rowid`, orderID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list payments: %w", err)
	}
	defer rows.Close()

	var out []orders.Payment
	for rows.Next() {
		var (
			p               orders.Payment
			txnID           sql.NullString
			data, createdAt string
		)
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Provider, &p.Amount, &p.Currency, &p.Status,
			&txnID, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan payment: %w", err)
		}
		p.TransactionID = strPtr(txnID)
		if p.Data, err = fromMeta(data); err != nil {
			return nil, err
		}
		if p.CreatedAt, err = parseRFC3339(createdAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *tx) Address(ctx context.Context, id string) (*orders.Address, error) {
	var (
		a         orders.Address
		user      sql.NullString
		createdAt string
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, user_id, full_name, line1, line2, city, region, postal_code, country, phone, created_at
		FROM addresses WHERE id = ?`, id).
		Scan(&a.ID, &user, &a.FullName, &a.Line1, &a.Line2, &a.City, &a.Region, &a.PostalCode, &a.Country, &a.Phone, &createdAt)
	if err != nil {
		return nil, notFound(err, "address "+id)
	}
	a.UserID = strPtr(user)
	if a.CreatedAt, err = parseRFC3339(createdAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (t *tx) InsertAddress(ctx context.Context, a *orders.Address) error {
	_, err := t.exec(ctx, "insert address", `
		INSERT INTO addresses (id, user_id, full_name, line1, line2, city, region, postal_code, country, phone, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, str(a.UserID), a.FullName, a.Line1, a.Line2, a.City, a.Region, a.PostalCode, a.Country, a.Phone, ts(a.CreatedAt))
	return err
}
