package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

func (t *tx) CartForUpdate(ctx context.Context, id string) (*orders.Cart, error) {
	var (
		c                    orders.Cart
		user                 sql.NullString
		meta                 string
		createdAt, updatedAt string
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, user_id, is_active, metadata, created_at, updated_at FROM carts WHERE id = ?`, id).
		Scan(&c.ID, &user, &c.IsActive, &meta, &createdAt, &updatedAt)
	if err != nil {
		return nil, notFound(err, "cart "+id)
	}
	c.UserID = strPtr(user)
	if c.Metadata, err = fromMeta(meta); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = parseRFC3339(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseRFC3339(updatedAt); err != nil {
		return nil, err
	}

	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, cart_id, product_id, variant_id, quantity, unit_price, metadata
		FROM cart_items WHERE cart_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list cart items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			it      orders.CartItem
			variant sql.NullString
			meta    string
		)
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &variant, &it.Quantity, &it.UnitPrice, &meta); err != nil {
			return nil, fmt.Errorf("sqlite: scan cart item: %w", err)
		}
		it.VariantID = strPtr(variant)
		if it.Metadata, err = fromMeta(meta); err != nil {
			return nil, err
		}
		c.Items = append(c.Items, it)
	}
	return &c, rows.Err()
}

func (t *tx) CreateCart(ctx context.Context, c *orders.Cart) error {
	meta, err := metaJSON(c.Metadata)
	if err != nil {
		return err
	}
	if _, err := t.exec(ctx, "create cart", `
		INSERT INTO carts (id, user_id, is_active, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, str(c.UserID), c.IsActive, meta, ts(c.CreatedAt), ts(c.UpdatedAt)); err != nil {
		return err
	}
	for i := range c.Items {
		it := &c.Items[i]
		it.CartID = c.ID
		meta, err := metaJSON(it.Metadata)
		if err != nil {
			return err
		}
		if _, err := t.exec(ctx, "create cart item", `
			INSERT INTO cart_items (id, cart_id, product_id, variant_id, quantity, unit_price, metadata, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, c.ID, it.ProductID, str(it.VariantID), it.Quantity, it.UnitPrice, meta, i); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) DeactivateCart(ctx context.Context, id string) error {
	return t.execOne(ctx, "deactivate cart", `UPDATE carts SET is_active = 0 WHERE id = ?`, id)
}

func (t *tx) Product(ctx context.Context, id string) (*orders.Product, error) {
	var (
		p                    orders.Product
		category             sql.NullString
		createdAt, updatedAt string
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, sku, name, price, category_id, created_at, updated_at FROM products WHERE id = ?`, id).
		Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &category, &createdAt, &updatedAt)
	if err != nil {
		return nil, notFound(err, "product "+id)
	}
	p.CategoryID = strPtr(category)
	if p.CreatedAt, err = parseRFC3339(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseRFC3339(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *tx) Variant(ctx context.Context, id string) (*orders.Variant, error) {
	var v orders.Variant
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, product_id, sku, name, price FROM product_variants WHERE id = ?`, id).
		Scan(&v.ID, &v.ProductID, &v.SKU, &v.Name, &v.Price)
	if err != nil {
		return nil, notFound(err, "variant "+id)
	}
	return &v, nil
}

func (t *tx) ListCategories(ctx context.Context) ([]orders.Category, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id, parent_id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list categories: %w", err)
	}
	defer rows.Close()

	var out []orders.Category
	for rows.Next() {
		var (
			c      orders.Category
			parent sql.NullString
		)
		if err := rows.Scan(&c.ID, &parent, &c.Name); err != nil {
			return nil, fmt.Errorf("sqlite: scan category: %w", err)
		}
		c.ParentID = strPtr(parent)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *tx) CreateProduct(ctx context.Context, p *orders.Product) error {
	_, err := t.exec(ctx, "create product", `
		INSERT INTO products (id, sku, name, price, category_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SKU, p.Name, p.Price, str(p.CategoryID), ts(p.CreatedAt), ts(p.UpdatedAt))
	return err
}

func (t *tx) CreateVariant(ctx context.Context, v *orders.Variant) error {
	_, err := t.exec(ctx, "create variant", `
		INSERT INTO product_variants (id, product_id, sku, name, price) VALUES (?, ?, ?, ?, ?)`,
		v.ID, v.ProductID, v.SKU, v.Name, v.Price)
	return err
}

func (t *tx) CreateCategory(ctx context.Context, c *orders.Category) error {
	_, err := t.exec(ctx, "create category",
		`INSERT INTO categories (id, parent_id, name) VALUES (?, ?, ?)`, c.ID, str(c.ParentID), c.Name)
	return err
}
