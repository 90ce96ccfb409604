package postgres

import (
	"context"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

func (t *tx) CartForUpdate(ctx context.Context, id string) (*orders.Cart, error) {
	var c orders.Cart
	err := t.tx.QueryRow(ctx, `
		SELECT id, user_id, is_active, metadata, created_at, updated_at
		FROM carts WHERE id = $1 FOR UPDATE`, id).
		Scan(&c.ID, &c.UserID, &c.IsActive, &c.Metadata, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "cart "+id)
	}
	c.Metadata = metaOut(c.Metadata)

	rows, err := t.tx.Query(ctx, `
		SELECT id, cart_id, product_id, variant_id, quantity, unit_price::text, metadata
		FROM cart_items WHERE cart_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, mapErr(err, "list cart items")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			it    orders.CartItem
			price *string
		)
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.VariantID, &it.Quantity, &price, &it.Metadata); err != nil {
			return nil, mapErr(err, "scan cart item")
		}
		if it.UnitPrice, err = parseNullMoney(price); err != nil {
			return nil, err
		}
		it.Metadata = metaOut(it.Metadata)
		c.Items = append(c.Items, it)
	}
	return &c, rows.Err()
}

func (t *tx) CreateCart(ctx context.Context, c *orders.Cart) error {
	if err := t.exec(ctx, "create cart", `
		INSERT INTO carts (id, user_id, is_active, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.UserID, c.IsActive, meta(c.Metadata), c.CreatedAt, c.UpdatedAt); err != nil {
		return err
	}
	for i := range c.Items {
		it := &c.Items[i]
		it.CartID = c.ID
		if err := t.exec(ctx, "create cart item", `
			INSERT INTO cart_items (id, cart_id, product_id, variant_id, quantity, unit_price, metadata, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			it.ID, c.ID, it.ProductID, it.VariantID, it.Quantity, nullMoney(it.UnitPrice), meta(it.Metadata), i); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) DeactivateCart(ctx context.Context, id string) error {
	return t.execOne(ctx, "deactivate cart",
		`UPDATE carts SET is_active = false, updated_at = now() WHERE id = $1`, id)
}

func (t *tx) Product(ctx context.Context, id string) (*orders.Product, error) {
	var (
		p orders.Product
		a amounts
	)
	err := t.tx.QueryRow(ctx, `
		SELECT id, sku, name, price::text, category_id, created_at, updated_at FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.SKU, &p.Name, a.col(&p.Price), &p.CategoryID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "product "+id)
	}
	if err := a.parse(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *tx) Variant(ctx context.Context, id string) (*orders.Variant, error) {
	var (
		v     orders.Variant
		price *string
	)
	err := t.tx.QueryRow(ctx, `
		SELECT id, product_id, sku, name, price::text FROM product_variants WHERE id = $1`, id).
		Scan(&v.ID, &v.ProductID, &v.SKU, &v.Name, &price)
	if err != nil {
		return nil, notFound(err, "variant "+id)
	}
	if v.Price, err = parseNullMoney(price); err != nil {
		return nil, err
	}
	return &v, nil
}

func (t *tx) ListCategories(ctx context.Context) ([]orders.Category, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, parent_id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, mapErr(err, "list categories")
	}
	defer rows.Close()

	var out []orders.Category
	for rows.Next() {
		var c orders.Category
		if err := rows.Scan(&c.ID, &c.ParentID, &c.Name); err != nil {
			return nil, mapErr(err, "scan category")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *tx) CreateProduct(ctx context.Context, p *orders.Product) error {
	return t.exec(ctx, "create product", `
		INSERT INTO products (id, sku, name, price, category_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.SKU, p.Name, money(p.Price), p.CategoryID, p.CreatedAt, p.UpdatedAt)
}

func (t *tx) CreateVariant(ctx context.Context, v *orders.Variant) error {
	return t.exec(ctx, "create variant", `
		INSERT INTO product_variants (id, product_id, sku, name, price) VALUES ($1, $2, $3, $4, $5)`,
		v.ID, v.ProductID, v.SKU, v.Name, nullMoney(v.Price))
}

func (t *tx) CreateCategory(ctx context.Context, c *orders.Category) error {
	return t.exec(ctx, "create category",
		`INSERT INTO categories (id, parent_id, name) VALUES ($1, $2, $3)`, c.ID, c.ParentID, c.Name)
}
