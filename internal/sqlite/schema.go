package sqlite

// schema is applied on every Open. Money is TEXT so decimals survive the
// round trip exactly; times are RFC3339 TEXT; id lists and metadata are JSON.
const schema = `
CREATE TABLE IF NOT EXISTS categories (
    id          TEXT PRIMARY KEY,
    parent_id   TEXT,
    name        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
    id          TEXT PRIMARY KEY,
    sku         TEXT NOT NULL UNIQUE,
    name        TEXT NOT NULL,
    price       TEXT NOT NULL,
    category_id TEXT REFERENCES categories(id),
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS product_variants (
    id          TEXT PRIMARY KEY,
    product_id  TEXT NOT NULL REFERENCES products(id),
    sku         TEXT NOT NULL UNIQUE,
    name        TEXT NOT NULL,
    price       TEXT
);

CREATE TABLE IF NOT EXISTS addresses (
    id          TEXT PRIMARY KEY,
    user_id     TEXT,
    full_name   TEXT NOT NULL,
    line1       TEXT NOT NULL,
    line2       TEXT NOT NULL DEFAULT '',
    city        TEXT NOT NULL,
    region      TEXT NOT NULL DEFAULT '',
    postal_code TEXT NOT NULL DEFAULT '',
    country     TEXT NOT NULL,
    phone       TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS carts (
    id          TEXT PRIMARY KEY,
    user_id     TEXT,
    is_active   INTEGER NOT NULL DEFAULT 1,
    metadata    TEXT NOT NULL DEFAULT '{}',
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cart_items (
    id          TEXT PRIMARY KEY,
    cart_id     TEXT NOT NULL REFERENCES carts(id),
    product_id  TEXT NOT NULL,
    variant_id  TEXT,
    quantity    INTEGER NOT NULL CHECK (quantity > 0),
    unit_price  TEXT,
    metadata    TEXT NOT NULL DEFAULT '{}',
    position    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cart_items_cart ON cart_items(cart_id, position);

CREATE TABLE IF NOT EXISTS inventory (
    id                TEXT PRIMARY KEY,
    product_id        TEXT NOT NULL,
    variant_id        TEXT,
    quantity          INTEGER NOT NULL CHECK (quantity >= 0),
    reserved_quantity INTEGER NOT NULL DEFAULT 0 CHECK (reserved_quantity >= 0),
    reorder_point     INTEGER,
    status            TEXT NOT NULL,
    location_id       TEXT,
    created_at        TEXT NOT NULL,
    updated_at        TEXT NOT NULL,
    CHECK (reserved_quantity <= quantity)
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_inventory_product_variant
    ON inventory(product_id, COALESCE(variant_id, ''));

-- Append-only. seq gives the causal order within one database.
CREATE TABLE IF NOT EXISTS stock_movements (
    seq            INTEGER PRIMARY KEY AUTOINCREMENT,
    id             TEXT NOT NULL UNIQUE,
    inventory_id   TEXT NOT NULL REFERENCES inventory(id),
    quantity       INTEGER NOT NULL,
    movement_type  TEXT NOT NULL,
    reference_id   TEXT,
    reference_type TEXT,
    notes          TEXT NOT NULL DEFAULT '',
    actor_id       TEXT,
    created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stock_movements_inventory ON stock_movements(inventory_id, seq);

CREATE TABLE IF NOT EXISTS coupons (
    id                       TEXT PRIMARY KEY,
    code                     TEXT NOT NULL UNIQUE,
    description              TEXT NOT NULL DEFAULT '',
    discount_type            TEXT NOT NULL,
    discount_value           TEXT NOT NULL,
    buy_quantity             INTEGER,
    get_quantity             INTEGER,
    usage_limit              INTEGER,
    usage_limit_per_user     INTEGER,
    current_usage_count      INTEGER NOT NULL DEFAULT 0,
    starts_at                TEXT,
    expires_at               TEXT,
    minimum_order_amount     TEXT,
    minimum_quantity         INTEGER,
    applies_to_all_products  INTEGER NOT NULL DEFAULT 1,
    product_ids              TEXT NOT NULL DEFAULT '[]',
    category_ids             TEXT NOT NULL DEFAULT '[]',
    excluded_product_ids     TEXT NOT NULL DEFAULT '[]',
    excluded_category_ids    TEXT NOT NULL DEFAULT '[]',
    applies_to_all_customers INTEGER NOT NULL DEFAULT 1,
    customer_ids             TEXT NOT NULL DEFAULT '[]',
    is_first_order_only      INTEGER NOT NULL DEFAULT 0,
    is_one_time_use          INTEGER NOT NULL DEFAULT 0,
    is_active                INTEGER NOT NULL DEFAULT 1,
    created_at               TEXT NOT NULL,
    updated_at               TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
    id                  TEXT PRIMARY KEY,
    order_number        TEXT NOT NULL UNIQUE,
    user_id             TEXT,
    status              TEXT NOT NULL,
    payment_status      TEXT NOT NULL,
    subtotal            TEXT NOT NULL,
    shipping_amount     TEXT NOT NULL,
    tax_amount          TEXT NOT NULL,
    discount_amount     TEXT NOT NULL,
    total_amount        TEXT NOT NULL,
    currency            TEXT NOT NULL,
    customer_email      TEXT NOT NULL DEFAULT '',
    customer_name       TEXT NOT NULL DEFAULT '',
    customer_phone      TEXT NOT NULL DEFAULT '',
    shipping_address_id TEXT,
    billing_address_id  TEXT,
    coupon_code         TEXT,
    guest_token         TEXT UNIQUE,
    cart_id             TEXT,
    notes               TEXT NOT NULL DEFAULT '',
    completed_at        TEXT,
    cancelled_at        TEXT,
    created_at          TEXT NOT NULL,
    updated_at          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);

CREATE TABLE IF NOT EXISTS order_items (
    id              TEXT PRIMARY KEY,
    order_id        TEXT NOT NULL REFERENCES orders(id),
    product_id      TEXT NOT NULL,
    variant_id      TEXT,
    product_name    TEXT NOT NULL,
    product_sku     TEXT NOT NULL,
    variant_name    TEXT,
    quantity        INTEGER NOT NULL CHECK (quantity > 0),
    unit_price      TEXT NOT NULL,
    subtotal        TEXT NOT NULL,
    tax_amount      TEXT NOT NULL,
    discount_amount TEXT NOT NULL,
    total_amount    TEXT NOT NULL,
    options         TEXT NOT NULL DEFAULT '{}',
    created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);

CREATE TABLE IF NOT EXISTS coupon_usages (
    id              TEXT PRIMARY KEY,
    coupon_id       TEXT NOT NULL REFERENCES coupons(id),
    order_id        TEXT NOT NULL,
    user_id         TEXT,
    discount_amount TEXT NOT NULL,
    created_at      TEXT NOT NULL,
    UNIQUE (coupon_id, order_id)
);
CREATE INDEX IF NOT EXISTS idx_coupon_usages_user ON coupon_usages(coupon_id, user_id);

CREATE TABLE IF NOT EXISTS payments (
    id             TEXT PRIMARY KEY,
    order_id       TEXT NOT NULL REFERENCES orders(id),
    provider       TEXT NOT NULL,
    amount         TEXT NOT NULL,
    currency       TEXT NOT NULL,
    status         TEXT NOT NULL,
    transaction_id TEXT,
    data           TEXT NOT NULL DEFAULT '{}',
    created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_payments_order ON payments(order_id, created_at);
`
