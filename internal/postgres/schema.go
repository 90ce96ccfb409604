package postgres

const schema = `
CREATE TABLE IF NOT EXISTS categories (
    id        TEXT PRIMARY KEY,
    parent_id TEXT REFERENCES categories(id),
    name      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
    id          TEXT PRIMARY KEY,
    sku         TEXT NOT NULL UNIQUE,
    name        TEXT NOT NULL,
    price       NUMERIC(12,2) NOT NULL,
    category_id TEXT REFERENCES categories(id),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS product_variants (
    id         TEXT PRIMARY KEY,
    product_id TEXT NOT NULL REFERENCES products(id),
    sku        TEXT NOT NULL UNIQUE,
    name       TEXT NOT NULL,
    price      NUMERIC(12,2)
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
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS carts (
    id         TEXT PRIMARY KEY,
    user_id    TEXT,
    is_active  BOOLEAN NOT NULL DEFAULT true,
    metadata   JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS cart_items (
    id         TEXT PRIMARY KEY,
    cart_id    TEXT NOT NULL REFERENCES carts(id),
    product_id TEXT NOT NULL,
    variant_id TEXT,
    quantity   INT NOT NULL CHECK (quantity > 0),
    unit_price NUMERIC(12,2),
    metadata   JSONB NOT NULL DEFAULT '{}',
    position   INT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cart_items_cart ON cart_items(cart_id, position);

CREATE TABLE IF NOT EXISTS inventory (
    id                TEXT PRIMARY KEY,
    product_id        TEXT NOT NULL,
    variant_id        TEXT,
    quantity          INT NOT NULL CHECK (quantity >= 0),
    reserved_quantity INT NOT NULL DEFAULT 0 CHECK (reserved_quantity >= 0),
    reorder_point     INT,
    status            TEXT NOT NULL,
    location_id       TEXT,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    CHECK (reserved_quantity <= quantity),
    CONSTRAINT inventory_product_variant_key UNIQUE NULLS NOT DISTINCT (product_id, variant_id)
);

CREATE TABLE IF NOT EXISTS stock_movements (
    seq            BIGSERIAL PRIMARY KEY,
    id             TEXT NOT NULL UNIQUE,
    inventory_id   TEXT NOT NULL REFERENCES inventory(id),
    quantity       INT NOT NULL,
    movement_type  TEXT NOT NULL,
    reference_id   TEXT,
    reference_type TEXT,
    notes          TEXT NOT NULL DEFAULT '',
    actor_id       TEXT,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_stock_movements_inventory ON stock_movements(inventory_id, seq);

CREATE TABLE IF NOT EXISTS coupons (
    id                       TEXT PRIMARY KEY,
    code                     TEXT NOT NULL UNIQUE,
    description              TEXT NOT NULL DEFAULT '',
    discount_type            TEXT NOT NULL,
    discount_value           NUMERIC(12,2) NOT NULL,
    buy_quantity             INT,
    get_quantity             INT,
    usage_limit              INT,
    usage_limit_per_user     INT,
    current_usage_count      INT NOT NULL DEFAULT 0,
    starts_at                TIMESTAMPTZ,
    expires_at               TIMESTAMPTZ,
    minimum_order_amount     NUMERIC(12,2),
    minimum_quantity         INT,
    applies_to_all_products  BOOLEAN NOT NULL DEFAULT true,
    product_ids              TEXT[] NOT NULL DEFAULT '{}',
    category_ids             TEXT[] NOT NULL DEFAULT '{}',
    excluded_product_ids     TEXT[] NOT NULL DEFAULT '{}',
    excluded_category_ids    TEXT[] NOT NULL DEFAULT '{}',
    applies_to_all_customers BOOLEAN NOT NULL DEFAULT true,
    customer_ids             TEXT[] NOT NULL DEFAULT '{}',
    is_first_order_only      BOOLEAN NOT NULL DEFAULT false,
    is_one_time_use          BOOLEAN NOT NULL DEFAULT false,
    is_active                BOOLEAN NOT NULL DEFAULT true,
    created_at               TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at               TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orders (
    id                  TEXT PRIMARY KEY,
    order_number        TEXT NOT NULL,
    user_id             TEXT,
    status              TEXT NOT NULL,
    payment_status      TEXT NOT NULL,
    subtotal            NUMERIC(12,2) NOT NULL,
    shipping_amount     NUMERIC(12,2) NOT NULL,
    tax_amount          NUMERIC(12,2) NOT NULL,
    discount_amount     NUMERIC(12,2) NOT NULL,
    total_amount        NUMERIC(12,2) NOT NULL,
    currency            TEXT NOT NULL,
    customer_email      TEXT NOT NULL DEFAULT '',
    customer_name       TEXT NOT NULL DEFAULT '',
    customer_phone      TEXT NOT NULL DEFAULT '',
    shipping_address_id TEXT REFERENCES addresses(id),
    billing_address_id  TEXT REFERENCES addresses(id),
    coupon_code         TEXT,
    guest_token         TEXT,
    cart_id             TEXT,
    notes               TEXT NOT NULL DEFAULT '',
    completed_at        TIMESTAMPTZ,
    cancelled_at        TIMESTAMPTZ,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT orders_order_number_key UNIQUE (order_number),
    CONSTRAINT orders_guest_token_key UNIQUE (guest_token)
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
    quantity        INT NOT NULL CHECK (quantity > 0),
    unit_price      NUMERIC(12,2) NOT NULL,
    subtotal        NUMERIC(12,2) NOT NULL,
    tax_amount      NUMERIC(12,2) NOT NULL,
    discount_amount NUMERIC(12,2) NOT NULL,
    total_amount    NUMERIC(12,2) NOT NULL,
    options         JSONB NOT NULL DEFAULT '{}',
    position        SERIAL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id, position);

CREATE TABLE IF NOT EXISTS coupon_usages (
    id              TEXT PRIMARY KEY,
    coupon_id       TEXT NOT NULL REFERENCES coupons(id),
    order_id        TEXT NOT NULL,
    user_id         TEXT,
    discount_amount NUMERIC(12,2) NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (coupon_id, order_id)
);
CREATE INDEX IF NOT EXISTS idx_coupon_usages_user ON coupon_usages(coupon_id, user_id);

CREATE TABLE IF NOT EXISTS payments (
    id             TEXT PRIMARY KEY,
    order_id       TEXT NOT NULL REFERENCES orders(id),
    provider       TEXT NOT NULL,
    amount         NUMERIC(12,2) NOT NULL,
    currency       TEXT NOT NULL,
    status         TEXT NOT NULL,
    transaction_id TEXT,
    data           JSONB NOT NULL DEFAULT '{}',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_payments_order ON payments(order_id, created_at);
`
