package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

const inventoryCols = `id, product_id, variant_id, quantity, reserved_quantity, reorder_point,
	status, location_id, created_at, updated_at`

func scanInventory(row interface{ Scan(...any) error }) (*orders.InventoryRecord, error) {
	var (
		rec                  orders.InventoryRecord
		variant, location    sql.NullString
		reorder              sql.NullInt64
		createdAt, updatedAt string
	)
	err := row.Scan(&rec.ID, &rec.ProductID, &variant, &rec.Quantity, &rec.ReservedQuantity,
		&reorder, &rec.Status, &location, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	rec.VariantID, rec.LocationID, rec.ReorderPoint = strPtr(variant), strPtr(location), intPtr(reorder)
	if rec.CreatedAt, err = parseRFC3339(createdAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseRFC3339(updatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (t *tx) InventoryForUpdate(ctx context.Context, id string) (*orders.InventoryRecord, error) {
	rec, err := scanInventory(t.tx.QueryRowContext(ctx,
		`SELECT `+inventoryCols+` FROM inventory WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "inventory "+id)
	}
	return rec, nil
}

func (t *tx) InventoryByProductForUpdate(ctx context.Context, productID string, variantID *string) (*orders.InventoryRecord, error) {
	return t.InventoryByProduct(ctx, productID, variantID)
}

func (t *tx) InventoryByProduct(ctx context.Context, productID string, variantID *string) (*orders.InventoryRecord, error) {
	variant := ""
	if variantID != nil {
		variant = *variantID
	}
	rec, err := scanInventory(t.tx.QueryRowContext(ctx,
		`SELECT `+inventoryCols+` FROM inventory
		 WHERE product_id = ? AND COALESCE(variant_id, '') = ?`, productID, variant))
	if err != nil {
		return nil, notFound(err, "inventory for product "+productID)
	}
	return rec, nil
}

func (t *tx) CreateInventory(ctx context.Context, rec *orders.InventoryRecord) error {
	_, err := t.exec(ctx, "create inventory", `
		INSERT INTO inventory (`+inventoryCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ProductID, str(rec.VariantID), rec.Quantity, rec.ReservedQuantity,
		num(rec.ReorderPoint), string(rec.Status), str(rec.LocationID), ts(rec.CreatedAt), ts(rec.UpdatedAt))
	return err
}

func (t *tx) UpdateInventory(ctx context.Context, rec *orders.InventoryRecord) error {
	return t.execOne(ctx, "update inventory", `
		UPDATE inventory
		SET quantity = ?, reserved_quantity = ?, reorder_point = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		rec.Quantity, rec.ReservedQuantity, num(rec.ReorderPoint), string(rec.Status), ts(rec.UpdatedAt), rec.ID)
}

func (t *tx) InsertMovement(ctx context.Context, m *orders.StockMovement) error {
	res, err := t.exec(ctx, "insert movement", `
		INSERT INTO stock_movements
			(id, inventory_id, quantity, movement_type, reference_id, reference_type, notes, actor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.InventoryID, m.Quantity, string(m.MovementType), str(m.ReferenceID), str(m.ReferenceType),
		m.Notes, str(m.ActorID), ts(m.CreatedAt))
	if err != nil {
		return err
	}
	if m.Seq, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("sqlite: movement seq: %w", err)
	}
	return nil
}

func (t *tx) ListMovements(ctx context.Context, inventoryID string) ([]orders.StockMovement, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT seq, id, inventory_id, quantity, movement_type, reference_id, reference_type,
		       notes, actor_id, created_at
		FROM stock_movements WHERE inventory_id = ? ORDER BY seq`, inventoryID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list movements: %w", err)
	}
	defer rows.Close()

	var out []orders.StockMovement
	for rows.Next() {
		var (
			m                    orders.StockMovement
			refID, refType, actr sql.NullString
			createdAt            string
		)
		if err := rows.Scan(&m.Seq, &m.ID, &m.InventoryID, &m.Quantity, &m.MovementType,
			&refID, &refType, &m.Notes, &actr, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan movement: %w", err)
		}
		m.ReferenceID, m.ReferenceType, m.ActorID = strPtr(refID), strPtr(refType), strPtr(actr)
		if m.CreatedAt, err = parseRFC3339(createdAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
