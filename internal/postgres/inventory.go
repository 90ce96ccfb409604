package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

const inventoryCols = `id, product_id, variant_id, quantity, reserved_quantity, reorder_point,
	status, location_id, created_at, updated_at`

func scanInventory(row pgx.Row) (*orders.InventoryRecord, error) {
	var rec orders.InventoryRecord
	err := row.Scan(&rec.ID, &rec.ProductID, &rec.VariantID, &rec.Quantity, &rec.ReservedQuantity,
		&rec.ReorderPoint, &rec.Status, &rec.LocationID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// InventoryForUpdate: lock baris stok sampai tx selesai.
func (t *tx) InventoryForUpdate(ctx context.Context, id string) (*orders.InventoryRecord, error) {
	rec, err := scanInventory(t.tx.QueryRow(ctx,
		`SELECT `+inventoryCols+` FROM inventory WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "inventory "+id)
	}
	return rec, nil
}

func (t *tx) InventoryByProductForUpdate(ctx context.Context, productID string, variantID *string) (*orders.InventoryRecord, error) {
	rec, err := scanInventory(t.tx.QueryRow(ctx,
		`SELECT `+inventoryCols+` FROM inventory
		 WHERE product_id = $1 AND variant_id IS NOT DISTINCT FROM $2 FOR UPDATE`, productID, variantID))
	if err != nil {
		return nil, notFound(err, "inventory for product "+productID)
	}
	return rec, nil
}

func (t *tx) InventoryByProduct(ctx context.Context, productID string, variantID *string) (*orders.InventoryRecord, error) {
	rec, err := scanInventory(t.tx.QueryRow(ctx,
		`SELECT `+inventoryCols+` FROM inventory
		 WHERE product_id = $1 AND variant_id IS NOT DISTINCT FROM $2`, productID, variantID))
	if err != nil {
		return nil, notFound(err, "inventory for product "+productID)
	}
	return rec, nil
}

func (t *tx) CreateInventory(ctx context.Context, rec *orders.InventoryRecord) error {
	return t.exec(ctx, "create inventory", `
		INSERT INTO inventory (`+inventoryCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.ProductID, rec.VariantID, rec.Quantity, rec.ReservedQuantity,
		rec.ReorderPoint, string(rec.Status), rec.LocationID, rec.CreatedAt, rec.UpdatedAt)
}

func (t *tx) UpdateInventory(ctx context.Context, rec *orders.InventoryRecord) error {
	return t.execOne(ctx, "update inventory", `
		UPDATE inventory
		SET quantity = $2, reserved_quantity = $3, reorder_point = $4, status = $5, updated_at = $6
		WHERE id = $1`,
		rec.ID, rec.Quantity, rec.ReservedQuantity, rec.ReorderPoint, string(rec.Status), rec.UpdatedAt)
}

func (t *tx) InsertMovement(ctx context.Context, m *orders.StockMovement) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO stock_movements
			(id, inventory_id, quantity, movement_type, reference_id, reference_type, notes, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq`,
		m.ID, m.InventoryID, m.Quantity, string(m.MovementType), m.ReferenceID, m.ReferenceType,
		m.Notes, m.ActorID, m.CreatedAt).Scan(&m.Seq)
	return mapErr(err, "insert movement")
}

func (t *tx) ListMovements(ctx context.Context, inventoryID string) ([]orders.StockMovement, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT seq, id, inventory_id, quantity, movement_type, reference_id, reference_type,
		       notes, actor_id, created_at
		FROM stock_movements WHERE inventory_id = $1 ORDER BY seq`, inventoryID)
	if err != nil {
		return nil, mapErr(err, "list movements")
	}
	defer rows.Close()

	var out []orders.StockMovement
	for rows.Next() {
		var m orders.StockMovement
		if err := rows.Scan(&m.Seq, &m.ID, &m.InventoryID, &m.Quantity, &m.MovementType,
			&m.ReferenceID, &m.ReferenceType, &m.Notes, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, mapErr(err, "scan movement")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
