package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/apperr"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

const (
	RefTypeReceipt = "receipt"

	receiptService = "inventory"
)

var ErrNotReceipt = errors.New("not a stock receipt event")

// Deduper claims an event id for one service. Claim returns false when the
// event was already taken.
type Deduper interface {
	Claim(ctx context.Context, service, eventID string) (bool, error)
	Release(ctx context.Context, service, eventID string) error
}

// ReceiveStock books goods-in for a product (and variant) as a receipt
// movement on its inventory row.
func (m *Manager) ReceiveStock(ctx context.Context, productID string, variantID *string, qty int, opts AdjustOptions) (*orders.InventoryRecord, *orders.StockMovement, error) {
	if qty <= 0 {
		return nil, nil, apperr.Wrap(apperr.KindBadRequest, ErrInvalidQuantity, "received quantity must be positive")
	}
	var (
		rec *orders.InventoryRecord
		mv  *orders.StockMovement
	)
	err := m.store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		row, err := tx.InventoryByProduct(ctx, productID, variantID)
		if err != nil {
			return notFound(err, productLabel(productID, variantID))
		}
		rec, mv, err = m.AdjustTx(ctx, tx, row.ID, qty, orders.MovementReceipt, opts)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return rec, mv, nil
}

// ReceiptHandler applies StockReceived events. Each event id is applied at
// most once; a failed attempt releases its claim so redelivery retries it.
type ReceiptHandler struct {
	manager *Manager
	dedup   Deduper
	logger  *zap.Logger
}

func NewReceiptHandler(m *Manager, dedup Deduper, logger *zap.Logger) *ReceiptHandler {
	return &ReceiptHandler{manager: m, dedup: dedup, logger: logger}
}

func (h *ReceiptHandler) Handle(ctx context.Context, env orders.Envelope) error {
	if env.EventType != orders.EventStockReceived {
		return fmt.Errorf("%w: %s", ErrNotReceipt, env.EventType)
	}
	var p orders.StockReceivedPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return apperr.Wrap(apperr.KindBadRequest, ErrNotReceipt, "decode %s payload: %v", env.EventType, err)
	}

	first, err := h.dedup.Claim(ctx, receiptService, env.EventID)
	if err != nil {
		return fmt.Errorf("claim event %s: %w", env.EventID, err)
	}
	if !first {
		h.logger.Info("duplicate receipt skipped", zap.String("event_id", env.EventID))
		return nil
	}

	opts := AdjustOptions{Notes: p.Notes}
	if p.Reference != "" {
		opts.Reference = &Reference{ID: p.Reference, Type: RefTypeReceipt}
	}
	rec, _, err := h.manager.ReceiveStock(ctx, p.ProductID, p.VariantID, p.Quantity, opts)
	if err != nil {
		if rerr := h.dedup.Release(ctx, receiptService, env.EventID); rerr != nil {
			h.logger.Warn("release claim", zap.String("event_id", env.EventID), zap.Error(rerr))
		}
		return err
	}
	h.logger.Info("stock received",
		zap.String("event_id", env.EventID),
		zap.String("inventory_id", rec.ID),
		zap.Int("quantity", p.Quantity),
		zap.Int("on_hand", rec.Quantity))
	return nil
}
