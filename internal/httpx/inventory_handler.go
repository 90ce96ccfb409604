package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/apperr"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type InventoryHandler struct {
	Manager *inventory.Manager
	Logger  *zap.Logger
}

type RegisterInventoryReq struct {
	ProductID    string  `json:"product_id"`
	VariantID    *string `json:"variant_id,omitempty"`
	Quantity     int     `json:"quantity"`
	ReorderPoint *int    `json:"reorder_point,omitempty"`
	LocationID   *string `json:"location_id,omitempty"`
}

type AdjustReq struct {
	Delta         int                 `json:"delta"`
	MovementType  orders.MovementType `json:"movement_type"`
	Notes         string              `json:"notes"`
	ReferenceID   string              `json:"reference_id,omitempty"`
	ReferenceType string              `json:"reference_type,omitempty"`
}

type QuantityReq struct {
	Quantity int    `json:"quantity"`
	OrderID  string `json:"order_id,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

type InventoryResp struct {
	ID               string  `json:"id"`
	ProductID        string  `json:"product_id"`
	VariantID        *string `json:"variant_id,omitempty"`
	Quantity         int     `json:"quantity"`
	ReservedQuantity int     `json:"reserved_quantity"`
	Available        int     `json:"available_quantity"`
	ReorderPoint     *int    `json:"reorder_point,omitempty"`
	Status           string  `json:"status"`
}

type MovementResp struct {
	ID            string    `json:"id"`
	Seq           int64     `json:"seq"`
	Quantity      int       `json:"quantity"`
	MovementType  string    `json:"movement_type"`
	ReferenceID   *string   `json:"reference_id,omitempty"`
	ReferenceType *string   `json:"reference_type,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	ActorID       *string   `json:"actor_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toInventoryResp(rec *orders.InventoryRecord) InventoryResp {
	return InventoryResp{
		ID:               rec.ID,
		ProductID:        rec.ProductID,
		VariantID:        rec.VariantID,
		Quantity:         rec.Quantity,
		ReservedQuantity: rec.ReservedQuantity,
		Available:        rec.Available(),
		ReorderPoint:     rec.ReorderPoint,
		Status:           string(rec.Status),
	}
}

func (h *InventoryHandler) Register(r chi.Router) {
	r.Post("/inventory", h.register)
	r.Get("/inventory/available", h.available)
	r.Get("/inventory/{id}", h.get)
	r.Get("/inventory/{id}/movements", h.movements)
	r.Post("/inventory/{id}/adjust", h.adjust)
	r.Post("/inventory/{id}/reserve", h.reserve)
	r.Post("/inventory/{id}/release", h.release)
	r.Post("/inventory/{id}/set", h.set)
}

func (h *InventoryHandler) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterInventoryReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if req.ProductID == "" {
		writeError(w, h.Logger, apperr.BadRequest("product_id is required"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Manager.Register(ctx, inventory.RegisterInput{
		ProductID:    req.ProductID,
		VariantID:    req.VariantID,
		Quantity:     req.Quantity,
		ReorderPoint: req.ReorderPoint,
		LocationID:   req.LocationID,
		ActorID:      actor(r),
	})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInventoryResp(rec))
}

func (h *InventoryHandler) available(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	if productID == "" {
		writeError(w, h.Logger, apperr.BadRequest("product_id is required"))
		return
	}
	var variantID *string
	if v := r.URL.Query().Get("variant_id"); v != "" {
		variantID = &v
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	n, err := h.Manager.GetAvailable(ctx, productID, variantID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product_id": productID, "variant_id": variantID, "available_quantity": n})
}

func (h *InventoryHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rec, err := h.Manager.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryResp(rec))
}

func (h *InventoryHandler) movements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	mvs, err := h.Manager.History(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	out := make([]MovementResp, 0, len(mvs))
	for _, mv := range mvs {
		out = append(out, MovementResp{
			ID:            mv.ID,
			Seq:           mv.Seq,
			Quantity:      mv.Quantity,
			MovementType:  string(mv.MovementType),
			ReferenceID:   mv.ReferenceID,
			ReferenceType: mv.ReferenceType,
			Notes:         mv.Notes,
			ActorID:       mv.ActorID,
			CreatedAt:     mv.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *InventoryHandler) adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	opts := inventory.AdjustOptions{Notes: req.Notes, ActorID: actor(r)}
	if req.ReferenceID != "" {
		opts.Reference = &inventory.Reference{ID: req.ReferenceID, Type: req.ReferenceType}
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, _, err := h.Manager.Adjust(ctx, chi.URLParam(r, "id"), req.Delta, req.MovementType, opts)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryResp(rec))
}

func (h *InventoryHandler) reserve(w http.ResponseWriter, r *http.Request) {
	h.reservation(w, r, h.Manager.Reserve)
}

func (h *InventoryHandler) release(w http.ResponseWriter, r *http.Request) {
	h.reservation(w, r, h.Manager.Release)
}

type reservationFn func(ctx context.Context, inventoryID string, qty int, ref *inventory.Reference, notes string) (*orders.InventoryRecord, error)

func (h *InventoryHandler) reservation(w http.ResponseWriter, r *http.Request, fn reservationFn) {
	var req QuantityReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	var ref *inventory.Reference
	if req.OrderID != "" {
		ref = inventory.OrderRef(req.OrderID)
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := fn(ctx, chi.URLParam(r, "id"), req.Quantity, ref, req.Notes)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryResp(rec))
}

func (h *InventoryHandler) set(w http.ResponseWriter, r *http.Request) {
	var req QuantityReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Manager.SetQuantity(ctx, chi.URLParam(r, "id"), req.Quantity,
		inventory.AdjustOptions{Notes: req.Notes, ActorID: actor(r)})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryResp(rec))
}
