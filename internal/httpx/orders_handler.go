package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/apperr"
	"github.com/ariefcatur/go-order-fulfillment/internal/checkout"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/redisx"
)

const headerIdempotencyKey = "Idempotency-Key"

type OrdersHandler struct {
	Checkout *checkout.Orchestrator
	Cache    *redisx.Cache // optional
	Logger   *zap.Logger
}

type CheckoutReq struct {
	CartID string `json:"cart_id"`
	checkout.OrderRequest
}

type StatusReq struct {
	Status        orders.Status         `json:"status"`
	PaymentStatus *orders.PaymentStatus `json:"payment_status,omitempty"`
}

type PaymentReq struct {
	Provider orders.PaymentProvider `json:"provider"`
	Amount   decimal.Decimal        `json:"amount"`
	Data     map[string]any         `json:"data,omitempty"`
}

type OrderResp struct {
	ID                string          `json:"id"`
	OrderNumber       string          `json:"order_number"`
	Status            orders.Status   `json:"status"`
	PaymentStatus     string          `json:"payment_status"`
	Subtotal          string          `json:"subtotal"`
	ShippingAmount    string          `json:"shipping_amount"`
	TaxAmount         string          `json:"tax_amount"`
	DiscountAmount    string          `json:"discount_amount"`
	TotalAmount       string          `json:"total_amount"`
	Currency          string          `json:"currency"`
	CustomerEmail     string          `json:"customer_email"`
	CouponCode        *string         `json:"coupon_code,omitempty"`
	GuestToken        *string         `json:"guest_token,omitempty"`
	ShippingAddressID *string         `json:"shipping_address_id,omitempty"`
	BillingAddressID  *string         `json:"billing_address_id,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	CancelledAt       *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	Items             []OrderItemResp `json:"items"`
	Idempotent        bool            `json:"idempotent,omitempty"`
}

type OrderItemResp struct {
	ProductID      string  `json:"product_id"`
	VariantID      *string `json:"variant_id,omitempty"`
	ProductName    string  `json:"product_name"`
	ProductSKU     string  `json:"product_sku"`
	VariantName    *string `json:"variant_name,omitempty"`
	Quantity       int     `json:"quantity"`
	UnitPrice      string  `json:"unit_price"`
	Subtotal       string  `json:"subtotal"`
	TaxAmount      string  `json:"tax_amount"`
	DiscountAmount string  `json:"discount_amount"`
	TotalAmount    string  `json:"total_amount"`
}

type PaymentResp struct {
	ID            string  `json:"id"`
	OrderID       string  `json:"order_id"`
	Provider      string  `json:"provider"`
	Amount        string  `json:"amount"`
	Currency      string  `json:"currency"`
	Status        string  `json:"status"`
	TransactionID *string `json:"transaction_id,omitempty"`
}

func toOrderResp(o *orders.Order) OrderResp {
	resp := OrderResp{
		ID:                o.ID,
		OrderNumber:       o.OrderNumber,
		Status:            o.Status,
		PaymentStatus:     string(o.PaymentStatus),
		Subtotal:          o.Subtotal.StringFixed(2),
		ShippingAmount:    o.ShippingAmount.StringFixed(2),
		TaxAmount:         o.TaxAmount.StringFixed(2),
		DiscountAmount:    o.DiscountAmount.StringFixed(2),
		TotalAmount:       o.TotalAmount.StringFixed(2),
		Currency:          o.Currency,
		CustomerEmail:     o.CustomerEmail,
		CouponCode:        o.CouponCode,
		ShippingAddressID: o.ShippingAddressID,
		BillingAddressID:  o.BillingAddressID,
		CompletedAt:       o.CompletedAt,
		CancelledAt:       o.CancelledAt,
		CreatedAt:         o.CreatedAt,
		Items:             make([]OrderItemResp, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, OrderItemResp{
			ProductID:      it.ProductID,
			VariantID:      it.VariantID,
			ProductName:    it.ProductName,
			ProductSKU:     it.ProductSKU,
			VariantName:    it.VariantName,
			Quantity:       it.Quantity,
			UnitPrice:      it.UnitPrice.StringFixed(2),
			Subtotal:       it.Subtotal.StringFixed(2),
			TaxAmount:      it.TaxAmount.StringFixed(2),
			DiscountAmount: it.DiscountAmount.StringFixed(2),
			TotalAmount:    it.TotalAmount.StringFixed(2),
		})
	}
	return resp
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/checkout", h.checkout)
	r.Get("/orders/guest/{token}", h.getGuestOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Post("/orders/{id}/cancel", h.cancel)
	r.Post("/orders/{id}/payments", h.payment)
	r.Post("/admin/orders/{id}/transition", h.transition)
	r.Put("/admin/orders/{id}/status", h.forceStatus)
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if req.CartID == "" {
		writeError(w, h.Logger, apperr.BadRequest("cart_id is required"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Fast-path idempotency via Redis; the cart deactivation is what really
	// prevents a second order. Guests get no replay: the order is only
	// reachable through its guest token.
	user := actor(r)
	idemKey := r.Header.Get(headerIdempotencyKey)
	replayable := idemKey != "" && h.Cache != nil && user != nil
	if replayable {
		orderID, ok, err := h.Cache.CheckoutResult(ctx, *user, idemKey)
		if err != nil {
			h.Logger.Warn("idempotency lookup", zap.Error(err))
		}
		if ok {
			o, err := h.Checkout.GetOrder(ctx, orderID, user)
			if err != nil {
				writeError(w, h.Logger, err)
				return
			}
			resp := toOrderResp(o)
			resp.Idempotent = true
			writeJSON(w, http.StatusOK, resp)
			return
		}
	}

	o, err := h.Checkout.CreateOrderFromCart(ctx, req.CartID, req.OrderRequest, user)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if replayable {
		if err := h.Cache.RememberCheckout(ctx, *user, idemKey, o.ID); err != nil {
			h.Logger.Warn("remember checkout", zap.Error(err))
		}
	}
	h.cacheStatus(ctx, o)

	resp := toOrderResp(o)
	resp.GuestToken = o.GuestToken
	writeJSON(w, http.StatusCreated, resp)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	user, err := requireActor(r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	o, err := h.Checkout.GetOrder(ctx, chi.URLParam(r, "id"), user)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

func (h *OrdersHandler) getGuestOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Checkout.GetOrderByGuestToken(ctx, chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

// getStatus serves the status cache, falling back to the ledger on a miss.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	user, err := requireActor(r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	// 1) coba cache
	if h.Cache != nil {
		st, ok, err := h.Cache.GetOrderStatus(ctx, orderID)
		if err != nil {
			h.Logger.Warn("status cache read", zap.String("order_id", orderID), zap.Error(err))
		}
		if ok {
			if st.UserID != *user {
				writeError(w, h.Logger, apperr.Wrap(apperr.KindForbidden, checkout.ErrNotOwner, "order %s belongs to another customer", orderID))
				return
			}
			writeJSON(w, http.StatusOK, st)
			return
		}
	}

	// 2) fallback DB
	o, err := h.Checkout.GetOrder(ctx, orderID, user)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cacheStatus(ctx, o))
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := requireActor(r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	o, err := h.Checkout.CancelOrder(ctx, chi.URLParam(r, "id"), user)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

// transition is the validated back-office status change; customers cancel
// through /orders/{id}/cancel.
func (h *OrdersHandler) transition(w http.ResponseWriter, r *http.Request) {
	var req StatusReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Checkout.TransitionStatus(ctx, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

func (h *OrdersHandler) forceStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Checkout.ForceStatus(ctx, chi.URLParam(r, "id"), req.Status, req.PaymentStatus)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

func (h *OrdersHandler) payment(w http.ResponseWriter, r *http.Request) {
	var req PaymentReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Checkout.ProcessPayment(ctx, orderID, req.Provider, req.Amount, req.Data)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if h.Cache != nil {
		if err := h.Cache.DropOrderStatus(ctx, orderID); err != nil {
			h.Logger.Warn("drop status cache", zap.String("order_id", orderID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusCreated, PaymentResp{
		ID:            p.ID,
		OrderID:       p.OrderID,
		Provider:      string(p.Provider),
		Amount:        p.Amount.StringFixed(2),
		Currency:      p.Currency,
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
	})
}

// cacheStatus writes the order's status to the cache and returns it.
func (h *OrdersHandler) cacheStatus(ctx context.Context, o *orders.Order) redisx.OrderStatus {
	st := redisx.OrderStatus{
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		UpdatedAt:     o.UpdatedAt,
	}
	if o.UserID != nil {
		st.UserID = *o.UserID
	}
	if h.Cache == nil {
		return st
	}
	if err := h.Cache.SetOrderStatus(ctx, o.ID, st); err != nil {
		h.Logger.Warn("status cache write", zap.String("order_id", o.ID), zap.Error(err))
	}
	return st
}
