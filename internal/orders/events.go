package orders

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderCancelled     = "OrderCancelled"
	EventPaymentRecorded    = "PaymentRecorded"
	EventStockReceived      = "StockReceived"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // biasanya order_id
	Payload       json.RawMessage `json:"payload"`
}

const EnvelopeVersion = 1

// NewEnvelope wraps payload for the bus; correlationID is usually the order id.
func NewEnvelope(eventType, producer, correlationID string, payload any, now time.Time) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  EnvelopeVersion,
		OccurredAt:    now.UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       raw,
	}, nil
}

// ---- Payload tipe per event ----

type ItemQty struct {
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id,omitempty"`
	Qty       int     `json:"qty"`
}

type OrderCreatedPayload struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      *string   `json:"user_id,omitempty"`
	Items       []ItemQty `json:"items"`
	Total       string    `json:"total"`
	Currency    string    `json:"currency"`
	CouponCode  *string   `json:"coupon_code,omitempty"`
}

type OrderStatusChangedPayload struct {
	OrderID       string `json:"order_id"`
	From          Status `json:"from"`
	To            Status `json:"to"`
	PaymentStatus string `json:"payment_status"`
	Forced        bool   `json:"forced,omitempty"`
}

type OrderCancelledPayload struct {
	OrderID  string    `json:"order_id"`
	Restored []ItemQty `json:"restored"`
}

type PaymentRecordedPayload struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Provider  string `json:"provider"`
	Amount    string `json:"amount"`
	Status    string `json:"status"`
}

// StockReceivedPayload is published by the warehouse side for goods-in.
type StockReceivedPayload struct {
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id,omitempty"`
	Quantity  int     `json:"quantity"`
	Reference string  `json:"reference,omitempty"`
	Notes     string  `json:"notes,omitempty"`
}

// ItemsOf flattens order lines for event payloads.
func ItemsOf(items []OrderItem) []ItemQty {
	out := make([]ItemQty, 0, len(items))
	for _, it := range items {
		out = append(out, ItemQty{ProductID: it.ProductID, VariantID: it.VariantID, Qty: it.Quantity})
	}
	return out
}
