package kafka

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

var ErrBadEnvelope = errors.New("malformed event envelope")

func MarshalEnvelope(env orders.Envelope) ([]byte, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", env.EventType, err)
	}
	return b, nil
}

// UnmarshalEnvelope decodes a message value and rejects envelopes without
// the fields consumers route and dedup on.
func UnmarshalEnvelope(b []byte) (orders.Envelope, error) {
	var env orders.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrBadEnvelope, err)
	}
	if env.EventID == "" || env.EventType == "" {
		return env, fmt.Errorf("%w: missing event_id or event_type", ErrBadEnvelope)
	}
	return env, nil
}

// Unwrap memudahkan decode payload spesifik
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
