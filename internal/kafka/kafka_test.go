package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func envelope(t *testing.T, orderID string) orders.Envelope {
	t.Helper()
	env, err := orders.NewEnvelope(orders.EventOrderCreated, "test", orderID,
		orders.OrderCreatedPayload{OrderID: orderID, OrderNumber: "20261018-0001", Total: "33.00", Currency: "USD"},
		time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return env
}

func TestProducerFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 8, zap.NewNop())

	ctx := context.Background()
	require.NoError(t, p.PublishEvent(ctx, orders.TopicOrderCreated, envelope(t, "o-1")))
	require.NoError(t, p.PublishEvent(ctx, orders.TopicOrderCreated, envelope(t, "o-2")))

	p.Start(ctx)
	p.Close()
	p.WaitClosed()

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.msgs, 2)
	assert.True(t, w.closed)
	assert.Equal(t, orders.TopicOrderCreated, w.msgs[0].Topic)
	assert.Equal(t, []byte("o-1"), w.msgs[0].Key)
	assert.Equal(t, "event_type", w.msgs[0].Headers[0].Key)
	assert.Equal(t, []byte(orders.EventOrderCreated), w.msgs[0].Headers[0].Value)

	env, err := UnmarshalEnvelope(w.msgs[1].Value)
	require.NoError(t, err)
	assert.Equal(t, "o-2", env.CorrelationID)

	assert.ErrorIs(t, p.PublishEvent(ctx, orders.TopicOrderCreated, envelope(t, "o-3")), ErrProducerClosed)
}

func TestPublishRespectsContext(t *testing.T) {
	p := newProducer(&fakeWriter{}, 1, zap.NewNop())
	require.NoError(t, p.Publish(context.Background(), kafka.Message{Topic: "t"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Publish(ctx, kafka.Message{Topic: "t"}), context.DeadlineExceeded)
}

func TestUnmarshalEnvelope(t *testing.T) {
	_, err := UnmarshalEnvelope([]byte("{"))
	assert.ErrorIs(t, err, ErrBadEnvelope)

	_, err = UnmarshalEnvelope([]byte(`{"event_type":"OrderCreated"}`))
	assert.ErrorIs(t, err, ErrBadEnvelope)

	b, err := MarshalEnvelope(envelope(t, "o-1"))
	require.NoError(t, err)
	env, err := UnmarshalEnvelope(b)
	require.NoError(t, err)
	payload, err := UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "33.00", payload.Total)

	_, err = UnwrapPayload[orders.OrderCreatedPayload](json.RawMessage(`[]`))
	assert.Error(t, err)
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestConsumerRetriesFailedMessageBeforeMovingOn(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		{Offset: 1, Key: []byte("ok")},
		{Offset: 2, Key: []byte("flaky")},
		{Offset: 3, Key: []byte("ok")},
	}}
	c := newConsumer(r, 1, zap.NewNop())
	c.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu       sync.Mutex
		seen     []int64
		failures = 2
	)
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(_ context.Context, m kafka.Message) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, m.Offset)
			if string(m.Key) == "flaky" && failures > 0 {
				failures--
				return errors.New("boom")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool { return len(r.commits()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2, 3}, r.commits())
	mu.Lock()
	assert.Equal(t, []int64{1, 2, 2, 2, 3}, seen)
	mu.Unlock()
	assert.True(t, r.closed)
}

func TestConsumerKeepsPartitionOrder(t *testing.T) {
	var queue []kafka.Message
	for off := int64(1); off <= 4; off++ {
		for p := 0; p < 3; p++ {
			queue = append(queue, kafka.Message{Partition: p, Offset: off})
		}
	}
	r := &fakeReader{queue: queue}
	c := newConsumer(r, 2, zap.NewNop())
	c.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu     sync.Mutex
		seen   = map[int][]int64{}
		failed = map[int]bool{}
	)
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(_ context.Context, m kafka.Message) error {
			mu.Lock()
			defer mu.Unlock()
			if m.Offset == 2 && !failed[m.Partition] {
				failed[m.Partition] = true
				return errors.New("boom")
			}
			seen[m.Partition] = append(seen[m.Partition], m.Offset)
			return nil
		})
	}()

	require.Eventually(t, func() bool { return len(r.commits()) == len(queue) }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	for p := 0; p < 3; p++ {
		assert.Equal(t, []int64{1, 2, 3, 4}, seen[p], "partition %d", p)
	}
}

func TestConsumerStopsRetryingOnShutdown(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Offset: 7}}}
	c := newConsumer(r, 1, zap.NewNop())
	c.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	calls := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(context.Context, kafka.Message) error {
			select {
			case calls <- struct{}{}:
			default:
			}
			return errors.New("down")
		})
	}()

	<-calls
	<-calls
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Empty(t, r.commits())
}
