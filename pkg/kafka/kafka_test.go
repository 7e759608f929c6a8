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

	applogger "HotelRevenue/pkg/logger"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type flakyHandler struct {
	failures int
	calls    int
}

func (h *flakyHandler) Topic() string { return "revenue.status" }

func (h *flakyHandler) Handle(context.Context, []byte) error {
	h.calls++
	if h.calls <= h.failures {
		return errors.New("transient")
	}
	return nil
}

func immediate(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func TestProducer_PublishEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newProducerWithWriter(w, "gzip")

	payload := map[string]interface{}{"room_type_id": 1, "channel": "Directo"}
	require.NoError(t, p.Publish(context.Background(), "revenue.recommendations", []byte("k1"), payload))
	require.NoError(t, p.PublishMessage(context.Background(), "revenue.logs", "raw"))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "revenue.recommendations", w.msgs[0].Topic)
	assert.Equal(t, []byte("k1"), w.msgs[0].Key)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "Directo", decoded["channel"])
	assert.Equal(t, []byte("raw"), w.msgs[1].Value)
}

func TestProducer_PublishWrapsError(t *testing.T) {
	p := newProducerWithWriter(&fakeWriter{err: errors.New("broker down")}, "gzip")
	err := p.PublishBatch(context.Background(), "t", []Message{{Value: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.NoError(t, p.PublishBatch(context.Background(), "t", nil))
}

func TestConsumer_DispatchRetriesThenSucceeds(t *testing.T) {
	c, err := NewConsumer(applogger.Nop(), WithConsumerBrokers([]string{"localhost:9092"}), WithConsumerRetry(3, time.Millisecond, time.Millisecond))
	require.NoError(t, err)
	c.sleep = immediate

	h := &flakyHandler{failures: 2}
	c.RegisterHandler(h)
	require.NoError(t, c.dispatch(context.Background(), kafka.Message{Topic: h.Topic(), Value: []byte("{}")}))
	assert.Equal(t, 3, h.calls)
}

func TestConsumer_DispatchExhaustedGoesToDLQ(t *testing.T) {
	c, err := NewConsumer(applogger.Nop(), WithConsumerBrokers([]string{"localhost:9092"}), WithConsumerRetry(1, time.Millisecond, time.Millisecond))
	require.NoError(t, err)
	c.sleep = immediate
	dlq := &fakeWriter{}
	c.dlq = dlq
	c.cfg.DLQTopic = "revenue.dlq"

	h := &flakyHandler{failures: 10}
	c.RegisterHandler(h)
	err = c.dispatch(context.Background(), kafka.Message{Topic: h.Topic(), Value: []byte("bad")})
	require.Error(t, err)
	assert.Equal(t, 2, h.calls)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "revenue.dlq", dlq.msgs[0].Topic)
	assert.Equal(t, "revenue.status", string(dlq.msgs[0].Headers[0].Value))
}

func TestBackoffWithJitter_Bounds(t *testing.T) {
	for attempt := 1; attempt < 8; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 100*time.Millisecond, attempt)
		assert.LessOrEqual(t, d, 100*time.Millisecond)
		assert.Greater(t, d, time.Duration(0))
	}
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer(ProducerConfig{})
	assert.Error(t, err)
}

func TestProducerConfig_Defaults(t *testing.T) {
	cfg := ProducerConfig{Brokers: []string{"localhost:9092"}, Compression: "lz4"}.withDefaults()
	assert.Equal(t, -1, cfg.RequiredAcks)
	assert.Equal(t, "lz4", cfg.Compression)
	assert.Equal(t, 3, cfg.MaxAttempts)

	w, err := cfg.writer()
	require.NoError(t, err)
	_, hashed := w.Balancer.(*kafka.Hash)
	assert.True(t, hashed)
}
