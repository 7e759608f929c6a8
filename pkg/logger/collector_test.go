package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	batches [][]AggregatedLogEntry
	topic   string
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestLogCollectorDeduplicatesAndFlushesOnClose(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		Service:        "revenue",
		TimeInterval:   time.Hour,
		CountThreshold: 10,
		Topic:          "revenue.logs",
		Publisher:      pub,
	})

	fields := map[string]interface{}{"step": "pricing"}
	c.AddLog("error", "upsert failed", fields, "x.go:1")
	c.AddLog("error", "upsert failed", fields, "x.go:1")
	c.AddLog("error", "fit failed", nil, "y.go:2")
	assert.Equal(t, 2, c.Pending())

	c.Close()

	require.Len(t, pub.batches, 1)
	assert.Equal(t, "revenue.logs", pub.topic)
	counts := map[string]int{}
	for _, e := range pub.batches[0] {
		counts[e.Message] = e.Count
		assert.Equal(t, "revenue", e.Service)
	}
	assert.Equal(t, 2, counts["upsert failed"])
	assert.Equal(t, 1, counts["fit failed"])
}

func TestLoggerErrorFeedsCollector(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 50, Publisher: pub})

	l.Error("store unreachable", Error(errors.New("dial tcp")), String("driver", "clickhouse"))
	l.Warn("ignored by collector")
	assert.Equal(t, 1, l.collector.Pending())

	l.RemoveCollector()
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "dial tcp", pub.batches[0][0].Fields["error"])
}
