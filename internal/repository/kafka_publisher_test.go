package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HotelRevenue/internal/domain/models"
	"HotelRevenue/pkg/kafka"
)

type captureBatch struct {
	topic string
	msgs  []kafka.Message
}

func (c *captureBatch) PublishBatch(_ context.Context, topic string, messages []kafka.Message) error {
	c.topic = topic
	c.msgs = append(c.msgs, messages...)
	return nil
}

func (c *captureBatch) Close() error { return nil }

func TestKafkaPublisher_RecommendationsKeyedByRoom(t *testing.T) {
	c := &captureBatch{}
	p := newKafkaPublisher(c, "revenue.recommendations", "revenue.exports")

	err := p.PublishRecommendations(context.Background(), "run-1", []models.TariffRecommendation{
		{RoomTypeID: 3, Channel: "Directo", RecommendedRate: 247000},
		{RoomTypeID: 4, Channel: "Booking", RecommendedRate: 180000},
	})
	require.NoError(t, err)
	assert.Equal(t, "revenue.recommendations", c.topic)
	require.Len(t, c.msgs, 2)
	assert.Equal(t, []byte("3"), c.msgs[0].Key)

	ev, ok := c.msgs[0].Value.(Event)
	require.True(t, ok)
	assert.Equal(t, EventRecommendationUpserted, ev.Type)
	assert.Equal(t, "run-1", ev.RunID)
	_, err = uuid.Parse(ev.ID)
	assert.NoError(t, err)
}

func TestKafkaPublisher_EmptyBatchIsSkipped(t *testing.T) {
	c := &captureBatch{}
	p := newKafkaPublisher(c, "r", "e")
	require.NoError(t, p.PublishRecommendations(context.Background(), "run", nil))
	assert.Empty(t, c.msgs)

	require.NoError(t, p.PublishExport(context.Background(), models.ExportSummary{Path: "x.xlsx", Rows: 2}, []int64{1, 2}))
	assert.Equal(t, "e", c.topic)
	require.Len(t, c.msgs, 1)
	assert.Equal(t, []int64{1, 2}, c.msgs[0].Value.(Event).Payload.(ExportEvent).IDs)
}
