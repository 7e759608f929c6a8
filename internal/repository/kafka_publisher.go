package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"HotelRevenue/internal/domain/models"
	domrepo "HotelRevenue/internal/domain/repository"
	"HotelRevenue/pkg/kafka"
)

// Event types carried in the envelope's type field.
const (
	EventRecommendationUpserted = "recommendation.upserted"
	EventTariffsExported        = "tariffs.exported"
)

// Event is the JSON envelope written to every topic.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	RunID      string      `json:"run_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// ExportEvent is the payload of a tariffs.exported event.
type ExportEvent struct {
	Path string  `json:"path"`
	Rows int     `json:"rows"`
	IDs  []int64 `json:"ids"`
}

type batchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []kafka.Message) error
	Close() error
}

// KafkaPublisher emits one event per recommendation keyed by room type so a
// room's updates stay ordered within a partition.
type KafkaPublisher struct {
	producer             batchPublisher
	recommendationsTopic string
	exportsTopic         string
	now                  func() time.Time
}

func NewKafkaPublisher(p *kafka.Producer, recommendationsTopic, exportsTopic string) *KafkaPublisher {
	return newKafkaPublisher(p, recommendationsTopic, exportsTopic)
}

func newKafkaPublisher(p batchPublisher, recommendationsTopic, exportsTopic string) *KafkaPublisher {
	return &KafkaPublisher{
		producer:             p,
		recommendationsTopic: recommendationsTopic,
		exportsTopic:         exportsTopic,
		now:                  func() time.Time { return time.Now().UTC() },
	}
}

var _ domrepo.EventPublisher = (*KafkaPublisher)(nil)

func (p *KafkaPublisher) PublishRecommendations(ctx context.Context, runID string, recs []models.TariffRecommendation) error {
	if len(recs) == 0 {
		return nil
	}
	at := p.now()
	msgs := make([]kafka.Message, len(recs))
	for i, r := range recs {
		msgs[i] = kafka.Message{
			Key: []byte(strconv.FormatInt(r.RoomTypeID, 10)),
			Value: Event{
				ID:         uuid.NewString(),
				Type:       EventRecommendationUpserted,
				RunID:      runID,
				OccurredAt: at,
				Payload:    r,
			},
		}
	}
	return p.producer.PublishBatch(ctx, p.recommendationsTopic, msgs)
}

func (p *KafkaPublisher) PublishExport(ctx context.Context, summary models.ExportSummary, ids []int64) error {
	ev := Event{
		ID:         uuid.NewString(),
		Type:       EventTariffsExported,
		OccurredAt: p.now(),
		Payload:    ExportEvent{Path: summary.Path, Rows: summary.Rows, IDs: ids},
	}
	return p.producer.PublishBatch(ctx, p.exportsTopic, []kafka.Message{{Value: ev}})
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher is used when kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishRecommendations(context.Context, string, []models.TariffRecommendation) error {
	return nil
}
func (NoopPublisher) PublishExport(context.Context, models.ExportSummary, []int64) error { return nil }
func (NoopPublisher) Close() error                                                       { return nil }
