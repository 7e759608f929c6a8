package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"HotelRevenue/internal/domain/models"
	domrepo "HotelRevenue/internal/domain/repository"
	pkgkafka "HotelRevenue/pkg/kafka"
	applogger "HotelRevenue/pkg/logger"
)

// Status actions accepted on the status topic.
const (
	ActionApprove  = "approve"
	ActionExported = "exported"
)

// StatusMessage is a recommendation state change sent by the PMS or a reviewer.
//
//	{"action":"approve","id":12,"approved_rate":180}
//	{"action":"exported","ids":[12,13]}
type StatusMessage struct {
	Action       string   `json:"action"`
	ID           int64    `json:"id,omitempty"`
	ApprovedRate *float64 `json:"approved_rate,omitempty"`
	IDs          []int64  `json:"ids,omitempty"`
}

// StatusHandler consumes recommendation status messages from Kafka.
type StatusHandler struct {
	topic   string
	uc      *RevenueUseCase
	metrics domrepo.Metrics
	log     *applogger.Logger
}

func NewStatusHandler(topic string, uc *RevenueUseCase, metrics domrepo.Metrics, log *applogger.Logger) *StatusHandler {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if log == nil {
		log = applogger.Nop()
	}
	return &StatusHandler{topic: topic, uc: uc, metrics: metrics, log: log}
}

func (h *StatusHandler) Topic() string { return h.topic }

// Handle applies one status message. Malformed messages return an error so the
// consumer retries and dead-letters them; stale transitions are dropped.
func (h *StatusHandler) Handle(ctx context.Context, b []byte) error {
	var m StatusMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("status_unmarshal")
		return err
	}

	var err error
	switch m.Action {
	case ActionApprove:
		if m.ID <= 0 {
			h.metrics.RecordError("status_invalid")
			return fmt.Errorf("approve message without id")
		}
		_, err = h.uc.Approve(ctx, m.ID, m.ApprovedRate)
	case ActionExported:
		if len(m.IDs) == 0 {
			h.metrics.RecordError("status_invalid")
			return fmt.Errorf("exported message without ids")
		}
		err = h.uc.MarkExported(ctx, m.IDs)
	default:
		h.metrics.RecordError("status_invalid")
		return fmt.Errorf("unknown status action %q", m.Action)
	}

	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrInvalidTransition) {
		h.log.Warn("status message dropped",
			applogger.String("action", m.Action),
			applogger.Int64("id", m.ID),
			applogger.Error(err))
		return nil
	}
	if err != nil {
		h.metrics.RecordError("status_store")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*StatusHandler)(nil)
