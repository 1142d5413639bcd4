package event

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/memora-health/memora-api/internal/model"
	"github.com/memora-health/memora-api/pkg/messaging"
	"github.com/memora-health/memora-api/pkg/metrics"
)

// EventService publishes domain events. A nil broker turns it into a no-op
// so deployments without Redis still work.
type EventService struct {
	broker  messaging.Broker
	channel string
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

func NewEventService(broker messaging.Broker, channel string, m *metrics.Metrics, logger zerolog.Logger) *EventService {
	return &EventService{
		broker:  broker,
		channel: channel,
		metrics: m,
		logger:  logger.With().Str("component", "events").Logger(),
		now:     time.Now,
	}
}

func (s *EventService) Emit(ctx context.Context, eventType string, payload interface{}) error {
	if s.broker == nil {
		s.logger.Debug().Str("event_type", eventType).Msg("No broker configured, event dropped")
		return nil
	}

	evt := model.Event{
		ID:         uuid.New(),
		Type:       eventType,
		Payload:    payload,
		OccurredAt: s.now().UTC(),
	}

	if err := s.broker.Publish(ctx, s.channel, evt); err != nil {
		s.record(eventType, metrics.OutcomeFailure)
		s.logger.Error().
			Err(err).
			Str("event_id", evt.ID.String()).
			Str("event_type", eventType).
			Msg("Failed to publish event")
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}

	s.record(eventType, metrics.OutcomeSuccess)
	s.logger.Debug().
		Str("event_id", evt.ID.String()).
		Str("event_type", eventType).
		Msg("Event published")
	return nil
}

func (s *EventService) record(eventType, outcome string) {
	if s.metrics != nil {
		s.metrics.EventsPublished.WithLabelValues(eventType, outcome).Inc()
	}
}
