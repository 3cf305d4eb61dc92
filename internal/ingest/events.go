package ingest

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Event types attached as message headers.
const (
	EventMediaDelivered = "media.delivered"
	EventMediaQueued    = "media.queued"
)

// MediaEvent is emitted after an upload is delivered or queued.
type MediaEvent struct {
	Profile   string    `json:"profile"`
	Object    string    `json:"object"`
	URLs      []string  `json:"urls,omitempty"`
	JobID     string    `json:"job_id,omitempty"`
	Key       string    `json:"key,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// publishEvent is best effort: event delivery never fails an ingest.
func (s *Service) publishEvent(ctx context.Context, event MediaEvent, eventType string) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	headers := map[string]string{"event_type": eventType}
	key := []byte(event.Profile + "/" + event.Object)
	if err := s.publisher.Publish(ctx, key, payload, headers); err != nil {
		s.logger.Warn("publish media event", zap.String("event_type", eventType), zap.Error(err))
	}
}
