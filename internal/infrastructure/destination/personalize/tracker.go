// Package personalize adapts the Amazon Personalize event tracker to the
// recommendation-tracker port.
package personalize

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/personalizeevents"
	"github.com/aws/aws-sdk-go-v2/service/personalizeevents/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/analytics/internal/domain/tracking"
)

// API is the subset of the Personalize events client used by the adapter.
type API interface {
	PutEvents(ctx context.Context, params *personalizeevents.PutEventsInput, optFns ...func(*personalizeevents.Options)) (*personalizeevents.PutEventsOutput, error)
}

// Tracker records item-interaction events against one Personalize event
// tracker. All events from this process share one session id.
type Tracker struct {
	api        API
	trackingID string
	sessionID  string
	logger     *zap.Logger
}

// NewTracker creates a Personalize-backed recommendation tracker.
func NewTracker(api API, trackingID string, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		api:        api,
		trackingID: trackingID,
		sessionID:  uuid.NewString(),
		logger:     logger,
	}
}

// NewFromConfig creates a tracker from a resolved AWS configuration.
func NewFromConfig(awsCfg aws.Config, trackingID string, logger *zap.Logger) *Tracker {
	return NewTracker(personalizeevents.NewFromConfig(awsCfg), trackingID, logger)
}

// RecordEvent submits one event with its JSON-encoded property bag.
func (t *Tracker) RecordEvent(ctx context.Context, event tracking.TrackerEvent) error {
	props, err := json.Marshal(event.Properties)
	if err != nil {
		return fmt.Errorf("personalize: encode properties for %q: %w", event.EventType, err)
	}

	t.logger.Debug("recording tracker event",
		zap.String("event_type", event.EventType),
		zap.String("user_id", event.UserID))

	input := &personalizeevents.PutEventsInput{
		TrackingId: aws.String(t.trackingID),
		UserId:     aws.String(event.UserID),
		SessionId:  aws.String(t.sessionID),
		EventList: []types.Event{
			{
				EventType:  aws.String(event.EventType),
				Properties: aws.String(string(props)),
				SentAt:     aws.Time(time.Now().UTC()),
			},
		},
	}

	if _, err := t.api.PutEvents(ctx, input); err != nil {
		return fmt.Errorf("personalize: put events %q: %w", event.EventType, err)
	}
	return nil
}
