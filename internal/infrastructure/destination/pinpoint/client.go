// Package pinpoint adapts Amazon Pinpoint to the engagement-platform port.
package pinpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/pinpoint"
	"github.com/aws/aws-sdk-go-v2/service/pinpoint/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/analytics/internal/domain/tracking"
)

// API is the subset of the Pinpoint client used by the adapter.
type API interface {
	PutEvents(ctx context.Context, params *pinpoint.PutEventsInput, optFns ...func(*pinpoint.Options)) (*pinpoint.PutEventsOutput, error)
	UpdateEndpoint(ctx context.Context, params *pinpoint.UpdateEndpointInput, optFns ...func(*pinpoint.Options)) (*pinpoint.UpdateEndpointOutput, error)
}

// Client pushes events and endpoint updates to one Pinpoint application.
// Every record for this device shares a single endpoint id, minted at
// construction when the host does not supply one.
type Client struct {
	api        API
	appID      string
	endpointID string
	logger     *zap.Logger
}

// NewClient creates a Pinpoint-backed engagement client.
func NewClient(api API, appID, endpointID string, logger *zap.Logger) *Client {
	if endpointID == "" {
		endpointID = uuid.NewString()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{api: api, appID: appID, endpointID: endpointID, logger: logger}
}

// NewFromConfig creates a client from a resolved AWS configuration.
func NewFromConfig(awsCfg aws.Config, appID, endpointID string, logger *zap.Logger) *Client {
	return NewClient(pinpoint.NewFromConfig(awsCfg), appID, endpointID, logger)
}

// EndpointID returns the endpoint id all records are attributed to.
func (c *Client) EndpointID() string {
	return c.endpointID
}

// Record submits one named event with its attribute and metric bags.
func (c *Client) Record(ctx context.Context, event tracking.Event) error {
	c.logger.Debug("recording engagement event",
		zap.String("event", event.Name),
		zap.String("endpoint_id", c.endpointID))

	input := &pinpoint.PutEventsInput{
		ApplicationId: aws.String(c.appID),
		EventsRequest: &types.EventsRequest{
			BatchItem: map[string]types.EventsBatch{
				c.endpointID: {
					Endpoint: &types.PublicEndpoint{},
					Events: map[string]types.Event{
						uuid.NewString(): {
							EventType:  aws.String(event.Name),
							Attributes: event.Attributes,
							Metrics:    event.Metrics,
							Timestamp:  aws.String(time.Now().UTC().Format(time.RFC3339)),
						},
					},
				},
			},
		},
	}

	if _, err := c.api.PutEvents(ctx, input); err != nil {
		return fmt.Errorf("pinpoint: put events %q: %w", event.Name, err)
	}
	return nil
}

// UpdateEndpoint pushes a partial endpoint (profile) update. Only fields set
// on the update are sent.
func (c *Client) UpdateEndpoint(ctx context.Context, update tracking.EndpointUpdate) error {
	req := &types.EndpointRequest{}

	if update.Address != "" {
		req.Address = aws.String(update.Address)
	}
	if update.ChannelType != "" {
		req.ChannelType = types.ChannelType(update.ChannelType)
	}
	if update.OptOut != "" {
		req.OptOut = aws.String(update.OptOut)
	}
	if update.UserID != "" || len(update.UserAttributes) > 0 {
		req.User = &types.EndpointUser{}
		if update.UserID != "" {
			req.User.UserId = aws.String(update.UserID)
		}
		if len(update.UserAttributes) > 0 {
			req.User.UserAttributes = update.UserAttributes
		}
	}
	if len(update.Attributes) > 0 {
		req.Attributes = update.Attributes
	}
	if len(update.Metrics) > 0 {
		req.Metrics = update.Metrics
	}
	if loc := update.Location; loc != nil {
		req.Location = &types.EndpointLocation{
			City:       aws.String(loc.City),
			Country:    aws.String(loc.Country),
			PostalCode: aws.String(loc.PostalCode),
			Region:     aws.String(loc.Region),
		}
	}

	input := &pinpoint.UpdateEndpointInput{
		ApplicationId:   aws.String(c.appID),
		EndpointId:      aws.String(c.endpointID),
		EndpointRequest: req,
	}

	if _, err := c.api.UpdateEndpoint(ctx, input); err != nil {
		return fmt.Errorf("pinpoint: update endpoint: %w", err)
	}
	return nil
}
