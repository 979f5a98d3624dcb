// Package optimizelydest adapts the Optimizely SDK to the experiment-client
// port.
package optimizelydest

import (
	"context"
	"fmt"

	optimizely "github.com/optimizely/go-sdk/pkg/client"
	"github.com/optimizely/go-sdk/pkg/entities"
	"go.uber.org/zap"

	"github.com/storefront/analytics/internal/domain/experiment"
)

// Client wraps one Optimizely client instance.
type Client struct {
	client *optimizely.OptimizelyClient
	logger *zap.Logger
}

// NewFactory returns an experiment.ClientFactory backed by the Optimizely
// SDK. The SDK key selects the experiment-configuration datafile; the SDK
// polls for datafile updates on its own.
func NewFactory(logger *zap.Logger) experiment.ClientFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(sdkKey string) (experiment.Client, error) {
		factory := &optimizely.OptimizelyFactory{SDKKey: sdkKey}
		cl, err := factory.Client()
		if err != nil {
			return nil, fmt.Errorf("optimizely: create client: %w", err)
		}
		logger.Info("optimizely client initialized")
		return &Client{client: cl, logger: logger}, nil
	}
}

// ConfigRevision returns the revision of the currently loaded datafile.
func (c *Client) ConfigRevision() string {
	cfg := c.client.GetOptimizelyConfig()
	if cfg == nil {
		return ""
	}
	return cfg.Revision
}

// Activate buckets the user into the experiment and records an impression.
func (c *Client) Activate(ctx context.Context, experimentKey, userID string) error {
	variation, err := c.client.Activate(experimentKey, entities.UserContext{ID: userID})
	if err != nil {
		return fmt.Errorf("optimizely: activate %q: %w", experimentKey, err)
	}
	c.logger.Debug("experiment activated",
		zap.String("experiment", experimentKey),
		zap.String("variation", variation))
	return nil
}

// Track records a conversion event against the user's assignments.
func (c *Client) Track(ctx context.Context, eventKey, userID string) error {
	if err := c.client.Track(eventKey, entities.UserContext{ID: userID}, nil); err != nil {
		return fmt.Errorf("optimizely: track %q: %w", eventKey, err)
	}
	return nil
}
