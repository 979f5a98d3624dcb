// Package segmentdest adapts the Segment SDK to the generic event-bus port.
package segmentdest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	segment "gopkg.in/segmentio/analytics-go.v3"
)

// Client queues identify and track calls on the Segment SDK. The SDK batches
// and delivers in the background; Close flushes the queue.
//
// Segment requires every message to carry a user id or an anonymous id. The
// adapter remembers the last identified user and falls back to a stable
// anonymous id before identification, matching the ambient identity the
// browser snippet keeps.
type Client struct {
	client      segment.Client
	anonymousID string
	logger      *zap.Logger

	mu     sync.Mutex
	userID string
}

// NewClient creates a Segment-backed event-bus client for the write key.
func NewClient(writeKey string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sc, err := segment.NewWithConfig(writeKey, segment.Config{})
	if err != nil {
		return nil, fmt.Errorf("segment: create client: %w", err)
	}
	return &Client{
		client:      sc,
		anonymousID: uuid.NewString(),
		logger:      logger,
	}, nil
}

// Identify queues an identify call and pins the user id for later tracks.
func (c *Client) Identify(ctx context.Context, userID string, traits map[string]any) error {
	t := segment.NewTraits()
	for k, v := range traits {
		t.Set(k, v)
	}

	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()

	if err := c.client.Enqueue(segment.Identify{UserId: userID, Traits: t}); err != nil {
		return fmt.Errorf("segment: identify: %w", err)
	}
	return nil
}

// Track queues a track call with a flat property bag.
func (c *Client) Track(ctx context.Context, name string, properties map[string]any) error {
	p := segment.NewProperties()
	for k, v := range properties {
		p.Set(k, v)
	}

	msg := segment.Track{Event: name, Properties: p}

	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()
	if userID != "" {
		msg.UserId = userID
	} else {
		msg.AnonymousId = c.anonymousID
	}

	if err := c.client.Enqueue(msg); err != nil {
		return fmt.Errorf("segment: track %q: %w", name, err)
	}
	return nil
}

// Close flushes queued messages and shuts the SDK down.
func (c *Client) Close() error {
	return c.client.Close()
}
