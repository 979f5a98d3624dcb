// Package amplitudedest adapts the Amplitude SDK to the product-analytics
// port.
package amplitudedest

import (
	"sync"

	"github.com/amplitude/analytics-go/amplitude"
	"github.com/google/uuid"

	"github.com/storefront/analytics/internal/domain/tracking"
)

// Client wraps one Amplitude SDK client. The Go SDK addresses identity per
// event, so the adapter keeps the active user and device ids and stamps them
// onto every outgoing call, mirroring the instance-level identity the
// browser SDK maintains.
type Client struct {
	client amplitude.Client

	mu       sync.Mutex
	userID   string
	deviceID string
}

// NewClient creates an Amplitude-backed product-analytics client.
func NewClient(apiKey string) *Client {
	return &Client{
		client:   amplitude.NewClient(amplitude.NewConfig(apiKey)),
		deviceID: uuid.NewString(),
	}
}

// SetUserID sets the active user id for subsequent calls.
func (c *Client) SetUserID(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
}

// ClearUserID drops the active user identity.
func (c *Client) ClearUserID() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = ""
}

// RegenerateDeviceID mints a fresh anonymous device id so sessions of
// different users do not get confused.
func (c *Client) RegenerateDeviceID() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deviceID = uuid.NewString()
}

func (c *Client) eventOptions() amplitude.EventOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return amplitude.EventOptions{UserID: c.userID, DeviceID: c.deviceID}
}

// Identify queues a batch of identity trait operations.
func (c *Client) Identify(traits tracking.IdentityTraits) {
	identify := amplitude.Identify{}
	for k, v := range traits.Set {
		identify.Set(k, v)
	}
	for k, v := range traits.SetOnce {
		identify.SetOnce(k, v)
	}
	c.client.Identify(identify, c.eventOptions())
}

// LogEvent queues one named event with a flat property bag.
func (c *Client) LogEvent(name string, properties map[string]any) {
	c.client.Track(amplitude.Event{
		EventType:       name,
		EventOptions:    c.eventOptions(),
		EventProperties: properties,
	})
}

// LogRevenue queues one revenue record.
func (c *Client) LogRevenue(record tracking.RevenueRecord) {
	c.client.Revenue(amplitude.Revenue{
		ProductID: record.ProductID,
		Price:     record.Price,
		Quantity:  record.Quantity,
	}, c.eventOptions())
}

// Close flushes queued events and shuts the SDK down.
func (c *Client) Close() {
	c.client.Shutdown()
}
