// Package gtag delivers web-analytics tag calls over the Google Analytics 4
// Measurement Protocol. There is no official Go SDK for GA4, so the adapter
// posts the protocol's JSON payloads directly.
package gtag

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultEndpoint = "https://www.google-analytics.com/mp/collect"

	// maxResponseSize bounds how much of an error response is read back.
	maxResponseSize = 64 * 1024
)

// payload is the Measurement Protocol request body.
type payload struct {
	ClientID       string         `json:"client_id"`
	UserID         string         `json:"user_id,omitempty"`
	UserProperties map[string]any `json:"user_properties,omitempty"`
	Events         []payloadEvent `json:"events"`
}

type payloadEvent struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// Client implements the web-tag port. Set stores the ambient user identity
// and properties; Event posts one event stamped with them. Tag calls cannot
// fail observably, so delivery errors are logged and swallowed.
type Client struct {
	httpClient    *http.Client
	endpoint      string
	measurementID string
	apiSecret     string
	clientID      string
	logger        *zap.Logger

	mu             sync.Mutex
	userID         string
	userProperties map[string]any
}

// Option configures the client.
type Option func(*Client)

// WithEndpoint overrides the collection endpoint (tests).
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a web-tag client for one measurement id.
func NewClient(measurementID, apiSecret string, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		endpoint:      defaultEndpoint,
		measurementID: measurementID,
		apiSecret:     apiSecret,
		clientID:      uuid.NewString(),
		logger:        logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set stores ambient properties stamped onto subsequent events. A "user_id"
// entry pins the user id; a "user_properties" map replaces the ambient
// user properties; other entries merge into them.
func (c *Client) Set(properties map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range properties {
		switch k {
		case "user_id":
			if id, ok := v.(string); ok {
				c.userID = id
			}
		case "user_properties":
			if props, ok := v.(map[string]any); ok {
				c.userProperties = props
			}
		default:
			if c.userProperties == nil {
				c.userProperties = make(map[string]any)
			}
			c.userProperties[k] = v
		}
	}
}

// Event posts one named event with its parameters.
func (c *Client) Event(name string, params map[string]any) {
	c.mu.Lock()
	body := payload{
		ClientID:       c.clientID,
		UserID:         c.userID,
		UserProperties: c.userProperties,
		Events:         []payloadEvent{{Name: name, Params: params}},
	}
	c.mu.Unlock()

	if err := c.post(body); err != nil {
		c.logger.Warn("web tag event dropped",
			zap.String("event", name),
			zap.Error(err))
	}
}

func (c *Client) post(body payload) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("gtag: encode payload: %w", err)
	}

	u := fmt.Sprintf("%s?measurement_id=%s&api_secret=%s",
		c.endpoint, url.QueryEscape(c.measurementID), url.QueryEscape(c.apiSecret))

	resp, err := c.httpClient.Post(u, "application/json", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("gtag: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		return fmt.Errorf("gtag: unexpected status %d: %s", resp.StatusCode, detail)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
	return nil
}
