// Package tracking defines the ports the analytics dispatcher fans out to:
// one interface per destination plus the payload shapes each destination
// expects. Infrastructure adapters implement these against the real SDKs.
package tracking

import "context"

// Event is a named engagement-platform event with attribute and metric bags.
type Event struct {
	Name       string
	Attributes map[string]string
	Metrics    map[string]float64
}

// EndpointLocation is the location block of an endpoint update.
type EndpointLocation struct {
	City       string
	Country    string
	PostalCode string
	Region     string
}

// EndpointUpdate is a partial engagement-platform endpoint (profile) update.
// Zero-valued fields are omitted from the outbound request.
type EndpointUpdate struct {
	UserID         string
	Address        string
	ChannelType    string
	OptOut         string
	UserAttributes map[string][]string
	Attributes     map[string][]string
	Metrics        map[string]float64
	Location       *EndpointLocation
}

// EngagementClient pushes named events and endpoint updates to the
// engagement platform.
type EngagementClient interface {
	Record(ctx context.Context, event Event) error
	UpdateEndpoint(ctx context.Context, update EndpointUpdate) error
}

// TrackerEvent is one recommendation-tracker event with a flat property bag.
type TrackerEvent struct {
	EventType  string
	UserID     string
	Properties map[string]any
}

// RecommendationTracker records item-interaction events for the recommender.
type RecommendationTracker interface {
	RecordEvent(ctx context.Context, event TrackerEvent) error
}

// EventBusClient is the generic event-bus integration (identify + track).
type EventBusClient interface {
	Identify(ctx context.Context, userID string, traits map[string]any) error
	Track(ctx context.Context, name string, properties map[string]any) error
}

// IdentityTraits is a batch of product-analytics identity operations.
// SetOnce entries only take effect the first time the key is seen.
type IdentityTraits struct {
	Set     map[string]any
	SetOnce map[string]any
}

// RevenueRecord is one product-analytics revenue entry for an order line.
type RevenueRecord struct {
	ProductID string
	Price     float64
	Quantity  int
}

// ProductAnalyticsClient mirrors the product-analytics SDK instance surface.
// Calls are queued by the SDK; delivery failures are not observable here.
type ProductAnalyticsClient interface {
	SetUserID(userID string)
	ClearUserID()
	RegenerateDeviceID()
	Identify(traits IdentityTraits)
	LogEvent(name string, properties map[string]any)
	LogRevenue(record RevenueRecord)
}

// WebTag mirrors the web-analytics tag function (set + event). Tag calls
// cannot fail observably; adapters swallow and log delivery errors.
type WebTag interface {
	Set(properties map[string]any)
	Event(name string, params map[string]any)
}
