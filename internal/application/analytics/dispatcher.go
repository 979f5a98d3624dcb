// Package analytics is the storefront's analytics dispatch facade. It
// receives typed domain events (user identified, product added to cart,
// order completed, ...) and fans each one out to every configured
// destination, transforming it into the payload shape that destination
// expects. Destinations are independently gated by configuration and a
// failing destination never suppresses its siblings.
package analytics

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/storefront/analytics/internal/domain/customer"
	"github.com/storefront/analytics/internal/domain/experiment"
	"github.com/storefront/analytics/internal/domain/tracking"
	"github.com/storefront/analytics/internal/infrastructure/config"
	"github.com/storefront/analytics/internal/infrastructure/telemetry"
)

// Destination labels used in logs and metrics.
const (
	destEngagement      = "engagement"
	destTracker         = "recommendation_tracker"
	destEventBus        = "event_bus"
	destExperiment      = "ab_testing"
	destRecommendations = "recommendations"
)

const (
	channelEmail = "EMAIL"
	optOutNone   = "NONE"
)

// Deps carries every collaborator the dispatcher fans out to. Any client may
// be nil; a nil client behaves like a disabled destination.
type Deps struct {
	Config  config.DestinationsConfig
	Logger  *zap.Logger
	Metrics *telemetry.DispatchMetrics

	Session tracking.SessionProvider
	State   tracking.SessionState

	Engagement       tracking.EngagementClient
	Tracker          tracking.RecommendationTracker
	EventBus         tracking.EventBusClient
	ProductAnalytics tracking.ProductAnalyticsClient
	WebTag           tracking.WebTag

	Products        tracking.ProductRepository
	Recommendations tracking.RecommendationsRepository

	// NewExperimentClient constructs the A/B-testing client on first use.
	NewExperimentClient experiment.ClientFactory
}

// Dispatcher is the analytics facade. Construct one per process and share it
// by reference; the lazily built experiment client lives as long as the
// dispatcher does.
type Dispatcher struct {
	cfg     config.DestinationsConfig
	logger  *zap.Logger
	metrics *telemetry.DispatchMetrics

	session tracking.SessionProvider
	state   tracking.SessionState

	engagement       tracking.EngagementClient
	tracker          tracking.RecommendationTracker
	eventBus         tracking.EventBusClient
	productAnalytics tracking.ProductAnalyticsClient
	webTag           tracking.WebTag

	products        tracking.ProductRepository
	recommendations tracking.RecommendationsRepository

	newExperimentClient experiment.ClientFactory

	expMu     sync.Mutex
	expClient experiment.Client
}

// NewDispatcher creates the analytics dispatch facade.
func NewDispatcher(deps Deps) *Dispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		cfg:                 deps.Config,
		logger:              logger,
		metrics:             deps.Metrics,
		session:             deps.Session,
		state:               deps.State,
		engagement:          deps.Engagement,
		tracker:             deps.Tracker,
		eventBus:            deps.EventBus,
		productAnalytics:    deps.ProductAnalytics,
		webTag:              deps.WebTag,
		products:            deps.Products,
		recommendations:     deps.Recommendations,
		newExperimentClient: deps.NewExperimentClient,
	}
}

// Enablement checks are pure functions of current configuration, re-evaluated
// on every dispatch call.

func (d *Dispatcher) engagementEnabled() bool {
	return config.Enabled(d.cfg.PinpointAppID) && d.engagement != nil
}

func (d *Dispatcher) recommendationTrackerEnabled() bool {
	return config.Enabled(d.cfg.PersonalizeTrackingID) && d.tracker != nil
}

func (d *Dispatcher) eventBusEnabled() bool {
	return config.Enabled(d.cfg.SegmentWriteKey) && d.eventBus != nil
}

func (d *Dispatcher) productAnalyticsEnabled() bool {
	return config.Enabled(d.cfg.AmplitudeAPIKey) && d.productAnalytics != nil
}

func (d *Dispatcher) abTestingEnabled() bool {
	return config.Enabled(d.cfg.OptimizelySDKKey) && d.newExperimentClient != nil
}

func (d *Dispatcher) webTagEnabled() bool {
	return config.Enabled(d.cfg.GoogleAnalyticsID) && d.webTag != nil
}

// dispatch runs one destination call in isolation: a failure is logged and
// counted but never propagated, so one destination cannot suppress another.
func (d *Dispatcher) dispatch(ctx context.Context, destination, operation string, fn func() error) {
	if err := fn(); err != nil {
		d.logger.Warn("analytics dispatch failed",
			zap.String("destination", destination),
			zap.String("operation", operation),
			zap.Error(err))
		d.metrics.RecordFailed(ctx, destination, operation)
		return
	}
	d.metrics.RecordDispatched(ctx, destination, operation)
}

func (d *Dispatcher) recordEngagement(ctx context.Context, event tracking.Event) {
	if !d.engagementEnabled() {
		return
	}
	d.dispatch(ctx, destEngagement, "record", func() error {
		return d.engagement.Record(ctx, event)
	})
}

func (d *Dispatcher) updateEndpoint(ctx context.Context, update tracking.EndpointUpdate) {
	if !d.engagementEnabled() {
		return
	}
	d.dispatch(ctx, destEngagement, "update_endpoint", func() error {
		return d.engagement.UpdateEndpoint(ctx, update)
	})
}

// trackerUserID returns the user id recommendation-tracker events carry: the
// authenticated id when present, the provisional session id otherwise.
func (d *Dispatcher) trackerUserID(ctx context.Context, user *customer.User) string {
	if user != nil {
		return user.ID
	}
	if d.state == nil {
		return ""
	}
	return d.state.ProvisionalUserID(ctx)
}

// recordTrackerItemEvent records one item-interaction event with the
// recommendation tracker and bumps the session-event counter.
func (d *Dispatcher) recordTrackerItemEvent(ctx context.Context, eventType string, user *customer.User, itemID, discount string) {
	if !d.recommendationTrackerEnabled() {
		return
	}
	d.dispatch(ctx, destTracker, "record", func() error {
		return d.tracker.RecordEvent(ctx, tracking.TrackerEvent{
			EventType: eventType,
			UserID:    d.trackerUserID(ctx, user),
			Properties: map[string]any{
				"itemId":   itemID,
				"discount": discount,
			},
		})
	})
	if d.state != nil {
		d.state.IncrementEventsRecorded(ctx)
	}
}

// ClearUser is called on sign-out. It drops the product-analytics user
// identity and regenerates the anonymous device id so the next shopper on
// this device starts a fresh session.
func (d *Dispatcher) ClearUser() {
	if !d.productAnalyticsEnabled() {
		return
	}
	d.productAnalytics.ClearUserID()
	d.productAnalytics.RegenerateDeviceID()
}

// Identify is called once per successful authentication. It pushes the
// shopper's profile to every enabled destination. Only the engagement
// endpoint-update outcome (or the session lookup failure that precedes it)
// is surfaced; every other destination is fire-and-forget.
func (d *Dispatcher) Identify(ctx context.Context, user *customer.User) error {
	if user == nil {
		return nil
	}

	result := d.identifyEndpoint(ctx, user)

	if d.recommendationTrackerEnabled() {
		d.dispatch(ctx, destTracker, "record", func() error {
			return d.tracker.RecordEvent(ctx, tracking.TrackerEvent{
				EventType:  "Identify",
				UserID:     user.ID,
				Properties: map[string]any{"userId": user.ID},
			})
		})
	}

	if d.eventBusEnabled() {
		d.dispatch(ctx, destEventBus, "identify", func() error {
			return d.eventBus.Identify(ctx, user.ID, map[string]any{
				"username":  user.Username,
				"email":     user.Email,
				"firstName": user.FirstName,
				"lastName":  user.LastName,
				"gender":    user.Gender,
				"age":       user.Age,
				"persona":   user.Persona,
			})
		})
	}

	if d.productAnalyticsEnabled() {
		d.productAnalytics.SetUserID(user.ID)
		// Regenerate so sessions of different shoppers on one device do not
		// get confused.
		d.productAnalytics.RegenerateDeviceID()

		traits := tracking.IdentityTraits{
			Set: map[string]any{
				"username":  user.Username,
				"email":     user.Email,
				"firstName": user.FirstName,
				"lastName":  user.LastName,
				"gender":    user.Gender,
				"age":       user.Age,
				"persona":   user.Persona,
			},
		}
		if user.SignUpDate != "" {
			traits.SetOnce = map[string]any{"signUpDate": user.SignUpDate}
		}
		if user.LastSignInDate != "" {
			traits.Set["lastSignInDate"] = user.LastSignInDate
		}
		d.productAnalytics.Identify(traits)
	}

	if d.webTagEnabled() {
		d.webTag.Set(map[string]any{
			"user_id": user.ID,
			"user_properties": map[string]any{
				"age":     user.Age,
				"gender":  user.Gender,
				"persona": user.Persona,
			},
		})
	}

	return result
}

// identifyEndpoint resolves the verified session and, when it yields an
// email, pushes the shopper's full profile to the engagement platform as an
// endpoint update addressed over the email channel. A session lookup failure
// is returned as-is; no email means an already-resolved no-op.
func (d *Dispatcher) identifyEndpoint(ctx context.Context, user *customer.User) error {
	if !d.engagementEnabled() || d.session == nil {
		return nil
	}

	session, err := d.session.CurrentAuthenticatedUser(ctx)
	if err != nil {
		d.logger.Warn("session lookup failed during identify", zap.Error(err))
		return err
	}
	if session.Email == "" {
		return nil
	}

	update := tracking.EndpointUpdate{
		UserID:      user.ID,
		Address:     session.Email,
		ChannelType: channelEmail,
		OptOut:      optOutNone,
		UserAttributes: map[string][]string{
			"Username":     {user.Username},
			"ProfileEmail": {user.Email},
			"FirstName":    {user.FirstName},
			"LastName":     {user.LastName},
			"Gender":       {user.Gender},
			"Age":          {strconv.Itoa(user.Age)},
			"Persona":      user.PersonaTags(),
		},
		Attributes: map[string][]string{},
	}
	if user.SignUpDate != "" {
		update.Attributes["SignUpDate"] = []string{user.SignUpDate}
	}
	if user.LastSignInDate != "" {
		update.Attributes["LastSignInDate"] = []string{user.LastSignInDate}
	}
	if addr, ok := user.PrimaryAddress(); ok {
		update.Location = &tracking.EndpointLocation{
			City:       addr.City,
			Country:    addr.Country,
			PostalCode: addr.ZipCode,
			Region:     addr.State,
		}
	}

	if err := d.engagement.UpdateEndpoint(ctx, update); err != nil {
		d.metrics.RecordFailed(ctx, destEngagement, "update_endpoint")
		return err
	}
	d.metrics.RecordDispatched(ctx, destEngagement, "update_endpoint")
	return nil
}

// UserSignedUp records a sign-up with the engagement platform and the web tag.
func (d *Dispatcher) UserSignedUp(ctx context.Context, user *customer.User) {
	if user == nil {
		return
	}
	d.recordEngagement(ctx, tracking.Event{
		Name: "UserSignedUp",
		Attributes: map[string]string{
			"userId":     user.ID,
			"signUpDate": user.SignUpDate,
		},
	})
	if d.webTagEnabled() {
		d.webTag.Event("sign_up", map[string]any{"method": "Web"})
	}
}

// UserSignedIn records a sign-in with the engagement platform and the web tag.
func (d *Dispatcher) UserSignedIn(ctx context.Context, user *customer.User) {
	if user == nil {
		return
	}
	d.recordEngagement(ctx, tracking.Event{
		Name: "UserSignedIn",
		Attributes: map[string]string{
			"userId":     user.ID,
			"signInDate": user.LastSignInDate,
		},
	})
	if d.webTagEnabled() {
		d.webTag.Event("login", map[string]any{"method": "Web"})
	}
}

// IdentifyExperiment records an active A/B assignment: identity traits on the
// product-analytics destination, an activation on the A/B-testing client, and
// an exposure event on the web tag.
func (d *Dispatcher) IdentifyExperiment(ctx context.Context, user *customer.User, exp *experiment.Experiment) {
	if exp == nil {
		return
	}

	if d.productAnalyticsEnabled() {
		d.productAnalytics.Identify(tracking.IdentityTraits{
			Set: map[string]any{
				exp.TraitKey():            exp.VariationIndex,
				exp.CorrelationTraitKey(): exp.CorrelationID,
			},
		})
	}

	if user != nil && d.abTestingEnabled() {
		if client := d.experimentClient(); client != nil {
			expected := client.ConfigRevision()
			if d.isDatafileSynced(client, expected) {
				d.dispatch(ctx, destExperiment, "activate", func() error {
					return client.Activate(ctx, exp.ExperimentKey, user.ID)
				})
			}
		}
	}

	if d.webTagEnabled() {
		d.webTag.Event(exp.TagEventName(), map[string]any{
			"feature":   exp.Feature,
			"name":      exp.Name,
			"variation": exp.VariationIndex,
		})
	}
}

// experimentClient returns the A/B-testing client, constructing it on first
// access. At most one instance is ever constructed; a construction failure is
// logged and retried on the next access.
func (d *Dispatcher) experimentClient() experiment.Client {
	d.expMu.Lock()
	defer d.expMu.Unlock()

	if d.expClient == nil && d.abTestingEnabled() {
		client, err := d.newExperimentClient(d.cfg.OptimizelySDKKey)
		if err != nil {
			d.logger.Error("failed to construct experiment client", zap.Error(err))
			return nil
		}
		d.expClient = client
	}
	return d.expClient
}

// isDatafileSynced reports whether the experiment-configuration datafile is
// considered synced: the revision currently loaded no longer matches the
// revision the caller observed.
func (d *Dispatcher) isDatafileSynced(client experiment.Client, observedRevision string) bool {
	if !d.abTestingEnabled() {
		return false
	}
	return client.ConfigRevision() != observedRevision
}

// trackConversion records a conversion event against the shopper's A/B
// assignments when the datafile passes the freshness check.
func (d *Dispatcher) trackConversion(ctx context.Context, eventKey string, user *customer.User) {
	if user == nil || !d.abTestingEnabled() {
		return
	}
	client := d.experimentClient()
	if client == nil {
		return
	}
	expected := client.ConfigRevision()
	if !d.isDatafileSynced(client, expected) {
		return
	}
	d.dispatch(ctx, destExperiment, "track", func() error {
		return client.Track(ctx, eventKey, user.ID)
	})
}
