package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/analytics/internal/domain/commerce"
	"github.com/storefront/analytics/internal/domain/customer"
	"github.com/storefront/analytics/internal/domain/experiment"
	"github.com/storefront/analytics/internal/domain/tracking"
	"github.com/storefront/analytics/internal/infrastructure/config"
)

type fakeEngagement struct {
	events    []tracking.Event
	updates   []tracking.EndpointUpdate
	recordErr error
	updateErr error
}

func (f *fakeEngagement) Record(ctx context.Context, event tracking.Event) error {
	f.events = append(f.events, event)
	return f.recordErr
}

func (f *fakeEngagement) UpdateEndpoint(ctx context.Context, update tracking.EndpointUpdate) error {
	f.updates = append(f.updates, update)
	return f.updateErr
}

type fakeTracker struct {
	events []tracking.TrackerEvent
	err    error
}

func (f *fakeTracker) RecordEvent(ctx context.Context, event tracking.TrackerEvent) error {
	f.events = append(f.events, event)
	return f.err
}

type fakeEventBus struct {
	identifies []string
	tracks     []string
	trackProps []map[string]any
}

func (f *fakeEventBus) Identify(ctx context.Context, userID string, traits map[string]any) error {
	f.identifies = append(f.identifies, userID)
	return nil
}

func (f *fakeEventBus) Track(ctx context.Context, name string, properties map[string]any) error {
	f.tracks = append(f.tracks, name)
	f.trackProps = append(f.trackProps, properties)
	return nil
}

type fakeProductAnalytics struct {
	userIDs     []string
	cleared     int
	regenerated int
	identifies  []tracking.IdentityTraits
	events      []string
	eventProps  []map[string]any
	revenues    []tracking.RevenueRecord
}

func (f *fakeProductAnalytics) SetUserID(userID string) { f.userIDs = append(f.userIDs, userID) }
func (f *fakeProductAnalytics) ClearUserID()            { f.cleared++ }
func (f *fakeProductAnalytics) RegenerateDeviceID()     { f.regenerated++ }
func (f *fakeProductAnalytics) Identify(traits tracking.IdentityTraits) {
	f.identifies = append(f.identifies, traits)
}
func (f *fakeProductAnalytics) LogEvent(name string, properties map[string]any) {
	f.events = append(f.events, name)
	f.eventProps = append(f.eventProps, properties)
}
func (f *fakeProductAnalytics) LogRevenue(record tracking.RevenueRecord) {
	f.revenues = append(f.revenues, record)
}

func (f *fakeProductAnalytics) totalCalls() int {
	return len(f.userIDs) + f.cleared + f.regenerated + len(f.identifies) + len(f.events) + len(f.revenues)
}

type fakeWebTag struct {
	sets   []map[string]any
	events []string
	params []map[string]any
}

func (f *fakeWebTag) Set(properties map[string]any) { f.sets = append(f.sets, properties) }
func (f *fakeWebTag) Event(name string, params map[string]any) {
	f.events = append(f.events, name)
	f.params = append(f.params, params)
}

type fakeSession struct {
	session tracking.Session
	err     error
}

func (f *fakeSession) CurrentAuthenticatedUser(ctx context.Context) (tracking.Session, error) {
	return f.session, f.err
}

type fakeState struct {
	provisionalID string
	counter       int64
}

func (f *fakeState) ProvisionalUserID(ctx context.Context) string { return f.provisionalID }
func (f *fakeState) IncrementEventsRecorded(ctx context.Context)  { f.counter++ }
func (f *fakeState) EventsRecorded(ctx context.Context) int64     { return f.counter }

type fakeExperimentClient struct {
	revisions   []string
	idx         int
	activations []string
	tracks      []string
}

func (c *fakeExperimentClient) ConfigRevision() string {
	if len(c.revisions) == 0 {
		return ""
	}
	if c.idx >= len(c.revisions) {
		return c.revisions[len(c.revisions)-1]
	}
	r := c.revisions[c.idx]
	c.idx++
	return r
}

func (c *fakeExperimentClient) Activate(ctx context.Context, experimentKey, userID string) error {
	c.activations = append(c.activations, experimentKey+":"+userID)
	return nil
}

func (c *fakeExperimentClient) Track(ctx context.Context, eventKey, userID string) error {
	c.tracks = append(c.tracks, eventKey+":"+userID)
	return nil
}

type fakeProducts struct {
	product tracking.ProductSnapshot
	err     error
}

func (f *fakeProducts) GetProduct(ctx context.Context, id string) (tracking.ProductSnapshot, error) {
	return f.product, f.err
}

type fakeRecommendations struct {
	outcomes []string
}

func (f *fakeRecommendations) RecordExperimentOutcome(ctx context.Context, correlationID string) error {
	f.outcomes = append(f.outcomes, correlationID)
	return nil
}

type fixture struct {
	engagement       *fakeEngagement
	tracker          *fakeTracker
	eventBus         *fakeEventBus
	productAnalytics *fakeProductAnalytics
	webTag           *fakeWebTag
	session          *fakeSession
	state            *fakeState
	expClient        *fakeExperimentClient
	constructions    int
	products         *fakeProducts
	recommendations  *fakeRecommendations
	dispatcher       *Dispatcher
}

func allEnabledConfig() config.DestinationsConfig {
	return config.DestinationsConfig{
		PinpointAppID:         "app-1",
		PersonalizeTrackingID: "tracking-1",
		SegmentWriteKey:       "wk-1",
		AmplitudeAPIKey:       "ak-1",
		OptimizelySDKKey:      "sdk-1",
		GoogleAnalyticsID:     "G-1",
		WebRootURL:            "https://shop.example.com",
	}
}

func newFixture(t *testing.T, cfg config.DestinationsConfig) *fixture {
	t.Helper()
	f := &fixture{
		engagement:       &fakeEngagement{},
		tracker:          &fakeTracker{},
		eventBus:         &fakeEventBus{},
		productAnalytics: &fakeProductAnalytics{},
		webTag:           &fakeWebTag{},
		session:          &fakeSession{session: tracking.Session{Email: "shopper@example.com"}},
		state:            &fakeState{provisionalID: "anon-1"},
		expClient:        &fakeExperimentClient{revisions: []string{"1", "2"}},
		products:         &fakeProducts{},
		recommendations:  &fakeRecommendations{},
	}
	f.dispatcher = NewDispatcher(Deps{
		Config:           cfg,
		Session:          f.session,
		State:            f.state,
		Engagement:       f.engagement,
		Tracker:          f.tracker,
		EventBus:         f.eventBus,
		ProductAnalytics: f.productAnalytics,
		WebTag:           f.webTag,
		Products:         f.products,
		Recommendations:  f.recommendations,
		NewExperimentClient: func(sdkKey string) (experiment.Client, error) {
			f.constructions++
			return f.expClient, nil
		},
	})
	return f
}

func testUser() *customer.User {
	return &customer.User{
		ID:        "u-1",
		Username:  "shopper",
		Email:     "shopper@example.com",
		FirstName: "Alex",
		LastName:  "Smith",
		Gender:    "F",
		Age:       28,
		Persona:   "apparel_footwear",
	}
}

func testProduct(price string) *commerce.Product {
	return &commerce.Product{
		ID:       "p-1",
		Name:     "Trail Shoe",
		Category: "footwear",
		Image:    "trail-shoe.jpg",
		Price:    decimal.RequireFromString(price),
	}
}

func TestEnablement(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"absent", "", false},
		{"disabled sentinel", "NONE", false},
		{"configured", "key-1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, config.DestinationsConfig{
				PinpointAppID:         tt.value,
				PersonalizeTrackingID: tt.value,
				SegmentWriteKey:       tt.value,
				AmplitudeAPIKey:       tt.value,
				OptimizelySDKKey:      tt.value,
				GoogleAnalyticsID:     tt.value,
			})
			d := f.dispatcher
			assert.Equal(t, tt.want, d.engagementEnabled())
			assert.Equal(t, tt.want, d.recommendationTrackerEnabled())
			assert.Equal(t, tt.want, d.eventBusEnabled())
			assert.Equal(t, tt.want, d.productAnalyticsEnabled())
			assert.Equal(t, tt.want, d.abTestingEnabled())
			assert.Equal(t, tt.want, d.webTagEnabled())
		})
	}
}

func TestIdentify_NilUser(t *testing.T) {
	f := newFixture(t, allEnabledConfig())

	err := f.dispatcher.Identify(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, f.engagement.updates)
	assert.Empty(t, f.tracker.events)
	assert.Empty(t, f.eventBus.identifies)
	assert.Zero(t, f.productAnalytics.totalCalls())
	assert.Empty(t, f.webTag.sets)
}

func TestIdentify(t *testing.T) {
	f := newFixture(t, allEnabledConfig())
	user := testUser()
	user.SignUpDate = "2026-01-15"
	user.LastSignInDate = "2026-08-20"
	user.Addresses = []customer.Address{{City: "Seattle", Country: "US", ZipCode: "98101", State: "WA"}}

	err := f.dispatcher.Identify(context.Background(), user)
	require.NoError(t, err)

	require.Len(t, f.engagement.updates, 1)
	update := f.engagement.updates[0]
	assert.Equal(t, "u-1", update.UserID)
	assert.Equal(t, "shopper@example.com", update.Address)
	assert.Equal(t, "EMAIL", update.ChannelType)
	assert.Equal(t, "NONE", update.OptOut)
	assert.Equal(t, []string{"apparel", "footwear"}, update.UserAttributes["Persona"])
	assert.Equal(t, []string{"28"}, update.UserAttributes["Age"])
	assert.Equal(t, []string{"2026-01-15"}, update.Attributes["SignUpDate"])
	require.NotNil(t, update.Location)
	assert.Equal(t, "98101", update.Location.PostalCode)
	assert.Equal(t, "WA", update.Location.Region)

	require.Len(t, f.tracker.events, 1)
	assert.Equal(t, "Identify", f.tracker.events[0].EventType)
	assert.Equal(t, "u-1", f.tracker.events[0].UserID)

	assert.Equal(t, []string{"u-1"}, f.eventBus.identifies)

	assert.Equal(t, []string{"u-1"}, f.productAnalytics.userIDs)
	assert.Equal(t, 1, f.productAnalytics.regenerated)
	require.Len(t, f.productAnalytics.identifies, 1)
	traits := f.productAnalytics.identifies[0]
	assert.Equal(t, "2026-01-15", traits.SetOnce["signUpDate"])
	assert.Equal(t, "2026-08-20", traits.Set["lastSignInDate"])

	require.Len(t, f.webTag.sets, 1)
	assert.Equal(t, "u-1", f.webTag.sets[0]["user_id"])
}

func TestIdentify_SessionWithoutEmail(t *testing.T) {
	f := newFixture(t, allEnabledConfig())
	f.session.session = tracking.Session{}

	err := f.dispatcher.Identify(context.Background(), testUser())

	require.NoError(t, err)
	assert.Empty(t, f.engagement.updates)
	assert.Len(t, f.tracker.events, 1)
	assert.Len(t, f.eventBus.identifies, 1)
	assert.Len(t, f.productAnalytics.identifies, 1)
	assert.Len(t, f.webTag.sets, 1)
}

func TestIdentify_SessionFailure(t *testing.T) {
	f := newFixture(t, allEnabledConfig())
	f.session.err = errors.New("token expired")

	err := f.dispatcher.Identify(context.Background(), testUser())

	require.Error(t, err)
	assert.Empty(t, f.engagement.updates)
	// Remaining destinations dispatch despite the surfaced session failure
	assert.Len(t, f.tracker.events, 1)
	assert.Len(t, f.eventBus.identifies, 1)
	assert.Len(t, f.productAnalytics.identifies, 1)
	assert.Len(t, f.webTag.sets, 1)
}

func TestClearUser(t *testing.T) {
	f := newFixture(t, allEnabledConfig())

	f.dispatcher.ClearUser()

	assert.Equal(t, 1, f.productAnalytics.cleared)
	assert.Equal(t, 1, f.productAnalytics.regenerated)
}

func TestClearUser_ProductAnalyticsDisabled(t *testing.T) {
	cfg := allEnabledConfig()
	cfg.AmplitudeAPIKey = "NONE"
	f := newFixture(t, cfg)

	f.dispatcher.ClearUser()

	assert.Zero(t, f.productAnalytics.totalCalls())
}

func TestUserSignedIn(t *testing.T) {
	f := newFixture(t, allEnabledConfig())
	user := testUser()
	user.LastSignInDate = "2026-08-20"

	f.dispatcher.UserSignedIn(context.Background(), user)

	require.Len(t, f.engagement.events, 1)
	assert.Equal(t, "UserSignedIn", f.engagement.events[0].Name)
	assert.Equal(t, "2026-08-20", f.engagement.events[0].Attributes["signInDate"])
	assert.Equal(t, []string{"login"}, f.webTag.events)
	assert.Equal(t, "Web", f.webTag.params[0]["method"])
}

func TestUserSignedUp_NilUser(t *testing.T) {
	f := newFixture(t, allEnabledConfig())

	f.dispatcher.UserSignedUp(context.Background(), nil)

	assert.Empty(t, f.engagement.events)
	assert.Empty(t, f.webTag.events)
}

func TestIdentifyExperiment(t *testing.T) {
	f := newFixture(t, allEnabledConfig())
	exp := &experiment.Experiment{
		Feature:        "home",
		Name:           "hero",
		VariationIndex: 1,
		CorrelationID:  "c-1",
		ExperimentKey:  "home_hero",
	}

	f.dispatcher.IdentifyExperiment(context.Background(), testUser(), exp)

	require.Len(t, f.productAnalytics.identifies, 1)
	traits := f.productAnalytics.identifies[0]
	assert.Equal(t, 1, traits.Set["home.hero"])
	assert.Equal(t, "c-1", traits.Set["home.hero.id"])

	// Revisions "1" then "2": the loaded revision moved past the observed one,
	// so the datafile counts as synced and the experiment activates.
	assert.Equal(t, []string{"home_hero:u-1"}, f.expClient.activations)

	require.Equal(t, []string{"exp_home"}, f.webTag.events)
	assert.Equal(t, "hero", f.webTag.params[0]["name"])
	assert.Equal(t, 1, f.webTag.params[0]["variation"])
}

func TestIdentifyExperiment_StableRevisionSkipsActivation(t *testing.T) {
	f := newFixture(t, allEnabledConfig())
	f.expClient.revisions = []string{"5", "5"}

	f.dispatcher.IdentifyExperiment(context.Background(), testUser(), &experiment.Experiment{
		Feature:       "home",
		Name:          "hero",
		ExperimentKey: "home_hero",
	})

	assert.Empty(t, f.expClient.activations)
}

func TestExperimentClient_ConstructedOnce(t *testing.T) {
	f := newFixture(t, allEnabledConfig())

	first := f.dispatcher.experimentClient()
	second := f.dispatcher.experimentClient()

	require.NotNil(t, first)
	assert.Same(t, first.(*fakeExperimentClient), second.(*fakeExperimentClient))
	assert.Equal(t, 1, f.constructions)
}

func TestExperimentClient_ConstructionFailure(t *testing.T) {
	f := newFixture(t, allEnabledConfig())
	d := f.dispatcher
	d.newExperimentClient = func(sdkKey string) (experiment.Client, error) {
		return nil, errors.New("datafile unavailable")
	}

	assert.Nil(t, d.experimentClient())

	// Must not panic when the accessor keeps failing
	d.IdentifyExperiment(context.Background(), testUser(), &experiment.Experiment{
		Feature:       "home",
		Name:          "hero",
		ExperimentKey: "home_hero",
	})
}

func TestProductAddedToCart_RoundsPrice(t *testing.T) {
	f := newFixture(t, allEnabledConfig())
	cart := &commerce.Cart{ID: "cart-1", Items: []commerce.CartItem{{ProductID: "p-1", Quantity: 2}}}

	f.dispatcher.ProductAddedToCart(context.Background(), testUser(), cart, testProduct("19.999"), 2, "home", "c-1")

	require.Len(t, f.engagement.events, 1)
	assert.Equal(t, "ProductAdded", f.engagement.events[0].Name)
	assert.Equal(t, 20.0, f.engagement.events[0].Metrics["price"])
	assert.Equal(t, 2.0, f.engagement.events[0].Metrics["quantity"])

	require.Len(t, f.engagement.updates, 1)
	assert.Equal(t, []string{"true"}, f.engagement.updates[0].UserAttributes["HasShoppingCart"])
	assert.Equal(t, 1.0, f.engagement.updates[0].Metrics["ItemsInCart"])

	require.Len(t, f.webTag.events, 1)
	items, ok := f.webTag.params[0]["items"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, 20.0, items[0]["price"])
	assert.Equal(t, 20.0, f.webTag.params[0]["value"])

	assert.Equal(t, []string{"ProductAdded"}, f.eventBus.tracks)
	assert.Equal(t, 20.0, f.eventBus.trackProps[0]["price"])
	assert.Equal(t, []string{"ProductAdded"}, f.productAnalytics.events)
	assert.Equal(t, []string{"ProductAdded:u-1"}, f.expClient.tracks)
}

func TestProductAddedToCart_AnonymousUsesProvisionalID(t *testing.T) {
	f := newFixture(t, allEnabledConfig())
	cart := &commerce.Cart{ID: "cart-1"}

	f.dispatcher.ProductAddedToCart(context.Background(), nil, cart, testProduct("10"), 1, "home", "")

	assert.Empty(t, f.engagement.events)
	require.Len(t, f.tracker.events, 1)
	assert.Equal(t, "anon-1", f.tracker.events[0].UserID)
	assert.Empty(t, f.expClient.tracks)
}

func TestProductAnalyticsDisabled_NoCalls(t *testing.T) {
	cfg := allEnabledConfig()
	cfg.AmplitudeAPIKey = ""
	f := newFixture(t, cfg)
	user := testUser()
	cart := &commerce.Cart{ID: "cart-1", Items: []commerce.CartItem{{ProductID: "p-1", Quantity: 1, Price: decimal.NewFromInt(5)}}}
	order := &commerce.Order{ID: "o-1", Total: decimal.NewFromInt(5), Items: []commerce.OrderItem{{ProductID: "p-1", Quantity: 1, Price: decimal.NewFromInt(5)}}}

	ctx := context.Background()
	require.NoError(t, f.dispatcher.Identify(ctx, user))
	f.dispatcher.ClearUser()
	f.dispatcher.ProductAddedToCart(ctx, user, cart, testProduct("5"), 1, "home", "")
	f.dispatcher.CartViewed(ctx, user, cart, 1, decimal.NewFromInt(5))
	f.dispatcher.OrderCompleted(ctx, user, cart, order)

	assert.Zero(t, f.productAnalytics.totalCalls())
}

func TestProductRemovedFromCart(t *testing.T) {
	f := newFixture(t, allEnabledConfig())
	item := commerce.CartItem{ProductID: "p-1", ProductName: "Trail Shoe", Quantity: 1, Price: decimal.RequireFromString("12.345")}
	cart := &commerce.Cart{ID: "cart-1"}

	f.dispatcher.ProductRemovedFromCart(context.Background(), testUser(), cart, item, 3)

	require.Len(t, f.engagement.events, 1)
	assert.Equal(t, "ProductRemoved", f.engagement.events[0].Name)
	assert.Equal(t, 3.0, f.engagement.events[0].Metrics["quantity"])
	assert.Equal(t, 12.35, f.engagement.events[0].Metrics["price"])

	require.Len(t, f.engagement.updates, 1)
	assert.Equal(t, []string{"false"}, f.engagement.updates[0].UserAttributes["HasShoppingCart"])

	assert.Equal(t, []string{"ProductRemoved"}, f.eventBus.tracks)
	assert.Equal(t, []string{"remove_from_cart"}, f.webTag.events)
}

func TestProductQuantityUpdatedInCart(t *testing.T) {
	f := newFixture(t, allEnabledConfig())
	item := commerce.CartItem{ProductID: "p-1", Quantity: 4, Price: decimal.NewFromInt(9)}
	cart := &commerce.Cart{ID: "cart-1", Items: []commerce.CartItem{item}}

	f.dispatcher.ProductQuantityUpdatedInCart(context.Background(), testUser(), cart, item, 2)

	require.Len(t, f.engagement.events, 1)
	assert.Equal(t, 4.0, f.engagement.events[0].Metrics["quantity"])
	assert.Equal(t, 2.0, f.engagement.events[0].Metrics["change"])
	require.Len(t, f.tracker.events, 1)
	assert.Equal(t, int64(1), f.state.counter)
}

func TestProductLiked_RecordsExperimentOutcome(t *testing.T) {
	f := newFixture(t, allEnabledConfig())

	f.dispatcher.ProductLiked(context.Background(), testUser(), testProduct("15"), "home", "c-9", true)

	assert.Equal(t, []string{"c-9"}, f.recommendations.outcomes)
	require.Len(t, f.tracker.events, 1)
	assert.Equal(t, "Yes", f.tracker.events[0].Properties["discount"])
	assert.Equal(t, []string{"view_item"}, f.webTag.events)
	assert.Equal(t, []string{"ProductLiked:u-1"}, f.expClient.tracks)
}

func TestProductLiked_NoCorrelationID(t *testing.T) {
	f := newFixture(t, allEnabledConfig())

	f.dispatcher.ProductLiked(context.Background(), testUser(), testProduct("15"), "home", "", false)

	assert.Empty(t, f.recommendations.outcomes)
	assert.Equal(t, "No", f.tracker.events[0].Properties["discount"])
}

func TestCartViewed_IncrementsCounterPerItem(t *testing.T) {
	f := newFixture(t, allEnabledConfig())
	cart := &commerce.Cart{ID: "cart-1", Items: []commerce.CartItem{
		{ProductID: "p-1", Quantity: 1, Price: decimal.NewFromInt(5)},
		{ProductID: "p-2", Quantity: 2, Price: decimal.NewFromInt(7)},
		{ProductID: "p-3", Quantity: 1, Price: decimal.NewFromInt(3)},
	}}

	f.dispatcher.CartViewed(context.Background(), testUser(), cart, 4, decimal.RequireFromString("22.00"))

	assert.Len(t, f.tracker.events, 3)
	assert.Equal(t, int64(3), f.state.counter)

	require.Len(t, f.webTag.events, 1)
	assert.Equal(t, "view_cart", f.webTag.events[0])
	items := f.webTag.params[0]["items"].([]map[string]any)
	require.Len(t, items, 3)
	assert.Equal(t, 1, items[0]["index"])
	assert.Equal(t, 3, items[2]["index"])
}

func TestCheckoutStarted_IncrementsCounterPerItem(t *testing.T) {
	f := newFixture(t, allEnabledConfig())
	cart := &commerce.Cart{ID: "cart-1", Items: []commerce.CartItem{
		{ProductID: "p-1", Quantity: 1, Price: decimal.NewFromInt(5)},
		{ProductID: "p-2", Quantity: 2, Price: decimal.NewFromInt(7)},
	}}

	f.dispatcher.CheckoutStarted(context.Background(), testUser(), cart, 3, decimal.NewFromInt(19))

	assert.Len(t, f.tracker.events, 2)
	assert.Equal(t, int64(2), f.state.counter)
	assert.Equal(t, []string{"begin_checkout"}, f.webTag.events)
	assert.Equal(t, []string{"CheckoutStarted"}, f.eventBus.tracks)
}

func TestOrderCompleted_RevenuePerLineItem(t *testing.T) {
	f := newFixture(t, allEnabledConfig())
	cart := &commerce.Cart{ID: "cart-1"}
	order := &commerce.Order{
		ID:    "o-1",
		Total: decimal.RequireFromString("49.497"),
		Items: []commerce.OrderItem{
			{ProductID: "p-1", ProductName: "Trail Shoe", Quantity: 2, Price: decimal.RequireFromString("19.999")},
			{ProductID: "p-2", ProductName: "Socks", Quantity: 1, Price: decimal.RequireFromString("9.499")},
		},
	}

	f.dispatcher.OrderCompleted(context.Background(), testUser(), cart, order)

	require.Len(t, f.productAnalytics.revenues, 2)
	assert.Equal(t, tracking.RevenueRecord{ProductID: "p-1", Price: 20.0, Quantity: 2}, f.productAnalytics.revenues[0])
	assert.Equal(t, tracking.RevenueRecord{ProductID: "p-2", Price: 9.5, Quantity: 1}, f.productAnalytics.revenues[1])

	// Order event + one monetization sub-event per line
	require.Len(t, f.engagement.events, 3)
	assert.Equal(t, "OrderCompleted", f.engagement.events[0].Name)
	assert.Equal(t, "_monetization.purchase", f.engagement.events[1].Name)
	assert.Equal(t, 20.0, f.engagement.events[1].Metrics["_item_price"])

	require.Len(t, f.engagement.updates, 1)
	assert.Equal(t, []string{"false"}, f.engagement.updates[0].UserAttributes["HasShoppingCart"])
	assert.Equal(t, []string{"true"}, f.engagement.updates[0].UserAttributes["HasCompletedOrder"])
	assert.Equal(t, 0.0, f.engagement.updates[0].Metrics["ItemsInCart"])

	assert.Len(t, f.tracker.events, 2)
	assert.Equal(t, []string{"purchase"}, f.webTag.events)
	assert.Equal(t, 49.5, f.webTag.params[0]["value"])
}

func TestProductSearched(t *testing.T) {
	f := newFixture(t, allEnabledConfig())

	f.dispatcher.ProductSearched(context.Background(), testUser(), "trail shoes", 12)

	require.Len(t, f.engagement.events, 1)
	assert.Equal(t, "ProductSearched", f.engagement.events[0].Name)
	assert.Equal(t, "true", f.engagement.events[0].Attributes["reranked"])
	assert.Equal(t, 12.0, f.engagement.events[0].Metrics["resultCount"])

	require.Len(t, f.engagement.updates, 1)
	assert.Equal(t, []string{"true"}, f.engagement.updates[0].Attributes["HashPerformedSearch"])

	require.Len(t, f.webTag.events, 1)
	assert.Equal(t, "trail shoes", f.webTag.params[0]["search_term"])
}

func TestProductSearched_Anonymous(t *testing.T) {
	f := newFixture(t, allEnabledConfig())

	f.dispatcher.ProductSearched(context.Background(), nil, "socks", 3)

	assert.Empty(t, f.engagement.events)
	assert.Empty(t, f.engagement.updates)
	require.Len(t, f.eventBus.trackProps, 1)
	assert.Equal(t, "false", f.eventBus.trackProps[0]["reranked"])
}

func TestRecordShoppingCart(t *testing.T) {
	f := newFixture(t, allEnabledConfig())
	f.products.product = tracking.ProductSnapshot{ID: "p-1", Name: "Trail Shoe", Image: "shoe.jpg", URL: "/product/p-1"}
	cart := &commerce.Cart{ID: "cart-1", Items: []commerce.CartItem{{ProductID: "p-1", Quantity: 1}}}

	hasItem, err := f.dispatcher.RecordShoppingCart(context.Background(), testUser(), cart)

	require.NoError(t, err)
	assert.True(t, hasItem)
	require.Len(t, f.engagement.updates, 1)
	update := f.engagement.updates[0]
	assert.Equal(t, []string{"shoe.jpg"}, update.UserAttributes["ShoppingCartItemImageURL"])
	assert.Equal(t, []string{"Trail Shoe"}, update.UserAttributes["ShoppingCartItemTitle"])
	assert.Equal(t, []string{"true"}, update.UserAttributes["HasShoppingCart"])
	assert.Equal(t, []string{"https://shop.example.com#/cart"}, update.UserAttributes["WebsiteCartURL"])
}

func TestRecordShoppingCart_EmptyCart(t *testing.T) {
	f := newFixture(t, allEnabledConfig())

	hasItem, err := f.dispatcher.RecordShoppingCart(context.Background(), testUser(), &commerce.Cart{ID: "cart-1"})

	require.NoError(t, err)
	assert.False(t, hasItem)
	require.Len(t, f.engagement.updates, 1)
	assert.Equal(t, []string{"false"}, f.engagement.updates[0].UserAttributes["HasShoppingCart"])
	assert.Empty(t, f.engagement.updates[0].UserAttributes["ShoppingCartItemTitle"])
}

func TestRecordShoppingCart_ProductFetchFailure(t *testing.T) {
	f := newFixture(t, allEnabledConfig())
	f.products.err = errors.New("service unavailable")
	cart := &commerce.Cart{ID: "cart-1", Items: []commerce.CartItem{{ProductID: "p-1"}}}

	hasItem, err := f.dispatcher.RecordShoppingCart(context.Background(), testUser(), cart)

	require.Error(t, err)
	assert.False(t, hasItem)
	assert.Empty(t, f.engagement.updates)
}

func TestRecordAbandonedCartEvent(t *testing.T) {
	f := newFixture(t, allEnabledConfig())
	f.products.product = tracking.ProductSnapshot{ID: "p-1", Name: "Trail Shoe"}
	cart := &commerce.Cart{ID: "cart-1", Items: []commerce.CartItem{{ProductID: "p-1"}}}

	require.NoError(t, f.dispatcher.RecordAbandonedCartEvent(context.Background(), testUser(), cart))

	require.Len(t, f.engagement.events, 1)
	assert.Equal(t, "_session.stop", f.engagement.events[0].Name)
}

func TestRecordAbandonedCartEvent_EmptyCart(t *testing.T) {
	f := newFixture(t, allEnabledConfig())

	require.NoError(t, f.dispatcher.RecordAbandonedCartEvent(context.Background(), testUser(), &commerce.Cart{ID: "cart-1"}))

	assert.Empty(t, f.engagement.events)
}

func TestDispatchIsolation_EngagementFailureDoesNotSuppressSiblings(t *testing.T) {
	f := newFixture(t, allEnabledConfig())
	f.engagement.recordErr = errors.New("throttled")
	f.engagement.updateErr = errors.New("throttled")
	cart := &commerce.Cart{ID: "cart-1", Items: []commerce.CartItem{{ProductID: "p-1", Quantity: 1}}}

	f.dispatcher.ProductAddedToCart(context.Background(), testUser(), cart, testProduct("10"), 1, "home", "")

	assert.Len(t, f.tracker.events, 1)
	assert.Equal(t, []string{"ProductAdded"}, f.eventBus.tracks)
	assert.Equal(t, []string{"ProductAdded"}, f.productAnalytics.events)
	assert.Len(t, f.webTag.events, 1)
}
