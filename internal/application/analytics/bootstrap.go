package analytics

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/storefront/analytics/internal/domain/tracking"
	"github.com/storefront/analytics/internal/infrastructure/config"
	"github.com/storefront/analytics/internal/infrastructure/destination/amplitudedest"
	"github.com/storefront/analytics/internal/infrastructure/destination/gtag"
	"github.com/storefront/analytics/internal/infrastructure/destination/optimizelydest"
	"github.com/storefront/analytics/internal/infrastructure/destination/personalize"
	"github.com/storefront/analytics/internal/infrastructure/destination/pinpoint"
	"github.com/storefront/analytics/internal/infrastructure/destination/segmentdest"
	loggerpkg "github.com/storefront/analytics/internal/infrastructure/logger"
	"github.com/storefront/analytics/internal/infrastructure/repository"
	"github.com/storefront/analytics/internal/infrastructure/session"
	"github.com/storefront/analytics/internal/infrastructure/state"
	"github.com/storefront/analytics/internal/infrastructure/telemetry"
)

// NewFromConfig assembles a Dispatcher with a real adapter behind every
// destination the configuration enables. Disabled destinations get no client
// at all and behave as no-ops. The returned cleanup flushes and closes the
// SDK-backed destinations and should run on shutdown.
func NewFromConfig(ctx context.Context, cfg *config.Config, tokens session.TokenSource, log *zap.Logger) (*Dispatcher, func(), error) {
	logger := log
	if logger == nil {
		var err error
		logger, err = loggerpkg.New(cfg.Log)
		if err != nil {
			return nil, nil, fmt.Errorf("analytics: create logger: %w", err)
		}
	}

	metrics, err := telemetry.NewDispatchMetrics(otel.GetMeterProvider().Meter("storefront-analytics"), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("analytics: create metrics: %w", err)
	}

	var closers []func()

	deps := Deps{
		Config:              cfg.Destinations,
		Logger:              logger,
		Metrics:             metrics,
		Session:             session.NewProvider(cfg.Session, tokens, logger),
		Products:            repository.NewProductsClient(cfg.Services.ProductsURL, cfg.Services.Timeout, logger),
		Recommendations:     repository.NewRecommendationsClient(cfg.Services.RecommendationsURL, cfg.Services.Timeout, logger),
		NewExperimentClient: optimizelydest.NewFactory(logger),
	}

	deps.State = newSessionState(cfg, logger, &closers)

	if config.Enabled(cfg.Destinations.PinpointAppID) || config.Enabled(cfg.Destinations.PersonalizeTrackingID) {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Destinations.PinpointRegion))
		if err != nil {
			return nil, nil, fmt.Errorf("analytics: load aws config: %w", err)
		}
		if config.Enabled(cfg.Destinations.PinpointAppID) {
			deps.Engagement = pinpoint.NewFromConfig(awsCfg, cfg.Destinations.PinpointAppID, "", logger)
		}
		if config.Enabled(cfg.Destinations.PersonalizeTrackingID) {
			deps.Tracker = personalize.NewFromConfig(awsCfg, cfg.Destinations.PersonalizeTrackingID, logger)
		}
	}

	if config.Enabled(cfg.Destinations.SegmentWriteKey) {
		bus, err := segmentdest.NewClient(cfg.Destinations.SegmentWriteKey, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("analytics: create event-bus client: %w", err)
		}
		deps.EventBus = bus
		closers = append(closers, func() {
			if err := bus.Close(); err != nil {
				logger.Warn("event-bus close failed", zap.Error(err))
			}
		})
	}

	if config.Enabled(cfg.Destinations.AmplitudeAPIKey) {
		pa := amplitudedest.NewClient(cfg.Destinations.AmplitudeAPIKey)
		deps.ProductAnalytics = pa
		closers = append(closers, pa.Close)
	}

	if config.Enabled(cfg.Destinations.GoogleAnalyticsID) {
		deps.WebTag = gtag.NewClient(cfg.Destinations.GoogleAnalyticsID, cfg.Destinations.GoogleAnalyticsSecret, logger)
	}

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return NewDispatcher(deps), cleanup, nil
}

// newSessionState picks the shared session-state backend: Redis when a host
// is configured, process-local memory otherwise.
func newSessionState(cfg *config.Config, logger *zap.Logger, closers *[]func()) tracking.SessionState {
	if cfg.Redis.Host == "" {
		return state.NewMemoryState()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	*closers = append(*closers, func() {
		if err := client.Close(); err != nil {
			logger.Warn("redis close failed", zap.Error(err))
		}
	})
	return state.NewRedisState(client, uuid.NewString(), cfg.Session.StateTTL, logger)
}
