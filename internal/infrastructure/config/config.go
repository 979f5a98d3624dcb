package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DisabledSentinel is the reserved configuration value meaning "this
// integration is not configured". A destination whose credential equals it
// is treated the same as one whose credential is absent.
const DisabledSentinel = "NONE"

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Log          LogConfig
	Redis        RedisConfig
	Session      SessionConfig
	Services     ServicesConfig
	Destinations DestinationsConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// RedisConfig holds Redis connection settings for the shared session state
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// SessionConfig holds settings for resolving the authenticated session
type SessionConfig struct {
	// JWTSecret verifies the session id token the host application supplies.
	JWTSecret string
	Issuer    string
	// StateTTL bounds how long per-session analytics state is retained.
	StateTTL time.Duration
}

// ServicesConfig holds base URLs of the storefront's backing services
type ServicesConfig struct {
	ProductsURL        string
	RecommendationsURL string
	Timeout            time.Duration
}

// DestinationsConfig holds the credentials gating each analytics destination.
// Every value is optional; absent or DisabledSentinel means disabled.
type DestinationsConfig struct {
	PinpointAppID         string // engagement platform application id
	PinpointRegion        string
	PersonalizeTrackingID string // recommendation-event tracker
	SegmentWriteKey       string // generic event-bus
	AmplitudeAPIKey       string // product-analytics SDK
	OptimizelySDKKey      string // A/B-testing SDK
	GoogleAnalyticsID     string // web-analytics tag measurement id
	GoogleAnalyticsSecret string // measurement-protocol API secret
	// WebRootURL builds absolute asset links for cart attribute updates.
	WebRootURL string
}

// Enabled reports whether a destination credential is usable: present and
// not the reserved disabled sentinel.
func Enabled(value string) bool {
	return value != "" && value != DisabledSentinel
}

// Load loads configuration from a TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with STOREFRONT_ prefix (e.g. STOREFRONT_DESTINATIONS_SEGMENT_WRITE_KEY)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Session: SessionConfig{
			JWTSecret: v.GetString("session.jwt_secret"),
			Issuer:    v.GetString("session.issuer"),
			StateTTL:  v.GetDuration("session.state_ttl"),
		},
		Services: ServicesConfig{
			ProductsURL:        v.GetString("services.products_url"),
			RecommendationsURL: v.GetString("services.recommendations_url"),
			Timeout:            v.GetDuration("services.timeout"),
		},
		Destinations: DestinationsConfig{
			PinpointAppID:         v.GetString("destinations.pinpoint_app_id"),
			PinpointRegion:        v.GetString("destinations.pinpoint_region"),
			PersonalizeTrackingID: v.GetString("destinations.personalize_tracking_id"),
			SegmentWriteKey:       v.GetString("destinations.segment_write_key"),
			AmplitudeAPIKey:       v.GetString("destinations.amplitude_api_key"),
			OptimizelySDKKey:      v.GetString("destinations.optimizely_sdk_key"),
			GoogleAnalyticsID:     v.GetString("destinations.google_analytics_id"),
			GoogleAnalyticsSecret: v.GetString("destinations.google_analytics_secret"),
			WebRootURL:            v.GetString("destinations.web_root_url"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "storefront-analytics"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Session.Issuer == "" {
		cfg.Session.Issuer = "storefront"
	}
	if cfg.Session.StateTTL == 0 {
		cfg.Session.StateTTL = 24 * time.Hour
	}
	if cfg.Services.Timeout == 0 {
		cfg.Services.Timeout = 10 * time.Second
	}
	if cfg.Destinations.PinpointRegion == "" {
		cfg.Destinations.PinpointRegion = "us-east-1"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.App.Env == "production" {
		if c.Session.JWTSecret == "" {
			return fmt.Errorf("session.jwt_secret is required in production")
		}
		if len(c.Session.JWTSecret) < 32 {
			return fmt.Errorf("session.jwt_secret must be at least 32 characters in production")
		}
	}
	if Enabled(c.Destinations.GoogleAnalyticsID) && c.Destinations.GoogleAnalyticsSecret == "" {
		return fmt.Errorf("destinations.google_analytics_secret is required when destinations.google_analytics_id is set")
	}
	return nil
}

// Addr returns the Redis address in host:port form
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
