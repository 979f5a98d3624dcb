package experiment

import "context"

// Experiment is one active A/B assignment the caller wants recorded.
type Experiment struct {
	Feature        string
	Name           string
	VariationIndex int
	CorrelationID  string
	ExperimentKey  string
}

// TraitKey is the product-analytics identity trait key for this assignment.
func (e *Experiment) TraitKey() string {
	return e.Feature + "." + e.Name
}

// CorrelationTraitKey is the trait key carrying the assignment's correlation id.
func (e *Experiment) CorrelationTraitKey() string {
	return e.TraitKey() + ".id"
}

// TagEventName is the web-analytics event name for an exposure of this
// experiment's feature.
func (e *Experiment) TagEventName() string {
	return "exp_" + e.Feature
}

// Client is the subset of the A/B-testing SDK the dispatcher consumes.
type Client interface {
	// ConfigRevision returns the revision of the currently loaded
	// experiment-configuration datafile.
	ConfigRevision() string
	// Activate buckets the user into the experiment identified by key.
	Activate(ctx context.Context, experimentKey, userID string) error
	// Track records a conversion event against the user's assignments.
	Track(ctx context.Context, eventKey, userID string) error
}

// ClientFactory constructs a Client for the given SDK key. The dispatcher
// calls it at most once per process; the resulting client lives for the
// process lifetime.
type ClientFactory func(sdkKey string) (Client, error)
