package tracking

import "context"

// ProductSnapshot is the subset of a product record used when pushing cart
// snapshot attributes to the engagement platform.
type ProductSnapshot struct {
	ID    string
	Name  string
	Image string
	URL   string
}

// ProductRepository fetches product data from the products service.
type ProductRepository interface {
	GetProduct(ctx context.Context, id string) (ProductSnapshot, error)
}

// RecommendationsRepository reports experiment outcomes back to the
// recommendations service.
type RecommendationsRepository interface {
	RecordExperimentOutcome(ctx context.Context, correlationID string) error
}
