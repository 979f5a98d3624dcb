// Package repository provides HTTP clients for the storefront's backing
// services.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/storefront/analytics/internal/domain/tracking"
)

// maxResponseSize bounds how much of a service response is read.
const maxResponseSize = 1 << 20

// ProductsClient fetches product records from the products service.
type ProductsClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// NewProductsClient creates a products-service client.
func NewProductsClient(baseURL string, timeout time.Duration, logger *zap.Logger) *ProductsClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductsClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

type productResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
	URL   string `json:"url"`
}

// GetProduct fetches one product by id.
func (c *ProductsClient) GetProduct(ctx context.Context, id string) (tracking.ProductSnapshot, error) {
	endpoint := fmt.Sprintf("%s/products/id/%s", c.baseURL, url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return tracking.ProductSnapshot{}, fmt.Errorf("products: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return tracking.ProductSnapshot{}, fmt.Errorf("products: get product %s: %w", id, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return tracking.ProductSnapshot{}, fmt.Errorf("products: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return tracking.ProductSnapshot{}, fmt.Errorf("products: get product %s: status %d: %s", id, resp.StatusCode, body)
	}

	var product productResponse
	if err := json.Unmarshal(body, &product); err != nil {
		return tracking.ProductSnapshot{}, fmt.Errorf("products: decode response: %w", err)
	}

	return tracking.ProductSnapshot{
		ID:    product.ID,
		Name:  product.Name,
		Image: product.Image,
		URL:   product.URL,
	}, nil
}
