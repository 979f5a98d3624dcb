package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RecommendationsClient reports experiment outcomes to the recommendations
// service.
type RecommendationsClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// NewRecommendationsClient creates a recommendations-service client.
func NewRecommendationsClient(baseURL string, timeout time.Duration, logger *zap.Logger) *RecommendationsClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecommendationsClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

type experimentOutcomeRequest struct {
	CorrelationID string `json:"correlationId"`
}

// RecordExperimentOutcome reports that the experiment identified by the
// correlation id produced a conversion.
func (c *RecommendationsClient) RecordExperimentOutcome(ctx context.Context, correlationID string) error {
	raw, err := json.Marshal(experimentOutcomeRequest{CorrelationID: correlationID})
	if err != nil {
		return fmt.Errorf("recommendations: encode outcome: %w", err)
	}

	endpoint := c.baseURL + "/experiment/outcome"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("recommendations: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("recommendations: record outcome: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		return fmt.Errorf("recommendations: record outcome: status %d: %s", resp.StatusCode, detail)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	c.logger.Debug("experiment outcome recorded", zap.String("correlation_id", correlationID))
	return nil
}
