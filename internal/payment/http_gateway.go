package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HTTPGateway creates intents through the provider's HTTP API.
type HTTPGateway struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
}

// NewHTTPGateway creates a gateway posting to endpoint.
func NewHTTPGateway(endpoint, apiKey string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{endpoint: endpoint, apiKey: apiKey, timeout: timeout}
}

type intentPayload struct {
	Items            []Item `json:"items"`
	DeliveryFeeMinor int64  `json:"deliveryFee"`
	AmountMinor      int64  `json:"amount"`
}

type intentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
	Error        string `json:"error"`
}

// CreateIntent posts the request and returns the provider's client secret.
func (g *HTTPGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timeout := g.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	agent := fiber.Post(g.endpoint)
	agent.Set("Idempotency-Key", req.IdempotencyKey)
	if g.apiKey != "" {
		agent.Set("Authorization", "Bearer "+g.apiKey)
	}
	agent.JSON(intentPayload{
		Items:            req.Items,
		DeliveryFeeMinor: MinorUnits(req.DeliveryFee),
		AmountMinor:      MinorUnits(req.Amount),
	})
	agent.Timeout(timeout)
	if err := agent.Parse(); err != nil {
		return nil, fmt.Errorf("failed to prepare intent request: %w", err)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("intent request failed: %w", errors.Join(errs...))
	}

	var resp intentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode intent response (status %d): %w", code, err)
	}
	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: status %d: %s", ErrProviderRejected, code, resp.Error)
	}
	if resp.ClientSecret == "" {
		return nil, fmt.Errorf("%w: response carried no client secret", ErrProviderRejected)
	}
	return &Intent{ID: resp.ID, ClientSecret: resp.ClientSecret}, nil
}
