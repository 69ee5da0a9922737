package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// SandboxGateway issues intents locally. It is meant for development where no
// provider account is configured. Requests with the same idempotency key get
// the same intent back. A zero amount is accepted so fully discounted
// orders can still be confirmed.
type SandboxGateway struct {
	mu      sync.Mutex
	intents map[string]*Intent
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{intents: make(map[string]*Intent)}
}

func (g *SandboxGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must not be negative", ErrProviderRejected)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if in, ok := g.intents[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return in, nil
	}
	id := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	in := &Intent{ID: id, ClientSecret: id + "_secret_" + uuid.NewString()[:8]}
	if req.IdempotencyKey != "" {
		g.intents[req.IdempotencyKey] = in
	}
	return in, nil
}
