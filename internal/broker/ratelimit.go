package broker

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/tracker"
)

// RateLimitedGateway throttles every call to the wrapped gateway.
type RateLimitedGateway struct {
	next    tracker.Gateway
	limiter *rate.Limiter
}

// NewRateLimited allows rps calls per second with the given burst.
// A non-positive rps disables throttling.
func NewRateLimited(next tracker.Gateway, rps float64, burst int) *RateLimitedGateway {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedGateway{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (g *RateLimitedGateway) wait(ctx context.Context, op string) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s throttled: %w", domain.ErrExternalService, op, err)
	}
	return nil
}

// Submit implements tracker.Gateway.
func (g *RateLimitedGateway) Submit(ctx context.Context, req tracker.SubmitRequest) (domain.OrderState, error) {
	if err := g.wait(ctx, "submit"); err != nil {
		return domain.OrderState{}, err
	}
	return g.next.Submit(ctx, req)
}

// Status implements tracker.Gateway.
func (g *RateLimitedGateway) Status(ctx context.Context, accountID, exchangeID string) (domain.OrderState, error) {
	if err := g.wait(ctx, "status"); err != nil {
		return domain.OrderState{}, err
	}
	return g.next.Status(ctx, accountID, exchangeID)
}

// Cancel implements tracker.Gateway.
func (g *RateLimitedGateway) Cancel(ctx context.Context, accountID, exchangeID string) (domain.OrderState, error) {
	if err := g.wait(ctx, "cancel"); err != nil {
		return domain.OrderState{}, err
	}
	return g.next.Cancel(ctx, accountID, exchangeID)
}

var _ tracker.Gateway = (*RateLimitedGateway)(nil)
