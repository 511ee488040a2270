// Package meter wraps every token-costed action behind a deduct-then-effect
// gateway. The deduction always completes, success or definitive failure,
// before the paired side effect starts; refused deductions never run the
// effect; committed deductions are never refunded, even when the effect is
// cancelled mid-flight.
package meter

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/focusdeck/focusdeck/internal/app/ledger"
	"github.com/focusdeck/focusdeck/internal/domain"
	"github.com/focusdeck/focusdeck/internal/infra/observability"
)

// Effect is the paired side effect of a charged action: the chat round trip,
// the AI-assisted mutation burst, the image generation. It runs only after
// the charge has committed.
type Effect func(ctx context.Context) error

// Gateway funnels metered actions through the ledger.
type Gateway struct {
	ledger *ledger.Service
}

// New creates the gateway.
func New(svc *ledger.Service) *Gateway {
	return &Gateway{ledger: svc}
}

// Perform charges the account for one logical request, then runs the effect.
// Callers generate a fresh requestID per logical user action; retries reuse
// it and are absorbed by the ledger's idempotency, not billed again. The
// returned balance reflects the account after the charge.
//
// A refused charge (insufficient balance, unknown account) returns without
// running the effect. A cancellation after the charge committed suppresses
// the rest of the effect but keeps the charge.
func (g *Gateway) Perform(ctx context.Context, accountID string, cost domain.Cents, feature domain.Feature, requestID string, effect Effect) (domain.Cents, error) {
	balance, err := g.ledger.CheckAndDeduct(ctx, accountID, cost, feature, requestID)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			log.Printf("[meter] %s refused for account %s: balance too low", feature, accountID)
		}
		return 0, err
	}

	if err := ctx.Err(); err != nil {
		// Charged but cancelled before the effect began. No refund.
		observability.TurnsCancelled.Inc()
		log.Printf("[meter] %s for account %s cancelled after charge", feature, accountID)
		return balance, fmt.Errorf("%w: %v", domain.ErrTurnCancelled, err)
	}

	if err := effect(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrTurnCancelled) {
			observability.TurnsCancelled.Inc()
			return balance, fmt.Errorf("%w: effect abandoned", domain.ErrTurnCancelled)
		}
		return balance, err
	}
	return balance, nil
}
