// Package ledger implements the token ledger: atomic check-and-deduct
// against an account's balance with lazy weekly reset and request-id
// idempotency. Every metered action in the system funnels through
// CheckAndDeduct; no other code path mutates a balance.
package ledger

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/focusdeck/focusdeck/internal/domain"
	"github.com/focusdeck/focusdeck/internal/infra/observability"
)

// Service is the ledger store front. It is storage-agnostic: registered
// accounts live in the durable backend, guests in the local document store,
// both behind domain.AccountStore.
type Service struct {
	store domain.AccountStore
	now   func() time.Time

	// onBalance, when set, refreshes the active session's in-memory balance
	// so subsequent reads in the same process see the new value.
	onBalance func(accountID string, balance domain.Cents)
}

// New creates a ledger service over an account store.
func New(store domain.AccountStore) *Service {
	return &Service{store: store, now: time.Now}
}

// SetClock overrides the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SetBalanceHook registers the session-refresh callback invoked after every
// balance change.
func (s *Service) SetBalanceHook(fn func(accountID string, balance domain.Cents)) {
	s.onBalance = fn
}

// CheckAndDeduct atomically charges cost against the account's balance.
//
// Order of operations:
//  1. load the account (ErrAccountNotFound if missing)
//  2. lazy weekly reset if the stored week anchor is older than this week's
//  3. idempotency: an existing transaction for requestID returns the current
//     balance without charging again
//  4. refuse with ErrInsufficientBalance if balance < cost, leaving state
//     untouched
//  5. otherwise subtract, append the ledger row, and persist both as one
//     commit
//
// Both failure modes are terminal for the caller: no retry, and the paired
// side effect must not run.
func (s *Service) CheckAndDeduct(ctx context.Context, accountID string, cost domain.Cents, feature domain.Feature, requestID string) (domain.Cents, error) {
	if cost <= 0 {
		return 0, fmt.Errorf("cost must be positive, got %v", cost)
	}
	if requestID == "" {
		return 0, fmt.Errorf("request id is required")
	}

	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}

	now := s.now()
	anchor := domain.WeekAnchor(now)
	reset := account.TokenWeekStart.IsZero() || account.TokenWeekStart.Before(anchor)
	if reset {
		account.Balance = domain.WeeklyGrant
		account.TokenWeekStart = anchor
		observability.WeeklyResets.Inc()
		log.Printf("[ledger] weekly reset for account %s, balance back to %v", accountID, domain.WeeklyGrant)
	}

	// At-most-once across retries: a UI double-invocation or network retry
	// replays the request id and must not double-charge.
	existing, err := s.store.TransactionByRequestID(ctx, accountID, requestID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		if reset {
			if err := s.store.PutAccount(ctx, *account); err != nil {
				return 0, fmt.Errorf("persist weekly reset: %w", err)
			}
			s.refresh(accountID, account.Balance)
		}
		observability.IdempotentHits.Inc()
		return account.Balance, nil
	}

	if account.Balance < cost {
		if reset {
			// The grant happened even though the charge is refused.
			if err := s.store.PutAccount(ctx, *account); err != nil {
				return 0, fmt.Errorf("persist weekly reset: %w", err)
			}
			s.refresh(accountID, account.Balance)
		}
		observability.DeductionsRefused.WithLabelValues(string(feature)).Inc()
		return account.Balance, domain.ErrInsufficientBalance
	}

	account.Balance -= cost
	txn := domain.LedgerTransaction{
		ID:        uuid.NewString(),
		AccountID: accountID,
		RequestID: requestID,
		Feature:   feature,
		Cost:      cost,
		Timestamp: now.UTC(),
	}
	if err := s.store.CommitDeduction(ctx, *account, txn); err != nil {
		return 0, fmt.Errorf("commit deduction: %w", err)
	}

	observability.DeductionsTotal.WithLabelValues(string(feature)).Inc()
	s.refresh(accountID, account.Balance)
	log.Printf("[ledger] charged %v (%s) to account %s, balance %v", cost, feature, accountID, account.Balance)
	return account.Balance, nil
}

// Balance returns the account's current balance without charging.
func (s *Service) Balance(ctx context.Context, accountID string) (domain.Cents, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// Transactions returns the account's most recent charges, newest first.
func (s *Service) Transactions(ctx context.Context, accountID string, limit int) ([]domain.LedgerTransaction, error) {
	return s.store.ListTransactions(ctx, accountID, limit)
}

func (s *Service) refresh(accountID string, balance domain.Cents) {
	if s.onBalance != nil {
		s.onBalance(accountID, balance)
	}
}
