// Package accounts routes account and ledger persistence to the right
// backend: guest accounts live in the local document store, registered
// accounts in the durable backend. The split mirrors the record store
// routing so one ledger service can serve both kinds of account.
package accounts

import (
	"context"
	"errors"

	"github.com/focusdeck/focusdeck/internal/domain"
)

// Router implements domain.AccountStore over the two backends.
type Router struct {
	durable domain.AccountStore // nil in local-only deployments
	local   domain.AccountStore
}

// New creates the router. durable may be nil.
func New(durable, local domain.AccountStore) *Router {
	return &Router{durable: durable, local: local}
}

func (r *Router) forAccount(a domain.Account) domain.AccountStore {
	if r.durable == nil || a.Guest {
		return r.local
	}
	return r.durable
}

// GetAccount checks the durable backend first, then falls back to the local
// store where guest accounts live.
func (r *Router) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	if r.durable != nil {
		a, err := r.durable.GetAccount(ctx, id)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, domain.ErrAccountNotFound) {
			return nil, err
		}
	}
	return r.local.GetAccount(ctx, id)
}

func (r *Router) PutAccount(ctx context.Context, a domain.Account) error {
	return r.forAccount(a).PutAccount(ctx, a)
}

func (r *Router) CommitDeduction(ctx context.Context, a domain.Account, tx domain.LedgerTransaction) error {
	return r.forAccount(a).CommitDeduction(ctx, a, tx)
}

// resolve locates the backend holding the given account id.
func (r *Router) resolve(ctx context.Context, accountID string) (domain.AccountStore, error) {
	a, err := r.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return r.forAccount(*a), nil
}

func (r *Router) TransactionByRequestID(ctx context.Context, accountID, requestID string) (*domain.LedgerTransaction, error) {
	store, err := r.resolve(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return store.TransactionByRequestID(ctx, accountID, requestID)
}

func (r *Router) ListTransactions(ctx context.Context, accountID string, limit int) ([]domain.LedgerTransaction, error) {
	store, err := r.resolve(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return store.ListTransactions(ctx, accountID, limit)
}
