package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application services depend on them.

// RecordStore abstracts CRUD for an account's domain records. Two
// implementations share the contract: the durable sqlite backend and the
// per-account local document store.
//
// Upsert uses insert-or-replace-by-id semantics so client-supplied ids are
// accepted idempotently. Delete applies the cascade rules:
//   - deleting a Project clears ProjectID on its Tasks (does not delete them)
//   - deleting a Client deletes its Projects, clears the now-dangling Task
//     references, and clears any Folder's client reference
type RecordStore interface {
	Upsert(ctx context.Context, accountID string, rec Record) error
	Delete(ctx context.Context, accountID string, kind RecordKind, id string) error
	LoadAll(ctx context.Context, accountID string) (*RecordSet, error)
}

// AccountStore persists accounts and the append-only charge ledger.
// CommitDeduction must write the updated account and the new transaction as
// a single logical commit: a balance change without its ledger row (or the
// reverse) must never be observable.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*Account, error)
	PutAccount(ctx context.Context, a Account) error
	CommitDeduction(ctx context.Context, a Account, tx LedgerTransaction) error
	TransactionByRequestID(ctx context.Context, accountID, requestID string) (*LedgerTransaction, error)
	ListTransactions(ctx context.Context, accountID string, limit int) ([]LedgerTransaction, error)
}

// Notifier is the generic change-notification contract: the durable backend
// publishes per-record events, the local store publishes coarse reload
// signals, and the sync coordinator and SSE feed subscribe. Keys are account
// ids. The returned func unsubscribes.
type Notifier interface {
	Publish(key string, ev ChangeEvent)
	Subscribe(key string) (<-chan ChangeEvent, func())
}

// ModelClient is the opaque assistant backend: one user turn in, text plus
// zero or more tool calls out.
type ModelClient interface {
	Send(ctx context.Context, req ModelRequest) (*ModelResponse, error)
}

// ToolResponder receives per-call results during tool dispatch, in execution
// order, before the turn is considered complete.
type ToolResponder interface {
	SendToolResult(ctx context.Context, res ToolResult) error
}
