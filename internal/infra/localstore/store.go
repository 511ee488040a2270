// Package localstore implements the local fallback backend: one serialized
// JSON document per account holding every record kind, the guest account,
// and the guest charge ledger. Every mutation is a read-modify-write of the
// whole document followed by a coarse RELOAD signal on the notifier, so
// other open views of the same account reload the document wholesale.
package localstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/focusdeck/focusdeck/internal/domain"
)

// document is the on-disk shape of one account's data.
type document struct {
	Account      *domain.Account            `json:"account,omitempty"`
	Transactions []domain.LedgerTransaction `json:"transactions,omitempty"`
	Records      domain.RecordSet           `json:"records"`
}

// Store reads and writes per-account documents under a data directory.
type Store struct {
	mu       sync.Mutex
	dir      string
	notifier domain.Notifier
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create localstore dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// SetNotifier attaches the change notifier. Mutations publish a RELOAD
// signal keyed by account id after the document is written.
func (s *Store) SetNotifier(n domain.Notifier) { s.notifier = n }

// Dir returns the data directory (for the cross-process watcher).
func (s *Store) Dir() string { return s.dir }

// Path returns the document path for an account.
func (s *Store) Path(accountID string) string {
	return filepath.Join(s.dir, accountID+".json")
}

func (s *Store) load(accountID string) (*document, error) {
	data, err := os.ReadFile(s.Path(accountID))
	if errors.Is(err, fs.ErrNotExist) {
		return &document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read account document: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode account document: %w", err)
	}
	return &doc, nil
}

// save writes the document atomically (temp file + rename).
func (s *Store) save(accountID string, doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode account document: %w", err)
	}
	tmp := s.Path(accountID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write account document: %w", err)
	}
	if err := os.Rename(tmp, s.Path(accountID)); err != nil {
		return fmt.Errorf("replace account document: %w", err)
	}
	return nil
}

func (s *Store) publishReload(accountID string) {
	if s.notifier != nil {
		s.notifier.Publish(accountID, domain.ChangeEvent{Op: domain.OpReload})
	}
}

// mutate runs fn against the loaded document and saves the result.
func (s *Store) mutate(accountID string, fn func(*document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(accountID)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	if err := s.save(accountID, doc); err != nil {
		return err
	}
	s.publishReload(accountID)
	return nil
}

// ─── RecordStore ────────────────────────────────────────────────────────────

// Upsert inserts or replaces a record by id in the account document.
func (s *Store) Upsert(ctx context.Context, accountID string, rec domain.Record) error {
	return s.mutate(accountID, func(doc *document) error {
		return doc.Records.Upsert(rec)
	})
}

// Delete removes a record by id, applying the cascade rules. Absent ids are
// a no-op.
func (s *Store) Delete(ctx context.Context, accountID string, kind domain.RecordKind, id string) error {
	return s.mutate(accountID, func(doc *document) error {
		return doc.Records.Delete(kind, id)
	})
}

// LoadAll returns a copy of the account's full record set.
func (s *Store) LoadAll(ctx context.Context, accountID string) (*domain.RecordSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load(accountID)
	if err != nil {
		return nil, err
	}
	set := doc.Records
	return &set, nil
}

// ─── Cache Mirror ───────────────────────────────────────────────────────────
// Registered accounts use the document as a warm cache of durable state.
// Mirror writes stay silent: subscribers already saw the durable event, and
// re-broadcasting a reload here would chase the cache refresh in a loop.

// MirrorUpsert writes a record into the cache without broadcasting.
func (s *Store) MirrorUpsert(ctx context.Context, accountID string, rec domain.Record) error {
	return s.mutateSilent(accountID, func(doc *document) error {
		return doc.Records.Upsert(rec)
	})
}

// MirrorDelete removes a record from the cache without broadcasting.
func (s *Store) MirrorDelete(ctx context.Context, accountID string, kind domain.RecordKind, id string) error {
	return s.mutateSilent(accountID, func(doc *document) error {
		return doc.Records.Delete(kind, id)
	})
}

// ReplaceRecords refreshes the cached record set wholesale. When the cache
// already matches, nothing is written, so a refresh triggered by a file
// watch does not itself produce another file event.
func (s *Store) ReplaceRecords(ctx context.Context, accountID string, set domain.RecordSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(accountID)
	if err != nil {
		return err
	}
	before, err := json.Marshal(doc.Records)
	if err != nil {
		return err
	}
	after, err := json.Marshal(set)
	if err != nil {
		return err
	}
	if bytes.Equal(before, after) {
		return nil
	}
	doc.Records = set
	return s.save(accountID, doc)
}

// mutateSilent is mutate without the reload broadcast.
func (s *Store) mutateSilent(accountID string, fn func(*document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(accountID)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.save(accountID, doc)
}

// ─── AccountStore (guest ledger) ────────────────────────────────────────────

// GetAccount loads the guest account stored in the document.
func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if doc.Account == nil {
		return nil, domain.ErrAccountNotFound
	}
	a := *doc.Account
	return &a, nil
}

// PutAccount writes the guest account into the document.
func (s *Store) PutAccount(ctx context.Context, a domain.Account) error {
	return s.mutate(a.ID, func(doc *document) error {
		doc.Account = &a
		return nil
	})
}

// CommitDeduction writes the updated balance and the appended transaction in
// one document write.
func (s *Store) CommitDeduction(ctx context.Context, a domain.Account, txn domain.LedgerTransaction) error {
	return s.mutate(a.ID, func(doc *document) error {
		for _, existing := range doc.Transactions {
			if existing.RequestID == txn.RequestID {
				return fmt.Errorf("duplicate request id %q", txn.RequestID)
			}
		}
		doc.Account = &a
		doc.Transactions = append(doc.Transactions, txn)
		return nil
	})
}

// TransactionByRequestID returns the charge recorded for a request id, or
// nil if absent.
func (s *Store) TransactionByRequestID(ctx context.Context, accountID, requestID string) (*domain.LedgerTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load(accountID)
	if err != nil {
		return nil, err
	}
	for _, t := range doc.Transactions {
		if t.RequestID == requestID {
			tt := t
			return &tt, nil
		}
	}
	return nil, nil
}

// ListTransactions returns the most recent charges, newest first.
func (s *Store) ListTransactions(ctx context.Context, accountID string, limit int) ([]domain.LedgerTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load(accountID)
	if err != nil {
		return nil, err
	}
	txns := append([]domain.LedgerTransaction(nil), doc.Transactions...)
	// Stored append-only; reverse for newest first.
	for i, j := 0, len(txns)-1; i < j; i, j = i+1, j-1 {
		txns[i], txns[j] = txns[j], txns[i]
	}
	if limit > 0 && len(txns) > limit {
		txns = txns[:limit]
	}
	return txns, nil
}
