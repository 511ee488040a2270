// Package records fronts the two record backends behind one service.
// Guests (no durable identity) always use the local document store;
// registered accounts use the durable backend, with every successful write
// mirrored into the local document as a warm cache and durable read
// failures served from that cache. Mirror writes are silent so they do not
// echo back through the change feed.
package records

import (
	"context"
	"fmt"
	"log"

	"github.com/focusdeck/focusdeck/internal/domain"
	"github.com/focusdeck/focusdeck/internal/infra/observability"
)

// CacheMirror is the silent write surface the local document store offers
// for mirroring durable state. A local store without it (in-memory test
// doubles) simply skips the cache.
type CacheMirror interface {
	MirrorUpsert(ctx context.Context, accountID string, rec domain.Record) error
	MirrorDelete(ctx context.Context, accountID string, kind domain.RecordKind, id string) error
	ReplaceRecords(ctx context.Context, accountID string, set domain.RecordSet) error
}

// Service routes record operations to the right backend for an account.
type Service struct {
	durable domain.RecordStore // nil in local-only deployments
	local   domain.RecordStore
	mirror  CacheMirror // non-nil when local supports silent cache writes
}

// New creates the routing service. durable may be nil, forcing local-only
// operation for every account.
func New(durable, local domain.RecordStore) *Service {
	s := &Service{durable: durable, local: local}
	if m, ok := local.(CacheMirror); ok {
		s.mirror = m
	}
	return s
}

func (s *Service) useDurable(account domain.Account) bool {
	return s.durable != nil && !account.Guest
}

// Upsert writes a record through the account's backend. For registered
// accounts the write also lands in the local cache; a durable failure is
// returned to the caller but the cache write still happens, so optimistic
// local state survives backend outages.
func (s *Service) Upsert(ctx context.Context, account domain.Account, rec domain.Record) error {
	if !s.useDurable(account) {
		return s.local.Upsert(ctx, account.ID, rec)
	}

	durableErr := s.durable.Upsert(ctx, account.ID, rec)
	if s.mirror != nil {
		if err := s.mirror.MirrorUpsert(ctx, account.ID, rec); err != nil {
			log.Printf("[records] cache mirror failed for %s %s: %v", rec.Kind(), rec.Key(), err)
		}
	}
	if durableErr != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, durableErr)
	}
	return nil
}

// Delete removes a record through the account's backend, mirroring into the
// cache. Cascade rules run inside each backend.
func (s *Service) Delete(ctx context.Context, account domain.Account, kind domain.RecordKind, id string) error {
	if !s.useDurable(account) {
		return s.local.Delete(ctx, account.ID, kind, id)
	}

	durableErr := s.durable.Delete(ctx, account.ID, kind, id)
	if s.mirror != nil {
		if err := s.mirror.MirrorDelete(ctx, account.ID, kind, id); err != nil {
			log.Printf("[records] cache delete failed for %s %s: %v", kind, id, err)
		}
	}
	if durableErr != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, durableErr)
	}
	return nil
}

// LoadAll reads the account's full record set. A durable read failure falls
// back to the local cache; fromCache reports that degradation so the caller
// can surface a non-blocking warning.
func (s *Service) LoadAll(ctx context.Context, account domain.Account) (set *domain.RecordSet, fromCache bool, err error) {
	if !s.useDurable(account) {
		set, err = s.local.LoadAll(ctx, account.ID)
		return set, false, err
	}

	set, durableErr := s.durable.LoadAll(ctx, account.ID)
	if durableErr == nil {
		if s.mirror != nil {
			// Refresh the cache wholesale while we hold a good copy.
			if err := s.mirror.ReplaceRecords(ctx, account.ID, *set); err != nil {
				log.Printf("[records] cache refresh failed for account %s: %v", account.ID, err)
			}
		}
		return set, false, nil
	}

	log.Printf("[records] durable read failed for account %s, serving cache: %v", account.ID, durableErr)
	observability.FallbackReads.Inc()
	set, err = s.local.LoadAll(ctx, account.ID)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, durableErr)
	}
	return set, true, nil
}
