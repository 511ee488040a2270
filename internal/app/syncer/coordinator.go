// Package syncer owns the per-session in-memory snapshot of an account's
// records and reconciles three inputs into it: the initial load, optimistic
// local mutations from the UI and the agent, and realtime change events
// pushed by the stores. The coordinator is the snapshot's only writer;
// every other component reads a copy and proposes changes through it.
package syncer

import (
	"context"
	"log"
	"sync"

	"github.com/focusdeck/focusdeck/internal/app/records"
	"github.com/focusdeck/focusdeck/internal/domain"
	"github.com/focusdeck/focusdeck/internal/infra/observability"
)

// Coordinator serializes snapshot mutations in arrival order. Local
// mutations apply synchronously and persist in the background; remote events
// merge last-writer-wins by record id.
type Coordinator struct {
	records  *records.Service
	notifier domain.Notifier

	mu        sync.Mutex
	account   *domain.Account
	snapshot  domain.RecordSet
	inflight  map[string]int // record id -> pending persists
	epoch     int            // bumped on every account switch
	unsub     func()
	fromCache bool

	onChange func()
}

// New creates a coordinator with no active account. Callers must
// SwitchAccount before applying mutations.
func New(recs *records.Service, notifier domain.Notifier) *Coordinator {
	return &Coordinator{
		records:  recs,
		notifier: notifier,
		inflight: make(map[string]int),
	}
}

// SetChangeHook registers a callback invoked after every snapshot change.
// Must be called before SwitchAccount.
func (c *Coordinator) SetChangeHook(fn func()) { c.onChange = fn }

// ─── Session Lifecycle ──────────────────────────────────────────────────────

// SwitchAccount discards the previous account's snapshot entirely, then
// subscribes to the new account's change feed and loads its records. The old
// and new accounts' records are never interleaved.
func (c *Coordinator) SwitchAccount(ctx context.Context, account domain.Account) error {
	c.mu.Lock()
	if c.unsub != nil {
		c.unsub()
		c.unsub = nil
	}
	c.epoch++
	epoch := c.epoch
	c.account = &account
	c.snapshot = domain.RecordSet{}
	c.inflight = make(map[string]int)
	c.fromCache = false

	ch, cancel := c.notifier.Subscribe(account.ID)
	c.unsub = cancel
	c.mu.Unlock()

	go c.consume(ch, epoch)

	set, fromCache, err := c.records.LoadAll(ctx, account)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if c.epoch == epoch {
		c.replaceSnapshotLocked(set)
		c.fromCache = fromCache
	}
	c.mu.Unlock()
	c.notifyChange()
	return nil
}

// Close unsubscribes from the change feed. The coordinator is unusable
// afterwards.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsub != nil {
		c.unsub()
		c.unsub = nil
	}
	c.epoch++
	c.account = nil
}

// Snapshot returns a deep copy of the current snapshot.
func (c *Coordinator) Snapshot() domain.RecordSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot.Clone()
}

// Account returns a copy of the active account, if one is loaded.
func (c *Coordinator) Account() (domain.Account, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.account == nil {
		return domain.Account{}, false
	}
	return *c.account, true
}

// RefreshBalance updates the cached active account after a ledger charge,
// so session reads in the same process see the new balance. Charges against
// other accounts are ignored.
func (c *Coordinator) RefreshBalance(accountID string, balance domain.Cents) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.account == nil || c.account.ID != accountID {
		return
	}
	c.account.Balance = balance
}

// Degraded reports whether the last full load was served from the local
// cache because the durable backend was unreachable.
func (c *Coordinator) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fromCache
}

// ─── Local Mutations ────────────────────────────────────────────────────────

// Upsert applies a local mutation to the snapshot immediately, then persists
// it through the record store in the background. Persistence failures are
// logged and counted; the optimistic snapshot state is kept.
func (c *Coordinator) Upsert(ctx context.Context, rec domain.Record) error {
	c.mu.Lock()
	if c.account == nil {
		c.mu.Unlock()
		return domain.ErrAccountNotFound
	}
	if err := c.snapshot.Upsert(rec); err != nil {
		c.mu.Unlock()
		return err
	}
	account := *c.account
	epoch := c.epoch
	c.inflight[rec.Key()]++
	c.mu.Unlock()

	observability.LocalMutations.WithLabelValues(string(rec.Kind()), "upsert").Inc()
	c.notifyChange()

	// The caller's context dies the moment its HTTP handler returns, which
	// is before the background persist runs. Once the optimistic apply has
	// happened the write must reach the store; cancellation only gates work
	// that has not started yet.
	persistCtx := context.WithoutCancel(ctx)
	go func() {
		err := c.records.Upsert(persistCtx, account, rec)
		c.settle(rec.Key(), epoch)
		if err != nil {
			observability.PersistFailures.WithLabelValues(string(rec.Kind())).Inc()
			log.Printf("[syncer] persist %s %s failed: %v", rec.Kind(), rec.Key(), err)
		}
	}()
	return nil
}

// Delete removes a record from the snapshot immediately, cascades included,
// then persists the delete in the background.
func (c *Coordinator) Delete(ctx context.Context, kind domain.RecordKind, id string) error {
	c.mu.Lock()
	if c.account == nil {
		c.mu.Unlock()
		return domain.ErrAccountNotFound
	}
	if err := c.snapshot.Delete(kind, id); err != nil {
		c.mu.Unlock()
		return err
	}
	account := *c.account
	c.mu.Unlock()

	observability.LocalMutations.WithLabelValues(string(kind), "delete").Inc()
	c.notifyChange()

	// No inflight tracking here: a deleted record has no snapshot state
	// left to preserve across a reload.
	persistCtx := context.WithoutCancel(ctx)
	go func() {
		if err := c.records.Delete(persistCtx, account, kind, id); err != nil {
			observability.PersistFailures.WithLabelValues(string(kind)).Inc()
			log.Printf("[syncer] delete %s %s failed: %v", kind, id, err)
		}
	}()
	return nil
}

// settle marks one pending persist for a record id as finished.
func (c *Coordinator) settle(id string, epoch int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return
	}
	if c.inflight[id] <= 1 {
		delete(c.inflight, id)
	} else {
		c.inflight[id]--
	}
}

// ─── Remote Events ──────────────────────────────────────────────────────────

func (c *Coordinator) consume(ch <-chan domain.ChangeEvent, epoch int) {
	for ev := range ch {
		c.applyRemoteEvent(ev, epoch)
	}
}

// applyRemoteEvent merges one inbound change. Last-writer-wins by record id:
// INSERT for an id already present is an echo of this session's own write
// and is dropped; UPDATE replaces the record wholesale; DELETE is a no-op
// when the id is absent. RELOAD replaces the snapshot from the store while
// preserving records with persists still in flight.
func (c *Coordinator) applyRemoteEvent(ev domain.ChangeEvent, epoch int) {
	observability.RemoteEvents.WithLabelValues(string(ev.Op)).Inc()

	if ev.Op == domain.OpReload {
		c.reload(epoch)
		return
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	switch ev.Op {
	case domain.OpInsert:
		if ev.Record == nil {
			c.mu.Unlock()
			return
		}
		if c.snapshot.Contains(ev.Kind, ev.ID) {
			c.mu.Unlock()
			observability.EchoesDropped.Inc()
			return
		}
		if err := c.snapshot.Upsert(ev.Record); err != nil {
			log.Printf("[syncer] insert event for %s %s: %v", ev.Kind, ev.ID, err)
		}
	case domain.OpUpdate:
		if ev.Record == nil {
			c.mu.Unlock()
			return
		}
		if err := c.snapshot.Upsert(ev.Record); err != nil {
			log.Printf("[syncer] update event for %s %s: %v", ev.Kind, ev.ID, err)
		}
	case domain.OpDelete:
		if err := c.snapshot.Delete(ev.Kind, ev.ID); err != nil {
			log.Printf("[syncer] delete event for %s %s: %v", ev.Kind, ev.ID, err)
		}
	default:
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.notifyChange()
}

// reload handles the local store's coarse change signal by re-reading the
// whole per-account document and swapping it in wholesale.
func (c *Coordinator) reload(epoch int) {
	c.mu.Lock()
	if c.epoch != epoch || c.account == nil {
		c.mu.Unlock()
		return
	}
	account := *c.account
	c.mu.Unlock()

	set, fromCache, err := c.records.LoadAll(context.Background(), account)
	if err != nil {
		log.Printf("[syncer] reload for account %s failed: %v", account.ID, err)
		return
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	c.replaceSnapshotLocked(set)
	c.fromCache = fromCache
	c.mu.Unlock()
	c.notifyChange()
}

// replaceSnapshotLocked swaps in a freshly loaded record set. Records whose
// persists have not settled yet keep their local version, so a reload racing
// an in-flight write does not roll the write back.
func (c *Coordinator) replaceSnapshotLocked(set *domain.RecordSet) {
	for id := range c.inflight {
		if rec, ok := recordByID(&c.snapshot, id); ok {
			if err := set.Upsert(rec); err != nil {
				log.Printf("[syncer] keep in-flight %s: %v", id, err)
			}
		}
	}
	c.snapshot = *set
}

func (c *Coordinator) notifyChange() {
	if c.onChange != nil {
		c.onChange()
	}
}

// recordByID finds a record of any kind by id.
func recordByID(set *domain.RecordSet, id string) (domain.Record, bool) {
	for _, rec := range set.Records() {
		if rec.Key() == id {
			return rec, true
		}
	}
	return nil, false
}
