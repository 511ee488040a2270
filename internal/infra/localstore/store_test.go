package localstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/focusdeck/focusdeck/internal/domain"
	"github.com/focusdeck/focusdeck/internal/infra/bus"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestUpsertAndLoadAll(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, "guest1", domain.Task{ID: "t1", Title: "ship invoice"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Upsert(ctx, "guest1", domain.Task{ID: "t1", Title: "ship invoice", Completed: true}); err != nil {
		t.Fatalf("Upsert replace: %v", err)
	}

	set, err := s.LoadAll(ctx, "guest1")
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(set.Tasks) != 1 {
		t.Fatalf("tasks = %d, want 1 (upsert must replace, not append)", len(set.Tasks))
	}
	if !set.Tasks[0].Completed {
		t.Error("updated field lost on upsert")
	}
}

func TestDeleteProject_Cascade(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.Upsert(ctx, "guest1", domain.Project{ID: "p1", Name: "rebrand"})
	s.Upsert(ctx, "guest1", domain.Task{ID: "t1", ProjectID: "p1"})
	s.Upsert(ctx, "guest1", domain.Task{ID: "t2", ProjectID: "p1"})

	if err := s.Delete(ctx, "guest1", domain.KindProject, "p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	set, _ := s.LoadAll(ctx, "guest1")
	if len(set.Projects) != 0 {
		t.Errorf("projects remain: %+v", set.Projects)
	}
	if len(set.Tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(set.Tasks))
	}
	for _, task := range set.Tasks {
		if task.ProjectID != "" {
			t.Errorf("task %s still references deleted project", task.ID)
		}
	}
}

func TestDeleteClient_Cascade(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.Upsert(ctx, "guest1", domain.Client{ID: "c1", Name: "Acme"})
	s.Upsert(ctx, "guest1", domain.Project{ID: "p1", ClientID: "c1"})
	s.Upsert(ctx, "guest1", domain.Project{ID: "p2", ClientID: "c1"})
	s.Upsert(ctx, "guest1", domain.Task{ID: "t1", ProjectID: "p1"})
	s.Upsert(ctx, "guest1", domain.Task{ID: "t2", ProjectID: "p2"})
	s.Upsert(ctx, "guest1", domain.Task{ID: "t3", ProjectID: "p2"})
	s.Upsert(ctx, "guest1", domain.Folder{ID: "f1", ClientID: "c1"})

	if err := s.Delete(ctx, "guest1", domain.KindClient, "c1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	set, _ := s.LoadAll(ctx, "guest1")
	if len(set.Clients) != 0 || len(set.Projects) != 0 {
		t.Errorf("cascade left clients=%d projects=%d", len(set.Clients), len(set.Projects))
	}
	for _, task := range set.Tasks {
		if task.ProjectID != "" {
			t.Errorf("task %s references deleted project %s", task.ID, task.ProjectID)
		}
	}
	if set.Folders[0].ClientID != "" {
		t.Error("folder client reference not cleared")
	}
}

func TestMutationPublishesReload(t *testing.T) {
	s := testStore(t)
	n := bus.New()
	s.SetNotifier(n)
	ch, unsub := n.Subscribe("guest1")
	defer unsub()

	if err := s.Upsert(context.Background(), "guest1", domain.Habit{ID: "h1", Name: "gym"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Op != domain.OpReload {
			t.Errorf("event op = %s, want RELOAD", ev.Op)
		}
	case <-time.After(time.Second):
		t.Fatal("no reload signal published")
	}
}

// ─── Guest Account / Ledger Tests ───────────────────────────────────────────

func TestGuestAccountRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.GetAccount(ctx, "guest1"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}

	a := domain.NewAccount("guest1", "Guest", "", true, time.Now())
	if err := s.PutAccount(ctx, a); err != nil {
		t.Fatalf("PutAccount: %v", err)
	}
	got, err := s.GetAccount(ctx, "guest1")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !got.Guest || got.Balance != domain.WeeklyGrant {
		t.Errorf("account = %+v", got)
	}
}

func TestGuestCommitDeduction(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	a := domain.NewAccount("guest1", "Guest", "", true, time.Now())
	s.PutAccount(ctx, a)

	a.Balance -= 10
	txn := domain.LedgerTransaction{ID: "tx1", AccountID: "guest1", RequestID: "r1",
		Feature: domain.FeatureChatNormal, Cost: 10, Timestamp: time.Now()}
	if err := s.CommitDeduction(ctx, a, txn); err != nil {
		t.Fatalf("CommitDeduction: %v", err)
	}
	if err := s.CommitDeduction(ctx, a, txn); err == nil {
		t.Fatal("duplicate request id must be rejected by the store")
	}

	found, err := s.TransactionByRequestID(ctx, "guest1", "r1")
	if err != nil || found == nil || found.Cost != 10 {
		t.Fatalf("TransactionByRequestID = %+v, %v", found, err)
	}
	got, _ := s.GetAccount(ctx, "guest1")
	if got.Balance != domain.WeeklyGrant-10 {
		t.Errorf("Balance = %v, want %v", got.Balance, domain.WeeklyGrant-10)
	}
}

func TestWatcherPublishesReload(t *testing.T) {
	s := testStore(t)
	n := bus.New()

	w, err := NewWatcher(s, n)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Start()
	defer w.Stop()

	ch, unsub := n.Subscribe("guest1")
	defer unsub()

	// Simulate another process writing the document: bypass the store's own
	// notifier by not attaching one.
	if err := s.Upsert(context.Background(), "guest1", domain.Task{ID: "t1"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Op != domain.OpReload {
			t.Errorf("event op = %s, want RELOAD", ev.Op)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher published no reload signal")
	}
}
