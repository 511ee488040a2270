package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/focusdeck/focusdeck/internal/domain"
	"github.com/focusdeck/focusdeck/internal/infra/sqlite"
)

func testService(t *testing.T, now time.Time) (*Service, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc := New(db)
	svc.SetClock(func() time.Time { return now })
	return svc, db
}

func seedAccount(t *testing.T, db *sqlite.DB, balance domain.Cents, weekStart time.Time) {
	t.Helper()
	a := domain.Account{
		ID:             "acc1",
		Name:           "Dana",
		Balance:        balance,
		TokenWeekStart: weekStart,
	}
	if err := db.PutAccount(context.Background(), a); err != nil {
		t.Fatalf("PutAccount: %v", err)
	}
}

var thisWeek = time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC) // Wednesday

func TestCheckAndDeduct_Basic(t *testing.T) {
	svc, db := testService(t, thisWeek)
	seedAccount(t, db, 1000, domain.WeekAnchor(thisWeek))

	balance, err := svc.CheckAndDeduct(context.Background(), "acc1", 10, domain.FeatureChatNormal, "r1")
	if err != nil {
		t.Fatalf("CheckAndDeduct: %v", err)
	}
	if balance != 990 {
		t.Errorf("balance = %v, want 990", balance)
	}
	n, _ := db.CountTransactions(context.Background(), "acc1")
	if n != 1 {
		t.Errorf("ledger rows = %d, want 1", n)
	}
}

func TestCheckAndDeduct_Idempotent(t *testing.T) {
	svc, db := testService(t, thisWeek)
	seedAccount(t, db, 1000, domain.WeekAnchor(thisWeek))
	ctx := context.Background()

	first, err := svc.CheckAndDeduct(ctx, "acc1", 10, domain.FeatureChatNormal, "r1")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := svc.CheckAndDeduct(ctx, "acc1", 10, domain.FeatureChatNormal, "r1")
	if err != nil {
		t.Fatalf("retried call: %v", err)
	}
	if first != 990 || second != 990 {
		t.Errorf("balances = %v, %v, want 990 both times", first, second)
	}
	n, _ := db.CountTransactions(ctx, "acc1")
	if n != 1 {
		t.Errorf("ledger rows = %d, want exactly 1 after retry", n)
	}
}

func TestCheckAndDeduct_BalanceFloor(t *testing.T) {
	svc, db := testService(t, thisWeek)
	seedAccount(t, db, 50, domain.WeekAnchor(thisWeek))
	ctx := context.Background()

	_, err := svc.CheckAndDeduct(ctx, "acc1", 60, domain.FeatureChatIgnite, "r1")
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}

	balance, _ := svc.Balance(ctx, "acc1")
	if balance != 50 {
		t.Errorf("balance changed to %v on refused deduction", balance)
	}
	n, _ := db.CountTransactions(ctx, "acc1")
	if n != 0 {
		t.Errorf("ledger rows = %d, want 0", n)
	}
}

func TestCheckAndDeduct_WeeklyReset(t *testing.T) {
	svc, db := testService(t, thisWeek)
	lastWeek := domain.WeekAnchor(thisWeek).AddDate(0, 0, -7)
	seedAccount(t, db, 0, lastWeek)
	ctx := context.Background()

	balance, err := svc.CheckAndDeduct(ctx, "acc1", 10, domain.FeatureChatNormal, "r1")
	if err != nil {
		t.Fatalf("CheckAndDeduct: %v", err)
	}
	if balance != domain.WeeklyGrant-10 {
		t.Errorf("balance = %v, want %v (reset to grant, then deduct)", balance, domain.WeeklyGrant-10)
	}

	account, _ := db.GetAccount(ctx, "acc1")
	if !account.TokenWeekStart.Equal(domain.WeekAnchor(thisWeek)) {
		t.Errorf("TokenWeekStart = %v, want current anchor %v",
			account.TokenWeekStart, domain.WeekAnchor(thisWeek))
	}
}

func TestCheckAndDeduct_ResetPersistsOnRefusal(t *testing.T) {
	svc, db := testService(t, thisWeek)
	lastWeek := domain.WeekAnchor(thisWeek).AddDate(0, 0, -7)
	seedAccount(t, db, 0, lastWeek)
	ctx := context.Background()

	// Cost above the full grant: refused, but the weekly grant still lands.
	_, err := svc.CheckAndDeduct(ctx, "acc1", domain.WeeklyGrant+1, domain.FeatureImageGen, "r1")
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	balance, _ := svc.Balance(ctx, "acc1")
	if balance != domain.WeeklyGrant {
		t.Errorf("balance = %v, want %v (grant persisted despite refusal)", balance, domain.WeeklyGrant)
	}
}

func TestCheckAndDeduct_AccountNotFound(t *testing.T) {
	svc, _ := testService(t, thisWeek)
	_, err := svc.CheckAndDeduct(context.Background(), "ghost", 10, domain.FeatureChatNormal, "r1")
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestCheckAndDeduct_InvalidArgs(t *testing.T) {
	svc, db := testService(t, thisWeek)
	seedAccount(t, db, 1000, domain.WeekAnchor(thisWeek))
	ctx := context.Background()

	if _, err := svc.CheckAndDeduct(ctx, "acc1", 0, domain.FeatureChatNormal, "r1"); err == nil {
		t.Error("zero cost accepted")
	}
	if _, err := svc.CheckAndDeduct(ctx, "acc1", -5, domain.FeatureChatNormal, "r1"); err == nil {
		t.Error("negative cost accepted")
	}
	if _, err := svc.CheckAndDeduct(ctx, "acc1", 10, domain.FeatureChatNormal, ""); err == nil {
		t.Error("empty request id accepted")
	}
}

func TestCheckAndDeduct_BalanceHook(t *testing.T) {
	svc, db := testService(t, thisWeek)
	seedAccount(t, db, 1000, domain.WeekAnchor(thisWeek))

	var hookBalance domain.Cents = -1
	svc.SetBalanceHook(func(accountID string, balance domain.Cents) {
		if accountID == "acc1" {
			hookBalance = balance
		}
	})

	svc.CheckAndDeduct(context.Background(), "acc1", 10, domain.FeatureChatNormal, "r1")
	if hookBalance != 990 {
		t.Errorf("session refresh hook saw %v, want 990", hookBalance)
	}
}

// End-to-end metering scenario: normal send, double-click retry, then ignite
// sends until the balance runs dry.
func TestMeteringScenario(t *testing.T) {
	svc, db := testService(t, thisWeek)
	seedAccount(t, db, 1000, domain.WeekAnchor(thisWeek))
	ctx := context.Background()

	balance, err := svc.CheckAndDeduct(ctx, "acc1", 10, domain.FeatureChatNormal, "r1")
	if err != nil || balance != 990 {
		t.Fatalf("normal send: balance=%v err=%v, want 990", balance, err)
	}
	balance, err = svc.CheckAndDeduct(ctx, "acc1", 10, domain.FeatureChatNormal, "r1")
	if err != nil || balance != 990 {
		t.Fatalf("double-click retry: balance=%v err=%v, want 990", balance, err)
	}
	if n, _ := db.CountTransactions(ctx, "acc1"); n != 1 {
		t.Fatalf("ledger rows after retry = %d, want 1", n)
	}

	// 990 / 60 = 16 full ignite sends; the 17th must be refused.
	var lastGood domain.Cents = 990
	for i := 1; i <= 40; i++ {
		requestID := fmt.Sprintf("ignite-%d", i)
		balance, err = svc.CheckAndDeduct(ctx, "acc1", 60, domain.FeatureChatIgnite, requestID)
		if i <= 16 {
			if err != nil {
				t.Fatalf("ignite send %d failed early: %v", i, err)
			}
			lastGood = balance
			continue
		}
		if !errors.Is(err, domain.ErrInsufficientBalance) {
			t.Fatalf("ignite send %d: err = %v, want ErrInsufficientBalance", i, err)
		}
	}
	if lastGood != 990-16*60 {
		t.Errorf("last successful balance = %v, want %v", lastGood, 990-16*60)
	}
	final, _ := svc.Balance(ctx, "acc1")
	if final != lastGood {
		t.Errorf("final balance = %v, want unchanged %v", final, lastGood)
	}
	if n, _ := db.CountTransactions(ctx, "acc1"); n != 17 { // 1 normal + 16 ignite
		t.Errorf("ledger rows = %d, want 17", n)
	}
}
