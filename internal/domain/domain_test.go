package domain

import (
	"testing"
	"time"
)

// ─── Money Tests ────────────────────────────────────────────────────────────

func TestCents_String(t *testing.T) {
	tests := []struct {
		c    Cents
		want string
	}{
		{0, "0.00"},
		{10, "0.10"},
		{1000, "10.00"},
		{990, "9.90"},
		{5, "0.05"},
		{-60, "-0.60"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.c.String(); got != tt.want {
				t.Errorf("Cents(%d).String() = %q, want %q", tt.c, got, tt.want)
			}
		})
	}
}

func TestWeekAnchor(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "wednesday maps to monday",
			in:   time.Date(2026, 8, 26, 15, 30, 0, 0, time.UTC),
			want: time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "monday maps to itself",
			in:   time.Date(2026, 8, 24, 0, 0, 1, 0, time.UTC),
			want: time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "sunday maps to previous monday",
			in:   time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC),
			want: time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeekAnchor(tt.in); !got.Equal(tt.want) {
				t.Errorf("WeekAnchor(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// ─── Feature Cost Tests ─────────────────────────────────────────────────────

func TestFeatureCosts_IgniteAboveNormal(t *testing.T) {
	if FeatureChatIgnite.Cost() <= FeatureChatNormal.Cost() {
		t.Errorf("ignite cost %v must exceed normal cost %v",
			FeatureChatIgnite.Cost(), FeatureChatNormal.Cost())
	}
}

func TestFeatureCosts_AllPositive(t *testing.T) {
	for f, c := range FeatureCosts {
		if c <= 0 {
			t.Errorf("feature %q has non-positive cost %v", f, c)
		}
	}
}

// ─── Habit Streak Tests ─────────────────────────────────────────────────────

func TestComputeStreak(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) // Friday

	tests := []struct {
		name  string
		dates []string
		want  int
	}{
		{"no completions", nil, 0},
		{"today only", []string{"2026-08-28"}, 1},
		{"three days ending today", []string{"2026-08-26", "2026-08-27", "2026-08-28"}, 3},
		{"streak alive through yesterday", []string{"2026-08-26", "2026-08-27"}, 2},
		{"broken two days ago", []string{"2026-08-25", "2026-08-26"}, 0},
		{"gap resets count", []string{"2026-08-24", "2026-08-27", "2026-08-28"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeStreak(tt.dates, now); got != tt.want {
				t.Errorf("ComputeStreak(%v) = %d, want %d", tt.dates, got, tt.want)
			}
		})
	}
}

func TestHabit_ToggleDate(t *testing.T) {
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	h := Habit{ID: "h1", Name: "reading", CompletedDates: []string{"2026-08-27"}}

	h.ToggleDate("2026-08-28", now)
	if !h.CompletedOn("2026-08-28") {
		t.Fatal("date should be marked completed after toggle")
	}
	if h.Streak != 2 {
		t.Errorf("Streak = %d, want 2", h.Streak)
	}

	h.ToggleDate("2026-08-28", now)
	if h.CompletedOn("2026-08-28") {
		t.Fatal("date should be removed after second toggle")
	}
	if h.Streak != 1 {
		t.Errorf("Streak = %d, want 1 (yesterday still counts)", h.Streak)
	}
}

// ─── Account Tests ──────────────────────────────────────────────────────────

func TestNewAccount(t *testing.T) {
	now := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	a := NewAccount("acc1", "Dana", "dana@example.com", false, now)

	if a.Balance != WeeklyGrant {
		t.Errorf("Balance = %v, want %v", a.Balance, WeeklyGrant)
	}
	if !a.TokenWeekStart.Equal(WeekAnchor(now)) {
		t.Errorf("TokenWeekStart = %v, want %v", a.TokenWeekStart, WeekAnchor(now))
	}
	if a.Guest {
		t.Error("Guest should be false")
	}
}

// ─── Record Set Tests ───────────────────────────────────────────────────────

func TestRecordSet_Records(t *testing.T) {
	set := RecordSet{
		Tasks:    []Task{{ID: "t1"}, {ID: "t2"}},
		Projects: []Project{{ID: "p1"}},
		Clients:  []Client{{ID: "c1"}},
		Habits:   []Habit{{ID: "h1"}},
		Folders:  []Folder{{ID: "f1"}},
	}
	recs := set.Records()
	if len(recs) != 6 {
		t.Fatalf("len(Records()) = %d, want 6", len(recs))
	}
	if recs[0].Kind() != KindTask || recs[0].Key() != "t1" {
		t.Errorf("first record = %s/%s, want task/t1", recs[0].Kind(), recs[0].Key())
	}
}
