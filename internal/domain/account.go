// Package domain contains pure business types with ZERO infrastructure
// imports. This is the innermost ring; it depends on nothing.
package domain

import "time"

// ─── Account ────────────────────────────────────────────────────────────────

// Account is the authenticated or guest identity owning all domain records
// and a token balance.
type Account struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email,omitempty"`
	Balance        Cents     `json:"balance"`
	TokenWeekStart time.Time `json:"tokenWeekStart"`
	Guest          bool      `json:"guest"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NewAccount creates an account with the initial weekly grant.
func NewAccount(id, name, email string, guest bool, now time.Time) Account {
	return Account{
		ID:             id,
		Name:           name,
		Email:          email,
		Balance:        WeeklyGrant,
		TokenWeekStart: WeekAnchor(now),
		Guest:          guest,
		CreatedAt:      now.UTC(),
	}
}
