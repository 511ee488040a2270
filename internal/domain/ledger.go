package domain

import "time"

// ─── Metering Features ──────────────────────────────────────────────────────

// Feature tags the business reason for a token charge.
type Feature string

const (
	FeatureChatNormal Feature = "chat-normal"
	FeatureChatIgnite Feature = "chat-ignite"
	FeatureCrudAI     Feature = "crud-ai"
	FeatureImageGen   Feature = "image-gen"
)

// FeatureCosts maps each metered feature to its fixed cost.
// Ignite mode costs strictly more than normal mode for the same action class.
var FeatureCosts = map[Feature]Cents{
	FeatureChatNormal: 10,  // 0.10
	FeatureChatIgnite: 60,  // 0.60
	FeatureCrudAI:     25,  // 0.25
	FeatureImageGen:   100, // 1.00
}

// Cost returns the fixed cost for a feature, or 0 for unknown features.
func (f Feature) Cost() Cents {
	return FeatureCosts[f]
}

// ─── Ledger Transaction ─────────────────────────────────────────────────────

// LedgerTransaction is a single row in the append-only charge log.
// At most one transaction exists per RequestID; the ledger is the source of
// truth for deduction idempotency.
type LedgerTransaction struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	RequestID string    `json:"requestId"`
	Feature   Feature   `json:"feature"`
	Cost      Cents     `json:"cost"`
	Timestamp time.Time `json:"timestamp"`
}
