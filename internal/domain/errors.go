package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure, with no infrastructure dependency.

var (
	// Ledger errors
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrAccountNotFound     = errors.New("account not found")

	// Record errors
	ErrRecordNotFound = errors.New("record not found")
	ErrUnknownKind    = errors.New("unknown record kind")

	// Store errors
	ErrBackendUnavailable = errors.New("durable backend unavailable")

	// Agent errors
	ErrTurnCancelled = errors.New("chat turn cancelled")
)
