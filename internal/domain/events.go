package domain

// ─── Realtime Change Events ─────────────────────────────────────────────────

// ChangeOp tags a realtime change event.
type ChangeOp string

const (
	OpInsert ChangeOp = "INSERT"
	OpUpdate ChangeOp = "UPDATE"
	OpDelete ChangeOp = "DELETE"

	// OpReload is the coarse signal emitted by the local fallback store: the
	// per-account document changed and must be reloaded wholesale.
	OpReload ChangeOp = "RELOAD"
)

// ChangeEvent is a single inbound change from a store's push channel.
// For DELETE only Kind and ID are meaningful; for RELOAD neither is.
type ChangeEvent struct {
	Op     ChangeOp   `json:"op"`
	Kind   RecordKind `json:"kind,omitempty"`
	ID     string     `json:"id,omitempty"`
	Record Record     `json:"record,omitempty"`
}
