package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldLedgerID   = "ledger_id"
	FieldEntryID    = "entry_id"
	FieldOperation  = "operation"
	FieldError      = "error"
	FieldDuration   = "duration_ms"
	FieldIndex      = "index"
	FieldKind       = "kind"
	FieldVerified   = "verified_count"
	FieldTotal      = "total"
	FieldScore      = "integrity_score"
	FieldRiskScore  = "risk_score"
	FieldMerkleRoot = "merkle_root"
	FieldDay        = "day"
	FieldTopic      = "topic"
	FieldTailHash   = "tail_hash"
	FieldEntries    = "entries"
	FieldBackend    = "backend"
)

// Components
const (
	ComponentApp     = "app"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentHTTP    = "http"
	ComponentAnchor  = "anchor"
	ComponentEvents  = "events"
)

// Operations
const (
	OpAppend   = "append"
	OpVerify   = "verify"
	OpRechain  = "rechain"
	OpEdit     = "edit"
	OpDelete   = "delete"
	OpRoot     = "daily_root"
	OpScan     = "tamper_scan"
	OpAnchor   = "anchor"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
