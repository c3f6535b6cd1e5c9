package events

import (
	"time"
)

const (
	TopicDailyRootAnchored = "ledger.daily_root_anchored"
	TopicLedgerRechained   = "ledger.rechained"
)

// DailyRootAnchored commits a ledger's day to an external medium.
type DailyRootAnchored struct {
	LedgerID        string    `json:"ledger_id"`
	Day             string    `json:"day"`
	TimeZone        string    `json:"time_zone"`
	MerkleRoot      string    `json:"merkle_root"`
	EntryCount      int       `json:"entry_count"`
	ProtocolVersion int       `json:"protocol_version"`
	ComputedAt      time.Time `json:"computed_at"`
}

// LedgerRechained records an audited repair of a ledger suffix.
type LedgerRechained struct {
	LedgerID       string    `json:"ledger_id"`
	TriggerID      string    `json:"trigger_entry_id"`
	Reason         string    `json:"reason"`
	FromIndex      int       `json:"from_index"`
	EntriesTouched int       `json:"entries_touched"`
	NewTailHash    string    `json:"new_tail_hash"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Key partitions events by ledger.
func (e DailyRootAnchored) Key() string { return e.LedgerID }

func (e LedgerRechained) Key() string { return e.LedgerID }
