package api

import "time"

// ExpirationEntry is one entitlement whose end date falls inside the
// expiration window, with the extension verdict attached. Entries are
// derived on every analysis run and never persisted by the engine.
type ExpirationEntry struct {
	AccountID   string    `json:"account_id"`
	ProductCode string    `json:"product_code"`
	Category    Category  `json:"category"`
	EndDate     time.Time `json:"end_date"`

	DaysUntilExpiry int `json:"days_until_expiry"`

	SourceRecordID   string `json:"source_record_id"`
	SourceRecordName string `json:"source_record_name"`

	// Extension reference: the first later-ending grant of the same
	// product found on a different record, when one exists.
	IsExtended          bool       `json:"is_extended"`
	ExtendingRecordID   string     `json:"extending_record_id,omitempty"`
	ExtendingRecordName string     `json:"extending_record_name,omitempty"`
	ExtendingEndDate    *time.Time `json:"extending_end_date,omitempty"`
}

// GroupStatus summarizes an expiration group for display.
type GroupStatus string

const (
	// GroupAtRisk means at least one entry in the group has no
	// extension. A single non-extended item taints the whole group.
	GroupAtRisk   GroupStatus = "at-risk"
	GroupExtended GroupStatus = "extended"
)

// ExpirationGroup is the display grouping of entries by source record.
type ExpirationGroup struct {
	AccountID  string            `json:"account_id"`
	RecordID   string            `json:"record_id"`
	RecordName string            `json:"record_name"`
	Status     GroupStatus       `json:"status"`
	Entries    []ExpirationEntry `json:"entries"`
}
