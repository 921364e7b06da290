package api

import "time"

// ProductStatus is derived from days remaining until the merged end
// date: >90 active, 31-90 expiring-soon, <=30 expiring.
type ProductStatus string

const (
	StatusActive       ProductStatus = "active"
	StatusExpiringSoon ProductStatus = "expiring-soon"
	StatusExpiring     ProductStatus = "expiring"
)

// AggregatedProduct is one merged entitlement in the current-holdings
// view. StartDate is the earliest observed across merged sources and
// EndDate the latest; SourcePSRecords lists every contributing record
// name.
type AggregatedProduct struct {
	ProductCode     string     `json:"product_code"`
	Category        Category   `json:"category"`
	Region          string     `json:"region"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         time.Time  `json:"end_date"`
	PackageName     string     `json:"package_name,omitempty"`
	ProductModifier string     `json:"product_modifier,omitempty"`

	Status        ProductStatus `json:"status"`
	DaysRemaining int           `json:"days_remaining"`

	SourcePSRecords []string `json:"source_ps_records"`
}

// RegionProducts holds one region's merged products per category, each
// list sorted by product code.
type RegionProducts struct {
	Models []AggregatedProduct `json:"models"`
	Apps   []AggregatedProduct `json:"apps"`
	Data   []AggregatedProduct `json:"data"`
}

// SnapshotSummary is a tally over the final merged set.
type SnapshotSummary struct {
	TotalActive int `json:"total_active"`
	Models      int `json:"models"`
	Apps        int `json:"apps"`
	Data        int `json:"data"`
}

// CustomerSnapshot is the deduplicated current-holdings view across an
// account's whole history. LastUpdated* comes from the most recent
// record with a parseable creation date and is informational only.
type CustomerSnapshot struct {
	AccountID string `json:"account_id"`

	LastUpdatedRecordID   string     `json:"last_updated_record_id,omitempty"`
	LastUpdatedRecordName string     `json:"last_updated_record_name,omitempty"`
	LastUpdatedAt         *time.Time `json:"last_updated_at,omitempty"`

	Regions map[string]RegionProducts `json:"regions"`
	Summary SnapshotSummary           `json:"summary"`
}
