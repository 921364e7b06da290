// Package api defines the shared data contracts for the entitlement
// reconciliation engine. Everything here is plain data with json tags;
// behavior lives in the internal engines.
package api

import (
	"encoding/json"
	"time"
)

// Category classifies an entitlement by product family.
type Category string

const (
	CategoryModel Category = "MODEL"
	CategoryApp   Category = "APP"
	CategoryData  Category = "DATA"
)

// Request types carried on provisioning records.
const (
	RequestOnboarding  = "Onboarding"
	RequestUpdate      = "Update"
	RequestDeprovision = "Deprovision"
)

// Entitlement is a single product grant extracted from a record payload.
// It is a value: the normalizer builds it once and nothing mutates it after.
type Entitlement struct {
	ProductCode     string     `json:"product_code"`
	Category        Category   `json:"category"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	Quantity        int        `json:"quantity"`
	PackageName     string     `json:"package_name,omitempty"`
	ProductModifier string     `json:"product_modifier,omitempty"`

	// Provenance, always retained. Extension and merge attribution
	// depend on these.
	SourceRecordID   string `json:"source_record_id"`
	SourceRecordName string `json:"source_record_name"`
}

// NormalizedPayload is the canonical shape of one record's entitlements.
type NormalizedPayload struct {
	Models []Entitlement `json:"models"`
	Apps   []Entitlement `json:"apps"`
	Data   []Entitlement `json:"data"`
}

// All flattens the three category lists in Models, Apps, Data order.
func (p NormalizedPayload) All() []Entitlement {
	out := make([]Entitlement, 0, len(p.Models)+len(p.Apps)+len(p.Data))
	out = append(out, p.Models...)
	out = append(out, p.Apps...)
	out = append(out, p.Data...)
	return out
}

// Count returns the total number of normalized entitlements.
func (p NormalizedPayload) Count() int {
	return len(p.Models) + len(p.Apps) + len(p.Data)
}

// ProvisioningRecord is one historical transaction for an account as
// delivered by the system-of-record collaborator. The engine never
// mutates it. RawPayload may be nil, a JSON object, or an unparseable
// string; CreatedAt is kept verbatim because upstream timestamps are
// not reliably well-formed.
type ProvisioningRecord struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	AccountID   string          `json:"account_id"`
	RequestType string          `json:"request_type"`
	CreatedAt   string          `json:"created_at"`
	RawPayload  json.RawMessage `json:"raw_payload,omitempty"`
}
