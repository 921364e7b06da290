package api

// Request/response contracts for the HTTP layer. All state arrives in
// the request body; the server holds nothing between calls.

// ValidateRequest validates one record against the enabled rules.
// EnabledRules empty means the engine's default rule set.
type ValidateRequest struct {
	Record       ProvisioningRecord `json:"record"`
	EnabledRules []string           `json:"enabled_rules,omitempty"`
}

// ExpirationsRequest analyzes an account's record history for expiring
// and extended entitlements. AsOf is the analysis date (YYYY-MM-DD or
// RFC 3339); empty means the server clock.
type ExpirationsRequest struct {
	Records       []ProvisioningRecord `json:"records"`
	LookbackYears int                  `json:"lookback_years,omitempty"`
	WindowDays    int                  `json:"window_days,omitempty"`
	AsOf          string               `json:"as_of,omitempty"`
}

// ExpirationsResponse returns the flat entries plus the per-record
// display grouping.
type ExpirationsResponse struct {
	Entries []ExpirationEntry `json:"entries"`
	Groups  []ExpirationGroup `json:"groups"`
}

// SnapshotRequest aggregates an account's record history into the
// current-holdings view.
type SnapshotRequest struct {
	Records []ProvisioningRecord `json:"records"`
	AsOf    string               `json:"as_of,omitempty"`
}

// ErrorResponse is the standard error shape.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
