package api

import "time"

// RuleStatus is a per-rule (and overall) verdict.
type RuleStatus string

const (
	RulePass RuleStatus = "PASS"
	RuleFail RuleStatus = "FAIL"
)

// RuleResult is the outcome of one validation rule against one record.
// Details carries a rule-specific diagnostic struct (QuantityDetails,
// CountDetails or OverlapDetails) with enough data to reconstruct why
// the rule failed.
type RuleResult struct {
	RuleID  string     `json:"rule_id"`
	Status  RuleStatus `json:"status"`
	Message string     `json:"message"`
	Details any        `json:"details,omitempty"`
}

// RecordValidation is the overall verdict for one record.
// OverallStatus is FAIL iff at least one rule result is FAIL; a record
// with no payload or no evaluable rules is PASS.
type RecordValidation struct {
	RecordID      string       `json:"record_id"`
	OverallStatus RuleStatus   `json:"overall_status"`
	RuleResults   []RuleResult `json:"rule_results"`
}

// QuantityViolation describes one app entitlement that failed the
// quantity rule.
type QuantityViolation struct {
	ProductCode string `json:"product_code"`
	Quantity    int    `json:"quantity"`
}

// QuantityDetails is the diagnostic payload of the app quantity rule.
type QuantityDetails struct {
	Checked    int                 `json:"checked"`
	Violations []QuantityViolation `json:"violations"`
}

// CountDetails is the diagnostic payload of the model count rule.
type CountDetails struct {
	Count int `json:"count"`
	Limit int `json:"limit"`
}

// OverlapKind classifies a detected overlap. Diagnostic only; any kind
// fails the rule.
type OverlapKind string

const (
	OverlapIdentical OverlapKind = "identical"
	OverlapContained OverlapKind = "contained"
	OverlapPartial   OverlapKind = "partial"
)

// OverlapItem pins down one side of an overlapping pair: the category
// list it came from, its index within that list, and its date range.
type OverlapItem struct {
	Category  Category  `json:"category"`
	Index     int       `json:"index"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// OverlapPair is one detected overlap within a product-code group.
type OverlapPair struct {
	ProductCode string      `json:"product_code"`
	Kind        OverlapKind `json:"kind"`
	First       OverlapItem `json:"first"`
	Second      OverlapItem `json:"second"`
}

// OverlapDetails is the diagnostic payload of the date overlap rule.
type OverlapDetails struct {
	Overlaps []OverlapPair `json:"overlaps"`
}

// CustomRuleDetails is the diagnostic payload of a Rego-backed custom
// rule.
type CustomRuleDetails struct {
	Policy     string   `json:"policy"`
	Violations []string `json:"violations"`
}
