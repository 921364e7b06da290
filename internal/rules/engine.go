// Package rules evaluates business validation rules against a single
// provisioning record's normalized entitlements.
//
// The engine is fail-open throughout: a record with no payload, an
// unparseable payload, or a rule that panics during evaluation is
// treated as PASS. Malformed input is an expected condition here, not
// an error.
package rules

import (
	"fmt"

	"github.com/antonkaplanM/deployassist/internal/normalize"
	"github.com/antonkaplanM/deployassist/pkg/api"
)

// Built-in rule identifiers.
const (
	RuleAppQuantity = "app_quantity"
	RuleModelCount  = "model_count"
	RuleDateOverlap = "date_overlap"
)

// DefaultRules is the rule set used when the caller enables nothing
// explicitly.
var DefaultRules = []string{RuleAppQuantity, RuleModelCount, RuleDateOverlap}

// DefaultQuantityExemptCodes are app products that legitimately carry a
// quantity above one (seat and usage packs). The real allowlist is
// owned by the system of record; this is the fallback.
var DefaultQuantityExemptCodes = []string{
	"APP-USER-SEAT",
	"APP-API-CALLS",
}

// DefaultModelCountLimit caps model entitlements per record.
const DefaultModelCountLimit = 100

// Config holds the engine's tunables. The zero value is not useful;
// start from DefaultConfig.
type Config struct {
	QuantityExemptCodes []string
	ModelCountLimit     int

	// PoliciesDir optionally points at a directory of *.rego custom
	// rules, evaluated in addition to the enabled built-ins.
	PoliciesDir string
}

// DefaultConfig returns the stock rule configuration.
func DefaultConfig() Config {
	return Config{
		QuantityExemptCodes: DefaultQuantityExemptCodes,
		ModelCountLimit:     DefaultModelCountLimit,
	}
}

// Engine runs validation rules. It is stateless per record and safe
// for concurrent use.
type Engine struct {
	cfg      Config
	exempt   map[string]struct{}
	policies []preparedPolicy
}

// NewEngine builds an engine from cfg, loading custom policies when a
// policies directory is configured. Unloadable policies are skipped;
// they never make construction fail.
func NewEngine(cfg Config) *Engine {
	if cfg.ModelCountLimit == 0 {
		cfg.ModelCountLimit = DefaultModelCountLimit
	}
	exempt := make(map[string]struct{}, len(cfg.QuantityExemptCodes))
	for _, code := range cfg.QuantityExemptCodes {
		exempt[code] = struct{}{}
	}
	return &Engine{
		cfg:      cfg,
		exempt:   exempt,
		policies: loadPolicies(cfg.PoliciesDir),
	}
}

// Validate runs the enabled rules against one record. A nil enabled
// list means DefaultRules; unknown identifiers are ignored. The overall
// status is FAIL iff at least one rule result is FAIL.
func (e *Engine) Validate(rec api.ProvisioningRecord, enabled []string) api.RecordValidation {
	out := api.RecordValidation{
		RecordID:      rec.ID,
		OverallStatus: api.RulePass,
		RuleResults:   []api.RuleResult{},
	}

	// No payload or an unparseable one is "no data", not a failure:
	// the record passes with nothing evaluated.
	if !normalize.HasPayload(rec.RawPayload) {
		return out
	}

	payload := normalize.Record(rec)

	if enabled == nil {
		enabled = DefaultRules
	}
	for _, id := range enabled {
		res, ok := e.runRule(id, payload)
		if !ok {
			continue
		}
		out.RuleResults = append(out.RuleResults, res)
	}

	out.RuleResults = append(out.RuleResults, e.runCustomRules(payload)...)

	for _, res := range out.RuleResults {
		if res.Status == api.RuleFail {
			out.OverallStatus = api.RuleFail
			break
		}
	}
	return out
}

// runRule dispatches one built-in rule. A panic inside a rule is
// recovered and recorded as a PASS with a diagnostic note; it never
// aborts the remaining rules.
func (e *Engine) runRule(id string, payload api.NormalizedPayload) (res api.RuleResult, known bool) {
	defer func() {
		if r := recover(); r != nil {
			res = api.RuleResult{
				RuleID:  id,
				Status:  api.RulePass,
				Message: fmt.Sprintf("rule evaluation error, treated as pass: %v", r),
			}
			known = true
		}
	}()

	switch id {
	case RuleAppQuantity:
		return e.checkAppQuantity(payload), true
	case RuleModelCount:
		return e.checkModelCount(payload), true
	case RuleDateOverlap:
		return e.checkDateOverlap(payload), true
	default:
		return api.RuleResult{}, false
	}
}

// checkAppQuantity passes an app entitlement iff its quantity is
// exactly one or its product code is on the exemption allowlist.
// Models and data products are out of scope for this rule.
func (e *Engine) checkAppQuantity(payload api.NormalizedPayload) api.RuleResult {
	details := api.QuantityDetails{
		Checked:    len(payload.Apps),
		Violations: []api.QuantityViolation{},
	}
	for _, item := range payload.Apps {
		if item.Quantity == 1 {
			continue
		}
		if _, ok := e.exempt[item.ProductCode]; ok {
			continue
		}
		details.Violations = append(details.Violations, api.QuantityViolation{
			ProductCode: item.ProductCode,
			Quantity:    item.Quantity,
		})
	}

	if len(details.Violations) > 0 {
		return api.RuleResult{
			RuleID:  RuleAppQuantity,
			Status:  api.RuleFail,
			Message: fmt.Sprintf("%d app entitlement(s) with quantity != 1 outside the exemption list", len(details.Violations)),
			Details: details,
		}
	}
	return api.RuleResult{
		RuleID:  RuleAppQuantity,
		Status:  api.RulePass,
		Message: fmt.Sprintf("%d app entitlement(s) checked", details.Checked),
		Details: details,
	}
}

// checkModelCount fails when a record carries more model entitlements
// than the limit. No models is a pass with count zero.
func (e *Engine) checkModelCount(payload api.NormalizedPayload) api.RuleResult {
	details := api.CountDetails{
		Count: len(payload.Models),
		Limit: e.cfg.ModelCountLimit,
	}
	if details.Count > details.Limit {
		return api.RuleResult{
			RuleID:  RuleModelCount,
			Status:  api.RuleFail,
			Message: fmt.Sprintf("%d model entitlements exceed the limit of %d", details.Count, details.Limit),
			Details: details,
		}
	}
	return api.RuleResult{
		RuleID:  RuleModelCount,
		Status:  api.RulePass,
		Message: fmt.Sprintf("%d model entitlement(s) within limit of %d", details.Count, details.Limit),
		Details: details,
	}
}
