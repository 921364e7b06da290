package rules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/open-policy-agent/opa/rego"

	"github.com/antonkaplanM/deployassist/pkg/api"
)

// customQuery is the deny set custom policies must populate.
const customQuery = "data.deployassist.deny"

type preparedPolicy struct {
	name  string
	query rego.PreparedEvalQuery
}

// loadPolicies prepares every *.rego file under dir. Files that cannot
// be read or compiled are skipped; custom rules must never take the
// engine down.
func loadPolicies(dir string) []preparedPolicy {
	if dir == "" {
		return nil
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.rego"))
	if err != nil || len(files) == 0 {
		return nil
	}

	var out []preparedPolicy
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		q, err := rego.New(
			rego.Query(customQuery),
			rego.Module(filepath.Base(file), string(content)),
		).PrepareForEval(context.Background())
		if err != nil {
			continue
		}
		out = append(out, preparedPolicy{name: filepath.Base(file), query: q})
	}
	return out
}

// runCustomRules evaluates every prepared policy against the
// normalized payload. Evaluation errors produce a PASS with a note,
// matching the fail-open contract of the built-in rules.
func (e *Engine) runCustomRules(payload api.NormalizedPayload) []api.RuleResult {
	if len(e.policies) == 0 {
		return nil
	}

	input := policyInput(payload)
	results := make([]api.RuleResult, 0, len(e.policies))
	for _, p := range e.policies {
		id := "custom:" + strings.TrimSuffix(p.name, ".rego")

		rs, err := p.query.Eval(context.Background(), rego.EvalInput(input))
		if err != nil {
			results = append(results, api.RuleResult{
				RuleID:  id,
				Status:  api.RulePass,
				Message: fmt.Sprintf("policy evaluation error, treated as pass: %v", err),
			})
			continue
		}

		violations := collectStrings(rs)
		if len(violations) > 0 {
			results = append(results, api.RuleResult{
				RuleID:  id,
				Status:  api.RuleFail,
				Message: fmt.Sprintf("%d custom policy violation(s)", len(violations)),
				Details: api.CustomRuleDetails{Policy: p.name, Violations: violations},
			})
			continue
		}
		results = append(results, api.RuleResult{
			RuleID:  id,
			Status:  api.RulePass,
			Message: "no custom policy violations",
			Details: api.CustomRuleDetails{Policy: p.name, Violations: []string{}},
		})
	}
	return results
}

// policyInput flattens the normalized payload into the document custom
// policies evaluate against.
func policyInput(p api.NormalizedPayload) map[string]any {
	items := make([]map[string]any, 0, p.Count())
	add := func(list []api.Entitlement) {
		for _, it := range list {
			m := map[string]any{
				"product_code": it.ProductCode,
				"category":     string(it.Category),
				"quantity":     it.Quantity,
			}
			if it.StartDate != nil {
				m["start_date"] = it.StartDate.Format(time.DateOnly)
			}
			if it.EndDate != nil {
				m["end_date"] = it.EndDate.Format(time.DateOnly)
			}
			items = append(items, m)
		}
	}
	add(p.Models)
	add(p.Apps)
	add(p.Data)

	return map[string]any{
		"model_count": len(p.Models),
		"app_count":   len(p.Apps),
		"data_count":  len(p.Data),
		"items":       items,
	}
}

// collectStrings pulls the string members out of a rego result set.
func collectStrings(rs rego.ResultSet) []string {
	var out []string
	for _, result := range rs {
		for _, expr := range result.Expressions {
			set, ok := expr.Value.([]interface{})
			if !ok {
				continue
			}
			for _, v := range set {
				if msg, ok := v.(string); ok {
					out = append(out, msg)
				}
			}
		}
	}
	return out
}
