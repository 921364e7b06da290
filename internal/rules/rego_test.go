package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/antonkaplanM/deployassist/pkg/api"
)

const quantityPolicy = `package deployassist

deny[msg] {
	some i
	item := input.items[i]
	item.category == "DATA"
	item.quantity > 10
	msg := sprintf("data product %s has quantity %d", [item.product_code, item.quantity])
}
`

func writePolicy(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCustomRules_DenyFailsRecord(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "quantity.rego", quantityPolicy)

	engine := NewEngine(Config{PoliciesDir: dir})
	v := engine.Validate(record(`{"data":[{"code":"EDM-EU","quantity":25}]}`), []string{})

	if v.OverallStatus != api.RuleFail {
		t.Fatalf("overall = %s, want FAIL", v.OverallStatus)
	}
	res := findResult(t, v, "custom:quantity")
	details, ok := res.Details.(api.CustomRuleDetails)
	if !ok {
		t.Fatalf("details type %T", res.Details)
	}
	if len(details.Violations) != 1 {
		t.Errorf("violations = %d, want 1", len(details.Violations))
	}
}

func TestCustomRules_NoViolationPasses(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "quantity.rego", quantityPolicy)

	engine := NewEngine(Config{PoliciesDir: dir})
	v := engine.Validate(record(`{"data":[{"code":"EDM-EU","quantity":2}]}`), []string{})

	if v.OverallStatus != api.RulePass {
		t.Errorf("overall = %s, want PASS", v.OverallStatus)
	}
	res := findResult(t, v, "custom:quantity")
	if res.Status != api.RulePass {
		t.Errorf("custom rule = %s, want PASS", res.Status)
	}
}

func TestCustomRules_UncompilablePolicySkipped(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "broken.rego", "this is not rego {{{")

	engine := NewEngine(Config{PoliciesDir: dir})
	v := engine.Validate(record(`{"data":[{"code":"EDM-EU","quantity":25}]}`), []string{})

	if v.OverallStatus != api.RulePass {
		t.Errorf("broken policy must not fail records, got %s", v.OverallStatus)
	}
	if len(v.RuleResults) != 0 {
		t.Errorf("broken policy should load nothing, got %d results", len(v.RuleResults))
	}
}

func TestCustomRules_MissingDirIsNoop(t *testing.T) {
	engine := NewEngine(Config{PoliciesDir: "/does/not/exist"})
	v := engine.Validate(record(`{"data":[{"code":"EDM-EU","quantity":25}]}`), []string{})
	if len(v.RuleResults) != 0 || v.OverallStatus != api.RulePass {
		t.Errorf("missing policies dir must be a no-op, got %+v", v)
	}
}
