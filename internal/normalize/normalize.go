// Package normalize converts raw provisioning payloads into canonical
// entitlement lists. It is the only place that knows about the
// payload's nesting variants and field-name drift; everything
// downstream consumes api.Entitlement values.
//
// All functions are pure and never return an error: a nil, empty or
// unparseable payload normalizes to empty lists.
package normalize

import (
	"encoding/json"

	"github.com/antonkaplanM/deployassist/pkg/api"
)

// DefaultRegion is used when a payload carries no region field.
const DefaultRegion = "Unknown Region"

// categoryKeys maps each category to its known array-name variants,
// tried in order at both the canonical and the flat location.
var categoryKeys = map[api.Category][]string{
	api.CategoryModel: {"models", "modelEntitlements", "model_entitlements"},
	api.CategoryApp:   {"apps", "appEntitlements", "app_entitlements"},
	api.CategoryData:  {"data", "dataEntitlements", "data_entitlements"},
}

// entitlementsKey is the canonical nested container for entitlement
// arrays. Older payloads place the arrays at the top level instead;
// Payload checks both and unions them, nested items first.
const entitlementsKey = "entitlements"

// Payload normalizes a raw payload into per-category entitlement
// lists. Provenance fields are left empty; use Record when the source
// record is known.
func Payload(raw []byte) api.NormalizedPayload {
	out := api.NormalizedPayload{
		Models: []api.Entitlement{},
		Apps:   []api.Entitlement{},
		Data:   []api.Entitlement{},
	}

	obj, ok := parseObject(raw)
	if !ok {
		return out
	}

	nested, _ := obj[entitlementsKey].(map[string]any)

	out.Models = extractCategory(nested, obj, api.CategoryModel)
	out.Apps = extractCategory(nested, obj, api.CategoryApp)
	out.Data = extractCategory(nested, obj, api.CategoryData)
	return out
}

// Record normalizes a record's payload and stamps every entitlement
// with the record's provenance.
func Record(rec api.ProvisioningRecord) api.NormalizedPayload {
	p := Payload(rec.RawPayload)
	stamp(p.Models, rec)
	stamp(p.Apps, rec)
	stamp(p.Data, rec)
	return p
}

// HasPayload reports whether raw holds a parseable JSON object. A
// record without one normalizes to empty lists and is exempt from rule
// evaluation.
func HasPayload(raw []byte) bool {
	_, ok := parseObject(raw)
	return ok
}

// Region extracts the payload's region, defaulting when absent or when
// the payload cannot be parsed.
func Region(raw []byte) string {
	obj, ok := parseObject(raw)
	if !ok {
		return DefaultRegion
	}
	if r := firstString(obj, regionKeys); r != "" {
		return r
	}
	return DefaultRegion
}

func stamp(items []api.Entitlement, rec api.ProvisioningRecord) {
	for i := range items {
		items[i].SourceRecordID = rec.ID
		items[i].SourceRecordName = rec.Name
	}
}

// extractCategory unions the canonical nested arrays with the flat
// top-level fallback arrays for one category. Both locations may be
// populated at once; nested items come first.
func extractCategory(nested, flat map[string]any, cat api.Category) []api.Entitlement {
	items := []api.Entitlement{}
	if nested != nil {
		items = append(items, extractItems(nested, cat)...)
	}
	items = append(items, extractItems(flat, cat)...)
	return items
}

// extractItems reads the first present array-name variant from the
// container and normalizes each object element. Non-object elements
// are skipped.
func extractItems(container map[string]any, cat api.Category) []api.Entitlement {
	var out []api.Entitlement
	for _, key := range categoryKeys[cat] {
		arr, ok := container[key].([]any)
		if !ok {
			continue
		}
		for _, el := range arr {
			item, ok := el.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, normalizeItem(item, cat))
		}
		break
	}
	return out
}

func normalizeItem(item map[string]any, cat api.Category) api.Entitlement {
	return api.Entitlement{
		ProductCode:     firstString(item, productCodeKeys),
		Category:        cat,
		StartDate:       firstDate(item, startDateKeys),
		EndDate:         firstDate(item, endDateKeys),
		Quantity:        firstInt(item, quantityKeys, 1),
		PackageName:     firstString(item, packageKeys),
		ProductModifier: firstString(item, modifierKeys),
	}
}

// parseObject unmarshals raw into a JSON object. Anything else (nil,
// empty, malformed text, a non-object document) reports false; callers
// treat that identically to "no data".
func parseObject(raw []byte) (map[string]any, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}
