package normalize

import (
	"strconv"
	"strings"
	"time"
)

// Upstream payloads are inconsistent about field naming, so every field
// is read through an ordered chain of known variants and the first
// present, non-null value wins.
var (
	productCodeKeys = []string{"productCode", "product_code", "ProductCode", "code"}
	startDateKeys   = []string{"startDate", "start_date", "StartDate", "effectiveDate"}
	endDateKeys     = []string{"endDate", "end_date", "EndDate", "expirationDate"}
	quantityKeys    = []string{"quantity", "qty", "Quantity"}
	packageKeys     = []string{"packageName", "package_name", "PackageName"}
	modifierKeys    = []string{"productModifier", "product_modifier", "ProductModifier", "modifier"}
	regionKeys      = []string{"region", "Region", "regionName", "region_name"}
)

// dateLayouts are tried in order. Upstream mixes plain dates with full
// timestamps.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
}

// ParseDate parses a date string through the known layout chain. The
// second return is false when the string is empty or matches no layout.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// firstString returns the first present, non-null value among keys,
// coerced to a string. JSON numbers are accepted because some upstream
// systems emit numeric product codes.
func firstString(m map[string]any, keys []string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64)
		}
	}
	return ""
}

// firstInt returns the first present numeric value among keys, or def.
func firstInt(m map[string]any, keys []string, def int) int {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int(n)
		case string:
			if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
				return i
			}
		}
	}
	return def
}

// firstDate resolves a date field through the variant chain and layout
// chain. Unparseable values are treated the same as absent ones.
func firstDate(m map[string]any, keys []string) *time.Time {
	s := firstString(m, keys)
	if s == "" {
		return nil
	}
	if t, ok := ParseDate(s); ok {
		return &t
	}
	return nil
}
