package rules

import (
	"fmt"
	"time"

	"github.com/antonkaplanM/deployassist/pkg/api"
)

// overlapCandidate is one entitlement eligible for overlap checking,
// pinned to its category list and index for diagnostics.
type overlapCandidate struct {
	item api.Entitlement
	ref  api.OverlapItem
}

// checkDateOverlap groups all entitlements (models, apps and data
// flattened together) by product code and fails when any two grants of
// the same product have overlapping date ranges. Items without a
// product code or without both dates never participate.
func (e *Engine) checkDateOverlap(payload api.NormalizedPayload) api.RuleResult {
	groups := make(map[string][]overlapCandidate)
	var order []string

	collect := func(items []api.Entitlement, cat api.Category) {
		for i, item := range items {
			if item.ProductCode == "" {
				continue
			}
			c := overlapCandidate{
				item: item,
				ref:  api.OverlapItem{Category: cat, Index: i},
			}
			if item.StartDate != nil {
				c.ref.StartDate = *item.StartDate
			}
			if item.EndDate != nil {
				c.ref.EndDate = *item.EndDate
			}
			if _, seen := groups[item.ProductCode]; !seen {
				order = append(order, item.ProductCode)
			}
			groups[item.ProductCode] = append(groups[item.ProductCode], c)
		}
	}
	collect(payload.Models, api.CategoryModel)
	collect(payload.Apps, api.CategoryApp)
	collect(payload.Data, api.CategoryData)

	details := api.OverlapDetails{Overlaps: []api.OverlapPair{}}
	for _, code := range order {
		group := groups[code]
		if len(group) < 2 {
			continue
		}
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if a.item.StartDate == nil || a.item.EndDate == nil ||
					b.item.StartDate == nil || b.item.EndDate == nil {
					continue
				}
				if !rangesOverlap(*a.item.StartDate, *a.item.EndDate, *b.item.StartDate, *b.item.EndDate) {
					continue
				}
				details.Overlaps = append(details.Overlaps, api.OverlapPair{
					ProductCode: code,
					Kind:        classifyOverlap(a.item, b.item),
					First:       a.ref,
					Second:      b.ref,
				})
			}
		}
	}

	if len(details.Overlaps) > 0 {
		return api.RuleResult{
			RuleID:  RuleDateOverlap,
			Status:  api.RuleFail,
			Message: fmt.Sprintf("%d overlapping date range pair(s) across product codes", len(details.Overlaps)),
			Details: details,
		}
	}
	return api.RuleResult{
		RuleID:  RuleDateOverlap,
		Status:  api.RulePass,
		Message: "no overlapping date ranges",
		Details: details,
	}
}

// rangesOverlap applies the strict-inequality overlap definition:
// intervals that merely touch at a boundary do not overlap.
func rangesOverlap(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && start2.Before(end1)
}

// classifyOverlap labels an already-detected overlap for diagnostics.
// The classification never affects pass/fail.
func classifyOverlap(a, b api.Entitlement) api.OverlapKind {
	switch {
	case a.StartDate.Equal(*b.StartDate) && a.EndDate.Equal(*b.EndDate):
		return api.OverlapIdentical
	case !a.StartDate.After(*b.StartDate) && !a.EndDate.Before(*b.EndDate),
		!b.StartDate.After(*a.StartDate) && !b.EndDate.Before(*a.EndDate):
		return api.OverlapContained
	default:
		return api.OverlapPartial
	}
}
