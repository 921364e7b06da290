// Package snapshot merges the currently-valid entitlements across a
// customer's whole record history into a deduplicated, per-region,
// per-category view of what the account holds today.
package snapshot

import (
	"sort"
	"strings"
	"time"

	"github.com/antonkaplanM/deployassist/internal/normalize"
	"github.com/antonkaplanM/deployassist/pkg/api"
)

// DefaultMultiInstanceMarkers name the database-style products where a
// single region legitimately holds several independent instances. The
// authoritative marker set lives with the system of record; this is
// the fallback.
var DefaultMultiInstanceMarkers = []string{"EDM", "RDM"}

// Status thresholds in days remaining.
const (
	activeThresholdDays   = 90
	expiringThresholdDays = 30
)

// Config holds the aggregator's tunables.
type Config struct {
	MultiInstanceMarkers []string
}

// DefaultConfig returns the stock aggregation configuration.
func DefaultConfig() Config {
	return Config{MultiInstanceMarkers: DefaultMultiInstanceMarkers}
}

// mergeKey identifies one aggregated product. A struct key rather than
// a joined string: product codes and record names may contain any
// delimiter we could pick.
type mergeKey struct {
	region      string
	category    api.Category
	productCode string
	// recordName is set only for multi-instance products, which do not
	// merge across records within a region.
	recordName string
}

// Aggregate builds the current-holdings snapshot as of now. Expired
// entitlements are dropped entirely; repeat sightings of the same key
// widen the date range and accumulate source record names.
func Aggregate(records []api.ProvisioningRecord, cfg Config, now time.Time) api.CustomerSnapshot {
	if len(cfg.MultiInstanceMarkers) == 0 {
		cfg.MultiInstanceMarkers = DefaultMultiInstanceMarkers
	}
	today := dayStart(now)

	// Most recent first. Records with unparseable creation dates sort
	// last but their entitlements are still processed.
	ordered := make([]api.ProvisioningRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		ti, iok := normalize.ParseDate(ordered[i].CreatedAt)
		tj, jok := normalize.ParseDate(ordered[j].CreatedAt)
		if iok != jok {
			return iok
		}
		return ti.After(tj)
	})

	snap := api.CustomerSnapshot{
		Regions: map[string]api.RegionProducts{},
	}
	for _, rec := range ordered {
		if snap.AccountID == "" {
			snap.AccountID = rec.AccountID
		}
		if snap.LastUpdatedRecordID == "" {
			if created, ok := normalize.ParseDate(rec.CreatedAt); ok {
				snap.LastUpdatedRecordID = rec.ID
				snap.LastUpdatedRecordName = rec.Name
				snap.LastUpdatedAt = &created
			}
		}
	}

	merged := make(map[mergeKey]*api.AggregatedProduct)
	var order []mergeKey
	for _, rec := range ordered {
		region := normalize.Region(rec.RawPayload)
		for _, item := range normalize.Record(rec).All() {
			if item.ProductCode == "" || item.EndDate == nil {
				continue
			}
			if dayStart(*item.EndDate).Before(today) {
				continue
			}

			key := mergeKey{
				region:      region,
				category:    item.Category,
				productCode: item.ProductCode,
			}
			if isMultiInstance(item.ProductCode, cfg.MultiInstanceMarkers) {
				key.recordName = item.SourceRecordName
			}

			existing, ok := merged[key]
			if !ok {
				merged[key] = newAggregated(item, region)
				order = append(order, key)
				continue
			}
			mergeInto(existing, item)
		}
	}

	for _, key := range order {
		p := merged[key]
		p.DaysRemaining = daysBetween(today, dayStart(p.EndDate))
		p.Status = statusFor(p.DaysRemaining)

		rp := snap.Regions[p.Region]
		switch p.Category {
		case api.CategoryModel:
			rp.Models = append(rp.Models, *p)
			snap.Summary.Models++
		case api.CategoryApp:
			rp.Apps = append(rp.Apps, *p)
			snap.Summary.Apps++
		case api.CategoryData:
			rp.Data = append(rp.Data, *p)
			snap.Summary.Data++
		}
		snap.Regions[p.Region] = rp
		snap.Summary.TotalActive++
	}

	for region, rp := range snap.Regions {
		sortProducts(rp.Models)
		sortProducts(rp.Apps)
		sortProducts(rp.Data)
		snap.Regions[region] = rp
	}
	return snap
}

func newAggregated(item api.Entitlement, region string) *api.AggregatedProduct {
	p := &api.AggregatedProduct{
		ProductCode:     item.ProductCode,
		Category:        item.Category,
		Region:          region,
		EndDate:         *item.EndDate,
		PackageName:     item.PackageName,
		ProductModifier: item.ProductModifier,
		SourcePSRecords: []string{item.SourceRecordName},
	}
	if item.StartDate != nil {
		start := *item.StartDate
		p.StartDate = &start
	}
	return p
}

// mergeInto widens the aggregate with a repeat sighting: earliest
// start, latest end, source names deduplicated, package name filled
// once.
func mergeInto(p *api.AggregatedProduct, item api.Entitlement) {
	if item.StartDate != nil {
		if p.StartDate == nil || item.StartDate.Before(*p.StartDate) {
			start := *item.StartDate
			p.StartDate = &start
		}
	}
	if item.EndDate.After(p.EndDate) {
		p.EndDate = *item.EndDate
	}
	if p.PackageName == "" {
		p.PackageName = item.PackageName
	}
	if p.ProductModifier == "" {
		p.ProductModifier = item.ProductModifier
	}
	for _, name := range p.SourcePSRecords {
		if name == item.SourceRecordName {
			return
		}
	}
	p.SourcePSRecords = append(p.SourcePSRecords, item.SourceRecordName)
}

func isMultiInstance(code string, markers []string) bool {
	upper := strings.ToUpper(code)
	for _, marker := range markers {
		if strings.Contains(upper, strings.ToUpper(marker)) {
			return true
		}
	}
	return false
}

func statusFor(daysRemaining int) api.ProductStatus {
	switch {
	case daysRemaining > activeThresholdDays:
		return api.StatusActive
	case daysRemaining > expiringThresholdDays:
		return api.StatusExpiringSoon
	default:
		return api.StatusExpiring
	}
}

func sortProducts(items []api.AggregatedProduct) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ProductCode != items[j].ProductCode {
			return items[i].ProductCode < items[j].ProductCode
		}
		// Multi-instance entries share a code; order by source record.
		return len(items[i].SourcePSRecords) > 0 && len(items[j].SourcePSRecords) > 0 &&
			items[i].SourcePSRecords[0] < items[j].SourcePSRecords[0]
	})
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}
