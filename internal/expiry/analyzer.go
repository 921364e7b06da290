// Package expiry classifies entitlements nearing expiry across an
// account's record history and detects whether a later record extends
// them. Analysis is a pure function of the records and the injected
// "now"; repeated runs over the same input produce the same entries.
package expiry

import (
	"sort"
	"time"

	"github.com/antonkaplanM/deployassist/internal/normalize"
	"github.com/antonkaplanM/deployassist/pkg/api"
)

// Default analysis bounds.
const (
	DefaultLookbackYears = 3
	DefaultWindowDays    = 30
)

// Config bounds the analysis. Non-positive values fall back to the
// defaults.
type Config struct {
	// LookbackYears limits how far back in the record history the
	// analyzer reads.
	LookbackYears int
	// WindowDays is the lookahead horizon: entitlements ending within
	// [now, now+WindowDays] are reported.
	WindowDays int
}

// DefaultConfig returns the stock analysis bounds.
func DefaultConfig() Config {
	return Config{LookbackYears: DefaultLookbackYears, WindowDays: DefaultWindowDays}
}

// Analyze emits one ExpirationEntry per entitlement whose end date
// falls inside the expiration window, with the extension verdict
// attached. An extension is a grant of the same product code on a
// different record with a strictly later end date; the first match
// after the current item in end-date order wins.
func Analyze(records []api.ProvisioningRecord, cfg Config, now time.Time) []api.ExpirationEntry {
	if cfg.LookbackYears <= 0 {
		cfg.LookbackYears = DefaultLookbackYears
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = DefaultWindowDays
	}

	today := dayStart(now)
	horizon := today.AddDate(0, 0, cfg.WindowDays)
	lookback := today.AddDate(-cfg.LookbackYears, 0, 0)

	// Group every dated entitlement by product code, keeping the
	// first-seen code order so output is stable across runs.
	groups := make(map[string][]groupMember)
	var order []string
	for _, rec := range records {
		if created, ok := normalize.ParseDate(rec.CreatedAt); ok && created.Before(lookback) {
			continue
		}
		for _, item := range normalize.Record(rec).All() {
			if item.ProductCode == "" || item.EndDate == nil {
				continue
			}
			if _, seen := groups[item.ProductCode]; !seen {
				order = append(order, item.ProductCode)
			}
			groups[item.ProductCode] = append(groups[item.ProductCode], groupMember{
				item:      item,
				accountID: rec.AccountID,
			})
		}
	}

	entries := []api.ExpirationEntry{}
	for _, code := range order {
		group := groups[code]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].item.EndDate.Before(*group[j].item.EndDate)
		})

		for i, m := range group {
			end := dayStart(*m.item.EndDate)
			if end.Before(today) || end.After(horizon) {
				continue
			}

			entry := api.ExpirationEntry{
				AccountID:        m.accountID,
				ProductCode:      m.item.ProductCode,
				Category:         m.item.Category,
				EndDate:          *m.item.EndDate,
				DaysUntilExpiry:  daysBetween(today, end),
				SourceRecordID:   m.item.SourceRecordID,
				SourceRecordName: m.item.SourceRecordName,
			}

			// Scan the rest of the sorted group for the first grant
			// from a different record that outlives this one.
			for j := i + 1; j < len(group); j++ {
				ext := group[j].item
				if ext.SourceRecordID == m.item.SourceRecordID {
					continue
				}
				if !ext.EndDate.After(*m.item.EndDate) {
					continue
				}
				entry.IsExtended = true
				entry.ExtendingRecordID = ext.SourceRecordID
				entry.ExtendingRecordName = ext.SourceRecordName
				extEnd := *ext.EndDate
				entry.ExtendingEndDate = &extEnd
				break
			}

			entries = append(entries, entry)
		}
	}
	return entries
}

// GroupByRecord buckets entries by (account, source record) for
// display. A group is at-risk when any member lacks an extension.
func GroupByRecord(entries []api.ExpirationEntry) []api.ExpirationGroup {
	type key struct{ accountID, recordID string }

	index := make(map[key]int)
	groups := []api.ExpirationGroup{}
	for _, entry := range entries {
		k := key{entry.AccountID, entry.SourceRecordID}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, api.ExpirationGroup{
				AccountID:  entry.AccountID,
				RecordID:   entry.SourceRecordID,
				RecordName: entry.SourceRecordName,
				Status:     api.GroupExtended,
				Entries:    []api.ExpirationEntry{},
			})
		}
		groups[i].Entries = append(groups[i].Entries, entry)
		if !entry.IsExtended {
			groups[i].Status = api.GroupAtRisk
		}
	}
	return groups
}

type groupMember struct {
	item      api.Entitlement
	accountID string
}

// dayStart truncates t to midnight UTC so date comparisons ignore
// time-of-day and zone drift between parsed layouts.
func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}
