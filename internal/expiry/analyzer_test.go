package expiry

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/antonkaplanM/deployassist/pkg/api"
)

func rec(id, name, created, payload string) api.ProvisioningRecord {
	return api.ProvisioningRecord{
		ID:         id,
		Name:       name,
		AccountID:  "ACC-1",
		CreatedAt:  created,
		RawPayload: []byte(payload),
	}
}

func modelPayload(code, end string) string {
	return fmt.Sprintf(`{"models":[{"code":"%s","endDate":"%s"}]}`, code, end)
}

func TestAnalyze_ExtensionDetection(t *testing.T) {
	// Entitlement X on R1 expires within the window; Y on R2 carries
	// the same product with a later end date.
	records := []api.ProvisioningRecord{
		rec("r1", "PS-R1", "2024-01-10", modelPayload("P", "2025-02-01")),
		rec("r2", "PS-R2", "2024-06-10", modelPayload("P", "2025-08-01")),
	}
	now := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)

	entries := Analyze(records, Config{LookbackYears: 3, WindowDays: 30}, now)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1 (Y is outside the window)", len(entries))
	}

	x := entries[0]
	if x.SourceRecordID != "r1" {
		t.Errorf("source = %s, want r1", x.SourceRecordID)
	}
	if !x.IsExtended {
		t.Fatal("X must be extended by R2")
	}
	if x.ExtendingRecordID != "r2" || x.ExtendingRecordName != "PS-R2" {
		t.Errorf("extending record = %s/%s, want r2/PS-R2", x.ExtendingRecordID, x.ExtendingRecordName)
	}
	wantEnd := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	if x.ExtendingEndDate == nil || !x.ExtendingEndDate.Equal(wantEnd) {
		t.Errorf("extending end = %v, want %v", x.ExtendingEndDate, wantEnd)
	}
	if x.DaysUntilExpiry != 12 {
		t.Errorf("days until expiry = %d, want 12", x.DaysUntilExpiry)
	}
}

func TestAnalyze_SameRecordNeverExtends(t *testing.T) {
	records := []api.ProvisioningRecord{
		rec("r1", "PS-R1", "2024-01-10", `{"models":[
			{"code":"P","endDate":"2025-02-01"},
			{"code":"P","endDate":"2025-08-01"}
		]}`),
	}
	now := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)

	entries := Analyze(records, DefaultConfig(), now)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].IsExtended {
		t.Error("a grant on the same record must not count as an extension")
	}
}

func TestAnalyze_FirstLaterMatchWins(t *testing.T) {
	// Two candidate extensions exist; the nearest one in end-date
	// order is attached, not the latest overall.
	records := []api.ProvisioningRecord{
		rec("r1", "PS-R1", "2024-01-10", modelPayload("P", "2025-02-01")),
		rec("r2", "PS-R2", "2024-03-10", modelPayload("P", "2025-05-01")),
		rec("r3", "PS-R3", "2024-06-10", modelPayload("P", "2026-05-01")),
	}
	now := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)

	entries := Analyze(records, DefaultConfig(), now)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].ExtendingRecordID != "r2" {
		t.Errorf("extending record = %s, want r2 (first later match)", entries[0].ExtendingRecordID)
	}
}

func TestAnalyze_WindowBounds(t *testing.T) {
	now := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		endDate string
		emitted bool
	}{
		{"already_expired", "2025-01-19", false},
		{"expires_today", "2025-01-20", true},
		{"last_window_day", "2025-02-19", true},
		{"past_window", "2025-02-20", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := []api.ProvisioningRecord{
				rec("r1", "PS-R1", "2024-01-10", modelPayload("P", tt.endDate)),
			}
			entries := Analyze(records, Config{LookbackYears: 3, WindowDays: 30}, now)
			if got := len(entries) == 1; got != tt.emitted {
				t.Errorf("emitted = %v, want %v", got, tt.emitted)
			}
		})
	}
}

func TestAnalyze_LookbackExcludesOldRecords(t *testing.T) {
	now := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	records := []api.ProvisioningRecord{
		rec("old", "PS-OLD", "2020-01-10", modelPayload("P", "2025-02-01")),
		rec("new", "PS-NEW", "2024-06-10", modelPayload("Q", "2025-02-01")),
	}

	entries := Analyze(records, Config{LookbackYears: 3, WindowDays: 30}, now)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].ProductCode != "Q" {
		t.Errorf("product = %s, want Q (old record outside lookback)", entries[0].ProductCode)
	}
}

func TestAnalyze_SkipsUndatedAndUncodedItems(t *testing.T) {
	now := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	records := []api.ProvisioningRecord{
		rec("r1", "PS-R1", "2024-01-10", `{"models":[
			{"code":"P"},
			{"endDate":"2025-02-01"},
			{"code":"Q","endDate":"not-a-date"}
		]}`),
	}
	entries := Analyze(records, DefaultConfig(), now)
	if len(entries) != 0 {
		t.Errorf("entries = %d, want 0", len(entries))
	}
}

func TestGroupByRecord_TaintRule(t *testing.T) {
	entries := []api.ExpirationEntry{
		{AccountID: "ACC-1", SourceRecordID: "r1", SourceRecordName: "PS-R1", ProductCode: "A", IsExtended: true},
		{AccountID: "ACC-1", SourceRecordID: "r1", SourceRecordName: "PS-R1", ProductCode: "B", IsExtended: false},
		{AccountID: "ACC-1", SourceRecordID: "r2", SourceRecordName: "PS-R2", ProductCode: "C", IsExtended: true},
	}

	groups := GroupByRecord(entries)
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}

	byRecord := map[string]api.ExpirationGroup{}
	for _, g := range groups {
		byRecord[g.RecordID] = g
	}
	if byRecord["r1"].Status != api.GroupAtRisk {
		t.Errorf("r1 = %s, want at-risk (one non-extended member taints the group)", byRecord["r1"].Status)
	}
	if byRecord["r2"].Status != api.GroupExtended {
		t.Errorf("r2 = %s, want extended", byRecord["r2"].Status)
	}
	if len(byRecord["r1"].Entries) != 2 {
		t.Errorf("r1 entries = %d, want 2", len(byRecord["r1"].Entries))
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	records := []api.ProvisioningRecord{
		rec("r1", "PS-R1", "2024-01-10", modelPayload("P", "2025-02-01")),
		rec("r2", "PS-R2", "2024-03-10", modelPayload("Q", "2025-02-05")),
		rec("r3", "PS-R3", "2024-06-10", modelPayload("P", "2025-05-01")),
	}
	now := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)

	first, _ := json.Marshal(Analyze(records, DefaultConfig(), now))
	for i := 0; i < 5; i++ {
		again, _ := json.Marshal(Analyze(records, DefaultConfig(), now))
		if string(again) != string(first) {
			t.Fatalf("run %d differs:\n%s\n%s", i, first, again)
		}
	}
}
