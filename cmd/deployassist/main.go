// Package main provides the deployassist CLI: it runs the
// reconciliation engines over a JSON file of provisioning records and
// prints the results, with CI-safe exit codes.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/antonkaplanM/deployassist/internal/expiry"
	"github.com/antonkaplanM/deployassist/internal/normalize"
	"github.com/antonkaplanM/deployassist/internal/rules"
	"github.com/antonkaplanM/deployassist/internal/snapshot"
	"github.com/antonkaplanM/deployassist/pkg/api"
)

// Exit codes for CI/CD integration.
const (
	ExitSuccess        = 0
	ExitValidationFail = 1
	ExitAtRisk         = 2
	ExitInputError     = 10
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	recordsFlag := &cli.StringFlag{
		Name:     "records",
		Usage:    "path to a JSON file holding an array of provisioning records",
		Required: true,
	}
	asOfFlag := &cli.StringFlag{
		Name:  "as-of",
		Usage: "analysis date (YYYY-MM-DD), defaults to today",
	}
	outputFlag := &cli.StringFlag{
		Name:  "output",
		Value: "text",
		Usage: "output format: text or json",
	}

	app := &cli.App{
		Name:  "deployassist",
		Usage: "entitlement timeline reconciliation over provisioning records",
		Commands: []*cli.Command{
			{
				Name:  "validate",
				Usage: "validate every record against the business rules",
				Flags: []cli.Flag{
					recordsFlag,
					outputFlag,
					&cli.StringFlag{
						Name:  "rules",
						Usage: "comma-separated rule ids (default: all built-ins)",
					},
					&cli.StringFlag{
						Name:  "policies",
						Usage: "directory of custom *.rego rules",
					},
				},
				Action: runValidate,
			},
			{
				Name:  "expirations",
				Usage: "report expiring entitlements and their extensions",
				Flags: []cli.Flag{
					recordsFlag,
					asOfFlag,
					outputFlag,
					&cli.IntFlag{Name: "lookback-years", Value: expiry.DefaultLookbackYears},
					&cli.IntFlag{Name: "window-days", Value: expiry.DefaultWindowDays},
				},
				Action: runExpirations,
			},
			{
				Name:   "snapshot",
				Usage:  "aggregate current holdings per region and category",
				Flags:  []cli.Flag{recordsFlag, asOfFlag, outputFlag},
				Action: runSnapshot,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		if exitErr, ok := err.(cli.ExitCoder); ok {
			os.Exit(exitErr.ExitCode())
		}
		log.Error().Err(err).Msg("command failed")
		os.Exit(ExitInputError)
	}
}

func runValidate(c *cli.Context) error {
	records, err := loadRecords(c.String("records"))
	if err != nil {
		return cli.Exit(err.Error(), ExitInputError)
	}

	var enabled []string
	if s := c.String("rules"); s != "" {
		enabled = strings.Split(s, ",")
	}
	engine := rules.NewEngine(rules.Config{
		QuantityExemptCodes: rules.DefaultQuantityExemptCodes,
		ModelCountLimit:     rules.DefaultModelCountLimit,
		PoliciesDir:         c.String("policies"),
	})

	results := make([]api.RecordValidation, 0, len(records))
	failed := 0
	for _, rec := range records {
		v := engine.Validate(rec, enabled)
		if v.OverallStatus == api.RuleFail {
			failed++
		}
		results = append(results, v)
	}

	if c.String("output") == "json" {
		printJSON(results)
	} else {
		for _, v := range results {
			fmt.Printf("%-12s %s\n", v.OverallStatus, v.RecordID)
			for _, res := range v.RuleResults {
				fmt.Printf("  %-6s %-20s %s\n", res.Status, res.RuleID, res.Message)
			}
		}
		fmt.Printf("\n%d record(s), %d failed\n", len(results), failed)
	}

	if failed > 0 {
		return cli.Exit("", ExitValidationFail)
	}
	return nil
}

func runExpirations(c *cli.Context) error {
	records, err := loadRecords(c.String("records"))
	if err != nil {
		return cli.Exit(err.Error(), ExitInputError)
	}
	now, err := resolveAsOf(c.String("as-of"))
	if err != nil {
		return cli.Exit(err.Error(), ExitInputError)
	}

	cfg := expiry.Config{
		LookbackYears: c.Int("lookback-years"),
		WindowDays:    c.Int("window-days"),
	}
	entries := expiry.Analyze(records, cfg, now)
	groups := expiry.GroupByRecord(entries)

	if c.String("output") == "json" {
		printJSON(api.ExpirationsResponse{Entries: entries, Groups: groups})
	} else {
		for _, g := range groups {
			fmt.Printf("%-10s %s (%s)\n", g.Status, g.RecordName, g.AccountID)
			for _, e := range g.Entries {
				mark := "at risk"
				if e.IsExtended {
					mark = "extended by " + e.ExtendingRecordName
				}
				fmt.Printf("  %-30s %s ends %s (%dd) %s\n",
					e.ProductCode, e.Category, e.EndDate.Format(time.DateOnly), e.DaysUntilExpiry, mark)
			}
		}
		fmt.Printf("\n%d expiring entitlement(s) in %d group(s)\n", len(entries), len(groups))
	}

	for _, g := range groups {
		if g.Status == api.GroupAtRisk {
			return cli.Exit("", ExitAtRisk)
		}
	}
	return nil
}

func runSnapshot(c *cli.Context) error {
	records, err := loadRecords(c.String("records"))
	if err != nil {
		return cli.Exit(err.Error(), ExitInputError)
	}
	now, err := resolveAsOf(c.String("as-of"))
	if err != nil {
		return cli.Exit(err.Error(), ExitInputError)
	}

	snap := snapshot.Aggregate(records, snapshot.DefaultConfig(), now)

	if c.String("output") == "json" {
		printJSON(snap)
		return nil
	}

	fmt.Printf("Account %s — %d active product(s)\n", snap.AccountID, snap.Summary.TotalActive)
	for region, rp := range snap.Regions {
		fmt.Printf("\n%s\n", region)
		printProducts("models", rp.Models)
		printProducts("apps", rp.Apps)
		printProducts("data", rp.Data)
	}
	return nil
}

func printProducts(label string, items []api.AggregatedProduct) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("  %s:\n", label)
	for _, p := range items {
		fmt.Printf("    %-30s %-13s until %s (%s)\n",
			p.ProductCode, p.Status, p.EndDate.Format(time.DateOnly),
			strings.Join(p.SourcePSRecords, ", "))
	}
}

// loadRecords reads the records file. Records without ids are minted
// one so results stay attributable.
func loadRecords(path string) ([]api.ProvisioningRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading records file: %w", err)
	}
	var records []api.ProvisioningRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing records file: %w", err)
	}
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
	}
	return records, nil
}

func resolveAsOf(asOf string) (time.Time, error) {
	if asOf == "" {
		return time.Now(), nil
	}
	t, ok := normalize.ParseDate(asOf)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid --as-of value %q", asOf)
	}
	return t, nil
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
