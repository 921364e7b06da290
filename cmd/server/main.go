// Package main provides the DeployAssist reconciliation API server.
// It is a thin, stateless layer over the entitlement engines: every
// request carries the full record snapshot to analyze, and nothing is
// persisted between calls.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/antonkaplanM/deployassist/internal/expiry"
	"github.com/antonkaplanM/deployassist/internal/normalize"
	"github.com/antonkaplanM/deployassist/internal/rules"
	"github.com/antonkaplanM/deployassist/internal/snapshot"
	"github.com/antonkaplanM/deployassist/pkg/api"
)

var (
	version   = "0.1.0"
	startTime = time.Now()
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	policiesDir := os.Getenv("POLICIES_DIR")

	ruleEngine := rules.NewEngine(rules.Config{
		QuantityExemptCodes: rules.DefaultQuantityExemptCodes,
		ModelCountLimit:     rules.DefaultModelCountLimit,
		PoliciesDir:         policiesDir,
	})

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", handleHealth)
	r.Get("/health/live", handleLiveness)
	r.Get("/health/ready", handleLiveness)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/validate", handleValidate(ruleEngine))
		r.Post("/expirations", handleExpirations)
		r.Post("/snapshot", handleSnapshot)
	})

	r.Get("/version", handleVersion)

	log.Info().
		Str("port", port).
		Str("version", version).
		Str("policies_dir", policiesDir).
		Msg("Starting DeployAssist reconciliation API")

	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func handleValidate(engine *rules.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.ValidateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		// Records submitted without an id still need attributable
		// results.
		if req.Record.ID == "" {
			req.Record.ID = uuid.NewString()
		}
		writeJSON(w, http.StatusOK, engine.Validate(req.Record, req.EnabledRules))
	}
}

func handleExpirations(w http.ResponseWriter, r *http.Request) {
	var req api.ExpirationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	now, ok := resolveAsOf(req.AsOf)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_as_of", "as_of must be YYYY-MM-DD or RFC 3339")
		return
	}

	cfg := expiry.DefaultConfig()
	if req.LookbackYears > 0 {
		cfg.LookbackYears = req.LookbackYears
	}
	if req.WindowDays > 0 {
		cfg.WindowDays = req.WindowDays
	}

	entries := expiry.Analyze(req.Records, cfg, now)
	writeJSON(w, http.StatusOK, api.ExpirationsResponse{
		Entries: entries,
		Groups:  expiry.GroupByRecord(entries),
	})
}

func handleSnapshot(w http.ResponseWriter, r *http.Request) {
	var req api.SnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	now, ok := resolveAsOf(req.AsOf)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_as_of", "as_of must be YYYY-MM-DD or RFC 3339")
		return
	}
	writeJSON(w, http.StatusOK, snapshot.Aggregate(req.Records, snapshot.DefaultConfig(), now))
}

// resolveAsOf parses the optional analysis date; empty means the
// server clock. Unlike payload dates this is caller input, so a bad
// value is a 400 rather than a silent default.
func resolveAsOf(asOf string) (time.Time, bool) {
	if asOf == "" {
		return time.Now(), true
	}
	return normalize.ParseDate(asOf)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "deployassist-engine",
		"version": version,
		"uptime":  time.Since(startTime).String(),
	})
}

func handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": version,
		"service": "deployassist-engine",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, api.ErrorResponse{Error: code, Message: msg})
}
