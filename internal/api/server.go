// Package api provides the HTTP API for observing and steering the simulation.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/econsim/internal/economy"
	"github.com/talgya/econsim/internal/effectiveness"
	"github.com/talgya/econsim/internal/engine"
	"github.com/talgya/econsim/internal/growth"
	"github.com/talgya/econsim/internal/persistence"
	"github.com/talgya/econsim/internal/simtime"
	"github.com/talgya/econsim/internal/tier"
	"github.com/talgya/econsim/internal/tuning"
)

// Server serves the simulation over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB // optional
	Tuning   *tuning.Model
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// RecomputeLimit caps on-demand recomputes per client IP per minute. Default 30.
	RecomputeLimit int
}

// Handler builds the routed handler.
func (s *Server) Handler() http.Handler {
	limit := s.RecomputeLimit
	if limit <= 0 {
		limit = 30
	}
	recomputeLimiter := NewRateLimiter(limit, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/countries", s.handleCountries)
	mux.HandleFunc("/api/v1/country/", s.handleCountryRoutes)
	mux.HandleFunc("/api/v1/tiers", s.handleTiers)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/recompute", s.adminOnly(RateLimitMiddleware(recomputeLimiter, s.handleRecompute)))
	mux.HandleFunc("/api/v1/component", s.adminOnly(s.handleComponent))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no ECONSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

// errorStatus maps core errors to HTTP status codes. Structural errors are the
// caller's to fix and are never retryable.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnknownCountry), errors.Is(err, engine.ErrUnknownComponent):
		return http.StatusNotFound
	case errors.Is(err, growth.ErrNegativeElapsed),
		errors.Is(err, tier.ErrUnknownTier),
		errors.Is(err, tier.ErrNoPhase),
		errors.Is(err, economy.ErrInvalidState):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	http.Error(w, err.Error(), status)
}

// ── Views ───────────────────────────────────────────────────────────────

type transitionView struct {
	From      tier.ID      `json:"from"`
	To        tier.ID      `json:"to"`
	StartedAt simtime.Tick `json:"started_at"`
	Started   string       `json:"started"`
	Window    float64      `json:"window_days"`
	Progress  float64      `json:"progress"`
}

type countryView struct {
	economy.State
	Tier         tier.ID         `json:"economic_tier"`
	Transition   *transitionView `json:"transition,omitempty"`
	GDPText      string          `json:"gdp_per_capita_text"`
	TotalGDPText string          `json:"total_gdp_text"`
	Updated      string          `json:"last_recomputed_text"`
}

func viewCountry(st economy.State, now simtime.Tick) countryView {
	v := countryView{
		State:        st,
		Tier:         st.EconomicTier(),
		GDPText:      economy.Money(st.GDPPerCapita),
		TotalGDPText: economy.Readable(st.TotalGDP),
		Updated:      simtime.Format(st.LastRecomputed),
	}
	if tr, ok := st.Transition(); ok {
		v.Transition = &transitionView{
			From:      tr.From,
			To:        tr.To,
			StartedAt: tr.StartedAt,
			Started:   simtime.Format(tr.StartedAt),
			Window:    tr.Window.Days(),
			Progress:  tr.Progress(now),
		}
	}
	return v
}

type tierView struct {
	ID         tier.ID  `json:"id"`
	Label      string   `json:"label"`
	Lower      *float64 `json:"lower"` // null = unbounded
	Upper      *float64 `json:"upper"`
	Multiplier float64  `json:"multiplier"`
}

func viewTiers(t tier.Table) []tierView {
	bound := func(v float64) *float64 {
		if math.IsInf(v, 0) {
			return nil
		}
		return &v
	}
	var out []tierView
	for _, r := range t.Ranges() {
		out = append(out, tierView{ID: r.ID, Label: r.Label, Lower: bound(r.Lower), Upper: bound(r.Upper), Multiplier: r.Multiplier})
	}
	return out
}

// ── Public handlers ─────────────────────────────────────────────────────

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := s.Eng.Now()
	status := map[string]any{
		"name":      "econsim",
		"tick":      now,
		"sim_time":  simtime.Format(now),
		"last_tick": s.Sim.LastTick(),
		"speed":     s.Eng.Speed(),
		"running":   s.Eng.Running(),
		"summary":   s.Sim.Summarize(),
		"stats":     s.Sim.Stats(),
	}
	if s.Tuning != nil {
		status["catalog_version"] = s.Tuning.Catalog.Version
	}
	writeJSON(w, status)
}

func (s *Server) handleCountries(w http.ResponseWriter, r *http.Request) {
	now := s.Eng.Now()
	states := s.Sim.States()
	out := make([]countryView, 0, len(states))
	for _, st := range states {
		out = append(out, viewCountry(st, now))
	}
	writeJSON(w, out)
}

// handleCountryRoutes dispatches /api/v1/country/{id}[/history|/effectiveness].
func (s *Server) handleCountryRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/country/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "missing country id", http.StatusBadRequest)
		return
	}
	id := economy.CountryID(parts[0])

	sub := ""
	if len(parts) > 1 {
		sub = parts[1]
	}
	switch sub {
	case "":
		s.handleCountryDetail(w, r, id)
	case "history":
		s.handleCountryHistory(w, r, id)
	case "effectiveness":
		s.handleCountryEffectiveness(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleCountryDetail(w http.ResponseWriter, r *http.Request, id economy.CountryID) {
	st, comps, err := s.Sim.Country(id)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := s.Sim.Effectiveness(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"country":       viewCountry(st, s.Eng.Now()),
		"components":    comps,
		"effectiveness": snap,
	})
}

func (s *Server) handleCountryHistory(w http.ResponseWriter, r *http.Request, id economy.CountryID) {
	if _, _, err := s.Sim.Country(id); err != nil {
		writeError(w, err)
		return
	}
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}

	var points []economy.HistoryPoint
	if s.DB != nil {
		var err error
		points, err = s.DB.History(id, limit)
		if err != nil {
			slog.Error("history query failed", "country", id, "error", err)
			points = nil
		}
	}
	if len(points) == 0 {
		points = s.Sim.History(id, limit)
	}
	if points == nil {
		points = []economy.HistoryPoint{}
	}
	writeJSON(w, points)
}

func (s *Server) handleCountryEffectiveness(w http.ResponseWriter, r *http.Request, id economy.CountryID) {
	snap, err := s.Sim.Effectiveness(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if snap.Synergies == nil {
		snap.Synergies = []effectiveness.ComponentSynergy{}
	}
	writeJSON(w, snap)
}

func (s *Server) handleTiers(w http.ResponseWriter, r *http.Request) {
	if s.Tuning == nil {
		http.Error(w, "tuning not available", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]any{
		"economic":          viewTiers(s.Tuning.EconomicTable),
		"population":        viewTiers(s.Tuning.PopulationTable),
		"transition_window": s.Tuning.TransitionWindow().Days(),
		"growth_period":     s.Tuning.GrowthPeriod().Days(),
	})
}

// ── Admin handlers ──────────────────────────────────────────────────────

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Country economy.CountryID `json:"country,omitempty"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}

	now := s.Eng.Now()
	if req.Country == "" {
		rep, err := s.Sim.RecomputeAll(r.Context(), now)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, rep)
		return
	}

	out, err := s.Sim.Recompute(r.Context(), req.Country, now)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"country": viewCountry(out.State, now),
		"point":   out.Point,
		"flags":   out.Flags.String(),
		"rate":    out.Rate,
		"periods": out.Periods,
	})
}

func (s *Server) handleComponent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Country   economy.CountryID   `json:"country"`
		Component economy.ComponentID `json:"component"`
		Active    *bool               `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Country == "" || req.Component == "" || req.Active == nil {
		http.Error(w, "country, component and active are required", http.StatusBadRequest)
		return
	}

	comp, err := s.Sim.SetComponentActive(req.Country, req.Component, *req.Active)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := s.Sim.Effectiveness(req.Country)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"component":     comp,
		"effectiveness": snap,
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	tick := s.Eng.Now()
	if err := s.DB.SaveWorldState(s.Sim, tick); err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"tick":    tick,
		"message": "snapshot saved",
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Error("encode response", "error", err)
	}
}
