// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

// Package httpapi is the thin HTTP surface over the planning core:
// per-cluster visit composition, per-year/week Seasonal Planner
// invocation, per-week Weekly Assignment Solver invocation, and a
// read-only capacity-grid query. It never implements auth,
// persistence, or audit logging itself — it wires a store.Store, a
// travel.Oracle, and the three solver packages behind gorilla/mux.
package httpapi

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/vwp-nl/fieldplan-core/internal/artefact"
	"github.com/vwp-nl/fieldplan-core/internal/calendar"
	"github.com/vwp-nl/fieldplan-core/internal/export"
	"github.com/vwp-nl/fieldplan-core/internal/model"
	"github.com/vwp-nl/fieldplan-core/internal/sp"
	"github.com/vwp-nl/fieldplan-core/internal/store"
	"github.com/vwp-nl/fieldplan-core/internal/travel"
	"github.com/vwp-nl/fieldplan-core/internal/vcs"
	"github.com/vwp-nl/fieldplan-core/internal/was"
	"github.com/vwp-nl/fieldplan-core/pkg/config"
	pctx "github.com/vwp-nl/fieldplan-core/pkg/context"
	plerrors "github.com/vwp-nl/fieldplan-core/pkg/errors"
	"github.com/vwp-nl/fieldplan-core/pkg/logging"
	"github.com/vwp-nl/fieldplan-core/pkg/metrics"
	"github.com/vwp-nl/fieldplan-core/pkg/streaming"
)

// Server bundles the dependencies every handler needs: the store
// (the persistence interface), the travel oracle, solver settings, a
// clock, and ambient logging/metrics, plus the run history and the
// async run registry behind the WebSocket stream. A Server is safe to
// reuse across requests but HTTP-level mutual exclusion on a single ISO
// week is the caller's responsibility.
type Server struct {
	Store    *store.MemoryStore
	Oracle   *travel.Oracle
	Settings *config.SolverSettings
	Clock    store.Clock
	Logger   logging.Logger
	Metrics  metrics.Collector
	History  *artefact.RunHistory

	runs   *runRegistry
	stream *streaming.WebSocketServer
}

// New returns a Server with sane defaults for any nil optional field.
func New(s *store.MemoryStore, oracle *travel.Oracle, settings *config.SolverSettings, clock store.Clock, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if settings == nil {
		settings = config.Default()
	}
	runs := newRunRegistry()
	collector := metrics.NewInMemoryCollector()
	if oracle != nil {
		oracle.SetMetrics(collector)
	}
	return &Server{
		Store:    s,
		Oracle:   oracle,
		Settings: settings,
		Clock:    clock,
		Logger:   logger,
		Metrics:  collector,
		History:  artefact.NewRunHistory(),
		runs:     runs,
		stream:   streaming.NewWebSocketServer(runs),
	}
}

// Router builds the mux.Router exposing every route this package
// serves, wrapped in request logging/metrics/recovery middleware.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.HandleFunc("/clusters/{id}/compose", s.handleCompose).Methods(http.MethodPost)
	r.HandleFunc("/seasons/{year}/{week}", s.handleSeason).Methods(http.MethodPost)
	r.HandleFunc("/weeks/{monday}/assign", s.handleWeek).Methods(http.MethodPost)
	r.HandleFunc("/weeks/{monday}/users/{id}/calendar.ics", s.handleWeekCalendar).Methods(http.MethodGet)
	r.HandleFunc("/capacity-grid", s.handleCapacityGrid).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}", s.handleRunStatus).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}/stream", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		if q.Get("run_id") == "" {
			q.Set("run_id", mux.Vars(req)["id"])
			req.URL.RawQuery = q.Encode()
		}
		s.stream.HandleWebSocket(w, req)
	}).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	return r
}

// handleRunStatus polls an async run started by handleSeason or
// handleWeek with ?async=true. A caller that wants live updates
// instead connects to /runs/{id}/stream, the WebSocket endpoint
// pkg/streaming serves over the same registry.
func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	st, ok := s.runs.status(id)
	if !ok {
		writeError(w, plerrors.InputValidation("id", "unknown run id"))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// loggingMiddleware records the request/response pair through
// pkg/metrics and logs the outcome through pkg/logging.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		s.Metrics.RecordRequest(req.Method, req.URL.Path)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		s.Metrics.RecordResponse(req.Method, req.URL.Path, rec.status, time.Since(start))
		s.Logger.Info("http request",
			"method", req.Method, "path", req.URL.Path,
			"status", rec.status, "duration_ms", time.Since(start).Milliseconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// recoveryMiddleware converts a handler panic into a 5xx PlanningError
// response instead of crashing the request goroutine.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.Metrics.RecordError(req.Method, req.URL.Path, nil)
				s.Logger.Error("http handler panic", "method", req.Method, "path", req.URL.Path, "recover", rec)
				writeError(w, plerrors.PlanningRunFailure("PANIC", "internal solver failure", nil))
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func writeError(w http.ResponseWriter, err error) {
	if pctx.IsContextError(err) {
		err = pctx.WrapContextError(err, "solver run", pctx.DefaultLongTimeout)
	}
	pe, ok := err.(*plerrors.PlanningError)
	status := http.StatusInternalServerError
	if ok {
		if pe.Kind == plerrors.KindInputValidation {
			status = http.StatusBadRequest
		}
	} else {
		pe = plerrors.PlanningRunFailure("UNKNOWN", err.Error(), err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(pe)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMetrics serves request/response/error counters and the travel
// oracle's cache hit ratio, for an operator to check solver-run load
// without scraping logs.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Metrics.GetStats())
}

// clusterProjectFunc resolves a cluster to its project id from the
// store's current catalogue snapshot, satisfying both sp.ClusterProject
// and was.ClusterProject (identical signatures, distinct named types).
func (s *Server) clusterProjectFunc() func(model.ID) (model.ID, bool) {
	return func(clusterID model.ID) (model.ID, bool) {
		clusters, err := s.Store.LoadClusters([]model.ID{clusterID})
		if err != nil || len(clusters) == 0 {
			return 0, false
		}
		return clusters[0].ProjectID, true
	}
}

func (s *Server) isQuoteProjectFunc() func(model.ID) bool {
	return func(projectID model.ID) bool {
		projects, err := s.Store.LoadProjects([]model.ID{projectID})
		return err == nil && len(projects) == 1 && projects[0].IsQuote
	}
}

// handleCompose runs the Visit Composition Solver for one cluster.
func (s *Server) handleCompose(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, plerrors.InputValidation("id", "cluster id must be an integer"))
		return
	}
	clusters, err := s.Store.LoadClusters([]model.ID{model.ID(id)})
	if err != nil || len(clusters) == 0 {
		writeError(w, plerrors.InputValidation("id", "unknown cluster"))
		return
	}
	protocols, err := s.Store.LoadProtocols(nil)
	if err != nil {
		writeError(w, err)
		return
	}
	cat := s.Store.Catalogue()
	ctx, cancel := pctx.WithTimeout(r.Context(), pctx.OpWrite, pctx.DefaultTimeoutConfig())
	defer cancel()
	visits, warnings, err := vcs.Compose(ctx, clusters[0], protocols, cat, s.Settings, s.Clock.Today().Year(), s.Logger)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Store.PersistVisits(visits); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"visits": visits, "warnings": warnings})
}

// handleSeason runs the Seasonal Planner for one calendar year.
func (s *Server) handleSeason(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	year, err := strconv.Atoi(vars["year"])
	if err != nil {
		writeError(w, plerrors.InputValidation("year", "year must be an integer"))
		return
	}
	visits, err := s.Store.LoadEligibleVisits(time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		writeError(w, err)
		return
	}
	users, err := s.Store.LoadUsers()
	if err != nil {
		writeError(w, err)
		return
	}
	avail, err := s.Store.LoadAvailability(0)
	if err != nil {
		writeError(w, err)
		return
	}
	cat := s.Store.Catalogue()

	plan := func(ctx context.Context, emit func(string, float64)) (any, error) {
		emit("loaded", 10)
		emit("modeling", 30)
		emit("solving", 50)
		out, err := sp.Plan(ctx, sp.Input{
			Visits:         visits,
			Users:          users,
			Availability:   avail,
			Catalogue:      cat,
			Protocol:       func(id model.ID) (model.Protocol, bool) { p, ok := cat.Protocols[id]; return p, ok },
			ClusterProject: s.clusterProjectFunc(),
			CurrentYear:    year,
			HorizonStart:   s.Clock.Today(),
		}, s.Logger)
		if err != nil {
			return nil, err
		}
		if err := s.Store.PersistVisits(out); err != nil {
			return nil, err
		}
		return map[string]any{"visits": out}, nil
	}

	if r.URL.Query().Get("async") == "true" {
		id := s.runs.start(streaming.StageSeasonalPlan, func(_ context.Context, emit func(string, float64)) (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), s.Settings.SeasonPlannerTimeoutQuick)
			defer cancel()
			return plan(ctx, emit)
		})
		writeJSON(w, http.StatusAccepted, map[string]string{"run_id": id})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.Settings.SeasonPlannerTimeoutQuick)
	defer cancel()
	result, err := plan(ctx, func(string, float64) {})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// weeklyTimeout scales the solver's search budget with problem size:
// max(5, min(45, |visits|*|users|*0.008)) seconds.
func weeklyTimeout(visitCount, userCount int) time.Duration {
	secs := math.Max(5, math.Min(45, float64(visitCount)*float64(userCount)*0.008))
	return time.Duration(secs * float64(time.Second))
}

// handleWeek runs the Weekly Assignment Solver for the Monday named in
// the path (YYYY-MM-DD). It pre-fetches every travel-time pair the
// candidate set could need in one batch, before building the solver
// model: the oracle is called once per run, never during search.
func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	mondayStr := mux.Vars(r)["monday"]
	monday, err := time.Parse("2006-01-02", mondayStr)
	if err != nil {
		writeError(w, plerrors.InputValidation("monday", "monday must be YYYY-MM-DD"))
		return
	}
	visits, err := s.Store.LoadEligibleVisits(monday)
	if err != nil {
		writeError(w, err)
		return
	}
	users, err := s.Store.LoadUsers()
	if err != nil {
		writeError(w, err)
		return
	}
	year, week, _ := calendar.IsoWeek(monday)
	avail, err := s.Store.LoadAvailability(calendar.WeekOrdinal(year, week))
	if err != nil {
		writeError(w, err)
		return
	}
	cat := s.Store.Catalogue()

	assign := func(ctx context.Context, emit func(string, float64)) (any, error) {
		emit("loaded", 10)
		travelResult := s.prefetchTravel(ctx, visits, users)
		emit("modeling", 30)
		emit("solving", 50)
		out, err := was.Plan(ctx, was.Input{
			WeekMonday:     monday,
			CurrentWeek:    calendar.WeekOrdinal(year, week),
			Visits:         visits,
			Users:          users,
			Availability:   avail,
			Catalogue:      cat,
			Protocol:       func(id model.ID) (model.Protocol, bool) { p, ok := cat.Protocols[id]; return p, ok },
			ClusterProject: s.clusterProjectFunc(),
			IsQuoteProject: s.isQuoteProjectFunc(),
			ChainState:     func(pid model.ID) (int, bool) { return s.History.ChainState(visits, pid) },
			LastLocked:     func(pid, cid model.ID) (time.Time, bool) { return s.History.LastLockedStart(pid, cid, monday) },
			UserTravel: func(uid, cid model.ID) (int, bool) {
				m, ok := travelResult[travel.Pair{OriginClusterID: uid, DestinationClusterID: cid}]
				return m, ok
			},
			ClusterTravel: func(a, b model.ID) (int, bool) {
				m, ok := travelResult[travel.Pair{OriginClusterID: a, DestinationClusterID: b}]
				return m, ok
			},
			Settings: s.Settings,
		}, s.Logger)
		if err != nil {
			return nil, err
		}
		for _, v := range out.Visits {
			if v.PlannedWeek != nil {
				s.History.Record(v, s.Clock.Now())
			}
		}
		if err := s.Store.PersistVisits(out.Visits); err != nil {
			return nil, err
		}
		return map[string]any{
			"visits":            out.Visits,
			"skipped_visit_ids": out.SkippedVisitIDs,
			"qualification_gap": out.QualificationGap,
		}, nil
	}

	if r.URL.Query().Get("async") == "true" {
		id := s.runs.start(streaming.StageWeeklyAssign, func(_ context.Context, emit func(string, float64)) (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), weeklyTimeout(len(visits), len(users)))
			defer cancel()
			return assign(ctx, emit)
		})
		writeJSON(w, http.StatusAccepted, map[string]string{"run_id": id})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), weeklyTimeout(len(visits), len(users)))
	defer cancel()
	result, err := assign(ctx, func(string, float64) {})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleWeekCalendar renders one researcher's assignments for the week
// starting at the Monday in the path as a downloadable iCalendar
// document.
func (s *Server) handleWeekCalendar(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	monday, err := time.Parse("2006-01-02", vars["monday"])
	if err != nil {
		writeError(w, plerrors.InputValidation("monday", "monday must be YYYY-MM-DD"))
		return
	}
	userID, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		writeError(w, plerrors.InputValidation("id", "user id must be an integer"))
		return
	}
	visits, err := s.Store.LoadEligibleVisits(monday)
	if err != nil {
		writeError(w, err)
		return
	}
	cat := s.Store.Catalogue()
	clusterName := func(id model.ID) (string, bool) {
		clusters, err := s.Store.LoadClusters([]model.ID{id})
		if err != nil || len(clusters) == 0 {
			return "", false
		}
		return clusters[0].Address, true
	}
	doc, err := export.WeekCalendar(visits, cat, clusterName, model.ID(userID), s.Clock.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"fieldplan-week.ics\"")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// prefetchTravel builds every (user, visit-cluster) and
// (cluster, cluster) pair the week's candidates could need and
// resolves them through the Oracle in a single batch call.
func (s *Server) prefetchTravel(ctx context.Context, visits []model.Visit, users []model.User) map[travel.Pair]int {
	ctx, cancel := pctx.EnsureTimeout(ctx, pctx.DefaultTimeout)
	defer cancel()
	clusterIDs := map[model.ID]bool{}
	for _, v := range visits {
		clusterIDs[v.ClusterID] = true
	}
	var pairs []travel.Pair
	for uid := range usersByID(users) {
		for cid := range clusterIDs {
			pairs = append(pairs, travel.Pair{OriginClusterID: uid, DestinationClusterID: cid})
		}
	}
	for a := range clusterIDs {
		for b := range clusterIDs {
			if a != b {
				pairs = append(pairs, travel.Pair{OriginClusterID: a, DestinationClusterID: b})
			}
		}
	}
	if s.Oracle == nil || len(pairs) == 0 {
		return map[travel.Pair]int{}
	}
	return s.Oracle.TravelMinutesBatch(ctx, pairs)
}

func usersByID(users []model.User) map[model.ID]bool {
	out := make(map[model.ID]bool, len(users))
	for _, u := range users {
		out[u.ID] = true
	}
	return out
}

// handleCapacityGrid serves the read-only persisted-artefact view
// without mutating any visit. ?dry_run=true switches from Build
// (actual assignments) to Simulate (even spread projection).
func (s *Server) handleCapacityGrid(w http.ResponseWriter, r *http.Request) {
	visits, err := s.Store.LoadEligibleVisits(s.Clock.Today())
	if err != nil {
		writeError(w, err)
		return
	}
	users, err := s.Store.LoadUsers()
	if err != nil {
		writeError(w, err)
		return
	}
	avail, err := s.Store.LoadAvailability(0)
	if err != nil {
		writeError(w, err)
		return
	}
	cat := s.Store.Catalogue()
	year := s.Clock.Today().Year()
	in := artefact.BuildInput{
		Visits:       visits,
		Users:        users,
		Availability: avail,
		Catalogue:    cat,
		Weeks:        calendar.YearWeeks(year),
	}
	var grid artefact.Grid
	if r.URL.Query().Get("dry_run") == "true" {
		grid = artefact.Simulate(in)
	} else {
		grid = artefact.Build(in)
	}
	writeJSON(w, http.StatusOK, grid)
}
