// Package api exposes the engine over HTTP: state, control, rankings and
// operational endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/mangacatch/internal/domain/model"
	"github.com/okian/mangacatch/internal/domain/types"
)

// Dependencies required by HTTP handlers. The engine satisfies it.
type Dependencies interface {
	StatsProvider
	StateProvider
	ControlDependencies
	RankingDependencies
}

// Entry mirrors the read shape returned by ranking queries.
type Entry = types.Entry

// StateProvider exposes the latest published snapshot.
type StateProvider interface {
	Snapshot() types.Snapshot
}

// ControlDependencies accepts operator and pointer input.
type ControlDependencies interface {
	TriggerStart() error
	Pointer(p model.PointerSample) bool
}

// Server wires HTTP routes for the engine.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	stateHandler   *StateHandler
	controlHandler *ControlHandler
	rankingHandler *RankingHandler
	chartHandler   *chartHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		stateHandler:   NewStateHandler(deps),
		controlHandler: NewControlHandler(deps),
		rankingHandler: NewRankingHandler(deps),
		chartHandler:   newChartHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/state", MetricsMiddleware(s.stateHandler.HandleState, "state"))
	mux.HandleFunc("/start", MetricsMiddleware(s.controlHandler.HandleStart, "start"))
	mux.HandleFunc("/pointer", MetricsMiddleware(s.controlHandler.HandlePointer, "pointer"))
	mux.HandleFunc("/ranking/chart", MetricsMiddleware(s.chartHandler.HandleChart, "ranking_chart"))
	mux.HandleFunc("/ranking", MetricsMiddleware(s.rankingHandler.HandleGetRanking, "ranking"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
