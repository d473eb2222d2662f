package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/mangacatch/internal/adapters/repository"
)

// RankingDependencies defines the interface for ranking reads.
type RankingDependencies interface {
	Ranking(ctx context.Context, day string) ([]Entry, error)
	TodayRanking(ctx context.Context) ([]Entry, error)
}

// RankingHandler handles ranking requests.
type RankingHandler struct {
	deps RankingDependencies
}

// NewRankingHandler creates a new ranking handler.
func NewRankingHandler(deps RankingDependencies) *RankingHandler {
	return &RankingHandler{deps: deps}
}

// HandleGetRanking handles GET /ranking?day=YYYY-MM-DD requests. Without a
// day it returns today's list.
func (h *RankingHandler) HandleGetRanking(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_ranking"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	entries, err := rankingFor(r.Context(), h.deps, r.URL.Query().Get("day"))
	if err != nil {
		if errors.Is(err, repository.ErrInvalidDay) {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func rankingFor(ctx context.Context, deps RankingDependencies, day string) ([]Entry, error) {
	if day == "" {
		return deps.TodayRanking(ctx)
	}
	return deps.Ranking(ctx, day)
}
