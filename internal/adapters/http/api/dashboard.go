package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/okian/mangacatch/internal/adapters/repository"
)

// chartEntries caps the bars drawn on the ranking chart.
const chartEntries = 20

// chartHandler renders a ranking list as an HTML bar chart.
type chartHandler struct {
	deps RankingDependencies
}

func newChartHandler(deps RankingDependencies) *chartHandler {
	return &chartHandler{deps: deps}
}

// HandleChart handles GET /ranking/chart?day=YYYY-MM-DD requests.
func (h *chartHandler) HandleChart(w http.ResponseWriter, r *http.Request) {
	const op = "api.ranking_chart"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	day := r.URL.Query().Get("day")
	entries, err := rankingFor(r.Context(), h.deps, day)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidDay) {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	if day == "" {
		day = "today"
	}

	var buf bytes.Buffer
	if err := rankingChart(day, entries).Render(&buf); err != nil {
		writeError(w, http.StatusInternalServerError, "render_error", WrapKind(op, ErrRender, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func rankingChart(day string, entries []Entry) *charts.Bar {
	if len(entries) > chartEntries {
		entries = entries[:chartEntries]
	}
	x := make([]string, 0, len(entries))
	scores := make([]opts.BarData, 0, len(entries))
	rarity := make([]opts.BarData, 0, len(entries))
	for _, e := range entries {
		x = append(x, fmt.Sprintf("#%d %s", e.Rank, e.AchievedAt.Format("15:04:05")))
		scores = append(scores, opts.BarData{Value: e.Score})
		rarity = append(rarity, opts.BarData{Value: e.RaritySum})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Ranking", Width: "100%", Height: "640px"}),
		charts.WithTitleOpts(opts.Title{Title: "Ranking", Subtitle: day}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("score", scores, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"})).
		AddSeries("rarity", rarity)
	return bar
}
