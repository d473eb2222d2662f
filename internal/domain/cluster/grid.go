package cluster

import (
	"math"
	"sort"

	"github.com/okian/mangacatch/internal/domain/model"
)

// GridClusterer performs single-linkage clustering through a uniform grid index.
// It does not rely on point order, so it suits merged or shuffled scans.
// Output is sorted by centroid (X, then Y) to stay deterministic.
type GridClusterer struct {
	MergeDistance float64
}

// NewGridClusterer creates a grid clusterer whose cell size equals mergeDistance.
func NewGridClusterer(mergeDistance float64) *GridClusterer {
	return &GridClusterer{MergeDistance: mergeDistance}
}

type cellKey struct{ x, y int64 }

// Cluster implements Clusterer.
func (g *GridClusterer) Cluster(points []model.RawPoint) []Cluster {
	if len(points) == 0 {
		return nil
	}
	cell := func(p model.RawPoint) cellKey {
		return cellKey{int64(math.Floor(p.X / g.MergeDistance)), int64(math.Floor(p.Y / g.MergeDistance))}
	}
	grid := make(map[cellKey][]int, len(points))
	for i, p := range points {
		k := cell(p)
		grid[k] = append(grid[k], i)
	}

	labels := make([]int, len(points)) // 0 = unvisited
	next := 0
	for i := range points {
		if labels[i] != 0 {
			continue
		}
		next++
		labels[i] = next
		queue := []int{i}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			base := cell(points[cur])
			for dx := int64(-1); dx <= 1; dx++ {
				for dy := int64(-1); dy <= 1; dy++ {
					for _, j := range grid[cellKey{base.x + dx, base.y + dy}] {
						if labels[j] == 0 && dist(points[cur], points[j]) <= g.MergeDistance {
							labels[j] = next
							queue = append(queue, j)
						}
					}
				}
			}
		}
	}

	groups := make([][]model.RawPoint, next)
	for i, l := range labels {
		groups[l-1] = append(groups[l-1], points[i])
	}
	out := make([]Cluster, 0, next)
	for _, grp := range groups {
		out = append(out, build(grp))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CenterX != out[j].CenterX {
			return out[i].CenterX < out[j].CenterX
		}
		return out[i].CenterY < out[j].CenterY
	})
	return out
}

var _ Clusterer = (*GridClusterer)(nil)
