// Package cluster turns rangefinder scans into person counts and tracked positions.
package cluster

import (
	"math"

	"github.com/okian/mangacatch/internal/domain/model"
)

// Defaults for a floor rangefinder mounted at ankle height, in millimetres.
const (
	DefaultMergeDistance = 300.0
	DefaultMinWidth      = 300.0
	DefaultMaxWidth      = 800.0
)

// Cluster is a group of nearby scan points.
type Cluster struct {
	Points []model.RawPoint
	// Width is the diagonal of the axis-aligned bounding box.
	Width   float64
	CenterX float64
	CenterY float64
}

// Clusterer groups the points of one scan.
type Clusterer interface {
	Cluster(points []model.RawPoint) []Cluster
}

// Params bound the person classifier.
type Params struct {
	MergeDistance float64
	MinWidth      float64
	MaxWidth      float64
}

// DefaultParams returns the installation defaults.
func DefaultParams() Params {
	return Params{
		MergeDistance: DefaultMergeDistance,
		MinWidth:      DefaultMinWidth,
		MaxWidth:      DefaultMaxWidth,
	}
}

// IsPerson reports whether c has a person-sized width (bounds inclusive).
func (p Params) IsPerson(c Cluster) bool {
	return c.Width >= p.MinWidth && c.Width <= p.MaxWidth
}

// People filters clusters down to person-sized ones, preserving order.
func (p Params) People(clusters []Cluster) []Cluster {
	out := make([]Cluster, 0, len(clusters))
	for _, c := range clusters {
		if p.IsPerson(c) {
			out = append(out, c)
		}
	}
	return out
}

// PersonCount clusters points with c and counts person-sized clusters.
// An empty scan yields zero.
func PersonCount(c Clusterer, p Params, points []model.RawPoint) int {
	if len(points) == 0 {
		return 0
	}
	return len(p.People(c.Cluster(points)))
}

// SequentialClusterer merges consecutive points of an angle-ordered scan.
// A gap wider than MergeDistance starts a new cluster.
type SequentialClusterer struct {
	MergeDistance float64
}

// NewSequentialClusterer creates a clusterer with the given merge distance.
func NewSequentialClusterer(mergeDistance float64) *SequentialClusterer {
	return &SequentialClusterer{MergeDistance: mergeDistance}
}

// Cluster implements Clusterer.
func (s *SequentialClusterer) Cluster(points []model.RawPoint) []Cluster {
	if len(points) == 0 {
		return nil
	}
	var (
		out   []Cluster
		start int
	)
	for i := 1; i < len(points); i++ {
		if dist(points[i-1], points[i]) > s.MergeDistance {
			out = append(out, build(points[start:i]))
			start = i
		}
	}
	return append(out, build(points[start:]))
}

func build(points []model.RawPoint) Cluster {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	var sumX, sumY float64
	for _, p := range points {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	own := make([]model.RawPoint, len(points))
	copy(own, points)
	return Cluster{
		Points:  own,
		Width:   math.Hypot(maxX-minX, maxY-minY),
		CenterX: sumX / n,
		CenterY: sumY / n,
	}
}

func dist(a, b model.RawPoint) float64 { return math.Hypot(a.X-b.X, a.Y-b.Y) }

var _ Clusterer = (*SequentialClusterer)(nil)
