package cluster

import (
	"math"
	"sort"
)

// Track is a person cluster with a stable identity.
type Track struct {
	ID      int
	CenterX float64
	CenterY float64
}

// Associator gives person clusters identities that persist across scans.
// Matching is greedy by ascending distance; a centroid that moved more than
// MaxJump since the previous scan gets a fresh id. Not safe for concurrent use.
type Associator struct {
	MaxJump float64
	nextID  int
	tracks  []Track
}

// NewAssociator creates an Associator. Ids start at 1.
func NewAssociator(maxJump float64) *Associator {
	return &Associator{MaxJump: maxJump, nextID: 1}
}

// Associate matches clusters to the previous scan's tracks.
// The result is in the same order as clusters.
func (a *Associator) Associate(clusters []Cluster) []Track {
	type pair struct {
		ci, ti int
		d      float64
	}
	pairs := make([]pair, 0, len(clusters)*len(a.tracks))
	for ci, c := range clusters {
		for ti, t := range a.tracks {
			d := math.Hypot(c.CenterX-t.CenterX, c.CenterY-t.CenterY)
			if d <= a.MaxJump {
				pairs = append(pairs, pair{ci, ti, d})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].d < pairs[j].d })

	out := make([]Track, len(clusters))
	usedC := make([]bool, len(clusters))
	usedT := make([]bool, len(a.tracks))
	for _, p := range pairs {
		if usedC[p.ci] || usedT[p.ti] {
			continue
		}
		usedC[p.ci], usedT[p.ti] = true, true
		out[p.ci] = Track{ID: a.tracks[p.ti].ID, CenterX: clusters[p.ci].CenterX, CenterY: clusters[p.ci].CenterY}
	}
	for ci, c := range clusters {
		if usedC[ci] {
			continue
		}
		out[ci] = Track{ID: a.nextID, CenterX: c.CenterX, CenterY: c.CenterY}
		a.nextID++
	}
	a.tracks = append(a.tracks[:0:0], out...)
	return out
}

// Reset drops all tracks. Ids keep increasing.
func (a *Associator) Reset() { a.tracks = nil }
