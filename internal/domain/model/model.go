// Package model contains domain models passed between layers.
package model

import "time"

// RawPoint is one rangefinder sample in millimetres, sensor at the origin.
type RawPoint struct {
	X float64
	Y float64
}

// Detection is one tracked position reported by a source.
// X and Y are normalized to [0,1]; ExternalID is the source's identity (> 0).
type Detection struct {
	ExternalID int
	X          float64
	Y          float64
}

// Frame is what a sensor source publishes. The control tick consumes the latest one.
type Frame struct {
	Source     string
	At         time.Time
	Detections []Detection
	// Confirmed reports whether PersonCount has passed the debounce hold.
	Confirmed   bool
	PersonCount int
}

// PointerSample is a pointer fallback position, normalized to [0,1].
type PointerSample struct {
	X  float64
	Y  float64
	At time.Time
}

// ItemType is an immutable catalog entry.
type ItemType struct {
	ID             string
	DisplayName    string
	ScoreValue     int
	RarityWeight   int
	RarityPoint    int
	AssetReference string
}

// RankingEntry is one persisted session result.
type RankingEntry struct {
	SessionID  string
	Score      int
	RaritySum  int
	AchievedAt time.Time
}
