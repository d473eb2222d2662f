// Package types contains common types used across the application
package types

import "time"

// Entry represents a ranking entry
type Entry struct {
	Rank       int       `json:"rank"`
	SessionID  string    `json:"session_id"`
	Score      int       `json:"score"`
	RaritySum  int       `json:"rarity_sum"`
	AchievedAt time.Time `json:"achieved_at"`
}

// Slot is the read-only view of a participant slot
type Slot struct {
	Index    int     `json:"index"`
	Active   bool    `json:"active"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Score    int     `json:"score"`
	Fallback bool    `json:"fallback"`
}

// Object is the read-only view of a falling object
type Object struct {
	ID     uint64  `json:"id"`
	Lane   int     `json:"lane"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	ItemID string  `json:"item_id"`
}

// Snapshot is the immutable per-tick state handed to presentation
type Snapshot struct {
	Tick           uint64         `json:"tick"`
	Phase          string         `json:"phase"`
	PhaseElapsedMS int64          `json:"phase_elapsed_ms"`
	SessionID      string         `json:"session_id,omitempty"`
	Score          int            `json:"score"`
	RaritySum      int            `json:"rarity_sum"`
	Histogram      map[string]int `json:"histogram"`
	Favorite       string         `json:"favorite,omitempty"`
	PersonCount    int            `json:"person_count"`
	Multiplier     float64        `json:"multiplier"`
	Slots          []Slot         `json:"slots"`
	Objects        []Object       `json:"objects"`
	Ranking        []Entry        `json:"ranking"`
}
