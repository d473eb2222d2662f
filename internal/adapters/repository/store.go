// Package repository persists the per-day ranking lists.
package repository

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/okian/mangacatch/internal/domain/model"
)

// DefaultMaxEntries is the length a day list is truncated to.
const DefaultMaxEntries = 30

// DayLayout is the calendar day key format.
const DayLayout = "2006-01-02"

// Store provides read/write access to the per-day rankings.
type Store interface {
	// Insert merges entry into the day list and returns the new list.
	// The update is atomic: readers see either the old or the new list.
	Insert(ctx context.Context, day string, entry model.RankingEntry) ([]model.RankingEntry, error)

	// Day returns the list for day, best first. Unknown days are empty.
	Day(ctx context.Context, day string) ([]model.RankingEntry, error)

	// Close releases resources.
	Close() error
}

// Merge adds entry to list, orders by score descending then earliest
// AchievedAt, and truncates to max. The input slice is not modified.
func Merge(list []model.RankingEntry, entry model.RankingEntry, max int) []model.RankingEntry {
	out := make([]model.RankingEntry, 0, len(list)+1)
	out = append(out, list...)
	out = append(out, entry)
	slices.SortStableFunc(out, compare)
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

func compare(a, b model.RankingEntry) int {
	switch {
	case a.Score != b.Score:
		if a.Score > b.Score {
			return -1
		}
		return 1
	case a.AchievedAt.Before(b.AchievedAt):
		return -1
	case b.AchievedAt.Before(a.AchievedAt):
		return 1
	}
	return 0
}

// DayKey formats t as a calendar day key in t's own location.
func DayKey(t time.Time) string { return t.Format(DayLayout) }

func checkDay(day string) error {
	if _, err := time.Parse(DayLayout, day); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDay, day)
	}
	return nil
}
