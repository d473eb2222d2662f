package service

import (
	"context"
	"errors"

	"github.com/okian/mangacatch/internal/adapters/mq/queue"
	"github.com/okian/mangacatch/internal/adapters/repository"
	"github.com/okian/mangacatch/internal/domain/model"
	"github.com/okian/mangacatch/internal/domain/session"
	"github.com/okian/mangacatch/internal/domain/types"
	"github.com/okian/mangacatch/pkg/logger"
)

// record hands a finished session to the recorder without blocking the tick.
// Each session id is submitted at most once.
func (e *Engine) record(day string, r session.Result) {
	ctx := context.Background()
	if e.seen.SeenAndRecord(ctx, r.SessionID) {
		e.logger.Warn(ctx, "session already recorded", logger.String("session", r.SessionID))
		return
	}

	job := queue.Job{
		Day: day,
		Entry: model.RankingEntry{
			SessionID:  r.SessionID,
			Score:      r.Score,
			RaritySum:  r.RaritySum,
			AchievedAt: r.AchievedAt,
		},
	}
	if !e.queue.Enqueue(ctx, job) {
		e.seen.Unrecord(ctx, r.SessionID)
		e.logger.Warn(ctx, "ranking result dropped",
			logger.String("session", r.SessionID),
			logger.Int("score", r.Score))
		return
	}
	e.logger.Info(ctx, "ranking result queued",
		logger.String("day", day),
		logger.String("session", r.SessionID),
		logger.Int("score", r.Score),
		logger.String("favorite", r.Favorite))
}

// recorded runs on the recorder goroutine after each committed write.
func (e *Engine) recorded(day string, list []model.RankingEntry) {
	e.rankMu.Lock()
	e.rankDay = day
	e.rankList = append([]model.RankingEntry(nil), list...)
	e.rankVersion++
	e.rankMu.Unlock()
}

// TodayRanking returns the ranking for the current local day.
func (e *Engine) TodayRanking(ctx context.Context) ([]types.Entry, error) {
	return e.Ranking(ctx, repository.DayKey(e.clock()))
}

// Ranking returns the ranking list for day (YYYY-MM-DD). A malformed day is
// an error; a storage failure is logged and yields an empty list.
func (e *Engine) Ranking(ctx context.Context, day string) ([]types.Entry, error) {
	e.rankMu.RLock()
	if day == e.rankDay && e.rankList != nil {
		out := toEntries(e.rankList)
		e.rankMu.RUnlock()
		return out, nil
	}
	version := e.rankVersion
	e.rankMu.RUnlock()

	list, err := e.store.Day(ctx, day)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidDay) {
			return nil, err
		}
		e.logger.Warn(ctx, "ranking read failed", logger.String("day", day), logger.Error(err))
		return []types.Entry{}, nil
	}

	if day == repository.DayKey(e.clock()) {
		e.rankMu.Lock()
		if e.rankVersion == version {
			e.rankDay = day
			e.rankList = append([]model.RankingEntry{}, list...)
		}
		e.rankMu.Unlock()
	}
	return toEntries(list), nil
}

// cachedToday returns the cached ranking if it belongs to today.
func (e *Engine) cachedToday() []types.Entry {
	today := repository.DayKey(e.clock())
	e.rankMu.RLock()
	defer e.rankMu.RUnlock()
	if e.rankDay != today {
		return []types.Entry{}
	}
	return toEntries(e.rankList)
}

func toEntries(list []model.RankingEntry) []types.Entry {
	out := make([]types.Entry, len(list))
	for i, r := range list {
		out[i] = types.Entry{
			Rank:       i + 1,
			SessionID:  r.SessionID,
			Score:      r.Score,
			RaritySum:  r.RaritySum,
			AchievedAt: r.AchievedAt,
		}
	}
	return out
}
