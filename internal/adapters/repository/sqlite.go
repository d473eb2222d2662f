package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/okian/mangacatch/internal/domain/model"
	"github.com/okian/mangacatch/pkg/logger"
	"github.com/okian/mangacatch/pkg/metrics"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore keeps the rankings in a SQLite file.
// Every insert rewrites the day list inside one transaction.
type SQLiteStore struct {
	db  *sql.DB
	max int
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := defaults(opts)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &PersistenceError{Op: "open", Err: err}
	}
	// A single connection serializes writers and keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = db.Close()
		return nil, &PersistenceError{Op: "open", Err: fmt.Errorf("pragmas: %w", err)}
	}
	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, &PersistenceError{Op: "migrate", Err: err}
	}

	logger.Get().Named("ranking").Info(ctx, "ranking store ready", logger.String("path", path), logger.Int("max_entries", s.maxEntries))
	return &SQLiteStore{db: db, max: s.maxEntries}, nil
}

// migrateUp applies every embedded migration.
// The migrate instance is not closed because that would close db.
func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	driver, err := msqlite.WithInstance(db, &msqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Insert implements Store.
func (s *SQLiteStore) Insert(ctx context.Context, day string, entry model.RankingEntry) (list []model.RankingEntry, err error) {
	if err := checkDay(day); err != nil {
		return nil, &PersistenceError{Op: "insert", Day: day, Err: err}
	}
	start := time.Now()
	defer func() {
		if err != nil {
			metrics.RecordRankingError("insert")
			err = &PersistenceError{Op: "insert", Day: day, Err: err}
			return
		}
		metrics.RecordRankingWrite(float64(time.Since(start).Microseconds()) / 1000)
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	current, err := readDay(ctx, tx, day)
	if err != nil {
		return nil, err
	}
	list = Merge(current, entry, s.max)

	if _, err = tx.ExecContext(ctx, `DELETE FROM ranking_entries WHERE day = ?`, day); err != nil {
		return nil, err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO ranking_entries (day, position, session_id, score, rarity_sum, achieved_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	for i, e := range list {
		if _, err = stmt.ExecContext(ctx, day, i+1, e.SessionID, e.Score, e.RaritySum, e.AchievedAt.UnixNano()); err != nil {
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return list, nil
}

// Day implements Store.
func (s *SQLiteStore) Day(ctx context.Context, day string) ([]model.RankingEntry, error) {
	if err := checkDay(day); err != nil {
		return nil, &PersistenceError{Op: "read", Day: day, Err: err}
	}
	list, err := readDay(ctx, s.db, day)
	if err != nil {
		metrics.RecordRankingError("read")
		return nil, &PersistenceError{Op: "read", Day: day, Err: err}
	}
	return list, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error { return s.db.Close() }

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func readDay(ctx context.Context, q querier, day string) ([]model.RankingEntry, error) {
	rows, err := q.QueryContext(ctx, `SELECT session_id, score, rarity_sum, achieved_at FROM ranking_entries WHERE day = ? ORDER BY position`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RankingEntry
	for rows.Next() {
		var (
			e  model.RankingEntry
			at int64
		)
		if err := rows.Scan(&e.SessionID, &e.Score, &e.RaritySum, &at); err != nil {
			return nil, err
		}
		e.AchievedAt = time.Unix(0, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ Store = (*SQLiteStore)(nil)
