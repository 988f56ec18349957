package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/leshachaplin/loginpipe/internal/domain"
)

type Config struct {
	Path string `yaml:"path"`
}

// SQLite is an embedded sink, handy for local runs and tests.
type SQLite struct {
	db *sql.DB
}

func New(ctx context.Context, cfg Config) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite: path is required")
	}

	sep := "?"
	if strings.Contains(cfg.Path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", cfg.Path+sep+"_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLite{
		db: db,
	}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// Commit inserts rows into user_logins inside one transaction.
func (s *SQLite) Commit(ctx context.Context, rows []domain.NormalizedRow) error {
	if len(rows) == 0 {
		return nil
	}

	columns := domain.Columns(rows)
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = `"` + strings.ReplaceAll(c, `"`, `""`) + `"`
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		domain.Table,
		strings.Join(quoted, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistError(len(rows), fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return persistError(len(rows), fmt.Errorf("prepare insert: %w", err))
	}
	defer stmt.Close()

	for i := range rows {
		values := rows[i].Values(columns)
		for j, v := range values {
			if ts, ok := v.(time.Time); ok {
				values[j] = ts.Format(time.DateOnly)
			}
		}
		if _, err = stmt.ExecContext(ctx, values...); err != nil {
			return persistError(len(rows), fmt.Errorf("insert row %d: %w", i, err))
		}
	}

	if err = tx.Commit(); err != nil {
		return persistError(len(rows), fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

func persistError(rows int, err error) error {
	return domain.NewPersistError(classify(err), rows, err)
}

func classify(err error) domain.PersistKind {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return domain.PersistUnknown
	}
	switch sqliteErr.Code {
	case sqlite3.ErrConstraint, sqlite3.ErrMismatch, sqlite3.ErrError:
		return domain.PersistConstraint
	case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrReadonly:
		return domain.PersistConnectivity
	}
	return domain.PersistUnknown
}
