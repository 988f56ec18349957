package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leshachaplin/loginpipe/internal/domain"
)

type Config struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

type Postgres struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg Config) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Postgres{
		pool: pool,
	}, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Commit copies rows into user_logins inside one transaction.
func (p *Postgres) Commit(ctx context.Context, rows []domain.NormalizedRow) error {
	if len(rows) == 0 {
		return nil
	}

	columns := domain.Columns(rows)
	values := make([][]any, len(rows))
	for i := range rows {
		values[i] = rows[i].Values(columns)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return persistError(len(rows), fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	if _, err = tx.CopyFrom(ctx, pgx.Identifier{domain.Table}, columns, pgx.CopyFromRows(values)); err != nil {
		return persistError(len(rows), fmt.Errorf("copy rows: %w", err))
	}
	if err = tx.Commit(ctx); err != nil {
		return persistError(len(rows), fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

func persistError(rows int, err error) error {
	return domain.NewPersistError(classify(err), rows, err)
}

func classify(err error) domain.PersistKind {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) == 5 {
		switch pgErr.Code[:2] {
		// integrity constraint violation, data exception, syntax error or access rule violation
		case "23", "22", "42":
			return domain.PersistConstraint
		// connection exception, insufficient resources, operator intervention
		case "08", "53", "57":
			return domain.PersistConnectivity
		}
		return domain.PersistUnknown
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connectErr) || errors.As(err, &netErr) || pgconn.Timeout(err) {
		return domain.PersistConnectivity
	}
	return domain.PersistUnknown
}
