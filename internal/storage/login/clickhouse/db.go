package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/rs/zerolog"

	"github.com/leshachaplin/loginpipe/internal/domain"
)

type Config struct {
	Addr     string `yaml:"addr"`
	DB       string `yaml:"db"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type Clickhouse struct {
	conn driver.Conn
}

func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Clickhouse, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.DB,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Debugf: func(format string, v ...any) {
			logger.Debug().Msgf(format, v...)
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout:     time.Second * 30,
		MaxOpenConns:    5,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Duration(10) * time.Minute,
	})
	if err != nil {
		return nil, err
	}

	if err = conn.Ping(ctx); err != nil {
		var exception *clickhouse.Exception
		if errors.As(err, &exception) {
			logger.Error().Int32("code", exception.Code).Str("stack", exception.StackTrace).Msg(exception.Message)
		}
		return nil, err
	}

	return &Clickhouse{
		conn: conn,
	}, nil
}

func (c *Clickhouse) Close() error {
	return c.conn.Close()
}

// Commit sends rows as a single insert block, which ClickHouse applies
// atomically.
func (c *Clickhouse) Commit(ctx context.Context, rows []domain.NormalizedRow) error {
	if len(rows) == 0 {
		return nil
	}

	columns := domain.Columns(rows)
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = "`" + strings.ReplaceAll(col, "`", "\\`") + "`"
	}

	batch, err := c.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s (%s)", domain.Table, strings.Join(quoted, ", ")))
	if err != nil {
		return persistError(len(rows), fmt.Errorf("prepare batch: %w", err))
	}
	for i := range rows {
		if errAppend := batch.Append(rows[i].Values(columns)...); errAppend != nil {
			_ = batch.Abort()
			return persistError(len(rows), fmt.Errorf("append row %d: %w", i, errAppend))
		}
	}
	if err = batch.Send(); err != nil {
		return persistError(len(rows), fmt.Errorf("send batch: %w", err))
	}
	return nil
}

func persistError(rows int, err error) error {
	return domain.NewPersistError(classify(err), rows, err)
}

func classify(err error) domain.PersistKind {
	var exception *clickhouse.Exception
	if errors.As(err, &exception) {
		return domain.PersistConstraint
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return domain.PersistConnectivity
	}
	return domain.PersistUnknown
}
