package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	pkgch "TradePulse/pkg/clickhouse"
	applogger "TradePulse/pkg/logger"
)

// CHKlineStore implements KlineStore backed by ClickHouse. One table
// per timeframe, deduplicated on (symbol, open_time) by the engine.
type CHKlineStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHKlineStore(ch *pkgch.Client) *CHKlineStore {
	return &CHKlineStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHKlineStore) SetLogger(l *applogger.Logger) { s.l = l }

var _ domrepo.KlineStore = (*CHKlineStore)(nil)

func (s *CHKlineStore) FetchBars(ctx context.Context, symbol string, tf domrepo.Timeframe, limit int) ([]models.Bar, error) {
	start := time.Now()
	table, err := tableForTF(tf)
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT open_time, open, high, low, close, vol
        FROM %s
        WHERE symbol = ?
        ORDER BY open_time DESC
        LIMIT ?
    `
	if limit <= 0 {
		limit = 1000
	}
	q := fmt.Sprintf(qtpl, table)
	rows, err := s.db.QueryContext(ctx, q, symbol, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse fetch_bars query error",
				applogger.String("table", table),
				applogger.String("symbol", symbol),
				applogger.String("tf", string(tf)),
				applogger.Int("limit", limit),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	defer rows.Close()

	tmp := make([]models.Bar, 0, limit)
	for rows.Next() {
		var b models.Bar
		var ts time.Time
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse fetch_bars scan error",
					applogger.String("table", table),
					applogger.String("symbol", symbol),
					applogger.String("tf", string(tf)),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.OpenTime = ts.UnixMilli()
		tmp = append(tmp, b)
	}
	if err := rows.Err(); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse fetch_bars rows error",
				applogger.String("table", table),
				applogger.String("symbol", symbol),
				applogger.String("tf", string(tf)),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	if s.l != nil {
		s.l.Info("clickhouse fetch_bars ok",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Int("limit", limit),
			applogger.Int("rows", len(tmp)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return tmp, nil
}

func (s *CHKlineStore) StoreBars(ctx context.Context, symbol string, tf domrepo.Timeframe, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	table, err := tableForTF(tf)
	if err != nil {
		return err
	}
	// Chunked multi-row VALUES insert to reduce round-trips.
	const chunkSize = 2000
	for start := 0; start < len(bars); start += chunkSize {
		end := start + chunkSize
		if end > len(bars) {
			end = len(bars)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*7)
		for _, b := range bars[start:end] {
			if b.OpenTime == 0 {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				symbol,
				time.UnixMilli(b.OpenTime),
				b.Open,
				b.High,
				b.Low,
				b.Close,
				b.Volume,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, open_time, open, high, low, close, vol) VALUES %s",
			table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse store_bars insert error",
					applogger.String("table", table),
					applogger.String("symbol", symbol),
					applogger.String("tf", string(tf)),
					applogger.Int("rows", len(values)),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("store bars: %w", err)
		}
	}
	return nil
}

func tableForTF(tf domrepo.Timeframe) (string, error) {
	switch tf {
	case domrepo.TF1m:
		return "tradepulse.klines_1m", nil
	case domrepo.TF15m:
		return "tradepulse.klines_15m", nil
	case domrepo.TF1h:
		return "tradepulse.klines_1h", nil
	case domrepo.TF4h:
		return "tradepulse.klines_4h", nil
	case domrepo.TF1d:
		return "tradepulse.klines_1d", nil
	default:
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
}

// SchemaStatements returns the idempotent DDL for every table this
// package touches, in execution order.
func SchemaStatements() []string {
	stmts := []string{
		`CREATE DATABASE IF NOT EXISTS tradepulse`,
	}
	for _, tf := range []domrepo.Timeframe{domrepo.TF1m, domrepo.TF15m, domrepo.TF1h, domrepo.TF4h, domrepo.TF1d} {
		table, _ := tableForTF(tf)
		stmts = append(stmts, fmt.Sprintf(`
            CREATE TABLE IF NOT EXISTS %s (
                symbol    LowCardinality(String),
                open_time DateTime64(3),
                open      Float64,
                high      Float64,
                low       Float64,
                close     Float64,
                vol       Float64
            ) ENGINE = ReplacingMergeTree
            ORDER BY (symbol, open_time)
        `, table))
	}
	stmts = append(stmts,
		`
        CREATE TABLE IF NOT EXISTS tradepulse.signals (
            symbol     LowCardinality(String),
            tf         LowCardinality(String),
            close_time DateTime64(3),
            action     LowCardinality(String),
            snapshot   String,
            params     String,
            created_at DateTime64(3)
        ) ENGINE = MergeTree
        ORDER BY (symbol, tf, close_time)
    `,
		`
        CREATE TABLE IF NOT EXISTS tradepulse.trades (
            symbol        LowCardinality(String),
            tf            LowCardinality(String),
            time          DateTime64(3),
            side          LowCardinality(String),
            action        LowCardinality(String),
            price         Float64,
            via           LowCardinality(String),
            pnl_pct       Nullable(Float64),
            balance       Nullable(Float64),
            position_mult Nullable(Float64),
            filter_state  LowCardinality(String),
            reason        String
        ) ENGINE = MergeTree
        ORDER BY (symbol, tf, time)
    `)
	return stmts
}

// InitSchema creates the database and tables (idempotent).
func InitSchema(ctx context.Context, ch *pkgch.Client) error {
	return ch.InitSchema(ctx, SchemaStatements())
}
