package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	pkgch "TradePulse/pkg/clickhouse"
	applogger "TradePulse/pkg/logger"
)

// CHSignalLog implements SignalLog backed by ClickHouse. Append-only;
// rows are never updated.
type CHSignalLog struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHSignalLog(ch *pkgch.Client) *CHSignalLog {
	return &CHSignalLog{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHSignalLog) SetLogger(l *applogger.Logger) { s.l = l }

var _ domrepo.SignalLog = (*CHSignalLog)(nil)

func (s *CHSignalLog) AppendSignal(ctx context.Context, rec models.SignalRecord) error {
	var snapshot string
	if rec.Snapshot != nil {
		b, err := json.Marshal(rec.Snapshot)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		snapshot = string(b)
	}
	createdAt := rec.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}
	const q = `
        INSERT INTO tradepulse.signals (symbol, tf, close_time, action, snapshot, params, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, q,
		rec.Symbol,
		rec.Timeframe,
		time.UnixMilli(rec.CloseTime),
		string(rec.Action),
		snapshot,
		rec.Params,
		time.UnixMilli(createdAt),
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse append_signal insert error",
				applogger.String("symbol", rec.Symbol),
				applogger.String("tf", rec.Timeframe),
				applogger.Int64("close_time", rec.CloseTime),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("append signal: %w", err)
	}
	return nil
}

func (s *CHSignalLog) AppendTrade(ctx context.Context, symbol string, tf domrepo.Timeframe, rec models.TradeRecord) error {
	const q = `
        INSERT INTO tradepulse.trades
            (symbol, tf, time, side, action, price, via, pnl_pct, balance, position_mult, filter_state, reason)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, q,
		symbol,
		string(tf),
		time.UnixMilli(rec.Time),
		string(rec.Side),
		string(rec.Action),
		rec.Price,
		rec.Via,
		rec.PnlPct,
		rec.Balance,
		rec.PositionMult,
		string(rec.FilterState),
		rec.Reason,
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse append_trade insert error",
				applogger.String("symbol", symbol),
				applogger.String("tf", string(tf)),
				applogger.String("action", string(rec.Action)),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("append trade: %w", err)
	}
	return nil
}

func (s *CHSignalLog) RecentSignals(ctx context.Context, symbol string, tf domrepo.Timeframe, limit int) ([]models.SignalRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
        SELECT symbol, tf, close_time, action, snapshot, params, created_at
        FROM tradepulse.signals
        WHERE symbol = ? AND tf = ?
        ORDER BY close_time DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, symbol, string(tf), limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse recent_signals query error",
				applogger.String("symbol", symbol),
				applogger.String("tf", string(tf)),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("recent signals: %w", err)
	}
	defer rows.Close()

	out := make([]models.SignalRecord, 0, limit)
	for rows.Next() {
		var rec models.SignalRecord
		var closeTime, createdAt time.Time
		var action, snapshot string
		if err := rows.Scan(&rec.Symbol, &rec.Timeframe, &closeTime, &action, &snapshot, &rec.Params, &createdAt); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		rec.CloseTime = closeTime.UnixMilli()
		rec.CreatedAt = createdAt.UnixMilli()
		rec.Action = models.Action(action)
		if snapshot != "" {
			var snap models.Snapshot
			if err := json.Unmarshal([]byte(snapshot), &snap); err == nil {
				rec.Snapshot = &snap
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
