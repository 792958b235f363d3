// Package memstore provides in-memory implementations of the
// repository interfaces. Used by tests and by single-process dev runs
// where Redis and ClickHouse are not available.
package memstore

import (
	"context"
	"sort"
	"sync"

	"TradePulse/internal/domain/models"
	"TradePulse/internal/domain/repository"
)

// StateStore is a process-local repository.StateStore.
type StateStore struct {
	mu        sync.RWMutex
	positions map[string]models.PositionState
	filters   map[string]models.FilterMemory
	regimes   map[string]models.RegimeState
	lastExits map[string]int64
	settings  map[string]string
	overlay   []byte
	hasOver   bool
	seen      map[string]struct{}
}

var _ repository.StateStore = (*StateStore)(nil)

func NewStateStore() *StateStore {
	return &StateStore{
		positions: make(map[string]models.PositionState),
		filters:   make(map[string]models.FilterMemory),
		regimes:   make(map[string]models.RegimeState),
		lastExits: make(map[string]int64),
		settings:  make(map[string]string),
		seen:      make(map[string]struct{}),
	}
}

func (s *StateStore) Position(_ context.Context, symbol string) (models.PositionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.positions[symbol], nil
}

func (s *StateStore) SavePosition(_ context.Context, symbol string, pos models.PositionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[symbol] = pos
	return nil
}

func (s *StateStore) ClearPosition(_ context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions, symbol)
	return nil
}

func (s *StateStore) FilterMemory(_ context.Context, symbol string) (models.FilterMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters[symbol], nil
}

func (s *StateStore) SaveFilterMemory(_ context.Context, symbol string, mem models.FilterMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters[symbol] = mem
	return nil
}

func regimeKey(symbol string, tf repository.Timeframe) string {
	return symbol + ":" + string(tf)
}

func (s *StateStore) RegimeState(_ context.Context, symbol string, tf repository.Timeframe) (models.RegimeState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.regimes[regimeKey(symbol, tf)], nil
}

func (s *StateStore) SaveRegimeState(_ context.Context, symbol string, tf repository.Timeframe, st models.RegimeState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regimes[regimeKey(symbol, tf)] = st
	return nil
}

func (s *StateStore) LastExitCloseTime(_ context.Context, symbol string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.lastExits[symbol]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return t, nil
}

func (s *StateStore) SetLastExitCloseTime(_ context.Context, symbol string, closeTime int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastExits[symbol] = closeTime
	return nil
}

func (s *StateStore) Setting(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.settings[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return v, nil
}

func (s *StateStore) SetSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *StateStore) ActiveParamOverlay(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasOver {
		return nil, repository.ErrNotFound
	}
	out := make([]byte, len(s.overlay))
	copy(out, s.overlay)
	return out, nil
}

func (s *StateStore) SetActiveParamOverlay(_ context.Context, _ string, overlay []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay = append([]byte(nil), overlay...)
	s.hasOver = true
	return nil
}

func (s *StateStore) MarkEventSeen(_ context.Context, dedupKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[dedupKey]; ok {
		return false, nil
	}
	s.seen[dedupKey] = struct{}{}
	return true, nil
}

// KlineStore is a process-local repository.KlineStore.
type KlineStore struct {
	mu   sync.RWMutex
	bars map[string][]models.Bar
}

var _ repository.KlineStore = (*KlineStore)(nil)

func NewKlineStore() *KlineStore {
	return &KlineStore{bars: make(map[string][]models.Bar)}
}

func (s *KlineStore) StoreBars(_ context.Context, symbol string, tf repository.Timeframe, bars []models.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := regimeKey(symbol, tf)
	merged := append(append([]models.Bar(nil), s.bars[key]...), bars...)
	sort.Slice(merged, func(i, j int) bool { return merged[i].OpenTime < merged[j].OpenTime })
	// drop duplicates by open time, keeping the later write
	out := merged[:0]
	for _, b := range merged {
		if len(out) > 0 && out[len(out)-1].OpenTime == b.OpenTime {
			out[len(out)-1] = b
			continue
		}
		out = append(out, b)
	}
	s.bars[key] = append([]models.Bar(nil), out...)
	return nil
}

func (s *KlineStore) FetchBars(_ context.Context, symbol string, tf repository.Timeframe, limit int) ([]models.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.bars[regimeKey(symbol, tf)]
	if len(all) == 0 {
		return nil, repository.ErrNotFound
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]models.Bar(nil), all...), nil
}

// SignalLog is a process-local repository.SignalLog.
type SignalLog struct {
	mu      sync.RWMutex
	signals []models.SignalRecord
	trades  []models.TradeRecord
}

var _ repository.SignalLog = (*SignalLog)(nil)

func NewSignalLog() *SignalLog { return &SignalLog{} }

func (l *SignalLog) AppendSignal(_ context.Context, rec models.SignalRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.signals = append(l.signals, rec)
	return nil
}

func (l *SignalLog) AppendTrade(_ context.Context, _ string, _ repository.Timeframe, rec models.TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trades = append(l.trades, rec)
	return nil
}

func (l *SignalLog) RecentSignals(_ context.Context, symbol string, tf repository.Timeframe, limit int) ([]models.SignalRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []models.SignalRecord
	for i := len(l.signals) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		rec := l.signals[i]
		if rec.Symbol == symbol && rec.Timeframe == string(tf) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Trades returns every trade appended so far, oldest first.
func (l *SignalLog) Trades() []models.TradeRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.TradeRecord(nil), l.trades...)
}
