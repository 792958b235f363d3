package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/pkg/cache"
)

// Dedup keys keep at-most-once processing across restarts without
// growing forever.
const dedupTTL = 48 * time.Hour

// CacheStateStore implements StateStore on top of the cache service,
// backed by Redis in production. All values are compact JSON so the
// keys stay inspectable with redis-cli.
type CacheStateStore struct {
	c cache.Service
}

func NewCacheStateStore(c cache.Service) *CacheStateStore {
	return &CacheStateStore{c: c}
}

var _ domrepo.StateStore = (*CacheStateStore)(nil)

func (s *CacheStateStore) Position(ctx context.Context, symbol string) (models.PositionState, error) {
	var pos models.PositionState
	err := s.c.Get(ctx, cache.GenerateKey("position", symbol), &pos)
	if errors.Is(err, cache.ErrCacheMiss) {
		return models.PositionState{}, nil
	}
	if err != nil {
		return models.PositionState{}, fmt.Errorf("get position: %w", err)
	}
	return pos, nil
}

func (s *CacheStateStore) SavePosition(ctx context.Context, symbol string, pos models.PositionState) error {
	return s.c.Set(ctx, cache.GenerateKey("position", symbol), pos, 0)
}

func (s *CacheStateStore) ClearPosition(ctx context.Context, symbol string) error {
	return s.c.Delete(ctx, cache.GenerateKey("position", symbol))
}

func (s *CacheStateStore) FilterMemory(ctx context.Context, symbol string) (models.FilterMemory, error) {
	var mem models.FilterMemory
	err := s.c.Get(ctx, cache.GenerateKey("adaptive_filter", symbol), &mem)
	if errors.Is(err, cache.ErrCacheMiss) {
		return models.FilterMemory{}, nil
	}
	if err != nil {
		return models.FilterMemory{}, fmt.Errorf("get filter memory: %w", err)
	}
	return mem, nil
}

func (s *CacheStateStore) SaveFilterMemory(ctx context.Context, symbol string, mem models.FilterMemory) error {
	return s.c.Set(ctx, cache.GenerateKey("adaptive_filter", symbol), mem, 0)
}

func (s *CacheStateStore) RegimeState(ctx context.Context, symbol string, tf domrepo.Timeframe) (models.RegimeState, error) {
	var st models.RegimeState
	err := s.c.Get(ctx, cache.GenerateKeyWithParams("regime", symbol, tf), &st)
	if errors.Is(err, cache.ErrCacheMiss) {
		return models.RegimeState{}, nil
	}
	if err != nil {
		return models.RegimeState{}, fmt.Errorf("get regime state: %w", err)
	}
	return st, nil
}

func (s *CacheStateStore) SaveRegimeState(ctx context.Context, symbol string, tf domrepo.Timeframe, st models.RegimeState) error {
	return s.c.Set(ctx, cache.GenerateKeyWithParams("regime", symbol, tf), st, 0)
}

func (s *CacheStateStore) LastExitCloseTime(ctx context.Context, symbol string) (int64, error) {
	var raw string
	err := s.c.Get(ctx, cache.GenerateKey("last_exit", symbol), &raw)
	if errors.Is(err, cache.ErrCacheMiss) {
		return 0, domrepo.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get last exit: %w", err)
	}
	t, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse last exit: %w", err)
	}
	return t, nil
}

func (s *CacheStateStore) SetLastExitCloseTime(ctx context.Context, symbol string, closeTime int64) error {
	return s.c.Set(ctx, cache.GenerateKey("last_exit", symbol), strconv.FormatInt(closeTime, 10), 0)
}

func (s *CacheStateStore) Setting(ctx context.Context, key string) (string, error) {
	var raw string
	err := s.c.Get(ctx, cache.GenerateKey("settings", key), &raw)
	if errors.Is(err, cache.ErrCacheMiss) {
		return "", domrepo.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting: %w", err)
	}
	return raw, nil
}

func (s *CacheStateStore) SetSetting(ctx context.Context, key, value string) error {
	return s.c.Set(ctx, cache.GenerateKey("settings", key), value, 0)
}

func (s *CacheStateStore) ActiveParamOverlay(ctx context.Context) ([]byte, error) {
	var raw string
	err := s.c.Get(ctx, "params:active", &raw)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, domrepo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get param overlay: %w", err)
	}
	return []byte(raw), nil
}

func (s *CacheStateStore) SetActiveParamOverlay(ctx context.Context, name string, overlay []byte) error {
	if err := s.c.Set(ctx, "params:active", string(overlay), 0); err != nil {
		return err
	}
	return s.c.Set(ctx, "params:active:name", name, 0)
}

// ActiveParamSetName returns the label stored with the active overlay.
func (s *CacheStateStore) ActiveParamSetName(ctx context.Context) (string, error) {
	var name string
	err := s.c.Get(ctx, "params:active:name", &name)
	if errors.Is(err, cache.ErrCacheMiss) {
		return "", domrepo.ErrNotFound
	}
	return name, err
}

func (s *CacheStateStore) MarkEventSeen(ctx context.Context, dedupKey string) (bool, error) {
	return s.c.TryLock(ctx, cache.GenerateKey("seen", dedupKey), dedupTTL)
}
