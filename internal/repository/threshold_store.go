package repository

import (
	"encoding/json"
	"fmt"
	"strings"

	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/engine/arbiter"
	svccache "TradePulse/internal/service/cache"
)

// thresholdKey is the single cache key holding every override, keyed
// inside the JSON document as "SYMBOL_tf".
const thresholdKey = "thresholds:overrides"

// ThresholdStore persists arbiter threshold overrides so they survive
// restarts. Backed by Redis in production, TTLCache in tests.
type ThresholdStore struct {
	cache svccache.BytesCache
}

func NewThresholdStore(cache svccache.BytesCache) *ThresholdStore {
	return &ThresholdStore{cache: cache}
}

// Save writes one override and rewrites the document.
func (s *ThresholdStore) Save(symbol string, tf domrepo.Timeframe, p arbiter.Profile) error {
	doc, err := s.load()
	if err != nil {
		return err
	}
	doc[docKey(symbol, tf)] = p
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal threshold overrides: %w", err)
	}
	// no TTL; overrides live until replaced
	if err := s.cache.SetBytes(thresholdKey, b, 0); err != nil {
		return fmt.Errorf("save threshold overrides: %w", err)
	}
	return nil
}

// Hydrate installs every persisted override into t.
func (s *ThresholdStore) Hydrate(t *arbiter.Thresholds) error {
	doc, err := s.load()
	if err != nil {
		return err
	}
	for key, p := range doc {
		sym, tf, ok := splitDocKey(key)
		if !ok {
			continue
		}
		t.SetOverride(sym, tf, p)
	}
	return nil
}

func (s *ThresholdStore) load() (map[string]arbiter.Profile, error) {
	doc := make(map[string]arbiter.Profile)
	b, ok, err := s.cache.GetBytes(thresholdKey)
	if err != nil {
		return nil, fmt.Errorf("load threshold overrides: %w", err)
	}
	if !ok {
		return doc, nil
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode threshold overrides: %w", err)
	}
	return doc, nil
}

func docKey(symbol string, tf domrepo.Timeframe) string {
	return strings.ToUpper(symbol) + "_" + string(tf)
}

func splitDocKey(key string) (string, domrepo.Timeframe, bool) {
	i := strings.LastIndex(key, "_")
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	tf := domrepo.Timeframe(key[i+1:])
	if !domrepo.IsValidTimeframe(tf) {
		return "", "", false
	}
	return key[:i], tf, true
}
