package binance

import (
	"context"
	"encoding/json"
	"time"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	svccache "TradePulse/internal/service/cache"
)

// filtersTTL bounds how stale a cached exchangeInfo answer may get.
// Precision rules change rarely; an hour keeps entry sizing off the
// heavyweight exchangeInfo endpoint.
const filtersTTL = time.Hour

// CachedExchange decorates an Exchange with a local cache for symbol
// filters. Everything else passes through.
type CachedExchange struct {
	domrepo.Exchange
	cache svccache.BytesCache
}

func NewCachedExchange(ex domrepo.Exchange, cache svccache.BytesCache) *CachedExchange {
	return &CachedExchange{Exchange: ex, cache: cache}
}

func (c *CachedExchange) SymbolFilters(ctx context.Context, symbol string) (models.SymbolFilters, error) {
	key := "symbol_filters:" + symbol
	if b, ok, err := c.cache.GetBytes(key); err == nil && ok {
		var f models.SymbolFilters
		if json.Unmarshal(b, &f) == nil {
			return f, nil
		}
	}
	f, err := c.Exchange.SymbolFilters(ctx, symbol)
	if err != nil {
		return models.SymbolFilters{}, err
	}
	if b, err := json.Marshal(f); err == nil {
		_ = c.cache.SetBytes(key, b, filtersTTL)
	}
	return f, nil
}
