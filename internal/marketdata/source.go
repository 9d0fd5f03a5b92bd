// Package marketdata assembles the candle source chain: exchange REST
// behind a Redis series cache, with SQLite backfill as the fallback
// when the exchange is unreachable.
package marketdata

import (
	"context"
	"fmt"
	"log"

	"stratlab/internal/model"
)

// SeriesCache is the caching layer in front of the exchange client.
type SeriesCache interface {
	GetSeries(ctx context.Context, symbol string, tf, limit int) (model.Series, bool, error)
	SetSeries(ctx context.Context, symbol string, tf, limit int, series model.Series) error
}

// CachedSource serves candle series cache-first, falling back to the
// upstream exchange and finally to stored history.
type CachedSource struct {
	upstream model.CandleSource
	cache    SeriesCache       // optional
	store    model.CandleStore // optional fallback

	// Metrics hooks
	OnCacheHit  func()
	OnCacheMiss func()
	OnFetch     func(source string)
}

// NewCachedSource builds the source chain. cache and store may be nil;
// the chain degrades to a plain upstream fetch.
func NewCachedSource(upstream model.CandleSource, cache SeriesCache, store model.CandleStore) *CachedSource {
	return &CachedSource{upstream: upstream, cache: cache, store: store}
}

// Candles returns up to limit candles for a symbol and timeframe,
// oldest first. Cache errors are logged and treated as misses; a dead
// exchange falls through to stored history.
func (s *CachedSource) Candles(ctx context.Context, symbol string, tf int, limit int) (model.Series, error) {
	if s.cache != nil {
		series, hit, err := s.cache.GetSeries(ctx, symbol, tf, limit)
		if err != nil {
			log.Printf("[marketdata] cache read error for %s: %v", symbol, err)
		} else if hit {
			if s.OnCacheHit != nil {
				s.OnCacheHit()
			}
			return series, nil
		}
		if s.OnCacheMiss != nil {
			s.OnCacheMiss()
		}
	}

	series, err := s.upstream.Candles(ctx, symbol, tf, limit)
	if err == nil && len(series) > 0 {
		if s.OnFetch != nil {
			s.OnFetch("exchange")
		}
		if s.cache != nil {
			if cacheErr := s.cache.SetSeries(ctx, symbol, tf, limit, series); cacheErr != nil {
				log.Printf("[marketdata] cache write error for %s: %v", symbol, cacheErr)
			}
		}
		if s.store != nil {
			if storeErr := s.store.WriteCandles(ctx, series); storeErr != nil {
				log.Printf("[marketdata] history write error for %s: %v", symbol, storeErr)
			}
		}
		return series, nil
	}

	if s.store != nil {
		stored, storeErr := s.store.ReadCandles(symbol, tf, 0)
		if storeErr == nil && len(stored) > 0 {
			if s.OnFetch != nil {
				s.OnFetch("sqlite")
			}
			log.Printf("[marketdata] serving %d stored candles for %s (exchange unavailable)", len(stored), symbol)
			if len(stored) > limit {
				stored = stored[len(stored)-limit:]
			}
			return stored, nil
		}
	}

	if err != nil {
		return nil, fmt.Errorf("fetch candles %s/%ds: %w", symbol, tf, err)
	}
	return series, nil
}

var _ model.CandleSource = (*CachedSource)(nil)
