// Package history keeps local candle series in sync with a remote candle API
// by walking a millisecond cursor forward in bounded pages.
package history

import (
	"context"
	"log"
	"time"

	"octoadvisor/internal/exchange"
	"octoadvisor/internal/model"
	"octoadvisor/internal/store"
)

// Updater performs incremental fetch-and-merge for one store.
type Updater struct {
	Source     exchange.CandleSource
	Store      *store.Store
	PageLimit  int
	RetryDelay time.Duration // fixed delay between retries, no backoff
	Lookback   time.Duration // initial depth when no local data exists

	// Now is overridable for tests.
	Now func() time.Time
}

// NewUpdater wires an updater with the given paging and retry settings.
func NewUpdater(source exchange.CandleSource, st *store.Store, pageLimit int, retryDelay, lookback time.Duration) *Updater {
	return &Updater{
		Source:     source,
		Store:      st,
		PageLimit:  pageLimit,
		RetryDelay: retryDelay,
		Lookback:   lookback,
		Now:        time.Now,
	}
}

// Result summarizes one sync run.
type Result struct {
	Key         model.SeriesKey
	RowsBefore  int
	RowsFetched int
	RowsAfter   int
	Pages       int
}

// Sync brings one series up to date. startMS overrides the cursor start; when
// zero the cursor resumes one millisecond after the last stored candle, or
// Lookback before now for a fresh series.
//
// Request failures are retried after a fixed delay until the context is
// cancelled: this runs as an offline batch job, so eventual completion wins
// over responsiveness. Fetched pages are concatenated with the stored series,
// de-duplicated newest-wins, sorted ascending and persisted by full rewrite.
func (u *Updater) Sync(ctx context.Context, key model.SeriesKey, startMS int64) (*Result, error) {
	existing, err := u.Store.Load(key)
	if err != nil {
		return nil, err
	}

	nowMS := u.Now().UnixMilli()
	cursor := startMS
	if cursor == 0 {
		if len(existing) > 0 {
			cursor = existing[len(existing)-1].Timestamp + 1
		} else {
			cursor = nowMS - u.Lookback.Milliseconds()
		}
	}

	res := &Result{Key: key, RowsBefore: len(existing)}
	var fetched []model.Candle
	for cursor < nowMS {
		page, err := u.Source.Candles(ctx, key.Pair, key.Timeframe, cursor, u.PageLimit)
		if err != nil {
			log.Printf("[WARN] fetch %s since %d failed: %v, retrying in %v", key, cursor, err, u.RetryDelay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(u.RetryDelay):
			}
			continue
		}
		if len(page) == 0 {
			break
		}
		fetched = append(fetched, page...)
		res.Pages++

		next := page[len(page)-1].Timestamp + 1
		if next <= cursor {
			// remote returned no bar newer than the cursor, caught up
			break
		}
		cursor = next
	}
	res.RowsFetched = len(fetched)

	merged := Merge(existing, fetched)
	if err := u.Store.Save(key, merged); err != nil {
		return nil, err
	}
	res.RowsAfter = len(merged)
	return res, nil
}
