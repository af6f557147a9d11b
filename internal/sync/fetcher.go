// Package sync implements the incremental Garmin-to-Postgres sync pipeline.
package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"example.com/garminsync/internal/garmin"
	"example.com/garminsync/internal/observability"
)

// FetcherConfig tunes pagination and throttling.
type FetcherConfig struct {
	PageSize             int
	InitialSyncLimit     int
	IncrementalSyncLimit int
	PageDelay            time.Duration
}

type activitySearcher interface {
	SearchActivities(ctx context.Context, session garmin.Session, limit, start int) ([]garmin.RawActivity, error)
}

// Fetcher retrieves activity summaries page by page, newest first, stopping
// at the watermark cutoff or the mode's activity ceiling.
type Fetcher struct {
	api    activitySearcher
	cfg    FetcherConfig
	logger *zap.Logger
}

// NewFetcher constructs a Fetcher.
func NewFetcher(api activitySearcher, cfg FetcherConfig, logger *zap.Logger) *Fetcher {
	return &Fetcher{api: api, cfg: cfg, logger: logger}
}

// Fetch returns activities newer than the watermark, in the reverse-
// chronological order the API serves them. A nil watermark selects initial
// sync with its larger ceiling. Page errors truncate pagination and keep what
// was accumulated; they never fail the run.
func (f *Fetcher) Fetch(ctx context.Context, session garmin.Session, watermark *time.Time) []garmin.RawActivity {
	ceiling := f.cfg.InitialSyncLimit
	if watermark != nil {
		ceiling = f.cfg.IncrementalSyncLimit
	}

	var all []garmin.RawActivity
	start := 0

	for len(all) < ceiling {
		page, err := f.api.SearchActivities(ctx, session, f.cfg.PageSize, start)
		if err != nil {
			f.logger.Warn("activity page fetch failed, keeping partial results",
				zap.Int("start", start), zap.Error(err))
			break
		}
		if len(page) == 0 {
			break
		}
		observability.RecordFetchPage(len(page))

		kept := page
		if watermark != nil {
			kept = f.filterAfter(page, *watermark)
		}
		all = append(all, kept...)

		// The API serves newest first, so the first page containing stale
		// entries means every later page is stale too.
		if len(kept) < len(page) {
			break
		}
		if len(page) < f.cfg.PageSize {
			break
		}

		start += f.cfg.PageSize
		if !sleepCtx(ctx, f.cfg.PageDelay) {
			break
		}
	}

	return all
}

// filterAfter keeps activities that started strictly after the watermark.
// Records with unparsable start times are dropped as stale.
func (f *Fetcher) filterAfter(page []garmin.RawActivity, watermark time.Time) []garmin.RawActivity {
	kept := page[:0:0]
	for _, raw := range page {
		started, err := raw.StartTime()
		if err != nil {
			f.logger.Warn("dropping activity with unparsable start time",
				zap.Int64("activity_id", raw.ActivityID), zap.Error(err))
			continue
		}
		if started.After(watermark) {
			kept = append(kept, raw)
		}
	}
	return kept
}

// sleepCtx waits for the delay unless the context ends first.
func sleepCtx(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
