package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"example.com/garminsync/internal/garmin"
)

type pagedSearcher struct {
	pages [][]garmin.RawActivity
	errAt int // 1-based call index that errors, 0 disables
	calls int
}

func (p *pagedSearcher) SearchActivities(ctx context.Context, session garmin.Session, limit, start int) ([]garmin.RawActivity, error) {
	p.calls++
	if p.errAt > 0 && p.calls == p.errAt {
		return nil, errors.New("page fetch failed")
	}
	index := start / limit
	if index >= len(p.pages) {
		return nil, nil
	}
	return p.pages[index], nil
}

func fullPage(size int, firstID int64, start time.Time) []garmin.RawActivity {
	page := make([]garmin.RawActivity, size)
	for i := range page {
		page[i] = garmin.RawActivity{
			ActivityID:     firstID + int64(i),
			StartTimeLocal: start.Add(-time.Duration(i) * time.Hour).Format(time.RFC3339),
		}
	}
	return page
}

func testFetcherConfig() FetcherConfig {
	return FetcherConfig{
		PageSize:             20,
		InitialSyncLimit:     1500,
		IncrementalSyncLimit: 100,
	}
}

func TestFetchStopsAtIncrementalCeiling(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	searcher := &pagedSearcher{}
	for i := 0; i < 10; i++ {
		searcher.pages = append(searcher.pages, fullPage(20, int64(i*100), base))
	}

	fetcher := NewFetcher(searcher, testFetcherConfig(), zap.NewNop())
	watermark := base.Add(-100 * time.Hour)
	got := fetcher.Fetch(context.Background(), garmin.Session{}, &watermark)

	require.Len(t, got, 100)
	require.Equal(t, 5, searcher.calls, "ceiling of 100 with pages of 20 stops after exactly 5 pages")
}

func TestFetchIncrementalCutoffOnMixedPage(t *testing.T) {
	watermark := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	page := []garmin.RawActivity{
		{ActivityID: 1, StartTimeLocal: watermark.Add(2 * time.Hour).Format(time.RFC3339)},
		{ActivityID: 2, StartTimeLocal: watermark.Add(time.Hour).Format(time.RFC3339)},
		{ActivityID: 3, StartTimeLocal: watermark.Format(time.RFC3339)}, // exactly at watermark: stale
		{ActivityID: 4, StartTimeLocal: watermark.Add(-time.Hour).Format(time.RFC3339)},
	}
	// Pad to a full page so only the filter can stop pagination.
	for len(page) < 20 {
		page = append(page, garmin.RawActivity{
			ActivityID:     int64(100 + len(page)),
			StartTimeLocal: watermark.Add(-24 * time.Hour).Format(time.RFC3339),
		})
	}
	searcher := &pagedSearcher{pages: [][]garmin.RawActivity{page, fullPage(20, 200, watermark.Add(-48 * time.Hour))}}

	fetcher := NewFetcher(searcher, testFetcherConfig(), zap.NewNop())
	got := fetcher.Fetch(context.Background(), garmin.Session{}, &watermark)

	require.Len(t, got, 2)
	require.Equal(t, int64(1), got[0].ActivityID)
	require.Equal(t, int64(2), got[1].ActivityID)
	require.Equal(t, 1, searcher.calls, "a filtered page means every later page is stale")
}

func TestFetchInitialSyncUsesLargerCeiling(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	searcher := &pagedSearcher{}
	for i := 0; i < 80; i++ {
		searcher.pages = append(searcher.pages, fullPage(20, int64(i*100), base))
	}

	fetcher := NewFetcher(searcher, testFetcherConfig(), zap.NewNop())
	got := fetcher.Fetch(context.Background(), garmin.Session{}, nil)

	require.Len(t, got, 1500)
	require.Equal(t, 75, searcher.calls)
}

func TestFetchStopsOnShortPage(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	searcher := &pagedSearcher{pages: [][]garmin.RawActivity{
		fullPage(20, 0, base),
		fullPage(7, 100, base.Add(-30*time.Hour)),
	}}

	fetcher := NewFetcher(searcher, testFetcherConfig(), zap.NewNop())
	got := fetcher.Fetch(context.Background(), garmin.Session{}, nil)

	require.Len(t, got, 27)
	require.Equal(t, 2, searcher.calls)
}

func TestFetchEmptyFirstPage(t *testing.T) {
	fetcher := NewFetcher(&pagedSearcher{}, testFetcherConfig(), zap.NewNop())
	got := fetcher.Fetch(context.Background(), garmin.Session{}, nil)
	require.Empty(t, got)
}

func TestFetchPageErrorKeepsPartialResults(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	searcher := &pagedSearcher{
		pages: [][]garmin.RawActivity{fullPage(20, 0, base), fullPage(20, 100, base.Add(-30 * time.Hour))},
		errAt: 2,
	}

	fetcher := NewFetcher(searcher, testFetcherConfig(), zap.NewNop())
	got := fetcher.Fetch(context.Background(), garmin.Session{}, nil)

	require.Len(t, got, 20)
}

func TestFetchPreservesReceivedOrder(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	searcher := &pagedSearcher{pages: [][]garmin.RawActivity{fullPage(5, 10, base)}}

	fetcher := NewFetcher(searcher, testFetcherConfig(), zap.NewNop())
	got := fetcher.Fetch(context.Background(), garmin.Session{}, nil)

	require.Len(t, got, 5)
	for i, raw := range got {
		require.Equal(t, int64(10+i), raw.ActivityID, fmt.Sprintf("position %d", i))
	}
}
