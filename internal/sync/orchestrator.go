package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"example.com/garminsync/internal/domain"
	"example.com/garminsync/internal/events"
	"example.com/garminsync/internal/garmin"
	"example.com/garminsync/internal/observability"
	"example.com/garminsync/internal/persistence/postgres"
)

// WatermarkStateKey is the key-value slot holding the last-sync timestamp.
const WatermarkStateKey = "lastSyncTime"

type sessionEnsurer interface {
	Ensure(ctx context.Context) (garmin.Session, garmin.SessionOutcome, error)
}

type activityFetcher interface {
	Fetch(ctx context.Context, session garmin.Session, watermark *time.Time) []garmin.RawActivity
}

type activityProcessor interface {
	Process(ctx context.Context, raw garmin.RawActivity, fetchSets ExerciseSetFetcher) (domain.Activity, error)
}

type exerciseSetAPI interface {
	ExerciseSets(ctx context.Context, session garmin.Session, activityID int64) ([]garmin.RawSetGroup, error)
}

type activityStore interface {
	ExistsActivity(ctx context.Context, id int64) (bool, error)
	SaveActivity(ctx context.Context, activity domain.Activity) error
}

type eventPublisher interface {
	PublishSynced(ctx context.Context, event events.ActivitySynced) error
}

// OrchestratorConfig tunes run-level throttling and timeouts.
type OrchestratorConfig struct {
	ActivityDelay time.Duration
	RunTimeout    time.Duration
}

// Orchestrator sequences one sync run: session, watermark, fetch, per-activity
// transform and store, watermark advance. Only authentication failures (and a
// broken state store) abort a run; every per-activity failure is logged and
// skipped.
type Orchestrator struct {
	sessions  sessionEnsurer
	fetcher   activityFetcher
	processor activityProcessor
	setsAPI   exerciseSetAPI
	store     activityStore
	state     garmin.StateStore
	publisher eventPublisher
	cfg       OrchestratorConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrchestrator constructs an Orchestrator. publisher may be nil when event
// publishing is not configured.
func NewOrchestrator(
	sessions sessionEnsurer,
	fetcher activityFetcher,
	processor activityProcessor,
	setsAPI exerciseSetAPI,
	store activityStore,
	state garmin.StateStore,
	publisher eventPublisher,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		sessions:  sessions,
		fetcher:   fetcher,
		processor: processor,
		setsAPI:   setsAPI,
		store:     store,
		state:     state,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes one sync run and returns its aggregate result.
func (o *Orchestrator) Run(ctx context.Context) domain.SyncResult {
	runID := uuid.NewString()
	logger := o.logger.With(zap.String("run_id", runID))

	if o.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RunTimeout)
		defer cancel()
	}

	session, outcome, err := o.sessions.Ensure(ctx)
	if err != nil {
		logger.Error("garmin authentication failed", zap.Error(err))
		return o.finish(domain.SyncResult{RunID: runID, Err: err})
	}
	logger.Info("garmin session ready", zap.String("outcome", string(outcome)))

	watermark, err := o.readWatermark(ctx)
	if err != nil {
		logger.Error("could not read sync watermark", zap.Error(err))
		return o.finish(domain.SyncResult{RunID: runID, Err: err})
	}
	initial := watermark == nil
	if initial {
		logger.Info("no watermark found, running initial sync")
	} else {
		logger.Info("running incremental sync", zap.Time("watermark", *watermark))
	}

	raws := o.fetcher.Fetch(ctx, session, watermark)
	logger.Info("fetched activities", zap.Int("count", len(raws)))

	fetchSets := func(ctx context.Context, activityID int64) ([]garmin.RawSetGroup, error) {
		return o.setsAPI.ExerciseSets(ctx, session, activityID)
	}

	result := domain.SyncResult{RunID: runID, Success: true, InitialSync: initial, Fetched: len(raws)}
	for i, raw := range raws {
		if i > 0 && !sleepCtx(ctx, o.cfg.ActivityDelay) {
			logger.Warn("run context ended mid-loop", zap.Error(ctx.Err()))
			break
		}
		switch o.importActivity(ctx, logger, raw, fetchSets) {
		case importStored:
			result.Processed++
		case importSkipped:
			result.Skipped++
		}
	}

	// The watermark advances once per run, after the loop, regardless of
	// per-activity failures.
	stamp := o.now().UTC()
	if err := o.state.PutState(ctx, WatermarkStateKey, stamp.Format(time.RFC3339)); err != nil {
		logger.Error("could not advance sync watermark", zap.Error(err))
		result.Success = false
		result.Err = err
		return o.finish(result)
	}
	observability.SetLastSync(stamp)

	logger.Info("sync run complete",
		zap.Int("fetched", result.Fetched),
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Bool("initial_sync", result.InitialSync))
	return o.finish(result)
}

type importOutcome int

const (
	importFailed importOutcome = iota
	importStored
	importSkipped
)

func (o *Orchestrator) importActivity(ctx context.Context, logger *zap.Logger, raw garmin.RawActivity, fetchSets ExerciseSetFetcher) importOutcome {
	exists, err := o.store.ExistsActivity(ctx, raw.ActivityID)
	if err != nil {
		logger.Error("existence check failed", zap.Int64("activity_id", raw.ActivityID), zap.Error(err))
		return importFailed
	}
	if exists {
		// Remote history is treated as immutable once imported.
		observability.RecordActivitySkipped()
		return importSkipped
	}

	activity, err := o.processor.Process(ctx, raw, fetchSets)
	if err != nil {
		logger.Error("processing failed", zap.Int64("activity_id", raw.ActivityID), zap.Error(err))
		return importFailed
	}

	if err := o.store.SaveActivity(ctx, activity); err != nil {
		if errors.Is(err, postgres.ErrAlreadyExists) {
			observability.RecordActivitySkipped()
			return importSkipped
		}
		logger.Error("store failed", zap.Int64("activity_id", activity.ID), zap.Error(err))
		return importFailed
	}
	observability.RecordActivityImported(activity.StartTime)

	if o.publisher != nil {
		event := events.ActivitySynced{
			ActivityID: activity.ID,
			Name:       activity.Name,
			Type:       activity.Type,
			StartTime:  activity.StartTime,
			SyncedAt:   o.now().UTC(),
		}
		if err := o.publisher.PublishSynced(ctx, event); err != nil {
			logger.Warn("synced-event publish failed", zap.Int64("activity_id", activity.ID), zap.Error(err))
		}
	}
	return importStored
}

func (o *Orchestrator) readWatermark(ctx context.Context) (*time.Time, error) {
	value, found, err := o.state.GetState(ctx, WatermarkStateKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func (o *Orchestrator) finish(result domain.SyncResult) domain.SyncResult {
	result.CompletedAt = o.now().UTC()
	observability.RecordSyncRun(result)
	return result
}
