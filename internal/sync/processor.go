package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"example.com/garminsync/internal/domain"
	"example.com/garminsync/internal/garmin"
)

// ExerciseSetFetcher retrieves detailed set data for one strength activity.
type ExerciseSetFetcher func(ctx context.Context, activityID int64) ([]garmin.RawSetGroup, error)

// Processor normalizes raw activity records into the canonical schema,
// branching on activity type for endurance and strength enrichment.
type Processor struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewProcessor constructs a Processor.
func NewProcessor(logger *zap.Logger) *Processor {
	return &Processor{logger: logger, now: time.Now}
}

// Process transforms one raw activity. For strength training it invokes
// fetchSets; a failure there degrades to the summary aggregates instead of
// failing the activity. Malformed records (unparsable start time) error out
// and are skipped by the caller.
func (p *Processor) Process(ctx context.Context, raw garmin.RawActivity, fetchSets ExerciseSetFetcher) (domain.Activity, error) {
	started, err := raw.StartTime()
	if err != nil {
		return domain.Activity{}, fmt.Errorf("process activity %d: %w", raw.ActivityID, err)
	}

	now := p.now().UTC()
	activity := domain.Activity{
		ID:            raw.ActivityID,
		Name:          raw.ActivityName,
		Type:          raw.TypeKey(),
		StartTime:     started,
		Duration:      raw.Duration,
		MovingTime:    raw.MovingDuration,
		Calories:      raw.Calories,
		AverageHR:     raw.AverageHR,
		MaxHR:         raw.MaxHR,
		Distance:      raw.Distance,
		AverageSpeed:  raw.AverageSpeed,
		MaxSpeed:      raw.MaxSpeed,
		ElevationGain: raw.ElevationGain,
		ElevationLoss: raw.ElevationLoss,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	switch domain.KindForTypeKey(raw.TypeKey()) {
	case domain.KindStrength:
		activity.Strength = p.strengthDetail(ctx, raw, fetchSets)
	case domain.KindEndurance:
		activity.Endurance = enduranceDetail(raw)
	}

	return activity, nil
}

func (p *Processor) strengthDetail(ctx context.Context, raw garmin.RawActivity, fetchSets ExerciseSetFetcher) *domain.StrengthDetail {
	detail := &domain.StrengthDetail{
		TotalReps: raw.TotalReps,
		TotalSets: raw.TotalSets,
	}
	if fetchSets == nil {
		return detail
	}

	groups, err := fetchSets(ctx, raw.ActivityID)
	if err != nil {
		p.logger.Warn("exercise set lookup failed, storing summary only",
			zap.Int64("activity_id", raw.ActivityID), zap.Error(err))
		return detail
	}

	detail.SetGroups = make([]domain.ExerciseSetGroup, 0, len(groups))
	for _, group := range groups {
		sets := make([]domain.ExerciseSet, 0, len(group.Sets))
		for _, set := range group.Sets {
			sets = append(sets, domain.ExerciseSet{
				Reps:            set.RepetitionCount,
				WeightKg:        domain.WeightFromGrams(set.Weight),
				DurationSeconds: set.Duration,
				RestSeconds:     set.RestTime,
			})
		}
		detail.SetGroups = append(detail.SetGroups, domain.NewExerciseSetGroup(group.ExerciseName, group.Category, sets))
	}
	return detail
}

func enduranceDetail(raw garmin.RawActivity) *domain.EnduranceDetail {
	return &domain.EnduranceDetail{
		AveragePower:        raw.AvgPower,
		MaxPower:            raw.MaxPower,
		NormalizedPower:     raw.NormalizedPower,
		TrainingStressScore: raw.TrainingStressScore,
		AverageCadence:      coalesce(raw.AvgRunCadence, raw.AvgBikeCadence),
		MaxCadence:          coalesce(raw.MaxRunCadence, raw.MaxBikeCadence),
	}
}

// coalesce prefers the running-specific cadence field over the cycling one.
func coalesce(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
