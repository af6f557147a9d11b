// Package domain defines the canonical activity model persisted by the sync service.
package domain

import (
	"math"
	"time"
)

// Kind partitions activity types into the shapes the processor produces.
type Kind string

const (
	// KindStrength marks strength-training activities carrying exercise-set detail.
	KindStrength Kind = "strength"
	// KindEndurance marks cycling/running/walking activities carrying power and cadence detail.
	KindEndurance Kind = "endurance"
	// KindOther marks every remaining activity type; only base fields apply.
	KindOther Kind = "other"
)

// TypeKeyStrength is the Garmin type key that selects exercise-set enrichment.
const TypeKeyStrength = "strength_training"

var enduranceTypeKeys = map[string]struct{}{
	"cycling": {},
	"running": {},
	"walking": {},
}

// KindForTypeKey maps a Garmin activity type key onto its canonical kind.
func KindForTypeKey(typeKey string) Kind {
	if typeKey == TypeKeyStrength {
		return KindStrength
	}
	if _, ok := enduranceTypeKeys[typeKey]; ok {
		return KindEndurance
	}
	return KindOther
}

// Activity is the normalized workout record stored in Postgres. ID is the
// Garmin activity id and is immutable once stored. Exactly one of Endurance
// and Strength is set for the corresponding kinds; both are nil for KindOther.
type Activity struct {
	ID            int64
	Name          string
	Type          string
	StartTime     time.Time
	Duration      *float64
	MovingTime    *float64
	Calories      *float64
	AverageHR     *float64
	MaxHR         *float64
	Distance      *float64
	AverageSpeed  *float64
	MaxSpeed      *float64
	ElevationGain *float64
	ElevationLoss *float64

	Endurance *EnduranceDetail
	Strength  *StrengthDetail

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Kind reports which variant detail the activity carries.
func (a Activity) Kind() Kind {
	switch {
	case a.Strength != nil:
		return KindStrength
	case a.Endurance != nil:
		return KindEndurance
	default:
		return KindOther
	}
}

// EnduranceDetail holds the power, cadence and training-stress fields
// populated for cycling, running and walking activities.
type EnduranceDetail struct {
	AveragePower        *float64
	MaxPower            *float64
	NormalizedPower     *float64
	TrainingStressScore *float64
	AverageCadence      *float64
	MaxCadence          *float64
}

// StrengthDetail holds per-exercise set groups plus the aggregate totals the
// Garmin summary record reports for the whole session.
type StrengthDetail struct {
	SetGroups []ExerciseSetGroup
	TotalReps *int
	TotalSets *int
}

// ExerciseSetGroup is one named exercise within a strength activity, with its
// ordered sets and derived aggregates.
type ExerciseSetGroup struct {
	ExerciseName string
	Category     string
	Sets         []ExerciseSet
	TotalReps    int
	TotalVolume  float64
}

// NewExerciseSetGroup builds a group and computes its aggregates:
// TotalReps is the sum of reps and TotalVolume the sum of reps*weight in kilograms.
func NewExerciseSetGroup(name, category string, sets []ExerciseSet) ExerciseSetGroup {
	group := ExerciseSetGroup{
		ExerciseName: name,
		Category:     category,
		Sets:         sets,
	}
	for _, set := range sets {
		group.TotalReps += set.Reps
		group.TotalVolume += set.Volume()
	}
	return group
}

// ExerciseSet is one physical set. WeightKg is nil when Garmin reports no
// weight for the set.
type ExerciseSet struct {
	Reps            int
	WeightKg        *float64
	DurationSeconds *float64
	RestSeconds     *float64
}

// Volume is reps*weight for the set, zero when no weight was recorded.
func (s ExerciseSet) Volume() float64 {
	if s.WeightKg == nil {
		return 0
	}
	return float64(s.Reps) * *s.WeightKg
}

// WeightFromGrams converts Garmin's gram representation to kilograms rounded
// to two decimal places. Zero or absent weights map to nil.
func WeightFromGrams(grams *float64) *float64 {
	if grams == nil || *grams == 0 {
		return nil
	}
	kg := math.Round(*grams/1000*100) / 100
	return &kg
}

// SyncResult summarizes one sync run.
type SyncResult struct {
	RunID       string
	Success     bool
	InitialSync bool
	Fetched     int
	Processed   int
	Skipped     int
	CompletedAt time.Time
	Err         error
}
