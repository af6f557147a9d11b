package garmin

import (
	"fmt"
	"time"
)

// RawActivity is the as-fetched summary record returned by the activity
// search endpoint. Optional numeric fields are pointers; Garmin omits them
// depending on activity type.
type RawActivity struct {
	ActivityID   int64        `json:"activityId"`
	ActivityName string       `json:"activityName"`
	ActivityType ActivityType `json:"activityType"`

	StartTimeLocal string `json:"startTimeLocal"`

	Duration       *float64 `json:"duration"`
	MovingDuration *float64 `json:"movingDuration"`
	Calories       *float64 `json:"calories"`
	AverageHR      *float64 `json:"averageHR"`
	MaxHR          *float64 `json:"maxHR"`
	Distance       *float64 `json:"distance"`
	AverageSpeed   *float64 `json:"averageSpeed"`
	MaxSpeed       *float64 `json:"maxSpeed"`
	ElevationGain  *float64 `json:"elevationGain"`
	ElevationLoss  *float64 `json:"elevationLoss"`

	AvgPower            *float64 `json:"avgPower"`
	MaxPower            *float64 `json:"maxPower"`
	NormalizedPower     *float64 `json:"normalizedPower"`
	TrainingStressScore *float64 `json:"trainingStressScore"`
	AvgRunCadence       *float64 `json:"avgRunCadence"`
	AvgBikeCadence      *float64 `json:"avgBikeCadence"`
	MaxRunCadence       *float64 `json:"maxRunCadence"`
	MaxBikeCadence      *float64 `json:"maxBikeCadence"`

	TotalReps *int `json:"totalReps"`
	TotalSets *int `json:"totalSets"`
}

// ActivityType carries the Garmin type key (e.g. "running", "strength_training").
type ActivityType struct {
	TypeKey string `json:"typeKey"`
}

// TypeKey returns the activity's Garmin type key.
func (a RawActivity) TypeKey() string {
	return a.ActivityType.TypeKey
}

// startTimeLayouts covers the formats Garmin uses for startTimeLocal.
var startTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// StartTime parses the activity's local start time.
func (a RawActivity) StartTime() (time.Time, error) {
	for _, layout := range startTimeLayouts {
		if ts, err := time.Parse(layout, a.StartTimeLocal); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable start time %q for activity %d", a.StartTimeLocal, a.ActivityID)
}

// RawSetGroup is one exercise block from the exercise-set detail endpoint.
type RawSetGroup struct {
	ExerciseName string   `json:"exerciseName"`
	Category     string   `json:"category"`
	Sets         []RawSet `json:"sets"`
}

// RawSet is one physical set as reported by Garmin. Weight is in grams.
type RawSet struct {
	RepetitionCount int      `json:"repetitionCount"`
	Weight          *float64 `json:"weight"`
	Duration        *float64 `json:"duration"`
	RestTime        *float64 `json:"restTime"`
}
