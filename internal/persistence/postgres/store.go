// Package postgres provides pgx-backed persistence for activities, exercise
// sets and the sync key-value state.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/garminsync/internal/domain"
)

// ErrAlreadyExists indicates an activity row with the same id is already stored.
var ErrAlreadyExists = errors.New("postgres: activity already exists")

const uniqueViolationCode = "23505"

// Store persists canonical activities and the sync state.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS activities (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		duration DOUBLE PRECISION,
		moving_time DOUBLE PRECISION,
		calories DOUBLE PRECISION,
		average_hr DOUBLE PRECISION,
		max_hr DOUBLE PRECISION,
		distance DOUBLE PRECISION,
		average_speed DOUBLE PRECISION,
		max_speed DOUBLE PRECISION,
		elevation_gain DOUBLE PRECISION,
		elevation_loss DOUBLE PRECISION,
		average_power DOUBLE PRECISION,
		max_power DOUBLE PRECISION,
		normalized_power DOUBLE PRECISION,
		training_stress_score DOUBLE PRECISION,
		average_cadence DOUBLE PRECISION,
		max_cadence DOUBLE PRECISION,
		total_reps INTEGER,
		total_sets INTEGER,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS exercise_sets (
		id BIGSERIAL PRIMARY KEY,
		activity_id BIGINT NOT NULL REFERENCES activities(id) ON DELETE CASCADE,
		exercise_name TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		set_number INTEGER NOT NULL,
		reps INTEGER NOT NULL,
		weight DOUBLE PRECISION,
		duration DOUBLE PRECISION,
		rest_time DOUBLE PRECISION,
		total_volume DOUBLE PRECISION NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS exercise_sets_activity_id_idx ON exercise_sets (activity_id)`,
	`CREATE TABLE IF NOT EXISTS sync_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the three tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// ExistsActivity reports whether an activity row with the id is stored.
func (s *Store) ExistsActivity(ctx context.Context, id int64) (bool, error) {
	var found int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM activities WHERE id=$1`, id).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SaveActivity writes the activity row and its exercise-set rows in one
// transaction. Prior exercise-set rows for the id are deleted and replaced
// as a unit, never merged. A racing insert of the same id surfaces as
// ErrAlreadyExists.
func (s *Store) SaveActivity(ctx context.Context, activity domain.Activity) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	endurance := activity.Endurance
	if endurance == nil {
		endurance = &domain.EnduranceDetail{}
	}
	var totalReps, totalSets *int
	if activity.Strength != nil {
		totalReps = activity.Strength.TotalReps
		totalSets = activity.Strength.TotalSets
	}

	const insertActivity = `INSERT INTO activities
		(id, name, type, start_time, duration, moving_time, calories,
		 average_hr, max_hr, distance, average_speed, max_speed,
		 elevation_gain, elevation_loss, average_power, max_power,
		 normalized_power, training_stress_score, average_cadence, max_cadence,
		 total_reps, total_sets, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`

	_, err = tx.Exec(ctx, insertActivity,
		activity.ID,
		activity.Name,
		activity.Type,
		activity.StartTime,
		activity.Duration,
		activity.MovingTime,
		activity.Calories,
		activity.AverageHR,
		activity.MaxHR,
		activity.Distance,
		activity.AverageSpeed,
		activity.MaxSpeed,
		activity.ElevationGain,
		activity.ElevationLoss,
		endurance.AveragePower,
		endurance.MaxPower,
		endurance.NormalizedPower,
		endurance.TrainingStressScore,
		endurance.AverageCadence,
		endurance.MaxCadence,
		totalReps,
		totalSets,
		activity.CreatedAt,
		activity.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrAlreadyExists
		}
		return err
	}

	if activity.Strength != nil && len(activity.Strength.SetGroups) > 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM exercise_sets WHERE activity_id=$1`, activity.ID); err != nil {
			return err
		}

		const insertSet = `INSERT INTO exercise_sets
			(activity_id, exercise_name, category, set_number, reps, weight, duration, rest_time, total_volume)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

		for _, group := range activity.Strength.SetGroups {
			for i, set := range group.Sets {
				if _, err := tx.Exec(ctx, insertSet,
					activity.ID,
					group.ExerciseName,
					group.Category,
					i+1,
					set.Reps,
					set.WeightKg,
					set.DurationSeconds,
					set.RestSeconds,
					set.Volume(),
				); err != nil {
					return err
				}
			}
		}
	}

	return tx.Commit(ctx)
}

// GetState reads one sync-state value; found is false when the key is absent.
func (s *Store) GetState(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM sync_state WHERE key=$1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// PutState writes one sync-state value, replacing any prior value.
func (s *Store) PutState(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_state (key, value, updated_at) VALUES ($1,$2,$3)
		 ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at`,
		key, value, time.Now().UTC())
	return err
}
