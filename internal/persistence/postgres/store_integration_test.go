//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/garminsync/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func newTestStore(t *testing.T, ctx context.Context) *Store {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("garminsync"),
		postgrescontainer.WithUsername("garminsync"),
		postgrescontainer.WithPassword("garminsync"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	store := NewStore(pool)
	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		lastErr = err
		time.Sleep(500 * time.Millisecond)
	}
	return lastErr
}

func strengthActivity(id int64) domain.Activity {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return domain.Activity{
		ID:        id,
		Name:      "Evening Lifting",
		Type:      "strength_training",
		StartTime: now.Add(-2 * time.Hour),
		Duration:  floatPtr(1800),
		Calories:  floatPtr(250),
		Strength: &domain.StrengthDetail{
			TotalReps: intPtr(8),
			TotalSets: intPtr(2),
			SetGroups: []domain.ExerciseSetGroup{
				domain.NewExerciseSetGroup("BENCH_PRESS", "CHEST", []domain.ExerciseSet{
					{Reps: 5, WeightKg: floatPtr(10), DurationSeconds: floatPtr(45), RestSeconds: floatPtr(90)},
					{Reps: 3},
				}),
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSaveActivityWithExerciseSets(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, ctx)

	activity := strengthActivity(1001)
	require.NoError(t, store.SaveActivity(ctx, activity))

	exists, err := store.ExistsActivity(ctx, 1001)
	require.NoError(t, err)
	require.True(t, exists)

	rows, err := store.pool.Query(ctx,
		`SELECT set_number, reps, weight, total_volume FROM exercise_sets WHERE activity_id=$1 ORDER BY set_number`, int64(1001))
	require.NoError(t, err)
	defer rows.Close()

	type setRow struct {
		SetNumber int
		Reps      int
		Weight    *float64
		Volume    float64
	}
	var sets []setRow
	for rows.Next() {
		var row setRow
		require.NoError(t, rows.Scan(&row.SetNumber, &row.Reps, &row.Weight, &row.Volume))
		sets = append(sets, row)
	}
	require.NoError(t, rows.Err())

	require.Len(t, sets, 2)
	require.Equal(t, 1, sets[0].SetNumber)
	require.Equal(t, 5, sets[0].Reps)
	require.NotNil(t, sets[0].Weight)
	require.Equal(t, 10.0, *sets[0].Weight)
	require.Equal(t, 50.0, sets[0].Volume)
	require.Equal(t, 2, sets[1].SetNumber)
	require.Nil(t, sets[1].Weight)
	require.Equal(t, 0.0, sets[1].Volume)
}

func TestSaveActivityTwiceReturnsAlreadyExists(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, ctx)

	activity := strengthActivity(1002)
	require.NoError(t, store.SaveActivity(ctx, activity))

	err := store.SaveActivity(ctx, activity)
	require.ErrorIs(t, err, ErrAlreadyExists)

	// The second call must leave the stored rows untouched.
	var count int
	require.NoError(t, store.pool.QueryRow(ctx,
		`SELECT count(*) FROM exercise_sets WHERE activity_id=$1`, int64(1002)).Scan(&count))
	require.Equal(t, 2, count)
}

func TestExistsActivityAbsent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, ctx)

	exists, err := store.ExistsActivity(ctx, 9999)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, ctx)

	_, found, err := store.GetState(ctx, "lastSyncTime")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.PutState(ctx, "lastSyncTime", "2025-06-02T12:00:00Z"))
	value, found, err := store.GetState(ctx, "lastSyncTime")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "2025-06-02T12:00:00Z", value)

	require.NoError(t, store.PutState(ctx, "lastSyncTime", "2025-06-03T12:00:00Z"))
	value, _, err = store.GetState(ctx, "lastSyncTime")
	require.NoError(t, err)
	require.Equal(t, "2025-06-03T12:00:00Z", value)
}

func TestSaveEnduranceActivityColumns(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, ctx)

	now := time.Now().UTC().Truncate(time.Microsecond)
	activity := domain.Activity{
		ID:        2001,
		Name:      "Tempo Run",
		Type:      "running",
		StartTime: now.Add(-time.Hour),
		Endurance: &domain.EnduranceDetail{
			AveragePower:   floatPtr(240),
			AverageCadence: floatPtr(178),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.SaveActivity(ctx, activity))

	var avgPower, avgCadence *float64
	var totalReps *int
	require.NoError(t, store.pool.QueryRow(ctx,
		`SELECT average_power, average_cadence, total_reps FROM activities WHERE id=$1`, int64(2001)).
		Scan(&avgPower, &avgCadence, &totalReps))
	require.NotNil(t, avgPower)
	require.Equal(t, 240.0, *avgPower)
	require.NotNil(t, avgCadence)
	require.Equal(t, 178.0, *avgCadence)
	require.Nil(t, totalReps)
}
