// Package store persists workouts and their samples in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nadahalli/thumper/internal/workout"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("workout not found")

type SQLiteStore struct {
	db *sql.DB
}

func Open(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer keeps sqlite from reporting SQLITE_BUSY between our own connections
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS workouts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  start_time_millis INTEGER NOT NULL,
  duration_seconds INTEGER NOT NULL,
  avg_heart_rate INTEGER,
  jump_count INTEGER,
  jump_time_seconds INTEGER
);
CREATE TABLE IF NOT EXISTS workout_samples (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  workout_id INTEGER NOT NULL,
  timestamp_millis INTEGER NOT NULL,
  heart_rate INTEGER,
  jump_count INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workout_samples_workout_id ON workout_samples (workout_id);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AddWorkout inserts w and returns its generated id. w.ID is ignored.
func (s *SQLiteStore) AddWorkout(ctx context.Context, w workout.Workout) (int64, error) {
	const stmt = `
INSERT INTO workouts (start_time_millis, duration_seconds, avg_heart_rate, jump_count, jump_time_seconds)
VALUES (?, ?, ?, ?, ?);
`
	res, err := s.db.ExecContext(ctx, stmt,
		w.StartTime.UnixMilli(),
		w.DurationSeconds,
		nullInt(w.AvgHeartRate),
		nullInt(w.JumpCount),
		nullInt(w.JumpTimeSeconds),
	)
	if err != nil {
		return 0, fmt.Errorf("insert workout: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("workout id: %w", err)
	}
	return id, nil
}

// AddSamples inserts all samples or none of them.
func (s *SQLiteStore) AddSamples(ctx context.Context, samples []workout.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin samples tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO workout_samples (workout_id, timestamp_millis, heart_rate, jump_count)
VALUES (?, ?, ?, ?);
`)
	if err != nil {
		return fmt.Errorf("prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for _, sample := range samples {
		if _, err := stmt.ExecContext(ctx,
			sample.WorkoutID,
			sample.Timestamp.UnixMilli(),
			nullInt(sample.HeartRate),
			sample.JumpCount,
		); err != nil {
			return fmt.Errorf("insert sample: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit samples: %w", err)
	}
	return nil
}

const workoutColumns = `id, start_time_millis, duration_seconds, avg_heart_rate, jump_count, jump_time_seconds`

// ListWorkouts returns every workout, most recent first.
func (s *SQLiteStore) ListWorkouts(ctx context.Context) ([]workout.Workout, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+workoutColumns+` FROM workouts ORDER BY start_time_millis DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}
	defer rows.Close()

	var out []workout.Workout
	for rows.Next() {
		w, err := scanWorkout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) GetWorkout(ctx context.Context, id int64) (workout.Workout, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+workoutColumns+` FROM workouts WHERE id = ?`, id)
	w, err := scanWorkout(row)
	if errors.Is(err, sql.ErrNoRows) {
		return workout.Workout{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return w, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkout(row scanner) (workout.Workout, error) {
	var (
		w                 workout.Workout
		startMillis       int64
		avgHR, jumps, jts sql.NullInt64
	)
	if err := row.Scan(&w.ID, &startMillis, &w.DurationSeconds, &avgHR, &jumps, &jts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return w, err
		}
		return w, fmt.Errorf("scan workout: %w", err)
	}
	w.StartTime = time.UnixMilli(startMillis)
	w.AvgHeartRate = intPtr(avgHR)
	w.JumpCount = intPtr(jumps)
	w.JumpTimeSeconds = intPtr(jts)
	return w, nil
}

// SamplesForWorkout returns the workout's samples in time order.
func (s *SQLiteStore) SamplesForWorkout(ctx context.Context, workoutID int64) ([]workout.Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, workout_id, timestamp_millis, heart_rate, jump_count
FROM workout_samples
WHERE workout_id = ?
ORDER BY timestamp_millis, id`, workoutID)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var out []workout.Sample
	for rows.Next() {
		var (
			sample workout.Sample
			millis int64
			hr     sql.NullInt64
		)
		if err := rows.Scan(&sample.ID, &sample.WorkoutID, &millis, &hr, &sample.JumpCount); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		sample.Timestamp = time.UnixMilli(millis)
		sample.HeartRate = intPtr(hr)
		out = append(out, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	return out, nil
}

// WorkoutWithSamples loads one workout for export.
func (s *SQLiteStore) WorkoutWithSamples(ctx context.Context, id int64) (workout.WithSamples, error) {
	w, err := s.GetWorkout(ctx, id)
	if err != nil {
		return workout.WithSamples{}, err
	}
	samples, err := s.SamplesForWorkout(ctx, id)
	if err != nil {
		return workout.WithSamples{}, err
	}
	return workout.WithSamples{Workout: w, Samples: samples}, nil
}

// AllWithSamples loads every workout, most recent first, for export.
func (s *SQLiteStore) AllWithSamples(ctx context.Context) ([]workout.WithSamples, error) {
	workouts, err := s.ListWorkouts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]workout.WithSamples, 0, len(workouts))
	for _, w := range workouts {
		samples, err := s.SamplesForWorkout(ctx, w.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, workout.WithSamples{Workout: w, Samples: samples})
	}
	return out, nil
}

// DeleteWorkout removes the workout and its samples together.
func (s *SQLiteStore) DeleteWorkout(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM workout_samples WHERE workout_id = ?`, id); err != nil {
		return fmt.Errorf("delete samples: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM workouts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete workout: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
