package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"fitsync/internal/domain"
)

// sampleBatchSize keeps multi-row inserts below SQLite's bound parameter cap.
const sampleBatchSize = 500

type ActivityStore struct {
	db *sqlx.DB
}

func NewActivityStore(db *sqlx.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

func (s *ActivityStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	query := s.db.Rebind(`SELECT EXISTS (SELECT 1 FROM activities WHERE id = ?)`)

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &exists, query, id)
	return exists, err
}

// UpsertActivity inserts the activity unless one with the same id exists.
// Stored activities are never overwritten.
func (s *ActivityStore) UpsertActivity(ctx context.Context, a *domain.Activity) error {
	query := `
		INSERT INTO activities (
			id, name, description, sport_type, start_time, timezone,
			moving_duration, elapsed_duration, distance, elevation_gain, elevation_loss,
			avg_speed, max_speed, avg_heart_rate, max_heart_rate, avg_cadence, max_cadence,
			avg_power, max_power, calories, has_streams, source, source_id, created_at, updated_at
		) VALUES (
			:id, :name, :description, :sport_type, :start_time, :timezone,
			:moving_duration, :elapsed_duration, :distance, :elevation_gain, :elevation_loss,
			:avg_speed, :max_speed, :avg_heart_rate, :max_heart_rate, :avg_cadence, :max_cadence,
			:avg_power, :max_power, :calories, :has_streams, :source, :source_id, :created_at, :updated_at
		)
		ON CONFLICT (id) DO NOTHING`

	_, err := sqlx.NamedExecContext(ctx, GetExecutor(ctx, s.db), query, a)
	return err
}

// UpsertSamples replaces the stored samples of every activity present in
// samples, preserving slice order.
func (s *ActivityStore) UpsertSamples(ctx context.Context, samples []domain.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	exec := GetExecutor(ctx, s.db)

	seq := make(map[string]int)
	for _, sample := range samples {
		if _, seen := seq[sample.ActivityID]; seen {
			continue
		}
		seq[sample.ActivityID] = 0
		if _, err := exec.ExecContext(ctx,
			s.db.Rebind(`DELETE FROM activity_samples WHERE activity_id = ?`),
			sample.ActivityID,
		); err != nil {
			return err
		}
	}

	for start := 0; start < len(samples); start += sampleBatchSize {
		end := start + sampleBatchSize
		if end > len(samples) {
			end = len(samples)
		}

		var sb strings.Builder
		sb.WriteString(`INSERT INTO activity_samples (activity_id, seq, time_offset, latitude, longitude,
			altitude, heart_rate, cadence, power, speed, grade) VALUES `)
		valueArgs := make([]interface{}, 0, (end-start)*11)

		for i, sample := range samples[start:end] {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")

			n := seq[sample.ActivityID]
			seq[sample.ActivityID] = n + 1

			valueArgs = append(valueArgs,
				sample.ActivityID, n, sample.TimeOffset, sample.Latitude, sample.Longitude,
				sample.Altitude, sample.HeartRate, sample.Cadence, sample.Power, sample.Speed, sample.Grade,
			)
		}

		if _, err := exec.ExecContext(ctx, s.db.Rebind(sb.String()), valueArgs...); err != nil {
			return err
		}
	}

	return nil
}

func (s *ActivityStore) Get(ctx context.Context, id string) (*domain.Activity, error) {
	var a domain.Activity
	query := s.db.Rebind(`SELECT * FROM activities WHERE id = ?`)

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &a, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *ActivityStore) Samples(ctx context.Context, activityID string) ([]domain.Sample, error) {
	query := s.db.Rebind(`
		SELECT activity_id, time_offset, latitude, longitude, altitude,
			heart_rate, cadence, power, speed, grade
		FROM activity_samples
		WHERE activity_id = ?
		ORDER BY seq`)

	var samples []domain.Sample
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &samples, query, activityID)
	return samples, err
}

// Count returns the number of stored activities of a provider.
func (s *ActivityStore) Count(ctx context.Context, source domain.Provider) (int, error) {
	var n int
	query := s.db.Rebind(`SELECT COUNT(*) FROM activities WHERE source = ?`)

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &n, query, source)
	return n, err
}

// DeleteBySource removes every activity of a provider along with its samples.
func (s *ActivityStore) DeleteBySource(ctx context.Context, source domain.Provider) (int64, error) {
	exec := GetExecutor(ctx, s.db)

	if _, err := exec.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM activity_samples
		WHERE activity_id IN (SELECT id FROM activities WHERE source = ?)`), source); err != nil {
		return 0, err
	}

	res, err := exec.ExecContext(ctx, s.db.Rebind(`DELETE FROM activities WHERE source = ?`), source)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
