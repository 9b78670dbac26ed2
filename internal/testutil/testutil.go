// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"time"

	"fitsync/internal/domain"
)

func Ptr[T any](v T) *T {
	return &v
}

// Activity returns a fully populated activity of the given provider.
func Activity(source domain.Provider, sourceID string) *domain.Activity {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Activity{
		ID:              domain.ActivityID(source, sourceID),
		Name:            "Morning Run",
		SportType:       domain.SportRun,
		StartTime:       time.Date(2024, 4, 30, 6, 30, 0, 0, time.UTC),
		MovingDuration:  1800,
		ElapsedDuration: 1900,
		Distance:        Ptr(5000.0),
		ElevationGain:   Ptr(35.0),
		AvgHeartRate:    Ptr(150.0),
		Calories:        Ptr(int64(400)),
		Source:          source,
		SourceID:        sourceID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Samples returns n samples one second apart with heart rate only.
func Samples(activityID string, n int) []domain.Sample {
	samples := make([]domain.Sample, n)
	for i := range samples {
		samples[i] = domain.Sample{
			ActivityID: activityID,
			TimeOffset: int64(i),
			HeartRate:  Ptr(float64(100 + i%80)),
		}
	}
	return samples
}
