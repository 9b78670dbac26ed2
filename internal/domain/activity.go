package domain

import (
	"fmt"
	"time"
)

// Activity is a provider activity normalized into the canonical shape.
// Durations are whole seconds, distances metres, speeds m/s.
type Activity struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Description     *string   `db:"description" json:"description,omitempty"`
	SportType       SportType `db:"sport_type" json:"sport_type"`
	StartTime       time.Time `db:"start_time" json:"start_time"`
	Timezone        *string   `db:"timezone" json:"timezone,omitempty"`
	MovingDuration  int64     `db:"moving_duration" json:"moving_duration"`
	ElapsedDuration int64     `db:"elapsed_duration" json:"elapsed_duration"`
	Distance        *float64  `db:"distance" json:"distance,omitempty"`
	ElevationGain   *float64  `db:"elevation_gain" json:"elevation_gain,omitempty"`
	ElevationLoss   *float64  `db:"elevation_loss" json:"elevation_loss,omitempty"`
	AvgSpeed        *float64  `db:"avg_speed" json:"avg_speed,omitempty"`
	MaxSpeed        *float64  `db:"max_speed" json:"max_speed,omitempty"`
	AvgHeartRate    *float64  `db:"avg_heart_rate" json:"avg_heart_rate,omitempty"`
	MaxHeartRate    *float64  `db:"max_heart_rate" json:"max_heart_rate,omitempty"`
	AvgCadence      *float64  `db:"avg_cadence" json:"avg_cadence,omitempty"`
	MaxCadence      *float64  `db:"max_cadence" json:"max_cadence,omitempty"`
	AvgPower        *float64  `db:"avg_power" json:"avg_power,omitempty"`
	MaxPower        *float64  `db:"max_power" json:"max_power,omitempty"`
	Calories        *int64    `db:"calories" json:"calories,omitempty"`
	HasStreams      bool      `db:"has_streams" json:"has_streams"`
	Source          Provider  `db:"source" json:"source"`
	SourceID        string    `db:"source_id" json:"source_id"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Sample is one point of an activity's time series. Channels a provider did
// not report stay nil.
type Sample struct {
	ActivityID string   `db:"activity_id" json:"activity_id"`
	TimeOffset int64    `db:"time_offset" json:"time_offset"`
	Latitude   *float64 `db:"latitude" json:"latitude,omitempty"`
	Longitude  *float64 `db:"longitude" json:"longitude,omitempty"`
	Altitude   *float64 `db:"altitude" json:"altitude,omitempty"`
	HeartRate  *float64 `db:"heart_rate" json:"heart_rate,omitempty"`
	Cadence    *float64 `db:"cadence" json:"cadence,omitempty"`
	Power      *float64 `db:"power" json:"power,omitempty"`
	Speed      *float64 `db:"speed" json:"speed,omitempty"`
	Grade      *float64 `db:"grade" json:"grade,omitempty"`
}

// RemoteActivity is an undecoded list entry as returned by a provider.
// Decoding is deferred so a malformed entry only fails its own processing.
type RemoteActivity struct {
	Provider Provider
	SourceID string
	Payload  []byte
}

// ActivityID derives the de-duplication key for a provider activity.
func ActivityID(source Provider, sourceID string) string {
	return fmt.Sprintf("%s_%s", source, sourceID)
}
