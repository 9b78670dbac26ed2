package strava

import "github.com/goccy/go-json"

// Activity is a summary entry of GET /athlete/activities.
type Activity struct {
	ID                 json.Number `json:"id"`
	Name               string      `json:"name"`
	Type               string      `json:"type"`
	SportType          string      `json:"sport_type"`
	StartDate          string      `json:"start_date"`
	Timezone           string      `json:"timezone"`
	MovingTime         int64       `json:"moving_time"`
	ElapsedTime        int64       `json:"elapsed_time"`
	Distance           *float64    `json:"distance"`
	TotalElevationGain *float64    `json:"total_elevation_gain"`
	AverageSpeed       *float64    `json:"average_speed"`
	MaxSpeed           *float64    `json:"max_speed"`
	AverageHeartrate   *float64    `json:"average_heartrate"`
	MaxHeartrate       *float64    `json:"max_heartrate"`
	AverageCadence     *float64    `json:"average_cadence"`
	AverageWatts       *float64    `json:"average_watts"`
	MaxWatts           *float64    `json:"max_watts"`
	Kilojoules         *float64    `json:"kilojoules"`
	Description        *string     `json:"description"`
}

// Stream is one channel of GET /activities/{id}/streams with key_by_type.
// Data is a flat number array except for latlng, which holds pairs.
type Stream struct {
	Data         json.RawMessage `json:"data"`
	SeriesType   string          `json:"series_type"`
	OriginalSize int             `json:"original_size"`
	Resolution   string          `json:"resolution"`
}

type StreamSet map[string]Stream
