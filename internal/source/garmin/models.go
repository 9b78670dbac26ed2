package garmin

import "github.com/goccy/go-json"

type ActivityType struct {
	TypeID       int64  `json:"typeId"`
	TypeKey      string `json:"typeKey"`
	ParentTypeID int64  `json:"parentTypeId"`
	IsHidden     bool   `json:"isHidden"`
}

// Activity is an entry of GET /activities.
type Activity struct {
	ActivityID      json.Number   `json:"activityId"`
	ActivityName    string        `json:"activityName"`
	ActivityType    *ActivityType `json:"activityType"`
	StartTimeLocal  string        `json:"startTimeLocal"`
	StartTimeGMT    string        `json:"startTimeGMT"`
	Distance        *float64      `json:"distance"`
	Duration        *float64      `json:"duration"`
	ElapsedDuration *float64      `json:"elapsedDuration"`
	MovingDuration  *float64      `json:"movingDuration"`
	ElevationGain   *float64      `json:"elevationGain"`
	ElevationLoss   *float64      `json:"elevationLoss"`
	AverageSpeed    *float64      `json:"averageSpeed"`
	MaxSpeed        *float64      `json:"maxSpeed"`
	AverageHR       *float64      `json:"averageHR"`
	MaxHR           *float64      `json:"maxHR"`
	AverageCadence  *float64      `json:"averageCadence"`
	MaxCadence      *float64      `json:"maxCadence"`
	AveragePower    *float64      `json:"averagePower"`
	MaxPower        *float64      `json:"maxPower"`
	Calories        *float64      `json:"calories"`
	Description     *string       `json:"description"`
}

// Stream is one metric of GET /activities/{id}/streams. Values are numbers,
// except for GPS where each entry is a [lat, lng] pair.
type Stream struct {
	MetricType string            `json:"metricType"`
	Values     []json.RawMessage `json:"values"`
}
