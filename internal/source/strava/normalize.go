package strava

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"

	"fitsync/internal/domain"
)

var sportAliases = map[string]domain.SportType{
	"virtualrun":       domain.SportIndoorRun,
	"virtualride":      domain.SportIndoorRide,
	"ebikeride":        domain.SportRide,
	"mountainbikeride": domain.SportRide,
	"gravelride":       domain.SportRide,
	"stairstepper":     domain.SportStairmaster,
}

// Normalize converts a list entry into a canonical activity.
func (c *Client) Normalize(remote domain.RemoteActivity, now time.Time) (*domain.Activity, error) {
	var a Activity
	if err := json.Unmarshal(remote.Payload, &a); err != nil {
		return nil, fmt.Errorf("decode activity: %w", err)
	}
	if a.ID.String() == "" {
		return nil, errors.New("activity without id")
	}

	start, err := time.Parse(time.RFC3339, a.StartDate)
	if err != nil {
		return nil, fmt.Errorf("parse start_date %q: %w", a.StartDate, err)
	}

	sport := a.SportType
	if sport == "" {
		sport = a.Type
	}

	activity := &domain.Activity{
		ID:              domain.ActivityID(domain.ProviderStrava, a.ID.String()),
		Name:            a.Name,
		Description:     a.Description,
		SportType:       domain.ParseSportTypeWithAliases(sport, sportAliases),
		StartTime:       start.UTC(),
		MovingDuration:  a.MovingTime,
		ElapsedDuration: a.ElapsedTime,
		Distance:        a.Distance,
		ElevationGain:   a.TotalElevationGain,
		AvgSpeed:        a.AverageSpeed,
		MaxSpeed:        a.MaxSpeed,
		AvgHeartRate:    a.AverageHeartrate,
		MaxHeartRate:    a.MaxHeartrate,
		AvgCadence:      a.AverageCadence,
		AvgPower:        a.AverageWatts,
		MaxPower:        a.MaxWatts,
		Source:          domain.ProviderStrava,
		SourceID:        a.ID.String(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if a.Timezone != "" {
		tz := a.Timezone
		activity.Timezone = &tz
	}
	if a.Kilojoules != nil {
		kcal := int64(math.Round(*a.Kilojoules))
		activity.Calories = &kcal
	}

	return activity, nil
}
