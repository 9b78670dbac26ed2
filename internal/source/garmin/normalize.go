package garmin

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"

	"fitsync/internal/domain"
)

// Garmin reports GMT start times without a zone designator.
const gmtLayout = "2006-01-02 15:04:05"

var sportAliases = map[string]domain.SportType{
	"running":           domain.SportRun,
	"trailrunning":      domain.SportTrailRun,
	"treadmillrunning":  domain.SportIndoorRun,
	"indoorrunning":     domain.SportIndoorRun,
	"hiking":            domain.SportHike,
	"walking":           domain.SportWalk,
	"cycling":           domain.SportRide,
	"roadbiking":        domain.SportRide,
	"mountainbiking":    domain.SportRide,
	"indoorcycling":     domain.SportIndoorRide,
	"virtualride":       domain.SportIndoorRide,
	"lapswimming":       domain.SportSwim,
	"swimming":          domain.SportSwim,
	"openwaterswimming": domain.SportOpenWaterSwim,
	"stairclimbing":     domain.SportStairmaster,
	"jumprope":          domain.SportRopeJumping,
}

func (c *Client) Normalize(remote domain.RemoteActivity, now time.Time) (*domain.Activity, error) {
	var a Activity
	if err := json.Unmarshal(remote.Payload, &a); err != nil {
		return nil, fmt.Errorf("decode activity: %w", err)
	}
	if a.ActivityID.String() == "" {
		return nil, errors.New("activity without activityId")
	}

	start, err := parseStart(a.StartTimeGMT)
	if err != nil {
		return nil, err
	}

	sport := domain.SportUnknown
	if a.ActivityType != nil {
		sport = domain.ParseSportTypeWithAliases(a.ActivityType.TypeKey, sportAliases)
	}

	id := a.ActivityID.String()
	activity := &domain.Activity{
		ID:              domain.ActivityID(domain.ProviderGarmin, id),
		Name:            a.ActivityName,
		Description:     a.Description,
		SportType:       sport,
		StartTime:       start,
		MovingDuration:  seconds(first(a.MovingDuration, a.Duration)),
		ElapsedDuration: seconds(first(a.ElapsedDuration, a.Duration)),
		Distance:        a.Distance,
		ElevationGain:   a.ElevationGain,
		ElevationLoss:   a.ElevationLoss,
		AvgSpeed:        a.AverageSpeed,
		MaxSpeed:        a.MaxSpeed,
		AvgHeartRate:    a.AverageHR,
		MaxHeartRate:    a.MaxHR,
		AvgCadence:      a.AverageCadence,
		MaxCadence:      a.MaxCadence,
		AvgPower:        a.AveragePower,
		MaxPower:        a.MaxPower,
		Source:          domain.ProviderGarmin,
		SourceID:        id,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if a.Calories != nil {
		kcal := int64(math.Round(*a.Calories))
		activity.Calories = &kcal
	}

	return activity, nil
}

func parseStart(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(gmtLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse startTimeGMT %q: %w", s, err)
	}
	return t, nil
}

func first(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func seconds(v *float64) int64 {
	if v == nil {
		return 0
	}
	return int64(*v)
}
