package strava

import (
	"fmt"

	"github.com/goccy/go-json"

	"fitsync/internal/domain"
)

type channels struct {
	time      []float64
	latlng    [][]float64
	altitude  []float64
	heartrate []float64
	cadence   []float64
	watts     []float64
	velocity  []float64
	grade     []float64
}

// mergeStreams zips the parallel streams into samples. The longest channel
// sets the sample count; shorter channels leave their field nil. Without a
// time stream the sample index is used as the offset.
func mergeStreams(activityID string, set StreamSet) ([]domain.Sample, error) {
	var ch channels
	flat := map[string]*[]float64{
		"time":            &ch.time,
		"altitude":        &ch.altitude,
		"heartrate":       &ch.heartrate,
		"cadence":         &ch.cadence,
		"watts":           &ch.watts,
		"velocity_smooth": &ch.velocity,
		"grade_smooth":    &ch.grade,
	}

	for name, dst := range flat {
		s, ok := set[name]
		if !ok || len(s.Data) == 0 {
			continue
		}
		if err := json.Unmarshal(s.Data, dst); err != nil {
			return nil, fmt.Errorf("decode %s stream: %w", name, err)
		}
	}
	if s, ok := set["latlng"]; ok && len(s.Data) > 0 {
		if err := json.Unmarshal(s.Data, &ch.latlng); err != nil {
			return nil, fmt.Errorf("decode latlng stream: %w", err)
		}
	}

	n := maxLen(len(ch.time), len(ch.latlng), len(ch.altitude), len(ch.heartrate),
		len(ch.cadence), len(ch.watts), len(ch.velocity), len(ch.grade))
	if n == 0 {
		return nil, nil
	}

	samples := make([]domain.Sample, 0, n)
	var last int64
	for i := 0; i < n; i++ {
		offset := int64(i)
		if i < len(ch.time) {
			offset = int64(ch.time[i])
		}
		if offset < last {
			offset = last
		}
		last = offset

		sample := domain.Sample{
			ActivityID: activityID,
			TimeOffset: offset,
			Altitude:   at(ch.altitude, i),
			HeartRate:  at(ch.heartrate, i),
			Cadence:    at(ch.cadence, i),
			Power:      at(ch.watts, i),
			Speed:      at(ch.velocity, i),
			Grade:      at(ch.grade, i),
		}
		if i < len(ch.latlng) && len(ch.latlng[i]) == 2 {
			lat, lng := ch.latlng[i][0], ch.latlng[i][1]
			sample.Latitude = &lat
			sample.Longitude = &lng
		}
		samples = append(samples, sample)
	}

	return samples, nil
}

func at(values []float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	v := values[i]
	return &v
}

func maxLen(lens ...int) int {
	n := 0
	for _, l := range lens {
		if l > n {
			n = l
		}
	}
	return n
}
