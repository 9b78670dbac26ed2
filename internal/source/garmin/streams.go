package garmin

import (
	"fmt"

	"github.com/goccy/go-json"

	"fitsync/internal/domain"
)

// mergeStreams zips Garmin metric streams into samples. Garmin streams carry
// no time channel, so the sample index is the offset in seconds.
func mergeStreams(activityID string, streams map[string]Stream) ([]domain.Sample, error) {
	numeric := map[string][]*float64{}
	for _, name := range []string{"HEARTRATE", "CADENCE", "POWER", "SPEED", "ALTITUDE"} {
		s, ok := streams[name]
		if !ok {
			continue
		}
		values, err := decodeNumbers(s.Values)
		if err != nil {
			return nil, fmt.Errorf("decode %s stream: %w", name, err)
		}
		numeric[name] = values
	}

	var positions [][2]*float64
	if s, ok := streams["GPS"]; ok {
		positions = decodePositions(s.Values)
	}

	n := len(positions)
	for _, values := range numeric {
		if len(values) > n {
			n = len(values)
		}
	}
	if n == 0 {
		return nil, nil
	}

	samples := make([]domain.Sample, 0, n)
	for i := 0; i < n; i++ {
		sample := domain.Sample{
			ActivityID: activityID,
			TimeOffset: int64(i),
			HeartRate:  at(numeric["HEARTRATE"], i),
			Cadence:    at(numeric["CADENCE"], i),
			Power:      at(numeric["POWER"], i),
			Speed:      at(numeric["SPEED"], i),
			Altitude:   at(numeric["ALTITUDE"], i),
		}
		if i < len(positions) {
			sample.Latitude = positions[i][0]
			sample.Longitude = positions[i][1]
		}
		samples = append(samples, sample)
	}

	return samples, nil
}

// decodeNumbers keeps JSON nulls as nil so gaps in a channel stay absent.
func decodeNumbers(raw []json.RawMessage) ([]*float64, error) {
	out := make([]*float64, len(raw))
	for i, r := range raw {
		var v *float64
		if err := json.Unmarshal(r, &v); err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// decodePositions accepts [lat, lng] pairs; any other entry shape yields an
// empty position.
func decodePositions(raw []json.RawMessage) [][2]*float64 {
	out := make([][2]*float64, len(raw))
	for i, r := range raw {
		var pair []float64
		if err := json.Unmarshal(r, &pair); err != nil || len(pair) != 2 {
			continue
		}
		lat, lng := pair[0], pair[1]
		out[i] = [2]*float64{&lat, &lng}
	}
	return out
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}
