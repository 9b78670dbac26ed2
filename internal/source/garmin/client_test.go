package garmin

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fitsync/internal/domain"
	"fitsync/internal/transport"
)

const activitiesPage = `[
  {
    "activityId": 555,
    "activityName": "Lunch Swim",
    "activityType": {"typeId": 27, "typeKey": "lap_swimming", "parentTypeId": 26, "isHidden": false},
    "startTimeLocal": "2024-04-02 13:00:00",
    "startTimeGMT": "2024-04-02 11:00:00",
    "distance": 1500,
    "duration": 2400.7,
    "movingDuration": 2200.2,
    "averageHR": 131,
    "calories": 389.6
  },
  {
    "activityId": 556,
    "activityName": "Walk",
    "activityType": {"typeKey": "walking"},
    "startTimeGMT": "2024-04-03T07:15:00Z",
    "duration": 600
  }
]`

type GarminClientTestSuite struct {
	suite.Suite
	server *httptest.Server
	mux    *http.ServeMux
	client *Client
}

func (s *GarminClientTestSuite) SetupTest() {
	s.mux = http.NewServeMux()
	s.server = httptest.NewServer(s.mux)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.client = New(Config{BaseURL: s.server.URL}, s.server.Client(), logger)
}

func (s *GarminClientTestSuite) TearDownTest() {
	s.server.Close()
}

func TestGarminClientTestSuite(t *testing.T) {
	suite.Run(t, new(GarminClientTestSuite))
}

func (s *GarminClientTestSuite) TestListActivities_OffsetPaging() {
	after := time.Unix(1711929600, 0)

	s.mux.HandleFunc("/activities", func(w http.ResponseWriter, r *http.Request) {
		s.Equal("Bearer g-token", r.Header.Get("Authorization"))
		s.Equal("1711929600", r.URL.Query().Get("start"))
		s.Equal("100", r.URL.Query().Get("limit"))
		s.Equal("200", r.URL.Query().Get("offset"))
		_, _ = w.Write([]byte(activitiesPage))
	})

	items, err := s.client.ListActivities(context.Background(), "g-token", after, 3, 100)
	s.Require().NoError(err)
	s.Require().Len(items, 2)
	s.Equal("555", items[0].SourceID)
	s.Equal(domain.ProviderGarmin, items[1].Provider)
}

func (s *GarminClientTestSuite) TestListActivities_Unauthorized() {
	s.mux.HandleFunc("/activities", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := s.client.ListActivities(context.Background(), "bad", time.Now(), 1, 100)
	s.ErrorIs(err, transport.ErrUnauthorized)
}

func (s *GarminClientTestSuite) TestNormalize() {
	s.mux.HandleFunc("/activities", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(activitiesPage))
	})
	items, err := s.client.ListActivities(context.Background(), "t", time.Now(), 1, 100)
	s.Require().NoError(err)

	now := time.Date(2024, 4, 4, 0, 0, 0, 0, time.UTC)

	swim, err := s.client.Normalize(items[0], now)
	s.Require().NoError(err)
	s.Equal("garmin_555", swim.ID)
	s.Equal(domain.SportSwim, swim.SportType)
	s.Equal(time.Date(2024, 4, 2, 11, 0, 0, 0, time.UTC), swim.StartTime)
	s.Equal(int64(2200), swim.MovingDuration)
	s.Equal(int64(2400), swim.ElapsedDuration)
	s.Equal(int64(390), *swim.Calories)
	s.InDelta(131.0, *swim.AvgHeartRate, 1e-9)
	s.Nil(swim.MaxHeartRate)

	walk, err := s.client.Normalize(items[1], now)
	s.Require().NoError(err)
	s.Equal(domain.SportWalk, walk.SportType)
	s.Equal(int64(600), walk.MovingDuration)
	s.Equal(int64(600), walk.ElapsedDuration)
	s.Equal(time.Date(2024, 4, 3, 7, 15, 0, 0, time.UTC), walk.StartTime)
}

func (s *GarminClientTestSuite) TestNormalize_Malformed() {
	_, err := s.client.Normalize(domain.RemoteActivity{Payload: []byte(`{"activityName": "no id"}`)}, time.Now())
	s.Error(err)

	_, err = s.client.Normalize(domain.RemoteActivity{Payload: []byte(`{"activityId": 1, "startTimeGMT": "soon"}`)}, time.Now())
	s.Error(err)
}

func (s *GarminClientTestSuite) TestGetSamples() {
	s.mux.HandleFunc("/activities/555/streams", func(w http.ResponseWriter, r *http.Request) {
		s.Equal(streamTypes, r.URL.Query().Get("types"))
		_, _ = w.Write([]byte(`{
		  "HEARTRATE": {"metricType": "HEARTRATE", "values": [100, null, 102]},
		  "POWER": {"metricType": "POWER", "values": [150]},
		  "GPS": {"metricType": "GPS", "values": [[47.1, 8.5], [47.2, 8.6]]}
		}`))
	})

	samples, err := s.client.GetSamples(context.Background(), "t",
		domain.RemoteActivity{SourceID: "555"}, "garmin_555")
	s.Require().NoError(err)
	s.Require().Len(samples, 3)

	for i, sample := range samples {
		s.Equal(int64(i), sample.TimeOffset)
		s.Equal("garmin_555", sample.ActivityID)
	}

	s.InDelta(100.0, *samples[0].HeartRate, 1e-9)
	s.Nil(samples[1].HeartRate)
	s.InDelta(102.0, *samples[2].HeartRate, 1e-9)

	s.InDelta(150.0, *samples[0].Power, 1e-9)
	s.Nil(samples[1].Power)

	s.InDelta(47.2, *samples[1].Latitude, 1e-9)
	s.InDelta(8.6, *samples[1].Longitude, 1e-9)
	s.Nil(samples[2].Latitude)
	s.Nil(samples[0].Speed)
}

func (s *GarminClientTestSuite) TestGetSamples_ServerError() {
	s.mux.HandleFunc("/activities/9/streams", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := s.client.GetSamples(context.Background(), "t", domain.RemoteActivity{SourceID: "9"}, "garmin_9")
	s.ErrorIs(err, transport.ErrServerError)
}
