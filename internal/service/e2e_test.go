package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/suite"

	"fitsync/internal/auth"
	"fitsync/internal/config"
	"fitsync/internal/domain"
	"fitsync/internal/ratelimit"
	"fitsync/internal/source/strava"
	"fitsync/internal/storage/sqlstore"
	"fitsync/internal/transport"
)

const stravaStreams = `{
  "time": {"data": [0, 1, 2]},
  "heartrate": {"data": [120, 125, 130]},
  "latlng": {"data": [[47.1, 8.5], [47.2, 8.6], [47.3, 8.7]]}
}`

// StravaSyncE2ESuite runs the orchestrator against a fake Strava API and a
// real SQLite store.
type StravaSyncE2ESuite struct {
	suite.Suite
	ctx      context.Context
	db       *sqlx.DB
	server   *httptest.Server
	requests atomic.Int32
	flaked   atomic.Bool

	activities *sqlstore.ActivityStore
	cursors    *sqlstore.SyncStateStore
	limits     ratelimit.Limits
	limiter    *ratelimit.Limiter
	service    *SyncService
}

func (s *StravaSyncE2ESuite) SetupTest() {
	s.ctx = context.Background()
	s.requests.Store(0)
	s.flaked.Store(false)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	path := filepath.Join(s.T().TempDir(), "fitsync.db")
	db, err := sqlx.Connect("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", path))
	s.Require().NoError(err)
	db.SetMaxOpenConns(1)
	s.Require().NoError(sqlstore.Migrate(s.ctx, db))
	s.db = db

	mux := http.NewServeMux()
	mux.HandleFunc("GET /athlete/activities", func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, `[
				{"id": 1001, "name": "Run", "sport_type": "Run", "start_date": "2024-04-20T06:00:00Z", "moving_time": 1800, "elapsed_time": 1850},
				{"id": 1002, "name": "Ride", "sport_type": "Ride", "start_date": "2024-04-21T06:00:00Z", "moving_time": 3600, "elapsed_time": 3700}
			]`)
		case "2":
			fmt.Fprint(w, `[
				{"id": 1003, "name": "Swim", "sport_type": "Swim", "start_date": "2024-04-22T06:00:00Z", "moving_time": 1200, "elapsed_time": 1300}
			]`)
		default:
			fmt.Fprint(w, `[]`)
		}
	})
	mux.HandleFunc("GET /activities/{id}/streams", func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		switch id, _ := strconv.Atoi(r.PathValue("id")); {
		case id == 1002:
			http.Error(w, "upstream timeout", http.StatusBadGateway)
			return
		case id == 1001 && s.flaked.CompareAndSwap(false, true):
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, stravaStreams)
	})
	s.server = httptest.NewServer(mux)

	tokenStore := sqlstore.NewTokenStore(db)
	supply := auth.NewSupply(tokenStore, nil, logger)
	s.Require().NoError(supply.Import(s.ctx, &domain.Token{
		Provider:     domain.ProviderStrava,
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(24 * time.Hour),
	}))

	s.activities = sqlstore.NewActivityStore(db)
	s.cursors = sqlstore.NewSyncStateStore(db)
	s.limits = ratelimit.Limits{
		ShortTermLimit:  200,
		ShortTermWindow: 15 * time.Minute,
		DailyLimit:      2000,
		DailyWindow:     24 * time.Hour,
	}
	s.limiter = ratelimit.New(map[domain.Provider]ratelimit.Limits{
		domain.ProviderStrava: s.limits,
	}, logger)

	httpClient := transport.NewClient("strava", s.server.Client().Transport, transport.ClientConfig{
		Retry: transport.RetryConfig{
			MaxRetries: 2,
			BaseDelay:  time.Millisecond,
			MaxDelay:   5 * time.Millisecond,
		},
		Breaker: transport.BreakerConfig{
			ConsecutiveFailures: 5,
			OpenTimeout:         time.Minute,
			HalfOpenRequests:    1,
		},
	}, logger)

	s.service = NewSyncService(
		strava.New(strava.Config{BaseURL: s.server.URL}, httpClient, logger),
		supply,
		s.activities,
		s.cursors,
		s.limiter,
		sqlstore.NewTransactionManager(db),
		nil,
		logger,
		config.SyncConfig{
			MinInterval:      6 * time.Hour,
			BackfillWindow:   30 * 24 * time.Hour,
			MaxPages:         10,
			PerPage:          2,
			RateLimitBackoff: time.Second,
		},
	)
}

func (s *StravaSyncE2ESuite) TearDownTest() {
	s.server.Close()
	s.db.Close()
}

func TestStravaSyncE2ESuite(t *testing.T) {
	suite.Run(t, new(StravaSyncE2ESuite))
}

func (s *StravaSyncE2ESuite) TestFirstSyncThenIdempotentResync() {
	before := time.Now()

	first, err := s.service.Sync(s.ctx, false)
	s.Require().NoError(err)
	s.Equal(3, first.SyncedCount)
	s.Equal(0, first.SkippedCount)
	s.Equal(1, first.ErrorCount)
	s.Equal(2, first.Pages)

	count, err := s.activities.Count(s.ctx, domain.ProviderStrava)
	s.Require().NoError(err)
	s.Equal(3, count)

	withStreams, err := s.activities.Get(s.ctx, "strava_1001")
	s.Require().NoError(err)
	s.True(withStreams.HasStreams)
	samples, err := s.activities.Samples(s.ctx, "strava_1001")
	s.Require().NoError(err)
	s.Len(samples, 3)
	s.InDelta(47.2, *samples[1].Latitude, 1e-9)

	bare, err := s.activities.Get(s.ctx, "strava_1002")
	s.Require().NoError(err)
	s.False(bare.HasStreams)

	cursor, err := s.cursors.GetCursor(s.ctx, domain.ProviderStrava)
	s.Require().NoError(err)
	s.Require().NotNil(cursor)
	s.False(cursor.Before(before.Truncate(time.Second)))

	// Two pages and three stream fetches. The wire saw one retry for 1001
	// and two for 1002 on top of that.
	_, daily := s.limiter.Remaining(domain.ProviderStrava)
	s.Equal(s.limits.DailyLimit-5, daily)
	s.Equal(int32(8), s.requests.Load())

	second, err := s.service.Sync(s.ctx, true)
	s.Require().NoError(err)
	s.Equal(0, second.SyncedCount)
	s.Equal(3, second.SkippedCount)

	count, err = s.activities.Count(s.ctx, domain.ProviderStrava)
	s.Require().NoError(err)
	s.Equal(3, count)

	next, err := s.cursors.GetCursor(s.ctx, domain.ProviderStrava)
	s.Require().NoError(err)
	s.False(next.Before(*cursor))
}

func (s *StravaSyncE2ESuite) TestSecondUnforcedRunIsSkipped() {
	_, err := s.service.Sync(s.ctx, false)
	s.Require().NoError(err)
	calls := s.requests.Load()

	result, err := s.service.Sync(s.ctx, false)
	s.Require().NoError(err)
	s.True(result.SkippedEntirely)
	s.Equal(calls, s.requests.Load())
}
