package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/suite"

	"fitsync/internal/domain"
	"fitsync/internal/testutil"
)

type SQLiteStoreSuite struct {
	suite.Suite
	ctx context.Context
	db  *sqlx.DB
}

func (s *SQLiteStoreSuite) SetupTest() {
	s.ctx = context.Background()

	path := filepath.Join(s.T().TempDir(), "fitsync.db")
	db, err := sqlx.Connect("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", path))
	s.Require().NoError(err)
	db.SetMaxOpenConns(1)
	s.db = db

	s.Require().NoError(Migrate(s.ctx, db))
}

func (s *SQLiteStoreSuite) TearDownTest() {
	if s.db != nil {
		s.db.Close()
	}
}

func TestSQLiteStoreSuite(t *testing.T) {
	suite.Run(t, new(SQLiteStoreSuite))
}

func (s *SQLiteStoreSuite) TestMigrateIsIdempotent() {
	s.NoError(Migrate(s.ctx, s.db))
}

func (s *SQLiteStoreSuite) TestActivity_InsertAndExists() {
	store := NewActivityStore(s.db)
	a := testutil.Activity(domain.ProviderStrava, "100")

	exists, err := store.Exists(s.ctx, a.ID)
	s.Require().NoError(err)
	s.False(exists)

	s.Require().NoError(store.UpsertActivity(s.ctx, a))

	exists, err = store.Exists(s.ctx, a.ID)
	s.Require().NoError(err)
	s.True(exists)

	got, err := store.Get(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(a.Name, got.Name)
	s.Equal(a.SportType, got.SportType)
	s.Equal(a.StartTime, got.StartTime.UTC())
	s.Equal(a.MovingDuration, got.MovingDuration)
	s.InDelta(*a.Distance, *got.Distance, 1e-9)
	s.Nil(got.ElevationLoss)
	s.Equal(domain.ProviderStrava, got.Source)
	s.Equal("100", got.SourceID)
}

func (s *SQLiteStoreSuite) TestActivity_ExistingIsNeverOverwritten() {
	store := NewActivityStore(s.db)

	first := testutil.Activity(domain.ProviderStrava, "7")
	s.Require().NoError(store.UpsertActivity(s.ctx, first))

	second := testutil.Activity(domain.ProviderStrava, "7")
	second.Name = "Renamed remotely"
	s.Require().NoError(store.UpsertActivity(s.ctx, second))

	got, err := store.Get(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Equal(first.Name, got.Name)

	n, err := store.Count(s.ctx, domain.ProviderStrava)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *SQLiteStoreSuite) TestActivity_GetMissing() {
	_, err := NewActivityStore(s.db).Get(s.ctx, "strava_404")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *SQLiteStoreSuite) TestSamples_RoundTripKeepsAbsentChannels() {
	store := NewActivityStore(s.db)
	a := testutil.Activity(domain.ProviderGarmin, "1")
	s.Require().NoError(store.UpsertActivity(s.ctx, a))

	samples := []domain.Sample{
		{ActivityID: a.ID, TimeOffset: 0, HeartRate: testutil.Ptr(120.0)},
		{ActivityID: a.ID, TimeOffset: 1, HeartRate: testutil.Ptr(121.0), Latitude: testutil.Ptr(47.1), Longitude: testutil.Ptr(8.5)},
		{ActivityID: a.ID, TimeOffset: 1, Power: testutil.Ptr(250.0)},
	}
	s.Require().NoError(store.UpsertSamples(s.ctx, samples))

	got, err := store.Samples(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Require().Len(got, 3)
	s.Equal(samples[0].TimeOffset, got[0].TimeOffset)
	s.InDelta(120.0, *got[0].HeartRate, 1e-9)
	s.Nil(got[0].Power)
	s.Nil(got[0].Latitude)
	s.InDelta(47.1, *got[1].Latitude, 1e-9)
	s.InDelta(250.0, *got[2].Power, 1e-9)
	s.Nil(got[2].HeartRate)
}

func (s *SQLiteStoreSuite) TestSamples_UpsertReplaces() {
	store := NewActivityStore(s.db)
	a := testutil.Activity(domain.ProviderGarmin, "2")
	s.Require().NoError(store.UpsertActivity(s.ctx, a))

	s.Require().NoError(store.UpsertSamples(s.ctx, testutil.Samples(a.ID, 3)))
	s.Require().NoError(store.UpsertSamples(s.ctx, testutil.Samples(a.ID, 2)))

	got, err := store.Samples(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Len(got, 2)
}

func (s *SQLiteStoreSuite) TestSamples_LargeBatch() {
	store := NewActivityStore(s.db)
	a := testutil.Activity(domain.ProviderStrava, "long")
	s.Require().NoError(store.UpsertActivity(s.ctx, a))

	s.Require().NoError(store.UpsertSamples(s.ctx, testutil.Samples(a.ID, 3*sampleBatchSize+17)))

	got, err := store.Samples(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Len(got, 3*sampleBatchSize+17)
	s.Equal(int64(3*sampleBatchSize+16), got[len(got)-1].TimeOffset)
}

func (s *SQLiteStoreSuite) TestDeleteBySource() {
	store := NewActivityStore(s.db)
	for _, id := range []string{"1", "2"} {
		a := testutil.Activity(domain.ProviderStrava, id)
		s.Require().NoError(store.UpsertActivity(s.ctx, a))
		s.Require().NoError(store.UpsertSamples(s.ctx, testutil.Samples(a.ID, 2)))
	}
	s.Require().NoError(store.UpsertActivity(s.ctx, testutil.Activity(domain.ProviderGarmin, "1")))

	n, err := store.DeleteBySource(s.ctx, domain.ProviderStrava)
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	left, err := store.Count(s.ctx, domain.ProviderGarmin)
	s.Require().NoError(err)
	s.Equal(1, left)
}

func (s *SQLiteStoreSuite) TestCursor_MissingThenMonotonic() {
	store := NewSyncStateStore(s.db)

	cursor, err := store.GetCursor(s.ctx, domain.ProviderStrava)
	s.Require().NoError(err)
	s.Nil(cursor)

	t1 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.Require().NoError(store.SetCursor(s.ctx, domain.ProviderStrava, t1))

	cursor, err = store.GetCursor(s.ctx, domain.ProviderStrava)
	s.Require().NoError(err)
	s.Require().NotNil(cursor)
	s.True(t1.Equal(*cursor))

	stale := t1.Add(-time.Hour)
	s.Require().NoError(store.SetCursor(s.ctx, domain.ProviderStrava, stale))
	cursor, err = store.GetCursor(s.ctx, domain.ProviderStrava)
	s.Require().NoError(err)
	s.True(t1.Equal(*cursor), "cursor must not move backward")

	t2 := t1.Add(90 * time.Minute)
	s.Require().NoError(store.SetCursor(s.ctx, domain.ProviderStrava, t2))
	cursor, err = store.GetCursor(s.ctx, domain.ProviderStrava)
	s.Require().NoError(err)
	s.True(t2.Equal(*cursor))

	other, err := store.GetCursor(s.ctx, domain.ProviderGarmin)
	s.Require().NoError(err)
	s.Nil(other)

	s.Require().NoError(store.DeleteCursor(s.ctx, domain.ProviderStrava))
	cursor, err = store.GetCursor(s.ctx, domain.ProviderStrava)
	s.Require().NoError(err)
	s.Nil(cursor)
}

func (s *SQLiteStoreSuite) TestToken_SaveGetDelete() {
	store := NewTokenStore(s.db)

	_, err := store.GetToken(s.ctx, domain.ProviderGarmin)
	s.ErrorIs(err, domain.ErrNotFound)

	tok := &domain.Token{
		Provider:     domain.ProviderGarmin,
		AccessToken:  "a1",
		RefreshToken: "r1",
		ExpiresAt:    time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	s.Require().NoError(store.SaveToken(s.ctx, tok))

	tok.AccessToken = "a2"
	s.Require().NoError(store.SaveToken(s.ctx, tok))

	got, err := store.GetToken(s.ctx, domain.ProviderGarmin)
	s.Require().NoError(err)
	s.Equal("a2", got.AccessToken)
	s.Equal("r1", got.RefreshToken)
	s.True(tok.ExpiresAt.Equal(got.ExpiresAt))

	s.Require().NoError(store.DeleteToken(s.ctx, domain.ProviderGarmin))
	_, err = store.GetToken(s.ctx, domain.ProviderGarmin)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *SQLiteStoreSuite) TestTransaction_RollbackDiscardsActivityAndSamples() {
	store := NewActivityStore(s.db)
	tm := NewTransactionManager(s.db)
	a := testutil.Activity(domain.ProviderStrava, "tx")

	boom := errors.New("boom")
	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if err := store.UpsertActivity(ctx, a); err != nil {
			return err
		}
		if err := store.UpsertSamples(ctx, testutil.Samples(a.ID, 3)); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	exists, err := store.Exists(s.ctx, a.ID)
	s.Require().NoError(err)
	s.False(exists)

	err = tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if err := store.UpsertActivity(ctx, a); err != nil {
			return err
		}
		return store.UpsertSamples(ctx, testutil.Samples(a.ID, 3))
	})
	s.Require().NoError(err)

	samples, err := store.Samples(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Len(samples, 3)
}
