//go:build integration

package sqlstore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"fitsync/internal/domain"
	"fitsync/internal/testutil"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	schemaPath, err := filepath.Abs("schema/postgres.sql")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(schemaPath),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM activity_samples")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM activities")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM sync_state")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM provider_tokens")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) TestMigrateOnInitializedSchema() {
	s.NoError(Migrate(s.ctx, s.db))
}

func (s *PostgresIntegrationSuite) TestActivity_InsertIgnoresDuplicate() {
	store := NewActivityStore(s.db)
	a := testutil.Activity(domain.ProviderStrava, "1")

	s.Require().NoError(store.UpsertActivity(s.ctx, a))

	dup := testutil.Activity(domain.ProviderStrava, "1")
	dup.Name = "changed"
	s.Require().NoError(store.UpsertActivity(s.ctx, dup))

	got, err := store.Get(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(a.Name, got.Name)
	s.True(a.StartTime.Equal(got.StartTime))
	s.Equal(*a.Calories, *got.Calories)
}

func (s *PostgresIntegrationSuite) TestActivity_ConcurrentInsertsKeepOneRow() {
	store := NewActivityStore(s.db)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.UpsertActivity(s.ctx, testutil.Activity(domain.ProviderGarmin, "42"))
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err)
	}

	n, err := store.Count(s.ctx, domain.ProviderGarmin)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *PostgresIntegrationSuite) TestSamples_TransactionalPersist() {
	store := NewActivityStore(s.db)
	tm := NewTransactionManager(s.db)
	a := testutil.Activity(domain.ProviderStrava, "2")
	a.HasStreams = true

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if err := store.UpsertActivity(ctx, a); err != nil {
			return err
		}
		return store.UpsertSamples(ctx, testutil.Samples(a.ID, 1200))
	})
	s.Require().NoError(err)

	samples, err := store.Samples(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Len(samples, 1200)
	s.Equal(int64(0), samples[0].TimeOffset)
	s.Equal(int64(1199), samples[1199].TimeOffset)
	s.Nil(samples[0].Power)
}

func (s *PostgresIntegrationSuite) TestCursor_NeverMovesBackward() {
	store := NewSyncStateStore(s.db)
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	s.Require().NoError(store.SetCursor(s.ctx, domain.ProviderStrava, ts))
	s.Require().NoError(store.SetCursor(s.ctx, domain.ProviderStrava, ts.Add(-time.Hour)))

	cursor, err := store.GetCursor(s.ctx, domain.ProviderStrava)
	s.Require().NoError(err)
	s.Require().NotNil(cursor)
	s.True(ts.Equal(*cursor))
}

func (s *PostgresIntegrationSuite) TestToken_Upsert() {
	store := NewTokenStore(s.db)
	tok := &domain.Token{
		Provider:     domain.ProviderStrava,
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiresAt:    time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		UpdatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	s.Require().NoError(store.SaveToken(s.ctx, tok))

	tok.AccessToken = "b"
	s.Require().NoError(store.SaveToken(s.ctx, tok))

	got, err := store.GetToken(s.ctx, domain.ProviderStrava)
	s.Require().NoError(err)
	s.Equal("b", got.AccessToken)
	s.True(tok.ExpiresAt.Equal(got.ExpiresAt))
}
