package results

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var pgRepo *PostgresRepository

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	container, pool, err := startPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "postgres tests disabled: %v\n", err)
		os.Exit(m.Run())
	}

	pgRepo = NewPostgresRepository(pool)
	if err := pgRepo.Migrate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		pool.Close()
		_ = container.Terminate(ctx)
		os.Exit(1)
	}

	code := m.Run()

	pool.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func startPostgres(ctx context.Context) (c *postgres.PostgresContainer, pool *pgxpool.Pool, err error) {
	// testcontainers panics when no docker host can be found
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("docker unavailable: %v", r)
		}
	}()

	c, err = postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("swiftroyale"),
		postgres.WithUsername("racer"),
		postgres.WithPassword("racer"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return nil, nil, err
	}

	connString, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, nil, err
	}
	pool, err = pgxpool.New(ctx, connString)
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, nil, err
	}
	return c, pool, nil
}

func TestPostgresRepository(t *testing.T) {
	if pgRepo == nil {
		t.Skip("postgres container not available")
	}
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("SaveRound", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			require.NoError(t, pgRepo.SaveRound(ctx, sampleResult(fmt.Sprintf("PGRM0%d", i), i, base.Add(time.Duration(i)*time.Minute))))
		}
	})

	t.Run("SaveRound_Invalid", func(t *testing.T) {
		assert.ErrorIs(t, pgRepo.SaveRound(ctx, sampleResult("", 1, base)), ErrInvalidResult)
	})

	t.Run("ListRecent", func(t *testing.T) {
		list, err := pgRepo.ListRecent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, []string{"PGRM03", "PGRM02"}, codes(list))

		got := list[0]
		assert.Equal(t, 3, got.Round)
		assert.True(t, got.FinishedAt.Equal(base.Add(3*time.Minute)))
		require.Len(t, got.Placements, 2)
		assert.Equal(t, "Alice", got.Placements[0].Username)
		require.NotNil(t, got.Placements[0].FinishedTime)
		assert.Nil(t, got.Placements[1].FinishedTime)
	})

	t.Run("Migrate_Idempotent", func(t *testing.T) {
		assert.NoError(t, pgRepo.Migrate(ctx))
	})
}
