package results

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/models"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/sqlutil"
)

const schema = `
CREATE TABLE IF NOT EXISTS race_results (
    id          BIGSERIAL PRIMARY KEY,
    room_code   TEXT        NOT NULL,
    round       INTEGER     NOT NULL,
    text        TEXT        NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL,
    placements  JSONB       NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS race_results_finished_at_idx ON race_results (finished_at DESC);
`

// PostgresRepository stores results in Postgres
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Migrate creates the results table if it does not exist
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	err := sqlutil.Run(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, schema)
		return err
	})
	if err != nil {
		return fmt.Errorf("create race_results schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SaveRound(ctx context.Context, result models.RoundResult) error {
	if err := validate(result); err != nil {
		return err
	}

	placements, err := json.Marshal(result.Placements)
	if err != nil {
		return fmt.Errorf("marshal placements: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO race_results (room_code, round, text, started_at, finished_at, placements)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		result.RoomCode, result.Round, result.Text, result.StartedAt, result.FinishedAt, placements,
	)
	if err != nil {
		return fmt.Errorf("insert race result: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]models.RoundResult, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT room_code, round, text, started_at, finished_at, placements
		FROM race_results
		ORDER BY finished_at DESC, id DESC
		LIMIT $1`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query race results: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.RoundResult, error) {
		var (
			res        models.RoundResult
			placements []byte
		)
		if err := row.Scan(&res.RoomCode, &res.Round, &res.Text, &res.StartedAt, &res.FinishedAt, &placements); err != nil {
			return res, err
		}
		if err := json.Unmarshal(placements, &res.Placements); err != nil {
			return res, fmt.Errorf("unmarshal placements: %w", err)
		}
		return res, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan race results: %w", err)
	}
	return out, nil
}
