package db

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/supernova-labs/supernova/pkg/models"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore is the node's persistent store for checkpoint metadata,
// swap sessions, and recovery error history.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx.
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %w", err)
	}

	log.Println("[db] connected to PostgreSQL")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema applies the embedded schema migrations.
func (s *PostgresStore) InitSchema() error {
	_, err := s.pool.Exec(context.Background(), schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %w", err)
	}
	log.Println("[db] schema initialized")
	return nil
}

// GetPool exposes the connection pool to subsystems that need direct access.
func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}

// SaveCheckpointInfo upserts one checkpoint's metadata row.
func (s *PostgresStore) SaveCheckpointInfo(ctx context.Context, info models.CheckpointInfo) error {
	sql := `
		INSERT INTO checkpoints (height, block_hash, checkpoint_type, utxo_hash, data_hash, size_bytes, verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (height) DO UPDATE
		SET block_hash = EXCLUDED.block_hash, checkpoint_type = EXCLUDED.checkpoint_type,
		    utxo_hash = EXCLUDED.utxo_hash, data_hash = EXCLUDED.data_hash,
		    size_bytes = EXCLUDED.size_bytes, verified = EXCLUDED.verified;
	`
	_, err := s.pool.Exec(ctx, sql, info.Height, info.BlockHash, info.Type.String(), info.UTXOHash, info.DataHash, info.SizeBytes, info.Verified)
	return err
}

// LoadCheckpointHeights returns every recorded checkpoint height, newest first.
func (s *PostgresStore) LoadCheckpointHeights(ctx context.Context) ([]uint64, error) {
	rows, err := s.pool.Query(ctx, `SELECT height FROM checkpoints ORDER BY height DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var heights []uint64
	for rows.Next() {
		var h uint64
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		heights = append(heights, h)
	}
	return heights, rows.Err()
}

// SaveSwapSession upserts a swap session's top-level state, used to persist
// in-flight swaps across node restarts.
func (s *PostgresStore) SaveSwapSession(ctx context.Context, session *models.SwapSession) error {
	sql := `
		INSERT INTO swap_sessions (swap_id, state, bitcoin_amount, nova_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (swap_id) DO UPDATE
		SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at;
	`
	_, err := s.pool.Exec(ctx, sql,
		session.Setup.SwapID[:],
		session.State.String(),
		session.Setup.BitcoinAmount,
		session.Setup.NovaAmount,
		time.Unix(session.CreatedAt, 0),
		time.Unix(session.UpdatedAt, 0),
	)
	return err
}

// CountSwapsByState returns how many persisted swap sessions are currently
// in the given state, used for node-startup recovery accounting.
func (s *PostgresStore) CountSwapsByState(ctx context.Context, state models.SwapState) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM swap_sessions WHERE state = $1`, state.String()).Scan(&count)
	return count, err
}

// SaveRecoveryError records one classified recovery error for later
// diagnosis, independent of the in-memory rolling history the recovery
// manager keeps for live decisions.
func (s *PostgresStore) SaveRecoveryError(ctx context.Context, component, category, message string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO recovery_errors (component, category, message) VALUES ($1, $2, $3)`,
		component, category, message,
	)
	return err
}
