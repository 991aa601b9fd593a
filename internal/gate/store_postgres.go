package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists token records and elder preferences in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS token_logs (
			id TEXT PRIMARY KEY,
			generated_token TEXT NOT NULL,
			elder_id TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			description TEXT NOT NULL DEFAULT '',
			date_created TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_token_logs_token_elder ON token_logs (generated_token, elder_id);`,
		`CREATE TABLE IF NOT EXISTS elder_preferences (
			elder_id TEXT PRIMARY KEY,
			synthesis_engine TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) LookupToken(ctx context.Context, token, elderID string) (TokenRecord, error) {
	var record TokenRecord
	err := s.pool.QueryRow(ctx,
		`SELECT id, generated_token, elder_id, is_active, description, date_created
		 FROM token_logs
		 WHERE generated_token=$1 AND elder_id=$2 AND is_active=TRUE`,
		token,
		elderID,
	).Scan(&record.ID, &record.GeneratedToken, &record.ElderID, &record.IsActive, &record.Description, &record.DateCreated)
	if errors.Is(err, pgx.ErrNoRows) {
		return TokenRecord{}, ErrNotFound
	}
	if err != nil {
		return TokenRecord{}, fmt.Errorf("lookup token: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) SaveToken(ctx context.Context, record TokenRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.DateCreated.IsZero() {
		record.DateCreated = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO token_logs (id, generated_token, elder_id, is_active, description, date_created)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (generated_token, elder_id)
		 DO UPDATE SET is_active=EXCLUDED.is_active, description=EXCLUDED.description`,
		record.ID,
		record.GeneratedToken,
		record.ElderID,
		record.IsActive,
		record.Description,
		record.DateCreated,
	)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (s *PostgresStore) EnginePreference(ctx context.Context, elderID string) (string, error) {
	var engine string
	err := s.pool.QueryRow(ctx,
		`SELECT synthesis_engine FROM elder_preferences WHERE elder_id=$1`,
		elderID,
	).Scan(&engine)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup engine preference: %w", err)
	}
	return engine, nil
}

func (s *PostgresStore) SaveEnginePreference(ctx context.Context, elderID, engine string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO elder_preferences (elder_id, synthesis_engine, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (elder_id)
		 DO UPDATE SET synthesis_engine=EXCLUDED.synthesis_engine, updated_at=now()`,
		elderID,
		engine,
	)
	if err != nil {
		return fmt.Errorf("save engine preference: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
