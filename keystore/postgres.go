package keystore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stegseal/stegseal-go/internal/crypto"
)

const createTable = `
CREATE TABLE IF NOT EXISTS stegseal_keys (
	identity     TEXT PRIMARY KEY,
	public_key   BYTEA NOT NULL,
	private_key  BYTEA NOT NULL,
	wrapped      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Postgres stores key pairs in the stegseal_keys table.
type Postgres struct {
	pool    *pgxpool.Pool
	wrapper *Wrapper
	log     *slog.Logger
}

// NewPostgres returns a store backed by pool. Call Migrate once before use.
func NewPostgres(pool *pgxpool.Pool, wrapper *Wrapper, log *slog.Logger) *Postgres {
	if log == nil {
		log = slog.Default()
	}
	if wrapper == nil {
		log.Warn("Postgres key store has no master key, private keys are stored unencrypted")
	}
	return &Postgres{pool: pool, wrapper: wrapper, log: log}
}

// Migrate creates the key table if it does not exist.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create stegseal_keys: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *Postgres) Get(ctx context.Context, identity string) (*crypto.KeyPair, error) {
	query := `
		SELECT public_key, private_key, wrapped, created_at
		FROM stegseal_keys
		WHERE identity = $1
	`

	r := record{Version: recordVersion, Identity: identity}
	err := s.pool.QueryRow(ctx, query, identity).Scan(&r.PublicKey, &r.PrivateKey, &r.Wrapped, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query key pair: %w", err)
	}

	return r.keyPair(s.wrapper)
}

// Put implements Store with a single upsert, keeping the original created_at.
func (s *Postgres) Put(ctx context.Context, identity string, kp *crypto.KeyPair) error {
	if err := checkPut(identity, kp); err != nil {
		return err
	}

	r, err := newRecord(s.wrapper, identity, kp, timeNow())
	if err != nil {
		return err
	}

	query := `
		INSERT INTO stegseal_keys (identity, public_key, private_key, wrapped, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (identity) DO UPDATE SET
			public_key = EXCLUDED.public_key,
			private_key = EXCLUDED.private_key,
			wrapped = EXCLUDED.wrapped,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := s.pool.Exec(ctx, query, r.Identity, r.PublicKey, r.PrivateKey, r.Wrapped, r.CreatedAt); err != nil {
		return fmt.Errorf("failed to store key pair: %w", err)
	}

	s.log.Debug("Stored key pair in postgres", slog.Bool("wrapped", r.Wrapped))
	return nil
}

// Delete implements Store.
func (s *Postgres) Delete(ctx context.Context, identity string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM stegseal_keys WHERE identity = $1`, identity)
	if err != nil {
		return fmt.Errorf("failed to delete key pair: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List implements Store.
func (s *Postgres) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `SELECT identity, public_key, created_at FROM stegseal_keys ORDER BY identity`)
	if err != nil {
		return nil, fmt.Errorf("failed to list key pairs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var r record
		if err := rows.Scan(&r.Identity, &r.PublicKey, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan key pair: %w", err)
		}
		e, err := r.entry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list key pairs: %w", err)
	}
	return out, nil
}
