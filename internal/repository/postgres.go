package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is the pgx-backed Repository implementation against
// the schema in spec §6 (client_api_keys, policies).
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func Connect(ctx context.Context, dsn string, maxConns int32) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("repository: parse dsn: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("repository: connect: %w", err)
	}

	return NewPostgresRepository(pool), nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func (r *PostgresRepository) FindAPIKey(ctx context.Context, keyValue string) (*ClientAPIKey, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, key_value, name, is_active, created_at, metadata
		FROM client_api_keys WHERE key_value = $1`, keyValue)

	var (
		k        ClientAPIKey
		metadata []byte
	)

	if err := row.Scan(&k.ID, &k.KeyValue, &k.Name, &k.IsActive, &k.CreatedAt, &metadata); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("repository: find api key: %w", err)
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &k.Metadata); err != nil {
			return nil, fmt.Errorf("repository: decode api key metadata: %w", err)
		}
	}

	return &k, nil
}

func (r *PostgresRepository) FindPolicy(ctx context.Context, name string) (*PolicyConfig, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, type, config, is_active, description, created_at, updated_at
		FROM policies WHERE name = $1 AND is_active = true`, name)

	p, err := scanPolicy(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}

	return p, err
}

func (r *PostgresRepository) ListPolicies(ctx context.Context, activeOnly bool) ([]*PolicyConfig, error) {
	query := `SELECT id, name, type, config, is_active, description, created_at, updated_at FROM policies`
	if activeOnly {
		query += ` WHERE is_active = true`
	}

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: list policies: %w", err)
	}
	defer rows.Close()

	var out []*PolicyConfig

	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, p)
	}

	return out, rows.Err()
}

func (r *PostgresRepository) CreatePolicy(ctx context.Context, cfg *PolicyConfig) (*PolicyConfig, error) {
	configJSON, err := json.Marshal(cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("repository: encode policy config: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO policies (name, type, config, is_active, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, type, config, is_active, description, created_at, updated_at`,
		cfg.Name, cfg.Type, configJSON, cfg.IsActive, cfg.Description)

	p, err := scanPolicy(row)
	if err != nil {
		return nil, fmt.Errorf("repository: create policy %q: %w", cfg.Name, err)
	}

	return p, nil
}

func (r *PostgresRepository) UpdatePolicy(ctx context.Context, id int64, cfg *PolicyConfig) (*PolicyConfig, error) {
	configJSON, err := json.Marshal(cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("repository: encode policy config: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE policies SET name = $1, type = $2, config = $3, is_active = $4, description = $5, updated_at = now()
		WHERE id = $6
		RETURNING id, name, type, config, is_active, description, created_at, updated_at`,
		cfg.Name, cfg.Type, configJSON, cfg.IsActive, cfg.Description, id)

	p, err := scanPolicy(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}

	return p, err
}

func (r *PostgresRepository) SaveLog(ctx context.Context, entry *LogEntry) error {
	dataJSON, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("repository: encode log data: %w", err)
	}

	var notesJSON []byte
	if entry.Notes != nil {
		notesJSON, err = json.Marshal(entry.Notes)
		if err != nil {
			return fmt.Errorf("repository: encode log notes: %w", err)
		}
	}

	datetime := entry.Datetime
	if datetime.IsZero() {
		datetime = time.Now()
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO luthien_log (transaction_id, datetime, data, datatype, notes)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.TransactionID, datetime, dataJSON, entry.Datatype, notesJSON)
	if err != nil {
		return fmt.Errorf("repository: save log: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*PolicyConfig, error) {
	var (
		p          PolicyConfig
		configJSON []byte
	)

	if err := row.Scan(&p.ID, &p.Name, &p.Type, &configJSON, &p.IsActive, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &p.Config); err != nil {
			return nil, fmt.Errorf("repository: decode policy config: %w", err)
		}
	}

	return &p, nil
}
