package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AdielsonMedeiros/POC-PDF/internal/common"
	"github.com/AdielsonMedeiros/POC-PDF/internal/entity"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS templates (
	id          BIGSERIAL PRIMARY KEY,
	fingerprint TEXT UNIQUE NOT NULL,
	name        TEXT,
	description TEXT,
	field_count INTEGER DEFAULT 0,
	created_at  TIMESTAMPTZ DEFAULT now(),
	updated_at  TIMESTAMPTZ DEFAULT now()
);

CREATE TABLE IF NOT EXISTS field_mappings (
	id             BIGSERIAL PRIMARY KEY,
	template_id    BIGINT NOT NULL REFERENCES templates(id) ON DELETE CASCADE,
	field_type     TEXT NOT NULL,
	label          TEXT,
	original_value TEXT,
	left_pos       DOUBLE PRECISION,
	top_pos        DOUBLE PRECISION,
	right_pos      DOUBLE PRECISION,
	bottom_pos     DOUBLE PRECISION
);

CREATE INDEX IF NOT EXISTS idx_field_mappings_template ON field_mappings(template_id);
`

// IsPostgresDSN reports whether the configured DSN targets Postgres rather
// than a SQLite file path.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// PostgresRepository is the pgx-backed template store for deployments that
// already run Postgres.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgres connects a pool and ensures the schema exists.
func OpenPostgres(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*PostgresRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "poc-pdf"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = cfg.StatementTimeout.String()
	}

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("template store ready", "backend", "postgres")
	return &PostgresRepository{pool: pool, logger: logger}, nil
}

// HealthCheck pings the pool to catch DSN issues early.
func (r *PostgresRepository) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) Save(ctx context.Context, fingerprint string, mappings []entity.FieldMapping, name, description *string) (int64, error) {
	mappings = validMappings(mappings)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var templateID int64
	err = tx.QueryRow(ctx, `SELECT id FROM templates WHERE fingerprint = $1`, fingerprint).Scan(&templateID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		err = tx.QueryRow(ctx,
			`INSERT INTO templates (fingerprint, name, description, field_count) VALUES ($1, $2, $3, $4) RETURNING id`,
			fingerprint, name, description, len(mappings)).Scan(&templateID)
		if err != nil {
			return 0, fmt.Errorf("insert template: %w", err)
		}
	case err != nil:
		return 0, fmt.Errorf("lookup template: %w", err)
	default:
		if _, err := tx.Exec(ctx, `
			UPDATE templates
			SET name = COALESCE($1, name),
			    description = COALESCE($2, description),
			    field_count = $3,
			    updated_at = now()
			WHERE id = $4`,
			name, description, len(mappings), templateID); err != nil {
			return 0, fmt.Errorf("update template: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM field_mappings WHERE template_id = $1`, templateID); err != nil {
			return 0, fmt.Errorf("clear mappings: %w", err)
		}
	}

	for _, m := range mappings {
		if _, err := tx.Exec(ctx, `
			INSERT INTO field_mappings (template_id, field_type, label, original_value, left_pos, top_pos, right_pos, bottom_pos)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			templateID, m.FieldType, m.Label, m.OriginalValue, m.Left, m.Top, m.Right, m.Bottom); err != nil {
			return 0, fmt.Errorf("insert mapping: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return templateID, nil
}

func (r *PostgresRepository) Load(ctx context.Context, fingerprint string) (*entity.Template, error) {
	var tpl entity.Template
	var name, desc *string
	err := r.pool.QueryRow(ctx, `
		SELECT id, fingerprint, name, description, field_count, created_at, updated_at
		FROM templates WHERE fingerprint = $1`, fingerprint).
		Scan(&tpl.ID, &tpl.Fingerprint, &name, &desc, &tpl.FieldCount, &tpl.CreatedAt, &tpl.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan template: %w", err)
	}
	if name != nil {
		tpl.Name = *name
	}
	if desc != nil {
		tpl.Description = *desc
	}

	rows, err := r.pool.Query(ctx, `
		SELECT field_type, label, original_value, left_pos, top_pos, right_pos, bottom_pos
		FROM field_mappings WHERE template_id = $1 ORDER BY id`, tpl.ID)
	if err != nil {
		return nil, fmt.Errorf("query mappings: %w", err)
	}
	defer rows.Close()

	tpl.Mappings = []entity.FieldMapping{}
	for rows.Next() {
		var m entity.FieldMapping
		var label, original *string
		var left, top, right, bottom *float64
		if err := rows.Scan(&m.FieldType, &label, &original, &left, &top, &right, &bottom); err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		// lenient read: missing coordinates load as zero
		m.Label = deref(label)
		m.OriginalValue = deref(original)
		m.Left = derefF(left)
		m.Top = derefF(top)
		m.Right = derefF(right)
		m.Bottom = derefF(bottom)
		tpl.Mappings = append(tpl.Mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mappings: %w", err)
	}
	return &tpl, nil
}

func (r *PostgresRepository) Exists(ctx context.Context, fingerprint string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM templates WHERE fingerprint = $1)`, fingerprint).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return ok, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM templates`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, fingerprint string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM templates WHERE fingerprint = $1`, fingerprint)
	if err != nil {
		return false, fmt.Errorf("delete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]entity.Template, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, fingerprint, name, description, field_count, created_at, updated_at
		FROM templates ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []entity.Template
	for rows.Next() {
		var tpl entity.Template
		var name, desc *string
		if err := rows.Scan(&tpl.ID, &tpl.Fingerprint, &name, &desc, &tpl.FieldCount, &tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		tpl.Name = deref(name)
		tpl.Description = deref(desc)
		out = append(out, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefF(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
