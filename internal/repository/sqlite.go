package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AdielsonMedeiros/POC-PDF/internal/entity"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS templates (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	fingerprint TEXT UNIQUE NOT NULL,
	name        TEXT,
	description TEXT,
	field_count INTEGER DEFAULT 0,
	created_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS field_mappings (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	template_id    INTEGER NOT NULL,
	field_type     TEXT NOT NULL,
	label          TEXT,
	original_value TEXT,
	left_pos       REAL,
	top_pos        REAL,
	right_pos      REAL,
	bottom_pos     REAL,
	FOREIGN KEY (template_id) REFERENCES templates(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_templates_fingerprint ON templates(fingerprint);
CREATE INDEX IF NOT EXISTS idx_field_mappings_template ON field_mappings(template_id);
`

// SQLiteRepository is the default, file-backed template store.
type SQLiteRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (and if needed creates) the template database at path.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := "file:" + url.PathEscape(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// database/sql pooling fights sqlite's single-writer model
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("template store ready", "backend", "sqlite", "path", path)
	return &SQLiteRepository{db: db, logger: logger}, nil
}

// DB exposes the underlying handle so the embedding store can share the file.
func (r *SQLiteRepository) DB() *sql.DB { return r.db }

func (r *SQLiteRepository) Close() error { return r.db.Close() }

func (r *SQLiteRepository) Save(ctx context.Context, fingerprint string, mappings []entity.FieldMapping, name, description *string) (int64, error) {
	mappings = validMappings(mappings)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var templateID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM templates WHERE fingerprint = ?`, fingerprint).Scan(&templateID)
	switch {
	case err == sql.ErrNoRows:
		res, err := tx.ExecContext(ctx,
			`INSERT INTO templates (fingerprint, name, description, field_count) VALUES (?, ?, ?, ?)`,
			fingerprint, name, description, len(mappings))
		if err != nil {
			return 0, fmt.Errorf("insert template: %w", err)
		}
		templateID, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("template id: %w", err)
		}
	case err != nil:
		return 0, fmt.Errorf("lookup template: %w", err)
	default:
		if _, err := tx.ExecContext(ctx, `
			UPDATE templates
			SET name = COALESCE(?, name),
			    description = COALESCE(?, description),
			    field_count = ?,
			    updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			name, description, len(mappings), templateID); err != nil {
			return 0, fmt.Errorf("update template: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM field_mappings WHERE template_id = ?`, templateID); err != nil {
			return 0, fmt.Errorf("clear mappings: %w", err)
		}
	}

	for _, m := range mappings {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO field_mappings (template_id, field_type, label, original_value, left_pos, top_pos, right_pos, bottom_pos)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			templateID, m.FieldType, m.Label, m.OriginalValue, m.Left, m.Top, m.Right, m.Bottom); err != nil {
			return 0, fmt.Errorf("insert mapping: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	r.logger.Debug("template saved", "fingerprint", fingerprint, "template_id", templateID, "fields", len(mappings))
	return templateID, nil
}

func (r *SQLiteRepository) Load(ctx context.Context, fingerprint string) (*entity.Template, error) {
	tpl, err := scanTemplateRow(r.db.QueryRowContext(ctx, `
		SELECT id, fingerprint, name, description, field_count, created_at, updated_at
		FROM templates WHERE fingerprint = ?`, fingerprint))
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT field_type, label, original_value, left_pos, top_pos, right_pos, bottom_pos
		FROM field_mappings WHERE template_id = ? ORDER BY id`, tpl.ID)
	if err != nil {
		return nil, fmt.Errorf("query mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tpl.Mappings = []entity.FieldMapping{}
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		tpl.Mappings = append(tpl.Mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mappings: %w", err)
	}
	return tpl, nil
}

func (r *SQLiteRepository) Exists(ctx context.Context, fingerprint string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM templates WHERE fingerprint = ?`, fingerprint).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return true, nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM templates`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, fingerprint string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM templates WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return false, fmt.Errorf("delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]entity.Template, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, fingerprint, name, description, field_count, created_at, updated_at
		FROM templates ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []entity.Template
	for rows.Next() {
		tpl, err := scanTemplateRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplateRow(row rowScanner) (*entity.Template, error) {
	var (
		tpl        entity.Template
		name, desc sql.NullString
		created    time.Time
		updated    time.Time
	)
	err := row.Scan(&tpl.ID, &tpl.Fingerprint, &name, &desc, &tpl.FieldCount, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan template: %w", err)
	}
	tpl.Name = name.String
	tpl.Description = desc.String
	tpl.CreatedAt = created
	tpl.UpdatedAt = updated
	return &tpl, nil
}

// scanMapping reads one mapping row. Missing coordinates default to zero
// instead of failing the whole template load (lenient-read policy).
func scanMapping(row rowScanner) (entity.FieldMapping, error) {
	var m entity.FieldMapping
	var label, original sql.NullString
	var left, top, right, bottom sql.NullFloat64
	if err := row.Scan(&m.FieldType, &label, &original, &left, &top, &right, &bottom); err != nil {
		return entity.FieldMapping{}, fmt.Errorf("scan mapping: %w", err)
	}
	m.Label = label.String
	m.OriginalValue = original.String
	m.Left = left.Float64
	m.Top = top.Float64
	m.Right = right.Float64
	m.Bottom = bottom.Float64
	return m, nil
}
