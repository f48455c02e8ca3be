// Package app wires the document pipeline from configuration. The cmd
// entrypoints share this bootstrap so the CLI, the daemon and the admin
// tool agree on backend selection and degradation behavior.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"

	"github.com/AdielsonMedeiros/POC-PDF/internal/common"
	"github.com/AdielsonMedeiros/POC-PDF/internal/export"
	"github.com/AdielsonMedeiros/POC-PDF/internal/extract"
	"github.com/AdielsonMedeiros/POC-PDF/internal/pipeline"
	"github.com/AdielsonMedeiros/POC-PDF/internal/propose/gemini"
	"github.com/AdielsonMedeiros/POC-PDF/internal/repository"
	"github.com/AdielsonMedeiros/POC-PDF/internal/template"
	"github.com/AdielsonMedeiros/POC-PDF/internal/vector"
)

// App holds the wired components and owns their lifecycles.
type App struct {
	Config    *common.Config
	Repo      repository.TemplateRepository
	Vector    *vector.Store
	Cache     *template.Cache
	Processor *processor.Processor
	Export    *export.Service

	gemini      *gemini.Client
	embeddingDB *sql.DB
	logger      *slog.Logger
}

// New builds the full pipeline. Missing credentials or binaries degrade
// per component instead of failing the bootstrap; only the template
// store is required.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{Config: cfg, logger: logger}

	var embedDB *sql.DB
	if repository.IsPostgresDSN(cfg.Database.DSN) {
		repo, err := repository.OpenPostgres(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("open template store: %w", err)
		}
		a.Repo = repo
		// Embeddings always live in a local sqlite file. With a
		// Postgres template store they get their own database next to
		// the default data dir.
		embedDB, err = openEmbeddingDB(filepath.Join("data", "embeddings.db"))
		if err != nil {
			logger.Warn("app.embeddings.unavailable", "error", err)
			embedDB = nil
		}
		a.embeddingDB = embedDB
	} else {
		repo, err := repository.OpenSQLite(ctx, cfg.Database.DSN, logger)
		if err != nil {
			return nil, fmt.Errorf("open template store: %w", err)
		}
		a.Repo = repo
		embedDB = repo.DB()
	}

	gc, err := gemini.NewClient(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	a.gemini = gc

	if embedDB != nil {
		store, err := vector.NewStore(ctx, embedDB, gc, logger)
		if err != nil {
			logger.Warn("app.vector.unavailable", "error", err)
		} else {
			a.Vector = store
		}
	}

	var similarity template.Similarity
	if a.Vector != nil {
		similarity = a.Vector
	}
	a.Cache = template.NewCache(a.Repo, similarity, cfg.Cache.SimilarityThreshold, logger)

	extractor := extract.NewExtractor(
		extract.DefaultEngine(cfg.Extract, logger),
		cfg.Extract.NativeTextThreshold,
		logger,
	)
	a.Processor = processor.NewProcessor(extractor, a.Cache, gc, processor.NewPDFRenderer(logger), logger)
	a.Export = export.NewService(a.Repo, logger)

	return a, nil
}

// Store adapts the wired components to the admin surface: reads hit the
// repository, deletes go through the cache so embeddings are cleaned up.
func (a *App) Store() *AdminStore {
	return &AdminStore{repo: a.Repo, cache: a.Cache}
}

func (a *App) Close() error {
	var firstErr error
	if a.gemini != nil {
		if err := a.gemini.Close(); err != nil {
			firstErr = err
		}
	}
	if a.embeddingDB != nil {
		if err := a.embeddingDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := a.Repo.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func openEmbeddingDB(path string) (*sql.DB, error) {
	dsn := "file:" + url.PathEscape(path) + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
