package entrypoint

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mrlokans/patterns/internal/config"
	"github.com/mrlokans/patterns/internal/database"
	"github.com/mrlokans/patterns/internal/database/imports"
	"github.com/mrlokans/patterns/internal/database/patterns"
	"github.com/mrlokans/patterns/internal/images"
	"github.com/mrlokans/patterns/internal/importers"
	"github.com/mrlokans/patterns/internal/importers/extractors"
	"github.com/mrlokans/patterns/internal/importers/sources"
	"github.com/mrlokans/patterns/internal/media"
	"github.com/mrlokans/patterns/internal/metrics"
	"github.com/mrlokans/patterns/internal/segment"
	"github.com/mrlokans/patterns/internal/services"
	"github.com/mrlokans/patterns/internal/workpool"
)

// App holds the wired import stack shared by the server and CLI commands.
type App struct {
	DB       *database.Database
	Patterns *patterns.Repository
	Runs     *imports.Repository
	Media    *media.Store
	Target   *patterns.Target
	Pipeline *importers.Pipeline
	Importer *services.ImportService
	Metrics  *metrics.Metrics
}

// Build opens storage and assembles the pipeline. reg may be nil.
func Build(cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) (*App, error) {
	db, err := database.NewDatabase(cfg.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	store, err := media.NewStore(cfg.Media.Dir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize media store: %w", err)
	}

	m := metrics.New(reg)
	pool := workpool.New(cfg.Import.Workers)

	downloader := images.NewDownloader(
		cfg.Images.ToImagesConfig(cfg.Import.UserAgent),
		images.WithPool(pool),
		images.WithLogger(logger.Named("images")),
		images.WithRecorder(m),
	)

	patternRepo := patterns.NewRepository(db.DB)
	target := patterns.NewTarget(patternRepo, downloader, store, logger.Named("target"))

	chain := extractors.DefaultChain(cfg.AI.ToAIConfig(), extractors.Deps{
		Segmenter: segment.New(segment.Default()),
		Pool:      pool,
		Logger:    logger.Named("extract"),
	})

	pipeline := importers.NewPipeline(target, chain,
		importers.WithLogger(logger.Named("pipeline")),
		importers.WithMaxImages(cfg.Images.MaxCount),
		importers.WithTracer(importers.MultiTracer{m, importers.LogTracer{Logger: logger.Named("trace")}}),
	)

	runs := imports.NewRepository(db.DB)
	importer := services.NewImportService(pipeline, runs, newSourceFactory(cfg.Import), cfg.Import.MaxDocumentBytes, logger.Named("import"))

	return &App{
		DB:       db,
		Patterns: patternRepo,
		Runs:     runs,
		Media:    store,
		Target:   target,
		Pipeline: pipeline,
		Importer: importer,
		Metrics:  m,
	}, nil
}

// Close releases the database connection.
func (a *App) Close() error {
	return a.DB.Close()
}

// newSourceFactory picks the headless browser or plain HTTP source for URLs.
func newSourceFactory(cfg config.Import) services.SourceFactory {
	if cfg.RenderJavaScript {
		opts := cfg.ToBrowserOptions()
		return func(rawURL string) importers.Source {
			return sources.NewBrowserSource(rawURL, opts)
		}
	}
	opts := cfg.ToURLOptions()
	return func(rawURL string) importers.Source {
		return sources.NewURLSource(rawURL, opts)
	}
}
