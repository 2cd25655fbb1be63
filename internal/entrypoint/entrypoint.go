package entrypoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/mrlokans/patterns/internal/config"
	http_controllers "github.com/mrlokans/patterns/internal/http"
	"github.com/mrlokans/patterns/internal/importers"
	"github.com/mrlokans/patterns/internal/logging"
	"github.com/mrlokans/patterns/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Logging.Level, cfg.Logging.Format)
}

// Serve runs srv until SIGINT or SIGTERM, then shuts it down.
func Serve(srv *http.Server, cfg *config.Config, logger *zap.Logger, onShutdown ShutdownFunc) error {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}
	logger.Info("shutting down server", zap.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop the task queue before the server
	if onShutdown != nil {
		onShutdown(ctx)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server exiting")
	return nil
}

// Run starts the ops server and the import queue workers.
func Run(cfg *config.Config, version string, logger *zap.Logger) error {
	logger.Info("starting patterns", zap.String("version", version))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app, err := Build(cfg, logger, reg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("error closing database", zap.Error(err))
		}
	}()

	routerCfg := http_controllers.RouterConfig{
		Database:      app.DB,
		Version:       version,
		Logger:        logger.Named("http"),
		Gatherer:      reg,
		Patterns:      app.Patterns,
		ImageAttacher: app.Target,
		Media:         app.Media,
		MediaDir:      app.Media.Dir(),
		Runs:          app.Runs,
	}

	var taskClient *tasks.Client
	var taskCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, cfg.Tasks.ToTasksConfig(), logger.Named("tasks"))
		if err != nil {
			return fmt.Errorf("initialize task queue: %w", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				logger.Error("error closing task client", zap.Error(err))
			}
		}()
		taskClient.Register(tasks.NewImportURLQueue(app.Importer, logger.Named("tasks")))

		var taskCtx context.Context
		taskCtx, taskCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
		routerCfg.Tasks = taskClient
	}

	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: http_controllers.NewRouter(routerCfg),
	}

	return Serve(srv, cfg, logger, func(ctx context.Context) {
		if taskClient != nil {
			taskClient.Stop(ctx)
			taskCancel()
		}
	})
}

// Import runs one import per target and writes each result as JSON.
// It returns false when any import failed.
func Import(ctx context.Context, cfg *config.Config, logger *zap.Logger, targets []string, hints importers.Hints, out io.Writer) (bool, error) {
	app, err := Build(cfg, logger, nil)
	if err != nil {
		return false, err
	}
	defer app.Close()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	ok := true
	for _, target := range targets {
		result := app.Importer.Import(ctx, target, hints)
		if !result.Success {
			ok = false
		}
		if err := enc.Encode(result); err != nil {
			return false, err
		}
	}
	return ok, nil
}

// Enqueue adds URL import tasks for a running server to process.
func Enqueue(cfg *config.Config, logger *zap.Logger, urls []string, hints importers.Hints) ([]string, error) {
	client, err := tasks.NewClient(cfg.Database.Path, cfg.Tasks.ToTasksConfig(), logger.Named("tasks"))
	if err != nil {
		return nil, err
	}
	defer client.Close()

	batch := make([]tasks.ImportURLTask, len(urls))
	for i, u := range urls {
		batch[i] = tasks.ImportURLTask{URL: u, Name: hints.Name, Category: hints.Category, Brand: hints.Brand}
	}
	return client.EnqueueImports(batch...)
}
