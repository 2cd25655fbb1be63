package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"

	"github.com/mrlokans/patterns/internal/importers/sources"
)

// Client runs background imports on a backlite queue stored next to the
// pattern database.
type Client struct {
	queue   *backlite.Client
	db      *sql.DB
	config  Config
	logger  *zap.Logger
	running atomic.Bool
}

// TasksDBPath derives the queue file from the pattern database path:
// "data/patterns.db" becomes "data/patterns-tasks.db".
func TasksDBPath(mainDBPath string) string {
	ext := filepath.Ext(mainDBPath)
	return strings.TrimSuffix(mainDBPath, ext) + "-tasks" + ext
}

func openQueueDB(path string, workers int) (*sql.DB, error) {
	// WAL keeps enqueueing CLI processes from blocking the server's workers.
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open tasks database: %w", err)
	}
	db.SetMaxOpenConns(workers + 4)
	db.SetMaxIdleConns(workers + 1)
	db.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// NewClient opens the queue database and installs the backlite schema.
// Queues must be registered before Start.
func NewClient(mainDBPath string, cfg Config, logger *zap.Logger) (*Client, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := openQueueDB(TasksDBPath(mainDBPath), cfg.Workers)
	if err != nil {
		return nil, err
	}
	queue, err := backlite.NewClient(backlite.ClientConfig{
		DB:              db,
		NumWorkers:      cfg.Workers,
		ReleaseAfter:    cfg.ReleaseAfter,
		CleanupInterval: cfg.CleanupInterval,
		Logger:          queueLogger{logger.Sugar()},
	})
	if err == nil {
		err = queue.Install()
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("set up task queue: %w", err)
	}

	return &Client{queue: queue, db: db, config: cfg, logger: logger}, nil
}

func (c *Client) Config() Config {
	return c.config
}

func (c *Client) Register(queues ...backlite.Queue) {
	for _, q := range queues {
		c.queue.Register(q)
	}
}

// Start launches the workers. Repeated calls are ignored.
func (c *Client) Start(ctx context.Context) {
	if !c.running.CompareAndSwap(false, true) {
		return
	}
	c.logger.Info("task queue started", zap.Int("workers", c.config.Workers))
	c.queue.Start(ctx)
}

// Stop waits for running imports. It reports false when ctx expired first.
func (c *Client) Stop(ctx context.Context) bool {
	if !c.running.Load() {
		return true
	}
	drained := c.queue.Stop(ctx)
	if drained {
		c.logger.Info("task queue stopped")
	} else {
		c.logger.Warn("task queue stopped before running imports finished")
	}
	return drained
}

func (c *Client) Close() error {
	return c.db.Close()
}

// EnqueueImports validates every URL, then saves all tasks in one
// operation and returns their IDs in order.
func (c *Client) EnqueueImports(imports ...ImportURLTask) ([]string, error) {
	batch := make([]backlite.Task, 0, len(imports))
	for _, t := range imports {
		if _, err := sources.ParseHTTPURL(t.URL); err != nil {
			return nil, err
		}
		batch = append(batch, t)
	}
	ids, err := c.queue.Add(batch...).Save()
	if err != nil {
		return nil, fmt.Errorf("enqueue imports: %w", err)
	}
	c.logger.Debug("imports enqueued", zap.Strings("task_ids", ids))
	return ids, nil
}

func (c *Client) Status(ctx context.Context, taskID string) (backlite.TaskStatus, error) {
	return c.queue.Status(ctx, taskID)
}

// queueLogger routes backlite's key-value logs through zap.
type queueLogger struct {
	sugar *zap.SugaredLogger
}

func (l queueLogger) Info(message string, params ...any) {
	l.sugar.Infow(message, params...)
}

func (l queueLogger) Error(message string, params ...any) {
	l.sugar.Errorw(message, params...)
}
