package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mrlokans/patterns/internal/database"
)

// RouterConfig contains the dependencies of the HTTP router.
type RouterConfig struct {
	Database *database.Database
	Version  string
	Logger   *zap.Logger

	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer

	Patterns      PatternStore
	ImageAttacher ImageAttacher
	Media         MediaRemover
	// MediaDir is probed by /health when set.
	MediaDir string

	Runs RunStore
	// Tasks is nil when the queue is disabled.
	Tasks TaskQueue
}
