package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/patterns/internal/database"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

// HealthCheck is one named dependency probe.
type HealthCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// DatabaseCheck pings the pattern store.
func DatabaseCheck(db *database.Database) HealthCheck {
	return HealthCheck{Name: "database", Probe: func(ctx context.Context) error {
		sqlDB, err := db.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}}
}

// MediaCheck verifies the image directory exists.
func MediaCheck(dir string) HealthCheck {
	return HealthCheck{Name: "media", Probe: func(context.Context) error {
		info, err := os.Stat(dir)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}
		return nil
	}}
}

var errNotConfigured = errors.New("not configured")

type HealthController struct {
	version string
	checks  []HealthCheck
}

func NewHealthController(version string, checks ...HealthCheck) *HealthController {
	return &HealthController{version: version, checks: checks}
}

// Status runs every probe. A probe with no function reports "not configured"
// without failing the response.
func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string, len(h.checks))
	healthy := true

	for _, check := range h.checks {
		if check.Probe == nil {
			checks[check.Name] = errNotConfigured.Error()
			continue
		}
		if err := check.Probe(c.Request.Context()); err != nil {
			checks[check.Name] = "error: " + err.Error()
			healthy = false
			continue
		}
		checks[check.Name] = "ok"
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	c.IndentedJSON(code, HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	})
}
