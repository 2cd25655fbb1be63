package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"

	"github.com/mrlokans/patterns/internal/database/imports"
	"github.com/mrlokans/patterns/internal/importers/sources"
	"github.com/mrlokans/patterns/internal/tasks"
)

// ImportsController enqueues URL imports and reports their outcome.
type ImportsController struct {
	queue  TaskQueue
	runs   RunStore
	logger *zap.Logger
}

func NewImportsController(queue TaskQueue, runs RunStore, logger *zap.Logger) *ImportsController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportsController{queue: queue, runs: runs, logger: logger}
}

// ImportRequest is the body of POST /api/imports.
type ImportRequest struct {
	URL      string `json:"url" binding:"required"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Brand    string `json:"brand"`
}

// Enqueue handles POST /api/imports
func (ic *ImportsController) Enqueue(c *gin.Context) {
	if ic.queue == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "task queue is disabled"})
		return
	}
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "url is required")
		return
	}
	if _, err := sources.ParseHTTPURL(req.URL); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	ids, err := ic.queue.EnqueueImports(tasks.ImportURLTask{
		URL:      req.URL,
		Name:     req.Name,
		Category: req.Category,
		Brand:    req.Brand,
	})
	if err != nil {
		respondInternalError(c, ic.logger, err, "enqueue import")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": ids[0], "url": req.URL})
}

// TaskStatus handles GET /api/tasks/:id
func (ic *ImportsController) TaskStatus(c *gin.Context) {
	if ic.queue == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "task queue is disabled"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	taskID := c.Param("id")
	status, err := ic.queue.Status(ctx, taskID)
	if err != nil {
		respondInternalError(c, ic.logger, err, "task status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": taskID, "status": taskStatusToString(status)})
}

// Recent handles GET /api/imports
func (ic *ImportsController) Recent(c *gin.Context) {
	limit, _ := parsePagination(c, 20, 100)
	runs, err := ic.runs.Recent(c.Request.Context(), limit)
	if err != nil {
		respondInternalError(c, ic.logger, err, "list import runs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// Get handles GET /api/imports/:run_id
func (ic *ImportsController) Get(c *gin.Context) {
	run, err := ic.runs.GetByRunID(c.Request.Context(), c.Param("run_id"))
	if errors.Is(err, imports.ErrNotFound) {
		respondNotFound(c, "import run")
		return
	}
	if err != nil {
		respondInternalError(c, ic.logger, err, "get import run")
		return
	}
	c.JSON(http.StatusOK, run)
}

func taskStatusToString(status backlite.TaskStatus) string {
	switch status {
	case backlite.TaskStatusPending:
		return "pending"
	case backlite.TaskStatusRunning:
		return "running"
	case backlite.TaskStatusSuccess:
		return "success"
	case backlite.TaskStatusFailure:
		return "failure"
	case backlite.TaskStatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
