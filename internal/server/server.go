// Package server exposes ingestion, position reports, alert polling and
// manual task CRUD over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/nhle/taskradar/internal/model"
	"github.com/nhle/taskradar/internal/store"
	tsync "github.com/nhle/taskradar/internal/sync"
)

// Store is the persistence surface the HTTP handlers use.
type Store interface {
	CreateNotification(ctx context.Context, n model.Notification) (*model.Notification, error)
	CreateTask(ctx context.Context, task model.Task) (*model.Task, error)
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)
	GetTasks(ctx context.Context, filter store.TaskFilter) ([]model.Task, error)
	UpdateTask(ctx context.Context, id string, patch model.TaskPatch, now time.Time) (*model.Task, error)
	CompleteTask(ctx context.Context, id string, now time.Time) error
	DeleteTask(ctx context.Context, id string, now time.Time) error
	GetTaskLocations(ctx context.Context, taskID string) ([]model.TaskLocation, error)
	Ping(ctx context.Context) error
}

// PositionReporter runs location resolution and proximity for a position.
type PositionReporter interface {
	Report(ctx context.Context, pos model.Position) (int, error)
}

// AlertSource hands out queued alerts.
type AlertSource interface {
	Drain() []model.Alert
}

// CycleStatuser reports background cycle health.
type CycleStatuser interface {
	Statuses() []tsync.Status
}

// Deps wires the server to the rest of the application.
type Deps struct {
	Store    Store
	Reporter PositionReporter
	Alerts   AlertSource
	Cycles   CycleStatuser
	Log      logrus.FieldLogger
	Timeout  time.Duration
	Now      func() time.Time

	// OnIngest, when set, is called after a notification is stored.
	OnIngest func()
}

type handler struct {
	Deps
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Timeout <= 0 {
		deps.Timeout = 15 * time.Second
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	h := &handler{Deps: deps}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(deps.Log))

	r.GET("/healthz", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/notifications", h.ingestNotification)
		v1.POST("/position", h.reportPosition)
		v1.GET("/alerts", h.drainAlerts)

		tasks := v1.Group("/tasks")
		tasks.GET("", h.listTasks)
		tasks.POST("", h.createTask)
		tasks.GET("/:id", h.getTask)
		tasks.PATCH("/:id", h.patchTask)
		tasks.DELETE("/:id", h.deleteTask)
		tasks.POST("/:id/complete", h.completeTask)
		tasks.GET("/:id/locations", h.taskLocations)
	}

	return r
}

// ctx bounds a request by the configured timeout.
func (h *handler) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.Timeout)
}

func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
		if len(c.Errors) > 0 {
			entry.WithError(c.Errors.Last().Err).Error("request failed")
			return
		}
		entry.Debug("request")
	}
}

// Serve runs handler on addr until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, h http.Handler, log logrus.FieldLogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("address", addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("http server stopped")
	return nil
}
