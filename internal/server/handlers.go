package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/taskradar/internal/model"
	"github.com/nhle/taskradar/internal/store"
)

type notificationIn struct {
	ID        string    `json:"id"`
	SourceApp string    `json:"source_app" binding:"required"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *handler) ingestNotification(c *gin.Context) {
	var in notificationIn
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid notification: %v", err)
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	n, err := h.Store.CreateNotification(ctx, model.Notification{
		ID:        in.ID,
		SourceApp: in.SourceApp,
		Title:     in.Title,
		Content:   in.Content,
		Timestamp: in.Timestamp,
	})
	if err != nil {
		writeErr(c, err)
		return
	}

	if h.OnIngest != nil {
		h.OnIngest()
	}
	c.JSON(http.StatusCreated, n)
}

type positionIn struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

func (h *handler) reportPosition(c *gin.Context) {
	var in positionIn
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid position: %v", err)
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	n, err := h.Reporter.Report(ctx, model.Position{Latitude: *in.Latitude, Longitude: *in.Longitude})
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts_enqueued": n})
}

func (h *handler) drainAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alerts": h.Alerts.Drain()})
}

type taskIn struct {
	Title             string         `json:"title" binding:"required"`
	Description       string         `json:"description"`
	Category          model.Category `json:"category"`
	Priority          model.Priority `json:"priority"`
	Status            model.Status   `json:"status"`
	DueDate           *time.Time     `json:"due_date"`
	LocationDependent bool           `json:"location_dependent"`
	WeatherDependent  bool           `json:"weather_dependent"`
	TimeDependent     bool           `json:"time_dependent"`
}

func (h *handler) createTask(c *gin.Context) {
	var in taskIn
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid task: %v", err)
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	task, err := h.Store.CreateTask(ctx, model.Task{
		Title:             in.Title,
		Description:       in.Description,
		Category:          in.Category,
		Priority:          in.Priority,
		Status:            in.Status,
		DueDate:           in.DueDate,
		Source:            model.SourceManual,
		LocationDependent: in.LocationDependent,
		WeatherDependent:  in.WeatherDependent,
		TimeDependent:     in.TimeDependent,
		CreatedAt:         h.Now(),
	})
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *handler) getTask(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	task, err := h.Store.GetTaskByID(ctx, c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *handler) listTasks(c *gin.Context) {
	filter, err := parseTaskFilter(c)
	if err != nil {
		writeErr(c, err)
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	tasks, err := h.Store.GetTasks(ctx, filter)
	if err != nil {
		writeErr(c, err)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *handler) patchTask(c *gin.Context) {
	var patch model.TaskPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid patch: %v", err)
		return
	}
	if patch.IsEmpty() {
		badRequest(c, "patch sets no fields")
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	task, err := h.Store.UpdateTask(ctx, c.Param("id"), patch, h.Now())
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *handler) completeTask(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	id := c.Param("id")
	if err := h.Store.CompleteTask(ctx, id, h.Now()); err != nil {
		writeErr(c, err)
		return
	}

	task, err := h.Store.GetTaskByID(ctx, id)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *handler) deleteTask(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Store.DeleteTask(ctx, c.Param("id"), h.Now()); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) taskLocations(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	id := c.Param("id")
	if _, err := h.Store.GetTaskByID(ctx, id); err != nil {
		writeErr(c, err)
		return
	}

	locations, err := h.Store.GetTaskLocations(ctx, id)
	if err != nil {
		writeErr(c, err)
		return
	}

	// Markers are reported through the status field, not as places.
	status := "resolved"
	out := make([]model.TaskLocation, 0, len(locations))
	for _, l := range locations {
		switch l.PlaceID {
		case model.PlaceIDPendingSync:
			status = "pending"
		case model.PlaceIDNoResults:
			status = "no_results"
		default:
			out = append(out, l)
		}
	}
	if len(locations) == 0 {
		status = "none"
	}

	c.JSON(http.StatusOK, gin.H{"status": status, "locations": out})
}

func (h *handler) health(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	code := http.StatusOK
	body := gin.H{"status": "ok", "database": "ok"}
	if err := h.Store.Ping(ctx); err != nil {
		code = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["database"] = err.Error()
	}
	if h.Cycles != nil {
		body["cycles"] = h.Cycles.Statuses()
	}
	c.JSON(code, body)
}

// parseTaskFilter reads list filters from the query string.
func parseTaskFilter(c *gin.Context) (store.TaskFilter, error) {
	var f store.TaskFilter

	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st := model.Status(strings.TrimSpace(s))
			if !st.Valid() {
				return f, invalidParam("status", s)
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	if raw := c.Query("category"); raw != "" {
		cat := model.Category(raw)
		if !cat.Valid() {
			return f, invalidParam("category", raw)
		}
		f.Category = &cat
	}
	if raw := c.Query("priority"); raw != "" {
		p := model.Priority(raw)
		if !p.Valid() {
			return f, invalidParam("priority", raw)
		}
		f.Priority = &p
	}
	if raw := c.Query("source_app"); raw != "" {
		f.SourceApp = &raw
	}
	if raw := c.Query("q"); raw != "" {
		f.Query = &raw
	}

	f.SortBy = c.Query("sort")
	f.SortDesc = c.Query("desc") == "true"

	var err error
	if f.Limit, err = intParam(c, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = intParam(c, "offset"); err != nil {
		return f, err
	}
	return f, nil
}

func intParam(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, invalidParam(name, raw)
	}
	return v, nil
}
