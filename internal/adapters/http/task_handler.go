package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/learnmap/core/internal/infrastructure/logger"
	"github.com/learnmap/core/internal/ports"
)

// TaskHandler handles task CRUD and progress action requests
type TaskHandler struct {
	tasks     ports.TaskService
	actions   ports.ActionService
	hierarchy ports.HierarchyService
	logger    *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(tasks ports.TaskService, actions ports.ActionService, hierarchy ports.HierarchyService, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, actions: actions, hierarchy: hierarchy, logger: logger}
}

// CreateTask creates a task, attached to a goal or free-standing
func (h *TaskHandler) CreateTask(c echo.Context) error {
	var req ports.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if req.OwnerID == nil {
		id := currentUserID(c)
		req.OwnerID = &id
	}
	if req.CreatorID == nil {
		id := currentUserID(c)
		req.CreatorID = &id
	}

	task, err := h.tasks.AddTask(c.Request().Context(), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, task)
}

// GetTask returns a single task
func (h *TaskHandler) GetTask(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	task, err := h.tasks.GetTask(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}

// UpdateTask applies a version-guarded partial update
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req ports.VersionedUpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.tasks.UpdateTask(c.Request().Context(), id, req.ExpectedVersion, req.Patch)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}

// DeleteTask archives a task, guarded by the caller's version
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req VersionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.tasks.DeleteTask(c.Request().Context(), id, req.ExpectedVersion); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ports.MessageResponse{Message: "Task archived"})
}

// RestoreTask reactivates an archived task
func (h *TaskHandler) RestoreTask(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	task, err := h.tasks.RestoreTask(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}

// MarkCompleted marks a task done, recording who completed it
func (h *TaskHandler) MarkCompleted(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req VersionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.tasks.MarkCompleted(c.Request().Context(), id, req.ExpectedVersion, currentUserID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}

// MarkInProgress moves a task to in_progress
func (h *TaskHandler) MarkInProgress(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req VersionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.tasks.MarkInProgress(c.Request().Context(), id, req.ExpectedVersion)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}

// MarkTodo moves a task back to todo
func (h *TaskHandler) MarkTodo(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req VersionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.tasks.MarkTodo(c.Request().Context(), id, req.ExpectedVersion)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}

// ReorderTasks rewrites the order of every task under a goal
func (h *TaskHandler) ReorderTasks(c echo.Context) error {
	goalID, err := parseUUIDParam(c, "goalId")
	if err != nil {
		return err
	}

	var req ports.ReorderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.tasks.ReorderTasks(c.Request().Context(), goalID, req.OrderedIDs); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ports.MessageResponse{Message: "Tasks reordered"})
}

// ListActiveTasks returns the caller's cross-topic wall of open tasks
func (h *TaskHandler) ListActiveTasks(c echo.Context) error {
	tasks, err := h.hierarchy.GetActiveTasksForUser(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, tasks)
}

// PerformAction applies any progress action to a task
func (h *TaskHandler) PerformAction(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req ports.ActionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.actions.PerformAction(c.Request().Context(), id, currentUserID(c), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}

// CheckIn records today's check-in on a streak task
func (h *TaskHandler) CheckIn(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	task, err := h.actions.CheckIn(c.Request().Context(), id, currentUserID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}

// CancelCheckIn removes today's check-in
func (h *TaskHandler) CancelCheckIn(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	task, err := h.actions.CancelTodayCheckIn(c.Request().Context(), id, currentUserID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}

// AddCountRequest is the payload for count increments
type AddCountRequest struct {
	Count int `json:"count" validate:"required,min=1"`
}

// AddCount increments a count task
func (h *TaskHandler) AddCount(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req AddCountRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.actions.AddCount(c.Request().Context(), id, currentUserID(c), req.Count)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}

// AddAmountRequest is the payload for accumulative and duration progress
type AddAmountRequest struct {
	Amount  float64 `json:"amount" validate:"omitempty,min=0"`
	Unit    string  `json:"unit" validate:"omitempty,max=50"`
	Minutes int     `json:"minutes" validate:"omitempty,min=0"`
}

// AddAmount adds an amount to an accumulative task, or minutes to a
// duration task
func (h *TaskHandler) AddAmount(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req AddAmountRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	if req.Minutes > 0 {
		task, err := h.actions.AddMinutes(ctx, id, currentUserID(c), req.Minutes)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, task)
	}

	task, err := h.actions.AddAmount(ctx, id, currentUserID(c), req.Amount, req.Unit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}

// ResetProgress wipes a task's progress and action history
func (h *TaskHandler) ResetProgress(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	task, err := h.actions.ResetProgress(c.Request().Context(), id, currentUserID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}
