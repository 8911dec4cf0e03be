package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/learnmap/core/internal/infrastructure/logger"
	"github.com/learnmap/core/internal/ports"
)

// CompatHandler serves the legacy routes that carry no version argument.
// Each write resolves the stored version itself and retries a conflict
// once before giving up.
type CompatHandler struct {
	compat ports.CompatService
	logger *logger.Logger
}

// NewCompatHandler creates a new compat handler
func NewCompatHandler(compat ports.CompatService, logger *logger.Logger) *CompatHandler {
	return &CompatHandler{compat: compat, logger: logger}
}

// UpdateTask applies an unversioned partial task update
func (h *CompatHandler) UpdateTask(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req ports.UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.compat.UpdateTaskCompat(c.Request().Context(), id, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}

// UpdateGoal applies an unversioned partial goal update
func (h *CompatHandler) UpdateGoal(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req ports.UpdateGoalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	goal, err := h.compat.UpdateGoalCompat(c.Request().Context(), id, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, goal)
}

// MarkCompleted marks a task done without a version argument
func (h *CompatHandler) MarkCompleted(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	task, err := h.compat.MarkTaskCompletedCompat(c.Request().Context(), id, currentUserID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}

// MarkInProgress moves a task to in_progress without a version argument
func (h *CompatHandler) MarkInProgress(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	task, err := h.compat.MarkTaskInProgressCompat(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}

// MarkTodo moves a task back to todo without a version argument
func (h *CompatHandler) MarkTodo(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	task, err := h.compat.MarkTaskTodoCompat(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}
