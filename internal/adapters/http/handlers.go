package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/learnmap/core/internal/application/services"
	"github.com/learnmap/core/internal/infrastructure/logger"
	"github.com/learnmap/core/internal/ports"
)

// UserIDKey is the echo context key the identity middleware stores the
// caller's profile ID under.
const UserIDKey = "user_id"

func currentUserID(c echo.Context) uuid.UUID {
	if id, ok := c.Get(UserIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

func parseUUIDParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+name)
	}
	return id, nil
}

// ProfileHandler handles user profile requests
type ProfileHandler struct {
	users  *services.UserService
	logger *logger.Logger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(users *services.UserService, logger *logger.Logger) *ProfileHandler {
	return &ProfileHandler{users: users, logger: logger}
}

// CreateProfileRequest is the payload for profile registration
type CreateProfileRequest struct {
	Name   string  `json:"name" validate:"required,max=200"`
	Email  string  `json:"email" validate:"required,email"`
	Avatar *string `json:"avatar"`
	Color  *string `json:"color" validate:"omitempty,max=20"`
}

// CreateProfile registers a display profile
func (h *ProfileHandler) CreateProfile(c echo.Context) error {
	var req CreateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	profile, err := h.users.CreateProfile(c.Request().Context(), req.Name, req.Email, req.Avatar, req.Color)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, profile)
}

// GetProfile returns a profile by ID
func (h *ProfileHandler) GetProfile(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	profile, err := h.users.GetProfile(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, profile)
}

// GetCurrentProfile returns the caller's profile
func (h *ProfileHandler) GetCurrentProfile(c echo.Context) error {
	profile, err := h.users.GetProfile(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, profile)
}

// TopicHandler handles topic, goal and hierarchy requests
type TopicHandler struct {
	topics    ports.TopicService
	hierarchy ports.HierarchyService
	logger    *logger.Logger
}

// NewTopicHandler creates a new topic handler
func NewTopicHandler(topics ports.TopicService, hierarchy ports.HierarchyService, logger *logger.Logger) *TopicHandler {
	return &TopicHandler{topics: topics, hierarchy: hierarchy, logger: logger}
}

// ListTopics returns every visible topic for the caller with goals and
// tasks attached
func (h *TopicHandler) ListTopics(c echo.Context) error {
	topics, err := h.hierarchy.FetchTopics(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, topics)
}

// CreateTopic creates a topic owned by the caller
func (h *TopicHandler) CreateTopic(c echo.Context) error {
	var req ports.CreateTopicRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	topic, err := h.topics.CreateTopic(c.Request().Context(), currentUserID(c), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, topic)
}

// GetTopic returns a single topic without children
func (h *TopicHandler) GetTopic(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	topic, err := h.topics.GetTopic(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, topic)
}

// GetTopicStructure returns a topic with its full goal and task tree
func (h *TopicHandler) GetTopicStructure(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	topic, err := h.hierarchy.GetTopicWithStructure(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, topic)
}

// UpdateTopic applies a partial update to a topic
func (h *TopicHandler) UpdateTopic(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req ports.UpdateTopicRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	topic, err := h.topics.UpdateTopic(c.Request().Context(), id, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, topic)
}

// DeleteTopic archives a topic
func (h *TopicHandler) DeleteTopic(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.topics.DeleteTopic(c.Request().Context(), id); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ports.MessageResponse{Message: "Topic archived"})
}

// RestoreTopic reactivates an archived topic
func (h *TopicHandler) RestoreTopic(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.topics.RestoreTopic(c.Request().Context(), id); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ports.MessageResponse{Message: "Topic restored"})
}

// CollaboratorRequest names the profile to add or remove
type CollaboratorRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
}

// AddCollaborator adds a profile to a topic's collaborator list
func (h *TopicHandler) AddCollaborator(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req CollaboratorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.topics.AddCollaborator(c.Request().Context(), id, req.UserID); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ports.MessageResponse{Message: "Collaborator added"})
}

// RemoveCollaborator removes a profile from a topic's collaborator list
func (h *TopicHandler) RemoveCollaborator(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	userID, err := parseUUIDParam(c, "userId")
	if err != nil {
		return err
	}

	if err := h.topics.RemoveCollaborator(c.Request().Context(), id, userID); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ports.MessageResponse{Message: "Collaborator removed"})
}

// CreateGoal adds a goal under a topic
func (h *TopicHandler) CreateGoal(c echo.Context) error {
	topicID, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req ports.CreateGoalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	req.TopicID = topicID
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	goal, err := h.topics.AddGoal(c.Request().Context(), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, goal)
}

// UpdateGoal applies a version-guarded partial update to a goal
func (h *TopicHandler) UpdateGoal(c echo.Context) error {
	goalID, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req ports.VersionedUpdateGoalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	goal, err := h.topics.UpdateGoal(c.Request().Context(), goalID, req.ExpectedVersion, req.Patch)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, goal)
}

// VersionRequest carries the caller's last-seen version for guarded writes
type VersionRequest struct {
	ExpectedVersion int `json:"expected_version" validate:"required,min=1"`
}

// DeleteGoal archives a goal, guarded by the caller's version
func (h *TopicHandler) DeleteGoal(c echo.Context) error {
	goalID, err := parseUUIDParam(c, "id")
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

	if err := h.topics.DeleteGoal(c.Request().Context(), goalID, req.ExpectedVersion); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ports.MessageResponse{Message: "Goal archived"})
}

// RestoreGoal reactivates an archived goal
func (h *TopicHandler) RestoreGoal(c echo.Context) error {
	goalID, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	goal, err := h.topics.RestoreGoal(c.Request().Context(), goalID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, goal)
}
