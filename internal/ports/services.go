package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/learnmap/core/internal/domain/entities"
)

// TopicService interface for topic and goal management operations
type TopicService interface {
	CreateTopic(ctx context.Context, ownerID uuid.UUID, req CreateTopicRequest) (*entities.Topic, error)
	GetTopic(ctx context.Context, id uuid.UUID) (*entities.Topic, error)
	UpdateTopic(ctx context.Context, id uuid.UUID, req UpdateTopicRequest) (*entities.Topic, error)
	DeleteTopic(ctx context.Context, id uuid.UUID) error
	RestoreTopic(ctx context.Context, id uuid.UUID) error
	AddCollaborator(ctx context.Context, topicID, userID uuid.UUID) error
	RemoveCollaborator(ctx context.Context, topicID, userID uuid.UUID) error

	AddGoal(ctx context.Context, req CreateGoalRequest) (*entities.Goal, error)
	UpdateGoal(ctx context.Context, goalID uuid.UUID, expectedVersion int, req UpdateGoalRequest) (*entities.Goal, error)
	DeleteGoal(ctx context.Context, goalID uuid.UUID, expectedVersion int) error
	RestoreGoal(ctx context.Context, goalID uuid.UUID) (*entities.Goal, error)
}

// TaskService interface for task management operations. Mutations take the
// caller's last-seen version and fail with VersionConflictError when stale.
type TaskService interface {
	AddTask(ctx context.Context, req CreateTaskRequest) (*entities.Task, error)
	GetTask(ctx context.Context, id uuid.UUID) (*entities.Task, error)
	UpdateTask(ctx context.Context, taskID uuid.UUID, expectedVersion int, req UpdateTaskRequest) (*entities.Task, error)
	DeleteTask(ctx context.Context, taskID uuid.UUID, expectedVersion int) error
	RestoreTask(ctx context.Context, taskID uuid.UUID) (*entities.Task, error)
	MarkCompleted(ctx context.Context, taskID uuid.UUID, expectedVersion int, userID uuid.UUID) (*entities.Task, error)
	MarkInProgress(ctx context.Context, taskID uuid.UUID, expectedVersion int) (*entities.Task, error)
	MarkTodo(ctx context.Context, taskID uuid.UUID, expectedVersion int) (*entities.Task, error)
	ReorderTasks(ctx context.Context, goalID uuid.UUID, orderedIDs []uuid.UUID) error
}

// ActionService interface for the transactional progress engine
type ActionService interface {
	PerformAction(ctx context.Context, taskID, userID uuid.UUID, req ActionRequest) (*entities.Task, error)
	CheckIn(ctx context.Context, taskID, userID uuid.UUID) (*entities.Task, error)
	AddCount(ctx context.Context, taskID, userID uuid.UUID, count int) (*entities.Task, error)
	AddAmount(ctx context.Context, taskID, userID uuid.UUID, amount float64, unit string) (*entities.Task, error)
	AddMinutes(ctx context.Context, taskID, userID uuid.UUID, minutes int) (*entities.Task, error)
	Complete(ctx context.Context, taskID, userID uuid.UUID) (*entities.Task, error)
	ResetProgress(ctx context.Context, taskID, userID uuid.UUID) (*entities.Task, error)
	CancelTodayCheckIn(ctx context.Context, taskID, userID uuid.UUID) (*entities.Task, error)
}

// HierarchyService interface for assembled read models
type HierarchyService interface {
	FetchTopics(ctx context.Context, userID uuid.UUID) ([]*entities.Topic, error)
	GetTopicWithStructure(ctx context.Context, topicID uuid.UUID) (*entities.Topic, error)
	GetActiveTasksForUser(ctx context.Context, userID uuid.UUID) ([]ActiveTask, error)
}

// CompatService mirrors the legacy call shapes that carried no version
// argument. Each method resolves the current version itself and retries a
// conflicting write exactly once.
type CompatService interface {
	UpdateTaskCompat(ctx context.Context, taskID uuid.UUID, req UpdateTaskRequest) (*entities.Task, error)
	UpdateGoalCompat(ctx context.Context, goalID uuid.UUID, req UpdateGoalRequest) (*entities.Goal, error)
	MarkTaskCompletedCompat(ctx context.Context, taskID, userID uuid.UUID) (*entities.Task, error)
	MarkTaskInProgressCompat(ctx context.Context, taskID uuid.UUID) (*entities.Task, error)
	MarkTaskTodoCompat(ctx context.Context, taskID uuid.UUID) (*entities.Task, error)
}

// Request/Response Types

// Topic related types
type CreateTopicRequest struct {
	Title           string  `json:"title" validate:"required,max=200"`
	Description     *string `json:"description" validate:"omitempty,max=2000"`
	Subject         *string `json:"subject" validate:"omitempty,max=100"`
	IsCollaborative bool    `json:"is_collaborative"`
	ShowAvatars     bool    `json:"show_avatars"`
}

type UpdateTopicRequest struct {
	Title           *string               `json:"title" validate:"omitempty,max=200"`
	Description     *string               `json:"description" validate:"omitempty,max=2000"`
	Subject         *string               `json:"subject" validate:"omitempty,max=100"`
	Status          *entities.TopicStatus `json:"status" validate:"omitempty"`
	IsCollaborative *bool                 `json:"is_collaborative"`
	ShowAvatars     *bool                 `json:"show_avatars"`
}

// Goal related types
type CreateGoalRequest struct {
	TopicID     uuid.UUID         `json:"topic_id" validate:"required"`
	Title       string            `json:"title" validate:"required,max=200"`
	Description *string           `json:"description" validate:"omitempty,max=2000"`
	Priority    entities.Priority `json:"priority" validate:"omitempty"`
	OrderIndex  int               `json:"order_index"`
	OwnerID     *uuid.UUID        `json:"owner_id"`
}

type UpdateGoalRequest struct {
	Title           *string              `json:"title" validate:"omitempty,max=200"`
	Description     *string              `json:"description" validate:"omitempty,max=2000"`
	Status          *entities.GoalStatus `json:"status" validate:"omitempty"`
	Priority        *entities.Priority   `json:"priority" validate:"omitempty"`
	OrderIndex      *int                 `json:"order_index"`
	NeedHelp        *bool                `json:"need_help"`
	HelpMessage     *string              `json:"help_message" validate:"omitempty,max=2000"`
	ReplyMessage    *string              `json:"reply_message" validate:"omitempty,max=2000"`
	RepliedBy       *uuid.UUID           `json:"replied_by"`
	CollaboratorIDs *entities.UUIDSlice  `json:"collaborator_ids"`
}

// Task related types
type CreateTaskRequest struct {
	GoalID           *uuid.UUID           `json:"goal_id"`
	Title            string               `json:"title" validate:"required,max=500"`
	Description      *string              `json:"description" validate:"omitempty,max=2000"`
	TaskType         string               `json:"task_type" validate:"required"`
	TaskConfig       entities.TaskConfig  `json:"task_config"`
	CycleConfig      entities.CycleConfig `json:"cycle_config"`
	Priority         entities.Priority    `json:"priority" validate:"omitempty"`
	OrderIndex       int                  `json:"order_index"`
	OwnerID          *uuid.UUID           `json:"owner_id"`
	CreatorID        *uuid.UUID           `json:"creator_id"`
	EstimatedMinutes *int                 `json:"estimated_minutes" validate:"omitempty,min=0"`
}

type UpdateTaskRequest struct {
	Title            *string               `json:"title" validate:"omitempty,max=500"`
	Description      *string               `json:"description" validate:"omitempty,max=2000"`
	Status           *entities.TaskStatus  `json:"status" validate:"omitempty"`
	Priority         *entities.Priority    `json:"priority" validate:"omitempty"`
	OrderIndex       *int                  `json:"order_index"`
	NeedHelp         *bool                 `json:"need_help"`
	HelpMessage      *string               `json:"help_message" validate:"omitempty,max=2000"`
	ReplyMessage     *string               `json:"reply_message" validate:"omitempty,max=2000"`
	TaskConfig       *entities.TaskConfig  `json:"task_config"`
	CycleConfig      *entities.CycleConfig `json:"cycle_config"`
	OwnerID          *uuid.UUID            `json:"owner_id"`
	CollaboratorIDs  *entities.UUIDSlice   `json:"collaborator_ids"`
	EstimatedMinutes *int                  `json:"estimated_minutes" validate:"omitempty,min=0"`
	ActualMinutes    *int                  `json:"actual_minutes" validate:"omitempty,min=0"`
}

// Action related types
type ActionRequest struct {
	ActionType string  `json:"action_type" validate:"required"`
	ActionDate string  `json:"action_date" validate:"omitempty,datetime=2006-01-02"`
	Count      int     `json:"count" validate:"omitempty,min=0"`
	Amount     float64 `json:"amount" validate:"omitempty,min=0"`
	Unit       string  `json:"unit" validate:"omitempty,max=50"`
	Minutes    int     `json:"minutes" validate:"omitempty,min=0"`
}

type VersionedUpdateTaskRequest struct {
	ExpectedVersion int               `json:"expected_version" validate:"required,min=1"`
	Patch           UpdateTaskRequest `json:"patch"`
}

type VersionedUpdateGoalRequest struct {
	ExpectedVersion int               `json:"expected_version" validate:"required,min=1"`
	Patch           UpdateGoalRequest `json:"patch"`
}

type ReorderRequest struct {
	OrderedIDs []uuid.UUID `json:"ordered_ids" validate:"required,min=1"`
}

// ActiveTask is a flattened row for the cross-topic task wall.
type ActiveTask struct {
	Task       *entities.Task `json:"task"`
	TopicID    *uuid.UUID     `json:"topic_id"`
	TopicTitle string         `json:"topic_title"`
	GoalTitle  string         `json:"goal_title"`
}

// Response types for common structures
type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ConflictResponse carries the stored version so clients can refresh.
type ConflictResponse struct {
	Message        string `json:"message"`
	CurrentVersion int    `json:"current_version"`
}
