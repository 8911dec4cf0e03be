package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/learnmap/core/internal/domain/entities"
	"github.com/learnmap/core/internal/infrastructure/logger"
	"github.com/learnmap/core/internal/ports"
)

// TaskService handles task lifecycle operations. Every mutation runs
// through the version guard so concurrent editors never silently
// overwrite each other.
type TaskService struct {
	store  ports.Store
	logger *logger.Logger
}

// NewTaskService creates a new task service
func NewTaskService(store ports.Store, logger *logger.Logger) *TaskService {
	return &TaskService{
		store:  store,
		logger: logger,
	}
}

// AddTask creates a new task, either under a goal or standalone when
// GoalID is nil. New tasks start at version 1 with empty progress.
func (s *TaskService) AddTask(ctx context.Context, req ports.CreateTaskRequest) (*entities.Task, error) {
	taskType, ok := entities.NormalizeTaskType(req.TaskType)
	if !ok {
		return nil, &entities.InvalidParameterError{Reason: fmt.Sprintf("unknown task type %q", req.TaskType)}
	}

	if req.GoalID != nil {
		goal, err := s.store.Goals().GetByID(ctx, *req.GoalID)
		if err != nil {
			return nil, fmt.Errorf("goal not found: %w", err)
		}
		if goal.IsArchived() {
			return nil, &entities.InvalidStateError{Reason: "cannot add a task to an archived goal"}
		}
	}

	if err := validateTaskConfig(taskType, req.TaskConfig); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = entities.PriorityMedium
	}
	if !priority.IsValid() {
		return nil, &entities.InvalidParameterError{Reason: fmt.Sprintf("unknown priority %q", priority)}
	}

	cycle := req.CycleConfig
	if cycle.CycleType == "" {
		cycle.CycleType = entities.CycleNone
	}
	if !cycle.CycleType.IsValid() {
		return nil, &entities.InvalidParameterError{Reason: fmt.Sprintf("unknown cycle type %q", cycle.CycleType)}
	}

	task := &entities.Task{
		ID:               uuid.New(),
		GoalID:           req.GoalID,
		Title:            req.Title,
		Description:      req.Description,
		Status:           entities.TaskStatusTodo,
		Priority:         priority,
		OrderIndex:       req.OrderIndex,
		TaskType:         taskType,
		TaskConfig:       req.TaskConfig,
		CycleConfig:      cycle,
		ProgressData:     entities.ProgressData{LastUpdated: time.Now()},
		Version:          1,
		OwnerID:          req.OwnerID,
		CreatorID:        req.CreatorID,
		EstimatedMinutes: req.EstimatedMinutes,
	}

	if err := s.store.Tasks().Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Infow("Task created", "task_id", task.ID, "task_type", task.TaskType)

	return task, nil
}

// GetTask retrieves a task by ID
func (s *TaskService) GetTask(ctx context.Context, id uuid.UUID) (*entities.Task, error) {
	task, err := s.store.Tasks().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}

	return task, nil
}

// UpdateTask applies a partial update guarded by the caller's last-seen
// version. The goal binding is immutable after creation.
func (s *TaskService) UpdateTask(ctx context.Context, taskID uuid.UUID, expectedVersion int, req ports.UpdateTaskRequest) (*entities.Task, error) {
	task, err := s.store.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = req.Description
	}
	if req.Status != nil {
		if !req.Status.IsValid() {
			return nil, &entities.InvalidParameterError{Reason: fmt.Sprintf("unknown task status %q", *req.Status)}
		}
		task.Status = *req.Status
	}
	if req.Priority != nil {
		if !req.Priority.IsValid() {
			return nil, &entities.InvalidParameterError{Reason: fmt.Sprintf("unknown priority %q", *req.Priority)}
		}
		task.Priority = *req.Priority
	}
	if req.OrderIndex != nil {
		task.OrderIndex = *req.OrderIndex
	}
	if req.NeedHelp != nil {
		task.NeedHelp = *req.NeedHelp
	}
	if req.HelpMessage != nil {
		task.HelpMessage = req.HelpMessage
	}
	if req.ReplyMessage != nil {
		task.ReplyMessage = req.ReplyMessage
	}
	if req.TaskConfig != nil {
		if err := validateTaskConfig(task.TaskType, *req.TaskConfig); err != nil {
			return nil, err
		}
		task.TaskConfig = *req.TaskConfig
		task.ProgressData.CompletionPercentage = entities.ComputeCompletionPercentage(task.TaskType, task.TaskConfig, task.ProgressData)
	}
	if req.CycleConfig != nil {
		if !req.CycleConfig.CycleType.IsValid() {
			return nil, &entities.InvalidParameterError{Reason: fmt.Sprintf("unknown cycle type %q", req.CycleConfig.CycleType)}
		}
		task.CycleConfig = *req.CycleConfig
	}
	if req.OwnerID != nil {
		task.OwnerID = req.OwnerID
	}
	if req.CollaboratorIDs != nil {
		task.CollaboratorIDs = *req.CollaboratorIDs
	}
	if req.EstimatedMinutes != nil {
		task.EstimatedMinutes = req.EstimatedMinutes
	}
	if req.ActualMinutes != nil {
		task.ActualMinutes = req.ActualMinutes
	}

	if err := s.store.Tasks().UpdateVersioned(ctx, task, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.Infow("Task updated", "task_id", task.ID, "version", task.Version)

	return task, nil
}

// DeleteTask archives a task under the version guard. Archived tasks keep
// their progress and action history for restore.
func (s *TaskService) DeleteTask(ctx context.Context, taskID uuid.UUID, expectedVersion int) error {
	task, err := s.store.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("task not found: %w", err)
	}

	task.Status = entities.TaskStatusArchived
	if err := s.store.Tasks().UpdateVersioned(ctx, task, expectedVersion); err != nil {
		return err
	}

	s.logger.Infow("Task archived", "task_id", taskID)

	return nil
}

// RestoreTask brings an archived task back as todo
func (s *TaskService) RestoreTask(ctx context.Context, taskID uuid.UUID) (*entities.Task, error) {
	task, err := s.store.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}
	if !task.IsArchived() {
		return nil, &entities.InvalidStateError{Reason: "task is not archived"}
	}

	task.Status = entities.TaskStatusTodo
	if err := s.store.Tasks().UpdateVersioned(ctx, task, task.Version); err != nil {
		return nil, err
	}

	s.logger.Infow("Task restored", "task_id", taskID)

	return task, nil
}

// MarkCompleted switches a task to done and records who finished it
func (s *TaskService) MarkCompleted(ctx context.Context, taskID uuid.UUID, expectedVersion int, userID uuid.UUID) (*entities.Task, error) {
	task, err := s.store.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}

	now := time.Now()
	task.Status = entities.TaskStatusDone
	task.CompletedAt = &now
	task.CompletedBy = &userID

	if err := s.store.Tasks().UpdateVersioned(ctx, task, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.Infow("Task completed", "task_id", taskID, "completed_by", userID)

	return task, nil
}

// MarkInProgress switches a task to in_progress and clears completion
func (s *TaskService) MarkInProgress(ctx context.Context, taskID uuid.UUID, expectedVersion int) (*entities.Task, error) {
	return s.setStatus(ctx, taskID, expectedVersion, entities.TaskStatusInProgress)
}

// MarkTodo switches a task back to todo and clears completion
func (s *TaskService) MarkTodo(ctx context.Context, taskID uuid.UUID, expectedVersion int) (*entities.Task, error) {
	return s.setStatus(ctx, taskID, expectedVersion, entities.TaskStatusTodo)
}

func (s *TaskService) setStatus(ctx context.Context, taskID uuid.UUID, expectedVersion int, status entities.TaskStatus) (*entities.Task, error) {
	task, err := s.store.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}

	task.Status = status
	task.CompletedAt = nil
	task.CompletedBy = nil

	if err := s.store.Tasks().UpdateVersioned(ctx, task, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.Infow("Task status changed", "task_id", taskID, "status", status)

	return task, nil
}

// ReorderTasks rewrites the order indexes of a goal's tasks to match the
// given sequence
func (s *TaskService) ReorderTasks(ctx context.Context, goalID uuid.UUID, orderedIDs []uuid.UUID) error {
	if len(orderedIDs) == 0 {
		return &entities.InvalidParameterError{Reason: "ordered ids must not be empty"}
	}

	if err := s.store.Tasks().Reorder(ctx, goalID, orderedIDs); err != nil {
		return fmt.Errorf("failed to reorder tasks: %w", err)
	}

	s.logger.Infow("Tasks reordered", "goal_id", goalID, "count", len(orderedIDs))

	return nil
}

// validateTaskConfig checks that the per-type target is present and
// positive for the types that need one.
func validateTaskConfig(taskType entities.TaskType, cfg entities.TaskConfig) error {
	switch taskType {
	case entities.TaskTypeCount:
		if cfg.TargetCount <= 0 {
			return &entities.InvalidParameterError{Reason: "count tasks need a positive target_count"}
		}
	case entities.TaskTypeStreak:
		if cfg.TargetDays <= 0 {
			return &entities.InvalidParameterError{Reason: "streak tasks need a positive target_days"}
		}
	case entities.TaskTypeAccumulative:
		if cfg.TargetAmount <= 0 {
			return &entities.InvalidParameterError{Reason: "accumulative tasks need a positive target_amount"}
		}
	case entities.TaskTypeDuration:
		if cfg.TargetMinutes <= 0 {
			return &entities.InvalidParameterError{Reason: "duration tasks need a positive target_minutes"}
		}
	}
	return nil
}
