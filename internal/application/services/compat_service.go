package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/learnmap/core/internal/domain/entities"
	"github.com/learnmap/core/internal/infrastructure/logger"
	"github.com/learnmap/core/internal/ports"
)

// CompatService serves callers that predate versioned updates. It
// resolves the current version itself and retries a conflicting write
// exactly once before giving up, which keeps legacy blind writes safe
// without hiding persistent contention.
type CompatService struct {
	tasks  ports.TaskService
	topics ports.TopicService
	store  ports.Store
	logger *logger.Logger
}

// NewCompatService creates a new compat service
func NewCompatService(tasks ports.TaskService, topics ports.TopicService, store ports.Store, logger *logger.Logger) *CompatService {
	return &CompatService{
		tasks:  tasks,
		topics: topics,
		store:  store,
		logger: logger,
	}
}

// UpdateTaskCompat applies a patch using the stored version, retrying
// once on conflict
func (s *CompatService) UpdateTaskCompat(ctx context.Context, taskID uuid.UUID, req ports.UpdateTaskRequest) (*entities.Task, error) {
	return s.retryTask(ctx, taskID, func(version int) (*entities.Task, error) {
		return s.tasks.UpdateTask(ctx, taskID, version, req)
	})
}

// MarkTaskCompletedCompat marks a task done using the stored version
func (s *CompatService) MarkTaskCompletedCompat(ctx context.Context, taskID, userID uuid.UUID) (*entities.Task, error) {
	return s.retryTask(ctx, taskID, func(version int) (*entities.Task, error) {
		return s.tasks.MarkCompleted(ctx, taskID, version, userID)
	})
}

// MarkTaskInProgressCompat marks a task in_progress using the stored version
func (s *CompatService) MarkTaskInProgressCompat(ctx context.Context, taskID uuid.UUID) (*entities.Task, error) {
	return s.retryTask(ctx, taskID, func(version int) (*entities.Task, error) {
		return s.tasks.MarkInProgress(ctx, taskID, version)
	})
}

// MarkTaskTodoCompat marks a task todo using the stored version
func (s *CompatService) MarkTaskTodoCompat(ctx context.Context, taskID uuid.UUID) (*entities.Task, error) {
	return s.retryTask(ctx, taskID, func(version int) (*entities.Task, error) {
		return s.tasks.MarkTodo(ctx, taskID, version)
	})
}

// UpdateGoalCompat applies a goal patch using the stored version,
// retrying once on conflict
func (s *CompatService) UpdateGoalCompat(ctx context.Context, goalID uuid.UUID, req ports.UpdateGoalRequest) (*entities.Goal, error) {
	goal, err := s.store.Goals().GetByID(ctx, goalID)
	if err != nil {
		return nil, fmt.Errorf("goal not found: %w", err)
	}

	updated, err := s.topics.UpdateGoal(ctx, goalID, goal.Version, req)
	if err == nil || !entities.IsVersionConflict(err) {
		return updated, err
	}

	s.logger.Debugw("Retrying goal update after version conflict", "goal_id", goalID)

	goal, err = s.store.Goals().GetByID(ctx, goalID)
	if err != nil {
		return nil, fmt.Errorf("goal not found: %w", err)
	}
	return s.topics.UpdateGoal(ctx, goalID, goal.Version, req)
}

func (s *CompatService) retryTask(ctx context.Context, taskID uuid.UUID, attempt func(version int) (*entities.Task, error)) (*entities.Task, error) {
	task, err := s.store.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}

	updated, err := attempt(task.Version)
	if err == nil || !entities.IsVersionConflict(err) {
		return updated, err
	}

	s.logger.Debugw("Retrying task update after version conflict", "task_id", taskID)

	task, err = s.store.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}
	return attempt(task.Version)
}
