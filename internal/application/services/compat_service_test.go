package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/learnmap/core/internal/domain/entities"
	"github.com/learnmap/core/internal/infrastructure/logger"
	"github.com/learnmap/core/internal/ports"
)

// conflictingTaskService fails the first N versioned writes with a stale
// conflict, simulating a concurrent editor racing the compat caller.
type conflictingTaskService struct {
	ports.TaskService
	remaining int
}

func (c *conflictingTaskService) UpdateTask(ctx context.Context, taskID uuid.UUID, expectedVersion int, req ports.UpdateTaskRequest) (*entities.Task, error) {
	if c.remaining > 0 {
		c.remaining--
		return nil, &entities.VersionConflictError{ID: taskID, Expected: expectedVersion, Actual: expectedVersion + 1}
	}
	return c.TaskService.UpdateTask(ctx, taskID, expectedVersion, req)
}

func newCompatEnv(t *testing.T, conflicts int) (*testEnv, *CompatService) {
	t.Helper()
	env := newTestEnv(t)
	inner := ports.TaskService(env.tasks)
	if conflicts > 0 {
		inner = &conflictingTaskService{TaskService: env.tasks, remaining: conflicts}
	}
	compat := NewCompatService(inner, env.topics, env.store, logger.NewNop())
	return env, compat
}

func TestUpdateTaskCompatHappyPath(t *testing.T) {
	env, compat := newCompatEnv(t, 0)
	ctx := context.Background()
	task := env.createTask(t, entities.TaskTypeSingle, entities.TaskConfig{})

	updated, err := compat.UpdateTaskCompat(ctx, task.ID, ports.UpdateTaskRequest{Title: strPtr("compat rename")})
	if err != nil {
		t.Fatalf("UpdateTaskCompat: %v", err)
	}
	if updated.Title != "compat rename" {
		t.Errorf("title = %q, want %q", updated.Title, "compat rename")
	}
	if updated.Version != task.Version+1 {
		t.Errorf("version = %d, want %d", updated.Version, task.Version+1)
	}
}

func TestUpdateTaskCompatRetriesOnce(t *testing.T) {
	env, compat := newCompatEnv(t, 1)
	ctx := context.Background()
	task := env.createTask(t, entities.TaskTypeSingle, entities.TaskConfig{})

	updated, err := compat.UpdateTaskCompat(ctx, task.ID, ports.UpdateTaskRequest{Title: strPtr("second try")})
	if err != nil {
		t.Fatalf("UpdateTaskCompat after one conflict: %v", err)
	}
	if updated.Title != "second try" {
		t.Errorf("title = %q, want %q", updated.Title, "second try")
	}
}

func TestUpdateTaskCompatGivesUpAfterSecondConflict(t *testing.T) {
	env, compat := newCompatEnv(t, 2)
	ctx := context.Background()
	task := env.createTask(t, entities.TaskTypeSingle, entities.TaskConfig{})

	_, err := compat.UpdateTaskCompat(ctx, task.ID, ports.UpdateTaskRequest{Title: strPtr("never lands")})
	if !entities.IsVersionConflict(err) {
		t.Fatalf("err = %v, want VersionConflictError after exhausted retry", err)
	}
}

func TestMarkTaskCompatTransitions(t *testing.T) {
	env, compat := newCompatEnv(t, 0)
	ctx := context.Background()
	task := env.createTask(t, entities.TaskTypeSingle, entities.TaskConfig{})

	done, err := compat.MarkTaskCompletedCompat(ctx, task.ID, env.userID)
	if err != nil {
		t.Fatalf("MarkTaskCompletedCompat: %v", err)
	}
	if done.Status != entities.TaskStatusDone {
		t.Errorf("status = %q, want done", done.Status)
	}
	if done.CompletedBy == nil || *done.CompletedBy != env.userID {
		t.Error("CompletedBy not recorded")
	}

	inProgress, err := compat.MarkTaskInProgressCompat(ctx, task.ID)
	if err != nil {
		t.Fatalf("MarkTaskInProgressCompat: %v", err)
	}
	if inProgress.Status != entities.TaskStatusInProgress {
		t.Errorf("status = %q, want in_progress", inProgress.Status)
	}
	if inProgress.CompletedAt != nil {
		t.Error("CompletedAt should clear when leaving done")
	}

	todo, err := compat.MarkTaskTodoCompat(ctx, task.ID)
	if err != nil {
		t.Fatalf("MarkTaskTodoCompat: %v", err)
	}
	if todo.Status != entities.TaskStatusTodo {
		t.Errorf("status = %q, want todo", todo.Status)
	}
}

func TestUpdateGoalCompat(t *testing.T) {
	env, compat := newCompatEnv(t, 0)
	ctx := context.Background()
	topic := env.createTopic(t, "compat topic")
	goal, err := env.topics.AddGoal(ctx, ports.CreateGoalRequest{TopicID: topic.ID, Title: "compat goal"})
	if err != nil {
		t.Fatalf("AddGoal: %v", err)
	}

	// Bump the version behind the compat caller's back.
	if _, err := env.topics.UpdateGoal(ctx, goal.ID, goal.Version, ports.UpdateGoalRequest{Title: strPtr("racer")}); err != nil {
		t.Fatalf("UpdateGoal: %v", err)
	}

	updated, err := compat.UpdateGoalCompat(ctx, goal.ID, ports.UpdateGoalRequest{Title: strPtr("compat wins")})
	if err != nil {
		t.Fatalf("UpdateGoalCompat: %v", err)
	}
	if updated.Title != "compat wins" {
		t.Errorf("title = %q, want %q", updated.Title, "compat wins")
	}
	if updated.Version != 3 {
		t.Errorf("version = %d, want 3", updated.Version)
	}
}
