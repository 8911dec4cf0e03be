package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/learnmap/core/internal/domain/entities"
	"github.com/learnmap/core/internal/ports"
)

func strPtr(s string) *string { return &s }

func TestUpdateTaskBumpsVersionByOne(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t, entities.TaskTypeSingle, entities.TaskConfig{})

	updated, err := env.tasks.UpdateTask(ctx, task.ID, task.Version, ports.UpdateTaskRequest{
		Title: strPtr("renamed"),
	})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if updated.Version != task.Version+1 {
		t.Errorf("version = %d, want %d", updated.Version, task.Version+1)
	}
	if updated.Title != "renamed" {
		t.Errorf("title = %q, want %q", updated.Title, "renamed")
	}
}

func TestUpdateTaskStaleVersionConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t, entities.TaskTypeSingle, entities.TaskConfig{})

	if _, err := env.tasks.UpdateTask(ctx, task.ID, task.Version, ports.UpdateTaskRequest{Title: strPtr("first")}); err != nil {
		t.Fatalf("first update: %v", err)
	}

	_, err := env.tasks.UpdateTask(ctx, task.ID, task.Version, ports.UpdateTaskRequest{Title: strPtr("second")})
	if !entities.IsVersionConflict(err) {
		t.Fatalf("err = %v, want VersionConflictError", err)
	}

	var vc *entities.VersionConflictError
	if !errors.As(err, &vc) {
		t.Fatalf("could not unwrap conflict from %v", err)
	}
	if vc.Expected != task.Version || vc.Actual != task.Version+1 {
		t.Errorf("conflict = expected %d actual %d, want expected %d actual %d",
			vc.Expected, vc.Actual, task.Version, task.Version+1)
	}

	// The losing write must not have touched the row.
	current, _ := env.store.Tasks().GetByID(ctx, task.ID)
	if current.Title != "first" {
		t.Errorf("title = %q, want %q", current.Title, "first")
	}
}

func TestConcurrentUpdatesExactlyOneWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t, entities.TaskTypeSingle, entities.TaskConfig{})

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.tasks.UpdateTask(ctx, task.ID, task.Version, ports.UpdateTaskRequest{
				Title: strPtr("contender"),
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else if !entities.IsVersionConflict(err) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("winners = %d, want exactly 1", wins)
	}

	current, _ := env.store.Tasks().GetByID(ctx, task.ID)
	if current.Version != task.Version+1 {
		t.Errorf("version = %d, want %d", current.Version, task.Version+1)
	}
}

func TestDeleteAndRestoreTaskRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t, entities.TaskTypeCount, entities.TaskConfig{TargetCount: 5})

	if _, err := env.actions.AddCount(ctx, task.ID, env.userID, 3); err != nil {
		t.Fatalf("AddCount: %v", err)
	}
	current, _ := env.store.Tasks().GetByID(ctx, task.ID)

	if err := env.tasks.DeleteTask(ctx, task.ID, current.Version); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	archived, _ := env.store.Tasks().GetByID(ctx, task.ID)
	if archived.Status != entities.TaskStatusArchived {
		t.Fatalf("status = %q, want archived", archived.Status)
	}

	restored, err := env.tasks.RestoreTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("RestoreTask: %v", err)
	}
	if restored.Status != entities.TaskStatusTodo {
		t.Errorf("status = %q, want todo", restored.Status)
	}
	// Progress survives the archive round trip.
	if restored.ProgressData.CurrentCount != 3 {
		t.Errorf("count = %d, want 3 after restore", restored.ProgressData.CurrentCount)
	}

	log, _ := env.store.Actions().ListByTask(ctx, task.ID)
	if len(log) != 1 {
		t.Errorf("action log length = %d, want 1 after restore", len(log))
	}
}

func TestRestoreActiveTaskFails(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, entities.TaskTypeSingle, entities.TaskConfig{})

	_, err := env.tasks.RestoreTask(context.Background(), task.ID)
	if !entities.IsInvalidState(err) {
		t.Fatalf("err = %v, want InvalidStateError", err)
	}
}

func TestAddTaskRejectsBadConfig(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		taskType string
		cfg      entities.TaskConfig
	}{
		{"count without target", "count", entities.TaskConfig{}},
		{"streak without target", "streak", entities.TaskConfig{}},
		{"accumulative without target", "accumulative", entities.TaskConfig{Unit: "pages"}},
		{"duration without target", "duration", entities.TaskConfig{}},
		{"unknown type", "weird", entities.TaskConfig{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.tasks.AddTask(ctx, ports.CreateTaskRequest{
				Title:      "bad",
				TaskType:   tc.taskType,
				TaskConfig: tc.cfg,
			})
			if !entities.IsInvalidParameter(err) {
				t.Fatalf("err = %v, want InvalidParameterError", err)
			}
		})
	}
}

func TestCheckInAliasCreatesStreakTask(t *testing.T) {
	env := newTestEnv(t)

	task, err := env.tasks.AddTask(context.Background(), ports.CreateTaskRequest{
		Title:      "legacy habit",
		TaskType:   "check_in",
		TaskConfig: entities.TaskConfig{TargetDays: 5},
	})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if task.TaskType != entities.TaskTypeStreak {
		t.Errorf("task type = %q, want streak", task.TaskType)
	}
}
