package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/learnmap/core/internal/adapters/repository/memstore"
	"github.com/learnmap/core/internal/domain/entities"
	"github.com/learnmap/core/internal/domain/progress"
	"github.com/learnmap/core/internal/infrastructure/logger"
	"github.com/learnmap/core/internal/ports"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	store   *memstore.Store
	topics  *TopicService
	tasks   *TaskService
	actions *ActionService
	userID  uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memstore.New()
	log := logger.NewNop()

	env := &testEnv{
		store:   store,
		topics:  NewTopicService(store, log),
		tasks:   NewTaskService(store, log),
		actions: NewActionService(store, log).WithClock(func() time.Time { return fixedNow }),
	}

	profile := &entities.UserProfile{Name: "Avery", Email: "avery@example.com"}
	if err := store.Users().Create(context.Background(), profile); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	env.userID = profile.ID
	return env
}

func (e *testEnv) createTask(t *testing.T, taskType entities.TaskType, cfg entities.TaskConfig) *entities.Task {
	t.Helper()
	task, err := e.tasks.AddTask(context.Background(), ports.CreateTaskRequest{
		Title:      "test task",
		TaskType:   string(taskType),
		TaskConfig: cfg,
		OwnerID:    &e.userID,
	})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	return task
}

func TestCheckInRecordsActionAndProgress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t, entities.TaskTypeStreak, entities.TaskConfig{TargetDays: 7})

	updated, err := env.actions.CheckIn(ctx, task.ID, env.userID)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if updated.Status != entities.TaskStatusInProgress {
		t.Errorf("status = %q, want in_progress", updated.Status)
	}
	if updated.Version != task.Version+1 {
		t.Errorf("version = %d, want %d", updated.Version, task.Version+1)
	}

	log, err := env.store.Actions().ListByTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("ListByTask: %v", err)
	}
	if len(log) != 1 {
		t.Fatalf("action log length = %d, want 1", len(log))
	}
	if log[0].ActionType != entities.ActionCheckIn {
		t.Errorf("action type = %q, want check_in", log[0].ActionType)
	}
}

func TestCheckInSameDayIsRejectedAtomically(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t, entities.TaskTypeStreak, entities.TaskConfig{TargetDays: 7})

	first, err := env.actions.CheckIn(ctx, task.ID, env.userID)
	if err != nil {
		t.Fatalf("first CheckIn: %v", err)
	}

	_, err = env.actions.CheckIn(ctx, task.ID, env.userID)
	if !entities.IsDuplicateAction(err) {
		t.Fatalf("second CheckIn err = %v, want DuplicateActionError", err)
	}

	// The failed attempt must leave no trace: same log, same version.
	log, _ := env.store.Actions().ListByTask(ctx, task.ID)
	if len(log) != 1 {
		t.Errorf("action log length = %d, want 1", len(log))
	}
	current, _ := env.store.Tasks().GetByID(ctx, task.ID)
	if current.Version != first.Version {
		t.Errorf("version = %d, want %d after failed duplicate", current.Version, first.Version)
	}
	if len(current.ProgressData.CheckInDates) != 1 {
		t.Errorf("check-in dates = %d, want 1", len(current.ProgressData.CheckInDates))
	}
}

func TestCountTaskReachesTargetAfterSevenAdds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t, entities.TaskTypeCount, entities.TaskConfig{TargetCount: 7})

	var updated *entities.Task
	var err error
	for i := 0; i < 7; i++ {
		updated, err = env.actions.AddCount(ctx, task.ID, env.userID, 1)
		if err != nil {
			t.Fatalf("AddCount %d: %v", i+1, err)
		}
	}

	if updated.ProgressData.CurrentCount != 7 {
		t.Errorf("current count = %d, want 7", updated.ProgressData.CurrentCount)
	}
	if updated.ProgressData.CompletionPercentage != 100 {
		t.Errorf("completion = %v, want 100", updated.ProgressData.CompletionPercentage)
	}
	if updated.Status != entities.TaskStatusDone {
		t.Errorf("status = %q, want done", updated.Status)
	}
	if updated.CompletedAt == nil {
		t.Error("CompletedAt not set on completion")
	}
	if updated.Version != task.Version+7 {
		t.Errorf("version = %d, want %d", updated.Version, task.Version+7)
	}

	log, _ := env.store.Actions().ListByTask(ctx, task.ID)
	if len(log) != 7 {
		t.Errorf("action log length = %d, want 7", len(log))
	}
}

func TestInvalidAddLeavesNothingBehind(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t, entities.TaskTypeCount, entities.TaskConfig{TargetCount: 5})

	_, err := env.actions.AddCount(ctx, task.ID, env.userID, -1)
	if !entities.IsInvalidParameter(err) {
		t.Fatalf("err = %v, want InvalidParameterError", err)
	}

	log, _ := env.store.Actions().ListByTask(ctx, task.ID)
	if len(log) != 0 {
		t.Errorf("action log length = %d, want 0", len(log))
	}
	current, _ := env.store.Tasks().GetByID(ctx, task.ID)
	if current.Version != task.Version {
		t.Errorf("version = %d, want unchanged %d", current.Version, task.Version)
	}
}

func TestResetClearsHistoryAndIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t, entities.TaskTypeCount, entities.TaskConfig{TargetCount: 7})

	for i := 0; i < 3; i++ {
		if _, err := env.actions.AddCount(ctx, task.ID, env.userID, 1); err != nil {
			t.Fatalf("AddCount: %v", err)
		}
	}

	reset, err := env.actions.ResetProgress(ctx, task.ID, env.userID)
	if err != nil {
		t.Fatalf("ResetProgress: %v", err)
	}
	if reset.Status != entities.TaskStatusTodo {
		t.Errorf("status = %q, want todo", reset.Status)
	}
	if reset.ProgressData.CurrentCount != 0 {
		t.Errorf("count = %d, want 0", reset.ProgressData.CurrentCount)
	}

	log, _ := env.store.Actions().ListByTask(ctx, task.ID)
	if len(log) != 1 {
		t.Fatalf("action log length = %d, want only the reset row", len(log))
	}
	if log[0].ActionType != entities.ActionReset {
		t.Errorf("surviving action = %q, want reset", log[0].ActionType)
	}

	again, err := env.actions.ResetProgress(ctx, task.ID, env.userID)
	if err != nil {
		t.Fatalf("second ResetProgress: %v", err)
	}
	if again.Status != reset.Status || again.ProgressData.CurrentCount != 0 {
		t.Errorf("second reset diverged: %+v", again.ProgressData)
	}
}

func TestCancelTodayCheckInReopensTask(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t, entities.TaskTypeStreak, entities.TaskConfig{TargetDays: 1})

	done, err := env.actions.CheckIn(ctx, task.ID, env.userID)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if done.Status != entities.TaskStatusDone {
		t.Fatalf("status = %q, want done at target 1", done.Status)
	}

	reopened, err := env.actions.CancelTodayCheckIn(ctx, task.ID, env.userID)
	if err != nil {
		t.Fatalf("CancelTodayCheckIn: %v", err)
	}
	if reopened.Status != entities.TaskStatusTodo {
		t.Errorf("status = %q, want todo", reopened.Status)
	}
	if len(reopened.ProgressData.CheckInDates) != 0 {
		t.Errorf("check-in dates = %d, want 0", len(reopened.ProgressData.CheckInDates))
	}
	if reopened.ProgressData.CurrentStreak != 0 {
		t.Errorf("current streak = %d, want 0", reopened.ProgressData.CurrentStreak)
	}
	if reopened.CompletedAt != nil {
		t.Error("CompletedAt should be cleared when task reopens")
	}
}

func TestCheckInAgainAfterCancelSameDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t, entities.TaskTypeStreak, entities.TaskConfig{TargetDays: 7})

	if _, err := env.actions.CheckIn(ctx, task.ID, env.userID); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if _, err := env.actions.CancelTodayCheckIn(ctx, task.ID, env.userID); err != nil {
		t.Fatalf("CancelTodayCheckIn: %v", err)
	}

	// Cancel erases the day's log entry, so a fresh check-in must pass
	// the same-day uniqueness guard.
	updated, err := env.actions.CheckIn(ctx, task.ID, env.userID)
	if err != nil {
		t.Fatalf("CheckIn after cancel: %v", err)
	}
	if len(updated.ProgressData.CheckInDates) != 1 {
		t.Errorf("check-in dates = %d, want 1", len(updated.ProgressData.CheckInDates))
	}

	log, _ := env.store.Actions().ListByTask(ctx, task.ID)
	if len(log) != 1 {
		t.Errorf("action log length = %d, want 1", len(log))
	}
}

func TestAccumulativeAndDurationActions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pages := env.createTask(t, entities.TaskTypeAccumulative, entities.TaskConfig{TargetAmount: 100, Unit: "pages"})
	updated, err := env.actions.AddAmount(ctx, pages.ID, env.userID, 40, "pages")
	if err != nil {
		t.Fatalf("AddAmount: %v", err)
	}
	if updated.ProgressData.CurrentAmount != 40 {
		t.Errorf("amount = %v, want 40", updated.ProgressData.CurrentAmount)
	}

	practice := env.createTask(t, entities.TaskTypeDuration, entities.TaskConfig{TargetMinutes: 60})
	updated, err = env.actions.AddMinutes(ctx, practice.ID, env.userID, 45)
	if err != nil {
		t.Fatalf("AddMinutes: %v", err)
	}
	if updated.ProgressData.AccumulatedMinutes != 45 {
		t.Errorf("minutes = %d, want 45", updated.ProgressData.AccumulatedMinutes)
	}
	if updated.ProgressData.CompletionPercentage != 75 {
		t.Errorf("completion = %v, want 75", updated.ProgressData.CompletionPercentage)
	}
}

func TestActionOnArchivedTaskFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t, entities.TaskTypeCount, entities.TaskConfig{TargetCount: 5})

	if err := env.tasks.DeleteTask(ctx, task.ID, task.Version); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}

	_, err := env.actions.AddCount(ctx, task.ID, env.userID, 1)
	if !entities.IsInvalidState(err) {
		t.Fatalf("err = %v, want InvalidStateError", err)
	}
}

func TestProgressCacheMatchesActionLog(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t, entities.TaskTypeCount, entities.TaskConfig{TargetCount: 10})

	for _, n := range []int{2, 3, 1} {
		if _, err := env.actions.AddCount(ctx, task.ID, env.userID, n); err != nil {
			t.Fatalf("AddCount %d: %v", n, err)
		}
	}
	if _, err := env.actions.ResetProgress(ctx, task.ID, env.userID); err != nil {
		t.Fatalf("ResetProgress: %v", err)
	}
	for _, n := range []int{4, 2} {
		if _, err := env.actions.AddCount(ctx, task.ID, env.userID, n); err != nil {
			t.Fatalf("AddCount %d: %v", n, err)
		}
	}

	stored, err := env.store.Tasks().GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	log, err := env.store.Actions().ListByTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("ListByTask: %v", err)
	}

	replay := *stored
	replay.ProgressData = entities.ProgressData{}
	pd, status, err := progress.Recompute(&replay, log, fixedNow)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if pd.CurrentCount != stored.ProgressData.CurrentCount {
		t.Errorf("replayed count = %d, cached %d", pd.CurrentCount, stored.ProgressData.CurrentCount)
	}
	if pd.CompletionPercentage != stored.ProgressData.CompletionPercentage {
		t.Errorf("replayed completion = %v, cached %v", pd.CompletionPercentage, stored.ProgressData.CompletionPercentage)
	}
	if status != stored.Status {
		t.Errorf("replayed status = %q, cached %q", status, stored.Status)
	}
}

func TestCompleteSingleTaskIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t, entities.TaskTypeSingle, entities.TaskConfig{})

	done, err := env.actions.Complete(ctx, task.ID, env.userID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != entities.TaskStatusDone {
		t.Fatalf("status = %q, want done", done.Status)
	}

	again, err := env.actions.Complete(ctx, task.ID, env.userID)
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if again.Version != done.Version {
		t.Errorf("version moved on idempotent complete: %d vs %d", again.Version, done.Version)
	}

	log, _ := env.store.Actions().ListByTask(ctx, task.ID)
	if len(log) != 1 {
		t.Errorf("action log length = %d, want 1", len(log))
	}
}
