package progress

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/learnmap/core/internal/domain/entities"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newStreakTask(targetDays int) *entities.Task {
	return &entities.Task{
		ID:         uuid.New(),
		Title:      "daily reading",
		Status:     entities.TaskStatusTodo,
		TaskType:   entities.TaskTypeStreak,
		TaskConfig: entities.TaskConfig{TargetDays: targetDays},
	}
}

func newCountTask(targetCount int) *entities.Task {
	return &entities.Task{
		ID:         uuid.New(),
		Title:      "practice sessions",
		Status:     entities.TaskStatusTodo,
		TaskType:   entities.TaskTypeCount,
		TaskConfig: entities.TaskConfig{TargetCount: targetCount},
	}
}

func TestCheckInFirstDay(t *testing.T) {
	task := newStreakTask(7)

	out, err := Apply(task, entities.ActionCheckIn, Params{}, testNow)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Status != entities.TaskStatusInProgress {
		t.Errorf("status = %q, want %q", out.Status, entities.TaskStatusInProgress)
	}
	if got := len(out.Progress.CheckInDates); got != 1 {
		t.Fatalf("check-in dates = %d, want 1", got)
	}
	if out.Progress.CheckInDates[0] != "2025-03-10" {
		t.Errorf("check-in date = %q, want %q", out.Progress.CheckInDates[0], "2025-03-10")
	}
	if out.Progress.CurrentStreak != 1 {
		t.Errorf("current streak = %d, want 1", out.Progress.CurrentStreak)
	}
}

func TestCheckInDuplicateSameDay(t *testing.T) {
	task := newStreakTask(7)

	out, err := Apply(task, entities.ActionCheckIn, Params{}, testNow)
	if err != nil {
		t.Fatalf("first check-in: %v", err)
	}
	task.ProgressData = out.Progress
	task.Status = out.Status

	_, err = Apply(task, entities.ActionCheckIn, Params{}, testNow)
	if !entities.IsDuplicateAction(err) {
		t.Fatalf("second check-in err = %v, want DuplicateActionError", err)
	}
}

func TestStreakAcrossConsecutiveDays(t *testing.T) {
	task := newStreakTask(7)
	task.ProgressData.CheckInDates = []string{"2025-03-08", "2025-03-09"}

	out, err := Apply(task, entities.ActionCheckIn, Params{}, testNow)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Progress.CurrentStreak != 3 {
		t.Errorf("current streak = %d, want 3", out.Progress.CurrentStreak)
	}
	if out.Progress.MaxStreak != 3 {
		t.Errorf("max streak = %d, want 3", out.Progress.MaxStreak)
	}
}

func TestStreakBrokenByGap(t *testing.T) {
	task := newStreakTask(7)
	task.ProgressData.CheckInDates = []string{"2025-03-01", "2025-03-02", "2025-03-03"}

	out, err := Apply(task, entities.ActionCheckIn, Params{}, testNow)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Progress.CurrentStreak != 1 {
		t.Errorf("current streak = %d, want 1", out.Progress.CurrentStreak)
	}
	if out.Progress.MaxStreak != 3 {
		t.Errorf("max streak = %d, want 3", out.Progress.MaxStreak)
	}
}

func TestStreakCompletesAtTarget(t *testing.T) {
	task := newStreakTask(3)
	task.ProgressData.CheckInDates = []string{"2025-03-08", "2025-03-09"}
	task.Status = entities.TaskStatusInProgress

	out, err := Apply(task, entities.ActionCheckIn, Params{}, testNow)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Status != entities.TaskStatusDone {
		t.Errorf("status = %q, want %q", out.Status, entities.TaskStatusDone)
	}
	if out.Progress.CompletionPercentage != 100 {
		t.Errorf("completion = %v, want 100", out.Progress.CompletionPercentage)
	}
}

func TestCancelTodayCheckIn(t *testing.T) {
	task := newStreakTask(7)
	task.ProgressData.CheckInDates = []string{"2025-03-08", "2025-03-09", "2025-03-10"}
	task.Status = entities.TaskStatusInProgress

	out, err := Apply(task, entities.ActionCancelCheckIn, Params{}, testNow)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := len(out.Progress.CheckInDates); got != 2 {
		t.Fatalf("check-in dates = %d, want 2", got)
	}
	if out.Progress.CheckInDates[1] != "2025-03-09" {
		t.Errorf("last remaining date = %q, want %q", out.Progress.CheckInDates[1], "2025-03-09")
	}
	// The trailing run no longer ends today, so the current streak is
	// gone even though the earlier days still count toward the max.
	if out.Progress.CurrentStreak != 0 {
		t.Errorf("current streak = %d, want 0", out.Progress.CurrentStreak)
	}
	if out.Progress.MaxStreak != 2 {
		t.Errorf("max streak = %d, want 2", out.Progress.MaxStreak)
	}
}

func TestCurrentStreakRequiresCheckInToday(t *testing.T) {
	task := newStreakTask(7)
	task.ProgressData.CheckInDates = []string{"2025-03-07", "2025-03-08", "2025-03-09"}
	task.Status = entities.TaskStatusInProgress

	out, err := Apply(task, entities.ActionCheckIn, Params{}, testNow)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Progress.CurrentStreak != 4 {
		t.Errorf("current streak = %d, want 4", out.Progress.CurrentStreak)
	}

	task.ProgressData = out.Progress
	task.Status = entities.TaskStatusInProgress
	cancelled, err := Apply(task, entities.ActionCancelCheckIn, Params{}, testNow)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Progress.CurrentStreak != 0 {
		t.Errorf("current streak after cancel = %d, want 0", cancelled.Progress.CurrentStreak)
	}
	if cancelled.Progress.MaxStreak != 3 {
		t.Errorf("max streak after cancel = %d, want 3", cancelled.Progress.MaxStreak)
	}
}

func TestCancelWithoutTodayCheckIn(t *testing.T) {
	task := newStreakTask(7)
	task.ProgressData.CheckInDates = []string{"2025-03-09"}

	_, err := Apply(task, entities.ActionCancelCheckIn, Params{}, testNow)
	if !entities.IsInvalidState(err) {
		t.Fatalf("err = %v, want InvalidStateError", err)
	}
}

func TestCountTaskSevenAdds(t *testing.T) {
	task := newCountTask(7)

	for i := 0; i < 7; i++ {
		out, err := Apply(task, entities.ActionAddCount, Params{Count: 1}, testNow)
		if err != nil {
			t.Fatalf("add %d: %v", i+1, err)
		}
		task.ProgressData = out.Progress
		task.Status = out.Status
	}

	if task.ProgressData.CurrentCount != 7 {
		t.Errorf("current count = %d, want 7", task.ProgressData.CurrentCount)
	}
	if task.ProgressData.CompletionPercentage != 100 {
		t.Errorf("completion = %v, want 100", task.ProgressData.CompletionPercentage)
	}
	if task.Status != entities.TaskStatusDone {
		t.Errorf("status = %q, want %q", task.Status, entities.TaskStatusDone)
	}
}

func TestCountBeyondTargetStaysDone(t *testing.T) {
	task := newCountTask(3)
	task.ProgressData.CurrentCount = 3
	task.ProgressData.CompletionPercentage = 100
	task.Status = entities.TaskStatusDone

	out, err := Apply(task, entities.ActionAddCount, Params{Count: 2}, testNow)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Status != entities.TaskStatusDone {
		t.Errorf("status = %q, want done", out.Status)
	}
	if out.Progress.CompletionPercentage != 100 {
		t.Errorf("completion = %v, want capped at 100", out.Progress.CompletionPercentage)
	}
}

func TestAddCountRejectsNonPositive(t *testing.T) {
	task := newCountTask(5)

	for _, count := range []int{0, -3} {
		_, err := Apply(task, entities.ActionAddCount, Params{Count: count}, testNow)
		if !entities.IsInvalidParameter(err) {
			t.Errorf("count %d: err = %v, want InvalidParameterError", count, err)
		}
	}
}

func TestAddAmountAccumulative(t *testing.T) {
	task := &entities.Task{
		ID:         uuid.New(),
		Status:     entities.TaskStatusTodo,
		TaskType:   entities.TaskTypeAccumulative,
		TaskConfig: entities.TaskConfig{TargetAmount: 50, Unit: "pages"},
	}

	out, err := Apply(task, entities.ActionAddAmount, Params{Amount: 20, Unit: "pages"}, testNow)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Progress.CurrentAmount != 20 {
		t.Errorf("current amount = %v, want 20", out.Progress.CurrentAmount)
	}
	if out.Progress.CompletionPercentage != 40 {
		t.Errorf("completion = %v, want 40", out.Progress.CompletionPercentage)
	}
}

func TestAddMinutesDuration(t *testing.T) {
	task := &entities.Task{
		ID:         uuid.New(),
		Status:     entities.TaskStatusTodo,
		TaskType:   entities.TaskTypeDuration,
		TaskConfig: entities.TaskConfig{TargetMinutes: 120},
	}

	out, err := Apply(task, entities.ActionAddAmount, Params{Minutes: 30}, testNow)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Progress.AccumulatedMinutes != 30 {
		t.Errorf("accumulated minutes = %d, want 30", out.Progress.AccumulatedMinutes)
	}
	if out.Progress.CompletionPercentage != 25 {
		t.Errorf("completion = %v, want 25", out.Progress.CompletionPercentage)
	}
}

func TestResetClearsProgress(t *testing.T) {
	task := newCountTask(7)
	task.ProgressData = entities.ProgressData{CurrentCount: 4, CompletionPercentage: 57.14}
	task.Status = entities.TaskStatusInProgress

	out, err := Apply(task, entities.ActionReset, Params{}, testNow)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !out.ClearHistory {
		t.Error("ClearHistory = false, want true")
	}
	if out.Status != entities.TaskStatusTodo {
		t.Errorf("status = %q, want %q", out.Status, entities.TaskStatusTodo)
	}
	if out.Progress.CurrentCount != 0 || out.Progress.CompletionPercentage != 0 {
		t.Errorf("progress not zeroed: %+v", out.Progress)
	}
}

func TestResetIsIdempotent(t *testing.T) {
	task := newCountTask(7)
	task.ProgressData = entities.ProgressData{CurrentCount: 4}
	task.Status = entities.TaskStatusInProgress

	first, err := Apply(task, entities.ActionReset, Params{}, testNow)
	if err != nil {
		t.Fatalf("first reset: %v", err)
	}
	task.ProgressData = first.Progress
	task.Status = first.Status

	second, err := Apply(task, entities.ActionReset, Params{}, testNow)
	if err != nil {
		t.Fatalf("second reset: %v", err)
	}
	if second.Progress.CurrentCount != first.Progress.CurrentCount ||
		second.Status != first.Status {
		t.Errorf("second reset diverged: %+v vs %+v", second, first)
	}
}

func TestCompleteSingleTask(t *testing.T) {
	task := &entities.Task{
		ID:       uuid.New(),
		Status:   entities.TaskStatusTodo,
		TaskType: entities.TaskTypeSingle,
	}

	out, err := Apply(task, entities.ActionComplete, Params{}, testNow)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Status != entities.TaskStatusDone {
		t.Errorf("status = %q, want done", out.Status)
	}
	if out.NoOp {
		t.Error("first complete flagged NoOp")
	}

	task.ProgressData = out.Progress
	task.Status = out.Status
	again, err := Apply(task, entities.ActionComplete, Params{}, testNow)
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if !again.NoOp {
		t.Error("second complete should be a no-op")
	}
}

func TestArchivedTaskRejectsActions(t *testing.T) {
	task := newCountTask(5)
	task.Status = entities.TaskStatusArchived

	_, err := Apply(task, entities.ActionAddCount, Params{Count: 1}, testNow)
	if !entities.IsInvalidState(err) {
		t.Fatalf("err = %v, want InvalidStateError", err)
	}
}

func TestActionTypeMismatch(t *testing.T) {
	task := newCountTask(5)

	_, err := Apply(task, entities.ActionCheckIn, Params{}, testNow)
	if !entities.IsInvalidParameter(err) {
		t.Fatalf("err = %v, want InvalidParameterError", err)
	}
}

func TestRecomputeMatchesCache(t *testing.T) {
	task := newCountTask(7)
	actions := []entities.TaskAction{}

	for i := 0; i < 4; i++ {
		out, err := Apply(task, entities.ActionAddCount, Params{Count: 1}, testNow)
		if err != nil {
			t.Fatalf("add %d: %v", i+1, err)
		}
		actions = append(actions, entities.TaskAction{
			ID:         uuid.New(),
			TaskID:     task.ID,
			ActionType: entities.ActionAddCount,
			ActionDate: entities.Date(out.ActionDate),
			ActionData: out.ActionData,
		})
		task.ProgressData = out.Progress
		task.Status = out.Status
	}

	replayTask := newCountTask(7)
	pd, status, err := Recompute(replayTask, actions, testNow)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if pd.CurrentCount != task.ProgressData.CurrentCount {
		t.Errorf("replayed count = %d, want %d", pd.CurrentCount, task.ProgressData.CurrentCount)
	}
	if pd.CompletionPercentage != task.ProgressData.CompletionPercentage {
		t.Errorf("replayed completion = %v, want %v", pd.CompletionPercentage, task.ProgressData.CompletionPercentage)
	}
	if status != task.Status {
		t.Errorf("replayed status = %q, want %q", status, task.Status)
	}
}
