// Package progress holds the pure task action engine. Apply never touches
// storage; it turns a task snapshot plus one action into the next progress
// state, so the transactional applier and the tests share one brain.
package progress

import (
	"fmt"
	"sort"
	"time"

	"github.com/learnmap/core/internal/domain/entities"
)

const dateLayout = "2006-01-02"

// Params carries the per-action inputs. Date defaults to the engine's
// reference day when empty.
type Params struct {
	Date    string
	Count   int
	Amount  float64
	Unit    string
	Minutes int
}

// Outcome is what the applier persists: the new progress cache, the new
// status, and flags controlling the audit log.
type Outcome struct {
	Progress     entities.ProgressData
	Status       entities.TaskStatus
	ActionDate   string
	ActionData   entities.ActionData
	ClearHistory bool
	NoOp         bool
}

// Apply computes the next progress state for one action. now anchors
// "today" so callers control the clock.
func Apply(task *entities.Task, action entities.ActionType, p Params, now time.Time) (Outcome, error) {
	if !task.CanAcceptAction() {
		return Outcome{}, &entities.InvalidStateError{Reason: fmt.Sprintf("task %s is archived", task.ID)}
	}
	if !action.AppliesTo(task.TaskType) {
		return Outcome{}, &entities.InvalidParameterError{
			Reason: fmt.Sprintf("action %s does not apply to %s tasks", action, task.TaskType),
		}
	}

	today := now.Format(dateLayout)
	date := p.Date
	if date == "" {
		date = today
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return Outcome{}, &entities.InvalidParameterError{Reason: fmt.Sprintf("malformed action date %q", p.Date)}
	}

	pd := task.ProgressData
	out := Outcome{ActionDate: date, ActionData: entities.ActionData{}}

	switch action {
	case entities.ActionCheckIn:
		if containsDate(pd.CheckInDates, date) {
			return Outcome{}, &entities.DuplicateActionError{TaskID: task.ID, ActionDate: date}
		}
		pd.CheckInDates = append(append([]string(nil), pd.CheckInDates...), date)
		sort.Strings(pd.CheckInDates)
		pd.CurrentStreak, pd.MaxStreak = streaks(pd.CheckInDates, today)
		pd.CurrentCount = len(pd.CheckInDates)
		out.ActionData["date"] = date

	case entities.ActionCancelCheckIn:
		if !containsDate(pd.CheckInDates, today) {
			return Outcome{}, &entities.InvalidStateError{Reason: "no check-in recorded today"}
		}
		pd.CheckInDates = removeDate(pd.CheckInDates, today)
		pd.CurrentStreak, pd.MaxStreak = streaks(pd.CheckInDates, today)
		pd.CurrentCount = len(pd.CheckInDates)
		out.ActionDate = today
		out.ActionData["cancelled_date"] = today

	case entities.ActionAddCount:
		if p.Count <= 0 {
			return Outcome{}, &entities.InvalidParameterError{Reason: "count must be positive"}
		}
		pd.CurrentCount += p.Count
		out.ActionData["count"] = p.Count

	case entities.ActionAddAmount:
		if task.TaskType == entities.TaskTypeDuration {
			if p.Minutes <= 0 {
				return Outcome{}, &entities.InvalidParameterError{Reason: "minutes must be positive"}
			}
			pd.AccumulatedMinutes += p.Minutes
			out.ActionData["minutes"] = p.Minutes
		} else {
			if p.Amount <= 0 {
				return Outcome{}, &entities.InvalidParameterError{Reason: "amount must be positive"}
			}
			pd.CurrentAmount += p.Amount
			out.ActionData["amount"] = p.Amount
			if p.Unit != "" {
				out.ActionData["unit"] = p.Unit
			}
		}

	case entities.ActionComplete:
		if task.Status == entities.TaskStatusDone {
			out.Progress = pd
			out.Status = task.Status
			out.NoOp = true
			return out, nil
		}
		pd.CurrentCount = 1

	case entities.ActionReset:
		pd = entities.ProgressData{}
		pd.LastUpdated = now
		out.Progress = pd
		out.Status = entities.TaskStatusTodo
		out.ClearHistory = true
		return out, nil

	default:
		return Outcome{}, &entities.InvalidParameterError{Reason: fmt.Sprintf("unknown action %s", action)}
	}

	pd.CompletionPercentage = entities.ComputeCompletionPercentage(task.TaskType, task.TaskConfig, pd)
	pd.LastUpdated = now
	out.Progress = pd
	out.Status = nextStatus(task.Status, task.TaskType, pd)
	return out, nil
}

// nextStatus derives status from progress. A done task only moves back
// when its progress drops below complete, which cancel and reset cause.
func nextStatus(current entities.TaskStatus, taskType entities.TaskType, pd entities.ProgressData) entities.TaskStatus {
	if pd.CompletionPercentage >= 100 {
		return entities.TaskStatusDone
	}
	if pd.Current(taskType) > 0 {
		return entities.TaskStatusInProgress
	}
	return entities.TaskStatusTodo
}

// streaks returns the trailing run of consecutive days ending today
// (the current streak, 0 when today has no check-in) and the longest
// run anywhere in the history.
func streaks(dates []string, today string) (current, max int) {
	if len(dates) == 0 {
		return 0, 0
	}
	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		t, err := time.Parse(dateLayout, d)
		if err != nil {
			continue
		}
		days = append(days, t)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	run := 1
	max = 1
	tail := 1
	for i := 1; i < len(days); i++ {
		if days[i].Sub(days[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > max {
			max = run
		}
	}
	tail = run

	todayT, err := time.Parse(dateLayout, today)
	if err != nil {
		return 0, max
	}
	if !days[len(days)-1].Equal(todayT) {
		return 0, max
	}
	return tail, max
}

// Recompute rebuilds the progress cache from an action log, oldest first.
// Actions before the latest reset are ignored, matching what reset leaves
// behind in storage.
func Recompute(task *entities.Task, actions []entities.TaskAction, now time.Time) (entities.ProgressData, entities.TaskStatus, error) {
	replay := *task
	replay.ProgressData = entities.ProgressData{}
	replay.Status = entities.TaskStatusTodo

	for _, a := range actions {
		if a.ActionType == entities.ActionReset {
			replay.ProgressData = entities.ProgressData{}
			replay.Status = entities.TaskStatusTodo
			continue
		}
		p := Params{Date: string(a.ActionDate)}
		switch a.ActionType {
		case entities.ActionAddCount:
			p.Count = intField(a.ActionData, "count")
		case entities.ActionAddAmount:
			p.Amount = floatField(a.ActionData, "amount")
			p.Minutes = intField(a.ActionData, "minutes")
		}
		out, err := Apply(&replay, a.ActionType, p, now)
		if err != nil {
			return entities.ProgressData{}, "", fmt.Errorf("replay action %s: %w", a.ID, err)
		}
		replay.ProgressData = out.Progress
		replay.Status = out.Status
	}
	return replay.ProgressData, replay.Status, nil
}

func containsDate(dates []string, d string) bool {
	for _, v := range dates {
		if v == d {
			return true
		}
	}
	return false
}

func removeDate(dates []string, d string) []string {
	out := make([]string, 0, len(dates))
	for _, v := range dates {
		if v != d {
			out = append(out, v)
		}
	}
	return out
}

func intField(data entities.ActionData, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func floatField(data entities.ActionData, key string) float64 {
	switch v := data[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}
