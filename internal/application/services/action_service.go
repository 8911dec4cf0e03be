package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/learnmap/core/internal/domain/entities"
	"github.com/learnmap/core/internal/domain/progress"
	"github.com/learnmap/core/internal/infrastructure/logger"
	"github.com/learnmap/core/internal/ports"
)

// ActionService applies progress actions atomically. One call is one
// transaction: action log insert and task update land together or not at
// all. The clock is injectable so tests can pin "today".
type ActionService struct {
	store  ports.Store
	logger *logger.Logger
	now    func() time.Time
}

// NewActionService creates a new action service
func NewActionService(store ports.Store, logger *logger.Logger) *ActionService {
	return &ActionService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock replaces the service's time source. Tests use it to anchor
// date-sensitive actions.
func (s *ActionService) WithClock(now func() time.Time) *ActionService {
	s.now = now
	return s
}

// PerformAction runs one progress action against a task inside a single
// transaction and returns the task as persisted.
func (s *ActionService) PerformAction(ctx context.Context, taskID, userID uuid.UUID, req ports.ActionRequest) (*entities.Task, error) {
	actionType := entities.ActionType(req.ActionType)
	if !actionType.IsValid() {
		return nil, &entities.InvalidParameterError{Reason: fmt.Sprintf("unknown action type %q", req.ActionType)}
	}

	now := s.now()
	params := progress.Params{
		Date:    req.ActionDate,
		Count:   req.Count,
		Amount:  req.Amount,
		Unit:    req.Unit,
		Minutes: req.Minutes,
	}

	var updated *entities.Task
	err := s.store.WithTx(ctx, func(tx ports.Store) error {
		task, err := tx.Tasks().GetForUpdate(ctx, taskID)
		if err != nil {
			return fmt.Errorf("task not found: %w", err)
		}
		loadedVersion := task.Version

		out, err := progress.Apply(task, actionType, params, now)
		if err != nil {
			return err
		}

		if out.NoOp {
			updated = task
			return nil
		}

		if actionType == entities.ActionCheckIn {
			exists, err := tx.Actions().ExistsForDate(ctx, taskID, entities.ActionCheckIn, out.ActionDate)
			if err != nil {
				return fmt.Errorf("failed to check action log: %w", err)
			}
			if exists {
				return &entities.DuplicateActionError{TaskID: taskID, ActionDate: out.ActionDate}
			}
		}

		if out.ClearHistory {
			if err := tx.Actions().DeleteByTask(ctx, taskID); err != nil {
				return fmt.Errorf("failed to clear action history: %w", err)
			}
		}

		if actionType == entities.ActionCancelCheckIn {
			// Erase the day's check_in row so re-checking-in later today
			// passes the storage-level uniqueness guard.
			if err := tx.Actions().DeleteForDate(ctx, taskID, entities.ActionCheckIn, out.ActionDate); err != nil {
				return fmt.Errorf("failed to erase check-in: %w", err)
			}
		} else {
			action := &entities.TaskAction{
				ID:              uuid.New(),
				TaskID:          taskID,
				ActionType:      actionType,
				ActionDate:      entities.Date(out.ActionDate),
				ActionTimestamp: now,
				UserID:          userID,
				ActionData:      out.ActionData,
			}
			if err := tx.Actions().Insert(ctx, action); err != nil {
				return fmt.Errorf("failed to record action: %w", err)
			}
		}

		task.ProgressData = out.Progress
		task.Status = out.Status
		if out.Status == entities.TaskStatusDone && task.CompletedAt == nil {
			task.CompletedAt = &now
			task.CompletedBy = &userID
		}
		if out.Status != entities.TaskStatusDone {
			task.CompletedAt = nil
			task.CompletedBy = nil
		}

		if err := tx.Tasks().UpdateVersioned(ctx, task, loadedVersion); err != nil {
			return err
		}

		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Task action applied",
		"task_id", taskID,
		"action_type", actionType,
		"user_id", userID,
		"version", updated.Version,
	)

	return updated, nil
}

// CheckIn records today's check-in on a streak task
func (s *ActionService) CheckIn(ctx context.Context, taskID, userID uuid.UUID) (*entities.Task, error) {
	return s.PerformAction(ctx, taskID, userID, ports.ActionRequest{ActionType: string(entities.ActionCheckIn)})
}

// AddCount adds to a count task's progress
func (s *ActionService) AddCount(ctx context.Context, taskID, userID uuid.UUID, count int) (*entities.Task, error) {
	return s.PerformAction(ctx, taskID, userID, ports.ActionRequest{
		ActionType: string(entities.ActionAddCount),
		Count:      count,
	})
}

// AddAmount adds to an accumulative task's progress
func (s *ActionService) AddAmount(ctx context.Context, taskID, userID uuid.UUID, amount float64, unit string) (*entities.Task, error) {
	return s.PerformAction(ctx, taskID, userID, ports.ActionRequest{
		ActionType: string(entities.ActionAddAmount),
		Amount:     amount,
		Unit:       unit,
	})
}

// AddMinutes adds time to a duration task's progress
func (s *ActionService) AddMinutes(ctx context.Context, taskID, userID uuid.UUID, minutes int) (*entities.Task, error) {
	return s.PerformAction(ctx, taskID, userID, ports.ActionRequest{
		ActionType: string(entities.ActionAddAmount),
		Minutes:    minutes,
	})
}

// Complete finishes a single task through the action log
func (s *ActionService) Complete(ctx context.Context, taskID, userID uuid.UUID) (*entities.Task, error) {
	return s.PerformAction(ctx, taskID, userID, ports.ActionRequest{ActionType: string(entities.ActionComplete)})
}

// ResetProgress zeroes a task's progress and clears its action history
func (s *ActionService) ResetProgress(ctx context.Context, taskID, userID uuid.UUID) (*entities.Task, error) {
	return s.PerformAction(ctx, taskID, userID, ports.ActionRequest{ActionType: string(entities.ActionReset)})
}

// CancelTodayCheckIn removes today's check-in from a streak task
func (s *ActionService) CancelTodayCheckIn(ctx context.Context, taskID, userID uuid.UUID) (*entities.Task, error) {
	return s.PerformAction(ctx, taskID, userID, ports.ActionRequest{ActionType: string(entities.ActionCancelCheckIn)})
}
