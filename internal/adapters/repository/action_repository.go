package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/learnmap/core/internal/domain/entities"
)

type taskActionRepository struct {
	q querier
}

func (r *taskActionRepository) Insert(ctx context.Context, action *entities.TaskAction) error {
	query := `
		INSERT INTO task_actions (id, task_id, action_type, action_date, action_timestamp, user_id, action_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	if action.ID == uuid.Nil {
		action.ID = uuid.New()
	}

	err := r.q.QueryRowxContext(ctx, query,
		action.ID, action.TaskID, action.ActionType, action.ActionDate,
		action.ActionTimestamp, action.UserID, action.ActionData,
	).Scan(&action.CreatedAt)

	if err != nil {
		// The partial unique index on (task_id, action_date) backs the
		// same-day check-in guarantee even across racing transactions.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return &entities.DuplicateActionError{TaskID: action.TaskID, ActionDate: string(action.ActionDate)}
		}
		return fmt.Errorf("insert task action: %w", err)
	}

	return nil
}

func (r *taskActionRepository) ExistsForDate(ctx context.Context, taskID uuid.UUID, actionType entities.ActionType, date string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM task_actions
			WHERE task_id = $1 AND action_type = $2 AND action_date = $3
		)`

	var exists bool
	if err := r.q.GetContext(ctx, &exists, query, taskID, actionType, date); err != nil {
		return false, fmt.Errorf("check task action: %w", err)
	}

	return exists, nil
}

func (r *taskActionRepository) ListByTask(ctx context.Context, taskID uuid.UUID) ([]entities.TaskAction, error) {
	query := `
		SELECT id, task_id, action_type, action_date, action_timestamp, user_id, action_data, created_at
		FROM task_actions
		WHERE task_id = $1
		ORDER BY action_timestamp`

	var actions []entities.TaskAction
	if err := r.q.SelectContext(ctx, &actions, query, taskID); err != nil {
		return nil, fmt.Errorf("list task actions: %w", err)
	}

	return actions, nil
}

func (r *taskActionRepository) DeleteForDate(ctx context.Context, taskID uuid.UUID, actionType entities.ActionType, date string) error {
	query := `DELETE FROM task_actions WHERE task_id = $1 AND action_type = $2 AND action_date = $3`

	if _, err := r.q.ExecContext(ctx, query, taskID, actionType, date); err != nil {
		return fmt.Errorf("delete task action: %w", err)
	}

	return nil
}

func (r *taskActionRepository) DeleteByTask(ctx context.Context, taskID uuid.UUID) error {
	query := `DELETE FROM task_actions WHERE task_id = $1`

	if _, err := r.q.ExecContext(ctx, query, taskID); err != nil {
		return fmt.Errorf("delete task actions: %w", err)
	}

	return nil
}
