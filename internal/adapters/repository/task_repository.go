package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/learnmap/core/internal/domain/entities"
)

type taskRepository struct {
	q querier
}

const taskColumns = `id, goal_id, title, description, status, priority, order_index,
		need_help, help_message, reply_message, task_type, task_config, cycle_config,
		progress_data, version, owner_id, creator_id, collaborator_ids, completed_at,
		completed_by, estimated_minutes, actual_minutes, created_at, updated_at`

func (r *taskRepository) Create(ctx context.Context, task *entities.Task) error {
	query := `
		INSERT INTO tasks (id, goal_id, title, description, status, priority, order_index,
			need_help, help_message, task_type, task_config, cycle_config, progress_data,
			version, owner_id, creator_id, collaborator_ids, estimated_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING created_at, updated_at`

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Version == 0 {
		task.Version = 1
	}

	err := r.q.QueryRowxContext(ctx, query,
		task.ID, task.GoalID, task.Title, task.Description, task.Status, task.Priority,
		task.OrderIndex, task.NeedHelp, task.HelpMessage, task.TaskType, task.TaskConfig,
		task.CycleConfig, task.ProgressData, task.Version, task.OwnerID, task.CreatorID,
		task.CollaboratorIDs, task.EstimatedMinutes,
	).Scan(&task.CreatedAt, &task.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Task, error) {
	return r.get(ctx, id, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`)
}

// GetForUpdate takes a row lock inside the enclosing transaction so the
// action applier serializes with concurrent writers.
func (r *taskRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*entities.Task, error) {
	return r.get(ctx, id, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`)
}

func (r *taskRepository) get(ctx context.Context, id uuid.UUID, query string) (*entities.Task, error) {
	var task entities.Task
	err := r.q.GetContext(ctx, &task, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task by id: %w", err)
	}

	return &task, nil
}

func (r *taskRepository) UpdateVersioned(ctx context.Context, task *entities.Task, expectedVersion int) error {
	query := `
		UPDATE tasks
		SET title = $3, description = $4, status = $5, priority = $6, order_index = $7,
			need_help = $8, help_message = $9, reply_message = $10, task_config = $11,
			cycle_config = $12, progress_data = $13, owner_id = $14, collaborator_ids = $15,
			completed_at = $16, completed_by = $17, estimated_minutes = $18, actual_minutes = $19,
			version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at`

	err := r.q.QueryRowxContext(ctx, query,
		task.ID, expectedVersion, task.Title, task.Description, task.Status, task.Priority,
		task.OrderIndex, task.NeedHelp, task.HelpMessage, task.ReplyMessage, task.TaskConfig,
		task.CycleConfig, task.ProgressData, task.OwnerID, task.CollaboratorIDs,
		task.CompletedAt, task.CompletedBy, task.EstimatedMinutes, task.ActualMinutes,
	).Scan(&task.Version, &task.UpdatedAt)

	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("update task: %w", err)
	}

	var actual int
	err = r.q.GetContext(ctx, &actual, `SELECT version FROM tasks WHERE id = $1`, task.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return entities.ErrTaskNotFound
		}
		return fmt.Errorf("read task version: %w", err)
	}

	return &entities.VersionConflictError{ID: task.ID, Expected: expectedVersion, Actual: actual}
}

func (r *taskRepository) ListByGoalIDs(ctx context.Context, goalIDs []uuid.UUID) ([]*entities.Task, error) {
	if len(goalIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE goal_id = ANY($1) ORDER BY order_index`

	var tasks []*entities.Task
	if err := r.q.SelectContext(ctx, &tasks, query, pq.Array(uuidStrings(goalIDs))); err != nil {
		return nil, fmt.Errorf("list tasks by goal ids: %w", err)
	}

	return tasks, nil
}

func (r *taskRepository) ListActiveForUser(ctx context.Context, userID uuid.UUID) ([]*entities.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status NOT IN ('archived', 'done')
			AND (owner_id = $1 OR $1 = ANY(collaborator_ids))
		ORDER BY order_index`

	var tasks []*entities.Task
	if err := r.q.SelectContext(ctx, &tasks, query, userID); err != nil {
		return nil, fmt.Errorf("list active tasks for user: %w", err)
	}

	return tasks, nil
}

func (r *taskRepository) Reorder(ctx context.Context, goalID uuid.UUID, orderedIDs []uuid.UUID) error {
	query := `
		UPDATE tasks
		SET order_index = ord.idx - 1, updated_at = CURRENT_TIMESTAMP
		FROM unnest($2::uuid[]) WITH ORDINALITY AS ord(task_id, idx)
		WHERE tasks.id = ord.task_id AND tasks.goal_id = $1`

	result, err := r.q.ExecContext(ctx, query, goalID, pq.Array(uuidStrings(orderedIDs)))
	if err != nil {
		return fmt.Errorf("reorder tasks: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if int(rowsAffected) != len(orderedIDs) {
		return entities.ErrTaskNotFound
	}

	return nil
}
