package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/learnmap/core/internal/domain/entities"
)

type goalRepository struct {
	q querier
}

const goalColumns = `id, topic_id, title, description, status, priority, order_index,
		need_help, help_message, reply_message, replied_by, owner_id, collaborator_ids,
		version, created_at, updated_at`

func (r *goalRepository) Create(ctx context.Context, goal *entities.Goal) error {
	query := `
		INSERT INTO goals (id, topic_id, title, description, status, priority, order_index,
			need_help, help_message, owner_id, collaborator_ids, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	if goal.ID == uuid.Nil {
		goal.ID = uuid.New()
	}
	if goal.Version == 0 {
		goal.Version = 1
	}

	err := r.q.QueryRowxContext(ctx, query,
		goal.ID, goal.TopicID, goal.Title, goal.Description, goal.Status, goal.Priority,
		goal.OrderIndex, goal.NeedHelp, goal.HelpMessage, goal.OwnerID,
		goal.CollaboratorIDs, goal.Version,
	).Scan(&goal.CreatedAt, &goal.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create goal: %w", err)
	}

	return nil
}

func (r *goalRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE id = $1`

	var goal entities.Goal
	err := r.q.GetContext(ctx, &goal, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrGoalNotFound
		}
		return nil, fmt.Errorf("get goal by id: %w", err)
	}

	return &goal, nil
}

// UpdateVersioned is a compare-and-swap on the version column. Zero rows
// means either a missing goal or a stale version; a follow-up read tells
// the caller which, and what the current version is.
func (r *goalRepository) UpdateVersioned(ctx context.Context, goal *entities.Goal, expectedVersion int) error {
	query := `
		UPDATE goals
		SET title = $3, description = $4, status = $5, priority = $6, order_index = $7,
			need_help = $8, help_message = $9, reply_message = $10, replied_by = $11,
			collaborator_ids = $12, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at`

	err := r.q.QueryRowxContext(ctx, query,
		goal.ID, expectedVersion, goal.Title, goal.Description, goal.Status, goal.Priority,
		goal.OrderIndex, goal.NeedHelp, goal.HelpMessage, goal.ReplyMessage, goal.RepliedBy,
		goal.CollaboratorIDs,
	).Scan(&goal.Version, &goal.UpdatedAt)

	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("update goal: %w", err)
	}

	var actual int
	err = r.q.GetContext(ctx, &actual, `SELECT version FROM goals WHERE id = $1`, goal.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return entities.ErrGoalNotFound
		}
		return fmt.Errorf("read goal version: %w", err)
	}

	return &entities.VersionConflictError{ID: goal.ID, Expected: expectedVersion, Actual: actual}
}

func (r *goalRepository) ListByTopicIDs(ctx context.Context, topicIDs []uuid.UUID) ([]*entities.Goal, error) {
	if len(topicIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + goalColumns + ` FROM goals WHERE topic_id = ANY($1) ORDER BY order_index`

	var goals []*entities.Goal
	if err := r.q.SelectContext(ctx, &goals, query, pq.Array(uuidStrings(topicIDs))); err != nil {
		return nil, fmt.Errorf("list goals by topic ids: %w", err)
	}

	return goals, nil
}

func (r *goalRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*entities.Goal, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + goalColumns + ` FROM goals WHERE id = ANY($1)`

	var goals []*entities.Goal
	if err := r.q.SelectContext(ctx, &goals, query, pq.Array(uuidStrings(ids))); err != nil {
		return nil, fmt.Errorf("list goals by ids: %w", err)
	}

	return goals, nil
}
