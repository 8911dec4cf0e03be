package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/learnmap/core/internal/domain/entities"
)

type topicRepository struct {
	q querier
}

const topicColumns = `id, title, description, subject, status, is_collaborative, show_avatars,
		owner_id, created_at, updated_at`

func (r *topicRepository) Create(ctx context.Context, topic *entities.Topic) error {
	query := `
		INSERT INTO topics (id, title, description, subject, status, is_collaborative, show_avatars, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	if topic.ID == uuid.Nil {
		topic.ID = uuid.New()
	}

	err := r.q.QueryRowxContext(ctx, query,
		topic.ID, topic.Title, topic.Description, topic.Subject, topic.Status,
		topic.IsCollaborative, topic.ShowAvatars, topic.OwnerID,
	).Scan(&topic.CreatedAt, &topic.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create topic: %w", err)
	}

	return nil
}

func (r *topicRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Topic, error) {
	query := `SELECT ` + topicColumns + ` FROM topics WHERE id = $1`

	var topic entities.Topic
	err := r.q.GetContext(ctx, &topic, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrTopicNotFound
		}
		return nil, fmt.Errorf("get topic by id: %w", err)
	}

	return &topic, nil
}

func (r *topicRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*entities.Topic, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + topicColumns + ` FROM topics WHERE id = ANY($1)`

	var topics []*entities.Topic
	if err := r.q.SelectContext(ctx, &topics, query, pq.Array(uuidStrings(ids))); err != nil {
		return nil, fmt.Errorf("list topics by ids: %w", err)
	}

	return topics, nil
}

func (r *topicRepository) Update(ctx context.Context, topic *entities.Topic) error {
	query := `
		UPDATE topics
		SET title = $2, description = $3, subject = $4, status = $5,
			is_collaborative = $6, show_avatars = $7, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING updated_at`

	err := r.q.QueryRowxContext(ctx, query,
		topic.ID, topic.Title, topic.Description, topic.Subject, topic.Status,
		topic.IsCollaborative, topic.ShowAvatars,
	).Scan(&topic.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return entities.ErrTopicNotFound
		}
		return fmt.Errorf("update topic: %w", err)
	}

	return nil
}

func (r *topicRepository) SetStatus(ctx context.Context, id uuid.UUID, status entities.TopicStatus) error {
	query := `UPDATE topics SET status = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`

	result, err := r.q.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("set topic status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entities.ErrTopicNotFound
	}

	return nil
}

func (r *topicRepository) ListVisibleForUser(ctx context.Context, userID uuid.UUID) ([]*entities.Topic, error) {
	query := `
		SELECT ` + topicColumns + `
		FROM topics
		WHERE status NOT IN ('archived', 'hidden')
			AND (owner_id = $1 OR id IN (SELECT topic_id FROM topic_collaborators WHERE user_id = $1))
		ORDER BY created_at`

	var topics []*entities.Topic
	if err := r.q.SelectContext(ctx, &topics, query, userID); err != nil {
		return nil, fmt.Errorf("list topics for user: %w", err)
	}

	return topics, nil
}

func (r *topicRepository) ListCollaborators(ctx context.Context, topicIDs []uuid.UUID) ([]entities.TopicCollaborator, error) {
	if len(topicIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, topic_id, user_id, joined_at
		FROM topic_collaborators
		WHERE topic_id = ANY($1)
		ORDER BY joined_at`

	var collabs []entities.TopicCollaborator
	if err := r.q.SelectContext(ctx, &collabs, query, pq.Array(uuidStrings(topicIDs))); err != nil {
		return nil, fmt.Errorf("list topic collaborators: %w", err)
	}

	return collabs, nil
}

func (r *topicRepository) AddCollaborator(ctx context.Context, topicID, userID uuid.UUID) error {
	query := `
		INSERT INTO topic_collaborators (topic_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (topic_id, user_id) DO NOTHING`

	result, err := r.q.ExecContext(ctx, query, topicID, userID)
	if err != nil {
		return fmt.Errorf("add topic collaborator: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entities.ErrCollaboratorExists
	}

	return nil
}

func (r *topicRepository) RemoveCollaborator(ctx context.Context, topicID, userID uuid.UUID) error {
	query := `DELETE FROM topic_collaborators WHERE topic_id = $1 AND user_id = $2`

	result, err := r.q.ExecContext(ctx, query, topicID, userID)
	if err != nil {
		return fmt.Errorf("remove topic collaborator: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entities.ErrCollaboratorNotFound
	}

	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
