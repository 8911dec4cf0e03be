package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/learnmap/core/internal/domain/entities"
)

type userProfileRepository struct {
	q querier
}

func (r *userProfileRepository) Create(ctx context.Context, profile *entities.UserProfile) error {
	query := `
		INSERT INTO user_profiles (id, name, email, avatar, color)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}

	err := r.q.QueryRowxContext(ctx, query,
		profile.ID, profile.Name, profile.Email, profile.Avatar, profile.Color,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create user profile: %w", err)
	}

	return nil
}

func (r *userProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.UserProfile, error) {
	query := `
		SELECT id, name, email, avatar, color, created_at, updated_at
		FROM user_profiles
		WHERE id = $1`

	var profile entities.UserProfile
	err := r.q.GetContext(ctx, &profile, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user profile by id: %w", err)
	}

	return &profile, nil
}

func (r *userProfileRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*entities.UserProfile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, name, email, avatar, color, created_at, updated_at
		FROM user_profiles
		WHERE id = ANY($1)`

	var profiles []*entities.UserProfile
	if err := r.q.SelectContext(ctx, &profiles, query, pq.Array(uuidStrings(ids))); err != nil {
		return nil, fmt.Errorf("list user profiles: %w", err)
	}

	return profiles, nil
}
