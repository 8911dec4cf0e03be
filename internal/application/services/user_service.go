package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/learnmap/core/internal/domain/entities"
	"github.com/learnmap/core/internal/infrastructure/logger"
	"github.com/learnmap/core/internal/ports"
)

// UserService handles profile operations. Profiles are display identity
// only; sessions and credentials live outside this service.
type UserService struct {
	store  ports.Store
	logger *logger.Logger
}

// NewUserService creates a new user service
func NewUserService(store ports.Store, logger *logger.Logger) *UserService {
	return &UserService{
		store:  store,
		logger: logger,
	}
}

// CreateProfile registers a display profile
func (s *UserService) CreateProfile(ctx context.Context, name, email string, avatar, color *string) (*entities.UserProfile, error) {
	profile := &entities.UserProfile{
		ID:     uuid.New(),
		Name:   name,
		Email:  email,
		Avatar: avatar,
		Color:  color,
	}

	if err := s.store.Users().Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	s.logger.Infow("Profile created", "user_id", profile.ID)

	return profile, nil
}

// GetProfile retrieves a profile by ID
func (s *UserService) GetProfile(ctx context.Context, id uuid.UUID) (*entities.UserProfile, error) {
	profile, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("profile not found: %w", err)
	}

	return profile, nil
}
