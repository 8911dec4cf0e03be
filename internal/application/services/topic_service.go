package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/learnmap/core/internal/domain/entities"
	"github.com/learnmap/core/internal/infrastructure/logger"
	"github.com/learnmap/core/internal/ports"
)

// TopicService handles topic and goal operations
type TopicService struct {
	store  ports.Store
	logger *logger.Logger
}

// NewTopicService creates a new topic service
func NewTopicService(store ports.Store, logger *logger.Logger) *TopicService {
	return &TopicService{
		store:  store,
		logger: logger,
	}
}

// CreateTopic creates a new topic owned by the given user
func (s *TopicService) CreateTopic(ctx context.Context, ownerID uuid.UUID, req ports.CreateTopicRequest) (*entities.Topic, error) {
	topic := &entities.Topic{
		ID:              uuid.New(),
		Title:           req.Title,
		Description:     req.Description,
		Subject:         req.Subject,
		Status:          entities.TopicStatusActive,
		IsCollaborative: req.IsCollaborative,
		ShowAvatars:     req.ShowAvatars,
		OwnerID:         ownerID,
	}

	if err := s.store.Topics().Create(ctx, topic); err != nil {
		return nil, fmt.Errorf("failed to create topic: %w", err)
	}

	s.logger.Infow("Topic created", "topic_id", topic.ID, "owner_id", ownerID)

	return topic, nil
}

// GetTopic retrieves a topic by ID. Archived topics are not part of the
// active view and report not found.
func (s *TopicService) GetTopic(ctx context.Context, id uuid.UUID) (*entities.Topic, error) {
	topic, err := s.store.Topics().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("topic not found: %w", err)
	}
	if topic.IsArchived() {
		return nil, entities.ErrTopicNotFound
	}

	return topic, nil
}

// UpdateTopic applies a partial update. Topic rows are last-writer-wins;
// only goals and tasks carry a version guard.
func (s *TopicService) UpdateTopic(ctx context.Context, id uuid.UUID, req ports.UpdateTopicRequest) (*entities.Topic, error) {
	topic, err := s.store.Topics().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("topic not found: %w", err)
	}

	if req.Title != nil {
		topic.Title = *req.Title
	}
	if req.Description != nil {
		topic.Description = req.Description
	}
	if req.Subject != nil {
		topic.Subject = req.Subject
	}
	if req.Status != nil {
		if !req.Status.IsValid() {
			return nil, &entities.InvalidParameterError{Reason: fmt.Sprintf("unknown topic status %q", *req.Status)}
		}
		topic.Status = *req.Status
	}
	if req.IsCollaborative != nil {
		topic.IsCollaborative = *req.IsCollaborative
	}
	if req.ShowAvatars != nil {
		topic.ShowAvatars = *req.ShowAvatars
	}

	if err := s.store.Topics().Update(ctx, topic); err != nil {
		return nil, fmt.Errorf("failed to update topic: %w", err)
	}

	s.logger.Infow("Topic updated", "topic_id", topic.ID)

	return topic, nil
}

// DeleteTopic archives a topic. The row and its children stay in storage
// and come back on restore.
func (s *TopicService) DeleteTopic(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.Topics().GetByID(ctx, id); err != nil {
		return fmt.Errorf("topic not found: %w", err)
	}

	if err := s.store.Topics().SetStatus(ctx, id, entities.TopicStatusArchived); err != nil {
		return fmt.Errorf("failed to archive topic: %w", err)
	}

	s.logger.Infow("Topic archived", "topic_id", id)

	return nil
}

// RestoreTopic brings an archived topic back into the active view
func (s *TopicService) RestoreTopic(ctx context.Context, id uuid.UUID) error {
	topic, err := s.store.Topics().GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("topic not found: %w", err)
	}
	if !topic.IsArchived() {
		return &entities.InvalidStateError{Reason: "topic is not archived"}
	}

	if err := s.store.Topics().SetStatus(ctx, id, entities.TopicStatusActive); err != nil {
		return fmt.Errorf("failed to restore topic: %w", err)
	}

	s.logger.Infow("Topic restored", "topic_id", id)

	return nil
}

// AddCollaborator joins a user onto a topic
func (s *TopicService) AddCollaborator(ctx context.Context, topicID, userID uuid.UUID) error {
	if _, err := s.store.Users().GetByID(ctx, userID); err != nil {
		return fmt.Errorf("collaborator not found: %w", err)
	}

	if err := s.store.Topics().AddCollaborator(ctx, topicID, userID); err != nil {
		return fmt.Errorf("failed to add collaborator: %w", err)
	}

	s.logger.Infow("Collaborator added", "topic_id", topicID, "user_id", userID)

	return nil
}

// RemoveCollaborator removes a user from a topic
func (s *TopicService) RemoveCollaborator(ctx context.Context, topicID, userID uuid.UUID) error {
	if err := s.store.Topics().RemoveCollaborator(ctx, topicID, userID); err != nil {
		return fmt.Errorf("failed to remove collaborator: %w", err)
	}

	s.logger.Infow("Collaborator removed", "topic_id", topicID, "user_id", userID)

	return nil
}

// AddGoal creates a new goal under a topic. New goals start at version 1.
func (s *TopicService) AddGoal(ctx context.Context, req ports.CreateGoalRequest) (*entities.Goal, error) {
	topic, err := s.store.Topics().GetByID(ctx, req.TopicID)
	if err != nil {
		return nil, fmt.Errorf("topic not found: %w", err)
	}
	if topic.IsArchived() {
		return nil, &entities.InvalidStateError{Reason: "cannot add a goal to an archived topic"}
	}

	priority := req.Priority
	if priority == "" {
		priority = entities.PriorityMedium
	}
	if !priority.IsValid() {
		return nil, &entities.InvalidParameterError{Reason: fmt.Sprintf("unknown priority %q", priority)}
	}

	goal := &entities.Goal{
		ID:          uuid.New(),
		TopicID:     req.TopicID,
		Title:       req.Title,
		Description: req.Description,
		Status:      entities.GoalStatusTodo,
		Priority:    priority,
		OrderIndex:  req.OrderIndex,
		OwnerID:     req.OwnerID,
		Version:     1,
	}

	if err := s.store.Goals().Create(ctx, goal); err != nil {
		return nil, fmt.Errorf("failed to create goal: %w", err)
	}

	s.logger.Infow("Goal created", "goal_id", goal.ID, "topic_id", req.TopicID)

	return goal, nil
}

// UpdateGoal applies a partial update guarded by the caller's last-seen
// version. A stale version returns VersionConflictError untouched.
func (s *TopicService) UpdateGoal(ctx context.Context, goalID uuid.UUID, expectedVersion int, req ports.UpdateGoalRequest) (*entities.Goal, error) {
	goal, err := s.store.Goals().GetByID(ctx, goalID)
	if err != nil {
		return nil, fmt.Errorf("goal not found: %w", err)
	}

	if req.Title != nil {
		goal.Title = *req.Title
	}
	if req.Description != nil {
		goal.Description = req.Description
	}
	if req.Status != nil {
		if !req.Status.IsValid() {
			return nil, &entities.InvalidParameterError{Reason: fmt.Sprintf("unknown goal status %q", *req.Status)}
		}
		goal.Status = *req.Status
	}
	if req.Priority != nil {
		if !req.Priority.IsValid() {
			return nil, &entities.InvalidParameterError{Reason: fmt.Sprintf("unknown priority %q", *req.Priority)}
		}
		goal.Priority = *req.Priority
	}
	if req.OrderIndex != nil {
		goal.OrderIndex = *req.OrderIndex
	}
	if req.NeedHelp != nil {
		goal.NeedHelp = *req.NeedHelp
	}
	if req.HelpMessage != nil {
		goal.HelpMessage = req.HelpMessage
	}
	if req.ReplyMessage != nil {
		goal.ReplyMessage = req.ReplyMessage
	}
	if req.RepliedBy != nil {
		goal.RepliedBy = req.RepliedBy
	}
	if req.CollaboratorIDs != nil {
		goal.CollaboratorIDs = *req.CollaboratorIDs
	}

	if err := s.store.Goals().UpdateVersioned(ctx, goal, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.Infow("Goal updated", "goal_id", goal.ID, "version", goal.Version)

	return goal, nil
}

// DeleteGoal archives a goal under the version guard
func (s *TopicService) DeleteGoal(ctx context.Context, goalID uuid.UUID, expectedVersion int) error {
	goal, err := s.store.Goals().GetByID(ctx, goalID)
	if err != nil {
		return fmt.Errorf("goal not found: %w", err)
	}

	goal.Status = entities.GoalStatusArchived
	if err := s.store.Goals().UpdateVersioned(ctx, goal, expectedVersion); err != nil {
		return err
	}

	s.logger.Infow("Goal archived", "goal_id", goalID)

	return nil
}

// RestoreGoal brings an archived goal back as todo
func (s *TopicService) RestoreGoal(ctx context.Context, goalID uuid.UUID) (*entities.Goal, error) {
	goal, err := s.store.Goals().GetByID(ctx, goalID)
	if err != nil {
		return nil, fmt.Errorf("goal not found: %w", err)
	}
	if !goal.IsArchived() {
		return nil, &entities.InvalidStateError{Reason: "goal is not archived"}
	}

	goal.Status = entities.GoalStatusTodo
	if err := s.store.Goals().UpdateVersioned(ctx, goal, goal.Version); err != nil {
		return nil, err
	}

	s.logger.Infow("Goal restored", "goal_id", goalID)

	return goal, nil
}
