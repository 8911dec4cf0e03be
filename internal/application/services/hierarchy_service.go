package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/learnmap/core/internal/domain/entities"
	"github.com/learnmap/core/internal/infrastructure/logger"
	"github.com/learnmap/core/internal/ports"
)

// HierarchyService assembles the topic tree for reads. It loads each
// level with one batched query, so the query count stays constant no
// matter how many topics the user has.
type HierarchyService struct {
	store  ports.Store
	logger *logger.Logger
}

// NewHierarchyService creates a new hierarchy service
func NewHierarchyService(store ports.Store, logger *logger.Logger) *HierarchyService {
	return &HierarchyService{
		store:  store,
		logger: logger,
	}
}

// FetchTopics returns the user's visible topics with goals, tasks,
// collaborators, and profiles attached, plus aggregate progress.
func (s *HierarchyService) FetchTopics(ctx context.Context, userID uuid.UUID) ([]*entities.Topic, error) {
	topics, err := s.store.Topics().ListVisibleForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	if len(topics) == 0 {
		return []*entities.Topic{}, nil
	}

	topicIDs := make([]uuid.UUID, len(topics))
	for i, t := range topics {
		topicIDs[i] = t.ID
	}

	if err := s.assemble(ctx, topics, topicIDs); err != nil {
		return nil, err
	}
	return topics, nil
}

// GetTopicWithStructure returns one topic assembled the same way as
// FetchTopics. Archived topics are not part of the active view.
func (s *HierarchyService) GetTopicWithStructure(ctx context.Context, topicID uuid.UUID) (*entities.Topic, error) {
	topic, err := s.store.Topics().GetByID(ctx, topicID)
	if err != nil {
		return nil, fmt.Errorf("topic not found: %w", err)
	}
	if topic.IsArchived() {
		return nil, entities.ErrTopicNotFound
	}

	topics := []*entities.Topic{topic}
	if err := s.assemble(ctx, topics, []uuid.UUID{topicID}); err != nil {
		return nil, err
	}
	return topic, nil
}

// GetActiveTasksForUser flattens every unfinished task the user owns or
// collaborates on, with topic and goal titles for display.
func (s *HierarchyService) GetActiveTasksForUser(ctx context.Context, userID uuid.UUID) ([]ports.ActiveTask, error) {
	tasks, err := s.store.Tasks().ListActiveForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tasks: %w", err)
	}
	if len(tasks) == 0 {
		return []ports.ActiveTask{}, nil
	}

	goalIDSet := make(map[uuid.UUID]bool)
	for _, t := range tasks {
		if t.GoalID != nil {
			goalIDSet[*t.GoalID] = true
		}
	}
	goalIDs := make([]uuid.UUID, 0, len(goalIDSet))
	for id := range goalIDSet {
		goalIDs = append(goalIDs, id)
	}

	goalByID := make(map[uuid.UUID]*entities.Goal)
	topicByID := make(map[uuid.UUID]*entities.Topic)
	if len(goalIDs) > 0 {
		goals, err := s.store.Goals().ListByIDs(ctx, goalIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load goals: %w", err)
		}
		topicIDSet := make(map[uuid.UUID]bool)
		for _, g := range goals {
			goalByID[g.ID] = g
			topicIDSet[g.TopicID] = true
		}
		topicIDs := make([]uuid.UUID, 0, len(topicIDSet))
		for id := range topicIDSet {
			topicIDs = append(topicIDs, id)
		}
		parentTopics, err := s.store.Topics().ListByIDs(ctx, topicIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load topics: %w", err)
		}
		for _, t := range parentTopics {
			topicByID[t.ID] = t
		}
	}

	out := make([]ports.ActiveTask, 0, len(tasks))
	for _, t := range tasks {
		row := ports.ActiveTask{Task: t}
		if t.GoalID != nil {
			goal, ok := goalByID[*t.GoalID]
			if !ok {
				s.logger.Warnw("Dropping task with dangling goal reference", "task_id", t.ID, "goal_id", *t.GoalID)
				continue
			}
			row.GoalTitle = goal.Title
			if topic, ok := topicByID[goal.TopicID]; ok {
				id := topic.ID
				row.TopicID = &id
				row.TopicTitle = topic.Title
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// assemble attaches children and computes progress for the given topics,
// using one batched query per level.
func (s *HierarchyService) assemble(ctx context.Context, topics []*entities.Topic, topicIDs []uuid.UUID) error {
	goals, err := s.store.Goals().ListByTopicIDs(ctx, topicIDs)
	if err != nil {
		return fmt.Errorf("failed to load goals: %w", err)
	}

	goalIDs := make([]uuid.UUID, 0, len(goals))
	goalByID := make(map[uuid.UUID]*entities.Goal, len(goals))
	for _, g := range goals {
		goalIDs = append(goalIDs, g.ID)
		goalByID[g.ID] = g
	}

	var tasks []*entities.Task
	if len(goalIDs) > 0 {
		tasks, err = s.store.Tasks().ListByGoalIDs(ctx, goalIDs)
		if err != nil {
			return fmt.Errorf("failed to load tasks: %w", err)
		}
	}

	collabs, err := s.store.Topics().ListCollaborators(ctx, topicIDs)
	if err != nil {
		return fmt.Errorf("failed to load collaborators: %w", err)
	}

	userIDSet := make(map[uuid.UUID]bool)
	for _, t := range topics {
		userIDSet[t.OwnerID] = true
	}
	for _, c := range collabs {
		userIDSet[c.UserID] = true
	}
	userIDs := make([]uuid.UUID, 0, len(userIDSet))
	for id := range userIDSet {
		userIDs = append(userIDs, id)
	}

	profiles, err := s.store.Users().ListByIDs(ctx, userIDs)
	if err != nil {
		return fmt.Errorf("failed to load user profiles: %w", err)
	}
	userByID := make(map[uuid.UUID]*entities.UserProfile, len(profiles))
	for _, u := range profiles {
		userByID[u.ID] = u
	}

	topicByID := make(map[uuid.UUID]*entities.Topic, len(topics))
	for _, t := range topics {
		t.Goals = []*entities.Goal{}
		t.Collaborators = []entities.UserProfile{}
		topicByID[t.ID] = t
		if owner, ok := userByID[t.OwnerID]; ok {
			t.Owner = owner
		}
	}

	for _, c := range collabs {
		topic, ok := topicByID[c.TopicID]
		if !ok {
			continue
		}
		if profile, ok := userByID[c.UserID]; ok {
			topic.Collaborators = append(topic.Collaborators, *profile)
		}
	}

	tasksByGoal := make(map[uuid.UUID][]*entities.Task)
	for _, t := range tasks {
		if t.GoalID == nil {
			continue
		}
		if _, ok := goalByID[*t.GoalID]; !ok {
			s.logger.Warnw("Dropping task with dangling goal reference", "task_id", t.ID, "goal_id", *t.GoalID)
			continue
		}
		tasksByGoal[*t.GoalID] = append(tasksByGoal[*t.GoalID], t)
	}

	for _, g := range goals {
		topic, ok := topicByID[g.TopicID]
		if !ok {
			s.logger.Warnw("Dropping goal with dangling topic reference", "goal_id", g.ID, "topic_id", g.TopicID)
			continue
		}
		if g.IsArchived() {
			continue
		}
		g.Tasks = []*entities.Task{}
		for _, t := range tasksByGoal[g.ID] {
			if t.IsArchived() {
				continue
			}
			g.Tasks = append(g.Tasks, t)
		}
		sort.Slice(g.Tasks, func(i, j int) bool { return g.Tasks[i].OrderIndex < g.Tasks[j].OrderIndex })
		topic.Goals = append(topic.Goals, g)
	}

	for _, t := range topics {
		sort.Slice(t.Goals, func(i, j int) bool { return t.Goals[i].OrderIndex < t.Goals[j].OrderIndex })
		t.Progress = topicProgress(t)
	}
	return nil
}

// topicProgress is the share of done tasks across the topic's active
// goals, rounded to whole percent. No tasks means zero.
func topicProgress(topic *entities.Topic) int {
	total := 0
	done := 0
	for _, g := range topic.Goals {
		for _, t := range g.Tasks {
			total++
			if t.IsDone() {
				done++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}
