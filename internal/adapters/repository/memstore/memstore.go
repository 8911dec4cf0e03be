// Package memstore is an in-memory ports.Store used by the service tests.
// It enforces the same version and uniqueness contracts as the postgres
// adapter, including all-or-nothing WithTx semantics.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/learnmap/core/internal/domain/entities"
	"github.com/learnmap/core/internal/ports"
)

type Store struct {
	mu sync.Mutex

	topics        map[uuid.UUID]*entities.Topic
	goals         map[uuid.UUID]*entities.Goal
	tasks         map[uuid.UUID]*entities.Task
	actions       map[uuid.UUID]*entities.TaskAction
	users         map[uuid.UUID]*entities.UserProfile
	collaborators []entities.TopicCollaborator

	collabSeq int
	queries   int
}

func New() *Store {
	return &Store{
		topics:  make(map[uuid.UUID]*entities.Topic),
		goals:   make(map[uuid.UUID]*entities.Goal),
		tasks:   make(map[uuid.UUID]*entities.Task),
		actions: make(map[uuid.UUID]*entities.TaskAction),
		users:   make(map[uuid.UUID]*entities.UserProfile),
	}
}

func (s *Store) Topics() ports.TopicRepository      { return (*topicRepo)(s) }
func (s *Store) Goals() ports.GoalRepository        { return (*goalRepo)(s) }
func (s *Store) Tasks() ports.TaskRepository        { return (*taskRepo)(s) }
func (s *Store) Actions() ports.TaskActionRepository { return (*actionRepo)(s) }
func (s *Store) Users() ports.UserProfileRepository { return (*userRepo)(s) }

// WithTx snapshots the maps, runs fn, and restores the snapshot when fn
// fails, so partial writes never leak out.
func (s *Store) WithTx(ctx context.Context, fn func(ports.Store) error) error {
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.restoreLocked(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

// QueryCount returns how many repository calls have been made. Tests use
// it to pin the loader's query budget.
func (s *Store) QueryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

func (s *Store) ResetQueryCount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = 0
}

type snapshot struct {
	topics        map[uuid.UUID]*entities.Topic
	goals         map[uuid.UUID]*entities.Goal
	tasks         map[uuid.UUID]*entities.Task
	actions       map[uuid.UUID]*entities.TaskAction
	users         map[uuid.UUID]*entities.UserProfile
	collaborators []entities.TopicCollaborator
}

func (s *Store) snapshotLocked() snapshot {
	snap := snapshot{
		topics:        make(map[uuid.UUID]*entities.Topic, len(s.topics)),
		goals:         make(map[uuid.UUID]*entities.Goal, len(s.goals)),
		tasks:         make(map[uuid.UUID]*entities.Task, len(s.tasks)),
		actions:       make(map[uuid.UUID]*entities.TaskAction, len(s.actions)),
		users:         make(map[uuid.UUID]*entities.UserProfile, len(s.users)),
		collaborators: append([]entities.TopicCollaborator(nil), s.collaborators...),
	}
	for id, t := range s.topics {
		snap.topics[id] = cloneTopic(t)
	}
	for id, g := range s.goals {
		snap.goals[id] = cloneGoal(g)
	}
	for id, t := range s.tasks {
		snap.tasks[id] = cloneTask(t)
	}
	for id, a := range s.actions {
		snap.actions[id] = cloneAction(a)
	}
	for id, u := range s.users {
		cp := *u
		snap.users[id] = &cp
	}
	return snap
}

func (s *Store) restoreLocked(snap snapshot) {
	s.topics = snap.topics
	s.goals = snap.goals
	s.tasks = snap.tasks
	s.actions = snap.actions
	s.users = snap.users
	s.collaborators = snap.collaborators
}

// topic repository

type topicRepo Store

func (r *topicRepo) Create(ctx context.Context, topic *entities.Topic) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if topic.ID == uuid.Nil {
		topic.ID = uuid.New()
	}
	now := time.Now()
	topic.CreatedAt = now
	topic.UpdatedAt = now
	s.topics[topic.ID] = cloneTopic(topic)
	return nil
}

func (r *topicRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Topic, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	t, ok := s.topics[id]
	if !ok {
		return nil, entities.ErrTopicNotFound
	}
	return cloneTopic(t), nil
}

func (r *topicRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*entities.Topic, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	var out []*entities.Topic
	for _, id := range ids {
		if t, ok := s.topics[id]; ok {
			out = append(out, cloneTopic(t))
		}
	}
	return out, nil
}

func (r *topicRepo) Update(ctx context.Context, topic *entities.Topic) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if _, ok := s.topics[topic.ID]; !ok {
		return entities.ErrTopicNotFound
	}
	topic.UpdatedAt = time.Now()
	s.topics[topic.ID] = cloneTopic(topic)
	return nil
}

func (r *topicRepo) SetStatus(ctx context.Context, id uuid.UUID, status entities.TopicStatus) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	t, ok := s.topics[id]
	if !ok {
		return entities.ErrTopicNotFound
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	return nil
}

func (r *topicRepo) ListVisibleForUser(ctx context.Context, userID uuid.UUID) ([]*entities.Topic, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	member := make(map[uuid.UUID]bool)
	for _, c := range s.collaborators {
		if c.UserID == userID {
			member[c.TopicID] = true
		}
	}
	var out []*entities.Topic
	for _, t := range s.topics {
		if t.Status == entities.TopicStatusArchived || t.Status == entities.TopicStatusHidden {
			continue
		}
		if t.OwnerID == userID || member[t.ID] {
			out = append(out, cloneTopic(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *topicRepo) ListCollaborators(ctx context.Context, topicIDs []uuid.UUID) ([]entities.TopicCollaborator, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	want := make(map[uuid.UUID]bool, len(topicIDs))
	for _, id := range topicIDs {
		want[id] = true
	}
	var out []entities.TopicCollaborator
	for _, c := range s.collaborators {
		if want[c.TopicID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *topicRepo) AddCollaborator(ctx context.Context, topicID, userID uuid.UUID) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if _, ok := s.topics[topicID]; !ok {
		return entities.ErrTopicNotFound
	}
	for _, c := range s.collaborators {
		if c.TopicID == topicID && c.UserID == userID {
			return entities.ErrCollaboratorExists
		}
	}
	s.collabSeq++
	s.collaborators = append(s.collaborators, entities.TopicCollaborator{
		ID:       s.collabSeq,
		TopicID:  topicID,
		UserID:   userID,
		JoinedAt: time.Now(),
	})
	return nil
}

func (r *topicRepo) RemoveCollaborator(ctx context.Context, topicID, userID uuid.UUID) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	for i, c := range s.collaborators {
		if c.TopicID == topicID && c.UserID == userID {
			s.collaborators = append(s.collaborators[:i], s.collaborators[i+1:]...)
			return nil
		}
	}
	return entities.ErrCollaboratorNotFound
}

// goal repository

type goalRepo Store

func (r *goalRepo) Create(ctx context.Context, goal *entities.Goal) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if goal.ID == uuid.Nil {
		goal.ID = uuid.New()
	}
	if goal.Version == 0 {
		goal.Version = 1
	}
	now := time.Now()
	goal.CreatedAt = now
	goal.UpdatedAt = now
	s.goals[goal.ID] = cloneGoal(goal)
	return nil
}

func (r *goalRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Goal, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	g, ok := s.goals[id]
	if !ok {
		return nil, entities.ErrGoalNotFound
	}
	return cloneGoal(g), nil
}

func (r *goalRepo) UpdateVersioned(ctx context.Context, goal *entities.Goal, expectedVersion int) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	stored, ok := s.goals[goal.ID]
	if !ok {
		return entities.ErrGoalNotFound
	}
	if stored.Version != expectedVersion {
		return &entities.VersionConflictError{ID: goal.ID, Expected: expectedVersion, Actual: stored.Version}
	}
	goal.Version = expectedVersion + 1
	goal.UpdatedAt = time.Now()
	goal.CreatedAt = stored.CreatedAt
	s.goals[goal.ID] = cloneGoal(goal)
	return nil
}

func (r *goalRepo) ListByTopicIDs(ctx context.Context, topicIDs []uuid.UUID) ([]*entities.Goal, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	want := make(map[uuid.UUID]bool, len(topicIDs))
	for _, id := range topicIDs {
		want[id] = true
	}
	var out []*entities.Goal
	for _, g := range s.goals {
		if want[g.TopicID] {
			out = append(out, cloneGoal(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (r *goalRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*entities.Goal, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	var out []*entities.Goal
	for _, id := range ids {
		if g, ok := s.goals[id]; ok {
			out = append(out, cloneGoal(g))
		}
	}
	return out, nil
}

// task repository

type taskRepo Store

func (r *taskRepo) Create(ctx context.Context, task *entities.Task) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Version == 0 {
		task.Version = 1
	}
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

func (r *taskRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Task, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	t, ok := s.tasks[id]
	if !ok {
		return nil, entities.ErrTaskNotFound
	}
	return cloneTask(t), nil
}

func (r *taskRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*entities.Task, error) {
	return r.GetByID(ctx, id)
}

func (r *taskRepo) UpdateVersioned(ctx context.Context, task *entities.Task, expectedVersion int) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	stored, ok := s.tasks[task.ID]
	if !ok {
		return entities.ErrTaskNotFound
	}
	if stored.Version != expectedVersion {
		return &entities.VersionConflictError{ID: task.ID, Expected: expectedVersion, Actual: stored.Version}
	}
	task.Version = expectedVersion + 1
	task.UpdatedAt = time.Now()
	task.CreatedAt = stored.CreatedAt
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

func (r *taskRepo) ListByGoalIDs(ctx context.Context, goalIDs []uuid.UUID) ([]*entities.Task, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	want := make(map[uuid.UUID]bool, len(goalIDs))
	for _, id := range goalIDs {
		want[id] = true
	}
	var out []*entities.Task
	for _, t := range s.tasks {
		if t.GoalID != nil && want[*t.GoalID] {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (r *taskRepo) ListActiveForUser(ctx context.Context, userID uuid.UUID) ([]*entities.Task, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	var out []*entities.Task
	for _, t := range s.tasks {
		if t.Status == entities.TaskStatusArchived || t.Status == entities.TaskStatusDone {
			continue
		}
		owned := t.OwnerID != nil && *t.OwnerID == userID
		if owned || t.CollaboratorIDs.Contains(userID) {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (r *taskRepo) Reorder(ctx context.Context, goalID uuid.UUID, orderedIDs []uuid.UUID) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	for idx, id := range orderedIDs {
		t, ok := s.tasks[id]
		if !ok || t.GoalID == nil || *t.GoalID != goalID {
			return entities.ErrTaskNotFound
		}
		t.OrderIndex = idx
		t.UpdatedAt = time.Now()
	}
	return nil
}

// action repository

type actionRepo Store

func (r *actionRepo) Insert(ctx context.Context, action *entities.TaskAction) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if action.ID == uuid.Nil {
		action.ID = uuid.New()
	}
	if action.ActionType == entities.ActionCheckIn {
		for _, a := range s.actions {
			if a.TaskID == action.TaskID && a.ActionType == entities.ActionCheckIn && a.ActionDate == action.ActionDate {
				return &entities.DuplicateActionError{TaskID: action.TaskID, ActionDate: string(action.ActionDate)}
			}
		}
	}
	action.CreatedAt = time.Now()
	s.actions[action.ID] = cloneAction(action)
	return nil
}

func (r *actionRepo) ExistsForDate(ctx context.Context, taskID uuid.UUID, actionType entities.ActionType, date string) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	for _, a := range s.actions {
		if a.TaskID == taskID && a.ActionType == actionType && a.ActionDate == entities.Date(date) {
			return true, nil
		}
	}
	return false, nil
}

func (r *actionRepo) ListByTask(ctx context.Context, taskID uuid.UUID) ([]entities.TaskAction, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	var out []entities.TaskAction
	for _, a := range s.actions {
		if a.TaskID == taskID {
			out = append(out, *cloneAction(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		// Tie-break equal timestamps by insertion time so the order is
		// deterministic even under a fixed clock.
		if out[i].ActionTimestamp.Equal(out[j].ActionTimestamp) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ActionTimestamp.Before(out[j].ActionTimestamp)
	})
	return out, nil
}

func (r *actionRepo) DeleteForDate(ctx context.Context, taskID uuid.UUID, actionType entities.ActionType, date string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	for id, a := range s.actions {
		if a.TaskID == taskID && a.ActionType == actionType && a.ActionDate == entities.Date(date) {
			delete(s.actions, id)
		}
	}
	return nil
}

func (r *actionRepo) DeleteByTask(ctx context.Context, taskID uuid.UUID) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	for id, a := range s.actions {
		if a.TaskID == taskID {
			delete(s.actions, id)
		}
	}
	return nil
}

// user repository

type userRepo Store

func (r *userRepo) Create(ctx context.Context, profile *entities.UserProfile) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	cp := *profile
	s.users[profile.ID] = &cp
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.UserProfile, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	u, ok := s.users[id]
	if !ok {
		return nil, entities.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *userRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*entities.UserProfile, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	var out []*entities.UserProfile
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

// clone helpers keep callers from mutating stored state through shared
// slices.

func cloneTopic(t *entities.Topic) *entities.Topic {
	cp := *t
	cp.Collaborators = append([]entities.UserProfile(nil), t.Collaborators...)
	cp.Goals = nil
	cp.Owner = nil
	return &cp
}

func cloneGoal(g *entities.Goal) *entities.Goal {
	cp := *g
	cp.CollaboratorIDs = append(entities.UUIDSlice(nil), g.CollaboratorIDs...)
	cp.Tasks = nil
	return &cp
}

func cloneTask(t *entities.Task) *entities.Task {
	cp := *t
	cp.CollaboratorIDs = append(entities.UUIDSlice(nil), t.CollaboratorIDs...)
	cp.ProgressData.CheckInDates = append([]string(nil), t.ProgressData.CheckInDates...)
	return &cp
}

func cloneAction(a *entities.TaskAction) *entities.TaskAction {
	cp := *a
	if a.ActionData != nil {
		cp.ActionData = make(entities.ActionData, len(a.ActionData))
		for k, v := range a.ActionData {
			cp.ActionData[k] = v
		}
	}
	return &cp
}
