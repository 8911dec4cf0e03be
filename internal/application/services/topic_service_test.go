package services

import (
	"context"
	"testing"

	"github.com/learnmap/core/internal/domain/entities"
	"github.com/learnmap/core/internal/ports"
)

func (e *testEnv) createTopic(t *testing.T, title string) *entities.Topic {
	t.Helper()
	topic, err := e.topics.CreateTopic(context.Background(), e.userID, ports.CreateTopicRequest{Title: title})
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	return topic
}

func TestTopicArchiveRestoreRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	topic := env.createTopic(t, "mathematics")

	if err := env.topics.DeleteTopic(ctx, topic.ID); err != nil {
		t.Fatalf("DeleteTopic: %v", err)
	}

	// Archived topics vanish from the active view but stay restorable.
	if _, err := env.topics.GetTopic(ctx, topic.ID); err == nil {
		t.Error("archived topic still visible through GetTopic")
	}

	if err := env.topics.RestoreTopic(ctx, topic.ID); err != nil {
		t.Fatalf("RestoreTopic: %v", err)
	}

	restored, err := env.topics.GetTopic(ctx, topic.ID)
	if err != nil {
		t.Fatalf("GetTopic after restore: %v", err)
	}
	if restored.Status != entities.TopicStatusActive {
		t.Errorf("status = %q, want active", restored.Status)
	}
}

func TestRestoreActiveTopicFails(t *testing.T) {
	env := newTestEnv(t)
	topic := env.createTopic(t, "physics")

	err := env.topics.RestoreTopic(context.Background(), topic.ID)
	if !entities.IsInvalidState(err) {
		t.Fatalf("err = %v, want InvalidStateError", err)
	}
}

func TestGoalVersionedUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	topic := env.createTopic(t, "chemistry")

	goal, err := env.topics.AddGoal(ctx, ports.CreateGoalRequest{
		TopicID: topic.ID,
		Title:   "finish organic chapter",
	})
	if err != nil {
		t.Fatalf("AddGoal: %v", err)
	}
	if goal.Version != 1 {
		t.Fatalf("new goal version = %d, want 1", goal.Version)
	}

	status := entities.GoalStatusFocus
	updated, err := env.topics.UpdateGoal(ctx, goal.ID, goal.Version, ports.UpdateGoalRequest{Status: &status})
	if err != nil {
		t.Fatalf("UpdateGoal: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("version = %d, want 2", updated.Version)
	}

	_, err = env.topics.UpdateGoal(ctx, goal.ID, goal.Version, ports.UpdateGoalRequest{Title: strPtr("stale write")})
	if !entities.IsVersionConflict(err) {
		t.Fatalf("err = %v, want VersionConflictError", err)
	}
}

func TestGoalArchiveRestore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	topic := env.createTopic(t, "history")

	goal, err := env.topics.AddGoal(ctx, ports.CreateGoalRequest{TopicID: topic.ID, Title: "revolutions"})
	if err != nil {
		t.Fatalf("AddGoal: %v", err)
	}

	if err := env.topics.DeleteGoal(ctx, goal.ID, goal.Version); err != nil {
		t.Fatalf("DeleteGoal: %v", err)
	}

	restored, err := env.topics.RestoreGoal(ctx, goal.ID)
	if err != nil {
		t.Fatalf("RestoreGoal: %v", err)
	}
	if restored.Status != entities.GoalStatusTodo {
		t.Errorf("status = %q, want todo", restored.Status)
	}
}

func TestAddGoalToArchivedTopicFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	topic := env.createTopic(t, "latin")

	if err := env.topics.DeleteTopic(ctx, topic.ID); err != nil {
		t.Fatalf("DeleteTopic: %v", err)
	}

	_, err := env.topics.AddGoal(ctx, ports.CreateGoalRequest{TopicID: topic.ID, Title: "declensions"})
	if !entities.IsInvalidState(err) {
		t.Fatalf("err = %v, want InvalidStateError", err)
	}
}

func TestCollaboratorLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	topic := env.createTopic(t, "group project")

	friend := &entities.UserProfile{Name: "Jordan", Email: "jordan@example.com"}
	if err := env.store.Users().Create(ctx, friend); err != nil {
		t.Fatalf("create friend: %v", err)
	}

	if err := env.topics.AddCollaborator(ctx, topic.ID, friend.ID); err != nil {
		t.Fatalf("AddCollaborator: %v", err)
	}
	if err := env.topics.AddCollaborator(ctx, topic.ID, friend.ID); err == nil {
		t.Error("duplicate AddCollaborator should fail")
	}
	if err := env.topics.RemoveCollaborator(ctx, topic.ID, friend.ID); err != nil {
		t.Fatalf("RemoveCollaborator: %v", err)
	}
	if err := env.topics.RemoveCollaborator(ctx, topic.ID, friend.ID); err == nil {
		t.Error("removing an absent collaborator should fail")
	}
}
