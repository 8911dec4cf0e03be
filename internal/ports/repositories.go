package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/learnmap/core/internal/domain/entities"
)

// TopicRepository defines the interface for topic data operations
type TopicRepository interface {
	Create(ctx context.Context, topic *entities.Topic) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Topic, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*entities.Topic, error)
	Update(ctx context.Context, topic *entities.Topic) error
	SetStatus(ctx context.Context, id uuid.UUID, status entities.TopicStatus) error
	ListVisibleForUser(ctx context.Context, userID uuid.UUID) ([]*entities.Topic, error)
	ListCollaborators(ctx context.Context, topicIDs []uuid.UUID) ([]entities.TopicCollaborator, error)
	AddCollaborator(ctx context.Context, topicID, userID uuid.UUID) error
	RemoveCollaborator(ctx context.Context, topicID, userID uuid.UUID) error
}

// GoalRepository defines the interface for goal data operations.
// UpdateVersioned is a compare-and-swap on the version column; a stale
// expected version yields *entities.VersionConflictError.
type GoalRepository interface {
	Create(ctx context.Context, goal *entities.Goal) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Goal, error)
	UpdateVersioned(ctx context.Context, goal *entities.Goal, expectedVersion int) error
	ListByTopicIDs(ctx context.Context, topicIDs []uuid.UUID) ([]*entities.Goal, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*entities.Goal, error)
}

// TaskRepository defines the interface for task data operations
type TaskRepository interface {
	Create(ctx context.Context, task *entities.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Task, error)
	// GetForUpdate locks the row for the duration of the enclosing
	// transaction. Outside a transaction it behaves like GetByID.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*entities.Task, error)
	UpdateVersioned(ctx context.Context, task *entities.Task, expectedVersion int) error
	ListByGoalIDs(ctx context.Context, goalIDs []uuid.UUID) ([]*entities.Task, error)
	ListActiveForUser(ctx context.Context, userID uuid.UUID) ([]*entities.Task, error)
	Reorder(ctx context.Context, goalID uuid.UUID, orderedIDs []uuid.UUID) error
}

// TaskActionRepository defines the interface for the append-only action log
type TaskActionRepository interface {
	Insert(ctx context.Context, action *entities.TaskAction) error
	ExistsForDate(ctx context.Context, taskID uuid.UUID, actionType entities.ActionType, date string) (bool, error)
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]entities.TaskAction, error)
	// DeleteForDate erases one day's entry of the given type. Cancelling a
	// check-in removes the check_in row so the log replays to the cache.
	DeleteForDate(ctx context.Context, taskID uuid.UUID, actionType entities.ActionType, date string) error
	DeleteByTask(ctx context.Context, taskID uuid.UUID) error
}

// UserProfileRepository defines the interface for profile lookups
type UserProfileRepository interface {
	Create(ctx context.Context, profile *entities.UserProfile) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.UserProfile, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*entities.UserProfile, error)
}

// Store bundles the repositories behind one transactional boundary.
// WithTx runs fn against a store whose repositories share a single
// database transaction; any error rolls the whole unit back.
type Store interface {
	Topics() TopicRepository
	Goals() GoalRepository
	Tasks() TaskRepository
	Actions() TaskActionRepository
	Users() UserProfileRepository
	WithTx(ctx context.Context, fn func(Store) error) error
}
