package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/learnmap/core/internal/infrastructure/database"
	"github.com/learnmap/core/internal/ports"
)

// querier is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx, so every
// repository runs unchanged inside and outside a transaction.
type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Store is the postgres-backed ports.Store
type Store struct {
	db *database.DB
	q  querier
}

// NewStore creates a store over the given database connection
func NewStore(db *database.DB) *Store {
	return &Store{db: db, q: db.DB}
}

func (s *Store) Topics() ports.TopicRepository       { return &topicRepository{q: s.q} }
func (s *Store) Goals() ports.GoalRepository         { return &goalRepository{q: s.q} }
func (s *Store) Tasks() ports.TaskRepository         { return &taskRepository{q: s.q} }
func (s *Store) Actions() ports.TaskActionRepository { return &taskActionRepository{q: s.q} }
func (s *Store) Users() ports.UserProfileRepository  { return &userProfileRepository{q: s.q} }

// WithTx runs fn against a store bound to one transaction. Nested calls
// join the transaction already in flight.
func (s *Store) WithTx(ctx context.Context, fn func(ports.Store) error) error {
	if _, ok := s.q.(*sqlx.Tx); ok {
		return fn(s)
	}
	return s.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		return fn(&Store{db: s.db, q: tx})
	})
}
