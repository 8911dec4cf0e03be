package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrTopicNotFound        = errors.New("topic not found")
	ErrGoalNotFound         = errors.New("goal not found")
	ErrTaskNotFound         = errors.New("task not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrCollaboratorExists   = errors.New("collaborator already added")
	ErrCollaboratorNotFound = errors.New("collaborator not found")
)

// Enums and types
type TopicStatus string

const (
	TopicStatusActive    TopicStatus = "active"
	TopicStatusArchived  TopicStatus = "archived"
	TopicStatusHidden    TopicStatus = "hidden"
	TopicStatusCompleted TopicStatus = "completed"
)

type GoalStatus string

const (
	GoalStatusTodo     GoalStatus = "todo"
	GoalStatusPause    GoalStatus = "pause"
	GoalStatusFocus    GoalStatus = "focus"
	GoalStatusFinish   GoalStatus = "finish"
	GoalStatusComplete GoalStatus = "complete"
	GoalStatusArchived GoalStatus = "archived"
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusArchived   TaskStatus = "archived"
	TaskStatusIdea       TaskStatus = "idea"
)

type TaskType string

const (
	TaskTypeSingle       TaskType = "single"
	TaskTypeCount        TaskType = "count"
	TaskTypeStreak       TaskType = "streak"
	TaskTypeAccumulative TaskType = "accumulative"
	TaskTypeDuration     TaskType = "duration"
)

type ActionType string

const (
	ActionCheckIn       ActionType = "check_in"
	ActionAddCount      ActionType = "add_count"
	ActionAddAmount     ActionType = "add_amount"
	ActionReset         ActionType = "reset"
	ActionComplete      ActionType = "complete"
	ActionCancelCheckIn ActionType = "cancel_check_in"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type CycleType string

const (
	CycleNone    CycleType = "none"
	CycleWeekly  CycleType = "weekly"
	CycleMonthly CycleType = "monthly"
)

// UserProfile is the identity attached to owners and collaborators.
type UserProfile struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Avatar    *string   `json:"avatar" db:"avatar"`
	Color     *string   `json:"color" db:"color"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Topic is the root of the learning hierarchy.
type Topic struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	Title           string        `json:"title" db:"title"`
	Description     *string       `json:"description" db:"description"`
	Subject         *string       `json:"subject" db:"subject"`
	Status          TopicStatus   `json:"status" db:"status"`
	IsCollaborative bool          `json:"is_collaborative" db:"is_collaborative"`
	ShowAvatars     bool          `json:"show_avatars" db:"show_avatars"`
	OwnerID         uuid.UUID     `json:"owner_id" db:"owner_id"`
	Owner           *UserProfile  `json:"owner,omitempty"`
	Collaborators   []UserProfile `json:"collaborators"`
	Goals           []*Goal       `json:"goals"`
	Progress        int           `json:"progress"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// Goal is the middle layer of the hierarchy. Writes are guarded by Version.
type Goal struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	TopicID         uuid.UUID   `json:"topic_id" db:"topic_id"`
	Title           string      `json:"title" db:"title"`
	Description     *string     `json:"description" db:"description"`
	Status          GoalStatus  `json:"status" db:"status"`
	Priority        Priority    `json:"priority" db:"priority"`
	OrderIndex      int         `json:"order_index" db:"order_index"`
	NeedHelp        bool        `json:"need_help" db:"need_help"`
	HelpMessage     *string     `json:"help_message" db:"help_message"`
	ReplyMessage    *string     `json:"reply_message" db:"reply_message"`
	RepliedBy       *uuid.UUID  `json:"replied_by" db:"replied_by"`
	OwnerID         *uuid.UUID  `json:"owner_id" db:"owner_id"`
	CollaboratorIDs UUIDSlice   `json:"collaborator_ids" db:"collaborator_ids"`
	Version         int         `json:"version" db:"version"`
	Tasks           []*Task     `json:"tasks"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

// Task is the leaf of the hierarchy. GoalID nil means an independent task
// outside any topic structure.
type Task struct {
	ID               uuid.UUID    `json:"id" db:"id"`
	GoalID           *uuid.UUID   `json:"goal_id" db:"goal_id"`
	Title            string       `json:"title" db:"title"`
	Description      *string      `json:"description" db:"description"`
	Status           TaskStatus   `json:"status" db:"status"`
	Priority         Priority     `json:"priority" db:"priority"`
	OrderIndex       int          `json:"order_index" db:"order_index"`
	NeedHelp         bool         `json:"need_help" db:"need_help"`
	HelpMessage      *string      `json:"help_message" db:"help_message"`
	ReplyMessage     *string      `json:"reply_message" db:"reply_message"`
	TaskType         TaskType     `json:"task_type" db:"task_type"`
	TaskConfig       TaskConfig   `json:"task_config" db:"task_config"`
	CycleConfig      CycleConfig  `json:"cycle_config" db:"cycle_config"`
	ProgressData     ProgressData `json:"progress_data" db:"progress_data"`
	Version          int          `json:"version" db:"version"`
	OwnerID          *uuid.UUID   `json:"owner_id" db:"owner_id"`
	CreatorID        *uuid.UUID   `json:"creator_id" db:"creator_id"`
	CollaboratorIDs  UUIDSlice    `json:"collaborator_ids" db:"collaborator_ids"`
	CompletedAt      *time.Time   `json:"completed_at" db:"completed_at"`
	CompletedBy      *uuid.UUID   `json:"completed_by" db:"completed_by"`
	EstimatedMinutes *int         `json:"estimated_minutes" db:"estimated_minutes"`
	ActualMinutes    *int         `json:"actual_minutes" db:"actual_minutes"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" db:"updated_at"`
}

// TaskConfig carries the per-type target. Only the fields relevant to the
// task's type are meaningful; the rest stay zero.
type TaskConfig struct {
	TargetCount   int     `json:"target_count,omitempty"`
	TargetDays    int     `json:"target_days,omitempty"`
	TargetAmount  float64 `json:"target_amount,omitempty"`
	Unit          string  `json:"unit,omitempty"`
	TargetMinutes int     `json:"target_minutes,omitempty"`
}

// CycleConfig describes periodic reset behavior for repeatable tasks.
type CycleConfig struct {
	CycleType      CycleType `json:"cycle_type"`
	CycleStartDate string    `json:"cycle_start_date,omitempty"`
	AutoReset      bool      `json:"auto_reset"`
}

// ProgressData is a cache over the task's action log. Everything in it is
// recomputable from the recorded actions since the last reset.
type ProgressData struct {
	CurrentCount         int       `json:"current_count"`
	CheckInDates         []string  `json:"check_in_dates,omitempty"`
	CurrentStreak        int       `json:"current_streak"`
	MaxStreak            int       `json:"max_streak"`
	CurrentAmount        float64   `json:"current_amount"`
	AccumulatedMinutes   int       `json:"accumulated_minutes"`
	CompletionPercentage float64   `json:"completion_percentage"`
	LastUpdated          time.Time `json:"last_updated"`
}

// TaskAction is one append-only audit record of a progress mutation.
type TaskAction struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	TaskID          uuid.UUID  `json:"task_id" db:"task_id"`
	ActionType      ActionType `json:"action_type" db:"action_type"`
	ActionDate      Date       `json:"action_date" db:"action_date"`
	ActionTimestamp time.Time  `json:"action_timestamp" db:"action_timestamp"`
	UserID          uuid.UUID  `json:"user_id" db:"user_id"`
	ActionData      ActionData `json:"action_data" db:"action_data"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// ActionData is the free-form JSONB payload attached to an action row.
type ActionData map[string]interface{}

// TopicCollaborator joins users onto shared topics.
type TopicCollaborator struct {
	ID       int       `json:"id" db:"id"`
	TopicID  uuid.UUID `json:"topic_id" db:"topic_id"`
	UserID   uuid.UUID `json:"user_id" db:"user_id"`
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`
}

// Business logic methods for Topic
func (t *Topic) IsArchived() bool {
	return t.Status == TopicStatusArchived
}

func (t *Topic) IsVisible() bool {
	return t.Status != TopicStatusArchived && t.Status != TopicStatusHidden
}

func (t *Topic) HasCollaborator(userID uuid.UUID) bool {
	for _, c := range t.Collaborators {
		if c.ID == userID {
			return true
		}
	}
	return false
}

// Business logic methods for Goal
func (g *Goal) IsArchived() bool {
	return g.Status == GoalStatusArchived
}

func (g *Goal) IsDone() bool {
	return g.Status == GoalStatusFinish || g.Status == GoalStatusComplete
}

// Business logic methods for Task
func (t *Task) IsArchived() bool {
	return t.Status == TaskStatusArchived
}

func (t *Task) IsDone() bool {
	return t.Status == TaskStatusDone
}

// CanAcceptAction reports whether progress actions may be applied.
// Archived tasks are frozen until restored.
func (t *Task) CanAcceptAction() bool {
	return t.Status != TaskStatusArchived
}

// HasCheckInOn reports whether the cached check-in history already
// contains the given YYYY-MM-DD date.
func (t *Task) HasCheckInOn(date string) bool {
	for _, d := range t.ProgressData.CheckInDates {
		if d == date {
			return true
		}
	}
	return false
}

// Target returns the numeric goal for the task's type, as a float for
// uniform percentage math. Single tasks report 1.
func (c TaskConfig) Target(taskType TaskType) float64 {
	switch taskType {
	case TaskTypeCount:
		return float64(c.TargetCount)
	case TaskTypeStreak:
		return float64(c.TargetDays)
	case TaskTypeAccumulative:
		return c.TargetAmount
	case TaskTypeDuration:
		return float64(c.TargetMinutes)
	default:
		return 1
	}
}

// Current returns the progress value matching Target's scale.
func (p ProgressData) Current(taskType TaskType) float64 {
	switch taskType {
	case TaskTypeCount:
		return float64(p.CurrentCount)
	case TaskTypeStreak:
		return float64(len(p.CheckInDates))
	case TaskTypeAccumulative:
		return p.CurrentAmount
	case TaskTypeDuration:
		return float64(p.AccumulatedMinutes)
	case TaskTypeSingle:
		return float64(p.CurrentCount)
	default:
		return 0
	}
}

// ComputeCompletionPercentage is the single authority for percentage math.
// min(100, current/target*100), 0 when the target is unset.
func ComputeCompletionPercentage(taskType TaskType, cfg TaskConfig, pd ProgressData) float64 {
	target := cfg.Target(taskType)
	if target <= 0 {
		return 0
	}
	pct := pd.Current(taskType) / target * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// AppliesTo reports whether the action type is legal for the task type.
func (a ActionType) AppliesTo(t TaskType) bool {
	switch a {
	case ActionCheckIn, ActionCancelCheckIn:
		return t == TaskTypeStreak
	case ActionAddCount:
		return t == TaskTypeCount
	case ActionAddAmount:
		return t == TaskTypeAccumulative || t == TaskTypeDuration
	case ActionComplete:
		return t == TaskTypeSingle
	case ActionReset:
		return true
	default:
		return false
	}
}

// Utility methods
func (ts TopicStatus) IsValid() bool {
	switch ts {
	case TopicStatusActive, TopicStatusArchived, TopicStatusHidden, TopicStatusCompleted:
		return true
	default:
		return false
	}
}

func (gs GoalStatus) IsValid() bool {
	switch gs {
	case GoalStatusTodo, GoalStatusPause, GoalStatusFocus, GoalStatusFinish, GoalStatusComplete, GoalStatusArchived:
		return true
	default:
		return false
	}
}

func (ts TaskStatus) IsValid() bool {
	switch ts {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone, TaskStatusArchived, TaskStatusIdea:
		return true
	default:
		return false
	}
}

func (tt TaskType) IsValid() bool {
	switch tt {
	case TaskTypeSingle, TaskTypeCount, TaskTypeStreak, TaskTypeAccumulative, TaskTypeDuration:
		return true
	default:
		return false
	}
}

// NormalizeTaskType maps the legacy "check_in" alias onto streak.
func NormalizeTaskType(raw string) (TaskType, bool) {
	if raw == "check_in" {
		return TaskTypeStreak, true
	}
	tt := TaskType(raw)
	return tt, tt.IsValid()
}

func (at ActionType) IsValid() bool {
	switch at {
	case ActionCheckIn, ActionAddCount, ActionAddAmount, ActionReset, ActionComplete, ActionCancelCheckIn:
		return true
	default:
		return false
	}
}

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

func (ct CycleType) IsValid() bool {
	switch ct {
	case CycleNone, CycleWeekly, CycleMonthly:
		return true
	default:
		return false
	}
}
