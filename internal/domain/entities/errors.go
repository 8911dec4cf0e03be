package entities

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// VersionConflictError reports a failed compare-and-swap write. Actual is
// the version currently stored, which callers use to refresh and retry.
type VersionConflictError struct {
	ID       uuid.UUID
	Expected int
	Actual   int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s: expected %d, have %d", e.ID, e.Expected, e.Actual)
}

// DuplicateActionError reports a second check-in on the same calendar day.
type DuplicateActionError struct {
	TaskID     uuid.UUID
	ActionDate string
}

func (e *DuplicateActionError) Error() string {
	return fmt.Sprintf("already checked in on task %s for %s", e.TaskID, e.ActionDate)
}

// InvalidParameterError reports a malformed or out-of-range action parameter.
type InvalidParameterError struct {
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return "invalid parameter: " + e.Reason
}

// InvalidStateError reports an action applied to a task that cannot
// accept it, such as an archived task.
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string {
	return "invalid state: " + e.Reason
}

func IsVersionConflict(err error) bool {
	var vc *VersionConflictError
	return errors.As(err, &vc)
}

func IsDuplicateAction(err error) bool {
	var da *DuplicateActionError
	return errors.As(err, &da)
}

func IsInvalidParameter(err error) bool {
	var ip *InvalidParameterError
	return errors.As(err, &ip)
}

func IsInvalidState(err error) bool {
	var is *InvalidStateError
	return errors.As(err, &is)
}
