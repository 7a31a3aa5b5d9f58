package messaging

import "fmt"

// ValidationError rejects a request before anything is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type NotFoundError struct {
	Entity string
	Id     int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.Id)
}

// ConsistencyError reports a derived write that failed after its primary
// write. The surrounding transaction has been rolled back.
type ConsistencyError struct {
	Op  string
	Err error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConsistencyError) Unwrap() error {
	return e.Err
}

// CorruptThreadError is returned when the stored reply graph contains a
// cycle or is deeper than the engine allows.
type CorruptThreadError struct {
	RootId int
	Reason string
}

func (e *CorruptThreadError) Error() string {
	if e.RootId == 0 {
		return "corrupt thread: " + e.Reason
	}
	return fmt.Sprintf("corrupt thread %d: %s", e.RootId, e.Reason)
}
