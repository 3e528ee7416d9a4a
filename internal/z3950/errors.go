package z3950

import "fmt"

// ConnectionError reports a transport or authentication failure while
// opening a session.
type ConnectionError struct {
	Server string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("z3950: connect %s: %v", e.Server, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SearchError reports a query the server refused or failed to run.
type SearchError struct {
	Server string
	Query  string
	Err    error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("z3950: search %s %q: %v", e.Server, e.Query, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// PresentError reports a failed record retrieval for a result window.
type PresentError struct {
	Server string
	Start  int
	Count  int
	Err    error
}

func (e *PresentError) Error() string {
	return fmt.Sprintf("z3950: present %s %d+%d: %v", e.Server, e.Start, e.Count, e.Err)
}

func (e *PresentError) Unwrap() error { return e.Err }

// StateError is returned when an operation is issued from a state that does
// not allow it.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("z3950: %s not allowed in state %s", e.Op, e.State)
}
