package marc

import "fmt"

// FrameError reports a record that cannot be decoded or encoded as a whole.
type FrameError struct {
	Reason string
	Offset int
}

func (e *FrameError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("marc frame: %s (offset %d)", e.Reason, e.Offset)
	}
	return "marc frame: " + e.Reason
}

func frameErr(offset int, format string, args ...any) error {
	return &FrameError{Reason: fmt.Sprintf(format, args...), Offset: offset}
}
