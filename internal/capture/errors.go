package capture

import "fmt"

// Error reports a failure while driving the browser.
type Error struct {
	Op    string // "scratch", "launch", "navigate", "screenshot", "encode"
	Frame int    // frame index for screenshot failures, -1 otherwise
	Err   error
}

func (e *Error) Error() string {
	if e.Frame >= 0 {
		return fmt.Sprintf("capture: %s frame %d: %v", e.Op, e.Frame, e.Err)
	}
	return fmt.Sprintf("capture: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func opError(op string, err error) *Error {
	return &Error{Op: op, Frame: -1, Err: err}
}
