package gifenc

import "fmt"

// Error reports a failure to assemble the animated image.
type Error struct {
	Op   string // "list", "decode", "encode", "write"
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("gifenc: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("gifenc: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
