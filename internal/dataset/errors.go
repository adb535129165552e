package dataset

import "fmt"

// FormatError reports a dataset whose top-level shape cannot be used.
// It is raised before any engine call is made.
type FormatError struct {
	Path   string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dataset %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("dataset %s: %s", e.Path, e.Reason)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Rejection describes an array element that is not an object.
type Rejection struct {
	Index int
	Kind  string
}

func (r Rejection) Error() string {
	return fmt.Sprintf("entry %d: expected object, got %s", r.Index, r.Kind)
}
