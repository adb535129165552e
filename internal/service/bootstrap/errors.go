package bootstrap

import (
	"errors"
	"fmt"

	"github.com/zhouzirui/weibo-seed/internal/engine"
)

// ErrMissingUserID is wrapped by a RegistrationError when the engine answered
// a sign-up without assigning a user id.
var ErrMissingUserID = errors.New("sign-up response carried no user id")

// RegistrationError aborts a run. Agents registered before it remain on the engine.
type RegistrationError struct {
	Path      string
	Index     int
	DatasetID string
	AgentID   int
	Err       error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register agent %d (record %d, dataset id %q) from %s: %v",
		e.AgentID, e.Index, e.DatasetID, e.Path, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// ActionCallError is a failed follow or post call under the abort policy.
type ActionCallError struct {
	Path    string
	Index   int
	AgentID int
	Action  engine.ActionType
	Err     error
}

func (e *ActionCallError) Error() string {
	return fmt.Sprintf("%s by agent %d (record %d) from %s: %v", e.Action, e.AgentID, e.Index, e.Path, e.Err)
}

func (e *ActionCallError) Unwrap() error {
	return e.Err
}

// DuplicateIDError reports a dataset id declared by two records under the
// reject policy. It is raised before any engine call.
type DuplicateIDError struct {
	Path       string
	DatasetID  string
	FirstIndex int
	Index      int
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("dataset id %q in %s declared by records %d and %d", e.DatasetID, e.Path, e.FirstIndex, e.Index)
}
