package deploy

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by remote clients when a workspace, folder, item,
// or operation does not exist.
var ErrNotFound = errors.New("deploy: resource not found")

// AuthenticationError is returned when the remote platform rejects the
// run's credentials. It is fatal: no retry, abort and roll back.
type AuthenticationError struct {
	// Operation is the remote operation that was rejected.
	Operation string

	// Status is the HTTP status reported by the platform, if any.
	Status int
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("authentication failed during %s (status %d)", e.Operation, e.Status)
	}
	return fmt.Sprintf("authentication failed during %s", e.Operation)
}

// CapacityUnavailableError is returned when capacity assignment fails.
// It is transient: the reconciler retries with bounded backoff before
// escalating to fatal.
type CapacityUnavailableError struct {
	// CapacityID is the capacity that could not be assigned.
	CapacityID string

	// Reason describes why the assignment failed.
	Reason string
}

// Error implements the error interface.
func (e *CapacityUnavailableError) Error() string {
	return fmt.Sprintf("capacity %q unavailable: %s", e.CapacityID, e.Reason)
}

// ResourceConflictError is returned when an item with the same name and kind
// already exists. A conflict within the declared folder is absorbed as a
// reuse; a conflict in a different folder is ambiguous and fatal.
type ResourceConflictError struct {
	// Kind is the item kind.
	Kind string

	// Name is the item name.
	Name string

	// Folder is the folder the plan declared for the item.
	Folder string

	// ExistingFolder is the folder the conflicting item actually lives in.
	ExistingFolder string
}

// Error implements the error interface.
func (e *ResourceConflictError) Error() string {
	if e.Folder == "" && e.ExistingFolder == "" {
		return fmt.Sprintf("%s %q already exists", e.Kind, e.Name)
	}
	return fmt.Sprintf("item %s %q declared in folder %q already exists in folder %q",
		e.Kind, e.Name, e.Folder, e.ExistingFolder)
}

// CrossFolder reports whether the conflict involves a different folder than
// the plan declared, which makes the item's identity ambiguous.
func (e *ResourceConflictError) CrossFolder() bool {
	return e.Folder != e.ExistingFolder
}

// UnsupportedKindError is returned when the remote platform does not
// recognize an item kind string.
type UnsupportedKindError struct {
	// Kind is the rejected kind label.
	Kind string
}

// Error implements the error interface.
func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("item kind %q is not supported by the remote platform", e.Kind)
}

// UnsupportedProviderError is returned when a repository URL does not match
// any known version-control provider shape.
type UnsupportedProviderError struct {
	// URL is the repository URL that could not be classified.
	URL string
}

// Error implements the error interface.
func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("repository URL %q does not match any supported git provider", e.URL)
}

// GitConnectionError is returned when the git-binding state machine fails.
// It is fatal for the binding phase and propagates to the orchestrator,
// which rolls back everything.
type GitConnectionError struct {
	// Stage is the state-machine stage that failed: "configure", "resolve",
	// "connect", "initialize", "update-from-git", "commit-to-git", or "poll".
	Stage string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *GitConnectionError) Error() string {
	return fmt.Sprintf("git binding failed at %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *GitConnectionError) Unwrap() error { return e.Err }

// OperationTimeoutError is returned when a long-running operation does not
// reach a terminal status before its timeout. It is distinct from a
// remote-reported failure so callers can decide between retrying the phase
// and aborting.
type OperationTimeoutError struct {
	// OperationID is the remote operation identifier.
	OperationID string

	// Kind is the operation kind (e.g. "updateFromGit").
	Kind string

	// Timeout is the deadline that elapsed.
	Timeout time.Duration
}

// Error implements the error interface.
func (e *OperationTimeoutError) Error() string {
	return fmt.Sprintf("operation %s (%s) did not complete within %v", e.OperationID, e.Kind, e.Timeout)
}
