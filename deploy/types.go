package deploy

import (
	"time"

	"github.com/GoCodeAlone/wsctl/config"
)

// Workspace is a snapshot of a remote workspace.
type Workspace struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CapacityID string `json:"capacityId,omitempty"`
}

// Folder is a snapshot of a remote folder within a workspace.
type Folder struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	WorkspaceID string `json:"workspaceId"`
}

// Item is a snapshot of a remote typed artifact. FolderName is resolved from
// the folder listing; items at the workspace root have an empty folder.
type Item struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	FolderID   string `json:"folderId,omitempty"`
	FolderName string `json:"folderName,omitempty"`
}

// Action classifies the outcome of an ensure call.
type Action string

const (
	ActionCreated Action = "created"
	ActionReused  Action = "reused"
)

// ProvisionOutcome is the result of ensuring a single item.
type ProvisionOutcome struct {
	Action Action          `json:"action"`
	ID     string          `json:"id"`
	Spec   config.ItemSpec `json:"spec"`
}

// WorkspaceHandle is the reconciler's result: the workspace identity plus
// everything it ensured during the run.
type WorkspaceHandle struct {
	ID      string             `json:"id"`
	Name    string             `json:"name"`
	Folders map[string]string  `json:"folders"` // folder name -> id
	Items   []ProvisionOutcome `json:"items"`
}

// OperationStatus is the state of a long-running remote operation.
type OperationStatus string

const (
	OperationRunning   OperationStatus = "Running"
	OperationSucceeded OperationStatus = "Succeeded"
	OperationFailed    OperationStatus = "Failed"
	OperationCancelled OperationStatus = "Cancelled"
)

// Terminal reports whether the status is final.
func (s OperationStatus) Terminal() bool {
	return s == OperationSucceeded || s == OperationFailed || s == OperationCancelled
}

// OperationHandle identifies an asynchronous remote operation that must be
// polled to completion.
type OperationHandle struct {
	ID           string        `json:"id"`
	Kind         string        `json:"kind"`
	StartedAt    time.Time     `json:"startedAt"`
	PollInterval time.Duration `json:"pollInterval"`
	Timeout      time.Duration `json:"timeout"`
}

// RequiredAction is what the remote platform asks for after a git connection
// is initialized.
type RequiredAction string

const (
	RequiredActionNone          RequiredAction = "None"
	RequiredActionUpdateFromGit RequiredAction = "UpdateFromGit"
	RequiredActionCommitToGit   RequiredAction = "CommitToGit"
)

// ProviderVariant classifies a version-control provider. Each variant has
// distinct credential and payload requirements.
type ProviderVariant string

const (
	// ProviderHosted is the public hosted git service (github.com).
	ProviderHosted ProviderVariant = "hosted"

	// ProviderEnterprise is the enterprise DevOps service with an embedded
	// organization/project/repository path (dev.azure.com).
	ProviderEnterprise ProviderVariant = "enterprise"
)

// RepoRef is the result of classifying a repository URL.
type RepoRef struct {
	Variant ProviderVariant `json:"variant"`
	Host    string          `json:"host"`
	Owner   string          `json:"owner"`             // hosted: owner; enterprise: organization
	Project string          `json:"project,omitempty"` // enterprise only
	Repo    string          `json:"repo"`
}

// ConnectionDetails is the provider-specific payload for creating a git
// connection. Token is carried opaquely; the engine never inspects it.
type ConnectionDetails struct {
	Variant      ProviderVariant `json:"variant"`
	WorkspaceID  string          `json:"workspaceId"`
	Owner        string          `json:"owner,omitempty"`
	Organization string          `json:"organization,omitempty"`
	Project      string          `json:"project,omitempty"`
	Repo         string          `json:"repo"`
	Branch       string          `json:"branch"`
	Directory    string          `json:"directory"`
	Token        string          `json:"-"`
}

// GitStatus is the state of the git-binding state machine.
type GitStatus string

const (
	GitNotConnected      GitStatus = "NotConnected"
	GitConnectionCreated GitStatus = "ConnectionCreated"
	GitInitialized       GitStatus = "Initialized"
	GitSynced            GitStatus = "Synced"
	GitFailed            GitStatus = "Failed"
)

// GitConnection is the live state of a workspace's version-control binding.
// At most one exists per workspace.
type GitConnection struct {
	Variant      ProviderVariant `json:"variant"`
	ConnectionID string          `json:"connectionId"`
	WorkspaceID  string          `json:"workspaceId"`
	Branch       string          `json:"branch"`
	Directory    string          `json:"directory"`
	Status       GitStatus       `json:"status"`
}
