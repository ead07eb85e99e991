package deploy

import "context"

// WorkspaceClient is the narrow contract the engine needs from the remote
// workspace API. Lookup methods return ErrNotFound (wrapped) when the
// resource does not exist; all other errors are already translated into the
// engine's error taxonomy by the implementation.
type WorkspaceClient interface {
	GetWorkspaceByName(ctx context.Context, name string) (*Workspace, error)
	CreateWorkspace(ctx context.Context, name, domain string) (*Workspace, error)
	AssignCapacity(ctx context.Context, workspaceID, capacityID string) error

	ListFolders(ctx context.Context, workspaceID string) ([]Folder, error)
	CreateFolder(ctx context.Context, workspaceID, name string) (*Folder, error)

	ListItems(ctx context.Context, workspaceID string) ([]Item, error)
	CreateItem(ctx context.Context, workspaceID, folderID, kind, name string) (*Item, error)

	GrantPrincipal(ctx context.Context, workspaceID, principalID, role string) error
	RevokePrincipal(ctx context.Context, workspaceID, principalID string) error

	DeleteWorkspace(ctx context.Context, workspaceID string) error
	DeleteFolder(ctx context.Context, workspaceID, folderID string) error
	DeleteItem(ctx context.Context, workspaceID, itemID string) error
}

// GitClient is the narrow contract the engine needs from the remote git
// integration API.
type GitClient interface {
	CreateConnection(ctx context.Context, details ConnectionDetails) (*GitConnection, error)
	InitializeConnection(ctx context.Context, workspaceID string) (RequiredAction, error)
	UpdateFromGit(ctx context.Context, workspaceID string) (*OperationHandle, error)
	CommitToGit(ctx context.Context, workspaceID string) (*OperationHandle, error)
	PollOperation(ctx context.Context, operationID string) (OperationStatus, error)
	DeleteConnection(ctx context.Context, connectionID string) error
}
