package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/GoCodeAlone/wsctl/deploy"
)

// WorkspaceClient implements deploy.WorkspaceClient against the platform's
// workspace REST API.
type WorkspaceClient struct {
	c *client
}

// NewWorkspaceClient creates a workspace API client.
func NewWorkspaceClient(cfg Config, logger *slog.Logger) (*WorkspaceClient, error) {
	c, err := newClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &WorkspaceClient{c: c}, nil
}

type workspaceDoc struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	CapacityID  string `json:"capacityId,omitempty"`
}

type folderDoc struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	WorkspaceID string `json:"workspaceId"`
}

type itemDoc struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Type        string `json:"type"`
	FolderID    string `json:"folderId,omitempty"`
}

type listEnvelope[T any] struct {
	Value []T `json:"value"`
}

// GetWorkspaceByName looks a workspace up by display name. Absence is
// reported as deploy.ErrNotFound.
func (w *WorkspaceClient) GetWorkspaceByName(ctx context.Context, name string) (*deploy.Workspace, error) {
	resp, err := w.c.do(ctx, http.MethodGet, "/workspaces?name="+url.QueryEscape(name), nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, translateError("get workspace", resp)
	}
	var list listEnvelope[workspaceDoc]
	if err := resp.decode(&list); err != nil {
		return nil, fmt.Errorf("get workspace: decode: %w", err)
	}
	for _, ws := range list.Value {
		if ws.DisplayName == name {
			return &deploy.Workspace{ID: ws.ID, Name: ws.DisplayName, CapacityID: ws.CapacityID}, nil
		}
	}
	return nil, fmt.Errorf("workspace %q: %w", name, deploy.ErrNotFound)
}

// CreateWorkspace creates a workspace, optionally tagged with a domain.
func (w *WorkspaceClient) CreateWorkspace(ctx context.Context, name, domain string) (*deploy.Workspace, error) {
	payload := map[string]string{"displayName": name}
	if domain != "" {
		payload["domain"] = domain
	}
	resp, err := w.c.do(ctx, http.MethodPost, "/workspaces", payload)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, translateError("create workspace", resp)
	}
	var ws workspaceDoc
	if err := resp.decode(&ws); err != nil {
		return nil, fmt.Errorf("create workspace: decode: %w", err)
	}
	return &deploy.Workspace{ID: ws.ID, Name: ws.DisplayName}, nil
}

// AssignCapacity binds the workspace to a capacity. 409 and 503 responses
// become *deploy.CapacityUnavailableError so the reconciler can retry them;
// capacity assignment is eventually consistent after workspace creation.
func (w *WorkspaceClient) AssignCapacity(ctx context.Context, workspaceID, capacityID string) error {
	resp, err := w.c.do(ctx, http.MethodPost, "/workspaces/"+workspaceID+"/assignToCapacity",
		map[string]string{"capacityId": capacityID})
	if err != nil {
		return err
	}
	if resp.ok() {
		return nil
	}
	switch resp.status {
	case http.StatusConflict, http.StatusServiceUnavailable, http.StatusTooManyRequests:
		return &deploy.CapacityUnavailableError{
			CapacityID: capacityID,
			Reason:     fmt.Sprintf("status %d", resp.status),
		}
	}
	return translateError("assign capacity", resp)
}

// ListFolders returns all folders in the workspace.
func (w *WorkspaceClient) ListFolders(ctx context.Context, workspaceID string) ([]deploy.Folder, error) {
	resp, err := w.c.do(ctx, http.MethodGet, "/workspaces/"+workspaceID+"/folders", nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, translateError("list folders", resp)
	}
	var list listEnvelope[folderDoc]
	if err := resp.decode(&list); err != nil {
		return nil, fmt.Errorf("list folders: decode: %w", err)
	}
	out := make([]deploy.Folder, 0, len(list.Value))
	for _, f := range list.Value {
		out = append(out, deploy.Folder{ID: f.ID, Name: f.DisplayName, WorkspaceID: workspaceID})
	}
	return out, nil
}

// CreateFolder creates a folder in the workspace.
func (w *WorkspaceClient) CreateFolder(ctx context.Context, workspaceID, name string) (*deploy.Folder, error) {
	resp, err := w.c.do(ctx, http.MethodPost, "/workspaces/"+workspaceID+"/folders",
		map[string]string{"displayName": name})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, translateError("create folder", resp)
	}
	var f folderDoc
	if err := resp.decode(&f); err != nil {
		return nil, fmt.Errorf("create folder: decode: %w", err)
	}
	return &deploy.Folder{ID: f.ID, Name: f.DisplayName, WorkspaceID: workspaceID}, nil
}

// ListItems returns every item in the workspace with its folder name
// resolved, so the engine can detect cross-folder identity collisions.
func (w *WorkspaceClient) ListItems(ctx context.Context, workspaceID string) ([]deploy.Item, error) {
	folders, err := w.ListFolders(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	folderNames := make(map[string]string, len(folders))
	for _, f := range folders {
		folderNames[f.ID] = f.Name
	}

	resp, err := w.c.do(ctx, http.MethodGet, "/workspaces/"+workspaceID+"/items", nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, translateError("list items", resp)
	}
	var list listEnvelope[itemDoc]
	if err := resp.decode(&list); err != nil {
		return nil, fmt.Errorf("list items: decode: %w", err)
	}
	out := make([]deploy.Item, 0, len(list.Value))
	for _, it := range list.Value {
		out = append(out, deploy.Item{
			ID:         it.ID,
			Name:       it.DisplayName,
			Kind:       it.Type,
			FolderID:   it.FolderID,
			FolderName: folderNames[it.FolderID],
		})
	}
	return out, nil
}

// CreateItem creates a typed item. The kind string is passed through
// unchanged; a rejection of the kind surfaces as *deploy.UnsupportedKindError.
func (w *WorkspaceClient) CreateItem(ctx context.Context, workspaceID, folderID, kind, name string) (*deploy.Item, error) {
	payload := map[string]string{"displayName": name, "type": kind}
	if folderID != "" {
		payload["folderId"] = folderID
	}
	resp, err := w.c.do(ctx, http.MethodPost, "/workspaces/"+workspaceID+"/items", payload)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		if resp.status == http.StatusBadRequest {
			var apiErr apiError
			_ = resp.decode(&apiErr)
			if apiErr.Code == "UnsupportedItemType" {
				return nil, &deploy.UnsupportedKindError{Kind: kind}
			}
		}
		return nil, translateError("create item", resp)
	}
	var it itemDoc
	if err := resp.decode(&it); err != nil {
		return nil, fmt.Errorf("create item: decode: %w", err)
	}
	return &deploy.Item{ID: it.ID, Name: it.DisplayName, Kind: it.Type, FolderID: it.FolderID}, nil
}

// GrantPrincipal assigns a role to a principal. A 409 means the grant
// already exists and is reported as a conflict the reconciler absorbs.
func (w *WorkspaceClient) GrantPrincipal(ctx context.Context, workspaceID, principalID, role string) error {
	resp, err := w.c.do(ctx, http.MethodPost, "/workspaces/"+workspaceID+"/roleAssignments",
		map[string]string{"principalId": principalID, "role": role})
	if err != nil {
		return err
	}
	if resp.ok() {
		return nil
	}
	if resp.status == http.StatusConflict {
		return &deploy.ResourceConflictError{Kind: "roleAssignment", Name: principalID}
	}
	return translateError("grant principal", resp)
}

// RevokePrincipal removes a principal's role assignment.
func (w *WorkspaceClient) RevokePrincipal(ctx context.Context, workspaceID, principalID string) error {
	resp, err := w.c.do(ctx, http.MethodDelete, "/workspaces/"+workspaceID+"/roleAssignments/"+principalID, nil)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return translateError("revoke principal", resp)
	}
	return nil
}

// DeleteWorkspace removes a workspace.
func (w *WorkspaceClient) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	resp, err := w.c.do(ctx, http.MethodDelete, "/workspaces/"+workspaceID, nil)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return translateError("delete workspace", resp)
	}
	return nil
}

// DeleteFolder removes a folder.
func (w *WorkspaceClient) DeleteFolder(ctx context.Context, workspaceID, folderID string) error {
	resp, err := w.c.do(ctx, http.MethodDelete, "/workspaces/"+workspaceID+"/folders/"+folderID, nil)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return translateError("delete folder", resp)
	}
	return nil
}

// DeleteItem removes an item.
func (w *WorkspaceClient) DeleteItem(ctx context.Context, workspaceID, itemID string) error {
	resp, err := w.c.do(ctx, http.MethodDelete, "/workspaces/"+workspaceID+"/items/"+itemID, nil)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return translateError("delete item", resp)
	}
	return nil
}
