package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/GoCodeAlone/wsctl/deploy"
)

// Defaults for long-running git operations when the platform's 202 response
// does not carry a Retry-After hint.
const (
	defaultGitPollInterval = 2 * time.Second
	defaultGitOpTimeout    = 10 * time.Minute
)

// GitClient implements deploy.GitClient against the platform's git
// integration REST API.
type GitClient struct {
	c *client
}

// NewGitClient creates a git API client.
func NewGitClient(cfg Config, logger *slog.Logger) (*GitClient, error) {
	c, err := newClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &GitClient{c: c}, nil
}

type connectionDoc struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspaceId"`
	Branch      string `json:"branch"`
	Directory   string `json:"directory"`
}

// CreateConnection issues the provider-specific connect call. The payload
// shape differs per variant: the hosted provider addresses repositories by
// owner/name, the enterprise provider by organization/project/repository.
func (g *GitClient) CreateConnection(ctx context.Context, details deploy.ConnectionDetails) (*deploy.GitConnection, error) {
	payload := map[string]any{
		"gitProviderDetails": providerPayload(details),
		"branch":             details.Branch,
		"directoryName":      details.Directory,
		"credentials": map[string]string{
			"source": "ConfiguredConnection",
			"token":  details.Token,
		},
	}
	resp, err := g.c.do(ctx, http.MethodPost, "/workspaces/"+details.WorkspaceID+"/git/connect", payload)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, translateError("create git connection", resp)
	}
	var doc connectionDoc
	if err := resp.decode(&doc); err != nil {
		return nil, fmt.Errorf("create git connection: decode: %w", err)
	}
	return &deploy.GitConnection{
		Variant:      details.Variant,
		ConnectionID: doc.ID,
		WorkspaceID:  details.WorkspaceID,
		Branch:       details.Branch,
		Directory:    details.Directory,
		Status:       deploy.GitConnectionCreated,
	}, nil
}

// providerPayload builds the per-variant addressing block.
func providerPayload(d deploy.ConnectionDetails) map[string]string {
	switch d.Variant {
	case deploy.ProviderEnterprise:
		return map[string]string{
			"gitProviderType":  "AzureDevOps",
			"organizationName": d.Organization,
			"projectName":      d.Project,
			"repositoryName":   d.Repo,
		}
	default:
		return map[string]string{
			"gitProviderType": "GitHub",
			"ownerName":       d.Owner,
			"repositoryName":  d.Repo,
		}
	}
}

// InitializeConnection asks the platform to initialize the binding. The
// response declares which direction needs synchronizing.
func (g *GitClient) InitializeConnection(ctx context.Context, workspaceID string) (deploy.RequiredAction, error) {
	resp, err := g.c.do(ctx, http.MethodPost, "/workspaces/"+workspaceID+"/git/initializeConnection", nil)
	if err != nil {
		return "", err
	}
	if !resp.ok() {
		return "", translateError("initialize git connection", resp)
	}
	var body struct {
		RequiredAction string `json:"requiredAction"`
	}
	if err := resp.decode(&body); err != nil {
		return "", fmt.Errorf("initialize git connection: decode: %w", err)
	}
	if body.RequiredAction == "" {
		return deploy.RequiredActionNone, nil
	}
	return deploy.RequiredAction(body.RequiredAction), nil
}

// UpdateFromGit starts a workspace update from the bound branch and returns
// the operation handle to poll.
func (g *GitClient) UpdateFromGit(ctx context.Context, workspaceID string) (*deploy.OperationHandle, error) {
	return g.startOperation(ctx, workspaceID, "updateFromGit")
}

// CommitToGit starts a commit of workspace content to the bound branch and
// returns the operation handle to poll.
func (g *GitClient) CommitToGit(ctx context.Context, workspaceID string) (*deploy.OperationHandle, error) {
	return g.startOperation(ctx, workspaceID, "commitToGit")
}

func (g *GitClient) startOperation(ctx context.Context, workspaceID, op string) (*deploy.OperationHandle, error) {
	resp, err := g.c.do(ctx, http.MethodPost, "/workspaces/"+workspaceID+"/git/"+op, nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, translateError(op, resp)
	}
	if resp.operation == "" {
		return nil, fmt.Errorf("%s: platform accepted the request but returned no operation id", op)
	}
	interval := resp.retry
	if interval <= 0 {
		interval = defaultGitPollInterval
	}
	return &deploy.OperationHandle{
		ID:           resp.operation,
		Kind:         op,
		StartedAt:    time.Now(),
		PollInterval: interval,
		Timeout:      defaultGitOpTimeout,
	}, nil
}

// PollOperation reads the current status of a long-running operation.
func (g *GitClient) PollOperation(ctx context.Context, operationID string) (deploy.OperationStatus, error) {
	resp, err := g.c.do(ctx, http.MethodGet, "/operations/"+operationID, nil)
	if err != nil {
		return deploy.OperationFailed, err
	}
	if !resp.ok() {
		return deploy.OperationFailed, translateError("poll operation", resp)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := resp.decode(&body); err != nil {
		return deploy.OperationFailed, fmt.Errorf("poll operation: decode: %w", err)
	}
	return deploy.OperationStatus(body.Status), nil
}

// DeleteConnection disconnects the workspace's git binding.
func (g *GitClient) DeleteConnection(ctx context.Context, connectionID string) error {
	resp, err := g.c.do(ctx, http.MethodDelete, "/git/connections/"+connectionID, nil)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return translateError("delete git connection", resp)
	}
	return nil
}
