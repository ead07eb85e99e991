package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/GoCodeAlone/wsctl/audit"
	"github.com/GoCodeAlone/wsctl/config"
)

// GitBinder drives the version-control binding state machine:
//
//	NotConnected → ConnectionCreated → Initialized → Synced
//
// with a RequiredAction dispatch after initialization. Remote objects the
// binder creates are ledgered before the machine advances, so a failure
// mid-binding never leaves an orphaned connection behind.
type GitBinder struct {
	client GitClient
	poller *OperationPoller
	ledger *Ledger
	sink   audit.Sink
	logger *slog.Logger
	runID  string
}

// NewGitBinder creates a binder for one run.
func NewGitBinder(client GitClient, ledger *Ledger, sink audit.Sink, logger *slog.Logger, runID string) *GitBinder {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = audit.Nop()
	}
	return &GitBinder{
		client: client,
		poller: NewOperationPoller(client.PollOperation, logger),
		ledger: ledger,
		sink:   sink,
		logger: logger,
		runID:  runID,
	}
}

// Bind connects the workspace to the requested repository branch and drives
// the connection to Synced. All failures are returned as *GitConnectionError
// naming the stage that failed.
func (b *GitBinder) Bind(ctx context.Context, workspaceID string, spec *config.GitSpec, token string) (*GitConnection, error) {
	ref, err := ResolveProvider(spec.RepoURL)
	if err != nil {
		return nil, &GitConnectionError{Stage: "resolve", Err: err}
	}
	b.logger.Info("git provider resolved",
		"variant", ref.Variant, "owner", ref.Owner, "repo", ref.Repo, "branch", spec.Branch)

	details := BuildConnectionDetails(ref, workspaceID, spec.Branch, spec.Directory, token)
	conn, err := b.client.CreateConnection(ctx, details)
	if err != nil {
		return nil, &GitConnectionError{Stage: "connect", Err: err}
	}
	conn.Status = GitConnectionCreated
	b.ledger.Record(ResourceGitConnection, conn.ConnectionID, spec.RepoURL, func(ctx context.Context) error {
		return b.client.DeleteConnection(ctx, conn.ConnectionID)
	})
	b.sink.Record(audit.Event{
		Kind:     "resource.created",
		RunID:    b.runID,
		Resource: "git-connection/" + conn.ConnectionID,
	})

	action, err := b.client.InitializeConnection(ctx, workspaceID)
	if err != nil {
		conn.Status = GitFailed
		return conn, &GitConnectionError{Stage: "initialize", Err: err}
	}
	conn.Status = GitInitialized
	b.logger.Info("git connection initialized", "connection", conn.ConnectionID, "requiredAction", action)

	if err := b.settle(ctx, workspaceID, action); err != nil {
		conn.Status = GitFailed
		return conn, err
	}

	conn.Status = GitSynced
	b.logger.Info("git binding synced", "connection", conn.ConnectionID, "workspace", workspaceID)
	return conn, nil
}

// settle dispatches on the RequiredAction the platform declared and waits
// for the resulting long-running operation, if any.
func (b *GitBinder) settle(ctx context.Context, workspaceID string, action RequiredAction) error {
	var (
		handle *OperationHandle
		stage  string
		err    error
	)

	switch action {
	case RequiredActionNone:
		return nil
	case RequiredActionUpdateFromGit:
		stage = "update-from-git"
		handle, err = b.client.UpdateFromGit(ctx, workspaceID)
	case RequiredActionCommitToGit:
		stage = "commit-to-git"
		handle, err = b.client.CommitToGit(ctx, workspaceID)
	default:
		return &GitConnectionError{Stage: "initialize", Err: fmt.Errorf("unknown required action %q", action)}
	}
	if err != nil {
		return &GitConnectionError{Stage: stage, Err: err}
	}

	status, err := b.poller.Await(ctx, *handle)
	if err != nil {
		return &GitConnectionError{Stage: "poll", Err: err}
	}
	if status != OperationSucceeded {
		return &GitConnectionError{Stage: stage, Err: fmt.Errorf("operation %s ended %s", handle.ID, status)}
	}
	return nil
}
