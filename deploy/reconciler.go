package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GoCodeAlone/wsctl/audit"
	"github.com/GoCodeAlone/wsctl/config"
)

// Capacity assignment retry parameters. Newly created workspaces are not
// always immediately visible to the capacity API, so transient conflicts are
// expected and retried with exponential backoff before escalating.
const (
	capacityRetryBase     = 2 * time.Second
	capacityRetryAttempts = 5
)

// WorkspaceReconciler computes and applies the delta between a plan and the
// actual remote workspace state. Every confirmed creation is appended to the
// ledger with its undo action before the reconciler moves on. Reconciling an
// unchanged plan a second time performs zero creations.
type WorkspaceReconciler struct {
	client      WorkspaceClient
	provisioner *ItemProvisioner
	ledger      *Ledger
	sink        audit.Sink
	logger      *slog.Logger
	runID       string

	// sleep is injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWorkspaceReconciler creates a reconciler for one run.
func NewWorkspaceReconciler(client WorkspaceClient, ledger *Ledger, sink audit.Sink, logger *slog.Logger, runID string) *WorkspaceReconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = audit.Nop()
	}
	return &WorkspaceReconciler{
		client:      client,
		provisioner: NewItemProvisioner(client, logger),
		ledger:      ledger,
		sink:        sink,
		logger:      logger,
		runID:       runID,
		sleep:       sleepContext,
	}
}

// Reconcile ensures the workspace, its folders, its items, and its principal
// grants, in that order. Folder creation is a strict barrier before the
// concurrent item phase: every item's enclosing folder must already exist.
func (r *WorkspaceReconciler) Reconcile(ctx context.Context, plan *config.Plan) (*WorkspaceHandle, error) {
	ws, err := r.ensureWorkspace(ctx, plan)
	if err != nil {
		return nil, err
	}

	handle := &WorkspaceHandle{ID: ws.ID, Name: ws.Name}

	handle.Folders, err = r.ensureFolders(ctx, ws.ID, plan.Folders)
	if err != nil {
		return nil, err
	}

	handle.Items, err = r.ensureItems(ctx, ws.ID, handle.Folders, plan)
	if err != nil {
		return nil, err
	}

	if err := r.ensureGrants(ctx, ws.ID, plan.Principals); err != nil {
		return nil, err
	}

	return handle, nil
}

func (r *WorkspaceReconciler) ensureWorkspace(ctx context.Context, plan *config.Plan) (*Workspace, error) {
	ws, err := r.client.GetWorkspaceByName(ctx, plan.Workspace.Name)
	if err == nil {
		r.logger.Info("workspace exists", "name", ws.Name, "id", ws.ID)
		return ws, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("look up workspace %q: %w", plan.Workspace.Name, err)
	}

	ws, err = r.client.CreateWorkspace(ctx, plan.Workspace.Name, plan.Workspace.Domain)
	if err != nil {
		return nil, fmt.Errorf("create workspace %q: %w", plan.Workspace.Name, err)
	}
	r.record(ResourceWorkspace, ws.ID, ws.Name, func(ctx context.Context) error {
		return r.client.DeleteWorkspace(ctx, ws.ID)
	})
	r.logger.Info("workspace created", "name", ws.Name, "id", ws.ID)

	if plan.Workspace.CapacityID != "" {
		if err := r.assignCapacity(ctx, ws.ID, plan.Workspace.CapacityID); err != nil {
			return nil, err
		}
	}
	return ws, nil
}

// assignCapacity retries transient capacity conflicts with exponential
// backoff, respecting the run context's deadline between attempts.
func (r *WorkspaceReconciler) assignCapacity(ctx context.Context, workspaceID, capacityID string) error {
	backoff := capacityRetryBase
	var lastErr error

	for attempt := 1; attempt <= capacityRetryAttempts; attempt++ {
		lastErr = r.client.AssignCapacity(ctx, workspaceID, capacityID)
		if lastErr == nil {
			r.logger.Info("capacity assigned", "workspace", workspaceID, "capacity", capacityID)
			return nil
		}

		var capErr *CapacityUnavailableError
		if !errors.As(lastErr, &capErr) {
			return fmt.Errorf("assign capacity %q: %w", capacityID, lastErr)
		}
		if attempt == capacityRetryAttempts {
			break
		}

		r.logger.Warn("capacity assignment unavailable, retrying",
			"capacity", capacityID, "attempt", attempt, "backoff", backoff)
		if err := r.sleep(ctx, backoff); err != nil {
			return err
		}
		backoff *= 2
	}
	return fmt.Errorf("assign capacity %q: attempts exhausted: %w", capacityID, lastErr)
}

func (r *WorkspaceReconciler) ensureFolders(ctx context.Context, workspaceID string, names []string) (map[string]string, error) {
	existing, err := r.client.ListFolders(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	byName := make(map[string]string, len(existing))
	for _, f := range existing {
		byName[f.Name] = f.ID
	}

	for _, name := range names {
		if _, ok := byName[name]; ok {
			r.logger.Debug("folder exists", "folder", name)
			continue
		}
		folder, err := r.client.CreateFolder(ctx, workspaceID, name)
		if err != nil {
			return nil, fmt.Errorf("create folder %q: %w", name, err)
		}
		byName[name] = folder.ID
		r.record(ResourceFolder, folder.ID, name, func(ctx context.Context) error {
			return r.client.DeleteFolder(ctx, workspaceID, folder.ID)
		})
		r.logger.Info("folder created", "folder", name, "id", folder.ID)
	}
	return byName, nil
}

// ensureItems runs the item phase with a bounded worker pool. Items are
// independent of each other; their ledger appends interleave in any order,
// which is fine because rollback only needs reverse-of-append.
func (r *WorkspaceReconciler) ensureItems(ctx context.Context, workspaceID string, folders map[string]string, plan *config.Plan) ([]ProvisionOutcome, error) {
	if len(plan.Items) == 0 {
		return nil, nil
	}

	listed, err := r.client.ListItems(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	index := NewItemIndex(listed)

	outcomes := make([]ProvisionOutcome, len(plan.Items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(plan.Options.ItemConcurrency)

	for i, spec := range plan.Items {
		g.Go(func() error {
			folderID := folders[spec.Folder]
			outcome, err := r.provisioner.Ensure(gctx, workspaceID, index, folderID, spec)
			if err != nil {
				return err
			}
			if outcome.Action == ActionCreated {
				r.record(ResourceItem, outcome.ID, spec.Name, func(ctx context.Context) error {
					return r.client.DeleteItem(ctx, workspaceID, outcome.ID)
				})
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// ensureGrants applies principal grants. A conflict means the grant already
// exists and is absorbed; grants are ledgered so rollback revokes them.
func (r *WorkspaceReconciler) ensureGrants(ctx context.Context, workspaceID string, principals []config.PrincipalSpec) error {
	for _, p := range principals {
		err := r.client.GrantPrincipal(ctx, workspaceID, p.ID, p.Role)
		if err != nil {
			var conflict *ResourceConflictError
			if errors.As(err, &conflict) {
				r.logger.Debug("principal already granted", "principal", p.ID, "role", p.Role)
				continue
			}
			return fmt.Errorf("grant %s to principal %q: %w", p.Role, p.ID, err)
		}
		r.record(ResourceGrant, p.ID, p.ID+":"+p.Role, func(ctx context.Context) error {
			return r.client.RevokePrincipal(ctx, workspaceID, p.ID)
		})
		r.logger.Info("principal granted", "principal", p.ID, "role", p.Role)
	}
	return nil
}

func (r *WorkspaceReconciler) record(kind ResourceKind, resourceID, name string, undo func(ctx context.Context) error) {
	r.ledger.Record(kind, resourceID, name, undo)
	r.sink.Record(audit.Event{
		Kind:     "resource.created",
		RunID:    r.runID,
		Resource: string(kind) + "/" + name,
		Detail:   map[string]string{"id": resourceID},
	})
}
