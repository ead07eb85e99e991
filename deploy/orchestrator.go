package deploy

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/wsctl/audit"
	"github.com/GoCodeAlone/wsctl/config"
)

// RunStatus is the terminal status of an orchestrated run.
type RunStatus string

const (
	RunSucceeded RunStatus = "Succeeded"
	RunFailed    RunStatus = "Failed"
)

// Phase names the pipeline phase a failure occurred in.
type Phase string

const (
	PhaseReconcile Phase = "reconcile"
	PhaseGitBind   Phase = "git-bind"
)

// LedgerSummary is the caller-facing view of a ledger entry.
type LedgerSummary struct {
	Kind       ResourceKind `json:"kind"`
	ResourceID string       `json:"resourceId"`
	Name       string       `json:"name"`
}

// Result is the structured outcome of a run. The orchestrator never lets an
// error escape; failures are embedded here together with the rollback report.
type Result struct {
	RunID     string           `json:"runId"`
	Status    RunStatus        `json:"status"`
	Phase     Phase            `json:"phase,omitempty"`
	Workspace *WorkspaceHandle `json:"workspace,omitempty"`
	Git       *GitConnection   `json:"git,omitempty"`
	Created   []LedgerSummary  `json:"created,omitempty"`
	Err       string           `json:"error,omitempty"`
	Rollback  *RollbackReport  `json:"rollback,omitempty"`
	Started   time.Time        `json:"started"`
	Duration  time.Duration    `json:"duration"`
}

// Orchestrator sequences one deployment run: reconcile workspace, folders,
// items, and grants, then bind git if requested. On any fatal error after at
// least one creation it rolls the ledger back exactly once. Fresh reconciler,
// binder, and ledger instances are constructed per run; no state is shared
// across runs.
type Orchestrator struct {
	workspace WorkspaceClient
	git       GitClient
	gitToken  string
	sink      audit.Sink
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithAuditSink sets the audit sink for run events.
func WithAuditSink(sink audit.Sink) OrchestratorOption {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithGitToken sets the credential passed opaquely to git connection calls.
func WithGitToken(token string) OrchestratorOption {
	return func(o *Orchestrator) { o.gitToken = token }
}

// NewOrchestrator creates an orchestrator. The git client may be nil when no
// plan will request a binding.
func NewOrchestrator(workspace WorkspaceClient, git GitClient, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		workspace: workspace,
		git:       git,
		sink:      audit.Nop(),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the plan and always returns a structured result, never an
// error. The plan's run timeout bounds the whole pipeline; once the context
// is done, the current phase aborts after its in-flight remote call settles
// and the orchestrator proceeds straight to rollback.
func (o *Orchestrator) Run(ctx context.Context, plan *config.Plan) *Result {
	runID := uuid.NewString()
	started := o.now()
	result := &Result{RunID: runID, Started: started}
	logger := o.logger.With("run", runID, "workspace", plan.Workspace.Name)

	if plan.Options.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, plan.Options.RunTimeout)
		defer cancel()
	}

	ledger := NewLedger()
	o.sink.Record(audit.Event{Kind: "run.started", RunID: runID, Resource: "workspace/" + plan.Workspace.Name})
	logger.Info("run started")

	phaseStart := o.now()
	reconciler := NewWorkspaceReconciler(o.workspace, ledger, o.sink, logger, runID)
	handle, err := reconciler.Reconcile(ctx, plan)
	o.metrics.ObservePhase(string(PhaseReconcile), o.now().Sub(phaseStart))
	if err != nil {
		return o.fail(ctx, result, ledger, PhaseReconcile, err, logger)
	}
	result.Workspace = handle

	if plan.Git != nil {
		if o.git == nil {
			err := &GitConnectionError{Stage: "configure", Err: errors.New("no git client configured")}
			return o.fail(ctx, result, ledger, PhaseGitBind, err, logger)
		}
		phaseStart = o.now()
		binder := NewGitBinder(o.git, ledger, o.sink, logger, runID)
		conn, err := binder.Bind(ctx, handle.ID, plan.Git, o.gitToken)
		o.metrics.ObservePhase(string(PhaseGitBind), o.now().Sub(phaseStart))
		result.Git = conn
		if err != nil {
			return o.fail(ctx, result, ledger, PhaseGitBind, err, logger)
		}
	}

	entries := ledger.Entries()
	result.Status = RunSucceeded
	result.Created = summarize(entries)
	result.Duration = o.now().Sub(started)
	o.metrics.ObserveCreations(entries)
	o.metrics.ObserveRun(string(RunSucceeded), result.Duration)
	o.sink.Record(audit.Event{Kind: "run.succeeded", RunID: runID,
		Detail: map[string]string{"created": strconv.Itoa(len(entries))}})
	logger.Info("run succeeded", "created", len(entries), "duration", result.Duration)
	return result
}

// fail finalizes a failed run: roll back whatever the ledger holds, then
// embed the cause and the rollback report in the result.
func (o *Orchestrator) fail(ctx context.Context, result *Result, ledger *Ledger, phase Phase, cause error, logger *slog.Logger) *Result {
	result.Status = RunFailed
	result.Phase = phase
	result.Err = cause.Error()
	result.Created = summarize(ledger.Entries())
	logger.Error("run failed", "phase", phase, "error", cause)

	if ledger.Len() > 0 {
		// Rollback runs even when the run deadline has expired: use a
		// context detached from the run timeout so cleanup can finish.
		rbCtx := context.WithoutCancel(ctx)
		coordinator := NewRollbackCoordinator(ledger, o.sink, logger)
		report := coordinator.Rollback(rbCtx, result.RunID)
		result.Rollback = report
		o.metrics.ObserveRollback(report)
		o.sink.Record(audit.Event{Kind: "rollback.completed", RunID: result.RunID,
			Detail: map[string]string{"undone": strconv.Itoa(report.Undone), "orphaned": strconv.Itoa(report.Failed)}})
	}

	result.Duration = o.now().Sub(result.Started)
	o.metrics.ObserveRun(string(RunFailed), result.Duration)
	o.sink.Record(audit.Event{Kind: "run.failed", RunID: result.RunID,
		Detail: map[string]string{"phase": string(phase), "error": result.Err}})
	return result
}

func summarize(entries []LedgerEntry) []LedgerSummary {
	out := make([]LedgerSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, LedgerSummary{Kind: e.Kind, ResourceID: e.ResourceID, Name: e.Name})
	}
	return out
}
