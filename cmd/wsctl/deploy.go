package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/oauth2"

	"github.com/GoCodeAlone/wsctl/audit"
	"github.com/GoCodeAlone/wsctl/config"
	"github.com/GoCodeAlone/wsctl/deploy"
	"github.com/GoCodeAlone/wsctl/remote"
	"github.com/GoCodeAlone/wsctl/secrets"
)

// Secret keys resolved through the credential waterfall.
const (
	platformTokenKey = "platform.token"
	gitTokenKey      = "git.token"
)

func runDeploy(args []string) error {
	fs := flag.NewFlagSet("deploy", flag.ContinueOnError)
	planPath := fs.String("plan", "deployment.yaml", "Deployment plan file")
	apiURL := fs.String("api-url", "", "Workspace API base URL (required)")
	gitAPIURL := fs.String("git-api-url", "", "Git API base URL (defaults to -api-url)")
	secretsDir := fs.String("secrets-dir", "", "Directory of secret files (one file per key)")
	vaultAddr := fs.String("vault-addr", os.Getenv("VAULT_ADDR"), "Vault address for the secret waterfall")
	vaultMount := fs.String("vault-mount", "secret", "Vault KV v2 mount path")
	timeout := fs.Duration("timeout", 0, "Override the plan's run timeout")
	dryRun := fs.Bool("dry-run", false, "Print the desired state without calling the platform")
	verbose := fs.Bool("v", false, "Enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: wsctl deploy [options]

Reconcile the remote workspace described by the plan file and bind it to the
configured git branch. On a fatal error, every resource this run created is
rolled back in reverse order; anything that could not be undone is reported
for manual cleanup.

Credentials are resolved through a waterfall: environment variables
(PLATFORM_TOKEN, GIT_TOKEN), the OS keyring, -secrets-dir files, then Vault.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := newLogger(*verbose)
	slog.SetDefault(logger)

	plan, err := config.LoadPlan(*planPath)
	if err != nil {
		return err
	}
	if *timeout > 0 {
		plan.Options.RunTimeout = *timeout
	}

	if *dryRun {
		printPlan(plan)
		return nil
	}
	if *apiURL == "" {
		return fmt.Errorf("-api-url is required")
	}
	if *gitAPIURL == "" {
		*gitAPIURL = *apiURL
	}

	ctx := context.Background()
	chain := buildSecretChain(*secretsDir, *vaultAddr, *vaultMount)

	platformToken, err := chain.Get(ctx, platformTokenKey)
	if err != nil {
		return fmt.Errorf("resolve platform credential: %w", err)
	}
	var gitToken string
	if plan.Git != nil {
		gitToken, err = chain.Get(ctx, gitTokenKey)
		if err != nil {
			return fmt.Errorf("resolve git credential: %w", err)
		}
	}

	tokens := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: platformToken})
	wsClient, err := remote.NewWorkspaceClient(remote.Config{BaseURL: *apiURL, TokenSource: tokens}, logger)
	if err != nil {
		return err
	}
	gitClient, err := remote.NewGitClient(remote.Config{BaseURL: *gitAPIURL, TokenSource: tokens}, logger)
	if err != nil {
		return err
	}

	metrics := deploy.NewMetrics(prometheus.NewRegistry())
	orchestrator := deploy.NewOrchestrator(wsClient, gitClient, logger,
		deploy.WithAuditSink(audit.NewLogSink(logger)),
		deploy.WithMetrics(metrics),
		deploy.WithGitToken(gitToken),
	)

	result := orchestrator.Run(ctx, plan)
	printResult(result)
	if result.Status != deploy.RunSucceeded {
		return fmt.Errorf("deployment failed in phase %s: %s", result.Phase, result.Err)
	}
	return nil
}

// buildSecretChain assembles the credential waterfall: env, OS keyring,
// secret files, Vault. Backends that are not configured or not reachable are
// skipped.
func buildSecretChain(secretsDir, vaultAddr, vaultMount string) *secrets.Chain {
	providers := []secrets.Provider{
		secrets.NewEnvProvider(""),
		secrets.NewKeyringProvider("wsctl"),
	}
	if secretsDir != "" {
		providers = append(providers, secrets.NewFileProvider(secretsDir))
	}
	if vaultAddr != "" {
		vp, err := secrets.NewVaultProvider(secrets.VaultConfig{
			Address:   vaultAddr,
			Token:     os.Getenv("VAULT_TOKEN"),
			MountPath: vaultMount,
		})
		if err != nil {
			slog.Warn("vault provider unavailable", "error", err)
		} else {
			providers = append(providers, vp)
		}
	}
	return secrets.NewChain(providers...)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func printPlan(plan *config.Plan) {
	fmt.Printf("workspace  %s", plan.Workspace.Name)
	if plan.Workspace.CapacityID != "" {
		fmt.Printf("  (capacity %s)", plan.Workspace.CapacityID)
	}
	fmt.Println()
	for _, f := range plan.Folders {
		fmt.Printf("folder     %s\n", f)
	}
	for _, it := range plan.Items {
		fmt.Printf("item       %s/%s (%s)\n", it.Folder, it.Name, it.Kind)
	}
	for _, p := range plan.Principals {
		fmt.Printf("grant      %s -> %s\n", p.Role, p.ID)
	}
	if plan.Git != nil {
		fmt.Printf("git        %s @ %s in %s\n", plan.Git.RepoURL, plan.Git.Branch, plan.Git.Directory)
	}
}

func printResult(result *deploy.Result) {
	if result.Status == deploy.RunSucceeded {
		fmt.Printf("Deployment succeeded (run %s, %d resources created, %s)\n",
			result.RunID, len(result.Created), result.Duration.Round(time.Millisecond))
		for _, c := range result.Created {
			fmt.Printf("  created  %-15s %s\n", c.Kind, c.Name)
		}
		if result.Git != nil {
			fmt.Printf("  git      connection %s is %s\n", result.Git.ConnectionID, result.Git.Status)
		}
		return
	}

	fmt.Printf("Deployment failed in phase %s: %s\n", result.Phase, result.Err)
	if result.Rollback == nil {
		fmt.Println("No resources had been created; nothing to roll back.")
		return
	}
	for _, o := range result.Rollback.Outcomes {
		switch o.Status {
		case deploy.UndoDone:
			fmt.Printf("  undone   %-15s %s\n", o.Kind, o.Name)
		case deploy.UndoFailed:
			fmt.Printf("  ORPHANED %-15s %s (%s)\n", o.Kind, o.Name, o.Reason)
		}
	}
	if result.Rollback.Partial() {
		fmt.Printf("Rollback was partial: %d resource(s) need manual cleanup.\n", result.Rollback.Failed)
	}
}
