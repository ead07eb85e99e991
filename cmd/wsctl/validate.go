package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/GoCodeAlone/wsctl/config"
)

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	planPath := fs.String("plan", "deployment.yaml", "Deployment plan file")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: wsctl validate [options]

Load and validate a plan file. Reports every problem found; makes no remote
calls.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	plan, err := config.LoadPlan(*planPath)
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			for _, p := range verr.Problems {
				fmt.Printf("  problem  %s\n", p)
			}
			return fmt.Errorf("%d problem(s) found in %s", len(verr.Problems), *planPath)
		}
		return err
	}

	fmt.Printf("%s is valid: workspace %q, %d folder(s), %d item(s), %d grant(s)",
		*planPath, plan.Workspace.Name, len(plan.Folders), len(plan.Items), len(plan.Principals))
	if plan.Git != nil {
		fmt.Printf(", git binding to %s", plan.Git.RepoURL)
	}
	fmt.Println()
	return nil
}
