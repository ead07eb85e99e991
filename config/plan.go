package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied by Normalize for fields the plan file omits.
const (
	DefaultItemConcurrency = 4
	DefaultRunTimeout      = 30 * time.Minute
	DefaultGitBranch       = "main"
	DefaultGitDirectory    = "/"
)

// WorkspaceSpec describes the desired workspace.
type WorkspaceSpec struct {
	Name       string `json:"name" yaml:"name"`
	CapacityID string `json:"capacityId,omitempty" yaml:"capacityId,omitempty"`
	Domain     string `json:"domain,omitempty" yaml:"domain,omitempty"`
}

// ItemSpec describes a single typed artifact inside a folder. Kind is an
// opaque label passed through to the remote platform; the plan never
// enumerates valid kinds.
type ItemSpec struct {
	Kind   string `json:"kind" yaml:"kind"`
	Name   string `json:"name" yaml:"name"`
	Folder string `json:"folder" yaml:"folder"`
}

// PrincipalSpec grants a role to a principal on the workspace.
type PrincipalSpec struct {
	ID   string `json:"id" yaml:"id"`
	Role string `json:"role" yaml:"role"`
}

// GitSpec requests a version-control binding for the workspace.
type GitSpec struct {
	RepoURL   string `json:"repoUrl" yaml:"repoUrl"`
	Branch    string `json:"branch,omitempty" yaml:"branch,omitempty"`
	Directory string `json:"directory,omitempty" yaml:"directory,omitempty"`
}

// Options tunes run execution.
type Options struct {
	ItemConcurrency int           `json:"itemConcurrency,omitempty" yaml:"itemConcurrency,omitempty"`
	RunTimeout      time.Duration `json:"runTimeout,omitempty" yaml:"runTimeout,omitempty"`
}

// Plan is the declarative desired state for one deployment run. It is
// constructed once, normalized, validated, and read-only thereafter.
type Plan struct {
	Workspace  WorkspaceSpec   `json:"workspace" yaml:"workspace"`
	Folders    []string        `json:"folders,omitempty" yaml:"folders,omitempty"`
	Items      []ItemSpec      `json:"items,omitempty" yaml:"items,omitempty"`
	Principals []PrincipalSpec `json:"principals,omitempty" yaml:"principals,omitempty"`
	Git        *GitSpec        `json:"git,omitempty" yaml:"git,omitempty"`
	Options    Options         `json:"options,omitempty" yaml:"options,omitempty"`
}

// LoadPlan reads a deployment plan from a YAML file, applies defaults, and
// validates it.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan file: %w", err)
	}

	plan.Normalize()
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Normalize fills in defaults for omitted fields.
func (p *Plan) Normalize() {
	if p.Options.ItemConcurrency <= 0 {
		p.Options.ItemConcurrency = DefaultItemConcurrency
	}
	if p.Options.RunTimeout <= 0 {
		p.Options.RunTimeout = DefaultRunTimeout
	}
	if p.Git != nil {
		if p.Git.Branch == "" {
			p.Git.Branch = DefaultGitBranch
		}
		if p.Git.Directory == "" {
			p.Git.Directory = DefaultGitDirectory
		}
	}
}

// ValidationError aggregates every problem found in a plan so a user can fix
// them all in one pass.
type ValidationError struct {
	Problems []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid plan: %s", strings.Join(e.Problems, "; "))
}

// Validate checks the plan for internal consistency. It returns a
// *ValidationError listing every problem, or nil.
func (p *Plan) Validate() error {
	var problems []string

	if strings.TrimSpace(p.Workspace.Name) == "" {
		problems = append(problems, "workspace.name is required")
	}

	folders := make(map[string]bool, len(p.Folders))
	for _, f := range p.Folders {
		if strings.TrimSpace(f) == "" {
			problems = append(problems, "folders must not contain empty names")
			continue
		}
		if folders[f] {
			problems = append(problems, fmt.Sprintf("duplicate folder %q", f))
		}
		folders[f] = true
	}

	seen := make(map[string]bool, len(p.Items))
	for i, item := range p.Items {
		if item.Kind == "" || item.Name == "" {
			problems = append(problems, fmt.Sprintf("items[%d]: kind and name are required", i))
			continue
		}
		if item.Folder != "" && !folders[item.Folder] {
			problems = append(problems, fmt.Sprintf("items[%d]: folder %q is not declared in folders", i, item.Folder))
		}
		key := item.Folder + "/" + item.Name + "/" + item.Kind
		if seen[key] {
			problems = append(problems, fmt.Sprintf("items[%d]: duplicate item %s %q in folder %q", i, item.Kind, item.Name, item.Folder))
		}
		seen[key] = true
	}

	for i, pr := range p.Principals {
		if pr.ID == "" || pr.Role == "" {
			problems = append(problems, fmt.Sprintf("principals[%d]: id and role are required", i))
		}
	}

	if p.Git != nil && strings.TrimSpace(p.Git.RepoURL) == "" {
		problems = append(problems, "git.repoUrl is required when git binding is requested")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
