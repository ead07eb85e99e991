package deploy

import (
	"net/url"
	"strings"
)

// Known provider host shapes. Detection is pure string matching, kept
// separate from payload construction so each is independently testable.
const (
	hostedGitHost          = "github.com"
	enterpriseDevOpsHost   = "dev.azure.com"
	legacyDevOpsHostSuffix = ".visualstudio.com"
)

// ResolveProvider classifies a repository URL into a provider variant and
// extracts its addressing details. Unrecognized shapes return an
// *UnsupportedProviderError.
func ResolveProvider(repoURL string) (*RepoRef, error) {
	u, err := url.Parse(strings.TrimSpace(repoURL))
	if err != nil || u.Host == "" {
		return nil, &UnsupportedProviderError{URL: repoURL}
	}

	host := strings.ToLower(u.Hostname())
	segments := splitPath(u.Path)

	switch {
	case host == hostedGitHost || host == "www."+hostedGitHost:
		// github.com/{owner}/{repo}
		if len(segments) < 2 {
			return nil, &UnsupportedProviderError{URL: repoURL}
		}
		return &RepoRef{
			Variant: ProviderHosted,
			Host:    hostedGitHost,
			Owner:   segments[0],
			Repo:    strings.TrimSuffix(segments[1], ".git"),
		}, nil

	case host == enterpriseDevOpsHost:
		// dev.azure.com/{organization}/{project}/_git/{repo}
		if len(segments) < 4 || segments[2] != "_git" {
			return nil, &UnsupportedProviderError{URL: repoURL}
		}
		return &RepoRef{
			Variant: ProviderEnterprise,
			Host:    host,
			Owner:   segments[0],
			Project: segments[1],
			Repo:    segments[3],
		}, nil

	case strings.HasSuffix(host, legacyDevOpsHostSuffix):
		// {organization}.visualstudio.com/{project}/_git/{repo}
		if len(segments) < 3 || segments[1] != "_git" {
			return nil, &UnsupportedProviderError{URL: repoURL}
		}
		return &RepoRef{
			Variant: ProviderEnterprise,
			Host:    host,
			Owner:   strings.TrimSuffix(host, legacyDevOpsHostSuffix),
			Project: segments[0],
			Repo:    segments[2],
		}, nil
	}

	return nil, &UnsupportedProviderError{URL: repoURL}
}

// BuildConnectionDetails constructs the provider-specific payload for a
// connection request. The token is carried opaquely.
func BuildConnectionDetails(ref *RepoRef, workspaceID, branch, directory, token string) ConnectionDetails {
	details := ConnectionDetails{
		Variant:     ref.Variant,
		WorkspaceID: workspaceID,
		Repo:        ref.Repo,
		Branch:      branch,
		Directory:   directory,
		Token:       token,
	}
	switch ref.Variant {
	case ProviderEnterprise:
		details.Organization = ref.Owner
		details.Project = ref.Project
	default:
		details.Owner = ref.Owner
	}
	return details
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
