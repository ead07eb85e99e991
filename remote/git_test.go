package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/GoCodeAlone/wsctl/deploy"
)

func newTestGitClient(t *testing.T, handler http.Handler) *GitClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g, err := NewGitClient(testConfig(srv), testLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return g
}

func hostedDetails() deploy.ConnectionDetails {
	return deploy.ConnectionDetails{
		Variant:     deploy.ProviderHosted,
		Owner:       "acme",
		Repo:        "analytics",
		WorkspaceID: "ws-1",
		Branch:      "main",
		Directory:   "/platform",
		Token:       "git-token",
	}
}

func TestCreateConnectionHostedPayload(t *testing.T) {
	var captured map[string]any
	g := newTestGitClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/workspaces/ws-1/git/connect" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": "conn-1"})
	}))

	conn, err := g.CreateConnection(context.Background(), hostedDetails())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if conn.ConnectionID != "conn-1" || conn.Status != deploy.GitConnectionCreated {
		t.Errorf("unexpected connection: %+v", conn)
	}

	provider, _ := captured["gitProviderDetails"].(map[string]any)
	if provider["gitProviderType"] != "GitHub" || provider["ownerName"] != "acme" || provider["repositoryName"] != "analytics" {
		t.Errorf("unexpected provider block: %v", provider)
	}
	if _, hasOrg := provider["organizationName"]; hasOrg {
		t.Error("hosted payload must not carry an organization")
	}
	creds, _ := captured["credentials"].(map[string]any)
	if creds["token"] != "git-token" {
		t.Errorf("credentials not forwarded: %v", creds)
	}
}

func TestCreateConnectionEnterprisePayload(t *testing.T) {
	var captured map[string]any
	g := newTestGitClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": "conn-2"})
	}))

	details := deploy.ConnectionDetails{
		Variant:      deploy.ProviderEnterprise,
		Organization: "acme-corp",
		Project:      "data",
		Repo:         "analytics",
		WorkspaceID:  "ws-1",
		Branch:       "main",
		Directory:    "/",
		Token:        "git-token",
	}
	if _, err := g.CreateConnection(context.Background(), details); err != nil {
		t.Fatalf("connect: %v", err)
	}

	provider, _ := captured["gitProviderDetails"].(map[string]any)
	if provider["gitProviderType"] != "AzureDevOps" {
		t.Errorf("unexpected provider type: %v", provider)
	}
	if provider["organizationName"] != "acme-corp" || provider["projectName"] != "data" {
		t.Errorf("unexpected addressing: %v", provider)
	}
}

func TestInitializeConnection(t *testing.T) {
	g := newTestGitClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"requiredAction": "UpdateFromGit"})
	}))

	action, err := g.InitializeConnection(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if action != deploy.RequiredActionUpdateFromGit {
		t.Errorf("expected UpdateFromGit, got %s", action)
	}
}

func TestInitializeConnectionEmptyActionMeansNone(t *testing.T) {
	g := newTestGitClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{})
	}))

	action, err := g.InitializeConnection(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if action != deploy.RequiredActionNone {
		t.Errorf("expected None, got %s", action)
	}
}

func TestUpdateFromGitReturnsHandle(t *testing.T) {
	g := newTestGitClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Operation-Id", "op-77")
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusAccepted)
	}))

	handle, err := g.UpdateFromGit(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if handle.ID != "op-77" || handle.Kind != "updateFromGit" {
		t.Errorf("unexpected handle: %+v", handle)
	}
	if handle.PollInterval != 5*time.Second {
		t.Errorf("Retry-After not honored: %v", handle.PollInterval)
	}
}

func TestUpdateFromGitDefaultsPollInterval(t *testing.T) {
	g := newTestGitClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Operation-Id", "op-78")
		w.WriteHeader(http.StatusAccepted)
	}))

	handle, err := g.UpdateFromGit(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if handle.PollInterval != defaultGitPollInterval || handle.Timeout != defaultGitOpTimeout {
		t.Errorf("defaults not applied: %+v", handle)
	}
}

func TestStartOperationWithoutOperationID(t *testing.T) {
	g := newTestGitClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	if _, err := g.CommitToGit(context.Background(), "ws-1"); err == nil {
		t.Fatal("missing operation id must be an error")
	}
}

func TestPollOperation(t *testing.T) {
	statuses := []string{"Running", "Succeeded"}
	call := 0
	g := newTestGitClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/operations/op-77" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": statuses[call]})
		call++
	}))

	status, err := g.PollOperation(context.Background(), "op-77")
	if err != nil || status != deploy.OperationRunning {
		t.Fatalf("first poll: %v %s", err, status)
	}
	status, err = g.PollOperation(context.Background(), "op-77")
	if err != nil || status != deploy.OperationSucceeded {
		t.Fatalf("second poll: %v %s", err, status)
	}
}

func TestDeleteConnection(t *testing.T) {
	deleted := false
	g := newTestGitClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete && r.URL.Path == "/git/connections/conn-1" {
			deleted = true
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	if err := g.DeleteConnection(context.Background(), "conn-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Error("delete endpoint not called")
	}
}
