package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// memPlatform is an in-memory implementation of both client contracts, with
// knobs for injecting the failure modes the engine must handle.
type memPlatform struct {
	mu     sync.Mutex
	nextID int

	workspaces  map[string]*Workspace
	folders     map[string][]Folder
	items       map[string][]Item
	grants      map[string]map[string]string
	connections map[string]*GitConnection

	// creation/deletion journal, in call order: "kind/name".
	created []string
	deleted []string

	// knobs
	capacityFailures int                          // CapacityUnavailableError count before success
	capacityCalls    int
	createItemHook   func(kind, name string) error
	failDelete       map[string]bool // resource id → undo fails
	requiredAction   RequiredAction
	initErr          error
	pollStatuses     []OperationStatus
	pollCalls        int
	handleTimeout    time.Duration
}

func newMemPlatform() *memPlatform {
	return &memPlatform{
		workspaces:     make(map[string]*Workspace),
		folders:        make(map[string][]Folder),
		items:          make(map[string][]Item),
		grants:         make(map[string]map[string]string),
		connections:    make(map[string]*GitConnection),
		failDelete:     make(map[string]bool),
		requiredAction: RequiredActionNone,
		pollStatuses:   []OperationStatus{OperationSucceeded},
	}
}

func (m *memPlatform) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

// --- WorkspaceClient ---

func (m *memPlatform) GetWorkspaceByName(_ context.Context, name string) (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ws := range m.workspaces {
		if ws.Name == name {
			copy := *ws
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("workspace %q: %w", name, ErrNotFound)
}

func (m *memPlatform) CreateWorkspace(_ context.Context, name, _ string) (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws := &Workspace{ID: m.id("ws"), Name: name}
	m.workspaces[ws.ID] = ws
	m.created = append(m.created, "workspace/"+name)
	return ws, nil
}

func (m *memPlatform) AssignCapacity(_ context.Context, workspaceID, capacityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capacityCalls++
	if m.capacityCalls <= m.capacityFailures {
		return &CapacityUnavailableError{CapacityID: capacityID, Reason: "propagation delay"}
	}
	ws, ok := m.workspaces[workspaceID]
	if !ok {
		return fmt.Errorf("workspace %s: %w", workspaceID, ErrNotFound)
	}
	ws.CapacityID = capacityID
	return nil
}

func (m *memPlatform) ListFolders(_ context.Context, workspaceID string) ([]Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Folder, len(m.folders[workspaceID]))
	copy(out, m.folders[workspaceID])
	return out, nil
}

func (m *memPlatform) CreateFolder(_ context.Context, workspaceID, name string) (*Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := Folder{ID: m.id("folder"), Name: name, WorkspaceID: workspaceID}
	m.folders[workspaceID] = append(m.folders[workspaceID], f)
	m.created = append(m.created, "folder/"+name)
	return &f, nil
}

func (m *memPlatform) ListItems(_ context.Context, workspaceID string) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Item, len(m.items[workspaceID]))
	copy(out, m.items[workspaceID])
	return out, nil
}

func (m *memPlatform) CreateItem(_ context.Context, workspaceID, folderID, kind, name string) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createItemHook != nil {
		if err := m.createItemHook(kind, name); err != nil {
			return nil, err
		}
	}
	folderName := ""
	for _, f := range m.folders[workspaceID] {
		if f.ID == folderID {
			folderName = f.Name
		}
	}
	it := Item{ID: m.id("item"), Name: name, Kind: kind, FolderID: folderID, FolderName: folderName}
	m.items[workspaceID] = append(m.items[workspaceID], it)
	m.created = append(m.created, "item/"+name)
	return &it, nil
}

func (m *memPlatform) GrantPrincipal(_ context.Context, workspaceID, principalID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.grants[workspaceID] == nil {
		m.grants[workspaceID] = make(map[string]string)
	}
	if _, ok := m.grants[workspaceID][principalID]; ok {
		return &ResourceConflictError{Kind: "roleAssignment", Name: principalID}
	}
	m.grants[workspaceID][principalID] = role
	m.created = append(m.created, "grant/"+principalID)
	return nil
}

func (m *memPlatform) RevokePrincipal(_ context.Context, workspaceID, principalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.grants[workspaceID], principalID)
	m.deleted = append(m.deleted, "grant/"+principalID)
	return nil
}

func (m *memPlatform) DeleteWorkspace(_ context.Context, workspaceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete[workspaceID] {
		return fmt.Errorf("workspace %s is locked", workspaceID)
	}
	delete(m.workspaces, workspaceID)
	m.deleted = append(m.deleted, "workspace/"+workspaceID)
	return nil
}

func (m *memPlatform) DeleteFolder(_ context.Context, workspaceID, folderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := folderID
	for _, f := range m.folders[workspaceID] {
		if f.ID == folderID {
			name = f.Name
		}
	}
	if m.failDelete[folderID] || m.failDelete[name] {
		return fmt.Errorf("folder %s is locked", name)
	}
	kept := m.folders[workspaceID][:0]
	for _, f := range m.folders[workspaceID] {
		if f.ID != folderID {
			kept = append(kept, f)
		}
	}
	m.folders[workspaceID] = kept
	m.deleted = append(m.deleted, "folder/"+folderID)
	return nil
}

func (m *memPlatform) DeleteItem(_ context.Context, workspaceID, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete[itemID] {
		return fmt.Errorf("item %s is locked", itemID)
	}
	kept := m.items[workspaceID][:0]
	for _, it := range m.items[workspaceID] {
		if it.ID != itemID {
			kept = append(kept, it)
		}
	}
	m.items[workspaceID] = kept
	m.deleted = append(m.deleted, "item/"+itemID)
	return nil
}

// --- GitClient ---

func (m *memPlatform) CreateConnection(_ context.Context, details ConnectionDetails) (*GitConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn := &GitConnection{
		Variant:      details.Variant,
		ConnectionID: m.id("conn"),
		WorkspaceID:  details.WorkspaceID,
		Branch:       details.Branch,
		Directory:    details.Directory,
		Status:       GitConnectionCreated,
	}
	m.connections[conn.ConnectionID] = conn
	m.created = append(m.created, "git-connection/"+conn.ConnectionID)
	return conn, nil
}

func (m *memPlatform) InitializeConnection(_ context.Context, _ string) (RequiredAction, error) {
	if m.initErr != nil {
		return "", m.initErr
	}
	return m.requiredAction, nil
}

func (m *memPlatform) UpdateFromGit(_ context.Context, _ string) (*OperationHandle, error) {
	return m.newHandle("updateFromGit"), nil
}

func (m *memPlatform) CommitToGit(_ context.Context, _ string) (*OperationHandle, error) {
	return m.newHandle("commitToGit"), nil
}

func (m *memPlatform) newHandle(kind string) *OperationHandle {
	timeout := m.handleTimeout
	if timeout == 0 {
		timeout = time.Minute
	}
	return &OperationHandle{
		ID:           m.id("op"),
		Kind:         kind,
		StartedAt:    time.Now(),
		PollInterval: time.Millisecond,
		Timeout:      timeout,
	}
}

func (m *memPlatform) PollOperation(_ context.Context, _ string) (OperationStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.pollCalls
	if i >= len(m.pollStatuses) {
		i = len(m.pollStatuses) - 1
	}
	m.pollCalls++
	return m.pollStatuses[i], nil
}

func (m *memPlatform) DeleteConnection(_ context.Context, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete[connectionID] {
		return fmt.Errorf("connection %s is busy", connectionID)
	}
	delete(m.connections, connectionID)
	m.deleted = append(m.deleted, "git-connection/"+connectionID)
	return nil
}

func (m *memPlatform) journal() (created, deleted []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.created...), append([]string(nil), m.deleted...)
}
