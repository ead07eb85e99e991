package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/GoCodeAlone/wsctl/config"
)

// ItemIndex is a read-only snapshot of every item in a workspace, keyed for
// the two lookups provisioning needs: exact identity and name+kind across
// folders. It is built once per item phase and never mutated during it.
type ItemIndex struct {
	byIdentity map[string]Item
	byNameKind map[string][]Item
}

// NewItemIndex builds an index from a workspace item listing.
func NewItemIndex(items []Item) *ItemIndex {
	idx := &ItemIndex{
		byIdentity: make(map[string]Item, len(items)),
		byNameKind: make(map[string][]Item),
	}
	for _, it := range items {
		idx.byIdentity[identityKey(it.FolderName, it.Name, it.Kind)] = it
		nk := nameKindKey(it.Name, it.Kind)
		idx.byNameKind[nk] = append(idx.byNameKind[nk], it)
	}
	return idx
}

// Lookup returns the item with the exact (folder, name, kind) identity.
func (x *ItemIndex) Lookup(folder, name, kind string) (Item, bool) {
	it, ok := x.byIdentity[identityKey(folder, name, kind)]
	return it, ok
}

// LookupOtherFolder returns an item with the same name and kind that lives
// in a folder other than the given one, if any.
func (x *ItemIndex) LookupOtherFolder(folder, name, kind string) (Item, bool) {
	for _, it := range x.byNameKind[nameKindKey(name, kind)] {
		if it.FolderName != folder {
			return it, true
		}
	}
	return Item{}, false
}

func identityKey(folder, name, kind string) string {
	return folder + "\x00" + name + "\x00" + kind
}

func nameKindKey(name, kind string) string {
	return name + "\x00" + kind
}

// ItemProvisioner ensures a single typed artifact exists inside a folder. It
// is deliberately kind-agnostic: the kind label is passed through to the
// remote call unchanged, so new remote item kinds need no code changes here.
type ItemProvisioner struct {
	client WorkspaceClient
	logger *slog.Logger
}

// NewItemProvisioner creates a provisioner backed by the given client.
func NewItemProvisioner(client WorkspaceClient, logger *slog.Logger) *ItemProvisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ItemProvisioner{client: client, logger: logger}
}

// Ensure checks the index before creating: an item with the exact identity
// is reused; a name+kind match in a different folder is an ambiguous
// relocation and fails with *ResourceConflictError rather than being
// silently absorbed. Idempotency comes from the existence check, not from
// catching duplicate-creation errors.
func (p *ItemProvisioner) Ensure(ctx context.Context, workspaceID string, index *ItemIndex, folderID string, spec config.ItemSpec) (ProvisionOutcome, error) {
	if existing, ok := index.Lookup(spec.Folder, spec.Name, spec.Kind); ok {
		p.logger.Debug("item already exists", "kind", spec.Kind, "name", spec.Name, "folder", spec.Folder)
		return ProvisionOutcome{Action: ActionReused, ID: existing.ID, Spec: spec}, nil
	}

	if other, ok := index.LookupOtherFolder(spec.Folder, spec.Name, spec.Kind); ok {
		return ProvisionOutcome{}, &ResourceConflictError{
			Kind:           spec.Kind,
			Name:           spec.Name,
			Folder:         spec.Folder,
			ExistingFolder: other.FolderName,
		}
	}

	created, err := p.client.CreateItem(ctx, workspaceID, folderID, spec.Kind, spec.Name)
	if err != nil {
		return ProvisionOutcome{}, fmt.Errorf("create item %s %q: %w", spec.Kind, spec.Name, err)
	}
	p.logger.Info("item created", "kind", spec.Kind, "name", spec.Name, "folder", spec.Folder, "id", created.ID)
	return ProvisionOutcome{Action: ActionCreated, ID: created.ID, Spec: spec}, nil
}
