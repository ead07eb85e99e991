package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig holds configuration for the Vault provider.
type VaultConfig struct {
	Address   string `json:"address" yaml:"address"`
	Token     string `json:"token" yaml:"token"`
	MountPath string `json:"mountPath,omitempty" yaml:"mountPath,omitempty"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// VaultProvider reads secrets from a Vault KV v2 mount. Keys take the form
// "path" or "path#field"; without a field the whole secret is returned as
// JSON.
type VaultProvider struct {
	client *vault.Client
	mount  string
}

// NewVaultProvider creates a Vault provider.
func NewVaultProvider(cfg VaultConfig) (*VaultProvider, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: vault address is required", ErrProviderInit)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: vault token is required", ErrProviderInit)
	}
	if cfg.MountPath == "" {
		cfg.MountPath = "secret"
	}

	vc := vault.DefaultConfig()
	vc.Address = cfg.Address
	client, err := vault.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderInit, err)
	}
	client.SetToken(cfg.Token)
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	return &VaultProvider{client: client, mount: cfg.MountPath}, nil
}

func (p *VaultProvider) Name() string { return "vault" }

func (p *VaultProvider) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	path, field := parseVaultKey(key)

	secret, err := p.client.KVv2(p.mount).Get(ctx, path)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return "", fmt.Errorf("%w: vault path %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("secrets: vault read failed for %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: no data at vault path %s", ErrNotFound, path)
	}

	if field != "" {
		val, ok := secret.Data[field]
		if !ok {
			return "", fmt.Errorf("%w: field %q not found at vault path %s", ErrNotFound, field, path)
		}
		return fmt.Sprintf("%v", val), nil
	}

	data, err := json.Marshal(secret.Data)
	if err != nil {
		return "", fmt.Errorf("secrets: failed to marshal vault data: %w", err)
	}
	return string(data), nil
}

// parseVaultKey splits "path#field" into (path, field).
func parseVaultKey(key string) (path, field string) {
	if idx := strings.LastIndex(key, "#"); idx >= 0 {
		return key[:idx], key[idx+1:]
	}
	return key, ""
}
