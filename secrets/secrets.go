// Package secrets resolves deployment credentials through a waterfall of
// providers: environment, OS keyring, local secret files, then Vault. The
// engine treats resolved values as opaque bearer credentials.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

// Common errors.
var (
	ErrNotFound     = errors.New("secrets: secret not found")
	ErrInvalidKey   = errors.New("secrets: invalid key")
	ErrProviderInit = errors.New("secrets: provider initialization failed")
)

// Provider is a single secret backend.
type Provider interface {
	// Name returns the provider identifier.
	Name() string
	// Get retrieves a secret value by key. A missing key returns an error
	// wrapping ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
}

// --- Environment Variable Provider ---

// EnvProvider reads secrets from environment variables. Keys are converted
// to uppercase with dots replaced by underscores, so "platform.token"
// becomes "PLATFORM_TOKEN".
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates an environment variable provider. A non-empty
// prefix is prepended to every lookup.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix}
}

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) Get(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	envKey := p.envKey(key)
	val, ok := os.LookupEnv(envKey)
	if !ok {
		return "", fmt.Errorf("%w: env var %s", ErrNotFound, envKey)
	}
	return val, nil
}

func (p *EnvProvider) envKey(key string) string {
	k := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if p.prefix != "" {
		return strings.ToUpper(p.prefix) + k
	}
	return k
}

// --- OS Keyring Provider ---

// KeyringProvider reads secrets from the operating system keyring, scoped to
// a service name.
type KeyringProvider struct {
	service string
}

// NewKeyringProvider creates a keyring provider under the given service name.
func NewKeyringProvider(service string) *KeyringProvider {
	return &KeyringProvider{service: service}
}

func (p *KeyringProvider) Name() string { return "keyring" }

func (p *KeyringProvider) Get(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	val, err := keyring.Get(p.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w: keyring entry %s/%s", ErrNotFound, p.service, key)
		}
		// Headless hosts have no keyring backend (no Secret Service on the
		// bus). An unreachable backend reads as a miss so the waterfall
		// continues instead of aborting.
		return "", fmt.Errorf("%w: keyring unavailable for %s: %v", ErrNotFound, key, err)
	}
	return val, nil
}

// --- File Provider ---

// FileProvider reads secrets from files in a directory: the file name is the
// key, the trimmed content is the value. Compatible with mounted secret
// volumes.
type FileProvider struct {
	dir string
}

// NewFileProvider creates a file-based provider rooted at dir.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

func (p *FileProvider) Name() string { return "file" }

func (p *FileProvider) Get(_ context.Context, key string) (string, error) {
	if key == "" || strings.Contains(key, "/") {
		return "", ErrInvalidKey
	}
	data, err := os.ReadFile(filepath.Join(p.dir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", fmt.Errorf("secrets: failed to read %s: %w", key, err)
	}
	return strings.TrimRight(string(data), "\n\r"), nil
}

// --- Chain ---

// Chain tries providers in order and returns the first hit. Only a missing
// key falls through to the next provider; any other error aborts the lookup
// so misconfiguration is surfaced instead of silently skipped.
type Chain struct {
	providers []Provider
}

// NewChain creates a waterfall over the given providers.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Get(ctx context.Context, key string) (string, error) {
	for _, p := range c.providers {
		val, err := p.Get(ctx, key)
		if err == nil {
			return val, nil
		}
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return "", fmt.Errorf("secrets: provider %s: %w", p.Name(), err)
	}
	return "", fmt.Errorf("%w: %s (tried %d providers)", ErrNotFound, key, len(c.providers))
}
