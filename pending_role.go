package auth

import (
	"context"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// StorageKeyPendingRole survives the identity provider redirect.
const StorageKeyPendingRole = "pending_role"

// PendingRoleSlot is a one-shot handoff of the role a visitor picked before
// leaving for the identity provider.
type PendingRoleSlot struct {
	mu      sync.Mutex
	storage Storage
}

// NewPendingRoleSlot creates a slot persisted in storage.
func NewPendingRoleSlot(storage Storage) *PendingRoleSlot {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	return &PendingRoleSlot{storage: storage}
}

// Put records role, replacing any earlier value.
func (p *PendingRoleSlot) Put(ctx context.Context, role Role) error {
	if !role.IsValid() {
		return NewValidationError("invalid role", map[string]string{"role": string(role)})
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// callers may hand over strings that alias a reused request buffer
	value := strings.Clone(string(role))
	if err := p.storage.SetItems(ctx, map[string]string{StorageKeyPendingRole: value}); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store pending role")
	}
	return nil
}

// Consume reads the pending role and clears it. The second call returns
// false. An unreadable value is cleared and reported as absent.
func (p *PendingRoleSlot) Consume(ctx context.Context) (Role, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	items, err := p.storage.GetItems(ctx, StorageKeyPendingRole)
	if err != nil {
		return "", false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read pending role")
	}

	raw, found := items[StorageKeyPendingRole]
	if !found {
		return "", false, nil
	}

	if err := p.storage.RemoveItems(ctx, StorageKeyPendingRole); err != nil {
		return "", false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear pending role")
	}

	role, ok := ParseRole(raw)
	if !ok {
		return "", false, nil
	}
	return role, true, nil
}

// Discard drops any pending role without reading it.
func (p *PendingRoleSlot) Discard(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.storage.RemoveItems(ctx, StorageKeyPendingRole)
}
