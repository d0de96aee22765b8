package bindingstore

import (
	"context"
	"errors"

	"github.com/openwallet/nmc-attestor/pkg/binding"
)

// ErrBindingNotFound is returned when a binding lookup finds no matching record.
var ErrBindingNotFound = errors.New("binding not found")

// Store defines the interface for name binding persistence
type Store interface {
	CreateBinding(ctx context.Context, b *binding.NameBinding) error
	// LoadPending returns bindings that still carry registration data and
	// have not been activated. These are the rows the reconciliation loop
	// picks up again after a restart.
	LoadPending(ctx context.Context) ([]*binding.NameBinding, error)
	GetBinding(ctx context.Context, name string) (*binding.NameBinding, error)
	ListBindings(ctx context.Context, limit int) ([]*binding.NameBinding, error)
	UpdateRegData(ctx context.Context, name, regData string) error
	// MarkActive flips the binding to active and clears its registration
	// data. Every row carrying the name is updated.
	MarkActive(ctx context.Context, name string) error
	SetUpdateTxID(ctx context.Context, name, txid string) error
}
