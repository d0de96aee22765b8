package names

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/openwallet/nmc-attestor/pkg/app/errors"
	"github.com/openwallet/nmc-attestor/pkg/binding"
	"github.com/openwallet/nmc-attestor/pkg/namecoin"
	"github.com/openwallet/nmc-attestor/pkg/unlock"
)

func mustEncode(t *testing.T, reg *namecoin.Registration) string {
	t.Helper()
	data, err := reg.Encode()
	require.NoError(t, err)
	return data
}

func pendingBinding(t *testing.T, name string, stage namecoin.Stage) *binding.NameBinding {
	t.Helper()
	reg := &namecoin.Registration{
		Name:         name,
		Rand:         "aa",
		RegisterTxID: "bb",
		Stage:        stage,
	}
	if stage == namecoin.StageActivated {
		reg.ActivateTxID = "cc"
	}
	return binding.New(name, "nym-1", "hash-"+name, mustEncode(t, reg))
}

func newManager(t *testing.T, store *mockStore, registry *mockRegistry, unlocker *mockUnlocker, resolver *mockResolver) *Manager {
	t.Helper()
	m, err := New(context.Background(), store, registry, unlocker, resolver, "ot", zap.NewNop())
	require.NoError(t, err)
	return m
}

func TestNew_ReloadsPendingAndSkipsMalformed(t *testing.T) {
	good := pendingBinding(t, "ot/good", namecoin.StageRegistered)
	bad := binding.New("ot/bad", "nym-2", "hash-bad", "{not json")

	store := &mockStore{
		LoadPendingFunc: func(ctx context.Context) ([]*binding.NameBinding, error) {
			return []*binding.NameBinding{good, bad}, nil
		},
	}

	m := newManager(t, store, &mockRegistry{}, &mockUnlocker{}, &mockResolver{})
	assert.Equal(t, 1, m.Pending())

	statuses := m.PendingStatuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, "ot/good", statuses[0].Name)
	assert.Equal(t, binding.StateRegistering, statuses[0].State)
}

func TestStartRegistration_PersistsBinding(t *testing.T) {
	store := &mockStore{}
	registry := &mockRegistry{
		RegisterNameFunc: func(ctx context.Context, name string) (*namecoin.Registration, error) {
			return &namecoin.Registration{
				Name:         name,
				Rand:         "rand",
				RegisterTxID: "txid",
				Stage:        namecoin.StageRegistered,
			}, nil
		},
	}
	unlocker := &mockUnlocker{}

	m := newManager(t, store, registry, unlocker, &mockResolver{})

	b, err := m.StartRegistration(context.Background(), "nym-1", "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "ot/deadbeef", b.Name)
	assert.False(t, b.Active)
	assert.NotEmpty(t, b.RegData)
	require.Len(t, store.created, 1)
	assert.Equal(t, 1, m.Pending())
	assert.Equal(t, 1, unlocker.lockCalls, "wallet must be re-locked after the spend")
}

func TestStartRegistration_CancelledUnlock(t *testing.T) {
	registry := &mockRegistry{
		RegisterNameFunc: func(ctx context.Context, name string) (*namecoin.Registration, error) {
			t.Fatal("name_new must not run after a cancelled unlock")
			return nil, nil
		},
	}
	unlocker := &mockUnlocker{
		UnlockFunc: func(ctx context.Context) (unlock.Result, error) {
			return unlock.ResultCancelled, nil
		},
	}

	m := newManager(t, &mockStore{}, registry, unlocker, &mockResolver{})

	_, err := m.StartRegistration(context.Background(), "nym-1", "deadbeef")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CategoryUnlockCancelled))
	assert.Equal(t, 0, m.Pending())
}

func TestStartRegistration_RegistryFailure(t *testing.T) {
	registry := &mockRegistry{
		RegisterNameFunc: func(ctx context.Context, name string) (*namecoin.Registration, error) {
			return nil, errors.New("insufficient funds")
		},
	}

	m := newManager(t, &mockStore{}, registry, &mockUnlocker{}, &mockResolver{})

	_, err := m.StartRegistration(context.Background(), "nym-1", "deadbeef")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CategoryRegistryTransport))
	assert.Equal(t, 0, m.Pending())
}

func TestTick_NothingReady_NoUnlock(t *testing.T) {
	b := pendingBinding(t, "ot/a", namecoin.StageRegistered)
	store := &mockStore{
		LoadPendingFunc: func(ctx context.Context) ([]*binding.NameBinding, error) {
			return []*binding.NameBinding{b}, nil
		},
	}
	registry := &mockRegistry{
		CanActivateFunc: func(ctx context.Context, reg *namecoin.Registration) (bool, error) {
			return false, nil
		},
	}
	unlocker := &mockUnlocker{}

	m := newManager(t, store, registry, unlocker, &mockResolver{})

	require.NoError(t, m.Tick(context.Background()))
	assert.Zero(t, unlocker.unlockCalls, "no spend needed means no unlock")
	assert.Equal(t, 1, m.Pending())
}

func TestTick_CancelledUnlockAbortsWholeTick(t *testing.T) {
	a := pendingBinding(t, "ot/a", namecoin.StageRegistered)
	b := pendingBinding(t, "ot/b", namecoin.StageActivated)
	store := &mockStore{
		LoadPendingFunc: func(ctx context.Context) ([]*binding.NameBinding, error) {
			return []*binding.NameBinding{a, b}, nil
		},
	}
	registry := &mockRegistry{
		CanActivateFunc: func(ctx context.Context, reg *namecoin.Registration) (bool, error) {
			return true, nil
		},
		IsFinishedFunc: func(ctx context.Context, reg *namecoin.Registration) (bool, error) {
			return true, nil
		},
		ActivateFunc: func(ctx context.Context, reg *namecoin.Registration) error {
			t.Fatal("activation must not run after a cancelled unlock")
			return nil
		},
		UpdateNameFunc: func(ctx context.Context, name, value, destAddr string) (string, error) {
			t.Fatal("update must not run after a cancelled unlock")
			return "", nil
		},
	}
	unlocker := &mockUnlocker{
		UnlockFunc: func(ctx context.Context) (unlock.Result, error) {
			return unlock.ResultCancelled, nil
		},
	}

	m := newManager(t, store, registry, unlocker, &mockResolver{})

	err := m.Tick(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CategoryUnlockCancelled))
	assert.Equal(t, 2, m.Pending(), "cancelled tick keeps every binding for retry")
	assert.Equal(t, 1, unlocker.unlockCalls, "one batched unlock attempt per tick")
}

func TestTick_ActivatesAndPersists(t *testing.T) {
	b := pendingBinding(t, "ot/a", namecoin.StageRegistered)
	store := &mockStore{
		LoadPendingFunc: func(ctx context.Context) ([]*binding.NameBinding, error) {
			return []*binding.NameBinding{b}, nil
		},
	}
	registry := &mockRegistry{
		CanActivateFunc: func(ctx context.Context, reg *namecoin.Registration) (bool, error) {
			return true, nil
		},
		ActivateFunc: func(ctx context.Context, reg *namecoin.Registration) error {
			reg.ActivateTxID = "firstupdate-tx"
			reg.Stage = namecoin.StageActivated
			return nil
		},
	}
	unlocker := &mockUnlocker{}

	m := newManager(t, store, registry, unlocker, &mockResolver{})

	require.NoError(t, m.Tick(context.Background()))
	assert.Equal(t, 1, m.Pending(), "activated binding stays pending until finished")
	require.Contains(t, store.regUpdates, "ot/a")

	reg, err := namecoin.DecodeRegistration(store.regUpdates["ot/a"])
	require.NoError(t, err)
	assert.Equal(t, namecoin.StageActivated, reg.Stage)
	assert.Equal(t, "firstupdate-tx", reg.ActivateTxID)
	assert.Equal(t, 1, unlocker.lockCalls)
}

func TestTick_FinishedBindingRemovedAndAttested(t *testing.T) {
	b := pendingBinding(t, "ot/a", namecoin.StageActivated)
	store := &mockStore{
		LoadPendingFunc: func(ctx context.Context) ([]*binding.NameBinding, error) {
			return []*binding.NameBinding{b}, nil
		},
	}

	var updatedValue, updatedDest string
	registry := &mockRegistry{
		IsFinishedFunc: func(ctx context.Context, reg *namecoin.Registration) (bool, error) {
			return true, nil
		},
		UpdateNameFunc: func(ctx context.Context, name, value, destAddr string) (string, error) {
			updatedValue = value
			updatedDest = destAddr
			return "update-tx", nil
		},
		SignMessageFunc: func(ctx context.Context, address, message string) (string, error) {
			assert.Equal(t, b.CredentialHash, message)
			return "signature", nil
		},
	}

	m := newManager(t, store, registry, &mockUnlocker{}, &mockResolver{})

	require.NoError(t, m.Tick(context.Background()))
	assert.Equal(t, 0, m.Pending())
	assert.Equal(t, []string{"ot/a"}, store.marked)
	assert.JSONEq(t, `{"nmcsig":"signature"}`, updatedValue)
	assert.Equal(t, "N1sourceaddress", updatedDest)
	assert.Equal(t, map[string]string{"ot/a": "update-tx"}, store.txids)
}

func TestTick_FinishedRemovedEvenWhenUpdateFails(t *testing.T) {
	b := pendingBinding(t, "ot/a", namecoin.StageActivated)
	store := &mockStore{
		LoadPendingFunc: func(ctx context.Context) ([]*binding.NameBinding, error) {
			return []*binding.NameBinding{b}, nil
		},
	}
	registry := &mockRegistry{
		IsFinishedFunc: func(ctx context.Context, reg *namecoin.Registration) (bool, error) {
			return true, nil
		},
		UpdateNameFunc: func(ctx context.Context, name, value, destAddr string) (string, error) {
			return "", errors.New("transaction rejected")
		},
	}

	m := newManager(t, store, registry, &mockUnlocker{}, &mockResolver{})

	require.NoError(t, m.Tick(context.Background()))
	assert.Equal(t, 0, m.Pending(), "active binding leaves the ledger even when the attestation fails")
	assert.Equal(t, []string{"ot/a"}, store.marked)
	assert.Empty(t, store.txids)
}

func TestTick_MarkActiveFailureKeepsBinding(t *testing.T) {
	b := pendingBinding(t, "ot/a", namecoin.StageActivated)
	store := &mockStore{
		LoadPendingFunc: func(ctx context.Context) ([]*binding.NameBinding, error) {
			return []*binding.NameBinding{b}, nil
		},
		MarkActiveFunc: func(ctx context.Context, name string) error {
			return errors.New("connection reset")
		},
	}
	registry := &mockRegistry{
		IsFinishedFunc: func(ctx context.Context, reg *namecoin.Registration) (bool, error) {
			return true, nil
		},
		UpdateNameFunc: func(ctx context.Context, name, value, destAddr string) (string, error) {
			t.Fatal("update must not run before the binding is marked active")
			return "", nil
		},
	}

	m := newManager(t, store, registry, &mockUnlocker{}, &mockResolver{})

	require.NoError(t, m.Tick(context.Background()))
	assert.Equal(t, 1, m.Pending(), "binding stays for the next tick when persistence fails")
}

func TestTick_PerBindingFailureIsolation(t *testing.T) {
	a := pendingBinding(t, "ot/a", namecoin.StageRegistered)
	b := pendingBinding(t, "ot/b", namecoin.StageRegistered)
	store := &mockStore{
		LoadPendingFunc: func(ctx context.Context) ([]*binding.NameBinding, error) {
			return []*binding.NameBinding{a, b}, nil
		},
	}
	registry := &mockRegistry{
		CanActivateFunc: func(ctx context.Context, reg *namecoin.Registration) (bool, error) {
			if reg.Name == "ot/a" {
				return false, errors.New("transaction not in wallet")
			}
			return true, nil
		},
		ActivateFunc: func(ctx context.Context, reg *namecoin.Registration) error {
			reg.ActivateTxID = "tx-" + reg.Name
			reg.Stage = namecoin.StageActivated
			return nil
		},
	}

	m := newManager(t, store, registry, &mockUnlocker{}, &mockResolver{})

	require.NoError(t, m.Tick(context.Background()))
	assert.Equal(t, 2, m.Pending())
	assert.Contains(t, store.regUpdates, "ot/b")
	assert.NotContains(t, store.regUpdates, "ot/a")
}

func TestTick_ForeignSourceAddressSkipsUpdate(t *testing.T) {
	b := pendingBinding(t, "ot/a", namecoin.StageActivated)
	store := &mockStore{
		LoadPendingFunc: func(ctx context.Context) ([]*binding.NameBinding, error) {
			return []*binding.NameBinding{b}, nil
		},
	}
	registry := &mockRegistry{
		IsFinishedFunc: func(ctx context.Context, reg *namecoin.Registration) (bool, error) {
			return true, nil
		},
		ValidateAddressFunc: func(ctx context.Context, address string) (*namecoin.AddressInfo, error) {
			return &namecoin.AddressInfo{IsValid: true, Address: address, IsMine: false}, nil
		},
		UpdateNameFunc: func(ctx context.Context, name, value, destAddr string) (string, error) {
			t.Fatal("update must not run for a foreign source address")
			return "", nil
		},
	}

	m := newManager(t, store, registry, &mockUnlocker{}, &mockResolver{})

	require.NoError(t, m.Tick(context.Background()))
	assert.Equal(t, 0, m.Pending())
	assert.Equal(t, []string{"ot/a"}, store.marked)
}
