package names

import (
	"context"

	"github.com/openwallet/nmc-attestor/pkg/binding"
	"github.com/openwallet/nmc-attestor/pkg/namecoin"
	"github.com/openwallet/nmc-attestor/pkg/unlock"
)

type mockRegistry struct {
	RegisterNameFunc    func(ctx context.Context, name string) (*namecoin.Registration, error)
	CanActivateFunc     func(ctx context.Context, reg *namecoin.Registration) (bool, error)
	IsFinishedFunc      func(ctx context.Context, reg *namecoin.Registration) (bool, error)
	ActivateFunc        func(ctx context.Context, reg *namecoin.Registration) error
	UpdateNameFunc      func(ctx context.Context, name, value, destAddr string) (string, error)
	ValidateAddressFunc func(ctx context.Context, address string) (*namecoin.AddressInfo, error)
	SignMessageFunc     func(ctx context.Context, address, message string) (string, error)
	NeedsPassphraseFunc func(ctx context.Context) (bool, error)
}

func (m *mockRegistry) RegisterName(ctx context.Context, name string) (*namecoin.Registration, error) {
	return m.RegisterNameFunc(ctx, name)
}

func (m *mockRegistry) CanActivate(ctx context.Context, reg *namecoin.Registration) (bool, error) {
	if m.CanActivateFunc == nil {
		return false, nil
	}
	return m.CanActivateFunc(ctx, reg)
}

func (m *mockRegistry) IsFinished(ctx context.Context, reg *namecoin.Registration) (bool, error) {
	if m.IsFinishedFunc == nil {
		return false, nil
	}
	return m.IsFinishedFunc(ctx, reg)
}

func (m *mockRegistry) Activate(ctx context.Context, reg *namecoin.Registration) error {
	return m.ActivateFunc(ctx, reg)
}

func (m *mockRegistry) UpdateName(ctx context.Context, name, value, destAddr string) (string, error) {
	return m.UpdateNameFunc(ctx, name, value, destAddr)
}

func (m *mockRegistry) ValidateAddress(ctx context.Context, address string) (*namecoin.AddressInfo, error) {
	if m.ValidateAddressFunc == nil {
		return &namecoin.AddressInfo{IsValid: true, Address: address, IsMine: true}, nil
	}
	return m.ValidateAddressFunc(ctx, address)
}

func (m *mockRegistry) SignMessage(ctx context.Context, address, message string) (string, error) {
	if m.SignMessageFunc == nil {
		return "sig", nil
	}
	return m.SignMessageFunc(ctx, address, message)
}

func (m *mockRegistry) NeedsPassphrase(ctx context.Context) (bool, error) {
	if m.NeedsPassphraseFunc == nil {
		return false, nil
	}
	return m.NeedsPassphraseFunc(ctx)
}

type mockUnlocker struct {
	UnlockFunc  func(ctx context.Context) (unlock.Result, error)
	unlockCalls int
	lockCalls   int
}

func (m *mockUnlocker) Unlock(ctx context.Context) (unlock.Result, error) {
	m.unlockCalls++
	if m.UnlockFunc == nil {
		return unlock.ResultUnlocked, nil
	}
	return m.UnlockFunc(ctx)
}

func (m *mockUnlocker) Lock(ctx context.Context) {
	m.lockCalls++
}

type mockResolver struct {
	SourceAddressFunc func(ctx context.Context, nymID string) (string, error)
}

func (m *mockResolver) SourceAddress(ctx context.Context, nymID string) (string, error) {
	if m.SourceAddressFunc == nil {
		return "N1sourceaddress", nil
	}
	return m.SourceAddressFunc(ctx, nymID)
}

type mockStore struct {
	CreateBindingFunc func(ctx context.Context, b *binding.NameBinding) error
	LoadPendingFunc   func(ctx context.Context) ([]*binding.NameBinding, error)
	UpdateRegDataFunc func(ctx context.Context, name, regData string) error
	MarkActiveFunc    func(ctx context.Context, name string) error
	SetUpdateTxIDFunc func(ctx context.Context, name, txid string) error

	created    []*binding.NameBinding
	marked     []string
	regUpdates map[string]string
	txids      map[string]string
}

func (m *mockStore) CreateBinding(ctx context.Context, b *binding.NameBinding) error {
	if m.CreateBindingFunc != nil {
		return m.CreateBindingFunc(ctx, b)
	}
	m.created = append(m.created, b)
	return nil
}

func (m *mockStore) LoadPending(ctx context.Context) ([]*binding.NameBinding, error) {
	if m.LoadPendingFunc == nil {
		return nil, nil
	}
	return m.LoadPendingFunc(ctx)
}

func (m *mockStore) UpdateRegData(ctx context.Context, name, regData string) error {
	if m.UpdateRegDataFunc != nil {
		return m.UpdateRegDataFunc(ctx, name, regData)
	}
	if m.regUpdates == nil {
		m.regUpdates = make(map[string]string)
	}
	m.regUpdates[name] = regData
	return nil
}

func (m *mockStore) MarkActive(ctx context.Context, name string) error {
	if m.MarkActiveFunc != nil {
		return m.MarkActiveFunc(ctx, name)
	}
	m.marked = append(m.marked, name)
	return nil
}

func (m *mockStore) SetUpdateTxID(ctx context.Context, name, txid string) error {
	if m.SetUpdateTxIDFunc != nil {
		return m.SetUpdateTxIDFunc(ctx, name, txid)
	}
	if m.txids == nil {
		m.txids = make(map[string]string)
	}
	m.txids[name] = txid
	return nil
}
