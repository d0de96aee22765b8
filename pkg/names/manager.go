// Package names orchestrates the lifecycle of credential name bindings: it
// starts registrations, tracks in-flight bindings across restarts, and drives
// them through activation to the final attestation update.
package names

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/openwallet/nmc-attestor/internal/metrics"
	apperrors "github.com/openwallet/nmc-attestor/pkg/app/errors"
	"github.com/openwallet/nmc-attestor/pkg/binding"
	"github.com/openwallet/nmc-attestor/pkg/namecoin"
	"github.com/openwallet/nmc-attestor/pkg/unlock"
)

// RegistryClient is the subset of the Namecoin client the manager drives.
type RegistryClient interface {
	RegisterName(ctx context.Context, name string) (*namecoin.Registration, error)
	CanActivate(ctx context.Context, reg *namecoin.Registration) (bool, error)
	IsFinished(ctx context.Context, reg *namecoin.Registration) (bool, error)
	Activate(ctx context.Context, reg *namecoin.Registration) error
	UpdateName(ctx context.Context, name, value, destAddr string) (string, error)
	ValidateAddress(ctx context.Context, address string) (*namecoin.AddressInfo, error)
	SignMessage(ctx context.Context, address, message string) (string, error)
	NeedsPassphrase(ctx context.Context) (bool, error)
}

// Unlocker gates spend-capable wallet calls behind the passphrase flow.
type Unlocker interface {
	Unlock(ctx context.Context) (unlock.Result, error)
	Lock(ctx context.Context)
}

// SourceResolver maps a nym to the wallet address its attestations are
// signed with and sent to.
type SourceResolver interface {
	SourceAddress(ctx context.Context, nymID string) (string, error)
}

// Store is the slice of binding persistence the manager needs.
type Store interface {
	CreateBinding(ctx context.Context, b *binding.NameBinding) error
	LoadPending(ctx context.Context) ([]*binding.NameBinding, error)
	UpdateRegData(ctx context.Context, name, regData string) error
	MarkActive(ctx context.Context, name string) error
	SetUpdateTxID(ctx context.Context, name, txid string) error
}

// entry pairs a persisted binding with its decoded registration state.
type entry struct {
	binding *binding.NameBinding
	reg     *namecoin.Registration
	state   binding.State
}

// Manager owns the in-flight binding ledger. All public methods are safe for
// concurrent use; registration requests racing the reconciliation tick are
// serialized on the manager mutex.
type Manager struct {
	store     Store
	registry  RegistryClient
	unlocker  Unlocker
	resolver  SourceResolver
	namespace string
	logger    *zap.Logger

	mu      sync.Mutex
	pending []*entry
}

// New creates a manager and reloads the in-flight bindings persisted by a
// previous run. Rows whose registration data no longer decodes are logged and
// skipped; they stay in the database for manual inspection.
func New(
	ctx context.Context,
	store Store,
	registry RegistryClient,
	unlocker Unlocker,
	resolver SourceResolver,
	namespace string,
	logger *zap.Logger,
) (*Manager, error) {
	if namespace == "" {
		namespace = binding.DefaultNamespace
	}

	m := &Manager{
		store:     store,
		registry:  registry,
		unlocker:  unlocker,
		resolver:  resolver,
		namespace: namespace,
		logger:    logger,
	}

	persisted, err := store.LoadPending(ctx)
	if err != nil {
		return nil, apperrors.GeneralError("names.New", err)
	}

	for _, b := range persisted {
		reg, err := namecoin.DecodeRegistration(b.RegData)
		if err != nil {
			serr := apperrors.MalformedEntryError(b.Name, err)
			logger.Error("Skipping undecodable pending binding", zap.String("name", b.Name), zap.Error(serr))
			continue
		}
		m.pending = append(m.pending, &entry{binding: b, reg: reg})
	}

	metrics.PendingBindings.Set(float64(len(m.pending)))
	logger.Info("Reloaded pending name bindings", zap.Int("count", len(m.pending)))

	return m, nil
}

// StartRegistration claims a new name for the credential and persists the
// binding so the reconciliation loop can finish the job. The wallet must be
// unlocked for the name_new spend; a user cancel aborts the registration.
func (m *Manager) StartRegistration(ctx context.Context, nymID, credentialHash string) (*binding.NameBinding, error) {
	const op = "names.StartRegistration"

	name := binding.DeriveName(m.namespace, credentialHash)

	res, err := m.unlocker.Unlock(ctx)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("failure").Inc()
		return nil, apperrors.GeneralError(op, err)
	}
	if res == unlock.ResultCancelled {
		metrics.RegistrationsTotal.WithLabelValues("cancelled").Inc()
		return nil, apperrors.UnlockCancelledError(op)
	}
	defer m.unlocker.Lock(ctx)

	reg, err := m.registry.RegisterName(ctx, name)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("failure").Inc()
		return nil, apperrors.RegistryError(op, name, err)
	}

	regData, err := reg.Encode()
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("failure").Inc()
		return nil, apperrors.GeneralError(op, err)
	}

	b := binding.New(name, nymID, credentialHash, regData)
	if err := m.store.CreateBinding(ctx, b); err != nil {
		metrics.RegistrationsTotal.WithLabelValues("failure").Inc()
		return nil, apperrors.GeneralError(op, err)
	}

	m.mu.Lock()
	m.pending = append(m.pending, &entry{binding: b, reg: reg})
	metrics.PendingBindings.Set(float64(len(m.pending)))
	m.mu.Unlock()

	metrics.RegistrationsTotal.WithLabelValues("success").Inc()
	m.logger.Info("Started name registration",
		zap.String("name", name),
		zap.String("nym_id", nymID),
		zap.String("register_txid", reg.RegisterTxID))

	return b, nil
}

// Pending returns the number of bindings still in flight.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// PendingStatus is a snapshot of one in-flight binding.
type PendingStatus struct {
	Name  string         `json:"name"`
	NymID string         `json:"nym_id"`
	Stage namecoin.Stage `json:"stage"`
	State binding.State  `json:"state"`
}

// PendingStatuses reports every in-flight binding with its last observed
// lifecycle state.
func (m *Manager) PendingStatuses() []PendingStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]PendingStatus, len(m.pending))
	for i, e := range m.pending {
		state := e.state
		if state == "" {
			state = binding.StateRegistering
		}
		out[i] = PendingStatus{
			Name:  e.binding.Name,
			NymID: e.binding.NymID,
			Stage: e.reg.Stage,
			State: state,
		}
	}
	return out
}

// Tick advances every in-flight binding as far as the chain allows. The scan
// phase is read-only; when at least one binding needs a spend the wallet is
// unlocked once for the whole batch. A cancelled unlock aborts the tick and
// every binding is retried on the next one. Failures on individual bindings
// are logged and do not stop the rest of the batch.
func (m *Manager) Tick(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pending) == 0 {
		return nil
	}

	var activatable, finished []*entry
	for _, e := range m.pending {
		e.state = binding.StateRegistering
		switch e.reg.Stage {
		case namecoin.StageActivated:
			done, err := m.registry.IsFinished(ctx, e.reg)
			if err != nil {
				m.logger.Warn("Failed to check activation depth",
					zap.String("name", e.binding.Name), zap.Error(err))
				continue
			}
			if done {
				e.state = binding.StateFinished
				finished = append(finished, e)
			}
		case namecoin.StageRegistered:
			can, err := m.registry.CanActivate(ctx, e.reg)
			if err != nil {
				m.logger.Warn("Failed to check registration depth",
					zap.String("name", e.binding.Name), zap.Error(err))
				continue
			}
			if can {
				e.state = binding.StateActivatable
				activatable = append(activatable, e)
			}
		}
	}

	if len(activatable) == 0 && len(finished) == 0 {
		return nil
	}

	res, err := m.unlocker.Unlock(ctx)
	if err != nil {
		return apperrors.GeneralError("names.Tick", err)
	}
	if res == unlock.ResultCancelled {
		m.logger.Info("Wallet unlock cancelled, deferring bindings to next tick",
			zap.Int("activatable", len(activatable)), zap.Int("finished", len(finished)))
		return apperrors.UnlockCancelledError("names.Tick")
	}
	defer m.unlocker.Lock(ctx)

	remove := make(map[*entry]bool)

	for _, e := range finished {
		if err := m.store.MarkActive(ctx, e.binding.Name); err != nil {
			m.logger.Error("Failed to mark binding active, retrying next tick",
				zap.String("name", e.binding.Name), zap.Error(err))
			continue
		}
		e.binding.Active = true
		e.state = binding.StateActive

		// The binding leaves the ledger once it is active regardless of
		// how the attestation update goes; the name itself is final.
		remove[e] = true

		ok, err := m.updateName(ctx, e.binding)
		switch {
		case err != nil:
			metrics.UpdatesTotal.WithLabelValues("failure").Inc()
			m.logger.Error("Attestation update failed",
				zap.String("name", e.binding.Name), zap.Error(err))
		case !ok:
			metrics.UpdatesTotal.WithLabelValues("skipped").Inc()
			m.logger.Warn("Attestation update not possible for this wallet",
				zap.String("name", e.binding.Name))
		default:
			metrics.UpdatesTotal.WithLabelValues("success").Inc()
			m.logger.Info("Binding active with attestation recorded",
				zap.String("name", e.binding.Name))
		}
	}

	for _, e := range activatable {
		if err := m.registry.Activate(ctx, e.reg); err != nil {
			metrics.ActivationsTotal.WithLabelValues("failure").Inc()
			m.logger.Error("Failed to activate name",
				zap.String("name", e.binding.Name), zap.Error(err))
			continue
		}
		metrics.ActivationsTotal.WithLabelValues("success").Inc()

		regData, err := e.reg.Encode()
		if err != nil {
			m.logger.Error("Failed to encode registration state",
				zap.String("name", e.binding.Name), zap.Error(err))
			continue
		}
		if err := m.store.UpdateRegData(ctx, e.binding.Name, regData); err != nil {
			m.logger.Error("Failed to persist registration state",
				zap.String("name", e.binding.Name), zap.Error(err))
			continue
		}
		e.binding.RegData = regData
		m.logger.Info("Activated name", zap.String("name", e.binding.Name),
			zap.String("activate_txid", e.reg.ActivateTxID))
	}

	if len(remove) > 0 {
		kept := m.pending[:0]
		for _, e := range m.pending {
			if !remove[e] {
				kept = append(kept, e)
			}
		}
		for i := len(kept); i < len(m.pending); i++ {
			m.pending[i] = nil
		}
		m.pending = kept
	}
	metrics.PendingBindings.Set(float64(len(m.pending)))

	return nil
}

// updateName signs the credential hash with the nym's source address and
// writes the attestation into the name value, transferring the name to that
// address. Returns false without error when this wallet cannot produce the
// attestation (foreign address, missing key, locked wallet).
func (m *Manager) updateName(ctx context.Context, b *binding.NameBinding) (bool, error) {
	addr, err := m.resolver.SourceAddress(ctx, b.NymID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve source address for nym %s: %w", b.NymID, err)
	}

	info, err := m.registry.ValidateAddress(ctx, addr)
	if err != nil {
		return false, fmt.Errorf("failed to validate address %s: %w", addr, err)
	}
	if !info.IsValid || !info.IsMine {
		m.logger.Warn("Source address is not spendable by this wallet",
			zap.String("name", b.Name), zap.String("address", addr),
			zap.Bool("is_valid", info.IsValid), zap.Bool("is_mine", info.IsMine))
		return false, nil
	}

	needs, err := m.registry.NeedsPassphrase(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check wallet lock state: %w", err)
	}
	if needs {
		m.logger.Warn("Wallet locked during attestation update", zap.String("name", b.Name))
		return false, nil
	}

	sig, err := m.registry.SignMessage(ctx, addr, b.CredentialHash)
	if err != nil {
		if errors.Is(err, namecoin.ErrNoPrivateKey) {
			m.logger.Warn("No private key for source address", zap.String("address", addr))
			return false, nil
		}
		return false, fmt.Errorf("failed to sign credential hash: %w", err)
	}

	value, err := json.Marshal(map[string]string{"nmcsig": sig})
	if err != nil {
		return false, err
	}

	txid, err := m.registry.UpdateName(ctx, b.Name, string(value), addr)
	if err != nil {
		if errors.Is(err, namecoin.ErrNoPrivateKey) {
			m.logger.Warn("Name not spendable by this wallet", zap.String("name", b.Name))
			return false, nil
		}
		return false, fmt.Errorf("failed to update name: %w", err)
	}

	if err := m.store.SetUpdateTxID(ctx, b.Name, txid); err != nil {
		m.logger.Error("Failed to persist update txid",
			zap.String("name", b.Name), zap.String("txid", txid), zap.Error(err))
	}
	b.UpdateTxID = txid

	return true, nil
}
