// Package binding defines the name binding domain type: the unit of work that
// ties a credential fingerprint to a Namecoin name until the attestation is
// fully written on chain.
package binding

import (
	"fmt"
	"time"
)

// DefaultNamespace is the Namecoin namespace used for credential names.
const DefaultNamespace = "ot"

// State is the lifecycle position of a binding. Registering, Activatable and
// Finished are sampled from registry confirmations each tick; Active is the
// terminal persisted state.
type State string

const (
	StateRegistering State = "registering"
	StateActivatable State = "activatable"
	StateFinished    State = "finished"
	StateActive      State = "active"
)

// NameBinding is one row of the durable ledger. The same name may appear on
// multiple rows: registrations are deliberately not deduplicated.
type NameBinding struct {
	Name           string    `json:"name"`
	NymID          string    `json:"nym_id"`
	CredentialHash string    `json:"credential_hash"`
	Active         bool      `json:"active"`
	RegData        string    `json:"reg_data,omitempty"` // serialized registration progress, empty once active
	UpdateTxID     string    `json:"update_txid,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// New creates a binding in its initial persisted form.
func New(name, nymID, credentialHash, regData string) *NameBinding {
	return &NameBinding{
		Name:           name,
		NymID:          nymID,
		CredentialHash: credentialHash,
		Active:         false,
		RegData:        regData,
	}
}

// DeriveName returns the registry key for a credential hash. It is a pure
// function of namespace and hash, no randomness involved.
func DeriveName(namespace, credentialHash string) string {
	return fmt.Sprintf("%s/%s", namespace, credentialHash)
}
