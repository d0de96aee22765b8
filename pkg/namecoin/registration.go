package namecoin

import (
	"encoding/json"
	"fmt"
)

// Stage is how far an in-flight registration has progressed on chain.
type Stage string

const (
	// StageRegistered means name_new has been sent and the pre-claim is
	// maturing towards the confirmation depth required for name_firstupdate.
	StageRegistered Stage = "registered"
	// StageActivated means name_firstupdate has been sent and is awaiting
	// confirmation.
	StageActivated Stage = "activated"
)

// Registration is the wallet-side snapshot of an in-flight name registration.
// It round-trips through a stable JSON text encoding so it can be persisted
// and reloaded across process restarts. The encoding is only meaningful
// within one registration lifecycle; it is not a cross-version format.
type Registration struct {
	Name         string `json:"name"`
	Rand         string `json:"rand"`
	RegisterTxID string `json:"register_txid"`
	ActivateTxID string `json:"activate_txid,omitempty"`
	Stage        Stage  `json:"stage"`
}

// Encode serializes the registration for persistence.
func (r *Registration) Encode() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to encode registration: %w", err)
	}
	return string(data), nil
}

// DecodeRegistration restores a registration persisted by Encode.
func DecodeRegistration(data string) (*Registration, error) {
	var reg Registration
	if err := json.Unmarshal([]byte(data), &reg); err != nil {
		return nil, fmt.Errorf("failed to decode registration: %w", err)
	}
	if reg.Name == "" || reg.RegisterTxID == "" {
		return nil, fmt.Errorf("decoded registration is missing name or register txid")
	}
	if reg.Stage != StageRegistered && reg.Stage != StageActivated {
		return nil, fmt.Errorf("decoded registration has unknown stage %q", reg.Stage)
	}
	return &reg, nil
}
