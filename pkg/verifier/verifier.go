// Package verifier checks credential attestations recorded in the name
// registry. Verification is stateless: everything needed lives in the
// registry entry and the caller-supplied claim.
package verifier

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/openwallet/nmc-attestor/internal/metrics"
	"github.com/openwallet/nmc-attestor/pkg/binding"
	"github.com/openwallet/nmc-attestor/pkg/namecoin"
)

// Registry is the read-only slice of the Namecoin client verification needs.
type Registry interface {
	QueryName(ctx context.Context, namespace, key string) (*namecoin.NameInfo, error)
	VerifyMessage(ctx context.Context, address, signature, message string) (bool, error)
}

// Reason explains why a verification failed, or that it did not.
type Reason int

const (
	ReasonValid Reason = iota
	// ReasonNotFound: no current registry entry for the credential name.
	ReasonNotFound
	// ReasonUnparseable: the entry value is not a JSON object.
	ReasonUnparseable
	// ReasonNoSignature: the entry carries no attestation signature.
	ReasonNoSignature
	// ReasonSourceMismatch: the entry is held by a different address than
	// the claimed source.
	ReasonSourceMismatch
	// ReasonBadSignature: the signature does not verify against the
	// credential hash and claimed source.
	ReasonBadSignature
)

func (r Reason) String() string {
	switch r {
	case ReasonValid:
		return "valid"
	case ReasonNotFound:
		return "not_found"
	case ReasonUnparseable:
		return "unparseable"
	case ReasonNoSignature:
		return "no_signature"
	case ReasonSourceMismatch:
		return "source_mismatch"
	case ReasonBadSignature:
		return "bad_signature"
	default:
		return "unknown"
	}
}

// Verifier validates credential attestations against the registry.
type Verifier struct {
	registry  Registry
	namespace string
	logger    *zap.Logger
}

// New creates a verifier reading from the given registry.
func New(registry Registry, namespace string, logger *zap.Logger) *Verifier {
	if namespace == "" {
		namespace = binding.DefaultNamespace
	}
	return &Verifier{
		registry:  registry,
		namespace: namespace,
		logger:    logger,
	}
}

// Verify reports whether the registry holds a valid attestation binding the
// credential hash to the claimed source address. Every failure mode yields
// false; a transport failure talking to the registry yields an error.
func (v *Verifier) Verify(ctx context.Context, credentialHash, claimedSource string) (bool, error) {
	reason, err := v.VerifyWithReason(ctx, credentialHash, claimedSource)
	if err != nil {
		return false, err
	}
	return reason == ReasonValid, nil
}

// VerifyWithReason is Verify with the failure cause surfaced.
func (v *Verifier) VerifyWithReason(ctx context.Context, credentialHash, claimedSource string) (Reason, error) {
	reason, err := v.check(ctx, credentialHash, claimedSource)
	if err != nil {
		return reason, err
	}

	metrics.VerificationsTotal.WithLabelValues(reason.String()).Inc()
	if reason != ReasonValid {
		v.logger.Info("Credential verification failed",
			zap.String("credential_hash", credentialHash),
			zap.String("claimed_source", claimedSource),
			zap.String("reason", reason.String()))
	}
	return reason, nil
}

func (v *Verifier) check(ctx context.Context, credentialHash, claimedSource string) (Reason, error) {
	info, err := v.registry.QueryName(ctx, v.namespace, credentialHash)
	if err != nil {
		if errors.Is(err, namecoin.ErrNameNotFound) {
			return ReasonNotFound, nil
		}
		return ReasonNotFound, err
	}

	var value map[string]any
	if err := json.Unmarshal([]byte(info.Value), &value); err != nil {
		return ReasonUnparseable, nil
	}

	sig, ok := value["nmcsig"].(string)
	if !ok || sig == "" {
		return ReasonNoSignature, nil
	}

	if info.Address != claimedSource {
		return ReasonSourceMismatch, nil
	}

	good, err := v.registry.VerifyMessage(ctx, claimedSource, sig, credentialHash)
	if err != nil {
		return ReasonBadSignature, err
	}
	if !good {
		return ReasonBadSignature, nil
	}

	return ReasonValid, nil
}
