package namecoin

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for expected node-side outcomes. Callers branch on these
// instead of inspecting raw RPC codes.
var (
	ErrNameNotFound    = errors.New("name not found")
	ErrNoPrivateKey    = errors.New("private key not available")
	ErrWalletLocked    = errors.New("wallet is locked")
	ErrWrongPassphrase = errors.New("wrong wallet passphrase")
)

// Bitcoin-style RPC error codes returned by Namecoin Core.
const (
	codeWalletError         = -4
	codeWalletUnlockNeeded  = -13
	codePassphraseIncorrect = -14
)

// RPCError is a JSON-RPC error object from the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("namecoin rpc error %d: %s", e.Code, e.Message)
}

// mapRPCError converts well-known node errors into sentinels so callers do
// not have to match on codes or message text themselves.
func mapRPCError(e *RPCError) error {
	msg := strings.ToLower(e.Message)
	switch e.Code {
	case codePassphraseIncorrect:
		return fmt.Errorf("%w: %s", ErrWrongPassphrase, e.Message)
	case codeWalletUnlockNeeded:
		return fmt.Errorf("%w: %s", ErrWalletLocked, e.Message)
	case codeWalletError:
		if strings.Contains(msg, "private key") {
			return fmt.Errorf("%w: %s", ErrNoPrivateKey, e.Message)
		}
		if strings.Contains(msg, "name") && (strings.Contains(msg, "not found") || strings.Contains(msg, "never existed")) {
			return fmt.Errorf("%w: %s", ErrNameNotFound, e.Message)
		}
	}
	return e
}
