// Package namecoin is a thin JSON-RPC client for a Namecoin Core node. It
// covers the name operations driving credential attestation (name_new,
// name_firstupdate, name_update, name_show) plus the wallet primitives the
// attestor needs: message signing and verification, address ownership checks
// and passphrase handling. All signing happens node-side; this package never
// touches key material.
package namecoin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openwallet/nmc-attestor/pkg/config"
)

// firstUpdateDepthMin is the protocol-required maturity of a name_new output
// before name_firstupdate is accepted.
const firstUpdateDepthMin = 12

// Client talks to a single Namecoin Core node over HTTP JSON-RPC.
type Client struct {
	cfg        *config.NamecoinConfig
	httpClient *http.Client
	logger     *zap.Logger
	nextID     atomic.Uint64
}

// NewClient creates a Namecoin RPC client from configuration.
func NewClient(cfg *config.NamecoinConfig, logger *zap.Logger) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("namecoin rpc url is required")
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	ID     uint64          `json:"id"`
}

// call performs one JSON-RPC round trip, decoding the result into out when
// out is non-nil.
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "1.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RPCURL, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.RPCUser != "" {
		httpReq.SetBasicAuth(c.cfg.RPCUser, c.cfg.RPCPassword)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer httpResp.Body.Close()

	var resp rpcResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if resp.Error != nil {
		return mapRPCError(resp.Error)
	}
	if out != nil {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

// QueryName looks up a name in the given namespace via name_show.
// Returns ErrNameNotFound if the name was never registered or has expired
// out of the index.
func (c *Client) QueryName(ctx context.Context, namespace, key string) (*NameInfo, error) {
	name := fmt.Sprintf("%s/%s", namespace, key)
	var info NameInfo
	if err := c.call(ctx, "name_show", []any{name}, &info); err != nil {
		return nil, err
	}
	if info.Expired {
		return nil, fmt.Errorf("%w: %s has expired", ErrNameNotFound, name)
	}
	return &info, nil
}

// RegisterName issues a name_new pre-claim for the name and returns the
// in-flight registration snapshot. The node returns the transaction id and
// the salt needed later for name_firstupdate.
func (c *Client) RegisterName(ctx context.Context, name string) (*Registration, error) {
	var result []string
	if err := c.call(ctx, "name_new", []any{name}, &result); err != nil {
		return nil, err
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("name_new returned %d values, want [txid, rand]", len(result))
	}

	c.logger.Debug("Issued name_new",
		zap.String("name", name),
		zap.String("txid", result[0]))

	return &Registration{
		Name:         name,
		RegisterTxID: result[0],
		Rand:         result[1],
		Stage:        StageRegistered,
	}, nil
}

// CanActivate reports whether the registration's name_new has matured enough
// for name_firstupdate.
func (c *Client) CanActivate(ctx context.Context, reg *Registration) (bool, error) {
	if reg.Stage != StageRegistered {
		return false, nil
	}
	conf, err := c.confirmations(ctx, reg.RegisterTxID)
	if err != nil {
		return false, err
	}
	return conf >= int64(c.firstUpdateDepth()), nil
}

// IsFinished reports whether the registration's name_firstupdate has
// confirmed, i.e. the name now exists on chain.
func (c *Client) IsFinished(ctx context.Context, reg *Registration) (bool, error) {
	if reg.Stage != StageActivated {
		return false, nil
	}
	conf, err := c.confirmations(ctx, reg.ActivateTxID)
	if err != nil {
		return false, err
	}
	return conf >= 1, nil
}

// Activate issues the name_firstupdate for a matured registration and
// advances its stage. The value is left empty on purpose: the attestation is
// written by the follow-up name_update, which is needed anyway to send the
// name to the nym's source address.
func (c *Client) Activate(ctx context.Context, reg *Registration) error {
	if reg.Stage != StageRegistered {
		return fmt.Errorf("registration for %s is not awaiting activation (stage %s)", reg.Name, reg.Stage)
	}
	var txid string
	if err := c.call(ctx, "name_firstupdate", []any{reg.Name, reg.Rand, reg.RegisterTxID, ""}, &txid); err != nil {
		return err
	}

	reg.ActivateTxID = txid
	reg.Stage = StageActivated

	c.logger.Debug("Issued name_firstupdate",
		zap.String("name", reg.Name),
		zap.String("txid", txid))
	return nil
}

// UpdateName writes a value to an owned name and sends it to destAddr in the
// same name_update transaction. Returns the transaction id.
func (c *Client) UpdateName(ctx context.Context, name, value, destAddr string) (string, error) {
	var txid string
	options := map[string]any{"destAddress": destAddr}
	if err := c.call(ctx, "name_update", []any{name, value, options}, &txid); err != nil {
		return "", err
	}
	return txid, nil
}

// ValidateAddress checks syntax and wallet ownership of an address.
func (c *Client) ValidateAddress(ctx context.Context, address string) (*AddressInfo, error) {
	var info AddressInfo
	if err := c.call(ctx, "validateaddress", []any{address}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// SignMessage signs a message with the private key of a wallet address.
func (c *Client) SignMessage(ctx context.Context, address, message string) (string, error) {
	var sig string
	if err := c.call(ctx, "signmessage", []any{address, message}, &sig); err != nil {
		return "", err
	}
	return sig, nil
}

// VerifyMessage verifies a signed message against an address. This is a pure
// node-side check and needs no wallet access.
func (c *Client) VerifyMessage(ctx context.Context, address, signature, message string) (bool, error) {
	var ok bool
	if err := c.call(ctx, "verifymessage", []any{address, signature, message}, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// NeedsPassphrase reports whether spend operations currently require a
// walletpassphrase unlock. Unencrypted wallets never do.
func (c *Client) NeedsPassphrase(ctx context.Context) (bool, error) {
	var info walletInfo
	if err := c.call(ctx, "getwalletinfo", nil, &info); err != nil {
		return false, err
	}
	if info.UnlockedUntil == nil {
		return false, nil
	}
	return *info.UnlockedUntil == 0, nil
}

// UnlockWallet temporarily unlocks the wallet for spend operations.
// Returns ErrWrongPassphrase when the passphrase does not match.
func (c *Client) UnlockWallet(ctx context.Context, passphrase string) error {
	seconds := int64(c.unlockDuration() / time.Second)
	return c.call(ctx, "walletpassphrase", []any{passphrase, seconds}, nil)
}

// LockWallet drops the temporary unlock immediately.
func (c *Client) LockWallet(ctx context.Context) error {
	return c.call(ctx, "walletlock", nil, nil)
}

// GetBalance returns the wallet's confirmed balance.
func (c *Client) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	var raw json.Number
	if err := c.call(ctx, "getbalance", nil, &raw); err != nil {
		return decimal.Zero, err
	}
	bal, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse balance %q: %w", raw.String(), err)
	}
	return bal, nil
}

func (c *Client) firstUpdateDepth() int {
	if c.cfg.FirstUpdateDepth >= firstUpdateDepthMin {
		return c.cfg.FirstUpdateDepth
	}
	return firstUpdateDepthMin
}

func (c *Client) unlockDuration() time.Duration {
	if c.cfg.UnlockDuration > 0 {
		return c.cfg.UnlockDuration
	}
	return 2 * time.Minute
}

func (c *Client) confirmations(ctx context.Context, txid string) (int64, error) {
	var tx txInfo
	if err := c.call(ctx, "gettransaction", []any{txid}, &tx); err != nil {
		return 0, err
	}
	return tx.Confirmations, nil
}
