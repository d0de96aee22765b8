// Package unlock gates spend-capable wallet operations behind a single
// interactive passphrase prompt. Callers batch one Unlock per unit of work so
// the user is never prompted more than once for a run of operations.
package unlock

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/openwallet/nmc-attestor/internal/metrics"
	"github.com/openwallet/nmc-attestor/pkg/namecoin"
)

// Result is the outcome of an unlock attempt.
type Result int

const (
	// ResultUnlocked means spend operations may proceed.
	ResultUnlocked Result = iota
	// ResultCancelled means the user declined to enter a passphrase; the
	// caller must abort the current operation without retrying.
	ResultCancelled
)

func (r Result) String() string {
	if r == ResultUnlocked {
		return "unlocked"
	}
	return "cancelled"
}

// Wallet is the subset of the registry client used for passphrase handling.
type Wallet interface {
	NeedsPassphrase(ctx context.Context) (bool, error)
	UnlockWallet(ctx context.Context, passphrase string) error
	LockWallet(ctx context.Context) error
}

// Prompter collects a passphrase from the user. ok is false when the user
// cancelled instead of submitting a secret.
type Prompter interface {
	Prompt(ctx context.Context, reason string) (secret string, ok bool, err error)
}

// Coordinator drives the unlock flow: skip the prompt when no passphrase is
// needed, otherwise loop on wrong passphrases until the user either enters
// the correct one or cancels.
type Coordinator struct {
	wallet   Wallet
	prompter Prompter
	logger   *zap.Logger
}

// NewCoordinator creates an unlock coordinator.
func NewCoordinator(wallet Wallet, prompter Prompter, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		wallet:   wallet,
		prompter: prompter,
		logger:   logger,
	}
}

const promptReason = "Your Namecoin wallet is locked. For the operations to proceed, " +
	"please enter the passphrase to temporarily unlock the wallet."

// Unlock ensures the wallet accepts spend operations. It returns
// ResultUnlocked or ResultCancelled; any transport failure is returned as an
// error and the caller aborts the current operation the same way it would on
// a cancel, per the log-and-continue failure policy.
func (c *Coordinator) Unlock(ctx context.Context) (Result, error) {
	needs, err := c.wallet.NeedsPassphrase(ctx)
	if err != nil {
		return ResultCancelled, err
	}
	if !needs {
		c.logger.Debug("Wallet unlock not necessary")
		return ResultUnlocked, nil
	}

	for {
		metrics.UnlockPrompts.Inc()
		secret, ok, err := c.prompter.Prompt(ctx, promptReason)
		if err != nil {
			return ResultCancelled, err
		}
		if !ok {
			c.logger.Info("Wallet unlock cancelled by user")
			return ResultCancelled, nil
		}

		err = c.wallet.UnlockWallet(ctx, secret)
		if err == nil {
			c.logger.Debug("Wallet unlocked")
			return ResultUnlocked, nil
		}
		if errors.Is(err, namecoin.ErrWrongPassphrase) {
			c.logger.Info("Wrong wallet passphrase, prompting again")
			continue
		}
		return ResultCancelled, err
	}
}

// Lock re-locks the wallet after a batch of spend operations. Failures are
// logged only; a wallet left temporarily unlocked re-locks itself when the
// walletpassphrase timeout expires.
func (c *Coordinator) Lock(ctx context.Context) {
	if err := c.wallet.LockWallet(ctx); err != nil {
		c.logger.Warn("Failed to re-lock wallet", zap.Error(err))
	}
}

// staticPrompter always submits the same secret, or always cancels when the
// secret is empty. Used when the service runs headless with a configured
// passphrase source.
type staticPrompter struct {
	secret string
}

// NewStaticPrompter returns a Prompter backed by a fixed secret. An empty
// secret yields a prompter that always cancels.
func NewStaticPrompter(secret string) Prompter {
	return &staticPrompter{secret: secret}
}

func (p *staticPrompter) Prompt(_ context.Context, _ string) (string, bool, error) {
	if p.secret == "" {
		return "", false, nil
	}
	return p.secret, true, nil
}
