package tools

import (
	"context"
	"errors"

	"github.com/agentfriend/agentfriend/internal/wallet"
)

func (r *Registry) registerWalletTools() {
	r.Register(&Tool{
		Name: "wallet_generate",
		Description: "Generate a new Ethereum wallet. Returns the address. " +
			"The private key is held in the session keyring for signing and is never shown.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: r.handleWalletGenerate,
	})

	r.Register(&Tool{
		Name:        "wallet_balance",
		Description: "Check the ETH balance of an Ethereum address.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"address": map[string]any{
					"type":        "string",
					"description": "Ethereum address (0x-prefixed hex)",
				},
			},
			"required": []string{"address"},
		},
		Handler: r.handleWalletBalance,
	})

	r.Register(&Tool{
		Name: "wallet_send",
		Description: "Send ETH from a wallet in the session keyring to another address. " +
			"The sender must have been generated in this session.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"from": map[string]any{
					"type":        "string",
					"description": "Sender address (must be in the session keyring)",
				},
				"to": map[string]any{
					"type":        "string",
					"description": "Recipient address (0x-prefixed hex)",
				},
				"amount": map[string]any{
					"type":        "number",
					"description": "Amount to send, in ETH",
				},
			},
			"required": []string{"from", "to", "amount"},
		},
		Handler: r.handleWalletSend,
	})
}

func (r *Registry) handleWalletGenerate(_ context.Context, _ map[string]any) Outcome {
	if r.wallet == nil {
		return Failure(ReasonKeyGenerationFailed, "wallet backend not configured")
	}

	kp, err := r.wallet.Generate()
	if err != nil {
		return Failure(ReasonKeyGenerationFailed, "could not generate wallet: %v", err)
	}
	// The key lives in the keyring only; the outcome (which is persisted
	// as conversation history) carries the address and a note.
	if r.keys != nil {
		r.keys.Put(kp.Address, kp.PrivateKey)
	}
	kp.Zero()

	return Success(map[string]any{
		"address": kp.Address,
		"note":    "A new private key was generated and stored in the session keyring. It is discarded when the process exits.",
	})
}

func (r *Registry) handleWalletBalance(ctx context.Context, args map[string]any) Outcome {
	if r.wallet == nil {
		return Failure(ReasonRPCUnavailable, "wallet backend not configured")
	}

	address := stringArg(args, "address")
	balance, err := r.wallet.BalanceOf(ctx, address)
	if err != nil {
		return walletFailure(err)
	}

	return Success(map[string]any{
		"address":  address,
		"balance":  balance.Ether,
		"unit":     "ETH",
		"chain_id": balance.ChainID.String(),
	})
}

func (r *Registry) handleWalletSend(ctx context.Context, args map[string]any) Outcome {
	if r.wallet == nil {
		return Failure(ReasonRPCUnavailable, "wallet backend not configured")
	}

	from := stringArg(args, "from")
	to := stringArg(args, "to")
	amount, ok := numberArg(args, "amount")
	if !ok || amount <= 0 {
		return Failure(ReasonInvalidArguments, "amount must be a positive number of ETH")
	}

	if r.keys == nil {
		return Failure(ReasonSigningFailed, "no keyring configured")
	}
	key, found := r.keys.Get(from)
	if !found {
		return Failure(ReasonSigningFailed, "no key material for sender %s in this session", from)
	}
	defer func() {
		for i := range key {
			key[i] = 0
		}
	}()

	txHash, err := r.wallet.Send(ctx, from, to, amount, key)
	if err != nil {
		return walletFailure(err)
	}

	return Success(map[string]any{
		"tx_hash": txHash,
	})
}

// walletFailure maps wallet backend errors onto outcome reasons.
func walletFailure(err error) Outcome {
	switch {
	case errors.Is(err, wallet.ErrInvalidAddress):
		return Failure(ReasonInvalidAddress, "%v", err)
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return Failure(ReasonInsufficientFunds, "%v", err)
	case errors.Is(err, wallet.ErrSigningFailed):
		return Failure(ReasonSigningFailed, "%v", err)
	case errors.Is(err, wallet.ErrKeyGeneration):
		return Failure(ReasonKeyGenerationFailed, "%v", err)
	default:
		return Failure(ReasonRPCUnavailable, "%v", err)
	}
}
