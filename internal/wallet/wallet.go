// Package wallet wraps the Ethereum RPC boundary for the agent's wallet
// tools: key generation, balance queries, and signed transfers. The client
// is stateless apart from the RPC endpoint; key material flows through
// call arguments only and is scrubbed before return.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
)

// transferGasLimit is the fixed gas cost of a plain value transfer.
const transferGasLimit = 21000

// Typed failures the dispatcher maps onto tool outcome reasons.
var (
	// ErrKeyGeneration indicates entropy or curve failure during keygen.
	ErrKeyGeneration = errors.New("key generation failed")

	// ErrInvalidAddress indicates a string that is not a hex address.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrRPCUnavailable indicates the RPC endpoint could not serve the call.
	ErrRPCUnavailable = errors.New("rpc unavailable")

	// ErrInsufficientFunds indicates the sender cannot cover value plus gas.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSigningFailed indicates the transaction could not be signed with
	// the provided key material.
	ErrSigningFailed = errors.New("signing failed")
)

// Keypair is a freshly generated account. PrivateKey holds the raw
// 32-byte secp256k1 scalar; callers own it and must call Zero when done.
type Keypair struct {
	Address    string
	PrivateKey []byte
}

// Zero scrubs the private key bytes in place.
func (k *Keypair) Zero() {
	for i := range k.PrivateKey {
		k.PrivateKey[i] = 0
	}
}

// Balance is the result of a balance query.
type Balance struct {
	Wei     *big.Int
	Ether   string
	ChainID *big.Int
}

// Client talks to an Ethereum-compatible JSON-RPC endpoint.
type Client struct {
	rpcURL  string
	chainID *big.Int // configured hint; fetched from the node when nil
	logger  *slog.Logger

	mu  sync.Mutex
	eth *ethclient.Client
}

// NewClient creates a wallet client. The RPC connection is dialed lazily
// on first use so key generation works without an endpoint configured.
func NewClient(rpcURL string, chainID int64, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		rpcURL: rpcURL,
		logger: logger.With("backend", "wallet"),
	}
	if chainID > 0 {
		c.chainID = big.NewInt(chainID)
	}
	return c
}

// Close releases the RPC connection if one was dialed.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
}

// Generate creates a new secp256k1 keypair. The private key is returned
// to the caller exactly once; the client keeps no copy.
func (c *Client) Generate() (*Keypair, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	defer zeroECDSA(key)

	kp := &Keypair{
		Address:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
		PrivateKey: crypto.FromECDSA(key),
	}

	c.logger.Info("wallet generated", "address", kp.Address)
	return kp, nil
}

// BalanceOf queries the current balance of an address.
func (c *Client) BalanceOf(ctx context.Context, address string) (*Balance, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, address)
	}

	eth, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}

	wei, err := eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: balance query: %v", ErrRPCUnavailable, err)
	}

	chainID, err := c.resolveChainID(ctx, eth)
	if err != nil {
		return nil, err
	}

	return &Balance{
		Wei:     wei,
		Ether:   WeiToEther(wei),
		ChainID: chainID,
	}, nil
}

// Send signs and submits a value transfer. privateKey is the sender's raw
// 32-byte key; Send scrubs its in-memory copies on every exit path but
// never the caller's slice.
func (c *Client) Send(ctx context.Context, from, to string, amountEther float64, privateKey []byte) (string, error) {
	if !common.IsHexAddress(from) {
		return "", fmt.Errorf("%w: from %s", ErrInvalidAddress, from)
	}
	if !common.IsHexAddress(to) {
		return "", fmt.Errorf("%w: to %s", ErrInvalidAddress, to)
	}
	amount := EtherToWei(amountEther)
	if amount.Sign() <= 0 {
		return "", fmt.Errorf("amount must be positive, got %v", amountEther)
	}

	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return "", fmt.Errorf("%w: parse key: %v", ErrSigningFailed, err)
	}
	defer zeroECDSA(key)

	fromAddr := common.HexToAddress(from)
	if crypto.PubkeyToAddress(key.PublicKey) != fromAddr {
		return "", fmt.Errorf("%w: key does not control sender address", ErrSigningFailed)
	}

	eth, err := c.conn(ctx)
	if err != nil {
		return "", err
	}

	balance, err := eth.BalanceAt(ctx, fromAddr, nil)
	if err != nil {
		return "", fmt.Errorf("%w: balance query: %v", ErrRPCUnavailable, err)
	}
	gasPrice, err := eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: gas price: %v", ErrRPCUnavailable, err)
	}

	cost := new(big.Int).Mul(gasPrice, big.NewInt(transferGasLimit))
	cost.Add(cost, amount)
	if balance.Cmp(cost) < 0 {
		return "", fmt.Errorf("%w: balance %s wei, need %s wei", ErrInsufficientFunds, balance, cost)
	}

	nonce, err := eth.PendingNonceAt(ctx, fromAddr)
	if err != nil {
		return "", fmt.Errorf("%w: nonce: %v", ErrRPCUnavailable, err)
	}
	chainID, err := c.resolveChainID(ctx, eth)
	if err != nil {
		return "", err
	}

	tx := types.NewTransaction(nonce, common.HexToAddress(to), amount, transferGasLimit, gasPrice, nil)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	if err := eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("%w: submit: %v", ErrRPCUnavailable, err)
	}

	hash := signed.Hash().Hex()
	c.logger.Info("transaction submitted",
		"from", from,
		"to", to,
		"amount_eth", amountEther,
		"tx_hash", hash,
	)
	return hash, nil
}

// conn dials the RPC endpoint on first use.
func (c *Client) conn(ctx context.Context) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.eth != nil {
		return c.eth, nil
	}
	if c.rpcURL == "" {
		return nil, fmt.Errorf("%w: no rpc endpoint configured", ErrRPCUnavailable)
	}

	eth, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrRPCUnavailable, c.rpcURL, err)
	}
	c.eth = eth
	return eth, nil
}

// resolveChainID returns the configured chain id, or asks the node once
// and caches the answer.
func (c *Client) resolveChainID(ctx context.Context, eth *ethclient.Client) (*big.Int, error) {
	c.mu.Lock()
	if c.chainID != nil {
		id := new(big.Int).Set(c.chainID)
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	id, err := eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: chain id: %v", ErrRPCUnavailable, err)
	}

	c.mu.Lock()
	c.chainID = new(big.Int).Set(id)
	c.mu.Unlock()
	return id, nil
}

// EtherToWei converts a decimal ether amount to wei.
func EtherToWei(eth float64) *big.Int {
	f := new(big.Float).Mul(big.NewFloat(eth), big.NewFloat(params.Ether))
	wei, _ := f.Int(nil)
	return wei
}

// WeiToEther renders a wei amount as a decimal ether string.
func WeiToEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	f := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether))
	return f.Text('f', 6)
}

// zeroECDSA scrubs the private scalar of a parsed key.
func zeroECDSA(key *ecdsa.PrivateKey) {
	if key == nil || key.D == nil {
		return
	}
	bits := key.D.Bits()
	for i := range bits {
		bits[i] = 0
	}
}
