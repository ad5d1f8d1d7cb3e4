// Package chain wraps the go-ethereum client with the connection,
// nonce, and confirmation bookkeeping every contract facade shares.
// Reads are free JSON-RPC calls; writes are signed, submitted, and
// awaited here. Submitted transactions are never cancelable: a caller
// abandoning its context abandons the local wait, not the transaction.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/descilabs/launchpad/internal/util"
)

// ErrNotConnected is returned by any call made before Connect succeeds.
var ErrNotConnected = errors.New("not connected to chain RPC")

// Config holds settings for the chain client
type Config struct {
	RPCURL        string
	ChainID       int64
	Confirmations int
	MaxGasPrice   *big.Int
	RetryConfig   *util.RetryConfig
}

// DefaultConfig returns client defaults for the Story testnet
func DefaultConfig() *Config {
	return &Config{
		RPCURL:        "https://testnet.storyrpc.io",
		ChainID:       1315,
		Confirmations: 1,
		MaxGasPrice:   big.NewInt(100e9), // 100 gwei
		RetryConfig:   util.DefaultRetryConfig(),
	}
}

// Client provides access to the launchpad chain
type Client struct {
	config     *Config
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int

	// Nonce management
	nonceMu      sync.Mutex
	pendingNonce uint64

	// Connection state
	connected bool
	mu        sync.RWMutex
}

// NewClient creates a chain client. privateKey may be nil for a
// read-only client (no signing, no writes).
func NewClient(config *Config, privateKey *ecdsa.PrivateKey) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	c := &Client{
		config:     config,
		privateKey: privateKey,
		chainID:    big.NewInt(config.ChainID),
	}

	if privateKey != nil {
		c.address = crypto.PubkeyToAddress(privateKey.PublicKey)
	}

	return c
}

// Connect dials the RPC endpoint, verifies the chain ID, and seeds the
// nonce for the signing account.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, err := util.RetryWithValue(ctx, c.config.RetryConfig, func() (*ethclient.Client, error) {
		return ethclient.DialContext(ctx, c.config.RPCURL)
	})
	if err != nil {
		return fmt.Errorf("failed to connect to RPC: %w", err)
	}
	c.client = client

	chainID, err := c.client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain ID: %w", err)
	}
	if chainID.Cmp(c.chainID) != 0 {
		return fmt.Errorf("chain ID mismatch: expected %d, got %d", c.chainID, chainID)
	}

	if c.privateKey != nil {
		nonce, err := c.client.PendingNonceAt(ctx, c.address)
		if err != nil {
			return fmt.Errorf("failed to get nonce: %w", err)
		}
		c.pendingNonce = nonce
	}

	c.connected = true
	return nil
}

// Close closes the RPC connections
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
	c.connected = false
}

// IsConnected reports whether Connect has succeeded
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Client returns the underlying ethclient
func (c *Client) Client() *ethclient.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// Address returns the signing account address
func (c *Client) Address() common.Address {
	return c.address
}

// ChainID returns the configured chain ID
func (c *Client) ChainID() *big.Int {
	return c.chainID
}

// NativeBalance returns the native coin balance for an address
func (c *Client) NativeBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	client := c.Client()
	if client == nil {
		return nil, ErrNotConnected
	}

	balance, err := util.RetryWithValue(ctx, c.config.RetryConfig, func() (*big.Int, error) {
		return client.BalanceAt(ctx, address, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// TransactOpts creates signed transaction options with the next nonce
func (c *Client) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if c.privateKey == nil {
		return nil, fmt.Errorf("no signing key configured")
	}

	client := c.Client()
	if client == nil {
		return nil, ErrNotConnected
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	if c.config.MaxGasPrice != nil && gasPrice.Cmp(c.config.MaxGasPrice) > 0 {
		gasPrice = c.config.MaxGasPrice
	}

	auth, err := bind.NewKeyedTransactorWithChainID(c.privateKey, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	auth.Context = ctx
	auth.GasPrice = gasPrice

	c.nonceMu.Lock()
	auth.Nonce = big.NewInt(int64(c.pendingNonce))
	c.pendingNonce++
	c.nonceMu.Unlock()

	return auth, nil
}

// WaitForTransaction waits for a transaction to be mined and reach the
// configured confirmation depth.
func (c *Client) WaitForTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	client := c.Client()
	if client == nil {
		return nil, ErrNotConnected
	}

	receipt, err := bind.WaitMined(ctx, client, tx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for transaction: %w", err)
	}

	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, fmt.Errorf("transaction reverted: %s", tx.Hash().Hex())
	}

	if c.config.Confirmations > 1 {
		targetBlock := receipt.BlockNumber.Uint64() + uint64(c.config.Confirmations) - 1

		for {
			select {
			case <-ctx.Done():
				return receipt, ctx.Err()
			case <-time.After(2 * time.Second):
				currentBlock, err := client.BlockNumber(ctx)
				if err != nil {
					continue
				}
				if currentBlock >= targetBlock {
					return receipt, nil
				}
			}
		}
	}

	return receipt, nil
}

// SyncNonce re-reads the pending nonce from the network. Useful after
// a transaction is dropped from the mempool.
func (c *Client) SyncNonce(ctx context.Context) error {
	client := c.Client()
	if client == nil {
		return ErrNotConnected
	}

	nonce, err := client.PendingNonceAt(ctx, c.address)
	if err != nil {
		return fmt.Errorf("failed to get nonce: %w", err)
	}

	c.nonceMu.Lock()
	c.pendingNonce = nonce
	c.nonceMu.Unlock()

	return nil
}
