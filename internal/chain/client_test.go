package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ChainID != 1315 {
		t.Errorf("Expected Story testnet chain ID 1315, got %d", cfg.ChainID)
	}
	if cfg.RPCURL == "" {
		t.Error("Default config should carry an RPC URL")
	}
	if cfg.MaxGasPrice == nil || cfg.MaxGasPrice.Cmp(big.NewInt(100e9)) != 0 {
		t.Errorf("Expected 100 gwei gas cap, got %v", cfg.MaxGasPrice)
	}
}

func TestNewClientDerivesAddress(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	c := NewClient(DefaultConfig(), key)
	want := crypto.PubkeyToAddress(key.PublicKey)
	if c.Address() != want {
		t.Errorf("Address = %s, want %s", c.Address().Hex(), want.Hex())
	}
	if c.ChainID().Int64() != 1315 {
		t.Errorf("ChainID = %d, want 1315", c.ChainID().Int64())
	}
}

func TestReadOnlyClientHasNoAddress(t *testing.T) {
	c := NewClient(nil, nil)
	if c.Address() != (common.Address{}) {
		t.Error("Read-only client should have the zero address")
	}
	if c.IsConnected() {
		t.Error("New client should not report connected")
	}
}

func TestCallsBeforeConnect(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	c := NewClient(DefaultConfig(), key)
	ctx := context.Background()

	if _, err := c.NativeBalance(ctx, c.Address()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("NativeBalance before connect: expected ErrNotConnected, got %v", err)
	}
	if _, err := c.TransactOpts(ctx); !errors.Is(err, ErrNotConnected) {
		t.Errorf("TransactOpts before connect: expected ErrNotConnected, got %v", err)
	}
	if err := c.SyncNonce(ctx); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SyncNonce before connect: expected ErrNotConnected, got %v", err)
	}
}

func TestTransactOptsRequiresKey(t *testing.T) {
	c := NewClient(DefaultConfig(), nil)
	if _, err := c.TransactOpts(context.Background()); err == nil {
		t.Error("Expected error for read-only client")
	} else if errors.Is(err, ErrNotConnected) {
		t.Error("Missing key should be reported before connection state")
	}
}
