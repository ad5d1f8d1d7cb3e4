// Package token is the typed read/write facade over ERC-20 project
// tokens (BIO and per-project bio tokens). All amounts cross this
// boundary as raw wei *big.Int; display formatting is the caller's
// concern.
package token

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/descilabs/launchpad/internal/chain"
)

// ERC20 provides access to one ERC-20 token contract
type ERC20 struct {
	client       *chain.Client
	contract     *bind.BoundContract
	contractAddr common.Address
	mockMode     bool

	// Mock state
	mockSymbol     string
	mockBalances   map[common.Address]*big.Int
	mockAllowances map[common.Address]map[common.Address]*big.Int
	mockErrors     map[string]error
	mockCalls      []string
	mockOwner      common.Address
	mockMu         sync.RWMutex
}

// NewERC20 creates a token facade bound to a deployed contract
func NewERC20(client *chain.Client, contractAddr common.Address) (*ERC20, error) {
	if client == nil || !client.IsConnected() {
		return nil, chain.ErrNotConnected
	}

	parsedABI, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	ec := client.Client()
	return &ERC20{
		client:       client,
		contractAddr: contractAddr,
		contract:     bind.NewBoundContract(contractAddr, parsedABI, ec, ec, ec),
	}, nil
}

// NewMockERC20 creates an in-memory token for testing
func NewMockERC20(symbol string) *ERC20 {
	return &ERC20{
		mockMode:       true,
		mockSymbol:     symbol,
		mockBalances:   make(map[common.Address]*big.Int),
		mockAllowances: make(map[common.Address]map[common.Address]*big.Int),
		mockErrors:     make(map[string]error),
	}
}

// IsMockMode returns whether running in mock mode
func (e *ERC20) IsMockMode() bool {
	return e.mockMode
}

// Address returns the token contract address
func (e *ERC20) Address() common.Address {
	return e.contractAddr
}

// BalanceOf returns the token balance for an account
func (e *ERC20) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	if e.mockMode {
		e.mockMu.RLock()
		defer e.mockMu.RUnlock()
		if err := e.mockErrors["balanceOf"]; err != nil {
			return nil, err
		}
		balance, exists := e.mockBalances[account]
		if !exists {
			return big.NewInt(0), nil
		}
		return new(big.Int).Set(balance), nil
	}

	var result []interface{}
	err := e.contract.Call(&bind.CallOpts{Context: ctx}, &result, "balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	if len(result) == 0 {
		return big.NewInt(0), nil
	}
	if balance, ok := result[0].(*big.Int); ok {
		return balance, nil
	}
	return big.NewInt(0), nil
}

// Symbol returns the token's display symbol
func (e *ERC20) Symbol(ctx context.Context) (string, error) {
	if e.mockMode {
		e.mockMu.RLock()
		defer e.mockMu.RUnlock()
		return e.mockSymbol, nil
	}

	var result []interface{}
	err := e.contract.Call(&bind.CallOpts{Context: ctx}, &result, "symbol")
	if err != nil {
		return "", fmt.Errorf("failed to get symbol: %w", err)
	}

	if len(result) == 0 {
		return "", nil
	}
	if symbol, ok := result[0].(string); ok {
		return symbol, nil
	}
	return "", nil
}

// Allowance returns the spend allowance granted to spender
func (e *ERC20) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	if e.mockMode {
		e.mockMu.RLock()
		defer e.mockMu.RUnlock()
		if ownerAllowances, exists := e.mockAllowances[owner]; exists {
			if allowance, ok := ownerAllowances[spender]; ok {
				return new(big.Int).Set(allowance), nil
			}
		}
		return big.NewInt(0), nil
	}

	var result []interface{}
	err := e.contract.Call(&bind.CallOpts{Context: ctx}, &result, "allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("failed to get allowance: %w", err)
	}

	if len(result) == 0 {
		return big.NewInt(0), nil
	}
	if allowance, ok := result[0].(*big.Int); ok {
		return allowance, nil
	}
	return big.NewInt(0), nil
}

// Approve grants spender an allowance of amount
func (e *ERC20) Approve(ctx context.Context, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	if e.mockMode {
		return e.mockApprove(spender, amount)
	}

	auth, err := e.client.TransactOpts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction options: %w", err)
	}

	tx, err := e.contract.Transact(auth, "approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to approve: %w", err)
	}
	return tx, nil
}

func (e *ERC20) mockApprove(spender common.Address, amount *big.Int) (*types.Transaction, error) {
	e.mockMu.Lock()
	defer e.mockMu.Unlock()

	e.mockCalls = append(e.mockCalls, "approve")
	if err := e.mockErrors["approve"]; err != nil {
		return nil, err
	}

	owner := e.mockOwner
	if _, exists := e.mockAllowances[owner]; !exists {
		e.mockAllowances[owner] = make(map[common.Address]*big.Int)
	}
	e.mockAllowances[owner][spender] = new(big.Int).Set(amount)
	return nil, nil
}

// ApproveAndWait approves and waits for on-chain confirmation
func (e *ERC20) ApproveAndWait(ctx context.Context, spender common.Address, amount *big.Int) (*types.Receipt, error) {
	tx, err := e.Approve(ctx, spender, amount)
	if err != nil {
		return nil, err
	}

	if e.mockMode || tx == nil {
		return nil, nil
	}
	return e.client.WaitForTransaction(ctx, tx)
}

// ─── Mock helpers (tests only) ───────────────────────────────────────

// SetMockBalance sets an account balance in mock mode
func (e *ERC20) SetMockBalance(account common.Address, amount *big.Int) {
	if !e.mockMode {
		return
	}
	e.mockMu.Lock()
	defer e.mockMu.Unlock()
	e.mockBalances[account] = new(big.Int).Set(amount)
}

// SetMockOwner sets the account mock writes act as
func (e *ERC20) SetMockOwner(owner common.Address) {
	if !e.mockMode {
		return
	}
	e.mockMu.Lock()
	defer e.mockMu.Unlock()
	e.mockOwner = owner
}

// SetMockError makes the named function fail in mock mode
func (e *ERC20) SetMockError(function string, err error) {
	if !e.mockMode {
		return
	}
	e.mockMu.Lock()
	defer e.mockMu.Unlock()
	e.mockErrors[function] = err
}

// MockCalls returns the mock write calls recorded so far
func (e *ERC20) MockCalls() []string {
	e.mockMu.RLock()
	defer e.mockMu.RUnlock()
	return append([]string(nil), e.mockCalls...)
}
