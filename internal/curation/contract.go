package curation

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

// LaunchParams are the constructor arguments passed to launchProject
type LaunchParams struct {
	Admin       common.Address
	RewardToken common.Address
}

// Contract wraps one project's deployed curation contract
type Contract struct {
	client       *chain.Client
	contract     *bind.BoundContract
	contractAddr common.Address
	mockMode     bool

	// Mock state
	mockDeposits map[common.Address]*big.Int
	mockLimit    *big.Int
	mockActive   bool
	mockLaunched bool
	mockStaking  common.Address
	mockBioToken common.Address
	mockErrors   map[string]error
	mockCalls    []string
	mockAccount  common.Address
	mockMu       sync.RWMutex
}

// NewContract creates a curation facade bound to a deployed contract
func NewContract(client *chain.Client, contractAddr common.Address) (*Contract, error) {
	if client == nil || !client.IsConnected() {
		return nil, chain.ErrNotConnected
	}

	parsedABI, err := abi.JSON(strings.NewReader(CurateABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse curate ABI: %w", err)
	}

	ec := client.Client()
	return &Contract{
		client:       client,
		contractAddr: contractAddr,
		contract:     bind.NewBoundContract(contractAddr, parsedABI, ec, ec, ec),
	}, nil
}

// NewMockContract creates an in-memory curation contract for testing
func NewMockContract() *Contract {
	return &Contract{
		mockMode:     true,
		mockDeposits: make(map[common.Address]*big.Int),
		mockLimit:    big.NewInt(0),
		mockActive:   true,
		mockErrors:   make(map[string]error),
	}
}

// Address returns the curation contract address
func (c *Contract) Address() common.Address {
	return c.contractAddr
}

// IsMockMode returns whether running in mock mode
func (c *Contract) IsMockMode() bool {
	return c.mockMode
}

// TotalDeposited returns the total BIO committed to the round
func (c *Contract) TotalDeposited(ctx context.Context) (*big.Int, error) {
	if c.mockMode {
		c.mockMu.RLock()
		defer c.mockMu.RUnlock()
		if err := c.mockErrors["totalDeposited"]; err != nil {
			return nil, err
		}
		total := big.NewInt(0)
		for _, amount := range c.mockDeposits {
			total.Add(total, amount)
		}
		return total, nil
	}
	return c.callUint(ctx, "totalDeposited")
}

// DepositOf returns the BIO the account has committed
func (c *Contract) DepositOf(ctx context.Context, account common.Address) (*big.Int, error) {
	if c.mockMode {
		c.mockMu.RLock()
		defer c.mockMu.RUnlock()
		if err := c.mockErrors["depositOf"]; err != nil {
			return nil, err
		}
		if amount, ok := c.mockDeposits[account]; ok {
			return new(big.Int).Set(amount), nil
		}
		return big.NewInt(0), nil
	}
	return c.callUint(ctx, "depositOf", account)
}

// CurationLimit returns the round's commitment cap
func (c *Contract) CurationLimit(ctx context.Context) (*big.Int, error) {
	if c.mockMode {
		c.mockMu.RLock()
		defer c.mockMu.RUnlock()
		return new(big.Int).Set(c.mockLimit), nil
	}
	return c.callUint(ctx, "curationLimit")
}

// IsActive reports whether the round is open for commitments
func (c *Contract) IsActive(ctx context.Context) (bool, error) {
	if c.mockMode {
		c.mockMu.RLock()
		defer c.mockMu.RUnlock()
		return c.mockActive, nil
	}

	var result []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &result, "isActive")
	if err != nil {
		return false, fmt.Errorf("failed to call isActive: %w", err)
	}
	if len(result) == 0 {
		return false, nil
	}
	if active, ok := result[0].(bool); ok {
		return active, nil
	}
	return false, nil
}

// LaunchData reads the contract resolution recorded at launch. The
// zero staking address means the project has not launched.
func (c *Contract) LaunchData(ctx context.Context) (common.Address, common.Address, bool, error) {
	if c.mockMode {
		c.mockMu.RLock()
		defer c.mockMu.RUnlock()
		return c.mockStaking, c.mockBioToken, c.mockLaunched, nil
	}

	staking, err := c.callAddress(ctx, "stakingContract")
	if err != nil {
		return common.Address{}, common.Address{}, false, err
	}
	bioToken, err := c.callAddress(ctx, "bioToken")
	if err != nil {
		return common.Address{}, common.Address{}, false, err
	}

	var result []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &result, "isLaunched"); err != nil {
		return common.Address{}, common.Address{}, false, fmt.Errorf("failed to call isLaunched: %w", err)
	}
	launched := false
	if len(result) > 0 {
		launched, _ = result[0].(bool)
	}
	return staking, bioToken, launched, nil
}

// Deposit commits amount of BIO to the round. The caller is
// responsible for a confirmed allowance first.
func (c *Contract) Deposit(ctx context.Context, amount *big.Int) (*types.Transaction, error) {
	if c.mockMode {
		return c.mockTransact("deposit", func() error {
			current, ok := c.mockDeposits[c.mockAccount]
			if !ok {
				current = big.NewInt(0)
				c.mockDeposits[c.mockAccount] = current
			}
			current.Add(current, amount)
			return nil
		})
	}
	return c.transact(ctx, "deposit", amount)
}

// Withdraw pulls the account's full commitment back out of the round
func (c *Contract) Withdraw(ctx context.Context) (*types.Transaction, error) {
	if c.mockMode {
		return c.mockTransact("withdraw", func() error {
			if amount, ok := c.mockDeposits[c.mockAccount]; !ok || amount.Sign() == 0 {
				return fmt.Errorf("nothing to withdraw")
			}
			delete(c.mockDeposits, c.mockAccount)
			return nil
		})
	}
	return c.transact(ctx, "withdraw")
}

// ClaimRefund claims the refund owed after a failed round
func (c *Contract) ClaimRefund(ctx context.Context) (*types.Transaction, error) {
	if c.mockMode {
		return c.mockTransact("claimRefund", func() error {
			delete(c.mockDeposits, c.mockAccount)
			return nil
		})
	}
	return c.transact(ctx, "claimRefund")
}

// LaunchProject graduates the round, deploying the project token and
// distribution contracts from the given templates.
func (c *Contract) LaunchProject(ctx context.Context, fractionalTokenTemplate, distributionTemplate common.Address, params LaunchParams) (*types.Transaction, error) {
	if c.mockMode {
		return c.mockTransact("launchProject", func() error {
			c.mockLaunched = true
			c.mockActive = false
			return nil
		})
	}
	return c.transact(ctx, "launchProject", fractionalTokenTemplate, distributionTemplate, params)
}

// WaitForTransaction waits for confirmation; a no-op in mock mode
func (c *Contract) WaitForTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if c.mockMode || tx == nil {
		return nil, nil
	}
	return c.client.WaitForTransaction(ctx, tx)
}

func (c *Contract) callUint(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	var result []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &result, method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	if len(result) == 0 {
		return big.NewInt(0), nil
	}
	if v, ok := result[0].(*big.Int); ok {
		return v, nil
	}
	return big.NewInt(0), nil
}

func (c *Contract) callAddress(ctx context.Context, method string) (common.Address, error) {
	var result []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &result, method)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to call %s: %w", method, err)
	}
	if len(result) == 0 {
		return common.Address{}, nil
	}
	if addr, ok := result[0].(common.Address); ok {
		return addr, nil
	}
	return common.Address{}, nil
}

func (c *Contract) transact(ctx context.Context, method string, args ...interface{}) (*types.Transaction, error) {
	auth, err := c.client.TransactOpts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction options: %w", err)
	}

	tx, err := c.contract.Transact(auth, method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", method, err)
	}
	return tx, nil
}

func (c *Contract) mockTransact(method string, apply func() error) (*types.Transaction, error) {
	c.mockMu.Lock()
	defer c.mockMu.Unlock()

	c.mockCalls = append(c.mockCalls, method)
	if err := c.mockErrors[method]; err != nil {
		return nil, err
	}
	if err := apply(); err != nil {
		return nil, err
	}
	return nil, nil
}

// ─── Mock helpers (tests only) ───────────────────────────────────────

// SetMockAccount sets the account mock writes act as
func (c *Contract) SetMockAccount(account common.Address) {
	if !c.mockMode {
		return
	}
	c.mockMu.Lock()
	defer c.mockMu.Unlock()
	c.mockAccount = account
}

// SetMockLimit sets the round cap in mock mode
func (c *Contract) SetMockLimit(limit *big.Int) {
	if !c.mockMode {
		return
	}
	c.mockMu.Lock()
	defer c.mockMu.Unlock()
	c.mockLimit = new(big.Int).Set(limit)
}

// SetMockLaunchData sets the launch resolution in mock mode
func (c *Contract) SetMockLaunchData(staking, bioToken common.Address, launched bool) {
	if !c.mockMode {
		return
	}
	c.mockMu.Lock()
	defer c.mockMu.Unlock()
	c.mockStaking = staking
	c.mockBioToken = bioToken
	c.mockLaunched = launched
}

// SetMockError makes the named function fail in mock mode
func (c *Contract) SetMockError(function string, err error) {
	if !c.mockMode {
		return
	}
	c.mockMu.Lock()
	defer c.mockMu.Unlock()
	c.mockErrors[function] = err
}

// MockCalls returns the mock write calls recorded so far
func (c *Contract) MockCalls() []string {
	c.mockMu.RLock()
	defer c.mockMu.RUnlock()
	return append([]string(nil), c.mockCalls...)
}
