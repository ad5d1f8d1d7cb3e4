package staking

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

// Pool wraps a deployed staking pool contract. Pools hold one or more
// staking tokens; every read and write is keyed by the token address.
type Pool struct {
	client       *chain.Client
	contract     *bind.BoundContract
	contractAddr common.Address
	mockMode     bool

	// Mock state
	mockStaked  map[common.Address]map[common.Address]*big.Int // token → staker → amount
	mockRewards map[common.Address]map[common.Address]*big.Int
	mockErrors  map[string]error
	mockCalls   []string
	mockAccount common.Address
	mockMu      sync.RWMutex
}

// NewPool creates a pool facade bound to a deployed contract
func NewPool(client *chain.Client, contractAddr common.Address) (*Pool, error) {
	if client == nil || !client.IsConnected() {
		return nil, chain.ErrNotConnected
	}

	parsedABI, err := abi.JSON(strings.NewReader(StakingABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse staking ABI: %w", err)
	}

	ec := client.Client()
	return &Pool{
		client:       client,
		contractAddr: contractAddr,
		contract:     bind.NewBoundContract(contractAddr, parsedABI, ec, ec, ec),
	}, nil
}

// NewMockPool creates an in-memory pool for testing
func NewMockPool() *Pool {
	return &Pool{
		mockMode:    true,
		mockStaked:  make(map[common.Address]map[common.Address]*big.Int),
		mockRewards: make(map[common.Address]map[common.Address]*big.Int),
		mockErrors:  make(map[string]error),
	}
}

// Address returns the pool contract address
func (p *Pool) Address() common.Address {
	return p.contractAddr
}

// IsMockMode returns whether running in mock mode
func (p *Pool) IsMockMode() bool {
	return p.mockMode
}

// UserStaked returns the amount of token the account has staked
func (p *Pool) UserStaked(ctx context.Context, tokenAddr, account common.Address) (*big.Int, error) {
	if p.mockMode {
		p.mockMu.RLock()
		defer p.mockMu.RUnlock()
		if err := p.mockErrors["getUserStakedBalance"]; err != nil {
			return nil, err
		}
		return p.mockStakeOf(tokenAddr, account), nil
	}

	return p.callUint(ctx, "getUserStakedBalance", tokenAddr, account)
}

// TotalStaked returns the total amount of token staked in the pool
func (p *Pool) TotalStaked(ctx context.Context, tokenAddr common.Address) (*big.Int, error) {
	if p.mockMode {
		p.mockMu.RLock()
		defer p.mockMu.RUnlock()
		if err := p.mockErrors["getPoolTotalStakedBalance"]; err != nil {
			return nil, err
		}
		total := big.NewInt(0)
		for _, amount := range p.mockStaked[tokenAddr] {
			total.Add(total, amount)
		}
		return total, nil
	}

	return p.callUint(ctx, "getPoolTotalStakedBalance", tokenAddr)
}

// PendingRewards returns the unclaimed rewards for the account
func (p *Pool) PendingRewards(ctx context.Context, tokenAddr, account common.Address) (*big.Int, error) {
	if p.mockMode {
		p.mockMu.RLock()
		defer p.mockMu.RUnlock()
		if err := p.mockErrors["getPendingRewardsForStaker"]; err != nil {
			return nil, err
		}
		if rewards, ok := p.mockRewards[tokenAddr][account]; ok {
			return new(big.Int).Set(rewards), nil
		}
		return big.NewInt(0), nil
	}

	return p.callUint(ctx, "getPendingRewardsForStaker", tokenAddr, account)
}

// Deposit stakes amount of token. The caller is responsible for a
// confirmed allowance first.
func (p *Pool) Deposit(ctx context.Context, tokenAddr common.Address, amount *big.Int) (*types.Transaction, error) {
	if p.mockMode {
		return p.mockTransact("deposit", func() error {
			staked := p.mockStakeOf(tokenAddr, p.mockAccount)
			if _, ok := p.mockStaked[tokenAddr]; !ok {
				p.mockStaked[tokenAddr] = make(map[common.Address]*big.Int)
			}
			p.mockStaked[tokenAddr][p.mockAccount] = staked.Add(staked, amount)
			return nil
		})
	}

	return p.transact(ctx, "deposit", tokenAddr, amount)
}

// Withdraw unstakes amount of token
func (p *Pool) Withdraw(ctx context.Context, tokenAddr common.Address, amount *big.Int) (*types.Transaction, error) {
	if p.mockMode {
		return p.mockTransact("withdraw", func() error {
			staked := p.mockStakeOf(tokenAddr, p.mockAccount)
			if staked.Cmp(amount) < 0 {
				return fmt.Errorf("insufficient staked balance")
			}
			p.mockStaked[tokenAddr][p.mockAccount] = staked.Sub(staked, amount)
			return nil
		})
	}

	return p.transact(ctx, "withdraw", tokenAddr, amount)
}

// ClaimAllRewards claims every pending reward for the account
func (p *Pool) ClaimAllRewards(ctx context.Context, account common.Address) (*types.Transaction, error) {
	if p.mockMode {
		return p.mockTransact("claimAllRewards", func() error {
			for tokenAddr := range p.mockRewards {
				delete(p.mockRewards[tokenAddr], account)
			}
			return nil
		})
	}

	return p.transact(ctx, "claimAllRewards", account)
}

// CollectRoyalties collects accrued IP royalties into the pool
func (p *Pool) CollectRoyalties(ctx context.Context) (*types.Transaction, error) {
	if p.mockMode {
		return p.mockTransact("collectRoyalties", func() error { return nil })
	}

	return p.transact(ctx, "collectRoyalties")
}

// WaitForTransaction waits for confirmation; a no-op in mock mode
func (p *Pool) WaitForTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if p.mockMode || tx == nil {
		return nil, nil
	}
	return p.client.WaitForTransaction(ctx, tx)
}

func (p *Pool) callUint(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	var result []interface{}
	err := p.contract.Call(&bind.CallOpts{Context: ctx}, &result, method, args...)
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

func (p *Pool) transact(ctx context.Context, method string, args ...interface{}) (*types.Transaction, error) {
	auth, err := p.client.TransactOpts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction options: %w", err)
	}

	tx, err := p.contract.Transact(auth, method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", method, err)
	}
	return tx, nil
}

func (p *Pool) mockTransact(method string, apply func() error) (*types.Transaction, error) {
	p.mockMu.Lock()
	defer p.mockMu.Unlock()

	p.mockCalls = append(p.mockCalls, method)
	if err := p.mockErrors[method]; err != nil {
		return nil, err
	}
	if err := apply(); err != nil {
		return nil, err
	}
	return nil, nil
}

// mockStakeOf must be called with mockMu held
func (p *Pool) mockStakeOf(tokenAddr, account common.Address) *big.Int {
	if amount, ok := p.mockStaked[tokenAddr][account]; ok {
		return amount
	}
	return big.NewInt(0)
}

// ─── Mock helpers (tests only) ───────────────────────────────────────

// SetMockAccount sets the account mock writes act as
func (p *Pool) SetMockAccount(account common.Address) {
	if !p.mockMode {
		return
	}
	p.mockMu.Lock()
	defer p.mockMu.Unlock()
	p.mockAccount = account
}

// SetMockStaked seeds an account's staked balance in mock mode
func (p *Pool) SetMockStaked(tokenAddr, account common.Address, amount *big.Int) {
	if !p.mockMode {
		return
	}
	p.mockMu.Lock()
	defer p.mockMu.Unlock()
	if _, ok := p.mockStaked[tokenAddr]; !ok {
		p.mockStaked[tokenAddr] = make(map[common.Address]*big.Int)
	}
	p.mockStaked[tokenAddr][account] = new(big.Int).Set(amount)
}

// SetMockRewards sets pending rewards for an account in mock mode
func (p *Pool) SetMockRewards(tokenAddr, account common.Address, amount *big.Int) {
	if !p.mockMode {
		return
	}
	p.mockMu.Lock()
	defer p.mockMu.Unlock()
	if _, ok := p.mockRewards[tokenAddr]; !ok {
		p.mockRewards[tokenAddr] = make(map[common.Address]*big.Int)
	}
	p.mockRewards[tokenAddr][account] = new(big.Int).Set(amount)
}

// SetMockError makes the named function fail in mock mode
func (p *Pool) SetMockError(function string, err error) {
	if !p.mockMode {
		return
	}
	p.mockMu.Lock()
	defer p.mockMu.Unlock()
	p.mockErrors[function] = err
}

// MockCalls returns the mock write calls recorded so far
func (p *Pool) MockCalls() []string {
	p.mockMu.RLock()
	defer p.mockMu.RUnlock()
	return append([]string(nil), p.mockCalls...)
}
