// Package staking orchestrates the staking stage of a launched
// project: reads pool state into a client-side snapshot and drives the
// approve-then-act write pipelines for stake, unstake, claim, and
// royalty collection.
package staking

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/descilabs/launchpad/internal/flow"
	"github.com/descilabs/launchpad/internal/logging"
	"github.com/descilabs/launchpad/internal/metrics"
	"github.com/descilabs/launchpad/internal/token"
	"github.com/descilabs/launchpad/internal/wallet"
	"github.com/descilabs/launchpad/pkg/amounts"
	"github.com/descilabs/launchpad/pkg/types"
)

var (
	// ErrNotConnected means the wallet session is not connected
	ErrNotConnected = errors.New("wallet not connected")

	// ErrNotLaunched means the project has no staking contract yet
	ErrNotLaunched = errors.New("project not launched")

	// ErrInvalidAmount means the amount is nil, zero, or negative
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInsufficientBalance means the account holds less than the
	// requested amount
	ErrInsufficientBalance = errors.New("insufficient token balance")
)

// Service drives staking for one project. On-chain state is cached as
// a snapshot refreshed on connect and after every confirmed write; a
// failed read leaves the previous snapshot in place rather than
// clearing it, so the UI shows stale data instead of flickering to
// empty. Consumers must treat a nil snapshot field as "not loaded".
type Service struct {
	session  *wallet.Session
	pool     *Pool
	bioToken *token.ERC20
	tracker  *flow.Tracker
	metrics  *metrics.Metrics
	launched bool

	mu       sync.RWMutex
	data     *types.StakingData
	balances map[string]*big.Int // symbol → wei
}

// NewService creates a staking service. launch carries the contract
// resolution from the project's curation round; an unlaunched project
// rejects every operation with ErrNotLaunched.
func NewService(session *wallet.Session, pool *Pool, bioToken *token.ERC20, launch types.ProjectLaunchData, tracker *flow.Tracker, m *metrics.Metrics) *Service {
	if tracker == nil {
		tracker = flow.NewTracker()
	}
	return &Service{
		session:  session,
		pool:     pool,
		bioToken: bioToken,
		tracker:  tracker,
		metrics:  m,
		launched: launch.Launched,
		balances: make(map[string]*big.Int),
	}
}

// Tracker returns the action tracker for UI wiring
func (s *Service) Tracker() *flow.Tracker {
	return s.tracker
}

// Data returns the cached staking snapshot, or nil when not yet loaded
func (s *Service) Data() *types.StakingData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil
	}
	copied := *s.data
	return &copied
}

// Balances returns the cached token balances keyed by symbol
func (s *Service) Balances() map[string]*big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*big.Int, len(s.balances))
	for sym, bal := range s.balances {
		out[sym] = new(big.Int).Set(bal)
	}
	return out
}

// Refresh refetches the full staking snapshot and token balances.
// Partial failures keep the affected cached values unchanged.
func (s *Service) Refresh(ctx context.Context) error {
	account, ok := s.session.Address()
	if !ok {
		return ErrNotConnected
	}
	if !s.launched {
		return ErrNotLaunched
	}

	var firstErr error

	userStaked, err := s.pool.UserStaked(ctx, s.bioToken.Address(), account)
	if err != nil {
		s.readFailed("user_staked", err, &firstErr)
		userStaked = nil
	}
	totalStaked, err := s.pool.TotalStaked(ctx, s.bioToken.Address())
	if err != nil {
		s.readFailed("total_staked", err, &firstErr)
		totalStaked = nil
	}
	pendingRewards, err := s.pool.PendingRewards(ctx, s.bioToken.Address(), account)
	if err != nil {
		s.readFailed("pending_rewards", err, &firstErr)
		pendingRewards = nil
	}

	s.mu.Lock()
	if s.data == nil {
		s.data = &types.StakingData{
			StakingToken: s.bioToken.Address(),
			RewardToken:  s.bioToken.Address(),
		}
	}
	// Stale-but-present: only successful reads overwrite the cache.
	if userStaked != nil {
		s.data.UserStaked = userStaked
	}
	if totalStaked != nil {
		s.data.TotalStaked = totalStaked
	}
	if pendingRewards != nil {
		s.data.PendingRewards = pendingRewards
	}
	if s.data.UserStaked != nil && s.data.TotalStaked != nil {
		s.data.PoolShare = amounts.Percent(s.data.UserStaked, s.data.TotalStaked)
	}
	s.mu.Unlock()

	if err := s.refreshBalances(ctx, account); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (s *Service) refreshBalances(ctx context.Context, account common.Address) error {
	var firstErr error

	balance, err := s.bioToken.BalanceOf(ctx, account)
	if err != nil {
		s.readFailed("token_balance", err, &firstErr)
	} else {
		symbol, symErr := s.bioToken.Symbol(ctx)
		if symErr != nil || symbol == "" {
			symbol = "BIO"
		}
		s.mu.Lock()
		s.balances[symbol] = balance
		s.mu.Unlock()
	}

	// Native coin balance rides along with the session.
	if err := s.session.RefreshBalance(ctx); err == nil {
		if snap := s.session.Snapshot(); snap.Balance != nil {
			s.mu.Lock()
			s.balances["IP"] = snap.Balance
			s.mu.Unlock()
		}
	}

	return firstErr
}

func (s *Service) readFailed(source string, err error, firstErr *error) {
	logging.Warn("staking read failed, cache left stale",
		"source", source, logging.Err(err))
	s.metrics.ReadFailed(source)
	if *firstErr == nil {
		*firstErr = err
	}
}

// Stake approves the pool for amount and deposits it. The approval
// phase is skipped when a prior confirmed approval is still pending
// from a failed deposit (the saga resumes at phase two).
func (s *Service) Stake(ctx context.Context, amount *big.Int) error {
	if err := s.tracker.Begin(types.ActionStake); err != nil {
		return err
	}
	var err error
	defer func() { s.tracker.Finish(types.ActionStake, err) }()

	if err = s.validateAmount(amount); err != nil {
		s.tracker.ShowStatus("Failed to stake: " + err.Error())
		return err
	}

	account, ok := s.session.Address()
	if !ok {
		err = ErrNotConnected
		s.tracker.ShowStatus("Failed to stake: " + err.Error())
		return err
	}

	balance, balErr := s.bioToken.BalanceOf(ctx, account)
	if balErr == nil && balance.Cmp(amount) < 0 {
		err = ErrInsufficientBalance
		s.tracker.ShowStatus("Failed to stake: " + err.Error())
		return err
	}

	if !s.tracker.Approved(types.ActionStake) {
		s.tracker.ShowStatus("Approving tokens...")
		if _, err = s.bioToken.ApproveAndWait(ctx, s.pool.Address(), amount); err != nil {
			s.metrics.TxFailed(string(types.ActionStake))
			s.tracker.ShowStatus(fmt.Sprintf("Failed to stake: %v", err))
			return err
		}
		s.tracker.MarkApproved(types.ActionStake)
		s.tracker.ShowStatus("Token approval confirmed, staking tokens...")
	}

	err = s.submit(ctx, types.ActionStake, "stake", func() (txHash string, txErr error) {
		tx, txErr := s.pool.Deposit(ctx, s.bioToken.Address(), amount)
		if txErr != nil {
			return "", txErr
		}
		receipt, txErr := s.pool.WaitForTransaction(ctx, tx)
		if txErr != nil {
			return "", txErr
		}
		if receipt != nil {
			return receipt.TxHash.Hex(), nil
		}
		return "", nil
	}, "Tokens staked successfully! Updating data...", "Staking completed!")
	return err
}

// Unstake withdraws amount from the pool. No approval is needed.
func (s *Service) Unstake(ctx context.Context, amount *big.Int) error {
	if err := s.tracker.Begin(types.ActionUnstake); err != nil {
		return err
	}
	var err error
	defer func() { s.tracker.Finish(types.ActionUnstake, err) }()

	if err = s.validateAmount(amount); err != nil {
		s.tracker.ShowStatus("Failed to unstake: " + err.Error())
		return err
	}
	if _, ok := s.session.Address(); !ok {
		err = ErrNotConnected
		s.tracker.ShowStatus("Failed to unstake: " + err.Error())
		return err
	}

	err = s.submit(ctx, types.ActionUnstake, "unstake", func() (string, error) {
		tx, txErr := s.pool.Withdraw(ctx, s.bioToken.Address(), amount)
		if txErr != nil {
			return "", txErr
		}
		receipt, txErr := s.pool.WaitForTransaction(ctx, tx)
		if txErr != nil {
			return "", txErr
		}
		if receipt != nil {
			return receipt.TxHash.Hex(), nil
		}
		return "", nil
	}, "Tokens unstaked successfully! Updating data...", "Unstaking completed!")
	return err
}

// ClaimRewards claims all pending rewards for the connected account
func (s *Service) ClaimRewards(ctx context.Context) error {
	if err := s.tracker.Begin(types.ActionClaim); err != nil {
		return err
	}
	var err error
	defer func() { s.tracker.Finish(types.ActionClaim, err) }()

	account, ok := s.session.Address()
	if !ok {
		err = ErrNotConnected
		s.tracker.ShowStatus("Failed to claim rewards: " + err.Error())
		return err
	}

	err = s.submit(ctx, types.ActionClaim, "claim rewards", func() (string, error) {
		tx, txErr := s.pool.ClaimAllRewards(ctx, account)
		if txErr != nil {
			return "", txErr
		}
		receipt, txErr := s.pool.WaitForTransaction(ctx, tx)
		if txErr != nil {
			return "", txErr
		}
		if receipt != nil {
			return receipt.TxHash.Hex(), nil
		}
		return "", nil
	}, "Rewards claimed successfully! Updating data...", "Rewards claimed!")
	return err
}

// CollectRoyalties collects accrued royalties into the pool
func (s *Service) CollectRoyalties(ctx context.Context) error {
	if err := s.tracker.Begin(types.ActionCollect); err != nil {
		return err
	}
	var err error
	defer func() { s.tracker.Finish(types.ActionCollect, err) }()

	if _, ok := s.session.Address(); !ok {
		err = ErrNotConnected
		s.tracker.ShowStatus("Failed to collect royalties: " + err.Error())
		return err
	}

	err = s.submit(ctx, types.ActionCollect, "collect royalties", func() (string, error) {
		tx, txErr := s.pool.CollectRoyalties(ctx)
		if txErr != nil {
			return "", txErr
		}
		receipt, txErr := s.pool.WaitForTransaction(ctx, tx)
		if txErr != nil {
			return "", txErr
		}
		if receipt != nil {
			return receipt.TxHash.Hex(), nil
		}
		return "", nil
	}, "Royalties collected successfully! Updating data...", "Royalties collected!")
	return err
}

func (s *Service) validateAmount(amount *big.Int) error {
	if !s.launched {
		return ErrNotLaunched
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// submit runs the primary transaction phase: submit, await, record the
// hash, refetch everything, and surface phased status text. Any error
// becomes user-facing status with the raw error text appended.
func (s *Service) submit(ctx context.Context, key types.ActionKey, verb string, run func() (string, error), confirmedMsg, doneMsg string) error {
	s.tracker.ShowStatus("Transaction submitted, waiting for confirmation...")

	hash, err := run()
	if err != nil {
		s.metrics.TxFailed(string(key))
		s.tracker.ShowStatus(fmt.Sprintf("Failed to %s: %v", verb, err))
		logging.Error("transaction failed", logging.Action(string(key)), logging.Err(err))
		return err
	}

	s.metrics.TxSubmitted(string(key))
	s.metrics.TxConfirmed(string(key))
	if hash != "" {
		s.tracker.SetTxHash(hash)
		logging.Info("transaction confirmed", logging.Action(string(key)), logging.TxHash(hash))
	}

	s.tracker.ShowStatus(confirmedMsg)

	// No incremental update path: every confirmed write refetches the
	// whole read side.
	if err := s.Refresh(ctx); err != nil {
		logging.Warn("refresh after write failed", logging.Action(string(key)), logging.Err(err))
	}

	s.tracker.ShowStatus(doneMsg)
	return nil
}
