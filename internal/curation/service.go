// Package curation orchestrates a project's curation round: commit and
// withdraw BIO against the round contract, claim refunds after a failed
// round, and graduate the round into a launched project.
package curation

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
	"github.com/descilabs/launchpad/pkg/types"
)

var (
	// ErrNotConnected means the wallet session is not connected
	ErrNotConnected = errors.New("wallet not connected")

	// ErrInvalidAmount means the amount is nil, zero, or negative
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInsufficientBalance means the account holds less than the
	// requested amount
	ErrInsufficientBalance = errors.New("insufficient token balance")

	// ErrLimitExceeded means the commitment would push the round past
	// its curation limit
	ErrLimitExceeded = errors.New("commitment exceeds curation limit")
)

// Service drives the curation round for one project. Like the staking
// side, on-chain state is cached as a snapshot refreshed on connect and
// after every confirmed write, and a failed read leaves the previous
// snapshot in place.
type Service struct {
	session  *wallet.Session
	contract *Contract
	bioToken *token.ERC20
	tracker  *flow.Tracker
	metrics  *metrics.Metrics

	mu   sync.RWMutex
	data *types.CurationData
}

// NewService creates a curation service around a round contract
func NewService(session *wallet.Session, contract *Contract, bioToken *token.ERC20, tracker *flow.Tracker, m *metrics.Metrics) *Service {
	if tracker == nil {
		tracker = flow.NewTracker()
	}
	return &Service{
		session:  session,
		contract: contract,
		bioToken: bioToken,
		tracker:  tracker,
		metrics:  m,
	}
}

// Tracker returns the action tracker for UI wiring
func (s *Service) Tracker() *flow.Tracker {
	return s.tracker
}

// Data returns the cached curation snapshot, or nil when not yet loaded
func (s *Service) Data() *types.CurationData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil
	}
	copied := *s.data
	return &copied
}

// LaunchData reads the round's contract resolution. Staking services
// are constructed from this once the project graduates.
func (s *Service) LaunchData(ctx context.Context) (types.ProjectLaunchData, error) {
	staking, bioToken, launched, err := s.contract.LaunchData(ctx)
	if err != nil {
		return types.ProjectLaunchData{}, err
	}
	return types.ProjectLaunchData{
		StakingContract: staking,
		BioToken:        bioToken,
		Launched:        launched,
	}, nil
}

// Refresh refetches the full curation snapshot. Partial failures keep
// the affected cached values unchanged.
func (s *Service) Refresh(ctx context.Context) error {
	account, ok := s.session.Address()
	if !ok {
		return ErrNotConnected
	}

	var firstErr error

	total, err := s.contract.TotalDeposited(ctx)
	if err != nil {
		s.readFailed("total_deposited", err, &firstErr)
		total = nil
	}
	userDeposit, err := s.contract.DepositOf(ctx, account)
	if err != nil {
		s.readFailed("user_deposit", err, &firstErr)
		userDeposit = nil
	}
	limit, err := s.contract.CurationLimit(ctx)
	if err != nil {
		s.readFailed("curation_limit", err, &firstErr)
		limit = nil
	}
	active, err := s.contract.IsActive(ctx)
	if err != nil {
		s.readFailed("is_active", err, &firstErr)
	}

	s.mu.Lock()
	if s.data == nil {
		s.data = &types.CurationData{}
	}
	if total != nil {
		s.data.TotalCommitted = total
	}
	if userDeposit != nil {
		s.data.UserCommitted = userDeposit
	}
	if limit != nil {
		s.data.CurationLimit = limit
	}
	if err == nil {
		s.data.Active = active
	}
	s.mu.Unlock()

	return firstErr
}

func (s *Service) readFailed(source string, err error, firstErr *error) {
	logging.Warn("curation read failed, cache left stale",
		"source", source, logging.Err(err))
	s.metrics.ReadFailed(source)
	if *firstErr == nil {
		*firstErr = err
	}
}

// Commit approves the round for amount and deposits it. The approval
// phase is skipped when a prior confirmed approval is still pending
// from a failed deposit.
func (s *Service) Commit(ctx context.Context, amount *big.Int) error {
	if err := s.tracker.Begin(types.ActionCommit); err != nil {
		return err
	}
	var err error
	defer func() { s.tracker.Finish(types.ActionCommit, err) }()

	if amount == nil || amount.Sign() <= 0 {
		err = ErrInvalidAmount
		s.tracker.ShowStatus("Failed to commit: " + err.Error())
		return err
	}

	account, ok := s.session.Address()
	if !ok {
		err = ErrNotConnected
		s.tracker.ShowStatus("Failed to commit: " + err.Error())
		return err
	}

	balance, balErr := s.bioToken.BalanceOf(ctx, account)
	if balErr == nil && balance.Cmp(amount) < 0 {
		err = ErrInsufficientBalance
		s.tracker.ShowStatus("Failed to commit: " + err.Error())
		return err
	}

	if err = s.checkLimit(ctx, amount); err != nil {
		s.tracker.ShowStatus("Failed to commit: " + err.Error())
		return err
	}

	if !s.tracker.Approved(types.ActionCommit) {
		s.tracker.ShowStatus("Approving tokens...")
		if _, err = s.bioToken.ApproveAndWait(ctx, s.contract.Address(), amount); err != nil {
			s.metrics.TxFailed(string(types.ActionCommit))
			s.tracker.ShowStatus(fmt.Sprintf("Failed to commit: %v", err))
			return err
		}
		s.tracker.MarkApproved(types.ActionCommit)
		s.tracker.ShowStatus("Token approval confirmed, committing tokens...")
	}

	err = s.submit(ctx, types.ActionCommit, "commit", func() (string, error) {
		tx, txErr := s.contract.Deposit(ctx, amount)
		if txErr != nil {
			return "", txErr
		}
		receipt, txErr := s.contract.WaitForTransaction(ctx, tx)
		if txErr != nil {
			return "", txErr
		}
		if receipt != nil {
			return receipt.TxHash.Hex(), nil
		}
		return "", nil
	}, "Tokens committed successfully! Updating data...", "Commitment completed!")
	return err
}

// checkLimit rejects commitments that would overflow the round cap. A
// zero or unreadable limit means no cap is enforced client-side.
func (s *Service) checkLimit(ctx context.Context, amount *big.Int) error {
	limit, err := s.contract.CurationLimit(ctx)
	if err != nil || limit == nil || limit.Sign() == 0 {
		return nil
	}
	total, err := s.contract.TotalDeposited(ctx)
	if err != nil || total == nil {
		return nil
	}
	if new(big.Int).Add(total, amount).Cmp(limit) > 0 {
		return ErrLimitExceeded
	}
	return nil
}

// Withdraw pulls the account's full commitment back out of the round
func (s *Service) Withdraw(ctx context.Context) error {
	if err := s.tracker.Begin(types.ActionWithdraw); err != nil {
		return err
	}
	var err error
	defer func() { s.tracker.Finish(types.ActionWithdraw, err) }()

	if _, ok := s.session.Address(); !ok {
		err = ErrNotConnected
		s.tracker.ShowStatus("Failed to withdraw: " + err.Error())
		return err
	}

	err = s.submit(ctx, types.ActionWithdraw, "withdraw", func() (string, error) {
		tx, txErr := s.contract.Withdraw(ctx)
		if txErr != nil {
			return "", txErr
		}
		receipt, txErr := s.contract.WaitForTransaction(ctx, tx)
		if txErr != nil {
			return "", txErr
		}
		if receipt != nil {
			return receipt.TxHash.Hex(), nil
		}
		return "", nil
	}, "Tokens withdrawn successfully! Updating data...", "Withdrawal completed!")
	return err
}

// ClaimRefund claims the refund owed after a failed round
func (s *Service) ClaimRefund(ctx context.Context) error {
	if err := s.tracker.Begin(types.ActionRefund); err != nil {
		return err
	}
	var err error
	defer func() { s.tracker.Finish(types.ActionRefund, err) }()

	if _, ok := s.session.Address(); !ok {
		err = ErrNotConnected
		s.tracker.ShowStatus("Failed to claim refund: " + err.Error())
		return err
	}

	err = s.submit(ctx, types.ActionRefund, "claim refund", func() (string, error) {
		tx, txErr := s.contract.ClaimRefund(ctx)
		if txErr != nil {
			return "", txErr
		}
		receipt, txErr := s.contract.WaitForTransaction(ctx, tx)
		if txErr != nil {
			return "", txErr
		}
		if receipt != nil {
			return receipt.TxHash.Hex(), nil
		}
		return "", nil
	}, "Refund claimed successfully! Updating data...", "Refund claimed!")
	return err
}

// Launch graduates the round, deploying the project's staking and
// distribution contracts from the given templates. The connected
// account becomes the admin.
func (s *Service) Launch(ctx context.Context, fractionalTokenTemplate, distributionTemplate, rewardToken common.Address) error {
	if err := s.tracker.Begin(types.ActionLaunch); err != nil {
		return err
	}
	var err error
	defer func() { s.tracker.Finish(types.ActionLaunch, err) }()

	account, ok := s.session.Address()
	if !ok {
		err = ErrNotConnected
		s.tracker.ShowStatus("Failed to launch project: " + err.Error())
		return err
	}

	err = s.submit(ctx, types.ActionLaunch, "launch project", func() (string, error) {
		tx, txErr := s.contract.LaunchProject(ctx, fractionalTokenTemplate, distributionTemplate, LaunchParams{
			Admin:       account,
			RewardToken: rewardToken,
		})
		if txErr != nil {
			return "", txErr
		}
		receipt, txErr := s.contract.WaitForTransaction(ctx, tx)
		if txErr != nil {
			return "", txErr
		}
		if receipt != nil {
			return receipt.TxHash.Hex(), nil
		}
		return "", nil
	}, "Project launched successfully! Updating data...", "Launch completed!")
	return err
}

// submit runs the primary transaction phase: submit, await, record the
// hash, refetch everything, and surface phased status text.
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

	if err := s.Refresh(ctx); err != nil {
		logging.Warn("refresh after write failed", logging.Action(string(key)), logging.Err(err))
	}

	s.tracker.ShowStatus(doneMsg)
	return nil
}
