package curation

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/descilabs/launchpad/internal/flow"
	"github.com/descilabs/launchpad/internal/metrics"
	"github.com/descilabs/launchpad/internal/token"
	"github.com/descilabs/launchpad/internal/wallet"
	"github.com/descilabs/launchpad/pkg/types"
)

var testAccount = common.HexToAddress("0x15cC412BEc3623a079FD46eD7d3d3ECa802884ca")

func oneToken(n int64) *big.Int {
	wei := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	return new(big.Int).Mul(big.NewInt(n), wei)
}

func newTestService(t *testing.T) (*Service, *Contract, *token.ERC20) {
	t.Helper()

	contract := NewMockContract()
	contract.SetMockAccount(testAccount)
	contract.SetMockLimit(oneToken(1000))

	bio := token.NewMockERC20("BIO")
	bio.SetMockOwner(testAccount)
	bio.SetMockBalance(testAccount, oneToken(100))

	session := wallet.NewMockSession(testAccount, oneToken(5))

	tracker := flow.NewTracker()
	tracker.SetClearDelays(20*time.Millisecond, 20*time.Millisecond)

	svc := NewService(session, contract, bio, tracker, metrics.New())
	return svc, contract, bio
}

func TestCommitSuccess(t *testing.T) {
	svc, contract, bio := newTestService(t)
	ctx := context.Background()

	if err := svc.Commit(ctx, oneToken(10)); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	calls := bio.MockCalls()
	if len(calls) != 1 || calls[0] != "approve" {
		t.Errorf("Expected one approve call, got %v", calls)
	}
	contractCalls := contract.MockCalls()
	if len(contractCalls) != 1 || contractCalls[0] != "deposit" {
		t.Errorf("Expected one deposit call, got %v", contractCalls)
	}

	data := svc.Data()
	if data == nil {
		t.Fatal("Expected snapshot after write")
	}
	if data.UserCommitted.Cmp(oneToken(10)) != 0 {
		t.Errorf("Expected 10 tokens committed, got %s", data.UserCommitted)
	}
	if data.TotalCommitted.Cmp(oneToken(10)) != 0 {
		t.Errorf("Expected 10 tokens total, got %s", data.TotalCommitted)
	}
}

func TestCommitApprovalFailureAbortsDeposit(t *testing.T) {
	svc, contract, bio := newTestService(t)
	bio.SetMockError("approve", errors.New("user rejected"))

	if err := svc.Commit(context.Background(), oneToken(10)); err == nil {
		t.Fatal("Expected commit to fail when approval fails")
	}
	for _, call := range contract.MockCalls() {
		if call == "deposit" {
			t.Error("Deposit must not run after a failed approval")
		}
	}
	if svc.Tracker().InFlight(types.ActionCommit) {
		t.Error("Loading flag should clear after failure")
	}
}

func TestCommitRetrySkipsReapproval(t *testing.T) {
	svc, contract, bio := newTestService(t)
	ctx := context.Background()

	contract.SetMockError("deposit", errors.New("execution reverted"))
	if err := svc.Commit(ctx, oneToken(10)); err == nil {
		t.Fatal("Expected commit to fail when deposit fails")
	}
	if !svc.Tracker().Approved(types.ActionCommit) {
		t.Fatal("Approval marker must survive a failed deposit")
	}

	contract.SetMockError("deposit", nil)
	if err := svc.Commit(ctx, oneToken(10)); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}

	approvals := 0
	for _, call := range bio.MockCalls() {
		if call == "approve" {
			approvals++
		}
	}
	if approvals != 1 {
		t.Errorf("Expected exactly one approve across retry, got %d", approvals)
	}
}

func TestCommitValidation(t *testing.T) {
	svc, contract, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Commit(ctx, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount for nil, got %v", err)
	}
	if err := svc.Commit(ctx, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount for negative, got %v", err)
	}
	if err := svc.Commit(ctx, oneToken(500)); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("Expected ErrInsufficientBalance, got %v", err)
	}
	if len(contract.MockCalls()) != 0 {
		t.Errorf("Validation failures must not reach the contract, got %v", contract.MockCalls())
	}
}

func TestCommitRespectsCurationLimit(t *testing.T) {
	svc, contract, bio := newTestService(t)
	contract.SetMockLimit(oneToken(15))
	bio.SetMockBalance(testAccount, oneToken(1000))

	ctx := context.Background()
	if err := svc.Commit(ctx, oneToken(10)); err != nil {
		t.Fatalf("First commit failed: %v", err)
	}
	if err := svc.Commit(ctx, oneToken(10)); !errors.Is(err, ErrLimitExceeded) {
		t.Errorf("Expected ErrLimitExceeded, got %v", err)
	}
}

func TestWithdrawReturnsFullCommitment(t *testing.T) {
	svc, contract, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Commit(ctx, oneToken(10)); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := svc.Withdraw(ctx); err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}

	data := svc.Data()
	if data.UserCommitted.Sign() != 0 {
		t.Errorf("Expected zero commitment after withdraw, got %s", data.UserCommitted)
	}
	_ = contract
}

func TestWithdrawWithoutCommitmentFails(t *testing.T) {
	svc, _, _ := newTestService(t)

	if err := svc.Withdraw(context.Background()); err == nil {
		t.Fatal("Expected withdraw with no commitment to fail")
	}
	if svc.Tracker().State(types.ActionWithdraw) != flow.Failed {
		t.Errorf("Expected failed state, got %s", svc.Tracker().State(types.ActionWithdraw))
	}
}

func TestClaimRefund(t *testing.T) {
	svc, contract, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Commit(ctx, oneToken(10)); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := svc.ClaimRefund(ctx); err != nil {
		t.Fatalf("ClaimRefund failed: %v", err)
	}
	if svc.Data().UserCommitted.Sign() != 0 {
		t.Errorf("Expected zero commitment after refund, got %s", svc.Data().UserCommitted)
	}
	_ = contract
}

func TestLaunchRecordsResolution(t *testing.T) {
	svc, contract, _ := newTestService(t)
	ctx := context.Background()

	staking := common.HexToAddress("0x2222222222222222222222222222222222222222")
	bioToken := common.HexToAddress("0x3333333333333333333333333333333333333333")

	templates := common.HexToAddress("0x4444444444444444444444444444444444444444")
	if err := svc.Launch(ctx, templates, templates, bioToken); err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	contract.SetMockLaunchData(staking, bioToken, true)

	launch, err := svc.LaunchData(ctx)
	if err != nil {
		t.Fatalf("LaunchData failed: %v", err)
	}
	if !launch.Launched {
		t.Error("Expected launched project")
	}
	if launch.StakingContract != staking {
		t.Errorf("Expected staking contract %s, got %s", staking.Hex(), launch.StakingContract.Hex())
	}
	if launch.BioToken != bioToken {
		t.Errorf("Expected bio token %s, got %s", bioToken.Hex(), launch.BioToken.Hex())
	}
}

func TestRefreshKeepsStaleCacheOnReadFailure(t *testing.T) {
	svc, contract, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Commit(ctx, oneToken(10)); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	before := svc.Data().TotalCommitted

	contract.SetMockError("totalDeposited", errors.New("rpc timeout"))
	if err := svc.Refresh(ctx); err == nil {
		t.Fatal("Expected refresh error when a read fails")
	}

	after := svc.Data()
	if after == nil || after.TotalCommitted == nil {
		t.Fatal("Cache must not be cleared by a failed read")
	}
	if after.TotalCommitted.Cmp(before) != 0 {
		t.Errorf("Stale value changed: before %s, after %s", before, after.TotalCommitted)
	}
}

func TestCommitRequiresConnection(t *testing.T) {
	contract := NewMockContract()
	bio := token.NewMockERC20("BIO")
	session := wallet.NewSession(nil, t.TempDir())
	svc := NewService(session, contract, bio, flow.NewTracker(), nil)

	if err := svc.Commit(context.Background(), oneToken(1)); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
}
