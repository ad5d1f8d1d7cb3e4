package token

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var testAccount = common.HexToAddress("0x15cC412BEc3623a079FD46eD7d3d3ECa802884ca")

func TestERC20_BalanceOf_Mock(t *testing.T) {
	tok := NewMockERC20("BIO")

	balance, err := tok.BalanceOf(context.Background(), testAccount)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if balance.Sign() != 0 {
		t.Errorf("expected zero balance for fresh account, got %s", balance)
	}

	want, _ := new(big.Int).SetString("1500000000000000000", 10)
	tok.SetMockBalance(testAccount, want)

	balance, err = tok.BalanceOf(context.Background(), testAccount)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if balance.Cmp(want) != 0 {
		t.Errorf("balance = %s, want %s", balance, want)
	}
}

func TestERC20_Symbol_Mock(t *testing.T) {
	tok := NewMockERC20("CURE")
	symbol, err := tok.Symbol(context.Background())
	if err != nil {
		t.Fatalf("Symbol: %v", err)
	}
	if symbol != "CURE" {
		t.Errorf("symbol = %q, want CURE", symbol)
	}
}

func TestERC20_ApproveTracksAllowance(t *testing.T) {
	tok := NewMockERC20("BIO")
	tok.SetMockOwner(testAccount)

	spender := common.HexToAddress("0x1111111111111111111111111111111111111111")
	amount := big.NewInt(1000)

	if _, err := tok.Approve(context.Background(), spender, amount); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	allowance, err := tok.Allowance(context.Background(), testAccount, spender)
	if err != nil {
		t.Fatalf("Allowance: %v", err)
	}
	if allowance.Cmp(amount) != 0 {
		t.Errorf("allowance = %s, want %s", allowance, amount)
	}
}

func TestERC20_InjectedApproveFailure(t *testing.T) {
	tok := NewMockERC20("BIO")
	rejected := errors.New("user rejected the request")
	tok.SetMockError("approve", rejected)

	_, err := tok.Approve(context.Background(), testAccount, big.NewInt(1))
	if !errors.Is(err, rejected) {
		t.Errorf("expected injected error, got %v", err)
	}

	calls := tok.MockCalls()
	if len(calls) != 1 || calls[0] != "approve" {
		t.Errorf("expected approve call recorded, got %v", calls)
	}
}
