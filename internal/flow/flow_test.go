package flow

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/descilabs/launchpad/pkg/types"
)

func TestTracker_BeginFinish(t *testing.T) {
	tr := NewTracker()

	if got := tr.State(types.ActionStake); got != Idle {
		t.Fatalf("initial state = %s, want idle", got)
	}

	if err := tr.Begin(types.ActionStake); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if !tr.InFlight(types.ActionStake) {
		t.Error("expected stake to be in flight after Begin")
	}

	tr.Finish(types.ActionStake, nil)
	if got := tr.State(types.ActionStake); got != Succeeded {
		t.Errorf("state after Finish(nil) = %s, want succeeded", got)
	}
	if tr.InFlight(types.ActionStake) {
		t.Error("flag leaked: still in flight after Finish")
	}
}

func TestTracker_FinishWithError(t *testing.T) {
	tr := NewTracker()

	tr.Begin(types.ActionUnstake)
	tr.Finish(types.ActionUnstake, errors.New("reverted"))

	if got := tr.State(types.ActionUnstake); got != Failed {
		t.Errorf("state = %s, want failed", got)
	}
	if tr.InFlight(types.ActionUnstake) {
		t.Error("flag leaked after failure")
	}
}

func TestTracker_ReentrantBeginRejected(t *testing.T) {
	tr := NewTracker()

	if err := tr.Begin(types.ActionStake); err != nil {
		t.Fatalf("first Begin: %v", err)
	}
	if err := tr.Begin(types.ActionStake); !errors.Is(err, ErrInFlight) {
		t.Errorf("second Begin = %v, want ErrInFlight", err)
	}

	// A different key is independent.
	if err := tr.Begin(types.ActionUnstake); err != nil {
		t.Errorf("Begin for independent key: %v", err)
	}
}

func TestTracker_BeginAfterSettlement(t *testing.T) {
	tr := NewTracker()

	for _, settle := range []error{nil, errors.New("boom")} {
		if err := tr.Begin(types.ActionClaim); err != nil {
			t.Fatalf("Begin: %v", err)
		}
		tr.Finish(types.ActionClaim, settle)
		if tr.InFlight(types.ActionClaim) {
			t.Fatal("flag leaked after settlement")
		}
	}
}

func TestTracker_ConcurrentBegin_ExactlyOneWins(t *testing.T) {
	tr := NewTracker()

	const n = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tr.Begin(types.ActionCommit) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one Begin to win, got %d", wins)
	}
}

func TestTracker_ApprovalSaga(t *testing.T) {
	tr := NewTracker()

	tr.Begin(types.ActionStake)
	tr.MarkApproved(types.ActionStake)
	tr.Finish(types.ActionStake, errors.New("deposit reverted"))

	// Approval survives a failed second phase: retry skips re-approving.
	if !tr.Approved(types.ActionStake) {
		t.Error("approval marker lost after failed primary transaction")
	}

	tr.Begin(types.ActionStake)
	tr.Finish(types.ActionStake, nil)

	// Consumed on success.
	if tr.Approved(types.ActionStake) {
		t.Error("approval marker not consumed on success")
	}
}

func TestTracker_StatusAutoClear(t *testing.T) {
	tr := NewTracker()
	tr.SetClearDelays(20*time.Millisecond, 20*time.Millisecond)

	tr.ShowStatus("Staking...")
	if got := tr.Status(); got != "Staking..." {
		t.Fatalf("Status = %q", got)
	}

	deadline := time.Now().Add(time.Second)
	for tr.Status() != "" {
		if time.Now().After(deadline) {
			t.Fatal("status was not auto-cleared")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTracker_NewerStatusSuppressesOlderClear(t *testing.T) {
	tr := NewTracker()
	tr.SetClearDelays(30*time.Millisecond, 30*time.Millisecond)

	tr.ShowStatus("Approving...")
	time.Sleep(10 * time.Millisecond)
	tr.ShowStatus("Staking...")
	time.Sleep(25 * time.Millisecond)

	// The first message's clear timer has elapsed, but the second
	// message is newer and must still be visible.
	if got := tr.Status(); got != "Staking..." {
		t.Errorf("Status = %q, want \"Staking...\"", got)
	}
}

func TestTracker_TxHashAutoClear(t *testing.T) {
	tr := NewTracker()
	tr.SetClearDelays(10*time.Millisecond, 20*time.Millisecond)

	tr.SetTxHash("0xabc")
	if got := tr.TxHash(); got != "0xabc" {
		t.Fatalf("TxHash = %q", got)
	}

	deadline := time.Now().Add(time.Second)
	for tr.TxHash() != "" {
		if time.Now().After(deadline) {
			t.Fatal("tx hash was not auto-cleared")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
