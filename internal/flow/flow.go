// Package flow tracks the lifecycle of user-initiated contract
// actions. Each action key owns a small state machine
//
//	idle ──Begin──▶ pending ──Finish(nil)──▶ succeeded
//	 ▲                 │
//	 │                 └──Finish(err)──▶ failed
//	 └── succeeded/failed allow a fresh Begin
//
// Begin is a real compare-and-swap guard: a second Begin for an
// in-flight key fails with ErrInFlight, so duplicate submission is
// impossible regardless of what the UI disables. Finish is intended
// to run under defer, which guarantees the pending flag clears on
// every exit path.
package flow

import (
	"errors"
	"sync"
	"time"

	"github.com/descilabs/launchpad/internal/util"
	"github.com/descilabs/launchpad/pkg/types"
)

// ErrInFlight is returned by Begin while the same key is pending.
var ErrInFlight = errors.New("action already in flight")

// State is the lifecycle state of one action key
type State string

const (
	Idle      State = "idle"
	Pending   State = "pending"
	Succeeded State = "succeeded"
	Failed    State = "failed"
)

const (
	defaultStatusClear = 5 * time.Second
	defaultHashClear   = 10 * time.Second
)

// Tracker coordinates action states, approve-then-act saga phases,
// and transient status text for one feature surface (staking,
// curation, download). Safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	states   map[types.ActionKey]State
	approved map[types.ActionKey]bool

	status    string
	statusSeq uint64
	txHash    string
	hashSeq   uint64

	statusClear time.Duration
	hashClear   time.Duration

	onStatus func(string)
}

// NewTracker creates a tracker with the default 5s status clear delay
func NewTracker() *Tracker {
	return &Tracker{
		states:      make(map[types.ActionKey]State),
		approved:    make(map[types.ActionKey]bool),
		statusClear: defaultStatusClear,
		hashClear:   defaultHashClear,
	}
}

// SetClearDelays overrides the auto-clear delays. Used by tests and
// by config-driven UIs.
func (t *Tracker) SetClearDelays(status, hash time.Duration) {
	t.mu.Lock()
	t.statusClear = status
	t.hashClear = hash
	t.mu.Unlock()
}

// OnStatus registers a callback invoked with every status change,
// including the clearing "" after the delay elapses.
func (t *Tracker) OnStatus(fn func(string)) {
	t.mu.Lock()
	t.onStatus = fn
	t.mu.Unlock()
}

// Begin transitions key to pending. Fails with ErrInFlight if the key
// is already pending.
func (t *Tracker) Begin(key types.ActionKey) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.states[key] == Pending {
		return ErrInFlight
	}
	t.states[key] = Pending
	return nil
}

// Finish settles key: nil err means succeeded, otherwise failed. The
// saga approval marker is consumed on success and kept on failure so
// a retry can skip re-approving.
func (t *Tracker) Finish(key types.ActionKey, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil {
		t.states[key] = Failed
		return
	}
	t.states[key] = Succeeded
	delete(t.approved, key)
}

// State returns the current state of key (Idle if never begun)
func (t *Tracker) State(key types.ActionKey) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.states[key]; ok {
		return s
	}
	return Idle
}

// InFlight reports whether key is pending
func (t *Tracker) InFlight(key types.ActionKey) bool {
	return t.State(key) == Pending
}

// MarkApproved records that the approval phase for key confirmed.
// On a later failure of the primary transaction the marker survives,
// so the retry starts at the second phase.
func (t *Tracker) MarkApproved(key types.ActionKey) {
	t.mu.Lock()
	t.approved[key] = true
	t.mu.Unlock()
}

// Approved reports whether key holds a confirmed approval
func (t *Tracker) Approved(key types.ActionKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.approved[key]
}

// ClearApproved drops the approval marker for key (e.g. after the
// amount changes, invalidating the prior allowance).
func (t *Tracker) ClearApproved(key types.ActionKey) {
	t.mu.Lock()
	delete(t.approved, key)
	t.mu.Unlock()
}

// ShowStatus publishes a transient status message, auto-cleared after
// the configured delay unless a newer message replaced it.
func (t *Tracker) ShowStatus(msg string) {
	t.mu.Lock()
	t.status = msg
	t.statusSeq++
	seq := t.statusSeq
	delay := t.statusClear
	fn := t.onStatus
	t.mu.Unlock()

	if fn != nil {
		fn(msg)
	}

	util.SafeGoWithName("status-clear", func() {
		time.Sleep(delay)
		t.mu.Lock()
		if t.statusSeq != seq {
			t.mu.Unlock()
			return
		}
		t.status = ""
		fn := t.onStatus
		t.mu.Unlock()
		if fn != nil {
			fn("")
		}
	})
}

// Status returns the current transient status message, or ""
func (t *Tracker) Status() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// SetTxHash records the last confirmed transaction hash, auto-cleared
// after the hash delay.
func (t *Tracker) SetTxHash(hash string) {
	t.mu.Lock()
	t.txHash = hash
	t.hashSeq++
	seq := t.hashSeq
	delay := t.hashClear
	t.mu.Unlock()

	util.SafeGoWithName("txhash-clear", func() {
		time.Sleep(delay)
		t.mu.Lock()
		if t.hashSeq == seq {
			t.txHash = ""
		}
		t.mu.Unlock()
	})
}

// TxHash returns the last recorded transaction hash, or ""
func (t *Tracker) TxHash() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.txHash
}
