package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/descilabs/launchpad/internal/chain"
	"github.com/descilabs/launchpad/internal/logging"
	"github.com/descilabs/launchpad/pkg/types"
)

// ErrConnectInFlight is returned when Connect is called while another
// Connect is still running.
var ErrConnectInFlight = errors.New("wallet connection already in progress")

// Conn is the chain connection a session manages. Satisfied by
// *chain.Client; test doubles stand in for it.
type Conn interface {
	Connect(ctx context.Context) error
	NativeBalance(ctx context.Context, address common.Address) (*big.Int, error)
	Close()
}

// Snapshot is an immutable view of the session state handed to change
// listeners. Address is set iff State is StateConnected.
type Snapshot struct {
	State   types.ConnectionState
	Address common.Address
	ChainID int64
	Balance *big.Int
}

// Session owns the wallet connection lifecycle: keystore unlock, RPC
// connect, balance bookkeeping, and change notification. It is the
// root dependency of every contract facade. One Session exists per
// process; facades receive it by injection, never through a global.
type Session struct {
	cfg         *chain.Config
	keystoreDir string

	mu            sync.RWMutex
	state         types.ConnectionState
	keys          *Keystore
	conn          Conn
	client        *chain.Client // nil when a test double is connected
	balance       *big.Int
	permissionErr string
	listeners     []func(Snapshot)

	// dial builds the chain connection; tests replace it
	dial func(key *ecdsa.PrivateKey) (Conn, *chain.Client)
}

// NewSession creates a disconnected session
func NewSession(cfg *chain.Config, keystoreDir string) *Session {
	s := &Session{
		cfg:         cfg,
		keystoreDir: keystoreDir,
		state:       types.StateDisconnected,
	}
	s.dial = func(key *ecdsa.PrivateKey) (Conn, *chain.Client) {
		c := chain.NewClient(cfg, key)
		return c, c
	}
	return s
}

// Connect unlocks the keystore and dials the chain. Fails with
// ErrNoWallet when no keystore exists, ErrPasswordRejected when the
// password is wrong, and ErrConnectInFlight on re-entrant calls.
// A successful connect clears any prior permission error.
func (s *Session) Connect(ctx context.Context, password string) error {
	s.mu.Lock()
	switch s.state {
	case types.StateConnecting:
		s.mu.Unlock()
		return ErrConnectInFlight
	case types.StateConnected:
		s.mu.Unlock()
		return nil
	}
	s.state = types.StateConnecting
	s.mu.Unlock()
	s.notify()

	keys, conn, client, balance, err := s.establish(ctx, password)

	s.mu.Lock()
	if err != nil {
		s.state = types.StateDisconnected
		s.mu.Unlock()
		s.notify()
		return err
	}
	s.keys = keys
	s.conn = conn
	s.client = client
	s.balance = balance
	s.state = types.StateConnected
	s.permissionErr = ""
	s.mu.Unlock()
	s.notify()

	logging.Info("wallet connected",
		logging.Account(keys.Address().Hex()),
		"chain_id", s.cfg.ChainID)
	return nil
}

func (s *Session) establish(ctx context.Context, password string) (*Keystore, Conn, *chain.Client, *big.Int, error) {
	keys, err := LoadKeystore(s.keystoreDir)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	key, err := keys.PrivateKey(password)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	conn, client := s.dial(key)
	if err := conn.Connect(ctx); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to connect: %w", err)
	}

	// Balance is fetched once on connect; later refreshes happen on
	// demand and after confirmed writes.
	balance, err := conn.NativeBalance(ctx, keys.Address())
	if err != nil {
		logging.Warn("failed to fetch balance on connect", logging.Err(err))
		balance = nil // not loaded, distinct from zero
	}

	return keys, conn, client, balance, nil
}

// Disconnect tears down local session state unconditionally. The
// keystore itself is untouched; only in-memory state is cleared.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	if s.keys != nil {
		s.keys.ClearCachedKey()
	}
	s.keys = nil
	s.conn = nil
	s.client = nil
	s.balance = nil
	s.permissionErr = ""
	s.state = types.StateDisconnected
	s.mu.Unlock()
	s.notify()

	logging.Info("wallet disconnected")
}

// Snapshot returns the current session view
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{State: s.state}
	if s.cfg != nil {
		snap.ChainID = s.cfg.ChainID
	}
	if s.state == types.StateConnected && s.keys != nil {
		snap.Address = s.keys.Address()
		if s.balance != nil {
			snap.Balance = new(big.Int).Set(s.balance)
		}
	}
	return snap
}

// IsConnected reports whether the session is connected
func (s *Session) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == types.StateConnected
}

// Address returns the connected account, ok=false when disconnected
func (s *Session) Address() (common.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != types.StateConnected || s.keys == nil {
		return common.Address{}, false
	}
	return s.keys.Address(), true
}

// Client returns the connected chain client, or nil
func (s *Session) Client() *chain.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// RefreshBalance re-reads the native balance. A failed read leaves the
// cached value in place (stale-but-present policy).
func (s *Session) RefreshBalance(ctx context.Context) error {
	s.mu.RLock()
	conn := s.conn
	keys := s.keys
	s.mu.RUnlock()

	if conn == nil || keys == nil {
		return chain.ErrNotConnected
	}

	balance, err := conn.NativeBalance(ctx, keys.Address())
	if err != nil {
		logging.Warn("balance refresh failed, keeping cached value", logging.Err(err))
		return err
	}

	s.mu.Lock()
	s.balance = balance
	s.mu.Unlock()
	s.notify()
	return nil
}

// SetPermissionError records a user-visible permission failure (for
// example a whitelist rejection). It is cleared by Connect and
// Disconnect, so switching accounts resets the error state.
func (s *Session) SetPermissionError(msg string) {
	s.mu.Lock()
	s.permissionErr = msg
	s.mu.Unlock()
}

// PermissionError returns the recorded permission failure, or ""
func (s *Session) PermissionError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permissionErr
}

// OnChange registers a listener invoked after every state change.
// Listeners run synchronously on the mutating goroutine.
func (s *Session) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Session) notify() {
	s.mu.RLock()
	snap := s.snapshotLocked()
	listeners := make([]func(Snapshot), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
