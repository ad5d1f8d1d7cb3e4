package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/descilabs/launchpad/internal/chain"
	"github.com/descilabs/launchpad/pkg/types"
)

// staticConn is a Conn that never touches the network
type staticConn struct {
	balance *big.Int
}

func (c *staticConn) Connect(context.Context) error { return nil }

func (c *staticConn) NativeBalance(_ context.Context, _ common.Address) (*big.Int, error) {
	if c.balance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(c.balance), nil
}

func (c *staticConn) Close() {}

// NewMockSession returns an already-connected session bound to address
// with a fixed native balance. For testing facades without a chain.
func NewMockSession(address common.Address, nativeBalance *big.Int) *Session {
	s := NewSession(chain.DefaultConfig(), "")
	s.keys = &Keystore{address: address}
	s.conn = &staticConn{balance: nativeBalance}
	s.balance = nativeBalance
	s.state = types.StateConnected
	return s
}
