// Package access gates dataset downloads on a client-side address
// whitelist. The gate is a UX convenience only: the list is public,
// lives in local config, and nothing at the data-serving boundary
// enforces it. Do not treat it as a security control.
package access

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/descilabs/launchpad/internal/logging"
	"github.com/descilabs/launchpad/internal/wallet"
	"github.com/descilabs/launchpad/pkg/types"
)

// Gate answers "may this account download this dataset". Addresses
// are matched case-insensitively; EIP-55 checksum casing must not
// affect membership.
type Gate struct {
	session *wallet.Session

	mu        sync.RWMutex
	whitelist map[string]struct{} // lowercase hex address
}

// NewGate creates a gate from the configured whitelist
func NewGate(session *wallet.Session, whitelist []string) *Gate {
	g := &Gate{session: session}
	g.Replace(whitelist)
	return g
}

// Replace swaps in a new whitelist. Called on config hot reload.
func (g *Gate) Replace(whitelist []string) {
	next := make(map[string]struct{}, len(whitelist))
	for _, addr := range whitelist {
		if !common.IsHexAddress(addr) {
			logging.Warn("ignoring invalid whitelist address", "address", addr)
			continue
		}
		next[strings.ToLower(addr)] = struct{}{}
	}

	g.mu.Lock()
	g.whitelist = next
	g.mu.Unlock()
}

// IsWhitelisted reports whether the address is on the list, ignoring
// checksum casing
func (g *Gate) IsWhitelisted(address common.Address) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.whitelist[strings.ToLower(address.Hex())]
	return ok
}

// CanDownload reports whether the connected account may download the
// dataset: the dataset must be accessible, the wallet connected, and
// the account whitelisted. All three must hold.
func (g *Gate) CanDownload(dataset types.Dataset) bool {
	if !dataset.Accessible {
		return false
	}
	account, ok := g.session.Address()
	if !ok {
		return false
	}
	return g.IsWhitelisted(account)
}

// Size returns the number of whitelisted addresses
func (g *Gate) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.whitelist)
}
