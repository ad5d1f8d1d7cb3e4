package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrNoWallet means no keystore file exists: there is nothing to
	// connect with (the platform has no wallet installed).
	ErrNoWallet = errors.New("no wallet found")

	// ErrPasswordRejected means the keystore refused the supplied
	// password — the local equivalent of the user declining to sign.
	ErrPasswordRejected = errors.New("wallet password rejected")
)

// Keystore manages the encrypted geth V3 keystore file holding the
// account used for curation, staking, and downloads.
type Keystore struct {
	store      *keystore.KeyStore
	dir        string
	address    common.Address
	privateKey *ecdsa.PrivateKey
}

// LoadKeystore opens an existing wallet from the keystore directory.
// Returns ErrNoWallet if the directory holds no accounts.
func LoadKeystore(dir string) (*Keystore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}

	ks := keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP)
	accounts := ks.Accounts()
	if len(accounts) == 0 {
		return nil, ErrNoWallet
	}

	return &Keystore{
		store:   ks,
		dir:     dir,
		address: accounts[0].Address,
	}, nil
}

// CreateKeystore creates a new wallet in the keystore directory.
// Returns an error if a wallet already exists.
func CreateKeystore(dir string, password string) (*Keystore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}

	ks := keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP)
	if len(ks.Accounts()) > 0 {
		return nil, fmt.Errorf("wallet already exists in %s", dir)
	}

	account, err := ks.NewAccount(password)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	return &Keystore{
		store:   ks,
		dir:     dir,
		address: account.Address,
	}, nil
}

// ImportKeystore imports a hex private key into a new wallet.
// Returns an error if a wallet already exists.
func ImportKeystore(dir string, privKeyHex string, password string) (*Keystore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}

	ks := keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP)
	if len(ks.Accounts()) > 0 {
		return nil, fmt.Errorf("wallet already exists in %s", dir)
	}

	privateKey, err := crypto.HexToECDSA(privKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}

	account, err := ks.ImportECDSA(privateKey, password)
	if err != nil {
		return nil, fmt.Errorf("failed to import key: %w", err)
	}

	return &Keystore{
		store:   ks,
		dir:     dir,
		address: account.Address,
	}, nil
}

// Address returns the wallet address
func (k *Keystore) Address() common.Address {
	return k.address
}

// Dir returns the keystore directory path
func (k *Keystore) Dir() string {
	return k.dir
}

// PrivateKey decrypts and returns the signing key. The decrypted key
// is cached until ClearCachedKey.
func (k *Keystore) PrivateKey(password string) (*ecdsa.PrivateKey, error) {
	if k.privateKey != nil {
		return k.privateKey, nil
	}

	accounts := k.store.Accounts()
	if len(accounts) == 0 {
		return nil, ErrNoWallet
	}

	keyJSON, err := os.ReadFile(accounts[0].URL.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPasswordRejected, err)
	}

	k.privateKey = key.PrivateKey
	return key.PrivateKey, nil
}

// ClearCachedKey zeros and drops the cached private key. It will be
// re-derived from the keystore on next use.
func (k *Keystore) ClearCachedKey() {
	if k.privateKey != nil {
		k.privateKey.D.SetUint64(0)
		k.privateKey = nil
	}
}
