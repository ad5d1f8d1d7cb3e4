package wallet

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestLoadKeystoreEmpty(t *testing.T) {
	_, err := LoadKeystore(t.TempDir())
	if !errors.Is(err, ErrNoWallet) {
		t.Errorf("Expected ErrNoWallet for empty directory, got %v", err)
	}
}

func TestCreateAndLoadKeystore(t *testing.T) {
	dir := t.TempDir()

	created, err := CreateKeystore(dir, testPassword)
	if err != nil {
		t.Fatalf("CreateKeystore failed: %v", err)
	}
	if created.Address() == (common.Address{}) {
		t.Error("Created wallet should have a non-zero address")
	}

	if _, err := CreateKeystore(dir, testPassword); err == nil {
		t.Error("Second create in the same directory should fail")
	}

	loaded, err := LoadKeystore(dir)
	if err != nil {
		t.Fatalf("LoadKeystore failed: %v", err)
	}
	if loaded.Address() != created.Address() {
		t.Errorf("Loaded address %s differs from created %s",
			loaded.Address().Hex(), created.Address().Hex())
	}
}

func TestPrivateKeyDecryption(t *testing.T) {
	dir := t.TempDir()
	created, err := CreateKeystore(dir, testPassword)
	if err != nil {
		t.Fatalf("CreateKeystore failed: %v", err)
	}

	if _, err := created.PrivateKey("wrong"); !errors.Is(err, ErrPasswordRejected) {
		t.Errorf("Expected ErrPasswordRejected, got %v", err)
	}

	key, err := created.PrivateKey(testPassword)
	if err != nil {
		t.Fatalf("PrivateKey failed: %v", err)
	}
	if crypto.PubkeyToAddress(key.PublicKey) != created.Address() {
		t.Error("Decrypted key does not match wallet address")
	}

	created.ClearCachedKey()
	if _, err := created.PrivateKey(testPassword); err != nil {
		t.Errorf("Re-decrypt after ClearCachedKey failed: %v", err)
	}
}

func TestImportKeystore(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	keyHex := common.Bytes2Hex(crypto.FromECDSA(key))
	want := crypto.PubkeyToAddress(key.PublicKey)

	dir := t.TempDir()
	imported, err := ImportKeystore(dir, keyHex, testPassword)
	if err != nil {
		t.Fatalf("ImportKeystore failed: %v", err)
	}
	if imported.Address() != want {
		t.Errorf("Imported address %s, want %s", imported.Address().Hex(), want.Hex())
	}

	if _, err := ImportKeystore(dir, keyHex, testPassword); err == nil {
		t.Error("Import into an occupied directory should fail")
	}
}

func TestImportKeystoreInvalidHex(t *testing.T) {
	if _, err := ImportKeystore(t.TempDir(), "not-hex", testPassword); err == nil {
		t.Error("Expected error for invalid private key hex")
	}
}
