package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/descilabs/launchpad/internal/config"
	"github.com/descilabs/launchpad/internal/wallet"
	"github.com/spf13/cobra"
)

// NewWalletCmd creates the wallet command group
func NewWalletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage the launchpad wallet",
		Long: `Manage the Ethereum wallet used for curation, staking, and dataset access.

The wallet is stored as an encrypted keystore file (geth V3 format).
For non-interactive use, supply the password via the
LAUNCHPAD_WALLET_PASSWORD environment variable or wallet.password_file
in config.yaml.

Examples:
  launchpad wallet create   # Generate a new wallet
  launchpad wallet import   # Import from a private key
  launchpad wallet show     # Show address and keystore path`,
	}

	cmd.AddCommand(newWalletCreateCmd())
	cmd.AddCommand(newWalletImportCmd())
	cmd.AddCommand(newWalletShowCmd())

	return cmd
}

func keystoreDirFromConfig() string {
	cfg, err := GetConfig()
	if err != nil {
		return config.DefaultConfig().Wallet.KeystoreDir
	}
	return cfg.Wallet.KeystoreDir
}

// promptNewPassword asks for a password twice with a retry loop.
func promptNewPassword() (string, error) {
	const maxAttempts = 3
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		fmt.Fprint(os.Stderr, "Enter wallet password: ")
		password, err := readPasswordNoEcho()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)

		if len(password) < 8 {
			Warning("Password must be at least 8 characters. Try again.")
			continue
		}

		fmt.Fprint(os.Stderr, "Confirm wallet password: ")
		confirm, err := readPasswordNoEcho()
		if err != nil {
			return "", fmt.Errorf("failed to read confirmation: %w", err)
		}
		fmt.Fprintln(os.Stderr)

		if password != confirm {
			Warning("Passwords do not match. Try again.")
			continue
		}
		return password, nil
	}
	return "", fmt.Errorf("too many failed attempts")
}

func newWalletCreateCmd() *cobra.Command {
	var keystoreDir string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new wallet",
		Long:  "Create a new Ethereum wallet with a password-encrypted keystore file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if keystoreDir == "" {
				keystoreDir = keystoreDirFromConfig()
			}

			if existing, err := wallet.LoadKeystore(keystoreDir); err == nil {
				return fmt.Errorf("wallet already exists at %s (address: %s)", keystoreDir, existing.Address().Hex())
			} else if !errors.Is(err, wallet.ErrNoWallet) {
				return fmt.Errorf("failed to check keystore: %w", err)
			}

			password, err := promptNewPassword()
			if err != nil {
				return err
			}

			ks, err := wallet.CreateKeystore(keystoreDir, password)
			if err != nil {
				return fmt.Errorf("failed to create wallet: %w", err)
			}

			fmt.Println()
			Success("Wallet created!")
			fmt.Println(StatusBox("Wallet", [][2]string{
				{"Address", ks.Address().Hex()},
				{"Keystore", keystoreDir},
			}))
			fmt.Println()
			Warning("Back up your keystore directory and remember your password.")
			fmt.Println(Hint("If you lose either, your funds are unrecoverable."))
			return nil
		},
	}

	cmd.Flags().StringVar(&keystoreDir, "keystore", "", "Path to keystore directory")

	return cmd
}

func newWalletImportCmd() *cobra.Command {
	var keystoreDir string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a wallet from a private key",
		Long:  "Import an existing Ethereum private key into an encrypted keystore file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if keystoreDir == "" {
				keystoreDir = keystoreDirFromConfig()
			}

			if existing, err := wallet.LoadKeystore(keystoreDir); err == nil {
				return fmt.Errorf("wallet already exists at %s (address: %s)", keystoreDir, existing.Address().Hex())
			} else if !errors.Is(err, wallet.ErrNoWallet) {
				return fmt.Errorf("failed to check keystore: %w", err)
			}

			const maxAttempts = 3
			var privKeyHex string
			for attempt := 1; attempt <= maxAttempts; attempt++ {
				fmt.Fprint(os.Stderr, "Enter private key (hex, with or without 0x prefix): ")
				input, err := readPasswordNoEcho()
				if err != nil {
					return fmt.Errorf("failed to read private key: %w", err)
				}
				fmt.Fprintln(os.Stderr)

				input = strings.TrimPrefix(input, "0x")
				if len(input) != 64 {
					Warning(fmt.Sprintf("Private key must be 64 hex characters (32 bytes), got %d. Try again.", len(input)))
					continue
				}
				privKeyHex = input
				break
			}
			if privKeyHex == "" {
				return fmt.Errorf("too many failed attempts")
			}

			password, err := promptNewPassword()
			if err != nil {
				return err
			}

			ks, err := wallet.ImportKeystore(keystoreDir, privKeyHex, password)
			if err != nil {
				return fmt.Errorf("failed to import wallet: %w", err)
			}

			fmt.Println()
			Success("Wallet imported!")
			fmt.Println(StatusBox("Wallet", [][2]string{
				{"Address", ks.Address().Hex()},
				{"Keystore", keystoreDir},
			}))
			return nil
		},
	}

	cmd.Flags().StringVar(&keystoreDir, "keystore", "", "Path to keystore directory")

	return cmd
}

func newWalletShowCmd() *cobra.Command {
	var keystoreDir string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show wallet address and keystore path",
		Long:  "Display the wallet address and keystore directory. No password needed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if keystoreDir == "" {
				keystoreDir = keystoreDirFromConfig()
			}

			ks, err := wallet.LoadKeystore(keystoreDir)
			if errors.Is(err, wallet.ErrNoWallet) {
				Info("No wallet found.")
				fmt.Println(Hint("Create one with: launchpad wallet create"))
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to load wallet: %w", err)
			}

			fmt.Println(StatusBox("Wallet", [][2]string{
				{"Address", ks.Address().Hex()},
				{"Keystore", keystoreDir},
			}))
			return nil
		},
	}

	cmd.Flags().StringVar(&keystoreDir, "keystore", "", "Path to keystore directory")

	return cmd
}
