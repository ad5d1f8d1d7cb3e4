package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/descilabs/launchpad/pkg/types"
	"gopkg.in/yaml.v3"
)

// Config is the complete launchpad client configuration
type Config struct {
	Chain     ChainConfig     `yaml:"chain"`
	Contracts ContractsConfig `yaml:"contracts"`
	Wallet    WalletConfig    `yaml:"wallet"`
	Download  DownloadConfig  `yaml:"download"`
	Log       LogConfig       `yaml:"log"`
}

// ChainConfig contains JSON-RPC endpoint settings
type ChainConfig struct {
	RPCURL          string `yaml:"rpc_url"`
	ChainID         int64  `yaml:"chain_id"`
	Confirmations   int    `yaml:"confirmations"`
	MaxGasPriceGwei int64  `yaml:"max_gas_price_gwei"`
	NativeSymbol    string `yaml:"native_symbol"`
}

// ContractsConfig holds the deployed contract addresses
type ContractsConfig struct {
	Curate   string `yaml:"curate"`
	Staking  string `yaml:"staking"`
	BioToken string `yaml:"bio_token"`
}

// WalletConfig contains keystore settings
type WalletConfig struct {
	KeystoreDir  string `yaml:"keystore_dir"`
	PasswordFile string `yaml:"password_file"`
}

// DownloadConfig contains dataset marketplace settings. The whitelist
// is a UX gate only: it is client-side, public, and unenforced at the
// data-serving boundary.
type DownloadConfig struct {
	Dir            string          `yaml:"dir"`
	Whitelist      []string        `yaml:"whitelist"`
	Datasets       []types.Dataset `yaml:"datasets"`
	ResetDelaySecs int             `yaml:"reset_delay_secs"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // "json" or "text"
}

// DefaultConfig returns the default configuration (Story testnet)
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	baseDir := filepath.Join(homeDir, ".launchpad")

	return &Config{
		Chain: ChainConfig{
			RPCURL:          "https://testnet.storyrpc.io",
			ChainID:         1315,
			Confirmations:   1,
			MaxGasPriceGwei: 100,
			NativeSymbol:    "IP",
		},
		Contracts: ContractsConfig{},
		Wallet: WalletConfig{
			KeystoreDir: filepath.Join(baseDir, "keystore"),
		},
		Download: DownloadConfig{
			Dir: filepath.Join(baseDir, "downloads"),
			Whitelist: []string{
				"0x15cC412BEc3623a079FD46eD7d3d3ECa802884ca",
			},
			ResetDelaySecs: 2,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".launchpad", "config.yaml")
}

// Load reads a config file, layered over defaults. A missing file is
// not an error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path, creating parent directories
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// Validate checks the configuration for inconsistencies
func (c *Config) Validate() error {
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain.rpc_url is required")
	}
	if c.Chain.ChainID <= 0 {
		return fmt.Errorf("chain.chain_id must be positive")
	}
	for _, addr := range []struct{ name, hex string }{
		{"contracts.curate", c.Contracts.Curate},
		{"contracts.staking", c.Contracts.Staking},
		{"contracts.bio_token", c.Contracts.BioToken},
	} {
		if addr.hex != "" && !common.IsHexAddress(addr.hex) {
			return fmt.Errorf("%s: invalid address %q", addr.name, addr.hex)
		}
	}
	for _, w := range c.Download.Whitelist {
		if !common.IsHexAddress(w) {
			return fmt.Errorf("download.whitelist: invalid address %q", w)
		}
	}
	switch c.Log.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("log.format must be \"json\" or \"text\"")
	}
	return nil
}

// WalletPassword resolves the wallet password from, in order: the
// LAUNCHPAD_WALLET_PASSWORD environment variable, then the configured
// password file. Returns "" when neither is set; the CLI prompts.
func (c *Config) WalletPassword() (string, error) {
	if pw := os.Getenv("LAUNCHPAD_WALLET_PASSWORD"); pw != "" {
		return pw, nil
	}
	if c.Wallet.PasswordFile != "" {
		data, err := os.ReadFile(c.Wallet.PasswordFile)
		if err != nil {
			return "", fmt.Errorf("failed to read password file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return "", nil
}
