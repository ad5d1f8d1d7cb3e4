package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/descilabs/launchpad/internal/access"
	"github.com/descilabs/launchpad/internal/chain"
	"github.com/descilabs/launchpad/internal/config"
	"github.com/descilabs/launchpad/internal/curation"
	"github.com/descilabs/launchpad/internal/download"
	"github.com/descilabs/launchpad/internal/flow"
	"github.com/descilabs/launchpad/internal/logging"
	"github.com/descilabs/launchpad/internal/metrics"
	"github.com/descilabs/launchpad/internal/staking"
	"github.com/descilabs/launchpad/internal/token"
	"github.com/descilabs/launchpad/internal/util"
	"github.com/descilabs/launchpad/internal/wallet"
	"github.com/descilabs/launchpad/pkg/types"
	"golang.org/x/term"
)

// App bundles the connected session and the contract facades the
// commands operate on. Build one with ConnectApp, tear it down with
// Close.
type App struct {
	Cfg      *config.Config
	Session  *wallet.Session
	Token    *token.ERC20
	Curation *curation.Service
	Staking  *staking.Service // nil until the project launches
	Gate     *access.Gate
	Metrics  *metrics.Metrics

	cfgPath    string
	metricsSrv *http.Server
}

// ConnectApp loads config, unlocks the wallet, connects to the chain,
// and wires the contract facades.
func ConnectApp(ctx context.Context) (*App, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	applyLogConfig(cfg)

	session := wallet.NewSession(chainConfig(cfg), cfg.Wallet.KeystoreDir)

	password, err := cfg.WalletPassword()
	if err != nil {
		return nil, err
	}
	if password == "" {
		fmt.Fprint(os.Stderr, "Enter wallet password: ")
		password, err = readPasswordNoEcho()
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
	}

	if err := session.Connect(ctx, password); err != nil {
		return nil, err
	}

	app := &App{
		Cfg:     cfg,
		Session: session,
		Metrics: metrics.New(),
		cfgPath: configPath(),
	}
	if err := app.wireContracts(ctx); err != nil {
		session.Disconnect()
		return nil, err
	}
	app.Gate = access.NewGate(session, cfg.Download.Whitelist)

	if MetricsAddr != "" {
		if _, err := app.ServeMetrics(MetricsAddr); err != nil {
			app.Close()
			return nil, err
		}
	}
	return app, nil
}

// wireContracts builds the token, curation, and staking facades from
// the configured addresses. Staking stays nil until the curation round
// reports a launch.
func (a *App) wireContracts(ctx context.Context) error {
	client := a.Session.Client()

	if a.Cfg.Contracts.BioToken != "" {
		erc20, err := token.NewERC20(client, common.HexToAddress(a.Cfg.Contracts.BioToken))
		if err != nil {
			return fmt.Errorf("failed to bind token contract: %w", err)
		}
		a.Token = erc20
	}

	if a.Cfg.Contracts.Curate != "" {
		if a.Token == nil {
			return fmt.Errorf("contracts.bio_token must be set when contracts.curate is set")
		}
		contract, err := curation.NewContract(client, common.HexToAddress(a.Cfg.Contracts.Curate))
		if err != nil {
			return fmt.Errorf("failed to bind curation contract: %w", err)
		}
		a.Curation = curation.NewService(a.Session, contract, a.Token, flow.NewTracker(), a.Metrics)

		launch, err := a.Curation.LaunchData(ctx)
		if err != nil {
			logging.Warn("failed to read launch data", logging.Err(err))
			launch = types.ProjectLaunchData{}
		}
		if launch.Launched {
			pool, err := staking.NewPool(client, launch.StakingContract)
			if err != nil {
				return fmt.Errorf("failed to bind staking contract: %w", err)
			}
			a.Staking = staking.NewService(a.Session, pool, a.Token, launch, flow.NewTracker(), a.Metrics)
		}
	} else if a.Cfg.Contracts.Staking != "" {
		// Direct staking address for already-launched projects that
		// skip the curation round.
		pool, err := staking.NewPool(client, common.HexToAddress(a.Cfg.Contracts.Staking))
		if err != nil {
			return fmt.Errorf("failed to bind staking contract: %w", err)
		}
		launch := types.ProjectLaunchData{
			StakingContract: common.HexToAddress(a.Cfg.Contracts.Staking),
			Launched:        true,
		}
		if a.Token != nil {
			launch.BioToken = a.Token.Address()
		}
		a.Staking = staking.NewService(a.Session, pool, a.Token, launch, flow.NewTracker(), a.Metrics)
	}

	return nil
}

// Downloader builds the dataset downloader for this session
func (a *App) Downloader() *download.Downloader {
	resetDelay := time.Duration(a.Cfg.Download.ResetDelaySecs) * time.Second
	return download.NewDownloader(a.Gate, a.Cfg.Download.Dir, resetDelay, a.Metrics)
}

// WatchWhitelist hot-reloads the download whitelist when the config
// file is rewritten. Runs until ctx is canceled; used by long-running
// commands so a whitelist edit takes effect without a restart.
func (a *App) WatchWhitelist(ctx context.Context) error {
	return config.Watch(ctx, a.cfgPath, func(cfg *config.Config) {
		a.Gate.Replace(cfg.Download.Whitelist)
	})
}

// ServeMetrics exposes the Prometheus registry on addr and returns the
// bound address. The listener is torn down by Close.
func (a *App) ServeMetrics(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())
	srv := &http.Server{Handler: mux}
	a.metricsSrv = srv

	util.SafeGoWithName("metrics-server", func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Warn("metrics server stopped", logging.Err(err))
		}
	})
	return ln.Addr().String(), nil
}

// Close disconnects the session and stops the metrics listener
func (a *App) Close() {
	if a.metricsSrv != nil {
		a.metricsSrv.Close()
		a.metricsSrv = nil
	}
	a.Session.Disconnect()
}

// WatchStatus prints tracker status lines as an operation progresses
func WatchStatus(tracker *flow.Tracker) {
	tracker.OnStatus(func(msg string) {
		if msg != "" {
			Info(msg)
		}
	})
}

func chainConfig(cfg *config.Config) *chain.Config {
	gwei := big.NewInt(1e9)
	return &chain.Config{
		RPCURL:        cfg.Chain.RPCURL,
		ChainID:       cfg.Chain.ChainID,
		Confirmations: cfg.Chain.Confirmations,
		MaxGasPrice:   new(big.Int).Mul(big.NewInt(cfg.Chain.MaxGasPriceGwei), gwei),
		RetryConfig:   util.DefaultRetryConfig(),
	}
}

func applyLogConfig(cfg *config.Config) {
	switch cfg.Log.Level {
	case "debug":
		logging.SetLevel(slog.LevelDebug)
	case "warn":
		logging.SetLevel(slog.LevelWarn)
	case "error":
		logging.SetLevel(slog.LevelError)
	default:
		logging.SetLevel(slog.LevelInfo)
	}
	if cfg.Log.Format == "text" {
		logging.SetTextOutput(os.Stderr)
	}
}

// readPasswordNoEcho reads a line from stdin with echo disabled.
func readPasswordNoEcho() (string, error) {
	password, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	return string(password), nil
}

// NativeSymbol returns the configured native coin symbol
func (a *App) NativeSymbol() string {
	if a.Cfg.Chain.NativeSymbol != "" {
		return a.Cfg.Chain.NativeSymbol
	}
	return "IP"
}
