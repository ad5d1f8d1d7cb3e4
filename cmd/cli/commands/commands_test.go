package commands

import (
	"context"
	"io"
	"math/big"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/descilabs/launchpad/internal/access"
	"github.com/descilabs/launchpad/internal/config"
	"github.com/descilabs/launchpad/internal/metrics"
	"github.com/descilabs/launchpad/internal/wallet"
)

var testAccount = common.HexToAddress("0x15cC412BEc3623a079FD46eD7d3d3ECa802884ca")

func TestNewWalletCmd(t *testing.T) {
	cmd := NewWalletCmd()

	if cmd == nil {
		t.Fatal("NewWalletCmd returned nil")
	}

	if cmd.Use != "wallet" {
		t.Errorf("Use mismatch: got %s, want wallet", cmd.Use)
	}

	subcommands := map[string]bool{}
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}
	for _, want := range []string{"create", "import", "show"} {
		if !subcommands[want] {
			t.Errorf("wallet %s subcommand should exist", want)
		}
	}
}

func TestNewStakeCmd(t *testing.T) {
	cmd := NewStakeCmd()

	if cmd == nil {
		t.Fatal("NewStakeCmd returned nil")
	}

	if cmd.Use != "stake <amount>" {
		t.Errorf("Use mismatch: got %s, want stake <amount>", cmd.Use)
	}
}

func TestNewCurateCmd(t *testing.T) {
	cmd := NewCurateCmd()

	if cmd == nil {
		t.Fatal("NewCurateCmd returned nil")
	}

	subcommands := map[string]bool{}
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}
	for _, want := range []string{"commit", "withdraw", "refund", "launch"} {
		if !subcommands[want] {
			t.Errorf("curate %s subcommand should exist", want)
		}
	}
}

func TestNewDataCmd(t *testing.T) {
	cmd := NewDataCmd()

	if cmd == nil {
		t.Fatal("NewDataCmd returned nil")
	}

	subcommands := map[string]bool{}
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}
	for _, want := range []string{"list", "projects", "download"} {
		if !subcommands[want] {
			t.Errorf("data %s subcommand should exist", want)
		}
	}
}

func TestStageBadgeShowsStageName(t *testing.T) {
	for _, stage := range []string{"curating", "fundraising", "amm", "staking"} {
		if !strings.Contains(StageBadge(stage), stage) {
			t.Errorf("Badge for %q should contain the stage name", stage)
		}
	}
}

func TestWatchWhitelistReloadsGate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := config.DefaultConfig()
	cfg.Download.Whitelist = nil
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	session := wallet.NewMockSession(testAccount, big.NewInt(0))
	app := &App{
		Gate:    access.NewGate(session, nil),
		cfgPath: path,
	}
	if app.Gate.IsWhitelisted(testAccount) {
		t.Fatal("Gate should start empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := app.WatchWhitelist(ctx); err != nil {
		t.Fatalf("WatchWhitelist failed: %v", err)
	}

	cfg.Download.Whitelist = []string{testAccount.Hex()}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if app.Gate.IsWhitelisted(testAccount) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("Expected the whitelist edit to reach the gate")
}

func TestServeMetricsExposesCounters(t *testing.T) {
	app := &App{
		Session: wallet.NewMockSession(testAccount, big.NewInt(0)),
		Metrics: metrics.New(),
	}
	app.Metrics.TxSubmitted("stake")

	addr, err := app.ServeMetrics("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ServeMetrics failed: %v", err)
	}
	defer app.Close()

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	if !strings.Contains(string(body), `launchpad_tx_submitted_total{action="stake"} 1`) {
		t.Errorf("Metrics output missing counter:\n%s", body)
	}
}

func TestFormatAddress(t *testing.T) {
	addr := "0x15cC412BEc3623a079FD46eD7d3d3ECa802884ca"
	short := FormatAddress(addr)
	if !strings.HasPrefix(short, "0x15cC41") {
		t.Errorf("Unexpected prefix in %s", short)
	}
	if !strings.HasSuffix(short, "2884ca") {
		t.Errorf("Unexpected suffix in %s", short)
	}
	if FormatAddress("0xshort") != "0xshort" {
		t.Error("Short strings should pass through unchanged")
	}
}

func TestFormatAmount(t *testing.T) {
	wei, _ := new(big.Int).SetString("1500000000000000000", 10)
	if got := FormatAmount(wei, "BIO"); got != "1.5 BIO" {
		t.Errorf("FormatAmount = %q, want 1.5 BIO", got)
	}
	if got := FormatAmount(nil, "IP"); got != "- IP" {
		t.Errorf("FormatAmount(nil) = %q, want - IP", got)
	}
}

func TestStatusBoxPlain(t *testing.T) {
	out := statusBoxPlain("Wallet", [][2]string{{"Address", "0xabc"}})
	if !strings.Contains(out, "Wallet") || !strings.Contains(out, "0xabc") {
		t.Errorf("Plain status box missing content:\n%s", out)
	}
}

func TestRenderTablePlain(t *testing.T) {
	out := renderTablePlain([]string{"ID", "Name"}, [][]string{{"ds1", "Sleep Data"}})
	if !strings.Contains(out, "ID") || !strings.Contains(out, "Sleep Data") {
		t.Errorf("Plain table missing content:\n%s", out)
	}
}
