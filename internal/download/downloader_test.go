package download

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/descilabs/launchpad/internal/access"
	"github.com/descilabs/launchpad/internal/wallet"
	"github.com/descilabs/launchpad/pkg/types"
)

var testAccount = common.HexToAddress("0x15cC412BEc3623a079FD46eD7d3d3ECa802884ca")

func newTestDownloader(t *testing.T) (*Downloader, string) {
	t.Helper()
	session := wallet.NewMockSession(testAccount, big.NewInt(0))
	gate := access.NewGate(session, []string{testAccount.Hex()})
	dir := t.TempDir()
	return NewDownloader(gate, dir, 50*time.Millisecond, nil), dir
}

func TestDownloadSavesFile(t *testing.T) {
	payload := bytes.Repeat([]byte("a"), 1000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
		flusher := w.(http.Flusher)
		w.Write(payload[:400])
		flusher.Flush()
		time.Sleep(10 * time.Millisecond)
		w.Write(payload[400:])
	}))
	defer server.Close()

	d, dir := newTestDownloader(t)
	dataset := types.Dataset{
		ID:          "ds1",
		Accessible:  true,
		DownloadURL: server.URL + "/dataset.zip",
	}

	var percents []int
	d.OnProgress(func(id string, p types.DownloadProgress) {
		if p.Status == types.DownloadInProgress && p.Determinate {
			percents = append(percents, p.Percent)
		}
	})

	saved, err := d.Download(context.Background(), dataset)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if saved != filepath.Join(dir, "dataset.zip") {
		t.Errorf("Unexpected save path %s", saved)
	}

	data, err := os.ReadFile(saved)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("Saved file differs: got %d bytes, want %d", len(data), len(payload))
	}

	p := d.Progress("ds1")
	if p.Status != types.DownloadSucceeded {
		t.Errorf("Expected success status, got %s", p.Status)
	}
	if !p.Determinate || p.Percent != 100 {
		t.Errorf("Expected determinate 100%%, got determinate=%v percent=%d", p.Determinate, p.Percent)
	}

	// The first flushed chunk is 400 of 1000 bytes, so the stream must
	// report 40% before it reaches 100%.
	idx40, idx100 := -1, -1
	for i, pct := range percents {
		if pct == 40 && idx40 < 0 {
			idx40 = i
		}
		if pct == 100 && idx100 < 0 {
			idx100 = i
		}
	}
	if idx40 < 0 {
		t.Errorf("Expected a 40%% update, got %v", percents)
	}
	if idx100 < 0 || (idx40 >= 0 && idx40 > idx100) {
		t.Errorf("Expected 40%% before 100%%, got %v", percents)
	}
}

func TestDownloadProgressIsMonotonic(t *testing.T) {
	payload := bytes.Repeat([]byte("b"), 200_000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
		flusher := w.(http.Flusher)
		for off := 0; off < len(payload); off += 50_000 {
			w.Write(payload[off : off+50_000])
			flusher.Flush()
		}
	}))
	defer server.Close()

	d, _ := newTestDownloader(t)

	percents := make(chan int, 64)
	d.OnProgress(func(id string, p types.DownloadProgress) {
		if p.Status == types.DownloadInProgress && p.Determinate {
			select {
			case percents <- p.Percent:
			default:
			}
		}
	})

	dataset := types.Dataset{ID: "ds2", Accessible: true, DownloadURL: server.URL + "/big.bin"}
	if _, err := d.Download(context.Background(), dataset); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	close(percents)

	prev := -1
	for pct := range percents {
		if pct < prev {
			t.Errorf("Progress went backwards: %d after %d", pct, prev)
		}
		prev = pct
	}
}

func TestDownloadWithoutContentLengthIsIndeterminate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Write(bytes.Repeat([]byte("c"), 500))
		flusher.Flush()
		time.Sleep(10 * time.Millisecond)
		w.Write(bytes.Repeat([]byte("c"), 500))
	}))
	defer server.Close()

	d, _ := newTestDownloader(t)
	sawIndeterminate := false
	d.OnProgress(func(id string, p types.DownloadProgress) {
		if p.Status == types.DownloadInProgress && !p.Determinate {
			sawIndeterminate = true
		}
	})

	dataset := types.Dataset{ID: "ds3", Accessible: true, DownloadURL: server.URL + "/stream"}
	if _, err := d.Download(context.Background(), dataset); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if !sawIndeterminate {
		t.Error("Expected indeterminate progress without Content-Length")
	}
}

func TestDownloadErrorAutoResets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	d, _ := newTestDownloader(t)
	dataset := types.Dataset{ID: "ds4", Accessible: true, DownloadURL: server.URL + "/x"}

	if _, err := d.Download(context.Background(), dataset); err == nil {
		t.Fatal("Expected download to fail on 403")
	}
	if d.Progress("ds4").Status != types.DownloadFailed {
		t.Errorf("Expected error status, got %s", d.Progress("ds4").Status)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if d.Progress("ds4").Status == types.DownloadIdle {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("Expected status to auto-reset to idle")
}

func TestDownloadGateRejection(t *testing.T) {
	session := wallet.NewMockSession(testAccount, big.NewInt(0))
	gate := access.NewGate(session, nil) // empty whitelist
	d := NewDownloader(gate, t.TempDir(), 0, nil)

	dataset := types.Dataset{ID: "ds5", Accessible: true, DownloadURL: "http://localhost/x"}
	if _, err := d.Download(context.Background(), dataset); err != ErrNotAllowed {
		t.Errorf("Expected ErrNotAllowed, got %v", err)
	}
	if d.Progress("ds5").Status != types.DownloadIdle {
		t.Error("Rejected download must not change progress state")
	}
}

func TestDuplicateDownloadRejected(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "10")
		w.Write([]byte("12345"))
		w.(http.Flusher).Flush()
		<-release
		w.Write([]byte("67890"))
	}))
	defer server.Close()

	d, _ := newTestDownloader(t)
	dataset := types.Dataset{ID: "ds6", Accessible: true, DownloadURL: server.URL + "/slow"}

	done := make(chan error, 1)
	go func() {
		_, err := d.Download(context.Background(), dataset)
		done <- err
	}()

	deadline := time.Now().Add(time.Second)
	for d.Progress("ds6").Status != types.DownloadInProgress {
		if time.Now().After(deadline) {
			t.Fatal("First download never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := d.Download(context.Background(), dataset); err != ErrDownloadInFlight {
		t.Errorf("Expected ErrDownloadInFlight, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("First download failed: %v", err)
	}
}
