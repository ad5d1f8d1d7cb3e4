// Package download streams datasets from the marketplace to local
// disk, reporting chunked progress as the bytes arrive.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/descilabs/launchpad/internal/access"
	"github.com/descilabs/launchpad/internal/logging"
	"github.com/descilabs/launchpad/internal/metrics"
	"github.com/descilabs/launchpad/internal/util"
	"github.com/descilabs/launchpad/pkg/types"
)

var (
	// ErrNotAllowed means the access gate rejected the download
	ErrNotAllowed = errors.New("dataset not available for this account")

	// ErrDownloadInFlight means this dataset is already downloading
	ErrDownloadInFlight = errors.New("download already in progress")
)

const (
	chunkSize         = 32 * 1024
	defaultResetDelay = 2 * time.Second
)

// Downloader streams whitelisted datasets to the download directory.
// Each dataset carries its own progress state; downloads of distinct
// datasets may run concurrently, a second download of the same dataset
// is rejected while the first is in flight.
type Downloader struct {
	gate    *access.Gate
	client  *http.Client
	dir     string
	metrics *metrics.Metrics

	resetDelay time.Duration

	mu       sync.Mutex
	progress map[string]types.DownloadProgress
	seqs     map[string]uint64

	onProgress func(datasetID string, p types.DownloadProgress)
}

// NewDownloader creates a downloader writing into dir
func NewDownloader(gate *access.Gate, dir string, resetDelay time.Duration, m *metrics.Metrics) *Downloader {
	if resetDelay <= 0 {
		resetDelay = defaultResetDelay
	}
	return &Downloader{
		gate:       gate,
		client:     &http.Client{Timeout: 10 * time.Minute},
		dir:        dir,
		metrics:    m,
		resetDelay: resetDelay,
		progress:   make(map[string]types.DownloadProgress),
		seqs:       make(map[string]uint64),
	}
}

// OnProgress registers a callback invoked on every progress change
func (d *Downloader) OnProgress(fn func(datasetID string, p types.DownloadProgress)) {
	d.mu.Lock()
	d.onProgress = fn
	d.mu.Unlock()
}

// Progress returns the current progress for a dataset
func (d *Downloader) Progress(datasetID string) types.DownloadProgress {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.progress[datasetID]; ok {
		return p
	}
	return types.DownloadProgress{Status: types.DownloadIdle}
}

// Download streams the dataset to disk. Progress moves through
// downloading to success or error, then auto-resets to idle after the
// reset delay. Returns the saved file path.
func (d *Downloader) Download(ctx context.Context, dataset types.Dataset) (string, error) {
	if !d.gate.CanDownload(dataset) {
		return "", ErrNotAllowed
	}
	if err := d.begin(dataset.ID); err != nil {
		return "", err
	}
	d.notify(dataset.ID)

	savedPath, err := d.fetch(ctx, dataset)
	if err != nil {
		d.finish(dataset.ID, types.DownloadFailed)
		d.metrics.DownloadFinished("error")
		logging.Error("dataset download failed",
			"dataset", dataset.ID, logging.Err(err))
		return "", err
	}

	d.finish(dataset.ID, types.DownloadSucceeded)
	d.metrics.DownloadFinished("success")
	logging.Info("dataset downloaded",
		"dataset", dataset.ID, "path", savedPath)
	return savedPath, nil
}

func (d *Downloader) fetch(ctx context.Context, dataset types.Dataset) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dataset.DownloadURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid download url: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed: status %d", resp.StatusCode)
	}

	fileName := fileNameFor(dataset)
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}
	savedPath := filepath.Join(d.dir, fileName)

	out, err := os.Create(savedPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close()

	// A missing Content-Length leaves the bar indeterminate.
	total := resp.ContentLength
	determinate := total > 0

	var received int64
	buf := make([]byte, chunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return "", fmt.Errorf("failed to write file: %w", writeErr)
			}
			received += int64(n)
			percent := 0
			if determinate {
				percent = int(received * 100 / total)
				if percent > 100 {
					percent = 100
				}
			}
			d.update(dataset.ID, types.DownloadProgress{
				Status:      types.DownloadInProgress,
				Percent:     percent,
				Determinate: determinate,
				FileName:    fileName,
			})
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", fmt.Errorf("download stream failed: %w", readErr)
		}
	}

	return savedPath, nil
}

// fileNameFor derives the saved file name from the URL path, falling
// back to the dataset id.
func fileNameFor(dataset types.Dataset) string {
	if u, err := url.Parse(dataset.DownloadURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "." && base != "/" {
			return base
		}
	}
	return dataset.ID + ".dat"
}

func (d *Downloader) begin(datasetID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.progress[datasetID].Status == types.DownloadInProgress {
		return ErrDownloadInFlight
	}
	d.seqs[datasetID]++
	d.progress[datasetID] = types.DownloadProgress{Status: types.DownloadInProgress}
	return nil
}

func (d *Downloader) update(datasetID string, p types.DownloadProgress) {
	d.mu.Lock()
	d.progress[datasetID] = p
	d.mu.Unlock()
	d.notify(datasetID)
}

// finish settles the download and schedules the reset back to idle. A
// newer download of the same dataset suppresses a stale reset.
func (d *Downloader) finish(datasetID string, status types.DownloadStatus) {
	d.mu.Lock()
	p := d.progress[datasetID]
	p.Status = status
	if status == types.DownloadSucceeded {
		p.Percent = 100
	}
	d.progress[datasetID] = p
	seq := d.seqs[datasetID]
	d.mu.Unlock()
	d.notify(datasetID)

	util.SafeGoWithName("download-reset", func() {
		time.Sleep(d.resetDelay)
		d.mu.Lock()
		if d.seqs[datasetID] != seq {
			d.mu.Unlock()
			return
		}
		d.progress[datasetID] = types.DownloadProgress{Status: types.DownloadIdle}
		d.mu.Unlock()
		d.notify(datasetID)
	})
}

// notify invokes the progress callback synchronously so observers see
// updates in order. Must not be called with mu held.
func (d *Downloader) notify(datasetID string) {
	d.mu.Lock()
	fn := d.onProgress
	p := d.progress[datasetID]
	d.mu.Unlock()
	if fn != nil {
		fn(datasetID, p)
	}
}
