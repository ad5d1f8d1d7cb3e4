package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCountersAppearInHandler(t *testing.T) {
	m := New()
	m.TxSubmitted("stake")
	m.TxConfirmed("stake")
	m.TxFailed("commit")
	m.ReadFailed("user_staked")
	m.DownloadFinished("success")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		`launchpad_tx_submitted_total{action="stake"} 1`,
		`launchpad_tx_confirmed_total{action="stake"} 1`,
		`launchpad_tx_failed_total{action="commit"} 1`,
		`launchpad_read_failures_total{source="user_staked"} 1`,
		`launchpad_downloads_total{status="success"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Metrics output missing %q", want)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.TxSubmitted("stake")
	m.TxConfirmed("stake")
	m.TxFailed("stake")
	m.ReadFailed("x")
	m.DownloadFinished("error")
}
