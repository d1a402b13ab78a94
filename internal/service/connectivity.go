package service

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultProbeInterval is how often connectivity is re-checked.
const DefaultProbeInterval = 30 * time.Second

// OnlineSetter receives connectivity transitions.
type OnlineSetter interface {
	SetOnline(online bool)
}

// ConnectivityWatcher probes a URL on an interval and reports the result.
type ConnectivityWatcher struct {
	target   OnlineSetter
	client   *http.Client
	probeURL string
	interval time.Duration
	logger   *logrus.Logger
}

// NewConnectivityWatcher creates a watcher. A zero interval falls back to
// DefaultProbeInterval.
func NewConnectivityWatcher(target OnlineSetter, probeURL string, interval time.Duration, client *http.Client, logger *logrus.Logger) *ConnectivityWatcher {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &ConnectivityWatcher{
		target:   target,
		client:   client,
		probeURL: probeURL,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled.
func (w *ConnectivityWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.target.SetOnline(w.Probe(ctx))
		}
	}
}

// Probe reports whether the probe URL answered with anything below 500.
func (w *ConnectivityWatcher) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, w.probeURL, nil)
	if err != nil {
		w.logger.WithError(err).Warn("Invalid connectivity probe URL")
		return false
	}
	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.WithError(err).Debug("Connectivity probe failed")
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
