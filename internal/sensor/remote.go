package sensor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultPollTimeout bounds each sensor feed request.
const DefaultPollTimeout = 500 * time.Millisecond

// maxPayloadBytes caps how much of a response body is read.
const maxPayloadBytes = 64 << 10

// RemotePoll fetches readings from an HTTP JSON endpoint. Partial payloads
// are merged over the last good reading. Not safe for concurrent Read calls;
// a Poller owns it.
type RemotePoll struct {
	url     string
	client  *http.Client
	timeout time.Duration
	now     func() time.Time

	last    Snapshot
	lastErr error
}

// NewRemotePoll returns a poller source for url. timeout <= 0 selects
// DefaultPollTimeout.
func NewRemotePoll(url string, timeout time.Duration) *RemotePoll {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	return &RemotePoll{
		url:     url,
		client:  &http.Client{},
		timeout: timeout,
		now:     time.Now,
	}
}

// URL returns the endpoint being polled.
func (r *RemotePoll) URL() string { return r.url }

// Fetch performs one request and returns the merged snapshot.
func (r *RemotePoll) Fetch(ctx context.Context) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return r.last, fmt.Errorf("sensor: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return r.last, fmt.Errorf("sensor: fetch %s: %w", r.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return r.last, fmt.Errorf("sensor: fetch %s: status %d", r.url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return r.last, fmt.Errorf("sensor: read body: %w", err)
	}

	snap, err := ParsePayload(body, r.last, r.now())
	if err != nil {
		return r.last, err
	}
	r.last = snap
	return snap, nil
}

// Read implements Source. Any failure is reported as no update; the cause
// is kept for LastError.
func (r *RemotePoll) Read(ctx context.Context) (Snapshot, bool) {
	snap, err := r.Fetch(ctx)
	r.lastErr = err
	if err != nil {
		return Snapshot{}, false
	}
	return snap, true
}

// LastError returns the error from the most recent Read, or nil.
func (r *RemotePoll) LastError() error { return r.lastErr }
