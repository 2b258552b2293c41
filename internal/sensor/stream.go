package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Reconnect backoff bounds for RemoteStream.
const (
	streamBackoffMin = 250 * time.Millisecond
	streamBackoffMax = 5 * time.Second
)

// StreamURL derives the push endpoint from a state URL:
// http://host:port/state becomes ws://host:port/ws.
func StreamURL(stateURL string) (string, error) {
	u, err := url.Parse(stateURL)
	if err != nil {
		return "", fmt.Errorf("sensor: parse %q: %w", stateURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("sensor: unsupported scheme %q", u.Scheme)
	}
	dir := u.Path
	if i := strings.LastIndex(dir, "/"); i >= 0 {
		dir = dir[:i]
	}
	u.Path = dir + "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

// RemoteStream subscribes to a websocket sensor feed and publishes each
// message into a Slot. Disconnects are retried with backoff and never fatal.
type RemoteStream struct {
	url    string
	slot   *Slot
	log    *slog.Logger
	dialer *websocket.Dialer
	now    func() time.Time
}

// NewRemoteStream returns a stream client for the ws:// URL wsURL.
func NewRemoteStream(wsURL string, slot *Slot, logger *slog.Logger) *RemoteStream {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteStream{
		url:    wsURL,
		slot:   slot,
		log:    logger,
		dialer: &websocket.Dialer{HandshakeTimeout: 2 * time.Second},
		now:    time.Now,
	}
}

// Run connects and consumes messages until ctx is cancelled.
func (s *RemoteStream) Run(ctx context.Context) {
	backoff := streamBackoffMin
	failing := false
	for ctx.Err() == nil {
		conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
		if err != nil {
			if !failing {
				failing = true
				s.log.Warn("sensor stream unavailable, retrying", "url", s.url, "err", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, streamBackoffMax)
			continue
		}

		if failing {
			s.log.Info("sensor stream connected", "url", s.url)
		} else {
			s.log.Debug("sensor stream connected", "url", s.url)
		}
		failing = false
		backoff = streamBackoffMin

		err = s.consume(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("sensor stream dropped", "err", err)
		failing = true
	}
}

func (s *RemoteStream) consume(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	prev, _ := s.slot.Latest()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		snap, err := ParsePayload(msg, prev, s.now())
		if err != nil {
			s.log.Debug("sensor stream: ignoring message", "err", err)
			continue
		}
		prev = snap
		s.slot.Store(snap)
	}
}
