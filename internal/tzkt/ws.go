package tzkt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// HeadNotification announces a new chain head. Ingest loops use it to
// trigger incremental wallet syncs instead of polling on a timer.
type HeadNotification struct {
	Level     int64  `json:"level"`
	Hash      string `json:"hash"`
	Timestamp string `json:"timestamp"`
}

// HeadWatcherConfig configures reconnect and keepalive behavior.
type HeadWatcherConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultHeadWatcherConfig returns default watcher configuration.
func DefaultHeadWatcherConfig() HeadWatcherConfig {
	return HeadWatcherConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       120 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// HeadWatcher maintains a websocket subscription to a block-head feed,
// reconnecting with exponential backoff when the connection drops.
type HeadWatcher struct {
	endpoint string
	config   HeadWatcherConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	heads chan HeadNotification

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewHeadWatcher connects to the endpoint and starts delivering heads.
func NewHeadWatcher(ctx context.Context, endpoint string, config *HeadWatcherConfig) (*HeadWatcher, error) {
	cfg := DefaultHeadWatcherConfig()
	if config != nil {
		cfg = *config
	}

	w := &HeadWatcher{
		endpoint: endpoint,
		config:   cfg,
		heads:    make(chan HeadNotification, 64),
		done:     make(chan struct{}),
	}

	if err := w.connect(ctx); err != nil {
		return nil, err
	}

	w.wg.Add(1)
	go w.readLoop()

	w.wg.Add(1)
	go w.pingLoop()

	return w, nil
}

// Heads returns the notification channel. It is closed on Close.
func (w *HeadWatcher) Heads() <-chan HeadNotification {
	return w.heads
}

// connect establishes the websocket connection.
func (w *HeadWatcher) connect(ctx context.Context) error {
	w.connMu.Lock()
	defer w.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	w.conn = conn
	return nil
}

// Close closes the connection and the notification channel.
func (w *HeadWatcher) Close() error {
	if w.closed.Swap(true) {
		return nil // Already closed
	}

	close(w.done)

	w.connMu.Lock()
	if w.conn != nil {
		w.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		w.conn.Close()
	}
	w.connMu.Unlock()

	w.wg.Wait()
	close(w.heads)
	return nil
}

// readLoop reads head frames and dispatches them, reconnecting on error.
func (w *HeadWatcher) readLoop() {
	defer w.wg.Done()

	reconnectDelay := w.config.ReconnectDelay

	for !w.closed.Load() {
		w.connMu.Lock()
		conn := w.conn
		w.connMu.Unlock()

		if conn == nil {
			select {
			case <-w.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(w.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if w.closed.Load() {
				return
			}

			if !w.reconnecting.Swap(true) {
				go w.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > w.config.MaxReconnectDelay {
				reconnectDelay = w.config.MaxReconnectDelay
			}

			select {
			case <-w.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = w.config.ReconnectDelay

		w.handleMessage(message)
	}
}

// reconnect waits out the backoff delay and re-dials.
func (w *HeadWatcher) reconnect(delay time.Duration) {
	defer w.reconnecting.Store(false)

	if w.closed.Load() {
		return
	}

	select {
	case <-w.done:
		return
	case <-time.After(delay):
	}

	w.connMu.Lock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Failed attempts retry on the next read error.
	w.connect(ctx)
}

// handleMessage decodes one head frame. Frames that don't look like heads
// are ignored; the feed may interleave keepalives.
func (w *HeadWatcher) handleMessage(message []byte) {
	var head HeadNotification
	if err := json.Unmarshal(message, &head); err != nil {
		return
	}
	if head.Level == 0 {
		return
	}

	select {
	case w.heads <- head:
	case <-w.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (w *HeadWatcher) pingLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.connMu.Lock()
			if w.conn != nil {
				w.conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
				if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			w.connMu.Unlock()
		}
	}
}
