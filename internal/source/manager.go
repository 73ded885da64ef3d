package source

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"sniper-core/internal/events"
	"sniper-core/internal/models"
	"sniper-core/pkg/clock"
)

// Manager runs one subscription task per adapter, parses frames into market
// events and pushes them onto the pipeline. Connection drops are reported
// as ConnectionStatus events and followed by reconnects after a fixed
// timeout.
type Manager struct {
	adapters         []Adapter
	pipeline         *events.Pipeline[models.MarketEvent]
	dial             Dialer
	clk              clock.Clock
	reconnectTimeout time.Duration
	maxRetries       int // 0 = retry forever

	running atomic.Bool
	wg      sync.WaitGroup

	mu     sync.RWMutex
	status map[string]bool
}

// Option configures the manager.
type Option func(*Manager)

// WithDialer overrides the websocket dialer (tests).
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dial = d }
}

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clk = c }
}

// WithMaxRetries stops a source's task after n failed connections or
// disconnects in total; 0 retries forever.
func WithMaxRetries(n int) Option {
	return func(m *Manager) { m.maxRetries = n }
}

// NewManager wires adapters to the event pipeline.
func NewManager(adapters []Adapter, pipeline *events.Pipeline[models.MarketEvent], reconnectTimeout time.Duration, opts ...Option) *Manager {
	m := &Manager{
		adapters:         adapters,
		pipeline:         pipeline,
		dial:             gorillaDialer,
		clk:              clock.System{},
		reconnectTimeout: reconnectTimeout,
		status:           make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches one goroutine per adapter. It returns immediately.
func (m *Manager) Start(ctx context.Context) {
	if !m.running.CompareAndSwap(false, true) {
		return
	}
	for _, a := range m.adapters {
		m.wg.Add(1)
		go func(a Adapter) {
			defer m.wg.Done()
			m.runSource(ctx, a)
		}(a)
	}
}

// Stop flips the running flag and waits for every source task to exit.
func (m *Manager) Stop() {
	m.running.Store(false)
	m.wg.Wait()
}

// ConnectionStatus returns a snapshot of per-source connectivity.
func (m *Manager) ConnectionStatus() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool, len(m.status))
	for k, v := range m.status {
		out[k] = v
	}
	return out
}

func (m *Manager) setStatus(name string, connected bool) {
	m.mu.Lock()
	m.status[name] = connected
	m.mu.Unlock()
}

// runSource is the per-source supervision loop: connect, subscribe, read
// until failure, back off, repeat.
func (m *Manager) runSource(ctx context.Context, a Adapter) {
	retries := 0
	for m.running.Load() && ctx.Err() == nil {
		err := m.connectAndRead(ctx, a)
		if !m.running.Load() || ctx.Err() != nil {
			return
		}

		m.setStatus(a.Name(), false)
		errMsg := ""
		if err != nil {
			errMsg = err.Error()
		}
		m.emit(ctx, models.ConnectionStatus{
			Connected: false,
			SourceTag: a.Name(),
			Error:     errMsg,
			Timestamp: m.nowMs(),
		})
		log.Printf("source %s: disconnected: %v", a.Name(), err)

		retries++
		if m.maxRetries > 0 && retries >= m.maxRetries {
			log.Printf("source %s: giving up after %d retries", a.Name(), retries)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.reconnectTimeout):
		}
	}
}

// connectAndRead holds one connection open: handshake, subscribe frames,
// then a read loop until error or shutdown.
func (m *Manager) connectAndRead(ctx context.Context, a Adapter) error {
	conn, err := m.dial(ctx, a.URL())
	if err != nil {
		return err
	}
	defer conn.Close()

	for _, frame := range a.SubscribeFrames() {
		if err := conn.WriteMessage(frame); err != nil {
			return err
		}
	}

	m.setStatus(a.Name(), true)
	m.emit(ctx, models.ConnectionStatus{
		Connected: true,
		SourceTag: a.Name(),
		Timestamp: m.nowMs(),
	})
	log.Printf("source %s: connected to %s", a.Name(), a.URL())

	for m.running.Load() && ctx.Err() == nil {
		frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		nowMs := m.nowMs()
		parsed, ok := a.Parse(frame, nowMs)
		if !ok {
			m.emit(ctx, models.RawMessage{
				SourceTag: a.Name(),
				Data:      string(frame),
				Timestamp: nowMs,
			})
			continue
		}
		for _, ev := range parsed {
			m.emit(ctx, ev)
		}
	}
	return nil
}

// emit pushes onto the lossless pipeline; producers await capacity.
func (m *Manager) emit(ctx context.Context, ev models.MarketEvent) {
	if err := m.pipeline.Send(ctx, ev); err != nil {
		log.Printf("source: pipeline send aborted: %v", err)
	}
}

func (m *Manager) nowMs() int64 {
	return m.clk.Now().UnixMilli()
}

// wsConn adapts *websocket.Conn to the Conn interface.
type wsConn struct {
	conn *websocket.Conn
}

func (c wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c wsConn) WriteMessage(data []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c wsConn) Close() error {
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

func gorillaDialer(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return wsConn{conn: conn}, nil
}
