package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// State is the connection lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateQRReady      State = "qr_ready"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateError        State = "error"
)

// MessageHandler consumes message events delivered by the manager's event
// loop, one at a time, in arrival order.
type MessageHandler interface {
	HandleMessage(evt *events.Message, outbound bool)
}

// Status is the externally visible connection status.
type Status struct {
	Status      State  `json:"status"`
	IsConnected bool   `json:"isConnected"`
	QRCode      string `json:"qrCode,omitempty"`
}

// Manager owns the session object's lifecycle: state, QR issuance and
// health-driven reconnection. Session events are converted to typed
// Events and processed by a single consumer goroutine.
type Manager struct {
	factory Factory
	handler MessageHandler
	log     waLog.Logger

	healthInterval time.Duration
	reconnectDelay time.Duration

	mu           sync.Mutex
	sess         Session
	state        State
	qrCode       string
	reconnecting bool
	healthStop   chan struct{}

	events chan Event
	onQR   func(code string)

	ctx context.Context
}

// NewManager creates a Manager. Start must be called before Initialize.
func NewManager(factory Factory, handler MessageHandler, healthInterval, reconnectDelay time.Duration, log waLog.Logger) *Manager {
	return &Manager{
		factory:        factory,
		handler:        handler,
		log:            log.Sub("ConnectionManager"),
		healthInterval: healthInterval,
		reconnectDelay: reconnectDelay,
		state:          StateDisconnected,
		events:         make(chan Event, 64),
		ctx:            context.Background(),
	}
}

// SetHandler binds the message handler. Must be called before Start when
// the handler could not be supplied at construction time.
func (m *Manager) SetHandler(handler MessageHandler) {
	m.handler = handler
}

// OnQR registers a callback invoked with each issued QR payload, in
// addition to the payload being stored for Status.
func (m *Manager) OnQR(fn func(code string)) {
	m.onQR = fn
}

// Start launches the single-consumer event loop.
func (m *Manager) Start(ctx context.Context) {
	m.ctx = ctx
	go m.loop(ctx)
}

// Initialize establishes a new session: best-effort cleanup of any prior
// session, handler registration, then an async connect. Connection success
// is observed via events, not the return value.
func (m *Manager) Initialize(ctx context.Context) error {
	m.cleanup()

	sess, err := m.factory(ctx)
	if err != nil {
		m.setState(StateError)
		m.log.Errorf("Failed to create session: %v", err)
		return fmt.Errorf("create session: %w", err)
	}

	m.mu.Lock()
	m.sess = sess
	m.mu.Unlock()

	sess.AddEventHandler(m.handleRaw)

	if !sess.IsLoggedIn() {
		qrChan, err := sess.GetQRChannel(ctx)
		if err != nil {
			m.log.Warnf("QR channel unavailable: %v", err)
		} else {
			go m.watchQR(qrChan)
		}
	}

	if err := sess.Connect(); err != nil {
		m.setState(StateError)
		m.log.Errorf("Failed to start session: %v", err)
		return fmt.Errorf("connect: %w", err)
	}

	return nil
}

// cleanup tears down any prior session. Idempotent; tolerates nothing to
// clean, so a redundant Initialize after a ready event is harmless.
func (m *Manager) cleanup() {
	m.mu.Lock()
	sess := m.sess
	m.sess = nil
	m.qrCode = ""
	m.mu.Unlock()

	if sess == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.log.Warnf("Session cleanup failed: %v", r)
		}
	}()
	sess.Disconnect()
}

// Disconnect tears down the session and stops the health-check loop.
func (m *Manager) Disconnect() {
	m.stopHealthLoop()
	m.cleanup()
	m.setState(StateDisconnected)
}

// GetStatus returns the current lifecycle status.
func (m *Manager) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Status:      m.state,
		IsConnected: m.state == StateConnected,
		QRCode:      m.qrCode,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns the current session, or nil before Initialize.
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess
}

// Download fetches media bytes through the current session.
func (m *Manager) Download(ctx context.Context, msg whatsmeow.DownloadableMessage) ([]byte, error) {
	sess := m.Session()
	if sess == nil {
		return nil, fmt.Errorf("no active session")
	}
	return sess.Download(ctx, msg)
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// handleRaw converts raw session events into typed Events on the single
// ordered channel. Runs on whatsmeow's event goroutine; the blocking send
// preserves arrival order.
func (m *Manager) handleRaw(evt interface{}) {
	switch e := evt.(type) {
	case *events.Connected:
		m.emit(Event{Kind: EventConnected})
	case *events.Disconnected:
		m.emit(Event{Kind: EventDisconnected})
	case *events.LoggedOut:
		m.log.Warnf("Session logged out (reason %d)", e.Reason)
		m.emit(Event{Kind: EventDisconnected})
	case *events.Message:
		if e.Info.IsFromMe {
			m.emit(Event{Kind: EventMessageSent, Message: e})
		} else {
			m.emit(Event{Kind: EventMessageReceived, Message: e})
		}
	}
}

func (m *Manager) emit(ev Event) {
	select {
	case m.events <- ev:
	case <-m.ctx.Done():
	}
}

func (m *Manager) watchQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case "code":
			m.emit(Event{Kind: EventQRIssued, QRCode: item.Code})
		case "timeout":
			m.log.Warnf("QR code timed out before being scanned")
		case "error":
			m.log.Errorf("QR channel error: %v", item.Error)
		}
	}
}

func (m *Manager) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.events:
			m.dispatch(ev)
		}
	}
}

// dispatch processes one event to completion. Errors inside a handler are
// recovered here so a bad event can never tear down the session loop.
func (m *Manager) dispatch(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Errorf("Event handler panic on %s: %v", ev.Kind, r)
		}
	}()

	switch ev.Kind {
	case EventQRIssued:
		m.mu.Lock()
		m.qrCode = ev.QRCode
		m.state = StateQRReady
		m.mu.Unlock()
		m.log.Infof("QR code issued, waiting for pairing")
		if m.onQR != nil {
			m.onQR(ev.QRCode)
		}

	case EventConnected:
		m.mu.Lock()
		m.qrCode = ""
		m.state = StateConnected
		m.reconnecting = false
		m.mu.Unlock()
		m.log.Infof("Session connected")
		m.startHealthLoop()

	case EventDisconnected:
		m.mu.Lock()
		m.qrCode = ""
		m.state = StateDisconnected
		m.mu.Unlock()
		m.log.Warnf("Session disconnected")
		m.stopHealthLoop()

	case EventMessageReceived:
		if m.handler != nil {
			m.handler.HandleMessage(ev.Message, false)
		}

	case EventMessageSent:
		if m.handler != nil {
			m.handler.HandleMessage(ev.Message, true)
		}
	}
}

func (m *Manager) startHealthLoop() {
	m.mu.Lock()
	if m.healthStop != nil {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	m.healthStop = stop
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.healthInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.healthCheck()
			}
		}
	}()
}

func (m *Manager) stopHealthLoop() {
	m.mu.Lock()
	if m.healthStop != nil {
		close(m.healthStop)
		m.healthStop = nil
	}
	m.mu.Unlock()
}

// healthCheck queries the live session while the state says connected.
// When the session no longer reports a connected condition, it transitions
// to reconnecting and schedules exactly one delayed Initialize; the
// reconnecting flag keeps a second detection from stacking another.
func (m *Manager) healthCheck() {
	m.mu.Lock()
	sess := m.sess
	if m.state != StateConnected || m.reconnecting || sess == nil {
		m.mu.Unlock()
		return
	}
	if sess.IsConnected() {
		m.mu.Unlock()
		return
	}
	m.state = StateReconnecting
	m.reconnecting = true
	m.mu.Unlock()

	m.log.Warnf("Session lost, reconnecting in %v", m.reconnectDelay)
	time.AfterFunc(m.reconnectDelay, func() {
		defer func() {
			m.mu.Lock()
			m.reconnecting = false
			m.mu.Unlock()
		}()
		if err := m.Initialize(m.ctx); err != nil {
			m.log.Errorf("Reconnect failed: %v", err)
		}
	})
}
