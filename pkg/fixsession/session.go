// Package fixsession implements the session state machine: it owns a
// transport connection, runs the logon handshake, tracks send/receive
// sequence numbers, drives heartbeats, and routes every inbound frame
// to a caller-supplied Handler. One goroutine per session ("task") owns
// all mutable state; every external interaction — SendMessage, Stop,
// inbound bytes, timers — is delivered to that goroutine over a
// channel, the Go rendering of the actor mailbox spec.md §9 describes.
package fixsession

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/finalex-io/fixgo/pkg/fixcodec"
	"github.com/finalex-io/fixgo/pkg/fixerrors"
	"github.com/finalex-io/fixgo/pkg/fixmetrics"
)

const (
	connectTimeout  = 10 * time.Second
	reconnectDelay  = 5 * time.Second
	reconnectJitter = 250 * time.Millisecond
)

type sendRequest struct {
	corrID string // uuid, attached for log traceability across the mailbox hop
	msg    *fixcodec.OutboundMessage
	reply  chan sendReply
}

type sendReply struct {
	raw []byte
	err error
}

type stopRequest struct {
	reply chan struct{}
}

type readEvent struct {
	epoch int
	data  []byte
	err   error
}

// Dialer opens a Transport to host:port. DialTCP is the default.
type Dialer func(ctx context.Context, host string, port int, opts TransportOpts) (Transport, error)

// Options configures optional collaborators for Start. The zero value
// is valid: a no-op logger, the global OpenTelemetry tracer, the
// Default registry, DialTCP.
type Options struct {
	Logger   *zap.Logger
	Tracer   trace.Tracer
	Registry *Registry
	Dialer   Dialer
}

// Session is the running state machine for one configured endpoint.
type Session struct {
	key      string
	cfg      Config
	handler  Handler
	logger   *zap.Logger
	tracer   trace.Tracer
	registry *Registry
	dial     Dialer

	state *state
	epoch int // incremented on every successful connect; tags readEvents so a stale connection's events are ignored after reconnect

	sendCh chan sendRequest
	stopCh chan stopRequest
	readCh chan readEvent

	ctx    context.Context
	cancel context.CancelFunc
	doneCh chan struct{}
}

// Start validates cfg, registers a new session under cfg.SessionKey in
// the chosen registry (Default unless Options.Registry is set), and
// begins connecting immediately. It fails fast with
// fixerrors.ErrInvalidConfig if cfg does not validate, and with
// fixerrors.ErrAlreadyStarted if the key is already registered.
func Start(ctx context.Context, cfg Config, handler Handler, opts ...Options) (*Session, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry := o.Registry
	if registry == nil {
		registry = Default
	}
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dial := o.Dialer
	if dial == nil {
		dial = DialTCP
	}
	tracer := o.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/finalex-io/fixgo/pkg/fixsession")
	}

	sessCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		key:      cfg.SessionKey,
		cfg:      cfg,
		handler:  handler,
		logger:   logger,
		tracer:   tracer,
		registry: registry,
		dial:     dial,
		state:    newState(),
		sendCh:   make(chan sendRequest),
		stopCh:   make(chan stopRequest, 1),
		readCh:   make(chan readEvent, 32),
		ctx:      sessCtx,
		cancel:   cancel,
		doneCh:   make(chan struct{}),
	}

	if err := registry.insert(cfg.SessionKey, s); err != nil {
		cancel()
		return nil, err
	}

	go s.run()
	return s, nil
}

// Key returns the session identifier this session was started with.
func (s *Session) Key() string { return s.key }

// Phase returns the session's current lifecycle phase.
func (s *Session) Phase() Phase { return s.state.Phase() }

// TimeSinceLastRecv returns how long ago bytes last arrived from the
// transport, or 0 if nothing has been received yet.
func (s *Session) TimeSinceLastRecv() time.Duration { return s.state.TimeSinceLastRecv() }

// SendMessage enqueues msg for transmission on the session's task and
// waits for the write to complete, returning the exact bytes written
// with SOH rendered as '|' for logging (spec.md §6). It returns
// fixerrors.ErrNotLoggedOn synchronously if the session is not
// currently LoggedOn.
func (s *Session) SendMessage(msg *fixcodec.OutboundMessage) ([]byte, error) {
	reply := make(chan sendReply, 1)
	req := sendRequest{corrID: uuid.NewString(), msg: msg, reply: reply}
	select {
	case s.sendCh <- req:
	case <-s.doneCh:
		return nil, fixerrors.ErrSessionStopped
	}
	select {
	case r := <-reply:
		return r.raw, r.err
	case <-s.doneCh:
		return nil, fixerrors.ErrSessionStopped
	}
}

// Stop initiates graceful logout if connected, then closes the
// transport, cancels all timers, and deregisters the session. It
// blocks until shutdown completes; calling Stop more than once is safe.
func (s *Session) Stop() error {
	reply := make(chan struct{})
	select {
	case s.stopCh <- stopRequest{reply: reply}:
	case <-s.doneCh:
		return nil
	}
	// doneCh closes only after run has closed the transport, stopped its
	// timers and removed the session from its registry.
	<-s.doneCh
	return nil
}

// SendMessage looks up key in the Default registry and forwards to
// Session.SendMessage.
func SendMessage(key string, msg *fixcodec.OutboundMessage) ([]byte, error) {
	return Default.SendMessage(key, msg)
}

// SendMessage looks up key in r and forwards to Session.SendMessage.
func (r *Registry) SendMessage(key string, msg *fixcodec.OutboundMessage) ([]byte, error) {
	s, ok := r.lookup(key)
	if !ok {
		return nil, fixerrors.ErrSessionNotFound
	}
	return s.SendMessage(msg)
}

// Stop looks up key in the Default registry and forwards to Session.Stop.
func Stop(key string) error {
	return Default.Stop(key)
}

// Stop looks up key in r and forwards to Session.Stop.
func (r *Registry) Stop(key string) error {
	s, ok := r.lookup(key)
	if !ok {
		return fixerrors.ErrSessionNotFound
	}
	return s.Stop()
}

func (s *Session) run() {
	defer close(s.doneCh)
	defer s.registry.delete(s.key)
	defer s.closeConn()

	reconnectTimer := time.NewTimer(0) // fire immediately for the first connect attempt
	defer reconnectTimer.Stop()

	var heartbeatTimer *time.Timer
	var heartbeatC <-chan time.Time
	stopHeartbeat := func() {
		if heartbeatTimer != nil {
			heartbeatTimer.Stop()
			heartbeatTimer = nil
			heartbeatC = nil
		}
	}
	defer stopHeartbeat()

	for {
		select {
		case <-s.ctx.Done():
			return

		case req := <-s.stopCh:
			s.handleStop(req)
			return

		case <-reconnectTimer.C:
			if err := s.connect(); err != nil {
				s.logger.Warn("connect failed, will retry", zap.String("session_key", s.key), zap.Error(err))
				reconnectTimer.Reset(jitteredReconnectDelay())
				continue
			}
			interval := time.Duration(s.cfg.HeartbeatIntervalSeconds) * time.Second
			heartbeatTimer = time.NewTimer(interval)
			heartbeatC = heartbeatTimer.C

		case ev := <-s.readCh:
			if ev.epoch != s.epoch {
				continue // event from a connection already superseded by a reconnect
			}
			if ev.err != nil {
				stopHeartbeat()
				s.handleTransportLoss(ev.err)
				reconnectTimer.Reset(jitteredReconnectDelay())
				continue
			}
			s.state.setLastRecvTime(time.Now())
			if s.handleBytes(ev.data) {
				stopHeartbeat()
				reconnectTimer.Reset(jitteredReconnectDelay())
			}

		case req := <-s.sendCh:
			lost := s.handleSend(req)
			if lost {
				stopHeartbeat()
				reconnectTimer.Reset(jitteredReconnectDelay())
			}

		case <-heartbeatC:
			lost := s.handleHeartbeatTick()
			if lost {
				stopHeartbeat()
				reconnectTimer.Reset(jitteredReconnectDelay())
				continue
			}
			heartbeatTimer.Reset(time.Duration(s.cfg.HeartbeatIntervalSeconds) * time.Second)
		}
	}
}

func (s *Session) transitionPhase(p Phase) {
	prev := s.state.Phase()
	s.state.setPhase(p)
	if prev != p {
		fixmetrics.SessionPhase.WithLabelValues(s.key, prev.String()).Set(0)
		fixmetrics.SessionPhase.WithLabelValues(s.key, p.String()).Set(1)
		s.logger.Debug("phase transition", zap.String("session_key", s.key), zap.String("from", prev.String()), zap.String("to", p.String()))
	}
}

func (s *Session) closeConn() {
	if s.state.conn != nil {
		_ = s.state.conn.Close()
		s.state.conn = nil
	}
}

func jitteredReconnectDelay() time.Duration {
	// spec.md §5 permits an implementation to add jitter to the
	// constant 5s back-off; +/-250ms avoids a thundering herd when one
	// process runs many sessions against the same broker.
	offset := time.Duration(fastRandInt64(int64(2*reconnectJitter))) - reconnectJitter
	return reconnectDelay + offset
}
