package fixsession

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/finalex-io/fixgo/pkg/fixcodec"
	"github.com/finalex-io/fixgo/pkg/fixerrors"
	"github.com/finalex-io/fixgo/pkg/fixlogon"
	"github.com/finalex-io/fixgo/pkg/fixmetrics"
	"github.com/finalex-io/fixgo/pkg/fixtime"
)

func fastRandInt64(n int64) int64 {
	if n <= 0 {
		return 0
	}
	return rand.Int64N(n)
}

var errNotConnected = errors.New("fixsession: transport not connected")

// connect dials the transport, performs the logon handshake, and on
// success leaves the session in phase Connected with a reader
// goroutine running. It never sets phase LoggedOn; that transition
// only happens once a Logon reply is validated (spec.md §4.4).
func (s *Session) connect() error {
	spanCtx, span := s.tracer.Start(s.ctx, "fixsession.connect", trace.WithAttributes(
		attribute.String("session_key", s.key),
	))
	defer span.End()

	s.transitionPhase(Connecting)

	ctx, cancel := context.WithTimeout(spanCtx, connectTimeout)
	defer cancel()

	conn, err := s.dial(ctx, s.cfg.Host, s.cfg.Port, s.cfg.TransportOpts)
	if err != nil {
		span.RecordError(err)
		s.transitionPhase(Disconnected)
		return err
	}

	strategy, ok := fixlogon.Lookup(s.cfg.LogonStrategy)
	if !ok {
		_ = conn.Close()
		s.transitionPhase(Disconnected)
		return fixerrors.ErrUnknownStrategy
	}

	hb := fixlogon.HeartbeatInterval(s.cfg.HeartbeatIntervalSeconds)
	bodyFields, err := strategy.BuildLogonFields(hb, fixlogon.Params(s.cfg.LogonFields))
	if err != nil {
		_ = conn.Close()
		s.transitionPhase(Disconnected)
		return err
	}

	resetRequested := false
	for _, f := range bodyFields {
		if f.Tag == 141 && f.Value == "Y" {
			resetRequested = true
			break
		}
	}
	if resetRequested {
		s.state.setSendSeq(1)
	}

	s.state.conn = conn
	if _, err := s.writeFrame("A", bodyFields); err != nil {
		s.closeConn()
		s.transitionPhase(Disconnected)
		return err
	}

	s.epoch++
	epoch := s.epoch
	go s.readLoop(conn, epoch)

	s.transitionPhase(Connected)
	return nil
}

// buildHeader returns the standard header fields in the exact order
// spec.md §4.1 requires: 35, 49, 56, 34, (50 if set), 52. Tag 8 and 9
// are added by fixcodec.Build itself, and 10 is appended last. seq is
// only a preview of the next send sequence number: the caller commits
// it with state.advanceSendSeq once the frame is actually on the wire.
func (s *Session) buildHeader(msgType string, seq int) []fixcodec.Field {
	header := []fixcodec.Field{
		{Tag: 35, Value: msgType},
		{Tag: 49, Value: s.cfg.SenderCompID},
		{Tag: 56, Value: s.cfg.TargetCompID},
		{Tag: 34, Value: strconv.Itoa(seq)},
	}
	if s.cfg.SenderSubID != "" {
		header = append(header, fixcodec.Field{Tag: 50, Value: s.cfg.SenderSubID})
	}
	header = append(header, fixcodec.Field{Tag: 52, Value: fixtime.Format(time.Now(), false)})
	return header
}

// writeFrame builds and writes one outbound frame, consuming exactly
// one send sequence number — but only once the frame has actually
// reached the transport. A frame that fails to build or fails to
// write burns nothing: the sequence number is only previewed while
// building the header and committed with state.advanceSendSeq after a
// successful Write, so a failed SendMessage can be retried with the
// same tag 34 it would have used had the first attempt never happened.
func (s *Session) writeFrame(msgType string, bodyFields []fixcodec.Field) ([]byte, error) {
	if s.state.conn == nil {
		return nil, fixerrors.NewTransportError(errNotConnected)
	}

	header := s.buildHeader(msgType, s.state.peekSendSeq())
	all := make([]fixcodec.Field, 0, len(header)+len(bodyFields))
	all = append(all, header...)
	all = append(all, bodyFields...)

	frame, err := fixcodec.Build(s.cfg.ProtocolVersion, all)
	if err != nil {
		return nil, err
	}

	if _, err := s.state.conn.Write(frame); err != nil {
		return nil, fixerrors.NewTransportError(err)
	}

	s.state.advanceSendSeq()
	s.state.setLastSendTime(time.Now())
	fixmetrics.MessagesSent.WithLabelValues(s.key, msgType).Inc()
	s.logger.Debug("sent frame", zap.String("session_key", s.key), zap.String("msg_type", msgType))
	return renderForLog(frame), nil
}

func renderForLog(frame []byte) []byte {
	out := make([]byte, len(frame))
	for i, b := range frame {
		if b == fixcodec.SOH {
			out[i] = '|'
		} else {
			out[i] = b
		}
	}
	return out
}

func (s *Session) readLoop(conn Transport, epoch int) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case s.readCh <- readEvent{epoch: epoch, data: data}:
			case <-s.ctx.Done():
				return
			}
		}
		if err != nil {
			select {
			case s.readCh <- readEvent{epoch: epoch, err: err}:
			case <-s.ctx.Done():
			}
			return
		}
	}
}

// handleSend services one SendMessage request. It returns true if the
// attempt discovered the transport is gone, so run's caller can start
// the reconnect timer.
func (s *Session) handleSend(req sendRequest) (transportLost bool) {
	if s.state.Phase() != LoggedOn {
		req.reply <- sendReply{nil, fixerrors.ErrNotLoggedOn}
		return false
	}

	raw, err := s.writeFrame(req.msg.MsgType(), req.msg.Fields())
	s.logger.Debug("send request completed",
		zap.String("session_key", s.key),
		zap.String("correlation_id", req.corrID),
		zap.Error(err),
	)
	req.reply <- sendReply{raw, err}

	var transportErr *fixerrors.TransportError
	if errors.As(err, &transportErr) {
		s.handleTransportLoss(err)
		return true
	}
	return false
}

// handleTransportLoss tears down the current connection and notifies
// the handler. It is idempotent: calling it when already Disconnected
// is a no-op, since both the reader goroutine's error and a failed
// write can observe the same broken connection.
func (s *Session) handleTransportLoss(cause error) {
	if s.state.Phase() == Disconnected {
		return
	}
	s.closeConn()
	s.transitionPhase(Disconnected)
	fixmetrics.Reconnects.WithLabelValues(s.key).Inc()
	s.logger.Warn("transport lost", zap.String("session_key", s.key), zap.Error(cause))
	s.safeCall("OnLogout", func() {
		s.handler.OnLogout(s.key, LogoutReason{Kind: ConnectionLost, Err: cause}, s.cfg)
	})
}

// handleStop performs a best-effort graceful logout and shuts the
// session down. The Logout write is not retried and has no timeout of
// its own: handleStop, and so Stop, waits for Transport.Write to
// return. DialTCP sets no write deadline on the connections it opens.
func (s *Session) handleStop(req stopRequest) {
	s.transitionPhase(LoggingOut)
	if s.state.conn != nil {
		if _, err := s.writeFrame("5", nil); err != nil {
			s.logger.Warn("logout send failed during stop", zap.String("session_key", s.key), zap.Error(err))
		}
	}
	s.closeConn()
	s.transitionPhase(Disconnected)
	s.safeCall("OnLogout", func() {
		s.handler.OnLogout(s.key, LogoutReason{Kind: Stopped}, s.cfg)
	})
	close(req.reply)
	s.cancel()
}
