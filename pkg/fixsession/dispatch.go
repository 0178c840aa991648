package fixsession

import (
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/finalex-io/fixgo/pkg/fixcodec"
	"github.com/finalex-io/fixgo/pkg/fixmetrics"
)

// handleBytes appends newly read bytes to the session's reassembly
// buffer, extracts every complete frame currently available, and
// processes them in arrival order (spec.md §4.4). It returns true if
// any frame left the transport disconnected, so run's readCh case
// knows to arm the reconnect timer — dispatchByType can disconnect the
// session (peer Logout, a failed Heartbeat reply) deep inside this call
// chain, well after the readEvent itself reported no error.
func (s *Session) handleBytes(data []byte) (transportLost bool) {
	s.state.buffer.Write(data)

	frames, remainder := fixcodec.SplitStream(s.state.buffer.Bytes())
	s.state.buffer.Reset()
	s.state.buffer.Write(remainder)

	for _, raw := range frames {
		if s.processFrame(raw) {
			transportLost = true
		}
	}
	return transportLost
}

// processFrame parses one frame and applies the sequence-number rules
// of spec.md §4.4: malformed frames are logged and dropped without
// advancing recv_seq_num; a gap hands the frame to OnSessionMessage
// without advancing; a duplicate is silently dropped; an exact match
// advances recv_seq_num by one and dispatches by message type.
func (s *Session) processFrame(raw []byte) (transportLost bool) {
	_, span := s.tracer.Start(s.ctx, "fixsession.dispatch")
	defer span.End()

	msg, err := fixcodec.ParseFrame(raw)
	span.SetAttributes(attribute.String("msg_type", msg.MsgType), attribute.Int("seq_num", msg.SeqNum))
	if err != nil {
		span.RecordError(err)
		fixmetrics.ParseErrors.WithLabelValues(s.key).Inc()
		s.logger.Warn("dropping malformed inbound frame",
			zap.String("session_key", s.key),
			zap.Error(err),
			zap.ByteString("raw", renderForLog(msg.Raw)),
		)
		return false
	}

	if msg.MsgType == "A" && msg.GetBool(141) {
		s.state.setRecvSeq(1)
	}

	recv := s.state.RecvSeqNum()
	switch {
	case msg.SeqNum > recv:
		fixmetrics.SequenceGaps.WithLabelValues(s.key).Inc()
		s.logger.Warn("sequence gap detected", zap.String("session_key", s.key), zap.Int("expected", recv), zap.Int("received", msg.SeqNum))
		s.safeCall("OnSessionMessage", func() {
			s.handler.OnSessionMessage(s.key, msg, s.cfg)
		})
		return false

	case msg.SeqNum < recv:
		fixmetrics.DuplicatesDropped.WithLabelValues(s.key).Inc()
		s.logger.Debug("dropping duplicate", zap.String("session_key", s.key), zap.Int("seq_num", msg.SeqNum))
		return false

	default:
		s.state.setRecvSeq(recv + 1)
		fixmetrics.MessagesReceived.WithLabelValues(s.key, msg.MsgType).Inc()
		return s.dispatchByType(msg)
	}
}

// dispatchByType returns true if handling msg left the transport
// disconnected — peer Logout (spec.md §4.4's Logout row: "close
// transport... schedule reconnect") or a failed Heartbeat reply to a
// TestRequest both end the session's current connection.
func (s *Session) dispatchByType(msg *fixcodec.InboundMessage) (transportLost bool) {
	switch msg.MsgType {
	case "A":
		s.transitionPhase(LoggedOn)
		s.safeCall("OnLogon", func() {
			s.handler.OnLogon(s.key, s.cfg)
		})

	case "0":
		// Heartbeat carries no obligation beyond having reset the peer's
		// view of liveness; nothing to do.

	case "1":
		var reply []fixcodec.Field
		if tag112, ok := msg.GetString(112); ok {
			reply = []fixcodec.Field{{Tag: 112, Value: tag112}}
		}
		if _, err := s.writeFrame("0", reply); err != nil {
			s.handleTransportLoss(err)
			return true
		}

	case "2", "3":
		s.safeCall("OnSessionMessage", func() {
			s.handler.OnSessionMessage(s.key, msg, s.cfg)
		})

	case "4":
		s.applySequenceReset(msg)

	case "5":
		text, _ := msg.GetString(58)
		s.closeConn()
		s.transitionPhase(Disconnected)
		s.safeCall("OnLogout", func() {
			s.handler.OnLogout(s.key, LogoutReason{Kind: LogoutReceived, Text: text}, s.cfg)
		})
		return true

	default:
		s.safeCall("OnAppMessage", func() {
			s.handler.OnAppMessage(s.key, msg, s.cfg)
		})
	}
	return false
}

// applySequenceReset handles SequenceReset (35=4). With GapFillFlag
// (123) absent or "N" it is a hard reset; with 123=Y it is a gap fill.
// Both set recv_seq_num to NewSeqNo (36) directly (spec.md §4.4); the
// distinction only affects what gets logged, since fixgo has no
// resend queue to reconcile against a gap fill.
func (s *Session) applySequenceReset(msg *fixcodec.InboundMessage) {
	newSeqNo, ok := msg.GetInt(36)
	if !ok {
		s.logger.Warn("SequenceReset missing NewSeqNo", zap.String("session_key", s.key))
		return
	}
	gapFill := msg.GetBool(123)
	s.logger.Info("applying SequenceReset",
		zap.String("session_key", s.key),
		zap.Int("new_seq_no", newSeqNo),
		zap.Bool("gap_fill", gapFill),
	)
	s.state.setRecvSeq(newSeqNo)
}

// safeCall invokes a handler upcall behind a recover barrier: a panic
// raised by the upcall is recovered, counted and logged here so a
// panicking Handler does not take the session goroutine down with it
// (spec.md §4.5, §7).
func (s *Session) safeCall(upcall string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			fixmetrics.HandlerPanics.WithLabelValues(s.key, upcall).Inc()
			s.logger.Error("handler panic recovered",
				zap.String("session_key", s.key),
				zap.String("upcall", upcall),
				zap.Any("panic", r),
				zap.Stack("stacktrace"),
			)
		}
	}()
	fn()
}
