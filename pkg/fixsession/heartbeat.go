package fixsession

import (
	"time"

	"go.uber.org/zap"
)

// handleHeartbeatTick fires when the heartbeat timer elapses. A
// Heartbeat (35=0) is only sent if nothing has gone out on the wire
// for at least one full heartbeat interval, matching spec.md §5's "reset on any send"
// behavior: an active SendMessage caller already keeps the connection
// alive without a redundant heartbeat. It returns true if the attempt
// discovered the transport is gone.
func (s *Session) handleHeartbeatTick() (transportLost bool) {
	if time.Since(s.state.LastSendTime()) < time.Duration(s.cfg.HeartbeatIntervalSeconds)*time.Second {
		return false
	}

	if _, err := s.writeFrame("0", nil); err != nil {
		s.logger.Warn("heartbeat send failed", zap.String("session_key", s.key), zap.Error(err))
		s.handleTransportLoss(err)
		return true
	}
	return false
}
