package fixsession

import "github.com/finalex-io/fixgo/pkg/fixcodec"

// LogoutReasonKind discriminates why OnLogout fired.
type LogoutReasonKind int

const (
	// LogoutReceived means the peer sent a Logout (35=5).
	LogoutReceived LogoutReasonKind = iota
	// ConnectionLost means the transport closed or errored.
	ConnectionLost
	// Stopped means the caller called Stop.
	Stopped
)

// LogoutReason is the value passed to OnLogout, spec.md §4.5's
// Logout(text) | ConnectionLost(cause) | Stopped union rendered as a
// Go struct with a discriminant.
type LogoutReason struct {
	Kind LogoutReasonKind
	Text string // set when Kind == LogoutReceived, from tag 58
	Err  error  // set when Kind == ConnectionLost
}

// Handler is the four upcalls the session invokes. Implementations
// must not block the session for unbounded time; the session wraps
// every call in a failure barrier that recovers panics and logs them,
// so a misbehaving handler cannot take down the session (spec.md §4.5,
// §7). Return values are ignored — there is nothing to return.
type Handler interface {
	OnLogon(sessionKey string, cfg Config)
	OnAppMessage(sessionKey string, msg *fixcodec.InboundMessage, cfg Config)
	OnSessionMessage(sessionKey string, msg *fixcodec.InboundMessage, cfg Config)
	OnLogout(sessionKey string, reason LogoutReason, cfg Config)
}

// NopHandler implements Handler with no-ops. Embed it and override
// only the upcalls a caller cares about.
type NopHandler struct{}

func (NopHandler) OnLogon(string, Config)                                 {}
func (NopHandler) OnAppMessage(string, *fixcodec.InboundMessage, Config)  {}
func (NopHandler) OnSessionMessage(string, *fixcodec.InboundMessage, Config) {}
func (NopHandler) OnLogout(string, LogoutReason, Config)                  {}
