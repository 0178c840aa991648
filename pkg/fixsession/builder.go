package fixsession

import "github.com/finalex-io/fixgo/pkg/fixcodec"

// OutboundMessage and Field are re-exported from pkg/fixcodec so a
// caller that only imports pkg/fixsession never needs a second import
// to build a message for SendMessage.
type (
	OutboundMessage = fixcodec.OutboundMessage
	Field           = fixcodec.Field
)

// NewBuilder starts a new outbound message of the given MsgType (tag 35).
func NewBuilder(msgType string) *OutboundMessage {
	return fixcodec.NewBuilder(msgType)
}
