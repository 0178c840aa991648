package fixlogon

import (
	"strconv"

	"github.com/finalex-io/fixgo/pkg/fixcodec"
)

// Standard produces EncryptMethod=None, the heartbeat interval, and a
// mutual sequence reset request — the baseline every other built-in
// strategy layers on top of.
type Standard struct{}

// BuildLogonFields implements Strategy.
func (Standard) BuildLogonFields(hb HeartbeatInterval, _ Params) ([]fixcodec.Field, error) {
	return []fixcodec.Field{
		{Tag: 98, Value: "0"},
		{Tag: 108, Value: strconv.Itoa(int(hb))},
		{Tag: 141, Value: "Y"},
	}, nil
}
