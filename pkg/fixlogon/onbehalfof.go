package fixlogon

import "github.com/finalex-io/fixgo/pkg/fixcodec"

// OnBehalfOf produces only the Standard fields. Tags 115/116
// (OnBehalfOfCompID / OnBehalfOfSubID) are deliberately not included
// in administrative messages; the caller includes them in application
// messages instead, per spec.md §4.3.
type OnBehalfOf struct{}

// BuildLogonFields implements Strategy.
func (OnBehalfOf) BuildLogonFields(hb HeartbeatInterval, params Params) ([]fixcodec.Field, error) {
	return Standard{}.BuildLogonFields(hb, params)
}
