package fixlogon

import (
	"github.com/finalex-io/fixgo/pkg/fixcodec"
	"github.com/finalex-io/fixgo/pkg/fixerrors"
)

// UsernamePassword layers tags 553/554 onto the Standard fields. It
// fails with ErrMissingCredential if either "username" or "password"
// is absent from logon_fields.
type UsernamePassword struct{}

// BuildLogonFields implements Strategy.
func (UsernamePassword) BuildLogonFields(hb HeartbeatInterval, params Params) ([]fixcodec.Field, error) {
	username, ok := params.Get("username")
	if !ok || username == "" {
		return nil, fixerrors.ErrMissingCredential
	}
	password, ok := params.Get("password")
	if !ok || password == "" {
		return nil, fixerrors.ErrMissingCredential
	}

	fields, err := Standard{}.BuildLogonFields(hb, params)
	if err != nil {
		return nil, err
	}
	fields = append(fields,
		fixcodec.Field{Tag: 553, Value: username},
		fixcodec.Field{Tag: 554, Value: password},
	)
	return fields, nil
}
