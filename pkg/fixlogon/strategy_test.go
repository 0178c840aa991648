package fixlogon

import (
	"testing"

	"github.com/finalex-io/fixgo/pkg/fixcodec"
	"github.com/finalex-io/fixgo/pkg/fixerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardStrategy(t *testing.T) {
	fields, err := Standard{}.BuildLogonFields(30, nil)
	require.NoError(t, err)
	assert.Equal(t, 98, fields[0].Tag)
	assert.Equal(t, "0", fields[0].Value)
	assert.Equal(t, 108, fields[1].Tag)
	assert.Equal(t, "30", fields[1].Value)
	assert.Equal(t, 141, fields[2].Tag)
	assert.Equal(t, "Y", fields[2].Value)
}

func TestUsernamePasswordStrategy(t *testing.T) {
	params := Params{"username": "trader1", "password": "s3cret"}
	fields, err := UsernamePassword{}.BuildLogonFields(30, params)
	require.NoError(t, err)
	require.Len(t, fields, 5)
	assert.Equal(t, 553, fields[3].Tag)
	assert.Equal(t, "trader1", fields[3].Value)
	assert.Equal(t, 554, fields[4].Tag)
	assert.Equal(t, "s3cret", fields[4].Value)
}

func TestUsernamePasswordStrategyMissingCredential(t *testing.T) {
	_, err := UsernamePassword{}.BuildLogonFields(30, Params{"username": "trader1"})
	assert.ErrorIs(t, err, fixerrors.ErrMissingCredential)

	_, err = UsernamePassword{}.BuildLogonFields(30, nil)
	assert.ErrorIs(t, err, fixerrors.ErrMissingCredential)
}

func TestOnBehalfOfStrategyOmitsDelegationTags(t *testing.T) {
	fields, err := OnBehalfOf{}.BuildLogonFields(30, Params{"on_behalf_of_comp_id": "CLIENT1"})
	require.NoError(t, err)
	for _, f := range fields {
		assert.NotEqual(t, 115, f.Tag)
		assert.NotEqual(t, 116, f.Tag)
	}
	assert.Len(t, fields, 3)
}

func TestLookupBuiltins(t *testing.T) {
	for _, name := range []string{"Standard", "UsernamePassword", "OnBehalfOf"} {
		strat, ok := Lookup(name)
		assert.True(t, ok, name)
		assert.NotNil(t, strat)
	}
	_, ok := Lookup("DoesNotExist")
	assert.False(t, ok)
}

func TestRegisterCustomStrategy(t *testing.T) {
	err := Register("test-hmac", func() Strategy {
		return StrategyFunc(func(hb HeartbeatInterval, p Params) ([]fixcodec.Field, error) {
			return nil, nil
		})
	})
	require.NoError(t, err)

	err = Register("test-hmac", func() Strategy { return Standard{} })
	assert.ErrorIs(t, err, fixerrors.ErrStrategyNameInUse)
}
