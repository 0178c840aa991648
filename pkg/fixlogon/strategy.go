// Package fixlogon supplies pluggable producers of the body fields a
// Logon (35=A) message must carry for a given authentication scheme.
// A strategy is a pure function of session configuration: it never
// sees session state and cannot mutate sequence numbers or headers.
package fixlogon

import (
	"sync"

	"github.com/finalex-io/fixgo/pkg/fixcodec"
	"github.com/finalex-io/fixgo/pkg/fixerrors"
)

// Params is the strategy-dependent configuration payload, taken from a
// session's logon_fields map. Every accessor returns ("", false) when
// the key is absent so strategies can implement MissingCredential
// without a type assertion at every call site.
type Params map[string]string

// Get returns the value for key, or "" and false if absent.
func (p Params) Get(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p[key]
	return v, ok
}

// HeartbeatInterval is the piece of session configuration every
// built-in strategy needs (tag 108); strategies that need more of the
// session config accept it explicitly rather than through Params, to
// keep the interface honest about what a strategy can see.
type HeartbeatInterval int

// Strategy builds the ordered body fields to place in a Logon frame,
// after the standard headers (8, 35=A, 49, 56, 34, optional 50, 52).
type Strategy interface {
	BuildLogonFields(heartbeatInterval HeartbeatInterval, params Params) ([]fixcodec.Field, error)
}

// StrategyFunc adapts a plain function to the Strategy interface.
type StrategyFunc func(HeartbeatInterval, Params) ([]fixcodec.Field, error)

// BuildLogonFields implements Strategy.
func (f StrategyFunc) BuildLogonFields(hb HeartbeatInterval, p Params) ([]fixcodec.Field, error) {
	return f(hb, p)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func() Strategy{
		"Standard":         func() Strategy { return Standard{} },
		"UsernamePassword": func() Strategy { return UsernamePassword{} },
		"OnBehalfOf":       func() Strategy { return OnBehalfOf{} },
	}
)

// Register adds a named strategy factory to the process-wide registry,
// so configuration can select a custom strategy (e.g. one composing an
// HMAC signature per spec.md §4.3) by name without pkg/fixsession
// importing caller code. It fails if the name is already registered,
// mirroring the registry's insert-unique semantics in §4.6.
func Register(name string, factory func() Strategy) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		return fixerrors.ErrStrategyNameInUse
	}
	registry[name] = factory
	return nil
}

// Lookup returns a fresh Strategy instance registered under name.
func Lookup(name string) (Strategy, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, ok := registry[name]
	if !ok {
		return nil, false
	}
	return factory(), true
}
