package fixsession

import (
	"github.com/go-playground/validator/v10"

	"github.com/finalex-io/fixgo/pkg/fixerrors"
)

var validate = validator.New()

// TransportOpts configures the default TCP/TLS transport dialer. It is
// the "opaque map passed to transport layer" of spec.md §6, rendered
// as a typed struct rather than a map since fixgo's own DialTCP is the
// one consumer in this repository; a caller supplying its own
// Transport implementation is free to ignore it entirely.
type TransportOpts struct {
	TLSEnabled    bool   `mapstructure:"tls_enabled" yaml:"tls_enabled"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify" yaml:"tls_skip_verify"`
	ServerName    string `mapstructure:"server_name" yaml:"server_name"`
	DialTimeoutMS int    `mapstructure:"dial_timeout_ms" yaml:"dial_timeout_ms"`
}

// Config is a validated record describing one session endpoint. Field
// names and defaults follow spec.md §6's configuration table exactly.
type Config struct {
	SessionKey string `mapstructure:"session_key" yaml:"session_key" validate:"required"`

	Host string `mapstructure:"host" yaml:"host" validate:"required"`
	Port int    `mapstructure:"port" yaml:"port" validate:"required,gt=0,lte=65535"`

	ProtocolVersion string `mapstructure:"protocol_version" yaml:"protocol_version"`

	SenderCompID string `mapstructure:"sender_comp_id" yaml:"sender_comp_id" validate:"required"`
	TargetCompID string `mapstructure:"target_comp_id" yaml:"target_comp_id" validate:"required"`
	SenderSubID  string `mapstructure:"sender_sub_id" yaml:"sender_sub_id"`

	HeartbeatIntervalSeconds int `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`

	TransportOpts TransportOpts `mapstructure:"transport_opts" yaml:"transport_opts"`

	LogonStrategy string            `mapstructure:"logon_strategy" yaml:"logon_strategy"`
	LogonFields   map[string]string `mapstructure:"logon_fields" yaml:"logon_fields"`
}

// ApplyDefaults fills in every field spec.md's configuration table
// lists a default for, in place.
func (c *Config) ApplyDefaults() {
	if c.ProtocolVersion == "" {
		c.ProtocolVersion = "FIX.4.4"
	}
	if c.HeartbeatIntervalSeconds == 0 {
		c.HeartbeatIntervalSeconds = 30
	}
	if c.LogonStrategy == "" {
		c.LogonStrategy = "Standard"
	}
	if c.LogonFields == nil {
		c.LogonFields = map[string]string{}
	}
	if c.TransportOpts.DialTimeoutMS == 0 {
		c.TransportOpts.DialTimeoutMS = 10_000
	}
}

// Validate applies defaults and then runs struct-tag validation,
// returning fixerrors.ErrInvalidConfig wrapping the underlying
// validator error on failure. Start calls this so configuration
// errors fail fast, per spec.md §7.
func (c *Config) Validate() error {
	c.ApplyDefaults()
	if err := validate.Struct(c); err != nil {
		return fixerrors.Join(fixerrors.ErrInvalidConfig, err)
	}
	return nil
}
