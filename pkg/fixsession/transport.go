package fixsession

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// Transport is the byte-stream abstraction spec.md §1 treats as an
// external collaborator: fixsession never assumes TCP or TLS directly,
// only that it can Read, Write, and Close. Tests substitute
// testutil.PipeTransport; production callers can substitute anything
// that satisfies this interface (a multiplexed connection, a message
// queue bridge, whatever the deployment needs).
type Transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// DialTCP dials host:port, optionally upgrading to TLS per opts. This
// is fixgo's only concrete Transport: no third-party transport library
// in the retrieval pack targets a raw SOH-delimited TCP byte stream
// (see DESIGN.md), so this uses net/crypto/tls directly.
func DialTCP(ctx context.Context, host string, port int, opts TransportOpts) (Transport, error) {
	timeout := time.Duration(opts.DialTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	dialer := net.Dialer{Timeout: timeout}
	addr := fmt.Sprintf("%s:%d", host, port)

	if !opts.TLSEnabled {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}

	tlsConfig := &tls.Config{
		ServerName:         opts.ServerName,
		InsecureSkipVerify: opts.TLSSkipVerify,
	}
	tlsDialer := tls.Dialer{NetDialer: &dialer, Config: tlsConfig}
	conn, err := tlsDialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
