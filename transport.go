// Copyright (C) 2026 the amqp08 authors.

package amqp08

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strings"
	"time"
)

// deadlineSetter is implemented by net.Conn. Where a Transport is backed
// by one, read_timeout-equivalent behavior (spec.md §5) is implemented by
// setting a read deadline around a single ReadFrame call rather than by
// the core inventing its own timer.
type deadlineSetter interface {
	SetReadDeadline(t time.Time) error
}

const defaultPort = "5672"

func ensurePort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, defaultPort)
}

// Dial connects to addr ("host" or "host:port", default port 5672),
// completes the AMQP 0-8 handshake, and follows Connection.Redirect until
// the peer accepts the connection (spec.md §4.6, §10 scenario 4).
func Dial(ctx context.Context, addr string, opts ...Option) (*Connection, error) {
	return dialLoop(ctx, addr, opts, func(ctx context.Context, host string, timeout time.Duration) (net.Conn, error) {
		return (&net.Dialer{Timeout: timeout}).DialContext(ctx, "tcp", host)
	})
}

// DialTLS is Dial over a TLS-wrapped connection. The core never performs
// TLS negotiation itself (spec.md §1 Non-goals); this is thin sugar over
// tls.Dial plus NewConnection.
func DialTLS(ctx context.Context, addr string, tlsConfig *tls.Config, opts ...Option) (*Connection, error) {
	return dialLoop(ctx, addr, opts, func(ctx context.Context, host string, timeout time.Duration) (net.Conn, error) {
		d := tls.Dialer{NetDialer: &net.Dialer{Timeout: timeout}, Config: tlsConfig}
		return d.DialContext(ctx, "tcp", host)
	})
}

func dialLoop(ctx context.Context, addr string, opts []Option, dial func(context.Context, string, time.Duration) (net.Conn, error)) (*Connection, error) {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}

	host := ensurePort(addr)
	seen := map[string]bool{}
	for {
		if seen[host] {
			return nil, errors.New("amqp08: redirect loop detected at " + host)
		}
		seen[host] = true

		raw, err := dial(ctx, host, o.ConnectTimeout)
		if err != nil {
			return nil, newTransportError(err)
		}

		conn, err := NewConnection(NewStreamTransport(raw, raw), opts...)
		if err == nil {
			return conn, nil
		}

		var redirect *RedirectError
		if !errors.As(err, &redirect) {
			_ = raw.Close()
			return nil, err
		}
		_ = raw.Close()
		host = ensurePort(strings.TrimSpace(redirect.Host))
	}
}
