// Copyright (C) 2007-2008 Barry Pederson <bp@barryp.org>
// Copyright (C) 2026 the amqp08 authors.
//
// This library is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 2.1 of the License, or (at your option) any later version.

package amqp08

import "time"

// Options configures a Connection's handshake and runtime behavior
// (spec.md §6, "Connection construction configuration").
type Options struct {
	VirtualHost string
	Locale      string

	UserID           string
	Password         string
	LoginMethod      string
	LoginResponse    []byte // overrides UserID/Password when non-nil
	ClientProperties Table

	// SSL is accepted and stored but never interpreted by the core
	// (spec.md §1 Non-goals); the caller is responsible for handing
	// NewConnection an already-TLS-wrapped transport, or using DialTLS.
	SSL bool

	Insist         bool
	ConnectTimeout time.Duration

	Heartbeat  uint16
	FrameMax   uint32
	ChannelMax uint16

	EventSink EventSink
}

var defaultOptions = Options{
	VirtualHost: "/",
	Locale:      "en_US",
	LoginMethod: "AMQPLAIN",
	UserID:      "guest",
	Password:    "guest",
	FrameMax:    131072,
	ChannelMax:  65535,
}

// Option configures Options during connection construction.
type Option func(*Options)

// WithVirtualHost selects the server-side namespace used at Open time.
func WithVirtualHost(vhost string) Option {
	return func(o *Options) { o.VirtualHost = vhost }
}

// WithLocale sets the negotiated locale (default "en_US").
func WithLocale(locale string) Option {
	return func(o *Options) { o.Locale = locale }
}

// WithCredentials sets userid/password used to build an AMQPLAIN
// LOGIN/PASSWORD response when LoginResponse is not supplied directly.
func WithCredentials(userID, password string) Option {
	return func(o *Options) { o.UserID, o.Password = userID, password }
}

// WithLoginMethod overrides the SASL mechanism name (default "AMQPLAIN").
func WithLoginMethod(method string) Option {
	return func(o *Options) { o.LoginMethod = method }
}

// WithLoginResponse supplies raw SASL response bytes directly, overriding
// any userid/password pair.
func WithLoginResponse(response []byte) Option {
	return func(o *Options) { o.LoginResponse = response }
}

// WithClientProperties merges extra entries over the built-in library
// identification table (spec.md §10, LIBRARY_PROPERTIES).
func WithClientProperties(props Table) Option {
	return func(o *Options) { o.ClientProperties = props }
}

// WithSSL marks the connection as TLS-protected for bookkeeping purposes
// only; it does not perform any TLS handshake (spec.md §1 Non-goals, §7
// ADDED note). Use DialTLS to actually establish a TLS transport.
func WithSSL(ssl bool) Option {
	return func(o *Options) { o.SSL = ssl }
}

// WithInsist forwards the insist flag to Connection.Open.
func WithInsist(insist bool) Option {
	return func(o *Options) { o.Insist = insist }
}

// WithConnectTimeout bounds Dial/DialTLS's underlying net.Dial call.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) { o.ConnectTimeout = d }
}

// WithHeartbeat requests a heartbeat interval in seconds; 0 disables it.
func WithHeartbeat(seconds uint16) Option {
	return func(o *Options) { o.Heartbeat = seconds }
}

// WithFrameMax sets the client's preferred maximum frame size (default
// 131072; the negotiated minimum effective value is 4096 per spec.md I3).
func WithFrameMax(frameMax uint32) Option {
	return func(o *Options) { o.FrameMax = frameMax }
}

// WithChannelMax sets the client's preferred maximum channel id (default
// 65535).
func WithChannelMax(channelMax uint16) Option {
	return func(o *Options) { o.ChannelMax = channelMax }
}

// WithEventSink injects a diagnostics sink. The default is a no-op.
func WithEventSink(sink EventSink) Option {
	return func(o *Options) { o.EventSink = sink }
}

// defaultClientProperties returns the built-in library identification
// merged under by user-supplied ClientProperties (spec.md §10,
// connection.py: LIBRARY_PROPERTIES).
func defaultClientProperties(extra Table) Table {
	props := Table{
		"library":         "amqp08",
		"library_version": "0.8",
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

// buildLoginResponse constructs the AMQPLAIN SASL response bytes: a field
// table `{LOGIN, PASSWORD}` with its leading 4-byte length prefix
// stripped, matching connection.py's AMQPLAIN branch (spec.md §10).
func buildLoginResponse(opt *Options) []byte {
	if opt.LoginResponse != nil {
		return opt.LoginResponse
	}
	w := NewWriter()
	_ = w.WriteTable(Table{
		"LOGIN":    opt.UserID,
		"PASSWORD": opt.Password,
	})
	encoded := w.Bytes()
	if len(encoded) < 4 {
		return encoded
	}
	return encoded[4:]
}
