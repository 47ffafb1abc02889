// Copyright (C) 2007-2008 Barry Pederson <bp@barryp.org>
// Copyright (C) 2026 the amqp08 authors.
//
// This library is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 2.1 of the License, or (at your option) any later version.

package amqp08

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNoFreeChannels reports that channel allocation is exhausted, i.e. every
// id in [1, channel_max] is already in use.
var ErrNoFreeChannels = errors.New("amqp08: no free channel ids")

// ErrInvalidArgument reports a nil transport or otherwise unusable
// configuration passed to a constructor.
var ErrInvalidArgument = errors.New("amqp08: invalid argument")

// FrameFormatError reports a malformed frame: bad header, wrong frame-end
// octet, truncated payload, or an unknown field-table type tag. It is
// always fatal to the connection.
type FrameFormatError struct {
	cause error
}

func newFrameFormatError(format string, args ...any) *FrameFormatError {
	return &FrameFormatError{cause: errors.Errorf("amqp08: frame format: "+format, args...)}
}

func wrapFrameFormatError(cause error, context string) *FrameFormatError {
	return &FrameFormatError{cause: errors.Wrap(cause, "amqp08: frame format: "+context)}
}

func (e *FrameFormatError) Error() string { return e.cause.Error() }
func (e *FrameFormatError) Unwrap() error { return e.cause }
func (e *FrameFormatError) fatal() bool   { return true }

// TransportError wraps a failure returned by the underlying byte transport,
// including read/write timeouts. It is fatal to the connection.
type TransportError struct {
	cause error
}

func newTransportError(cause error) *TransportError {
	return &TransportError{cause: errors.Wrap(cause, "amqp08: transport")}
}

func (e *TransportError) Error() string { return e.cause.Error() }
func (e *TransportError) Unwrap() error { return e.cause }
func (e *TransportError) fatal() bool   { return true }

// UnexpectedFrame reports that a frame's kind did not match the channel's
// expected next frame type. It is scoped to the offending channel; the
// connection remains usable.
type UnexpectedFrame struct {
	Channel  uint16
	Got      uint8
	Expected uint8
}

func (e *UnexpectedFrame) Error() string {
	return fmt.Sprintf("amqp08: channel %d: received frame type %s while expecting %s",
		e.Channel, frameKindName(e.Got), frameKindName(e.Expected))
}
func (e *UnexpectedFrame) fatal() bool { return false }

// UnexpectedMethod reports a method signature with no handler registered in
// the channel's method map.
type UnexpectedMethod struct {
	Channel   uint16
	Signature MethodSignature
}

func (e *UnexpectedMethod) Error() string {
	return fmt.Sprintf("amqp08: channel %d: unexpected method %s", e.Channel, e.Signature)
}
func (e *UnexpectedMethod) fatal() bool { return false }

// ConnectionClosedByPeer is surfaced when the server sends Connection.Close.
// The connection has already been torn down by the time this is returned.
type ConnectionClosedByPeer struct {
	ReplyCode uint16
	ReplyText string
	CauseSig  MethodSignature
}

func (e *ConnectionClosedByPeer) Error() string {
	return fmt.Sprintf("amqp08: connection closed by peer: code=%d text=%q cause=%s",
		e.ReplyCode, e.ReplyText, e.CauseSig)
}
func (e *ConnectionClosedByPeer) fatal() bool { return true }

// ChannelClosedByPeer is surfaced when the server sends Channel.Close on a
// user channel. Only the affected channel is torn down.
type ChannelClosedByPeer struct {
	Channel   uint16
	ReplyCode uint16
	ReplyText string
	CauseSig  MethodSignature
}

func (e *ChannelClosedByPeer) Error() string {
	return fmt.Sprintf("amqp08: channel %d closed by peer: code=%d text=%q cause=%s",
		e.Channel, e.ReplyCode, e.ReplyText, e.CauseSig)
}
func (e *ChannelClosedByPeer) fatal() bool { return false }

// HeartbeatTimeout is raised by the heartbeat monitor after two consecutive
// ticks with no inbound traffic. Recoverable at the caller's discretion.
type HeartbeatTimeout struct {
	Missed int
}

func (e *HeartbeatTimeout) Error() string {
	return fmt.Sprintf("amqp08: heartbeat timeout: missed %d consecutive ticks", e.Missed)
}
func (e *HeartbeatTimeout) fatal() bool { return false }

// fataler is implemented by the errors that must tear down the connection
// (spec §7 propagation rules), replacing a process-wide exception
// hierarchy with an explicit, narrow marker interface.
type fataler interface {
	fatal() bool
}

func isFatal(err error) bool {
	f, ok := err.(fataler)
	return ok && f.fatal()
}
