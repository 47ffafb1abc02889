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
	"strings"
	"sync"
	"time"
)

// RedirectError is returned by NewConnection when the peer answers
// Connection.Open with Connection.Redirect (spec.md §4.6). NewConnection
// itself never redials; Dial/DialTLS are the callers that act on it by
// closing the current transport and retrying the handshake against Host.
type RedirectError struct {
	Host       string
	KnownHosts string
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("amqp08: redirected to %q (known hosts: %q)", e.Host, e.KnownHosts)
}

// Connection is the handshake-negotiated, multiplexed session of spec.md
// §3. Channel 0 is the connection itself; Connection exclusively owns the
// transport, the framer, the writer, and every Channel (spec.md §3
// "Ownership").
type Connection struct {
	transport Transport
	reader    *MethodReader
	writer    *MethodWriter
	sink      EventSink

	ch0 *Channel

	channelsMu sync.Mutex
	channels   map[uint16]*Channel
	channelMax uint16

	frameMax  uint32
	heartbeat uint16

	versionMajor     uint8
	versionMinor     uint8
	serverProperties Table
	mechanisms       []string
	locales          []string

	// KnownHosts is refreshed on Open-Ok and on every Redirect (spec.md
	// §10, scenario 4).
	KnownHosts string

	tuneDone bool

	closedMu sync.Mutex
	closed   bool
}

// NewConnection drives the AMQP 0-8 handshake (spec.md §4.6) over
// transport and, on success, returns a Connection in the READY state.
// transport must not have had any frames written to or read from it yet;
// NewConnection writes the protocol header itself.
//
// If the peer redirects the client, NewConnection returns a
// *RedirectError instead of tearing down transport; the caller (typically
// Dial) is responsible for closing transport and retrying against the new
// host, since this constructor has no address to redial with.
func NewConnection(transport Transport, opts ...Option) (*Connection, error) {
	if transport == nil {
		return nil, ErrInvalidArgument
	}
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.EventSink == nil {
		o.EventSink = noopSink{}
	}

	c := &Connection{
		transport:  transport,
		sink:       o.EventSink,
		channels:   make(map[uint16]*Channel),
		channelMax: o.ChannelMax,
		frameMax:   o.FrameMax,
		heartbeat:  o.Heartbeat,
	}
	c.reader = NewMethodReader(transport, o.EventSink)
	c.writer = NewMethodWriter(transport, c.frameMax)
	c.ch0 = newChannel(c, 0)
	c.ch0.isOpen = true
	c.channels[0] = c.ch0
	c.installConnectionHandlers()

	if err := transport.WriteProtocolHeader(); err != nil {
		return nil, err
	}

	if _, err := c.ch0.Wait(map[MethodSignature]bool{sigConnectionStart: true}); err != nil {
		return nil, err
	}
	if err := c.sendStartOk(&o); err != nil {
		return nil, err
	}

	for !c.tuneDone {
		if _, err := c.ch0.Wait(map[MethodSignature]bool{
			sigConnectionSecure: true,
			sigConnectionTune:   true,
		}); err != nil {
			return nil, err
		}
	}

	if err := c.sendOpen(&o); err != nil {
		return nil, err
	}
	if _, err := c.ch0.Wait(map[MethodSignature]bool{
		sigConnectionOpenOk:   true,
		sigConnectionRedirect: true,
	}); err != nil {
		return nil, err
	}

	c.sink.Infof("amqp08: connection ready, known_hosts=%q", c.KnownHosts)
	return c, nil
}

// ChannelMax reports the negotiated maximum channel id.
func (c *Connection) ChannelMax() uint16 { return c.channelMax }

// FrameMax reports the negotiated maximum frame size.
func (c *Connection) FrameMax() uint32 { return c.frameMax }

// Heartbeat reports the negotiated heartbeat interval in seconds (0 if
// disabled).
func (c *Connection) Heartbeat() uint16 { return c.heartbeat }

// ServerProperties returns the table the peer sent in Connection.Start.
func (c *Connection) ServerProperties() Table { return c.serverProperties }

func (c *Connection) getChannel(id uint16) *Channel {
	c.channelsMu.Lock()
	defer c.channelsMu.Unlock()
	return c.channels[id]
}

func (c *Connection) removeChannel(id uint16) {
	c.channelsMu.Lock()
	delete(c.channels, id)
	c.channelsMu.Unlock()
}

// OpenChannel allocates the first free id in [1, channel_max], opens it,
// and returns it (spec.md §4.7). ErrNoFreeChannels is returned once every
// id is in use.
func (c *Connection) OpenChannel() (*Channel, error) {
	c.channelsMu.Lock()
	var id uint16
	found := false
	for i := 1; i <= int(c.channelMax); i++ {
		if _, used := c.channels[uint16(i)]; !used {
			id = uint16(i)
			found = true
			break
		}
	}
	if !found {
		c.channelsMu.Unlock()
		return nil, ErrNoFreeChannels
	}
	ch := newChannel(c, id)
	c.channels[id] = ch
	c.channelsMu.Unlock()

	if err := ch.Open(); err != nil {
		c.removeChannel(id)
		return nil, err
	}
	return ch, nil
}

// waitMulti implements spec.md §4.5 steps 2-3 at connection scope: scan
// each of channelIDs' own queues first, then pull frames from the framer,
// routing non-matching arrivals to their owning channel's queue and
// immediately processing unsolicited channel-0 traffic (almost always a
// peer-initiated Close).
func (c *Connection) waitMulti(channelIDs []uint16, allowed map[MethodSignature]bool) (uint16, MethodSignature, *Reader, *Message, error) {
	idSet := make(map[uint16]bool, len(channelIDs))
	for _, id := range channelIDs {
		idSet[id] = true
	}
	for _, id := range channelIDs {
		if ch := c.getChannel(id); ch != nil {
			if sig, args, content, ok := ch.popQueued(allowed); ok {
				return id, sig, args, content, nil
			}
		}
	}

	for {
		channel, sig, args, content, err := c.reader.ReadMethod()
		if err != nil {
			if isFatal(err) {
				c.teardown()
			}
			return 0, MethodSignature{}, nil, nil, err
		}
		if idSet[channel] && admissible(sig, allowed) {
			return channel, sig, args, content, nil
		}

		dst := c.getChannel(channel)
		if dst == nil {
			c.sink.Warnf("amqp08: method %s for unknown channel %d dropped", sig, channel)
			continue
		}
		dst.enqueue(sig, args, content)

		if channel == 0 {
			if _, err := c.ch0.Wait(nil); err != nil {
				return 0, MethodSignature{}, nil, nil, err
			}
		}
	}
}

// ReadTimeout waits on channel 0 as Wait does, but first sets a read
// deadline on the transport if it supports one (spec.md §5 read_timeout):
// on expiry the waiter observes a *TransportError without corrupting any
// per-channel state, since only whole-frame reads are interruptible.
func (c *Connection) ReadTimeout(d time.Duration, allowed map[MethodSignature]bool) (any, error) {
	if ds, ok := c.transport.(deadlineSetter); ok {
		_ = ds.SetReadDeadline(time.Now().Add(d))
		defer ds.SetReadDeadline(time.Time{})
	}
	return c.ch0.Wait(allowed)
}

// Close sends Connection.Close and waits for Close-Ok, then tears the
// connection down (spec.md §4.6).
func (c *Connection) Close(replyCode uint16, replyText string, cause MethodSignature) error {
	c.closedMu.Lock()
	if c.closed {
		c.closedMu.Unlock()
		return nil
	}
	c.closedMu.Unlock()

	args := NewWriter()
	args.WriteShort(replyCode)
	_ = args.WriteShortStr(replyText)
	args.WriteShort(cause.Class)
	args.WriteShort(cause.Method)
	if err := c.writer.WriteMethod(0, sigConnectionClose, args.Bytes(), nil); err != nil {
		return err
	}
	_, err := c.ch0.Wait(map[MethodSignature]bool{sigConnectionCloseOk: true})
	c.teardown()
	return err
}

// teardown closes the transport and tears down every channel but channel
// 0 (spec.md §4.6 "Teardown"). Safe to call more than once.
func (c *Connection) teardown() {
	c.closedMu.Lock()
	if c.closed {
		c.closedMu.Unlock()
		return
	}
	c.closed = true
	c.closedMu.Unlock()

	if closer, ok := c.transport.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	c.channelsMu.Lock()
	channels := make([]*Channel, 0, len(c.channels))
	for id, ch := range c.channels {
		if id == 0 {
			continue
		}
		channels = append(channels, ch)
	}
	c.channelsMu.Unlock()

	for _, ch := range channels {
		ch.teardown()
	}
}

func (c *Connection) sendStartOk(o *Options) error {
	args := NewWriter()
	if err := args.WriteTable(defaultClientProperties(o.ClientProperties)); err != nil {
		return err
	}
	if err := args.WriteShortStr(o.LoginMethod); err != nil {
		return err
	}
	args.WriteLongStr(buildLoginResponse(o))
	if err := args.WriteShortStr(o.Locale); err != nil {
		return err
	}
	return c.writer.WriteMethod(0, sigConnectionStartOk, args.Bytes(), nil)
}

func (c *Connection) sendSecureOk(response []byte) error {
	args := NewWriter()
	args.WriteLongStr(response)
	return c.writer.WriteMethod(0, sigConnectionSecureOk, args.Bytes(), nil)
}

func (c *Connection) sendTuneOk() error {
	args := NewWriter()
	args.WriteShort(c.channelMax)
	args.WriteLong(c.frameMax)
	args.WriteShort(c.heartbeat)
	return c.writer.WriteMethod(0, sigConnectionTuneOk, args.Bytes(), nil)
}

func (c *Connection) sendOpen(o *Options) error {
	args := NewWriter()
	if err := args.WriteShortStr(o.VirtualHost); err != nil {
		return err
	}
	if err := args.WriteShortStr(""); err != nil { // capabilities, reserved
		return err
	}
	args.WriteBit(o.Insist)
	return c.writer.WriteMethod(0, sigConnectionOpen, args.Bytes(), nil)
}

// negotiate implements the min-with-zero-as-unbounded rule of spec.md P7:
// a zero proposal (from either side) means "no preference", so the other
// side's value wins; otherwise the tighter constraint wins.
func negotiate[T ~uint16 | ~uint32](serverValue, clientPreset T) T {
	if serverValue == 0 {
		return clientPreset
	}
	if clientPreset == 0 || serverValue < clientPreset {
		return serverValue
	}
	return clientPreset
}

func splitSpaces(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

// installConnectionHandlers builds channel 0's method map: the connection
// handshake/teardown handlers, modeled after connection.py's _METHOD_MAP
// (spec.md §9 "Method dispatch").
func (c *Connection) installConnectionHandlers() {
	c.ch0.handlers[sigConnectionStart] = func(ch *Channel, args *Reader, content *Message) (any, error) {
		var err error
		if c.versionMajor, err = args.ReadOctet(); err != nil {
			return nil, err
		}
		if c.versionMinor, err = args.ReadOctet(); err != nil {
			return nil, err
		}
		if c.serverProperties, err = args.ReadTable(); err != nil {
			return nil, err
		}
		mechanisms, err := args.ReadLongStr()
		if err != nil {
			return nil, err
		}
		locales, err := args.ReadLongStr()
		if err != nil {
			return nil, err
		}
		c.mechanisms = splitSpaces(string(mechanisms))
		c.locales = splitSpaces(string(locales))
		c.sink.Debugf("amqp08: start from server %d.%d, mechanisms=%v, locales=%v",
			c.versionMajor, c.versionMinor, c.mechanisms, c.locales)
		return nil, nil
	}

	c.ch0.handlers[sigConnectionSecure] = func(ch *Channel, args *Reader, content *Message) (any, error) {
		if _, err := args.ReadLongStr(); err != nil { // challenge, unused: no SASL mechanism needs it here
			return nil, err
		}
		return nil, c.sendSecureOk(nil)
	}

	c.ch0.handlers[sigConnectionTune] = func(ch *Channel, args *Reader, content *Message) (any, error) {
		serverChannelMax, err := args.ReadShort()
		if err != nil {
			return nil, err
		}
		serverFrameMax, err := args.ReadLong()
		if err != nil {
			return nil, err
		}
		if _, err := args.ReadShort(); err != nil { // heartbeat, the server's proposal: ours wins either way
			return nil, err
		}
		c.channelMax = negotiate(serverChannelMax, c.channelMax)
		c.frameMax = negotiate(serverFrameMax, c.frameMax)
		if c.frameMax < 4096 { // every peer accepts at least 4096 (spec.md I3)
			c.frameMax = 4096
		}
		c.writer.SetFrameMax(c.frameMax)
		if err := c.sendTuneOk(); err != nil {
			return nil, err
		}
		c.tuneDone = true
		return nil, nil
	}

	c.ch0.handlers[sigConnectionOpenOk] = func(ch *Channel, args *Reader, content *Message) (any, error) {
		knownHosts, err := args.ReadShortStr()
		if err != nil {
			return nil, err
		}
		c.KnownHosts = knownHosts
		c.sink.Debugf("amqp08: open-ok, known_hosts=%q", knownHosts)
		return nil, nil
	}

	c.ch0.handlers[sigConnectionRedirect] = func(ch *Channel, args *Reader, content *Message) (any, error) {
		host, err := args.ReadShortStr()
		if err != nil {
			return nil, err
		}
		knownHosts, err := args.ReadShortStr()
		if err != nil {
			return nil, err
		}
		c.KnownHosts = knownHosts
		return nil, &RedirectError{Host: host, KnownHosts: knownHosts}
	}

	c.ch0.handlers[sigConnectionClose] = func(ch *Channel, args *Reader, content *Message) (any, error) {
		replyCode, _ := args.ReadShort()
		replyText, _ := args.ReadShortStr()
		classID, _ := args.ReadShort()
		methodID, _ := args.ReadShort()
		_ = c.writer.WriteMethod(0, sigConnectionCloseOk, nil, nil)
		c.teardown()
		return nil, &ConnectionClosedByPeer{
			ReplyCode: replyCode,
			ReplyText: replyText,
			CauseSig:  MethodSignature{Class: classID, Method: methodID},
		}
	}

	c.ch0.handlers[sigConnectionCloseOk] = func(ch *Channel, args *Reader, content *Message) (any, error) {
		return nil, nil
	}
}
