// Copyright (C) 2007-2008 Barry Pederson <bp@barryp.org>
// Copyright (C) 2026 the amqp08 authors.
//
// This library is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 2.1 of the License, or (at your option) any later version.

package amqp08

import "sync"

// channelHandler consumes a decoded method's args (and content, for
// content-bearing methods) and returns either a reply value or nil
// (purely observed), per spec.md §4.5.
type channelHandler func(ch *Channel, args *Reader, content *Message) (any, error)

// queuedMethod is one entry in a channel's inbound method queue
// (spec.md §3, Channel.method_queue).
type queuedMethod struct {
	sig     MethodSignature
	args    *Reader
	content *Message
}

// Delivery wraps a content-bearing method (Basic.Return, Basic.Deliver,
// Basic.Get-Ok) as observed by the dispatcher. The high-level
// queue/exchange/publish/consume surface that produces and interprets
// these is out of this core's scope (spec.md §1); Delivery is the thin
// envelope the dispatcher hands back so a caller can decode Args itself.
type Delivery struct {
	Method  MethodSignature
	Args    *Reader
	Content *Message
}

// Channel is one multiplexed logical session (spec.md §3). Channel 0 is
// the connection itself. A Channel holds a back-reference to its
// Connection for sending and waiting; the Connection exclusively owns its
// Channels (spec.md §9 "Back-references").
type Channel struct {
	id   uint16
	conn *Connection

	// AutoDecode, when true, decodes a content delivery's Body into
	// BodyText when its ContentEncoding is "UTF-8", "utf-8", "ascii" or
	// "ASCII"; BodyText stays empty for any other encoding (spec.md §10,
	// supplemented from original_source's auto_decode).
	AutoDecode bool

	mu       sync.Mutex
	isOpen   bool
	closed   bool
	queue    []queuedMethod
	handlers map[MethodSignature]channelHandler
}

func newChannel(conn *Connection, id uint16) *Channel {
	ch := &Channel{id: id, conn: conn}
	ch.handlers = ch.buildMethodMap()
	return ch
}

// ID returns the channel's numeric id. Channel 0 is the connection.
func (ch *Channel) ID() uint16 { return ch.id }

// IsOpen reports whether the channel has completed its open handshake and
// has not since been closed.
func (ch *Channel) IsOpen() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.isOpen
}

func (ch *Channel) enqueue(sig MethodSignature, args *Reader, content *Message) {
	ch.mu.Lock()
	ch.queue = append(ch.queue, queuedMethod{sig: sig, args: args, content: content})
	ch.mu.Unlock()
}

// admissible implements spec.md §4.5 step 1's matching rule: allowed==nil
// matches anything, otherwise sig must be in allowed or be Channel.Close,
// which always preempts a pending wait (spec.md §4.5 "Close admissibility").
func admissible(sig MethodSignature, allowed map[MethodSignature]bool) bool {
	if allowed == nil {
		return true
	}
	if allowed[sig] {
		return true
	}
	return sig == sigChannelClose
}

// popQueued scans the channel's own queue front-to-back for the first
// entry matching allowed, removing and returning it.
func (ch *Channel) popQueued(allowed map[MethodSignature]bool) (MethodSignature, *Reader, *Message, bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	for i, qm := range ch.queue {
		if admissible(qm.sig, allowed) {
			ch.queue = append(ch.queue[:i:i], ch.queue[i+1:]...)
			return qm.sig, qm.args, qm.content, true
		}
	}
	return MethodSignature{}, nil, nil, false
}

// Wait blocks until a method matching allowed (or Channel.Close, or
// anything if allowed is nil) is available on this channel, then
// dispatches it through the channel's method map and returns the
// handler's reply (spec.md §4.5).
func (ch *Channel) Wait(allowed map[MethodSignature]bool) (any, error) {
	sig, args, content, err := ch.fetch(allowed)
	if err != nil {
		return nil, err
	}
	return ch.dispatch(sig, args, content)
}

func (ch *Channel) fetch(allowed map[MethodSignature]bool) (MethodSignature, *Reader, *Message, error) {
	if sig, args, content, ok := ch.popQueued(allowed); ok {
		return sig, args, content, nil
	}
	_, sig, args, content, err := ch.conn.waitMulti([]uint16{ch.id}, allowed)
	if err != nil {
		return MethodSignature{}, nil, nil, err
	}
	return sig, args, content, nil
}

func (ch *Channel) dispatch(sig MethodSignature, args *Reader, content *Message) (any, error) {
	if content != nil && ch.AutoDecode {
		ch.maybeDecodeText(content)
	}
	h, ok := ch.handlers[sig]
	if !ok {
		return nil, &UnexpectedMethod{Channel: ch.id, Signature: sig}
	}
	return h(ch, args, content)
}

// maybeDecodeText implements the supplemented auto_decode feature
// (original_source/kamqp connection.py: wait_multi): when the content
// carries a recognizable text encoding, populate BodyText best-effort.
func (ch *Channel) maybeDecodeText(content *Message) {
	if !content.hasContentEncoding {
		return
	}
	switch content.ContentEncoding {
	case "UTF-8", "utf-8", "ascii", "ASCII":
		content.BodyText = string(content.Body)
	}
}

// Open sends Channel.Open and waits for Channel.Open-Ok (spec.md §4.7).
func (ch *Channel) Open() error {
	args := NewWriter()
	_ = args.WriteShortStr("") // out-of-band, reserved
	if err := ch.conn.writer.WriteMethod(ch.id, sigChannelOpen, args.Bytes(), nil); err != nil {
		return err
	}
	_, err := ch.Wait(map[MethodSignature]bool{sigChannelOpenOk: true})
	return err
}

// Close sends Channel.Close and waits for Channel.Close-Ok, then removes
// the channel from its connection (spec.md §4.7).
func (ch *Channel) Close(replyCode uint16, replyText string, cause MethodSignature) error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return nil
	}
	ch.mu.Unlock()

	args := NewWriter()
	args.WriteShort(replyCode)
	_ = args.WriteShortStr(replyText)
	args.WriteShort(cause.Class)
	args.WriteShort(cause.Method)
	if err := ch.conn.writer.WriteMethod(ch.id, sigChannelClose, args.Bytes(), nil); err != nil {
		return err
	}
	_, err := ch.Wait(map[MethodSignature]bool{sigChannelCloseOk: true})
	ch.teardown()
	return err
}

// teardown releases the channel's method queue and any partial message,
// and removes it from its connection's channel map (spec.md §5 "Resource
// discipline").
func (ch *Channel) teardown() {
	ch.mu.Lock()
	ch.isOpen = false
	ch.closed = true
	ch.queue = nil
	ch.mu.Unlock()
	delete(ch.conn.reader.partial, ch.id)
	delete(ch.conn.reader.expectedNext, ch.id)
	ch.conn.removeChannel(ch.id)
}

func (ch *Channel) buildMethodMap() map[MethodSignature]channelHandler {
	m := map[MethodSignature]channelHandler{
		sigChannelOpenOk: func(ch *Channel, args *Reader, content *Message) (any, error) {
			ch.mu.Lock()
			ch.isOpen = true
			ch.mu.Unlock()
			return nil, nil
		},
		sigChannelCloseOk: func(ch *Channel, args *Reader, content *Message) (any, error) {
			return nil, nil
		},
		sigChannelClose: func(ch *Channel, args *Reader, content *Message) (any, error) {
			replyCode, _ := args.ReadShort()
			replyText, _ := args.ReadShortStr()
			classID, _ := args.ReadShort()
			methodID, _ := args.ReadShort()
			_ = ch.conn.writer.WriteMethod(ch.id, sigChannelCloseOk, nil, nil)
			ch.teardown()
			return nil, &ChannelClosedByPeer{
				Channel:   ch.id,
				ReplyCode: replyCode,
				ReplyText: replyText,
				CauseSig:  MethodSignature{Class: classID, Method: methodID},
			}
		},
	}
	for sig := range contentMethods {
		sig := sig
		m[sig] = func(ch *Channel, args *Reader, content *Message) (any, error) {
			return &Delivery{Method: sig, Args: args, Content: content}, nil
		}
	}
	return m
}
