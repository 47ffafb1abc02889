// Copyright (C) 2007-2008 Barry Pederson <bp@barryp.org>
// Copyright (C) 2026 the amqp08 authors.
//
// This library is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 2.1 of the License, or (at your option) any later version.

package amqp08

// partialMessage is the per-channel content-assembly cursor of spec.md §3
// (PartialMessage). At most one exists per channel at a time.
type partialMessage struct {
	sig      MethodSignature
	args     *Reader
	msg      *Message
	bodySize uint64
	received uint64
	parts    [][]byte
}

// delivery is one fully-assembled logical unit: a bare method, or a
// method plus its content.
type delivery struct {
	channel uint16
	sig     MethodSignature
	args    *Reader
	content *Message
}

// queued holds either a delivery or a surfaced error, preserving the
// arrival-ordered FIFO semantics of spec.md §4.3. Channel-scoped errors
// and deliveries share one queue because ordering across frame kinds on a
// single channel must be preserved exactly as received.
type queued struct {
	d   *delivery
	err error
}

// MethodReader is the Framer of spec.md §4.3: it decodes the inbound frame
// stream, reassembles method/header/body triples into logical deliveries,
// and tracks each channel's expected next frame kind.
type MethodReader struct {
	transport Transport
	sink      EventSink

	queue []queued

	expectedNext map[uint16]uint8
	partial      map[uint16]*partialMessage

	bytesRecv uint64
}

// NewMethodReader returns a MethodReader that decodes frames from
// transport.
func NewMethodReader(transport Transport, sink EventSink) *MethodReader {
	if sink == nil {
		sink = noopSink{}
	}
	return &MethodReader{
		transport:    transport,
		sink:         sink,
		expectedNext: make(map[uint16]uint8),
		partial:      make(map[uint16]*partialMessage),
	}
}

// BytesRecv is a frame counter (not a byte counter), exposed to the
// heartbeat monitor per spec.md §4.3.
func (f *MethodReader) BytesRecv() uint64 { return f.bytesRecv }

func (f *MethodReader) expected(channel uint16) uint8 {
	if k, ok := f.expectedNext[channel]; ok {
		return k
	}
	return FrameMethod
}

// ReadMethod returns the next fully-assembled logical unit from any
// channel, in arrival order (spec.md §4.3).
func (f *MethodReader) ReadMethod() (channel uint16, sig MethodSignature, args *Reader, content *Message, err error) {
	for len(f.queue) == 0 {
		f.pump()
	}
	item := f.queue[0]
	f.queue = f.queue[1:]
	if item.err != nil {
		return 0, MethodSignature{}, nil, nil, item.err
	}
	d := item.d
	return d.channel, d.sig, d.args, d.content, nil
}

// pump reads and processes exactly one frame from the transport, enqueuing
// at most one queue entry.
func (f *MethodReader) pump() {
	kind, channel, payload, err := f.transport.ReadFrame()
	if err != nil {
		f.queue = append(f.queue, queued{err: err})
		return
	}
	f.bytesRecv++

	if kind == FrameHeartbeat {
		f.replyHeartbeat()
		return
	}

	expected := f.expected(channel)
	if kind != expected {
		f.queue = append(f.queue, queued{err: &UnexpectedFrame{Channel: channel, Got: kind, Expected: expected}})
		return
	}

	switch kind {
	case FrameMethod:
		f.processMethodFrame(channel, payload)
	case FrameHeader:
		f.processContentHeader(channel, payload)
	case FrameBody:
		f.processContentBody(channel, payload)
	}
}

func (f *MethodReader) replyHeartbeat() {
	if err := f.transport.WriteFrame(FrameHeartbeat, 0, nil); err != nil {
		f.queue = append(f.queue, queued{err: err})
		return
	}
	f.sink.Debugf("amqp08: replied to heartbeat")
}

func (f *MethodReader) processMethodFrame(channel uint16, payload []byte) {
	if len(payload) < 4 {
		f.queue = append(f.queue, queued{err: newFrameFormatError("method frame payload too short: %d bytes", len(payload))})
		return
	}
	r := NewReader(payload)
	classID, _ := r.ReadShort()
	methodID, _ := r.ReadShort()
	sig := MethodSignature{Class: classID, Method: methodID}
	args := NewReader(payload[4:])

	if isContentMethod(sig) {
		f.partial[channel] = &partialMessage{sig: sig, args: args}
		f.expectedNext[channel] = FrameHeader
		return
	}
	f.queue = append(f.queue, queued{d: &delivery{channel: channel, sig: sig, args: args}})
}

func (f *MethodReader) processContentHeader(channel uint16, payload []byte) {
	p, ok := f.partial[channel]
	if !ok {
		f.queue = append(f.queue, queued{err: newFrameFormatError("content header on channel %d with no pending method", channel)})
		f.expectedNext[channel] = FrameMethod
		return
	}
	if len(payload) < 12 {
		f.queue = append(f.queue, queued{err: newFrameFormatError("content header payload too short: %d bytes", len(payload))})
		return
	}
	r := NewReader(payload)
	_, _ = r.ReadShort() // class_id, unused: signature already known from the method frame
	_, _ = r.ReadShort() // weight, reserved
	bodySize, _ := r.ReadLongLong()

	msg := &Message{}
	if err := msg.decodeProperties(r); err != nil {
		f.queue = append(f.queue, queued{err: err})
		return
	}

	p.msg = msg
	p.bodySize = bodySize
	if bodySize == 0 {
		f.finalize(channel, p)
		return
	}
	f.expectedNext[channel] = FrameBody
}

func (f *MethodReader) processContentBody(channel uint16, payload []byte) {
	p, ok := f.partial[channel]
	if !ok {
		f.queue = append(f.queue, queued{err: newFrameFormatError("content body on channel %d with no pending header", channel)})
		f.expectedNext[channel] = FrameMethod
		return
	}
	p.parts = append(p.parts, payload)
	p.received += uint64(len(payload))
	if p.received == p.bodySize {
		f.finalize(channel, p)
	}
}

func (f *MethodReader) finalize(channel uint16, p *partialMessage) {
	body := make([]byte, 0, p.received)
	for _, part := range p.parts {
		body = append(body, part...)
	}
	p.msg.Body = body

	f.queue = append(f.queue, queued{d: &delivery{channel: channel, sig: p.sig, args: p.args, content: p.msg}})
	delete(f.partial, channel)
	f.expectedNext[channel] = FrameMethod
}
