// Copyright (C) 2007-2008 Barry Pederson <bp@barryp.org>
// Copyright (C) 2026 the amqp08 authors.
//
// This library is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 2.1 of the License, or (at your option) any later version.

package amqp08

// Heartbeat monitors liveness by comparing the writer's and reader's frame
// counters across ticks (spec.md §4.8). It has no clock source of its own
// (spec.md §1 Non-goals); a caller drives it by calling Tick on a timer at
// half the negotiated heartbeat interval.
type Heartbeat struct {
	conn *Connection

	prevSent uint64
	prevRecv uint64
	missed   int

	// superseded marks this monitor as replaced; Tick becomes a no-op once
	// set, letting the old monitor self-cancel (spec.md §4.8).
	superseded bool
}

// NewHeartbeat returns a Heartbeat watching conn's writer/reader counters.
func NewHeartbeat(conn *Connection) *Heartbeat {
	return &Heartbeat{conn: conn}
}

// Supersede marks h as replaced; subsequent Tick calls are no-ops.
func (h *Heartbeat) Supersede() { h.superseded = true }

// Tick runs one check: if no frames were sent since the last tick, emit a
// heartbeat; if no frames were received, increment the miss counter and
// return *HeartbeatTimeout once it reaches 2 (spec.md §4.8).
func (h *Heartbeat) Tick() error {
	if h.superseded {
		return nil
	}

	sent := h.conn.writer.BytesSent()
	recv := h.conn.reader.BytesRecv()

	if sent == h.prevSent {
		if err := h.conn.writer.WriteHeartbeat(); err != nil {
			return err
		}
	}

	if recv == h.prevRecv {
		h.missed++
	} else {
		h.missed = 0
	}

	h.prevSent = h.conn.writer.BytesSent()
	h.prevRecv = recv

	if h.missed >= 2 {
		return &HeartbeatTimeout{Missed: h.missed}
	}
	return nil
}
