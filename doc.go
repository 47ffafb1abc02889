// Copyright (C) 2007-2008 Barry Pederson <bp@barryp.org>
// Copyright (C) 2026 the amqp08 authors.
//
// This library is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 2.1 of the License, or (at your option) any later version.

// Package amqp08 implements the framing, method dispatch, and
// connection-lifecycle core of an AMQP 0-8 client.
//
// Semantics and design:
//   - Wire framing: every frame on the wire is
//     kind:u8 | channel:u16 | length:u32 | payload[length] | 0xCE.
//     Frame kinds are Method(1), Header(2), Body(3), Heartbeat(8).
//   - Method dispatch: inbound (method, header, body...) frame triples are
//     reassembled by a MethodReader into logical (channel, signature, args,
//     content) units and queued per channel. A Channel's Wait drains its own
//     queue first, then pulls from the shared MethodReader.
//   - Handshake: NewConnection drives protocol-header -> Start/StartOk ->
//     optional Secure loop -> Tune/TuneOk -> Open/OpenOk|Redirect for a
//     single already-established Transport, returning a *RedirectError on
//     Redirect. Dial and DialTLS own the retry loop: close the old
//     transport, dial the redirected host, and call NewConnection again.
//   - Concurrency: the core is single-threaded cooperative with respect to
//     the transport. A read-side mutex, a write-side mutex, and a
//     channel-map mutex are the only synchronization the core needs; the
//     heartbeat monitor reads the receive counter without locking and the
//     send counter under the MethodWriter's mutex.
//
// The package excludes the high-level AMQP operation surface (queue,
// exchange, bind, publish, consume) beyond the method-signature table
// needed to describe dispatch, TCP/TLS socket setup (treated as an opaque
// Transport), and any logging or scheduling beyond what the caller
// supplies.
package amqp08
