// Copyright (C) 2026 the amqp08 authors.
//
// This library is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 2.1 of the License, or (at your option) any later version.

package amqp08

// EventSink receives diagnostic events from the connection: handshake
// progress, heartbeat activity, and frame-level anomalies. It replaces a
// process-wide logger with an explicit injection point (spec.md §7,
// Design Note "Global logging"); callers wanting zap-formatted output can
// use the zapadapter sub-package.
type EventSink interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// noopSink discards every event. It is the default EventSink when none is
// configured via WithEventSink.
type noopSink struct{}

func (noopSink) Debugf(string, ...any) {}
func (noopSink) Infof(string, ...any)  {}
func (noopSink) Warnf(string, ...any)  {}
func (noopSink) Errorf(string, ...any) {}
