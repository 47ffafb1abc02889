// Copyright (C) 2026 the amqp08 authors.
//
// This library is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 2.1 of the License, or (at your option) any later version.

package amqp08

import "fmt"

// MethodSignature identifies an AMQP method by its (class_id, method_id)
// pair. Signatures are totally ordered by lexicographic comparison of the
// two fields, as implemented by Less. Go's built-in struct comparison gives
// equality only, which is enough for MethodSignature to be a map key.
type MethodSignature struct {
	Class  uint16
	Method uint16
}

func (s MethodSignature) String() string {
	if name, ok := methodNames[s]; ok {
		return fmt.Sprintf("%s(%d,%d)", name, s.Class, s.Method)
	}
	return fmt.Sprintf("(%d,%d)", s.Class, s.Method)
}

// Less reports whether s sorts before other under the lexicographic order
// spec.md §3 requires of MethodSignature.
func (s MethodSignature) Less(other MethodSignature) bool {
	if s.Class != other.Class {
		return s.Class < other.Class
	}
	return s.Method < other.Method
}

// Class ids used by the method signatures this core dispatches on.
const (
	classConnection uint16 = 10
	classChannel    uint16 = 20
	classBasic      uint16 = 60
)

// Connection class methods (spec.md §6).
var (
	sigConnectionStart    = MethodSignature{classConnection, 10}
	sigConnectionStartOk  = MethodSignature{classConnection, 11}
	sigConnectionSecure   = MethodSignature{classConnection, 20}
	sigConnectionSecureOk = MethodSignature{classConnection, 21}
	sigConnectionTune     = MethodSignature{classConnection, 30}
	sigConnectionTuneOk   = MethodSignature{classConnection, 31}
	sigConnectionOpen     = MethodSignature{classConnection, 40}
	sigConnectionOpenOk   = MethodSignature{classConnection, 41}
	sigConnectionRedirect = MethodSignature{classConnection, 50}
	sigConnectionClose    = MethodSignature{classConnection, 60}
	sigConnectionCloseOk  = MethodSignature{classConnection, 61}
)

// Channel class methods.
var (
	sigChannelOpen   = MethodSignature{classChannel, 10}
	sigChannelOpenOk = MethodSignature{classChannel, 11}
	sigChannelClose  = MethodSignature{classChannel, 40}
	sigChannelCloseOk = MethodSignature{classChannel, 41}
)

// Basic class content-bearing methods this core must recognize to drive
// content assembly (spec.md §4.3 step 4).
var (
	sigBasicReturn  = MethodSignature{classBasic, 50}
	sigBasicDeliver = MethodSignature{classBasic, 60}
	sigBasicGetOk   = MethodSignature{classBasic, 71}
)

// contentMethods is the set from spec.md §4.3 step 4: a method signature in
// this set is followed by a content header and zero or more body frames.
var contentMethods = map[MethodSignature]bool{
	sigBasicReturn:  true,
	sigBasicDeliver: true,
	sigBasicGetOk:   true,
}

func isContentMethod(sig MethodSignature) bool { return contentMethods[sig] }

// methodNames gives human-readable names for the signatures this core
// knows about, used only for diagnostics (UnexpectedMethod and closed-by-peer
// error text, event-sink messages) -- never for dispatch, which is driven purely by the signature
// value. Named after the class/method table in packetd's pamqp decoder.
var methodNames = map[MethodSignature]string{
	sigConnectionStart:    "Connection.Start",
	sigConnectionStartOk:  "Connection.Start-Ok",
	sigConnectionSecure:   "Connection.Secure",
	sigConnectionSecureOk: "Connection.Secure-Ok",
	sigConnectionTune:     "Connection.Tune",
	sigConnectionTuneOk:   "Connection.Tune-Ok",
	sigConnectionOpen:     "Connection.Open",
	sigConnectionOpenOk:   "Connection.Open-Ok",
	sigConnectionRedirect: "Connection.Redirect",
	sigConnectionClose:    "Connection.Close",
	sigConnectionCloseOk:  "Connection.Close-Ok",
	sigChannelOpen:        "Channel.Open",
	sigChannelOpenOk:      "Channel.Open-Ok",
	sigChannelClose:       "Channel.Close",
	sigChannelCloseOk:     "Channel.Close-Ok",
	sigBasicReturn:        "Basic.Return",
	sigBasicDeliver:       "Basic.Deliver",
	sigBasicGetOk:         "Basic.Get-Ok",
}

func frameKindName(kind uint8) string {
	switch kind {
	case FrameMethod:
		return "Method"
	case FrameHeader:
		return "Header"
	case FrameBody:
		return "Body"
	case FrameHeartbeat:
		return "Heartbeat"
	default:
		return fmt.Sprintf("Unknown(%d)", kind)
	}
}
