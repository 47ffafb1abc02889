// Copyright (C) 2007-2008 Barry Pederson <bp@barryp.org>
// Copyright (C) 2026 the amqp08 authors.
//
// This library is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 2.1 of the License, or (at your option) any later version.

package amqp08

import "time"

// Message is a content-bearing unit (spec.md §3): a fixed set of 14
// properties plus an opaque body. Properties are declared in the order
// basic_message.py's Message.PROPERTIES lists them; that order is also the
// bit order of the presence bitmap on the wire (spec.md §4.4.b, §8 P6).
type Message struct {
	ContentType        string
	ContentEncoding    string
	ApplicationHeaders Table
	DeliveryMode       uint8
	Priority           uint8
	CorrelationID      string
	ReplyTo            string
	Expiration         string
	MessageID          string
	Timestamp          time.Time
	Type               string
	UserID             string
	AppID              string
	ClusterID          string

	Body []byte

	// BodyText holds Body decoded as text when Channel.AutoDecode is set
	// and ContentEncoding names a decodable encoding (see
	// Channel.maybeDecodeText in channel.go).
	BodyText string

	// bodyIsText marks that Body was populated via SetText and should
	// default ContentEncoding to UTF-8 on send if unset (spec.md §4.4.a).
	bodyIsText bool

	hasContentType        bool
	hasContentEncoding     bool
	hasApplicationHeaders bool
	hasDeliveryMode       bool
	hasPriority           bool
	hasCorrelationID      bool
	hasReplyTo            bool
	hasExpiration         bool
	hasMessageID          bool
	hasTimestamp          bool
	hasType               bool
	hasUserID             bool
	hasAppID              bool
	hasClusterID          bool
}

// propertyBit indexes the 14 declared properties in wire order, matching
// the bit positions of the presence bitmap.
const (
	propContentType = iota
	propContentEncoding
	propApplicationHeaders
	propDeliveryMode
	propPriority
	propCorrelationID
	propReplyTo
	propExpiration
	propMessageID
	propTimestamp
	propType
	propUserID
	propAppID
	propClusterID
	propCount
)

// SetContentType sets ContentType and marks it present on the wire.
func (m *Message) SetContentType(v string) { m.ContentType = v; m.hasContentType = true }

// SetContentEncoding sets ContentEncoding and marks it present on the wire.
func (m *Message) SetContentEncoding(v string) {
	m.ContentEncoding = v
	m.hasContentEncoding = true
}

// SetApplicationHeaders sets ApplicationHeaders and marks it present.
func (m *Message) SetApplicationHeaders(v Table) {
	m.ApplicationHeaders = v
	m.hasApplicationHeaders = true
}

// SetDeliveryMode sets DeliveryMode and marks it present.
func (m *Message) SetDeliveryMode(v uint8) { m.DeliveryMode = v; m.hasDeliveryMode = true }

// SetPriority sets Priority and marks it present.
func (m *Message) SetPriority(v uint8) { m.Priority = v; m.hasPriority = true }

// SetCorrelationID sets CorrelationID and marks it present.
func (m *Message) SetCorrelationID(v string) { m.CorrelationID = v; m.hasCorrelationID = true }

// SetReplyTo sets ReplyTo and marks it present.
func (m *Message) SetReplyTo(v string) { m.ReplyTo = v; m.hasReplyTo = true }

// SetExpiration sets Expiration and marks it present.
func (m *Message) SetExpiration(v string) { m.Expiration = v; m.hasExpiration = true }

// SetMessageID sets MessageID and marks it present.
func (m *Message) SetMessageID(v string) { m.MessageID = v; m.hasMessageID = true }

// SetTimestamp sets Timestamp and marks it present.
func (m *Message) SetTimestamp(v time.Time) { m.Timestamp = v; m.hasTimestamp = true }

// SetType sets Type and marks it present.
func (m *Message) SetType(v string) { m.Type = v; m.hasType = true }

// SetUserID sets UserID and marks it present.
func (m *Message) SetUserID(v string) { m.UserID = v; m.hasUserID = true }

// SetAppID sets AppID and marks it present.
func (m *Message) SetAppID(v string) { m.AppID = v; m.hasAppID = true }

// SetClusterID sets ClusterID and marks it present.
func (m *Message) SetClusterID(v string) { m.ClusterID = v; m.hasClusterID = true }

// HasContentEncoding reports whether ContentEncoding was explicitly set.
func (m *Message) HasContentEncoding() bool { return m.hasContentEncoding }

// SetText sets Body to the UTF-8 bytes of s and marks the message as
// carrying text, so WriteMethod defaults ContentEncoding to "UTF-8" when
// the caller hasn't set one explicitly (spec.md §4.4.a).
func (m *Message) SetText(s string) {
	m.Body = []byte(s)
	m.bodyIsText = true
}

// encodeProperties serializes the presence bitmap and each present field,
// in declaration order, per spec.md §4.4.b.
func (m *Message) encodeProperties() []byte {
	var bitmap uint16
	set := func(bit int, present bool) {
		if present {
			bitmap |= 1 << (15 - bit)
		}
	}
	set(propContentType, m.hasContentType)
	set(propContentEncoding, m.hasContentEncoding)
	set(propApplicationHeaders, m.hasApplicationHeaders)
	set(propDeliveryMode, m.hasDeliveryMode)
	set(propPriority, m.hasPriority)
	set(propCorrelationID, m.hasCorrelationID)
	set(propReplyTo, m.hasReplyTo)
	set(propExpiration, m.hasExpiration)
	set(propMessageID, m.hasMessageID)
	set(propTimestamp, m.hasTimestamp)
	set(propType, m.hasType)
	set(propUserID, m.hasUserID)
	set(propAppID, m.hasAppID)
	set(propClusterID, m.hasClusterID)

	w := NewWriter()
	w.WriteShort(bitmap)
	if m.hasContentType {
		_ = w.WriteShortStr(m.ContentType)
	}
	if m.hasContentEncoding {
		_ = w.WriteShortStr(m.ContentEncoding)
	}
	if m.hasApplicationHeaders {
		_ = w.WriteTable(m.ApplicationHeaders)
	}
	if m.hasDeliveryMode {
		w.WriteOctet(m.DeliveryMode)
	}
	if m.hasPriority {
		w.WriteOctet(m.Priority)
	}
	if m.hasCorrelationID {
		_ = w.WriteShortStr(m.CorrelationID)
	}
	if m.hasReplyTo {
		_ = w.WriteShortStr(m.ReplyTo)
	}
	if m.hasExpiration {
		_ = w.WriteShortStr(m.Expiration)
	}
	if m.hasMessageID {
		_ = w.WriteShortStr(m.MessageID)
	}
	if m.hasTimestamp {
		w.WriteTimestamp(m.Timestamp)
	}
	if m.hasType {
		_ = w.WriteShortStr(m.Type)
	}
	if m.hasUserID {
		_ = w.WriteShortStr(m.UserID)
	}
	if m.hasAppID {
		_ = w.WriteShortStr(m.AppID)
	}
	if m.hasClusterID {
		_ = w.WriteShortStr(m.ClusterID)
	}
	return w.Bytes()
}

// decodeProperties parses a presence bitmap and its present fields, in
// declaration order, into m.
func (m *Message) decodeProperties(r *Reader) error {
	bitmap, err := r.ReadShort()
	if err != nil {
		return err
	}
	present := func(bit int) bool { return bitmap&(1<<(15-bit)) != 0 }

	if present(propContentType) {
		if m.ContentType, err = r.ReadShortStr(); err != nil {
			return err
		}
		m.hasContentType = true
	}
	if present(propContentEncoding) {
		if m.ContentEncoding, err = r.ReadShortStr(); err != nil {
			return err
		}
		m.hasContentEncoding = true
	}
	if present(propApplicationHeaders) {
		if m.ApplicationHeaders, err = r.ReadTable(); err != nil {
			return err
		}
		m.hasApplicationHeaders = true
	}
	if present(propDeliveryMode) {
		if m.DeliveryMode, err = r.ReadOctet(); err != nil {
			return err
		}
		m.hasDeliveryMode = true
	}
	if present(propPriority) {
		if m.Priority, err = r.ReadOctet(); err != nil {
			return err
		}
		m.hasPriority = true
	}
	if present(propCorrelationID) {
		if m.CorrelationID, err = r.ReadShortStr(); err != nil {
			return err
		}
		m.hasCorrelationID = true
	}
	if present(propReplyTo) {
		if m.ReplyTo, err = r.ReadShortStr(); err != nil {
			return err
		}
		m.hasReplyTo = true
	}
	if present(propExpiration) {
		if m.Expiration, err = r.ReadShortStr(); err != nil {
			return err
		}
		m.hasExpiration = true
	}
	if present(propMessageID) {
		if m.MessageID, err = r.ReadShortStr(); err != nil {
			return err
		}
		m.hasMessageID = true
	}
	if present(propTimestamp) {
		if m.Timestamp, err = r.ReadTimestamp(); err != nil {
			return err
		}
		m.hasTimestamp = true
	}
	if present(propType) {
		if m.Type, err = r.ReadShortStr(); err != nil {
			return err
		}
		m.hasType = true
	}
	if present(propUserID) {
		if m.UserID, err = r.ReadShortStr(); err != nil {
			return err
		}
		m.hasUserID = true
	}
	if present(propAppID) {
		if m.AppID, err = r.ReadShortStr(); err != nil {
			return err
		}
		m.hasAppID = true
	}
	if present(propClusterID) {
		if m.ClusterID, err = r.ReadShortStr(); err != nil {
			return err
		}
		m.hasClusterID = true
	}
	return nil
}
