// Copyright (C) 2026 the amqp08 authors.

package amqp08

import "github.com/google/uuid"

// NewCorrelationID returns a fresh identifier suitable for
// Message.CorrelationID, e.g. for request/reply pairing over Basic.Publish
// and Basic.Deliver. The core has no opinion on correlation semantics
// beyond the property's wire encoding (spec.md §1 Non-goals); this helper
// just gives callers a collision-resistant value to put there.
func NewCorrelationID() string {
	return uuid.New().String()
}
