package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateProduct OutboxAggregateType = "product"
	AggregateSKU     OutboxAggregateType = "sku"
	AggregateCart    OutboxAggregateType = "cart"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateProduct,
	AggregateSKU,
	AggregateCart,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventProductSaved    OutboxEventType = "product_saved"
	EventProductDeleted  OutboxEventType = "product_deleted"
	EventProductRestored OutboxEventType = "product_restored"
	EventVariantDeleted  OutboxEventType = "variant_deleted"
	EventVariantRestored OutboxEventType = "variant_restored"
	EventCartCheckedOut  OutboxEventType = "cart_checked_out"
)

var validOutboxEventTypes = []OutboxEventType{
	EventProductSaved,
	EventProductDeleted,
	EventProductRestored,
	EventVariantDeleted,
	EventVariantRestored,
	EventCartCheckedOut,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// TouchesCatalog reports whether consumers holding product views must refresh them.
func (e OutboxEventType) TouchesCatalog() bool {
	switch e {
	case EventProductSaved, EventProductDeleted, EventProductRestored, EventVariantDeleted, EventVariantRestored:
		return true
	default:
		return false
	}
}

// OutboxDLQErrorReason records why the publisher gave up on an event.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts marks events that kept failing until their attempt budget ran out.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable marks events that could never be published as stored.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

// IsValid reports whether the value matches a known dead-letter reason.
func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}
