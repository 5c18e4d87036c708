package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateLoan OutboxAggregateType = "loan"
	AggregateBook OutboxAggregateType = "book"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateLoan,
	AggregateBook,
}

// IsValid reports whether the value is a known aggregate type.
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

// OutboxEventType names a domain event written through the outbox.
type OutboxEventType string

const (
	EventLoanCreated     OutboxEventType = "loan_created"
	EventLoanReturned    OutboxEventType = "loan_returned"
	EventBookOutOfStock  OutboxEventType = "book_out_of_stock"
	EventBookBackInStock OutboxEventType = "book_back_in_stock"
)

var validEventTypes = []OutboxEventType{
	EventLoanCreated,
	EventLoanReturned,
	EventBookOutOfStock,
	EventBookBackInStock,
}

// IsValid reports whether the value is a known outbox event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
