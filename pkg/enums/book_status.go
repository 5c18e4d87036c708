package enums

import "fmt"

// BookStatus is the availability of a title on the shelf. It is derived from
// quantity and never stored on its own.
type BookStatus string

const (
	BookStatusAvailable   BookStatus = "AVAILABLE"
	BookStatusUnavailable BookStatus = "UNAVAILABLE"
)

var validBookStatuses = []BookStatus{
	BookStatusAvailable,
	BookStatusUnavailable,
}

// String implements fmt.Stringer.
func (s BookStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known BookStatus.
func (s BookStatus) IsValid() bool {
	for _, candidate := range validBookStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseBookStatus converts raw input into a BookStatus.
func ParseBookStatus(value string) (BookStatus, error) {
	for _, candidate := range validBookStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid book status %q", value)
}

// BookStatusForQuantity returns UNAVAILABLE iff quantity is zero or below.
func BookStatusForQuantity(quantity int) BookStatus {
	if quantity > 0 {
		return BookStatusAvailable
	}
	return BookStatusUnavailable
}
