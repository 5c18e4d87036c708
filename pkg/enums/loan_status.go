package enums

import "fmt"

// LoanStatus tracks a single borrow. LATE and LOST are reserved for an external
// policy process; nothing in this service transitions into them.
type LoanStatus string

const (
	LoanStatusBorrowed LoanStatus = "BORROWED"
	LoanStatusReturned LoanStatus = "RETURNED"
	LoanStatusLate     LoanStatus = "LATE"
	LoanStatusLost     LoanStatus = "LOST"
)

var validLoanStatuses = []LoanStatus{
	LoanStatusBorrowed,
	LoanStatusReturned,
	LoanStatusLate,
	LoanStatusLost,
}

// String implements fmt.Stringer.
func (s LoanStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known LoanStatus.
func (s LoanStatus) IsValid() bool {
	for _, candidate := range validLoanStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseLoanStatus converts raw input into a LoanStatus.
func ParseLoanStatus(value string) (LoanStatus, error) {
	for _, candidate := range validLoanStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid loan status %q", value)
}
