package payloads

import "github.com/google/uuid"

// LoanCreatedEvent is emitted when a patron borrows a book.
type LoanCreatedEvent struct {
	LoanID            uuid.UUID `json:"loanId"`
	PatronID          uuid.UUID `json:"patronId"`
	BookID            uuid.UUID `json:"bookId"`
	Category          string    `json:"category"`
	RemainingQuantity int       `json:"remainingQuantity"`
}

// LoanReturnedEvent is emitted when a borrowed book comes back.
type LoanReturnedEvent struct {
	LoanID            uuid.UUID `json:"loanId"`
	PatronID          uuid.UUID `json:"patronId"`
	BookID            uuid.UUID `json:"bookId"`
	RemainingQuantity int       `json:"remainingQuantity"`
}

// BookStockEvent is emitted when a book crosses the zero-quantity boundary.
type BookStockEvent struct {
	BookID   uuid.UUID `json:"bookId"`
	Quantity int       `json:"quantity"`
}
