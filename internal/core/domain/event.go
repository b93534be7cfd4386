package domain

import "time"

type EventType string

const (
	EventBookBorrowed EventType = "lending.book_borrowed"
	EventBookReturned EventType = "lending.book_returned"
)

// LendingEvent describes a committed borrow or return.
type LendingEvent struct {
	Type            EventType `json:"type"`
	BorrowingID     int64     `json:"borrowing_id"`
	BookID          int64     `json:"book_id"`
	BorrowerID      int64     `json:"borrower_id"`
	Date            string    `json:"date"`
	AvailableCopies int       `json:"available_copies"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// Discrepancy is a book whose stored availability disagrees with the ledger.
type Discrepancy struct {
	BookID          int64
	Title           string
	TotalCopies     int
	AvailableCopies int
	OpenBorrowings  int
}

func (d Discrepancy) ExpectedAvailable() int {
	return d.TotalCopies - d.OpenBorrowings
}
