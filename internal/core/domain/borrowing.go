package domain

import "time"

// DateLayout is the storage and wire format of borrow and return dates.
const DateLayout = "2006-01-02"

type BorrowingState string

const (
	BorrowingOpen   BorrowingState = "open"
	BorrowingClosed BorrowingState = "closed"
)

type BorrowingRecord struct {
	ID         int64
	BookID     int64
	BorrowerID int64
	BorrowDate time.Time
	ReturnDate *time.Time
}

func (r BorrowingRecord) State() BorrowingState {
	if r.ReturnDate == nil {
		return BorrowingOpen
	}
	return BorrowingClosed
}

func (r BorrowingRecord) IsOpen() bool {
	return r.State() == BorrowingOpen
}

// Close is the only transition a record has: open to closed, once.
func (r BorrowingRecord) Close(returnDate time.Time) (BorrowingRecord, error) {
	if r.ReturnDate != nil {
		return r, &AlreadyReturnedError{BorrowingID: r.ID, ReturnDate: *r.ReturnDate}
	}
	day := Day(returnDate)
	if day.Before(r.BorrowDate) {
		return r, &ValidationError{Field: "returnDate", Reason: "must not be before the borrow date"}
	}
	r.ReturnDate = &day
	return r, nil
}

// BorrowingDetail is a ledger row joined with the names a UI displays.
// Titles and names are empty once the book or borrower has been deleted.
type BorrowingDetail struct {
	BorrowingRecord
	BookTitle    string
	BorrowerName string
}

type BorrowingFilter struct {
	// Search matches book title or borrower name, case-insensitively.
	Search     string
	OpenOnly   bool
	BookID     int64
	BorrowerID int64
}

// Day strips the clock part of t, keeping its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a DateLayout string.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Reason: "must use the YYYY-MM-DD format"}
	}
	return t, nil
}
