package handler

import (
	"time"

	"github.com/rl1809/library-lending/internal/core/domain"
)

// Wire shapes shared by the HTTP and gRPC transports. Dates travel as
// YYYY-MM-DD strings.

type BookResponse struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
}

type BorrowerResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ContactInfo string `json:"contact_info"`
}

type BorrowingResponse struct {
	ID           int64  `json:"id"`
	BookID       int64  `json:"book_id"`
	BorrowerID   int64  `json:"borrower_id"`
	BorrowDate   string `json:"borrow_date"`
	ReturnDate   string `json:"return_date,omitempty"`
	State        string `json:"state"`
	BookTitle    string `json:"book_title,omitempty"`
	BorrowerName string `json:"borrower_name,omitempty"`
}

type DiscrepancyResponse struct {
	BookID            int64  `json:"book_id"`
	Title             string `json:"title"`
	TotalCopies       int    `json:"total_copies"`
	AvailableCopies   int    `json:"available_copies"`
	OpenBorrowings    int    `json:"open_borrowings"`
	ExpectedAvailable int    `json:"expected_available"`
}

type BorrowRequest struct {
	BookID     int64  `json:"book_id"`
	BorrowerID int64  `json:"borrower_id"`
	BorrowDate string `json:"borrow_date,omitempty"`
	// RequestKey deduplicates resubmissions. HTTP callers send it as the
	// Idempotency-Key header instead.
	RequestKey string `json:"request_key,omitempty"`
}

type ReturnRequest struct {
	BorrowingID int64  `json:"borrowing_id"`
	ReturnDate  string `json:"return_date,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func toBookResponse(b domain.Book) BookResponse {
	return BookResponse{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		ISBN:            b.ISBN,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
	}
}

func toBorrowerResponse(b domain.Borrower) BorrowerResponse {
	return BorrowerResponse{ID: b.ID, Name: b.Name, ContactInfo: b.ContactInfo}
}

func toBorrowingResponse(r domain.BorrowingRecord) BorrowingResponse {
	resp := BorrowingResponse{
		ID:         r.ID,
		BookID:     r.BookID,
		BorrowerID: r.BorrowerID,
		BorrowDate: r.BorrowDate.Format(domain.DateLayout),
		State:      string(r.State()),
	}
	if r.ReturnDate != nil {
		resp.ReturnDate = r.ReturnDate.Format(domain.DateLayout)
	}
	return resp
}

func toBorrowingDetailResponse(d domain.BorrowingDetail) BorrowingResponse {
	resp := toBorrowingResponse(d.BorrowingRecord)
	resp.BookTitle = d.BookTitle
	resp.BorrowerName = d.BorrowerName
	return resp
}

func toDiscrepancyResponse(d domain.Discrepancy) DiscrepancyResponse {
	return DiscrepancyResponse{
		BookID:            d.BookID,
		Title:             d.Title,
		TotalCopies:       d.TotalCopies,
		AvailableCopies:   d.AvailableCopies,
		OpenBorrowings:    d.OpenBorrowings,
		ExpectedAvailable: d.ExpectedAvailable(),
	}
}

func mapSlice[T, R any](in []T, fn func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}

// optionalDay parses s, returning the zero time for an empty string so the
// engine falls back to today.
func optionalDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return domain.ParseDay(s)
}
