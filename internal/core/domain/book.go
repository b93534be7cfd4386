package domain

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// MinISBNLength is the shortest ISBN the catalog accepts.
const MinISBNLength = 10

// Upper bounds shared by every store, sized to the narrowest column.
const (
	MaxTitleLength  = 512
	MaxAuthorLength = 512
	MaxISBNLength   = 64
	MaxCopies       = math.MaxInt32
)

type Book struct {
	ID              int64
	Title           string
	Author          string
	ISBN            string
	TotalCopies     int
	AvailableCopies int
}

// Borrowed returns the number of copies currently out on loan.
func (b Book) Borrowed() int {
	return b.TotalCopies - b.AvailableCopies
}

// Resize computes the available count for a new total, keeping the copies
// in circulation untouched. It must be called with a row read inside the
// transaction that will store the result.
func (b Book) Resize(newTotal int) (int, error) {
	borrowed := b.Borrowed()
	if newTotal < borrowed {
		return 0, &ValidationError{
			Field:  "totalCopies",
			Reason: "cannot reduce below copies in circulation",
		}
	}
	available := newTotal - borrowed
	if available < 0 {
		available = 0
	}
	return available, nil
}

// BookInput carries the caller-editable fields of a book.
type BookInput struct {
	Title       string `json:"title" yaml:"title"`
	Author      string `json:"author" yaml:"author"`
	ISBN        string `json:"isbn" yaml:"isbn"`
	TotalCopies int    `json:"total_copies" yaml:"total_copies"`
}

func (in BookInput) Normalize() BookInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.ISBN = strings.TrimSpace(in.ISBN)
	return in
}

// Validate checks field shapes only; uniqueness is checked by the store.
func (in BookInput) Validate() error {
	in = in.Normalize()
	switch {
	case in.Title == "":
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	case in.Author == "":
		return &ValidationError{Field: "author", Reason: "must not be empty"}
	case in.ISBN == "":
		return &ValidationError{Field: "isbn", Reason: "must not be empty"}
	case utf8.RuneCountInString(in.ISBN) < MinISBNLength:
		return &ValidationError{Field: "isbn", Reason: "must be at least 10 characters"}
	case in.TotalCopies <= 0:
		return &ValidationError{Field: "totalCopies", Reason: "must be greater than zero"}
	case in.TotalCopies > MaxCopies:
		return &ValidationError{Field: "totalCopies", Reason: fmt.Sprintf("must be at most %d", MaxCopies)}
	}
	if err := checkLength("title", in.Title, MaxTitleLength); err != nil {
		return err
	}
	if err := checkLength("author", in.Author, MaxAuthorLength); err != nil {
		return err
	}
	return checkLength("isbn", in.ISBN, MaxISBNLength)
}

func checkLength(field, value string, limit int) error {
	if utf8.RuneCountInString(value) > limit {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("must be at most %d characters", limit)}
	}
	return nil
}

// SearchKey folds a value for case-insensitive matching. Stores keep it in
// a column next to the value because SQLite's LOWER only folds ASCII.
func SearchKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// ISBNKey is the case-insensitive form used for uniqueness.
func ISBNKey(isbn string) string {
	return SearchKey(isbn)
}

type BookFilter struct {
	// Search matches title, author or isbn, case-insensitively.
	Search        string
	AvailableOnly bool
}
