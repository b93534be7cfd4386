package port

import (
	"context"
	"time"

	"github.com/rl1809/library-lending/internal/core/domain"
)

// Store is the transaction boundary shared by the catalog, the borrower
// registry and the ledger. InTx commits when fn returns nil and rolls back
// every write otherwise. Rows read through the Lock* methods stay locked
// until the transaction ends.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Tx interface {
	Books() BookRepository
	Borrowers() BorrowerRepository
	Borrowings() BorrowingRepository
}

type BookRepository interface {
	// Insert stores a new book and returns it with its id.
	Insert(ctx context.Context, book domain.Book) (domain.Book, error)

	// Get returns a NotFoundError when id does not resolve.
	Get(ctx context.Context, id int64) (domain.Book, error)

	// Lock reads the book and holds its row lock for the rest of the transaction.
	Lock(ctx context.Context, id int64) (domain.Book, error)

	// FindByISBN matches case-insensitively; ok is false when nothing matches.
	FindByISBN(ctx context.Context, isbn string) (book domain.Book, ok bool, err error)

	Update(ctx context.Context, book domain.Book) error

	// DecrementAvailable takes one copy, returning OutOfStockError when none is left.
	DecrementAvailable(ctx context.Context, id int64) error

	IncrementAvailable(ctx context.Context, id int64) error

	Delete(ctx context.Context, id int64) error

	List(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error)
}

type BorrowerRepository interface {
	Insert(ctx context.Context, borrower domain.Borrower) (domain.Borrower, error)
	Get(ctx context.Context, id int64) (domain.Borrower, error)
	Lock(ctx context.Context, id int64) (domain.Borrower, error)
	FindByName(ctx context.Context, name string) (borrower domain.Borrower, ok bool, err error)
	Update(ctx context.Context, borrower domain.Borrower) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter domain.BorrowerFilter) ([]domain.Borrower, error)
}

// BorrowingRepository is append-only apart from closing an open record.
type BorrowingRepository interface {
	Insert(ctx context.Context, record domain.BorrowingRecord) (domain.BorrowingRecord, error)
	Get(ctx context.Context, id int64) (domain.BorrowingRecord, error)
	Lock(ctx context.Context, id int64) (domain.BorrowingRecord, error)

	// Close sets the return date of a still-open record.
	Close(ctx context.Context, id int64, returnDate time.Time) error

	CountOpenByBook(ctx context.Context, bookID int64) (int, error)
	CountOpenByBorrower(ctx context.Context, borrowerID int64) (int, error)
	List(ctx context.Context, filter domain.BorrowingFilter) ([]domain.BorrowingDetail, error)

	// Discrepancies lists books whose availability disagrees with open records.
	Discrepancies(ctx context.Context) ([]domain.Discrepancy, error)
}
