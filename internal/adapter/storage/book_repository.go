package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/rl1809/library-lending/internal/core/domain"
)

const (
	tableBooks      = "books"
	colID           = "id"
	colTitle        = "title"
	colTitleKey     = "title_key"
	colAuthor       = "author"
	colAuthorKey    = "author_key"
	colISBN         = "isbn"
	colISBNKey      = "isbn_key"
	colTotalCopies  = "total_copies"
	colAvailable    = "available_copies"
	entityBook      = "book"
	availableMinus1 = "available_copies - 1"
	availablePlus1  = "available_copies + 1"
)

var bookColumns = []interface{}{colID, colTitle, colAuthor, colISBN, colTotalCopies, colAvailable}

var errAvailabilityOverflow = errors.New("available copies already equal total copies")

type bookRow struct {
	ID              int64  `db:"id"`
	Title           string `db:"title"`
	Author          string `db:"author"`
	ISBN            string `db:"isbn"`
	TotalCopies     int    `db:"total_copies"`
	AvailableCopies int    `db:"available_copies"`
}

func (r bookRow) toDomain() domain.Book {
	return domain.Book{
		ID:              r.ID,
		Title:           r.Title,
		Author:          r.Author,
		ISBN:            r.ISBN,
		TotalCopies:     r.TotalCopies,
		AvailableCopies: r.AvailableCopies,
	}
}

type bookRepository struct {
	t *sqlTx
}

func (r bookRepository) Insert(ctx context.Context, book domain.Book) (domain.Book, error) {
	ds := r.t.d.builder.Insert(tableBooks).Rows(goqu.Record{
		colTitle:       book.Title,
		colTitleKey:    domain.SearchKey(book.Title),
		colAuthor:      book.Author,
		colAuthorKey:   domain.SearchKey(book.Author),
		colISBN:        book.ISBN,
		colISBNKey:     domain.ISBNKey(book.ISBN),
		colTotalCopies: book.TotalCopies,
		colAvailable:   book.AvailableCopies,
	})

	id, err := r.t.insert(ctx, "insert book", ds)
	if err != nil {
		return domain.Book{}, duplicateISBN(err, book.ISBN)
	}
	book.ID = id
	return book, nil
}

func (r bookRepository) Get(ctx context.Context, id int64) (domain.Book, error) {
	return r.get(ctx, id, false)
}

func (r bookRepository) Lock(ctx context.Context, id int64) (domain.Book, error) {
	return r.get(ctx, id, true)
}

func (r bookRepository) get(ctx context.Context, id int64, lock bool) (domain.Book, error) {
	ds := r.t.d.builder.From(tableBooks).Select(bookColumns...).Where(goqu.C(colID).Eq(id))
	if lock && r.t.d.lockRows {
		ds = ds.ForUpdate(exp.Wait)
	}

	var row bookRow
	if err := r.t.get(ctx, "select book", &row, ds.Prepared(true)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Book{}, &domain.NotFoundError{Entity: entityBook, ID: id}
		}
		return domain.Book{}, err
	}
	return row.toDomain(), nil
}

func (r bookRepository) FindByISBN(ctx context.Context, isbn string) (domain.Book, bool, error) {
	ds := r.t.d.builder.From(tableBooks).
		Select(bookColumns...).
		Where(goqu.C(colISBNKey).Eq(domain.ISBNKey(isbn))).
		Limit(1)

	var row bookRow
	if err := r.t.get(ctx, "select book by isbn", &row, ds.Prepared(true)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return row.toDomain(), true, nil
}

func (r bookRepository) Update(ctx context.Context, book domain.Book) error {
	ds := r.t.d.builder.Update(tableBooks).
		Set(goqu.Record{
			colTitle:       book.Title,
			colTitleKey:    domain.SearchKey(book.Title),
			colAuthor:      book.Author,
			colAuthorKey:   domain.SearchKey(book.Author),
			colISBN:        book.ISBN,
			colISBNKey:     domain.ISBNKey(book.ISBN),
			colTotalCopies: book.TotalCopies,
			colAvailable:   book.AvailableCopies,
		}).
		Where(goqu.C(colID).Eq(book.ID))

	// MySQL reports zero affected rows for a no-op update, so the count
	// is not used to detect a missing row; callers lock the row first.
	if _, err := r.t.exec(ctx, "update book", ds.Prepared(true)); err != nil {
		return duplicateISBN(err, book.ISBN)
	}
	return nil
}

// DecrementAvailable is conditional on a copy being left, so it cannot take
// availability below zero even if a caller skipped the locked read.
func (r bookRepository) DecrementAvailable(ctx context.Context, id int64) error {
	ds := r.t.d.builder.Update(tableBooks).
		Set(goqu.Record{colAvailable: goqu.L(availableMinus1)}).
		Where(goqu.C(colID).Eq(id), goqu.C(colAvailable).Gt(0))

	n, err := r.t.exec(ctx, "decrement available copies", ds.Prepared(true))
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.OutOfStockError{BookID: id}
	}
	return nil
}

func (r bookRepository) IncrementAvailable(ctx context.Context, id int64) error {
	ds := r.t.d.builder.Update(tableBooks).
		Set(goqu.Record{colAvailable: goqu.L(availablePlus1)}).
		Where(goqu.C(colID).Eq(id), goqu.C(colAvailable).Lt(goqu.C(colTotalCopies)))

	n, err := r.t.exec(ctx, "increment available copies", ds.Prepared(true))
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return storageError("increment available copies", errAvailabilityOverflow)
	}
	return nil
}

func (r bookRepository) Delete(ctx context.Context, id int64) error {
	ds := r.t.d.builder.Delete(tableBooks).Where(goqu.C(colID).Eq(id))

	n, err := r.t.exec(ctx, "delete book", ds.Prepared(true))
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.NotFoundError{Entity: entityBook, ID: id}
	}
	return nil
}

func (r bookRepository) List(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	ds := r.t.d.builder.From(tableBooks).Select(bookColumns...)

	if pattern := likePattern(filter.Search); pattern != "" {
		ds = ds.Where(goqu.Or(
			goqu.C(colTitleKey).Like(pattern),
			goqu.C(colAuthorKey).Like(pattern),
			goqu.C(colISBNKey).Like(pattern),
		))
	}
	if filter.AvailableOnly {
		ds = ds.Where(goqu.C(colAvailable).Gt(0))
	}
	ds = ds.Order(goqu.C(colTitleKey).Asc(), goqu.C(colID).Asc())

	var rows []bookRow
	if err := r.t.selectAll(ctx, "list books", &rows, ds.Prepared(true)); err != nil {
		return nil, err
	}

	books := make([]domain.Book, 0, len(rows))
	for _, row := range rows {
		books = append(books, row.toDomain())
	}
	return books, nil
}

func duplicateISBN(err error, isbn string) error {
	if errors.Is(err, errUniqueViolation) {
		return &domain.DuplicateKeyError{Field: colISBN, Value: isbn}
	}
	return err
}

// likePattern folds a search term into a substring pattern over the *_key
// columns; empty means no filtering.
func likePattern(search string) string {
	search = domain.SearchKey(search)
	if search == "" {
		return ""
	}
	return "%" + search + "%"
}
