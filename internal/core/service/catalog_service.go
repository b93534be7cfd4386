package service

import (
	"context"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/port"
)

type CatalogService struct {
	runner
}

// CreateBook adds a book with every copy available.
func (s *CatalogService) CreateBook(ctx context.Context, in domain.BookInput) (domain.Book, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return domain.Book{}, err
	}

	var created domain.Book
	err := s.run(ctx, "create_book", func(ctx context.Context, tx port.Tx) error {
		if _, exists, err := tx.Books().FindByISBN(ctx, in.ISBN); err != nil {
			return err
		} else if exists {
			return &domain.DuplicateKeyError{Field: "isbn", Value: in.ISBN}
		}

		book, err := tx.Books().Insert(ctx, domain.Book{
			Title:           in.Title,
			Author:          in.Author,
			ISBN:            in.ISBN,
			TotalCopies:     in.TotalCopies,
			AvailableCopies: in.TotalCopies,
		})
		created = book
		return err
	})
	if err != nil {
		return domain.Book{}, err
	}

	s.log.Info().Int64("book_id", created.ID).Str("isbn", created.ISBN).Int("total_copies", created.TotalCopies).Msg("book created")
	return created, nil
}

// UpdateBook rewrites the editable fields. The copies in circulation are
// taken from the row as locked by this transaction, so a borrow or return
// that committed after the caller loaded the book is never lost.
func (s *CatalogService) UpdateBook(ctx context.Context, id int64, in domain.BookInput) (domain.Book, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return domain.Book{}, err
	}

	var updated domain.Book
	err := s.run(ctx, "update_book", func(ctx context.Context, tx port.Tx) error {
		current, err := tx.Books().Lock(ctx, id)
		if err != nil {
			return err
		}

		other, exists, err := tx.Books().FindByISBN(ctx, in.ISBN)
		if err != nil {
			return err
		}
		if exists && other.ID != id {
			return &domain.DuplicateKeyError{Field: "isbn", Value: in.ISBN}
		}

		available, err := current.Resize(in.TotalCopies)
		if err != nil {
			return err
		}

		updated = domain.Book{
			ID:              id,
			Title:           in.Title,
			Author:          in.Author,
			ISBN:            in.ISBN,
			TotalCopies:     in.TotalCopies,
			AvailableCopies: available,
		}
		return tx.Books().Update(ctx, updated)
	})
	if err != nil {
		return domain.Book{}, err
	}

	s.log.Info().Int64("book_id", id).Int("total_copies", updated.TotalCopies).Int("available_copies", updated.AvailableCopies).Msg("book updated")
	return updated, nil
}

// DeleteBook removes a book that has no open borrowings. Closed records
// keep pointing at the deleted id.
func (s *CatalogService) DeleteBook(ctx context.Context, id int64) error {
	err := s.run(ctx, "delete_book", func(ctx context.Context, tx port.Tx) error {
		if _, err := tx.Books().Lock(ctx, id); err != nil {
			return err
		}

		open, err := tx.Borrowings().CountOpenByBook(ctx, id)
		if err != nil {
			return err
		}
		if open > 0 {
			return &domain.ReferentialConflictError{Entity: "book", ID: id, OpenLoans: open}
		}

		return tx.Books().Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.log.Info().Int64("book_id", id).Msg("book deleted")
	return nil
}

func (s *CatalogService) GetBook(ctx context.Context, id int64) (domain.Book, error) {
	var book domain.Book
	err := s.run(ctx, "get_book", func(ctx context.Context, tx port.Tx) error {
		var err error
		book, err = tx.Books().Get(ctx, id)
		return err
	})
	return book, err
}

// ListBooks returns books ordered by title.
func (s *CatalogService) ListBooks(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	var books []domain.Book
	err := s.run(ctx, "list_books", func(ctx context.Context, tx port.Tx) error {
		var err error
		books, err = tx.Books().List(ctx, filter)
		return err
	})
	return books, err
}
