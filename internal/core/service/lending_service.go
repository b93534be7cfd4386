package service

import (
	"context"
	"time"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/port"
)

type LendingService struct {
	runner
	clock     func() time.Time
	guard     port.RequestGuard
	publisher port.EventPublisher
}

// BorrowBook lends one copy. The book row is locked before its availability
// is checked, so two callers racing for the last copy are serialized and the
// loser gets OutOfStockError. A zero borrowDate means today.
func (s *LendingService) BorrowBook(ctx context.Context, bookID, borrowerID int64, borrowDate time.Time) (domain.BorrowingRecord, error) {
	if borrowDate.IsZero() {
		borrowDate = s.clock()
	}

	var (
		record    domain.BorrowingRecord
		available int
	)
	err := s.run(ctx, "borrow_book", func(ctx context.Context, tx port.Tx) error {
		book, err := tx.Books().Lock(ctx, bookID)
		if err != nil {
			return err
		}
		if _, err := tx.Borrowers().Lock(ctx, borrowerID); err != nil {
			return err
		}
		if book.AvailableCopies <= 0 {
			return &domain.OutOfStockError{BookID: bookID}
		}

		record, err = tx.Borrowings().Insert(ctx, domain.BorrowingRecord{
			BookID:     bookID,
			BorrowerID: borrowerID,
			BorrowDate: domain.Day(borrowDate),
		})
		if err != nil {
			return err
		}

		if err := tx.Books().DecrementAvailable(ctx, bookID); err != nil {
			return err
		}
		available = book.AvailableCopies - 1
		return nil
	})
	if err != nil {
		return domain.BorrowingRecord{}, err
	}

	s.log.Info().
		Int64("borrowing_id", record.ID).
		Int64("book_id", bookID).
		Int64("borrower_id", borrowerID).
		Int("available_copies", available).
		Msg("book borrowed")
	s.publish(ctx, domain.EventBookBorrowed, record, record.BorrowDate, available)

	return record, nil
}

// BorrowBookOnce is BorrowBook guarded by a caller-supplied request key, for
// transports where a user may submit the same form twice. The key is
// released when the borrow fails so the caller can resubmit it.
func (s *LendingService) BorrowBookOnce(ctx context.Context, requestKey string, bookID, borrowerID int64, borrowDate time.Time) (domain.BorrowingRecord, error) {
	if s.guard == nil || requestKey == "" {
		return s.BorrowBook(ctx, bookID, borrowerID, borrowDate)
	}

	claimed, err := s.guard.Claim(ctx, requestKey)
	if err != nil {
		return domain.BorrowingRecord{}, &domain.StorageError{Op: "claim request", Err: err}
	}
	if !claimed {
		return domain.BorrowingRecord{}, &domain.DuplicateRequestError{Key: requestKey}
	}

	record, err := s.BorrowBook(ctx, bookID, borrowerID, borrowDate)
	if err != nil {
		releaseCtx, cancel := s.detached(ctx)
		defer cancel()
		if releaseErr := s.guard.Release(releaseCtx, requestKey); releaseErr != nil {
			s.log.Warn().Err(releaseErr).Str("request_key", requestKey).Msg("failed to release request key")
		}
		return domain.BorrowingRecord{}, err
	}
	return record, nil
}

// ReturnBook closes an open borrowing and puts its copy back. A zero
// returnDate means today.
func (s *LendingService) ReturnBook(ctx context.Context, borrowingID int64, returnDate time.Time) (domain.BorrowingRecord, error) {
	if returnDate.IsZero() {
		returnDate = s.clock()
	}

	var (
		closed    domain.BorrowingRecord
		available int
	)
	err := s.run(ctx, "return_book", func(ctx context.Context, tx port.Tx) error {
		record, err := tx.Borrowings().Lock(ctx, borrowingID)
		if err != nil {
			return err
		}

		closed, err = record.Close(returnDate)
		if err != nil {
			return err
		}

		if err := tx.Borrowings().Close(ctx, borrowingID, *closed.ReturnDate); err != nil {
			return err
		}
		if err := tx.Books().IncrementAvailable(ctx, record.BookID); err != nil {
			return err
		}

		book, err := tx.Books().Get(ctx, record.BookID)
		if err != nil {
			return err
		}
		available = book.AvailableCopies
		return nil
	})
	if err != nil {
		return domain.BorrowingRecord{}, err
	}

	s.log.Info().
		Int64("borrowing_id", borrowingID).
		Int64("book_id", closed.BookID).
		Int("available_copies", available).
		Msg("book returned")
	s.publish(ctx, domain.EventBookReturned, closed, *closed.ReturnDate, available)

	return closed, nil
}

func (s *LendingService) GetBorrowing(ctx context.Context, id int64) (domain.BorrowingRecord, error) {
	var record domain.BorrowingRecord
	err := s.run(ctx, "get_borrowing", func(ctx context.Context, tx port.Tx) error {
		var err error
		record, err = tx.Borrowings().Get(ctx, id)
		return err
	})
	return record, err
}

// ListBorrowings returns ledger rows, most recent borrow date first.
func (s *LendingService) ListBorrowings(ctx context.Context, filter domain.BorrowingFilter) ([]domain.BorrowingDetail, error) {
	var details []domain.BorrowingDetail
	err := s.run(ctx, "list_borrowings", func(ctx context.Context, tx port.Tx) error {
		var err error
		details, err = tx.Borrowings().List(ctx, filter)
		return err
	})
	return details, err
}

// Audit reports books whose stored availability disagrees with the number
// of open borrowings. An empty result means the ledger is consistent.
func (s *LendingService) Audit(ctx context.Context) ([]domain.Discrepancy, error) {
	var found []domain.Discrepancy
	err := s.run(ctx, "audit", func(ctx context.Context, tx port.Tx) error {
		var err error
		found, err = tx.Borrowings().Discrepancies(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, d := range found {
		s.log.Error().
			Int64("book_id", d.BookID).
			Int("available_copies", d.AvailableCopies).
			Int("expected_available", d.ExpectedAvailable()).
			Msg("availability out of sync with ledger")
	}
	return found, nil
}

// publish runs after commit; a failure is logged and never reported to the caller.
func (s *LendingService) publish(ctx context.Context, typ domain.EventType, record domain.BorrowingRecord, date time.Time, available int) {
	event := domain.LendingEvent{
		Type:            typ,
		BorrowingID:     record.ID,
		BookID:          record.BookID,
		BorrowerID:      record.BorrowerID,
		Date:            date.Format(domain.DateLayout),
		AvailableCopies: available,
		OccurredAt:      s.clock().UTC(),
	}
	ctx, cancel := s.detached(ctx)
	defer cancel()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event", string(typ)).Int64("borrowing_id", record.ID).Msg("failed to publish lending event")
	}
}
