package service

import (
	"context"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/port"
)

type BorrowerService struct {
	runner
}

func (s *BorrowerService) CreateBorrower(ctx context.Context, in domain.BorrowerInput) (domain.Borrower, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return domain.Borrower{}, err
	}

	var created domain.Borrower
	err := s.run(ctx, "create_borrower", func(ctx context.Context, tx port.Tx) error {
		if _, exists, err := tx.Borrowers().FindByName(ctx, in.Name); err != nil {
			return err
		} else if exists {
			return &domain.DuplicateKeyError{Field: "name", Value: in.Name}
		}

		borrower, err := tx.Borrowers().Insert(ctx, domain.Borrower{Name: in.Name, ContactInfo: in.ContactInfo})
		created = borrower
		return err
	})
	if err != nil {
		return domain.Borrower{}, err
	}

	s.log.Info().Int64("borrower_id", created.ID).Msg("borrower created")
	return created, nil
}

func (s *BorrowerService) UpdateBorrower(ctx context.Context, id int64, in domain.BorrowerInput) (domain.Borrower, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return domain.Borrower{}, err
	}

	updated := domain.Borrower{ID: id, Name: in.Name, ContactInfo: in.ContactInfo}
	err := s.run(ctx, "update_borrower", func(ctx context.Context, tx port.Tx) error {
		if _, err := tx.Borrowers().Lock(ctx, id); err != nil {
			return err
		}

		other, exists, err := tx.Borrowers().FindByName(ctx, in.Name)
		if err != nil {
			return err
		}
		if exists && other.ID != id {
			return &domain.DuplicateKeyError{Field: "name", Value: in.Name}
		}

		return tx.Borrowers().Update(ctx, updated)
	})
	if err != nil {
		return domain.Borrower{}, err
	}

	s.log.Info().Int64("borrower_id", id).Msg("borrower updated")
	return updated, nil
}

// DeleteBorrower removes a borrower with no open borrowings.
func (s *BorrowerService) DeleteBorrower(ctx context.Context, id int64) error {
	err := s.run(ctx, "delete_borrower", func(ctx context.Context, tx port.Tx) error {
		if _, err := tx.Borrowers().Lock(ctx, id); err != nil {
			return err
		}

		open, err := tx.Borrowings().CountOpenByBorrower(ctx, id)
		if err != nil {
			return err
		}
		if open > 0 {
			return &domain.ReferentialConflictError{Entity: "borrower", ID: id, OpenLoans: open}
		}

		return tx.Borrowers().Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.log.Info().Int64("borrower_id", id).Msg("borrower deleted")
	return nil
}

func (s *BorrowerService) GetBorrower(ctx context.Context, id int64) (domain.Borrower, error) {
	var borrower domain.Borrower
	err := s.run(ctx, "get_borrower", func(ctx context.Context, tx port.Tx) error {
		var err error
		borrower, err = tx.Borrowers().Get(ctx, id)
		return err
	})
	return borrower, err
}

func (s *BorrowerService) ListBorrowers(ctx context.Context, filter domain.BorrowerFilter) ([]domain.Borrower, error) {
	var borrowers []domain.Borrower
	err := s.run(ctx, "list_borrowers", func(ctx context.Context, tx port.Tx) error {
		var err error
		borrowers, err = tx.Borrowers().List(ctx, filter)
		return err
	})
	return borrowers, err
}
