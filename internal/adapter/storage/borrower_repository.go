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
	tableBorrowers = "borrowers"
	colName        = "name"
	colNameKey     = "name_key"
	colContactInfo = "contact_info"
	colContactKey  = "contact_key"
	entityBorrower = "borrower"
)

var borrowerColumns = []interface{}{colID, colName, colContactInfo}

type borrowerRow struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	ContactInfo string `db:"contact_info"`
}

func (r borrowerRow) toDomain() domain.Borrower {
	return domain.Borrower{ID: r.ID, Name: r.Name, ContactInfo: r.ContactInfo}
}

type borrowerRepository struct {
	t *sqlTx
}

func (r borrowerRepository) Insert(ctx context.Context, borrower domain.Borrower) (domain.Borrower, error) {
	ds := r.t.d.builder.Insert(tableBorrowers).Rows(goqu.Record{
		colName:        borrower.Name,
		colNameKey:     domain.NameKey(borrower.Name),
		colContactInfo: borrower.ContactInfo,
		colContactKey:  domain.SearchKey(borrower.ContactInfo),
	})

	id, err := r.t.insert(ctx, "insert borrower", ds)
	if err != nil {
		return domain.Borrower{}, duplicateName(err, borrower.Name)
	}
	borrower.ID = id
	return borrower, nil
}

func (r borrowerRepository) Get(ctx context.Context, id int64) (domain.Borrower, error) {
	return r.get(ctx, id, false)
}

func (r borrowerRepository) Lock(ctx context.Context, id int64) (domain.Borrower, error) {
	return r.get(ctx, id, true)
}

func (r borrowerRepository) get(ctx context.Context, id int64, lock bool) (domain.Borrower, error) {
	ds := r.t.d.builder.From(tableBorrowers).Select(borrowerColumns...).Where(goqu.C(colID).Eq(id))
	if lock && r.t.d.lockRows {
		ds = ds.ForUpdate(exp.Wait)
	}

	var row borrowerRow
	if err := r.t.get(ctx, "select borrower", &row, ds.Prepared(true)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Borrower{}, &domain.NotFoundError{Entity: entityBorrower, ID: id}
		}
		return domain.Borrower{}, err
	}
	return row.toDomain(), nil
}

func (r borrowerRepository) FindByName(ctx context.Context, name string) (domain.Borrower, bool, error) {
	ds := r.t.d.builder.From(tableBorrowers).
		Select(borrowerColumns...).
		Where(goqu.C(colNameKey).Eq(domain.NameKey(name))).
		Limit(1)

	var row borrowerRow
	if err := r.t.get(ctx, "select borrower by name", &row, ds.Prepared(true)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Borrower{}, false, nil
		}
		return domain.Borrower{}, false, err
	}
	return row.toDomain(), true, nil
}

func (r borrowerRepository) Update(ctx context.Context, borrower domain.Borrower) error {
	ds := r.t.d.builder.Update(tableBorrowers).
		Set(goqu.Record{
			colName:        borrower.Name,
			colNameKey:     domain.NameKey(borrower.Name),
			colContactInfo: borrower.ContactInfo,
			colContactKey:  domain.SearchKey(borrower.ContactInfo),
		}).
		Where(goqu.C(colID).Eq(borrower.ID))

	if _, err := r.t.exec(ctx, "update borrower", ds.Prepared(true)); err != nil {
		return duplicateName(err, borrower.Name)
	}
	return nil
}

func (r borrowerRepository) Delete(ctx context.Context, id int64) error {
	ds := r.t.d.builder.Delete(tableBorrowers).Where(goqu.C(colID).Eq(id))

	n, err := r.t.exec(ctx, "delete borrower", ds.Prepared(true))
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.NotFoundError{Entity: entityBorrower, ID: id}
	}
	return nil
}

func (r borrowerRepository) List(ctx context.Context, filter domain.BorrowerFilter) ([]domain.Borrower, error) {
	ds := r.t.d.builder.From(tableBorrowers).Select(borrowerColumns...)

	if pattern := likePattern(filter.Search); pattern != "" {
		ds = ds.Where(goqu.Or(
			goqu.C(colNameKey).Like(pattern),
			goqu.C(colContactKey).Like(pattern),
		))
	}
	ds = ds.Order(goqu.C(colNameKey).Asc(), goqu.C(colID).Asc())

	var rows []borrowerRow
	if err := r.t.selectAll(ctx, "list borrowers", &rows, ds.Prepared(true)); err != nil {
		return nil, err
	}

	borrowers := make([]domain.Borrower, 0, len(rows))
	for _, row := range rows {
		borrowers = append(borrowers, row.toDomain())
	}
	return borrowers, nil
}

func duplicateName(err error, name string) error {
	if errors.Is(err, errUniqueViolation) {
		return &domain.DuplicateKeyError{Field: colName, Value: name}
	}
	return err
}
