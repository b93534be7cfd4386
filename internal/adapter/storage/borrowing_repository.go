package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/rl1809/library-lending/internal/core/domain"
)

const (
	tableBorrowings = "borrowings"
	colBookID       = "book_id"
	colBorrowerID   = "borrower_id"
	colBorrowDate   = "borrow_date"
	colReturnDate   = "return_date"
	entityBorrowing = "borrowing"
)

var (
	borrowingColumns = []interface{}{colID, colBookID, colBorrowerID, colBorrowDate, colReturnDate}

	errBorrowingNotOpen = errors.New("borrowing is not open")
)

type borrowingRow struct {
	ID         int64          `db:"id"`
	BookID     int64          `db:"book_id"`
	BorrowerID int64          `db:"borrower_id"`
	BorrowDate string         `db:"borrow_date"`
	ReturnDate sql.NullString `db:"return_date"`
}

func (r borrowingRow) toDomain() (domain.BorrowingRecord, error) {
	borrowed, err := time.Parse(domain.DateLayout, r.BorrowDate)
	if err != nil {
		return domain.BorrowingRecord{}, storageError("parse borrow date", err)
	}

	record := domain.BorrowingRecord{
		ID:         r.ID,
		BookID:     r.BookID,
		BorrowerID: r.BorrowerID,
		BorrowDate: borrowed,
	}
	if r.ReturnDate.Valid {
		returned, err := time.Parse(domain.DateLayout, r.ReturnDate.String)
		if err != nil {
			return domain.BorrowingRecord{}, storageError("parse return date", err)
		}
		record.ReturnDate = &returned
	}
	return record, nil
}

type borrowingDetailRow struct {
	borrowingRow
	BookTitle    string `db:"book_title"`
	BorrowerName string `db:"borrower_name"`
}

type discrepancyRow struct {
	BookID          int64  `db:"book_id"`
	Title           string `db:"title"`
	TotalCopies     int    `db:"total_copies"`
	AvailableCopies int    `db:"available_copies"`
	OpenBorrowings  int    `db:"open_borrowings"`
}

type borrowingRepository struct {
	t *sqlTx
}

func (r borrowingRepository) Insert(ctx context.Context, record domain.BorrowingRecord) (domain.BorrowingRecord, error) {
	row := goqu.Record{
		colBookID:     record.BookID,
		colBorrowerID: record.BorrowerID,
		colBorrowDate: record.BorrowDate.Format(domain.DateLayout),
	}
	if record.ReturnDate != nil {
		row[colReturnDate] = record.ReturnDate.Format(domain.DateLayout)
	}

	id, err := r.t.insert(ctx, "insert borrowing", r.t.d.builder.Insert(tableBorrowings).Rows(row))
	if err != nil {
		return domain.BorrowingRecord{}, err
	}
	record.ID = id
	return record, nil
}

func (r borrowingRepository) Get(ctx context.Context, id int64) (domain.BorrowingRecord, error) {
	return r.get(ctx, id, false)
}

func (r borrowingRepository) Lock(ctx context.Context, id int64) (domain.BorrowingRecord, error) {
	return r.get(ctx, id, true)
}

func (r borrowingRepository) get(ctx context.Context, id int64, lock bool) (domain.BorrowingRecord, error) {
	ds := r.t.d.builder.From(tableBorrowings).Select(borrowingColumns...).Where(goqu.C(colID).Eq(id))
	if lock && r.t.d.lockRows {
		ds = ds.ForUpdate(exp.Wait)
	}

	var row borrowingRow
	if err := r.t.get(ctx, "select borrowing", &row, ds.Prepared(true)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BorrowingRecord{}, &domain.NotFoundError{Entity: entityBorrowing, ID: id}
		}
		return domain.BorrowingRecord{}, err
	}
	return row.toDomain()
}

func (r borrowingRepository) Close(ctx context.Context, id int64, returnDate time.Time) error {
	ds := r.t.d.builder.Update(tableBorrowings).
		Set(goqu.Record{colReturnDate: returnDate.Format(domain.DateLayout)}).
		Where(goqu.C(colID).Eq(id), goqu.C(colReturnDate).IsNull())

	n, err := r.t.exec(ctx, "close borrowing", ds.Prepared(true))
	if err != nil {
		return err
	}
	if n == 0 {
		return storageError("close borrowing", errBorrowingNotOpen)
	}
	return nil
}

func (r borrowingRepository) CountOpenByBook(ctx context.Context, bookID int64) (int, error) {
	return r.countOpen(ctx, colBookID, bookID)
}

func (r borrowingRepository) CountOpenByBorrower(ctx context.Context, borrowerID int64) (int, error) {
	return r.countOpen(ctx, colBorrowerID, borrowerID)
}

func (r borrowingRepository) countOpen(ctx context.Context, col string, id int64) (int, error) {
	ds := r.t.d.builder.From(tableBorrowings).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.C(col).Eq(id), goqu.C(colReturnDate).IsNull())

	var n int
	if err := r.t.get(ctx, "count open borrowings", &n, ds.Prepared(true)); err != nil {
		return 0, err
	}
	return n, nil
}

func (r borrowingRepository) List(ctx context.Context, filter domain.BorrowingFilter) ([]domain.BorrowingDetail, error) {
	ds := r.t.d.builder.From(goqu.T(tableBorrowings).As("l")).
		LeftJoin(goqu.T(tableBooks).As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("l.book_id")))).
		LeftJoin(goqu.T(tableBorrowers).As("r"), goqu.On(goqu.I("r.id").Eq(goqu.I("l.borrower_id")))).
		Select(
			goqu.I("l.id").As(colID),
			goqu.I("l.book_id").As(colBookID),
			goqu.I("l.borrower_id").As(colBorrowerID),
			goqu.I("l.borrow_date").As(colBorrowDate),
			goqu.I("l.return_date").As(colReturnDate),
			goqu.COALESCE(goqu.I("b.title"), "").As("book_title"),
			goqu.COALESCE(goqu.I("r.name"), "").As("borrower_name"),
		)

	if pattern := likePattern(filter.Search); pattern != "" {
		ds = ds.Where(goqu.Or(
			goqu.I("b.title_key").Like(pattern),
			goqu.I("r.name_key").Like(pattern),
		))
	}
	if filter.OpenOnly {
		ds = ds.Where(goqu.I("l.return_date").IsNull())
	}
	if filter.BookID != 0 {
		ds = ds.Where(goqu.I("l.book_id").Eq(filter.BookID))
	}
	if filter.BorrowerID != 0 {
		ds = ds.Where(goqu.I("l.borrower_id").Eq(filter.BorrowerID))
	}
	ds = ds.Order(goqu.I("l.borrow_date").Desc(), goqu.I("l.id").Desc())

	var rows []borrowingDetailRow
	if err := r.t.selectAll(ctx, "list borrowings", &rows, ds.Prepared(true)); err != nil {
		return nil, err
	}

	details := make([]domain.BorrowingDetail, 0, len(rows))
	for _, row := range rows {
		record, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		details = append(details, domain.BorrowingDetail{
			BorrowingRecord: record,
			BookTitle:       row.BookTitle,
			BorrowerName:    row.BorrowerName,
		})
	}
	return details, nil
}

func (r borrowingRepository) Discrepancies(ctx context.Context) ([]domain.Discrepancy, error) {
	openCount := goqu.COUNT(goqu.I("l.id"))
	ds := r.t.d.builder.From(goqu.T(tableBooks).As("b")).
		LeftJoin(goqu.T(tableBorrowings).As("l"), goqu.On(
			goqu.I("l.book_id").Eq(goqu.I("b.id")),
			goqu.I("l.return_date").IsNull(),
		)).
		Select(
			goqu.I("b.id").As("book_id"),
			goqu.I("b.title").As(colTitle),
			goqu.I("b.total_copies").As(colTotalCopies),
			goqu.I("b.available_copies").As(colAvailable),
			openCount.As("open_borrowings"),
		).
		GroupBy(goqu.I("b.id"), goqu.I("b.title"), goqu.I("b.total_copies"), goqu.I("b.available_copies")).
		Having(goqu.L("? <> ? - ?", goqu.I("b.available_copies"), goqu.I("b.total_copies"), openCount)).
		Order(goqu.I("b.id").Asc())

	var rows []discrepancyRow
	if err := r.t.selectAll(ctx, "audit availability", &rows, ds.Prepared(true)); err != nil {
		return nil, err
	}

	out := make([]domain.Discrepancy, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Discrepancy{
			BookID:          row.BookID,
			Title:           row.Title,
			TotalCopies:     row.TotalCopies,
			AvailableCopies: row.AvailableCopies,
			OpenBorrowings:  row.OpenBorrowings,
		})
	}
	return out, nil
}
