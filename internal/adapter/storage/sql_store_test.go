package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/port"
)

// forEachStore runs fn against SQLite and, when their DSNs are set, against
// MySQL (LENDING_TEST_MYSQL_DSN) and Postgres (LENDING_TEST_POSTGRES_DSN)
// through both Postgres drivers.
func forEachStore(t *testing.T, fn func(t *testing.T, store *SQLStore)) {
	t.Run(DriverSQLite, func(t *testing.T) {
		fn(t, openTestStore(t, DriverSQLite, filepath.Join(t.TempDir(), "lending.db")))
	})

	external := []struct {
		driver string
		env    string
	}{
		{DriverMySQL, "LENDING_TEST_MYSQL_DSN"},
		{DriverPostgres, "LENDING_TEST_POSTGRES_DSN"},
		{DriverPGX, "LENDING_TEST_POSTGRES_DSN"},
	}
	for _, ext := range external {
		t.Run(ext.driver, func(t *testing.T) {
			dsn := os.Getenv(ext.env)
			if dsn == "" {
				t.Skipf("%s not set", ext.env)
			}
			store := openTestStore(t, ext.driver, dsn)
			truncate(t, store)
			fn(t, store)
		})
	}
}

func openTestStore(t *testing.T, driver, dsn string) *SQLStore {
	t.Helper()

	ctx := context.Background()
	store, err := Open(ctx, driver, dsn)
	if err != nil && driver != DriverSQLite {
		t.Skipf("%s not available: %v", driver, err)
	}
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(ctx))
	return store
}

func truncate(t *testing.T, store *SQLStore) {
	t.Helper()
	for _, table := range []string{tableBorrowings, tableBorrowers, tableBooks} {
		_, err := store.DB().Exec("DELETE FROM " + table)
		require.NoError(t, err)
	}
}

func inTx(t *testing.T, store *SQLStore, fn func(ctx context.Context, tx port.Tx) error) error {
	t.Helper()
	return store.InTx(context.Background(), fn)
}

func seedBook(t *testing.T, store *SQLStore, isbn string, total, available int) domain.Book {
	t.Helper()
	var book domain.Book
	require.NoError(t, inTx(t, store, func(ctx context.Context, tx port.Tx) error {
		var err error
		book, err = tx.Books().Insert(ctx, domain.Book{
			Title: "Book " + isbn, Author: "Author", ISBN: isbn,
			TotalCopies: total, AvailableCopies: available,
		})
		return err
	}))
	return book
}

func TestMigrate_Idempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, store *SQLStore) {
		require.NoError(t, store.Migrate(context.Background()))
	})
}

func TestBookRepository_CRUD(t *testing.T) {
	forEachStore(t, func(t *testing.T, store *SQLStore) {
		book := seedBook(t, store, "9780441013593", 3, 3)
		assert.NotZero(t, book.ID)

		require.NoError(t, inTx(t, store, func(ctx context.Context, tx port.Tx) error {
			got, err := tx.Books().Lock(ctx, book.ID)
			require.NoError(t, err)
			assert.Equal(t, book, got)

			found, ok, err := tx.Books().FindByISBN(ctx, " 9780441013593 ")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, book.ID, found.ID)

			_, ok, err = tx.Books().FindByISBN(ctx, "0000000000")
			require.NoError(t, err)
			assert.False(t, ok)

			book.Title = "Dune"
			book.TotalCopies = 5
			book.AvailableCopies = 5
			require.NoError(t, tx.Books().Update(ctx, book))
			return nil
		}))

		require.NoError(t, inTx(t, store, func(ctx context.Context, tx port.Tx) error {
			got, err := tx.Books().Get(ctx, book.ID)
			require.NoError(t, err)
			assert.Equal(t, book, got)

			require.NoError(t, tx.Books().Delete(ctx, book.ID))
			_, err = tx.Books().Get(ctx, book.ID)
			assert.ErrorIs(t, err, domain.ErrNotFound)
			assert.ErrorIs(t, tx.Books().Delete(ctx, book.ID), domain.ErrNotFound)
			return nil
		}))
	})
}

func TestBookRepository_UniqueISBNIgnoringCase(t *testing.T) {
	forEachStore(t, func(t *testing.T, store *SQLStore) {
		seedBook(t, store, "014143955x", 1, 1)

		err := inTx(t, store, func(ctx context.Context, tx port.Tx) error {
			_, err := tx.Books().Insert(ctx, domain.Book{
				Title: "Copy", Author: "Author", ISBN: "014143955X", TotalCopies: 1, AvailableCopies: 1,
			})
			return err
		})
		var dup *domain.DuplicateKeyError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "014143955X", dup.Value)
	})
}

func TestBookRepository_AvailabilityBounds(t *testing.T) {
	forEachStore(t, func(t *testing.T, store *SQLStore) {
		book := seedBook(t, store, "9780441013593", 1, 1)

		require.NoError(t, inTx(t, store, func(ctx context.Context, tx port.Tx) error {
			require.NoError(t, tx.Books().DecrementAvailable(ctx, book.ID))
			assert.ErrorIs(t, tx.Books().DecrementAvailable(ctx, book.ID), domain.ErrOutOfStock)

			require.NoError(t, tx.Books().IncrementAvailable(ctx, book.ID))
			assert.ErrorIs(t, tx.Books().IncrementAvailable(ctx, book.ID), domain.ErrStorage)
			assert.ErrorIs(t, tx.Books().IncrementAvailable(ctx, 424242), domain.ErrNotFound)

			got, err := tx.Books().Get(ctx, book.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, got.AvailableCopies)
			return nil
		}))
	})
}

func TestBookRepository_List(t *testing.T) {
	forEachStore(t, func(t *testing.T, store *SQLStore) {
		seedBook(t, store, "bbbbbbbbbb", 1, 0)
		seedBook(t, store, "aaaaaaaaaa", 1, 1)

		require.NoError(t, inTx(t, store, func(ctx context.Context, tx port.Tx) error {
			all, err := tx.Books().List(ctx, domain.BookFilter{})
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, "aaaaaaaaaa", all[0].ISBN)

			available, err := tx.Books().List(ctx, domain.BookFilter{AvailableOnly: true})
			require.NoError(t, err)
			require.Len(t, available, 1)
			assert.Equal(t, "aaaaaaaaaa", available[0].ISBN)

			byISBN, err := tx.Books().List(ctx, domain.BookFilter{Search: "BBB"})
			require.NoError(t, err)
			require.Len(t, byISBN, 1)
			assert.Equal(t, "bbbbbbbbbb", byISBN[0].ISBN)
			return nil
		}))
	})
}

func TestBorrowerRepository(t *testing.T) {
	forEachStore(t, func(t *testing.T, store *SQLStore) {
		var alice domain.Borrower
		require.NoError(t, inTx(t, store, func(ctx context.Context, tx port.Tx) error {
			var err error
			alice, err = tx.Borrowers().Insert(ctx, domain.Borrower{Name: "Alice", ContactInfo: "alice@example.com"})
			return err
		}))

		err := inTx(t, store, func(ctx context.Context, tx port.Tx) error {
			_, err := tx.Borrowers().Insert(ctx, domain.Borrower{Name: "ALICE"})
			return err
		})
		assert.ErrorIs(t, err, domain.ErrDuplicateKey)

		require.NoError(t, inTx(t, store, func(ctx context.Context, tx port.Tx) error {
			found, ok, err := tx.Borrowers().FindByName(ctx, "alice")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, alice, found)

			alice.ContactInfo = "555-0100"
			require.NoError(t, tx.Borrowers().Update(ctx, alice))

			got, err := tx.Borrowers().Lock(ctx, alice.ID)
			require.NoError(t, err)
			assert.Equal(t, "555-0100", got.ContactInfo)

			list, err := tx.Borrowers().List(ctx, domain.BorrowerFilter{Search: "0100"})
			require.NoError(t, err)
			assert.Len(t, list, 1)

			require.NoError(t, tx.Borrowers().Delete(ctx, alice.ID))
			_, err = tx.Borrowers().Get(ctx, alice.ID)
			assert.ErrorIs(t, err, domain.ErrNotFound)
			return nil
		}))
	})
}

func TestBorrowingRepository(t *testing.T) {
	forEachStore(t, func(t *testing.T, store *SQLStore) {
		book := seedBook(t, store, "9780441013593", 2, 2)
		borrowed := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
		returned := borrowed.AddDate(0, 0, 7)

		var record domain.BorrowingRecord
		require.NoError(t, inTx(t, store, func(ctx context.Context, tx port.Tx) error {
			borrower, err := tx.Borrowers().Insert(ctx, domain.Borrower{Name: "Alice"})
			require.NoError(t, err)

			record, err = tx.Borrowings().Insert(ctx, domain.BorrowingRecord{
				BookID: book.ID, BorrowerID: borrower.ID, BorrowDate: borrowed,
			})
			require.NoError(t, err)

			n, err := tx.Borrowings().CountOpenByBook(ctx, book.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			n, err = tx.Borrowings().CountOpenByBorrower(ctx, borrower.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			return nil
		}))

		require.NoError(t, inTx(t, store, func(ctx context.Context, tx port.Tx) error {
			got, err := tx.Borrowings().Lock(ctx, record.ID)
			require.NoError(t, err)
			assert.Equal(t, record, got)

			require.NoError(t, tx.Borrowings().Close(ctx, record.ID, returned))
			assert.ErrorIs(t, tx.Borrowings().Close(ctx, record.ID, returned), domain.ErrStorage)

			got, err = tx.Borrowings().Get(ctx, record.ID)
			require.NoError(t, err)
			require.NotNil(t, got.ReturnDate)
			assert.Equal(t, returned, *got.ReturnDate)

			n, err := tx.Borrowings().CountOpenByBook(ctx, book.ID)
			require.NoError(t, err)
			assert.Zero(t, n)

			details, err := tx.Borrowings().List(ctx, domain.BorrowingFilter{Search: "alice"})
			require.NoError(t, err)
			require.Len(t, details, 1)
			assert.Equal(t, "Book 9780441013593", details[0].BookTitle)
			assert.Equal(t, "Alice", details[0].BorrowerName)

			_, err = tx.Borrowings().Get(ctx, 424242)
			assert.ErrorIs(t, err, domain.ErrNotFound)
			return nil
		}))
	})
}

func TestBorrowingRepository_Discrepancies(t *testing.T) {
	forEachStore(t, func(t *testing.T, store *SQLStore) {
		consistent := seedBook(t, store, "1111111111", 2, 2)
		drifted := seedBook(t, store, "2222222222", 3, 3)

		require.NoError(t, inTx(t, store, func(ctx context.Context, tx port.Tx) error {
			_, err := tx.Borrowings().Insert(ctx, domain.BorrowingRecord{
				BookID: drifted.ID, BorrowerID: 1, BorrowDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			})
			return err
		}))

		require.NoError(t, inTx(t, store, func(ctx context.Context, tx port.Tx) error {
			found, err := tx.Borrowings().Discrepancies(ctx)
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Equal(t, drifted.ID, found[0].BookID)
			assert.NotEqual(t, consistent.ID, found[0].BookID)
			assert.Equal(t, 1, found[0].OpenBorrowings)
			assert.Equal(t, 2, found[0].ExpectedAvailable())
			return nil
		}))
	})
}

func TestInTx_RollsBack(t *testing.T) {
	forEachStore(t, func(t *testing.T, store *SQLStore) {
		errAbort := errors.New("abort")

		err := inTx(t, store, func(ctx context.Context, tx port.Tx) error {
			_, err := tx.Books().Insert(ctx, domain.Book{
				Title: "Ghost", Author: "Nobody", ISBN: "3333333333", TotalCopies: 1, AvailableCopies: 1,
			})
			require.NoError(t, err)
			return errAbort
		})
		require.ErrorIs(t, err, errAbort)

		assert.Panics(t, func() {
			_ = inTx(t, store, func(ctx context.Context, tx port.Tx) error {
				_, err := tx.Books().Insert(ctx, domain.Book{
					Title: "Ghost", Author: "Nobody", ISBN: "4444444444", TotalCopies: 1, AvailableCopies: 1,
				})
				require.NoError(t, err)
				panic("boom")
			})
		})

		require.NoError(t, inTx(t, store, func(ctx context.Context, tx port.Tx) error {
			books, err := tx.Books().List(ctx, domain.BookFilter{Search: "ghost"})
			require.NoError(t, err)
			assert.Empty(t, books)
			return nil
		}))
	})
}

func TestInTx_CanceledContext(t *testing.T) {
	store := openTestStore(t, DriverSQLite, filepath.Join(t.TempDir(), "lending.db"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.InTx(ctx, func(context.Context, port.Tx) error { return nil })
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "scott/tiger")
	assert.Error(t, err)
}

func TestWithSQLitePragmas(t *testing.T) {
	assert.Equal(t, "lending.db?_pragma=busy_timeout(5000)", withSQLitePragmas("lending.db"))
	assert.Equal(t, "file:x.db?mode=rwc&_pragma=busy_timeout(5000)", withSQLitePragmas("file:x.db?mode=rwc"))
	assert.Equal(t, "x.db?_pragma=busy_timeout(100)", withSQLitePragmas("x.db?_pragma=busy_timeout(100)"))
}
