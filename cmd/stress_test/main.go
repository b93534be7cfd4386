package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rl1809/library-lending/internal/adapter/storage"
	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/core/service"
)

func main() {
	driver := flag.String("driver", storage.DriverSQLite, "database driver")
	dsn := flag.String("dsn", "", "database DSN; defaults to a throwaway SQLite file")
	copies := flag.Int("copies", 20, "copies of the contested book")
	totalRequests := flag.Int("requests", 50, "concurrent borrow attempts")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel).With().Timestamp().Logger()
	ctx := context.Background()

	if *dsn == "" {
		dir, err := os.MkdirTemp("", "lending-stress-")
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create temp dir")
		}
		defer os.RemoveAll(dir)
		*dsn = filepath.Join(dir, "stress.db")
	}

	store, err := storage.Open(ctx, *driver, *dsn, storage.WithLogger(log))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate")
	}

	engine := service.NewEngine(store, service.WithLogger(log), service.WithOpTimeout(30*time.Second))

	// Unique keys so reruns against the same database do not collide.
	run := uuid.NewString()[:8]
	book, err := engine.CreateBook(ctx, domain.BookInput{
		Title:       "Stress " + run,
		Author:      "Load Generator",
		ISBN:        "stress-" + run,
		TotalCopies: *copies,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create book")
	}

	borrowers := make([]domain.Borrower, *totalRequests)
	for i := range borrowers {
		borrowers[i], err = engine.CreateBorrower(ctx, domain.BorrowerInput{Name: fmt.Sprintf("stress-%s-%d", run, i)})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create borrower")
		}
	}

	// Counters
	var successCount, outOfStockCount, failCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for _, b := range borrowers {
		wg.Add(1)
		go func(borrowerID int64) {
			defer wg.Done()

			_, err := engine.BorrowBook(ctx, book.ID, borrowerID, time.Time{})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrOutOfStock):
				outOfStockCount.Add(1)
			default:
				failCount.Add(1)
				log.Error().Err(err).Int64("borrower_id", borrowerID).Msg("borrow failed")
			}
		}(b.ID)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := int(successCount.Load())
	outOfStock := int(outOfStockCount.Load())
	failed := int(failCount.Load())

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Copies:           %d\n", *copies)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Out of stock:     %d\n", outOfStock)
	fmt.Printf("Other failures:   %d\n", failed)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	ok := true
	expected := min(*copies, *totalRequests)
	if success == expected && outOfStock == *totalRequests-expected {
		fmt.Printf("PASS: exactly %d borrows succeeded\n", expected)
	} else {
		fmt.Printf("FAIL: expected %d successes and %d out of stock, got %d/%d (%d other)\n",
			expected, *totalRequests-expected, success, outOfStock, failed)
		ok = false
	}

	final, err := engine.GetBook(ctx, book.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read book")
	}
	fmt.Printf("Final available:  %d\n", final.AvailableCopies)
	if final.AvailableCopies == *copies-success {
		fmt.Println("PASS: availability matches successful borrows")
	} else {
		fmt.Printf("FAIL: expected %d available, got %d\n", *copies-success, final.AvailableCopies)
		ok = false
	}

	found, err := engine.Audit(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("audit failed")
	}
	if len(found) == 0 {
		fmt.Println("PASS: ledger audit clean")
	} else {
		fmt.Printf("FAIL: %d book(s) out of sync with the ledger\n", len(found))
		ok = false
	}

	if !ok {
		os.Exit(1)
	}
}
