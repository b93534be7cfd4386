package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/core/service"
)

var loanFlags struct {
	date       string
	search     string
	open       bool
	bookID     int64
	borrowerID int64
}

var borrowCmd = &cobra.Command{
	Use:   "borrow BOOK_ID BORROWER_ID",
	Short: "Lend one copy of a book",
	Args:  cobra.ExactArgs(2),
	RunE: runWithEngine(func(ctx context.Context, cmd *cobra.Command, engine *service.Engine, args []string) error {
		bookID, err := parseID(args[0])
		if err != nil {
			return err
		}
		borrowerID, err := parseID(args[1])
		if err != nil {
			return err
		}
		date, err := flagDay(loanFlags.date)
		if err != nil {
			return err
		}

		record, err := engine.BorrowBook(ctx, bookID, borrowerID, date)
		if err != nil {
			return err
		}
		return printLoans(cmd, []domain.BorrowingDetail{{BorrowingRecord: record}})
	}),
}

var returnCmd = &cobra.Command{
	Use:   "return BORROWING_ID",
	Short: "Close an open borrowing",
	Args:  cobra.ExactArgs(1),
	RunE: runWithEngine(func(ctx context.Context, cmd *cobra.Command, engine *service.Engine, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		date, err := flagDay(loanFlags.date)
		if err != nil {
			return err
		}

		record, err := engine.ReturnBook(ctx, id, date)
		if err != nil {
			return err
		}
		return printLoans(cmd, []domain.BorrowingDetail{{BorrowingRecord: record}})
	}),
}

var loansCmd = &cobra.Command{
	Use:   "loans",
	Short: "List borrowings, most recent first",
	Args:  cobra.NoArgs,
	RunE: runWithEngine(func(ctx context.Context, cmd *cobra.Command, engine *service.Engine, _ []string) error {
		details, err := engine.ListBorrowings(ctx, domain.BorrowingFilter{
			Search:     loanFlags.search,
			OpenOnly:   loanFlags.open,
			BookID:     loanFlags.bookID,
			BorrowerID: loanFlags.borrowerID,
		})
		if err != nil {
			return err
		}
		return printLoans(cmd, details)
	}),
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check every book's availability against its open borrowings",
	Args:  cobra.NoArgs,
	RunE: runWithEngine(func(ctx context.Context, cmd *cobra.Command, engine *service.Engine, _ []string) error {
		found, err := engine.Audit(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, found)
		}
		if len(found) == 0 {
			fmt.Fprintln(out, "ledger is consistent")
			return nil
		}

		rows := make([]string, 0, len(found))
		for _, d := range found {
			rows = append(rows, fmt.Sprintf("%d\t%s\t%d\t%d\t%d", d.BookID, d.Title, d.TotalCopies, d.AvailableCopies, d.ExpectedAvailable()))
		}
		if err := printTable(out, "BOOK\tTITLE\tTOTAL\tAVAILABLE\tEXPECTED", rows); err != nil {
			return err
		}
		return fmt.Errorf("%d book(s) out of sync with the ledger", len(found))
	}),
}

func init() {
	borrowCmd.Flags().StringVar(&loanFlags.date, "date", "", "borrow date as YYYY-MM-DD; defaults to today")
	returnCmd.Flags().StringVar(&loanFlags.date, "date", "", "return date as YYYY-MM-DD; defaults to today")

	loansCmd.Flags().StringVar(&loanFlags.search, "search", "", "match book title or borrower name")
	loansCmd.Flags().BoolVar(&loanFlags.open, "open", false, "only borrowings not yet returned")
	loansCmd.Flags().Int64Var(&loanFlags.bookID, "book", 0, "only borrowings of this book")
	loansCmd.Flags().Int64Var(&loanFlags.borrowerID, "borrower", 0, "only borrowings by this borrower")

	rootCmd.AddCommand(borrowCmd, returnCmd, loansCmd, auditCmd)
}

func flagDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return domain.ParseDay(s)
}

func printLoans(cmd *cobra.Command, details []domain.BorrowingDetail) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, details)
	}
	rows := make([]string, 0, len(details))
	for _, d := range details {
		returned := "-"
		if d.ReturnDate != nil {
			returned = d.ReturnDate.Format(domain.DateLayout)
		}
		rows = append(rows, fmt.Sprintf("%d\t%d\t%s\t%d\t%s\t%s\t%s",
			d.ID, d.BookID, d.BookTitle, d.BorrowerID, d.BorrowerName,
			d.BorrowDate.Format(domain.DateLayout), returned))
	}
	return printTable(out, "ID\tBOOK\tTITLE\tBORROWER\tNAME\tBORROWED\tRETURNED", rows)
}
