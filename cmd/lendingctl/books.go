package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/core/service"
)

var bookFlags struct {
	title     string
	author    string
	isbn      string
	copies    int
	search    string
	available bool
}

var booksCmd = &cobra.Command{
	Use:   "books",
	Short: "Manage the catalog",
}

var booksAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a book to the catalog",
	Args:  cobra.NoArgs,
	RunE: runWithEngine(func(ctx context.Context, cmd *cobra.Command, engine *service.Engine, _ []string) error {
		book, err := engine.CreateBook(ctx, domain.BookInput{
			Title:       bookFlags.title,
			Author:      bookFlags.author,
			ISBN:        bookFlags.isbn,
			TotalCopies: bookFlags.copies,
		})
		if err != nil {
			return err
		}
		return printBooks(cmd, []domain.Book{book})
	}),
}

var booksUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Edit a book; flags that are not set keep their current value",
	Args:  cobra.ExactArgs(1),
	RunE: runWithEngine(func(ctx context.Context, cmd *cobra.Command, engine *service.Engine, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		current, err := engine.GetBook(ctx, id)
		if err != nil {
			return err
		}

		in := domain.BookInput{
			Title:       current.Title,
			Author:      current.Author,
			ISBN:        current.ISBN,
			TotalCopies: current.TotalCopies,
		}
		flags := cmd.Flags()
		if flags.Changed("title") {
			in.Title = bookFlags.title
		}
		if flags.Changed("author") {
			in.Author = bookFlags.author
		}
		if flags.Changed("isbn") {
			in.ISBN = bookFlags.isbn
		}
		if flags.Changed("copies") {
			in.TotalCopies = bookFlags.copies
		}

		book, err := engine.UpdateBook(ctx, id, in)
		if err != nil {
			return err
		}
		return printBooks(cmd, []domain.Book{book})
	}),
}

var booksDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Remove a book with no open borrowings",
	Args:  cobra.ExactArgs(1),
	RunE: runWithEngine(func(ctx context.Context, cmd *cobra.Command, engine *service.Engine, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := engine.DeleteBook(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted book %d\n", id)
		return nil
	}),
}

var booksGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show one book",
	Args:  cobra.ExactArgs(1),
	RunE: runWithEngine(func(ctx context.Context, cmd *cobra.Command, engine *service.Engine, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		book, err := engine.GetBook(ctx, id)
		if err != nil {
			return err
		}
		return printBooks(cmd, []domain.Book{book})
	}),
}

var booksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List books ordered by title",
	Args:  cobra.NoArgs,
	RunE: runWithEngine(func(ctx context.Context, cmd *cobra.Command, engine *service.Engine, _ []string) error {
		books, err := engine.ListBooks(ctx, domain.BookFilter{
			Search:        bookFlags.search,
			AvailableOnly: bookFlags.available,
		})
		if err != nil {
			return err
		}
		return printBooks(cmd, books)
	}),
}

func init() {
	for _, c := range []*cobra.Command{booksAddCmd, booksUpdateCmd} {
		c.Flags().StringVar(&bookFlags.title, "title", "", "book title")
		c.Flags().StringVar(&bookFlags.author, "author", "", "book author")
		c.Flags().StringVar(&bookFlags.isbn, "isbn", "", "ISBN, at least 10 characters")
		c.Flags().IntVar(&bookFlags.copies, "copies", 1, "total copies owned")
	}
	booksListCmd.Flags().StringVar(&bookFlags.search, "search", "", "match title, author or ISBN")
	booksListCmd.Flags().BoolVar(&bookFlags.available, "available", false, "only books with a copy on the shelf")

	booksCmd.AddCommand(booksAddCmd, booksUpdateCmd, booksDeleteCmd, booksGetCmd, booksListCmd)
	rootCmd.AddCommand(booksCmd)
}

func printBooks(cmd *cobra.Command, books []domain.Book) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, books)
	}
	rows := make([]string, 0, len(books))
	for _, b := range books {
		rows = append(rows, fmt.Sprintf("%d\t%s\t%s\t%s\t%d/%d", b.ID, b.Title, b.Author, b.ISBN, b.AvailableCopies, b.TotalCopies))
	}
	return printTable(out, "ID\tTITLE\tAUTHOR\tISBN\tAVAILABLE", rows)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
