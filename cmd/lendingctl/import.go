package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/core/service"
)

// seedFile is the layout accepted by the import command.
type seedFile struct {
	Books     []domain.BookInput     `yaml:"books"`
	Borrowers []domain.BorrowerInput `yaml:"borrowers"`
}

type importResult struct {
	Books     int
	Borrowers int
	Skipped   int
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Load books and borrowers from a YAML file",
	Long: `Import reads a YAML document with "books" and "borrowers" lists and
creates each entry. Entries that already exist by ISBN or name are skipped;
any other rejection stops the import.`,
	Args: cobra.ExactArgs(1),
	RunE: runWithEngine(func(ctx context.Context, cmd *cobra.Command, engine *service.Engine, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		res, err := importSeed(ctx, engine, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d book(s), %d borrower(s), skipped %d existing\n",
			res.Books, res.Borrowers, res.Skipped)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func importSeed(ctx context.Context, engine *service.Engine, r io.Reader) (importResult, error) {
	var seed seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return importResult{}, fmt.Errorf("decode seed file: %w", err)
	}

	var res importResult
	for _, in := range seed.Books {
		_, err := engine.CreateBook(ctx, in)
		switch {
		case errors.Is(err, domain.ErrDuplicateKey):
			res.Skipped++
		case err != nil:
			return res, fmt.Errorf("book %q: %w", in.Title, err)
		default:
			res.Books++
		}
	}
	for _, in := range seed.Borrowers {
		_, err := engine.CreateBorrower(ctx, in)
		switch {
		case errors.Is(err, domain.ErrDuplicateKey):
			res.Skipped++
		case err != nil:
			return res, fmt.Errorf("borrower %q: %w", in.Name, err)
		default:
			res.Borrowers++
		}
	}
	return res, nil
}
