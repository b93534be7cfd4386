package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/core/service"
)

var borrowerFlags struct {
	name    string
	contact string
	search  string
}

var borrowersCmd = &cobra.Command{
	Use:   "borrowers",
	Short: "Manage the borrower registry",
}

var borrowersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a borrower",
	Args:  cobra.NoArgs,
	RunE: runWithEngine(func(ctx context.Context, cmd *cobra.Command, engine *service.Engine, _ []string) error {
		borrower, err := engine.CreateBorrower(ctx, domain.BorrowerInput{
			Name:        borrowerFlags.name,
			ContactInfo: borrowerFlags.contact,
		})
		if err != nil {
			return err
		}
		return printBorrowers(cmd, []domain.Borrower{borrower})
	}),
}

var borrowersUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Edit a borrower; flags that are not set keep their current value",
	Args:  cobra.ExactArgs(1),
	RunE: runWithEngine(func(ctx context.Context, cmd *cobra.Command, engine *service.Engine, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		current, err := engine.GetBorrower(ctx, id)
		if err != nil {
			return err
		}

		in := domain.BorrowerInput{Name: current.Name, ContactInfo: current.ContactInfo}
		if cmd.Flags().Changed("name") {
			in.Name = borrowerFlags.name
		}
		if cmd.Flags().Changed("contact") {
			in.ContactInfo = borrowerFlags.contact
		}

		borrower, err := engine.UpdateBorrower(ctx, id, in)
		if err != nil {
			return err
		}
		return printBorrowers(cmd, []domain.Borrower{borrower})
	}),
}

var borrowersDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Remove a borrower with no open borrowings",
	Args:  cobra.ExactArgs(1),
	RunE: runWithEngine(func(ctx context.Context, cmd *cobra.Command, engine *service.Engine, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := engine.DeleteBorrower(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted borrower %d\n", id)
		return nil
	}),
}

var borrowersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List borrowers ordered by name",
	Args:  cobra.NoArgs,
	RunE: runWithEngine(func(ctx context.Context, cmd *cobra.Command, engine *service.Engine, _ []string) error {
		borrowers, err := engine.ListBorrowers(ctx, domain.BorrowerFilter{Search: borrowerFlags.search})
		if err != nil {
			return err
		}
		return printBorrowers(cmd, borrowers)
	}),
}

func init() {
	for _, c := range []*cobra.Command{borrowersAddCmd, borrowersUpdateCmd} {
		c.Flags().StringVar(&borrowerFlags.name, "name", "", "borrower name, unique ignoring case")
		c.Flags().StringVar(&borrowerFlags.contact, "contact", "", "email or phone")
	}
	borrowersListCmd.Flags().StringVar(&borrowerFlags.search, "search", "", "match name or contact info")

	borrowersCmd.AddCommand(borrowersAddCmd, borrowersUpdateCmd, borrowersDeleteCmd, borrowersListCmd)
	rootCmd.AddCommand(borrowersCmd)
}

func printBorrowers(cmd *cobra.Command, borrowers []domain.Borrower) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, borrowers)
	}
	rows := make([]string, 0, len(borrowers))
	for _, b := range borrowers {
		rows = append(rows, fmt.Sprintf("%d\t%s\t%s", b.ID, b.Name, b.ContactInfo))
	}
	return printTable(out, "ID\tNAME\tCONTACT", rows)
}
