package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rl1809/library-lending/internal/adapter/storage"
	"github.com/rl1809/library-lending/internal/config"
	"github.com/rl1809/library-lending/internal/core/service"
)

var (
	dbDriver   string
	dbDSN      string
	jsonOutput bool
	verbose    bool
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var rootCmd = &cobra.Command{
	Use:   "lendingctl",
	Short: "Administer the library lending database",
	Long: `lendingctl runs catalog, borrower and lending operations directly
against the lending database, using the same engine as the server.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbDriver, "driver", "", "database driver (sqlite, mysql, postgres, pgx); defaults to LENDING_DB_DRIVER")
	rootCmd.PersistentFlags().StringVar(&dbDSN, "dsn", "", "database DSN; defaults to LENDING_DB_DSN")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// openEngine connects to the configured database, creates missing tables and
// returns an engine over it. The caller must call the returned close func.
func openEngine(cmd *cobra.Command) (*service.Engine, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if dbDriver != "" {
		cfg.DBDriver = dbDriver
	}
	if dbDSN != "" {
		cfg.DBDSN = dbDSN
	}

	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).Level(level).With().Timestamp().Logger()

	ctx := cmd.Context()
	store, err := storage.Open(ctx, cfg.DBDriver, cfg.DBDSN, storage.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}

	engine := service.NewEngine(store,
		service.WithLogger(logger),
		service.WithOpTimeout(cfg.OpTimeout),
	)
	return engine, func() { store.Close() }, nil
}

// runWithEngine adapts an engine-backed command body to cobra's RunE.
func runWithEngine(fn func(ctx context.Context, cmd *cobra.Command, engine *service.Engine, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		engine, closeFn, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer closeFn()
		return fn(cmd.Context(), cmd, engine, args)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable writes a header and rows as aligned columns.
func printTable(w io.Writer, header string, rows []string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	for _, row := range rows {
		fmt.Fprintln(tw, row)
	}
	return tw.Flush()
}
