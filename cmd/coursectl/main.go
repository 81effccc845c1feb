// Command coursectl operates a course index directly: bulk loading from
// files, recommendations, lookups and deletes, without the HTTP server.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/LuisaMG01/course-vectorization/pkg/bootstrap"
	"github.com/LuisaMG01/course-vectorization/pkg/config"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// cli carries the flags shared by every subcommand.
type cli struct {
	cfgFile string
	verbose bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "coursectl",
		Short: "Manage the course recommender index",
		Long: `coursectl talks to the configured vector index directly.

Configuration comes from --config (or CONFIG_FILE) plus the same
environment variables the API server reads.

Example usage:
  coursectl load "data/**/*.json"             # Bulk load course files
  coursectl recommend -n "Data Analyst" -d "writes SQL queries"
  coursectl get go-101 sql-201                # Look courses up
  coursectl purge --yes                       # Delete every course`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default $CONFIG_FILE)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log at info level to stderr")

	root.AddCommand(
		c.loadCmd(),
		c.recommendCmd(),
		c.getCmd(),
		c.deleteCmd(),
		c.purgeCmd(),
		c.topCmd(),
	)
	return root
}

// open builds the application for one command run.
func (c *cli) open(cmd *cobra.Command) (*bootstrap.App, error) {
	path := c.cfgFile
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return bootstrap.New(cmd.Context(), cfg, logger)
}

// withApp opens the application, runs f and closes it.
func (c *cli) withApp(f func(cmd *cobra.Command, args []string, app *bootstrap.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := c.open(cmd)
		if err != nil {
			return err
		}
		defer app.Close(context.Background())
		return f(cmd, args, app)
	}
}

func printf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}
