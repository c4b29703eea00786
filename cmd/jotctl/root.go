package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/jot/internal/app"
	"github.com/MrSnakeDoc/jot/internal/config"
	"github.com/MrSnakeDoc/jot/internal/export"
	"github.com/MrSnakeDoc/jot/internal/logger"
	"github.com/MrSnakeDoc/jot/internal/notes"
	"github.com/MrSnakeDoc/jot/internal/session"
)

// cli holds what every command shares. load and open are swapped in tests.
type cli struct {
	username string
	password string
	verbose  bool

	out  io.Writer
	load func() *config.Config
	open func(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Backend, error)

	log logger.Logger
	cfg *config.Config
}

func defaultCLI() *cli {
	return &cli{
		out:  os.Stdout,
		load: config.Load,
		open: app.OpenBackend,
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "jotctl",
		Short: "Command line client for jot notes",
		Long: `jotctl signs in with a username and password, then lists, creates,
deletes and exports the notes of that account straight from the store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if c.verbose {
				level = "debug"
			}
			c.log = logger.New(level, true)
		},
	}

	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().StringVarP(&c.username, "username", "u", os.Getenv("JOT_USERNAME"), "Account username (env JOT_USERNAME)")
	root.PersistentFlags().StringVarP(&c.password, "password", "p", os.Getenv("JOT_PASSWORD"), "Account password (env JOT_PASSWORD)")
	root.SetOut(c.out)

	root.AddCommand(
		newRegisterCmd(c),
		newNotesCmd(c),
		newExportCmd(c),
		newVersionCmd(c),
	)
	return root
}

// backend loads the configuration and opens the store.
func (c *cli) backend(ctx context.Context) (*app.Backend, error) {
	if c.cfg == nil {
		c.cfg = c.load()
	}
	return c.open(ctx, c.cfg, c.log)
}

func (c *cli) exporter() *export.Exporter {
	return app.NewExporter(c.cfg, c.log)
}

func (c *cli) requireCredentials() error {
	if c.username == "" || c.password == "" {
		return errors.New("username and password are required (--username/--password or JOT_USERNAME/JOT_PASSWORD)")
	}
	return nil
}

// withSession signs in, loads the notes of the account and runs fn. The
// provider session is ended afterwards.
func (c *cli) withSession(ctx context.Context, fn func(repo *notes.Repository) error) error {
	if err := c.requireCredentials(); err != nil {
		return err
	}
	b, err := c.backend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	mgr := session.NewManager(b.Store, b.Store, c.log)
	defer mgr.Close()
	repo := notes.NewRepository(b.Store, mgr, c.log)

	if _, err := mgr.Login(ctx, c.username, c.password); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer func() {
		if err := mgr.Logout(ctx); err != nil {
			c.log.Warn("logout failed", logger.Error(err))
		}
	}()

	if _, err := repo.List(ctx); err != nil {
		return fmt.Errorf("list notes: %w", err)
	}
	return fn(repo)
}
