package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/npezzotti/go-messaging/internal/database"
	"github.com/npezzotti/go-messaging/internal/messaging"
	"github.com/npezzotti/go-messaging/internal/stats"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DatabaseURL    string
	MaxThreadDepth int
	Verbose        bool
}

// NewRootCommand creates the root command for the dmctl CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dmctl",
		Short: "Administer the direct messaging store",
		Long:  "dmctl runs messaging operations directly against the database, bypassing the HTTP API.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.DatabaseURL == "" {
				return fmt.Errorf("database url is required: set --database-url or DATABASE_URL")
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "database url (postgres:// or sqlite3://)")
	cmd.PersistentFlags().IntVar(&opts.MaxThreadDepth, "max-thread-depth", messaging.DefaultMaxThreadDepth, "deepest reply level a thread may have")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log engine activity to stderr")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewCreateUserCommand(opts))
	cmd.AddCommand(NewSendCommand(opts))
	cmd.AddCommand(NewEditCommand(opts))
	cmd.AddCommand(NewThreadCommand(opts))
	cmd.AddCommand(NewConversationCommand(opts))
	cmd.AddCommand(NewUnreadCommand(opts))
	cmd.AddCommand(NewReadCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewNotificationsCommand(opts))
	cmd.AddCommand(NewDeleteUserCommand(opts))
	cmd.AddCommand(NewPurgeUserCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// session is an open repository plus an engine over it.
type session struct {
	repo   *database.SQLRepository
	engine *messaging.Engine
	stats  *stats.StatsUpdater
}

func (s *session) Close() error {
	s.stats.Stop()
	return s.repo.Close()
}

func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*session, error) {
	repo, err := database.Open(ctx, opts.DatabaseURL)
	if err != nil {
		return nil, err
	}

	var out io.Writer = io.Discard
	if opts.Verbose {
		out = cmd.ErrOrStderr()
	}
	logger := log.New(out, "[dmctl] ", log.LstdFlags)

	su := stats.NewStatsUpdater(http.NewServeMux())
	su.Run()

	engine := messaging.NewEngine(logger, repo, su, messaging.WithMaxThreadDepth(opts.MaxThreadDepth))
	return &session{repo: repo, engine: engine, stats: su}, nil
}

// withSession opens a session for the duration of fn.
func withSession(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer s.Close()

	return fn(ctx, s)
}

func envSigningKey() string {
	return os.Getenv("SIGNING_KEY")
}
