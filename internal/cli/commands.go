package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/npezzotti/go-messaging/internal/api"
	"github.com/npezzotti/go-messaging/internal/database"
	"github.com/npezzotti/go-messaging/internal/types"
	"github.com/spf13/cobra"
)

func parseId(name, value string) (int, error) {
	id, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, value)
	}
	return id, nil
}

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := database.Migrate(rootOpts.DatabaseURL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

type createUserOptions struct {
	email     string
	firstName string
	lastName  string
	role      string
}

func NewCreateUserCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &createUserOptions{}

	cmd := &cobra.Command{
		Use:   "create-user <username>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role := database.Role(opts.role)
			if !role.Valid() {
				return fmt.Errorf("invalid role %q", opts.role)
			}
			email := opts.email
			if email == "" {
				email = args[0] + "@localhost"
			}

			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				u, err := s.repo.CreateUser(ctx, database.CreateUserParams{
					Username:     args[0],
					EmailAddress: email,
					FirstName:    opts.firstName,
					LastName:     opts.lastName,
					Role:         role,
				})
				if err != nil {
					return err
				}
				return writeJSON(cmd, types.NewUser(u))
			})
		},
	}

	cmd.Flags().StringVar(&opts.email, "email", "", "email address (defaults to <username>@localhost)")
	cmd.Flags().StringVar(&opts.firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&opts.lastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&opts.role, "role", string(database.RoleGuest), "role (guest|host|admin)")

	return cmd
}

type sendOptions struct {
	from    int
	to      int
	replyTo int
}

func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &sendOptions{}

	cmd := &cobra.Command{
		Use:   "send <content>",
		Short: "Send a direct message",
		Example: `  dmctl send --from 1 --to 2 "Hi"
  dmctl send --from 2 --to 1 --reply-to 1 "Hello"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var parentId *int
			if opts.replyTo != 0 {
				parentId = &opts.replyTo
			}

			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				msg, err := s.engine.CreateMessage(ctx, opts.from, opts.to, args[0], parentId)
				if err != nil {
					return err
				}
				return writeJSON(cmd, types.NewMessage(msg))
			})
		},
	}

	cmd.Flags().IntVar(&opts.from, "from", 0, "sender user id (required)")
	_ = cmd.MarkFlagRequired("from")
	cmd.Flags().IntVar(&opts.to, "to", 0, "receiver user id (required)")
	_ = cmd.MarkFlagRequired("to")
	cmd.Flags().IntVar(&opts.replyTo, "reply-to", 0, "id of the message being replied to")

	return cmd
}

func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	var editor int

	cmd := &cobra.Command{
		Use:   "edit <message-id> <content>",
		Short: "Replace the content of a message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			messageId, err := parseId("message id", args[0])
			if err != nil {
				return err
			}

			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				msg, err := s.engine.EditMessageContent(ctx, messageId, args[1], editor)
				if err != nil {
					return err
				}
				return writeJSON(cmd, types.NewMessage(msg))
			})
		},
	}

	cmd.Flags().IntVar(&editor, "editor", 0, "id of the user making the edit")

	return cmd
}

func NewThreadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "thread <message-id>",
		Short: "Print a message and all of its replies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rootId, err := parseId("message id", args[0])
			if err != nil {
				return err
			}

			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				thread, err := s.engine.GetThread(ctx, rootId)
				if err != nil {
					return err
				}
				return writeJSON(cmd, types.NewThreadNode(thread))
			})
		},
	}
}

func NewConversationCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "conversation <user-id> <other-user-id>",
		Short: "Print the threads exchanged between two users",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userId, err := parseId("user id", args[0])
			if err != nil {
				return err
			}
			otherUserId, err := parseId("user id", args[1])
			if err != nil {
				return err
			}

			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				roots, err := s.engine.ListConversation(ctx, userId, otherUserId)
				if err != nil {
					return err
				}
				return writeJSON(cmd, types.NewThreadNodes(roots))
			})
		},
	}
}

func NewUnreadCommand(rootOpts *RootOptions) *cobra.Command {
	var countOnly bool

	cmd := &cobra.Command{
		Use:   "unread <user-id>",
		Short: "List a user's unread messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userId, err := parseId("user id", args[0])
			if err != nil {
				return err
			}

			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				resp := types.UnreadMessages{}
				if countOnly {
					if resp.Count, err = s.engine.CountUnread(ctx, userId); err != nil {
						return err
					}
					return writeJSON(cmd, resp)
				}

				messages, err := s.engine.ListUnread(ctx, userId)
				if err != nil {
					return err
				}
				resp.Count = len(messages)
				resp.Messages = types.NewMessages(messages)
				return writeJSON(cmd, resp)
			})
		},
	}

	cmd.Flags().BoolVar(&countOnly, "count", false, "print only the number of unread messages")

	return cmd
}

func NewReadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "read <message-id>",
		Short: "Mark a message as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			messageId, err := parseId("message id", args[0])
			if err != nil {
				return err
			}

			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				return s.engine.MarkRead(ctx, messageId)
			})
		},
	}
}

func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <message-id>",
		Short: "Print the edit history of a message, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			messageId, err := parseId("message id", args[0])
			if err != nil {
				return err
			}

			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				history, err := s.engine.GetHistory(ctx, messageId)
				if err != nil {
					return err
				}
				return writeJSON(cmd, types.NewHistory(history))
			})
		},
	}
}

func NewNotificationsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "notifications <user-id>",
		Short: "List a user's notifications",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userId, err := parseId("user id", args[0])
			if err != nil {
				return err
			}

			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				notifications, err := s.engine.ListNotifications(ctx, userId)
				if err != nil {
					return err
				}
				return writeJSON(cmd, types.NewNotifications(notifications))
			})
		},
	}
}

func NewDeleteUserCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-user <user-id>",
		Short: "Delete a user and everything that references them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userId, err := parseId("user id", args[0])
			if err != nil {
				return err
			}

			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				if err := s.engine.DeleteUser(ctx, userId); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user %d deleted\n", userId)
				return nil
			})
		},
	}
}

func NewPurgeUserCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-user <user-id>",
		Short: "Remove a user's messages, notifications and history but keep the account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userId, err := parseId("user id", args[0])
			if err != nil {
				return err
			}

			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				result, err := s.engine.PurgeUserData(ctx, userId)
				if err != nil {
					return err
				}
				return writeJSON(cmd, types.NewCleanupResult(result))
			})
		},
	}
}

type tokenOptions struct {
	signingKey string
	expiration time.Duration
}

// NewTokenCommand issues an API bearer token. It does not touch the
// database.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &tokenOptions{}

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue an API bearer token for a user",
		Args:  cobra.ExactArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			userId, err := parseId("user id", args[0])
			if err != nil {
				return err
			}
			if opts.signingKey == "" {
				return fmt.Errorf("signing key is required: set --signing-key or SIGNING_KEY")
			}
			key, err := base64.StdEncoding.DecodeString(opts.signingKey)
			if err != nil {
				return fmt.Errorf("decode signing key: %w", err)
			}

			token, err := api.NewToken(key, userId, opts.expiration)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.signingKey, "signing-key", envSigningKey(), "base64 encoded signing key")
	cmd.Flags().DurationVar(&opts.expiration, "expiration", api.DefaultJwtExpiration, "token lifetime")

	return cmd
}
