package main

import (
	"fmt"
	"time"

	"safecircle/backend/internal/api/handler"
	"safecircle/backend/internal/models"
	"safecircle/backend/internal/storage"

	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Operator commands against the chat database",
}

var setRoleCmd = &cobra.Command{
	Use:   "set-role <user_id> <user|counsellor|admin>",
	Short: "Change a user's role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role := models.Role(args[1])
		switch role {
		case models.RoleUser, models.RoleCounsellor, models.RoleAdmin:
		default:
			return fmt.Errorf("unknown role %q", args[1])
		}
		return withStorage(func(s *storage.Service) error {
			if err := s.SetUserRole(cmd.Context(), args[0], role); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s is now %s.\n", args[0], role)
			return nil
		})
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List chat requests waiting for a counsellor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStorage(func(s *storage.Service) error {
			rooms, err := s.ListPendingChatRooms(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range rooms {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n",
					r.ID, r.UserID, r.ProblemType, r.CreatedAt.Format(time.RFC3339))
			}
			return nil
		})
	},
}

var closeRoomCmd = &cobra.Command{
	Use:   "close-room <chat_room_id>",
	Short: "Complete an accepted chat room without the end-chat handshake",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStorage(func(s *storage.Service) error {
			if err := s.CompleteChatRoom(cmd.Context(), args[0], time.Now()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Chat room %s has been closed.\n", args[0])
			return nil
		})
	},
}

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <user_id>",
	Short: "Sign a socket token for a user with JWT_SECRET",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()
		if cfg.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required")
		}

		token, err := handler.NewAuthenticator(cfg.JWTSecret).IssueToken(args[0], tokenTTL)
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	adminCmd.AddCommand(setRoleCmd, pendingCmd, closeRoomCmd, tokenCmd)
}

// withStorage opens the database for a one-off command. Redis is not needed here.
func withStorage(fn func(*storage.Service) error) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	return fn(storage.NewStorageService(db, nil))
}
