package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/teamfinder/internal/shared/events"
	"github.com/felixgeelhaar/teamfinder/internal/shared/infrastructure/eventbus"
	userapp "github.com/felixgeelhaar/teamfinder/internal/users/application"
	"github.com/felixgeelhaar/teamfinder/pkg/config"
	"github.com/felixgeelhaar/teamfinder/pkg/observability"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "User service",
	Long:  `Run the user service or perform one-shot user operations against its store.`,
}

func init() {
	userCmd.AddCommand(userServeCmd)
	userCmd.AddCommand(userRegisterCmd)
	userCmd.AddCommand(userUpdateCmd)
	userCmd.AddCommand(userDeleteCmd)
	userCmd.AddCommand(userListCmd)

	for _, cmd := range []*cobra.Command{userRegisterCmd, userUpdateCmd} {
		cmd.Flags().String("username", "", "username")
		cmd.Flags().String("email", "", "email address")
		cmd.Flags().String("platform", "", "gaming platform")
		cmd.Flags().String("game", "", "preferred game")
		cmd.Flags().String("skill", "", "skill level")
	}
	_ = userRegisterCmd.MarkFlagRequired("username")
	_ = userRegisterCmd.MarkFlagRequired("email")
}

// userRuntime bundles the wired user service with its cleanup.
type userRuntime struct {
	cfg     *config.Config
	service *userapp.Service
	health  observability.HealthChecker
	logger  *slog.Logger
	close   func()
}

func newUserRuntime(ctx context.Context) (*userRuntime, error) {
	cfg, logger, err := loadRuntime("user-service")
	if err != nil {
		return nil, err
	}

	repo, closeStore, health, err := openUserStore(ctx, cfg.UserDatabaseURL)
	if err != nil {
		return nil, err
	}

	publisher := eventbus.NewPublisher(cfg.RabbitMQURL, events.UserEventsExchange, logger)

	return &userRuntime{
		cfg:     cfg,
		service: userapp.NewService(repo, publisher, logger),
		health:  health,
		logger:  logger,
		close: func() {
			_ = publisher.Close()
			closeStore()
		},
	}, nil
}

var userServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the user service",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		rt, err := newUserRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		registry := observability.NewHealthRegistry()
		registry.Register("store", rt.health)

		rt.logger.Info("user service started", "addr", rt.cfg.UserHTTPAddr)
		return serveHTTP(ctx, rt.cfg.UserHTTPAddr, healthMux(registry), rt.logger)
	},
}

var userRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := newUserRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		in := userapp.RegisterInput{
			Username:       flagString(cmd, "username"),
			Email:          flagString(cmd, "email"),
			GamingPlatform: flagString(cmd, "platform"),
			PreferredGame:  flagString(cmd, "game"),
			SkillLevel:     flagString(cmd, "skill"),
		}
		user, err := rt.service.Register(cmd.Context(), in)
		if err != nil {
			return err
		}
		cmd.Printf("registered user %s (%s)\n", user.Username, user.ID)
		return nil
	},
}

var userUpdateCmd = &cobra.Command{
	Use:   "update <user-id>",
	Short: "Update a user's profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}

		rt, err := newUserRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		in := userapp.UpdateInput{
			Username:       flagString(cmd, "username"),
			Email:          flagString(cmd, "email"),
			GamingPlatform: flagString(cmd, "platform"),
			PreferredGame:  flagString(cmd, "game"),
			SkillLevel:     flagString(cmd, "skill"),
		}
		user, err := rt.service.Update(cmd.Context(), id, in)
		if err != nil {
			return err
		}
		cmd.Printf("updated user %s (%s)\n", user.Username, user.ID)
		return nil
	},
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <user-id>",
	Short: "Delete a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}

		rt, err := newUserRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		if err := rt.service.Delete(cmd.Context(), id); err != nil {
			return err
		}
		cmd.Printf("deleted user %s\n", id)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := newUserRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		users, err := rt.service.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, u := range users {
			cmd.Printf("%s  %-20s %s\n", u.ID, u.Username, u.Email)
		}
		return nil
	},
}

func flagString(cmd *cobra.Command, name string) string {
	value, _ := cmd.Flags().GetString(name)
	return value
}
