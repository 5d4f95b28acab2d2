package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/teamfinder/internal/shared/events"
	"github.com/felixgeelhaar/teamfinder/internal/shared/infrastructure/eventbus"
	teamapp "github.com/felixgeelhaar/teamfinder/internal/teams/application"
	"github.com/felixgeelhaar/teamfinder/internal/teams/application/subscribers"
	teamsdomain "github.com/felixgeelhaar/teamfinder/internal/teams/domain"
	"github.com/felixgeelhaar/teamfinder/pkg/config"
	"github.com/felixgeelhaar/teamfinder/pkg/observability"
)

var teamCmd = &cobra.Command{
	Use:   "team",
	Short: "Team service",
	Long:  `Run the team service (user-replica projection consumer) or perform one-shot team operations.`,
}

func init() {
	teamCmd.AddCommand(teamServeCmd)
	teamCmd.AddCommand(teamCreateCmd)
	teamCmd.AddCommand(teamJoinCmd)
	teamCmd.AddCommand(teamLeaveCmd)
	teamCmd.AddCommand(teamDeleteCmd)
	teamCmd.AddCommand(teamListCmd)
	teamCmd.AddCommand(teamMatchCmd)

	teamCreateCmd.Flags().String("name", "", "team name")
	teamCreateCmd.Flags().String("game", "", "game")
	teamCreateCmd.Flags().String("platform", "", "platform")
	teamCreateCmd.Flags().String("skill", "", "skill level")
	teamCreateCmd.Flags().Int("max-players", 5, "maximum number of players")
	teamCreateCmd.Flags().String("owner", "", "owner user id")
	_ = teamCreateCmd.MarkFlagRequired("name")
	_ = teamCreateCmd.MarkFlagRequired("owner")

	teamMatchCmd.Flags().String("game", "", "game filter")
	teamMatchCmd.Flags().String("platform", "", "platform filter")
	teamMatchCmd.Flags().String("skill", "", "skill level filter")
}

type teamRuntime struct {
	cfg     *config.Config
	service *teamapp.Service
	store   teamsdomain.Store
	health  observability.HealthChecker
	logger  *slog.Logger
	close   func()
}

func newTeamRuntime(ctx context.Context) (*teamRuntime, error) {
	cfg, logger, err := loadRuntime("team-service")
	if err != nil {
		return nil, err
	}

	store, closeStore, health, err := openTeamStore(ctx, cfg.TeamDatabaseURL)
	if err != nil {
		return nil, err
	}

	publisher := eventbus.NewPublisher(cfg.RabbitMQURL, events.TeamEventsExchange, logger)

	return &teamRuntime{
		cfg:     cfg,
		service: teamapp.NewService(store, publisher, logger),
		store:   store,
		health:  health,
		logger:  logger,
		close: func() {
			_ = publisher.Close()
			closeStore()
		},
	}, nil
}

var teamServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the team service",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		rt, err := newTeamRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		registry := eventbus.NewRegistry(rt.logger)
		registry.Register(subscribers.NewUserProjection(rt.store, rt.logger))

		consumer := eventbus.NewRabbitMQConsumer(eventbus.RabbitMQConsumerConfig{
			URL:             rt.cfg.RabbitMQURL,
			Exchange:        events.UserEventsExchange,
			Queue:           teamServiceUserEventsQueue,
			MaxRedeliveries: rt.cfg.ConsumerMaxRedeliveries,
			Logger:          rt.logger,
		}, registry)
		defer func() { _ = consumer.Close() }()

		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				rt.logger.Error("consumer stopped", "error", err)
			}
		}()

		healthReg := observability.NewHealthRegistry()
		healthReg.Register("store", rt.health)
		healthReg.Register("consumer", func(context.Context) observability.HealthCheckResult {
			if consumer.Disabled() {
				return observability.Degraded("broker unreachable, projection paused")
			}
			return observability.Healthy("consuming")
		})

		rt.logger.Info("team service started", "addr", rt.cfg.TeamHTTPAddr)
		return serveHTTP(ctx, rt.cfg.TeamHTTPAddr, healthMux(healthReg), rt.logger)
	},
}

var teamCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a team",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ownerID, err := uuid.Parse(flagString(cmd, "owner"))
		if err != nil {
			return fmt.Errorf("invalid owner id: %w", err)
		}
		maxPlayers, _ := cmd.Flags().GetInt("max-players")

		rt, err := newTeamRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		team, err := rt.service.CreateTeam(cmd.Context(), teamapp.CreateTeamInput{
			Name:       flagString(cmd, "name"),
			Game:       flagString(cmd, "game"),
			Platform:   flagString(cmd, "platform"),
			SkillLevel: flagString(cmd, "skill"),
			MaxPlayers: maxPlayers,
			OwnerID:    ownerID,
		})
		if err != nil {
			return err
		}
		cmd.Printf("created team %s (%s)\n", team.Name, team.ID)
		return nil
	},
}

var teamJoinCmd = &cobra.Command{
	Use:   "join <team-id> <user-id>",
	Short: "Join a team",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		teamID, userID, err := parseTeamUserArgs(args)
		if err != nil {
			return err
		}

		rt, err := newTeamRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		team, err := rt.service.JoinTeam(cmd.Context(), teamID, userID)
		if err != nil {
			return err
		}
		cmd.Printf("joined team %s (%d/%d players)\n", team.Name, len(team.Members), team.MaxPlayers)
		return nil
	},
}

var teamLeaveCmd = &cobra.Command{
	Use:   "leave <team-id> <user-id>",
	Short: "Leave a team",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		teamID, userID, err := parseTeamUserArgs(args)
		if err != nil {
			return err
		}

		rt, err := newTeamRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		if err := rt.service.LeaveTeam(cmd.Context(), teamID, userID); err != nil {
			return err
		}
		cmd.Printf("left team %s\n", teamID)
		return nil
	},
}

var teamDeleteCmd = &cobra.Command{
	Use:   "delete <team-id> <owner-id>",
	Short: "Delete a team (owner only)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		teamID, ownerID, err := parseTeamUserArgs(args)
		if err != nil {
			return err
		}

		rt, err := newTeamRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		if err := rt.service.DeleteTeam(cmd.Context(), teamID, ownerID); err != nil {
			return err
		}
		cmd.Printf("deleted team %s\n", teamID)
		return nil
	},
}

var teamListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all teams",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := newTeamRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		teams, err := rt.service.ListTeams(cmd.Context())
		if err != nil {
			return err
		}
		printTeams(cmd, teams)
		return nil
	},
}

var teamMatchCmd = &cobra.Command{
	Use:   "match",
	Short: "Find open teams with free slots",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := newTeamRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		teams, err := rt.service.Match(cmd.Context(), teamsdomain.MatchFilter{
			Game:       flagString(cmd, "game"),
			Platform:   flagString(cmd, "platform"),
			SkillLevel: flagString(cmd, "skill"),
		})
		if err != nil {
			return err
		}
		printTeams(cmd, teams)
		return nil
	},
}

func parseTeamUserArgs(args []string) (uuid.UUID, uuid.UUID, error) {
	teamID, err := uuid.Parse(args[0])
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid team id: %w", err)
	}
	userID, err := uuid.Parse(args[1])
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid user id: %w", err)
	}
	return teamID, userID, nil
}

func printTeams(cmd *cobra.Command, teams []*teamsdomain.Team) {
	for _, t := range teams {
		open := "open"
		if !t.IsOpen {
			open = "closed"
		}
		cmd.Printf("%s  %-20s %-12s %-8s %d/%d %s\n",
			t.ID, t.Name, t.Game, t.Platform, len(t.Members), t.MaxPlayers, open)
	}
}
