package main

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	notifapp "github.com/felixgeelhaar/teamfinder/internal/notifications/application"
	notifsubscribers "github.com/felixgeelhaar/teamfinder/internal/notifications/application/subscribers"
	notifdomain "github.com/felixgeelhaar/teamfinder/internal/notifications/domain"
	"github.com/felixgeelhaar/teamfinder/internal/notifications/infrastructure/backplane"
	"github.com/felixgeelhaar/teamfinder/internal/notifications/infrastructure/email"
	"github.com/felixgeelhaar/teamfinder/internal/notifications/infrastructure/httpapi"
	"github.com/felixgeelhaar/teamfinder/internal/notifications/infrastructure/ws"
	"github.com/felixgeelhaar/teamfinder/internal/shared/events"
	"github.com/felixgeelhaar/teamfinder/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/teamfinder/pkg/observability"
)

var notificationCmd = &cobra.Command{
	Use:   "notification",
	Short: "Notification gateway",
	Long:  `Run the notification gateway: websocket fan-out, event subscribers, and email escalation.`,
}

func init() {
	notificationCmd.AddCommand(notificationServeCmd)
}

var notificationServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the notification gateway",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, logger, err := loadRuntime("notification-gateway")
		if err != nil {
			return err
		}

		hub := ws.NewHub(logger)

		var bp notifdomain.Backplane
		if cfg.BackplaneEnabled() {
			opts, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				return err
			}
			redisBackplane := backplane.NewRedis(redis.NewClient(opts), "", logger)
			defer func() { _ = redisBackplane.Close() }()
			bp = redisBackplane
			logger.Info("redis backplane enabled")
		}

		notifier := notifapp.NewNotifier(hub, bp, logger)
		go func() {
			if err := notifier.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("backplane forwarding stopped", "error", err)
			}
		}()

		var emailService *notifapp.EmailService
		if cfg.EmailEnabled() {
			sender := email.NewBreakerSender(
				email.NewSMTPSender(email.SMTPConfig{
					Host:     cfg.SMTPHost,
					Port:     cfg.SMTPPort,
					Username: cfg.SMTPUsername,
					Password: cfg.SMTPPassword,
					From:     cfg.SMTPFrom,
				}, logger),
				email.DefaultBreakerConfig(),
				logger,
			)
			emailService = notifapp.NewEmailService(sender, logger)
			logger.Info("email escalation enabled", "relay", cfg.SMTPHost)
		}

		userConsumer := startConsumer(ctx, eventbus.RabbitMQConsumerConfig{
			URL:             cfg.RabbitMQURL,
			Exchange:        events.UserEventsExchange,
			Queue:           notificationServiceUserEventsQueue,
			MaxRedeliveries: cfg.ConsumerMaxRedeliveries,
			Logger:          logger,
		}, notifsubscribers.NewUserEvents(notifier, logger))
		defer func() { _ = userConsumer.Close() }()

		teamConsumer := startConsumer(ctx, eventbus.RabbitMQConsumerConfig{
			URL:             cfg.RabbitMQURL,
			Exchange:        events.TeamEventsExchange,
			Queue:           notificationServiceTeamEventsQueue,
			MaxRedeliveries: cfg.ConsumerMaxRedeliveries,
			Logger:          logger,
		}, notifsubscribers.NewTeamEvents(notifier, logger))
		defer func() { _ = teamConsumer.Close() }()

		healthReg := observability.NewHealthRegistry()
		healthReg.Register("user_events_consumer", consumerHealth(userConsumer))
		healthReg.Register("team_events_consumer", consumerHealth(teamConsumer))

		server := httpapi.NewServer(
			notifier,
			emailService,
			ws.NewHandler(hub, logger),
			healthReg.Handler(),
			logger,
		)

		logger.Info("notification gateway started", "addr", cfg.NotificationHTTPAddr)
		return serveHTTP(ctx, cfg.NotificationHTTPAddr, server.Handler(), logger)
	},
}

func startConsumer(ctx context.Context, cfg eventbus.RabbitMQConsumerConfig, handler eventbus.Handler) *eventbus.RabbitMQConsumer {
	registry := eventbus.NewRegistry(cfg.Logger)
	registry.Register(handler)

	consumer := eventbus.NewRabbitMQConsumer(cfg, registry)
	go func() {
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			cfg.Logger.Error("consumer stopped", "queue", cfg.Queue, "error", err)
		}
	}()
	return consumer
}

func consumerHealth(consumer *eventbus.RabbitMQConsumer) observability.HealthChecker {
	return func(context.Context) observability.HealthCheckResult {
		if consumer.Disabled() {
			return observability.Degraded("broker unreachable, notifications paused")
		}
		return observability.Healthy("consuming")
	}
}
