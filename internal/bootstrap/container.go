package bootstrap

import (
	"context"

	"ai-casedraft-be/internal/config"
	"ai-casedraft-be/internal/controller"
	"ai-casedraft-be/internal/handler"
	"ai-casedraft-be/internal/pkg/logger"
	"ai-casedraft-be/internal/pkg/mailer"
	"ai-casedraft-be/internal/repository/memory"
	"ai-casedraft-be/internal/repository/unitofwork"
	"ai-casedraft-be/internal/service"
	"ai-casedraft-be/internal/websocket"
	"ai-casedraft-be/pkg/backend"

	pktNats "ai-casedraft-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	SessionController  controller.ISessionController
	VersionController  controller.IVersionController
	CurationController controller.ICurationController

	// Live updates
	SessionStreamHandler *handler.SessionStreamHandler
	WebSocketHub         *websocket.Hub

	// Background services, started by main
	ConsumerService service.IConsumerService
	AuditService    service.IAuditService

	SessionService service.ISessionService
	Logger         logger.ILogger

	closers []func()
}

func NewContainer(ctx context.Context, db *gorm.DB, cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	streamLogger := logger.NewIsolatedLogger(cfg.App.StreamLogFilePath)

	c := &Container{Logger: sysLogger}

	// 1. Persistence and session memory
	uowFactory := unitofwork.NewRepositoryFactory(db)
	versionStore := service.NewVersionStore(uowFactory, sysLogger)
	sessionRepo := memory.NewSessionRepository(cfg.Session.TTL, cfg.Session.CleanupInterval)

	// 2. Generation backend
	backendClient := backend.NewClient(backend.Config{
		PipelineURL:    cfg.Backend.PipelineURL,
		EditURL:        cfg.Backend.EditURL,
		CurationURL:    cfg.Backend.CurationURL,
		RequestTimeout: cfg.Backend.RequestTimeout,
	})

	// 3. Infrastructure
	var eventPublisher service.EventPublisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
	if err != nil {
		sysLogger.Warn("Bootstrap", "Failed to connect to NATS Publisher", map[string]interface{}{"error": err.Error()})
	} else {
		eventPublisher = natsPub
		c.closers = append(c.closers, natsPub.Close)
	}

	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
	if err != nil {
		sysLogger.Warn("Bootstrap", "Failed to connect to NATS Subscriber", map[string]interface{}{"error": err.Error()})
	} else {
		c.AuditService = service.NewAuditService(natsSub, sysLogger)
		c.closers = append(c.closers, natsSub.Close)
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		sysLogger.Warn("Bootstrap", "Failed to parse Redis URL, using it as address", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		sysLogger.Warn("Bootstrap", "Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
	}
	c.closers = append(c.closers, func() { _ = rdb.Close() })

	wsHub := websocket.NewHub(rdb, streamLogger)
	go wsHub.Run(ctx)
	c.WebSocketHub = wsHub

	var emailService mailer.IEmailService
	if cfg.SMTP.Host != "" {
		emailService = mailer.NewEmailService(
			cfg.SMTP.Host,
			cfg.SMTP.Port,
			cfg.SMTP.Email,
			cfg.SMTP.Password,
			cfg.SMTP.SenderName,
			cfg.App.FrontendURL,
		)
	}

	// 4. Update bus. Blocking publish keeps each session's updates in order.
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{BlockPublishUntilSubscriberAck: true},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	publisherService := service.NewPublisherService(cfg.Session.UpdatesTopic, pubSub, func(err error) {
		sysLogger.Error("Publisher", "Failed to publish session update", map[string]interface{}{"error": err.Error()})
	})
	c.ConsumerService = service.NewConsumerService(
		pubSub,
		cfg.Session.UpdatesTopic,
		wsHub,
		eventPublisher,
		emailService,
		cfg.SMTP.NotifyEmail,
		sysLogger,
	)

	// 5. Domain services
	sessionService := service.NewSessionService(
		sessionRepo,
		backendClient,
		backendClient,
		backendClient,
		versionStore,
		sysLogger,
	)
	sessionService.Subscribe(publisherService.Listener())
	curationService := service.NewCurationService(sessionRepo, backendClient, sysLogger)
	c.SessionService = sessionService

	// 6. HTTP surface
	c.SessionController = controller.NewSessionController(sessionService)
	c.VersionController = controller.NewVersionController(sessionService)
	c.CurationController = controller.NewCurationController(curationService)
	c.SessionStreamHandler = handler.NewSessionStreamHandler(sessionService, wsHub, streamLogger)

	return c
}

// Start launches the background consumers.
func (c *Container) Start(ctx context.Context) error {
	if err := c.ConsumerService.Consume(ctx); err != nil {
		return err
	}
	if c.AuditService != nil {
		if err := c.AuditService.Start(ctx); err != nil {
			c.Logger.Warn("Bootstrap", "Audit subscriber not started", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}

// Shutdown stops in-flight runs, then releases connections in reverse order.
func (c *Container) Shutdown(ctx context.Context) error {
	err := c.SessionService.Shutdown(ctx)
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	// Syncing a console core fails on some terminals.
	_ = c.Logger.Sync()
	return err
}
