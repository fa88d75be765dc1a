package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"realtime-service/internal/auth"
	"realtime-service/internal/bus"
	"realtime-service/internal/config"
	"realtime-service/internal/db"
	"realtime-service/internal/handlers"
	"realtime-service/internal/middleware"
	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/push"
	"realtime-service/internal/rabbitmq"
	"realtime-service/internal/realtime"
	"realtime-service/internal/repositories"
	"realtime-service/internal/telemetry"
	"realtime-service/internal/ws"
)

// Deps are the external collaborators of the service.
type Deps struct {
	Chats         repositories.ChatRepository
	Users         repositories.UserRepository
	Notifications repositories.NotificationRepository
	Bus           bus.Bus
	Push          push.Delivery
	Verifier      auth.Verifier
	Audit         rabbitmq.Publisher
}

// App owns the process-local realtime state and the HTTP surface.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	deps   Deps

	registry      *ws.Registry
	queue         *bus.Queue
	pusher        *realtime.Pusher
	presence      *realtime.Presence
	notifications *realtime.Notifications

	router *gin.Engine
	server *http.Server

	closers []func(context.Context) error
}

// New connects the configured infrastructure and builds the service.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	var closers []func(context.Context) error
	fail := func(err error) (*App, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i](context.Background())
		}
		return nil, err
	}

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	} else {
		closers = append(closers, shutdownTracing)
	}

	database, err := db.Connect(ctx, cfg.DatabaseDSN)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func(context.Context) error { return database.Close() })

	verifier, err := newVerifier(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func(context.Context) error { verifier.Close(); return nil })

	b, err := bus.Open(ctx, bus.Options{
		Driver:   cfg.BusDriver,
		Topic:    cfg.BusTopic,
		AMQPURL:  cfg.AMQPURL,
		RedisURL: cfg.RedisURL,
		NATSURL:  cfg.NATSURL,
		Name:     cfg.ServiceName + "-" + hostname(),
	}, logger)
	if err != nil {
		return fail(fmt.Errorf("open bus: %w", err))
	}

	eventsURL := cfg.EventsAMQPURL
	if eventsURL == "" && cfg.BusDriver == "amqp" {
		eventsURL = cfg.AMQPURL
	}
	audit := rabbitmq.NewPublisher(eventsURL, cfg.EventsExchange, logger)
	logger.Info("audit publisher ready", "mode", rabbitmq.PublisherMode(audit), "reason", rabbitmq.PublisherNoopReason(audit))

	a, err := Build(ctx, cfg, logger, Deps{
		Chats:         repositories.NewChatRepo(database),
		Users:         repositories.NewUserRepo(database),
		Notifications: repositories.NewNotificationRepo(database),
		Bus:           b,
		Push:          push.New(cfg.PushKafkaBrokers, cfg.PushKafkaTopic, logger),
		Verifier:      verifier,
		Audit:         audit,
	})
	if err != nil {
		_ = b.Close()
		_ = audit.Close()
		return fail(err)
	}
	a.closers = append(a.closers, closers...)
	return a, nil
}

func newVerifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*auth.JWTVerifier, error) {
	if cfg.JWKSURL != "" {
		return auth.NewJWKSVerifier(ctx, cfg.JWKSURL, logger)
	}
	return auth.NewHMACVerifier(cfg.AccessTokenSecret), nil
}

// Build wires the realtime components on top of deps and subscribes this
// instance to the bus.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps Deps) (*App, error) {
	registry := ws.NewRegistry()
	dispatcher := realtime.NewDispatcher(registry, logger)
	if err := deps.Bus.Subscribe(ctx, dispatcher.Handle); err != nil {
		return nil, fmt.Errorf("subscribe bus: %w", err)
	}

	queue := bus.NewQueue(deps.Bus, cfg.PublishQueueSize, cfg.PublishTimeout, logger)
	pusher := realtime.NewPusher(deps.Push, cfg.PushTimeout, logger)
	membership := realtime.NewMembership(deps.Chats, cfg.StoreTimeout, logger)

	a := &App{
		cfg:           cfg,
		logger:        logger,
		deps:          deps,
		registry:      registry,
		queue:         queue,
		pusher:        pusher,
		presence:      realtime.NewPresence(registry, membership, queue, logger),
		notifications: realtime.NewNotifications(deps.Users, deps.Notifications, queue, pusher, cfg.StoreTimeout, logger),
	}
	if deps.Audit != nil {
		observability.SetPublisher(deps.Audit)
	}

	ingest := realtime.NewIngest(deps.Chats, queue, pusher, cfg.StoreTimeout, logger)
	a.router = a.buildRouter(ingest)
	a.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

func (a *App) buildRouter(ingest *realtime.Ingest) *gin.Engine {
	if !a.cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(otelgin.Middleware(a.cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	wsHandler := ws.NewHandler(a.deps.Verifier, a.deps.Users, a.presence, ingest, a.cfg.ClientBufferSize, a.cfg.StoreTimeout, a.logger)
	router.GET(string(models.ChatNamespace), wsHandler.Namespace(models.ChatNamespace))
	router.GET(string(models.NotifyNamespace), wsHandler.Namespace(models.NotifyNamespace))

	var audit *telemetry.AuditEmitter
	if a.deps.Audit != nil {
		audit = telemetry.NewAuditEmitter(a.deps.Audit, "audit.notifications", a.cfg.ServiceName, a.cfg.Environment, a.logger)
	}
	internal := router.Group("/internal", middleware.AuthMiddleware(a.deps.Verifier))
	internal.POST("/notifications", handlers.NewNotificationHandler(a.notifications, audit).CreateNotification)
	handlers.RegisterDebugRoutes(router, audit, a.connectionCounts, a.cfg.Development())

	return router
}

func (a *App) connectionCounts() map[string]int {
	return map[string]int{
		models.ChatNamespace.Label():   a.registry.Count(models.ChatNamespace),
		models.NotifyNamespace.Label(): a.registry.Count(models.NotifyNamespace),
	}
}

// Handler exposes the router, mainly for tests.
func (a *App) Handler() http.Handler { return a.router }

// Run serves HTTP until the server is shut down.
func (a *App) Run() error {
	a.logger.Info("realtime service listening", "port", a.cfg.Port, "bus", a.cfg.BusDriver)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, finalizes every live connection so
// peers see it go offline, drains queued publishes and pushes, then releases
// infrastructure.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	clients := a.registry.All()
	for _, c := range clients {
		a.presence.Disconnect(ctx, c)
	}
	a.logger.Info("connections finalized", "count", len(clients))

	if err := a.queue.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain publish queue: %w", err))
	}
	if err := a.pusher.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("wait for pushes: %w", err))
	}

	if err := a.deps.Bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close bus: %w", err))
	}
	if err := a.deps.Push.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close push: %w", err))
	}
	if a.deps.Audit != nil {
		if err := a.deps.Audit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close audit publisher: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Migrate applies the database schema and exits.
func Migrate(ctx context.Context, cfg *config.Config) error {
	database, err := db.Connect(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer database.Close()
	return db.Migrate(ctx, database)
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}
