package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"courier/app/config"
	"courier/internal/adapters"
	"courier/internal/handlers"
	"courier/internal/ports"
	"courier/internal/repositories"
	"courier/internal/services"
	websocket "courier/internal/websocet"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	otelgin "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.opentelemetry.io/otel/trace"
)

type Container struct {
	isShuttingDown bool

	GinEngine   *gin.Engine
	Config      *config.Config
	Redis       *redis.Client
	RateLimiter *RateLimiter

	Metrics        *Metrics
	Logger         *slog.Logger
	TracerProvider *tracesdk.TracerProvider
	Tracer         trace.Tracer

	Server *http.Server

	Store  *repositories.StoreAdapter
	Queue  ports.IQueueStore
	Groups ports.IGroupRegistry

	DeliveryService *services.DeliveryService

	WebSocketHandler *handlers.WebsocetHandler

	WsHub *websocket.Hub
}

func NewContainer() (*Container, error) {
	container := &Container{}

	if err := container.initCore(); err != nil {
		return nil, err
	}

	if err := container.initProductionFeatures(); err != nil {
		return nil, err
	}

	return container, nil
}

func (c *Container) initCore() error {
	var cfg, err = config.LoadConfig()
	if err != nil {
		return err
	}
	c.Config = &cfg

	c.Logger = c.initLogger()

	if err = c.initTracing(); err != nil {
		return err
	}

	if err = c.initQueueBackend(); err != nil {
		return err
	}

	c.DeliveryService = services.NewDeliveryService(c.Queue, c.Groups, c.Logger)

	c.WsHub = websocket.NewHub(c.DeliveryService, c.Logger)
	go c.WsHub.Run()

	c.DeliveryService.SetWSHub(c.WsHub)

	c.RateLimiter = NewRateLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)

	c.WebSocketHandler = handlers.NewWebSocketHandler(c.WsHub, c.Logger)

	// Metrics exist before the engine: gin composes a route's handler chain
	// at registration time, so every engine-level middleware must be in
	// place before the first route is added.
	c.initMetrics()

	c.Server = c.initServer()
	c.GinEngine = c.initGinEngine()
	c.Server.Handler = c.GinEngine

	return nil
}

func (c *Container) initQueueBackend() error {
	if c.Config.Queue.Backend == "redis" {
		c.Redis = c.initRedis()
		c.Queue = adapters.NewRedisQueueRepository(c.Redis)
		c.Groups = adapters.NewRedisGroupRegistry(c.Redis)
		c.Logger.Info("queue store initialized", "backend", "redis", "addr", c.Config.Redis.Addr)
		return nil
	}

	store, err := repositories.NewStoreAdapter(c.Config.Queue, c.Logger)
	if err != nil {
		c.Logger.Error("Queue store initialize error", "error", err.Error())
		return err
	}
	c.Store = store
	c.Queue = store.Queue
	c.Groups = store.Groups
	return nil
}

func (c *Container) initProductionFeatures() error {
	c.initHealthRoutes(c.GinEngine)

	return nil
}

func (c *Container) initMetrics() {
	c.Metrics = &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP request duration",
			},
			[]string{"method", "endpoint"},
		),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courier_active_sessions",
			Help: "Live websocket sessions",
		}),
		QueuedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courier_queued_messages_total",
			Help: "Messages appended to the durable queue",
		}),
		DeliveredMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courier_delivered_messages_total",
			Help: "Messages pushed directly to a live session",
		}),
		DrainedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courier_drained_messages_total",
			Help: "Messages flushed from the queue on reconnect",
		}),
	}
	prometheus.MustRegister(
		c.Metrics.RequestsTotal,
		c.Metrics.RequestDuration,
		c.Metrics.ActiveSessions,
		c.Metrics.QueuedMessages,
		c.Metrics.DeliveredMessages,
		c.Metrics.DrainedMessages,
	)

	c.WsHub.ActiveSessions = c.Metrics.ActiveSessions
	c.DeliveryService.SetMetrics(services.DeliveryMetrics{
		Queued:    c.Metrics.QueuedMessages,
		Delivered: c.Metrics.DeliveredMessages,
		Drained:   c.Metrics.DrainedMessages,
	})
}

func (c *Container) initTracing() error {
	if !c.Config.Tracing.Enabled {
		c.Logger.Info("tracing disabled")
		return nil
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(c.Config.Tracing.Endpoint)))
	if err != nil {
		return err
	}

	c.TracerProvider = tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(c.Config.Tracing.ServiceName),
			attribute.String("environment", c.Config.Environment.Current),
		)),
	)

	otel.SetTracerProvider(c.TracerProvider)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	c.Tracer = c.TracerProvider.Tracer("courier-app")

	c.Logger.Info("tracing initialized", "endpoint", c.Config.Tracing.Endpoint)
	return nil
}

func (c *Container) initHealthRoutes(eng *gin.Engine) {
	eng.GET("/health", func(ctx *gin.Context) {
		health := map[string]string{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}

		if c.Store != nil {
			if err := c.Store.HealthCheck(ctx); err != nil {
				health["store"] = "unhealthy"
				health["status"] = "degraded"
				ctx.JSON(503, health)
				return
			}
			health["store"] = "healthy"
		}

		if c.Redis != nil {
			if err := c.Redis.Ping().Err(); err != nil {
				health["redis"] = "unhealthy"
				health["status"] = "degraded"
				ctx.JSON(503, health)
				return
			}
			health["redis"] = "healthy"
		}

		ctx.JSON(200, health)
	})

	eng.GET("/ready", func(ctx *gin.Context) {
		if c.isShuttingDown {
			ctx.JSON(503, gin.H{"status": "shutting down"})
			return
		}
		ctx.JSON(200, gin.H{"status": "ready"})
	})

	eng.GET("/live", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "live"})
	})
}

func (c *Container) initGinEngine() *gin.Engine {
	var eng = gin.Default()

	eng.Use(otelgin.Middleware(c.Config.Tracing.ServiceName))
	eng.Use(MetricsMiddleware(c.Metrics))
	eng.Use(services.RequestIDMiddleware())

	eng.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ws := eng.Group("/ws")
	ws.Use(RateLimitMiddleware(c.RateLimiter))
	{
		ws.GET("/:target/:self", c.WebSocketHandler.HandleWebSocket)
	}

	return eng
}

func (c *Container) initLogger() *slog.Logger {
	var logger *slog.Logger
	if c.Config.Environment.Current == "development" {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	slog.SetDefault(logger)
	return logger
}

func (c *Container) initRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
}

func (c *Container) initServer() *http.Server {
	return &http.Server{
		Addr:         ":" + c.Config.Server.Port,
		ReadTimeout:  time.Duration(c.Config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(c.Config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(c.Config.Server.IdleTimeout) * time.Second,
	}
}

func (c *Container) Close() error {
	c.isShuttingDown = true

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Error("failed to close redis client", "error", err)
		}
	}

	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			c.Logger.Error("failed to close queue store", "error", err)
			return err
		}
	}

	if c.TracerProvider != nil {
		if err := c.TracerProvider.Shutdown(context.Background()); err != nil {
			c.Logger.Error("failed to shutdown tracer provider", "error", err)
		}
	}

	return nil
}
