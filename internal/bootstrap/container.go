package bootstrap

import (
	"context"
	"time"

	"prawnik-web/internal/authprovider"
	"prawnik-web/internal/config"
	"prawnik-web/internal/controller"
	"prawnik-web/internal/events"
	"prawnik-web/internal/gateway"
	"prawnik-web/internal/handler"
	"prawnik-web/internal/metrics"
	"prawnik-web/internal/pkg/logger"
	"prawnik-web/internal/pkg/serverutils"
	"prawnik-web/internal/polling"
	"prawnik-web/internal/repository/memory"
	"prawnik-web/internal/service"
	"prawnik-web/internal/session"
	"prawnik-web/internal/websocket"

	pktNats "prawnik-web/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

const Version = "1.0.0"

type Container struct {
	// Controllers
	PageController     controller.IPageController
	AuthController     controller.IAuthController
	ChatController     controller.IChatController
	HistoryController  controller.IHistoryController
	SettingsController controller.ISettingsController
	OpsController      controller.IOpsController

	// Realtime
	RealtimeHandler *handler.RealtimeHandler
	WebSocketHub    *websocket.Hub

	// Background Services (Exposed for main.go to run)
	Consumers []service.IConsumerService

	AuthService service.IAuthService
	Sessions    *memory.SessionRepository
	Cookie      serverutils.CookieConfig
	Metrics     *metrics.Collectors
	Logger      logger.ILogger

	pubSub  *gochannel.GoChannel
	natsPub *pktNats.Publisher
	rdb     *redis.Client
}

func NewContainer(cfg *config.Config, sysLogger logger.ILogger) *Container {
	// 1. Core Facades
	collectors := metrics.NewCollectors()
	rtLogger := logger.NewIsolatedLogger(cfg.App.RealtimeLogFilePath)

	gw := gateway.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, sysLogger, collectors)
	provider := authprovider.NewGoTrue(cfg.Auth.BaseURL, cfg.Auth.AnonKey, cfg.Backend.Timeout, sysLogger)

	cookie := serverutils.CookieConfig{
		Secret: []byte(cfg.Session.Secret),
		TTL:    cfg.Session.TTL,
		Secure: cfg.Session.CookieSecure || cfg.IsProduction(),
	}
	sessions := memory.NewSessionRepository(cfg.Session.TTL, sysLogger)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermillLogger,
	)
	bus := events.NewBus(pubSub, rtLogger)

	// 3. Infrastructure, both optional
	natsPub := connectNats(cfg.Realtime.NatsURL, sysLogger)
	rdb := connectRedis(cfg.Realtime.RedisURL, sysLogger)

	wsHub := websocket.NewHub(rdb, rtLogger)

	// 4. Sessions
	newSession := func(auth *authprovider.Session) *session.State {
		return session.New(auth, session.Options{
			Client:    gw,
			Refresher: provider,
			Sink:      bus,
			Fast: polling.FastConfig{
				InitialInterval: cfg.Polling.FastInitial,
				MaxInterval:     cfg.Polling.FastMax,
				Multiplier:      cfg.Polling.FastMultiplier,
				Timeout:         cfg.Polling.FastTimeout,
			},
			Accurate: polling.AccurateConfig{
				Interval: cfg.Polling.AccurateInterval,
				Timeout:  cfg.Polling.AccurateTimeout,
			},
			MaxActive:        cfg.Polling.MaxActiveQueries,
			RateLimitDefault: cfg.Polling.RateLimitDefault,
			Metrics:          collectors,
			Logger:           sysLogger,
		})
	}

	// 5. Services
	authService := service.NewAuthService(provider, sessions, newSession, cfg.App.BaseURL, sysLogger)
	chatService := service.NewChatService(gw, bus, service.ChatConfig{
		CacheTTL:      cfg.Polling.ContextCacheTTL,
		CacheTickEach: cfg.Polling.CacheTimerTickEvery,
	}, collectors, sysLogger)
	historyService := service.NewHistoryService(bus, sysLogger)
	settingsService := service.NewSettingsService(gw, provider, sessions, sysLogger)

	consumers := []service.IConsumerService{
		service.NewRealtimeConsumer(pubSub, wsHub, sessions, rtLogger),
	}
	if natsPub != nil {
		consumers = append(consumers, service.NewAnalyticsConsumer(pubSub, natsPub, sysLogger))
	}

	// 6. Controllers
	return &Container{
		PageController:     controller.NewPageController(),
		AuthController:     controller.NewAuthController(authService, cookie),
		ChatController:     controller.NewChatController(chatService, sysLogger),
		HistoryController:  controller.NewHistoryController(historyService, sysLogger),
		SettingsController: controller.NewSettingsController(settingsService, cookie),
		OpsController:      controller.NewOpsController(gw, sessions, collectors.Handler(), Version),

		RealtimeHandler: handler.NewRealtimeHandler(wsHub, chatService, rtLogger),
		WebSocketHub:    wsHub,

		Consumers: consumers,

		AuthService: authService,
		Sessions:    sessions,
		Cookie:      cookie,
		Metrics:     collectors,
		Logger:      sysLogger,

		pubSub:  pubSub,
		natsPub: natsPub,
		rdb:     rdb,
	}
}

func connectNats(url string, log logger.ILogger) *pktNats.Publisher {
	if url == "" {
		log.Info("Container", "NATS disabled, analytics events stay in process", nil)
		return nil
	}
	pub, err := pktNats.NewPublisher(url, log)
	if err != nil {
		log.Warn("Container", "Failed to connect to NATS Publisher", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return pub
}

func connectRedis(url string, log logger.ILogger) *redis.Client {
	if url == "" {
		log.Info("Container", "Redis disabled, websocket events stay on this instance", nil)
		return nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Warn("Container", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("Container", "Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
		_ = rdb.Close()
		return nil
	}
	return rdb
}

// Close releases the brokers. Sessions are left to the process exit.
func (c *Container) Close() {
	if err := c.pubSub.Close(); err != nil {
		c.Logger.Warn("Container", "Failed to close event bus", map[string]interface{}{"error": err.Error()})
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.rdb != nil {
		_ = c.rdb.Close()
	}
}
