package bootstrap

import (
	"context"
	"log"
	"time"

	"ctfpilot-be/internal/config"
	"ctfpilot-be/internal/controller"
	"ctfpilot-be/internal/handler"
	"ctfpilot-be/internal/pkg/logger"
	"ctfpilot-be/internal/pkg/serverutils"
	"ctfpilot-be/internal/repository/memory"
	"ctfpilot-be/internal/repository/unitofwork"
	"ctfpilot-be/internal/service"
	"ctfpilot-be/internal/websocket"

	pktNats "ctfpilot-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// jobUpdatesTopic is the in-process bus topic carrying worker updates to
// the websocket relay.
const jobUpdatesTopic = "job_updates"

type Container struct {
	// Controllers
	JobController    controller.IJobController
	AuthController   controller.IAuthController
	ConfigController controller.IConfigController
	HealthController controller.IHealthController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	AnalysisService service.IAnalysisService

	// WebSockets
	WsHandler    *handler.WsHandler
	WebSocketHub *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// In-Memory Session Storage
	sessionRepo := memory.NewSessionRepository(time.Duration(cfg.Auth.SessionTimeoutSec) * time.Second)

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/websocket.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 3. Services
	authMiddleware := serverutils.NewAuthMiddleware(cfg, sessionRepo)

	publisherService := service.NewPublisherService(jobUpdatesTopic, pubSub)
	consumerService := service.NewConsumerService(pubSub, jobUpdatesTopic, wsHub, wsLogger)

	fileService := service.NewFileService(cfg)
	sandboxService := service.NewSandboxService(cfg, sysLogger)
	evidenceService := service.NewEvidenceService(cfg)
	reportService := service.NewReportService(cfg)
	authService := service.NewAuthService(cfg, sessionRepo, sysLogger)
	configService := service.NewConfigService(cfg, sandboxService)

	jobService := service.NewJobService(
		uowFactory,
		fileService,
		sandboxService,
		natsPub,
		wsHub,
		sysLogger,
	)

	analysisService := service.NewAnalysisService(
		natsSub,
		uowFactory,
		jobService,
		fileService,
		sandboxService,
		evidenceService,
		reportService,
		publisherService,
		sysLogger,
	)

	// 4. Handlers and Controllers
	wsHandler := handler.NewWsHandler(cfg, sessionRepo, wsHub, wsLogger)

	return &Container{
		JobController:    controller.NewJobController(jobService, fileService, authMiddleware),
		AuthController:   controller.NewAuthController(cfg, authService, authMiddleware),
		ConfigController: controller.NewConfigController(configService, authMiddleware),
		HealthController: controller.NewHealthController(db),

		ConsumerService: consumerService,
		AnalysisService: analysisService,

		WsHandler:    wsHandler,
		WebSocketHub: wsHub,
	}
}
