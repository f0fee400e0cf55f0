package bootstrap

import (
	"context"
	"log"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"

	"ai-docreview-be/internal/config"
	"ai-docreview-be/internal/controller"
	"ai-docreview-be/internal/pkg/logger"
	"ai-docreview-be/internal/repository/contract"
	"ai-docreview-be/internal/repository/implementation"
	"ai-docreview-be/internal/repository/memory"
	"ai-docreview-be/internal/repository/redisrepo"
	"ai-docreview-be/internal/service"
	"ai-docreview-be/internal/tasks"
	"ai-docreview-be/internal/websocket"
	"ai-docreview-be/pkg/analysis"
	"ai-docreview-be/pkg/chatbot"
	"ai-docreview-be/pkg/database"
	"ai-docreview-be/pkg/embedding"
	"ai-docreview-be/pkg/events"
	"ai-docreview-be/pkg/extraction"
	"ai-docreview-be/pkg/matcher"
	pktNats "ai-docreview-be/pkg/nats"
	"ai-docreview-be/pkg/ratelimit"
	"ai-docreview-be/pkg/redaction"
	"ai-docreview-be/pkg/speech"
)

type Container struct {
	// Controllers
	AnalysisController controller.IAnalysisController
	ChatController     controller.IChatController
	SessionController  controller.ISessionController

	// Background Services (Exposed for main.go to run)
	SessionService service.ISessionService
	IndexerService service.IIndexerService

	// WebSockets & task tracking
	ProgressHub  *websocket.Hub
	TaskRegistry *tasks.Registry
}

func NewContainer(cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 1. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 2. Infrastructure
	var lifecycleEvents service.EventPublisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	} else {
		lifecycleEvents = natsPub

		// Durable audit trail of session lifecycle events.
		natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		} else if err := natsSub.Subscribe("sessions.>", "docreview-audit", func(ctx context.Context, event events.Event) error {
			sysLogger.Info("events", "session lifecycle event", map[string]interface{}{
				"subject": event.EventType(),
				"payload": event.Payload(),
			})
			return nil
		}); err != nil {
			log.Printf("[WARN] Failed to subscribe to session events: %v", err)
		}
	}

	var rdb *redis.Client
	if cfg.Session.Backend == "redis" || cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
			if cfg.Session.Backend != "redis" {
				rdb = nil
			}
		}
	}

	// 3. Session store backend
	ttl := time.Duration(cfg.Session.TTLMinutes) * time.Minute

	var sessionRepo contract.SessionRepository
	var embeddingRepo contract.ClauseEmbeddingRepository
	switch cfg.Session.Backend {
	case "postgres":
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
		if err != nil {
			log.Fatalf("[FATAL] Failed to connect to Postgres: %v", err)
		}
		if err := database.Migrate(db); err != nil {
			log.Fatalf("[FATAL] Failed to migrate database: %v", err)
		}
		sessionRepo = implementation.NewAnalysisSessionRepository(db)
		embeddingRepo = implementation.NewClauseEmbeddingRepository(db)
		log.Printf("[INFO] Using Session Backend: POSTGRES")
	case "redis":
		sessionRepo = redisrepo.NewSessionRepository(rdb, ttl)
		log.Printf("[INFO] Using Session Backend: REDIS")
	default:
		sessionRepo = memory.NewSessionRepository(ttl)
		log.Printf("[INFO] Using Session Backend: MEMORY")
	}

	// 4. AI collaborators
	extractor, err := extraction.NewRemoteOCRProvider(cfg.Ai.OCRServiceURL, cfg.Keys.OCRService)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize OCR provider: %v", err)
	}
	analyzer, err := analysis.NewGeminiProvider(cfg.Keys.GoogleGemini, cfg.Ai.AnalysisModel)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize analysis provider: %v", err)
	}
	chatProvider := chatbot.NewGeminiProvider(cfg.Keys.GoogleGemini, cfg.Ai.ChatModel)
	embeddingProvider := embedding.NewGeminiProvider(cfg.Keys.GoogleGemini, cfg.Ai.EmbeddingModel, cfg.Ai.EmbeddingDimension)
	speechProvider := speech.NewDeepgramProvider(cfg.Keys.Deepgram)
	redactor := redaction.NewRedactor()
	clauseMatcher := matcher.NewMatcher()

	baseDelay := time.Duration(cfg.RateLimit.BaseDelaySeconds * float64(time.Second))
	maxDelay := time.Duration(cfg.RateLimit.MaxDelaySeconds * float64(time.Second))
	analysisLimiter := ratelimit.NewLimiter(cfg.RateLimit.AnalysisRPM, cfg.RateLimit.MaxRetries, baseDelay, maxDelay, sysLogger)
	chatLimiter := ratelimit.NewLimiter(cfg.RateLimit.ChatRPM, cfg.RateLimit.MaxRetries, baseDelay, maxDelay, sysLogger)

	// 5. Core services
	registry := tasks.NewRegistry()

	sessionService := service.NewSessionService(
		sessionRepo,
		embeddingRepo,
		registry,
		lifecycleEvents,
		sysLogger,
		ttl,
		time.Duration(cfg.Session.CleanupIntervalMinutes)*time.Minute,
		cfg.Session.MaxConcurrentAnalyses,
		cfg.Session.MaxAnalysesPerOrigin,
	)

	pipelineService := service.NewPipelineService(
		sessionRepo,
		registry,
		extractor,
		redactor,
		analyzer,
		analysisLimiter,
		clauseMatcher,
		pubSub,
		lifecycleEvents,
		sysLogger,
	)

	analysisService := service.NewAnalysisService(
		sessionRepo,
		sessionService,
		pipelineService,
		sysLogger,
		cfg.App.UploadDir,
		cfg.App.MaxFileSizeMB,
	)

	chatService := service.NewChatService(
		sessionService,
		embeddingRepo,
		embeddingProvider,
		chatProvider,
		speechProvider,
		chatLimiter,
		sysLogger,
	)

	var indexerService service.IIndexerService
	if embeddingRepo != nil {
		indexerService = service.NewIndexerService(
			pubSub,
			sessionRepo,
			embeddingRepo,
			embeddingProvider,
			sysLogger,
		)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/progress.log")
	wsHub := websocket.NewHub(sessionRepo, rdb, wsLogger)
	go wsHub.Run()

	return &Container{
		AnalysisController: controller.NewAnalysisController(analysisService, sessionService),
		ChatController:     controller.NewChatController(chatService),
		SessionController:  controller.NewSessionController(sessionService),

		SessionService: sessionService,
		IndexerService: indexerService,

		ProgressHub:  wsHub,
		TaskRegistry: registry,
	}
}
