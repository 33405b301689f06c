package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"gopherai-study/internal/ai"
	"gopherai-study/internal/app"
	"gopherai-study/internal/cache"
	"gopherai-study/internal/config"
	"gopherai-study/internal/metrics"
	"gopherai-study/internal/model"
	"gopherai-study/internal/outline"
	"gopherai-study/internal/platform/database"
	rabbitmqClient "gopherai-study/internal/platform/rabbitmq"
	redisClient "gopherai-study/internal/platform/redis"
	"gopherai-study/internal/repository"
	"gopherai-study/internal/schedule"
	"gopherai-study/internal/worker"
)

type App struct {
	Config  *config.Config
	DB      *gorm.DB
	Redis   *redis.Client
	MQConn  *amqp.Connection
	Metrics *metrics.Metrics

	Lifecycle *app.LifecycleService
	Outlines  *app.OutlineService
	Filter    *app.ContentFilter
	Quiz      *app.QuizService
	Ask       *app.AskService

	// Publisher and IngestWorker are nil when no broker is configured.
	Publisher    *rabbitmqClient.IngestPublisher
	IngestWorker *worker.IngestWorker
	Scheduler    *schedule.CronScheduler

	StartedAt time.Time
}

// New connects every backing service and wires the services on top. Nothing
// is started; see StartBackground.
func New(ctx context.Context, cfg *config.Config) (a *App, err error) {
	a = &App{Config: cfg, Metrics: metrics.New(), StartedAt: time.Now()}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	a.DB, err = database.Open(ctx, cfg)
	if err != nil {
		return a, err
	}
	if err := a.DB.AutoMigrate(model.Tables()...); err != nil {
		return a, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	var tracker cache.LivenessTracker = cache.NewMemoryLiveness()
	if cfg.Session.LivenessBackend == "redis" {
		a.Redis, err = redisClient.New(ctx, cfg.Redis)
		if err != nil {
			return a, err
		}
		tracker = cache.NewRedisLiveness(a.Redis, "")
	}

	if cfg.RabbitMQ.URL != "" {
		a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.IngestQueue)
		if err != nil {
			return a, err
		}
		a.Publisher = rabbitmqClient.NewIngestPublisher(a.MQConn, cfg.RabbitMQ.IngestQueue)
	}

	chunkRepo := repository.NewChunkRepository(a.DB)
	documentRepo := repository.NewDocumentOutlineRepository(a.DB)
	sessionOutlineRepo := repository.NewSessionOutlineRepository(a.DB)
	sessionRepo := repository.NewStudySessionRepository(a.DB)
	questionRepo := repository.NewQuizQuestionRepository(a.DB)
	ledgerRepo := repository.NewQuizSessionRepository(a.DB)
	outlineCache := cache.NewOutlineCache(cfg.Outline.CacheSize, time.Duration(cfg.Outline.CacheTTLSeconds)*time.Second)

	llm := ai.NewOpenAICompatibleClient(ai.ChatConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: time.Duration(cfg.Quiz.GenerationTimeoutSeconds) * time.Second,
	})
	var extractor app.SectionExtractor
	if llm.Configured() {
		extractor = ai.NewBoundaryExtractor(llm)
	} else {
		logutil.GetLogger(ctx).Warn("llm is not configured, documents fall back to page sections")
	}

	a.Lifecycle = app.NewLifecycleService(sessionRepo, tracker, chunkRepo, documentRepo, sessionOutlineRepo,
		questionRepo, ledgerRepo, outlineCache, a.Metrics, app.LifecycleOptions{
			TTL:              cfg.Session.TTL(),
			HeartbeatTimeout: cfg.Session.HeartbeatTimeout(),
		})
	a.Outlines = app.NewOutlineService(chunkRepo, documentRepo, sessionOutlineRepo, a.Lifecycle, extractor,
		outlineCache, a.Metrics, app.OutlineOptions{
			Normalize: outline.NormalizeConfig{
				MaxDepth:         cfg.Outline.MaxDepth,
				MinSectionChunks: cfg.Outline.MinSectionChunks,
				MaxSections:      cfg.Outline.MaxSections,
			},
			Unify: outline.UnifyConfig{
				SimilarityThreshold: cfg.Outline.SimilarityThreshold,
				Transitive:          cfg.Outline.TransitiveGrouping,
			},
			ExtractTimeout: time.Duration(cfg.Outline.ExtractTimeoutSeconds) * time.Second,
		})
	a.Filter = app.NewContentFilter(chunkRepo, sessionOutlineRepo)
	a.Quiz = app.NewQuizService(a.Filter, questionRepo, ledgerRepo, a.Lifecycle, ai.NewQuestionGenerator(llm), a.Metrics,
		app.QuizOptions{
			CharsPerQuestion:  cfg.Quiz.CharsPerQuestion,
			MaxContentChars:   cfg.Quiz.MaxContentChars,
			GenerationTimeout: time.Duration(cfg.Quiz.GenerationTimeoutSeconds) * time.Second,
		})
	a.Ask = app.NewAskService(a.Filter, a.Lifecycle, llm)

	a.Scheduler = schedule.NewCronScheduler()
	if err := a.Scheduler.AddJob(schedule.NewSweepJob(a.Lifecycle), schedule.Every(cfg.Session.SweepInterval())); err != nil {
		return a, err
	}
	if a.MQConn != nil {
		a.IngestWorker = worker.NewIngestWorker(a.MQConn, a.Outlines, cfg.RabbitMQ.IngestQueue)
	}
	return a, nil
}

// StartBackground starts the sweep schedule and, when a broker is configured,
// the ingestion worker.
func (a *App) StartBackground(ctx context.Context) error {
	a.Scheduler.Start(ctx)
	if a.IngestWorker != nil {
		if err := a.IngestWorker.Start(ctx); err != nil {
			return fmt.Errorf("start ingest worker failed: %w", err)
		}
	}
	logutil.GetLogger(ctx).Info("background jobs started",
		zap.Duration("sweep_interval", a.Config.Session.SweepInterval()),
		zap.Bool("ingest_worker", a.IngestWorker != nil))
	return nil
}

func (a *App) Close() error {
	var errs []error
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.IngestWorker != nil {
		a.IngestWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis failed: %w", err))
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close rabbitmq failed: %w", err))
		}
	}
	if err := database.Close(a.DB); err != nil {
		errs = append(errs, fmt.Errorf("close database failed: %w", err))
	}
	return errors.Join(errs...)
}
