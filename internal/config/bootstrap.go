package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/evandrarf/neurocase-be/internal/delivery/http/handler"
	"github.com/evandrarf/neurocase-be/internal/delivery/http/middleware"
	"github.com/evandrarf/neurocase-be/internal/delivery/http/repository"
	"github.com/evandrarf/neurocase-be/internal/delivery/http/route"
	"github.com/evandrarf/neurocase-be/internal/delivery/http/usecase"
	"github.com/evandrarf/neurocase-be/internal/pkg/aiedit"
	"github.com/evandrarf/neurocase-be/internal/pkg/cache"
	"github.com/evandrarf/neurocase-be/internal/pkg/event"
	"github.com/evandrarf/neurocase-be/internal/pkg/jobqueue"
	"github.com/evandrarf/neurocase-be/internal/pkg/llm"
	"github.com/evandrarf/neurocase-be/internal/pkg/phase"
	"github.com/evandrarf/neurocase-be/internal/pkg/reasoning"
	"github.com/evandrarf/neurocase-be/internal/pkg/validate"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

type BootstrapConfig struct {
	Api       *fiber.App
	Config    *viper.Viper
	DB        *gorm.DB
	Log       *logrus.Logger
	Validator *validate.Validator
}

// Runtime holds what main has to run next to the API and release on
// shutdown.
type Runtime struct {
	Worker    *jobqueue.Pool
	Publisher event.Publisher
	Redis     *redis.Client
	Reasoning usecase.ReasoningUsecase
	Sessions  repository.CaseSessionRepository
}

func (r *Runtime) Close() {
	if r.Publisher != nil {
		_ = r.Publisher.Close()
	}
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
}

func Bootstrap(ctx context.Context, config *BootstrapConfig) (*Runtime, error) {
	cfg := config.Config
	log := config.Log

	mid := middleware.NewMiddleware(&middleware.MiddlewareConfig{
		Log:    log,
		Config: cfg,
	})

	store, redisClient, err := NewCache(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	generator, err := NewGenerator(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	stages, err := NewStageTable(cfg)
	if err != nil {
		return nil, err
	}

	var critical phase.CriticalTable
	if err := cfg.UnmarshalKey("case.critical_elements", &critical); err != nil {
		return nil, fmt.Errorf("failed to read case.critical_elements: %w", err)
	}

	publisher, err := event.NewPublisher(cfg.GetString("rabbitmq.uri"), log)
	if err != nil {
		return nil, err
	}

	queue := jobqueue.NewGormQueue(config.DB, log)

	caseSessionRepo := repository.NewCaseSessionRepository(config.DB)
	mcqRepo := repository.NewMCQRepository(config.DB)
	reasoningRepo := repository.NewReasoningRepository(config.DB)
	historyRepo := repository.NewUserCaseHistoryRepository(config.DB)

	caseUsecase := usecase.NewCaseUsecase(usecase.CaseConfig{
		DB:            config.DB,
		Generator:     generator,
		Sessions:      caseSessionRepo,
		MCQs:          mcqRepo,
		History:       historyRepo,
		Cache:         store,
		Events:        publisher,
		Stages:        stages,
		Critical:      critical,
		Log:           log,
		HistoryWindow: cfg.GetInt("case.history_window"),
		MaxTokens:     cfg.GetInt("case.max_tokens"),
		Timeout:       cfg.GetDuration("case.timeout"),
		Retention:     cfg.GetDuration("case.retention"),
		LockTTL:       cfg.GetDuration("case.lock_ttl"),
		LockWait:      cfg.GetDuration("case.lock_wait"),
	})

	reasoningUsecase := usecase.NewReasoningUsecase(usecase.ReasoningConfig{
		DB:       config.DB,
		Sessions: reasoningRepo,
		MCQs:     mcqRepo,
		Analyzer: reasoning.NewAnalyzer(generator, cfg.GetDuration("reasoning.timeout"), log),
		Queue:    queue,
		Events:   publisher,
		Log:      log,
		Inline:   cfg.GetBool("reasoning.inline"),
	})

	aiEditUsecase := usecase.NewAIEditUsecase(usecase.AIEditConfig{
		DB:      config.DB,
		MCQs:    mcqRepo,
		Editor:  aiedit.NewEditor(generator, cfg.GetInt("aiedit.max_attempts"), log),
		Cache:   store,
		Events:  publisher,
		Log:     log,
		LockTTL: cfg.GetDuration("aiedit.lock_ttl"),
		Timeout: cfg.GetDuration("aiedit.timeout"),
	})

	registry := jobqueue.NewRegistry()
	registry.Register(usecase.ReasoningJobType, reasoningUsecase.RunJob)

	worker := jobqueue.NewPool(jobqueue.PoolConfig{
		Queue:        queue,
		Registry:     registry,
		Log:          log,
		Concurrency:  cfg.GetInt("worker.concurrency"),
		PollInterval: cfg.GetDuration("worker.poll_interval"),
		MaxAttempts:  cfg.GetInt("worker.max_attempts"),
		StaleAfter:   cfg.GetDuration("worker.stale_after"),
	})

	route.Setup(&route.RouteConfig{
		Api:              config.Api,
		Middleware:       mid,
		CaseHandler:      handler.NewCaseHandler(config.Validator, log, caseUsecase),
		ReasoningHandler: handler.NewReasoningHandler(config.Validator, log, reasoningUsecase),
		AIEditHandler:    handler.NewAIEditHandler(config.Validator, log, aiEditUsecase),
		JobHandler:       handler.NewJobHandler(log, queue),
	})

	return &Runtime{
		Worker:    worker,
		Publisher: publisher,
		Redis:     redisClient,
		Reasoning: reasoningUsecase,
		Sessions:  caseSessionRepo,
	}, nil
}

// NewCache connects to redis, or falls back to an in-process store when
// redis.addr is empty.
func NewCache(ctx context.Context, cfg *viper.Viper, log *logrus.Logger) (cache.Store, *redis.Client, error) {
	addr := cfg.GetString("redis.addr")
	if addr == "" {
		log.Warn("redis.addr is empty, using in-memory cache")
		return cache.NewMemoryStore(), nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.GetString("redis.password"),
		DB:          cfg.GetInt("redis.db"),
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	log.WithField("addr", addr).Info("connected to redis")
	return cache.NewRedisStore(client), client, nil
}

func NewGenerator(ctx context.Context, cfg *viper.Viper, log *logrus.Logger) (*llm.Client, error) {
	apiKey := cfg.GetString("llm.api_key")

	var provider llm.Provider
	switch name := cfg.GetString("llm.provider"); name {
	case "", "openai":
		provider = llm.NewOpenAIProvider(apiKey, cfg.GetString("llm.base_url"))
	case "genai", "gemini":
		p, err := llm.NewGenAIProvider(ctx, apiKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create genai provider: %w", err)
		}
		provider = p
	default:
		return nil, fmt.Errorf("unknown llm.provider %q", name)
	}

	if apiKey == "" {
		log.Warn("llm.api_key is empty, generation calls will fail")
	}

	return llm.NewClient(llm.ClientConfig{
		Provider:      provider,
		Model:         cfg.GetString("llm.model"),
		FallbackModel: cfg.GetString("llm.fallback_model"),
		Timeout:       cfg.GetDuration("llm.timeout"),
		Log:           log,
	}), nil
}

// NewStageTable loads case.stages_file when set, otherwise the embedded table.
func NewStageTable(cfg *viper.Viper) (*phase.Table, error) {
	path := cfg.GetString("case.stages_file")
	if path == "" {
		return phase.DefaultTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stage table: %w", err)
	}
	return phase.ParseTable(data)
}
