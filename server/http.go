package server

import (
	"context"
	"errors"
	"fmt"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"worker-minutes/config"
	"worker-minutes/constant"
	jobHandler "worker-minutes/handler"
	"worker-minutes/pkg/llm"
	"worker-minutes/pkg/minutes"
	"worker-minutes/pkg/rabbitmq"
	"worker-minutes/pkg/storage"
	"worker-minutes/pkg/transcribe"
	"worker-minutes/pkg/transcript"
	"worker-minutes/repository"
	"worker-minutes/service"
)

func RunHttp(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(SetupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	repo, err := OpenRepository(cfg)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("OpenRepository")
		return err
	}
	defer repo.Close()

	artifacts := newArtifactStore(ctx, cfg)

	model, err := llm.NewGeminiClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("NewGeminiClient")
		return err
	}
	defer model.Close()

	speechClient, err := transcribe.NewGoogleSpeechClient(ctx, cfg.Speech.APIKey, cfg.Speech.CredentialsFile)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("NewGoogleSpeechClient")
		return err
	}

	minutesService := service.NewService(service.Dependencies{
		Repo:      repo,
		Artifacts: artifacts,
		Transcriber: transcribe.NewAdapter(speechClient, artifacts, transcribe.Config{
			HandlePrefix:   cfg.Speech.HandlePrefix,
			AudioURIPrefix: cfg.Speech.AudioURIPrefix,
			LanguageCode:   cfg.Speech.LanguageCode,
			MediaFormat:    cfg.Speech.MediaFormat,
			MaxSpeakers:    cfg.Speech.MaxSpeakers,
			OutputPrefix:   cfg.Speech.OutputPrefix,
		}),
		Parser: transcript.NewParser(),
		Generator: minutes.NewGenerator(model, minutes.Config{
			MaxRetries:      cfg.Minutes.MaxRetries,
			BaseDelay:       cfg.Minutes.BaseDelay,
			MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
			Temperature:     cfg.Gemini.Temperature,
		}),
	}, service.WorkflowConfig{
		PollInterval:   cfg.Workflow.PollInterval,
		Timeout:        cfg.Workflow.Timeout,
		PersistRetries: cfg.Workflow.PersistRetries,
		MaxPollErrors:  cfg.Workflow.MaxPollErrors,
		MinutesPrefix:  cfg.Minutes.OutputPrefix,
	})

	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("NewRabbitMQConn")
		return err
	}
	defer conn.Close()
	publisher := rabbitmq.NewPublisher(conn, cfg.Queue)
	defer publisher.Close()

	serviceDeps := jobHandler.ServiceDependencies{
		MinutesService: minutesService,
	}
	minutesConsumer := rabbitmq.NewConsumer(conn, cfg.Queue, cfg.Server.Workers, jobHandler.JobHandler)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(ctx))
	addHealth(r)
	jobHandler.NewJobsHandler(service.NewIntake(repo, publisher), repo).Register(r)

	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := minutesConsumer.Consume(gCtx, serviceDeps)
		if err != nil && !errors.Is(err, context.Canceled) {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Minutes consumer error")
			return err
		}
		return nil
	})
	g.Go(func() error {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Str("addr", handler.Addr).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		zerolog.Ctx(ctx).Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		return handler.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
	return err
}

// OpenRepository returns the job store selected by store.driver.
func OpenRepository(cfg *config.Config) (repository.JobRepository, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverSQLite:
		return repository.NewSQLiteStore(cfg.Store.SQLitePath)
	case config.StoreDriverPostgres:
		if cfg.DB == nil {
			return nil, errors.New("postgres store selected but no database is configured")
		}
		return repository.NewRepo(cfg.DB)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func newArtifactStore(ctx context.Context, cfg *config.Config) storage.ArtifactStore {
	if cfg.Storage == nil {
		zerolog.Ctx(ctx).Warn().Msg("minio.url not set, keeping artifacts in memory")
		return storage.NewMemoryStore()
	}
	return storage.NewMinIOStore(cfg.Storage, cfg.MinIOBucket)
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

// requestLogger puts the root logger on each request context and logs the
// request once it has been served.
func requestLogger(ctx context.Context) gin.HandlerFunc {
	logger := zerolog.Ctx(ctx)
	return func(c *gin.Context) {
		start := time.Now()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
		c.Next()
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

func SetupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
