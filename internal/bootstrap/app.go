package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"pdfchat/internal/ai"
	appsvc "pdfchat/internal/app"
	"pdfchat/internal/cache"
	"pdfchat/internal/chunker"
	"pdfchat/internal/config"
	"pdfchat/internal/embedding"
	"pdfchat/internal/embedding/onnx"
	"pdfchat/internal/model"
	"pdfchat/internal/pkg/logger"
	"pdfchat/internal/pkg/pdfextract"
	mysqlClient "pdfchat/internal/platform/mysql"
	rabbitmqClient "pdfchat/internal/platform/rabbitmq"
	redisClient "pdfchat/internal/platform/redis"
	"pdfchat/internal/repository"
	"pdfchat/internal/retriever"
	"pdfchat/internal/vectorindex"
	"pdfchat/internal/worker"
)

type App struct {
	Config *config.Config
	Logger *zap.Logger
	RAG    *appsvc.RAGService

	// nil when the dependency is disabled
	MySQL          *gorm.DB
	Redis          *redis.Client
	MQConn         *amqp.Connection
	QARecordWorker *worker.QARecordWorker
	Builds         *repository.IndexBuildRepository
	QARecords      *repository.QARecordRepository

	closers   []func() error
	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig wires the pipeline and whichever optional dependencies cfg
// enables. On error everything opened so far is closed.
func NewWithConfig(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("init logger failed: %w", err)
	}

	a := &App{Config: cfg, Logger: log, StartedAt: time.Now()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	deps := appsvc.Deps{
		Extractor: pdfextract.New(log),
		Logger:    log,
	}

	deps.Chunker, err = chunker.New(chunker.Config{
		ChunkSize:     cfg.Chunker.ChunkSize,
		ChunkOverlap:  cfg.Chunker.ChunkOverlap,
		TruncationCap: cfg.Chunker.TruncationCap,
	})
	if err != nil {
		return nil, err
	}

	deps.Embedder, err = a.newEmbedder()
	if err != nil {
		return nil, err
	}

	store, err := a.newIndexStore(ctx)
	if err != nil {
		return nil, err
	}
	index, err := vectorindex.New(store, vectorindex.Options{
		Name:   cfg.Index.Name,
		Metric: vectorindex.Metric(cfg.Index.Metric),
	}, log)
	if err != nil {
		return nil, err
	}
	deps.Index = index
	deps.Retriever = retriever.New(index, deps.Embedder, retriever.Config{
		TopK:     cfg.Retrieval.TopK,
		MinScore: cfg.Retrieval.MinScore,
	}, log)

	llm := ai.NewOpenAICompatibleClient(ai.ClientConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	deps.Generator = ai.NewGenerator(llm, ai.ChatConfig{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
	})

	if err := a.connectOptional(ctx, &deps); err != nil {
		return nil, err
	}

	a.RAG, err = appsvc.NewRAGService(ctx, deps)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) newEmbedder() (embedding.Embedder, error) {
	cfg := a.Config.Embedding
	var inner embedding.Embedder
	switch cfg.Provider {
	case "onnx":
		e := onnx.New(onnx.Config{
			ModelName:     cfg.ONNX.ModelName,
			ModelPath:     cfg.ONNX.ModelPath,
			VocabPath:     cfg.ONNX.VocabPath,
			SharedLibPath: cfg.ONNX.SharedLibPath,
			MaxSeqLen:     cfg.ONNX.MaxSeqLen,
		})
		a.closers = append(a.closers, e.Close)
		inner = e
	case "openai":
		baseURL, apiKey := cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey
		if baseURL == "" {
			baseURL = a.Config.LLM.BaseURL
		}
		if apiKey == "" {
			apiKey = a.Config.LLM.APIKey
		}
		client := ai.NewOpenAICompatibleClient(ai.ClientConfig{
			BaseURL: baseURL,
			APIKey:  apiKey,
			Timeout: time.Duration(a.Config.LLM.TimeoutSeconds) * time.Second,
		})
		inner = ai.NewEmbedder(client, cfg.OpenAI.Model)
	case "hashing":
		inner = embedding.NewHashing(cfg.Hashing.Dimension)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	a.Logger.Info("embedding provider selected", zap.String("model", inner.Model()))
	return embedding.NewBatched(inner, cfg.BatchSize, cfg.Parallelism), nil
}

func (a *App) newIndexStore(ctx context.Context) (vectorindex.Store, error) {
	cfg := a.Config.Index
	switch cfg.Store {
	case "file":
		return vectorindex.NewFileStore(cfg.Dir), nil
	case "sqlite":
		path := cfg.SQLite.Path
		if path == "" {
			path = filepath.Join(cfg.Dir, "pdfchat.db")
		}
		s, err := vectorindex.NewSQLiteStore(ctx, path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case "s3":
		return vectorindex.NewS3Store(ctx, vectorindex.S3Config{
			Bucket:       cfg.S3.Bucket,
			Prefix:       cfg.S3.Prefix,
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown index store %q", cfg.Store)
	}
}

// connectOptional wires the build ledger and question journal (MySQL), the
// answer cache (Redis) and the journal queue (RabbitMQ).
func (a *App) connectOptional(ctx context.Context, deps *appsvc.Deps) error {
	cfg := a.Config

	if cfg.MySQL.Enabled {
		db, err := mysqlClient.New(ctx, cfg.MySQLDSN())
		if err != nil {
			return err
		}
		a.MySQL = db
		a.Builds = repository.NewIndexBuildRepository(db)
		a.QARecords = repository.NewQARecordRepository(db)
		deps.Ledger = a.Builds
	}

	if cfg.Redis.Enabled {
		client, err := redisClient.New(ctx, redisClient.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		a.Redis = client
		deps.Cache = cache.NewAnswerCache(client, time.Duration(cfg.Redis.AnswerTTLSeconds)*time.Second)
	}

	if cfg.RabbitMQ.Enabled {
		conn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.QARecordQueue)
		if err != nil {
			return err
		}
		a.MQConn = conn
		deps.Recorder = rabbitmqClient.NewQARecordPublisher(conn, cfg.RabbitMQ.QARecordQueue)

		if a.QARecords != nil {
			w := worker.NewQARecordWorker(conn, a.QARecords, cfg.RabbitMQ.QARecordQueue, a.Logger)
			if err := w.Start(ctx); err != nil {
				return fmt.Errorf("start qa record worker failed: %w", err)
			}
			a.QARecordWorker = w
		}
	} else if a.QARecords != nil {
		deps.Recorder = directRecorder{repo: a.QARecords}
	}
	return nil
}

// directRecorder writes journal entries synchronously when no queue is
// configured.
type directRecorder struct {
	repo *repository.QARecordRepository
}

func (r directRecorder) Publish(_ context.Context, record model.QARecord) error {
	return r.repo.Create(&record)
}

func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.QARecordWorker != nil {
		a.QARecordWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}
