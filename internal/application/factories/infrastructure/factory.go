package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yasu-888/monologue-muser/internal/config"
	fsLedger "github.com/yasu-888/monologue-muser/internal/infrastructure/firestore"
	"github.com/yasu-888/monologue-muser/internal/infrastructure/gcs"
	"github.com/yasu-888/monologue-muser/internal/infrastructure/gemini"
	"github.com/yasu-888/monologue-muser/internal/infrastructure/memory"
	"github.com/yasu-888/monologue-muser/internal/infrastructure/notion"
	"github.com/yasu-888/monologue-muser/internal/infrastructure/postgres"
	"github.com/yasu-888/monologue-muser/internal/infrastructure/redis"
	"github.com/yasu-888/monologue-muser/internal/infrastructure/sqlite"
	"github.com/yasu-888/monologue-muser/internal/ledger"
	"github.com/yasu-888/monologue-muser/internal/usecase"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	pgxpool "github.com/jackc/pgx/v5/pgxpool"
	go_redis "github.com/redis/go-redis/v9"
	"google.golang.org/genai"
)

// Factory builds each external client at most once and closes them all in
// Close. It is not safe for concurrent use; build everything in main.
type Factory struct {
	cfg    *config.Config
	logger *slog.Logger

	pgPool    *pgxpool.Pool
	redisCli  *go_redis.Client
	fsClient  *firestore.Client
	gcsClient *storage.Client
	genai     *genai.Client
	sqliteDB  *sqlite.LedgerRepository
	ledger    ledger.Store
}

func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

func (f *Factory) Postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if f.pgPool != nil {
		return f.pgPool, nil
	}

	var pool *pgxpool.Pool
	var err error

	// Retry connection up to 5 times
	for i := 0; i < 5; i++ {
		pool, err = postgres.NewClient(ctx, postgres.Config{
			Host:     f.cfg.Postgres.Host,
			Port:     f.cfg.Postgres.Port,
			User:     f.cfg.Postgres.User,
			Password: f.cfg.Postgres.Password,
			DBName:   f.cfg.Postgres.DBName,
		})
		if err == nil {
			break
		}
		f.logger.Warn("failed to connect to postgres, retrying", "attempt", i+1, "max", 5, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to init postgres after retries: %w", err)
	}

	f.pgPool = pool
	return pool, nil
}

func (f *Factory) Redis(ctx context.Context) (*go_redis.Client, error) {
	if f.redisCli != nil {
		return f.redisCli, nil
	}

	client, err := redis.NewClient(ctx, redis.Config{
		Addr:     f.cfg.Redis.Addr,
		Password: f.cfg.Redis.Password,
		DB:       f.cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init redis: %w", err)
	}

	f.redisCli = client
	return client, nil
}

func (f *Factory) Firestore(ctx context.Context) (*firestore.Client, error) {
	if f.fsClient != nil {
		return f.fsClient, nil
	}

	projectID := f.cfg.Firestore.ProjectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, f.cfg.Firestore.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to init firestore: %w", err)
	}

	f.fsClient = client
	return client, nil
}

func (f *Factory) Storage(ctx context.Context) (*gcs.Storage, error) {
	if f.gcsClient == nil {
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to init storage: %w", err)
		}
		f.gcsClient = client
	}
	return gcs.New(f.gcsClient), nil
}

func (f *Factory) Gemini(ctx context.Context) (*gemini.Service, error) {
	if f.genai == nil {
		client, err := gemini.NewClient(ctx, f.cfg.Gemini.APIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to init gemini: %w", err)
		}
		f.genai = client
	}
	return gemini.New(f.genai, f.cfg.Gemini.Model, f.logger), nil
}

func (f *Factory) Notion() *notion.Client {
	return notion.NewClient(notion.Config{
		APIKey:     f.cfg.Notion.APIKey,
		DatabaseID: f.cfg.Notion.DatabaseID,
		BaseURL:    f.cfg.Notion.BaseURL,
	})
}

// Ledger returns the dedup ledger store selected by LEDGER_BACKEND.
func (f *Factory) Ledger(ctx context.Context) (ledger.Store, error) {
	if f.ledger != nil {
		return f.ledger, nil
	}

	collection := f.cfg.Ledger.Collection

	switch f.cfg.Ledger.Backend {
	case "firestore", "":
		client, err := f.Firestore(ctx)
		if err != nil {
			return nil, err
		}
		f.ledger = fsLedger.NewLedgerRepository(client, collection)
	case "postgres":
		pool, err := f.Postgres(ctx)
		if err != nil {
			return nil, err
		}
		repo := postgres.NewLedgerRepository(pool, postgres.NewTxManager(pool), collection)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		f.ledger = repo
	case "sqlite":
		repo, err := sqlite.Open(f.cfg.Ledger.SQLitePath, collection)
		if err != nil {
			return nil, fmt.Errorf("failed to init sqlite ledger: %w", err)
		}
		f.sqliteDB = repo
		f.ledger = repo
	case "memory":
		f.ledger = memory.NewLedgerRepository()
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", f.cfg.Ledger.Backend)
	}

	f.logger.Info("ledger store ready", "backend", f.cfg.Ledger.Backend, "collection", collection)
	return f.ledger, nil
}

// LedgerService wraps the configured store with admission and completion.
func (f *Factory) LedgerService(ctx context.Context) (*ledger.Service, error) {
	store, err := f.Ledger(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.NewService(store, f.logger, ledger.WithRetention(f.cfg.Ledger.Retention)), nil
}

// SummarizeRecording wires the pipeline shared by the push handler and the
// Kafka consumer.
func (f *Factory) SummarizeRecording(ctx context.Context) (*usecase.SummarizeRecording, error) {
	ledgerSvc, err := f.LedgerService(ctx)
	if err != nil {
		return nil, err
	}
	objects, err := f.Storage(ctx)
	if err != nil {
		return nil, err
	}
	summarizer, err := f.Gemini(ctx)
	if err != nil {
		return nil, err
	}

	return usecase.NewSummarizeRecording(ledgerSvc, objects, summarizer, f.Notion(),
		usecase.SummarizeRecordingConfig{
			TempDir:          f.cfg.Pipeline.TempDir,
			KeyWithEventTime: f.cfg.Ledger.KeyWithEventTime,
		}, f.logger), nil
}

func (f *Factory) Close() {
	if f.pgPool != nil {
		f.pgPool.Close()
	}
	if f.redisCli != nil {
		f.redisCli.Close()
	}
	if f.fsClient != nil {
		f.fsClient.Close()
	}
	if f.gcsClient != nil {
		f.gcsClient.Close()
	}
	if f.sqliteDB != nil {
		f.sqliteDB.Close()
	}
}
