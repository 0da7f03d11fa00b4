package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App       App       `yaml:"app"`
	HTTP      HTTP      `yaml:"http"`
	Log       Log       `yaml:"log"`
	Storage   Storage   `yaml:"storage"`
	Ledger    Ledger    `yaml:"ledger"`
	Firestore Firestore `yaml:"firestore"`
	Postgres  Postgres  `yaml:"postgres"`
	Redis     Redis     `yaml:"redis"`
	Kafka     Kafka     `yaml:"kafka"`
	Gemini    Gemini    `yaml:"gemini"`
	Notion    Notion    `yaml:"notion"`
	Pipeline  Pipeline  `yaml:"pipeline"`
	Janitor   Janitor   `yaml:"janitor"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"monologue-muser"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type HTTP struct {
	Port string `yaml:"port" env:"PORT" env-default:"8080"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type Storage struct {
	Bucket       string        `yaml:"bucket" env:"BUCKET_NAME" env-default:"gcs_bucket_name"`
	SignedURLTTL time.Duration `yaml:"signed_url_ttl" env:"SIGNED_URL_TTL" env-default:"15m"`
}

type Ledger struct {
	// Backend is one of firestore, postgres, sqlite, memory.
	Backend          string        `yaml:"backend" env:"LEDGER_BACKEND" env-default:"firestore"`
	Collection       string        `yaml:"collection" env:"COLLECTION_NAME" env-default:"monologue_events"`
	Retention        time.Duration `yaml:"retention" env:"LEDGER_RETENTION" env-default:"240h"`
	KeyWithEventTime bool          `yaml:"key_with_event_time" env:"LEDGER_KEY_WITH_EVENT_TIME" env-default:"false"`
	SQLitePath       string        `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"ledger.db"`
}

type Firestore struct {
	ProjectID string `yaml:"project_id" env:"GOOGLE_CLOUD_PROJECT"`
	Database  string `yaml:"database" env:"FIRESTORE_DATABASE" env-default:"(default)"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"user"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"password"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-default:"monologue"`
}

// Redis is optional. An empty Addr disables the idempotency middleware.
type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"object-finalized"`
	GroupID string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"summarizer"`

	// StartOffset is "earliest" or "latest", used when the group has no committed offset.
	StartOffset string `yaml:"start_offset" env:"KAFKA_START_OFFSET" env-default:"earliest"`
	MetricsPort string `yaml:"metrics_port" env:"KAFKA_METRICS_PORT" env-default:"9091"`
}

type Gemini struct {
	APIKey string `yaml:"api_key" env:"GEMINI_API_KEY" env-default:"gemini_api_key"`
	Model  string `yaml:"model" env:"GEMINI_MODEL" env-default:"gemini-2.5-flash"`
}

type Notion struct {
	APIKey     string `yaml:"api_key" env:"NOTION_API_KEY" env-default:"your_notion_api_key"`
	DatabaseID string `yaml:"database_id" env:"NOTION_DATABASE_ID" env-default:"your_notion_database_id"`
	BaseURL    string `yaml:"base_url" env:"NOTION_BASE_URL" env-default:"https://api.notion.com"`
}

type Pipeline struct {
	TempDir string `yaml:"temp_dir" env:"TEMP_DIR" env-default:"/tmp"`
}

type Janitor struct {
	Interval time.Duration `yaml:"interval" env:"JANITOR_INTERVAL" env-default:"1h"`
}

func New() (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		// fallback to env vars if file not found
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config env override: %w", err)
	}

	return cfg, nil
}

// SlogLevel maps Log.Level onto a slog level, defaulting to info.
func (l Log) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(l.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
