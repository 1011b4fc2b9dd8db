package config

import (
	"database/sql"
	"errors"
	"fmt"
	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
	"strings"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

type Config struct {
	MinIOBucket string        `yaml:"minio_bucket"`
	App         App           `yaml:"app"`
	DB          *sql.DB       `yaml:"db"`
	Store       Store         `yaml:"store"`
	Queue       *RabbitMQ     `yaml:"rabbitmq"`
	Storage     *minio.Client `yaml:"storage"`
	Server      Server        `yaml:"server"`
	Gemini      Gemini        `yaml:"gemini"`
	Speech      Speech        `yaml:"speech"`
	Workflow    Workflow      `yaml:"workflow"`
	Minutes     Minutes       `yaml:"minutes"`
}

type App struct {
	Environment string `yaml:"environment"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
	Workers  int    `yaml:"workers"`
}

type Store struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
}

type RabbitMQ struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Pass         string `json:"pass"`
	ExchangeName string `json:"exchange_name"`
	Queue        string `json:"queue"`
	RoutingKey   string `json:"routing_key"`
	Kind         string `json:"kind"`
}

type Gemini struct {
	APIKey          string  `yaml:"api_key"`
	Model           string  `yaml:"model"`
	MaxOutputTokens int32   `yaml:"max_output_tokens"`
	Temperature     float32 `yaml:"temperature"`
}

type Speech struct {
	APIKey          string `yaml:"api_key"`
	CredentialsFile string `yaml:"credentials_file"`
	AudioURIPrefix  string `yaml:"audio_uri_prefix"`
	LanguageCode    string `yaml:"language_code"`
	MediaFormat     string `yaml:"media_format"`
	MaxSpeakers     int    `yaml:"max_speakers"`
	HandlePrefix    string `yaml:"handle_prefix"`
	OutputPrefix    string `yaml:"output_prefix"`
}

type Workflow struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	Timeout        time.Duration `yaml:"timeout"`
	PersistRetries int           `yaml:"persist_retries"`
	MaxPollErrors  int           `yaml:"max_poll_errors"`
}

type Minutes struct {
	MaxRetries   int           `yaml:"max_retries"`
	BaseDelay    time.Duration `yaml:"base_delay"`
	OutputPrefix string        `yaml:"output_prefix"`
}

func setDefaults() {
	viper.SetDefault("app.environment", "develop")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.workers", 16)
	viper.SetDefault("store.driver", StoreDriverPostgres)
	viper.SetDefault("store.sqlite_path", "minutes.db")
	viper.SetDefault("rabbitmq_port", 5672)
	viper.SetDefault("rabbitmq_kind", "direct")
	viper.SetDefault("rabbitmq.exchange", "minutes_exchange")
	viper.SetDefault("rabbitmq.queue", "minutes_queue")
	viper.SetDefault("rabbitmq.routing_key", "minutes.request")
	viper.SetDefault("gemini.model", "gemini-2.5-flash")
	viper.SetDefault("gemini.max_output_tokens", 8192)
	viper.SetDefault("gemini.temperature", 0.2)
	viper.SetDefault("speech.language_code", "en-US")
	viper.SetDefault("speech.media_format", "mp3")
	viper.SetDefault("speech.max_speakers", 10)
	viper.SetDefault("speech.handle_prefix", "minutes")
	viper.SetDefault("speech.output_prefix", "transcripts")
	viper.SetDefault("workflow.poll_interval", 30*time.Second)
	viper.SetDefault("workflow.timeout", 2*time.Hour)
	viper.SetDefault("workflow.persist_retries", 5)
	viper.SetDefault("workflow.max_poll_errors", 5)
	viper.SetDefault("minutes.max_retries", 3)
	viper.SetDefault("minutes.base_delay", 2*time.Second)
	viper.SetDefault("minutes.output_prefix", "minutes")
}

// Load reads config.yaml from path. The file is optional; every key can also
// be given as an environment variable with dots replaced by underscores
// (GEMINI_API_KEY, WORKFLOW_TIMEOUT, ...).
func Load(path string) (*Config, error) {
	setDefaults()
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	store := Store{
		Driver:     strings.ToLower(viper.GetString("store.driver")),
		SQLitePath: viper.GetString("store.sqlite_path"),
	}
	if store.Driver != StoreDriverPostgres && store.Driver != StoreDriverSQLite {
		return nil, fmt.Errorf("store.driver must be %s or %s, got %q", StoreDriverPostgres, StoreDriverSQLite, store.Driver)
	}

	var db *sql.DB
	if store.Driver == StoreDriverPostgres {
		db, err = sql.Open("postgres", viper.GetString("postgresql_host"))
		if err != nil {
			return nil, err
		}
	}

	rabbitmq := &RabbitMQ{
		Host:         viper.GetString("rabbitmq_host"),
		Port:         viper.GetInt("rabbitmq_port"),
		User:         viper.GetString("rabbitmq_user"),
		Pass:         viper.GetString("rabbitmq_pass"),
		Kind:         viper.GetString("rabbitmq_kind"),
		ExchangeName: viper.GetString("rabbitmq.exchange"),
		Queue:        viper.GetString("rabbitmq.queue"),
		RoutingKey:   viper.GetString("rabbitmq.routing_key"),
	}

	var minioClient *minio.Client
	if url := viper.GetString("minio.url"); url != "" {
		minioClient, err = minio.New(url, &minio.Options{
			Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
			Secure: viper.GetBool("minio.secure"),
		})
		if err != nil {
			return nil, err
		}
	}

	return &Config{
		MinIOBucket: viper.GetString("minio.bucket"),
		App: App{
			Environment: viper.GetString("app.environment"),
		},
		Server: Server{
			HttpPort: viper.GetString("server.port"),
			Workers:  viper.GetInt("server.workers"),
		},
		Store:   store,
		DB:      db,
		Queue:   rabbitmq,
		Storage: minioClient,
		Gemini: Gemini{
			APIKey:          viper.GetString("gemini.api_key"),
			Model:           viper.GetString("gemini.model"),
			MaxOutputTokens: viper.GetInt32("gemini.max_output_tokens"),
			Temperature:     float32(viper.GetFloat64("gemini.temperature")),
		},
		Speech: Speech{
			APIKey:          viper.GetString("speech.api_key"),
			CredentialsFile: viper.GetString("speech.credentials_file"),
			AudioURIPrefix:  viper.GetString("speech.audio_uri_prefix"),
			LanguageCode:    viper.GetString("speech.language_code"),
			MediaFormat:     viper.GetString("speech.media_format"),
			MaxSpeakers:     viper.GetInt("speech.max_speakers"),
			HandlePrefix:    viper.GetString("speech.handle_prefix"),
			OutputPrefix:    viper.GetString("speech.output_prefix"),
		},
		Workflow: Workflow{
			PollInterval:   viper.GetDuration("workflow.poll_interval"),
			Timeout:        viper.GetDuration("workflow.timeout"),
			PersistRetries: viper.GetInt("workflow.persist_retries"),
			MaxPollErrors:  viper.GetInt("workflow.max_poll_errors"),
		},
		Minutes: Minutes{
			MaxRetries:   viper.GetInt("minutes.max_retries"),
			BaseDelay:    viper.GetDuration("minutes.base_delay"),
			OutputPrefix: viper.GetString("minutes.output_prefix"),
		},
	}, nil
}
