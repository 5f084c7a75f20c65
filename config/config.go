// Package config loads the relay configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	BackendDrive = "drive"
	BackendGCS   = "gcs"
	BackendS3    = "s3"
	BackendTus   = "tus"
)

type Config struct {
	BotToken string `envconfig:"BOT_TOKEN" validate:"required"`

	StorageBackend      string `envconfig:"STORAGE_BACKEND" default:"drive" validate:"oneof=drive gcs s3 tus"`
	DestinationFolderID string `envconfig:"DESTINATION_FOLDER_ID"`

	GoogleCredentialsFile string `envconfig:"GOOGLE_CREDENTIALS_FILE" default:"credentials.json" validate:"required_if=StorageBackend drive"`
	GoogleTokenFile       string `envconfig:"GOOGLE_TOKEN_FILE" default:"token.json"`

	GCSBucket string `envconfig:"GCS_BUCKET" validate:"required_if=StorageBackend gcs"`

	S3Bucket   string `envconfig:"S3_BUCKET" validate:"required_if=StorageBackend s3"`
	S3Region   string `envconfig:"S3_REGION"`
	S3Endpoint string `envconfig:"S3_ENDPOINT" validate:"omitempty,url"`

	TusEndpoint string `envconfig:"TUS_ENDPOINT" validate:"required_if=StorageBackend tus,omitempty,url"`

	ScratchDir     string        `envconfig:"SCRATCH_DIR"`
	ChunkSize      int64         `envconfig:"CHUNK_SIZE" default:"5242880" validate:"gt=0"`
	NotifyInterval time.Duration `envconfig:"NOTIFY_INTERVAL" default:"30s" validate:"gte=0"`
	NotifyStep     int           `envconfig:"NOTIFY_STEP" default:"10" validate:"gt=0,lte=100"`

	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPAddr     string `envconfig:"HTTP_ADDR" default:":8080"`
	OTLPEndpoint string `envconfig:"OTLP_ENDPOINT"`

	JournalDir  string `envconfig:"JOURNAL_DIR"`
	TusServeDir string `envconfig:"TUS_SERVE_DIR"`
	TusMaxSize  int64  `envconfig:"TUS_MAX_SIZE" default:"0" validate:"gte=0"`
}

// Load reads envFile (".env" when empty) into the environment without
// overriding variables that are already set, then processes and validates the
// configuration. A missing env file is not an error. Fields named in skip are
// left out of validation, for commands that do not need them.
func Load(envFile string, skip ...string) (Config, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	validate := validator.New()
	var err error
	if len(skip) > 0 {
		err = validate.StructExcept(cfg, skip...)
	} else {
		err = validate.Struct(cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
