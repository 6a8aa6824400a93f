package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	// Google Cloud
	ProjectID string
	Dataset   string
	Bucket    string

	// Inference
	ModelName        string
	InferenceTimeout time.Duration
	InferenceRetries int           // retry ceiling for transient failures
	InferenceBackoff time.Duration // base backoff, doubled per attempt
	MaxInflightInfer int           // admission limit for concurrent model calls

	// Classification / extraction
	ClassifyConfidenceFloor float64
	RecordConfidenceFloor   float64
	FutureDateTolerance     time.Duration // clock-skew guard for extracted dates

	// Check locator
	CheckDateWindowDays int

	// Vendor resolution
	VendorSimilarityThreshold float64

	// Ledger
	LedgerAccountID string

	// Workers
	WorkerCount    int
	QueueBufferLen int

	// Janitor
	JanitorSchedule string
	ArchiveAfter    time.Duration
}

// Load reads configuration from environment variables and .env file if present.
func Load() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("GCP_PROJECT_ID", "")
	viper.SetDefault("BQ_DATASET", "reconciler")
	viper.SetDefault("GCS_BUCKET", "")
	viper.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	viper.SetDefault("INFERENCE_TIMEOUT", "90s")
	viper.SetDefault("INFERENCE_RETRIES", 3)
	viper.SetDefault("INFERENCE_BACKOFF", "1s")
	viper.SetDefault("MAX_INFLIGHT_INFERENCE", 4)
	viper.SetDefault("CLASSIFY_CONFIDENCE_FLOOR", 0.5)
	viper.SetDefault("RECORD_CONFIDENCE_FLOOR", 0.6)
	viper.SetDefault("FUTURE_DATE_TOLERANCE", "72h")
	viper.SetDefault("CHECK_DATE_WINDOW_DAYS", 3)
	viper.SetDefault("VENDOR_SIMILARITY_THRESHOLD", 0.85)
	viper.SetDefault("LEDGER_ACCOUNT_ID", "")
	viper.SetDefault("WORKER_COUNT", 5)
	viper.SetDefault("QUEUE_BUFFER_LEN", 100)
	viper.SetDefault("JANITOR_SCHEDULE", "0 3 * * *")
	viper.SetDefault("ARCHIVE_AFTER", "2160h") // 90 days

	viper.AutomaticEnv()

	cfg := &Config{
		ProjectID:                 viper.GetString("GCP_PROJECT_ID"),
		Dataset:                   viper.GetString("BQ_DATASET"),
		Bucket:                    viper.GetString("GCS_BUCKET"),
		ModelName:                 viper.GetString("GEMINI_MODEL"),
		InferenceTimeout:          viper.GetDuration("INFERENCE_TIMEOUT"),
		InferenceRetries:          viper.GetInt("INFERENCE_RETRIES"),
		InferenceBackoff:          viper.GetDuration("INFERENCE_BACKOFF"),
		MaxInflightInfer:          viper.GetInt("MAX_INFLIGHT_INFERENCE"),
		ClassifyConfidenceFloor:   viper.GetFloat64("CLASSIFY_CONFIDENCE_FLOOR"),
		RecordConfidenceFloor:     viper.GetFloat64("RECORD_CONFIDENCE_FLOOR"),
		FutureDateTolerance:       viper.GetDuration("FUTURE_DATE_TOLERANCE"),
		CheckDateWindowDays:       viper.GetInt("CHECK_DATE_WINDOW_DAYS"),
		VendorSimilarityThreshold: viper.GetFloat64("VENDOR_SIMILARITY_THRESHOLD"),
		LedgerAccountID:           viper.GetString("LEDGER_ACCOUNT_ID"),
		WorkerCount:               viper.GetInt("WORKER_COUNT"),
		QueueBufferLen:            viper.GetInt("QUEUE_BUFFER_LEN"),
		JanitorSchedule:           viper.GetString("JANITOR_SCHEDULE"),
		ArchiveAfter:              viper.GetDuration("ARCHIVE_AFTER"),
	}

	return cfg, nil
}
