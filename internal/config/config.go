package config

import (
	"net/http"
	"runtime"
	"time"

	"github.com/spf13/viper"

	"github.com/mrlokans/patterns/internal/images"
	"github.com/mrlokans/patterns/internal/importers/extractors"
	"github.com/mrlokans/patterns/internal/importers/sources"
	"github.com/mrlokans/patterns/internal/tasks"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Media
		Import
		Images
		AI
		Tasks
		Logging
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Media struct {
		Dir string
	}
	Import struct {
		HTTPTimeout      time.Duration
		MaxDocumentBytes int64
		RenderJavaScript bool // Fetch pages through headless Chrome
		ChromePath       string
		UserAgent        string
		Workers          int // CPU-bound parsing and image decoding slots
	}
	Images struct {
		MaxBytes            int64
		MaxCount            int
		MinDimension        int
		SimilarityThreshold float64
		Timeout             time.Duration
	}
	AI struct {
		Enabled           bool
		APIKey            string
		BaseURL           string
		Model             string
		MaxTokens         int
		Temperature       float64
		Timeout           time.Duration
		MaxImageDimension int
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Logging struct {
		Level  string
		Format string // json or console
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("media_dir", DefaultMediaDir)

	// Fetching
	v.SetDefault("import_http_timeout", "10s")
	v.SetDefault("import_max_document_bytes", sources.DefaultMaxBytes)
	v.SetDefault("import_render_javascript", false)
	v.SetDefault("import_chrome_path", "")
	v.SetDefault("import_user_agent", sources.DefaultUserAgent)
	v.SetDefault("import_workers", runtime.NumCPU())

	// Image acquisition
	v.SetDefault("image_max_bytes", 10<<20)
	v.SetDefault("image_max_count", 10)
	v.SetDefault("image_min_dimension", 100)
	v.SetDefault("image_similarity_threshold", 0.95)
	v.SetDefault("image_timeout", "10s")

	// AI extraction
	v.SetDefault("ai_enabled", false)
	v.SetDefault("ai_api_key", "")
	v.SetDefault("ai_base_url", "")
	v.SetDefault("ai_model", extractors.DefaultAIModel)
	v.SetDefault("ai_max_tokens", extractors.DefaultAIMaxTokens)
	v.SetDefault("ai_temperature", extractors.DefaultAITemperature)
	v.SetDefault("ai_timeout", "60s")
	v.SetDefault("ai_max_image_dimension", extractors.DefaultAIImageDimension)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Media: Media{
			Dir: v.GetString("MEDIA_DIR"),
		},
		Import: Import{
			HTTPTimeout:      v.GetDuration("IMPORT_HTTP_TIMEOUT"),
			MaxDocumentBytes: v.GetInt64("IMPORT_MAX_DOCUMENT_BYTES"),
			RenderJavaScript: v.GetBool("IMPORT_RENDER_JAVASCRIPT"),
			ChromePath:       v.GetString("IMPORT_CHROME_PATH"),
			UserAgent:        v.GetString("IMPORT_USER_AGENT"),
			Workers:          v.GetInt("IMPORT_WORKERS"),
		},
		Images: Images{
			MaxBytes:            v.GetInt64("IMAGE_MAX_BYTES"),
			MaxCount:            v.GetInt("IMAGE_MAX_COUNT"),
			MinDimension:        v.GetInt("IMAGE_MIN_DIMENSION"),
			SimilarityThreshold: v.GetFloat64("IMAGE_SIMILARITY_THRESHOLD"),
			Timeout:             v.GetDuration("IMAGE_TIMEOUT"),
		},
		AI: AI{
			Enabled:           v.GetBool("AI_ENABLED"),
			APIKey:            v.GetString("AI_API_KEY"),
			BaseURL:           v.GetString("AI_BASE_URL"),
			Model:             v.GetString("AI_MODEL"),
			MaxTokens:         v.GetInt("AI_MAX_TOKENS"),
			Temperature:       v.GetFloat64("AI_TEMPERATURE"),
			Timeout:           v.GetDuration("AI_TIMEOUT"),
			MaxImageDimension: v.GetInt("AI_MAX_IMAGE_DIMENSION"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Logging: Logging{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}
}

// ToURLOptions converts the import section into URL source options.
func (c Import) ToURLOptions() sources.URLOptions {
	return sources.URLOptions{
		Client:    &http.Client{Timeout: c.HTTPTimeout},
		UserAgent: c.UserAgent,
		MaxBytes:  c.MaxDocumentBytes,
	}
}

// ToBrowserOptions converts the import section into headless browser options.
func (c Import) ToBrowserOptions() sources.BrowserOptions {
	return sources.BrowserOptions{
		Timeout:   c.HTTPTimeout,
		UserAgent: c.UserAgent,
		ExecPath:  c.ChromePath,
	}
}

// ToImagesConfig converts the images section into downloader limits.
func (c Images) ToImagesConfig(userAgent string) images.Config {
	return images.Config{
		MaxBytes:            c.MaxBytes,
		MaxCount:            c.MaxCount,
		MinDimension:        c.MinDimension,
		SimilarityThreshold: c.SimilarityThreshold,
		Timeout:             c.Timeout,
		UserAgent:           userAgent,
	}
}

// ToTasksConfig converts the tasks section into queue settings.
func (c Tasks) ToTasksConfig() tasks.Config {
	return tasks.Config{
		Workers:         c.Workers,
		ReleaseAfter:    c.ReleaseAfter,
		CleanupInterval: c.CleanupInterval,
	}
}

// ToAIConfig converts the AI section into extractor settings.
func (c AI) ToAIConfig() extractors.AIConfig {
	return extractors.AIConfig{
		Enabled:           c.Enabled,
		APIKey:            c.APIKey,
		BaseURL:           c.BaseURL,
		Model:             c.Model,
		MaxTokens:         c.MaxTokens,
		Temperature:       c.Temperature,
		Timeout:           c.Timeout,
		MaxImageDimension: c.MaxImageDimension,
	}
}
