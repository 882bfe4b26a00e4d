package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"bond-log-enhancer/internal/domain"
)

// AppConfig implements the domain.Config interface
type AppConfig struct {
	ServerPort  string
	UploadPath  string
	OutputPath  string
	MaxFileSize int64
	LogLevel    string

	SupabaseURL    string
	SupabaseKey    string
	EnhancedBucket string

	Preset         string
	DPI            float64
	Recognizers    []string
	Vocabulary     domain.TargetVocabulary
	VocabularyFile string
	PagePolicy     string
	PageTimeout    time.Duration
	Workers        int
	OverlayStyle   string
	OverlayOpacity float64
	DebugDir       string
	PresetsFile    string

	CloudOCRURL   string
	CloudOCRToken string
	CloudOCRRPS   float64
	SidecarDir    string
	TesseractLang string

	VertexProject  string
	VertexLocation string
	VertexModel    string

	vocabularyErr error
}

// NewConfig creates a new configuration instance with default values
func NewConfig() domain.Config {
	cfg := &AppConfig{
		// Cloud Run (and many PaaS) provide the listening port via PORT.
		// Keep SERVER_PORT for local/dev compatibility.
		ServerPort:  getEnvOrDefault("PORT", getEnvOrDefault("SERVER_PORT", "8080")),
		UploadPath:  getEnvOrDefault("UPLOAD_PATH", "./uploads"),
		OutputPath:  getEnvOrDefault("OUTPUT_PATH", "./enhanced"),
		MaxFileSize: getEnvInt64OrDefault("MAX_FILE_SIZE", 50*1024*1024), // 50MB default
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),

		SupabaseURL:    getEnvOrDefault("SUPABASE_URL", ""),
		SupabaseKey:    getEnvOrDefault("SUPABASE_ANON_KEY", ""),
		EnhancedBucket: getEnvOrDefault("ENHANCED_BUCKET", "enhanced-documents"),

		Preset:         getEnvOrDefault("ENHANCE_PRESET", "default"),
		DPI:            getEnvFloatOrDefault("ENHANCE_DPI", 0),
		Recognizers:    getEnvListOrDefault("RECOGNIZERS", []string{"tesseract", "vocabulary"}),
		VocabularyFile: getEnvOrDefault("TARGET_VOCABULARY_FILE", ""),
		PagePolicy:     getEnvOrDefault("PAGE_POLICY", "source"),
		PageTimeout:    time.Duration(getEnvInt64OrDefault("PAGE_TIMEOUT_SEC", 90)) * time.Second,
		Workers:        int(getEnvInt64OrDefault("WORKERS", 1)),
		OverlayStyle:   getEnvOrDefault("OVERLAY_STYLE", "invisible"),
		OverlayOpacity: getEnvFloatOrDefault("OVERLAY_OPACITY", 0),
		DebugDir:       getEnvOrDefault("DEBUG_DIR", ""),
		PresetsFile:    getEnvOrDefault("PRESETS_FILE", ""),

		CloudOCRURL:   getEnvOrDefault("CLOUD_OCR_URL", ""),
		CloudOCRToken: getEnvOrDefault("CLOUD_OCR_TOKEN", ""),
		CloudOCRRPS:   getEnvFloatOrDefault("CLOUD_OCR_RPS", 1),
		SidecarDir:    getEnvOrDefault("SIDECAR_DIR", ""),
		TesseractLang: getEnvOrDefault("TESSERACT_LANG", "eng"),

		VertexProject:  getEnvOrDefault("GOOGLE_CLOUD_PROJECT", ""),
		VertexLocation: getEnvOrDefault("VERTEX_LOCATION", "us-central1"),
		VertexModel:    getEnvOrDefault("VERTEX_MODEL", "gemini-2.0-flash-001"),
	}
	cfg.Vocabulary, cfg.vocabularyErr = loadVocabulary(os.Getenv("TARGET_VOCABULARY"), cfg.VocabularyFile)
	return cfg
}

// Validate returns the error from loading the vocabulary file, if any.
func (c *AppConfig) Validate() error {
	return c.vocabularyErr
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	return c.ServerPort
}

// GetUploadPath returns the upload directory path
func (c *AppConfig) GetUploadPath() string {
	return c.UploadPath
}

// GetOutputPath returns the directory enhanced documents are written to
func (c *AppConfig) GetOutputPath() string {
	return c.OutputPath
}

// GetMaxFileSize returns the maximum allowed file size
func (c *AppConfig) GetMaxFileSize() int64 {
	return c.MaxFileSize
}

// GetLogLevel returns the logging level
func (c *AppConfig) GetLogLevel() string {
	return c.LogLevel
}

// GetSupabaseURL returns the Supabase URL
func (c *AppConfig) GetSupabaseURL() string {
	return c.SupabaseURL
}

// GetSupabaseKey returns the Supabase anon key
func (c *AppConfig) GetSupabaseKey() string {
	return c.SupabaseKey
}

// GetEnhancedBucket returns the storage bucket for output documents
func (c *AppConfig) GetEnhancedBucket() string {
	return c.EnhancedBucket
}

func (c *AppConfig) GetPreset() string {
	return c.Preset
}

// GetDPI returns the rasterization DPI override; zero means use the preset's DPI
func (c *AppConfig) GetDPI() float64 {
	return c.DPI
}

func (c *AppConfig) GetRecognizers() []string {
	return c.Recognizers
}

func (c *AppConfig) GetTargetVocabulary() domain.TargetVocabulary {
	return c.Vocabulary
}

func (c *AppConfig) GetPagePolicy() string {
	return c.PagePolicy
}

func (c *AppConfig) GetPageTimeout() time.Duration {
	return c.PageTimeout
}

func (c *AppConfig) GetWorkers() int {
	if c.Workers < 1 {
		return 1
	}
	return c.Workers
}

func (c *AppConfig) GetOverlayStyle() string {
	return c.OverlayStyle
}

func (c *AppConfig) GetOverlayOpacity() float64 {
	return c.OverlayOpacity
}

func (c *AppConfig) GetDebugDir() string {
	return c.DebugDir
}

func (c *AppConfig) GetPresetsFile() string {
	return c.PresetsFile
}

func (c *AppConfig) GetCloudOCRURL() string {
	return c.CloudOCRURL
}

func (c *AppConfig) GetCloudOCRToken() string {
	return c.CloudOCRToken
}

func (c *AppConfig) GetCloudOCRRPS() float64 {
	return c.CloudOCRRPS
}

func (c *AppConfig) GetSidecarDir() string {
	return c.SidecarDir
}

func (c *AppConfig) GetTesseractLang() string {
	return c.TesseractLang
}

// GetVertexProject returns the Google Cloud project used by the gemini recognizer
func (c *AppConfig) GetVertexProject() string {
	return c.VertexProject
}

func (c *AppConfig) GetVertexLocation() string {
	return c.VertexLocation
}

func (c *AppConfig) GetVertexModel() string {
	return c.VertexModel
}

// Helper functions for environment variable handling
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// loadVocabulary merges the semicolon separated inline list with the terms of
// the vocabulary file. An inline value starting with '@' names a file as well.
// Nothing configured is an empty vocabulary.
func loadVocabulary(inline, file string) (domain.TargetVocabulary, error) {
	var terms, paths []string
	if strings.HasPrefix(inline, "@") {
		paths = append(paths, strings.TrimPrefix(inline, "@"))
	} else {
		terms = domain.ParseVocabulary(inline).Entries()
	}
	if file != "" {
		paths = append(paths, file)
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return domain.TargetVocabulary{}, fmt.Errorf("failed to read vocabulary file %s: %w", path, err)
		}
		terms = append(terms, domain.ParseVocabulary(string(data)).Entries()...)
	}
	return domain.NewTargetVocabulary(terms...), nil
}
