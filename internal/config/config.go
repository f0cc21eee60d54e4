// Package config loads go-wasteid settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultPort           = "3000"
	DefaultModels         = "gemini:gemini-2.5-flash-image,gemini:gemini-2.5-flash,gemini:gemini-2.0-flash"
	DefaultOpenAIBaseURL  = "https://api.openai.com/v1"
	DefaultOllamaHost     = "http://localhost:11434"
	DefaultVertexLocation = "us-central1"
	DefaultCameraPreset   = "default"
	DefaultMaxUploadBytes = 10 << 20
	DefaultRequestTimeout = 60 * time.Second
	DefaultLogLevel       = "info"
)

// Provider names accepted in model specs.
const (
	ProviderGemini = "gemini"
	ProviderVertex = "vertex"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Providers lists the known provider names.
func Providers() []string {
	return []string{ProviderGemini, ProviderVertex, ProviderOpenAI, ProviderOllama}
}

// ModelSpec names one fallback candidate as provider plus model id.
type ModelSpec struct {
	Provider string
	Model    string
}

// String returns the "provider:model" form.
func (m ModelSpec) String() string {
	return m.Provider + ":" + m.Model
}

// Config holds all runtime settings.
type Config struct {
	Port   string
	Models []ModelSpec

	GeminiAPIKey string

	OpenAIAPIKey  string
	OpenAIBaseURL string

	OllamaHost string

	VertexProject  string
	VertexLocation string

	CameraDevice int
	CameraPreset string

	MaxUploadBytes int64
	RequestTimeout time.Duration

	LogLevel string
}

// ErrNoModels is returned by Validate when no model candidates are configured.
var ErrNoModels = errors.New("config: no model candidates configured")

// Load reads an optional .env file (or the given files) and then the
// environment. Malformed model specs and numbers are reported as errors.
func Load(files ...string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load(files...)

	models, err := ParseModels(getEnv("WASTEID_MODELS", DefaultModels))
	if err != nil {
		return nil, err
	}

	device, err := getEnvInt("WASTEID_CAMERA_DEVICE", 0)
	if err != nil {
		return nil, err
	}

	maxUpload, err := getEnvInt("WASTEID_MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)
	if err != nil {
		return nil, err
	}

	timeout, err := getEnvDuration("WASTEID_REQUEST_TIMEOUT", DefaultRequestTimeout)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:           firstEnv(DefaultPort, "WASTEID_PORT", "PORT"),
		Models:         models,
		GeminiAPIKey:   firstEnv("", "GEMINI_API_KEY", "VITE_GEMINI_API_KEY"),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", DefaultOpenAIBaseURL),
		OllamaHost:     getEnv("OLLAMA_HOST", DefaultOllamaHost),
		VertexProject:  getEnv("VERTEX_PROJECT", ""),
		VertexLocation: getEnv("VERTEX_LOCATION", DefaultVertexLocation),
		CameraDevice:   device,
		CameraPreset:   getEnv("WASTEID_CAMERA_PRESET", DefaultCameraPreset),
		MaxUploadBytes: int64(maxUpload),
		RequestTimeout: timeout,
		LogLevel:       getEnv("LOG_LEVEL", DefaultLogLevel),
	}
	return cfg, nil
}

// Validate checks the settings needed to serve requests.
func (c *Config) Validate() error {
	if len(c.Models) == 0 {
		return ErrNoModels
	}
	for _, m := range c.Models {
		if !knownProvider(m.Provider) {
			return fmt.Errorf("config: unknown provider %q in %q", m.Provider, m.String())
		}
		if m.Model == "" {
			return fmt.Errorf("config: empty model in %q", m.String())
		}
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("config: WASTEID_MAX_UPLOAD_BYTES must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: WASTEID_REQUEST_TIMEOUT must be positive")
	}
	if c.CameraDevice < 0 {
		return fmt.Errorf("config: WASTEID_CAMERA_DEVICE must be >= 0")
	}
	return nil
}

// ParseModels parses a comma-separated list of "provider:model" specs in
// priority order. A bare model id defaults to the gemini provider.
func ParseModels(s string) ([]ModelSpec, error) {
	var specs []ModelSpec
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		spec, err := ParseModel(part)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// ParseModel parses one "provider:model" spec. Ollama tags such as
// "ollama:llava:13b" keep everything after the first colon as the model.
func ParseModel(s string) (ModelSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ModelSpec{}, fmt.Errorf("config: empty model spec")
	}

	provider, model, ok := strings.Cut(s, ":")
	if !ok {
		return ModelSpec{Provider: ProviderGemini, Model: s}, nil
	}

	provider = strings.ToLower(strings.TrimSpace(provider))
	model = strings.TrimSpace(model)
	if !knownProvider(provider) {
		return ModelSpec{}, fmt.Errorf("config: unknown provider %q in %q", provider, s)
	}
	if model == "" {
		return ModelSpec{}, fmt.Errorf("config: empty model in %q", s)
	}
	return ModelSpec{Provider: provider, Model: model}, nil
}

func knownProvider(name string) bool {
	for _, p := range Providers() {
		if p == name {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// firstEnv returns the first non-empty variable among keys.
func firstEnv(defaultValue string, keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
