// Package config loads the service configuration from defaults, an optional
// YAML file and environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvPort           = "PORT"
	EnvModelPath      = "MODEL_PATH"
	EnvLabelsPath     = "LABELS_PATH"
	EnvRuntimeLibrary = "ONNXRUNTIME_LIB"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogType        = "LOG_TYPE"
	EnvLogFile        = "LOG_FILE"
)

type Config struct {
	Server     ServerSettings     `yaml:"server"`
	Model      ModelSettings      `yaml:"model"`
	Preprocess PreprocessSettings `yaml:"preprocess"`
	Prediction PredictionSettings `yaml:"prediction"`
	Logger     LoggerSettings     `yaml:"logger"`
}

type ServerSettings struct {
	Port              string        `yaml:"port" validate:"required,numeric"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" validate:"gte=0"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes" validate:"gt=0"`
	CORSOrigins       []string      `yaml:"cors_origins" validate:"required,min=1"`
}

type ModelSettings struct {
	Path           string `yaml:"path" validate:"required"`
	LabelsPath     string `yaml:"labels_path" validate:"required"`
	RuntimeLibrary string `yaml:"runtime_library"`
	// InputName and OutputName are discovered from the model when empty.
	InputName        string        `yaml:"input_name"`
	OutputName       string        `yaml:"output_name"`
	IntraOpThreads   int           `yaml:"intra_op_threads" validate:"gte=0"`
	InferenceTimeout time.Duration `yaml:"inference_timeout" validate:"gte=0"`
}

type PreprocessSettings struct {
	ImageSize int    `yaml:"image_size" validate:"gt=0,lte=4096"`
	Resample  string `yaml:"resample" validate:"required,oneof=nearest bilinear bicubic mitchell lanczos2 lanczos3"`
	MaxPixels int    `yaml:"max_pixels" validate:"gt=0"`
}

type PredictionSettings struct {
	FallbackLabel string  `yaml:"fallback_label" validate:"required"`
	MinConfidence float64 `yaml:"min_confidence" validate:"gte=0,lte=1"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerSettings{
			Port:              "8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			MaxBodyBytes:      10 << 20,
			CORSOrigins:       []string{"*"},
		},
		Model: ModelSettings{
			Path:             filepath.Join("models", "department_classifier.onnx"),
			LabelsPath:       filepath.Join("models", "class_indices.json"),
			InferenceTimeout: 30 * time.Second,
		},
		Preprocess: PreprocessSettings{
			ImageSize: 224,
			Resample:  "bicubic",
			MaxPixels: 178956970,
		},
		Prediction: PredictionSettings{
			FallbackLabel: "Manual",
		},
		Logger: LoggerSettings{
			LogLevel: LogLevelInfo,
			LogType:  LogTypeConsole,
		},
	}
}

// Load builds the configuration. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv(EnvPort, c.Server.Port)
	c.Model.Path = getEnv(EnvModelPath, c.Model.Path)
	c.Model.LabelsPath = getEnv(EnvLabelsPath, c.Model.LabelsPath)
	c.Model.RuntimeLibrary = getEnv(EnvRuntimeLibrary, c.Model.RuntimeLibrary)
	c.Logger.LogLevel = strings.ToLower(getEnv(EnvLogLevel, c.Logger.LogLevel))
	c.Logger.LogType = strings.ToLower(getEnv(EnvLogType, c.Logger.LogType))
	c.Logger.FilePath = getEnv(EnvLogFile, c.Logger.FilePath)
}

// Validate checks every section.
func (c *Config) Validate() error {
	validate := validator.New()
	sections := []struct {
		name  string
		value any
	}{
		{"server", &c.Server},
		{"model", &c.Model},
		{"preprocess", &c.Preprocess},
		{"prediction", &c.Prediction},
	}
	for _, s := range sections {
		if err := validate.Struct(s.value); err != nil {
			return fmt.Errorf("validation failed for %s settings: %w", s.name, err)
		}
	}
	return c.Logger.Validate()
}

// ResolvePaths makes relative model and labels paths absolute against root.
func (c *Config) ResolvePaths(root string) {
	c.Model.Path = resolve(root, c.Model.Path)
	c.Model.LabelsPath = resolve(root, c.Model.LabelsPath)
}

func resolve(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
