// Package app assembles the classifier from configuration. Both the HTTP
// server and the command line tool start from here.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Brownie44l1/dept-classifier/internal/config"
	"github.com/Brownie44l1/dept-classifier/internal/model"
	"github.com/Brownie44l1/dept-classifier/internal/predict"
	"github.com/Brownie44l1/dept-classifier/internal/preprocess"
)

const (
	EnvConfigPath     = "CONFIG_PATH"
	DefaultConfigPath = "configs/server.yaml"
)

type App struct {
	Config  *config.Config
	Handle  *model.Handle
	Service *predict.Service
	Log     *slog.Logger
}

// ProjectRoot is the working directory, or two levels up when started from
// inside cmd/<name>.
func ProjectRoot(binary string) (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	if filepath.Base(wd) == binary && filepath.Base(filepath.Dir(wd)) == "cmd" {
		wd = filepath.Join(wd, "..", "..")
	}
	return filepath.Clean(wd), nil
}

// ConfigPath picks the config file: an explicit path, then CONFIG_PATH, then
// configs/server.yaml under root if it exists. Empty means defaults only.
func ConfigPath(explicit, root string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	p := filepath.Join(root, DefaultConfigPath)
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// New loads the model and builds the prediction service. A model that fails
// to load is logged and leaves the service not ready; only configuration
// errors are returned.
func New(cfg *config.Config, open model.Opener, log *slog.Logger) (*App, error) {
	filter, err := preprocess.ParseFilter(cfg.Preprocess.Resample)
	if err != nil {
		return nil, err
	}
	pre := preprocess.New(preprocess.Options{
		Size:      cfg.Preprocess.ImageSize,
		Filter:    filter,
		MaxPixels: cfg.Preprocess.MaxPixels,
	})

	if open == nil {
		open = model.ONNXOpener(model.ONNXOptions{
			RuntimeLibrary: cfg.Model.RuntimeLibrary,
			InputName:      cfg.Model.InputName,
			OutputName:     cfg.Model.OutputName,
			IntraOpThreads: cfg.Model.IntraOpThreads,
		})
	}

	log.Info("loading model", "model", cfg.Model.Path, "labels", cfg.Model.LabelsPath)
	handle := model.NewLoader(cfg.Model.Path, cfg.Model.LabelsPath, open, log).Load()

	svc := predict.NewService(handle, pre, predict.Options{
		Timeout:       cfg.Model.InferenceTimeout,
		Fallback:      cfg.Prediction.FallbackLabel,
		MinConfidence: float32(cfg.Prediction.MinConfidence),
	}, log)

	return &App{Config: cfg, Handle: handle, Service: svc, Log: log}, nil
}

func (a *App) Close() error {
	return a.Handle.Close()
}
