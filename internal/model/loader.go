package model

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	errNotLoaded = errors.New("model has not been loaded")
	ErrClosed    = errors.New("model is closed")
)

// Handle is the result of a load attempt. A ready handle holds the model and
// its labels; a failed one holds only the error. Close waits for runs still in
// flight, including ones whose callers already gave up waiting.
type Handle struct {
	model  Model
	labels Labels
	err    error

	mu     sync.RWMutex
	closed bool
}

// NewHandle wraps an already opened model.
func NewHandle(m Model, labels Labels) *Handle {
	return &Handle{model: m, labels: labels}
}

func failedHandle(err error) *Handle {
	return &Handle{err: err}
}

func (h *Handle) Ready() bool {
	return h != nil && h.model != nil
}

// Err is the load failure, or nil when ready.
func (h *Handle) Err() error {
	if h == nil {
		return errNotLoaded
	}
	return h.err
}

func (h *Handle) Model() Model {
	if h == nil {
		return nil
	}
	return h.model
}

// Labels is empty unless the handle is ready.
func (h *Handle) Labels() Labels {
	if h == nil {
		return Labels{}
	}
	return h.labels
}

// Run scores input with the loaded model.
func (h *Handle) Run(ctx context.Context, input Tensor) ([]float32, error) {
	if !h.Ready() {
		if err := h.Err(); err != nil {
			return nil, err
		}
		return nil, errNotLoaded
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, ErrClosed
	}
	return h.model.Run(ctx, input)
}

func (h *Handle) Close() error {
	if !h.Ready() {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.model.Close()
}

// Loader reads the label file and opens the model artifact.
type Loader struct {
	ModelPath  string
	LabelsPath string
	Open       Opener
	Log        *slog.Logger

	mu     sync.Mutex
	handle *Handle
}

func NewLoader(modelPath, labelsPath string, open Opener, log *slog.Logger) *Loader {
	return &Loader{
		ModelPath:  modelPath,
		LabelsPath: labelsPath,
		Open:       open,
		Log:        log,
	}
}

// Load never fails outright: errors are logged and returned inside a handle
// that reports not ready. Once a load succeeds, later calls return the same
// handle; after a failure, the next call tries again.
func (l *Loader) Load() *Handle {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handle.Ready() {
		return l.handle
	}

	l.handle = l.load()
	return l.handle
}

func (l *Loader) load() *Handle {
	log := l.Log
	if log == nil {
		log = slog.Default()
	}

	labels, err := ReadLabels(l.LabelsPath)
	if err != nil {
		log.Error("failed to load class labels", "path", l.LabelsPath, "error", err)
		return failedHandle(err)
	}

	if l.Open == nil {
		err := errors.New("no model opener configured")
		log.Error("failed to load model", "path", l.ModelPath, "error", err)
		return failedHandle(err)
	}

	m, err := l.Open(l.ModelPath, labels.Len())
	if err != nil {
		log.Error("failed to load model", "path", l.ModelPath, "error", err)
		return failedHandle(err)
	}

	if sized, ok := m.(interface{ Classes() int }); ok && sized.Classes() != labels.Len() {
		log.Warn("model output length differs from label count",
			"outputs", sized.Classes(), "labels", labels.Len())
	}

	log.Info("model loaded", "path", l.ModelPath, "departments", labels.Names())
	return NewHandle(m, labels)
}
