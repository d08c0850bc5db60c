package testutil

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/Brownie44l1/dept-classifier/internal/model"
)

// FakeModel is a model.Model driven by RunFunc.
type FakeModel struct {
	RunFunc func(ctx context.Context, input model.Tensor) ([]float32, error)

	calls  atomic.Int32
	closed atomic.Bool
}

// StaticModel always returns scores.
func StaticModel(scores ...float32) *FakeModel {
	return &FakeModel{
		RunFunc: func(context.Context, model.Tensor) ([]float32, error) {
			out := make([]float32, len(scores))
			copy(out, scores)
			return out, nil
		},
	}
}

func (m *FakeModel) Run(ctx context.Context, input model.Tensor) ([]float32, error) {
	m.calls.Add(1)
	return m.RunFunc(ctx, input)
}

func (m *FakeModel) Close() error {
	m.closed.Store(true)
	return nil
}

func (m *FakeModel) Calls() int {
	return int(m.calls.Load())
}

func (m *FakeModel) Closed() bool {
	return m.closed.Load()
}

// Labels builds a label mapping from names in index order.
func Labels(names ...string) model.Labels {
	m := make(map[int]string, len(names))
	for i, n := range names {
		m[i] = n
	}
	return model.NewLabels(m)
}

// Logger discards all output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
