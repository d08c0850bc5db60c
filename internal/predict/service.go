// Package predict runs one classification per call: readiness check, input
// validation, preprocessing, inference and decoding of the score vector.
package predict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Brownie44l1/dept-classifier/internal/model"
	"github.com/Brownie44l1/dept-classifier/internal/preprocess"
)

const (
	DefaultFallback = "Manual"

	FieldImageBase64 = "image_base64"
	FieldImage       = "image"
)

type Prediction struct {
	Department    string
	Confidence    float32
	Probabilities map[string]float32
	Index         int
}

type Status struct {
	Ready  bool
	Labels int
}

type Options struct {
	// Timeout bounds a single inference; zero means no bound.
	Timeout time.Duration
	// Fallback is the department reported for an unmapped index.
	Fallback string
	// MinConfidence, when positive, reports Fallback for weaker predictions.
	MinConfidence float32
}

type Service struct {
	handle *model.Handle
	pre    *preprocess.Preprocessor
	opts   Options
	log    *slog.Logger
}

func NewService(handle *model.Handle, pre *preprocess.Preprocessor, opts Options, log *slog.Logger) *Service {
	if opts.Fallback == "" {
		opts.Fallback = DefaultFallback
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{handle: handle, pre: pre, opts: opts, log: log}
}

func (s *Service) Status() Status {
	return Status{Ready: s.handle.Ready(), Labels: s.handle.Labels().Len()}
}

// Labels lists the known departments ordered by class index.
func (s *Service) Labels() []string {
	return s.handle.Labels().Names()
}

// Predict classifies a base64 image, optionally prefixed with a data URL.
func (s *Service) Predict(ctx context.Context, imageBase64 string) (*Prediction, error) {
	if !s.handle.Ready() {
		return nil, notLoaded(s.handle.Err())
	}
	if imageBase64 == "" {
		return nil, missing(FieldImageBase64, "Please provide 'image_base64' in the request body.")
	}

	tensor, err := s.pre.Preprocess(imageBase64)
	if err != nil {
		return nil, invalidImage(err)
	}
	return s.classify(ctx, tensor)
}

// PredictImage classifies raw encoded image bytes.
func (s *Service) PredictImage(ctx context.Context, data []byte) (*Prediction, error) {
	if !s.handle.Ready() {
		return nil, notLoaded(s.handle.Err())
	}
	if len(data) == 0 {
		return nil, missing(FieldImage, "Please upload the file in the 'image' form field.")
	}

	tensor, err := s.pre.FromBytes(data)
	if err != nil {
		return nil, invalidImage(err)
	}
	return s.classify(ctx, tensor)
}

func (s *Service) classify(ctx context.Context, tensor model.Tensor) (p *Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, failed(fmt.Errorf("panic during prediction: %v", r))
		}
	}()

	start := time.Now()
	scores, err := s.infer(ctx, tensor)
	if err != nil {
		return nil, failed(err)
	}

	p, err = Decode(scores, s.handle.Labels(), s.opts.Fallback)
	if err != nil {
		return nil, failed(err)
	}

	if s.opts.MinConfidence > 0 && p.Confidence < s.opts.MinConfidence {
		s.log.Info("low confidence prediction, using fallback",
			"predicted", p.Department, "confidence", p.Confidence, "threshold", s.opts.MinConfidence)
		p.Department = s.opts.Fallback
	}

	s.log.Debug("prediction complete",
		"department", p.Department, "confidence", p.Confidence, "elapsed", time.Since(start))
	return p, nil
}

// infer runs the model, giving up waiting once the timeout passes. The model
// call itself is not interruptible and finishes in the background.
func (s *Service) infer(ctx context.Context, tensor model.Tensor) ([]float32, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	type result struct {
		scores []float32
		err    error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic during inference: %v", r)}
			}
		}()
		scores, err := s.handle.Run(ctx, tensor)
		done <- result{scores: scores, err: err}
	}()

	select {
	case r := <-done:
		return r.scores, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("inference timed out after %s", s.opts.Timeout)
		}
		return nil, fmt.Errorf("inference cancelled: %w", ctx.Err())
	}
}
