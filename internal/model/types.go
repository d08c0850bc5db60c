package model

import "context"

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// Len is the element count implied by Shape.
func (t Tensor) Len() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		n *= int(d)
	}
	return n
}

// Model scores a preprocessed image. Implementations must be safe for
// concurrent use.
type Model interface {
	// Run returns one score per class for the single image in input.
	Run(ctx context.Context, input Tensor) ([]float32, error)
	Close() error
}

// Opener opens the model artifact at path. knownClasses is the number of
// labels, used when the artifact does not declare its output length.
type Opener func(path string, knownClasses int) (Model, error)
