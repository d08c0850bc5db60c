package predict

import (
	"errors"
	"fmt"

	"github.com/Brownie44l1/dept-classifier/internal/model"
)

var ErrEmptyScores = errors.New("model returned an empty score vector")

// Decode picks the highest score (first one on ties) and names every score.
// An unmapped winning index reports fallback as the department, while the
// probability map keys unmapped indices as "Unknown_<index>".
func Decode(scores []float32, labels model.Labels, fallback string) (*Prediction, error) {
	if len(scores) == 0 {
		return nil, ErrEmptyScores
	}

	best := 0
	for i, v := range scores {
		if v > scores[best] {
			best = i
		}
	}

	all := make(map[string]float32, len(scores))
	for i, v := range scores {
		name, ok := labels.Lookup(i)
		if !ok {
			name = fmt.Sprintf("Unknown_%d", i)
		}
		all[name] = v
	}

	department, ok := labels.Lookup(best)
	if !ok {
		department = fallback
	}

	return &Prediction{
		Department:    department,
		Confidence:    scores[best],
		Probabilities: all,
		Index:         best,
	}, nil
}
