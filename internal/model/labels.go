package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

var (
	ErrNoLabels        = errors.New("label mapping is empty")
	ErrDuplicateIndex  = errors.New("duplicate class index")
	ErrNegativeIndex   = errors.New("negative class index")
	ErrMalformedLabels = errors.New("malformed label mapping")
)

// Labels maps class indices to department names. The zero value has no labels.
type Labels struct {
	byIndex map[int]string
}

// NewLabels copies m into a Labels value.
func NewLabels(m map[int]string) Labels {
	byIndex := make(map[int]string, len(m))
	for i, name := range m {
		byIndex[i] = name
	}
	return Labels{byIndex: byIndex}
}

// ParseLabels inverts an on-disk {"label": index} object. Two labels sharing an
// index would make one of them unreachable, so that is rejected.
func ParseLabels(data []byte) (Labels, error) {
	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return Labels{}, fmt.Errorf("%w: %v", ErrMalformedLabels, err)
	}
	if len(raw) == 0 {
		return Labels{}, ErrNoLabels
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	byIndex := make(map[int]string, len(raw))
	for _, name := range names {
		idx := raw[name]
		if idx < 0 {
			return Labels{}, fmt.Errorf("%w: %q -> %d", ErrNegativeIndex, name, idx)
		}
		if prev, ok := byIndex[idx]; ok {
			return Labels{}, fmt.Errorf("%w %d: %q and %q", ErrDuplicateIndex, idx, prev, name)
		}
		byIndex[idx] = name
	}
	return Labels{byIndex: byIndex}, nil
}

// ReadLabels reads and parses the label file at path.
func ReadLabels(path string) (Labels, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Labels{}, fmt.Errorf("failed to read labels: %w", err)
	}
	labels, err := ParseLabels(data)
	if err != nil {
		return Labels{}, fmt.Errorf("failed to parse labels %s: %w", path, err)
	}
	return labels, nil
}

func (l Labels) Lookup(index int) (string, bool) {
	name, ok := l.byIndex[index]
	return name, ok
}

func (l Labels) Len() int {
	return len(l.byIndex)
}

// Indices returns the known indices in ascending order.
func (l Labels) Indices() []int {
	out := make([]int, 0, len(l.byIndex))
	for i := range l.byIndex {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Names returns the labels ordered by index.
func (l Labels) Names() []string {
	idx := l.Indices()
	out := make([]string, len(idx))
	for i, k := range idx {
		out[i] = l.byIndex[k]
	}
	return out
}
