package model

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXOptions configures the onnxruntime session.
type ONNXOptions struct {
	// RuntimeLibrary is the onnxruntime shared library; empty uses the platform default.
	RuntimeLibrary string
	InputName      string
	OutputName     string
	IntraOpThreads int
}

// ONNXModel runs an ONNX classifier. The session is shared; tensors are
// allocated per call so Run may be called concurrently. Close waits for
// running calls.
type ONNXModel struct {
	mu          sync.RWMutex
	session     *ort.DynamicAdvancedSession
	inputName   string
	outputName  string
	outputShape ort.Shape
}

var _ Model = (*ONNXModel)(nil)

var envMu sync.Mutex

func initEnvironment(lib string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if lib != "" {
		ort.SetSharedLibraryPath(lib)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return nil
}

// ONNXOpener returns an Opener that loads models with opts.
func ONNXOpener(opts ONNXOptions) Opener {
	return func(path string, knownClasses int) (Model, error) {
		m, err := NewONNXModel(path, knownClasses, opts)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

func NewONNXModel(modelPath string, knownClasses int, opts ONNXOptions) (*ONNXModel, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("failed to stat model: %w", err)
	}

	if err := initEnvironment(opts.RuntimeLibrary); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model inputs/outputs: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model declares %d inputs and %d outputs", len(inputs), len(outputs))
	}

	input, err := pickIO(inputs, opts.InputName, "input")
	if err != nil {
		return nil, err
	}
	output, err := pickIO(outputs, opts.OutputName, "output")
	if err != nil {
		return nil, err
	}
	inputName, outputName := input.Name, output.Name

	classes := knownClasses
	if dims := output.Dimensions; len(dims) > 0 && dims[len(dims)-1] > 0 {
		classes = int(dims[len(dims)-1])
	}
	if classes <= 0 {
		return nil, fmt.Errorf("cannot determine output length of %q", outputName)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if opts.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{inputName}, []string{outputName}, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXModel{
		session:     session,
		inputName:   inputName,
		outputName:  outputName,
		outputShape: ort.NewShape(1, int64(classes)),
	}, nil
}

// pickIO returns the named input or output, or the first one when name is empty.
func pickIO(infos []ort.InputOutputInfo, name, kind string) (ort.InputOutputInfo, error) {
	if name == "" {
		return infos[0], nil
	}
	for _, info := range infos {
		if info.Name == name {
			return info, nil
		}
	}
	return ort.InputOutputInfo{}, fmt.Errorf("model has no %s %q", kind, name)
}

// Classes is the length of the score vector Run returns.
func (m *ONNXModel) Classes() int {
	return int(m.outputShape[1])
}

func (m *ONNXModel) Run(ctx context.Context, input Tensor) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil, ErrClosed
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(input.Shape...), input.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](m.outputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := m.session.Run([]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor}); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	scores := make([]float32, m.Classes())
	copy(scores, outputTensor.GetData())
	return scores, nil
}

func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		if err := m.session.Destroy(); err != nil {
			return fmt.Errorf("failed to destroy session: %w", err)
		}
		m.session = nil
	}

	envMu.Lock()
	defer envMu.Unlock()
	if ort.IsInitialized() {
		return ort.DestroyEnvironment()
	}
	return nil
}
