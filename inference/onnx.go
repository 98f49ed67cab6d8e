package inference

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXConfig configures an ONNXEngine.
type ONNXConfig struct {
	ModelPath string `json:"model_path" yaml:"model_path"`
	// LibraryPath overrides SharedLibPath.
	LibraryPath string `json:"library_path,omitempty" yaml:"library_path,omitempty"`
	InputName   string `json:"input_name"  yaml:"input_name"`
	OutputName  string `json:"output_name" yaml:"output_name"`
	// InputShape is the full input shape, e.g. [1, 3, 448, 448].
	InputShape []int64 `json:"input_shape" yaml:"input_shape"`
	// OutputSize is the flat length of the output tensor.
	OutputSize int             `json:"output_size" yaml:"output_size"`
	Provider   ProviderBackend `json:"provider"   yaml:"provider"`
	OpenVINO   OpenVINOOptions `json:"openvino"   yaml:"openvino"`
	Threads    int             `json:"threads"    yaml:"threads"`
}

// Validate checks the config without touching the runtime.
func (c *ONNXConfig) Validate() error {
	if c.ModelPath == "" {
		return errors.New("onnx: model path is required")
	}
	if c.InputName == "" || c.OutputName == "" {
		return errors.New("onnx: input and output names are required")
	}
	if len(c.InputShape) == 0 {
		return errors.New("onnx: input shape is required")
	}
	for _, d := range c.InputShape {
		if d <= 0 {
			return errors.Errorf("onnx: input shape %v has a non-positive dimension", c.InputShape)
		}
	}
	if c.OutputSize <= 0 {
		return errors.Errorf("onnx: output size must be positive, got %d", c.OutputSize)
	}
	switch c.Provider {
	case "", CPUProviderBackend, OpenVINOProviderBackend, CoreMLProviderBackend:
	default:
		return errors.Errorf("onnx: unsupported execution provider %q", c.Provider)
	}
	return nil
}

// InputSize is the flat length of the input tensor.
func (c *ONNXConfig) InputSize() int {
	n := int64(1)
	for _, d := range c.InputShape {
		n *= d
	}
	return int(n)
}

var (
	envOnce sync.Once
	envErr  error
)

// initEnvironment loads the native library once per process.
func initEnvironment(libPath string) error {
	envOnce.Do(func() {
		if _, err := os.Stat(libPath); err != nil {
			envErr = errors.Wrapf(err, "onnxruntime library not found at %s", libPath)
			return
		}
		ort.SetSharedLibraryPath(libPath)
		envErr = errors.Wrap(ort.InitializeEnvironment(), "error initializing ORT environment")
	})
	return envErr
}

// ONNXEngine runs a model through an onnxruntime AdvancedSession with
// preallocated input and output tensors.
type ONNXEngine struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	closed  bool
}

// NewONNXEngine loads the model and binds its tensors.
func NewONNXEngine(config ONNXConfig) (*ONNXEngine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	libPath := config.LibraryPath
	if libPath == "" {
		libPath = SharedLibPath()
	}
	if err := initEnvironment(libPath); err != nil {
		return nil, err
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(config.InputShape...))
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(config.OutputSize)))
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "error creating output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	defer options.Destroy()

	if config.Threads > 0 {
		if err := options.SetIntraOpNumThreads(config.Threads); err != nil {
			input.Destroy()
			output.Destroy()
			return nil, errors.Wrap(err, "error setting intra-op threads")
		}
	}
	if err := appendProvider(options, config.Provider, config.OpenVINO); err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}

	session, err := ort.NewAdvancedSession(
		config.ModelPath,
		[]string{config.InputName},
		[]string{config.OutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "error creating ORT session")
	}

	return &ONNXEngine{session: session, input: input, output: output}, nil
}

// Infer copies input into the bound tensor, runs the session and returns a
// copy of the output.
func (e *ONNXEngine) Infer(ctx context.Context, input []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}

	dst := e.input.GetData()
	if len(input) != len(dst) {
		return nil, &InputSizeError{Expected: len(dst), Actual: len(input)}
	}
	copy(dst, input)

	if err := e.session.Run(); err != nil {
		return nil, errors.Wrap(err, "error running ORT session")
	}

	out := make([]float32, len(e.output.GetData()))
	copy(out, e.output.GetData())
	return out, nil
}

// Close releases the session and its tensors.
func (e *ONNXEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	e.input.Destroy()
	e.output.Destroy()
	return errors.Wrap(e.session.Destroy(), "error destroying ORT session")
}
