package inference

import (
	"fmt"
	"runtime"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend names an onnxruntime execution provider.
type ProviderBackend string

const (
	// CPUProviderBackend uses the default CPU execution provider.
	CPUProviderBackend ProviderBackend = "cpu"
	// OpenVINOProviderBackend uses Intel OpenVINO. Device MYRIAD targets the Neural Compute Stick.
	OpenVINOProviderBackend ProviderBackend = "openvino"
	// CoreMLProviderBackend uses Apple CoreML.
	CoreMLProviderBackend ProviderBackend = "coreml"
)

// OpenVINOOptions contains arguments for the OpenVINO provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	// DeviceType is the accelerator, e.g. CPU, GPU or MYRIAD.
	DeviceType string `json:"device_type"   yaml:"device_type"`
	// Precision is FP32 or FP16. The compute stick only runs FP16.
	Precision    string `json:"precision"    yaml:"precision"`
	NumOfThreads int    `json:"num_of_threads" yaml:"num_of_threads"`
}

// DefaultOpenVINOOptions targets the Neural Compute Stick.
func DefaultOpenVINOOptions() OpenVINOOptions {
	return OpenVINOOptions{DeviceType: "MYRIAD", Precision: "FP16"}
}

func (o OpenVINOOptions) toMap() map[string]string {
	m := map[string]string{"device_type": o.DeviceType}
	if o.Precision != "" {
		m["precision"] = o.Precision
	}
	if o.NumOfThreads > 0 {
		m["num_of_threads"] = fmt.Sprintf("%d", o.NumOfThreads)
	}
	return m
}

// appendProvider enables the execution provider on the session options.
func appendProvider(options *ort.SessionOptions, backend ProviderBackend, openvino OpenVINOOptions) error {
	switch backend {
	case CPUProviderBackend, "":
		return nil
	case CoreMLProviderBackend:
		return errors.Wrap(options.AppendExecutionProviderCoreML(0), "error enabling CoreML")
	case OpenVINOProviderBackend:
		return errors.Wrap(options.AppendExecutionProviderOpenVINO(openvino.toMap()), "error enabling OpenVINO")
	default:
		return errors.Errorf("unsupported execution provider %q", backend)
	}
}

// SharedLibPath returns the default onnxruntime library path for the current platform.
func SharedLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "third_party/onnxruntime.dll"
	case "darwin":
		return "third_party/libonnxruntime.dylib"
	}
	if runtime.GOARCH == "arm64" {
		return "third_party/onnxruntime_arm64.so"
	}
	return "third_party/onnxruntime.so"
}
