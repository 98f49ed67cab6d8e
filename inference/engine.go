// Package inference - Adapters to the runtimes that produce raw output tensors.
//
// The detector core treats inference as a black box: a prepared input tensor
// goes in and a flat float32 output of fixed length comes out.
package inference

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// EngineType is the type of the engine.
type EngineType string

const (
	// EngineONNX runs an ONNX model with onnxruntime.
	EngineONNX EngineType = "onnx"
	// EngineGorgonia runs an in-process gorgonia expression graph.
	EngineGorgonia EngineType = "gorgonia"
)

// Engines is a list of all supported engines.
var Engines = []EngineType{EngineONNX, EngineGorgonia}

// ParseEngineType maps a configuration string to an EngineType.
func ParseEngineType(s string) (EngineType, error) {
	for _, e := range Engines {
		if string(e) == s {
			return e, nil
		}
	}
	return "", errors.Errorf("unsupported engine %q", s)
}

// Engine runs one inference at a time.
//
// Infer must not retain input after it returns and must return an output the
// caller owns. Implementations serialize concurrent calls.
type Engine interface {
	Infer(ctx context.Context, input []float32) ([]float32, error)
	Close() error
}

// ErrClosed is returned by Infer after Close.
var ErrClosed = errors.New("inference engine is closed")

// InputSizeError reports an input of the wrong length.
type InputSizeError struct {
	Expected int
	Actual   int
}

func (e *InputSizeError) Error() string {
	return fmt.Sprintf("input tensor has %d values, engine expects %d", e.Actual, e.Expected)
}
