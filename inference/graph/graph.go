// Package graph - Inference with an in-process gorgonia expression graph.
//
// It is kept apart from package inference so that only programs that build a
// graph link gorgonia.
package graph

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-ncs/inference"
)

// Engine implements inference.Engine over a gorgonia expression graph. The
// input node is bound with G.Let before every run and the output node is read
// back through a G.Read op added at construction.
type Engine struct {
	mu      sync.Mutex
	input   *G.Node
	value   G.Value
	machine G.VM
	backing []float32
	closed  bool
}

var _ inference.Engine = (*Engine)(nil)

// New compiles g into a tape machine.
//
// Arguments:
//   - g: The graph; it must not be modified afterwards.
//   - input: A float32 input node of g.
//   - output: A float32 node of g whose value is returned by Infer.
func New(g *G.ExprGraph, input, output *G.Node) (*Engine, error) {
	if g == nil || input == nil || output == nil {
		return nil, errors.New("graph: graph, input and output are required")
	}
	if input.Dtype() != tensor.Float32 || output.Dtype() != tensor.Float32 {
		return nil, errors.Errorf("graph: nodes must be float32, got %v and %v", input.Dtype(), output.Dtype())
	}

	e := &Engine{
		input:   input,
		backing: make([]float32, input.Shape().TotalSize()),
	}
	G.Read(output, &e.value)
	e.machine = G.NewTapeMachine(g)
	return e, nil
}

// Infer binds input, runs the graph once and returns a copy of the output.
func (e *Engine) Infer(ctx context.Context, input []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, inference.ErrClosed
	}
	if len(input) != len(e.backing) {
		return nil, &inference.InputSizeError{Expected: len(e.backing), Actual: len(input)}
	}
	copy(e.backing, input)

	t := tensor.New(tensor.WithShape(e.input.Shape()...), tensor.Of(tensor.Float32), tensor.WithBacking(e.backing))
	if err := G.Let(e.input, t); err != nil {
		return nil, errors.Wrap(err, "graph: bind input")
	}
	defer e.machine.Reset()

	if err := e.machine.RunAll(); err != nil {
		return nil, errors.Wrap(err, "graph: run")
	}

	data, ok := e.value.Data().([]float32)
	if !ok {
		if f, isScalar := e.value.Data().(float32); isScalar {
			return []float32{f}, nil
		}
		return nil, errors.Errorf("graph: unexpected output type %T", e.value.Data())
	}
	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

// Close releases the machine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.machine.Close()
}
