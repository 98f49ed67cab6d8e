package graph

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-ncs/inference"
)

func doubler(t *testing.T) *Engine {
	t.Helper()
	g := G.NewGraph()
	x := G.NewVector(g, tensor.Float32, G.WithShape(4), G.WithName("x"))
	y := G.Must(G.Add(x, x))

	e, err := New(g, x, y)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEngine_Infer(t *testing.T) {
	e := doubler(t)

	input := []float32{1, 2, 3, 4}
	out, err := e.Infer(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 4, 6, 8}, out)

	// The machine resets between runs and the output is owned by the caller.
	out2, err := e.Infer(context.Background(), []float32{0, 0, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 2}, out2)
	assert.Equal(t, []float32{2, 4, 6, 8}, out)
	assert.Equal(t, []float32{1, 2, 3, 4}, input)
}

func TestEngine_Errors(t *testing.T) {
	e := doubler(t)

	_, err := e.Infer(context.Background(), []float32{1, 2})
	var sizeErr *inference.InputSizeError
	require.True(t, errors.As(err, &sizeErr))
	assert.Equal(t, 4, sizeErr.Expected)
	assert.Equal(t, 2, sizeErr.Actual)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Infer(ctx, []float32{1, 2, 3, 4})
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	_, err = e.Infer(context.Background(), []float32{1, 2, 3, 4})
	assert.ErrorIs(t, err, inference.ErrClosed)

	_, err = New(nil, nil, nil)
	assert.Error(t, err)
}
