package yolov1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-ncs/images"
	"github.com/nvr-ai/go-ncs/models/model"
	"github.com/nvr-ai/go-ncs/models/postprocess"
)

func TestNewModel_Defaults(t *testing.T) {
	m, err := NewModel(model.NewModelArgs{Path: "models/face/graph", ConfidenceThreshold: 0.2})
	require.NoError(t, err)

	assert.Equal(t, DefaultGrid(), m.Grid())
	assert.Equal(t, 1331, m.OutputSize())
	assert.Equal(t, model.ModelNameYOLOv1, m.Options().Name)
	assert.Equal(t, model.ModelFamilyYOLO, m.Options().Family)
	assert.Equal(t, DefaultInputSize, m.Options().InputSize)
	assert.Equal(t, "models/face/graph", m.Options().Path)
	assert.Equal(t, images.UnitRGB(), m.Options().Input)

	raw := images.RawBGR()
	m, err = NewModel(model.NewModelArgs{Input: &raw})
	require.NoError(t, err)
	assert.Equal(t, raw, m.Options().Input)
}

func TestNewModel_InvalidGrid(t *testing.T) {
	_, err := NewModel(model.NewModelArgs{Grid: &model.GridArgs{Side: 0, Num: 2, Classes: 1}})
	assert.True(t, postprocess.IsConfigurationError(err))
}

func TestPostProcess_SuppressesDuplicates(t *testing.T) {
	m, err := NewModel(model.NewModelArgs{
		ConfidenceThreshold: 0.2,
		NMS:                 &postprocess.NMSConfig{IoUThreshold: 0.5},
		Grid:                &model.GridArgs{Side: 2, Num: 2, Classes: 2},
	})
	require.NoError(t, err)

	grid, tensor := layout()
	require.Equal(t, grid, m.Grid())

	d, err := m.PostProcess(tensor, 200, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Classes)
	assert.Equal(t, 8, d.Len())

	// Boxes in the same cell overlap completely, so within each cell only the
	// stronger probability per class survives.
	expected := []float32{
		0.45, 0,
		0, 0,
		0, 0,
		0, 0.8,
		0, 0,
		0.6, 0,
		0, 0,
		0.21, 0.21,
	}
	for i := range expected {
		assert.InDelta(t, expected[i], d.Probs[i], 1e-6, "prob %d", i)
	}
	assert.Len(t, d.Visible(), 5)
}

func TestPostProcess_OnlyObjectness(t *testing.T) {
	m, err := NewModel(model.NewModelArgs{
		Grid: &model.GridArgs{Side: 2, Num: 2, Classes: 2, OnlyObjectness: true},
	})
	require.NoError(t, err)

	_, tensor := layout()
	d, err := m.PostProcess(tensor, 200, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Classes)
	assert.Len(t, d.Probs, 8)
}

func TestPostProcess_ShapeMismatch(t *testing.T) {
	m, err := NewModel(model.NewModelArgs{})
	require.NoError(t, err)

	_, err = m.PostProcess(make([]float32, 10), 448, 448)
	assert.True(t, postprocess.IsShapeMismatch(err))
}
