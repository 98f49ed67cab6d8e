package postprocess

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-ncs/images"
)

func TestSuppress_OverlappingPair(t *testing.T) {
	boxes := []images.Rect{
		{X: 0, Y: 0, Width: 100, Height: 100},
		{X: 0, Y: 0, Width: 100, Height: 60},
	}
	require.InDelta(t, 0.6, images.CalculateIoU(boxes[0], boxes[1]), 1e-6)

	tests := []struct {
		name     string
		probs    []float32
		expected []float32
	}{
		{"higher first", []float32{0.9, 0.4}, []float32{0.9, 0}},
		{"higher second", []float32{0.4, 0.9}, []float32{0, 0.9}},
		{"tie keeps earlier", []float32{0.7, 0.7}, []float32{0.7, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probs := append([]float32(nil), tt.probs...)
			require.NoError(t, Suppress(boxes, probs, 1, 0.5))
			assert.Equal(t, tt.expected, probs)
		})
	}
}

func TestSuppress_BelowThresholdUntouched(t *testing.T) {
	boxes := []images.Rect{
		{X: 0, Y: 0, Width: 100, Height: 100},
		{X: 0, Y: 0, Width: 100, Height: 60},
	}
	probs := []float32{0.9, 0.4}

	// IoU of exactly the threshold is not a duplicate.
	require.NoError(t, Suppress(boxes, probs, 1, 0.6))
	assert.Equal(t, []float32{0.9, 0.4}, probs)
}

func TestSuppress_ClassesAreIndependent(t *testing.T) {
	boxes := []images.Rect{
		{X: 10, Y: 10, Width: 50, Height: 50},
		{X: 12, Y: 10, Width: 50, Height: 50},
	}
	probs := []float32{
		0.8, 0.1, 0,
		0.3, 0.6, 0,
	}

	require.NoError(t, Suppress(boxes, probs, 3, 0.5))
	assert.Equal(t, []float32{
		0.8, 0, 0,
		0, 0.6, 0,
	}, probs)
}

func TestSuppress_SkipsZeroedBoxes(t *testing.T) {
	// Box 0 has no probability, so it must not suppress anything even though
	// box 1 and box 2 overlap it. Box 1 then suppresses box 2.
	boxes := []images.Rect{
		{X: 0, Y: 0, Width: 10, Height: 10},
		{X: 0, Y: 0, Width: 10, Height: 10},
		{X: 0, Y: 0, Width: 10, Height: 10},
	}
	probs := []float32{0, 0.5, 0.2}

	require.NoError(t, Suppress(boxes, probs, 1, 0.5))
	assert.Equal(t, []float32{0, 0.5, 0}, probs)
}

func TestSuppress_DegenerateBoxes(t *testing.T) {
	boxes := []images.Rect{
		{X: 0, Y: 0, Width: 0, Height: 0},
		{X: 0, Y: 0, Width: 0, Height: 0},
		{X: 5, Y: 5, Width: -3, Height: 4},
	}
	probs := []float32{0.9, 0.8, 0.7}

	require.NoError(t, Suppress(boxes, probs, 1, 0.1))
	assert.Equal(t, []float32{0.9, 0.8, 0.7}, probs)
}

func TestSuppress_Errors(t *testing.T) {
	boxes := []images.Rect{{Width: 1, Height: 1}}

	err := Suppress(boxes, []float32{0.5}, 0, 0.5)
	assert.True(t, IsConfigurationError(err))

	err = Suppress(boxes, []float32{0.5}, 1, 0)
	assert.True(t, IsConfigurationError(err))

	err = Suppress(boxes, []float32{0.5, 0.1}, 1, 0.5)
	assert.True(t, IsShapeMismatch(err))
	assert.Contains(t, err.Error(), "expected 1")

	assert.NoError(t, Suppress(nil, nil, 1, 0.5))
}

func randomFrame(rng *rand.Rand, n, classes int) ([]images.Rect, []float32) {
	boxes := make([]images.Rect, n)
	probs := make([]float32, n*classes)
	for i := range boxes {
		boxes[i] = images.Rect{
			X:      rng.Float32() * 80,
			Y:      rng.Float32() * 80,
			Width:  rng.Float32()*40 - 2,
			Height: rng.Float32()*40 - 2,
		}
	}
	for i := range probs {
		if rng.Intn(4) == 0 {
			continue
		}
		// Coarse values so ties occur.
		probs[i] = float32(rng.Intn(10)) / 10
	}
	return boxes, probs
}

func TestSuppress_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const threshold = float32(0.3)

	for trial := 0; trial < 50; trial++ {
		classes := 1 + rng.Intn(4)
		boxes, probs := randomFrame(rng, 30, classes)
		before := append([]float32(nil), probs...)
		boxesBefore := append([]images.Rect(nil), boxes...)

		require.NoError(t, Suppress(boxes, probs, classes, threshold))

		assert.Equal(t, boxesBefore, boxes, "geometry must not change")
		for i := range probs {
			assert.True(t, probs[i] == before[i] || probs[i] == 0, "probability increased or changed")
		}

		// Surviving same-class pairs do not overlap beyond the threshold.
		for i := range boxes {
			for j := i + 1; j < len(boxes); j++ {
				for k := 0; k < classes; k++ {
					if probs[i*classes+k] > 0 && probs[j*classes+k] > 0 {
						assert.LessOrEqual(t, images.CalculateIoU(boxes[i], boxes[j]), threshold)
					}
				}
			}
		}

		// Running twice gives the same result as running once.
		again := append([]float32(nil), probs...)
		require.NoError(t, Suppress(boxes, again, classes, threshold))
		assert.Equal(t, probs, again)
	}
}

func TestApplyNMS_ParallelMatchesSerial(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 25; trial++ {
		classes := 2 + rng.Intn(5)
		boxes, probs := randomFrame(rng, 40, classes)

		serial := append([]float32(nil), probs...)
		require.NoError(t, Suppress(boxes, serial, classes, 0.4))

		d := &Detections{Boxes: boxes, Probs: probs, Classes: classes}
		require.NoError(t, ApplyNMS(d, &NMSConfig{IoUThreshold: 0.4, NumWorkers: 4}))
		assert.Equal(t, serial, d.Probs)
	}
}

func TestApplyNMS_NegativeFallsBackToSerial(t *testing.T) {
	boxes := []images.Rect{
		{X: 0, Y: 0, Width: 10, Height: 10},
		{X: 0, Y: 0, Width: 10, Height: 10},
	}
	probs := []float32{
		0.5, 0,
		0.2, -0.3,
	}
	serial := append([]float32(nil), probs...)
	require.NoError(t, Suppress(boxes, serial, 2, 0.5))

	d := &Detections{Boxes: boxes, Probs: probs, Classes: 2}
	require.NoError(t, ApplyNMS(d, &NMSConfig{IoUThreshold: 0.5, NumWorkers: 2}))
	assert.Equal(t, serial, d.Probs)
	assert.Equal(t, []float32{0.5, 0, 0, 0}, d.Probs)
}

func TestApplyNMS_Validation(t *testing.T) {
	d := &Detections{Boxes: make([]images.Rect, 2), Probs: make([]float32, 3), Classes: 2}
	assert.True(t, IsShapeMismatch(ApplyNMS(d, &NMSConfig{IoUThreshold: 0.5, NumWorkers: 2})))

	d = &Detections{Classes: 1}
	assert.True(t, IsConfigurationError(ApplyNMS(d, &NMSConfig{IoUThreshold: -1})))

	assert.NoError(t, ApplyNMS(d, nil))
}

func TestApplyGreedyNMS(t *testing.T) {
	results := []Result{
		{Box: images.Rect{X: 0, Y: 0, Width: 10, Height: 10}, Score: 0.6, Class: 0},
		{Box: images.Rect{X: 1, Y: 0, Width: 10, Height: 10}, Score: 0.9, Class: 0},
		{Box: images.Rect{X: 1, Y: 0, Width: 10, Height: 10}, Score: 0.8, Class: 1},
		{Box: images.Rect{X: 50, Y: 50, Width: 10, Height: 10}, Score: 0.3, Class: 0},
	}

	t.Run("class aware", func(t *testing.T) {
		out := ApplyGreedyNMS(results, &NMSConfig{IoUThreshold: 0.5, ClassAware: true})
		require.Len(t, out, 3)
		assert.Equal(t, float32(0.9), out[0].Score)
		assert.Equal(t, float32(0.8), out[1].Score)
		assert.Equal(t, float32(0.3), out[2].Score)
	})

	t.Run("class agnostic", func(t *testing.T) {
		out := ApplyGreedyNMS(results, &NMSConfig{IoUThreshold: 0.5})
		require.Len(t, out, 2)
		assert.Equal(t, float32(0.9), out[0].Score)
		assert.Equal(t, float32(0.3), out[1].Score)
	})

	t.Run("input untouched", func(t *testing.T) {
		ApplyGreedyNMS(results, nil)
		assert.Equal(t, float32(0.6), results[0].Score)
	})

	assert.Nil(t, ApplyGreedyNMS(nil, nil))
}

func BenchmarkApplyNMS(b *testing.B) {
	rng := rand.New(rand.NewSource(5))
	boxes, probs := randomFrame(rng, 242, 20)

	for _, workers := range []int{1, 4} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			work := make([]float32, len(probs))
			config := &NMSConfig{IoUThreshold: 0.4, NumWorkers: workers}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				copy(work, probs)
				d := &Detections{Boxes: boxes, Probs: work, Classes: 20}
				if err := ApplyNMS(d, config); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
