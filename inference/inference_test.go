package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestONNXConfig_Validate(t *testing.T) {
	valid := ONNXConfig{
		ModelPath:  "face.onnx",
		InputName:  "input",
		OutputName: "output",
		InputShape: []int64{1, 3, 448, 448},
		OutputSize: 1331,
		Provider:   OpenVINOProviderBackend,
		OpenVINO:   DefaultOpenVINOOptions(),
	}
	require.NoError(t, valid.Validate())
	assert.Equal(t, 3*448*448, valid.InputSize())

	tests := []struct {
		name   string
		mutate func(c *ONNXConfig)
	}{
		{"no model", func(c *ONNXConfig) { c.ModelPath = "" }},
		{"no input name", func(c *ONNXConfig) { c.InputName = "" }},
		{"no shape", func(c *ONNXConfig) { c.InputShape = nil }},
		{"zero dim", func(c *ONNXConfig) { c.InputShape = []int64{1, 0, 448, 448} }},
		{"no output size", func(c *ONNXConfig) { c.OutputSize = 0 }},
		{"bad provider", func(c *ONNXConfig) { c.Provider = "tpu" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			c.InputShape = append([]int64(nil), valid.InputShape...)
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestNewONNXEngine_InvalidConfig(t *testing.T) {
	_, err := NewONNXEngine(ONNXConfig{})
	assert.Error(t, err)
}

func TestOpenVINOOptions(t *testing.T) {
	m := DefaultOpenVINOOptions().toMap()
	assert.Equal(t, map[string]string{"device_type": "MYRIAD", "precision": "FP16"}, m)

	m = OpenVINOOptions{DeviceType: "CPU", NumOfThreads: 4}.toMap()
	assert.Equal(t, "4", m["num_of_threads"])
	assert.NotContains(t, m, "precision")
}

func TestParseEngineType(t *testing.T) {
	e, err := ParseEngineType("onnx")
	require.NoError(t, err)
	assert.Equal(t, EngineONNX, e)

	_, err = ParseEngineType("tflite")
	assert.Error(t, err)
}
