// Package config - Detector configuration files.
package config

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-ncs/images"
	"github.com/nvr-ai/go-ncs/inference"
	"github.com/nvr-ai/go-ncs/models/model"
	"github.com/nvr-ai/go-ncs/models/postprocess"
)

// Config is the full detector configuration.
type Config struct {
	// Model selects the decoder and its thresholds.
	Model model.NewModelArgs `json:"model" yaml:"model"`
	// Labels names the classes when drawing.
	Labels []string `json:"labels" yaml:"labels"`
	// Engine selects the runtime that produces the output tensor.
	Engine EngineConfig `json:"engine" yaml:"engine"`
	// Depth is the number of inferred frames that may queue for post-processing.
	Depth int `json:"depth" yaml:"depth"`
	// LogLevel is a zap level name.
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// EngineConfig selects and configures an inference engine.
type EngineConfig struct {
	Type inference.EngineType `json:"type" yaml:"type"`
	// ChannelOrder is "hwc" or "chw".
	ChannelOrder string               `json:"channel_order" yaml:"channel_order"`
	ONNX         inference.ONNXConfig `json:"onnx" yaml:"onnx"`
}

// DefaultConfig returns the tiny-yolo face detector on the compute stick.
func DefaultConfig() Config {
	return Config{
		Model: model.NewModelArgs{
			Name:                model.ModelNameYOLOv1,
			Path:                "models/face/tiny-yolo-face.onnx",
			InputSize:           448,
			ConfidenceThreshold: 0.2,
			NMS:                 postprocess.DefaultNMSConfig(),
			Grid: &model.GridArgs{
				Side:        11,
				Num:         2,
				Classes:     1,
				SquaredDims: true,
			},
		},
		Labels: []string{"face"},
		Engine: EngineConfig{
			Type:         inference.EngineONNX,
			ChannelOrder: "chw",
			ONNX: inference.ONNXConfig{
				InputName:  "input",
				OutputName: "output",
				Provider:   inference.OpenVINOProviderBackend,
				OpenVINO:   inference.DefaultOpenVINOOptions(),
			},
		},
		Depth:    1,
		LogLevel: "info",
	}
}

// Load reads a YAML file over DefaultConfig and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(data)
}

// Parse decodes YAML over DefaultConfig and validates the result.
func Parse(data []byte) (*Config, error) {
	c := DefaultConfig()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the fields that can be checked without loading a model.
func (c *Config) Validate() error {
	if c.Model.Name == "" {
		return errors.New("config: model name is required")
	}
	if c.Model.NMS != nil && c.Model.NMS.IoUThreshold <= 0 {
		return errors.Errorf("config: nms iou_threshold must be positive, got %v", c.Model.NMS.IoUThreshold)
	}
	if _, err := inference.ParseEngineType(string(c.Engine.Type)); err != nil {
		return errors.Wrap(err, "config")
	}
	if _, err := images.ParseChannelOrder(c.Engine.ChannelOrder); err != nil {
		return errors.Wrap(err, "config")
	}
	if c.Depth < 0 {
		return errors.Errorf("config: depth must not be negative, got %d", c.Depth)
	}
	if _, err := zap.ParseAtomicLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "config: log_level")
	}
	return nil
}

// ChannelOrder returns the parsed tensor layout.
func (c *Config) ChannelOrder() images.ChannelOrder {
	order, _ := images.ParseChannelOrder(c.Engine.ChannelOrder)
	return order
}

// ONNX returns the engine config with the model path and input shape filled
// in from the model section when they are unset.
func (c *Config) ONNX(m model.Model) inference.ONNXConfig {
	onnx := c.Engine.ONNX
	if onnx.ModelPath == "" {
		onnx.ModelPath = m.Options().Path
	}
	size := int64(m.Options().InputSize)
	if len(onnx.InputShape) == 0 {
		if c.ChannelOrder() == images.ChannelOrderCHW {
			onnx.InputShape = []int64{1, 3, size, size}
		} else {
			onnx.InputShape = []int64{1, size, size, 3}
		}
	}
	if onnx.OutputSize == 0 {
		onnx.OutputSize = m.OutputSize()
	}
	return onnx
}

// Logger builds a production zap logger at the configured level.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.Encoding = "console"
	return zc.Build()
}
