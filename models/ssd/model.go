package ssd

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-ncs/images"
	"github.com/nvr-ai/go-ncs/models/model"
	"github.com/nvr-ai/go-ncs/models/postprocess"
)

// DefaultInputSize is the square input side of the MobileNet-SSD face graph.
const DefaultInputSize = 300

// SSD is a DetectionOutput decoder bound to its thresholds.
type SSD struct {
	options model.Options
	decode  DecodeConfig
	classes int
}

// NewModel creates a new SSD model.
//
// Arguments:
//   - args: The arguments for creating a new model. args.SSD may be nil, in
//     which case the counted layout with classes {0, 1} is used. Input
//     defaults to BGR in [-1, 1].
//
// Returns:
//   - The model, or an error for an unknown layout.
func NewModel(args model.NewModelArgs) (*SSD, error) {
	ssdArgs := model.SSDArgs{MaxClass: 1}
	if args.SSD != nil {
		ssdArgs = *args.SSD
	}

	layout, err := ParseLayout(ssdArgs.Layout)
	if err != nil {
		return nil, err
	}
	if ssdArgs.MaxClass < 0 {
		return nil, &postprocess.ConfigurationError{Param: "max_class", Value: ssdArgs.MaxClass}
	}

	classes := ssdArgs.Classes
	if classes == 0 {
		classes = ssdArgs.MaxClass + 1
	}
	if classes <= ssdArgs.MaxClass {
		return nil, errors.Errorf("ssd: %d classes cannot hold max class %d", classes, ssdArgs.MaxClass)
	}

	inputSize := args.InputSize
	if inputSize == 0 {
		inputSize = DefaultInputSize
	}

	return &SSD{
		options: model.Options{
			Name:                model.ModelNameSSD,
			Family:              model.ModelFamilySSD,
			Path:                args.Path,
			InputSize:           inputSize,
			ConfidenceThreshold: args.ConfidenceThreshold,
			NMS:                 args.NMS,
			Input:               args.InputOr(images.SymmetricBGR()),
		},
		decode: DecodeConfig{
			Layout:    layout,
			Threshold: args.ConfidenceThreshold,
			MaxClass:  ssdArgs.MaxClass,
		},
		classes: classes,
	}, nil
}

// Options returns the options for the model.
func (m *SSD) Options() model.Options {
	return m.options
}

// OutputSize returns 0: DetectionOutput tensors vary with the graph.
func (m *SSD) OutputSize() int {
	return 0
}

// PostProcess decodes the tensor, optionally applies score-ordered greedy NMS
// and returns one box per kept row.
//
// Arguments:
//   - output: The raw output tensor of the network.
//   - width, height: The pixel size of the frame the boxes are drawn on.
//
// Returns:
//   - The detections, with the score in the slot of each row's class.
//   - An error if the tensor does not fit the layout.
func (m *SSD) PostProcess(output []float32, width, height int) (*postprocess.Detections, error) {
	results, err := Decode(output, width, height, m.decode)
	if err != nil {
		return nil, err
	}
	if m.options.NMS != nil {
		results = postprocess.ApplyGreedyNMS(results, m.options.NMS)
	}
	return postprocess.FromResults(results, m.classes)
}
