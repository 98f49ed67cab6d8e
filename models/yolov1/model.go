package yolov1

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-ncs/images"
	"github.com/nvr-ai/go-ncs/models/model"
	"github.com/nvr-ai/go-ncs/models/postprocess"
)

// DefaultInputSize is the square input side of the tiny-yolo face network.
const DefaultInputSize = 448

// YOLOv1 is a grid detector bound to its layout and thresholds.
type YOLOv1 struct {
	options        model.Options
	grid           Grid
	onlyObjectness bool
}

// NewModel creates a new grid model.
//
// Missing grid arguments fall back to DefaultGrid, a missing input size to
// DefaultInputSize and a missing normalization to RGB in [0, 1].
//
// Arguments:
//   - args: The arguments for creating a new model.
//
// Returns:
//   - The model, or a *postprocess.ConfigurationError for invalid geometry.
func NewModel(args model.NewModelArgs) (*YOLOv1, error) {
	grid := DefaultGrid()
	var onlyObjectness bool
	if args.Grid != nil {
		grid = GridFromArgs(*args.Grid)
		onlyObjectness = args.Grid.OnlyObjectness
	}
	if err := grid.Validate(); err != nil {
		return nil, errors.Wrap(err, "yolov1")
	}

	inputSize := args.InputSize
	if inputSize == 0 {
		inputSize = DefaultInputSize
	}

	return &YOLOv1{
		options: model.Options{
			Name:                model.ModelNameYOLOv1,
			Family:              model.ModelFamilyYOLO,
			Path:                args.Path,
			InputSize:           inputSize,
			ConfidenceThreshold: args.ConfidenceThreshold,
			NMS:                 args.NMS,
			Input:               args.InputOr(images.UnitRGB()),
		},
		grid:           grid,
		onlyObjectness: onlyObjectness,
	}, nil
}

// Options returns the options for the model.
func (m *YOLOv1) Options() model.Options {
	return m.options
}

// Grid returns the output layout.
func (m *YOLOv1) Grid() Grid {
	return m.grid
}

// OutputSize returns the tensor length the network produces.
func (m *YOLOv1) OutputSize() int {
	return m.grid.TensorSize()
}

// PostProcess decodes the tensor and, when NMS is configured, suppresses
// duplicate boxes in place.
//
// Arguments:
//   - output: The raw output tensor of the network.
//   - width, height: The pixel size of the frame the boxes are drawn on.
//
// Returns:
//   - The decoded detections. In objectness mode Classes is 1.
//   - An error if the layout or dimensions are invalid.
func (m *YOLOv1) PostProcess(output []float32, width, height int) (*postprocess.Detections, error) {
	boxes, probs, err := Decode(output, width, height, m.options.ConfidenceThreshold, m.onlyObjectness, m.grid)
	if err != nil {
		return nil, err
	}

	classes := m.grid.Classes
	if m.onlyObjectness {
		classes = 1
	}
	d := &postprocess.Detections{Boxes: boxes, Probs: probs, Classes: classes}

	if m.options.NMS != nil {
		if err := postprocess.ApplyNMS(d, m.options.NMS); err != nil {
			return nil, errors.Wrap(err, "yolov1 nms")
		}
	}

	return d, nil
}
