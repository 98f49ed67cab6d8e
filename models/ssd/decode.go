// Package ssd - Decoding for SSD DetectionOutput tensors.
//
// A DetectionOutput layer emits rows of seven floats:
//
//	[image_id, class, score, x_min, y_min, x_max, y_max]
//
// with corners normalized to [0, 1]. Compute-stick graphs compiled with the
// NCSDK put the number of valid rows in the first float and start the rows at
// the second row slot; OpenVINO emits a fixed number of rows and marks unused
// ones with a negative image_id.
package ssd

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-ncs/images"
	"github.com/nvr-ai/go-ncs/models/postprocess"
)

// RowSize is the number of floats per detection row.
const RowSize = 7

// Layout selects how rows are located in the tensor.
type Layout string

const (
	// LayoutCounted has the row count in output[0]; rows start at offset RowSize.
	LayoutCounted Layout = "counted"
	// LayoutFixed has len(output)/RowSize rows; rows with image_id < 0 are unused.
	LayoutFixed Layout = "fixed"
)

// ParseLayout maps a configuration string to a Layout.
func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case LayoutCounted, "":
		return LayoutCounted, nil
	case LayoutFixed:
		return LayoutFixed, nil
	default:
		return "", errors.Errorf("unknown ssd layout %q", s)
	}
}

// DecodeConfig holds the filtering parameters of Decode.
type DecodeConfig struct {
	Layout Layout
	// Threshold is the exclusive score floor.
	Threshold float32
	// MaxClass drops rows with a larger class id. The face graphs use 1.
	MaxClass int
}

// Decode extracts the boxes above threshold from a DetectionOutput tensor.
//
// Arguments:
//   - output: The raw tensor; read only.
//   - width, height: Pixel size used to de-normalize the corners.
//   - config: Layout and filtering parameters.
//
// Returns:
//   - The kept rows in tensor order.
//   - A *postprocess.ConfigurationError or *postprocess.ShapeMismatchError.
func Decode(output []float32, width, height int, config DecodeConfig) ([]postprocess.Result, error) {
	if err := postprocess.RequirePositive(
		postprocess.Param{Name: "width", Value: width},
		postprocess.Param{Name: "height", Value: height},
	); err != nil {
		return nil, errors.Wrap(err, "decode ssd")
	}
	if len(output)%RowSize != 0 {
		return nil, errors.Wrap(&postprocess.ShapeMismatchError{
			What:       "detection output",
			MultipleOf: RowSize,
			Actual:     len(output),
		}, "decode ssd")
	}

	first, last := 0, len(output)/RowSize
	if config.Layout != LayoutFixed {
		if len(output) == 0 {
			return nil, errors.Wrap(&postprocess.ShapeMismatchError{
				What: "detection output", Expected: RowSize, Actual: 0,
			}, "decode ssd")
		}
		count := int(output[0])
		if count < 0 || count+1 > last {
			return nil, errors.Wrap(&postprocess.ShapeMismatchError{
				What:     "detection output",
				Expected: (count + 1) * RowSize,
				Actual:   len(output),
			}, "decode ssd")
		}
		first, last = 1, count+1
	}

	w, h := float32(width), float32(height)
	var results []postprocess.Result
	for i := first; i < last; i++ {
		row := output[i*RowSize : (i+1)*RowSize]
		id, class, score := row[0], row[1], row[2]
		if config.Layout == LayoutFixed && id < 0 {
			continue
		}
		if !(score > config.Threshold) || class < 0 || class > float32(config.MaxClass) {
			continue
		}

		results = append(results, postprocess.Result{
			Box: images.Rect{
				X:      row[3] * w,
				Y:      row[4] * h,
				Width:  (row[5] - row[3]) * w,
				Height: (row[6] - row[4]) * h,
			},
			Score: score,
			Class: int(class),
			Index: i - first,
		})
	}

	return results, nil
}
