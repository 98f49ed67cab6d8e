package yolov1

import (
	"image"
	"math"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-ncs/images"
	"github.com/nvr-ai/go-ncs/models/postprocess"
)

// Decode converts a grid prediction tensor into boxes and probabilities.
//
// Boxes are emitted for every (cell, box) pair in cell-major, box-minor order,
// whatever their probability, so box i always corresponds to cell i/Num and
// candidate i%Num. The probabilities are parallel to the boxes:
//
//   - onlyObjectness: one value per box, the raw objectness score. The
//     threshold is not applied.
//   - otherwise: Classes values per box, objectness times the class score,
//     set to exactly 0 when not above threshold.
//
// The class score block belongs to the cell, not to the candidate box: all
// Num boxes of a cell are multiplied against the same Classes scores.
//
// Boxes keep full float32 precision. Detectors that store boxes in integer
// rectangles truncate the center and size before centering, so their corners
// can differ by a pixel from Rect.Bounds; DecodeBounds reproduces them.
//
// Arguments:
//   - predictions: The raw tensor. It is read only and not retained.
//   - width, height: Pixel size used to de-normalize the geometry.
//   - threshold: Probability floor for per-class output.
//   - onlyObjectness: Emit objectness instead of per-class probabilities.
//   - grid: The layout the tensor was produced with.
//
// Returns:
//   - []images.Rect: Grid.Boxes() boxes in pixel space.
//   - []float32: Grid.Boxes() or Grid.Boxes()*Classes probabilities.
//   - error: A *postprocess.ConfigurationError or *postprocess.ShapeMismatchError.
//     No output is produced on error.
func Decode(
	predictions []float32,
	width, height int,
	threshold float32,
	onlyObjectness bool,
	grid Grid,
) ([]images.Rect, []float32, error) {
	if err := grid.Validate(); err != nil {
		return nil, nil, errors.Wrap(err, "decode grid")
	}
	if err := postprocess.RequirePositive(
		postprocess.Param{Name: "width", Value: width},
		postprocess.Param{Name: "height", Value: height},
	); err != nil {
		return nil, nil, errors.Wrap(err, "decode grid")
	}
	if len(predictions) != grid.TensorSize() {
		return nil, nil, errors.Wrap(&postprocess.ShapeMismatchError{
			What:     "prediction tensor",
			Expected: grid.TensorSize(),
			Actual:   len(predictions),
		}, "decode grid")
	}

	side, num, classes := grid.Side, grid.Num, grid.Classes
	sideF := float32(side)
	w, h := float32(width), float32(height)

	perBox := classes
	if onlyObjectness {
		perBox = 1
	}
	boxes := make([]images.Rect, 0, grid.Boxes())
	probs := make([]float32, 0, grid.Boxes()*perBox)

	objOffset := grid.objectnessOffset()
	geoOffset := grid.geometryOffset()

	for i := 0; i < grid.Cells(); i++ {
		row := i / side
		col := i % side
		cellScores := predictions[i*classes : (i+1)*classes]

		for n := 0; n < num; n++ {
			scale := predictions[objOffset+i*num+n]
			geo := predictions[geoOffset+(i*num+n)*4 : geoOffset+(i*num+n)*4+4]

			cx := (geo[0] + float32(col)) / sideF * w
			cy := (geo[1] + float32(row)) / sideF * h
			bw := dimension(geo[2], grid.SquaredDims) * w
			bh := dimension(geo[3], grid.SquaredDims) * h

			// The conversions keep the half-size product rounded on its own,
			// so no platform fuses it into the subtraction.
			boxes = append(boxes, images.Rect{
				X:      cx - float32(0.5*bw),
				Y:      cy - float32(0.5*bh),
				Width:  bw,
				Height: bh,
			})

			if onlyObjectness {
				probs = append(probs, scale)
				continue
			}
			for _, score := range cellScores {
				prob := scale * score
				if prob > threshold {
					probs = append(probs, prob)
				} else {
					probs = append(probs, 0)
				}
			}
		}
	}

	return boxes, probs, nil
}

// DecodeBounds returns the integer rectangles an integer-rect decoder produces
// for the same tensor: center and size are truncated first and the corner is
// then moved by half the truncated size, truncated again. Box order matches
// Decode.
func DecodeBounds(predictions []float32, width, height int, grid Grid) ([]image.Rectangle, error) {
	if err := grid.Validate(); err != nil {
		return nil, errors.Wrap(err, "decode grid bounds")
	}
	if err := postprocess.RequirePositive(
		postprocess.Param{Name: "width", Value: width},
		postprocess.Param{Name: "height", Value: height},
	); err != nil {
		return nil, errors.Wrap(err, "decode grid bounds")
	}
	if len(predictions) != grid.TensorSize() {
		return nil, errors.Wrap(&postprocess.ShapeMismatchError{
			What:     "prediction tensor",
			Expected: grid.TensorSize(),
			Actual:   len(predictions),
		}, "decode grid bounds")
	}

	exp := 1.0
	if grid.SquaredDims {
		exp = 2
	}
	side := grid.Side
	geoOffset := grid.geometryOffset()
	out := make([]image.Rectangle, 0, grid.Boxes())

	for i := 0; i < grid.Cells(); i++ {
		row, col := i/side, i%side
		for n := 0; n < grid.Num; n++ {
			geo := predictions[geoOffset+(i*grid.Num+n)*4:]

			x := int((geo[0] + float32(col)) / float32(side) * float32(width))
			y := int((geo[1] + float32(row)) / float32(side) * float32(height))
			bw := int(math.Pow(float64(geo[2]), exp) * float64(width))
			bh := int(math.Pow(float64(geo[3]), exp) * float64(height))
			x = int(float64(x) - 0.5*float64(bw))
			y = int(float64(y) - 0.5*float64(bh))

			out = append(out, image.Rect(x, y, x+bw, y+bh))
		}
	}

	return out, nil
}

func dimension(v float32, squared bool) float32 {
	if squared {
		return v * v
	}
	return v
}
