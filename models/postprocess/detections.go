// Package postprocess - Detection containers and Non-Maximum Suppression.
package postprocess

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-ncs/images"
)

// Result represents a single visible detection.
type Result struct {
	// The bounding box of the result.
	Box images.Rect
	// The confidence score of the result.
	Score float32
	// The predicted class index of the result.
	Class int
	// The index of the box in the Detections it came from.
	Index int
}

// Detections holds one frame of decoded output as two parallel sequences.
//
// Box i owns Probs[i*Classes : i*Classes+Classes]. A probability of exactly 0
// means the (box, class) pair is not drawn. Boxes are kept even when all of
// their probabilities are 0 so that indices stay aligned with the decoder's
// cell-major, box-minor order.
type Detections struct {
	Boxes   []images.Rect
	Probs   []float32
	Classes int
}

// NewDetections wraps parallel box and probability slices.
//
// Returns a *ConfigurationError when classes is not positive and a
// *ShapeMismatchError when the slices are not parallel.
func NewDetections(boxes []images.Rect, probs []float32, classes int) (*Detections, error) {
	d := &Detections{Boxes: boxes, Probs: probs, Classes: classes}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks that Probs holds exactly Classes values per box.
func (d *Detections) Validate() error {
	if d.Classes <= 0 {
		return &ConfigurationError{Param: "classes", Value: d.Classes}
	}
	if len(d.Probs) != len(d.Boxes)*d.Classes {
		return &ShapeMismatchError{What: "probabilities", Expected: len(d.Boxes) * d.Classes, Actual: len(d.Probs)}
	}
	return nil
}

// Len returns the number of boxes.
func (d *Detections) Len() int {
	return len(d.Boxes)
}

// ProbsAt returns the probability slots of box i. The slice aliases Probs.
func (d *Detections) ProbsAt(i int) []float32 {
	return d.Probs[i*d.Classes : (i+1)*d.Classes]
}

// Drawn reports whether any probability of box i is positive.
func (d *Detections) Drawn(i int) bool {
	for _, p := range d.ProbsAt(i) {
		if p > 0 {
			return true
		}
	}
	return false
}

// Visible flattens the detections into one Result per positive (box, class)
// slot, ordered by box index and then class.
func (d *Detections) Visible() []Result {
	var out []Result
	for i, box := range d.Boxes {
		for k, p := range d.ProbsAt(i) {
			if p > 0 {
				out = append(out, Result{Box: box, Score: p, Class: k, Index: i})
			}
		}
	}
	return out
}

// FromResults builds Detections from a flat result list, as produced by
// decoders that already emit one box per object. Each result's score is placed
// in its class slot and the other slots are 0.
func FromResults(results []Result, classes int) (*Detections, error) {
	if classes <= 0 {
		return nil, &ConfigurationError{Param: "classes", Value: classes}
	}

	d := &Detections{
		Boxes:   make([]images.Rect, len(results)),
		Probs:   make([]float32, len(results)*classes),
		Classes: classes,
	}
	for i, r := range results {
		if r.Class < 0 || r.Class >= classes {
			return nil, errors.Errorf("result %d has class %d outside [0, %d)", i, r.Class, classes)
		}
		d.Boxes[i] = r.Box
		d.Probs[i*classes+r.Class] = r.Score
	}
	return d, nil
}
