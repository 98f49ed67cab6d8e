package postprocess

import (
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-ncs/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// IoUThreshold is the overlap above which two boxes are duplicates.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// NumWorkers bounds the goroutines used to suppress classes concurrently.
	// Values below 2 run the serial pass.
	NumWorkers int `json:"num_workers" yaml:"num_workers"`
	// ClassAware restricts ApplyGreedyNMS to boxes of the same class.
	ClassAware bool `json:"class_aware" yaml:"class_aware"`
}

// DefaultNMSConfig returns the threshold used by the grid detector demos.
func DefaultNMSConfig() *NMSConfig {
	return &NMSConfig{IoUThreshold: 0.4, NumWorkers: 1, ClassAware: true}
}

func checkThreshold(iouThreshold float32) error {
	if !(iouThreshold > 0) {
		return &ConfigurationError{Param: "iou_threshold", Value: iouThreshold}
	}
	return nil
}

// Suppress performs greedy per-class Non-Maximum Suppression in place.
//
// Boxes are visited in input order. A box whose probabilities are all 0 is
// skipped. Otherwise it is compared with every later box, and when their IoU
// exceeds iouThreshold each class slot keeps only the larger of the two
// probabilities; on a tie the earlier box keeps its value. Classes are
// independent, so a box can survive for one class and be suppressed for
// another. Box geometry is never modified and no probability increases.
//
// Arguments:
//   - boxes: Decoded boxes, one per detection.
//   - probs: classes probabilities per box, flattened in box order.
//   - classes: The number of probability slots per box.
//   - iouThreshold: Overlap above which boxes are duplicates.
//
// Returns:
//   - error: A *ConfigurationError or *ShapeMismatchError, returned before
//     any probability is touched.
func Suppress(boxes []images.Rect, probs []float32, classes int, iouThreshold float32) error {
	if err := validate(boxes, probs, classes, iouThreshold); err != nil {
		return err
	}

	n := len(boxes)
	for i := 0; i < n; i++ {
		if allZero(probs[i*classes : (i+1)*classes]) {
			continue
		}

		for j := i + 1; j < n; j++ {
			if images.CalculateIoU(boxes[i], boxes[j]) <= iouThreshold {
				continue
			}
			for k := 0; k < classes; k++ {
				a, b := i*classes+k, j*classes+k
				if probs[a] < probs[b] {
					probs[a] = 0
				} else {
					probs[b] = 0
				}
			}
		}
	}

	return nil
}

// ApplyNMS suppresses duplicate detections in place according to config.
//
// With config.NumWorkers > 1 and more than one class, classes are processed
// concurrently. That path is taken only when every probability is
// non-negative: there a zero slot can never change a comparison's outcome,
// so handling each class on its own gives exactly the result of Suppress.
// Any other input falls back to Suppress.
func ApplyNMS(d *Detections, config *NMSConfig) error {
	if config == nil {
		config = DefaultNMSConfig()
	}
	if err := validate(d.Boxes, d.Probs, d.Classes, config.IoUThreshold); err != nil {
		return err
	}

	if config.NumWorkers < 2 || d.Classes < 2 || !nonNegative(d.Probs) {
		return Suppress(d.Boxes, d.Probs, d.Classes, config.IoUThreshold)
	}

	var g errgroup.Group
	g.SetLimit(config.NumWorkers)
	for k := 0; k < d.Classes; k++ {
		g.Go(func() error {
			suppressClass(d.Boxes, d.Probs, d.Classes, k, config.IoUThreshold)
			return nil
		})
	}
	return g.Wait()
}

// suppressClass runs the greedy pass for a single class slot. Each call
// writes only indices congruent to k, so calls for different classes may run
// concurrently on the same slice.
func suppressClass(boxes []images.Rect, probs []float32, classes, k int, iouThreshold float32) {
	n := len(boxes)
	for i := 0; i < n; i++ {
		a := i*classes + k
		if probs[a] == 0 {
			continue
		}
		for j := i + 1; j < n; j++ {
			if images.CalculateIoU(boxes[i], boxes[j]) <= iouThreshold {
				continue
			}
			b := j*classes + k
			if probs[a] < probs[b] {
				probs[a] = 0
				// Box i is out for this class; later comparisons are no-ops.
				break
			}
			probs[b] = 0
		}
	}
}

// ApplyGreedyNMS performs score-ordered greedy Non-Maximum Suppression over a
// flat result list, as emitted by decoders that produce one box per object.
//
// Arguments:
//   - results: Detections in any order; the input slice is not modified.
//   - config: NMS configuration. ClassAware limits suppression to equal classes.
//
// Returns:
//   - The surviving results, highest score first. Equal scores keep input order.
func ApplyGreedyNMS(results []Result, config *NMSConfig) []Result {
	n := len(results)
	if n == 0 {
		return nil
	}
	if config == nil {
		config = DefaultNMSConfig()
	}

	sorted := make([]Result, n)
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	filtered := make([]Result, 0, n)
	used := make([]bool, n)
	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}
		anchor := sorted[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && sorted[j].Class != anchor.Class {
				continue
			}
			if images.CalculateIoU(anchor.Box, sorted[j].Box) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}

func validate(boxes []images.Rect, probs []float32, classes int, iouThreshold float32) error {
	if classes <= 0 {
		return &ConfigurationError{Param: "classes", Value: classes}
	}
	if err := checkThreshold(iouThreshold); err != nil {
		return err
	}
	if len(probs) != len(boxes)*classes {
		return &ShapeMismatchError{What: "probabilities", Expected: len(boxes) * classes, Actual: len(probs)}
	}
	return nil
}

func allZero(probs []float32) bool {
	for _, p := range probs {
		if p != 0 {
			return false
		}
	}
	return true
}

func nonNegative(probs []float32) bool {
	for _, p := range probs {
		if !(p >= 0) {
			return false
		}
	}
	return true
}
