// Package render - Draws detections onto frames.
package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-ncs/models/postprocess"
)

// Boxes returns the integer rectangle of every box with a positive
// probability, in box order.
func Boxes(d *postprocess.Detections) []image.Rectangle {
	var out []image.Rectangle
	for i, box := range d.Boxes {
		if d.Drawn(i) {
			out = append(out, box.Bounds())
		}
	}
	return out
}

// Label returns the caption for box i: the best class name and its score.
// Missing names fall back to the class index.
func Label(d *postprocess.Detections, i int, labels []string) string {
	best, score := 0, float32(0)
	for k, p := range d.ProbsAt(i) {
		if p > score {
			best, score = k, p
		}
	}
	name := fmt.Sprintf("class %d", best)
	if best < len(labels) {
		name = labels[best]
	}
	return fmt.Sprintf("%s %.2f", name, score)
}

// Draw outlines every drawn box on img and captions it when labels is non-nil.
// It returns the number of boxes drawn.
func Draw(img *gocv.Mat, d *postprocess.Detections, labels []string, c color.RGBA, thickness int) int {
	drawn := 0
	for i, box := range d.Boxes {
		if !d.Drawn(i) {
			continue
		}
		rect := box.Bounds()
		gocv.Rectangle(img, rect, c, thickness)
		if labels != nil {
			gocv.PutText(img, Label(d, i, labels), rect.Min.Add(image.Pt(0, -4)), gocv.FontHersheyPlain, 0.8, c, 1)
		}
		drawn++
	}
	return drawn
}
