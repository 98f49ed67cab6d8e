// Package yolov1 - Decoding for YOLOv1-style grid detectors.
//
// The network partitions the input into a Side x Side grid. Every cell
// predicts Num candidate boxes and one block of Classes scores. The flat
// output tensor stores three contiguous regions in this order:
//
//	[0, S*S*C)                  class scores, C per cell
//	[S*S*C, S*S*(C+N))          objectness, one per (cell, box)
//	[S*S*(C+N), S*S*(C+5N))     geometry x, y, w, h per (cell, box)
//
// where S = Side, N = Num and C = Classes.
package yolov1

import (
	"github.com/nvr-ai/go-ncs/models/model"
	"github.com/nvr-ai/go-ncs/models/postprocess"
)

// Grid describes the output layout of a grid detector.
type Grid struct {
	// Side is the number of cells along each axis.
	Side int `json:"side" yaml:"side"`
	// Num is the number of candidate boxes per cell.
	Num int `json:"num" yaml:"num"`
	// Classes is the number of class scores per cell.
	Classes int `json:"classes" yaml:"classes"`
	// SquaredDims is set for networks that predict the square root of the
	// box width and height.
	SquaredDims bool `json:"squared_dims" yaml:"squared_dims"`
}

// DefaultGrid returns the layout of the tiny-yolo face network: an 11x11 grid
// with 2 boxes per cell, one class and square-root encoded sizes (1331 floats).
func DefaultGrid() Grid {
	return Grid{Side: 11, Num: 2, Classes: 1, SquaredDims: true}
}

// GridFromArgs converts model arguments to a Grid.
func GridFromArgs(args model.GridArgs) Grid {
	return Grid{Side: args.Side, Num: args.Num, Classes: args.Classes, SquaredDims: args.SquaredDims}
}

// Validate returns a *postprocess.ConfigurationError for non-positive geometry.
func (g Grid) Validate() error {
	return postprocess.RequirePositive(
		postprocess.Param{Name: "side", Value: g.Side},
		postprocess.Param{Name: "num", Value: g.Num},
		postprocess.Param{Name: "classes", Value: g.Classes},
	)
}

// Cells returns the number of grid cells.
func (g Grid) Cells() int {
	return g.Side * g.Side
}

// Boxes returns the number of candidate boxes the grid decodes to.
func (g Grid) Boxes() int {
	return g.Cells() * g.Num
}

// TensorSize returns the exact length of a prediction tensor for this grid.
func (g Grid) TensorSize() int {
	return g.Cells() * (g.Classes + g.Num*(1+4))
}

func (g Grid) objectnessOffset() int {
	return g.Cells() * g.Classes
}

func (g Grid) geometryOffset() int {
	return g.Cells() * (g.Classes + g.Num)
}
