// Package model - Model definitions shared by the detector decoders.
package model

import (
	"github.com/nvr-ai/go-ncs/images"
	"github.com/nvr-ai/go-ncs/models/postprocess"
)

// Family is the family of models.
type Family string

const (
	// ModelFamilyYOLO is the grid-based YOLO family.
	ModelFamilyYOLO Family = "yolo"
	// ModelFamilySSD is the single-shot detector family.
	ModelFamilySSD Family = "ssd"
)

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameYOLOv1 is a YOLOv1-style grid detector (tiny-yolo face model).
	ModelNameYOLOv1 Name = "yolov1"
	// ModelNameSSD is an SSD detector with a DetectionOutput layer.
	ModelNameSSD Name = "ssd"
)

// Options describe a constructed model.
type Options struct {
	Name                Name                   `json:"name" yaml:"name"`
	Family              Family                 `json:"family" yaml:"family"`
	Path                string                 `json:"path" yaml:"path"`
	InputSize           int                    `json:"input_size" yaml:"input_size"`
	ConfidenceThreshold float32                `json:"confidence_threshold" yaml:"confidence_threshold"`
	NMS                 *postprocess.NMSConfig `json:"nms" yaml:"nms"`
	// Input is the pixel normalization the network was trained with.
	Input               images.Normalization   `json:"input" yaml:"input"`
}

// Model turns a raw output tensor into detections.
type Model interface {
	Options() Options
	// OutputSize is the exact tensor length PostProcess accepts, or 0 when
	// the model accepts any length that fits its layout.
	OutputSize() int
	PostProcess(output []float32, width, height int) (*postprocess.Detections, error)
}

// GridArgs are the layout parameters of a grid detector. They must match the
// network that produced the tensor.
type GridArgs struct {
	Side           int  `json:"side" yaml:"side"`
	Num            int  `json:"num" yaml:"num"`
	Classes        int  `json:"classes" yaml:"classes"`
	SquaredDims    bool `json:"squared_dims" yaml:"squared_dims"`
	OnlyObjectness bool `json:"only_objectness" yaml:"only_objectness"`
}

// SSDArgs are the layout parameters of a DetectionOutput tensor.
type SSDArgs struct {
	// Layout is "counted" (count in the first row) or "fixed".
	Layout   string `json:"layout" yaml:"layout"`
	MaxClass int    `json:"max_class" yaml:"max_class"`
	Classes  int    `json:"classes" yaml:"classes"`
}

// NewModelArgs is the arguments for creating a new model.
type NewModelArgs struct {
	Name                Name                   `json:"name" yaml:"name"`
	Path                string                 `json:"path" yaml:"path"`
	InputSize           int                    `json:"input_size" yaml:"input_size"`
	ConfidenceThreshold float32                `json:"confidence_threshold" yaml:"confidence_threshold"`
	NMS                 *postprocess.NMSConfig `json:"nms" yaml:"nms"`
	Grid                *GridArgs              `json:"grid,omitempty" yaml:"grid,omitempty"`
	SSD                 *SSDArgs               `json:"ssd,omitempty" yaml:"ssd,omitempty"`
	// Input overrides the family's default pixel normalization.
	Input               *images.Normalization  `json:"input,omitempty" yaml:"input,omitempty"`
}

// InputOr returns the configured normalization, or def when none is set.
func (a NewModelArgs) InputOr(def images.Normalization) images.Normalization {
	if a.Input != nil {
		return *a.Input
	}
	return def
}
