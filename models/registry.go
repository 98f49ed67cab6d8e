// Package models - registry for detector models.
package models

import (
	"fmt"

	"github.com/nvr-ai/go-ncs/models/model"
	"github.com/nvr-ai/go-ncs/models/ssd"
	"github.com/nvr-ai/go-ncs/models/yolov1"
)

// NewModel creates a new detection model instance based on the specified model name.
//
// This factory is the single entry point for model creation, routing to the
// model-specific constructors behind the model.Model interface.
//
// Arguments:
//   - args: Configuration parameters specifying the model name and layout.
//
// Returns:
//   - model.Model: A configured model instance.
//   - error: An error if the name is unsupported or the layout is invalid.
//
// Example:
//
//	m, err := NewModel(model.NewModelArgs{
//	    Name:                model.ModelNameYOLOv1,
//	    ConfidenceThreshold: 0.2,
//	    NMS:                 &postprocess.NMSConfig{IoUThreshold: 0.4},
//	})
func NewModel(args model.NewModelArgs) (model.Model, error) {
	switch args.Name {
	case model.ModelNameYOLOv1:
		m, err := yolov1.NewModel(args)
		if err != nil {
			return nil, err
		}
		return m, nil
	case model.ModelNameSSD:
		m, err := ssd.NewModel(args)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported model name: %s", args.Name)
	}
}
