package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-ncs/models/model"
	"github.com/nvr-ai/go-ncs/models/ssd"
	"github.com/nvr-ai/go-ncs/models/yolov1"
)

func TestNewModel(t *testing.T) {
	tests := []struct {
		name   string
		args   model.NewModelArgs
		check  func(t *testing.T, m model.Model)
		hasErr bool
	}{
		{
			name: "yolov1",
			args: model.NewModelArgs{Name: model.ModelNameYOLOv1},
			check: func(t *testing.T, m model.Model) {
				assert.IsType(t, &yolov1.YOLOv1{}, m)
				assert.Equal(t, 1331, m.OutputSize())
			},
		},
		{
			name: "ssd",
			args: model.NewModelArgs{Name: model.ModelNameSSD},
			check: func(t *testing.T, m model.Model) {
				assert.IsType(t, &ssd.SSD{}, m)
				assert.Equal(t, model.ModelFamilySSD, m.Options().Family)
			},
		},
		{
			name:   "invalid grid",
			args:   model.NewModelArgs{Name: model.ModelNameYOLOv1, Grid: &model.GridArgs{}},
			hasErr: true,
		},
		{
			name:   "unknown",
			args:   model.NewModelArgs{Name: "rfdetr"},
			hasErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewModel(tt.args)
			if tt.hasErr {
				assert.Error(t, err)
				assert.Nil(t, m)
				return
			}
			require.NoError(t, err)
			tt.check(t, m)
		})
	}
}
