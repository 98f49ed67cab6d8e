package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputPath(t *testing.T) {
	a := outputPath("out", 0, filepath.Join("cam1", "frame.jpg"))
	b := outputPath("out", 1, filepath.Join("cam2", "frame.jpg"))

	assert.Equal(t, filepath.Join("out", "0000-frame.jpg"), a)
	assert.Equal(t, filepath.Join("out", "0001-frame.jpg"), b)
	assert.NotEqual(t, a, b)
}
