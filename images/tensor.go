package images

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// ChannelOrder defines the memory layout of a prepared input tensor.
type ChannelOrder int

const (
	// ChannelOrderHWC interleaves the channels per pixel (OpenCV float Mat layout).
	ChannelOrderHWC ChannelOrder = iota
	// ChannelOrderCHW stores each channel as a contiguous plane (common for ONNX).
	ChannelOrderCHW
)

func (o ChannelOrder) String() string {
	switch o {
	case ChannelOrderHWC:
		return "hwc"
	case ChannelOrderCHW:
		return "chw"
	default:
		return "unknown"
	}
}

// ParseChannelOrder maps a configuration string to a ChannelOrder.
func ParseChannelOrder(s string) (ChannelOrder, error) {
	switch s {
	case "hwc", "HWC", "":
		return ChannelOrderHWC, nil
	case "chw", "CHW":
		return ChannelOrderCHW, nil
	default:
		return 0, errors.Errorf("unknown channel order %q", s)
	}
}

// Normalization maps an 8-bit channel value v to (v - Mean) / Std, that is a
// scale of 1/Std and an offset of -Mean/Std, and selects the channel order
// within a pixel.
type Normalization struct {
	// BGR stores blue first, the order OpenCV decodes frames in.
	BGR  bool    `json:"bgr" yaml:"bgr"`
	Mean float32 `json:"mean" yaml:"mean"`
	Std  float32 `json:"std" yaml:"std"`
}

// UnitRGB is RGB scaled to [0, 1], the grid detector input.
func UnitRGB() Normalization {
	return Normalization{Std: 255}
}

// SymmetricBGR is BGR scaled to [-1, 1], the MobileNet-SSD input.
func SymmetricBGR() Normalization {
	return Normalization{BGR: true, Mean: 127.5, Std: 127.5}
}

// RawBGR is BGR with unscaled 8-bit values, the OpenVINO IR input.
func RawBGR() Normalization {
	return Normalization{BGR: true, Std: 1}
}

// Apply normalizes one 8-bit channel value.
func (n Normalization) Apply(v uint8) float32 {
	return (float32(v) - n.Mean) / n.Std
}

// TensorLen returns the number of floats ToTensor writes for a square input.
func TensorLen(size int) int {
	return size * size * 3
}

// ToTensor prepares a frame for a square-input detector.
//
// The image is resized to size x size with nearest-neighbour sampling (the
// demos favour speed here) and every channel value is normalized by norm. A
// zero norm.Std means UnitRGB.
//
// Arguments:
//   - img: The frame to prepare.
//   - size: The network input side in pixels.
//   - order: The memory layout expected by the network.
//   - norm: Channel order and value mapping expected by the network.
//   - dst: Optional destination buffer; reused when it holds TensorLen(size) floats.
//
// Returns:
//   - []float32: The prepared tensor.
//   - error: An error if the image or size is invalid.
func ToTensor(img image.Image, size int, order ChannelOrder, norm Normalization, dst []float32) ([]float32, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if size <= 0 {
		return nil, errors.Errorf("invalid tensor size %d", size)
	}
	if img.Bounds().Empty() {
		return nil, errors.New("input image is empty")
	}

	if norm.Std == 0 {
		norm = UnitRGB()
	}

	n := TensorLen(size)
	if len(dst) != n {
		dst = make([]float32, n)
	}

	resized := resize.Resize(uint(size), uint(size), img, resize.NearestNeighbor)
	b := resized.Bounds()
	plane := size * size

	i := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, bl, _ := resized.At(b.Min.X+x, b.Min.Y+y).RGBA()
			c0 := norm.Apply(uint8(r >> 8))
			c1 := norm.Apply(uint8(g >> 8))
			c2 := norm.Apply(uint8(bl >> 8))
			if norm.BGR {
				c0, c2 = c2, c0
			}
			switch order {
			case ChannelOrderCHW:
				dst[i] = c0
				dst[plane+i] = c1
				dst[2*plane+i] = c2
			default:
				dst[3*i] = c0
				dst[3*i+1] = c1
				dst[3*i+2] = c2
			}
			i++
		}
	}

	return dst, nil
}
