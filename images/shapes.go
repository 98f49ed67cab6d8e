// Package images - Geometry and tensor helpers for detection frames.
package images

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
)

// Rect is a bounding box in pixel space.
//
// X and Y are the top-left corner, Width and Height extend right and down.
// Width and Height are not guaranteed to be positive: a decoder may emit a
// collapsed box, and such boxes are treated as degenerate (zero area).
type Rect struct {
	X, Y, Width, Height float32
}

// NewRect builds a Rect from its top-left corner and size.
func NewRect(x, y, width, height float32) Rect {
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// Right returns the exclusive right edge.
func (r Rect) Right() float32 {
	return r.X + r.Width
}

// Bottom returns the exclusive bottom edge.
func (r Rect) Bottom() float32 {
	return r.Y + r.Height
}

// Empty reports whether the rect has a non-positive width or height.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Area returns the area of the rect, or 0 when it is degenerate.
func (r Rect) Area() float32 {
	if r.Empty() {
		return 0
	}
	return r.Width * r.Height
}

// Intersect returns the overlapping region of r and o.
//
// When the rects do not overlap in either axis the returned rect is the zero
// Rect, whose Area is 0.
func (r Rect) Intersect(o Rect) Rect {
	x1 := math32.Max(r.X, o.X)
	y1 := math32.Max(r.Y, o.Y)
	x2 := math32.Min(r.Right(), o.Right())
	y2 := math32.Min(r.Bottom(), o.Bottom())
	if x2-x1 <= 0 || y2-y1 <= 0 {
		return Rect{}
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Bounds converts the rect to an integral image.Rectangle for drawing.
//
// Coordinates are truncated toward zero, the same way an integer pixel rect
// is produced from float geometry by the drawing backends.
func (r Rect) Bounds() image.Rectangle {
	x, y := int(r.X), int(r.Y)
	return image.Rect(x, y, x+int(r.Width), y+int(r.Height)).Canon()
}

func (r Rect) String() string {
	return fmt.Sprintf("Rect(x=%g, y=%g, w=%g, h=%g)", r.X, r.Y, r.Width, r.Height)
}

// CalculateIoU returns the Intersection over Union of two rectangles.
//
// IoU is the overlap ratio used to decide whether two detections describe the
// same object:
//
//	IoU = Area(A ∩ B) / (Area(A) + Area(B) - Area(A ∩ B))
//
//   - 1.0 means the rectangles are identical.
//   - 0.0 means they do not overlap at all (touching edges included).
//
// Degenerate inputs never divide by zero: a rect with non-positive width or
// height contributes no area, and when the union is not positive the result
// is 0.
//
// Arguments:
//   - r: The first rectangle.
//   - o: The rectangle to compare against.
//
// Returns:
//   - float32: A value in [0, 1].
//
// Example:
//
//	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}
//	b := Rect{X: 5, Y: 5, Width: 10, Height: 10}
//	CalculateIoU(a, b) // 25 / 175 ≈ 0.142857
func CalculateIoU(r, o Rect) float32 {
	if r.Empty() || o.Empty() {
		return 0
	}

	inter := r.Intersect(o).Area()
	if inter <= 0 {
		return 0
	}

	union := r.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}

	return inter / union
}
