package detector

import "image"

// BoundingBox represents a face bounding box
type BoundingBox struct {
	X1, Y1 float32 // top-left
	X2, Y2 float32 // bottom-right
}

// Width returns box width
func (b BoundingBox) Width() float32 {
	return b.X2 - b.X1
}

// Height returns box height
func (b BoundingBox) Height() float32 {
	return b.Y2 - b.Y1
}

// Area returns box area
func (b BoundingBox) Area() float32 {
	return b.Width() * b.Height()
}

// Rect truncates the box to integer pixel coordinates
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
}

// Clamp limits the box to a width x height image
func (b BoundingBox) Clamp(width, height int) BoundingBox {
	return BoundingBox{
		X1: clamp(b.X1, 0, float32(width)),
		Y1: clamp(b.Y1, 0, float32(height)),
		X2: clamp(b.X2, 0, float32(width)),
		Y2: clamp(b.Y2, 0, float32(height)),
	}
}

// Face represents a detected face
type Face struct {
	BoundingBox BoundingBox
	Score       float32
}

func clamp(x, min, max float32) float32 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
