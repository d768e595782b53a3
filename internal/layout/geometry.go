package layout

import (
	"math"

	"deckgen/internal/models"
)

// ClipToSlide intersects r with the slide area. ok is false when nothing is left.
func ClipToSlide(r models.Rect, slideWidth, slideHeight int64) (models.Rect, bool) {
	x0, y0 := max(r.X, 0), max(r.Y, 0)
	x1, y1 := min(r.X+r.CX, slideWidth), min(r.Y+r.CY, slideHeight)
	if x1 <= x0 || y1 <= y0 {
		return models.Rect{}, false
	}
	return models.Rect{X: x0, Y: y0, CX: x1 - x0, CY: y1 - y0}, true
}

// ContainFit scales an image of the given size to fit inside box with its aspect ratio kept,
// centred on the free axis. Unknown sizes fill the box.
func ContainFit(box models.Rect, img models.Dimension) models.Rect {
	if img.Width <= 0 || img.Height <= 0 || box.CX <= 0 || box.CY <= 0 {
		return box
	}
	scale := math.Min(float64(box.CX)/float64(img.Width), float64(box.CY)/float64(img.Height))
	cx := min(int64(math.Floor(float64(img.Width)*scale)), box.CX)
	cy := min(int64(math.Floor(float64(img.Height)*scale)), box.CY)
	return models.Rect{
		X:  box.X + (box.CX-cx)/2,
		Y:  box.Y + (box.CY-cy)/2,
		CX: cx,
		CY: cy,
	}
}

// within reports whether r lies inside the slide.
func within(r models.Rect, slideWidth, slideHeight int64) bool {
	return r.X >= 0 && r.Y >= 0 && r.CX > 0 && r.CY > 0 && r.X+r.CX <= slideWidth && r.Y+r.CY <= slideHeight
}
