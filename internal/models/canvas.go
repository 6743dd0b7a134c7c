package models

// Canvas holds the drawable area and the fixed card size.
type Canvas struct {
	Width      float64
	Height     float64
	NodeWidth  float64
	NodeHeight float64
}

// Clamp confines a card origin to [0, Width-NodeWidth] x [0, Height-NodeHeight].
func (c Canvas) Clamp(x, y float64) (float64, float64) {
	return clamp(x, 0, max(0, c.Width-c.NodeWidth)), clamp(y, 0, max(0, c.Height-c.NodeHeight))
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
