package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

// SolidPNG renders a w×h PNG filled with c.
func SolidPNG(w, h int, c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	buf := bytes.NewBuffer(nil)
	// png.Encode only fails on writer errors; bytes.Buffer never returns one.
	_ = png.Encode(buf, img)
	return buf.Bytes()
}

// SolidPNGDataURL is SolidPNG wrapped in a data-URL.
func SolidPNGDataURL(w, h int, c color.Color) string {
	return EncodeDataURL("image/png", SolidPNG(w, h, c))
}
