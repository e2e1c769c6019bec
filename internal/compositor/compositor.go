package compositor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
)

// Compositor paints foreground images onto an opaque white backdrop.
type Compositor struct{}

func New() *Compositor {
	return &Compositor{}
}

// Composite returns an opaque image with the foreground's dimensions, its
// pixels alpha-blended over white with the foreground anchored at (0,0).
func (c *Compositor) Composite(fg image.Image) *image.RGBA {
	bounds := fg.Bounds()
	rect := image.Rect(0, 0, bounds.Dx(), bounds.Dy())

	canvas := image.NewRGBA(rect)
	draw.Draw(canvas, rect, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(canvas, rect, fg, bounds.Min, draw.Over)

	return canvas
}

// Encode writes the image as PNG.
func (c *Compositor) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Flatten decodes data, composites it over white and re-encodes it as PNG.
func (c *Compositor) Flatten(data []byte) ([]byte, image.Rectangle, error) {
	fg, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, image.Rectangle{}, fmt.Errorf("failed to decode image: %w", err)
	}

	out := c.Composite(fg)
	encoded, err := c.Encode(out)
	if err != nil {
		return nil, image.Rectangle{}, err
	}
	return encoded, out.Bounds(), nil
}
