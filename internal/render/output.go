package render

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// DefaultSize is the edge length of rendered images.
const DefaultSize = 20 * vg.Centimeter

// WritePNG draws p on a square canvas and writes it as PNG.
func WritePNG(w io.Writer, p *plot.Plot, size vg.Length) error {
	if size <= 0 {
		size = DefaultSize
	}
	canvas := vgimg.PngCanvas{Canvas: vgimg.New(size, size)}
	p.Draw(draw.New(canvas))
	if _, err := canvas.WriteTo(w); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

// PNG returns the encoded image.
func PNG(p *plot.Plot, size vg.Length) ([]byte, error) {
	var buf bytes.Buffer
	if err := WritePNG(&buf, p, size); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SavePNG writes the plot to path.
func SavePNG(path string, p *plot.Plot, size vg.Length) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePNG(f, p, size); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
