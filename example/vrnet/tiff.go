package main

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/chai2010/tiff"
	ts "github.com/sugarme/gotch/tensor"
)

// toGray16 maps the first plane of a [N C F T] mask with values in [0, 1] to
// a 16-bit image at full resolution. Values are clamped, not rescaled, so
// pixel / 65535 recovers the mask to within 1/65535. Low frequencies end up
// at the bottom of the image.
func toGray16(x *ts.Tensor) *image.Gray16 {
	vals, bins, frames := firstPlane(x)

	img := image.NewGray16(image.Rect(0, 0, frames, bins))
	for f := 0; f < bins; f++ {
		row := bins - 1 - f
		for t := 0; t < frames; t++ {
			v := math.Max(0, math.Min(1, vals[f*frames+t]))
			img.SetGray16(t, row, color.Gray16{Y: uint16(math.Round(v * math.MaxUint16))})
		}
	}

	return img
}

// saveMaskTIFF writes the mask plane as an uncompressed 16-bit grayscale TIFF.
func saveMaskTIFF(x *ts.Tensor, name string) error {
	if err := os.MkdirAll(OutDir, 0755); err != nil {
		return err
	}
	path := filepath.Join(OutDir, name)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := tiff.Encode(f, toGray16(x), nil); err != nil {
		return err
	}
	fmt.Printf("Saved %v\n", path)

	return nil
}
