package main

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	ts "github.com/sugarme/gotch/tensor"
)

// firstPlane returns the first channel of the first batch item of a
// [N C F T] tensor as row-major [F T] values.
func firstPlane(x *ts.Tensor) (vals []float64, bins, frames int) {
	plane := x.MustSelect(0, 0, false).MustSelect(0, 0, true).MustContiguous(true) // [F T]
	size := plane.MustSize()
	vals = plane.Float64Values()
	plane.MustDrop()

	return vals, int(size[0]), int(size[1])
}

// toGrayImage renders the first channel of the first batch item of a
// [N C F T] tensor. Values are min-max scaled to 0..255; low frequencies end
// up at the bottom of the image.
func toGrayImage(x *ts.Tensor) image.Image {
	vals, bins, frames := firstPlane(x)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	scale := 0.0
	if hi > lo {
		scale = 255 / (hi - lo)
	}

	img := image.NewGray(image.Rect(0, 0, frames, bins))
	for f := 0; f < bins; f++ {
		for t := 0; t < frames; t++ {
			img.SetGray(t, f, color.Gray{Y: uint8((vals[f*frames+t] - lo) * scale)})
		}
	}

	return imaging.FlipV(img)
}

// saveImage writes img as PNG, resized to the given width (height keeps the
// aspect ratio).
func saveImage(img image.Image, name string, width int) error {
	if err := os.MkdirAll(OutDir, 0755); err != nil {
		return err
	}
	if width > 0 && img.Bounds().Dx() != width {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}
	path := filepath.Join(OutDir, name)
	if err := imaging.Save(img, path); err != nil {
		return err
	}
	fmt.Printf("Saved %v\n", path)

	return nil
}

// runMask renders the predicted mask for a random input and the
// discriminator's score map of the separated magnitude.
func runMask() error {
	_, net, disc, err := buildModels()
	if err != nil {
		return err
	}
	input, err := randomInput(net)
	if err != nil {
		return err
	}
	defer input.MustDrop()

	net.Offset = 0

	var (
		mask, score *ts.Tensor
		predErr     error
	)
	ts.NoGrad(func() {
		mask, predErr = net.PredictMask(input)
		if predErr != nil {
			return
		}
		mag := input.MustMul(mask, false)
		score = disc.ForwardT(mag, false)
		mag.MustDrop()
	})
	if predErr != nil {
		return predErr
	}
	defer mask.MustDrop()
	defer score.MustDrop()

	if err := saveImage(toGrayImage(mask), "mask.png", 512); err != nil {
		return err
	}
	if err := saveMaskTIFF(mask, "mask.tiff"); err != nil {
		return err
	}
	if err := saveHistogram(mask, "Mask Histogram", "mask-histo.png", 20); err != nil {
		return err
	}

	// score cells are coarse; keep them blocky.
	scoreImg := toGrayImage(score)
	b := scoreImg.Bounds()
	scoreImg = resize.Resize(uint(b.Dx()*16), uint(b.Dy()*16), scoreImg, resize.NearestNeighbor)
	return saveImage(scoreImg, "score.png", 0)
}
