package main

import (
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/chai2010/tiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ts "github.com/sugarme/gotch/tensor"
)

func TestSaveMaskTIFF(t *testing.T) {
	OutDir = t.TempDir()

	// [1 1 2 3]: bin 0 is the bottom row of the image.
	vals := []float32{0, 0.25, 0.5, 0.75, 1, 1.5}
	mask := ts.MustOfSlice(vals).MustView([]int64{1, 1, 2, 3}, true)
	require.NoError(t, saveMaskTIFF(mask, "mask.tiff"))

	f, err := os.Open(filepath.Join(OutDir, "mask.tiff"))
	require.NoError(t, err)
	defer f.Close()
	img, err := tiff.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())

	at := func(x, y int) uint16 {
		return color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y
	}
	assert.Equal(t, uint16(0), at(0, 1))
	assert.Equal(t, uint16(math.Round(0.25*math.MaxUint16)), at(1, 1))
	assert.Equal(t, uint16(math.Round(0.75*math.MaxUint16)), at(0, 0))
	// above 1 is clamped.
	assert.Equal(t, uint16(math.MaxUint16), at(2, 0))
}
