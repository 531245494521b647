package base

import (
	"fmt"

	ts "github.com/sugarme/gotch/tensor"
)

// CropCenter crops src spatially (dims 2 and 3) to the height and width of
// target. The crop offset on each axis is (srcSize-targetSize)/2, so when the
// difference is odd the extra row/column is dropped from the trailing edge.
//
// src and target must share batch and channel layout [N C H W]. An error is
// returned when src is smaller than target on either spatial axis.
func CropCenter(src, target *ts.Tensor) (*ts.Tensor, error) {
	srcSize := src.MustSize()
	targetSize := target.MustSize()
	if len(srcSize) != 4 || len(targetSize) != 4 {
		return nil, configErr("crop center expects 4-D tensors, got %v and %v", srcSize, targetSize)
	}

	dh := srcSize[2] - targetSize[2]
	dw := srcSize[3] - targetSize[3]
	if dh < 0 || dw < 0 {
		return nil, configErr("cannot crop %vx%v to larger %vx%v", srcSize[2], srcSize[3], targetSize[2], targetSize[3])
	}
	if dh == 0 && dw == 0 {
		return src.MustShallowClone(), nil
	}

	h := src.MustNarrow(2, dh/2, targetSize[2], false)
	out := h.MustNarrow(3, dw/2, targetSize[3], true)

	return out, nil
}

// MustCropCenter is CropCenter that panics on error.
func MustCropCenter(src, target *ts.Tensor) *ts.Tensor {
	out, err := CropCenter(src, target)
	if err != nil {
		panic(fmt.Sprintf("crop center: %v", err))
	}
	return out
}
