package base

import (
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"
)

// NewMaskHead creates a 1x1 projection without bias followed by a sigmoid,
// turning decoder features into a [0, 1] mask.
func NewMaskHead(p *nn.Path, cIn, cOut int64, policy InitFn) *nn.SequentialT {
	seq := nn.SeqT()
	seq.Add(Conv2d(p, cIn, cOut, 1, 0, 1, false, policy))
	seq.AddFn(nn.NewFunc(func(xs *ts.Tensor) *ts.Tensor {
		return xs.MustSigmoid(false)
	}))

	return seq
}
