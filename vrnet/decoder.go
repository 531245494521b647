package vrnet

import (
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/vrnet/base"
)

// DecoderConfig configures a DecoderLayer.
type DecoderConfig struct {
	Ksize   int64
	Padding int64
	Activ   base.Activation
	Dropout bool
	Norm    base.Norm
	Init    base.InitFn
}

// DefaultDecoderConfig returns a 3x3 ReLU decoder without dropout.
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		Ksize:   3,
		Padding: 1,
		Activ:   base.ReLU,
		Norm:    base.WithNorm,
	}
}

// DecoderLayer upsamples by 2, concatenates a center-cropped skip tensor and
// applies one conv block.
type DecoderLayer struct {
	Conv1   *base.ConvBlock
	dropout bool
}

// NewDecoderLayer creates a DecoderLayer. nin is the channel count after the
// skip concatenation, i.e. upsampled channels + skip channels.
func NewDecoderLayer(p *nn.Path, nin, nout int64, cfg *DecoderConfig) (*DecoderLayer, error) {
	if cfg == nil {
		cfg = DefaultDecoderConfig()
	}
	conv1, err := base.NewConvBlock(p.Sub("conv1"), nin, nout, &base.ConvBlockConfig{
		Ksize:    cfg.Ksize,
		Stride:   1,
		Padding:  cfg.Padding,
		Dilation: 1,
		Activ:    cfg.Activ,
		Norm:     cfg.Norm,
		Init:     cfg.Init,
	})
	if err != nil {
		return nil, err
	}

	return &DecoderLayer{Conv1: conv1, dropout: cfg.Dropout}, nil
}

// upsample2x interpolates x to twice its height and width (bilinear,
// aligned corners).
func upsample2x(x *ts.Tensor) *ts.Tensor {
	size := x.MustSize()
	return x.MustUpsampleBilinear2d([]int64{size[2] * 2, size[3] * 2}, true, nil, nil, false)
}

// ForwardSkip upsamples x, concatenates skip (if any) and forwards through the
// conv block. skip must be at least as large as the upsampled x on both
// spatial axes; it is center-cropped to match.
func (d *DecoderLayer) ForwardSkip(x, skip *ts.Tensor, train bool) *ts.Tensor {
	in := upsample2x(x)
	if skip != nil {
		cropped := base.MustCropCenter(skip, in)
		cat := ts.MustCat([]ts.Tensor{*in, *cropped}, 1)
		in.MustDrop()
		cropped.MustDrop()
		in = cat
	}

	h := d.Conv1.ForwardT(in, train)
	in.MustDrop()

	if d.dropout {
		out := base.Dropout2d(h, train)
		h.MustDrop()
		return out
	}

	return h
}

// ForwardT implements ts.ModuleT for DecoderLayer without a skip tensor.
func (d *DecoderLayer) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	return d.ForwardSkip(x, nil, train)
}

// Nin returns the channel count the conv block expects after concatenation.
func (d *DecoderLayer) Nin() int64 { return d.Conv1.Nin() }

// Nout returns the output channel count.
func (d *DecoderLayer) Nout() int64 { return d.Conv1.Nout() }
