package encoder

import (
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/vrnet/base"
)

// Encoder is encoder interface for a spectrogram separation model.
// ForwardAll returns every stage output, shallowest first, so decoders can
// use them as skip connections.
type Encoder interface {
	ForwardAll(x *ts.Tensor, train bool) []*ts.Tensor
}

// LayerConfig configures an encoder Layer.
type LayerConfig struct {
	Ksize   int64
	Stride  int64
	Padding int64
	Activ   base.Activation
	Norm    base.Norm
	Init    base.InitFn
}

// DefaultLayerConfig returns a 3x3, stride 1 layer with LeakyReLU.
func DefaultLayerConfig() *LayerConfig {
	return &LayerConfig{
		Ksize:   3,
		Stride:  1,
		Padding: 1,
		Activ:   base.LeakyReLU,
		Norm:    base.WithNorm,
	}
}

// Layer is two stacked conv blocks. Only the first one may downsample.
type Layer struct {
	Conv1 *base.ConvBlock
	Conv2 *base.ConvBlock
}

// NewLayer creates an encoder Layer mapping nin to nout channels.
func NewLayer(p *nn.Path, nin, nout int64, cfg *LayerConfig) (*Layer, error) {
	if cfg == nil {
		cfg = DefaultLayerConfig()
	}

	conv1Cfg := &base.ConvBlockConfig{
		Ksize:    cfg.Ksize,
		Stride:   cfg.Stride,
		Padding:  cfg.Padding,
		Dilation: 1,
		Activ:    cfg.Activ,
		Norm:     cfg.Norm,
		Init:     cfg.Init,
	}
	conv2Cfg := *conv1Cfg
	conv2Cfg.Stride = 1

	// Validate both before creating any variable.
	if err := conv1Cfg.Validate(nin, nout); err != nil {
		return nil, err
	}
	if err := conv2Cfg.Validate(nout, nout); err != nil {
		return nil, err
	}

	conv1, err := base.NewConvBlock(p.Sub("conv1"), nin, nout, conv1Cfg)
	if err != nil {
		return nil, err
	}
	conv2, err := base.NewConvBlock(p.Sub("conv2"), nout, nout, &conv2Cfg)
	if err != nil {
		return nil, err
	}

	return &Layer{Conv1: conv1, Conv2: conv2}, nil
}

// ForwardT implements ts.ModuleT for Layer.
func (l *Layer) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	h := l.Conv1.ForwardT(x, train)
	out := l.Conv2.ForwardT(h, train)
	h.MustDrop()

	return out
}

// Nout returns the output channel count.
func (l *Layer) Nout() int64 { return l.Conv2.Nout() }

// OutSize returns the spatial size produced for an h x w input.
func (l *Layer) OutSize(h, w int64) (int64, int64) {
	return l.Conv2.OutSize(l.Conv1.OutSize(h, w))
}
