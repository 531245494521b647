package gan

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/vrnet/base"
)

var widths = []int64{32, 64, 128, 256}

// Widths returns the channel progression of the discriminator conv blocks.
// Each width is used twice: a stride 1 block then a stride 2 block.
func Widths() []int64 {
	return append([]int64(nil), widths...)
}

// DiscriminatorConfig configures a Discriminator.
type DiscriminatorConfig struct {
	Activ base.Activation
	Norm  base.Norm
	Init  base.InitFn
}

// DefaultDiscriminatorConfig returns LeakyReLU blocks with batch-norm.
func DefaultDiscriminatorConfig() *DiscriminatorConfig {
	return &DiscriminatorConfig{
		Activ: base.LeakyReLU,
		Norm:  base.WithNorm,
	}
}

// Discriminator scores spectrogram patches as real or generated. The output
// is a single channel map of raw logits; no pooling, no final activation.
type Discriminator struct {
	blocks []*base.ConvBlock
	out    *nn.Conv2D
}

// NewDiscriminator creates a Discriminator for inputs with inChannels
// channels.
func NewDiscriminator(p *nn.Path, inChannels int64, cfg *DiscriminatorConfig) (*Discriminator, error) {
	if cfg == nil {
		cfg = DefaultDiscriminatorConfig()
	}
	if inChannels <= 0 {
		return nil, fmt.Errorf("%w: discriminator input channels must be positive, got %d", base.ErrConfig, inChannels)
	}

	model := p.Sub("model")
	blocks := make([]*base.ConvBlock, 0, 2*len(widths))
	cIn := inChannels
	for _, w := range widths {
		for _, stride := range []int64{1, 2} {
			name := fmt.Sprintf("%d", len(blocks))
			block, err := base.NewConvBlock(model.Sub(name), cIn, w, &base.ConvBlockConfig{
				Ksize:    3,
				Stride:   stride,
				Padding:  1,
				Dilation: 1,
				Activ:    cfg.Activ,
				Norm:     cfg.Norm,
				Init:     cfg.Init,
			})
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, block)
			cIn = w
		}
	}

	out := base.Conv2d(model.Sub(fmt.Sprintf("%d", len(blocks))), cIn, 1, 3, 1, 1, true, cfg.Init)

	return &Discriminator{blocks: blocks, out: out}, nil
}

// ForwardT implements ts.ModuleT for Discriminator.
func (d *Discriminator) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	h := x.MustShallowClone()
	for _, block := range d.blocks {
		next := block.ForwardT(h, train)
		h.MustDrop()
		h = next
	}
	out := d.out.ForwardT(h, train)
	h.MustDrop()

	return out
}

// OutSize returns the score map size for an h x w input.
func (d *Discriminator) OutSize(h, w int64) (int64, int64) {
	for _, block := range d.blocks {
		h, w = block.OutSize(h, w)
	}
	return base.ConvOutSize(h, 3, 1, 1, 1), base.ConvOutSize(w, 3, 1, 1, 1)
}

// Channels returns the output channel count of every block, final
// projection included.
func (d *Discriminator) Channels() []int64 {
	out := make([]int64, 0, len(d.blocks)+1)
	for _, block := range d.blocks {
		out = append(out, block.Nout())
	}
	return append(out, 1)
}
