package vrnet

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/vrnet/base"
)

var defaultDilations = []int64{4, 8, 12}

// DefaultDilations returns the dilation rates of the three atrous branches.
func DefaultDilations() []int64 {
	return append([]int64(nil), defaultDilations...)
}

// ASPPConfig configures an ASPP module.
type ASPPConfig struct {
	Dilations []int64
	Activ     base.Activation
	Dropout   bool
	Norm      base.Norm
	Init      base.InitFn
}

// DefaultASPPConfig returns dilations (4, 8, 12), ReLU and no dropout.
func DefaultASPPConfig() *ASPPConfig {
	return &ASPPConfig{
		Dilations: DefaultDilations(),
		Activ:     base.ReLU,
		Norm:      base.WithNorm,
	}
}

func (c *ASPPConfig) validate() error {
	if len(c.Dilations) != 3 {
		return fmt.Errorf("%w: aspp needs 3 dilation rates, got %v", base.ErrConfig, c.Dilations)
	}
	prev := int64(0)
	for _, d := range c.Dilations {
		if d <= prev {
			return fmt.Errorf("%w: aspp dilation rates must be positive and strictly increasing, got %v", base.ErrConfig, c.Dilations)
		}
		prev = d
	}
	return nil
}

// ASPP is atrous spatial pyramid pooling: five parallel branches that all
// keep the input's H x W, concatenated on channels and fused by a 1x1
// bottleneck.
//
//	conv1: avg-pool over height -> 1x1 -> upsample back to H x W
//	conv2: 1x1
//	conv3..conv5: 3x3 dilated, padding = dilation
type ASPP struct {
	conv1      *base.ConvBlock
	conv2      *base.ConvBlock
	conv3      *base.ConvBlock
	conv4      *base.ConvBlock
	conv5      *base.ConvBlock
	bottleneck *base.ConvBlock
	dropout    bool
	nout       int64
}

// NewASPP creates an ASPP module mapping nin to nout channels.
func NewASPP(p *nn.Path, nin, nout int64, cfg *ASPPConfig) (*ASPP, error) {
	if cfg == nil {
		cfg = DefaultASPPConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	pointwise := func() *base.ConvBlockConfig {
		return &base.ConvBlockConfig{Ksize: 1, Stride: 1, Padding: 0, Dilation: 1, Activ: cfg.Activ, Norm: cfg.Norm, Init: cfg.Init}
	}
	atrous := func(d int64) *base.ConvBlockConfig {
		return &base.ConvBlockConfig{Ksize: 3, Stride: 1, Padding: d, Dilation: d, Activ: cfg.Activ, Norm: cfg.Norm, Init: cfg.Init}
	}
	if err := pointwise().Validate(nin, nout); err != nil {
		return nil, err
	}

	var (
		m   = &ASPP{dropout: cfg.Dropout, nout: nout}
		err error
	)
	if m.conv1, err = base.NewConvBlock(p.Sub("conv1"), nin, nout, pointwise()); err != nil {
		return nil, err
	}
	if m.conv2, err = base.NewConvBlock(p.Sub("conv2"), nin, nout, pointwise()); err != nil {
		return nil, err
	}
	if m.conv3, err = base.NewConvBlock(p.Sub("conv3"), nin, nout, atrous(cfg.Dilations[0])); err != nil {
		return nil, err
	}
	if m.conv4, err = base.NewConvBlock(p.Sub("conv4"), nin, nout, atrous(cfg.Dilations[1])); err != nil {
		return nil, err
	}
	if m.conv5, err = base.NewConvBlock(p.Sub("conv5"), nin, nout, atrous(cfg.Dilations[2])); err != nil {
		return nil, err
	}
	if m.bottleneck, err = base.NewConvBlock(p.Sub("bottleneck"), nout*5, nout, pointwise()); err != nil {
		return nil, err
	}

	return m, nil
}

// ForwardBranches returns the five branch outputs, each [N nout H W].
func (m *ASPP) ForwardBranches(x *ts.Tensor, train bool) []*ts.Tensor {
	size := x.MustSize()
	h, w := size[2], size[3]

	pooled := x.MustAdaptiveAvgPool2d([]int64{1, w}, false) // [N C 1 W]
	proj := m.conv1.ForwardT(pooled, train)
	pooled.MustDrop()
	feat1 := proj.MustUpsampleBilinear2d([]int64{h, w}, true, nil, nil, true)

	return []*ts.Tensor{
		feat1,
		m.conv2.ForwardT(x, train),
		m.conv3.ForwardT(x, train),
		m.conv4.ForwardT(x, train),
		m.conv5.ForwardT(x, train),
	}
}

// ForwardT implements ts.ModuleT for ASPP.
func (m *ASPP) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	feats := m.ForwardBranches(x, train)
	cat := ts.MustCat([]ts.Tensor{*feats[0], *feats[1], *feats[2], *feats[3], *feats[4]}, 1)
	for _, f := range feats {
		f.MustDrop()
	}

	out := m.bottleneck.ForwardT(cat, train)
	cat.MustDrop()

	if m.dropout {
		dropped := base.Dropout2d(out, train)
		out.MustDrop()
		return dropped
	}

	return out
}

// Nout returns the output channel count.
func (m *ASPP) Nout() int64 { return m.nout }
