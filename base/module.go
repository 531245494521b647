package base

import (
	"errors"
	"fmt"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"
)

// ErrConfig is wrapped by every construction-time validation error.
var ErrConfig = errors.New("invalid configuration")

// DropoutRate is the channel-wise dropout probability used by decoder and
// ASPP stages.
const DropoutRate = 0.1

func configErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// Identity is a nn.Module placeholder.
// It forwards the input tensor as such.
type Identity struct{}

// Forward implement nn.Module for Identity struct
func (i *Identity) Forward(x *ts.Tensor) *ts.Tensor {
	return x.MustShallowClone()
}

// ForwardT implement nn.ModuleT for Identity struct.
func (i *Identity) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	return x.MustShallowClone()
}

// NewIdentity creates a new Identity struct.
func NewIdentity() *Identity {
	return &Identity{}
}

// Activation is a fixed nonlinearity applied at the end of a block.
type Activation int

const (
	ReLU Activation = iota
	LeakyReLU
	Sigmoid
	Tanh
	Linear
)

func (a Activation) String() string {
	switch a {
	case ReLU:
		return "relu"
	case LeakyReLU:
		return "leaky_relu"
	case Sigmoid:
		return "sigmoid"
	case Tanh:
		return "tanh"
	case Linear:
		return "linear"
	default:
		return fmt.Sprintf("Activation(%d)", int(a))
	}
}

// Apply applies the activation without consuming x.
// LeakyReLU uses libtorch's default negative slope (0.01).
func (a Activation) Apply(x *ts.Tensor) *ts.Tensor {
	switch a {
	case LeakyReLU:
		return x.MustLeakyRelu(false)
	case Sigmoid:
		return x.MustSigmoid(false)
	case Tanh:
		return x.MustTanh(false)
	case Linear:
		return x.MustShallowClone()
	default:
		return x.MustRelu(false)
	}
}

func (a Activation) valid() bool {
	return a >= ReLU && a <= Linear
}

// Norm selects whether a block carries a normalization stage.
type Norm int

const (
	WithNorm Norm = iota
	NoNorm
)

func (n Norm) String() string {
	if n == NoNorm {
		return "without_normalization"
	}
	return "with_normalization"
}

// ConvBlockConfig configures a ConvBlock.
type ConvBlockConfig struct {
	Ksize    int64
	Stride   int64
	Padding  int64
	Dilation int64
	Activ    Activation
	Norm     Norm
	Init     InitFn
}

// DefaultConvBlockConfig returns a 3x3, stride 1, padding 1 block with
// batch-norm and ReLU.
func DefaultConvBlockConfig() *ConvBlockConfig {
	return &ConvBlockConfig{
		Ksize:    3,
		Stride:   1,
		Padding:  1,
		Dilation: 1,
		Activ:    ReLU,
		Norm:     WithNorm,
	}
}

// Validate checks the config for a block with nin inputs and nout outputs.
func (c *ConvBlockConfig) Validate(nin, nout int64) error {
	switch {
	case nin <= 0 || nout <= 0:
		return configErr("conv block channels must be positive, got nin=%d nout=%d", nin, nout)
	case c.Ksize <= 0:
		return configErr("conv block kernel size must be positive, got %d", c.Ksize)
	case c.Stride <= 0:
		return configErr("conv block stride must be positive, got %d", c.Stride)
	case c.Dilation <= 0:
		return configErr("conv block dilation must be positive, got %d", c.Dilation)
	case c.Padding < 0:
		return configErr("conv block padding must not be negative, got %d", c.Padding)
	case !c.Activ.valid():
		return configErr("unknown activation %v", c.Activ)
	case c.Norm != WithNorm && c.Norm != NoNorm:
		return configErr("unknown norm mode %d", int(c.Norm))
	}
	return nil
}

// ConvBlock is convolution (no bias) -> optional batch-norm -> activation.
// The stage list is fixed when the block is built.
type ConvBlock struct {
	seq    *nn.SequentialT
	nin    int64
	nout   int64
	config ConvBlockConfig
}

// NewConvBlock creates a ConvBlock under path p.
func NewConvBlock(p *nn.Path, nin, nout int64, cfg *ConvBlockConfig) (*ConvBlock, error) {
	if cfg == nil {
		cfg = DefaultConvBlockConfig()
	}
	if err := cfg.Validate(nin, nout); err != nil {
		return nil, err
	}

	convConfig := nn.DefaultConv2DConfig()
	convConfig.Bias = false
	convConfig.Stride = []int64{cfg.Stride, cfg.Stride}
	convConfig.Padding = []int64{cfg.Padding, cfg.Padding}
	convConfig.Dilation = []int64{cfg.Dilation, cfg.Dilation}
	convConfig.WsInit = cfg.Init.Get(ConvWeight)

	seq := nn.SeqT()
	seq.Add(nn.NewConv2D(p.Sub("conv"), nin, nout, cfg.Ksize, convConfig))
	if cfg.Norm == WithNorm {
		seq.Add(BatchNorm2D(p.Sub("bn"), nout, cfg.Init))
	}
	activ := cfg.Activ
	seq.AddFn(nn.NewFunc(func(xs *ts.Tensor) *ts.Tensor {
		return activ.Apply(xs)
	}))

	return &ConvBlock{
		seq:    seq,
		nin:    nin,
		nout:   nout,
		config: *cfg,
	}, nil
}

// ForwardT implements ts.ModuleT for ConvBlock.
func (b *ConvBlock) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	return b.seq.ForwardT(x, train)
}

// Nin returns the expected input channel count.
func (b *ConvBlock) Nin() int64 { return b.nin }

// Nout returns the output channel count.
func (b *ConvBlock) Nout() int64 { return b.nout }

// OutSize returns the spatial size produced for an h x w input.
func (b *ConvBlock) OutSize(h, w int64) (int64, int64) {
	c := b.config
	return ConvOutSize(h, c.Ksize, c.Stride, c.Padding, c.Dilation),
		ConvOutSize(w, c.Ksize, c.Stride, c.Padding, c.Dilation)
}

// ConvOutSize is the standard convolution output length:
// floor((in + 2*pad - dilation*(ksize-1) - 1) / stride) + 1.
func ConvOutSize(in, ksize, stride, pad, dilation int64) int64 {
	return (in+2*pad-dilation*(ksize-1)-1)/stride + 1
}

// BatchNorm2D creates a batch-norm layer whose affine parameters come from
// the init policy.
func BatchNorm2D(p *nn.Path, dim int64, policy InitFn) *nn.BatchNorm {
	return nn.BatchNorm2D(p, dim, batchNormConfig(policy))
}

// BatchNorm1D is BatchNorm2D for (N, C) inputs.
func BatchNorm1D(p *nn.Path, dim int64, policy InitFn) *nn.BatchNorm {
	return nn.BatchNorm1D(p, dim, batchNormConfig(policy))
}

func batchNormConfig(policy InitFn) *nn.BatchNormConfig {
	config := nn.DefaultBatchNormConfig()
	config.WsInit = policy.Get(NormWeight)
	config.BsInit = policy.Get(NormBias)
	return config
}

// Conv2d creates a bare Conv2D module (no normalization, no activation).
func Conv2d(p *nn.Path, cIn, cOut, ksize, padding, stride int64, bias bool, policy InitFn) *nn.Conv2D {
	config := nn.DefaultConv2DConfig()
	config.Bias = bias
	config.Stride = []int64{stride, stride}
	config.Padding = []int64{padding, padding}
	config.WsInit = policy.Get(ConvWeight)
	if bias {
		config.BsInit = policy.Get(ConvBias)
	}

	return nn.NewConv2D(p, cIn, cOut, ksize, config)
}

// Dropout2d zeroes whole channels with probability DropoutRate in training
// mode. At inference it returns a shallow clone of x.
func Dropout2d(x *ts.Tensor, train bool) *ts.Tensor {
	if !train {
		return x.MustShallowClone()
	}
	return ts.MustFeatureDropout(x, DropoutRate, train)
}
