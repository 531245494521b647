package vrnet

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/vrnet/base"
)

// DenseStage is the ordering of the projection stage that maps LSTM outputs
// back to frequency bins.
type DenseStage int

const (
	// DenseNormActiv is linear -> batch-norm -> activation.
	DenseNormActiv DenseStage = iota
	// DenseActiv is linear -> activation, no normalization.
	DenseActiv
	// DenseActivNorm is linear -> activation -> batch-norm.
	DenseActivNorm
)

func (s DenseStage) String() string {
	switch s {
	case DenseNormActiv:
		return "linear-norm-activ"
	case DenseActiv:
		return "linear-activ"
	case DenseActivNorm:
		return "linear-activ-norm"
	default:
		return fmt.Sprintf("DenseStage(%d)", int(s))
	}
}

// LSTMConfig configures an LSTMModule.
type LSTMConfig struct {
	Activ base.Activation
	Dense DenseStage
	Norm  base.Norm // applies to the channel-reducing conv block
	Init  base.InitFn
}

// DefaultLSTMConfig returns a ReLU module with linear -> batch-norm -> ReLU
// dense stage.
func DefaultLSTMConfig() *LSTMConfig {
	return &LSTMConfig{
		Activ: base.ReLU,
		Dense: DenseNormActiv,
		Norm:  base.WithNorm,
	}
}

// LSTMModule refines a feature map along time with a bidirectional LSTM.
// Each time frame's frequency profile is one sequence element:
//
//	[N C F T] -conv-> [N 1 F T] -> [T N F] -lstm-> [T N nout] -dense-> [T*N F] -> [N 1 F T]
type LSTMModule struct {
	conv     *base.ConvBlock
	lstm     *nn.LSTM
	dense    *nn.Linear
	bn       *nn.BatchNorm
	stage    DenseStage
	activ    base.Activation
	ninLSTM  int64
	noutLSTM int64
}

// NewLSTMModule creates an LSTMModule. ninLSTM must equal the frequency-bin
// count of the input feature map; noutLSTM is the concatenated width of both
// directions and must be even.
func NewLSTMModule(p *nn.Path, ninConv, ninLSTM, noutLSTM int64, cfg *LSTMConfig) (*LSTMModule, error) {
	if cfg == nil {
		cfg = DefaultLSTMConfig()
	}
	switch {
	case ninLSTM <= 0:
		return nil, fmt.Errorf("%w: lstm input width must be positive, got %d", base.ErrConfig, ninLSTM)
	case noutLSTM <= 0 || noutLSTM%2 != 0:
		return nil, fmt.Errorf("%w: lstm output width must be positive and even, got %d", base.ErrConfig, noutLSTM)
	case cfg.Dense < DenseNormActiv || cfg.Dense > DenseActivNorm:
		return nil, fmt.Errorf("%w: unknown dense stage %v", base.ErrConfig, cfg.Dense)
	}

	conv, err := base.NewConvBlock(p.Sub("conv"), ninConv, 1, &base.ConvBlockConfig{
		Ksize:    1,
		Stride:   1,
		Padding:  0,
		Dilation: 1,
		Activ:    base.ReLU,
		Norm:     cfg.Norm,
		Init:     cfg.Init,
	})
	if err != nil {
		return nil, err
	}

	rnnConfig := nn.DefaultRNNConfig()
	rnnConfig.Bidirectional = true
	rnnConfig.BatchFirst = false
	lstm := nn.NewLSTM(p.Sub("lstm"), ninLSTM, noutLSTM/2, rnnConfig)

	linearConfig := nn.DefaultLinearConfig()
	linearConfig.WsInit = cfg.Init.Get(base.DenseWeight)
	dense := nn.NewLinear(p.Sub("dense"), noutLSTM, ninLSTM, linearConfig)

	var bn *nn.BatchNorm
	if cfg.Dense != DenseActiv {
		bn = base.BatchNorm1D(p.Sub("dense_bn"), ninLSTM, cfg.Init)
	}

	return &LSTMModule{
		conv:     conv,
		lstm:     lstm,
		dense:    dense,
		bn:       bn,
		stage:    cfg.Dense,
		activ:    cfg.Activ,
		ninLSTM:  ninLSTM,
		noutLSTM: noutLSTM,
	}, nil
}

// ForwardT implements ts.ModuleT for LSTMModule.
func (m *LSTMModule) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	size := x.MustSize()
	n, nbins, nframes := size[0], size[2], size[3]

	h := m.conv.ForwardT(x, train)
	squeezed := h.MustSelect(1, 0, true)                // [N F T]
	seq := squeezed.MustPermute([]int64{2, 0, 1}, true) // [T N F]

	inState := m.lstm.ZeroState(n)
	out, outState := m.lstm.SeqInit(seq, inState) // [T N nout]
	seq.MustDrop()
	dropLSTMState(inState)
	dropLSTMState(outState)

	flat := out.MustReshape([]int64{nframes * n, m.noutLSTM}, true)
	dense := m.forwardDense(flat, train) // [T*N F]
	flat.MustDrop()

	r := dense.MustReshape([]int64{nframes, n, 1, nbins}, true)
	return r.MustPermute([]int64{1, 2, 3, 0}, true) // [N 1 F T]
}

// dropLSTMState frees the hidden and cell tensors of an LSTM state.
func dropLSTMState(s nn.State) {
	st := s.(*nn.LSTMState)
	st.Tensor1.MustDrop()
	st.Tensor2.MustDrop()
}

func (m *LSTMModule) forwardDense(x *ts.Tensor, train bool) *ts.Tensor {
	lin := m.dense.Forward(x)

	switch m.stage {
	case DenseActiv:
		out := m.activ.Apply(lin)
		lin.MustDrop()
		return out
	case DenseActivNorm:
		a := m.activ.Apply(lin)
		lin.MustDrop()
		out := m.bn.ForwardT(a, train)
		a.MustDrop()
		return out
	default:
		normed := m.bn.ForwardT(lin, train)
		lin.MustDrop()
		out := m.activ.Apply(normed)
		normed.MustDrop()
		return out
	}
}

// NinLSTM returns the frequency-bin count the module was built for.
func (m *LSTMModule) NinLSTM() int64 { return m.ninLSTM }

// CheckInput reports whether a [N C F T] input matches the module.
func (m *LSTMModule) CheckInput(size []int64) error {
	if len(size) != 4 {
		return fmt.Errorf("%w: lstm module expects [N C F T], got %v", base.ErrConfig, size)
	}
	if size[1] != m.conv.Nin() {
		return fmt.Errorf("%w: lstm module expects %d channels, got %d", base.ErrConfig, m.conv.Nin(), size[1])
	}
	if size[2] != m.ninLSTM {
		return fmt.Errorf("%w: lstm module built for %d bins, got %d", base.ErrConfig, m.ninLSTM, size[2])
	}
	return nil
}
