package vrnet

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/vrnet/base"
)

// DefaultOffset is the number of time frames PredictMask trims from each end
// of its output.
const DefaultOffset int64 = 64

// bandNet is a BaseNet followed by a 1x1 projection or an identity.
type bandNet struct {
	net  *BaseNet
	proj ts.ModuleT
}

func (b *bandNet) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	h := b.net.ForwardT(x, train)
	out := b.proj.ForwardT(h, train)
	h.MustDrop()
	return out
}

func newBandNet(p *nn.Path, cfg BaseNetConfig, projOut int64) (*bandNet, error) {
	net, err := NewBaseNet(p.Sub("0"), cfg)
	if err != nil {
		return nil, err
	}
	if projOut <= 0 {
		return &bandNet{net: net, proj: base.NewIdentity()}, nil
	}

	proj, err := base.NewConvBlock(p.Sub("1"), cfg.Nout, projOut, &base.ConvBlockConfig{
		Ksize: 1, Stride: 1, Padding: 0, Dilation: 1, Activ: base.ReLU, Norm: cfg.Norm, Init: cfg.Init,
	})
	if err != nil {
		return nil, err
	}
	return &bandNet{net: net, proj: proj}, nil
}

// CascadedNet is a three stage band-split separation network producing a
// two-channel soft mask over nFFT/2+1 frequency bins.
//
//	stage 1: low band and high band nets on the lower/upper halves of the spectrum
//	stage 2: same split, fed with the input plus stage 1 outputs
//	stage 3: full band net on input plus both auxiliary outputs
type CascadedNet struct {
	stg1Low  *bandNet
	stg1High *bandNet
	stg2Low  *bandNet
	stg2High *bandNet
	stg3Full *bandNet
	out      *nn.SequentialT
	auxOut   *nn.SequentialT

	maxBin    int64
	outputBin int64

	// Offset is the number of frames trimmed from both time ends by
	// PredictMask and Predict.
	Offset int64
}

// NewCascadedNet creates a CascadedNet for stereo magnitude spectrograms of
// an nFFT-point STFT. nFFT must be a multiple of 64 so both band halves
// align with the 16x encoder reduction; nout and noutLSTM must be multiples
// of 4.
func NewCascadedNet(p *nn.Path, nFFT, nout, noutLSTM int64) (*CascadedNet, error) {
	switch {
	case nFFT <= 0 || nFFT%64 != 0:
		return nil, fmt.Errorf("%w: n_fft must be a positive multiple of 64, got %d", base.ErrConfig, nFFT)
	case nout <= 0 || nout%4 != 0:
		return nil, fmt.Errorf("%w: nout must be a positive multiple of 4, got %d", base.ErrConfig, nout)
	case noutLSTM <= 0 || noutLSTM%4 != 0:
		return nil, fmt.Errorf("%w: nout_lstm must be a positive multiple of 4, got %d", base.ErrConfig, noutLSTM)
	}

	maxBin := nFFT / 2
	ninLSTM := maxBin / 2

	var (
		n   = &CascadedNet{maxBin: maxBin, outputBin: maxBin + 1, Offset: DefaultOffset}
		err error
	)
	n.stg1Low, err = newBandNet(p.Sub("stg1_low_band_net"), BaseNetConfig{
		Nin: 2, Nout: nout / 2, NinLSTM: ninLSTM / 2, NoutLSTM: noutLSTM,
	}, nout/4)
	if err != nil {
		return nil, err
	}
	n.stg1High, err = newBandNet(p.Sub("stg1_high_band_net"), BaseNetConfig{
		Nin: 2, Nout: nout / 4, NinLSTM: ninLSTM / 2, NoutLSTM: noutLSTM / 2,
	}, 0)
	if err != nil {
		return nil, err
	}
	n.stg2Low, err = newBandNet(p.Sub("stg2_low_band_net"), BaseNetConfig{
		Nin: nout/4 + 2, Nout: nout, NinLSTM: ninLSTM / 2, NoutLSTM: noutLSTM,
	}, nout/2)
	if err != nil {
		return nil, err
	}
	n.stg2High, err = newBandNet(p.Sub("stg2_high_band_net"), BaseNetConfig{
		Nin: nout/4 + 2, Nout: nout / 2, NinLSTM: ninLSTM / 2, NoutLSTM: noutLSTM / 2,
	}, 0)
	if err != nil {
		return nil, err
	}
	n.stg3Full, err = newBandNet(p.Sub("stg3_full_band_net"), BaseNetConfig{
		Nin: 3*nout/4 + 2, Nout: nout, NinLSTM: ninLSTM, NoutLSTM: noutLSTM,
	}, 0)
	if err != nil {
		return nil, err
	}

	n.out = base.NewMaskHead(p.Sub("out"), nout, 2, nil)
	n.auxOut = base.NewMaskHead(p.Sub("aux_out"), 3*nout/4, 2, nil)

	return n, nil
}

// ForwardT implements ts.ModuleT for CascadedNet. It returns the mask only.
func (n *CascadedNet) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	mask, aux := n.forward(x, train, false)
	if aux != nil {
		aux.MustDrop()
	}
	return mask
}

// ForwardAux returns the mask and, in training mode, the auxiliary mask
// computed from the first two stages. aux is nil when train is false.
func (n *CascadedNet) ForwardAux(x *ts.Tensor, train bool) (mask, aux *ts.Tensor) {
	return n.forward(x, train, train)
}

func (n *CascadedNet) forward(x *ts.Tensor, train, withAux bool) (*ts.Tensor, *ts.Tensor) {
	xs := x.MustNarrow(2, 0, n.maxBin, false) // [N 2 maxBin T]
	bandw := n.maxBin / 2
	l1In := xs.MustNarrow(2, 0, bandw, false)
	h1In := xs.MustNarrow(2, bandw, bandw, false)

	l1 := n.stg1Low.ForwardT(l1In, train)
	h1 := n.stg1High.ForwardT(h1In, train)
	aux1 := ts.MustCat([]ts.Tensor{*l1, *h1}, 2)

	l2In := ts.MustCat([]ts.Tensor{*l1In, *l1}, 1)
	h2In := ts.MustCat([]ts.Tensor{*h1In, *h1}, 1)
	l2 := n.stg2Low.ForwardT(l2In, train)
	h2 := n.stg2High.ForwardT(h2In, train)
	aux2 := ts.MustCat([]ts.Tensor{*l2, *h2}, 2)

	f3In := ts.MustCat([]ts.Tensor{*xs, *aux1, *aux2}, 1)
	f3 := n.stg3Full.ForwardT(f3In, train)

	mask := n.padBins(n.out.ForwardT(f3, train))

	var aux *ts.Tensor
	if withAux {
		auxIn := ts.MustCat([]ts.Tensor{*aux1, *aux2}, 1)
		aux = n.padBins(n.auxOut.ForwardT(auxIn, train))
		auxIn.MustDrop()
	}

	for _, t := range []*ts.Tensor{xs, l1In, h1In, l1, h1, aux1, l2In, h2In, l2, h2, aux2, f3In, f3} {
		t.MustDrop()
	}

	return mask, aux
}

// padBins replicates the last frequency row so the mask covers outputBin
// bins. It consumes x.
func (n *CascadedNet) padBins(x *ts.Tensor) *ts.Tensor {
	size := x.MustSize()
	missing := n.outputBin - size[2]
	if missing <= 0 {
		return x
	}

	last := x.MustNarrow(2, size[2]-1, 1, false)
	rep := last.MustRepeat([]int64{1, 1, missing, 1}, true)
	out := ts.MustCat([]ts.Tensor{*x, *rep}, 2)
	rep.MustDrop()
	x.MustDrop()

	return out
}

// PredictMask runs inference and trims Offset frames from both time ends.
func (n *CascadedNet) PredictMask(x *ts.Tensor) (*ts.Tensor, error) {
	if err := n.CheckInput(x.MustSize()); err != nil {
		return nil, err
	}
	mask := n.ForwardT(x, false)
	return n.trim(mask)
}

// Predict applies the mask to the input magnitude and trims Offset frames
// from both time ends.
func (n *CascadedNet) Predict(x *ts.Tensor) (*ts.Tensor, error) {
	if err := n.CheckInput(x.MustSize()); err != nil {
		return nil, err
	}
	mask := n.ForwardT(x, false)
	if bins := x.MustSize()[2]; bins < n.outputBin {
		mask = mask.MustNarrow(2, 0, bins, true)
	}
	mag := x.MustMul(mask, false)
	mask.MustDrop()
	return n.trim(mag)
}

// trim consumes x.
func (n *CascadedNet) trim(x *ts.Tensor) (*ts.Tensor, error) {
	if n.Offset <= 0 {
		return x, nil
	}
	frames := x.MustSize()[3]
	if frames <= 2*n.Offset {
		x.MustDrop()
		return nil, fmt.Errorf("%w: %d frames leave nothing after trimming %d from each end", base.ErrConfig, frames, n.Offset)
	}
	return x.MustNarrow(3, n.Offset, frames-2*n.Offset, true), nil
}

// OutputBins returns the number of frequency bins of the produced mask.
func (n *CascadedNet) OutputBins() int64 { return n.outputBin }

// CheckInput reports whether a [N 2 F T] input fits the network: F must
// hold at least nFFT/2 bins (extra bins are ignored) and T must be a
// multiple of 16.
func (n *CascadedNet) CheckInput(size []int64) error {
	if len(size) != 4 || size[1] != 2 {
		return fmt.Errorf("%w: cascaded net expects [N 2 F T], got %v", base.ErrConfig, size)
	}
	if size[2] < n.maxBin || size[2] > n.outputBin {
		return fmt.Errorf("%w: cascaded net expects %d or %d bins, got %d", base.ErrConfig, n.maxBin, n.outputBin, size[2])
	}
	if size[3]%16 != 0 {
		return fmt.Errorf("%w: frame count %d is not a multiple of 16", base.ErrConfig, size[3])
	}
	return nil
}
