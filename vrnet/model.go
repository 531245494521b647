package vrnet

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/vrnet/base"
	"github.com/sugarme/vrnet/encoder"
)

// BaseNetConfig configures a BaseNet.
type BaseNetConfig struct {
	Nin       int64 // input channels
	Nout      int64 // base width; encoder stages use Nout*{1,2,4,6,8}
	NinLSTM   int64 // frequency bins at the second encoder stage (input bins / 2)
	NoutLSTM  int64
	Dilations []int64
	Norm      base.Norm
	Init      base.InitFn
}

// BaseNet is an encoder/decoder separation network with an ASPP bottleneck
// and an LSTM refiner on the second decoder stage.
//
//	enc1 ---------------------------------------- dec1 (+ lstm channel)
//	    enc2 ---------------------------- dec2 -> lstm
//	        enc3 ---------------- dec3
//	            enc4 ---- dec4
//	                enc5 -> aspp
type BaseNet struct {
	encoder  *encoder.Ladder
	aspp     *ASPP
	dec4     *DecoderLayer
	dec3     *DecoderLayer
	dec2     *DecoderLayer
	lstmDec2 *LSTMModule
	dec1     *DecoderLayer

	nin     int64
	nout    int64
	ninLSTM int64
}

// Validate checks every width and rate of the config so that NewBaseNet
// fails before any variable is created.
func (c BaseNetConfig) Validate() error {
	switch {
	case c.Nin <= 0 || c.Nout <= 0:
		return fmt.Errorf("%w: base net channels must be positive, got nin=%d nout=%d", base.ErrConfig, c.Nin, c.Nout)
	case c.NinLSTM <= 0:
		return fmt.Errorf("%w: base net lstm bins must be positive, got %d", base.ErrConfig, c.NinLSTM)
	case c.NoutLSTM <= 0 || c.NoutLSTM%2 != 0:
		return fmt.Errorf("%w: base net lstm width must be positive and even, got %d", base.ErrConfig, c.NoutLSTM)
	case c.Norm != base.WithNorm && c.Norm != base.NoNorm:
		return fmt.Errorf("%w: unknown norm mode %d", base.ErrConfig, int(c.Norm))
	}
	if c.Dilations != nil {
		return (&ASPPConfig{Dilations: c.Dilations}).validate()
	}
	return nil
}

// NewBaseNet creates a BaseNet. Channel sums across every skip connection
// are checked before returning.
func NewBaseNet(p *nn.Path, cfg BaseNetConfig) (*BaseNet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dilations := cfg.Dilations
	if dilations == nil {
		dilations = DefaultDilations()
	}

	enc, err := encoder.NewLadder(p, cfg.Nin, cfg.Nout, nil, cfg.Norm, cfg.Init)
	if err != nil {
		return nil, err
	}
	ch := enc.Channels() // e1..e5

	aspp, err := NewASPP(p.Sub("aspp"), ch[4], ch[4], &ASPPConfig{
		Dilations: dilations,
		Activ:     base.ReLU,
		Dropout:   true,
		Norm:      cfg.Norm,
		Init:      cfg.Init,
	})
	if err != nil {
		return nil, err
	}

	decoder := func(name string, nin, nout int64) (*DecoderLayer, error) {
		dcfg := DefaultDecoderConfig()
		dcfg.Norm = cfg.Norm
		dcfg.Init = cfg.Init
		return NewDecoderLayer(p.Sub(name), nin, nout, dcfg)
	}

	dec4, err := decoder("dec4", ch[4]+ch[3], ch[3])
	if err != nil {
		return nil, err
	}
	dec3, err := decoder("dec3", ch[3]+ch[2], ch[2])
	if err != nil {
		return nil, err
	}
	dec2, err := decoder("dec2", ch[2]+ch[1], ch[1])
	if err != nil {
		return nil, err
	}

	lcfg := DefaultLSTMConfig()
	lcfg.Norm = cfg.Norm
	lcfg.Init = cfg.Init
	lstm, err := NewLSTMModule(p.Sub("lstm_dec2"), ch[1], cfg.NinLSTM, cfg.NoutLSTM, lcfg)
	if err != nil {
		return nil, err
	}

	dec1, err := decoder("dec1", ch[1]+1+ch[0], ch[0])
	if err != nil {
		return nil, err
	}

	n := &BaseNet{
		encoder:  enc,
		aspp:     aspp,
		dec4:     dec4,
		dec3:     dec3,
		dec2:     dec2,
		lstmDec2: lstm,
		dec1:     dec1,
		nin:      cfg.Nin,
		nout:     cfg.Nout,
		ninLSTM:  cfg.NinLSTM,
	}
	if err := n.checkWiring(ch); err != nil {
		return nil, err
	}

	return n, nil
}

// checkWiring verifies that each decoder's input width equals the upsampled
// channels plus the skip channels it receives.
func (n *BaseNet) checkWiring(ch []int64) error {
	links := []struct {
		name     string
		dec      *DecoderLayer
		up, skip int64
	}{
		{"dec4", n.dec4, n.aspp.Nout(), ch[3]},
		{"dec3", n.dec3, n.dec4.Nout(), ch[2]},
		{"dec2", n.dec2, n.dec3.Nout(), ch[1]},
		{"dec1", n.dec1, n.dec2.Nout() + 1, ch[0]},
	}
	for _, l := range links {
		if l.dec.Nin() != l.up+l.skip {
			return fmt.Errorf("%w: %s expects %d channels, wiring provides %d+%d", base.ErrConfig, l.name, l.dec.Nin(), l.up, l.skip)
		}
	}
	return nil
}

// ForwardT implements ts.ModuleT for BaseNet.
func (n *BaseNet) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	// E.g. x [1 2 64 32], nout = 8
	features := n.encoder.ForwardAll(x, train)
	e1, e2, e3, e4, e5 := features[0], features[1], features[2], features[3], features[4]

	h := n.aspp.ForwardT(e5, train)         // [1 64  4  2]
	h4 := n.dec4.ForwardSkip(h, e4, train)  // [1 48  8  4]
	h3 := n.dec3.ForwardSkip(h4, e3, train) // [1 32 16  8]
	h2 := n.dec2.ForwardSkip(h3, e2, train) // [1 16 32 16]
	lstm := n.lstmDec2.ForwardT(h2, train)  // [1  1 32 16]

	cat := ts.MustCat([]ts.Tensor{*h2, *lstm}, 1)
	out := n.dec1.ForwardSkip(cat, e1, train) // [1  8 64 32]

	for _, f := range features {
		f.MustDrop()
	}
	h.MustDrop()
	h4.MustDrop()
	h3.MustDrop()
	h2.MustDrop()
	lstm.MustDrop()
	cat.MustDrop()

	return out
}

// Nout returns the output channel count.
func (n *BaseNet) Nout() int64 { return n.nout }

// Bins returns the frequency-bin count the network was built for.
func (n *BaseNet) Bins() int64 { return n.ninLSTM * 2 }

// CheckInput reports whether a [N C F T] input can pass through the network:
// F must match the LSTM width and both spatial sizes must halve cleanly at
// every encoder stage so the skip crops line up.
func (n *BaseNet) CheckInput(size []int64) error {
	if len(size) != 4 {
		return fmt.Errorf("%w: base net expects [N C F T], got %v", base.ErrConfig, size)
	}
	if size[1] != n.nin {
		return fmt.Errorf("%w: base net expects %d channels, got %d", base.ErrConfig, n.nin, size[1])
	}
	if size[2] != n.Bins() {
		return fmt.Errorf("%w: base net built for %d bins, got %d", base.ErrConfig, n.Bins(), size[2])
	}
	align := int64(1) << uint(n.encoder.Depth()-1)
	if size[2]%align != 0 || size[3]%align != 0 {
		return fmt.Errorf("%w: spatial size %dx%d is not a multiple of %d", base.ErrConfig, size[2], size[3], align)
	}
	return nil
}
