package encoder

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/vrnet/base"
)

// Ladder is a downsampling encoder: a stride 1 head conv block followed by
// stride 2 encoder layers. Stage i has nout*Widths[i] channels.
//
//	enc1 [N  nout   F     T   ]
//	enc2 [N  nout*2 F/2   T/2 ]
//	enc3 [N  nout*4 F/4   T/4 ]
//	enc4 [N  nout*6 F/8   T/8 ]
//	enc5 [N  nout*8 F/16  T/16]
type Ladder struct {
	head   *base.ConvBlock
	layers []*Layer
	widths []int64
}

var defaultWidths = []int64{1, 2, 4, 6, 8}

// DefaultWidths returns the channel multipliers of the five encoder stages.
func DefaultWidths() []int64 {
	return append([]int64(nil), defaultWidths...)
}

// NewLadder creates a Ladder for nin input channels. widths[0] applies to
// the head block; each further entry adds a stride 2 layer.
func NewLadder(p *nn.Path, nin, nout int64, widths []int64, norm base.Norm, policy base.InitFn) (*Ladder, error) {
	if len(widths) == 0 {
		widths = defaultWidths
	}
	for i, w := range widths {
		if w <= 0 {
			return nil, fmt.Errorf("%w: encoder width %d must be positive, got %d", base.ErrConfig, i, w)
		}
	}
	if nout <= 0 || nin <= 0 {
		return nil, fmt.Errorf("%w: encoder channels must be positive, got nin=%d nout=%d", base.ErrConfig, nin, nout)
	}

	headCfg := base.DefaultConvBlockConfig()
	headCfg.Norm = norm
	headCfg.Init = policy
	head, err := base.NewConvBlock(p.Sub("enc1"), nin, nout*widths[0], headCfg)
	if err != nil {
		return nil, err
	}

	layers := make([]*Layer, 0, len(widths)-1)
	for i := 1; i < len(widths); i++ {
		cfg := DefaultLayerConfig()
		cfg.Stride = 2
		cfg.Norm = norm
		cfg.Init = policy
		layer, err := NewLayer(p.Sub(fmt.Sprintf("enc%d", i+1)), nout*widths[i-1], nout*widths[i], cfg)
		if err != nil {
			return nil, err
		}
		layers = append(layers, layer)
	}

	ws := make([]int64, len(widths))
	copy(ws, widths)

	return &Ladder{head: head, layers: layers, widths: ws}, nil
}

// ForwardAll implements Encoder interface for Ladder.
func (l *Ladder) ForwardAll(x *ts.Tensor, train bool) []*ts.Tensor {
	features := make([]*ts.Tensor, 0, len(l.layers)+1)
	h := l.head.ForwardT(x, train)
	features = append(features, h)
	for _, layer := range l.layers {
		h = layer.ForwardT(h, train)
		features = append(features, h)
	}

	return features
}

// Channels returns the channel count of every stage output.
func (l *Ladder) Channels() []int64 {
	out := make([]int64, 0, len(l.layers)+1)
	out = append(out, l.head.Nout())
	for _, layer := range l.layers {
		out = append(out, layer.Nout())
	}
	return out
}

// Sizes returns the spatial size of every stage output for an h x w input.
func (l *Ladder) Sizes(h, w int64) [][2]int64 {
	out := make([][2]int64, 0, len(l.layers)+1)
	h, w = l.head.OutSize(h, w)
	out = append(out, [2]int64{h, w})
	for _, layer := range l.layers {
		h, w = layer.OutSize(h, w)
		out = append(out, [2]int64{h, w})
	}
	return out
}

// Depth returns the number of stages.
func (l *Ladder) Depth() int { return len(l.layers) + 1 }
