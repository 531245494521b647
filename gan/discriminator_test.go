package gan_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/vrnet/base"
	"github.com/sugarme/vrnet/gan"
)

func TestDiscriminatorChannels(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	d, err := gan.NewDiscriminator(vs.Root(), 1, nil)
	require.NoError(t, err)

	want := []int64{32, 32, 64, 64, 128, 128, 256, 256, 1}
	assert.Equal(t, want, d.Channels())
}

func TestDiscriminatorShapes(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	d, err := gan.NewDiscriminator(vs.Root(), 2, nil)
	require.NoError(t, err)

	tests := []struct {
		h, w   int64
		wh, ww int64
	}{
		{64, 64, 4, 4},
		{33, 33, 3, 3},
		{65, 17, 5, 2},
		{16, 8, 1, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dx%d", tt.h, tt.w), func(t *testing.T) {
			h, w := d.OutSize(tt.h, tt.w)
			assert.Equal(t, [2]int64{tt.wh, tt.ww}, [2]int64{h, w})

			x := ts.MustRand([]int64{2, 2, tt.h, tt.w}, gotch.Float, gotch.CPU)
			ts.NoGrad(func() {
				out := d.ForwardT(x, false)
				assert.Equal(t, []int64{2, 1, tt.wh, tt.ww}, out.MustSize())
				out.MustDrop()
			})
			x.MustDrop()
		})
	}
}

// Raw logits: with no final activation the score map takes negative values.
func TestDiscriminatorLogits(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	cfg := gan.DefaultDiscriminatorConfig()
	cfg.Init = func(kind base.ParamKind) nn.Init {
		if kind == base.ConvBias {
			return nn.NewConstInit(-1.0)
		}
		return base.DefaultInit(kind)
	}
	d, err := gan.NewDiscriminator(vs.Root(), 1, cfg)
	require.NoError(t, err)

	x := ts.MustZeros([]int64{1, 1, 16, 16}, gotch.Float, gotch.CPU)
	out := d.ForwardT(x, false).MustContiguous(true)
	for _, v := range out.Float64Values() {
		assert.Less(t, v, 0.0)
	}
}

func TestDiscriminatorInvalidConfig(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	_, err := gan.NewDiscriminator(vs.Root(), 0, nil)
	assert.True(t, errors.Is(err, base.ErrConfig))
}

func TestDiscriminatorWidthsIsolated(t *testing.T) {
	w := gan.Widths()
	w[0] = 1

	vs := nn.NewVarStore(gotch.CPU)
	d, err := gan.NewDiscriminator(vs.Root(), 2, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(32), d.Channels()[0])
	assert.Equal(t, []int64{32, 64, 128, 256}, gan.Widths())
}

func TestDiscriminatorVariableNames(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	_, err := gan.NewDiscriminator(vs.Root().Sub("discriminator"), 2, nil)
	require.NoError(t, err)

	vars := vs.Variables()
	for i := 0; i < 8; i++ {
		assert.Contains(t, vars, fmt.Sprintf("discriminator.model.%d.conv.weight", i))
	}
	assert.Contains(t, vars, "discriminator.model.8.weight")
	assert.Contains(t, vars, "discriminator.model.8.bias")
}
