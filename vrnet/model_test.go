package vrnet_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/vrnet/base"
	"github.com/sugarme/vrnet/vrnet"
)

func TestBaseNet(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	net, err := vrnet.NewBaseNet(vs.Root(), vrnet.BaseNetConfig{
		Nin:      2,
		Nout:     8,
		NinLSTM:  32,
		NoutLSTM: 16,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(64), net.Bins())
	assert.Equal(t, int64(8), net.Nout())

	x := ts.MustRand([]int64{1, 2, 64, 32}, gotch.Float, gotch.CPU)
	require.NoError(t, net.CheckInput(x.MustSize()))

	for _, train := range []bool{false, true} {
		ts.NoGrad(func() {
			out := net.ForwardT(x, train)
			assert.Equal(t, []int64{1, 8, 64, 32}, out.MustSize())
			out.MustDrop()
		})
	}
}

func TestBaseNetCheckInput(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	net, err := vrnet.NewBaseNet(vs.Root(), vrnet.BaseNetConfig{
		Nin:      2,
		Nout:     4,
		NinLSTM:  16,
		NoutLSTM: 8,
	})
	require.NoError(t, err)

	assert.NoError(t, net.CheckInput([]int64{3, 2, 32, 48}))
	for _, size := range [][]int64{
		{1, 2, 64, 32}, // bins != 2*NinLSTM
		{1, 3, 32, 32}, // channels
		{1, 2, 32, 40}, // frames not aligned
		{2, 32, 32},
	} {
		assert.True(t, errors.Is(net.CheckInput(size), base.ErrConfig), "size %v", size)
	}
}

func TestBaseNetInvalidConfig(t *testing.T) {
	tests := []vrnet.BaseNetConfig{
		{Nin: 0, Nout: 8, NinLSTM: 32, NoutLSTM: 16},
		{Nin: 2, Nout: 0, NinLSTM: 32, NoutLSTM: 16},
		{Nin: 2, Nout: 8, NinLSTM: 0, NoutLSTM: 16},
		{Nin: 2, Nout: 8, NinLSTM: 32, NoutLSTM: 15},
		{Nin: 2, Nout: 8, NinLSTM: 32, NoutLSTM: 0},
		{Nin: 2, Nout: 8, NinLSTM: 32, NoutLSTM: 16, Dilations: []int64{4, 2, 8}},
		{Nin: 2, Nout: 8, NinLSTM: 32, NoutLSTM: 16, Dilations: []int64{4, 8}},
		{Nin: 2, Nout: 8, NinLSTM: 32, NoutLSTM: 16, Norm: base.Norm(7)},
	}
	for _, cfg := range tests {
		assert.True(t, errors.Is(cfg.Validate(), base.ErrConfig), "%+v", cfg)

		vs := nn.NewVarStore(gotch.CPU)
		_, err := vrnet.NewBaseNet(vs.Root(), cfg)
		assert.True(t, errors.Is(err, base.ErrConfig), "%+v", cfg)
		assert.Empty(t, vs.Variables(), "%+v", cfg)
	}
}

func TestCascadedNet(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	net, err := vrnet.NewCascadedNet(vs.Root(), 128, 8, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(65), net.OutputBins())

	x := ts.MustRand([]int64{1, 2, 65, 32}, gotch.Float, gotch.CPU)
	require.NoError(t, net.CheckInput(x.MustSize()))

	ts.NoGrad(func() {
		mask := net.ForwardT(x, false)
		assert.Equal(t, []int64{1, 2, 65, 32}, mask.MustSize())

		vals := mask.MustContiguous(true).Float64Values()
		for _, v := range vals {
			assert.True(t, v >= 0 && v <= 1, "mask value out of range: %v", v)
		}
		// the padded last bin replicates bin 63.
		last := 64 * 32
		for i := 0; i < 32; i++ {
			assert.Equal(t, vals[63*32+i], vals[last+i])
		}
	})
}

func TestCascadedNetAux(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	net, err := vrnet.NewCascadedNet(vs.Root(), 128, 8, 8)
	require.NoError(t, err)

	x := ts.MustRand([]int64{2, 2, 64, 16}, gotch.Float, gotch.CPU)
	mask, aux := net.ForwardAux(x, true)
	require.NotNil(t, aux)
	assert.Equal(t, []int64{2, 2, 65, 16}, mask.MustSize())
	assert.Equal(t, []int64{2, 2, 65, 16}, aux.MustSize())

	mask, aux = net.ForwardAux(x, false)
	assert.Nil(t, aux)
	assert.Equal(t, []int64{2, 2, 65, 16}, mask.MustSize())
}

func TestCascadedNetPredict(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	net, err := vrnet.NewCascadedNet(vs.Root(), 128, 8, 8)
	require.NoError(t, err)
	net.Offset = 8

	x := ts.MustRand([]int64{1, 2, 65, 32}, gotch.Float, gotch.CPU)
	ts.NoGrad(func() {
		mask, err := net.PredictMask(x)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 65, 16}, mask.MustSize())

		mag, err := net.Predict(x)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 65, 16}, mag.MustSize())
	})

	net.Offset = 16
	_, err = net.PredictMask(x)
	assert.True(t, errors.Is(err, base.ErrConfig))

	bad := ts.MustRand([]int64{1, 2, 65, 20}, gotch.Float, gotch.CPU)
	_, err = net.Predict(bad)
	assert.True(t, errors.Is(err, base.ErrConfig))
}

func TestCascadedNetInvalidConfig(t *testing.T) {
	tests := [][3]int64{
		{100, 8, 8},
		{0, 8, 8},
		{128, 6, 8},
		{128, 8, 6},
		{128, 0, 8},
	}
	for _, tt := range tests {
		vs := nn.NewVarStore(gotch.CPU)
		_, err := vrnet.NewCascadedNet(vs.Root(), tt[0], tt[1], tt[2])
		assert.True(t, errors.Is(err, base.ErrConfig), "%v", tt)
		assert.Empty(t, vs.Variables(), "%v", tt)
	}
}
