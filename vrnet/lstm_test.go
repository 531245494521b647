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

func TestLSTMModule(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	m, err := vrnet.NewLSTMModule(vs.Root(), 8, 20, 16, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(20), m.NinLSTM())

	x := ts.MustRand([]int64{2, 8, 20, 10}, gotch.Float, gotch.CPU)
	require.NoError(t, m.CheckInput(x.MustSize()))

	out := m.ForwardT(x, false)
	assert.Equal(t, []int64{2, 1, 20, 10}, out.MustSize())
}

func TestLSTMModuleDenseStages(t *testing.T) {
	stages := []vrnet.DenseStage{vrnet.DenseNormActiv, vrnet.DenseActiv, vrnet.DenseActivNorm}
	for _, stage := range stages {
		t.Run(stage.String(), func(t *testing.T) {
			vs := nn.NewVarStore(gotch.CPU)
			cfg := vrnet.DefaultLSTMConfig()
			cfg.Dense = stage
			m, err := vrnet.NewLSTMModule(vs.Root(), 4, 12, 8, cfg)
			require.NoError(t, err)

			_, hasBN := vs.Variables()["dense_bn.weight"]
			assert.Equal(t, stage != vrnet.DenseActiv, hasBN)

			x := ts.MustRand([]int64{3, 4, 12, 5}, gotch.Float, gotch.CPU)
			for _, train := range []bool{true, false} {
				out := m.ForwardT(x, train)
				assert.Equal(t, []int64{3, 1, 12, 5}, out.MustSize())
				out.MustDrop()
			}
		})
	}
}

func TestLSTMModuleReLUOutput(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	cfg := vrnet.DefaultLSTMConfig()
	cfg.Dense = vrnet.DenseActiv
	m, err := vrnet.NewLSTMModule(vs.Root(), 2, 6, 4, cfg)
	require.NoError(t, err)

	x := ts.MustRand([]int64{1, 2, 6, 7}, gotch.Float, gotch.CPU)
	out := m.ForwardT(x, false).MustContiguous(true)
	for _, v := range out.Float64Values() {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestLSTMModuleCheckInput(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	m, err := vrnet.NewLSTMModule(vs.Root(), 8, 20, 16, nil)
	require.NoError(t, err)

	for _, size := range [][]int64{
		{2, 8, 21, 10},
		{2, 4, 20, 10},
		{8, 20, 10},
	} {
		assert.True(t, errors.Is(m.CheckInput(size), base.ErrConfig), "size %v", size)
	}
}

func TestLSTMModuleInvalidConfig(t *testing.T) {
	tests := []struct {
		ninConv, ninLSTM, noutLSTM int64
		stage                      vrnet.DenseStage
	}{
		{8, 20, 15, vrnet.DenseNormActiv},
		{8, 20, 0, vrnet.DenseNormActiv},
		{8, 0, 16, vrnet.DenseNormActiv},
		{0, 20, 16, vrnet.DenseNormActiv},
		{8, 20, 16, vrnet.DenseStage(9)},
	}
	for _, tt := range tests {
		vs := nn.NewVarStore(gotch.CPU)
		cfg := vrnet.DefaultLSTMConfig()
		cfg.Dense = tt.stage
		_, err := vrnet.NewLSTMModule(vs.Root(), tt.ninConv, tt.ninLSTM, tt.noutLSTM, cfg)
		assert.True(t, errors.Is(err, base.ErrConfig), "%+v", tt)
	}
}
