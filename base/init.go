package base

import (
	"github.com/sugarme/gotch/nn"
)

// ParamKind identifies a learnable tensor so an InitFn can pick an
// initializer for it.
type ParamKind int

const (
	ConvWeight ParamKind = iota
	ConvBias
	NormWeight
	NormBias
	DenseWeight
)

func (k ParamKind) String() string {
	switch k {
	case ConvWeight:
		return "conv-weight"
	case ConvBias:
		return "conv-bias"
	case NormWeight:
		return "norm-weight"
	case NormBias:
		return "norm-bias"
	case DenseWeight:
		return "dense-weight"
	default:
		return "unknown"
	}
}

// InitFn maps a parameter kind to the initializer that fills it.
// The returned nn.Init receives the parameter shape when the variable is
// created, so an InitFn is a pure (shape, kind) -> values policy.
type InitFn func(kind ParamKind) nn.Init

// DefaultInit is the initialization policy used when a config leaves
// Init nil.
func DefaultInit(kind ParamKind) nn.Init {
	switch kind {
	case NormWeight:
		return nn.NewConstInit(1.0)
	case NormBias, ConvBias:
		return nn.NewConstInit(0.0)
	default:
		return nn.NewKaimingUniformInit()
	}
}

// Get returns the initializer for kind, falling back to DefaultInit when
// fn is nil.
func (fn InitFn) Get(kind ParamKind) nn.Init {
	if fn == nil {
		return DefaultInit(kind)
	}
	return fn(kind)
}
