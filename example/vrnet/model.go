package main

import (
	"fmt"
	"log"

	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/vrnet/gan"
	"github.com/sugarme/vrnet/vrnet"
)

// buildModels creates the separation network and the discriminator in one
// var store and loads weights when a path was given.
func buildModels() (*nn.VarStore, *vrnet.CascadedNet, *gan.Discriminator, error) {
	vs := nn.NewVarStore(Device)
	net, err := vrnet.NewCascadedNet(vs.Root().Sub("generator"), NFFT, int64(Nout), int64(NoutLSTM))
	if err != nil {
		return nil, nil, nil, err
	}
	disc, err := gan.NewDiscriminator(vs.Root().Sub("discriminator"), 2, nil)
	if err != nil {
		return nil, nil, nil, err
	}

	if WeightPath != "" {
		missings, err := vs.LoadPartial(absPath(WeightPath))
		if err != nil {
			return nil, nil, nil, err
		}
		log.Printf("Num of missings: %v\n", len(missings))
		for _, m := range missings {
			log.Printf("Missing Var: %v\n", m)
		}
	}

	return vs, net, disc, nil
}

// randomInput returns a random [B 2 NFFT/2+1 Frames] magnitude spectrogram.
func randomInput(net *vrnet.CascadedNet) (*ts.Tensor, error) {
	size := []int64{int64(BatchSize), 2, net.OutputBins(), int64(Frames)}
	if err := net.CheckInput(size); err != nil {
		return nil, err
	}
	return ts.MustRand(size, gotch.Float, Device), nil
}

func runCheckModel() error {
	_, net, _, err := buildModels()
	if err != nil {
		return err
	}
	input, err := randomInput(net)
	if err != nil {
		return err
	}
	defer input.MustDrop()

	for i := 0; i < Iters; i++ {
		ts.NoGrad(func() {
			ram0 := usedRAM()
			mask := net.ForwardT(input, false)
			size := mask.MustSize()
			mask.MustDrop()
			ram1 := usedRAM()
			fmt.Printf("%02d- mask: %v\tLeak: %8.2fMB\n", i, size, float64(int64(ram1)-int64(ram0))/1024)
		})
	}

	return nil
}
