package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"

	"github.com/sugarme/gotch"
)

// flag variables
var (
	WeightPath string
	OutDir     string
	CSVPath    string
	Cuda       bool
	task       string
	Device     gotch.Device
)

// hyperparameters
var (
	NFFT      int64 // STFT size; the network sees NFFT/2+1 bins
	Nout      int   // base channel width
	NoutLSTM  int   // LSTM output width (both directions)
	Frames    int   // time frames of the random input
	BatchSize int
	Iters     int // forward passes for the model check
)

func init() {
	flag.StringVar(&WeightPath, "weights", "", "specify optional '.ot' weight file to load (partial loading)")
	flag.StringVar(&OutDir, "out", "./out", "specify output directory for rendered images")
	flag.StringVar(&CSVPath, "csv", "", "specify a file to write the variable summary as CSV")
	flag.BoolVar(&Cuda, "cuda", false, "specify whether using CUDA or not.")
	flag.StringVar(&task, "task", "model", "specify task to run: model, summary, mask")
	flag.Int64Var(&NFFT, "nfft", 2048, "specify STFT size (multiple of 64)")
	flag.IntVar(&Nout, "nout", 32, "specify base channel width")
	flag.IntVar(&NoutLSTM, "nout-lstm", 128, "specify LSTM output width")
	flag.IntVar(&Frames, "frames", 256, "specify number of time frames (multiple of 16)")
	flag.IntVar(&BatchSize, "batch", 1, "specify batch size")
	flag.IntVar(&Iters, "iters", 10, "specify number of forward passes for the model task")
}

func main() {
	flag.Parse()

	OutDir = absPath(OutDir)

	Device = gotch.CPU
	if Cuda {
		Device = gotch.NewCuda().CudaIfAvailable()
	}

	var err error
	switch task {
	case "model":
		err = runCheckModel()
	case "summary":
		err = runSummary()
	case "mask":
		err = runMask()
	default:
		err = fmt.Errorf("unknown task %q. Please specify valid 'task' flag to run", task)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// helper to get absolute file path
func absPath(p string) string {
	fullpath, err := filepath.Abs(p)
	if err != nil {
		log.Fatal(err)
	}
	return fullpath
}
