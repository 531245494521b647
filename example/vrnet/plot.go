package main

import (
	"fmt"
	"path/filepath"

	ts "github.com/sugarme/gotch/tensor"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// saveHistogram plots the distribution of all values in x.
func saveHistogram(x *ts.Tensor, title, name string, bins int) error {
	c := x.MustContiguous(false)
	vals := c.Float64Values()
	c.MustDrop()

	p, err := plot.New()
	if err != nil {
		return err
	}

	v := make(plotter.Values, len(vals))
	copy(v, vals)

	h, err := plotter.NewHist(v, bins)
	if err != nil {
		return err
	}
	p.Title.Text = title
	p.X.Label.Text = "value"
	p.Y.Label.Text = "count"
	p.Add(h)

	path := filepath.Join(OutDir, name)
	if err := p.Save(4*vg.Inch, 4*vg.Inch, path); err != nil {
		return err
	}
	fmt.Printf("Saved %v\n", path)

	return nil
}
