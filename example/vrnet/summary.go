package main

import (
	"fmt"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/sugarme/gotch/nn"
)

// varTable builds a dataframe of all variables: name, shape and element count,
// sorted by name. It also returns the total element count.
func varTable(vs *nn.VarStore) (dataframe.DataFrame, int) {
	vars := vs.Variables()
	names := make([]string, 0, len(vars))
	shapes := make([]string, 0, len(vars))
	numels := make([]int, 0, len(vars))
	total := 0
	for name, v := range vars {
		size := v.MustSize()
		numel := 1
		for _, d := range size {
			numel *= int(d)
		}
		names = append(names, name)
		shapes = append(shapes, fmt.Sprint(size))
		numels = append(numels, numel)
		total += numel
	}

	df := dataframe.New(
		series.New(names, series.String, "name"),
		series.New(shapes, series.String, "shape"),
		series.New(numels, series.Int, "numel"),
	)

	return df.Arrange(dataframe.Sort("name")), total
}

func runSummary() error {
	vs, _, _, err := buildModels()
	if err != nil {
		return err
	}

	df, total := varTable(vs)
	if err := df.Err; err != nil {
		return err
	}
	fmt.Println(df.String())
	fmt.Printf("Variables: %d\tParameters: %d\n", df.Nrow(), total)

	if CSVPath == "" {
		return nil
	}
	f, err := os.Create(absPath(CSVPath))
	if err != nil {
		return err
	}
	defer f.Close()

	return df.WriteCSV(f)
}
