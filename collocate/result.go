package collocate

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Pair is one matched (sample_a, sample_b) row. CollocationIndex is
// strictly increasing in emission order and never reassigned; removing
// a pair during nearest-neighbour reduction leaves a gap.
type Pair struct {
	CollocationIndex int64
	ProductA         string
	SampleA          int32
	ProductB         string
	SampleB          int32
	Differences      []float64
}

// CollocationResult is the append-only, ordered store of matched pairs,
// with a header fixing the arity and identity of the difference
// columns.
type CollocationResult struct {
	DifferenceNames []string
	DifferenceUnits []string
	Pairs           []Pair
}

// WriteCSV persists the result as: collocation_index, source_product_a,
// index_a, source_product_b,
// index_b, then one column per difference named "name [unit]" and
// suffixed "_absdiff" (except point_distance), in ascending
// collocation_index order.
func (r *CollocationResult) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{"collocation_index", "source_product_a", "index_a", "source_product_b", "index_b"}
	for i, name := range r.DifferenceNames {
		col := name
		if name != "point_distance" {
			col += "_absdiff"
		}
		col += fmt.Sprintf(" [%s]", r.DifferenceUnits[i])
		header = append(header, col)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, p := range r.Pairs {
		row := []string{
			strconv.FormatInt(p.CollocationIndex, 10),
			p.ProductA,
			strconv.FormatInt(int64(p.SampleA), 10),
			p.ProductB,
			strconv.FormatInt(int64(p.SampleB), 10),
		}
		for _, d := range p.Differences {
			row = append(row, strconv.FormatFloat(d, 'g', 17, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
