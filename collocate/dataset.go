package collocate

import (
	"sort"

	harp "github.com/stcorp/harp-go"
)

// ProductMeta is one entry of a Dataset: enough to sort and to load the
// product it describes, without loading it. DatetimeStart/Stop are
// seconds since an arbitrary but consistent epoch.
type ProductMeta struct {
	SourceProduct string
	Filename      string
	DatetimeStart float64
	DatetimeStop  float64
}

// Dataset is an ordered list of product-metadata records. Match sorts
// its own copies of both datasets with Sort and iterates them in that
// order, which fixes collocation_index assignment.
type Dataset struct {
	Products []ProductMeta
}

// Sort orders Products by (DatetimeStart, DatetimeStop) ascending, ties
// broken by SourceProduct, in place.
func (d *Dataset) Sort() {
	sort.SliceStable(d.Products, func(i, j int) bool {
		a, b := d.Products[i], d.Products[j]
		if a.DatetimeStart != b.DatetimeStart {
			return a.DatetimeStart < b.DatetimeStart
		}
		if a.DatetimeStop != b.DatetimeStop {
			return a.DatetimeStop < b.DatetimeStop
		}
		return a.SourceProduct < b.SourceProduct
	})
}

// Loader loads the full Product a ProductMeta describes. A load failure
// is not fatal to the matchup: the sweep logs it and skips the product.
type Loader interface {
	Load(meta ProductMeta) (*harp.Product, error)
}

// LoaderFunc adapts a function to a Loader.
type LoaderFunc func(meta ProductMeta) (*harp.Product, error)

func (f LoaderFunc) Load(meta ProductMeta) (*harp.Product, error) { return f(meta) }

// NNSide names which dataset's samples a NearestNeighbour directive
// reduces: x reduces per sample of dataset A, y reduces per sample of
// dataset B.
type NNSide int

const (
	ReduceA NNSide = iota
	ReduceB
)

// NearestNeighbour is a post-match reduction directive: among all pairs
// sharing the same (product, sample) on Side, keep only the one with
// the smallest difference for the named criterion. At most one
// directive per side; the first declared runs online during the sweep,
// the second (if present) runs as a post-filter.
type NearestNeighbour struct {
	Criterion string
	Side      NNSide
}
