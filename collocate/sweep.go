package collocate

import (
	"context"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	harp "github.com/stcorp/harp-go"
	"github.com/stcorp/harp-go/harperr"
)

// nnEpsilon bounds the relative/absolute tolerance nearest-neighbour
// reduction uses to decide a tie: two candidate differences within
// nnEpsilon of each other keep the earlier collocation_index rather
// than flip-flopping on floating-point noise.
const nnEpsilon = 1e-9

func nnBetter(candidate, existing float64) bool {
	if floats.EqualWithinAbsOrRel(candidate, existing, nnEpsilon, nnEpsilon) {
		return false
	}
	return candidate < existing
}

// Matcher runs the time-sweep matchup between two datasets. It is
// single-threaded and synchronous: no field is safe to share across
// concurrent Match calls with different datasets, since Loader
// implementations are free to cache by pointer.
type Matcher struct {
	Criteria []Criterion
	NN       []NearestNeighbour // 0, 1, or 2 entries; at most one per side
	Loader   Loader
	Log      logrus.FieldLogger
}

type key struct {
	product string
	sample  int32
}

func nnKey(side NNSide, p Pair) key {
	if side == ReduceA {
		return key{p.ProductA, p.SampleA}
	}
	return key{p.ProductB, p.SampleB}
}

// orderedCriteria returns Criteria reordered so a DatetimeCriterion (if
// any) evaluates first and a PointDistanceCriterion (if any) evaluates
// last, preserving the declared relative order of everything else.
func (m *Matcher) orderedCriteria() []Criterion {
	var dt, pd []Criterion
	var rest []Criterion
	for _, c := range m.Criteria {
		switch c.(type) {
		case DatetimeCriterion:
			dt = append(dt, c)
		case PointDistanceCriterion:
			pd = append(pd, c)
		default:
			rest = append(rest, c)
		}
	}
	out := make([]Criterion, 0, len(m.Criteria))
	out = append(out, dt...)
	out = append(out, rest...)
	out = append(out, pd...)
	return out
}

func (m *Matcher) deltaT() (float64, error) {
	for _, c := range m.Criteria {
		if dt, ok := c.(DatetimeCriterion); ok {
			return dt.thresholdSeconds()
		}
	}
	return math.Inf(1), nil
}

func (m *Matcher) log() logrus.FieldLogger {
	if m.Log == nil {
		return logrus.StandardLogger()
	}
	return m.Log
}

func windowsOverlap(aStart, aStop, bStart, bStop float64) bool {
	return aStart <= bStop && bStart <= aStop
}

// Match sweeps a against b and returns the resulting pairs. ctx is
// checked cooperatively between inner-loop iterations and on entry to
// each outer-loop iteration; a cancelled context aborts with a
// harperr.Cancelled error, releasing all loaded products.
func (m *Matcher) Match(ctx context.Context, a, b Dataset) (*CollocationResult, error) {
	sortedA := append([]ProductMeta(nil), a.Products...)
	sortedB := append([]ProductMeta(nil), b.Products...)
	(&Dataset{Products: sortedA}).Sort()
	(&Dataset{Products: sortedB}).Sort()

	criteria := m.orderedCriteria()
	deltaT, err := m.deltaT()
	if err != nil {
		return nil, err
	}

	result := &CollocationResult{}
	for _, c := range criteria {
		result.DifferenceNames = append(result.DifferenceNames, c.Name())
		result.DifferenceUnits = append(result.DifferenceUnits, c.Unit())
	}

	var onlineNN, postNN *NearestNeighbour
	if len(m.NN) > 0 {
		onlineNN = &m.NN[0]
	}
	if len(m.NN) > 1 {
		postNN = &m.NN[1]
	}
	bestOnline := map[key]int{} // nnKey -> index into result.Pairs

	var nextIndex int64
	cache := map[int]*harp.Product{}

	for ai, aMeta := range sortedA {
		if err := ctx.Err(); err != nil {
			return nil, harperr.Cancelled
		}
		pa, err := m.Loader.Load(aMeta)
		if err != nil {
			m.log().WithError(err).WithField("product", aMeta.SourceProduct).Warn("skipping product a: load failed")
			continue
		}
		ta, hasTime := pa.TimeExtent()
		if !hasTime || ta == 0 {
			continue
		}
		winStart := aMeta.DatetimeStart - deltaT
		winStop := aMeta.DatetimeStop + deltaT

		for bi, bMeta := range sortedB {
			if err := ctx.Err(); err != nil {
				return nil, harperr.Cancelled
			}
			if !windowsOverlap(winStart, winStop, bMeta.DatetimeStart, bMeta.DatetimeStop) {
				delete(cache, bi)
				continue
			}
			pb, ok := cache[bi]
			if !ok {
				loaded, err := m.Loader.Load(bMeta)
				if err != nil {
					m.log().WithError(err).WithField("product", bMeta.SourceProduct).Warn("skipping product b: load failed")
					continue
				}
				pb = loaded
				cache[bi] = pb
			}
			tb, hasTimeB := pb.TimeExtent()
			if !hasTimeB || tb == 0 {
				continue
			}

			for ia := 0; ia < ta; ia++ {
				for ib := 0; ib < tb; ib++ {
					diffs := make([]float64, len(criteria))
					passed := true
					for ci, c := range criteria {
						d, ok, err := c.Evaluate(pa, ia, pb, ib)
						if err != nil {
							return nil, err
						}
						diffs[ci] = d
						if !ok {
							passed = false
							break
						}
					}
					if !passed {
						continue
					}
					pair := Pair{
						ProductA:    pa.SourceProduct,
						SampleA:     int32(sampleIndex(pa, ia)),
						ProductB:    pb.SourceProduct,
						SampleB:     int32(sampleIndex(pb, ib)),
						Differences: diffs,
					}
					idx := nextIndex
					nextIndex++
					if onlineNN == nil {
						pair.CollocationIndex = idx
						result.Pairs = append(result.Pairs, pair)
						continue
					}
					criterionIdx := criterionIndexByName(criteria, onlineNN.Criterion)
					k := nnKey(onlineNN.Side, pair)
					if existingIdx, ok := bestOnline[k]; ok {
						existing := result.Pairs[existingIdx]
						if nnBetter(diffs[criterionIdx], existing.Differences[criterionIdx]) {
							pair.CollocationIndex = idx
							result.Pairs[existingIdx] = pair
						} // else: candidate discarded, idx left as a gap
					} else {
						pair.CollocationIndex = idx
						result.Pairs = append(result.Pairs, pair)
						bestOnline[k] = len(result.Pairs) - 1
					}
				}
			}
		}
		_ = ai
	}

	if postNN != nil {
		result.Pairs = reduceNearestNeighbour(result.Pairs, criteria, *postNN)
	}
	sort.Slice(result.Pairs, func(i, j int) bool {
		return result.Pairs[i].CollocationIndex < result.Pairs[j].CollocationIndex
	})
	return result, nil
}

func sampleIndex(p *harp.Product, row int) int {
	if idx, ok := p.Get("index"); ok {
		return idx.GetInt(row)
	}
	return row
}

func criterionIndexByName(criteria []Criterion, name string) int {
	for i, c := range criteria {
		if c.Name() == name {
			return i
		}
	}
	return -1
}

// reduceNearestNeighbour keeps, for every (product, sample) on dir's
// side, only the pair with the smallest difference for dir's criterion;
// ties keep the pair with the earlier collocation_index. Survivors keep
// their input order.
func reduceNearestNeighbour(pairs []Pair, criteria []Criterion, dir NearestNeighbour) []Pair {
	ci := criterionIndexByName(criteria, dir.Criterion)
	best := map[key]Pair{}
	for _, p := range pairs {
		k := nnKey(dir.Side, p)
		cur, ok := best[k]
		if !ok || nnBetter(p.Differences[ci], cur.Differences[ci]) ||
			(!nnBetter(cur.Differences[ci], p.Differences[ci]) && p.CollocationIndex < cur.CollocationIndex) {
			best[k] = p
		}
	}
	keep := map[int64]bool{}
	for _, p := range best {
		keep[p.CollocationIndex] = true
	}
	out := make([]Pair, 0, len(best))
	for _, p := range pairs {
		if keep[p.CollocationIndex] {
			out = append(out, p)
		}
	}
	return out
}
