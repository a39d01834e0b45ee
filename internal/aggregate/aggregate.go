package aggregate

import (
	"fmt"
	"math"
	"sort"

	"github.com/Centaurus99/Spearmint/internal/perf"
)

// Key identifies one flow of one scheme.
type Key struct {
	Scheme string
	Flow   int
}

func (k Key) String() string {
	return fmt.Sprintf("%s/flow-%d", k.Scheme, k.Flow)
}

// Metric is the median throughput and delay over the available trials.
// Both values are NaN when no trial produced a sample.
type Metric struct {
	Throughput float64
	Delay      float64
	Samples    int
}

func Undefined() Metric {
	return Metric{Throughput: math.NaN(), Delay: math.NaN()}
}

func (m Metric) Defined() bool {
	return !math.IsNaN(m.Throughput) && !math.IsNaN(m.Delay)
}

type Table map[Key]Metric

// Keys returns the table's keys ordered by scheme, then flow.
func (t Table) Keys() []Key {
	keys := make([]Key, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Scheme != keys[j].Scheme {
			return keys[i].Scheme < keys[j].Scheme
		}
		return keys[i].Flow < keys[j].Flow
	})
	return keys
}

// Aggregate collapses repeated trials into one median metric per (scheme,
// flow). Records without data are skipped. Every expected key is present in
// the result, as an undefined metric if nothing was sampled for it.
func Aggregate(records []perf.Record, expect ...Key) Table {
	type samples struct {
		tput  []float64
		delay []float64
	}
	byKey := map[Key]*samples{}

	for _, r := range records {
		if !r.HasData() {
			continue
		}
		for flow, fs := range r.Flows {
			k := Key{Scheme: r.Scheme, Flow: flow}
			s, ok := byKey[k]
			if !ok {
				s = &samples{}
				byKey[k] = s
			}
			if !math.IsNaN(fs.Throughput) {
				s.tput = append(s.tput, fs.Throughput)
			}
			if !math.IsNaN(fs.Delay) {
				s.delay = append(s.delay, fs.Delay)
			}
		}
	}

	table := make(Table, len(byKey)+len(expect))
	for _, k := range expect {
		table[k] = Undefined()
	}
	for k, s := range byKey {
		table[k] = Metric{
			Throughput: Median(s.tput),
			Delay:      Median(s.delay),
			Samples:    min(len(s.tput), len(s.delay)),
		}
	}
	return table
}

// Median returns the middle value, or the mean of the two middle values for
// an even count. It returns NaN for an empty slice.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
