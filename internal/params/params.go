package params

import (
	"errors"
	"fmt"
	"math"
)

// ErrNonFinite is returned for a vector coordinate that is NaN or infinite.
var ErrNonFinite = errors.New("coordinate is not a finite number")

// Dim indexes one dimension of the search space.
type Dim int

const (
	Bandwidth Dim = iota
	Delay
	UplinkQueue
	UplinkLoss
	NumDims
)

var dimNames = [NumDims]string{"bandwidth", "delay", "uplink_queue", "uplink_loss"}

func (d Dim) String() string {
	if d < 0 || d >= NumDims {
		return fmt.Sprintf("dim(%d)", int(d))
	}
	return dimNames[d]
}

// linear reports whether the dimension uses the linear scaling law.
func (d Dim) linear() bool {
	return d != UplinkLoss
}

const (
	// eps keeps unit coordinates off the exact cube faces.
	eps = 1.0 / (1 << 15)
	// edge is the distance from a face inside which the entropy penalty applies.
	edge = 1.0 / 32.0
)

// Vector is a point in the optimizer's unit hypercube.
type Vector [NumDims]float64

// Validate rejects NaN and infinite coordinates. Clamping handles any other
// value, including ones outside [0, 1].
func (v Vector) Validate() error {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%s=%v: %w", Dim(i), x, ErrNonFinite)
		}
	}
	return nil
}

type Bound struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Scale maps a unit value onto [Min, Max].
func (b Bound) Scale(unit float64) float64 {
	return unit*(b.Max-b.Min) + b.Min
}

// Normalize is the inverse of Scale.
func (b Bound) Normalize(x float64) float64 {
	return (x - b.Min) / (b.Max - b.Min)
}

type Bounds [NumDims]Bound

// Physical holds the emulation parameters handed to a worker.
type Physical struct {
	Bandwidth   float64 `json:"bandwidth"`
	Delay       int     `json:"delay"`
	UplinkQueue int     `json:"uplink_queue"`
	UplinkLoss  float64 `json:"uplink_loss"`
}

func (p Physical) String() string {
	return fmt.Sprintf("bandwidth=%.1f,delay=%d,uplink_queue=%d,uplink_loss=%.4f",
		p.Bandwidth, p.Delay, p.UplinkQueue, p.UplinkLoss)
}

// Denormalize maps v into physical parameters and returns the boundary
// entropy penalty accumulated over all dimensions. The loss dimension is
// never penalized at its lower face.
func Denormalize(v Vector, b Bounds) (Physical, float64) {
	var (
		entropy float64
		x       [NumDims]float64
	)
	for i := Dim(0); i < NumDims; i++ {
		unit := clampUnit(i, v[i])
		entropy += penalty(i, unit)
		if i.linear() {
			x[i] = b[i].Scale(unit)
		} else {
			x[i] = warpLoss(unit, b[i].Max)
		}
	}

	return Physical{
		Bandwidth:   math.Max(0, x[Bandwidth]),
		Delay:       ceilNonNegative(x[Delay]),
		UplinkQueue: ceilNonNegative(x[UplinkQueue]),
		UplinkLoss:  math.Min(1, math.Max(0, x[UplinkLoss])),
	}, entropy
}

func clampUnit(d Dim, unit float64) float64 {
	if unit > 1-eps {
		return 1 - eps
	}
	if d.linear() && unit < eps {
		return eps
	}
	if unit < 0 {
		return 0
	}
	return unit
}

// penalty is zero inside [edge, 1-edge] and grows without bound towards a face.
func penalty(d Dim, unit float64) float64 {
	switch {
	case unit > 1-edge:
		return -10 * (5 + math.Log2(1-unit))
	case d.linear() && unit < edge:
		return -10 * (5 + math.Log2(unit))
	}
	return 0
}

// warpLoss spreads small loss probabilities over more of the unit interval.
func warpLoss(unit, maxLoss float64) float64 {
	c := math.Log10(maxLoss*1e4 + 1)
	return 1e-4 * (math.Pow(10, c*unit) - 1)
}

func ceilNonNegative(x float64) int {
	n := int(math.Ceil(x))
	if n < 0 {
		return 0
	}
	return n
}

// FromSpearmint builds a Vector from the optimizer's named parameter map,
// where each value is a one-element list.
func FromSpearmint(named map[string][]float64) (Vector, error) {
	var v Vector
	for i := Dim(0); i < NumDims; i++ {
		vals, ok := named[i.String()]
		if !ok || len(vals) == 0 {
			return v, fmt.Errorf("missing parameter %q", i.String())
		}
		v[i] = vals[0]
	}
	return v, v.Validate()
}
