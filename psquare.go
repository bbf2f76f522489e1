package threadloop

import (
	"math"
	"slices"
)

// psquare estimates a single quantile of a stream in constant space, using
// the P-Square algorithm (Jain and Chlamtac, 1985). Five markers track the
// minimum, the p/2, p and (1+p)/2 quantiles, and the maximum; marker heights
// are adjusted with piecewise-parabolic interpolation as observations arrive.
//
// Not safe for concurrent use.
type psquare struct {
	p       float64
	heights [5]float64
	pos     [5]int
	want    [5]float64
	incr    [5]float64
	count   int
}

func newPSquare(p float64) psquare {
	p = min(max(p, 0), 1)
	return psquare{
		p:    p,
		incr: [5]float64{0, p / 2, p, (1 + p) / 2, 1},
	}
}

func (x *psquare) observe(v float64) {
	x.count++
	if x.count <= 5 {
		// the first five observations seed the markers
		x.heights[x.count-1] = v
		if x.count == 5 {
			slices.Sort(x.heights[:])
			x.pos = [5]int{0, 1, 2, 3, 4}
			x.want = [5]float64{0, 2 * x.p, 4 * x.p, 2 + 2*x.p, 4}
		}
		return
	}

	var cell int
	switch {
	case v < x.heights[0]:
		x.heights[0] = v
		cell = 0
	case v >= x.heights[4]:
		x.heights[4] = v
		cell = 3
	default:
		for cell = 0; cell < 3; cell++ {
			if v < x.heights[cell+1] {
				break
			}
		}
	}

	for i := cell + 1; i < 5; i++ {
		x.pos[i]++
	}
	for i := range x.want {
		x.want[i] += x.incr[i]
	}

	for i := 1; i < 4; i++ {
		d := x.want[i] - float64(x.pos[i])
		if (d < 1 || x.pos[i+1]-x.pos[i] <= 1) && (d > -1 || x.pos[i-1]-x.pos[i] >= -1) {
			continue
		}
		step := 1
		if d < 0 {
			step = -1
		}
		if h := x.parabolic(i, step); x.heights[i-1] < h && h < x.heights[i+1] {
			x.heights[i] = h
		} else {
			x.heights[i] = x.linear(i, step)
		}
		x.pos[i] += step
	}
}

func (x *psquare) parabolic(i, step int) float64 {
	s := float64(step)
	n0, n1, n2 := float64(x.pos[i-1]), float64(x.pos[i]), float64(x.pos[i+1])
	q0, q1, q2 := x.heights[i-1], x.heights[i], x.heights[i+1]
	return q1 + s/(n2-n0)*((n1-n0+s)*(q2-q1)/(n2-n1)+(n2-n1-s)*(q1-q0)/(n1-n0))
}

func (x *psquare) linear(i, step int) float64 {
	j := i + step
	return x.heights[i] + float64(step)*(x.heights[j]-x.heights[i])/float64(x.pos[j]-x.pos[i])
}

// value returns the current estimate, or 0 if nothing was observed.
func (x *psquare) value() float64 {
	switch {
	case x.count == 0:
		return 0
	case x.count < 5:
		seed := slices.Clone(x.heights[:x.count])
		slices.Sort(seed)
		return seed[int(float64(x.count-1)*x.p)]
	default:
		return x.heights[2]
	}
}

// quantiles tracks several quantiles of the same stream, plus its mean and
// maximum.
type quantiles struct {
	estimators []psquare
	sum        float64
	max        float64
	count      int
}

func newQuantiles(ps ...float64) *quantiles {
	q := &quantiles{
		estimators: make([]psquare, len(ps)),
		max:        math.Inf(-1),
	}
	for i, p := range ps {
		q.estimators[i] = newPSquare(p)
	}
	return q
}

func (x *quantiles) observe(v float64) {
	x.count++
	x.sum += v
	x.max = max(x.max, v)
	for i := range x.estimators {
		x.estimators[i].observe(v)
	}
}

func (x *quantiles) quantile(i int) float64 {
	if i < 0 || i >= len(x.estimators) {
		return 0
	}
	return x.estimators[i].value()
}

func (x *quantiles) mean() float64 {
	if x.count == 0 {
		return 0
	}
	return x.sum / float64(x.count)
}

func (x *quantiles) maximum() float64 {
	if x.count == 0 {
		return 0
	}
	return x.max
}
