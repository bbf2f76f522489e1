package threadloop

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPSquare_fewSamples(t *testing.T) {
	x := newPSquare(0.5)
	assert.Zero(t, x.value())
	for _, v := range []float64{30, 10, 20} {
		x.observe(v)
	}
	assert.Equal(t, 20.0, x.value())
}

func TestPSquare_uniform(t *testing.T) {
	const n = 20000
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i + 1)
	}
	rng := rand.New(rand.NewPCG(1, 2))
	rng.Shuffle(n, func(i, j int) { values[i], values[j] = values[j], values[i] })

	for _, p := range []float64{0.5, 0.9, 0.95, 0.99} {
		x := newPSquare(p)
		for _, v := range values {
			x.observe(v)
		}
		assert.InEpsilon(t, p*n, x.value(), 0.02, "p=%v", p)
	}
}

func TestQuantiles(t *testing.T) {
	q := newQuantiles(0.5, 0.99)
	assert.Zero(t, q.mean())
	assert.Zero(t, q.maximum())
	assert.Zero(t, q.quantile(0))

	for i := range 1000 {
		q.observe(float64(i % 100))
	}
	assert.Equal(t, 1000, q.count)
	assert.Equal(t, 99.0, q.maximum())
	assert.InDelta(t, 49.5, q.mean(), 1e-9)
	assert.InDelta(t, 50, q.quantile(0), 5)
	assert.InDelta(t, 99, q.quantile(1), 2)
	assert.False(t, math.IsNaN(q.quantile(1)))
}
