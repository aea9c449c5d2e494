package model

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/jengzang/machine-efficiency-go/internal/features"
)

// objective is the penalized multinomial negative log-likelihood
//
//	L(W, b) = sum_i -log softmax(W x_i + b)[y_i] + ||W||^2 / (2C)
//
// over the flat parameter vector [W row-major (k x d), b (k)]. The intercept
// is not penalized.
type objective struct {
	X features.Matrix
	y []int
	k int
	d int
	c float64
}

func (o *objective) unpack(x []float64) (w [][]float64, b []float64) {
	w = make([][]float64, o.k)
	for c := 0; c < o.k; c++ {
		w[c] = x[c*o.d : (c+1)*o.d]
	}
	return w, x[o.k*o.d:]
}

func (o *objective) scores(w [][]float64, b []float64, row []float64, out []float64) {
	for c := 0; c < o.k; c++ {
		out[c] = floats.Dot(w[c], row) + b[c]
	}
}

func (o *objective) loss(x []float64) float64 {
	w, b := o.unpack(x)
	s := make([]float64, o.k)

	var total float64
	for i, row := range o.X {
		o.scores(w, b, row, s)
		total += logSumExp(s) - s[o.y[i]]
	}

	var norm float64
	for c := 0; c < o.k; c++ {
		norm += floats.Dot(w[c], w[c])
	}
	return total + norm/(2*o.c)
}

func (o *objective) grad(g, x []float64) {
	w, b := o.unpack(x)
	for i := range g {
		g[i] = 0
	}
	gw, gb := o.unpack(g)

	s := make([]float64, o.k)
	for i, row := range o.X {
		o.scores(w, b, row, s)
		lse := logSumExp(s)
		for c := 0; c < o.k; c++ {
			r := math.Exp(s[c] - lse)
			if c == o.y[i] {
				r--
			}
			floats.AddScaled(gw[c], r, row)
			gb[c] += r
		}
	}

	for c := 0; c < o.k; c++ {
		floats.AddScaled(gw[c], 1/o.c, w[c])
	}
}
