package stats_test

import (
	"math"
	"testing"

	"github.com/jengzang/machine-efficiency-go/internal/stats"
	"github.com/stretchr/testify/require"
)

func TestPopStdDev(t *testing.T) {
	require.InDelta(t, 2.0, stats.PopStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-12)
	require.Zero(t, stats.PopStdDev([]float64{3, 3, 3}))
	require.Zero(t, stats.PopStdDev(nil))
}

func TestSummarize(t *testing.T) {
	s := stats.Summarize([]float64{5, 1, 3, 2, 4})
	require.Equal(t, stats.Summary{Min: 1, Q1: 2, Median: 3, Q3: 4, Max: 5, Mean: 3, Std: math.Sqrt(2)}, s)
}

func TestEntropy(t *testing.T) {
	require.InDelta(t, 1.0, stats.NormalizedEntropy([]float64{10, 10, 10}), 1e-12)
	require.InDelta(t, 0.0, stats.NormalizedEntropy([]float64{10, 0, 0}), 1e-12)
	require.InDelta(t, 1.0, stats.ShannonEntropy([]float64{1, 1}), 1e-12)
}

func TestPearsonCorrelation(t *testing.T) {
	require.InDelta(t, 1.0, stats.PearsonCorrelation([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-12)
	require.InDelta(t, -1.0, stats.PearsonCorrelation([]float64{1, 2, 3}, []float64{3, 2, 1}), 1e-12)
	require.Zero(t, stats.PearsonCorrelation([]float64{1, 1, 1}, []float64{3, 2, 1}))
}

func TestClassify(t *testing.T) {
	trueLabels := []int{0, 0, 0, 1, 1, 2}
	predLabels := []int{0, 0, 1, 1, 2, 2}

	r, err := stats.Classify(trueLabels, predLabels, 3)
	require.NoError(t, err)

	require.Equal(t, [][]int{{2, 1, 0}, {0, 1, 1}, {0, 0, 1}}, r.Confusion)
	require.InDelta(t, 4.0/6.0, r.Accuracy, 1e-12)

	// class 0: p=1 r=2/3; class 1: p=1/2 r=1/2; class 2: p=1/2 r=1
	require.InDelta(t, 1.0, r.PerClass[0].Precision, 1e-12)
	require.InDelta(t, 2.0/3.0, r.PerClass[0].Recall, 1e-12)
	require.InDelta(t, 0.8, r.PerClass[0].F1, 1e-12)
	require.Equal(t, 3, r.PerClass[0].Support)

	wantP := (3*1.0 + 2*0.5 + 1*0.5) / 6
	wantR := (3*(2.0/3.0) + 2*0.5 + 1*1.0) / 6
	wantF := (3*0.8 + 2*0.5 + 1*(2.0/3.0)) / 6
	require.InDelta(t, wantP, r.WeightedPrecision, 1e-12)
	require.InDelta(t, wantR, r.WeightedRecall, 1e-12)
	require.InDelta(t, wantF, r.WeightedF1, 1e-12)
}

func TestClassifyZeroDivision(t *testing.T) {
	// class 2 is never predicted and never present
	r, err := stats.Classify([]int{0, 1}, []int{1, 1}, 3)
	require.NoError(t, err)
	require.Zero(t, r.PerClass[0].Precision)
	require.Zero(t, r.PerClass[2].F1)
	require.InDelta(t, 0.5, r.Accuracy, 1e-12)
}

func TestClassifyRejectsBadInput(t *testing.T) {
	_, err := stats.Classify([]int{0}, []int{0, 1}, 2)
	require.Error(t, err)
	_, err = stats.Classify([]int{0}, []int{5}, 2)
	require.Error(t, err)
}

func TestLogLoss(t *testing.T) {
	loss := stats.LogLoss([]int{0, 1}, [][]float64{{1, 0}, {0.5, 0.5}})
	require.InDelta(t, math.Log(2)/2, loss, 1e-9)
}
