// Package inference turns pipeline scores into the published prediction
// columns.
package inference

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/okian/deposit/internal/domain/scoring"
	"github.com/okian/deposit/internal/domain/table"
)

// Threshold is the fixed decision boundary: a row is positive iff its
// published (rounded) probability is at least this value.
const Threshold = 0.3

// Output column names, appended in this order.
const (
	ColumnPrediction  = "Prediction"
	ColumnProbability = "Probability"
)

// probabilityDecimals is the rounding applied to the published probability.
const probabilityDecimals = 3

// ErrInference wraps every failure of Predict.
var ErrInference = errors.New("inference failed")

// Summary describes one prediction run.
type Summary struct {
	Rows      int
	Positives int
}

// Label applies Threshold.
func Label(p float64) int {
	if p >= Threshold {
		return 1
	}
	return 0
}

// Round rounds p to three decimals, half away from zero.
func Round(p float64) float64 {
	scale := math.Pow10(probabilityDecimals)
	return math.Round(p*scale) / scale
}

// Predict scores t and returns a copy with Prediction and Probability
// columns. Row order is preserved and t is left untouched.
func Predict(ctx context.Context, s scoring.Scorer, t *table.Table) (*table.Table, Summary, error) {
	probs, err := s.Score(ctx, t)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("%w: %w", ErrInference, err)
	}
	if len(probs) != t.Len() {
		return nil, Summary{}, fmt.Errorf("%w: scorer returned %d scores for %d rows", ErrInference, len(probs), t.Len())
	}

	labels := make([]table.Value, len(probs))
	rounded := make([]table.Value, len(probs))
	sum := Summary{Rows: len(probs)}
	for i, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, Summary{}, fmt.Errorf("%w: row %d: probability %v outside [0,1]", ErrInference, i+1, p)
		}
		// Label the rounded value so the two published columns never disagree.
		r := Round(p)
		l := Label(r)
		sum.Positives += l
		labels[i] = table.Number(float64(l))
		rounded[i] = table.Number(r)
	}

	out := t.Clone()
	if err := out.SetColumn(ColumnPrediction, labels); err != nil {
		return nil, Summary{}, fmt.Errorf("%w: %w", ErrInference, err)
	}
	if err := out.SetColumn(ColumnProbability, rounded); err != nil {
		return nil, Summary{}, fmt.Errorf("%w: %w", ErrInference, err)
	}
	return out, sum, nil
}
