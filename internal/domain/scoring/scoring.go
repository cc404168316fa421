// Package scoring defines the contract for turning a table of client records
// into per-row subscription probabilities, and the fitted pipeline that
// implements it.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/deposit/internal/domain/table"
)

// cancelCheckRows is how often Score polls ctx while walking rows.
const cancelCheckRows = 1024

// Scorer computes P(positive) for each row, in row order. Implementations
// must not modify the table and must be safe for concurrent use.
type Scorer interface {
	// Score honors ctx for cancellation.
	Score(ctx context.Context, t *table.Table) ([]float64, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, t *table.Table) ([]float64, error)

// Score calls f.
func (f ScorerFunc) Score(ctx context.Context, t *table.Table) ([]float64, error) {
	return f(ctx, t)
}

// step is a compiled FeatureStep.
type step struct {
	column     string
	numeric    bool
	mean       float64
	scale      float64
	impute     float64
	categories map[string]int
	// numbered indexes the categories that read as numbers by value, so a
	// cell written "1" still matches a category fit as "1.0".
	numbered map[float64]int
	width    int
}

// category returns the one-hot index of v, matching the cell text first.
func (s *step) category(v table.Value) (int, bool) {
	if j, ok := s.categories[strings.TrimSpace(v.String())]; ok {
		return j, true
	}
	if v.Kind() != table.KindNumber {
		return 0, false
	}
	f, _ := v.Float()
	j, ok := s.numbered[f]
	return j, ok
}

// Pipeline is a compiled, read-only Artifact.
type Pipeline struct {
	name    string
	version string
	steps   []step
	weights []float64
	bias    float64
}

// Compile validates a and prepares it for scoring.
func Compile(a Artifact) (*Pipeline, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		name:    a.Name,
		version: a.Version,
		steps:   make([]step, len(a.Features)),
		weights: append([]float64(nil), a.Classifier.Weights...),
		bias:    a.Classifier.Bias,
	}
	for i, f := range a.Features {
		s := step{column: f.Column, width: f.width()}
		if f.Kind == KindNumeric {
			s.numeric = true
			s.mean = f.Mean
			s.scale = f.Scale
			s.impute = f.Mean
			if f.Impute != nil {
				s.impute = *f.Impute
			}
		} else {
			s.categories = make(map[string]int, len(f.Categories))
			s.numbered = make(map[float64]int)
			for j, c := range f.Categories {
				s.categories[c] = j
				n, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
				if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
					continue
				}
				if _, dup := s.numbered[n]; !dup {
					s.numbered[n] = j
				}
			}
		}
		p.steps[i] = s
	}
	return p, nil
}

// Name returns the artifact name.
func (p *Pipeline) Name() string { return p.name }

// Version returns the artifact version.
func (p *Pipeline) Version() string { return p.version }

// Columns lists the input columns the pipeline reads, in encoding order.
func (p *Pipeline) Columns() []string {
	out := make([]string, len(p.steps))
	for i, s := range p.steps {
		out[i] = s.column
	}
	return out
}

// Score encodes every row and applies the logistic head. Extra columns are
// ignored; a missing required column or a non-numeric value in a numeric
// column fails the whole table.
func (p *Pipeline) Score(ctx context.Context, t *table.Table) ([]float64, error) {
	idx := make([]int, len(p.steps))
	var missing []string
	for i, s := range p.steps {
		j, ok := t.ColumnIndex(s.column)
		if !ok {
			missing = append(missing, s.column)
			continue
		}
		idx[i] = j
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %w: %s", ErrScore, ErrMissingColumn, strings.Join(missing, ", "))
	}

	out := make([]float64, t.Len())
	for r := range t.Len() {
		if r%cancelCheckRows == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrScore, err)
			}
		}
		z, err := p.logit(t.Row(r), idx)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrScore, r+1, err)
		}
		out[r] = sigmoid(z)
	}
	return out, nil
}

// logit returns bias + w·x for one row without materialising x.
func (p *Pipeline) logit(row table.Row, idx []int) (float64, error) {
	z := p.bias
	off := 0
	for i, s := range p.steps {
		v := row[idx[i]]
		if s.numeric {
			x := s.impute
			if !v.IsEmpty() {
				f, ok := v.Float()
				if !ok {
					return 0, fmt.Errorf("%w: column %q wants a number, got %q", ErrInvalidValue, s.column, v.String())
				}
				x = f
			}
			z += p.weights[off] * (x - s.mean) / s.scale
		} else if j, ok := s.category(v); ok {
			z += p.weights[off+j]
		}
		off += s.width
	}
	if math.IsNaN(z) {
		return 0, errors.New("non-finite score")
	}
	return z, nil
}

// sigmoid is the logistic function, split by sign to avoid overflow in exp.
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
