package batch

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/okian/deposit/internal/domain/scoring"
	"github.com/okian/deposit/internal/domain/table"
)

// emptyCellRate is the share of numeric cells left blank so imputation is
// exercised.
const emptyCellRate = 0.02

// Sample builds n synthetic rows with exactly the columns a uses. Numeric
// cells are drawn around the fitted mean and scale and rounded to integers;
// categorical cells are picked uniformly from the fitted categories. The same
// seed always yields the same table.
func Sample(a scoring.Artifact, n int, seed uint64) (*table.Table, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("sample size must not be negative: %d", n)
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	cols := make([]string, len(a.Features))
	for i, f := range a.Features {
		cols[i] = f.Column
	}
	t := table.New(cols)

	for r := 0; r < n; r++ {
		row := make(table.Row, len(a.Features))
		for i, f := range a.Features {
			switch f.Kind {
			case scoring.KindCategorical:
				row[i] = table.Text(f.Categories[rng.IntN(len(f.Categories))])
			default:
				if rng.Float64() < emptyCellRate {
					row[i] = table.Empty()
					continue
				}
				row[i] = table.Number(math.Round(f.Mean + rng.NormFloat64()*math.Abs(f.Scale)))
			}
		}
		if err := t.Append(row); err != nil {
			return nil, err
		}
	}
	return t, nil
}
