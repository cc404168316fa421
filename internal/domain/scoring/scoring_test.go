package scoring_test

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/deposit/internal/domain/scoring"
	"github.com/okian/deposit/internal/domain/table"
	. "github.com/smartystreets/goconvey/convey"
)

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

func rows(columns []string, values ...[]table.Value) *table.Table {
	t := table.New(columns)
	for _, v := range values {
		if err := t.Append(v); err != nil {
			panic(err)
		}
	}
	return t
}

func tinyArtifact() scoring.Artifact {
	return scoring.Artifact{
		Name:    "tiny",
		Version: "1",
		Features: []scoring.FeatureStep{
			{Column: "x", Kind: scoring.KindNumeric, Mean: 10, Scale: 2},
			{Column: "c", Kind: scoring.KindCategorical, Categories: []string{"yes", "no"}},
		},
		Classifier: scoring.Logistic{Weights: []float64{1, 2, -2}, Bias: 0},
	}
}

func TestLoad(t *testing.T) {
	Convey("Given artifact files on disk", t, func() {
		Convey("When loading the JSON artifact", func() {
			p, err := scoring.Load(filepath.Join("testdata", "pipeline.json"))

			Convey("Then it should compile", func() {
				So(err, ShouldBeNil)
				So(p.Name(), ShouldEqual, "tiny")
				So(p.Version(), ShouldEqual, "1")
				So(p.Columns(), ShouldResemble, []string{"x", "c"})
			})
		})

		Convey("When loading the YAML artifact", func() {
			p, err := scoring.Load(filepath.Join("testdata", "pipeline.yaml"))

			Convey("Then it should match the JSON one", func() {
				So(err, ShouldBeNil)
				So(p.Columns(), ShouldResemble, []string{"x", "c"})
			})
		})

		Convey("When the file is missing", func() {
			_, err := scoring.Load(filepath.Join("testdata", "absent.json"))

			Convey("Then it should be an artifact load error", func() {
				So(errors.Is(err, scoring.ErrArtifactLoad), ShouldBeTrue)
			})
		})

		Convey("When the file is truncated", func() {
			_, err := scoring.Load(filepath.Join("testdata", "truncated.json"))

			Convey("Then it should be an artifact load error", func() {
				So(errors.Is(err, scoring.ErrArtifactLoad), ShouldBeTrue)
			})
		})

		Convey("When the file carries fields this runtime does not know", func() {
			_, err := scoring.Load(filepath.Join("testdata", "unknown_field.json"))

			Convey("Then it should be rejected", func() {
				So(errors.Is(err, scoring.ErrArtifactLoad), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "sklearn_version")
			})
		})
	})
}

func TestArtifactValidate(t *testing.T) {
	Convey("Given a valid artifact", t, func() {
		So(tinyArtifact().Validate(), ShouldBeNil)

		cases := map[string]func(*scoring.Artifact){
			"no features":        func(a *scoring.Artifact) { a.Features = nil },
			"blank column":       func(a *scoring.Artifact) { a.Features[0].Column = " " },
			"duplicate column":   func(a *scoring.Artifact) { a.Features[1].Column = "x" },
			"zero scale":         func(a *scoring.Artifact) { a.Features[0].Scale = 0 },
			"no categories":      func(a *scoring.Artifact) { a.Features[1].Categories = nil },
			"unknown kind":       func(a *scoring.Artifact) { a.Features[0].Kind = "ordinal" },
			"weight count drift": func(a *scoring.Artifact) { a.Classifier.Weights = []float64{1, 2} },
		}
		for name, mutate := range cases {
			Convey("When it has "+name, func() {
				a := tinyArtifact()
				mutate(&a)
				_, err := scoring.Compile(a)

				Convey("Then compiling should fail", func() {
					So(errors.Is(err, scoring.ErrInvalidArtifact), ShouldBeTrue)
				})
			})
		}
	})
}

func TestPipelineScore(t *testing.T) {
	Convey("Given a compiled pipeline", t, func() {
		p, err := scoring.Compile(tinyArtifact())
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("When scoring rows with every category and an unknown one", func() {
			tbl := rows([]string{"id", "c", "x"},
				[]table.Value{table.Number(1), table.Text("yes"), table.Number(10)},
				[]table.Value{table.Number(2), table.Text("no"), table.Number(12)},
				[]table.Value{table.Number(3), table.Text("maybe"), table.Number(8)},
			)
			scores, err := p.Score(ctx, tbl)

			Convey("Then each row should get sigmoid(bias + w.x) in order", func() {
				So(err, ShouldBeNil)
				So(scores, ShouldHaveLength, 3)
				So(scores[0], ShouldAlmostEqual, sigmoid(2), 1e-12)
				So(scores[1], ShouldAlmostEqual, sigmoid(1-2), 1e-12)
				So(scores[2], ShouldAlmostEqual, sigmoid(-1), 1e-12)
			})
		})

		Convey("When a numeric cell is empty", func() {
			tbl := rows([]string{"x", "c"}, []table.Value{table.Empty(), table.Text("none")})
			scores, err := p.Score(ctx, tbl)

			Convey("Then the mean should be imputed", func() {
				So(err, ShouldBeNil)
				So(scores[0], ShouldAlmostEqual, 0.5, 1e-12)
			})
		})

		Convey("When numbers arrive as text", func() {
			tbl := rows([]string{"x", "c"}, []table.Value{table.Text("12"), table.Text(" yes ")})
			scores, err := p.Score(ctx, tbl)

			Convey("Then they should still be used", func() {
				So(err, ShouldBeNil)
				So(scores[0], ShouldAlmostEqual, sigmoid(3), 1e-12)
			})
		})

		Convey("When a required column is missing", func() {
			tbl := rows([]string{"c"}, []table.Value{table.Text("yes")})
			_, err := p.Score(ctx, tbl)

			Convey("Then the whole table should fail", func() {
				So(errors.Is(err, scoring.ErrScore), ShouldBeTrue)
				So(errors.Is(err, scoring.ErrMissingColumn), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "x")
			})
		})

		Convey("When a numeric column holds text", func() {
			tbl := rows([]string{"x", "c"},
				[]table.Value{table.Number(1), table.Text("yes")},
				[]table.Value{table.Text("ten"), table.Text("yes")},
			)
			_, err := p.Score(ctx, tbl)

			Convey("Then it should report the row and value", func() {
				So(errors.Is(err, scoring.ErrInvalidValue), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "row 2")
				So(err.Error(), ShouldContainSubstring, "ten")
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			tbl := rows([]string{"x", "c"}, []table.Value{table.Number(1), table.Text("yes")})
			_, err := p.Score(cctx, tbl)

			Convey("Then scoring should stop", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})

		Convey("When scoring extreme values", func() {
			tbl := rows([]string{"x", "c"},
				[]table.Value{table.Number(1e6), table.Text("yes")},
				[]table.Value{table.Number(-1e6), table.Text("no")},
			)
			scores, err := p.Score(ctx, tbl)

			Convey("Then probabilities should stay within [0,1]", func() {
				So(err, ShouldBeNil)
				So(scores[0], ShouldEqual, 1)
				So(scores[1], ShouldEqual, 0)
			})
		})

		Convey("When scoring an empty table", func() {
			scores, err := p.Score(ctx, table.New([]string{"x", "c"}))

			Convey("Then no scores should be returned", func() {
				So(err, ShouldBeNil)
				So(scores, ShouldBeEmpty)
			})
		})
	})
}

func TestPipelineNumericCategories(t *testing.T) {
	Convey("Given a categorical step fit on numeric codes", t, func() {
		p, err := scoring.Compile(scoring.Artifact{
			Name: "grades",
			Features: []scoring.FeatureStep{
				{Column: "grade", Kind: scoring.KindCategorical, Categories: []string{"1.0", "2.0"}},
			},
			Classifier: scoring.Logistic{Weights: []float64{5, -5}},
		})
		So(err, ShouldBeNil)

		Convey("When an uploaded file spells the codes as numbers", func() {
			tbl, err := table.ReadCSV(strings.NewReader("grade\n1.0\n2.0\n1\n3\n"))
			So(err, ShouldBeNil)
			scores, err := p.Score(context.Background(), tbl)

			Convey("Then matching codes should be encoded and others treated as unknown", func() {
				So(err, ShouldBeNil)
				So(scores, ShouldHaveLength, 4)
				So(scores[0], ShouldAlmostEqual, sigmoid(5), 1e-12)
				So(scores[1], ShouldAlmostEqual, sigmoid(-5), 1e-12)
				So(scores[2], ShouldAlmostEqual, sigmoid(5), 1e-12)
				So(scores[3], ShouldAlmostEqual, 0.5, 1e-12)
			})
		})
	})
}

func TestScorerFunc(t *testing.T) {
	Convey("Given a ScorerFunc", t, func() {
		var s scoring.Scorer = scoring.ScorerFunc(func(_ context.Context, t *table.Table) ([]float64, error) {
			return make([]float64, t.Len()), nil
		})

		Convey("Then it should satisfy Scorer", func() {
			out, err := s.Score(context.Background(), table.New([]string{"a"}))
			So(err, ShouldBeNil)
			So(out, ShouldBeEmpty)
		})
	})
}
