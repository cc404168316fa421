package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	service "github.com/okian/deposit/internal/app"
	"github.com/okian/deposit/internal/domain/inference"
	"github.com/okian/deposit/internal/domain/scoring"
	"github.com/okian/deposit/internal/domain/table"
	"github.com/okian/deposit/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const testArtifact = "../domain/scoring/testdata/pipeline.json"

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// countingLoader fails every load and counts the attempts.
func countingLoader(calls *int) service.LoaderFunc {
	return func(path string) (scoring.Scorer, error) {
		*calls++
		return nil, errors.New("no such artifact: " + path)
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should report defaults before starting", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["artifactPath"], ShouldEqual, service.DefaultArtifactPath)
			So(stats["previewRows"], ShouldEqual, service.DefaultPreviewRows)
			So(stats["threshold"], ShouldEqual, inference.Threshold)
			So(stats, ShouldNotContainKey, "pipelineLoaded")
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a service pointing at a valid artifact", t, func() {
		svc := service.New(service.WithArtifactPath(testArtifact))
		defer svc.Stop()

		Convey("When starting the service", func() {
			err := svc.Start(context.Background())

			Convey("Then the pipeline should be loaded", func() {
				So(err, ShouldBeNil)
				So(svc.PipelineErr(context.Background()), ShouldBeNil)
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["pipelineLoaded"], ShouldEqual, true)
				So(stats["pipelineName"], ShouldEqual, "tiny")
			})
		})
	})

	Convey("Given a service whose artifact is absent", t, func() {
		svc := service.New(service.WithArtifactPath("testdata/absent.json"))
		defer svc.Stop()

		Convey("When starting the service", func() {
			err := svc.Start(context.Background())

			Convey("Then it should still start and remember the failure", func() {
				So(err, ShouldBeNil)
				perr := svc.PipelineErr(context.Background())
				So(errors.Is(perr, service.ErrPipelineUnavailable), ShouldBeTrue)
				So(errors.Is(perr, scoring.ErrArtifactLoad), ShouldBeTrue)
				So(service.IsPipelineUnavailable(perr), ShouldBeTrue)

				stats := svc.GetStats()
				So(stats["pipelineLoaded"], ShouldEqual, false)
				So(stats["pipelineError"], ShouldContainSubstring, "pipeline unavailable")
			})
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a started service with a stored result", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithArtifactPath(testArtifact))
		So(svc.Start(ctx), ShouldBeNil)
		res, err := svc.Process(ctx, "in.csv", strings.NewReader("x,c\n10,yes\n"))
		So(err, ShouldBeNil)

		Convey("When stopping the service", func() {
			svc.Stop()

			Convey("Then it should be stopped and downloads dropped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
				_, err := svc.Download(ctx, res.RunID)
				So(errors.Is(err, service.ErrResultNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_PipelineLoadedOnce(t *testing.T) {
	Convey("Given a service whose loader always fails", t, func() {
		ctx := context.Background()
		calls := 0
		svc := service.New(service.WithLoader(countingLoader(&calls)))

		Convey("When two valid files are uploaded", func() {
			first, err1 := svc.Process(ctx, "a.csv", strings.NewReader("x,c\n1,yes\n2,no\n"))
			second, err2 := svc.Process(ctx, "b.csv", strings.NewReader("x,c\n3,yes\n"))

			Convey("Then both fail as unavailable with their previews kept", func() {
				So(errors.Is(err1, service.ErrPipelineUnavailable), ShouldBeTrue)
				So(errors.Is(err2, service.ErrPipelineUnavailable), ShouldBeTrue)
				So(first.Preview, ShouldNotBeNil)
				So(first.Preview.Len(), ShouldEqual, 2)
				So(second.Preview.Len(), ShouldEqual, 1)
				So(first.Predictions, ShouldBeNil)
			})

			Convey("And the load is attempted only once", func() {
				So(calls, ShouldEqual, 1)
				So(svc.GetStats()["failures"], ShouldEqual, int64(2))
			})
		})
	})
}

func TestService_Process(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithArtifactPath(testArtifact))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When uploading a well-formed CSV", func() {
			res, err := svc.Process(ctx, "clients.CSV", strings.NewReader("x,c\n10,yes\n10,no\n"))

			Convey("Then the predictions are appended and exported", func() {
				So(err, ShouldBeNil)
				So(res.RunID, ShouldNotBeEmpty)
				So(res.Format, ShouldEqual, table.FormatCSV)
				So(res.Predictions.Columns(), ShouldResemble, []string{"x", "c", "Prediction", "Probability"})
				So(string(res.CSV), ShouldEqual, "x,c,Prediction,Probability\n10,yes,1,0.881\n10,no,0,0.119\n")
				So(res.Summary, ShouldResemble, inference.Summary{Rows: 2, Positives: 1})
			})

			Convey("And the export can be downloaded by run id", func() {
				data, err := svc.Download(ctx, res.RunID)
				So(err, ShouldBeNil)
				So(data, ShouldResemble, res.CSV)
			})
		})

		Convey("When uploading a file with an unsupported extension", func() {
			res, err := svc.Process(ctx, "clients.txt", strings.NewReader("x,c\n1,yes\n"))

			Convey("Then it is rejected before parsing", func() {
				So(errors.Is(err, table.ErrUnsupportedFormat), ShouldBeTrue)
				So(res.Preview, ShouldBeNil)
			})
		})

		Convey("When uploading a malformed CSV", func() {
			res, err := svc.Process(ctx, "bad.csv", strings.NewReader("x,c\n1,yes,extra\n"))

			Convey("Then a parse error is returned without a preview", func() {
				So(errors.Is(err, table.ErrParse), ShouldBeTrue)
				So(res.Preview, ShouldBeNil)
			})
		})

		Convey("When uploading a file missing a required column", func() {
			res, err := svc.Process(ctx, "age.csv", strings.NewReader("age\n41\n"))

			Convey("Then inference fails and the preview is retained", func() {
				So(errors.Is(err, inference.ErrInference), ShouldBeTrue)
				So(errors.Is(err, scoring.ErrMissingColumn), ShouldBeTrue)
				So(res.Preview.Len(), ShouldEqual, 1)
				So(res.RunID, ShouldBeEmpty)
			})
		})

		Convey("When downloading an unknown run id", func() {
			_, err := svc.Download(ctx, "nope")

			Convey("Then it is not found", func() {
				So(errors.Is(err, service.ErrResultNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_PreviewRows(t *testing.T) {
	Convey("Given a service keeping a one-row preview", t, func() {
		svc := service.New(service.WithArtifactPath(testArtifact), service.WithPreviewRows(1))

		Convey("When uploading three rows", func() {
			res, err := svc.Process(context.Background(), "in.csv", strings.NewReader("x,c\n1,yes\n2,no\n3,yes\n"))

			Convey("Then the preview holds the first row and predictions all rows", func() {
				So(err, ShouldBeNil)
				So(res.Preview.Len(), ShouldEqual, 1)
				So(res.Preview.Row(0)[0].String(), ShouldEqual, "1")
				So(res.Predictions.Len(), ShouldEqual, 3)
			})
		})
	})
}

func TestService_DownloadCache(t *testing.T) {
	Convey("Given a service with a single-slot download cache", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithArtifactPath(testArtifact), service.WithDownloadCacheSize(1))

		Convey("When two uploads complete", func() {
			first, err := svc.Process(ctx, "a.csv", strings.NewReader("x,c\n1,yes\n"))
			So(err, ShouldBeNil)
			second, err := svc.Process(ctx, "b.csv", strings.NewReader("x,c\n2,no\n"))
			So(err, ShouldBeNil)

			Convey("Then only the latest is downloadable", func() {
				_, err := svc.Download(ctx, first.RunID)
				So(errors.Is(err, service.ErrResultNotFound), ShouldBeTrue)
				_, err = svc.Download(ctx, second.RunID)
				So(err, ShouldBeNil)
				So(svc.GetStats()["downloadsCached"], ShouldEqual, 1)
			})
		})
	})

	Convey("Given a service with a short download TTL", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithArtifactPath(testArtifact), service.WithDownloadTTL(20*time.Millisecond))

		Convey("When the TTL passes after an upload", func() {
			res, err := svc.Process(ctx, "a.csv", strings.NewReader("x,c\n1,yes\n"))
			So(err, ShouldBeNil)
			time.Sleep(100 * time.Millisecond)

			Convey("Then the result has expired", func() {
				_, err := svc.Download(ctx, res.RunID)
				So(errors.Is(err, service.ErrResultNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_ConcurrentUploads(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithArtifactPath(testArtifact))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When uploads arrive concurrently", func() {
			const n = 16
			var wg sync.WaitGroup
			errs := make([]error, n)
			ids := make([]string, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					res, err := svc.Process(ctx, "in.csv", strings.NewReader("x,c\n10,yes\n"))
					errs[i] = err
					if res != nil {
						ids[i] = res.RunID
					}
				}(i)
			}
			wg.Wait()

			Convey("Then every upload succeeds with a distinct run id", func() {
				seen := map[string]bool{}
				for i := 0; i < n; i++ {
					So(errs[i], ShouldBeNil)
					So(seen[ids[i]], ShouldBeFalse)
					seen[ids[i]] = true
				}
				So(svc.GetStats()["uploads"], ShouldEqual, int64(n))
			})
		})
	})
}
