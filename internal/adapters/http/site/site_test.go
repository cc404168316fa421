package site_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okian/deposit/internal/adapters/http/site"
	service "github.com/okian/deposit/internal/app"
	"github.com/okian/deposit/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const testArtifact = "../../../domain/scoring/testdata/pipeline.json"

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// recordingDeps wraps a real service and counts Process calls.
type recordingDeps struct {
	*service.Service
	calls int
}

func (d *recordingDeps) Process(ctx context.Context, name string, r io.Reader) (*service.Result, error) {
	d.calls++
	return d.Service.Process(ctx, name, r)
}

func post(mux *http.ServeMux, name string, body []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	So(err, ShouldBeNil)
	_, err = fw.Write(body)
	So(err, ShouldBeNil)
	So(mw.Close(), ShouldBeNil)

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestUploadPage(t *testing.T) {
	Convey("Given the upload page backed by a loaded pipeline", t, func() {
		ctx := context.Background()
		deps := &recordingDeps{Service: service.New(service.WithArtifactPath(testArtifact))}
		So(deps.Start(ctx), ShouldBeNil)
		defer deps.Stop()

		mux := http.NewServeMux()
		site.Register(ctx, mux, deps)

		Convey("When the page is requested", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			Convey("Then the form accepts only CSV and XLSX and shows no banner", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
				body := w.Body.String()
				So(body, ShouldContainSubstring, `accept=".csv,.xlsx"`)
				So(body, ShouldNotContainSubstring, "Error loading pipeline")
				So(body, ShouldNotContainSubstring, "Error processing file")
			})
		})

		Convey("When a valid CSV is uploaded", func() {
			w := post(mux, "clients.csv", []byte("x,c\n10,yes\n10,no\n"))

			Convey("Then the preview, predictions and download link are shown", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := w.Body.String()
				So(body, ShouldContainSubstring, "Preview of Uploaded Data")
				So(body, ShouldContainSubstring, "Predictions (Threshold = 0.3)")
				So(body, ShouldContainSubstring, "<td>0.881</td>")
				So(body, ShouldContainSubstring, `href="/download/`)
				So(body, ShouldContainSubstring, "1 of 2 clients")
			})
		})

		Convey("When a file with an unsupported extension is uploaded", func() {
			w := post(mux, "clients.txt", []byte("x,c\n10,yes\n"))

			Convey("Then a processing banner is shown and the service is never called", func() {
				So(w.Body.String(), ShouldContainSubstring, "Error processing file: unsupported file format")
				So(deps.calls, ShouldEqual, 0)
			})
		})

		Convey("When a file missing required columns is uploaded", func() {
			w := post(mux, "clients.csv", []byte("age,job\n41,admin.\n"))

			Convey("Then the preview stays and a processing banner is shown", func() {
				body := w.Body.String()
				So(body, ShouldContainSubstring, "Preview of Uploaded Data")
				So(body, ShouldContainSubstring, "<td>admin.</td>")
				So(body, ShouldContainSubstring, "Error processing file:")
				So(body, ShouldNotContainSubstring, "Predictions (Threshold")
			})
		})

		Convey("When an unknown path is requested", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the page is deleted", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/", nil))

			Convey("Then the method is not allowed", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

func TestUploadPageWithoutPipeline(t *testing.T) {
	Convey("Given the upload page with no pipeline artifact", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithArtifactPath("testdata/absent.json"))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		mux := http.NewServeMux()
		site.Register(ctx, mux, svc)

		Convey("When the page is requested", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			Convey("Then the loading banner is shown", func() {
				So(w.Body.String(), ShouldContainSubstring, "Error loading pipeline: pipeline unavailable")
			})
		})

		Convey("When a valid file is uploaded anyway", func() {
			w := post(mux, "clients.csv", []byte("x,c\n10,yes\n"))

			Convey("Then only the loading banner is shown alongside the preview", func() {
				body := w.Body.String()
				So(body, ShouldContainSubstring, "Error loading pipeline:")
				So(body, ShouldNotContainSubstring, "Error processing file")
				So(body, ShouldContainSubstring, "Preview of Uploaded Data")
				So(body, ShouldNotContainSubstring, "Download Predictions")
			})
		})
	})
}

func TestRegisterWithNilMux(t *testing.T) {
	Convey("Given a nil mux", t, func() {
		Convey("Then registering should panic", func() {
			So(func() {
				site.Register(context.Background(), nil, nil)
			}, ShouldPanic)
		})
	})
}

func TestSiteErrors(t *testing.T) {
	Convey("Given site error constants", t, func() {
		So(errors.Is(site.ErrRender, site.ErrNoUpload), ShouldBeFalse)
		So(site.ErrNoUpload.Error(), ShouldEqual, "no file uploaded")
	})
}
