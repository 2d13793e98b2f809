package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/ocr-annotate/internal/annotate"
	"github.com/ironsheep/ocr-annotate/internal/blobstore"
	"github.com/ironsheep/ocr-annotate/internal/metrics"
	"github.com/ironsheep/ocr-annotate/internal/ocr"
	"github.com/ironsheep/ocr-annotate/internal/pipeline"
)

var accent = color.RGBA{166, 56, 242, 255}

// createTextPNG draws one line of text on a white image and returns it as PNG.
func createTextPNG(t *testing.T, width, height int, text string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(20, 60),
	}
	d.DrawString(text)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func fixedDetector(dets ...ocr.Detection) ocr.Detector {
	return ocr.DetectorFunc(func(ctx context.Context, img image.Image) ([]ocr.Detection, error) {
		return dets, nil
	})
}

// lineDetection covers the text drawn by createTextPNG.
var lineDetection = ocr.Detection{Region: ocr.RectQuad(image.Rect(18, 48, 130, 64)), Text: "HOLA MUNDO", Confidence: 0.9}

func newTestServer(t *testing.T, d ocr.Detector) (*Server, *blobstore.FS) {
	t.Helper()
	store, err := blobstore.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}
	a, err := annotate.New()
	if err != nil {
		t.Fatalf("annotate.New failed: %v", err)
	}
	m := metrics.New()

	s, err := New(Options{
		Store:    store,
		Pipeline: pipeline.New(store, d, a, nil, m),
		Metrics:  m,
		Mode:     "test",
		Build:    BuildInfo{Version: "test", Engine: "stub", Languages: []string{"spa"}},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s, store
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "-" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("CreateFormFile failed: %v", err)
		}
		fw.Write(data)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("response is not png: %v", err)
	}
	return img
}

func rgbaAt(img image.Image, x, y int) color.RGBA {
	r, g, b, a := img.At(x, y).RGBA()
	return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
}

func TestIndex(t *testing.T) {
	s, _ := newTestServer(t, fixedDetector())

	w := do(s, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{`name="file"`, `enctype="multipart/form-data"`, `method="post"`} {
		if !strings.Contains(body, want) {
			t.Errorf("form missing %s", want)
		}
	}
}

func TestUpload_RePrompts(t *testing.T) {
	s, _ := newTestServer(t, fixedDetector())

	tests := []struct {
		name     string
		filename string
	}{
		{"no file field", "-"},
		{"empty filename", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(s, uploadRequest(t, tt.filename, []byte("data")))

			if w.Code != http.StatusSeeOther {
				t.Fatalf("status: got %d, want 303", w.Code)
			}
			if loc := w.Header().Get("Location"); loc != "/" {
				t.Errorf("Location: got %q, want /", loc)
			}
		})
	}

	t.Run("not multipart", func(t *testing.T) {
		w := do(s, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("x")))
		if w.Code != http.StatusSeeOther {
			t.Errorf("status: got %d, want 303", w.Code)
		}
	})

}

func TestUpload_StoresAndRedirects(t *testing.T) {
	s, store := newTestServer(t, fixedDetector())
	data := createTextPNG(t, 160, 100, "HOLA")

	tests := []struct {
		filename string
		wantKey  string
	}{
		{"sample.png", "sample.png"},
		{"../../etc/evil name.png", "evil_name.png"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			w := do(s, uploadRequest(t, tt.filename, data))

			if w.Code != http.StatusSeeOther {
				t.Fatalf("status: got %d, want 303", w.Code)
			}
			if loc := w.Header().Get("Location"); loc != "/display/"+tt.wantKey {
				t.Errorf("Location: got %q", loc)
			}
			stored, err := store.Get(context.Background(), tt.wantKey)
			if err != nil {
				t.Fatalf("upload not stored: %v", err)
			}
			if !bytes.Equal(stored, data) {
				t.Error("stored bytes differ from upload")
			}
		})
	}
}

func TestEndToEnd_OneLineOfText(t *testing.T) {
	s, store := newTestServer(t, fixedDetector(lineDetection))
	src := createTextPNG(t, 200, 100, "HOLA MUNDO")

	w := do(s, uploadRequest(t, "sample.png", src))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("upload status: got %d", w.Code)
	}

	w = do(s, httptest.NewRequest(http.MethodGet, w.Header().Get("Location"), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("display status: got %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type: got %q", ct)
	}
	if got := w.Header().Get("X-Detections"); got != "1" {
		t.Errorf("X-Detections: got %q", got)
	}

	stored, err := store.Get(context.Background(), "result_sample.png")
	if err != nil {
		t.Fatalf("result artifact missing: %v", err)
	}
	if !bytes.Equal(stored, w.Body.Bytes()) {
		t.Error("response differs from stored artifact")
	}

	out := decodePNG(t, stored)
	if out.Bounds() != decodePNG(t, src).Bounds() {
		t.Errorf("dimensions: got %v", out.Bounds())
	}

	// Purple outline: bottom edge of the box.
	if got := rgbaAt(out, 70, 64); got != accent {
		t.Errorf("outline pixel: got %v, want %v", got, accent)
	}
	// Label band above the box, with white text in it.
	if got := rgbaAt(out, 128, 27); got != accent {
		t.Errorf("band pixel: got %v, want %v", got, accent)
	}
	white := 0
	for y := 25; y < 48; y++ {
		for x := 18; x < 110; x++ {
			c := rgbaAt(out, x, y)
			if c.R >= 200 && c.G >= 200 && c.B >= 200 {
				white++
			}
		}
	}
	if white == 0 {
		t.Error("no white label text in the band")
	}
}

func TestEndToEnd_NoText(t *testing.T) {
	s, store := newTestServer(t, fixedDetector())
	src := createTextPNG(t, 80, 80, "")

	do(s, uploadRequest(t, "blank.png", src))
	w := do(s, httptest.NewRequest(http.MethodGet, "/display/blank.png", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("display status: got %d", w.Code)
	}

	stored, err := store.Get(context.Background(), "result_blank.png")
	if err != nil {
		t.Fatalf("result artifact missing: %v", err)
	}
	want, got := decodePNG(t, src), decodePNG(t, stored)
	for y := 0; y < 80; y++ {
		for x := 0; x < 80; x++ {
			if rgbaAt(want, x, y) != rgbaAt(got, x, y) {
				t.Fatalf("pixel (%d,%d) changed", x, y)
			}
		}
	}
}

func TestDisplay_Errors(t *testing.T) {
	failing := ocr.DetectorFunc(func(ctx context.Context, img image.Image) ([]ocr.Detection, error) {
		return nil, errors.New("engine crashed")
	})

	tests := []struct {
		name       string
		detector   ocr.Detector
		store      map[string][]byte
		path       string
		canceled   bool
		wantStatus int
	}{
		{"missing file", fixedDetector(), nil, "/display/nope.png", false, http.StatusNotFound},
		{"invalid key", fixedDetector(), nil, "/display/.hidden", false, http.StatusBadRequest},
		{"not an image", fixedDetector(), map[string][]byte{"notes.png": []byte("hello")}, "/display/notes.png", false, http.StatusUnprocessableEntity},
		{"engine failure", failing, map[string][]byte{"a.png": nil}, "/display/a.png", false, http.StatusBadGateway},
		{"client canceled", fixedDetector(), map[string][]byte{"a.png": nil}, "/display/a.png", true, 499},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, store := newTestServer(t, tt.detector)
			for k, v := range tt.store {
				if v == nil {
					v = createTextPNG(t, 40, 40, "")
				}
				if err := store.Put(context.Background(), k, v); err != nil {
					t.Fatalf("Put failed: %v", err)
				}
			}

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.canceled {
				ctx, cancel := context.WithCancel(req.Context())
				cancel()
				req = req.WithContext(ctx)
			}
			w := do(s, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.canceled {
				if w.Body.Len() != 0 {
					t.Errorf("canceled request should have no body, got %q", w.Body.String())
				}
				if _, err := store.Get(context.Background(), "result_a.png"); !errors.Is(err, blobstore.ErrNotFound) {
					t.Errorf("canceled request must not store a result, got %v", err)
				}
				return
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("error body is not json: %v", err)
			}
			if body["error"] == "" {
				t.Error("error body has no message")
			}
		})
	}
}

func TestEndToEnd_LongFileName(t *testing.T) {
	s, store := newTestServer(t, fixedDetector(lineDetection))
	src := createTextPNG(t, 200, 100, "HOLA MUNDO")

	for _, n := range []int{190, 196, 300} {
		name := strings.Repeat("a", n) + ".png"
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			w := do(s, uploadRequest(t, name, src))
			if w.Code != http.StatusSeeOther {
				t.Fatalf("upload status: got %d", w.Code)
			}
			loc := w.Header().Get("Location")
			key := strings.TrimPrefix(loc, "/display/")

			w = do(s, httptest.NewRequest(http.MethodGet, loc, nil))
			if w.Code != http.StatusOK {
				t.Fatalf("display status for %d-byte key: got %d, body %s", len(key), w.Code, w.Body.String())
			}
			if _, err := store.Get(context.Background(), blobstore.ResultKey(key)); err != nil {
				t.Errorf("result artifact missing: %v", err)
			}
		})
	}
}

func TestDetections(t *testing.T) {
	s, store := newTestServer(t, fixedDetector(lineDetection))
	if err := store.Put(context.Background(), "sample.png", createTextPNG(t, 200, 100, "HOLA MUNDO")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	w := do(s, httptest.NewRequest(http.MethodGet, "/api/v1/detections/sample.png", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}

	var res pipeline.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if res.Width != 200 || res.Height != 100 || len(res.Detections) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Detections[0].Text != "HOLA MUNDO" || len(res.Detections[0].Region) != 4 {
		t.Errorf("detection: got %+v", res.Detections[0])
	}

	if _, err := store.Get(context.Background(), "result_sample.png"); !errors.Is(err, blobstore.ErrNotFound) {
		t.Errorf("detections endpoint must not store a result, got %v", err)
	}
}

func TestHealthAndVersion(t *testing.T) {
	s, _ := newTestServer(t, fixedDetector())

	w := do(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health status: got %d", w.Code)
	}
	var health healthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if health.Status != "ok" || health.Version != "test" || health.GoVersion == "" {
		t.Errorf("health: got %+v", health)
	}
	if health.Memory == nil || health.Memory.HeapBytes == 0 {
		t.Error("health should report memory")
	}

	w = do(s, httptest.NewRequest(http.MethodGet, "/version", nil))
	var build BuildInfo
	if err := json.Unmarshal(w.Body.Bytes(), &build); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if build.Engine != "stub" || build.Version != "test" {
		t.Errorf("version: got %+v", build)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, fixedDetector())
	do(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	w := do(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `ocr_annotate_http_requests_total{method="GET",path="/health",status="200"} 1`) {
		t.Error("request counter missing from exposition")
	}
}

func TestRequestID(t *testing.T) {
	s, _ := newTestServer(t, fixedDetector())

	w := do(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = do(s, req)
	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("request id: got %q, want abc-123", got)
	}
}
