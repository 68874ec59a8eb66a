package detector

import (
	"context"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"echallan-service/internal/domain/anpr"
)

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 320, 240))
	for i := range img.Pix {
		img.Pix[i] = 0x40
	}
	return img
}

func TestAdapterNormalizesAndFilters(t *testing.T) {
	backend := BackendFunc(func(context.Context, image.Image) ([]anpr.Candidate, error) {
		return []anpr.Candidate{
			{Text: "dl 1ab-1234", Confidence: 0.9},
			{Text: "ab1", Confidence: 0.9},
			{Text: "MH2CD5678", Confidence: 0.3},
			{Text: "ka05ef9012", Confidence: 0.31},
		}, nil
	})
	got := NewAdapter(backend, zerolog.Nop()).Detect(context.Background(), testImage())

	if len(got) != 2 {
		t.Fatalf("expected 2 valid candidates, got %+v", got)
	}
	if got[0].Text != "DL1AB1234" || got[1].Text != "KA05EF9012" {
		t.Fatalf("unexpected normalized texts: %+v", got)
	}
}

func TestAdapterFailsClosed(t *testing.T) {
	failing := BackendFunc(func(context.Context, image.Image) ([]anpr.Candidate, error) {
		return nil, errors.New("model unavailable")
	})
	if got := NewAdapter(failing, zerolog.Nop()).Detect(context.Background(), testImage()); len(got) != 0 {
		t.Fatalf("expected empty result on error, got %+v", got)
	}

	panicking := BackendFunc(func(context.Context, image.Image) ([]anpr.Candidate, error) {
		panic("boom")
	})
	if got := NewAdapter(panicking, zerolog.Nop()).Detect(context.Background(), testImage()); len(got) != 0 {
		t.Fatalf("expected empty result on panic, got %+v", got)
	}
}

func TestAnnotateLeavesSourceUntouched(t *testing.T) {
	src := testImage()
	before := append([]byte(nil), src.Pix...)
	best := anpr.Candidate{Box: image.Rect(100, 120, 200, 160), Text: "DL1AB1234", Confidence: 0.8}

	out := Annotate(src, []anpr.Candidate{best}, &best, Annotation{Tag: "ZONE 04"})

	if string(before) != string(src.Pix) {
		t.Fatal("Annotate modified the source image")
	}
	if out.Bounds() != src.Bounds() {
		t.Fatalf("bounds changed: %v", out.Bounds())
	}
	// Bottom edge of the best box is outside the header band and stroked orange.
	if got := out.NRGBAAt(150, 159); got != (color.NRGBA{R: 255, G: 165, B: 0, A: 255}) {
		t.Fatalf("expected best box stroke at bottom edge, got %v", got)
	}
	// Header band darkens the top of the frame.
	if got := out.NRGBAAt(5, 75); got.R >= 0x40 {
		t.Fatalf("expected darkened header, got %v", got)
	}
}

func TestHTTPBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "image/jpeg" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"detections":[{"box":[10,20,110,60],"text":"KA05EF9012","confidence":0.87}]}`))
	}))
	defer srv.Close()

	got, err := NewHTTPBackend(srv.URL, 0).Detect(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(got) != 1 || got[0].Text != "KA05EF9012" || got[0].Box != image.Rect(10, 20, 110, 60) {
		t.Fatalf("unexpected candidates %+v", got)
	}
}

func TestHTTPBackendStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewHTTPBackend(srv.URL, 0).Detect(context.Background(), testImage()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
