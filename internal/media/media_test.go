package media

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
)

func TestReadPPMSequence(t *testing.T) {
	var stream bytes.Buffer
	stream.WriteString("P6\n2 1\n255\n")
	stream.Write([]byte{255, 0, 0, 0, 0, 255})
	stream.WriteString("P6 # second frame\n1 1 15\n")
	stream.Write([]byte{15, 0, 5})

	r := bufio.NewReader(&stream)
	first, err := ReadPPM(r)
	if err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if first.Bounds().Dx() != 2 || first.NRGBAAt(1, 0) != (color.NRGBA{0, 0, 255, 255}) {
		t.Fatalf("unexpected first frame %v", first.NRGBAAt(1, 0))
	}
	second, err := ReadPPM(r)
	if err != nil {
		t.Fatalf("second frame: %v", err)
	}
	if got := second.NRGBAAt(0, 0); got != (color.NRGBA{255, 0, 85, 255}) {
		t.Fatalf("maxval scaling: got %v", got)
	}
	if _, err := ReadPPM(r); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestReadPPMRejectsGarbage(t *testing.T) {
	tests := []string{
		"P5\n1 1\n255\n\x00",
		"P6\n0 1\n255\n",
		"P6\n1 1\n65535\n",
		"P6\n2 2\n255\n\x00\x00",
		"P",
	}
	for _, in := range tests {
		if _, err := ReadPPM(bufio.NewReader(strings.NewReader(in))); !errors.Is(err, ErrBadPPM) {
			t.Errorf("%q: expected ErrBadPPM, got %v", in, err)
		}
	}
}

func TestFramesSource(t *testing.T) {
	a := image.NewRGBA(image.Rect(0, 0, 1, 1))
	src := NewFrames(a, a)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := src.Next(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := src.Next(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestMJPEGStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mw := multipart.NewWriter(w)
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
		for i := 0; i < 3; i++ {
			part, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"image/jpeg"}})
			if err != nil {
				t.Error(err)
				return
			}
			img := image.NewRGBA(image.Rect(0, 0, 4+i, 4))
			if err := imaging.Encode(part, img, imaging.JPEG); err != nil {
				t.Error(err)
				return
			}
		}
		mw.Close()
	}))
	defer srv.Close()

	src, err := OpenMJPEG(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	for i := 0; i < 3; i++ {
		img, err := src.Next(context.Background())
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if img.Bounds().Dx() != 4+i {
			t.Fatalf("frame %d: width %d", i, img.Bounds().Dx())
		}
	}
	if _, err := src.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestMJPEGRejectsPlainResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		fmt.Fprint(w, "x")
	}))
	defer srv.Close()

	if _, err := OpenMJPEG(context.Background(), srv.Client(), srv.URL); err == nil {
		t.Fatal("expected error for non-multipart stream")
	}
}

func TestOpenRequiresLocation(t *testing.T) {
	if _, err := Open(context.Background(), "", " "); err == nil {
		t.Fatal("expected error")
	}
	if _, err := Open(context.Background(), Kind("v4l"), "/dev/video0"); err == nil {
		t.Fatal("expected unknown kind error")
	}
}
