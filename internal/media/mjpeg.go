package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
)

// MJPEG reads a multipart/x-mixed-replace JPEG stream, the format most IP
// cameras and the /video_feed endpoint serve.
type MJPEG struct {
	body   io.ReadCloser
	parts  *multipart.Reader
	cancel context.CancelFunc
}

// OpenMJPEG connects to url. The stream stays open until Close or until ctx
// is cancelled.
func OpenMJPEG(ctx context.Context, client *http.Client, url string) (*MJPEG, error) {
	if client == nil {
		client = http.DefaultClient
	}
	streamCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("connect camera stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("camera stream returned %s", resp.Status)
	}
	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("camera stream is not multipart: %q", resp.Header.Get("Content-Type"))
	}
	return &MJPEG{
		body:   resp.Body,
		parts:  multipart.NewReader(resp.Body, params["boundary"]),
		cancel: cancel,
	}, nil
}

func (m *MJPEG) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	part, err := m.parts.NextPart()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read stream part: %w", err)
	}
	defer part.Close()
	img, err := imaging.Decode(part)
	if err != nil {
		return nil, fmt.Errorf("decode stream frame: %w", err)
	}
	return img, nil
}

func (m *MJPEG) Close() error {
	m.cancel()
	return m.body.Close()
}
