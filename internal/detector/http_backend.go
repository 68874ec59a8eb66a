package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"

	"echallan-service/internal/domain/anpr"
)

// HTTPBackend posts a JPEG frame to a remote detection service.
type HTTPBackend struct {
	endpoint string
	client   *http.Client
}

type httpDetection struct {
	Box        [4]int  `json:"box"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type httpResponse struct {
	Detections []httpDetection `json:"detections"`
}

func NewHTTPBackend(endpoint string, timeout time.Duration) *HTTPBackend {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPBackend{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (b *HTTPBackend) Detect(ctx context.Context, img image.Image) ([]anpr.Candidate, error) {
	var body bytes.Buffer
	if err := imaging.Encode(&body, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("build detect request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detect request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detect request failed: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var parsed httpResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode detect response: %w", err)
	}

	out := make([]anpr.Candidate, 0, len(parsed.Detections))
	for _, d := range parsed.Detections {
		out = append(out, anpr.Candidate{
			Box:        image.Rect(d.Box[0], d.Box[1], d.Box[2], d.Box[3]),
			Text:       d.Text,
			Confidence: d.Confidence,
		})
	}
	return out, nil
}
