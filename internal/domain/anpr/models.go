package anpr

import (
	"image"
	"math"
	"time"
)

// Candidate is one detector output for one frame.
type Candidate struct {
	Box        image.Rectangle `json:"box"`
	Text       string          `json:"text"`
	Confidence float64         `json:"confidence"`
}

// Observation is the best sighting of a plate retained by the aggregator.
// Frame is the raw frame and Candidates everything detected in it, so the
// proof can be drawn around this plate later.
type Observation struct {
	Candidate
	FrameIndex int         `json:"frame_index"`
	Frame      image.Image `json:"-"`
	Candidates []Candidate `json:"-"`
}

// Capture is a persisted live-detection observation, clean or not.
type Capture struct {
	ID         string    `json:"id"`
	Plate      string    `json:"plate_number"`
	Confidence float64   `json:"confidence"`
	ImageRef   string    `json:"image_path"`
	CameraID   string    `json:"camera_id,omitempty"`
	CapturedAt time.Time `json:"timestamp"`
}

// PlateEvent is pushed to live subscribers when the camera accepts a plate.
type PlateEvent struct {
	Plate             string    `json:"plate"`
	ConfidencePercent float64   `json:"confidence"`
	CameraID          string    `json:"camera_id,omitempty"`
	DetectedAt        time.Time `json:"detected_at"`
}

type ResultStatus string

const (
	ResultClean      ResultStatus = "Clean"
	ResultViolation  ResultStatus = "Violation"
	ResultIssued     ResultStatus = "Challan Issued"
	ResultNotInRefDB ResultStatus = "Not in Database"
)

// PlateResult summarises one distinct plate seen during a scan.
type PlateResult struct {
	Plate      string       `json:"plate"`
	Confidence float64      `json:"confidence"`
	Status     ResultStatus `json:"status"`
	Reason     string       `json:"reason"`
}

// ConfidencePercent converts a [0,1] confidence to a percentage rounded to one decimal.
func ConfidencePercent(conf float64) float64 {
	return math.Round(conf*1000) / 10
}
