package service

import (
	"context"
	"errors"
	"image"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"echallan-service/internal/compliance"
	"echallan-service/internal/domain/anpr"
	"echallan-service/internal/domain/challan"
	"echallan-service/internal/domain/vehicle"
	"echallan-service/internal/notify"
	"echallan-service/internal/utils"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrPersistence  = errors.New("persistence failure")
)

// ChallanStore persists adjudication records. Find returns nil without error
// for an unknown id; UpdateStatus reports whether the id exists.
type ChallanStore interface {
	Insert(ctx context.Context, c *challan.Challan) error
	Find(ctx context.Context, id string) (*challan.Challan, error)
	FindByPlateAndStatus(ctx context.Context, plate string, status challan.Status) ([]challan.Challan, error)
	UpdateStatus(ctx context.Context, id string, status challan.Status) (bool, error)
	ListRecent(ctx context.Context, limit int) ([]challan.Challan, error)
	ListSince(ctx context.Context, since time.Time) ([]challan.Challan, error)
	SumByStatus(ctx context.Context, status challan.Status) (decimal.Decimal, error)
	CountByStatus(ctx context.Context, status challan.Status) (int64, error)
	CountByViolation(ctx context.Context, fragment string) (int64, error)
}

type CaptureStore interface {
	Insert(ctx context.Context, c *anpr.Capture) error
	ListRecent(ctx context.Context, limit int) ([]anpr.Capture, error)
}

type VehicleLookup interface {
	Lookup(plate string) (vehicle.Record, bool)
}

// Detector returns the valid plate candidates in one image. It never fails;
// backend errors come back as an empty list.
type Detector interface {
	Detect(ctx context.Context, img image.Image) []anpr.Candidate
}

// Notifier hands challan notices to the delivery channel. Enqueue must not
// block; Deliver sends synchronously.
type Notifier interface {
	Enqueue(job notify.Job) error
	Deliver(ctx context.Context, job notify.Job) error
}

// NewChallanID returns ECH- followed by twelve random upper-case hex digits.
// It is safe for concurrent use.
func NewChallanID() string {
	return "ECH-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]
}

// Inspector evaluates plates against the reference dataset as of the current
// day.
type Inspector struct {
	vehicles VehicleLookup
	now      func() time.Time
}

func NewInspector(vehicles VehicleLookup, now func() time.Time) *Inspector {
	if now == nil {
		now = time.Now
	}
	return &Inspector{vehicles: vehicles, now: now}
}

// Inspect returns false when the plate is not in the reference dataset.
func (i *Inspector) Inspect(plate string) (compliance.Report, bool) {
	rec, ok := i.vehicles.Lookup(utils.NormalizePlate(plate))
	if !ok {
		return compliance.Report{}, false
	}
	return compliance.Evaluate(rec, i.now()), true
}

// Record returns the raw reference row for a plate.
func (i *Inspector) Record(plate string) (vehicle.Record, bool) {
	return i.vehicles.Lookup(utils.NormalizePlate(plate))
}
