package service_test

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"echallan-service/internal/compliance"
	"echallan-service/internal/domain/anpr"
	"echallan-service/internal/domain/challan"
	"echallan-service/internal/domain/vehicle"
	"echallan-service/internal/evidence"
	"echallan-service/internal/notify"
	"echallan-service/internal/reference"
	"echallan-service/internal/repository"
	"echallan-service/internal/service"
)

var asOf = time.Date(2026, time.March, 10, 15, 30, 0, 0, time.UTC)

func day(offset int) string {
	return asOf.AddDate(0, 0, offset).Format(compliance.ExpiryLayout)
}

func record(plate, class string) vehicle.Record {
	return vehicle.Record{
		Plate:           plate,
		OwnerName:       "Owner of " + plate,
		OwnerEmail:      "owner@example.com",
		VehicleClass:    class,
		FitnessExpiry:   day(365),
		InsuranceExpiry: day(365),
		PUCExpiry:       day(365),
		PermitExpiry:    day(365),
		RoadTaxExpiry:   day(365),
	}
}

// referenceData: KA05EF9012 has lapsed insurance, DL1AB1234 lapsed insurance
// and PUC, MH2CD5678 is clean.
func referenceData() *reference.Store {
	ka := record("KA05EF9012", "Private Car")
	ka.InsuranceExpiry = day(-1)

	dl := record("DL1AB1234", "Private Car")
	dl.InsuranceExpiry = day(-30)
	dl.PUCExpiry = day(-2)
	dl.OwnerEmail = "N/A"

	mh := record("MH2CD5678", "Private Car")
	return reference.NewStore([]vehicle.Record{ka, dl, mh})
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu        sync.Mutex
	queued    []notify.Job
	delivered []notify.Job
	err       error
	queueErr  error
}

func (n *recordingNotifier) Enqueue(job notify.Job) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.queueErr != nil {
		return n.queueErr
	}
	n.queued = append(n.queued, job)
	return nil
}

func (n *recordingNotifier) Deliver(_ context.Context, job notify.Job) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delivered = append(n.delivered, job)
	return n.err
}

func (n *recordingNotifier) Queued() []notify.Job {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Job(nil), n.queued...)
}

type failingStore struct {
	*repository.MemoryChallans
}

func (failingStore) Insert(context.Context, *challan.Challan) error {
	return errors.New("connection refused")
}

// plateDetector answers by frame width so tests can script what each frame
// shows.
type plateDetector struct {
	mu      sync.Mutex
	byWidth map[int][]anpr.Candidate
	calls   int
}

func (d *plateDetector) Detect(_ context.Context, img image.Image) []anpr.Candidate {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.byWidth[img.Bounds().Dx()]
}

func (d *plateDetector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func frame(width int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, width, 48))
}

func cand(text string, conf float64) anpr.Candidate {
	return anpr.Candidate{Box: image.Rect(2, 2, 30, 20), Text: text, Confidence: conf}
}

type harness struct {
	clock     *clock
	challans  *repository.MemoryChallans
	captures  *repository.MemoryCaptures
	notifier  *recordingNotifier
	store     *evidence.LocalStore
	lifecycle *evidence.Lifecycle
	inspector *service.Inspector
	issuer    *service.Issuer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := evidence.NewLocalStore(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{
		clock:    &clock{now: asOf},
		challans: repository.NewMemoryChallans(),
		captures: repository.NewMemoryCaptures(),
		notifier: &recordingNotifier{},
		store:    store,
	}
	h.lifecycle = evidence.NewLifecycle(store)
	h.inspector = service.NewInspector(referenceData(), h.clock.Now)
	h.issuer = service.NewIssuer(h.challans, h.inspector, h.lifecycle, zerolog.Nop(),
		service.WithClock(h.clock.Now),
		service.WithNotifier(h.notifier),
	)
	return h
}

var camera = challan.Official{ID: "SYSTEM", Name: "AI Camera"}
