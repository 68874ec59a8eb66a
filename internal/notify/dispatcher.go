package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"echallan-service/internal/domain/challan"
)

var ErrQueueFull = errors.New("notification queue full")

// Job asks for one challan notice to be delivered to one address.
type Job struct {
	Challan challan.Challan
	To      string
}

// Dispatcher renders and sends challan notices on a background worker.
// Enqueue never blocks; each job is attempted exactly once.
type Dispatcher struct {
	renderer   Renderer
	sender     Sender
	paymentURL string
	log        zerolog.Logger

	queue chan Job
	wg    sync.WaitGroup
}

func NewDispatcher(renderer Renderer, sender Sender, paymentURL string, queueSize int, log zerolog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Dispatcher{
		renderer:   renderer,
		sender:     sender,
		paymentURL: paymentURL,
		log:        log.With().Str("component", "notify").Logger(),
		queue:      make(chan Job, queueSize),
	}
}

// Enqueue schedules a job. It returns ErrQueueFull instead of waiting.
func (d *Dispatcher) Enqueue(job Job) error {
	select {
	case d.queue <- job:
		return nil
	default:
		d.log.Warn().
			Str("challan_id", job.Challan.ID).
			Str("plate", job.Challan.Plate).
			Msg("notification queue full; dropping notice")
		return ErrQueueFull
	}
}

// Run consumes the queue until ctx is cancelled. Jobs still queued at that
// point are discarded.
func (d *Dispatcher) Run(ctx context.Context) {
	d.wg.Add(1)
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-d.queue:
			if err := d.Deliver(ctx, job); err != nil {
				d.log.Error().
					Err(err).
					Str("challan_id", job.Challan.ID).
					Str("plate", job.Challan.Plate).
					Msg("failed to deliver challan notice")
			}
		}
	}
}

// Wait blocks until every Run call has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Deliver renders and sends one notice synchronously.
func (d *Dispatcher) Deliver(ctx context.Context, job Job) error {
	c := job.Challan
	doc, err := d.renderer.Render(ctx, c)
	if err != nil {
		return fmt.Errorf("render document: %w", err)
	}
	html, err := NoticeHTML(Notice{
		Plate:      c.Plate,
		ChallanID:  c.ID,
		Violation:  c.Violation,
		Amount:     c.FineAmount,
		PaymentURL: d.paymentURL,
	})
	if err != nil {
		return err
	}
	err = d.sender.Send(ctx, Message{
		To:             job.To,
		Subject:        NoticeSubject(c.Plate),
		HTML:           html,
		AttachmentName: DocumentName(c.ID),
		Attachment:     doc,
	})
	if err != nil {
		return err
	}
	d.log.Info().
		Str("challan_id", c.ID).
		Str("plate", c.Plate).
		Str("to", job.To).
		Msg("challan notice sent")
	return nil
}
