package events

import (
	"bytes"
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"echallan-service/internal/domain/anpr"
)

func TestHubBroadcastsAndUnsubscribes(t *testing.T) {
	hub := NewHub()
	a, cancelA := hub.Subscribe()
	b, cancelB := hub.Subscribe()
	defer cancelB()

	ev := anpr.PlateEvent{Plate: "KA05EF9012", ConfidencePercent: 91.2}
	if err := hub.Publish(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	for _, ch := range []<-chan anpr.PlateEvent{a, b} {
		select {
		case got := <-ch:
			if got.Plate != ev.Plate {
				t.Fatalf("got %q", got.Plate)
			}
		default:
			t.Fatal("subscriber did not receive the event")
		}
	}

	cancelA()
	cancelA()
	if hub.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.Subscribers())
	}
	if _, ok := <-a; ok {
		t.Fatal("cancelled channel should be closed")
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		if err := hub.Publish(context.Background(), anpr.PlateEvent{Plate: "DL1AB1234"}); err != nil {
			t.Fatal(err)
		}
	}
	if len(ch) != subscriberBuffer {
		t.Fatalf("expected buffer to saturate at %d, got %d", subscriberBuffer, len(ch))
	}
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, anpr.PlateEvent) error { return f.err }

func TestFanoutJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	hub := NewHub()
	ch, cancel := hub.Subscribe()
	defer cancel()

	err := Fanout{hub, nil, failingPublisher{err: boom}}.Publish(context.Background(), anpr.PlateEvent{Plate: "MH2CD5678"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(ch) != 1 {
		t.Fatal("hub should still receive the event")
	}
}

func TestFrameBufferNext(t *testing.T) {
	fb := NewFrameBuffer()
	if data, v := fb.Latest(); data != nil || v != 0 {
		t.Fatal("empty buffer should have no frame")
	}

	done := make(chan []byte, 1)
	go func() {
		data, _, err := fb.Next(context.Background(), 0)
		if err != nil {
			t.Error(err)
		}
		done <- data
	}()

	time.Sleep(10 * time.Millisecond)
	if err := fb.Show(image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	select {
	case data := <-done:
		if !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
			t.Fatal("frame is not a JPEG")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not wake up")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := fb.Next(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
