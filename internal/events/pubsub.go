package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"echallan-service/internal/domain/anpr"
)

// NewPubSubClient builds a client from inline credentials, or from
// application default credentials when credentialsJSON is empty.
func NewPubSubClient(ctx context.Context, projectID, credentialsJSON string) (*pubsub.Client, error) {
	if credentialsJSON != "" {
		return pubsub.NewClient(ctx, projectID, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	return pubsub.NewClient(ctx, projectID)
}

// PubSubPublisher sends plate events to a Google Pub/Sub topic. Publish
// returns once the message is queued; the server ack is awaited in the
// background and only logged.
type PubSubPublisher struct {
	topic *pubsub.Topic
	log   zerolog.Logger
}

func NewPubSubPublisher(client *pubsub.Client, topicID string, log zerolog.Logger) *PubSubPublisher {
	return &PubSubPublisher{
		topic: client.Topic(topicID),
		log:   log.With().Str("component", "pubsub").Str("topic", topicID).Logger(),
	}
}

func (p *PubSubPublisher) Publish(ctx context.Context, ev anpr.PlateEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode plate event: %w", err)
	}
	res := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"plate": ev.Plate, "camera_id": ev.CameraID},
	})
	go func() {
		waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := res.Get(waitCtx); err != nil {
			p.log.Warn().Err(err).Str("plate", ev.Plate).Msg("pubsub publish failed")
		}
	}()
	return nil
}

// Stop flushes pending messages.
func (p *PubSubPublisher) Stop() {
	p.topic.Stop()
}
