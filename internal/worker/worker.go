// Package worker consumes account lifecycle events and sends the matching
// notification emails.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/alva-alumni/apiserver/internal/events"
	"github.com/alva-alumni/apiserver/internal/mq"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

type Notifier interface {
	NotifyAdmin(name, email string) error
	NotifyApproved(name, email string) error
}

type Worker struct {
	queue    Subscriber
	notifier Notifier
	logger   zerolog.Logger
}

func New(queue Subscriber, notifier Notifier, logger zerolog.Logger) *Worker {
	return &Worker{queue: queue, notifier: notifier, logger: logger}
}

// Run consumes both lifecycle channels until ctx is cancelled or a
// subscription fails.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, channel := range []string{events.ChannelRegistered, events.ChannelApproved} {
		g.Go(func() error {
			w.logger.Info().Str("channel", channel).Msg("subscribing")
			if err := w.queue.Subscribe(ctx, channel, w.Handle); err != nil {
				return fmt.Errorf("subscribe %s: %w", channel, err)
			}
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handle processes one delivery. Malformed payloads are acknowledged and
// dropped; mail failures are returned so the broker redelivers.
func (w *Worker) Handle(_ context.Context, msg mq.Message) error {
	event, err := events.Decode(msg.Data)
	if err != nil {
		w.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("discarding malformed event")
		return nil
	}

	log := w.logger.With().Str("event", event.Type).Str("alumni_id", event.AlumniID).Logger()
	switch event.Type {
	case events.ChannelRegistered:
		err = w.notifier.NotifyAdmin(event.Name, event.Email)
	case events.ChannelApproved:
		if !event.Approved {
			log.Debug().Msg("approval revoked; no email sent")
			return nil
		}
		err = w.notifier.NotifyApproved(event.Name, event.Email)
	default:
		log.Warn().Msg("ignoring unknown event type")
		return nil
	}
	if err != nil {
		log.Error().Err(err).Msg("send notification")
		return err
	}
	log.Info().Msg("notification sent")
	return nil
}
