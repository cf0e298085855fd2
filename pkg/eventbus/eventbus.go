// Package eventbus selects the configured domain event publisher.
package eventbus

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/constructai-backend/pkg/config"
	"github.com/angelmondragon/constructai-backend/pkg/events"
	"github.com/angelmondragon/constructai-backend/pkg/kafka"
	"github.com/angelmondragon/constructai-backend/pkg/logger"
	"github.com/angelmondragon/constructai-backend/pkg/pubsub"
)

// New returns a publisher for cfg.Events.Backend. The "none" backend drops
// every event.
func New(ctx context.Context, cfg *config.Config, logg *logger.Logger) (events.Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Events.Backend)) {
	case config.EventsBackendNone, "":
		return events.Noop{}, nil
	case config.EventsBackendPubSub:
		c, err := pubsub.NewClient(ctx, cfg.GCP, cfg.Events, logg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.EventsBackendKafka:
		p, err := kafka.NewPublisher(ctx, cfg.Events.KafkaBrokers, cfg.Events.Topic, logg)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported events backend %q", cfg.Events.Backend)
	}
}
