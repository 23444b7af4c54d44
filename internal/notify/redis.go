package notify

import (
	"context"
	"encoding/json"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"kasirtoko/backend/internal/domain"
)

const DefaultChannel = "kasir:events"

// Redis publishes events as JSON on a pub/sub channel so other terminals and
// dashboards can follow sales as they happen.
type Redis struct {
	client  redis.UniversalClient
	channel string
	logger  zerolog.Logger
}

func NewRedis(client redis.UniversalClient, channel string, logger zerolog.Logger) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{client: client, channel: channel, logger: logger}
}

func (r *Redis) Emit(ctx context.Context, event domain.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.Warn().Err(err).Str("event", string(event.Kind)).Msg("encode event")
		return
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.logger.Warn().Err(err).Str("event", string(event.Kind)).Str("channel", r.channel).Msg("publish event")
	}
}
