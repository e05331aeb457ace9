package redis

import (
	"context"
	"encoding/json"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fakhrymubarak/weather-widget/internal/widget"
)

const publishTimeout = 2 * time.Second

// Publisher is the part of the Redis client StatePublisher needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redisv9.IntCmd
}

// StatePublisher fans every state of a mounted widget out to
// "<prefix>:<session>:state" so that renderers outside this process can draw it.
type StatePublisher struct {
	client Publisher
	prefix string
	log    *zap.SugaredLogger
}

func NewStatePublisher(client Publisher, prefix string, log *zap.SugaredLogger) *StatePublisher {
	return &StatePublisher{client: client, prefix: prefix, log: log}
}

// Channel returns the channel a session's states are published on.
func (p *StatePublisher) Channel(sessionID string) string {
	return p.prefix + ":" + sessionID + ":state"
}

// Observer returns a widget.Observer publishing for sessionID. Publish
// failures are logged and otherwise ignored.
func (p *StatePublisher) Observer(sessionID string) widget.Observer {
	channel := p.Channel(sessionID)
	return func(s widget.State) {
		b, err := json.Marshal(s)
		if err != nil {
			p.log.Errorw("Could not encode widget state", "session", sessionID, "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := p.client.Publish(ctx, channel, b).Err(); err != nil {
			p.log.Warnw("Could not publish widget state", "channel", channel, "error", err)
		}
	}
}
