package broadcast

import (
	"context"
	"errors"
	"fmt"

	"github.com/damoang/angple-messenger/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrUnknownDriver broadcast.driver names no known transport
var ErrUnknownDriver = errors.New("unknown broadcast driver")

// Deps shared clients a driver may need
type Deps struct {
	Redis *redis.Client
	// Socket is the websocket hub, built by the caller because it also serves /ws
	Socket Driver
	Logger zerolog.Logger
}

// NewDriver maps cfg.Driver to a driver; cfg.Async wraps it in an AsyncDriver
func NewDriver(ctx context.Context, cfg config.BroadcastConfig, deps Deps) (Driver, error) {
	driver, err := newDriver(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}
	if cfg.Async {
		return NewAsyncDriver(driver, cfg.QueueSize, deps.Logger), nil
	}
	return driver, nil
}

func newDriver(ctx context.Context, cfg config.BroadcastConfig, deps Deps) (Driver, error) {
	switch cfg.Driver {
	case "", "null":
		return NullDriver{}, nil
	case "log":
		return NewLogDriver(deps.Logger), nil
	case "pusher":
		return NewPusherDriver(cfg.Pusher), nil
	case "websocket":
		if deps.Socket == nil {
			return nil, errors.New("websocket driver requires a socket hub")
		}
		return deps.Socket, nil
	case "redis":
		if deps.Redis == nil {
			return nil, errors.New("redis driver requires a redis client")
		}
		return NewRedisDriver(deps.Redis, cfg.Redis.Prefix), nil
	case "mqtt":
		d, err := NewMQTTDriver(cfg.MQTT)
		if err != nil {
			return nil, err
		}
		return d, nil
	case "http":
		return NewHTTPDriver(cfg.HTTP), nil
	case "firebase":
		d, err := NewFirebaseDriver(ctx, cfg.Firebase)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
