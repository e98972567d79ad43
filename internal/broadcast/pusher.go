package broadcast

import (
	"context"
	"fmt"

	"github.com/damoang/angple-messenger/internal/config"
	"github.com/pusher/pusher-http-go/v5"
	"github.com/samber/lo"
)

// pusherMaxChannels Pusher accepts at most 100 channels per trigger
const pusherMaxChannels = 100

// PusherClient the subset of pusher.Client the driver uses
type PusherClient interface {
	TriggerMulti(channels []string, event string, data interface{}) error
}

// PusherDriver managed socket relay (Pusher Channels)
type PusherDriver struct {
	client PusherClient
}

// NewPusherDriver creates a driver from credentials
func NewPusherDriver(cfg config.PusherConfig) *PusherDriver {
	return NewPusherDriverWithClient(&pusher.Client{
		AppID:   cfg.AppID,
		Key:     cfg.Key,
		Secret:  cfg.Secret,
		Cluster: cfg.Cluster,
		Host:    cfg.Host,
		Secure:  true,
	})
}

// NewPusherDriverWithClient wraps an existing client
func NewPusherDriverWithClient(client PusherClient) *PusherDriver {
	return &PusherDriver{client: client}
}

func (d *PusherDriver) Name() string { return "pusher" }

// PusherChannelName private-/presence- prefixed channel name
func PusherChannelName(ch Channel) string {
	return string(ch.Class) + "-" + ch.Name
}

func (d *PusherDriver) Broadcast(_ context.Context, ev Event) error {
	names := lo.Uniq(lo.Map(ev.Channels, func(ch Channel, _ int) string { return PusherChannelName(ch) }))
	for _, chunk := range lo.Chunk(names, pusherMaxChannels) {
		if err := d.client.TriggerMulti(chunk, ev.Name, ev.Payload); err != nil {
			return fmt.Errorf("pusher trigger %s: %w", ev.Name, err)
		}
	}
	return nil
}
