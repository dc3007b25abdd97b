package mirror

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/fabriq-online/fabriq/packet"
)

// Publisher delivers building snapshots to interested sessions.
type Publisher interface {
	PublishBuilding(ctx context.Context, worldID, target string, b *Building) error
}

// PacketPublisher fans building snapshots out as world_building packets on
// the world's channel.
type PacketPublisher struct {
	rdb redis.Cmdable
}

var _ Publisher = (*PacketPublisher)(nil)

func NewPacketPublisher(rdb redis.Cmdable) *PacketPublisher {
	return &PacketPublisher{rdb: rdb}
}

func (p *PacketPublisher) PublishBuilding(ctx context.Context, worldID, target string, b *Building) error {
	pkt, err := packet.NewBuilder(p.rdb).
		Channel(worldID).
		Type(packet.TypeWorldBuilding).
		Target(target).
		Data(b).
		Build()
	if err != nil {
		return err
	}
	return pkt.Publish(ctx)
}
