package production

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/fabriq-online/fabriq/packet"
)

// PacketNotifier announces finished buildings on the world's packet channel.
// The packets are internal: the routing process never forwards them to
// clients.
type PacketNotifier struct {
	rdb redis.Cmdable
}

var _ Notifier = (*PacketNotifier)(nil)

func NewPacketNotifier(rdb redis.Cmdable) *PacketNotifier {
	return &PacketNotifier{rdb: rdb}
}

func (n *PacketNotifier) BuildingFinished(ctx context.Context, worldID string, buildingID int64) error {
	pkt, err := packet.NewBuilder(n.rdb).
		Channel(worldID).
		Type(packet.TypeBuildingFinished).
		Data(packet.BuildingFinishedData{WorldBuildingID: buildingID}).
		Build()
	if err != nil {
		return err
	}
	return pkt.Publish(ctx)
}
