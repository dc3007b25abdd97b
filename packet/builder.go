package packet

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// Builder assembles an outbound packet. Channel, Type, and Data are required
// before Build; Target defaults to TargetAll and Sender to ServerSender.
// Build validates and returns a typed error instead of allowing an incomplete
// packet to reach the wire.
type Builder struct {
	rdb     redis.Cmdable
	channel string
	typ     Type
	target  string
	sender  Sender
	data    any
	hasData bool
}

// NewBuilder starts a packet for the given pub/sub client.
func NewBuilder(rdb redis.Cmdable) *Builder {
	return &Builder{rdb: rdb, target: TargetAll, sender: ServerSender}
}

// Channel sets the world whose channel the packet publishes on.
func (b *Builder) Channel(worldID string) *Builder {
	b.channel = ChannelFor(worldID)
	return b
}

// Type sets the packet type.
func (b *Builder) Type(t Type) *Builder {
	b.typ = t
	return b
}

// Target addresses the packet to a session id, a world id, or TargetAll.
func (b *Builder) Target(target string) *Builder {
	b.target = target
	return b
}

// Sender attributes the packet to a player session.
func (b *Builder) Sender(s Sender) *Builder {
	b.sender = s
	return b
}

// Data sets the payload. It is JSON-encoded at build time.
func (b *Builder) Data(v any) *Builder {
	b.data = v
	b.hasData = true
	return b
}

// Build serializes the packet into its wire frame. Missing channel, type, or
// data fails with ErrIncompletePacket.
func (b *Builder) Build() (*Packet, error) {
	if b.channel == "" || b.typ == "" || !b.hasData {
		return nil, ErrIncompletePacket
	}
	senderJSON, err := json.Marshal(b.sender)
	if err != nil {
		return nil, eris.Wrap(err, "encode packet sender")
	}
	// The frame delimiter splits type, target, and sender; only the trailing
	// data field may contain it.
	if strings.Contains(b.target, "#") {
		return nil, eris.Wrap(ErrMalformedPacket, "target must not contain '#'")
	}
	if strings.Contains(string(senderJSON), "#") {
		return nil, eris.Wrap(ErrMalformedPacket, "sender fields must not contain '#'")
	}
	dataJSON, err := json.Marshal(b.data)
	if err != nil {
		return nil, eris.Wrap(err, "encode packet data")
	}
	frame := fmt.Sprintf("%s#%s#%s#%s", b.typ, b.target, senderJSON, dataJSON)
	return &Packet{rdb: b.rdb, channel: b.channel, frame: frame, built: true}, nil
}

// Packet is a built, immutable wire frame bound to its channel.
type Packet struct {
	rdb     redis.Cmdable
	channel string
	frame   string
	built   bool
}

// Frame returns the wire form: type#target#jsonSender#jsonData.
func (p *Packet) Frame() string { return p.frame }

// Channel returns the namespaced channel the packet publishes on.
func (p *Packet) Channel() string { return p.channel }

// Publish sends the frame on the packet's channel. Publishing is
// fire-and-forget: there is no acknowledgment and no retry. A zero-value
// Packet fails with ErrNotBuilt.
func (p *Packet) Publish(ctx context.Context) error {
	if !p.built {
		return ErrNotBuilt
	}
	return eris.Wrap(p.rdb.Publish(ctx, p.channel, p.frame).Err(), "publish packet")
}
