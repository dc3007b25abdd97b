// Package packet implements the framed packet protocol shared by the tick,
// ingestion, and routing processes. Packets are immutable envelopes of
// {type, target, sender, data}; they carry copies of state, never references
// into the entity store or the world mirror.
package packet

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

var (
	ErrIncompletePacket = eris.New("packet is missing channel, type, or data")
	ErrNotBuilt         = eris.New("packet has not been built")
	ErrMalformedPacket  = eris.New("malformed packet frame")
)

// Type tags a packet with the event it describes.
type Type string

const (
	TypeRequestJoin              Type = "request_join"
	TypeJoin                     Type = "join"
	TypeNewPlayer                Type = "new_player"
	TypePlayerMove               Type = "player_move"
	TypePlayerSetPosition        Type = "player_set_position"
	TypeDisconnect               Type = "disconnect"
	TypeLoadWorld                Type = "load_world"
	TypeRequestPlaceBuilding     Type = "request_place_building"
	TypePlaceBuilding            Type = "place_building"
	TypeRequestWorldBuilding     Type = "request_world_building"
	TypeWorldBuilding            Type = "world_building"
	TypeRequestMoveInventoryItem Type = "request_move_inventory_item"
	TypePlayerInventory          Type = "player_inventory"
	TypeRequestDestroyResource   Type = "request_destroy_resource"
	TypeInspectBuilding          Type = "inspect_building"
	TypeDoneInspectingBuilding   Type = "done_inspecting_building"
	TypeSyncEntity               Type = "sync_entity"
	TypeRemoveEntity             Type = "remove_entity"

	// TypeBuildingFinished is emitted by the tick process when a building's
	// processing interval elapses; it never reaches clients.
	TypeBuildingFinished Type = "internal_building_finished_processing"
)

// TargetAll addresses a packet to every connected session of the channel's
// world.
const TargetAll = "all"

// channelPrefix namespaces packet channels so application traffic cannot
// collide with unrelated pub/sub activity on the same bus.
const channelPrefix = "fabriq_packet_"

// ChannelFor returns the pub/sub channel for a world.
func ChannelFor(worldID string) string { return channelPrefix + worldID }

// ChannelPattern matches every packet channel; the routing and ingestion
// processes psubscribe to it.
func ChannelPattern() string { return channelPrefix + "*" }

// WorldIDFromChannel recovers the world id a frame arrived on.
func WorldIDFromChannel(channel string) string {
	return strings.TrimPrefix(channel, channelPrefix)
}

// Sender identifies the originator of a packet. Server-originated packets use
// ServerSender.
type Sender struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SocketID string `json:"socket_id"`
	WorldID  string `json:"world_id"`
}

// ServerSender marks packets emitted by the simulation itself rather than a
// client session.
var ServerSender = Sender{ID: "SERVER", Name: "SERVER"}

// Inbound is a deconstructed packet frame.
type Inbound struct {
	Type    Type
	Target  string
	Sender  Sender
	Data    json.RawMessage
	WorldID string
}

// Deconstruct splits a wire frame received on channel back into its four
// fields. Frames with the wrong field count or undecodable sender/data JSON
// fail with ErrMalformedPacket instead of surfacing downstream as logic
// errors.
func Deconstruct(frame, channel string) (*Inbound, error) {
	parts := strings.SplitN(frame, "#", frameFields)
	if len(parts) != frameFields {
		return nil, eris.Wrapf(ErrMalformedPacket, "expected %d fields, got %d", frameFields, len(parts))
	}
	in := &Inbound{
		Type:    Type(parts[0]),
		Target:  parts[1],
		WorldID: WorldIDFromChannel(channel),
	}
	if err := json.Unmarshal([]byte(parts[2]), &in.Sender); err != nil {
		return nil, eris.Wrap(ErrMalformedPacket, "sender is not valid JSON")
	}
	if !json.Valid([]byte(parts[3])) {
		return nil, eris.Wrap(ErrMalformedPacket, "data is not valid JSON")
	}
	in.Data = json.RawMessage(parts[3])
	return in, nil
}

// DecodeData unmarshals an inbound packet's data into the shape implied by
// its type.
func DecodeData[T any](in *Inbound) (T, error) {
	var out T
	if err := json.Unmarshal(in.Data, &out); err != nil {
		return out, eris.Wrap(ErrMalformedPacket, err.Error())
	}
	return out, nil
}

const frameFields = 4
