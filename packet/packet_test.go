package packet_test

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/fabriq-online/fabriq/packet"
)

// roundTrip builds a frame and deconstructs it again, returning the decoded
// payload.
func roundTrip[T any](t *testing.T, typ packet.Type, target string, sender packet.Sender, data T) (packet.Inbound, T) {
	t.Helper()
	rdb := newRedisForTest(t)
	p, err := packet.NewBuilder(rdb).
		Channel("w1").
		Type(typ).
		Target(target).
		Sender(sender).
		Data(data).
		Build()
	assert.NilError(t, err)

	in, err := packet.Deconstruct(p.Frame(), packet.ChannelFor("w1"))
	assert.NilError(t, err)
	got, err := packet.DecodeData[T](in)
	assert.NilError(t, err)
	return *in, got
}

func TestRoundTripPerDataShape(t *testing.T) {
	sender := packet.Sender{ID: "u1", Name: "ada", SocketID: "s1", WorldID: "w1"}

	t.Run("join", func(t *testing.T) {
		want := packet.JoinData{ID: "u1", Name: "ada", Position: [2]int{3, 9}, SocketID: "s1"}
		in, got := roundTrip(t, packet.TypeJoin, packet.TargetAll, sender, want)
		assert.Equal(t, want, got)
		assert.Equal(t, sender, in.Sender)
	})

	t.Run("place building request", func(t *testing.T) {
		want := packet.RequestPlaceBuildingData{BuildingItemID: 12, Rotation: 90, X: -4, Y: 7}
		_, got := roundTrip(t, packet.TypeRequestPlaceBuilding, "w1", sender, want)
		assert.Equal(t, want, got)
	})

	t.Run("move inventory item request", func(t *testing.T) {
		want := packet.RequestMoveInventoryItemData{
			FromID: 1, FromKind: "building", ToID: 2, ToKind: "player",
			ItemID: 5, Quantity: 3, Slot: 1,
		}
		_, got := roundTrip(t, packet.TypeRequestMoveInventoryItem, "s1", sender, want)
		assert.Equal(t, want, got)
	})

	t.Run("building finished", func(t *testing.T) {
		want := packet.BuildingFinishedData{WorldBuildingID: 77}
		in, got := roundTrip(t, packet.TypeBuildingFinished, "w1", packet.ServerSender, want)
		assert.Equal(t, want, got)
		assert.Equal(t, packet.ServerSender, in.Sender)
	})

	t.Run("entity sync buffer is byte for byte", func(t *testing.T) {
		want := packet.SyncEntityData{
			SerializationID: "player",
			Buffer:          packet.ByteArray{0, 1, 127, 128, 255},
		}
		_, got := roundTrip(t, packet.TypeSyncEntity, packet.TargetAll, packet.ServerSender, want)
		assert.DeepEqual(t, want, got)
	})
}

func TestDeconstructRejectsMalformedFrames(t *testing.T) {
	cases := []struct {
		name  string
		frame string
	}{
		{"too few fields", "join#all#{}"},
		{"empty", ""},
		{"bad sender json", "join#all#not-json#{}"},
		{"bad data json", `join#all#{"id":"u1"}#{not-json`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := packet.Deconstruct(tc.frame, packet.ChannelFor("w1"))
			assert.ErrorIs(t, err, packet.ErrMalformedPacket)
		})
	}
}

func TestWorldIDFromChannel(t *testing.T) {
	assert.Equal(t, "w42", packet.WorldIDFromChannel(packet.ChannelFor("w42")))
}

func TestByteArrayRejectsOutOfRangeValues(t *testing.T) {
	var b packet.ByteArray
	err := b.UnmarshalJSON([]byte("[0,256]"))
	assert.ErrorIs(t, err, packet.ErrMalformedPacket)
}
