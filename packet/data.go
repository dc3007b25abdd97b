package packet

// Data shapes carried by the packet types. These are wire copies; none of
// them reference live simulation state.

type RequestJoinData struct {
	SocketID string `json:"socket_id"`
	Token    string `json:"token"`
}

type JoinData struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position [2]int `json:"position"`
	SocketID string `json:"socket_id"`
}

type DisconnectData struct {
	EntityID uint32 `json:"eid"`
}

type LoadWorldData struct {
	ID           string `json:"id"`
	MainPlayerID uint32 `json:"main_player_id"`
}

type PlayerMoveData struct {
	EntityID uint32 `json:"eid"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

type RequestPlaceBuildingData struct {
	BuildingItemID int64 `json:"building_item_id"`
	Rotation       int   `json:"rotation"`
	X              int   `json:"x"`
	Y              int   `json:"y"`
}

type RequestWorldBuildingData struct {
	BuildingID int64 `json:"building_id"`
}

type RequestMoveInventoryItemData struct {
	FromID   int64  `json:"from_id"`
	FromKind string `json:"from_kind"`
	ToID     int64  `json:"to_id"`
	ToKind   string `json:"to_kind"`
	ItemID   int64  `json:"item_id"`
	Quantity int64  `json:"quantity"`
	Slot     int    `json:"slot"`
}

type RequestDestroyResourceData struct {
	ResourceEntityID uint32 `json:"resource_entity_id"`
}

type InspectBuildingData struct {
	WorldBuildingID int64 `json:"world_building_id"`
}

type RemoveEntityData struct {
	EntityIDs []uint32 `json:"entity_ids"`
}

type BuildingFinishedData struct {
	WorldBuildingID int64 `json:"world_building_id"`
}

// SyncEntityData carries a bulk entity snapshot pre-serialized by its
// producer. The buffer is opaque to the protocol and transported
// byte-for-byte; SerializationID names the producer's format so the consumer
// can pick the matching decoder.
type SyncEntityData struct {
	SerializationID string    `json:"serialization_id"`
	Buffer          ByteArray `json:"buffer"`
}
