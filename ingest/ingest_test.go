package ingest

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gotest.tools/v3/assert"

	"github.com/fabriq-online/fabriq/durable"
	"github.com/fabriq-online/fabriq/ecs"
	"github.com/fabriq-online/fabriq/mirror"
	"github.com/fabriq-online/fabriq/packet"
)

const testWorld = "overworld"

type moveCall struct {
	fromID   int64
	fromKind string
	toID     int64
	toKind   string
	itemID   int64
	quantity int64
}

type fakeStore struct {
	typesByItem map[int64]*durable.BuildingType
	buildings   map[int64]*durable.WorldBuilding
	resources   map[int64]bool
	panicky     bool

	created          []durable.NewBuilding
	moves            []moveCall
	deletedResources []int64
	nextID           int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		typesByItem: map[int64]*durable.BuildingType{},
		buildings:   map[int64]*durable.WorldBuilding{},
		resources:   map[int64]bool{},
		nextID:      100,
	}
}

func (f *fakeStore) FindBuilding(_ context.Context, id int64) (*durable.WorldBuilding, error) {
	return f.buildings[id], nil
}

func (f *fakeStore) FindTypeByItem(_ context.Context, itemID int64) (*durable.BuildingType, error) {
	if f.panicky {
		panic("durable store exploded")
	}
	return f.typesByItem[itemID], nil
}

func (f *fakeStore) CreateBuilding(_ context.Context, nb durable.NewBuilding) (*durable.WorldBuilding, error) {
	f.created = append(f.created, nb)
	f.nextID++
	wb := &durable.WorldBuilding{
		ID:              f.nextID,
		WorldID:         nb.WorldID,
		BuildingTypeID:  nb.BuildingTypeID,
		X:               nb.X,
		Y:               nb.Y,
		Rotation:        nb.Rotation,
		Active:          true,
		WorldResourceID: nb.WorldResourceID,
	}
	f.buildings[wb.ID] = wb
	return wb, nil
}

func (f *fakeStore) UpdateBuildingFields(context.Context, int64, durable.BuildingFieldPatch) error {
	return nil
}

func (f *fakeStore) MoveInventory(_ context.Context, fromID int64, fromKind string, toID int64, toKind string, itemID, quantity int64) error {
	f.moves = append(f.moves, moveCall{fromID, fromKind, toID, toKind, itemID, quantity})
	return nil
}

func (f *fakeStore) DeleteResource(_ context.Context, id int64) error {
	if !f.resources[id] {
		return durable.ErrNotFound
	}
	delete(f.resources, id)
	f.deletedResources = append(f.deletedResources, id)
	return nil
}

type fakeHydrator struct {
	buildings map[int64]mirror.Building
}

func (f *fakeHydrator) World(context.Context, string) (*mirror.Document, error) {
	return nil, nil
}

func (f *fakeHydrator) Building(_ context.Context, id int64) (string, *mirror.Building, error) {
	b, ok := f.buildings[id]
	if !ok {
		return "", nil, nil
	}
	return testWorld, &b, nil
}

type recordingSink struct {
	applied []packet.SyncEntityData
}

func (r *recordingSink) ApplySync(_ string, data packet.SyncEntityData) error {
	r.applied = append(r.applied, data)
	return nil
}

type harness struct {
	svc     *Service
	store   *fakeStore
	hydra   *fakeHydrator
	mirSvc  *mirror.Service
	mirDocs *mirror.MemoryStore
	sink    *recordingSink
	rdb     *redis.Client
}

func newHarness(t *testing.T, doc *mirror.Document) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	docs := mirror.NewMemoryStore()
	hydra := &fakeHydrator{buildings: map[int64]mirror.Building{}}
	mirSvc := mirror.NewService(docs, hydra, mirror.NewPacketPublisher(rdb), zerolog.Nop())
	if doc != nil {
		assert.NilError(t, docs.PutWorld(context.Background(), doc))
	}

	store := newFakeStore()
	sink := &recordingSink{}
	svc := NewService(rdb, mirSvc, store, packet.NewQueue(rdb), sink, zerolog.Nop())
	return &harness{svc: svc, store: store, hydra: hydra, mirSvc: mirSvc, mirDocs: docs, sink: sink, rdb: rdb}
}

func inbound(t *testing.T, typ packet.Type, sender packet.Sender, data any) *packet.Inbound {
	t.Helper()
	raw, err := json.Marshal(data)
	assert.NilError(t, err)
	return &packet.Inbound{
		Type:    typ,
		Target:  packet.TargetAll,
		Sender:  sender,
		Data:    raw,
		WorldID: testWorld,
	}
}

func TestUnhandledTypesAreDropped(t *testing.T) {
	h := newHarness(t, &mirror.Document{ID: testWorld})
	h.svc.Dispatch(context.Background(), inbound(t, packet.TypeWorldBuilding, packet.ServerSender, map[string]int{}))
	assert.Equal(t, len(h.store.created), 0)
	assert.Equal(t, len(h.store.moves), 0)
}

func TestHandlerPanicIsContained(t *testing.T) {
	h := newHarness(t, &mirror.Document{ID: testWorld})
	h.store.panicky = true
	h.svc.Dispatch(context.Background(), inbound(t, packet.TypeRequestPlaceBuilding, packet.ServerSender,
		packet.RequestPlaceBuildingData{BuildingItemID: 1}))
	// Dispatch returned instead of unwinding the process.
	assert.Equal(t, len(h.store.created), 0)
}

func TestRepeatedJoinKeepsOnePlayerEntry(t *testing.T) {
	h := newHarness(t, &mirror.Document{ID: testWorld})
	join := inbound(t, packet.TypeRequestJoin,
		packet.Sender{ID: "p1", Name: "miner", SocketID: "sock-1"},
		packet.RequestJoinData{SocketID: "sock-1"})

	h.svc.Dispatch(context.Background(), join)
	h.svc.Dispatch(context.Background(), join)

	players, err := h.mirSvc.Players(context.Background(), testWorld)
	assert.NilError(t, err)
	assert.Equal(t, len(players), 1, "player entries must be unique by id within a world")
}

func TestPlaceBuildingUnknownItemIsDropped(t *testing.T) {
	h := newHarness(t, &mirror.Document{ID: testWorld})
	h.svc.Dispatch(context.Background(), inbound(t, packet.TypeRequestPlaceBuilding, packet.ServerSender,
		packet.RequestPlaceBuildingData{BuildingItemID: 9, X: 1, Y: 1}))
	assert.Equal(t, len(h.store.created), 0)
}

func TestPlaceBuildingCreatesAndMirrors(t *testing.T) {
	h := newHarness(t, &mirror.Document{ID: testWorld})
	h.store.typesByItem[9] = &durable.BuildingType{ID: 3, ProcessingTicks: 5}
	ctx := context.Background()

	h.svc.Dispatch(ctx, inbound(t, packet.TypeRequestPlaceBuilding, packet.Sender{ID: "p1"},
		packet.RequestPlaceBuildingData{BuildingItemID: 9, X: 4, Y: 6, Rotation: 90}))

	assert.Equal(t, len(h.store.created), 1)
	assert.Equal(t, h.store.created[0].BuildingTypeID, int64(3))
	assert.Equal(t, h.store.created[0].X, 4)
	assert.Equal(t, h.store.created[0].Rotation, 90)

	// The hydrator had no snapshot wired, so the refresh is a logged no-op;
	// wire one and place again to see the mirror entry appear.
	h.hydra.buildings[102] = mirror.Building{ID: 102, Type: mirror.TypeInfo{ID: 3}, Inspectors: []string{}}
	h.svc.Dispatch(ctx, inbound(t, packet.TypeRequestPlaceBuilding, packet.Sender{ID: "p1"},
		packet.RequestPlaceBuildingData{BuildingItemID: 9, X: 5, Y: 6}))

	got, err := h.mirSvc.Building(ctx, testWorld, 102)
	assert.NilError(t, err)
	assert.Assert(t, got != nil)
}

func TestPlaceBuildingRequiresSitedResource(t *testing.T) {
	doc := &mirror.Document{
		ID:        testWorld,
		Resources: []mirror.Resource{{ID: 7, ItemID: 20, X: 4, Y: 6}},
	}
	h := newHarness(t, doc)
	h.store.typesByItem[9] = &durable.BuildingType{ID: 3, PlacedOnItemIDs: []int64{20}}
	ctx := context.Background()

	// Wrong tile: nothing is created.
	h.svc.Dispatch(ctx, inbound(t, packet.TypeRequestPlaceBuilding, packet.Sender{ID: "p1"},
		packet.RequestPlaceBuildingData{BuildingItemID: 9, X: 0, Y: 0}))
	assert.Equal(t, len(h.store.created), 0)

	// On the resource: created and linked to it.
	h.svc.Dispatch(ctx, inbound(t, packet.TypeRequestPlaceBuilding, packet.Sender{ID: "p1"},
		packet.RequestPlaceBuildingData{BuildingItemID: 9, X: 4, Y: 6}))
	assert.Equal(t, len(h.store.created), 1)
	assert.Assert(t, h.store.created[0].WorldResourceID != nil)
	assert.Equal(t, *h.store.created[0].WorldResourceID, int64(7))
}

func TestInspectRegistersSession(t *testing.T) {
	doc := &mirror.Document{
		ID:        testWorld,
		Buildings: []mirror.Building{{ID: 5, Inspectors: []string{}}},
	}
	h := newHarness(t, doc)
	ctx := context.Background()

	h.svc.Dispatch(ctx, inbound(t, packet.TypeRequestWorldBuilding, packet.Sender{SocketID: "sess-a"},
		packet.RequestWorldBuildingData{BuildingID: 5}))

	got, err := h.mirSvc.Building(ctx, testWorld, 5)
	assert.NilError(t, err)
	assert.DeepEqual(t, got.Inspectors, []string{"sess-a"})

	h.svc.Dispatch(ctx, inbound(t, packet.TypeDoneInspectingBuilding, packet.Sender{SocketID: "sess-a"},
		packet.InspectBuildingData{WorldBuildingID: 5}))

	got, err = h.mirSvc.Building(ctx, testWorld, 5)
	assert.NilError(t, err)
	assert.Equal(t, len(got.Inspectors), 0)
}

func TestMoveInventoryValidatesBothBuildingEnds(t *testing.T) {
	h := newHarness(t, &mirror.Document{ID: testWorld})
	h.store.buildings[1] = &durable.WorldBuilding{ID: 1}
	ctx := context.Background()

	// Destination building 2 does not exist; nothing moves.
	h.svc.Dispatch(ctx, inbound(t, packet.TypeRequestMoveInventoryItem, packet.Sender{SocketID: "sess-a"},
		packet.RequestMoveInventoryItemData{
			FromID: 1, FromKind: durable.OwnerBuilding,
			ToID: 2, ToKind: durable.OwnerBuilding,
			ItemID: 10, Quantity: 3,
		}))
	assert.Equal(t, len(h.store.moves), 0)

	h.store.buildings[2] = &durable.WorldBuilding{ID: 2}
	h.svc.Dispatch(ctx, inbound(t, packet.TypeRequestMoveInventoryItem, packet.Sender{SocketID: "sess-a"},
		packet.RequestMoveInventoryItemData{
			FromID: 1, FromKind: durable.OwnerBuilding,
			ToID: 2, ToKind: durable.OwnerBuilding,
			ItemID: 10, Quantity: 3,
		}))
	assert.Equal(t, len(h.store.moves), 1)
	assert.Equal(t, h.store.moves[0], moveCall{1, durable.OwnerBuilding, 2, durable.OwnerBuilding, 10, 3})
}

func TestMoveInventoryRejectsNonPositiveQuantity(t *testing.T) {
	h := newHarness(t, &mirror.Document{ID: testWorld})
	h.svc.Dispatch(context.Background(), inbound(t, packet.TypeRequestMoveInventoryItem, packet.Sender{SocketID: "sess-a"},
		packet.RequestMoveInventoryItemData{FromID: 1, FromKind: durable.OwnerPlayer, ToID: 1, ToKind: durable.OwnerBuilding, ItemID: 10, Quantity: 0}))
	assert.Equal(t, len(h.store.moves), 0)
}

func TestDestroyResourceRemovesEverywhere(t *testing.T) {
	doc := &mirror.Document{
		ID:        testWorld,
		Resources: []mirror.Resource{{ID: 7, ItemID: 20, X: 4, Y: 6}},
	}
	h := newHarness(t, doc)
	h.store.resources[7] = true
	ctx := context.Background()

	h.svc.Dispatch(ctx, inbound(t, packet.TypeRequestDestroyResource, packet.Sender{ID: "p1"},
		packet.RequestDestroyResourceData{ResourceEntityID: 7}))

	assert.DeepEqual(t, h.store.deletedResources, []int64{7})
	got, err := h.mirSvc.World(ctx, testWorld)
	assert.NilError(t, err)
	assert.Equal(t, len(got.Resources), 0)
}

func TestDestroyUnknownResourceIsDropped(t *testing.T) {
	doc := &mirror.Document{
		ID:        testWorld,
		Resources: []mirror.Resource{{ID: 7, ItemID: 20}},
	}
	h := newHarness(t, doc)
	ctx := context.Background()

	h.svc.Dispatch(ctx, inbound(t, packet.TypeRequestDestroyResource, packet.Sender{ID: "p1"},
		packet.RequestDestroyResourceData{ResourceEntityID: 7}))

	// Durable store never had it, so the mirror keeps it too.
	got, err := h.mirSvc.World(ctx, testWorld)
	assert.NilError(t, err)
	assert.Equal(t, len(got.Resources), 1)
}

func syncData(t *testing.T, entity ecs.EntityID) packet.SyncEntityData {
	t.Helper()
	raw, err := json.Marshal(ecs.Snapshot{Entity: entity})
	assert.NilError(t, err)
	return packet.SyncEntityData{SerializationID: ecs.SnapshotFormat, Buffer: raw}
}

func TestSyncPacketsDrainInArrivalOrder(t *testing.T) {
	h := newHarness(t, &mirror.Document{ID: testWorld})
	ctx := context.Background()
	queue := packet.NewQueue(h.rdb)

	for _, eid := range []ecs.EntityID{4, 2, 9} {
		raw, err := json.Marshal(syncData(t, eid))
		assert.NilError(t, err)
		assert.NilError(t, queue.Enqueue(ctx, testWorld, packet.Queued{
			Type:   packet.TypeSyncEntity,
			Target: packet.TargetAll,
			Sender: packet.ServerSender,
			Data:   raw,
		}))
	}

	assert.NilError(t, h.svc.DrainSync(ctx, testWorld))
	assert.Equal(t, len(h.sink.applied), 3)

	var order []ecs.EntityID
	for _, data := range h.sink.applied {
		var snap ecs.Snapshot
		assert.NilError(t, json.Unmarshal(data.Buffer, &snap))
		order = append(order, snap.Entity)
	}
	assert.DeepEqual(t, order, []ecs.EntityID{4, 2, 9})
}

func TestSyncDispatchAppliesThroughQueue(t *testing.T) {
	h := newHarness(t, &mirror.Document{ID: testWorld})
	h.svc.Dispatch(context.Background(), inbound(t, packet.TypeSyncEntity, packet.ServerSender, syncData(t, 3)))
	assert.Equal(t, len(h.sink.applied), 1)

	// The backlog was drained, not left behind.
	n, err := packet.NewQueue(h.rdb).Len(context.Background(), testWorld)
	assert.NilError(t, err)
	assert.Equal(t, n, int64(0))
}

func TestStoreSinkRejectsForeignFormats(t *testing.T) {
	sink := NewStoreSink(ecs.NewStore(16), zerolog.Nop())
	err := sink.ApplySync(testWorld, packet.SyncEntityData{SerializationID: "protobuf_v2", Buffer: []byte("{}")})
	assert.ErrorContains(t, err, "unknown serialization format")
}
