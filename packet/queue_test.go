package packet_test

import (
	"context"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"gotest.tools/v3/assert"

	"github.com/fabriq-online/fabriq/packet"
)

func queued(t *testing.T, typ packet.Type, data any) packet.Queued {
	t.Helper()
	raw, err := json.Marshal(data)
	assert.NilError(t, err)
	return packet.Queued{
		Type:   typ,
		Target: packet.TargetAll,
		Sender: packet.ServerSender,
		Data:   raw,
	}
}

func TestQueueIsFIFOPerWorld(t *testing.T) {
	rdb := newRedisForTest(t)
	q := packet.NewQueue(rdb)
	ctx := context.Background()

	for i := int64(0); i < 3; i++ {
		p := queued(t, packet.TypeBuildingFinished, packet.BuildingFinishedData{WorldBuildingID: i})
		assert.NilError(t, q.Enqueue(ctx, "w1", p))
	}

	for want := int64(0); want < 3; want++ {
		p, err := q.DequeueOne(ctx, "w1")
		assert.NilError(t, err)
		assert.Assert(t, p != nil)
		var data packet.BuildingFinishedData
		assert.NilError(t, json.Unmarshal(p.Data, &data))
		assert.Equal(t, want, data.WorldBuildingID)
	}

	p, err := q.DequeueOne(ctx, "w1")
	assert.NilError(t, err)
	assert.Assert(t, p == nil)
}

func TestQueuesAreIndependentPerWorld(t *testing.T) {
	rdb := newRedisForTest(t)
	q := packet.NewQueue(rdb)
	ctx := context.Background()

	assert.NilError(t, q.Enqueue(ctx, "w1", queued(t, packet.TypeJoin, struct{}{})))

	p, err := q.DequeueOne(ctx, "w2")
	assert.NilError(t, err)
	assert.Assert(t, p == nil)

	n, err := q.Len(ctx, "w1")
	assert.NilError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDequeueAllDrainsBacklogExactlyOnce(t *testing.T) {
	rdb := newRedisForTest(t)
	q := packet.NewQueue(rdb)
	ctx := context.Background()

	const producers = 4
	const perProducer = 25
	p := queued(t, packet.TypeBuildingFinished, packet.BuildingFinishedData{WorldBuildingID: 1})
	var wg sync.WaitGroup
	for n := 0; n < producers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = q.Enqueue(ctx, "w1", p)
			}
		}()
	}
	wg.Wait()

	drained, err := q.DequeueAll(ctx, "w1")
	assert.NilError(t, err)
	assert.Equal(t, producers*perProducer, len(drained))

	// The drain consumed everything; a second call gets nothing.
	rest, err := q.DequeueAll(ctx, "w1")
	assert.NilError(t, err)
	assert.Equal(t, 0, len(rest))
}

func TestDequeueAllKeepsEnqueueOrder(t *testing.T) {
	rdb := newRedisForTest(t)
	q := packet.NewQueue(rdb)
	ctx := context.Background()

	for i := int64(0); i < 5; i++ {
		assert.NilError(t, q.Enqueue(ctx, "w1",
			queued(t, packet.TypeBuildingFinished, packet.BuildingFinishedData{WorldBuildingID: i})))
	}

	drained, err := q.DequeueAll(ctx, "w1")
	assert.NilError(t, err)
	for i, p := range drained {
		var data packet.BuildingFinishedData
		assert.NilError(t, json.Unmarshal(p.Data, &data))
		assert.Equal(t, int64(i), data.WorldBuildingID)
	}
}
