package packet

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// Queued is the JSON object form a packet takes on a per-world queue.
type Queued struct {
	Type   Type            `json:"packet_type"`
	Target string          `json:"target"`
	Sender Sender          `json:"sender"`
	Data   json.RawMessage `json:"data"`
}

// Queue is a durable per-world FIFO backed by a Redis list. Ordering is FIFO
// within one world; cross-world ordering is unspecified.
type Queue struct {
	rdb redis.Cmdable
}

func NewQueue(rdb redis.Cmdable) *Queue {
	return &Queue{rdb: rdb}
}

func queueKey(worldID string) string { return "queue_" + worldID }

// Enqueue appends the packet to the world's queue.
func (q *Queue) Enqueue(ctx context.Context, worldID string, p Queued) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "encode queued packet")
	}
	return eris.Wrap(q.rdb.RPush(ctx, queueKey(worldID), raw).Err(), "enqueue packet")
}

// DequeueOne pops and parses the oldest packet. An empty queue returns
// (nil, nil).
func (q *Queue) DequeueOne(ctx context.Context, worldID string) (*Queued, error) {
	raw, err := q.rdb.LPop(ctx, queueKey(worldID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "dequeue packet")
	}
	var p Queued
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, eris.Wrap(ErrMalformedPacket, "queued packet body")
	}
	return &p, nil
}

// DequeueAll atomically drains the world's backlog and parses every entry.
// The read and the delete run in one MULTI/EXEC block, so packets pushed by
// concurrent producers are either drained now or left intact for the next
// call; none are lost or delivered twice.
func (q *Queue) DequeueAll(ctx context.Context, worldID string) ([]Queued, error) {
	var rangeCmd *redis.StringSliceCmd
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rangeCmd = pipe.LRange(ctx, queueKey(worldID), 0, -1)
		pipe.Del(ctx, queueKey(worldID))
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "drain packet queue")
	}
	raws := rangeCmd.Val()
	out := make([]Queued, 0, len(raws))
	for _, raw := range raws {
		var p Queued
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, eris.Wrap(ErrMalformedPacket, "queued packet body")
		}
		out = append(out, p)
	}
	return out, nil
}

// Len reports the queue's current backlog.
func (q *Queue) Len(ctx context.Context, worldID string) (int64, error) {
	n, err := q.rdb.LLen(ctx, queueKey(worldID)).Result()
	return n, eris.Wrap(err, "queue length")
}
