package ingest

import (
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/fabriq-online/fabriq/ecs"
	"github.com/fabriq-online/fabriq/packet"
)

// EntitySink consumes drained entity-sync payloads.
type EntitySink interface {
	ApplySync(worldID string, data packet.SyncEntityData) error
}

// StoreSink writes sync buffers into an entity store. Buffers in a format
// the sink does not speak are rejected.
type StoreSink struct {
	store *ecs.Store
	log   zerolog.Logger
}

var _ EntitySink = (*StoreSink)(nil)

func NewStoreSink(store *ecs.Store, log zerolog.Logger) *StoreSink {
	return &StoreSink{store: store, log: log.With().Str("component", "entity_sink").Logger()}
}

func (s *StoreSink) ApplySync(worldID string, data packet.SyncEntityData) error {
	if data.SerializationID != ecs.SnapshotFormat {
		return eris.Errorf("unknown serialization format %q", data.SerializationID)
	}
	var snap ecs.Snapshot
	if err := json.Unmarshal(data.Buffer, &snap); err != nil {
		return eris.Wrap(err, "decode entity snapshot")
	}
	s.store.DeserializeEntity(snap)
	s.log.Debug().Str("world", worldID).Uint32("entity", uint32(snap.Entity)).
		Msg("applied entity sync")
	return nil
}
