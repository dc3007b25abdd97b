package mirror

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// worldsKey holds every open world's document, one top-level member per
// world id, so path queries can span worlds.
const worldsKey = "worlds"

// RedisStore keeps world documents in a single RedisJSON document and edits
// them with point path operations instead of rewriting whole worlds.
type RedisStore struct {
	rdb redis.UniversalClient
}

var _ DocumentStore = (*RedisStore)(nil)

// NewRedisStore ensures the shared root document exists and returns a store
// over it.
func NewRedisStore(ctx context.Context, rdb redis.UniversalClient) (*RedisStore, error) {
	if err := rdb.JSONSetMode(ctx, worldsKey, "$", "{}", "NX").Err(); err != nil {
		return nil, eris.Wrap(err, "failed to initialize world document root")
	}
	return &RedisStore{rdb: rdb}, nil
}

func worldPath(worldID string) string {
	return fmt.Sprintf("$[%q]", worldID)
}

func buildingPath(worldID string, buildingID int64) string {
	if worldID == AnyWorld {
		return fmt.Sprintf("$.*.buildings[?(@.id==%d)]", buildingID)
	}
	return fmt.Sprintf("%s.buildings[?(@.id==%d)]", worldPath(worldID), buildingID)
}

func (s *RedisStore) setPath(ctx context.Context, path string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "failed to encode document value")
	}
	return eris.Wrapf(s.rdb.JSONSet(ctx, worldsKey, path, string(raw)).Err(),
		"failed to write document path %s", path)
}

// getPath decodes the array of path matches into out, which must be a
// pointer to a slice.
func (s *RedisStore) getPath(ctx context.Context, path string, out any) error {
	raw, err := s.rdb.JSONGet(ctx, worldsKey, path).Result()
	if err != nil {
		if eris.Is(err, redis.Nil) {
			return nil
		}
		return eris.Wrapf(err, "failed to read document path %s", path)
	}
	if raw == "" {
		return nil
	}
	return eris.Wrapf(json.Unmarshal([]byte(raw), out), "failed to decode document path %s", path)
}

func (s *RedisStore) PutWorld(ctx context.Context, doc *Document) error {
	return s.setPath(ctx, worldPath(doc.ID), doc)
}

func (s *RedisStore) World(ctx context.Context, worldID string) (*Document, error) {
	var docs []Document
	if err := s.getPath(ctx, worldPath(worldID), &docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return &docs[0], nil
}

func (s *RedisStore) DeleteWorld(ctx context.Context, worldID string) error {
	err := s.rdb.JSONDel(ctx, worldsKey, worldPath(worldID)).Err()
	if err != nil && !eris.Is(err, redis.Nil) {
		return eris.Wrapf(err, "failed to delete world %s", worldID)
	}
	return nil
}

func (s *RedisStore) Building(ctx context.Context, worldID string, buildingID int64) (*Building, error) {
	var matches []Building
	if err := s.getPath(ctx, buildingPath(worldID, buildingID), &matches); err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

func (s *RedisStore) BuildingsByType(ctx context.Context, worldID string, typeID int64) ([]Building, error) {
	path := fmt.Sprintf("%s.buildings[?(@.building.id==%d)]", worldPath(worldID), typeID)
	var matches []Building
	if err := s.getPath(ctx, path, &matches); err != nil {
		return nil, err
	}
	return matches, nil
}

func (s *RedisStore) PutBuilding(ctx context.Context, worldID string, b Building) error {
	return s.setPath(ctx, buildingPath(worldID, b.ID), b)
}

func (s *RedisStore) AppendBuilding(ctx context.Context, worldID string, b Building) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return eris.Wrap(err, "failed to encode building")
	}
	path := worldPath(worldID) + ".buildings"
	return eris.Wrapf(s.rdb.JSONArrAppend(ctx, worldsKey, path, string(raw)).Err(),
		"failed to append building %d to world %s", b.ID, worldID)
}

func (s *RedisStore) RemoveBuilding(ctx context.Context, worldID string, buildingID int64) error {
	err := s.rdb.JSONDel(ctx, worldsKey, buildingPath(worldID, buildingID)).Err()
	if err != nil && !eris.Is(err, redis.Nil) {
		return eris.Wrapf(err, "failed to delete building %d", buildingID)
	}
	return nil
}

func (s *RedisStore) AppendPlayer(ctx context.Context, worldID string, p Player) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "failed to encode player")
	}
	path := worldPath(worldID) + ".players"
	return eris.Wrapf(s.rdb.JSONArrAppend(ctx, worldsKey, path, string(raw)).Err(),
		"failed to append player %s to world %s", p.ID, worldID)
}

func (s *RedisStore) RemovePlayer(ctx context.Context, worldID string, playerID string) error {
	path := fmt.Sprintf("%s.players[?(@.id==%q)]", worldPath(worldID), playerID)
	err := s.rdb.JSONDel(ctx, worldsKey, path).Err()
	if err != nil && !eris.Is(err, redis.Nil) {
		return eris.Wrapf(err, "failed to delete player %s", playerID)
	}
	return nil
}

func (s *RedisStore) Players(ctx context.Context, worldID string) ([]Player, error) {
	var players []Player
	if err := s.getPath(ctx, worldPath(worldID)+".players[*]", &players); err != nil {
		return nil, err
	}
	return players, nil
}

func (s *RedisStore) RemoveResource(ctx context.Context, worldID string, resourceID int64) error {
	path := fmt.Sprintf("%s.resources[?(@.id==%d)]", worldPath(worldID), resourceID)
	err := s.rdb.JSONDel(ctx, worldsKey, path).Err()
	if err != nil && !eris.Is(err, redis.Nil) {
		return eris.Wrapf(err, "failed to delete resource %d", resourceID)
	}
	return nil
}
