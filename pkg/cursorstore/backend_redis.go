package cursorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/flywheel-sh/fcpcore/pkg/canonical"
	"github.com/flywheel-sh/fcpcore/pkg/objectid"
)

// RedisBackend is a durable Backend backed by a single Redis hash per
// connector key, holding the head object id alongside its canonical-CBOR
// body.
type RedisBackend struct {
	client *redis.Client
	key    string
}

// NewRedisBackend wraps an existing Redis client for the connector
// identified by key (e.g. "fcp:cursor:<zone_id>:<connector_id>").
func NewRedisBackend(client *redis.Client, key string) *RedisBackend {
	return &RedisBackend{client: client, key: key}
}

func (b *RedisBackend) LoadHead(ctx context.Context) (objectid.ObjectId, ConnectorStateObject, bool, error) {
	res, err := b.client.HMGet(ctx, b.key, "object_id", "body").Result()
	if err != nil {
		return objectid.ObjectId{}, ConnectorStateObject{}, false, fmt.Errorf("cursorstore: redis hmget: %w", err)
	}
	if len(res) != 2 || res[0] == nil || res[1] == nil {
		return objectid.ObjectId{}, ConnectorStateObject{}, false, nil
	}

	idHex, ok := res[0].(string)
	if !ok {
		return objectid.ObjectId{}, ConnectorStateObject{}, false, errors.New("cursorstore: redis object_id field is not a string")
	}
	body, ok := res[1].(string)
	if !ok {
		return objectid.ObjectId{}, ConnectorStateObject{}, false, errors.New("cursorstore: redis body field is not a string")
	}

	id, err := objectid.Parse(idHex)
	if err != nil {
		return objectid.ObjectId{}, ConnectorStateObject{}, false, fmt.Errorf("cursorstore: parse stored head id: %w", err)
	}
	var obj ConnectorStateObject
	if err := canonical.DecodeCBOR([]byte(body), &obj); err != nil {
		return objectid.ObjectId{}, ConnectorStateObject{}, false, fmt.Errorf("cursorstore: decode stored head body: %w", err)
	}
	return id, obj, true, nil
}

func (b *RedisBackend) StoreStateObject(ctx context.Context, obj ConnectorStateObject) (objectid.ObjectId, error) {
	body, err := canonical.CBOR(obj)
	if err != nil {
		return objectid.ObjectId{}, fmt.Errorf("cursorstore: canonicalize state object: %w", err)
	}
	id := objectid.FromUnscopedBytes(body)

	if err := b.client.HSet(ctx, b.key, "object_id", id.String(), "body", body).Err(); err != nil {
		return objectid.ObjectId{}, fmt.Errorf("cursorstore: redis hset: %w", err)
	}
	return id, nil
}
