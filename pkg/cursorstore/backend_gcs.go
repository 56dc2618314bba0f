//go:build gcp

package cursorstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	"github.com/flywheel-sh/fcpcore/pkg/canonical"
	"github.com/flywheel-sh/fcpcore/pkg/objectid"
)

// GCSBackend is a durable Backend backed by a single GCS object per
// connector key, using object generation numbers for conditional writes
// instead of the S3 backend's ETag (spec §4.4.4's backend-level write
// fencing, GCS flavor).
type GCSBackend struct {
	client     *storage.Client
	bucket     string
	object     string
	generation int64
}

// GCSBackendConfig configures a GCSBackend.
type GCSBackendConfig struct {
	Bucket string
	Object string // object name for this connector's cursor head
}

// NewGCSBackend creates a GCS-backed Backend using Application Default
// Credentials.
func NewGCSBackend(ctx context.Context, cfg GCSBackendConfig) (*GCSBackend, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("cursorstore: create gcs client: %w", err)
	}
	return &GCSBackend{client: client, bucket: cfg.Bucket, object: cfg.Object}, nil
}

func (b *GCSBackend) LoadHead(ctx context.Context) (objectid.ObjectId, ConnectorStateObject, bool, error) {
	obj := b.client.Bucket(b.bucket).Object(b.object)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return objectid.ObjectId{}, ConnectorStateObject{}, false, nil
		}
		return objectid.ObjectId{}, ConnectorStateObject{}, false, fmt.Errorf("cursorstore: gcs attrs: %w", err)
	}

	reader, err := obj.Generation(attrs.Generation).NewReader(ctx)
	if err != nil {
		return objectid.ObjectId{}, ConnectorStateObject{}, false, fmt.Errorf("cursorstore: gcs read: %w", err)
	}
	defer func() { _ = reader.Close() }()

	body, err := io.ReadAll(reader)
	if err != nil {
		return objectid.ObjectId{}, ConnectorStateObject{}, false, fmt.Errorf("cursorstore: read gcs body: %w", err)
	}
	b.generation = attrs.Generation

	var stateObj ConnectorStateObject
	if err := canonical.DecodeCBOR(body, &stateObj); err != nil {
		return objectid.ObjectId{}, ConnectorStateObject{}, false, fmt.Errorf("cursorstore: decode stored head body: %w", err)
	}
	return objectid.FromUnscopedBytes(body), stateObj, true, nil
}

func (b *GCSBackend) StoreStateObject(ctx context.Context, stateObj ConnectorStateObject) (objectid.ObjectId, error) {
	body, err := canonical.CBOR(stateObj)
	if err != nil {
		return objectid.ObjectId{}, fmt.Errorf("cursorstore: canonicalize state object: %w", err)
	}
	id := objectid.FromUnscopedBytes(body)

	obj := b.client.Bucket(b.bucket).Object(b.object)
	conditional := obj.If(storage.Conditions{GenerationMatch: b.generation})

	w := conditional.NewWriter(ctx)
	w.ContentType = "application/cbor"
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return objectid.ObjectId{}, fmt.Errorf("cursorstore: gcs write: %w", err)
	}
	if err := w.Close(); err != nil {
		return objectid.ObjectId{}, fmt.Errorf("cursorstore: gcs close: %w", err)
	}
	b.generation = w.Attrs().Generation
	return id, nil
}

// Close closes the underlying GCS client.
func (b *GCSBackend) Close() error {
	return b.client.Close()
}
