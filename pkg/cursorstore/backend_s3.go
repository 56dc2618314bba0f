package cursorstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/flywheel-sh/fcpcore/pkg/canonical"
	"github.com/flywheel-sh/fcpcore/pkg/objectid"
)

// S3Backend is a durable Backend backed by a single S3 object per connector
// key, overwritten on every commit. It tracks the object's last-seen ETag
// and conditional-PUTs against it (If-Match) so two processes racing to
// extend the same head without a lease can't silently clobber each other's
// write underneath Store's in-memory fencing (spec §4.4.4 "a durable
// backend should additionally fence its own writes where the object store
// supports it").
type S3Backend struct {
	client *s3.Client
	bucket string
	key    string
	etag   string
}

// S3BackendConfig configures a single-object S3 cursor backend.
type S3BackendConfig struct {
	Bucket   string
	Region   string
	Endpoint string // optional custom endpoint, for MinIO/LocalStack
	Key      string // object key for this connector's cursor head
}

// NewS3Backend creates an S3-backed Backend.
func NewS3Backend(ctx context.Context, cfg S3BackendConfig) (*S3Backend, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("cursorstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Backend{client: client, bucket: cfg.Bucket, key: cfg.Key}, nil
}

func (b *S3Backend) LoadHead(ctx context.Context) (objectid.ObjectId, ConnectorStateObject, bool, error) {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(b.key)})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return objectid.ObjectId{}, ConnectorStateObject{}, false, nil
		}
		return objectid.ObjectId{}, ConnectorStateObject{}, false, fmt.Errorf("cursorstore: s3 get: %w", err)
	}
	defer func() { _ = result.Body.Close() }()

	body, err := io.ReadAll(result.Body)
	if err != nil {
		return objectid.ObjectId{}, ConnectorStateObject{}, false, fmt.Errorf("cursorstore: read s3 body: %w", err)
	}
	if result.ETag != nil {
		b.etag = *result.ETag
	}

	var obj ConnectorStateObject
	if err := canonical.DecodeCBOR(body, &obj); err != nil {
		return objectid.ObjectId{}, ConnectorStateObject{}, false, fmt.Errorf("cursorstore: decode stored head body: %w", err)
	}
	return objectid.FromUnscopedBytes(body), obj, true, nil
}

func (b *S3Backend) StoreStateObject(ctx context.Context, obj ConnectorStateObject) (objectid.ObjectId, error) {
	body, err := canonical.CBOR(obj)
	if err != nil {
		return objectid.ObjectId{}, fmt.Errorf("cursorstore: canonicalize state object: %w", err)
	}
	id := objectid.FromUnscopedBytes(body)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/cbor"),
	}
	if b.etag != "" {
		input.IfMatch = aws.String(b.etag)
	} else {
		input.IfNoneMatch = aws.String("*")
	}

	out, err := b.client.PutObject(ctx, input)
	if err != nil {
		return objectid.ObjectId{}, fmt.Errorf("cursorstore: s3 put (conditional): %w", err)
	}
	if out.ETag != nil {
		b.etag = *out.ETag
	}
	return id, nil
}
