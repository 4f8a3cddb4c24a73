package provider

import (
	"context"

	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/retention"
)

// Object is an in-memory blob written in a single call.
type Object struct {
	Bucket       string
	Key          string
	Body         []byte
	ContentType  string
	StorageClass retention.StorageClass
	Metadata     map[string]string
}

// UploadOptions applies to file uploads.
type UploadOptions struct {
	ContentType  string
	StorageClass retention.StorageClass
}

// Provider defines the contract for storage backends holding artifacts and
// backups. Buckets are S3 buckets or Azure containers; keys use "/" separators.
type Provider interface {
	// Put overwrites obj unconditionally and returns its URI (scheme://bucket/key).
	// It makes a single attempt.
	Put(ctx context.Context, obj Object) (string, error)

	// Backup uploads the local file source to bucket/key, verifies size and
	// sha256 remotely, and returns the object URI. Transient errors are retried.
	Backup(ctx context.Context, source, bucket, key string, opts UploadOptions) (string, error)

	// Restore downloads bucket/key to the local path target.
	Restore(ctx context.Context, bucket, key, target string) error

	// Name returns the provider identifier (e.g. "azure", "s3").
	Name() string
}

// URI formats scheme://bucket/key.
func URI(scheme, bucket, key string) string {
	return scheme + "://" + bucket + "/" + NormalizeKey(key)
}

// NormalizeKey drops a leading "/".
func NormalizeKey(k string) string {
	for len(k) > 0 && k[0] == '/' {
		k = k[1:]
	}
	return k
}
