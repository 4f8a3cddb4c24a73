// Package artifact writes a generated file, typically the backup workflow
// definition, to durable storage on behalf of the orchestrator.
package artifact

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/provider"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/reconcile"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/util"
)

// Resource type aliases routed to the materializer.
var ResourceTypes = []string{"Custom::WorkflowArtifact", "workflow-artifact"}

const DefaultContentType = "text/yaml"

const schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["BucketName", "FilePath", "WorkflowContent"],
  "properties": {
    "BucketName": {"type": "string", "minLength": 1},
    "FilePath": {"type": "string", "minLength": 1},
    "WorkflowContent": {"type": "string"},
    "ContentType": {"type": "string"}
  }
}`

// Materializer overwrites BucketName/FilePath with WorkflowContent.
type Materializer struct {
	store provider.Provider
}

func NewMaterializer(store provider.Provider) *Materializer {
	return &Materializer{store: store}
}

func (m *Materializer) Schema() string { return schema }

func (m *Materializer) Reconcile(ctx context.Context, req reconcile.Request) (reconcile.Outcome, error) {
	props := req.ResourceProperties
	bucket, err := props.String("BucketName")
	if err != nil {
		return reconcile.Outcome{}, err
	}
	path, err := props.String("FilePath")
	if err != nil {
		return reconcile.Outcome{}, err
	}
	// Empty content is a valid (empty) file; absence is not.
	content, ok := props["WorkflowContent"].(string)
	if !ok {
		return reconcile.Outcome{}, reconcile.Malformed("property WorkflowContent", reconcile.ErrMissingProperty)
	}
	contentType, err := props.OptionalString("ContentType", DefaultContentType)
	if err != nil {
		return reconcile.Outcome{}, err
	}

	uri, err := m.store.Put(ctx, provider.Object{
		Bucket:      bucket,
		Key:         strings.TrimPrefix(path, "/"),
		Body:        []byte(content),
		ContentType: contentType,
		Metadata:    map[string]string{util.ChecksumMetadataKey: util.SHA256Bytes([]byte(content))},
	})
	if err != nil {
		return reconcile.Outcome{}, reconcile.E(reconcile.KindWrite, "write artifact", err)
	}

	zerolog.Ctx(ctx).Info().
		Str("action", "materialize_artifact").
		Str("uri", uri).
		Int("bytes", len(content)).
		Msg("artifact written")
	return reconcile.Outcome{
		PhysicalResourceID: uri,
		Data:               map[string]any{"S3Uri": uri},
	}, nil
}
