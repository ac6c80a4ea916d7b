package snapshot

import (
	"bytes"
	"context"
	"fmt"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/port/out"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

// GCSSink uploads snapshots to a Cloud Storage bucket as
// <prefix>/<run dir>_<n>_<file>.
type GCSSink struct {
	objects *storage.ObjectsService
	bucket  string
	prefix  string
	log     zerolog.Logger
}

var _ out.SnapshotSink = (*GCSSink)(nil)

// NewGCSSink authenticates with the application default credentials.
func NewGCSSink(ctx context.Context, bucket, prefix string, log zerolog.Logger) (*GCSSink, error) {
	client, err := google.DefaultClient(ctx, storage.DevstorageReadWriteScope)
	if err != nil {
		return nil, fmt.Errorf("gcs credentials: %w", err)
	}
	return NewGCSSinkWithOptions(ctx, bucket, prefix, log, option.WithHTTPClient(client))
}

// NewGCSSinkWithOptions builds the sink from explicit client options, e.g. an
// emulator endpoint.
func NewGCSSinkWithOptions(ctx context.Context, bucket, prefix string, log zerolog.Logger, opts ...option.ClientOption) (*GCSSink, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs service: %w", err)
	}
	return &GCSSink{
		objects: storage.NewObjectsService(svc),
		bucket:  bucket,
		prefix:  prefix,
		log:     log.With().Str("component", "gcs_sink").Str("bucket", bucket).Logger(),
	}, nil
}

func (s *GCSSink) Put(ctx context.Context, name string, result *domain.PipelineResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	object := &storage.Object{
		Name:        BlobName(s.prefix, name),
		ContentType: "application/json",
		Metadata: map[string]string{
			"keyword": result.Meta.Keyword,
			"uuid":    result.Meta.UUID,
		},
	}
	stored, err := s.objects.Insert(s.bucket, object).
		Media(bytes.NewReader(data), googleapi.ContentType("application/json")).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("upload snapshot %s: %w", object.Name, err)
	}

	s.log.Debug().Str("object", stored.Name).Int("bytes", len(data)).Msg("snapshot uploaded")
	return nil
}
