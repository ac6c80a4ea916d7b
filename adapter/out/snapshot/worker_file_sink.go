// Package snapshot stores pipeline envelopes after each step, on local disk or
// in a Cloud Storage bucket.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/port/out"

	"github.com/goccy/go-json"
)

// FileSink writes each snapshot as indented JSON under root.
type FileSink struct {
	root string
}

var _ out.SnapshotSink = (*FileSink)(nil)

func NewFileSink(root string) *FileSink {
	return &FileSink{root: root}
}

// Path returns the file a snapshot name is written to.
func (s *FileSink) Path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

func (s *FileSink) Put(_ context.Context, name string, result *domain.PipelineResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	path := s.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// BlobName flattens a run-relative snapshot name into a single object name.
func BlobName(prefix, name string) string {
	flat := strings.ReplaceAll(name, "/", "_")
	if prefix = strings.Trim(prefix, "/"); prefix == "" {
		return flat
	}
	return prefix + "/" + flat
}

// MultiSink writes to every sink and reports the first failure.
type MultiSink []out.SnapshotSink

func (m MultiSink) Put(ctx context.Context, name string, result *domain.PipelineResult) error {
	var first error
	for _, s := range m {
		if err := s.Put(ctx, name, result); err != nil && first == nil {
			first = err
		}
	}
	return first
}
