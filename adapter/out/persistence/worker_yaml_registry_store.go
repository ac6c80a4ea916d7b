// Package persistence provides the registry stores and the run history.
package persistence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/port/out"

	"gopkg.in/yaml.v3"
)

// RegistryFileName is the registry file inside each country directory.
const RegistryFileName = "known_domains.yaml"

// YAMLRegistryStore keeps one YAML file per country under dir:
// <dir>/<country>/known_domains.yaml.
type YAMLRegistryStore struct {
	dir string
}

var _ out.RegistryStore = (*YAMLRegistryStore)(nil)

func NewYAMLRegistryStore(dir string) *YAMLRegistryStore {
	return &YAMLRegistryStore{dir: dir}
}

// Path returns the registry file for country.
func (s *YAMLRegistryStore) Path(country string) string {
	return filepath.Join(s.dir, strings.ToLower(country), RegistryFileName)
}

func (s *YAMLRegistryStore) Load(_ context.Context, country string) (domain.Buckets, error) {
	data, err := os.ReadFile(s.Path(country))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.NewBuckets(), nil
	}
	if err != nil {
		return domain.Buckets{}, fmt.Errorf("read registry: %w", err)
	}

	var b domain.Buckets
	if err := yaml.Unmarshal(data, &b); err != nil {
		return domain.Buckets{}, fmt.Errorf("decode registry %s: %w", s.Path(country), err)
	}
	b.Normalize()
	return b, nil
}

// Save writes to a temporary file and renames it over the registry, so readers
// never see a half-written file.
func (s *YAMLRegistryStore) Save(_ context.Context, country string, buckets domain.Buckets) error {
	buckets.Normalize()

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(buckets); err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	path := s.Path(country)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), RegistryFileName+".*")
	if err != nil {
		return fmt.Errorf("create registry temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}
