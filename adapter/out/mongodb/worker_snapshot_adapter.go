package mongodb

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/port/out"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"

	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// =============================================================================
// MongoDB Snapshot Adapter
// =============================================================================

const (
	collectionSnapshots = "pipeline_snapshots"

	// envelopes above this size are stored gzipped
	compressionThreshold = 4 << 10
)

// SnapshotAdapter stores pipeline envelopes in MongoDB, one document per step.
type SnapshotAdapter struct {
	collection *mongo.Collection
}

var _ out.SnapshotSink = (*SnapshotAdapter)(nil)

func NewSnapshotAdapter(db *mongo.Database) *SnapshotAdapter {
	return &SnapshotAdapter{collection: db.Collection(collectionSnapshots)}
}

// EnsureIndexes creates the lookup indexes.
func (a *SnapshotAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "uuid", Value: 1}, {Key: "created_at", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "country", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}
	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// snapshotDocument is the stored form of one envelope.
type snapshotDocument struct {
	Name    string `bson:"name"`
	RunDir  string `bson:"run_dir"`
	File    string `bson:"file"`
	UUID    string `bson:"uuid"`
	Keyword string `bson:"keyword"`
	Country string `bson:"country"`

	NumResults int `bson:"num_results"`

	// Content is the JSON envelope, gzipped when IsCompressed
	Content        []byte `bson:"content"`
	IsCompressed   bool   `bson:"is_compressed"`
	OriginalSize   int64  `bson:"original_size"`
	CompressedSize int64  `bson:"compressed_size"`

	CreatedAt time.Time `bson:"created_at"`
}

func (a *SnapshotAdapter) Put(ctx context.Context, name string, result *domain.PipelineResult) error {
	doc, err := toDocument(name, result)
	if err != nil {
		return err
	}

	_, err = a.collection.ReplaceOne(ctx, bson.M{"name": name}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Get returns the envelope stored under name.
func (a *SnapshotAdapter) Get(ctx context.Context, name string) (*domain.PipelineResult, error) {
	var doc snapshotDocument
	err := a.collection.FindOne(ctx, bson.M{"name": name}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("snapshot")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return fromDocument(&doc)
}

// ListNames returns the snapshot names of a run in the order they were written.
func (a *SnapshotAdapter) ListNames(ctx context.Context, uuid string) ([]string, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetProjection(bson.M{"name": 1})

	cursor, err := a.collection.Find(ctx, bson.M{"uuid": uuid}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer cursor.Close(ctx)

	var names []string
	for cursor.Next(ctx) {
		var doc struct {
			Name string `bson:"name"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		names = append(names, doc.Name)
	}
	return names, cursor.Err()
}

func toDocument(name string, result *domain.PipelineResult) (*snapshotDocument, error) {
	content, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	doc := &snapshotDocument{
		Name:         name,
		RunDir:       path.Dir(name),
		File:         path.Base(name),
		UUID:         result.Meta.UUID,
		Keyword:      result.Meta.Keyword,
		Country:      result.Meta.Country,
		NumResults:   len(result.Results),
		OriginalSize: int64(len(content)),
		CreatedAt:    time.Now().UTC(),
	}

	if len(content) > compressionThreshold {
		compressed, err := compress(content)
		if err != nil {
			return nil, fmt.Errorf("failed to compress snapshot: %w", err)
		}
		doc.Content = compressed
		doc.IsCompressed = true
	} else {
		doc.Content = content
	}
	doc.CompressedSize = int64(len(doc.Content))
	return doc, nil
}

func fromDocument(doc *snapshotDocument) (*domain.PipelineResult, error) {
	content := doc.Content
	if doc.IsCompressed {
		raw, err := decompress(content)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
		}
		content = raw
	}

	var result domain.PipelineResult
	if err := json.Unmarshal(content, &result); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &result, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
