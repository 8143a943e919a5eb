package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/docrev/docrev/internal/document"
)

// Store exports history-inclusive document snapshots to an object-storage
// bucket. The export is the full JSON of a document as returned by the
// engine's history-inclusive read, so an archived object alone can
// reconstruct every revision.
type Store struct {
	client *minio.Client
	bucket string
}

// Config holds the object-storage connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// NewStore connects to the object store and ensures the bucket exists.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("archive endpoint missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	s := &Store{client: mc, bucket: cfg.Bucket}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		// tolerate an already-existing bucket
		exists, xerr := mc.BucketExists(ctx, s.bucket)
		if xerr != nil || !exists {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return s, nil
}

// PutExport uploads doc and returns the object key it was stored under.
func (s *Store) PutExport(ctx context.Context, id string, doc document.Document) (string, error) {
	key, payload, err := buildExport(id, doc)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("archive put: %w", err)
	}
	return key, nil
}

// buildExport renders the object key and JSON body for an export. Keys are
// exports/<id>/rev-<n>.json so successive exports of the same document
// never overwrite each other.
func buildExport(id string, doc document.Document) (string, []byte, error) {
	revID := any(0)
	if rev, ok := doc.Revision(); ok {
		if v, ok := rev[document.RevisionIDField]; ok {
			revID = v
		}
	}
	key := fmt.Sprintf("exports/%s/rev-%v.json", id, revID)
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", nil, fmt.Errorf("archive marshal: %w", err)
	}
	return key, payload, nil
}
