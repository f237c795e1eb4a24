package embedding

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	manifestBucket = "embedding_runs"
	manifestKey    = "current"
)

// RunManifest records the parameters of the last completed embedding run.
// Vectors on the graph are only trusted when they match the recorded
// dimensionality; anything produced under different parameters counts as
// missing.
type RunManifest struct {
	Dimensions  int       `json:"dimensions"`
	WalkLength  int       `json:"walk_length"`
	NumWalks    int       `json:"num_walks"`
	Window      int       `json:"window"`
	Seed        uint64    `json:"seed"`
	NodeCount   int       `json:"node_count"`
	CompletedAt time.Time `json:"completed_at"`
}

// ManifestStore persists run manifests in a local bbolt file.
type ManifestStore struct {
	db *bolt.DB
}

// OpenManifestStore opens (creating if needed) the manifest database.
func OpenManifestStore(path string) (*ManifestStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create manifest directory: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open manifest db: %w", err)
	}
	return &ManifestStore{db: db}, nil
}

// Close closes the database.
func (m *ManifestStore) Close() error {
	return m.db.Close()
}

// Current returns the last recorded manifest, or nil when no run has
// completed yet.
func (m *ManifestStore) Current() (*RunManifest, error) {
	var manifest *RunManifest
	err := m.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(manifestBucket))
		if bucket == nil {
			return nil
		}
		data := bucket.Get([]byte(manifestKey))
		if data == nil {
			return nil
		}
		manifest = &RunManifest{}
		return json.Unmarshal(data, manifest)
	})
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return manifest, nil
}

// Record stores the manifest of a completed run.
func (m *ManifestStore) Record(manifest RunManifest) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(manifestBucket))
		if err != nil {
			return err
		}
		data, err := json.Marshal(manifest)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(manifestKey), data)
	})
}
