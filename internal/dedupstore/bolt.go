package dedupstore

import (
	"context"

	"go.etcd.io/bbolt"

	"github.com/wnbrewery/wnbimport/internal/ingesterr"
)

// hashBucket is the bbolt bucket holding known hashes as keys (values are
// unused placeholders).
var hashBucket = []byte("known_hashes")

// BoltSource serves Contains from an external bbolt-backed catalogue
// database — the concrete "external database" spec.md §4.9 priority (a)
// gestures at, useful when dedup must span many import sessions rather than
// a single destination tree.
type BoltSource struct {
	path string
	db   *bbolt.DB
}

// NewBoltSource opens (or creates) the bbolt database at path. The database
// is not read until Load is called.
func NewBoltSource(path string) (*BoltSource, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, ingesterr.New(ingesterr.KindRead, path, "failed to open dedup catalogue database", err)
	}
	return &BoltSource{path: path, db: db}, nil
}

// Load ensures the known-hashes bucket exists; the set itself lives in the
// database and Contains reads it directly, so no in-memory mirror is built.
func (b *BoltSource) Load(ctx context.Context) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(hashBucket)
		return err
	})
	if err != nil {
		return ingesterr.New(ingesterr.KindRead, b.path, "failed to initialize dedup catalogue bucket", err)
	}
	return nil
}

// Contains reports whether hash is present in the catalogue. A read error
// is treated as "not known" — dedup is an optimization, not a correctness
// requirement, so a database hiccup degrades to "copy it again" rather than
// failing the session.
func (b *BoltSource) Contains(hash string) bool {
	found := false
	_ = b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(hashBucket)
		if bucket == nil {
			return nil
		}
		found = bucket.Get([]byte(hash)) != nil
		return nil
	})
	return found
}

// Record adds hash to the catalogue, for callers that want to grow the
// database as new files are ingested.
func (b *BoltSource) Record(hash string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(hashBucket)
		if bucket == nil {
			return nil
		}
		return bucket.Put([]byte(hash), []byte{1})
	})
	if err != nil {
		return ingesterr.New(ingesterr.KindWrite, b.path, "failed to record hash in dedup catalogue", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (b *BoltSource) Close() error {
	return b.db.Close()
}
