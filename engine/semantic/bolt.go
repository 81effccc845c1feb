package semantic

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketMeta   = []byte("meta")
	bucketPoints = []byte("points")
	keyDims      = []byte("dims")
)

// BoltIndex is an Index persisted in a single bbolt file. Search is
// brute force over every stored vector, which suits catalogues of up to
// tens of thousands of courses.
type BoltIndex struct {
	db *bbolt.DB
}

type boltPoint struct {
	Vector  []float32         `json:"vector"`
	Payload map[string]string `json:"payload,omitempty"`
}

// OpenBolt opens (creating if needed) the index file at path.
func OpenBolt(path string) (*BoltIndex, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("semantic: open bolt %s: %w", path, err)
	}
	return &BoltIndex{db: db}, nil
}

// Initialize records the dimension when the collection does not exist yet.
func (b *BoltIndex) Initialize(_ context.Context, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("semantic: bolt: dimension must be positive, got %d", dims)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return fmt.Errorf("semantic: bolt: create meta bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists(bucketPoints); err != nil {
			return fmt.Errorf("semantic: bolt: create points bucket: %w", err)
		}
		if meta.Get(keyDims) != nil {
			return nil
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(dims))
		return meta.Put(keyDims, buf[:])
	})
}

func storedDims(tx *bbolt.Tx) (int, error) {
	meta := tx.Bucket(bucketMeta)
	if meta == nil {
		return 0, ErrNotInitialized
	}
	raw := meta.Get(keyDims)
	if len(raw) != 8 {
		return 0, ErrNotInitialized
	}
	return int(binary.BigEndian.Uint64(raw)), nil
}

// Upsert implements Index.
func (b *BoltIndex) Upsert(_ context.Context, rec Record) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		dims, err := storedDims(tx)
		if err != nil {
			return err
		}
		if len(rec.Vector) != dims {
			return fmt.Errorf("%w: got %d, want %d", ErrDimension, len(rec.Vector), dims)
		}
		data, err := json.Marshal(boltPoint{Vector: rec.Vector, Payload: rec.Payload})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketPoints).Put([]byte(rec.ID), data)
	})
	if err != nil {
		return fmt.Errorf("semantic: bolt: upsert %s: %w: %w", rec.ID, ErrWrite, err)
	}
	return nil
}

// Retrieve implements Index.
func (b *BoltIndex) Retrieve(_ context.Context, id string) (Record, bool, error) {
	var (
		rec   Record
		found bool
	)
	err := b.db.View(func(tx *bbolt.Tx) error {
		points := tx.Bucket(bucketPoints)
		if points == nil {
			return ErrNotInitialized
		}
		raw := points.Get([]byte(id))
		if raw == nil {
			return nil
		}
		var p boltPoint
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		rec = Record{ID: id, Vector: p.Vector, Payload: p.Payload}
		found = true
		return nil
	})
	if err != nil {
		return Record{}, false, fmt.Errorf("semantic: bolt: retrieve %s: %w: %w", id, ErrRead, err)
	}
	return rec, found, nil
}

// Delete implements Index.
func (b *BoltIndex) Delete(_ context.Context, id string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		points := tx.Bucket(bucketPoints)
		if points == nil {
			return ErrNotInitialized
		}
		return points.Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("semantic: bolt: delete %s: %w: %w", id, ErrWrite, err)
	}
	return nil
}

// Search implements Index.
func (b *BoltIndex) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	var hits []Hit
	err := b.db.View(func(tx *bbolt.Tx) error {
		dims, err := storedDims(tx)
		if err != nil {
			return err
		}
		if len(vector) != dims {
			return fmt.Errorf("%w: got %d, want %d", ErrDimension, len(vector), dims)
		}
		hits, err = topK(vector, k, func(yield func(string, []float32, map[string]string) error) error {
			return tx.Bucket(bucketPoints).ForEach(func(key, raw []byte) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				var p boltPoint
				if err := json.Unmarshal(raw, &p); err != nil {
					return fmt.Errorf("decode %s: %w", key, err)
				}
				return yield(string(key), p.Vector, p.Payload)
			})
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: bolt: search: %w: %w", ErrRead, err)
	}
	return hits, nil
}

// Scroll pages through ids in key order. The cursor is the first id of
// the next page.
func (b *BoltIndex) Scroll(_ context.Context, cursor string, limit int) ([]string, string, error) {
	ids := []string{}
	next := ""
	err := b.db.View(func(tx *bbolt.Tx) error {
		points := tx.Bucket(bucketPoints)
		if points == nil {
			return ErrNotInitialized
		}
		if limit <= 0 {
			return nil
		}
		c := points.Cursor()
		var k []byte
		if cursor == "" {
			k, _ = c.First()
		} else {
			k, _ = c.Seek([]byte(cursor))
		}
		for ; k != nil; k, _ = c.Next() {
			if len(ids) == limit {
				next = string(bytes.Clone(k))
				break
			}
			ids = append(ids, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("semantic: bolt: scroll: %w: %w", ErrRead, err)
	}
	return ids, next, nil
}

// Close closes the database file.
func (b *BoltIndex) Close() error {
	return b.db.Close()
}
