package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// Bolt stores each category in its own bbolt bucket.
type Bolt struct {
	db  *bbolt.DB
	now func() time.Time
}

// OpenBolt opens (or creates) the bbolt file at path.
func OpenBolt(path string, opts ...Option) (*Bolt, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}
	o := buildOptions(opts)
	return &Bolt{db: db, now: o.now}, nil
}

func (b *Bolt) Read(_ context.Context, category, key string) (json.RawMessage, error) {
	if err := checkName(category, key, true); err != nil {
		return nil, err
	}
	var out json.RawMessage
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(category))
		if bucket == nil {
			return nil
		}
		if v := bucket.Get([]byte(key)); v != nil {
			// bbolt memory is only valid inside the transaction
			out = append(json.RawMessage(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", category, key, err)
	}
	return out, nil
}

func (b *Bolt) Write(_ context.Context, category, key string, doc json.RawMessage) (json.RawMessage, error) {
	if err := checkName(category, key, true); err != nil {
		return nil, err
	}
	stored, err := stamp(doc, b.now())
	if err != nil {
		return nil, err
	}
	err = b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(category))
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		return bucket.Put([]byte(key), stored)
	})
	if err != nil {
		return nil, fmt.Errorf("write %s/%s: %w", category, key, err)
	}
	return stored, nil
}

func (b *Bolt) List(_ context.Context, category string) ([]string, error) {
	if err := checkName(category, "", false); err != nil {
		return nil, err
	}
	keys := []string{}
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(category))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", category, err)
	}
	return keys, nil
}

func (b *Bolt) Delete(_ context.Context, category, key string) error {
	if err := checkName(category, key, true); err != nil {
		return err
	}
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(category))
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", category, key, err)
	}
	return nil
}

// Close closes the bbolt file.
func (b *Bolt) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
