package storage

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// PebbleDB is a persistent key-value store backed by Pebble.
type PebbleDB struct {
	db    *pebble.DB
	cache *pebble.Cache
}

// NewPebbleDB creates or opens a Pebble database at the given path.
func NewPebbleDB(path string) (*PebbleDB, error) {
	cache := pebble.NewCache(32 << 20) // 32 MB cache
	opts := &pebble.Options{
		Cache:                       cache,
		MemTableSize:                16 << 20, // 16 MB memtable
		MemTableStopWritesThreshold: 2,
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		cache.Unref()
		return nil, err
	}
	return &PebbleDB{db: db, cache: cache}, nil
}

// Get retrieves the value for the given key.
func (p *PebbleDB) Get(key []byte) ([]byte, error) {
	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// The value is invalid after closer.Close().
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (p *PebbleDB) Has(key []byte) (bool, error) {
	_, err := p.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (p *PebbleDB) Put(key []byte, value []byte) error {
	return p.db.Set(key, value, pebble.Sync)
}

func (p *PebbleDB) Delete(key []byte) error {
	return p.db.Delete(key, pebble.Sync)
}

func (p *PebbleDB) NewBatch() Batch {
	return &pebbleBatch{batch: p.db.NewBatch()}
}

// Close closes the database and releases the block cache.
func (p *PebbleDB) Close() error {
	err := p.db.Close()
	if p.cache != nil {
		p.cache.Unref()
		p.cache = nil
	}
	return err
}

// pebbleBatch keeps the first staging error and reports it from Write.
type pebbleBatch struct {
	batch *pebble.Batch
	count int
	err   error
}

func (b *pebbleBatch) record(err error) {
	if err != nil && b.err == nil {
		b.err = err
	}
}

func (b *pebbleBatch) Put(key []byte, value []byte) {
	b.record(b.batch.Set(key, value, nil))
	b.count++
}

func (b *pebbleBatch) Delete(key []byte) {
	b.record(b.batch.Delete(key, nil))
	b.count++
}

func (b *pebbleBatch) Len() int { return b.count }

func (b *pebbleBatch) Write() error {
	defer b.batch.Close()
	if b.err != nil {
		return fmt.Errorf("storage: pebble batch: %w", b.err)
	}
	return b.batch.Commit(pebble.Sync)
}
