// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package store

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	"github.com/cockroachdb/pebble/vfs"
)

// ErrNotFound is returned by point lookups that miss.
var ErrNotFound = errors.New("store: key not found")

// blockCacheSize is the default LRU block cache, per spec ~64 MiB.
const blockCacheSize = 64 << 20

// valueBlobThreshold is a size threshold for large values. Open does not
// pass it to pebble, so every value is stored inline in the LSM.
const valueBlobThreshold = 100 << 10

// Store wraps a pebble database keyed by CF-prefixed byte strings.
type Store struct {
	db *pebble.DB
}

// Options configures Open.
type Options struct {
	// InMemory opens the store against an in-memory filesystem, for
	// tests and ephemeral nodes.
	InMemory bool
}

// Open opens (creating if absent) a column-family store at path.
func Open(path string, opts Options) (*Store, error) {
	cache := pebble.NewCache(blockCacheSize)
	defer cache.Unref()

	levels := make([]pebble.LevelOptions, 7)
	for i := range levels {
		levels[i].BlockSize = 32 << 10
		levels[i].FilterPolicy = bloom.FilterPolicy(10)
		levels[i].FilterType = pebble.TableFilter
	}

	pebbleOpts := &pebble.Options{
		Comparer:  newComparer(),
		Cache:     cache,
		Levels:    levels,
	}
	if opts.InMemory {
		pebbleOpts.FS = vfs.NewMem()
	}

	db, err := pebble.Open(path, pebbleOpts)
	if err != nil {
		return nil, errors.Wrapf(err, "store: open pebble db at %q", path)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Get reads a single value from cf, returning ErrNotFound on a miss.
func (s *Store) Get(cf CF, key []byte) ([]byte, error) {
	v, closer, err := s.db.Get(cfKey(cf, key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set writes a single value into cf.
func (s *Store) Set(cf CF, key, value []byte) error {
	return s.db.Set(cfKey(cf, key), value, pebble.NoSync)
}

// Delete removes a single key from cf.
func (s *Store) Delete(cf CF, key []byte) error {
	return s.db.Delete(cfKey(cf, key), pebble.NoSync)
}

// Batch is an atomic group of writes across one or more CFs.
type Batch struct {
	b *pebble.Batch
}

// NewBatch starts an atomic write batch.
func (s *Store) NewBatch() *Batch {
	return &Batch{b: s.db.NewBatch()}
}

// Set stages a write in the batch.
func (bt *Batch) Set(cf CF, key, value []byte) error {
	return bt.b.Set(cfKey(cf, key), value, nil)
}

// Delete stages a delete in the batch.
func (bt *Batch) Delete(cf CF, key []byte) error {
	return bt.b.Delete(cfKey(cf, key), nil)
}

// Commit applies the batch atomically.
func (bt *Batch) Commit() error {
	return bt.b.Commit(pebble.NoSync)
}

// Entry is a decoded key/value pair from a prefix scan, with the CF
// header already stripped from Key (the scan prefix is kept).
type Entry struct {
	Key   []byte
	Value []byte
}

// ScanPrefix iterates cf in forward key order over all keys beginning
// with prefix, calling fn for each. Iteration stops early if fn returns
// false.
func (s *Store) ScanPrefix(cf CF, prefix []byte, fn func(Entry) (bool, error)) error {
	return s.scan(cf, prefix, false, fn)
}

// ScanPrefixReverse iterates cf in reverse key order over all keys
// beginning with prefix.
func (s *Store) ScanPrefixReverse(cf CF, prefix []byte, fn func(Entry) (bool, error)) error {
	return s.scan(cf, prefix, true, fn)
}

func (s *Store) scan(cf CF, prefix []byte, reverse bool, fn func(Entry) (bool, error)) error {
	full := cfKey(cf, prefix)
	upper := prefixUpperBound(full)

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: full,
		UpperBound: upper,
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	var ok bool
	if reverse {
		ok = iter.Last()
	} else {
		ok = iter.First()
	}
	for ; ok; ok = step(iter, reverse) {
		key := append([]byte(nil), iter.Key()...)
		val := append([]byte(nil), iter.Value()...)
		cont, err := fn(Entry{Key: key[1:], Value: val})
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return iter.Error()
}

func step(iter *pebble.Iterator, reverse bool) bool {
	if reverse {
		return iter.Prev()
	}
	return iter.Next()
}

// prefixUpperBound returns the smallest key greater than every key with
// the given prefix, for use as an IterOptions.UpperBound.
func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] == 0xff {
			continue
		}
		upper[i]++
		return upper[:i+1]
	}
	return nil
}
