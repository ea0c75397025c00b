package state

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
)

// ErrTxnClosed is returned when a committed or discarded transaction is used.
var ErrTxnClosed = errors.New("state: transaction closed")

type stagedValue struct {
	data    []byte
	deleted bool
}

// Txn stages writes on top of the committed state. Reads observe staged
// writes first. Nothing reaches the database until Commit.
//
// Txn is not safe for concurrent use.
type Txn struct {
	base   *Manager
	staged map[string]stagedValue
	closed bool
}

func (t *Txn) read(hashed []byte) ([]byte, error) {
	if v, ok := t.staged[string(hashed)]; ok {
		if v.deleted {
			return nil, nil
		}
		return v.data, nil
	}
	return t.base.raw(hashed)
}

// KVGet decodes the value under key, preferring staged writes.
func (t *Txn) KVGet(key []byte, out interface{}) (bool, error) {
	if t.closed {
		return false, ErrTxnClosed
	}
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := t.read(kvKey(key))
	if err != nil {
		return false, err
	}
	return decodeInto(data, out)
}

// KVHas reports whether key holds a value in the staged view.
func (t *Txn) KVHas(key []byte) (bool, error) {
	if t.closed {
		return false, ErrTxnClosed
	}
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := t.read(kvKey(key))
	if err != nil {
		return false, err
	}
	return len(data) > 0, nil
}

// KVPut stages the RLP encoding of value under key.
func (t *Txn) KVPut(key []byte, value interface{}) error {
	if t.closed {
		return ErrTxnClosed
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	t.staged[string(kvKey(key))] = stagedValue{data: encoded}
	return nil
}

// KVDelete stages removal of key. Removing an absent key is a no-op.
func (t *Txn) KVDelete(key []byte) error {
	if t.closed {
		return ErrTxnClosed
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	t.staged[string(kvKey(key))] = stagedValue{deleted: true}
	return nil
}

// KVGetList decodes the list stored under key into out.
func (t *Txn) KVGetList(key []byte, out interface{}) error {
	if t.closed {
		return ErrTxnClosed
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := t.read(kvKey(key))
	if err != nil {
		return err
	}
	return decodeList(data, out)
}

// KVAppend appends value to the byte-slice list stored under key. Duplicate
// values are ignored to keep the index deterministic. The boolean reports
// whether the value was added.
func (t *Txn) KVAppend(key []byte, value []byte) (bool, error) {
	var list [][]byte
	if err := t.KVGetList(key, &list); err != nil {
		return false, err
	}
	list, added := appendUnique(list, value)
	if !added {
		return false, nil
	}
	return true, t.KVPut(key, list)
}

// Pending reports the number of staged writes.
func (t *Txn) Pending() int { return len(t.staged) }

// Commit applies every staged write in a single storage batch, in key order.
func (t *Txn) Commit() error {
	if t.closed {
		return ErrTxnClosed
	}
	t.closed = true
	if len(t.staged) == 0 {
		return nil
	}
	keys := make([]string, 0, len(t.staged))
	for k := range t.staged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	batch := t.base.db.NewBatch()
	for _, k := range keys {
		v := t.staged[k]
		if v.deleted {
			batch.Delete([]byte(k))
			continue
		}
		batch.Put([]byte(k), v.data)
	}
	t.staged = nil
	return batch.Write()
}

// Discard drops every staged write.
func (t *Txn) Discard() {
	t.closed = true
	t.staged = nil
}
