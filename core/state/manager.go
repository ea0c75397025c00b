package state

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"revledger/storage"
)

// Manager provides RLP-encoded key/value access over a storage backend. Keys
// are hashed with keccak256 before they reach the database so callers can use
// readable, variable length keys.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Database exposes the underlying storage backend.
func (m *Manager) Database() storage.Database { return m.db }

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) raw(hashed []byte) ([]byte, error) {
	data, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.raw(kvKey(key))
	if err != nil {
		return false, err
	}
	return decodeInto(data, out)
}

// KVHas reports whether a value is stored under key.
func (m *Manager) KVHas(key []byte) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	return m.db.Has(kvKey(key))
}

// KVGetList decodes the RLP list stored under key into out, which must point
// to a slice. Missing keys yield an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.raw(kvKey(key))
	if err != nil {
		return err
	}
	return decodeList(data, out)
}

// Begin opens a staged transaction over the committed state. Writes are only
// visible to the transaction until Commit applies them as one batch.
func (m *Manager) Begin() *Txn {
	return &Txn{base: m, staged: make(map[string]stagedValue)}
}

func decodeInto(data []byte, out interface{}) (bool, error) {
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func decodeList(data []byte, out interface{}) error {
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}

func appendUnique(list [][]byte, value []byte) ([][]byte, bool) {
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return list, false
		}
	}
	return append(list, append([]byte(nil), value...)), true
}
