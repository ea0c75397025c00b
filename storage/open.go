package storage

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Supported backend names.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendPebble  = "pebble"
	BackendBolt    = "bolt"
)

// Open constructs the named backend rooted at dataDir.
func Open(backend, dataDir string) (Database, error) {
	name := strings.ToLower(strings.TrimSpace(backend))
	if name != BackendMemory && name != "" && strings.TrimSpace(dataDir) == "" {
		return nil, fmt.Errorf("storage: %s backend requires a data directory", name)
	}
	switch name {
	case BackendMemory, "":
		return NewMemDB(), nil
	case BackendLevelDB:
		return NewLevelDB(filepath.Join(dataDir, "leveldb"))
	case BackendPebble:
		return NewPebbleDB(filepath.Join(dataDir, "pebble"))
	case BackendBolt:
		return NewBoltDB(filepath.Join(dataDir, "revshare.db"))
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}
