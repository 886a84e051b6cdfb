package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
)

const levelDBScheme = "leveldb://"

var _ ObjectStore = (*LevelDBStore)(nil)

// LevelDBStore keeps objects in a local LevelDB keyed by name. Used for
// development and single node deployments.
type LevelDBStore struct {
	db *leveldb.DB
}

func NewLevelDBStore(db *leveldb.DB) *LevelDBStore {
	return &LevelDBStore{db: db}
}

// OpenLevelDBStore opens (or creates) the database directory at path.
func OpenLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb at %s: %w", path, err)
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

func (s *LevelDBStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.db.Put([]byte(name), data, nil); err != nil {
		return "", fmt.Errorf("leveldb put %s: %w", name, err)
	}
	return levelDBScheme + name, nil
}

func (s *LevelDBStore) Get(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := parseLevelDBLocation(location)
	if err != nil {
		return nil, err
	}
	data, err := s.db.Get([]byte(name), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNoObject
	}
	if err != nil {
		return nil, fmt.Errorf("leveldb get %s: %w", name, err)
	}
	return data, nil
}

func (s *LevelDBStore) Delete(ctx context.Context, location string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := parseLevelDBLocation(location)
	if err != nil {
		return err
	}
	if err := s.db.Delete([]byte(name), nil); err != nil {
		return fmt.Errorf("leveldb delete %s: %w", name, err)
	}
	return nil
}

func parseLevelDBLocation(location string) (string, error) {
	name, ok := strings.CutPrefix(location, levelDBScheme)
	if !ok || name == "" {
		return "", fmt.Errorf("not a leveldb location: %q", location)
	}
	return name, nil
}
