// /internal/storage/storage.go
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/keshon/datastore"
	"github.com/rs/zerolog/log"
)

const (
	authorizedFile   = "authorized.txt"
	channelLinksFile = "channel_links.json"
	votesFile        = "votes.json"
	countsFile       = "message_counts.json"
	photoLinksFile   = "links.json"
)

// Storage owns the bot's persisted tables. Each JSON table is an independent
// datastore file; the allowlist is a plain newline list. There are no
// transactions across tables, every save is a full-file overwrite.
type Storage struct {
	dir string

	channelLinks *datastore.DataStore
	votes        *datastore.DataStore
	counts       *datastore.DataStore
	photoLinks   *datastore.DataStore

	mu         sync.RWMutex // guards authorized
	authorized []string
}

func New(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}

	s := &Storage{dir: dir}

	var err error
	if s.channelLinks, err = openTable(filepath.Join(dir, channelLinksFile)); err != nil {
		return nil, err
	}
	if s.votes, err = openTable(filepath.Join(dir, votesFile)); err != nil {
		return nil, err
	}
	if s.counts, err = openTable(filepath.Join(dir, countsFile)); err != nil {
		return nil, err
	}
	if s.photoLinks, err = openTable(filepath.Join(dir, photoLinksFile)); err != nil {
		return nil, err
	}

	s.loadAuthorized()
	s.verifyTallies()

	return s, nil
}

// openTable opens a datastore file, falling back to an empty table when the
// file is corrupt. A missing file is created empty by the datastore itself.
func openTable(path string) (*datastore.DataStore, error) {
	ds, err := datastore.New(path)
	if err == nil {
		return ds, nil
	}
	log.Warn().Err(err).Str("file", path).Msg("table unreadable, starting empty")
	if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
		return nil, fmt.Errorf("failed to reset table %s: %w", path, rmErr)
	}
	ds, err = datastore.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table %s: %w", path, err)
	}
	return ds, nil
}

func (s *Storage) Close() error {
	var firstErr error
	for _, ds := range []*datastore.DataStore{s.channelLinks, s.votes, s.counts, s.photoLinks} {
		if err := ds.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// decode converts a datastore value (a generic JSON map after load) into a
// typed record via a marshal roundtrip.
func decode(data any, out any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("error marshalling data: %w", err)
	}
	if err := json.Unmarshal(jsonData, out); err != nil {
		return fmt.Errorf("error unmarshalling record: %w", err)
	}
	return nil
}
