package pksqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/pushkit/go-client-sdk/subsystems"
)

const (
	queryGetValue    = `SELECT value FROM kv WHERE key = ?`
	querySetValue    = `INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value`
	queryRemoveValue = `DELETE FROM kv WHERE key = ?`
)

type kvStore struct {
	database *Database
	owned    bool
}

// NewKeyValueStore returns a KeyValueStore using the database's kv table. Values are stored as
// JSON text. Closing the store does not close the database.
func (d *Database) NewKeyValueStore() subsystems.KeyValueStore {
	return &kvStore{database: d}
}

func (s *kvStore) Get(key string) (ldvalue.Value, bool, error) {
	var text string
	err := s.database.db.QueryRow(queryGetValue, key).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return ldvalue.Null(), false, nil
	}
	if err != nil {
		return ldvalue.Null(), false, fmt.Errorf("pksqlite: reading key %q: %w", key, err)
	}
	return ldvalue.Parse([]byte(text)), true, nil
}

func (s *kvStore) Set(key string, value ldvalue.Value) error {
	if _, err := s.database.db.Exec(querySetValue, key, value.JSONString()); err != nil {
		return fmt.Errorf("pksqlite: writing key %q: %w", key, err)
	}
	return nil
}

func (s *kvStore) Remove(key string) error {
	if _, err := s.database.db.Exec(queryRemoveValue, key); err != nil {
		return fmt.Errorf("pksqlite: removing key %q: %w", key, err)
	}
	return nil
}

func (s *kvStore) Close() error {
	if s.owned {
		return s.database.Close()
	}
	return nil
}
