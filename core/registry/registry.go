/*Package registry provides a persistent registry of objects

The package uses JSON to serialize the data. Values live in the "_registry_"
table of the database schema, or in memory for tests and demo mode.
*/
package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/apae-gestao/apae/core/csql"
	"github.com/goccy/go-json"
)

// Store persists raw registry values
type Store interface {
	// Load returns the value and write time of key, or found=false
	Load(key string) (value []byte, timestamp time.Time, found bool, err error)
	// Save writes the value of key
	Save(key string, value []byte, timestamp time.Time) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(key string) error
}

// New creates a new registry for the specified database
func New(db *csql.DB) Registry {
	_, err := db.Exec(`CREATE table IF NOT EXISTS ` + db.Table("_registry_") + `
(key varchar NOT NULL,
value json NOT NULL,
timestamp timestamp NOT NULL,
PRIMARY KEY(key)
);`)

	if err != nil {
		panic(err)
	}
	return Registry{store: &sqlStore{db: db}}
}

// NewMemory creates a new registry kept in memory
func NewMemory() Registry {
	return Registry{store: &memoryStore{values: map[string]memoryValue{}}}
}

// Registry provides a persistent registry of objects
type Registry struct {
	store Store
}

// Accessor is an accessor with optional prefix
type Accessor struct {
	Prefix   string
	Registry Registry
}

// Accessor returns a registry accessor with prefix
func (r Registry) Accessor(prefix string) Accessor {
	return Accessor{
		Prefix:   prefix,
		Registry: r,
	}
}

func (r Accessor) key(key string) string {
	if len(r.Prefix) > 0 {
		return r.Prefix + ":" + key
	}
	return key
}

// Read reads a value from the registry. It returns the
// time when the value was written, or a zero timestamp
// if there is no value.
//
// If the accessor has a prefix, the key is prepended with "{prefix}:"
func (r Accessor) Read(key string, value interface{}) (time.Time, error) {
	key = r.key(key)
	raw, timestamp, found, err := r.Registry.store.Load(key)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot read key '%s': %w", key, err)
	}
	if !found {
		return time.Time{}, nil
	}
	return timestamp, json.Unmarshal(raw, value)
}

// Write writes a value into the registry.
//
// If the accessor has a prefix, the key is prepended with "{prefix}:"
func (r Accessor) Write(key string, value interface{}) error {
	body, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.Registry.store.Save(r.key(key), body, time.Now().UTC())
}

// Delete deletes a value from the registry.
//
// If the accessor has a prefix, the key is prepended with "{prefix}:"
func (r Accessor) Delete(key string) error {
	return r.Registry.store.Remove(r.key(key))
}

type sqlStore struct {
	db *csql.DB
}

func (s *sqlStore) Load(key string) ([]byte, time.Time, bool, error) {
	var (
		rawValue  json.RawMessage
		timestamp time.Time
	)
	err := s.db.QueryRow(
		`SELECT value, timestamp FROM `+s.db.Table("_registry_")+` WHERE key=$1;`,
		key).Scan(&rawValue, &timestamp)
	if err == csql.ErrNoRows {
		return nil, timestamp, false, nil
	}
	if err != nil {
		return nil, timestamp, false, err
	}
	return rawValue, timestamp, true, nil
}

func (s *sqlStore) Save(key string, value []byte, timestamp time.Time) error {
	res, err := s.db.Exec(
		`INSERT INTO `+s.db.Table("_registry_")+`(key,value,timestamp)
VALUES($1,$2,$3)
ON CONFLICT (key) DO UPDATE SET value=$2,timestamp=$3;`,
		key, string(value), timestamp)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("could not write key %s", key)
	}
	return nil
}

func (s *sqlStore) Remove(key string) error {
	_, err := s.db.Exec(`DELETE FROM `+s.db.Table("_registry_")+` WHERE key=$1;`, key)
	return err
}

type memoryValue struct {
	value     []byte
	timestamp time.Time
}

type memoryStore struct {
	mutex  sync.RWMutex
	values map[string]memoryValue
}

func (s *memoryStore) Load(key string) ([]byte, time.Time, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	v, ok := s.values[key]
	return v.value, v.timestamp, ok, nil
}

func (s *memoryStore) Save(key string, value []byte, timestamp time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.values[key] = memoryValue{value: append([]byte{}, value...), timestamp: timestamp}
	return nil
}

func (s *memoryStore) Remove(key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.values, key)
	return nil
}
