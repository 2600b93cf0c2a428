package geocode

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.etcd.io/bbolt"
)

const coordinatesBucket = "coordinates"

// BoltPersister keeps definitive geocode answers in a bbolt file so repeated
// runs do not hit the provider for known cities.
type BoltPersister struct {
	db *bbolt.DB
}

// OpenBoltPersister opens or creates the database at path.
func OpenBoltPersister(path string) (*BoltPersister, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: open bolt %s", path)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(coordinatesBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "geocode: create bucket")
	}
	return &BoltPersister{db: db}, nil
}

// Get implements Persister.
func (p *BoltPersister) Get(key string) (Location, bool, error) {
	var (
		loc   Location
		found bool
	)
	err := p.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(coordinatesBucket)).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &loc)
	})
	if err != nil {
		return Unresolved, false, eris.Wrapf(err, "geocode: read %q", key)
	}
	return loc, found, nil
}

// Put implements Persister.
func (p *BoltPersister) Put(key string, loc Location) error {
	data, err := json.Marshal(loc)
	if err != nil {
		return eris.Wrap(err, "geocode: marshal location")
	}
	return p.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(coordinatesBucket)).Put([]byte(key), data)
	})
}

// Len returns the number of persisted keys.
func (p *BoltPersister) Len() (int, error) {
	var n int
	err := p.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(coordinatesBucket)).Stats().KeyN
		return nil
	})
	return n, err
}

// Close closes the database file.
func (p *BoltPersister) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}
