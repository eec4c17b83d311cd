package storage

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/flagsync/go-client-sdk/interfaces"

	bolt "go.etcd.io/bbolt"
)

const (
	cacheDirPerm     = fs.FileMode(0o700)
	cacheFilePerm    = fs.FileMode(0o600)
	cacheOpenTimeout = 5 * time.Second
)

var (
	metaBucket              = []byte("meta")
	definitionsBucket       = []byte("definitions")
	ruleBasedSegmentsBucket = []byte("ruleBasedSegments")
	membershipsBucket       = []byte("memberships")

	definitionsChangeNumberKey       = []byte("definitionsChangeNumber")
	ruleBasedSegmentsChangeNumberKey = []byte("ruleBasedSegmentsChangeNumber")
	filterQueryKey                   = []byte("filterQuery")
)

// PersistentCache keeps the last synchronized data across SDK restarts, so that a client can be used
// before its first fetch completes.
type PersistentCache interface {
	LoadDefinitions() (defs []*interfaces.Definition, changeNumber int64, filterQuery string, err error)
	SaveDefinitions(defs []*interfaces.Definition, changeNumber int64, filterQuery string) error
	LoadRuleBasedSegments() (segments []*interfaces.RuleBasedSegment, changeNumber int64, err error)
	SaveRuleBasedSegments(segments []*interfaces.RuleBasedSegment, changeNumber int64) error
	LoadMemberships(key string) (KeyMemberships, bool, error)
	SaveMemberships(key string, m KeyMemberships) error
	Clear() error
	Close() error
}

// BoltCache is a PersistentCache stored in a bbolt database file.
type BoltCache struct {
	db *bolt.DB
}

// OpenBoltCache opens the cache database at the given path, creating it if it does not exist.
func OpenBoltCache(path string) (*BoltCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), cacheDirPerm); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	db, err := bolt.Open(path, cacheFilePerm, &bolt.Options{Timeout: cacheOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{metaBucket, definitionsBucket, ruleBasedSegmentsBucket, membershipsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing cache db: %w", err)
	}
	return &BoltCache{db: db}, nil
}

// Close closes the database.
func (c *BoltCache) Close() error {
	return c.db.Close()
}

//nolint:revive // interface method
func (c *BoltCache) LoadDefinitions() ([]*interfaces.Definition, int64, string, error) {
	var defs []*interfaces.Definition
	changeNumber := NoChangeNumber
	var filterQuery string
	err := c.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		changeNumber = readChangeNumber(meta, definitionsChangeNumberKey)
		filterQuery = string(meta.Get(filterQueryKey))
		return tx.Bucket(definitionsBucket).ForEach(func(_, v []byte) error {
			var def interfaces.Definition
			if err := json.Unmarshal(v, &def); err != nil {
				return err
			}
			defs = append(defs, &def)
			return nil
		})
	})
	if err != nil {
		return nil, NoChangeNumber, "", fmt.Errorf("reading cached definitions: %w", err)
	}
	return defs, changeNumber, filterQuery, nil
}

//nolint:revive // interface method
func (c *BoltCache) SaveDefinitions(defs []*interfaces.Definition, changeNumber int64, filterQuery string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := replaceBucket(tx, definitionsBucket, defs, func(d *interfaces.Definition) string { return d.Name }); err != nil {
			return err
		}
		meta := tx.Bucket(metaBucket)
		if err := meta.Put(filterQueryKey, []byte(filterQuery)); err != nil {
			return err
		}
		return writeChangeNumber(meta, definitionsChangeNumberKey, changeNumber)
	})
}

//nolint:revive // interface method
func (c *BoltCache) LoadRuleBasedSegments() ([]*interfaces.RuleBasedSegment, int64, error) {
	var segments []*interfaces.RuleBasedSegment
	changeNumber := NoChangeNumber
	err := c.db.View(func(tx *bolt.Tx) error {
		changeNumber = readChangeNumber(tx.Bucket(metaBucket), ruleBasedSegmentsChangeNumberKey)
		return tx.Bucket(ruleBasedSegmentsBucket).ForEach(func(_, v []byte) error {
			var seg interfaces.RuleBasedSegment
			if err := json.Unmarshal(v, &seg); err != nil {
				return err
			}
			segments = append(segments, &seg)
			return nil
		})
	})
	if err != nil {
		return nil, NoChangeNumber, fmt.Errorf("reading cached rule-based segments: %w", err)
	}
	return segments, changeNumber, nil
}

//nolint:revive // interface method
func (c *BoltCache) SaveRuleBasedSegments(segments []*interfaces.RuleBasedSegment, changeNumber int64) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		err := replaceBucket(tx, ruleBasedSegmentsBucket, segments,
			func(s *interfaces.RuleBasedSegment) string { return s.Name })
		if err != nil {
			return err
		}
		return writeChangeNumber(tx.Bucket(metaBucket), ruleBasedSegmentsChangeNumberKey, changeNumber)
	})
}

//nolint:revive // interface method
func (c *BoltCache) LoadMemberships(key string) (KeyMemberships, bool, error) {
	var m KeyMemberships
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(membershipsBucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &m)
	})
	if err != nil {
		return KeyMemberships{}, false, fmt.Errorf("reading cached memberships: %w", err)
	}
	return m, found, nil
}

//nolint:revive // interface method
func (c *BoltCache) SaveMemberships(key string, m KeyMemberships) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(membershipsBucket).Put([]byte(key), data)
	})
}

// Clear removes all cached data.
func (c *BoltCache) Clear() error {
	return c.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{metaBucket, definitionsBucket, ruleBasedSegmentsBucket, membershipsBucket} {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}

func replaceBucket[T any](tx *bolt.Tx, name []byte, items []T, keyFn func(T) string) error {
	if err := tx.DeleteBucket(name); err != nil {
		return err
	}
	b, err := tx.CreateBucket(name)
	if err != nil {
		return err
	}
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(keyFn(item)), data); err != nil {
			return err
		}
	}
	return nil
}

func readChangeNumber(b *bolt.Bucket, key []byte) int64 {
	v := b.Get(key)
	if v == nil {
		return NoChangeNumber
	}
	n, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return NoChangeNumber
	}
	return n
}

func writeChangeNumber(b *bolt.Bucket, key []byte, n int64) error {
	return b.Put(key, []byte(strconv.FormatInt(n, 10)))
}
