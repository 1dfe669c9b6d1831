// Package registry keeps a record of builds under an install parent directory.
//
// Records live in a BoltDB file inside the install parent directory and are
// keyed by the build tag. Only resolved identities are recorded, so a key
// never changes once written. The database is opened per operation and a
// held lock surfaces as an error after a one second timeout.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// DirName is the registry directory inside the install parent directory
	DirName = ".build-gcc"

	fileName = "registry.db"

	// bucketName is the BoltDB bucket name for build entries
	bucketName = "builds"
)

// Registry manages build entries using BoltDB
type Registry struct {
	path    string
	timeout time.Duration
	now     func() time.Time
}

// New creates a registry rooted at installParentDir
func New(installParentDir string) *Registry {
	return &Registry{
		path:    filepath.Join(installParentDir, DirName, fileName),
		timeout: time.Second,
		now:     time.Now,
	}
}

// Path returns the database file location
func (r *Registry) Path() string {
	return r.path
}

func (r *Registry) open(readOnly bool) (*bbolt.DB, error) {
	if readOnly {
		if _, err := os.Stat(r.path); err != nil {
			return nil, err
		}
	} else if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	db, err := bbolt.Open(r.path, 0o600, &bbolt.Options{Timeout: r.timeout, ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}

	if readOnly {
		return db, nil
	}

	// Create bucket if it doesn't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create registry bucket: %w", err)
	}

	return db, nil
}

// Get retrieves an entry by tag. Returns nil if there is none.
func (r *Registry) Get(tag string) (*Entry, error) {
	db, err := r.open(true)
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}
	defer db.Close()

	var entry *Entry
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}

		data := b.Get([]byte(tag))
		if data == nil {
			return nil
		}

		entry = &Entry{}
		return json.Unmarshal(data, entry)
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// Update applies fn to the entry for tag, creating it if needed, and stores the result
func (r *Registry) Update(tag string, fn func(*Entry)) error {
	db, err := r.open(false)
	if err != nil {
		return err
	}
	defer db.Close()

	err = db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		entry := Entry{Tag: tag, CreatedAt: r.now()}
		if data := b.Get([]byte(tag)); data != nil {
			if err := json.Unmarshal(data, &entry); err != nil {
				return err
			}
		}

		fn(&entry)
		entry.Tag = tag
		entry.UpdatedAt = r.now()

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		return b.Put([]byte(tag), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store registry entry: %w", err)
	}

	return nil
}

// MarkStage appends stage to the entry's completed stages once
func (r *Registry) MarkStage(tag, stage string, fn func(*Entry)) error {
	return r.Update(tag, func(e *Entry) {
		if fn != nil {
			fn(e)
		}

		if !e.HasStage(stage) {
			e.Stages = append(e.Stages, stage)
		}
	})
}

// List returns all entries, most recently updated first
func (r *Registry) List() ([]Entry, error) {
	db, err := r.open(true)
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}
	defer db.Close()

	var entries []Entry
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}

		return b.ForEach(func(_, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}

			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
	})

	return entries, nil
}

// CloneDirs returns the clone directories of recorded builds that still exist
func (r *Registry) CloneDirs() ([]string, error) {
	entries, err := r.List()
	if err != nil {
		return nil, err
	}

	var dirs []string
	for _, e := range entries {
		if e.CloneDir == "" {
			continue
		}

		if info, err := os.Stat(e.CloneDir); err == nil && info.IsDir() {
			dirs = append(dirs, e.CloneDir)
		}
	}

	return dirs, nil
}

// Remove deletes the entry for tag
func (r *Registry) Remove(tag string) error {
	db, err := r.open(false)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(tag))
	})
}

// Clear removes all entries
func (r *Registry) Clear() error {
	db, err := r.open(false)
	if err != nil {
		return err
	}
	defer db.Close()

	// Clear BoltDB
	err = db.Update(func(tx *bbolt.Tx) error {
		return tx.DeleteBucket([]byte(bucketName))
	})
	if err != nil {
		return err
	}

	// Recreate bucket
	return db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
}

// Stats returns the number of entries and the total size of recorded archives that still exist
func (r *Registry) Stats() (int, int64, error) {
	entries, err := r.List()
	if err != nil {
		return 0, 0, err
	}

	var totalSize int64
	for _, e := range entries {
		if e.Archive == "" {
			continue
		}

		if info, err := os.Stat(e.Archive); err == nil {
			totalSize += info.Size()
		}
	}

	return len(entries), totalSize, nil
}
