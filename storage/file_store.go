package storage

import (
	"fmt"
	"os"
	"path"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold"
)

const (
	fileDirBadger = "db"
	fileDirBundle = "bndl"
)

// catalogEntry is the badgerhold-indexed record for one stored id -- the
// bytes themselves live in a sibling file under bundleDir, named by id, so
// the catalog stays small enough to range-query by Pending/Expires.
//
// Grounded on BundleItem from the teacher's pkg/storage/bundle_item.go,
// reshaped from a CBOR-era bpv7.BundleID-keyed record into one keyed by
// the opaque storage.ID every Adapter method is indexed by.
type catalogEntry struct {
	ID       ID
	Filename string
	IsRecord bool
	Pending  bool
	Expires  time.Time
}

// FileStore is a badgerhold-catalogued, file-backed Adapter: every id's
// bytes are a plain file under bundleDir, and a badgerhold-managed Store
// indexes the Pending and Expires fields so a sweep for expired or
// still-pending ids never has to touch the filesystem.
//
// Grounded on the teacher's pkg/storage.Store, with Push/Update/Delete's
// bpv7.Bundle-shaped API replaced by the Create/Enqueue/Dequeue/Retrieve/
// Release/Relinquish contract every storage.Adapter implements.
type FileStore struct {
	bh *badgerhold.Store

	badgerDir string
	bundleDir string

	mu     sync.Mutex
	nextID ID
	notify chan struct{}
}

// NewFileStore opens (or creates) a FileStore rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	badgerDir := path.Join(dir, fileDirBadger)
	bundleDir := path.Join(dir, fileDirBundle)

	if err := os.MkdirAll(badgerDir, 0700); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(bundleDir, 0700); err != nil {
		return nil, err
	}

	opts := badgerhold.DefaultOptions
	opts.Dir = badgerDir
	opts.ValueDir = badgerDir
	opts.Logger = log.StandardLogger()
	opts.Options.ValueLogFileSize = 1<<28 - 1

	bh, err := badgerhold.Open(opts)
	if err != nil {
		return nil, err
	}

	return &FileStore{
		bh:        bh,
		badgerDir: badgerDir,
		bundleDir: bundleDir,
		notify:    make(chan struct{}, 1),
	}, nil
}

// Close releases the underlying badgerhold handle. The FileStore must not
// be used afterwards.
func (s *FileStore) Close() error {
	return s.bh.Close()
}

func (s *FileStore) filename(id ID) string {
	return path.Join(s.bundleDir, fmt.Sprintf("%d.bndl", uint64(id)))
}

func (s *FileStore) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *FileStore) Create(isRecord bool, data []byte, timeout time.Duration) (ID, error) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	filename := s.filename(id)
	if err := os.WriteFile(filename, data, 0600); err != nil {
		return 0, err
	}

	entry := catalogEntry{
		ID:       id,
		Filename: filename,
		IsRecord: isRecord,
		Pending:  false,
		Expires:  time.Now().Add(timeout),
	}
	if timeout <= 0 {
		entry.Expires = time.Time{}
	}

	if err := s.bh.Insert(id, entry); err != nil {
		_ = os.Remove(filename)
		return 0, err
	}

	log.WithFields(log.Fields{"id": id, "isRecord": isRecord}).Debug("FileStore created entry")
	return id, nil
}

func (s *FileStore) get(id ID) (catalogEntry, error) {
	var entry catalogEntry
	if err := s.bh.Get(id, &entry); err != nil {
		if err == badgerhold.ErrNotFound {
			return entry, ErrNotFound{ID: id}
		}
		return entry, err
	}
	return entry, nil
}

func (s *FileStore) Enqueue(id ID) error {
	entry, err := s.get(id)
	if err != nil {
		return err
	}
	entry.Pending = true
	if err := s.bh.Update(id, entry); err != nil {
		return err
	}
	s.wake()
	return nil
}

func (s *FileStore) Dequeue(timeout time.Duration) (ID, []byte, error) {
	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		var entries []catalogEntry
		if err := s.bh.Find(&entries, badgerhold.Where("Pending").Eq(true).SortBy("ID")); err != nil {
			return 0, nil, err
		}
		if len(entries) > 0 {
			entry := entries[0]
			entry.Pending = false
			if err := s.bh.Update(entry.ID, entry); err != nil {
				return 0, nil, err
			}
			data, err := os.ReadFile(entry.Filename)
			if err != nil {
				return 0, nil, err
			}
			return entry.ID, data, nil
		}

		if timeout == 0 {
			return 0, nil, ErrTimeout{}
		}

		var wait time.Duration
		if timeout > 0 {
			wait = time.Until(deadline)
			if wait <= 0 {
				return 0, nil, ErrTimeout{}
			}
		} else {
			wait = time.Hour
		}

		select {
		case <-s.notify:
		case <-time.After(wait):
			if timeout > 0 {
				return 0, nil, ErrTimeout{}
			}
		}
	}
}

func (s *FileStore) Retrieve(id ID) ([]byte, error) {
	entry, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(entry.Filename)
}

func (s *FileStore) Release(id ID) error {
	entry, err := s.get(id)
	if err != nil {
		return err
	}
	entry.Pending = false
	return s.bh.Update(id, entry)
}

func (s *FileStore) Relinquish(id ID) error {
	entry, err := s.get(id)
	if err != nil {
		return err
	}
	if err := os.Remove(entry.Filename); err != nil && !os.IsNotExist(err) {
		log.WithFields(log.Fields{"id": id, "file": entry.Filename, "error": err}).
			Warn("FileStore failed to remove entry's file")
	}
	return s.bh.Delete(id, catalogEntry{})
}

func (s *FileStore) GetCount() int {
	n, err := s.bh.Count(&catalogEntry{}, badgerhold.Where("ID").Ge(ID(0)))
	if err != nil {
		log.WithError(err).Warn("FileStore failed to count entries")
		return 0
	}
	return n
}

// ExpireOlderThan deletes every stored entry whose deadline has passed,
// mirroring the teacher's Store.DeleteExpired sweep. Entries created with
// a non-positive timeout never expire and are skipped.
func (s *FileStore) ExpireOlderThan(now time.Time) {
	var entries []catalogEntry
	if err := s.bh.Find(&entries, badgerhold.Where("Expires").Gt(time.Time{}).And("Expires").Lt(now)); err != nil {
		log.WithError(err).Warn("FileStore failed to query expired entries")
		return
	}
	for _, entry := range entries {
		if err := s.Relinquish(entry.ID); err != nil {
			log.WithFields(log.Fields{"id": entry.ID, "error": err}).Warn("FileStore failed to relinquish expired entry")
		} else {
			log.WithField("id", entry.ID).Info("FileStore relinquished expired entry")
		}
	}
}
