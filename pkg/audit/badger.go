package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/baserepo/pkg/repo"
)

// Badger key layout for the audit log:
//
//	Data Type     Prefix  Key Format                    Value Type
//	===============================================================
//	Audit Entry   "a:"    a:<len>:<id>:<version %020d>  Entry (JSON)
//	Head Version  "av:"   av:<id>                       int64 (JSON)
//
// Zero-padding the version keeps entries of a resource in version order
// under byte-ordered iteration, so trails are a single range scan. Resource
// ids are caller-suppliable and may contain ":", so entry keys length-prefix
// the id to keep the scan prefixes of distinct resources disjoint (same
// scheme as the store's content-item keys). The head key embeds the id last
// and needs no such guard.

const (
	entryPrefix = "a:"
	headPrefix  = "av:"
)

func entryKey(id string, version int64) []byte {
	return []byte(fmt.Sprintf("%s%d:%s:%020d", entryPrefix, len(id), id, version))
}

func entryScanPrefix(id string) []byte {
	return []byte(fmt.Sprintf("%s%d:%s:", entryPrefix, len(id), id))
}

func headKey(id string) []byte {
	return []byte(headPrefix + id)
}

// BadgerService is a persistent audit log on a BadgerDB database. It is
// designed to share the database with the badger metadata store, so one
// embedded instance carries both concerns.
type BadgerService struct {
	db *badger.DB
}

// NewBadgerService creates an audit log on the given database.
func NewBadgerService(db *badger.DB) *BadgerService {
	return &BadgerService{db: db}
}

func (s *BadgerService) Capture(ctx context.Context, resource *repo.Resource, principal string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		version, err := readHead(txn, resource.ID)
		if err != nil {
			return err
		}
		version++

		entry := Entry{
			Version:   version,
			Principal: principal,
			Timestamp: time.Now(),
			Resource:  resource,
		}
		encoded, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		if err := txn.Set(entryKey(resource.ID, version), encoded); err != nil {
			return err
		}

		head, err := json.Marshal(version)
		if err != nil {
			return err
		}
		return txn.Set(headKey(resource.ID), head)
	})
	if err != nil {
		return fmt.Errorf("failed to capture audit entry for %s: %w", resource.ID, err)
	}

	return nil
}

func (s *BadgerService) CurrentVersion(ctx context.Context, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var version int64
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		version, err = readHead(txn, id)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read audit head for %s: %w", id, err)
	}

	return version, nil
}

func (s *BadgerService) Trail(ctx context.Context, id string, page, size int) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = entryScanPrefix(id)
		// Reverse iteration yields newest first.
		opts.Reverse = true

		it := txn.NewIterator(opts)
		defer it.Close()

		// With Reverse set, seek to the end of the prefix range.
		seek := append(entryScanPrefix(id), 0xff)
		for it.Seek(seek); it.ValidForPrefix(entryScanPrefix(id)); it.Next() {
			var entry Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}

		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to read audit trail for %s: %w", id, err)
	}

	if len(entries) == 0 {
		return "", false, nil
	}

	from, to := pageBounds(len(entries), page, size)
	encoded, err := json.Marshal(entries[from:to])
	if err != nil {
		return "", false, fmt.Errorf("failed to encode audit trail: %w", err)
	}

	return string(encoded), true, nil
}

func (s *BadgerService) ResourceByVersion(ctx context.Context, id string, version int64) (*repo.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entry Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(id, version))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, repo.NewPathError(repo.ErrNotFound, fmt.Sprintf("no version %d", version), id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read version %d of %s: %w", version, id, err)
	}

	return entry.Resource, nil
}

func (s *BadgerService) DeleteTrail(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = entryScanPrefix(id)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}

		err := txn.Delete(headKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete audit trail for %s: %w", id, err)
	}

	return nil
}

// readHead returns the current version of a resource inside a transaction,
// 0 when no entry has been captured yet.
func readHead(txn *badger.Txn, id string) (int64, error) {
	item, err := txn.Get(headKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int64
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &version)
	})
	return version, err
}
