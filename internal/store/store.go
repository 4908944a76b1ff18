// Package store persists catalog instances to a bolt file.
//
// Layout: a top-level "catalogs" bucket holds one sub-bucket per
// catalog instance id. Each instance bucket carries a "header" key
// with the instance identity and one "index:<name>" key per index
// snapshot. Fingerprints persist alongside each index so a later sync
// can detect declaration drift without comparing contents.
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/treedex/treedex/internal/catalog"
	"github.com/treedex/treedex/internal/errors"
)

const (
	catalogsBucket = "catalogs"
	headerKey      = "header"
	indexKeyPrefix = "index:"
)

// header identifies a persisted catalog instance.
type header struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Info describes one persisted catalog instance, read-only.
type Info struct {
	ID      string
	Type    string
	Indexes []IndexInfo
}

// IndexInfo describes one persisted index.
type IndexInfo struct {
	Name        string
	Kind        catalog.Kind
	Fingerprint string
	Docs        int
}

// Store wraps a bolt database holding catalog snapshots.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the store file.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreOpen,
			fmt.Sprintf("open store %s", path), err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(catalogsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrCodeStoreOpen, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveCatalog writes the instance's full snapshot, replacing any prior
// persisted state for the same id. Indexes dropped since the last save
// do not linger.
func (s *Store) SaveCatalog(cat *catalog.Catalog) error {
	snap := cat.Snapshot()
	hdr, err := json.Marshal(header{ID: snap.ID, Type: snap.Type})
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(catalogsBucket))
		if b := root.Bucket([]byte(snap.ID)); b != nil {
			if err := root.DeleteBucket([]byte(snap.ID)); err != nil {
				return err
			}
		}
		b, err := root.CreateBucket([]byte(snap.ID))
		if err != nil {
			return err
		}
		if err := b.Put([]byte(headerKey), hdr); err != nil {
			return err
		}
		for _, isnap := range snap.Indexes {
			data, err := json.Marshal(isnap)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(indexKeyPrefix+isnap.Name), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadCatalog restores one instance by id. When a registry is given
// and declares the instance's type, declared specs are re-bound to
// every restored index whose fingerprint still matches, so the
// instance can index new resources immediately. Drifted indexes stay
// spec-less until the next sync rebuilds them.
func (s *Store) LoadCatalog(id string, reg *catalog.Registry) (*catalog.Catalog, error) {
	var snap *catalog.CatalogSnapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(catalogsBucket)).Bucket([]byte(id))
		if b == nil {
			return errors.Newf(errors.ErrCodeCatalogNotFound, "catalog %s not persisted", id)
		}
		var err error
		snap, err = readSnapshot(b, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	cat, err := catalog.RestoreCatalog(snap)
	if err != nil {
		return nil, err
	}
	if err := verifyRestored(cat, snap); err != nil {
		return nil, err
	}
	attachSpecs(cat, reg)
	return cat, nil
}

// LoadAll restores every persisted instance, ordered by id.
func (s *Store) LoadAll(reg *catalog.Registry) ([]*catalog.Catalog, error) {
	ids, err := s.ids()
	if err != nil {
		return nil, err
	}
	out := make([]*catalog.Catalog, 0, len(ids))
	for _, id := range ids {
		cat, err := s.LoadCatalog(id, reg)
		if err != nil {
			return nil, err
		}
		out = append(out, cat)
	}
	return out, nil
}

// List inventories persisted instances without restoring index
// contents into live catalogs.
func (s *Store) List() ([]Info, error) {
	var infos []Info
	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(catalogsBucket))
		return root.ForEachBucket(func(id []byte) error {
			snap, err := readSnapshot(root.Bucket(id), string(id))
			if err != nil {
				return err
			}
			info := Info{ID: snap.ID, Type: snap.Type}
			for _, isnap := range snap.Indexes {
				info.Indexes = append(info.Indexes, IndexInfo{
					Name:        isnap.Name,
					Kind:        isnap.Kind,
					Fingerprint: isnap.Fingerprint,
					Docs:        len(isnap.Forward),
				})
			}
			infos = append(infos, info)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

// DeleteCatalog removes one persisted instance. Deleting an unknown id
// is a no-op.
func (s *Store) DeleteCatalog(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(catalogsBucket))
		if root.Bucket([]byte(id)) == nil {
			return nil
		}
		return root.DeleteBucket([]byte(id))
	})
}

func (s *Store) ids() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(catalogsBucket)).ForEachBucket(func(id []byte) error {
			ids = append(ids, string(id))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func readSnapshot(b *bolt.Bucket, id string) (*catalog.CatalogSnapshot, error) {
	raw := b.Get([]byte(headerKey))
	if raw == nil {
		return nil, errors.Newf(errors.ErrCodeSnapshotCorrupt, "catalog %s has no header", id)
	}
	var hdr header
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSnapshotCorrupt, err)
	}

	snap := &catalog.CatalogSnapshot{ID: hdr.ID, Type: hdr.Type}
	err := b.ForEach(func(k, v []byte) error {
		key := string(k)
		if !strings.HasPrefix(key, indexKeyPrefix) {
			return nil
		}
		var isnap catalog.IndexSnapshot
		if err := json.Unmarshal(v, &isnap); err != nil {
			return errors.Wrap(errors.ErrCodeSnapshotCorrupt, err)
		}
		snap.Indexes = append(snap.Indexes, &isnap)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// verifyRestored cross-checks the rebuilt instance against its
// snapshot: every persisted index must exist and hold exactly the
// persisted forward entries.
func verifyRestored(cat *catalog.Catalog, snap *catalog.CatalogSnapshot) error {
	for _, isnap := range snap.Indexes {
		idx, ok := cat.Index(isnap.Name)
		if !ok {
			return errors.Newf(errors.ErrCodeSnapshotCorrupt,
				"restored catalog %s lost index %q", snap.ID, isnap.Name)
		}
		if idx.Len() != len(isnap.Forward) {
			return errors.Newf(errors.ErrCodeSnapshotCorrupt,
				"index %q restored %d of %d entries", isnap.Name, idx.Len(), len(isnap.Forward))
		}
	}
	return nil
}

func attachSpecs(cat *catalog.Catalog, reg *catalog.Registry) {
	if reg == nil {
		return
	}
	schema, err := reg.Lookup(cat.Type())
	if err != nil {
		return
	}
	for _, spec := range schema.Specs {
		if idx, ok := cat.Index(spec.Name); ok && idx.Fingerprint() == spec.Fingerprint() {
			idx.AttachSpec(spec)
		}
	}
}
