// Package snapshot exports a store's full log into a single bolt archive
// and replays archives back into a store.
package snapshot

import (
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/iris/pkg/errdefs"
	"github.com/cuemby/iris/pkg/ident"
	"github.com/cuemby/iris/pkg/log"
	"github.com/cuemby/iris/pkg/store"
)

// A snapshot is a single-file bolt archive of a store's full log: every
// object and edge record, in insertion order, copied verbatim. It is a
// portable backup form, not compaction: restoring replays the records into
// a store unchanged.

var (
	bucketObjects = []byte("objects")
	bucketEdges   = []byte("edges")
	bucketMeta    = []byte("meta")

	keyFormat  = []byte("format")
	formatName = []byte("iris-snapshot-v1")
)

type objectEntry struct {
	ObjectID     []byte `cbor:"object_id"`
	Version      uint64 `cbor:"version"`
	TypeID       uint64 `cbor:"type_id"`
	DefinitionID []byte `cbor:"definition_id"`
	Payload      []byte `cbor:"payload"`
	CreatedMS    uint64 `cbor:"created_ms"`
}

type edgeEntry struct {
	FromID    []byte `cbor:"from_id"`
	FromVer   uint64 `cbor:"from_ver"`
	ToID      []byte `cbor:"to_id"`
	ToVer     uint64 `cbor:"to_ver"`
	Name      string `cbor:"name"`
	Role      string `cbor:"role"`
	Props     []byte `cbor:"props"`
	CreatedMS uint64 `cbor:"created_ms"`
}

// Export writes every record of the open store into a bolt archive at path.
func Export(s *store.Store, path string) error {
	objects, err := s.AllObjects()
	if err != nil {
		return err
	}
	edges, err := s.AllEdges()
	if err != nil {
		return err
	}

	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return fmt.Errorf("%w: open snapshot: %v", errdefs.ErrIO, err)
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		if err := meta.Put(keyFormat, formatName); err != nil {
			return err
		}

		objBucket, err := tx.CreateBucketIfNotExists(bucketObjects)
		if err != nil {
			return err
		}
		for i, rec := range objects {
			data, err := cbor.Marshal(objectEntry{
				ObjectID:     rec.Ref.ID[:],
				Version:      uint64(rec.Ref.Ver),
				TypeID:       uint64(rec.Type),
				DefinitionID: rec.DefinitionID[:],
				Payload:      rec.Payload,
				CreatedMS:    rec.CreatedMS,
			})
			if err != nil {
				return err
			}
			if err := objBucket.Put(seqKey(i), data); err != nil {
				return err
			}
		}

		edgeBucket, err := tx.CreateBucketIfNotExists(bucketEdges)
		if err != nil {
			return err
		}
		for i, rec := range edges {
			data, err := cbor.Marshal(edgeEntry{
				FromID:    rec.From.ID[:],
				FromVer:   uint64(rec.From.Ver),
				ToID:      rec.To.ID[:],
				ToVer:     uint64(rec.To.Ver),
				Name:      rec.Name,
				Role:      rec.Role,
				Props:     rec.Props,
				CreatedMS: rec.CreatedMS,
			})
			if err != nil {
				return err
			}
			if err := edgeBucket.Put(seqKey(i), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: write snapshot: %v", errdefs.ErrIO, err)
	}

	snapLog := log.WithComponent("snapshot")
	snapLog.Info().
		Str("path", path).
		Int("objects", len(objects)).
		Int("edges", len(edges)).
		Msg("snapshot exported")
	return nil
}

// Restore replays an archive into the open store, preserving record order,
// identities, and timestamps.
func Restore(path string, s *store.Store) error {
	db, err := bolt.Open(path, 0o400, &bolt.Options{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("%w: open snapshot: %v", errdefs.ErrIO, err)
	}
	defer db.Close()

	var objects []store.ObjectRecord
	var edges []store.EdgeRecord

	err = db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta == nil || string(meta.Get(keyFormat)) != string(formatName) {
			return fmt.Errorf("%w: not an iris snapshot", errdefs.ErrDecode)
		}

		if b := tx.Bucket(bucketObjects); b != nil {
			if err := b.ForEach(func(_, v []byte) error {
				var entry objectEntry
				if err := cbor.Unmarshal(v, &entry); err != nil {
					return fmt.Errorf("%w: object entry: %v", errdefs.ErrDecode, err)
				}
				rec := store.ObjectRecord{
					Type:      ident.TypeID(entry.TypeID),
					Payload:   entry.Payload,
					CreatedMS: entry.CreatedMS,
				}
				copy(rec.Ref.ID[:], entry.ObjectID)
				rec.Ref.Ver = ident.Version(entry.Version)
				copy(rec.DefinitionID[:], entry.DefinitionID)
				objects = append(objects, rec)
				return nil
			}); err != nil {
				return err
			}
		}

		if b := tx.Bucket(bucketEdges); b != nil {
			return b.ForEach(func(_, v []byte) error {
				var entry edgeEntry
				if err := cbor.Unmarshal(v, &entry); err != nil {
					return fmt.Errorf("%w: edge entry: %v", errdefs.ErrDecode, err)
				}
				rec := store.EdgeRecord{
					Name:      entry.Name,
					Role:      entry.Role,
					Props:     entry.Props,
					CreatedMS: entry.CreatedMS,
				}
				copy(rec.From.ID[:], entry.FromID)
				rec.From.Ver = ident.Version(entry.FromVer)
				copy(rec.To.ID[:], entry.ToID)
				rec.To.Ver = ident.Version(entry.ToVer)
				edges = append(edges, rec)
				return nil
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, rec := range objects {
		if err := s.ImportObject(rec); err != nil {
			return err
		}
	}
	for _, rec := range edges {
		if err := s.ImportEdge(rec); err != nil {
			return err
		}
	}

	snapLog := log.WithComponent("snapshot")
	snapLog.Info().
		Str("path", path).
		Int("objects", len(objects)).
		Int("edges", len(edges)).
		Msg("snapshot restored")
	return nil
}

// seqKey is a big-endian sequence number, so bolt's key order is insertion
// order.
func seqKey(i int) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], uint64(i))
	return key[:]
}
