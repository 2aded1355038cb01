package store

import (
	"fmt"
	"os"

	"github.com/cuemby/iris/pkg/errdefs"
)

// Index side-files are line-oriented UTF-8: "key<TAB>offset<LF>". They are
// append-only mirrors of the segment contents; the authoritative in-memory
// indexes are rebuilt from the segments on Open, so the side-files are only
// read by external tooling.
//
// Keys:
//   objects_by_id.idx    hex:ver
//   objects_by_type.idx  typeid:hex:ver
//   edges_from.idx       fromHex:fromVer:name:role:toHex:toVer
//   edges_to.idx         toHex:toVer:name:role:fromHex:fromVer

func appendIndexLine(f *os.File, key string, offset uint64) error {
	if _, err := fmt.Fprintf(f, "%s\t%d\n", key, offset); err != nil {
		return fmt.Errorf("%w: index append: %v", errdefs.ErrIO, err)
	}
	return nil
}

func (s *Store) appendObjectIndexLines(rec ObjectRecord, offset uint64) error {
	idKey := fmt.Sprintf("%s:%d", rec.Ref.ID.Hex(), uint64(rec.Ref.Ver))
	if err := appendIndexLine(s.idxObjByID, idKey, offset); err != nil {
		return err
	}
	typeKey := fmt.Sprintf("%d:%s:%d", uint64(rec.Type), rec.Ref.ID.Hex(), uint64(rec.Ref.Ver))
	return appendIndexLine(s.idxObjByType, typeKey, offset)
}

func (s *Store) appendEdgeIndexLines(rec EdgeRecord, offset uint64) error {
	fromKey := fmt.Sprintf("%s:%d:%s:%s:%s:%d",
		rec.From.ID.Hex(), uint64(rec.From.Ver), rec.Name, rec.Role,
		rec.To.ID.Hex(), uint64(rec.To.Ver))
	if err := appendIndexLine(s.idxEdgesFrom, fromKey, offset); err != nil {
		return err
	}
	toKey := fmt.Sprintf("%s:%d:%s:%s:%s:%d",
		rec.To.ID.Hex(), uint64(rec.To.Ver), rec.Name, rec.Role,
		rec.From.ID.Hex(), uint64(rec.From.Ver))
	return appendIndexLine(s.idxEdgesTo, toKey, offset)
}
