package store

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/cuemby/iris/pkg/errdefs"
	"github.com/cuemby/iris/pkg/events"
	"github.com/cuemby/iris/pkg/ident"
	"github.com/cuemby/iris/pkg/log"
	"github.com/cuemby/iris/pkg/metrics"
)

// MemoryPath selects the in-memory mode: all records live in the in-memory
// indexes and no file is touched.
const MemoryPath = ":memory:"

// Store is the append-only segment store. A handle is single-writer; sharing
// one handle between concurrent contexts is undefined.
type Store struct {
	path string
	mem  bool

	isOpen bool

	objSeg  *os.File
	edgeSeg *os.File

	idxObjByID   *os.File
	idxObjByType *os.File
	idxEdgesFrom *os.File
	idxEdgesTo   *os.File

	objOffset  uint64
	edgeOffset uint64

	objects  []ObjectRecord
	objByRef map[uint64][]int // ident.ObjectRef.Hash64 -> indices into objects
	objByID  map[ident.ObjectID][]int
	byType   map[ident.TypeID][]int

	edges     []EdgeRecord
	edgesFrom map[uint64][]int
	edgesTo   map[uint64][]int

	txn *txnBuffer

	broker *events.Broker
	logger zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithBroker publishes store events (object.created, edge.added, ...) to b.
func WithBroker(b *events.Broker) Option {
	return func(s *Store) { s.broker = b }
}

// New creates a store handle for the given path. Nothing is touched until
// Open.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:   path,
		mem:    path == MemoryPath,
		logger: log.WithComponent("store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) segmentRoot() string { return s.path + ".segments" }

// Open creates directories as needed, opens the segment and index files in
// append mode, and rebuilds the in-memory indexes with a full forward scan
// of each segment. Open on an already-open handle is a no-op.
func (s *Store) Open() error {
	if s.isOpen {
		return nil
	}
	s.resetState()

	if !s.mem {
		segDir := filepath.Join(s.segmentRoot(), "segments")
		idxDir := filepath.Join(s.segmentRoot(), "indexes")
		for _, dir := range []string{segDir, idxDir} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("%w: mkdir %s: %v", errdefs.ErrIO, dir, err)
			}
		}

		var err error
		if s.objSeg, err = openAppend(filepath.Join(segDir, "objects.seg")); err != nil {
			return err
		}
		if s.edgeSeg, err = openAppend(filepath.Join(segDir, "edges.seg")); err != nil {
			s.closeFiles()
			return err
		}
		if s.idxObjByID, err = openAppend(filepath.Join(idxDir, "objects_by_id.idx")); err != nil {
			s.closeFiles()
			return err
		}
		if s.idxObjByType, err = openAppend(filepath.Join(idxDir, "objects_by_type.idx")); err != nil {
			s.closeFiles()
			return err
		}
		if s.idxEdgesFrom, err = openAppend(filepath.Join(idxDir, "edges_from.idx")); err != nil {
			s.closeFiles()
			return err
		}
		if s.idxEdgesTo, err = openAppend(filepath.Join(idxDir, "edges_to.idx")); err != nil {
			s.closeFiles()
			return err
		}

		if err := s.rebuild(); err != nil {
			s.closeFiles()
			return err
		}
	}

	s.isOpen = true
	metrics.StoreOpen.Set(1)
	s.logger.Info().
		Str("path", s.path).
		Int("objects", len(s.objects)).
		Int("edges", len(s.edges)).
		Msg("segment store opened")
	s.publish(events.EventStoreOpened, "store opened", nil)
	return nil
}

// Close flushes and releases the file handles.
func (s *Store) Close() error {
	if !s.isOpen {
		return nil
	}
	s.isOpen = false
	s.txn = nil
	metrics.StoreOpen.Set(0)
	s.publish(events.EventStoreClosed, "store closed", nil)

	if s.mem {
		return nil
	}
	var firstErr error
	for _, f := range []*os.File{s.objSeg, s.edgeSeg, s.idxObjByID, s.idxObjByType, s.idxEdgesFrom, s.idxEdgesTo} {
		if f == nil {
			continue
		}
		if err := f.Sync(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%w: sync: %v", errdefs.ErrIO, err)
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%w: close: %v", errdefs.ErrIO, err)
		}
	}
	s.objSeg, s.edgeSeg = nil, nil
	s.idxObjByID, s.idxObjByType, s.idxEdgesFrom, s.idxEdgesTo = nil, nil, nil, nil
	return firstErr
}

// CreateObject appends a new object with a fresh ObjectID.
func (s *Store) CreateObject(typ ident.TypeID, definitionID ident.ObjectID, payload []byte) (ObjectRecord, error) {
	return s.CreateObjectWithID(ident.NewObjectID(), typ, definitionID, payload)
}

// CreateObjectWithID appends a new object under a caller-chosen ObjectID
// (required for deterministic schema bootstrap). A first record for an ID
// gets version 1; later records for the same ID continue the monotonic
// version sequence.
func (s *Store) CreateObjectWithID(id ident.ObjectID, typ ident.TypeID, definitionID ident.ObjectID, payload []byte) (ObjectRecord, error) {
	if !s.isOpen {
		return ObjectRecord{}, fmt.Errorf("%w: create_object", errdefs.ErrNotOpen)
	}

	ver := s.latestVersion(id) + 1
	rec := ObjectRecord{
		Ref:          ident.ObjectRef{ID: id, Ver: ident.Version(ver)},
		Type:         typ,
		DefinitionID: definitionID,
		Payload:      append([]byte(nil), payload...),
		CreatedMS:    ident.NowMS(),
	}

	if s.txn != nil {
		staged := rec
		s.txn.ops = append(s.txn.ops, stagedOp{obj: &staged})
		return rec, nil
	}
	if err := s.appendObject(rec); err != nil {
		return ObjectRecord{}, err
	}
	return rec, nil
}

// GetObject returns the record at exactly that version, or nil.
func (s *Store) GetObject(ref ident.ObjectRef) (*ObjectRecord, error) {
	if !s.isOpen {
		return nil, fmt.Errorf("%w: get_object", errdefs.ErrNotOpen)
	}
	for _, i := range s.objByRef[ref.Hash64()] {
		if s.objects[i].Ref == ref {
			rec := s.objects[i]
			return &rec, nil
		}
	}
	return nil, nil
}

// GetLatest returns the highest-version record for the ID, or nil.
func (s *Store) GetLatest(id ident.ObjectID) (*ObjectRecord, error) {
	if !s.isOpen {
		return nil, fmt.Errorf("%w: get_latest", errdefs.ErrNotOpen)
	}
	var best *ObjectRecord
	for _, i := range s.objByID[id] {
		if best == nil || s.objects[i].Ref.Ver > best.Ref.Ver {
			rec := s.objects[i]
			best = &rec
		}
	}
	return best, nil
}

// ListByType returns every record of the TypeID in insertion order.
func (s *Store) ListByType(typ ident.TypeID) ([]ObjectRecord, error) {
	if !s.isOpen {
		return nil, fmt.Errorf("%w: list_by_type", errdefs.ErrNotOpen)
	}
	indexes := s.byType[typ]
	out := make([]ObjectRecord, 0, len(indexes))
	for _, i := range indexes {
		out = append(out, s.objects[i])
	}
	return out, nil
}

// AddEdge appends a directed edge. Endpoints are not validated against the
// object index: edges to refs that were never created are stored as-is.
func (s *Store) AddEdge(from, to ident.ObjectRef, name, role string, props []byte) (EdgeRecord, error) {
	if !s.isOpen {
		return EdgeRecord{}, fmt.Errorf("%w: add_edge", errdefs.ErrNotOpen)
	}
	rec := EdgeRecord{
		From:      from,
		To:        to,
		Name:      name,
		Role:      role,
		Props:     append([]byte(nil), props...),
		CreatedMS: ident.NowMS(),
	}
	if s.txn != nil {
		staged := rec
		s.txn.ops = append(s.txn.ops, stagedOp{edge: &staged})
		return rec, nil
	}
	if err := s.appendEdge(rec); err != nil {
		return EdgeRecord{}, err
	}
	return rec, nil
}

// EdgesFrom returns edges leaving ref, in insertion order. Nil filters match
// everything; a non-nil filter must match exactly (the empty string is a
// valid name or role).
func (s *Store) EdgesFrom(ref ident.ObjectRef, name, role *string) ([]EdgeRecord, error) {
	if !s.isOpen {
		return nil, fmt.Errorf("%w: edges_from", errdefs.ErrNotOpen)
	}
	var out []EdgeRecord
	for _, i := range s.edgesFrom[ref.Hash64()] {
		e := s.edges[i]
		if e.From != ref {
			continue
		}
		if matchEdge(e, name, role) {
			out = append(out, e)
		}
	}
	return out, nil
}

// EdgesTo mirrors EdgesFrom for the destination endpoint.
func (s *Store) EdgesTo(ref ident.ObjectRef, name, role *string) ([]EdgeRecord, error) {
	if !s.isOpen {
		return nil, fmt.Errorf("%w: edges_to", errdefs.ErrNotOpen)
	}
	var out []EdgeRecord
	for _, i := range s.edgesTo[ref.Hash64()] {
		e := s.edges[i]
		if e.To != ref {
			continue
		}
		if matchEdge(e, name, role) {
			out = append(out, e)
		}
	}
	return out, nil
}

// AllObjects returns every object record in insertion order.
func (s *Store) AllObjects() ([]ObjectRecord, error) {
	if !s.isOpen {
		return nil, fmt.Errorf("%w: all_objects", errdefs.ErrNotOpen)
	}
	return append([]ObjectRecord(nil), s.objects...), nil
}

// AllEdges returns every edge record in insertion order.
func (s *Store) AllEdges() ([]EdgeRecord, error) {
	if !s.isOpen {
		return nil, fmt.Errorf("%w: all_edges", errdefs.ErrNotOpen)
	}
	return append([]EdgeRecord(nil), s.edges...), nil
}

// ImportObject appends a record verbatim, preserving its ref and timestamp.
// This is the snapshot-restore path; normal writers use CreateObject.
func (s *Store) ImportObject(rec ObjectRecord) error {
	if !s.isOpen {
		return fmt.Errorf("%w: import_object", errdefs.ErrNotOpen)
	}
	return s.appendObject(rec)
}

// ImportEdge appends an edge verbatim, preserving its timestamp.
func (s *Store) ImportEdge(rec EdgeRecord) error {
	if !s.isOpen {
		return fmt.Errorf("%w: import_edge", errdefs.ErrNotOpen)
	}
	return s.appendEdge(rec)
}

// Stats summarizes the open store.
func (s *Store) Stats() (Stats, error) {
	if !s.isOpen {
		return Stats{}, fmt.Errorf("%w: stats", errdefs.ErrNotOpen)
	}
	return Stats{
		Objects: len(s.objects),
		Edges:   len(s.edges),
		Types:   len(s.byType),
	}, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// ---- internals ----

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", errdefs.ErrIO, path, err)
	}
	return f, nil
}

func (s *Store) resetState() {
	s.objects = nil
	s.edges = nil
	s.objByRef = make(map[uint64][]int)
	s.objByID = make(map[ident.ObjectID][]int)
	s.byType = make(map[ident.TypeID][]int)
	s.edgesFrom = make(map[uint64][]int)
	s.edgesTo = make(map[uint64][]int)
	s.objOffset = 0
	s.edgeOffset = 0
	s.txn = nil
}

func (s *Store) closeFiles() {
	for _, f := range []*os.File{s.objSeg, s.edgeSeg, s.idxObjByID, s.idxObjByType, s.idxEdgesFrom, s.idxEdgesTo} {
		if f != nil {
			f.Close()
		}
	}
	s.objSeg, s.edgeSeg = nil, nil
	s.idxObjByID, s.idxObjByType, s.idxEdgesFrom, s.idxEdgesTo = nil, nil, nil, nil
}

func (s *Store) rebuild() error {
	if _, err := s.objSeg.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: seek objects.seg: %v", errdefs.ErrIO, err)
	}
	offset, err := scanObjectSegment(bufio.NewReader(s.objSeg), s.indexObject)
	if err != nil {
		return err
	}
	s.objOffset = offset

	if _, err := s.edgeSeg.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: seek edges.seg: %v", errdefs.ErrIO, err)
	}
	offset, err = scanEdgeSegment(bufio.NewReader(s.edgeSeg), s.indexEdge)
	if err != nil {
		return err
	}
	s.edgeOffset = offset
	return nil
}

func (s *Store) latestVersion(id ident.ObjectID) uint64 {
	var latest uint64
	for _, i := range s.objByID[id] {
		if v := uint64(s.objects[i].Ref.Ver); v > latest {
			latest = v
		}
	}
	if s.txn != nil {
		if v := s.txn.stagedLatestVersion(id); v > latest {
			latest = v
		}
	}
	return latest
}

func (s *Store) indexObject(rec ObjectRecord) {
	i := len(s.objects)
	s.objects = append(s.objects, rec)
	h := rec.Ref.Hash64()
	s.objByRef[h] = append(s.objByRef[h], i)
	s.objByID[rec.Ref.ID] = append(s.objByID[rec.Ref.ID], i)
	s.byType[rec.Type] = append(s.byType[rec.Type], i)
}

func (s *Store) indexEdge(rec EdgeRecord) {
	i := len(s.edges)
	s.edges = append(s.edges, rec)
	fh := rec.From.Hash64()
	th := rec.To.Hash64()
	s.edgesFrom[fh] = append(s.edgesFrom[fh], i)
	s.edgesTo[th] = append(s.edgesTo[th], i)
}

func (s *Store) appendObject(rec ObjectRecord) error {
	if !s.mem {
		frame := encodeObjectFrame(rec)
		if _, err := s.objSeg.Write(frame); err != nil {
			return fmt.Errorf("%w: append object: %v", errdefs.ErrIO, err)
		}
		if err := s.appendObjectIndexLines(rec, s.objOffset); err != nil {
			return err
		}
		s.objOffset += uint64(len(frame))
	}

	s.indexObject(rec)
	metrics.ObjectsAppended.Inc()
	s.publish(events.EventObjectCreated, "object appended", map[string]string{
		"object_id": rec.Ref.ID.Hex(),
		"type_id":   fmt.Sprintf("0x%x", uint64(rec.Type)),
	})
	return nil
}

func (s *Store) appendEdge(rec EdgeRecord) error {
	if !s.mem {
		frame := encodeEdgeFrame(rec)
		if _, err := s.edgeSeg.Write(frame); err != nil {
			return fmt.Errorf("%w: append edge: %v", errdefs.ErrIO, err)
		}
		if err := s.appendEdgeIndexLines(rec, s.edgeOffset); err != nil {
			return err
		}
		s.edgeOffset += uint64(len(frame))
	}

	s.indexEdge(rec)
	metrics.EdgesAppended.Inc()
	s.publish(events.EventEdgeAdded, "edge appended", map[string]string{
		"from": rec.From.ID.Hex(),
		"to":   rec.To.ID.Hex(),
		"name": rec.Name,
		"role": rec.Role,
	})
	return nil
}

func matchEdge(e EdgeRecord, name, role *string) bool {
	if name != nil && e.Name != *name {
		return false
	}
	if role != nil && e.Role != *role {
		return false
	}
	return true
}

func (s *Store) publish(typ events.EventType, msg string, metadata map[string]string) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(events.New(typ, msg, metadata))
}
