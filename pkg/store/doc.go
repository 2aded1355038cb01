/*
Package store implements the append-only segment store: a durable log of
immutable typed objects and typed directed edges, with in-memory indexes for
point lookups and by-type scans.

# Layout

A store at path "iris.db" keeps its files under "iris.db.segments/":

	iris.db.segments/
	├── segments/
	│   ├── objects.seg        framed object records ("OBJ1" tag)
	│   └── edges.seg          framed edge records ("EDG1" tag)
	└── indexes/
	    ├── objects_by_id.idx      key<TAB>offset lines
	    ├── objects_by_type.idx
	    ├── edges_from.idx
	    └── edges_to.idx

All frame fields are little-endian. The index side-files are append-only
mirrors for external tooling; Open rebuilds the authoritative in-memory
indexes with a full forward scan of both segments. A truncated tag at the
segment tail ends the scan cleanly (a crash mid-append is tolerated); a
wrong tag or truncated fields after a valid tag surface as ErrCorruptSegment
with the offending offset.

The path ":memory:" selects an in-memory store with identical semantics and
no disk I/O.

# Semantics

Records are immutable once appended. Objects are identified by
(ObjectID, Version); the first record for an ID gets version 1. Edges are
directed, named, and never validated against the object index; dangling
edges are valid. Insertion order is the ordering key everywhere;
created-at timestamps are informational.

Begin/Commit/Rollback stage appends in a per-handle buffer; at most one
transaction is active per handle, commit replays the staged appends in FIFO
order, and staged records become visible (and durable) only at commit.

A Store handle is single-writer. Sharing one handle between concurrent
contexts is undefined behavior; concurrent reads without an intervening
write are safe.
*/
package store
