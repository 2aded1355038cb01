package store

import (
	"github.com/cuemby/iris/pkg/ident"
)

// ObjectRecord is one immutable revision of a stored object. Once appended
// its bytes never change.
type ObjectRecord struct {
	Ref          ident.ObjectRef
	Type         ident.TypeID
	DefinitionID ident.ObjectID
	Payload      []byte
	CreatedMS    uint64
}

// EdgeRecord is a directed link between two object revisions. Multiple edges
// with the same tuple are allowed; creation order is preserved.
type EdgeRecord struct {
	From      ident.ObjectRef
	To        ident.ObjectRef
	Name      string
	Role      string
	Props     []byte
	CreatedMS uint64
}

// Stats summarizes the store contents.
type Stats struct {
	Objects int
	Edges   int
	Types   int
}
