package schema

import (
	"github.com/cuemby/iris/pkg/ident"
)

// TypeDefinitionType is the reserved meta-TypeID. Objects of this type are
// themselves encoded TypeDefinitions; it is the bootstrap anchor that makes
// the substrate self-describing.
const TypeDefinitionType ident.TypeID = 0x5246524354450001

// OperationScope says whether an operation needs an instance.
type OperationScope string

const (
	ScopeClass  OperationScope = "class"
	ScopeObject OperationScope = "object"
)

// FieldDefinition describes one field of a type. Name is unique within a
// definition. DefaultJSON, when non-empty, holds the default value as a JSON
// document.
type FieldDefinition struct {
	Name        string
	Type        ident.TypeID
	Required    bool
	DefaultJSON string
}

// ParameterDefinition is one parameter or output of an operation signature.
type ParameterDefinition struct {
	Name     string
	Type     ident.TypeID
	Optional bool
}

// SignatureDefinition is an operation's parameter and output lists.
// Optional parameters may only follow required ones.
type SignatureDefinition struct {
	Params  []ParameterDefinition
	Outputs []ParameterDefinition
}

// RequiredParams counts the non-optional parameters.
func (s SignatureDefinition) RequiredParams() int {
	n := 0
	for _, p := range s.Params {
		if !p.Optional {
			n++
		}
	}
	return n
}

// OperationDefinition is a named, scoped operation. Two operations may share
// a name when their parameter-type tuples differ.
type OperationDefinition struct {
	Name      string
	Scope     OperationScope
	Signature SignatureDefinition
}

// RelationshipSpec declares a named relationship to another type.
type RelationshipSpec struct {
	Role        string
	Cardinality string
	Target      string
}

// TypeDefinition is the full description of a type. It is stored as an
// ObjectRecord of the meta-type; SupersedesDefinitionID and MigrationHook
// are not part of the payload; they are recorded as edges between the new
// and the prior definition objects.
type TypeDefinition struct {
	TypeID            ident.TypeID
	Name              string
	Namespace         string
	Version           uint64
	TypeParams        []string
	Fields            []FieldDefinition
	Operations        []OperationDefinition
	Relationships     []RelationshipSpec
	PreferredRenderer string

	SupersedesDefinitionID *ident.ObjectID
	MigrationHook          string
}

// DisplayName is "Namespace::Name", or just the name when unqualified.
func (d TypeDefinition) DisplayName() string {
	if d.Namespace == "" {
		return d.Name
	}
	return d.Namespace + "::" + d.Name
}

// TypeSummary is the catalog row for a stored definition.
type TypeSummary struct {
	TypeID            ident.TypeID
	DefinitionID      ident.ObjectID
	Name              string
	Namespace         string
	PreferredRenderer string
}

// DisplayName mirrors TypeDefinition.DisplayName.
func (s TypeSummary) DisplayName() string {
	if s.Namespace == "" {
		return s.Name
	}
	return s.Namespace + "::" + s.Name
}

// DefinitionRecord pairs a decoded definition with the object revision that
// holds it.
type DefinitionRecord struct {
	Ref        ident.ObjectRef
	Definition TypeDefinition
}

// SupersedesLink is one step of a supersedes chain: the prior definition and
// the migration hook annotating the step, if any.
type SupersedesLink struct {
	Prior         DefinitionRecord
	MigrationHook string
}
