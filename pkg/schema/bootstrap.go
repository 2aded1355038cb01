package schema

import (
	"github.com/cuemby/iris/pkg/ident"
)

// Built-in TypeIDs. The primitive block is small constants; the reflective
// definition family carries an ASCII prefix in the high bytes.
const (
	TypeString   ident.TypeID = 0x1001
	TypeU64      ident.TypeID = 0x1002
	TypeBool     ident.TypeID = 0x1003
	TypeObjectID ident.TypeID = 0x1004
	TypeTypeID   ident.TypeID = 0x1005
	TypeVersion  ident.TypeID = 0x1006
	TypeBytes    ident.TypeID = 0x1007
	TypeF64      ident.TypeID = 0x1008

	TypeFieldDefinition     ident.TypeID = 0x5246524346000001
	TypeOperationDefinition ident.TypeID = 0x5246524346000002
	TypeSignatureDefinition ident.TypeID = 0x5246524346000003
	TypeRelationshipSpec    ident.TypeID = 0x5246524346000004
)

// DefinitionIDForType derives the deterministic definition ObjectID for a
// built-in TypeID: the fixed 8-byte tag "REFRACT0" in bytes 0..7, then the
// TypeID written least-significant byte first from byte 15 downward. The
// derivation is a cross-implementation contract; do not change it.
func DefinitionIDForType(typ ident.TypeID) ident.ObjectID {
	var id ident.ObjectID
	copy(id[:8], "REFRACT0")
	v := uint64(typ)
	for i := 0; i < 8; i++ {
		id[15-i] = byte(v)
		v >>= 8
	}
	return id
}

// BootstrapResult counts what a bootstrap pass did.
type BootstrapResult struct {
	Inserted int
	Skipped  int
}

// Bootstrap registers the built-in type definitions under their
// deterministic IDs. Replaying against a store that already holds them
// inserts nothing, so bootstrap is idempotent.
func Bootstrap(r *Registry) (BootstrapResult, error) {
	var out BootstrapResult
	for _, def := range builtinDefinitions() {
		id := DefinitionIDForType(def.TypeID)
		existing, err := r.GetDefinitionByID(id)
		if err != nil {
			return out, err
		}
		if existing != nil {
			out.Skipped++
			continue
		}
		if _, err := r.RegisterDefinitionWithID(def, id); err != nil {
			return out, err
		}
		out.Inserted++
	}
	return out, nil
}

func makePrimitive(typ ident.TypeID, name string) TypeDefinition {
	return TypeDefinition{
		TypeID:    typ,
		Name:      name,
		Namespace: "Core",
		Version:   1,
	}
}

func builtinDefinitions() []TypeDefinition {
	defs := []TypeDefinition{
		makePrimitive(TypeString, "String"),
		makePrimitive(TypeU64, "U64"),
		makePrimitive(TypeBool, "Bool"),
		makePrimitive(TypeObjectID, "ObjectID"),
		makePrimitive(TypeTypeID, "TypeID"),
		makePrimitive(TypeVersion, "Version"),
		makePrimitive(TypeBytes, "Bytes"),
		makePrimitive(TypeF64, "F64"),
	}

	defs = append(defs, TypeDefinition{
		TypeID:    TypeFieldDefinition,
		Name:      "FieldDefinition",
		Namespace: "Refract",
		Version:   1,
		Fields: []FieldDefinition{
			{Name: "name", Type: TypeString, Required: true},
			{Name: "type_id", Type: TypeTypeID, Required: true},
			{Name: "required", Type: TypeBool, Required: true},
			{Name: "default_json", Type: TypeString},
		},
	})
	defs = append(defs, TypeDefinition{
		TypeID:    TypeSignatureDefinition,
		Name:      "SignatureDefinition",
		Namespace: "Refract",
		Version:   1,
		Fields: []FieldDefinition{
			{Name: "params", Type: TypeBytes, Required: true},
			{Name: "outputs", Type: TypeBytes, Required: true},
		},
	})
	defs = append(defs, TypeDefinition{
		TypeID:    TypeOperationDefinition,
		Name:      "OperationDefinition",
		Namespace: "Refract",
		Version:   1,
		Fields: []FieldDefinition{
			{Name: "name", Type: TypeString, Required: true},
			{Name: "scope", Type: TypeString, Required: true},
			{Name: "signature", Type: TypeSignatureDefinition, Required: true},
		},
	})
	defs = append(defs, TypeDefinition{
		TypeID:    TypeRelationshipSpec,
		Name:      "RelationshipSpec",
		Namespace: "Refract",
		Version:   1,
		Fields: []FieldDefinition{
			{Name: "role", Type: TypeString, Required: true},
			{Name: "cardinality", Type: TypeString, Required: true},
			{Name: "target", Type: TypeString, Required: true},
		},
	})

	return defs
}
