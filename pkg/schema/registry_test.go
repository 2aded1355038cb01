package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/iris/pkg/errdefs"
	"github.com/cuemby/iris/pkg/ident"
	"github.com/cuemby/iris/pkg/store"
)

func newRegistry(t *testing.T) (*Registry, *store.Store) {
	t.Helper()
	s := store.New(store.MemoryPath)
	require.NoError(t, s.Open())
	t.Cleanup(func() { s.Close() })
	return NewRegistry(s), s
}

func TestRegisterAndLookup(t *testing.T) {
	r, _ := newRegistry(t)

	def := TypeDefinition{
		TypeID:    0xBEEF,
		Name:      "Panel",
		Namespace: "Viz",
		Version:   1,
		Fields: []FieldDefinition{
			{Name: "title", Type: TypeString, Required: true},
			{Name: "width", Type: TypeU64},
		},
		PreferredRenderer: "Table",
	}
	rec, err := r.RegisterDefinition(def)
	require.NoError(t, err)
	assert.Equal(t, ident.Version(1), rec.Ref.Ver)

	byID, err := r.GetDefinitionByID(rec.Ref.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "Viz::Panel", byID.Definition.DisplayName())
	assert.Equal(t, def.Fields, byID.Definition.Fields)
	assert.Equal(t, "Table", byID.Definition.PreferredRenderer)

	byType, err := r.GetDefinitionByType(0xBEEF)
	require.NoError(t, err)
	require.NotNil(t, byType)
	assert.Equal(t, rec.Ref, byType.Ref)

	missing, err := r.GetDefinitionByType(0xDEAD)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetDefinitionByIDRejectsNonDefinition(t *testing.T) {
	r, s := newRegistry(t)

	plain, err := s.CreateObject(0x42, ident.ObjectID{}, []byte{0xA0})
	require.NoError(t, err)

	_, err = r.GetDefinitionByID(plain.Ref.ID)
	assert.ErrorIs(t, err, errdefs.ErrNotADefinition)
}

func TestValidateDefinition(t *testing.T) {
	r, _ := newRegistry(t)
	prior := ident.NewObjectID()

	tests := []struct {
		name string
		def  TypeDefinition
	}{
		{"empty name", TypeDefinition{TypeID: 1}},
		{"zero type id", TypeDefinition{Name: "X"}},
		{"hook without supersedes", TypeDefinition{TypeID: 1, Name: "X", MigrationHook: "h"}},
		{"duplicate field", TypeDefinition{TypeID: 1, Name: "X", Fields: []FieldDefinition{
			{Name: "a", Type: TypeString}, {Name: "a", Type: TypeU64},
		}}},
		{"required after optional", TypeDefinition{TypeID: 1, Name: "X", Operations: []OperationDefinition{
			{Name: "op", Scope: ScopeObject, Signature: SignatureDefinition{Params: []ParameterDefinition{
				{Name: "a", Type: TypeString, Optional: true},
				{Name: "b", Type: TypeString},
			}}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.RegisterDefinition(tt.def)
			assert.ErrorIs(t, err, errdefs.ErrInvalidDefinition)
		})
	}

	// Supersedes target must exist.
	_, err := r.RegisterDefinition(TypeDefinition{
		TypeID: 1, Name: "X", SupersedesDefinitionID: &prior,
	})
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
}

func TestListTypes(t *testing.T) {
	r, _ := newRegistry(t)

	first, err := r.RegisterDefinition(TypeDefinition{TypeID: 0x10, Name: "A", Namespace: "N", Version: 1})
	require.NoError(t, err)
	_, err = r.RegisterDefinition(TypeDefinition{TypeID: 0x20, Name: "B", Version: 1, PreferredRenderer: "Log"})
	require.NoError(t, err)

	summaries, err := r.ListTypes()
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, first.Ref.ID, summaries[0].DefinitionID)
	assert.Equal(t, "N::A", summaries[0].DisplayName())
	assert.Equal(t, "Log", summaries[1].PreferredRenderer)
}

func TestSupersedesChain(t *testing.T) {
	r, _ := newRegistry(t)

	v1, err := r.RegisterDefinition(TypeDefinition{TypeID: 0xDADA, Name: "Widget", Version: 1})
	require.NoError(t, err)

	v1ID := v1.Ref.ID
	v2, err := r.RegisterDefinition(TypeDefinition{
		TypeID:                 0xDADA,
		Name:                   "Widget",
		Version:                2,
		SupersedesDefinitionID: &v1ID,
		MigrationHook:          "rename_foo_to_bar",
	})
	require.NoError(t, err)

	latest, err := r.GetLatestDefinitionByType(0xDADA)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, uint64(2), latest.Definition.Version)
	assert.Equal(t, v2.Ref, latest.Ref)

	chain, err := r.ListSupersedesChain(v2.Ref.ID)
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, v1.Ref, chain[0].Prior.Ref)
	assert.Equal(t, "rename_foo_to_bar", chain[0].MigrationHook)

	// The oldest definition has no chain.
	chain, err = r.ListSupersedesChain(v1.Ref.ID)
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestSupersedesChainMultipleLinks(t *testing.T) {
	r, _ := newRegistry(t)

	v1, err := r.RegisterDefinition(TypeDefinition{TypeID: 0xA0, Name: "T", Version: 1})
	require.NoError(t, err)
	v1ID := v1.Ref.ID
	v2, err := r.RegisterDefinition(TypeDefinition{
		TypeID: 0xA0, Name: "T", Version: 2, SupersedesDefinitionID: &v1ID,
	})
	require.NoError(t, err)
	v2ID := v2.Ref.ID
	v3, err := r.RegisterDefinition(TypeDefinition{
		TypeID: 0xA0, Name: "T", Version: 3, SupersedesDefinitionID: &v2ID, MigrationHook: "drop_legacy",
	})
	require.NoError(t, err)

	chain, err := r.ListSupersedesChain(v3.Ref.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, v2.Ref, chain[0].Prior.Ref)
	assert.Equal(t, "drop_legacy", chain[0].MigrationHook)
	assert.Equal(t, v1.Ref, chain[1].Prior.Ref)
	assert.Empty(t, chain[1].MigrationHook)
}

func TestSupersedesChainCorruption(t *testing.T) {
	r, s := newRegistry(t)

	v1, err := r.RegisterDefinition(TypeDefinition{TypeID: 0xB0, Name: "T", Version: 1})
	require.NoError(t, err)
	v1ID := v1.Ref.ID
	v2, err := r.RegisterDefinition(TypeDefinition{
		TypeID: 0xB0, Name: "T", Version: 2, SupersedesDefinitionID: &v1ID,
	})
	require.NoError(t, err)

	// A second supersedes edge makes the walk ambiguous.
	_, err = s.AddEdge(v2.Ref, v1.Ref, "supersedes", "definition", nil)
	require.NoError(t, err)

	_, err = r.ListSupersedesChain(v2.Ref.ID)
	assert.ErrorIs(t, err, errdefs.ErrCorruptChain)
}

func TestDefinitionPayloadRoundtrip(t *testing.T) {
	def := TypeDefinition{
		TypeID:            0xC0FFEE,
		Name:              "Pipeline",
		Namespace:         "Crate",
		Version:           4,
		TypeParams:        []string{"T"},
		PreferredRenderer: "Tree",
		Fields: []FieldDefinition{
			{Name: "stages", Type: TypeBytes, Required: true},
			{Name: "label", Type: TypeString, DefaultJSON: `"unnamed"`},
		},
		Operations: []OperationDefinition{
			{
				Name:  "run",
				Scope: ScopeObject,
				Signature: SignatureDefinition{
					Params: []ParameterDefinition{
						{Name: "input", Type: TypeBytes},
						{Name: "limit", Type: TypeU64, Optional: true},
					},
					Outputs: []ParameterDefinition{{Name: "result", Type: TypeBytes}},
				},
			},
			{Name: "describe", Scope: ScopeClass},
		},
		Relationships: []RelationshipSpec{
			{Role: "feeds", Cardinality: "many", Target: "Crate::Sink"},
		},
	}

	data, err := encodeDefinition(def)
	require.NoError(t, err)
	back, err := decodeDefinition(data)
	require.NoError(t, err)

	// Supersedes metadata travels as edges, not payload.
	assert.Equal(t, stripEdgeFields(def), back)
}

func TestDecodeLegacyReturnType(t *testing.T) {
	data, err := payloadEnc.Marshal(map[string]any{
		"type_id": 0x77,
		"name":    "Legacy",
		"version": 1,
		"operations": []map[string]any{
			{
				"name":  "calc",
				"scope": "object",
				"signature": map[string]any{
					"params":      []any{},
					"return_type": uint64(TypeU64),
				},
			},
		},
	})
	require.NoError(t, err)

	def, err := decodeDefinition(data)
	require.NoError(t, err)
	require.Len(t, def.Operations, 1)
	outputs := def.Operations[0].Signature.Outputs
	require.Len(t, outputs, 1)
	assert.Equal(t, "result", outputs[0].Name)
	assert.Equal(t, TypeU64, outputs[0].Type)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := decodeDefinition([]byte{0xFF, 0x00})
	assert.ErrorIs(t, err, errdefs.ErrDecode)
}

func stripEdgeFields(def TypeDefinition) TypeDefinition {
	def.SupersedesDefinitionID = nil
	def.MigrationHook = ""
	return def
}
