package schema

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/cuemby/iris/pkg/errdefs"
	"github.com/cuemby/iris/pkg/ident"
)

// Definition payloads are CBOR maps. The field names are the wire contract;
// decode also accepts the legacy "return_type" form for signatures that
// predate explicit output lists.

var (
	payloadEnc cbor.EncMode
	payloadDec cbor.DecMode
)

func init() {
	var err error
	payloadEnc, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	payloadDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

type fieldPayload struct {
	Name        string `cbor:"name"`
	TypeID      uint64 `cbor:"type_id"`
	Required    bool   `cbor:"required"`
	DefaultJSON string `cbor:"default_json,omitempty"`
}

type paramPayload struct {
	Name     string `cbor:"name"`
	TypeID   uint64 `cbor:"type_id"`
	Optional bool   `cbor:"optional"`
}

type signaturePayload struct {
	Params  []paramPayload `cbor:"params"`
	Outputs []paramPayload `cbor:"outputs"`
	// Legacy single-output form, accepted on decode only.
	ReturnType uint64 `cbor:"return_type,omitempty"`
}

type operationPayload struct {
	Name      string           `cbor:"name"`
	Scope     string           `cbor:"scope"`
	Signature signaturePayload `cbor:"signature"`
}

type relationshipPayload struct {
	Role        string `cbor:"role"`
	Cardinality string `cbor:"cardinality"`
	Target      string `cbor:"target"`
}

type definitionPayload struct {
	TypeID            uint64                `cbor:"type_id"`
	Name              string                `cbor:"name"`
	Namespace         string                `cbor:"namespace"`
	Version           uint64                `cbor:"version"`
	PreferredRenderer string                `cbor:"preferred_renderer,omitempty"`
	TypeParams        []string              `cbor:"type_params,omitempty"`
	Fields            []fieldPayload        `cbor:"fields"`
	Operations        []operationPayload    `cbor:"operations"`
	Relationships     []relationshipPayload `cbor:"relationships"`
}

func encodeDefinition(def TypeDefinition) ([]byte, error) {
	p := definitionPayload{
		TypeID:            uint64(def.TypeID),
		Name:              def.Name,
		Namespace:         def.Namespace,
		Version:           def.Version,
		PreferredRenderer: def.PreferredRenderer,
		TypeParams:        def.TypeParams,
		Fields:            make([]fieldPayload, 0, len(def.Fields)),
		Operations:        make([]operationPayload, 0, len(def.Operations)),
		Relationships:     make([]relationshipPayload, 0, len(def.Relationships)),
	}
	for _, f := range def.Fields {
		p.Fields = append(p.Fields, fieldPayload{
			Name:        f.Name,
			TypeID:      uint64(f.Type),
			Required:    f.Required,
			DefaultJSON: f.DefaultJSON,
		})
	}
	for _, op := range def.Operations {
		p.Operations = append(p.Operations, operationPayload{
			Name:      op.Name,
			Scope:     string(op.Scope),
			Signature: encodeSignature(op.Signature),
		})
	}
	for _, rel := range def.Relationships {
		p.Relationships = append(p.Relationships, relationshipPayload{
			Role:        rel.Role,
			Cardinality: rel.Cardinality,
			Target:      rel.Target,
		})
	}

	out, err := payloadEnc.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: encode definition: %v", errdefs.ErrDecode, err)
	}
	return out, nil
}

func decodeDefinition(data []byte) (TypeDefinition, error) {
	var p definitionPayload
	if err := payloadDec.Unmarshal(data, &p); err != nil {
		return TypeDefinition{}, fmt.Errorf("%w: decode definition: %v", errdefs.ErrDecode, err)
	}

	def := TypeDefinition{
		TypeID:            ident.TypeID(p.TypeID),
		Name:              p.Name,
		Namespace:         p.Namespace,
		Version:           p.Version,
		PreferredRenderer: p.PreferredRenderer,
		TypeParams:        p.TypeParams,
	}
	for _, f := range p.Fields {
		def.Fields = append(def.Fields, FieldDefinition{
			Name:        f.Name,
			Type:        ident.TypeID(f.TypeID),
			Required:    f.Required,
			DefaultJSON: f.DefaultJSON,
		})
	}
	for _, op := range p.Operations {
		def.Operations = append(def.Operations, OperationDefinition{
			Name:      op.Name,
			Scope:     scopeFromString(op.Scope),
			Signature: decodeSignature(op.Signature),
		})
	}
	for _, rel := range p.Relationships {
		def.Relationships = append(def.Relationships, RelationshipSpec{
			Role:        rel.Role,
			Cardinality: rel.Cardinality,
			Target:      rel.Target,
		})
	}
	return def, nil
}

func encodeSignature(sig SignatureDefinition) signaturePayload {
	out := signaturePayload{
		Params:  make([]paramPayload, 0, len(sig.Params)),
		Outputs: make([]paramPayload, 0, len(sig.Outputs)),
	}
	for _, p := range sig.Params {
		out.Params = append(out.Params, paramPayload{Name: p.Name, TypeID: uint64(p.Type), Optional: p.Optional})
	}
	for _, p := range sig.Outputs {
		out.Outputs = append(out.Outputs, paramPayload{Name: p.Name, TypeID: uint64(p.Type), Optional: p.Optional})
	}
	return out
}

func decodeSignature(p signaturePayload) SignatureDefinition {
	sig := SignatureDefinition{}
	for _, param := range p.Params {
		sig.Params = append(sig.Params, ParameterDefinition{
			Name:     param.Name,
			Type:     ident.TypeID(param.TypeID),
			Optional: param.Optional,
		})
	}
	for _, param := range p.Outputs {
		sig.Outputs = append(sig.Outputs, ParameterDefinition{
			Name:     param.Name,
			Type:     ident.TypeID(param.TypeID),
			Optional: param.Optional,
		})
	}
	if len(sig.Outputs) == 0 && p.ReturnType != 0 {
		sig.Outputs = []ParameterDefinition{{Name: "result", Type: ident.TypeID(p.ReturnType)}}
	}
	return sig
}

func scopeFromString(s string) OperationScope {
	if s == string(ScopeClass) {
		return ScopeClass
	}
	return ScopeObject
}
