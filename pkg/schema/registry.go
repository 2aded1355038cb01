package schema

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cuemby/iris/pkg/codec"
	"github.com/cuemby/iris/pkg/errdefs"
	"github.com/cuemby/iris/pkg/events"
	"github.com/cuemby/iris/pkg/ident"
	"github.com/cuemby/iris/pkg/log"
	"github.com/cuemby/iris/pkg/metrics"
	"github.com/cuemby/iris/pkg/store"
)

// Registry stores type definitions as ordinary objects of the meta-type and
// interprets them back. It borrows the store; it never owns records.
type Registry struct {
	store  *store.Store
	broker *events.Broker
	logger zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithBroker publishes definition.registered events to b.
func WithBroker(b *events.Broker) Option {
	return func(r *Registry) { r.broker = b }
}

// NewRegistry wraps a store handle.
func NewRegistry(s *store.Store, opts ...Option) *Registry {
	r := &Registry{
		store:  s,
		logger: log.WithComponent("schema"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterDefinition encodes def and appends it under a fresh definition
// ObjectID.
func (r *Registry) RegisterDefinition(def TypeDefinition) (DefinitionRecord, error) {
	return r.RegisterDefinitionWithID(def, ident.NewObjectID())
}

// RegisterDefinitionWithID registers def under a caller-supplied definition
// ObjectID. Bootstrap uses this with IDs derived deterministically from the
// TypeID.
func (r *Registry) RegisterDefinitionWithID(def TypeDefinition, definitionID ident.ObjectID) (DefinitionRecord, error) {
	if err := validateDefinition(def); err != nil {
		return DefinitionRecord{}, err
	}

	payload, err := encodeDefinition(def)
	if err != nil {
		return DefinitionRecord{}, err
	}

	var prior *store.ObjectRecord
	if def.SupersedesDefinitionID != nil {
		prior, err = r.store.GetLatest(*def.SupersedesDefinitionID)
		if err != nil {
			return DefinitionRecord{}, err
		}
		if prior == nil {
			return DefinitionRecord{}, fmt.Errorf("%w: supersedes definition %s", errdefs.ErrNotFound, def.SupersedesDefinitionID.Hex())
		}
	}

	rec, err := r.store.CreateObjectWithID(definitionID, TypeDefinitionType, definitionID, payload)
	if err != nil {
		return DefinitionRecord{}, err
	}

	if prior != nil {
		if _, err := r.store.AddEdge(rec.Ref, prior.Ref, "supersedes", "definition", nil); err != nil {
			return DefinitionRecord{}, err
		}
		if def.MigrationHook != "" {
			props := codec.KV("hook", def.MigrationHook)
			if _, err := r.store.AddEdge(rec.Ref, prior.Ref, "migration_hook", "definition", props); err != nil {
				return DefinitionRecord{}, err
			}
		}
	}

	metrics.DefinitionsRegistered.Inc()
	r.logger.Debug().
		Str("definition_id", rec.Ref.ID.Hex()).
		Uint64("type_id", uint64(def.TypeID)).
		Str("name", def.DisplayName()).
		Msg("definition registered")
	if r.broker != nil {
		r.broker.Publish(events.New(events.EventDefinitionRegistered, "definition registered", map[string]string{
			"definition_id": rec.Ref.ID.Hex(),
			"name":          def.DisplayName(),
		}))
	}

	return DefinitionRecord{Ref: rec.Ref, Definition: def}, nil
}

// GetDefinitionByID returns the decoded definition stored under id, or nil.
// An object under that id whose type is not the meta-type is
// ErrNotADefinition.
func (r *Registry) GetDefinitionByID(id ident.ObjectID) (*DefinitionRecord, error) {
	rec, err := r.store.GetLatest(id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	if rec.Type != TypeDefinitionType {
		return nil, fmt.Errorf("%w: %s has type 0x%x", errdefs.ErrNotADefinition, id.Hex(), uint64(rec.Type))
	}
	return recordFromObject(*rec)
}

// GetDefinitionByType scans the meta-type objects in insertion order and
// returns the first definition of the TypeID, or nil.
func (r *Registry) GetDefinitionByType(typ ident.TypeID) (*DefinitionRecord, error) {
	records, err := r.store.ListByType(TypeDefinitionType)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		dr, err := recordFromObject(rec)
		if err != nil {
			return nil, err
		}
		if dr.Definition.TypeID == typ {
			return dr, nil
		}
	}
	return nil, nil
}

// GetLatestDefinitionByType returns the definition of the TypeID with the
// largest version, or nil. Version ties resolve by insertion order.
func (r *Registry) GetLatestDefinitionByType(typ ident.TypeID) (*DefinitionRecord, error) {
	records, err := r.store.ListByType(TypeDefinitionType)
	if err != nil {
		return nil, err
	}
	var latest *DefinitionRecord
	for _, rec := range records {
		dr, err := recordFromObject(rec)
		if err != nil {
			return nil, err
		}
		if dr.Definition.TypeID != typ {
			continue
		}
		if latest == nil || dr.Definition.Version > latest.Definition.Version {
			latest = dr
		}
	}
	return latest, nil
}

// ListTypes returns a summary row for every stored definition.
func (r *Registry) ListTypes() ([]TypeSummary, error) {
	records, err := r.store.ListByType(TypeDefinitionType)
	if err != nil {
		return nil, err
	}
	out := make([]TypeSummary, 0, len(records))
	for _, rec := range records {
		dr, err := recordFromObject(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, TypeSummary{
			TypeID:            dr.Definition.TypeID,
			DefinitionID:      dr.Ref.ID,
			Name:              dr.Definition.Name,
			Namespace:         dr.Definition.Namespace,
			PreferredRenderer: dr.Definition.PreferredRenderer,
		})
	}
	return out, nil
}

// ListSupersedesChain walks the supersedes edges backward from the
// definition, collecting each prior definition and its migration hook.
// Multiple supersedes edges from one definition, or multiple hooks to the
// same prior, are ErrCorruptChain.
func (r *Registry) ListSupersedesChain(definitionID ident.ObjectID) ([]SupersedesLink, error) {
	current, err := r.store.GetLatest(definitionID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%w: definition %s", errdefs.ErrNotFound, definitionID.Hex())
	}
	if current.Type != TypeDefinitionType {
		return nil, fmt.Errorf("%w: %s", errdefs.ErrNotADefinition, definitionID.Hex())
	}

	name := "supersedes"
	hookName := "migration_hook"
	role := "definition"

	var chain []SupersedesLink
	for {
		edges, err := r.store.EdgesFrom(current.Ref, &name, &role)
		if err != nil {
			return nil, err
		}
		if len(edges) == 0 {
			return chain, nil
		}
		if len(edges) > 1 {
			return nil, fmt.Errorf("%w: %d supersedes edges from %s", errdefs.ErrCorruptChain, len(edges), current.Ref.ID.Hex())
		}

		edge := edges[0]
		priorRec, err := r.store.GetObject(edge.To)
		if err != nil {
			return nil, err
		}
		if priorRec == nil {
			return nil, fmt.Errorf("%w: supersedes target %s", errdefs.ErrNotFound, edge.To.ID.Hex())
		}
		if priorRec.Type != TypeDefinitionType {
			return nil, fmt.Errorf("%w: supersedes target %s", errdefs.ErrNotADefinition, edge.To.ID.Hex())
		}
		prior, err := recordFromObject(*priorRec)
		if err != nil {
			return nil, err
		}

		link := SupersedesLink{Prior: *prior}
		hookEdges, err := r.store.EdgesFrom(current.Ref, &hookName, &role)
		if err != nil {
			return nil, err
		}
		for _, hookEdge := range hookEdges {
			if hookEdge.To != edge.To {
				continue
			}
			if link.MigrationHook != "" {
				return nil, fmt.Errorf("%w: multiple migration hooks from %s", errdefs.ErrCorruptChain, current.Ref.ID.Hex())
			}
			hook, err := hookFromProps(hookEdge.Props)
			if err != nil {
				return nil, err
			}
			link.MigrationHook = hook
		}

		chain = append(chain, link)
		current = priorRec
	}
}

func validateDefinition(def TypeDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("%w: name is empty", errdefs.ErrInvalidDefinition)
	}
	if def.TypeID == 0 {
		return fmt.Errorf("%w: type id is zero", errdefs.ErrInvalidDefinition)
	}
	if def.MigrationHook != "" && def.SupersedesDefinitionID == nil {
		return fmt.Errorf("%w: migration_hook requires supersedes_definition_id", errdefs.ErrInvalidDefinition)
	}
	seen := make(map[string]bool, len(def.Fields))
	for _, f := range def.Fields {
		if seen[f.Name] {
			return fmt.Errorf("%w: duplicate field %q", errdefs.ErrInvalidDefinition, f.Name)
		}
		seen[f.Name] = true
	}
	for _, op := range def.Operations {
		sawOptional := false
		for _, p := range op.Signature.Params {
			if p.Optional {
				sawOptional = true
			} else if sawOptional {
				return fmt.Errorf("%w: operation %q has required parameter after optional", errdefs.ErrInvalidDefinition, op.Name)
			}
		}
	}
	return nil
}

func recordFromObject(rec store.ObjectRecord) (*DefinitionRecord, error) {
	def, err := decodeDefinition(rec.Payload)
	if err != nil {
		return nil, err
	}
	return &DefinitionRecord{Ref: rec.Ref, Definition: def}, nil
}

func hookFromProps(props []byte) (string, error) {
	if len(props) == 0 {
		return "", fmt.Errorf("%w: migration_hook edge has no props", errdefs.ErrDecode)
	}
	v, err := codec.Decode(props)
	if err != nil {
		return "", err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return "", fmt.Errorf("%w: migration_hook props is not a map", errdefs.ErrDecode)
	}
	hook, ok := m["hook"].(string)
	if !ok {
		return "", fmt.Errorf("%w: migration_hook props missing hook", errdefs.ErrDecode)
	}
	return hook, nil
}
