package schema

import (
	"fmt"

	"github.com/cuemby/iris/pkg/errdefs"
	"github.com/cuemby/iris/pkg/ident"
)

// InheritanceResolver maps a type to its direct bases. Inheritance is an
// external relation: the core only walks it, it does not define it. A nil
// resolver means no type has bases.
type InheritanceResolver func(ident.TypeID) []ident.TypeID

// OperationRegistry lists the operations a type exposes, optionally
// including those inherited through the resolver.
type OperationRegistry struct {
	registry *Registry
	resolver InheritanceResolver
}

// NewOperationRegistry builds an operation registry over a schema registry.
func NewOperationRegistry(registry *Registry, resolver InheritanceResolver) *OperationRegistry {
	return &OperationRegistry{registry: registry, resolver: resolver}
}

// ListOperations walks the type and (when includeInherited) its bases
// breadth-first and returns every operation matching scope, in visit order.
// Duplicate names across levels are all included; visibility policy is the
// caller's.
func (o *OperationRegistry) ListOperations(typ ident.TypeID, scope OperationScope, includeInherited bool) ([]OperationDefinition, error) {
	var out []OperationDefinition
	err := walkTypes(typ, o.resolver, includeInherited, func(current ident.TypeID, depth int) error {
		def, err := o.registry.GetLatestDefinitionByType(current)
		if err != nil {
			return err
		}
		if def == nil {
			return fmt.Errorf("%w: definition for type 0x%x", errdefs.ErrNotFound, uint64(current))
		}
		for _, op := range def.Definition.Operations {
			if op.Scope == scope {
				out = append(out, op)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// walkTypes visits typ and, when includeInherited, each base returned by the
// resolver, breadth-first with duplicate suppression.
func walkTypes(typ ident.TypeID, resolver InheritanceResolver, includeInherited bool, visit func(ident.TypeID, int) error) error {
	type queued struct {
		typ   ident.TypeID
		depth int
	}
	queue := []queued{{typ, 0}}
	visited := map[ident.TypeID]bool{typ: true}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if err := visit(current.typ, current.depth); err != nil {
			return err
		}

		if !includeInherited || resolver == nil {
			continue
		}
		for _, base := range resolver(current.typ) {
			if !visited[base] {
				visited[base] = true
				queue = append(queue, queued{base, current.depth + 1})
			}
		}
	}
	return nil
}

// isSubtype reports whether typ transitively derives from base.
func isSubtype(typ, base ident.TypeID, resolver InheritanceResolver) bool {
	if resolver == nil {
		return false
	}
	queue := []ident.TypeID{typ}
	visited := map[ident.TypeID]bool{typ: true}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, parent := range resolver(current) {
			if parent == base {
				return true
			}
			if !visited[parent] {
				visited[parent] = true
				queue = append(queue, parent)
			}
		}
	}
	return false
}
