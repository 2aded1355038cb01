package schema

import (
	"fmt"
	"strings"

	"github.com/cuemby/iris/pkg/errdefs"
	"github.com/cuemby/iris/pkg/ident"
)

// DispatchMatch is the resolved target of an operation call.
type DispatchMatch struct {
	Operation OperationDefinition
	OwnerType ident.TypeID
	Depth     int
}

// DispatchEngine resolves overloaded operation calls against the registry.
type DispatchEngine struct {
	registry *Registry
	resolver InheritanceResolver
}

// NewDispatchEngine builds a dispatch engine over a schema registry.
func NewDispatchEngine(registry *Registry, resolver InheritanceResolver) *DispatchEngine {
	return &DispatchEngine{registry: registry, resolver: resolver}
}

type candidate struct {
	operation       OperationDefinition
	owner           ident.TypeID
	depth           int
	typePenalty     int
	optionalPenalty int
}

// better orders candidates by (typePenalty, optionalPenalty, depth)
// ascending. Depth last so subtype overrides beat parent definitions;
// type penalty first so exact-type overloads beat widening matches.
func better(a, b candidate) bool {
	if a.typePenalty != b.typePenalty {
		return a.typePenalty < b.typePenalty
	}
	if a.optionalPenalty != b.optionalPenalty {
		return a.optionalPenalty < b.optionalPenalty
	}
	return a.depth < b.depth
}

// Resolve finds the unique best operation for the call. argTypes may be
// empty to match on arity alone; when supplied it must have argCount
// entries. No eligible candidate is ErrNoMatchingOperation; a tie at the
// minimum is ErrAmbiguousOperation listing the tied candidates.
func (d *DispatchEngine) Resolve(target ident.TypeID, name string, scope OperationScope, argTypes []ident.TypeID, argCount int, includeInherited bool) (DispatchMatch, error) {
	var matches []candidate
	err := walkTypes(target, d.resolver, includeInherited, func(current ident.TypeID, depth int) error {
		def, err := d.registry.GetLatestDefinitionByType(current)
		if err != nil {
			return err
		}
		if def == nil {
			return fmt.Errorf("%w: definition for type 0x%x", errdefs.ErrNotFound, uint64(current))
		}
		for _, op := range def.Definition.Operations {
			if op.Scope != scope || op.Name != name {
				continue
			}
			if argCount < op.Signature.RequiredParams() || argCount > len(op.Signature.Params) {
				continue
			}

			cand := candidate{
				operation:       op,
				owner:           current,
				depth:           depth,
				optionalPenalty: len(op.Signature.Params) - argCount,
			}

			if len(argTypes) > 0 && len(argTypes) == argCount {
				ok := true
				for i := 0; i < argCount; i++ {
					argType := argTypes[i]
					paramType := op.Signature.Params[i].Type
					if argType == paramType {
						continue
					}
					if isSubtype(argType, paramType, d.resolver) {
						cand.typePenalty++
						continue
					}
					ok = false
					break
				}
				if !ok {
					continue
				}
			}

			matches = append(matches, cand)
		}
		return nil
	})
	if err != nil {
		return DispatchMatch{}, err
	}

	if len(matches) == 0 {
		return DispatchMatch{}, fmt.Errorf("%w: %s/%s on type 0x%x", errdefs.ErrNoMatchingOperation, name, scope, uint64(target))
	}

	best := matches[0]
	for _, cand := range matches[1:] {
		if better(cand, best) {
			best = cand
		}
	}

	var ties []candidate
	for _, cand := range matches {
		if !better(best, cand) && !better(cand, best) {
			ties = append(ties, cand)
		}
	}
	if len(ties) > 1 {
		descs := make([]string, 0, len(ties))
		for _, cand := range ties {
			descs = append(descs, formatCandidate(cand))
		}
		return DispatchMatch{}, fmt.Errorf("%w: %s", errdefs.ErrAmbiguousOperation, strings.Join(descs, "; "))
	}

	return DispatchMatch{
		Operation: best.operation,
		OwnerType: best.owner,
		Depth:     best.depth,
	}, nil
}

func formatCandidate(cand candidate) string {
	var sb strings.Builder
	sb.WriteString(cand.operation.Name)
	sb.WriteByte('(')
	for i, p := range cand.operation.Signature.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "0x%x", uint64(p.Type))
		if p.Optional {
			sb.WriteByte('?')
		}
	}
	fmt.Fprintf(&sb, ") owner=0x%x", uint64(cand.owner))
	return sb.String()
}
