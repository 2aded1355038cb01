// Package routing spawns viewer objects for artifacts whose types carry a
// renderer route.
package routing

import (
	"fmt"

	"github.com/cuemby/iris/pkg/codec"
	"github.com/cuemby/iris/pkg/errdefs"
	"github.com/cuemby/iris/pkg/ident"
	"github.com/cuemby/iris/pkg/log"
	"github.com/cuemby/iris/pkg/schema"
	"github.com/cuemby/iris/pkg/store"
)

// Viewer routing: artifacts whose type names a preferred renderer get a
// viewer object ("concho") spawned next to them, linked by a
// (name="view", role="concho") edge. The viewer type itself is an ordinary
// registered definition, looked up by its Conch::Concho display name.

const (
	viewEdgeName = "view"
	viewEdgeRole = "concho"

	viewerTypeName = "Conch::Concho"
)

// builtin renderer routes for the stock visualization types; a definition's
// preferred_renderer always wins over this table.
var rendererRoutes = map[string]string{
	"Viz::TextLog": "Log",
	"Viz::Metric":  "Metric",
	"Viz::Table":   "Table",
	"Viz::Tree":    "Tree",
}

// RouteForType returns the renderer label for a type, preferring the
// definition's own preferred_renderer over the builtin table.
func RouteForType(summary schema.TypeSummary) (string, bool) {
	if summary.PreferredRenderer != "" {
		return summary.PreferredRenderer, true
	}
	route, ok := rendererRoutes[summary.DisplayName()]
	return route, ok
}

// SpawnViewerForArtifact resolves the artifact's type, picks its renderer,
// creates a viewer object of the registered viewer type, and links the
// artifact to the viewer. Returns nil when the artifact's type has no
// renderer route; a missing artifact or viewer type is ErrNotFound.
func SpawnViewerForArtifact(registry *schema.Registry, st *store.Store, artifactID ident.ObjectID) (*ident.ObjectID, error) {
	artifact, err := st.GetLatest(artifactID)
	if err != nil {
		return nil, err
	}
	if artifact == nil {
		return nil, fmt.Errorf("%w: artifact %s", errdefs.ErrNotFound, artifactID.Hex())
	}

	summaries, err := registry.ListTypes()
	if err != nil {
		return nil, err
	}

	var artifactSummary, viewerSummary *schema.TypeSummary
	for i := range summaries {
		if summaries[i].TypeID == artifact.Type {
			artifactSummary = &summaries[i]
		}
		if summaries[i].DisplayName() == viewerTypeName {
			viewerSummary = &summaries[i]
		}
	}
	if artifactSummary == nil {
		return nil, fmt.Errorf("%w: definition for type 0x%x", errdefs.ErrNotFound, uint64(artifact.Type))
	}

	renderer, ok := RouteForType(*artifactSummary)
	if !ok {
		return nil, nil
	}
	if viewerSummary == nil {
		return nil, fmt.Errorf("%w: viewer type %s", errdefs.ErrNotFound, viewerTypeName)
	}

	payload, err := codec.Encode(map[string]any{
		"artifact": artifactID.Hex(),
		"renderer": renderer,
	})
	if err != nil {
		return nil, err
	}

	viewer, err := st.CreateObject(viewerSummary.TypeID, viewerSummary.DefinitionID, payload)
	if err != nil {
		return nil, err
	}
	if _, err := st.AddEdge(artifact.Ref, viewer.Ref, viewEdgeName, viewEdgeRole, nil); err != nil {
		return nil, err
	}

	routingLog := log.WithComponent("routing")
	routingLog.Debug().
		Str("artifact", artifactID.Hex()).
		Str("viewer", viewer.Ref.ID.Hex()).
		Str("renderer", renderer).
		Msg("viewer spawned")

	viewerID := viewer.Ref.ID
	return &viewerID, nil
}
