package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"catalog/application/ports"
	"catalog/application/services"
	"catalog/domain/core/valueobjects"
	pkgerrors "catalog/pkg/errors"
)

const (
	defaultPageSize          = 20
	defaultAutocompleteLimit = 10
	defaultDependencyDepth   = 1
	defaultLineageDepth      = 5
)

// Handler exposes the catalog operations over HTTP
type Handler struct {
	catalog *services.CatalogService
	logger  *zap.Logger
}

// NewHandler creates the HTTP handler
func NewHandler(catalog *services.CatalogService, logger *zap.Logger) *Handler {
	return &Handler{catalog: catalog, logger: logger}
}

// Routes mounts the API under /api/v1
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/resources", func(r chi.Router) {
			r.Post("/", h.registerResource)
			r.Get("/", h.listResources)
			r.Get("/by-name/{name}", h.getResourceByName)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getResource)
				r.Put("/", h.updateResource)
				r.Delete("/", h.deleteResource)
				r.Get("/dependencies", h.dependencies)
				r.Get("/dependents", h.dependents)
				r.Get("/lineage/upstream", h.lineageUpstream)
				r.Get("/lineage/downstream", h.lineageDownstream)
				r.Get("/relationships", h.resourceRelationships)
			})
		})

		r.Route("/relationships", func(r chi.Router) {
			r.Post("/", h.createRelationship)
			r.Get("/", h.listRelationships)
			r.Get("/{id}", h.getRelationship)
			r.Delete("/{id}", h.deleteRelationship)
		})

		r.Get("/cycle-check", h.checkCycle)

		r.Route("/search", func(r chi.Router) {
			r.Get("/", h.search)
			r.Get("/autocomplete", h.autocomplete)
			r.Get("/facets", h.facets)
		})

		r.Post("/admin/reindex", h.reindex)
	})
}

func (h *Handler) registerResource(w http.ResponseWriter, r *http.Request) {
	var req resourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, pkgerrors.NewInvalidf("malformed request body: %v", err))
		return
	}
	resource, err := req.toEntity()
	if err != nil {
		h.writeError(w, err)
		return
	}

	created, err := h.catalog.Register(r.Context(), resource)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toResourceResponse(created))
}

func (h *Handler) getResource(w http.ResponseWriter, r *http.Request) {
	id, err := valueobjects.NewResourceIDFromString(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	resource, err := h.catalog.GetResource(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toResourceResponse(resource))
}

func (h *Handler) getResourceByName(w http.ResponseWriter, r *http.Request) {
	name, err := valueobjects.NewName(chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	namespace, err := valueobjects.NewNamespace(r.URL.Query().Get("namespace"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	resource, err := h.catalog.GetResourceByName(r.Context(), name, namespace)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toResourceResponse(resource))
}

// listResources filters by exactly one of type, namespace or tags
func (h *Handler) listResources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	switch {
	case q.Get("type") != "":
		resourceType, err := valueobjects.ParseResourceType(q.Get("type"))
		if err != nil {
			h.writeError(w, err)
			return
		}
		resources, err := h.catalog.ListByType(r.Context(), resourceType)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, toResourceResponses(resources))

	case q.Get("namespace") != "":
		namespace, err := valueobjects.NewNamespace(q.Get("namespace"))
		if err != nil {
			h.writeError(w, err)
			return
		}
		resources, err := h.catalog.ListByNamespace(r.Context(), namespace)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, toResourceResponses(resources))

	case q.Get("tags") != "":
		resources, err := h.catalog.ListByTags(r.Context(), strings.Split(q.Get("tags"), ","))
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, toResourceResponses(resources))

	default:
		h.writeError(w, pkgerrors.NewInvalid("one of type, namespace or tags is required"))
	}
}

func (h *Handler) updateResource(w http.ResponseWriter, r *http.Request) {
	id, err := valueobjects.NewResourceIDFromString(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req resourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, pkgerrors.NewInvalidf("malformed request body: %v", err))
		return
	}
	resource, err := req.toEntity()
	if err != nil {
		h.writeError(w, err)
		return
	}
	resource.SetID(id)

	updated, err := h.catalog.Update(r.Context(), resource)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toResourceResponse(updated))
}

func (h *Handler) deleteResource(w http.ResponseWriter, r *http.Request) {
	id, err := valueobjects.NewResourceIDFromString(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	deleted, err := h.catalog.Delete(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !deleted {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createRelationship(w http.ResponseWriter, r *http.Request) {
	var req relationshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, pkgerrors.NewInvalidf("malformed request body: %v", err))
		return
	}
	rel, err := req.toEntity()
	if err != nil {
		h.writeError(w, err)
		return
	}

	created, err := h.catalog.CreateRelationship(r.Context(), rel)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toRelationshipResponse(created))
}

func (h *Handler) getRelationship(w http.ResponseWriter, r *http.Request) {
	id, err := valueobjects.NewRelationshipIDFromString(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	rel, err := h.catalog.GetRelationship(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toRelationshipResponse(rel))
}

func (h *Handler) deleteRelationship(w http.ResponseWriter, r *http.Request) {
	id, err := valueobjects.NewRelationshipIDFromString(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	deleted, err := h.catalog.DeleteRelationship(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !deleted {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listRelationships filters by type, or by source and target together
func (h *Handler) listRelationships(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if q.Get("type") != "" {
		relType, err := valueobjects.ParseRelationshipType(q.Get("type"))
		if err != nil {
			h.writeError(w, err)
			return
		}
		rels, err := h.catalog.GetRelationshipsByType(r.Context(), relType)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, toRelationshipResponses(rels))
		return
	}

	if q.Get("source") != "" && q.Get("target") != "" {
		source, err := valueobjects.NewResourceIDFromString(q.Get("source"))
		if err != nil {
			h.writeError(w, err)
			return
		}
		target, err := valueobjects.NewResourceIDFromString(q.Get("target"))
		if err != nil {
			h.writeError(w, err)
			return
		}
		rels, err := h.catalog.GetRelationshipsBetween(r.Context(), source, target)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, toRelationshipResponses(rels))
		return
	}

	h.writeError(w, pkgerrors.NewInvalid("type, or source and target together, is required"))
}

// resourceRelationships returns the edges touching a resource, direction
// selected by the direction query parameter
func (h *Handler) resourceRelationships(w http.ResponseWriter, r *http.Request) {
	id, err := valueobjects.NewResourceIDFromString(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	var rels []relationshipResponse
	switch r.URL.Query().Get("direction") {
	case "", "out":
		out, err := h.catalog.GetRelationshipsBySource(r.Context(), id)
		if err != nil {
			h.writeError(w, err)
			return
		}
		rels = toRelationshipResponses(out)
	case "in":
		in, err := h.catalog.GetRelationshipsByTarget(r.Context(), id)
		if err != nil {
			h.writeError(w, err)
			return
		}
		rels = toRelationshipResponses(in)
	default:
		h.writeError(w, pkgerrors.NewInvalid("direction must be in or out"))
		return
	}
	h.writeJSON(w, http.StatusOK, rels)
}

func (h *Handler) dependencies(w http.ResponseWriter, r *http.Request) {
	h.traverse(w, r, h.catalog.Dependencies, defaultDependencyDepth)
}

func (h *Handler) dependents(w http.ResponseWriter, r *http.Request) {
	h.traverse(w, r, h.catalog.Dependents, defaultDependencyDepth)
}

func (h *Handler) lineageUpstream(w http.ResponseWriter, r *http.Request) {
	h.traverse(w, r, h.catalog.LineageUpstream, defaultLineageDepth)
}

func (h *Handler) lineageDownstream(w http.ResponseWriter, r *http.Request) {
	h.traverse(w, r, h.catalog.LineageDownstream, defaultLineageDepth)
}

func (h *Handler) traverse(
	w http.ResponseWriter,
	r *http.Request,
	walk func(context.Context, valueobjects.ResourceID, int) ([]ports.ResourceProjection, error),
	defaultDepth int,
) {
	id, err := valueobjects.NewResourceIDFromString(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	depth := intParam(r.URL.Query().Get("depth"), defaultDepth)

	projections, err := walk(r.Context(), id, depth)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toProjectionResponses(projections))
}

func (h *Handler) checkCycle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	source, err := valueobjects.NewResourceIDFromString(q.Get("source"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	target, err := valueobjects.NewResourceIDFromString(q.Get("target"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	relType, err := valueobjects.ParseRelationshipType(q.Get("type"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	cyclic, err := h.catalog.CheckCycle(r.Context(), source, target, relType)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"wouldCycle": cyclic})
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageSize := intParam(q.Get("pageSize"), defaultPageSize)
	page := intParam(q.Get("page"), 1)

	docs, err := h.catalog.Search(r.Context(), q.Get("q"), pageSize, page)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, docs)
}

func (h *Handler) autocomplete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := intParam(q.Get("limit"), defaultAutocompleteLimit)

	docs, err := h.catalog.Autocomplete(r.Context(), q.Get("prefix"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, docs)
}

func (h *Handler) facets(w http.ResponseWriter, r *http.Request) {
	facets, err := h.catalog.GetFacets(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, facets)
}

func (h *Handler) reindex(w http.ResponseWriter, r *http.Request) {
	total, err := h.catalog.ResyncSearchIndex(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"indexed": total})
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("writing response failed", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var appErr *pkgerrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case pkgerrors.ErrorTypeInvalid:
			status = http.StatusBadRequest
		case pkgerrors.ErrorTypeNotFound:
			status = http.StatusNotFound
		case pkgerrors.ErrorTypeConflict:
			status = http.StatusConflict
		case pkgerrors.ErrorTypeUnavailable:
			status = http.StatusServiceUnavailable
		}
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
