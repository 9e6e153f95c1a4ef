package handler

import (
	"log/slog"
	"net/http"

	"github.com/recipebook/recipebook/internal/auth"
	"github.com/recipebook/recipebook/internal/handler/dto"
	"github.com/recipebook/recipebook/internal/model"
	"github.com/recipebook/recipebook/internal/service"
)

// CatalogHandler serves one catalog, tags or ingredients, for the caller.
type CatalogHandler struct {
	svc    *service.CatalogService
	kind   model.CatalogKind
	logger *slog.Logger
}

// NewCatalogHandler creates a CatalogHandler for kind.
func NewCatalogHandler(svc *service.CatalogService, kind model.CatalogKind, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		svc:    svc,
		kind:   kind,
		logger: logger.With("catalog", string(kind)),
	}
}

// List handles GET on the collection. assigned_only=1 keeps entries that
// at least one recipe uses.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	assignedOnly, ok := parseFlag(w, r.URL.Query().Get("assigned_only"), "assigned_only")
	if !ok {
		return
	}

	items, err := h.svc.List(r.Context(), h.kind, auth.UserIDFromContext(r.Context()), assignedOnly)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToCatalogItemList(items))
}

// Create handles POST on the collection.
func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CatalogItemRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	item, err := h.svc.Create(r.Context(), h.kind, auth.UserIDFromContext(r.Context()), req.Name)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("catalog_item_created", "id", item.ID)
	writeJSON(w, http.StatusCreated, dto.ToCatalogItemResponse(item))
}

// Update handles PUT and PATCH on an entry. Name is the only field.
func (h *CatalogHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req dto.CatalogItemRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	item, err := h.svc.Rename(r.Context(), h.kind, auth.UserIDFromContext(r.Context()), id, req.Name)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("catalog_item_renamed", "id", item.ID)
	writeJSON(w, http.StatusOK, dto.ToCatalogItemResponse(item))
}

// Delete handles DELETE on an entry.
func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), h.kind, auth.UserIDFromContext(r.Context()), id); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("catalog_item_deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// parseFlag accepts 0/1 or true/false; empty is false.
func parseFlag(w http.ResponseWriter, raw, name string) (bool, bool) {
	switch raw {
	case "", "0", "false", "False":
		return false, true
	case "1", "true", "True":
		return true, true
	}
	writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", name+" must be 0 or 1")
	return false, false
}
