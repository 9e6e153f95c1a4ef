package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/recipebook/recipebook/internal/auth"
	"github.com/recipebook/recipebook/internal/handler/dto"
	"github.com/recipebook/recipebook/internal/service"
	"github.com/recipebook/recipebook/internal/validation"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to temporary files.
const multipartMemory = 1 << 20

// RecipeHandler handles HTTP requests for recipe operations.
type RecipeHandler struct {
	svc           *service.RecipeService
	baseURL       string
	maxUploadSize int64
	logger        *slog.Logger
}

// NewRecipeHandler creates a new RecipeHandler.
func NewRecipeHandler(svc *service.RecipeService, baseURL string, maxUploadSize int64, logger *slog.Logger) *RecipeHandler {
	return &RecipeHandler{
		svc:           svc,
		baseURL:       baseURL,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// List handles GET /api/v1/recipes. The tags and ingredients query
// parameters take comma-separated IDs.
func (h *RecipeHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	tagIDs, err := service.ParseIDList(query.Get("tags"))
	if err != nil {
		writeFieldError(w, "tags", err)
		return
	}
	ingredientIDs, err := service.ParseIDList(query.Get("ingredients"))
	if err != nil {
		writeFieldError(w, "ingredients", err)
		return
	}

	recipes, err := h.svc.ListRecipes(r.Context(), auth.UserIDFromContext(r.Context()), service.RecipeFilter{
		TagIDs:        tagIDs,
		IngredientIDs: ingredientIDs,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToRecipeList(recipes))
}

// Get handles GET /api/v1/recipes/{id}.
func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	detail, err := h.svc.GetRecipeDetail(r.Context(), auth.UserIDFromContext(r.Context()), id)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToRecipeDetailResponse(detail.Recipe, detail.Tags, detail.Ingredients, h.baseURL))
}

// Create handles POST /api/v1/recipes.
func (h *RecipeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.RecipeRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	recipe, err := h.svc.CreateRecipe(r.Context(), userID, recipeInput(&req))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("recipe_created",
		"recipe_id", recipe.ID,
		"user_id", userID,
		"tags", len(recipe.TagIDs),
		"ingredients", len(recipe.IngredientIDs),
	)

	h.writeDetail(w, r, http.StatusCreated, recipe.ID)
}

// Replace handles PUT /api/v1/recipes/{id}.
func (h *RecipeHandler) Replace(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req dto.RecipeRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	recipe, err := h.svc.FullUpdate(r.Context(), auth.UserIDFromContext(r.Context()), id, recipeInput(&req))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("recipe_updated", "recipe_id", recipe.ID, "mode", "full")
	h.writeDetail(w, r, http.StatusOK, recipe.ID)
}

// Update handles PATCH /api/v1/recipes/{id}.
func (h *RecipeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req dto.RecipePatchRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	patch := service.RecipePatch{
		Title:         req.Title,
		TimeMinutes:   req.TimeMinutes,
		Price:         req.Price,
		Link:          req.Link,
		TagIDs:        req.Tags,
		IngredientIDs: req.Ingredients,
	}

	recipe, err := h.svc.PartialUpdate(r.Context(), auth.UserIDFromContext(r.Context()), id, patch)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("recipe_updated", "recipe_id", recipe.ID, "mode", "partial")
	h.writeDetail(w, r, http.StatusOK, recipe.ID)
}

// Delete handles DELETE /api/v1/recipes/{id}.
func (h *RecipeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteRecipe(r.Context(), auth.UserIDFromContext(r.Context()), id); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("recipe_deleted", "recipe_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage handles POST /api/v1/recipes/{id}/upload-image.
// The image is read from the multipart field "image".
func (h *RecipeHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Image too large")
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_MULTIPART", "Expected a multipart/form-data body")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, _, err := r.FormFile("image")
	if err != nil {
		writeValidationError(w, &validation.RequestValidationError{
			Fields: []validation.FieldError{{Field: "image", Tag: "required", Message: "image is required"}},
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	recipe, err := h.svc.AttachImage(r.Context(), auth.UserIDFromContext(r.Context()), id, data)
	if err != nil {
		if errors.Is(err, service.ErrInvalidImage) {
			h.logger.Info("image_rejected", "recipe_id", id, "bytes", len(data))
		}
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("image_uploaded", "recipe_id", recipe.ID, "bytes", len(data))
	writeJSON(w, http.StatusOK, dto.RecipeImageResponse{
		ID:    recipe.ID,
		Image: dto.ImageURL(h.baseURL, recipe.ID),
	})
}

// Image handles GET /api/v1/recipes/{id}/image.
func (h *RecipeHandler) Image(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	rc, contentType, err := h.svc.OpenImage(r.Context(), auth.UserIDFromContext(r.Context()), id)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("image stream interrupted", "recipe_id", id, "error", err)
	}
}

func (h *RecipeHandler) writeDetail(w http.ResponseWriter, r *http.Request, status int, id int64) {
	detail, err := h.svc.GetRecipeDetail(r.Context(), auth.UserIDFromContext(r.Context()), id)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, status, dto.ToRecipeDetailResponse(detail.Recipe, detail.Tags, detail.Ingredients, h.baseURL))
}

func recipeInput(req *dto.RecipeRequest) service.RecipeInput {
	return service.RecipeInput{
		Title:         req.Title,
		TimeMinutes:   *req.TimeMinutes,
		Price:         *req.Price,
		Link:          req.Link,
		TagIDs:        req.Tags,
		IngredientIDs: req.Ingredients,
	}
}

func writeFieldError(w http.ResponseWriter, field string, err error) {
	writeValidationError(w, &validation.RequestValidationError{
		Fields: []validation.FieldError{{Field: field, Tag: "idlist", Message: err.Error()}},
	})
}
