package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/recipebook/recipebook/internal/media"
	"github.com/recipebook/recipebook/internal/metrics"
	"github.com/recipebook/recipebook/internal/model"
	"github.com/recipebook/recipebook/internal/repository"
)

const (
	maxTitleLength = 255
	maxLinkLength  = 255
)

// RecipeInput is a complete recipe as sent on create and full update.
// Nil TagIDs or IngredientIDs mean no associations.
type RecipeInput struct {
	Title         string
	TimeMinutes   int
	Price         decimal.Decimal
	Link          string
	TagIDs        []int64
	IngredientIDs []int64
}

// RecipePatch carries the fields of a partial update. Nil fields are left
// unchanged. A non-nil pointer to an empty slice clears the associations.
type RecipePatch struct {
	Title         *string
	TimeMinutes   *int
	Price         *decimal.Decimal
	Link          *string
	TagIDs        *[]int64
	IngredientIDs *[]int64
}

// RecipeFilter narrows ListRecipes. Empty slices do not filter.
type RecipeFilter = repository.RecipeFilter

// RecipeDetail is a recipe with its tags and ingredients resolved.
type RecipeDetail struct {
	*model.Recipe
	Tags        []*model.CatalogItem
	Ingredients []*model.CatalogItem
}

// RecipeService handles recipe business logic.
type RecipeService struct {
	recipes RecipeStore
	catalog CatalogStore
	images  ImageStore
	metrics metrics.Recorder
}

// NewRecipeService creates a new RecipeService.
func NewRecipeService(recipes RecipeStore, catalog CatalogStore, images ImageStore, recorder metrics.Recorder) *RecipeService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &RecipeService{
		recipes: recipes,
		catalog: catalog,
		images:  images,
		metrics: recorder,
	}
}

// ListRecipes returns recipes owned by userID, highest ID first.
// TagIDs and IngredientIDs each keep recipes sharing at least one ID;
// when both are set a recipe must match both.
func (s *RecipeService) ListRecipes(ctx context.Context, userID int64, filter RecipeFilter) ([]*model.Recipe, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveRecipeListDuration(time.Since(start))
	}()

	filter.TagIDs = uniqueIDs(filter.TagIDs)
	filter.IngredientIDs = uniqueIDs(filter.IngredientIDs)

	return s.recipes.ListRecipes(ctx, userID, filter)
}

// GetRecipe returns a recipe owned by userID.
func (s *RecipeService) GetRecipe(ctx context.Context, userID, id int64) (*model.Recipe, error) {
	recipe, err := s.recipes.GetRecipe(ctx, id, userID)
	if err != nil {
		return nil, mapRecipeErr(err)
	}
	return recipe, nil
}

// GetRecipeDetail returns a recipe with its tags and ingredients.
func (s *RecipeService) GetRecipeDetail(ctx context.Context, userID, id int64) (*RecipeDetail, error) {
	recipe, err := s.GetRecipe(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	tags, err := s.catalog.GetCatalogItemsByIDs(ctx, model.KindTag, recipe.TagIDs)
	if err != nil {
		return nil, err
	}
	ingredients, err := s.catalog.GetCatalogItemsByIDs(ctx, model.KindIngredient, recipe.IngredientIDs)
	if err != nil {
		return nil, err
	}

	return &RecipeDetail{Recipe: recipe, Tags: tags, Ingredients: ingredients}, nil
}

// CreateRecipe stores a new recipe owned by userID.
func (s *RecipeService) CreateRecipe(ctx context.Context, userID int64, input RecipeInput) (*model.Recipe, error) {
	recipe := &model.Recipe{UserID: userID}
	if err := s.applyInput(ctx, recipe, input); err != nil {
		return nil, err
	}

	if err := s.recipes.CreateRecipe(ctx, recipe); err != nil {
		return nil, mapRecipeErr(err)
	}

	s.metrics.IncRecipeCreated()
	return recipe, nil
}

// FullUpdate replaces every field of a recipe owned by userID.
// Omitted link becomes empty and omitted associations are cleared.
func (s *RecipeService) FullUpdate(ctx context.Context, userID, id int64, input RecipeInput) (*model.Recipe, error) {
	recipe, err := s.GetRecipe(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if err := s.applyInput(ctx, recipe, input); err != nil {
		return nil, err
	}

	if err := s.recipes.UpdateRecipe(ctx, recipe); err != nil {
		return nil, mapRecipeErr(err)
	}

	s.metrics.IncRecipeUpdated(metrics.UpdateModeFull)
	return recipe, nil
}

// PartialUpdate changes only the supplied fields of a recipe owned by userID.
func (s *RecipeService) PartialUpdate(ctx context.Context, userID, id int64, patch RecipePatch) (*model.Recipe, error) {
	recipe, err := s.GetRecipe(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		title, err := validateTitle(*patch.Title)
		if err != nil {
			return nil, err
		}
		recipe.Title = title
	}
	if patch.TimeMinutes != nil {
		if err := validateTimeMinutes(*patch.TimeMinutes); err != nil {
			return nil, err
		}
		recipe.TimeMinutes = *patch.TimeMinutes
	}
	if patch.Price != nil {
		if err := validatePrice(*patch.Price); err != nil {
			return nil, err
		}
		recipe.Price = *patch.Price
	}
	if patch.Link != nil {
		link, err := validateLink(*patch.Link)
		if err != nil {
			return nil, err
		}
		recipe.Link = link
	}
	if patch.TagIDs != nil {
		ids, err := s.resolveIDs(ctx, model.KindTag, *patch.TagIDs)
		if err != nil {
			return nil, err
		}
		recipe.TagIDs = ids
	}
	if patch.IngredientIDs != nil {
		ids, err := s.resolveIDs(ctx, model.KindIngredient, *patch.IngredientIDs)
		if err != nil {
			return nil, err
		}
		recipe.IngredientIDs = ids
	}

	if err := s.recipes.UpdateRecipe(ctx, recipe); err != nil {
		return nil, mapRecipeErr(err)
	}

	s.metrics.IncRecipeUpdated(metrics.UpdateModePartial)
	return recipe, nil
}

// DeleteRecipe removes a recipe owned by userID and its image.
func (s *RecipeService) DeleteRecipe(ctx context.Context, userID, id int64) error {
	recipe, err := s.GetRecipe(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.recipes.DeleteRecipe(ctx, id, userID); err != nil {
		return mapRecipeErr(err)
	}

	if recipe.HasImage() {
		_ = s.images.Delete(ctx, recipe.Image)
	}

	s.metrics.IncRecipeDeleted()
	return nil
}

// AttachImage validates data as an image and makes it the recipe's image.
// On ErrInvalidImage the recipe is left unchanged. The file the store
// reports as replaced is removed on a best-effort basis.
func (s *RecipeService) AttachImage(ctx context.Context, userID, id int64, data []byte) (*model.Recipe, error) {
	recipe, err := s.GetRecipe(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	ext, err := media.DecodeBytes(data)
	if err != nil {
		s.metrics.IncImageUpload(metrics.UploadStatusInvalid)
		return nil, fmt.Errorf("%w: the file is either not an image or a corrupted image", ErrInvalidImage)
	}

	path, err := s.images.Save(ctx, recipe.ID, ext, data)
	if err != nil {
		s.metrics.IncImageUpload(metrics.UploadStatusFailed)
		return nil, fmt.Errorf("store image: %w", err)
	}

	previous, err := s.recipes.SetRecipeImage(ctx, recipe.ID, userID, path)
	if err != nil {
		_ = s.images.Delete(ctx, path)
		s.metrics.IncImageUpload(metrics.UploadStatusFailed)
		return nil, mapRecipeErr(err)
	}

	recipe.Image = path
	if previous != "" && previous != path {
		_ = s.images.Delete(ctx, previous)
	}

	s.metrics.IncImageUpload(metrics.UploadStatusSuccess)
	return recipe, nil
}

// OpenImage returns the stored image of a recipe owned by userID.
// The caller closes the reader.
func (s *RecipeService) OpenImage(ctx context.Context, userID, id int64) (io.ReadCloser, string, error) {
	recipe, err := s.GetRecipe(ctx, userID, id)
	if err != nil {
		return nil, "", err
	}
	if !recipe.HasImage() {
		return nil, "", fmt.Errorf("%w: recipe has no image", ErrNotFound)
	}

	rc, err := s.images.Open(ctx, recipe.Image)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return rc, media.ContentType(recipe.Image), nil
}

func (s *RecipeService) applyInput(ctx context.Context, recipe *model.Recipe, input RecipeInput) error {
	title, err := validateTitle(input.Title)
	if err != nil {
		return err
	}
	if err := validateTimeMinutes(input.TimeMinutes); err != nil {
		return err
	}
	if err := validatePrice(input.Price); err != nil {
		return err
	}
	link, err := validateLink(input.Link)
	if err != nil {
		return err
	}

	tagIDs, err := s.resolveIDs(ctx, model.KindTag, input.TagIDs)
	if err != nil {
		return err
	}
	ingredientIDs, err := s.resolveIDs(ctx, model.KindIngredient, input.IngredientIDs)
	if err != nil {
		return err
	}

	recipe.Title = title
	recipe.TimeMinutes = input.TimeMinutes
	recipe.Price = input.Price
	recipe.Link = link
	recipe.TagIDs = tagIDs
	recipe.IngredientIDs = ingredientIDs
	return nil
}

// resolveIDs deduplicates ids and checks that every one exists.
// Items owned by other users are accepted.
func (s *RecipeService) resolveIDs(ctx context.Context, kind model.CatalogKind, ids []int64) ([]int64, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return ids, nil
	}

	found, err := s.catalog.ExistingCatalogIDs(ctx, kind, ids)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		if !slices.Contains(found, id) {
			return nil, fmt.Errorf("%w: %s %d does not exist", ErrNotFound, kind, id)
		}
	}

	slices.Sort(ids)
	return ids, nil
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", ErrValidation)
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", fmt.Errorf("%w: title must be at most %d characters", ErrValidation, maxTitleLength)
	}
	return title, nil
}

func validateTimeMinutes(minutes int) error {
	if minutes < 0 {
		return fmt.Errorf("%w: time_minutes must not be negative", ErrValidation)
	}
	return nil
}

func validatePrice(price decimal.Decimal) error {
	if !model.ValidPrice(price) {
		return fmt.Errorf("%w: price must be between 0 and 999.99 with at most 2 decimal places", ErrValidation)
	}
	return nil
}

func validateLink(link string) (string, error) {
	link = strings.TrimSpace(link)
	if utf8.RuneCountInString(link) > maxLinkLength {
		return "", fmt.Errorf("%w: link must be at most %d characters", ErrValidation, maxLinkLength)
	}
	return link, nil
}

func mapRecipeErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrRecipeNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrRelatedNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	default:
		return err
	}
}
