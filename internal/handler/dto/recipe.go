package dto

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/recipebook/recipebook/internal/model"
)

// RecipeRequest is the body of POST and PUT on recipes.
// Missing tags or ingredients mean none.
type RecipeRequest struct {
	Title       string           `json:"title" validate:"required,notblank,max=255"`
	TimeMinutes *int             `json:"time_minutes" validate:"required,gte=0"`
	Price       *decimal.Decimal `json:"price" validate:"required,money"`
	Link        string           `json:"link" validate:"omitempty,max=255"`
	Tags        []int64          `json:"tags"`
	Ingredients []int64          `json:"ingredients"`
}

// RecipePatchRequest is the body of PATCH on a recipe.
// Absent fields are left unchanged.
type RecipePatchRequest struct {
	Title       *string          `json:"title" validate:"omitempty,max=255"`
	TimeMinutes *int             `json:"time_minutes" validate:"omitempty,gte=0"`
	Price       *decimal.Decimal `json:"price" validate:"omitempty,money"`
	Link        *string          `json:"link" validate:"omitempty,max=255"`
	Tags        *[]int64         `json:"tags"`
	Ingredients *[]int64         `json:"ingredients"`
}

// RecipeResponse is a recipe in list responses.
type RecipeResponse struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	TimeMinutes int     `json:"time_minutes"`
	Price       string  `json:"price"`
	Link        string  `json:"link"`
	Tags        []int64 `json:"tags"`
	Ingredients []int64 `json:"ingredients"`
}

// RecipeDetailResponse is a single recipe with nested tags and ingredients.
type RecipeDetailResponse struct {
	ID          int64                 `json:"id"`
	Title       string                `json:"title"`
	TimeMinutes int                   `json:"time_minutes"`
	Price       string                `json:"price"`
	Link        string                `json:"link"`
	Image       *string               `json:"image"`
	Tags        []CatalogItemResponse `json:"tags"`
	Ingredients []CatalogItemResponse `json:"ingredients"`
}

// RecipeImageResponse is returned after an image upload.
type RecipeImageResponse struct {
	ID    int64  `json:"id"`
	Image string `json:"image"`
}

// ImageURL is where the image of recipe id is served.
func ImageURL(baseURL string, id int64) string {
	return fmt.Sprintf("%s/api/v1/recipes/%d/image", baseURL, id)
}

// ToRecipeResponse converts a Recipe model to RecipeResponse DTO.
func ToRecipeResponse(r *model.Recipe) RecipeResponse {
	return RecipeResponse{
		ID:          r.ID,
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Price:       r.Price.StringFixed(model.PriceDecimalPlaces),
		Link:        r.Link,
		Tags:        nonNil(r.TagIDs),
		Ingredients: nonNil(r.IngredientIDs),
	}
}

// ToRecipeList converts recipes, never returning nil.
func ToRecipeList(recipes []*model.Recipe) []RecipeResponse {
	out := make([]RecipeResponse, 0, len(recipes))
	for _, r := range recipes {
		out = append(out, ToRecipeResponse(r))
	}
	return out
}

// ToRecipeDetailResponse builds the detail view. tags and ingredients are
// the resolved catalog entries of r.
func ToRecipeDetailResponse(r *model.Recipe, tags, ingredients []*model.CatalogItem, baseURL string) RecipeDetailResponse {
	resp := RecipeDetailResponse{
		ID:          r.ID,
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Price:       r.Price.StringFixed(model.PriceDecimalPlaces),
		Link:        r.Link,
		Tags:        ToCatalogItemList(tags),
		Ingredients: ToCatalogItemList(ingredients),
	}
	if r.HasImage() {
		url := ImageURL(baseURL, r.ID)
		resp.Image = &url
	}
	return resp
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
