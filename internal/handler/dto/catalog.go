package dto

import "github.com/recipebook/recipebook/internal/model"

// CatalogItemRequest is the body for creating or renaming a tag or ingredient.
type CatalogItemRequest struct {
	Name string `json:"name" validate:"required,notblank,max=255"`
}

// CatalogItemResponse represents a tag or ingredient.
type CatalogItemResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ToCatalogItemResponse converts a CatalogItem model to its DTO.
func ToCatalogItemResponse(item *model.CatalogItem) CatalogItemResponse {
	return CatalogItemResponse{ID: item.ID, Name: item.Name}
}

// ToCatalogItemList converts items, never returning nil.
func ToCatalogItemList(items []*model.CatalogItem) []CatalogItemResponse {
	out := make([]CatalogItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, ToCatalogItemResponse(item))
	}
	return out
}
