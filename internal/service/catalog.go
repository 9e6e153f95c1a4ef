package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/recipebook/recipebook/internal/model"
	"github.com/recipebook/recipebook/internal/repository"
)

// CatalogService manages the tags and ingredients a user owns.
type CatalogService struct {
	store CatalogStore
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(store CatalogStore) *CatalogService {
	return &CatalogService{store: store}
}

// List returns the user's items of kind, ordered by name descending.
func (s *CatalogService) List(ctx context.Context, kind model.CatalogKind, userID int64, assignedOnly bool) ([]*model.CatalogItem, error) {
	return s.store.ListCatalogItems(ctx, kind, userID, assignedOnly)
}

// Create stores a new item owned by userID.
func (s *CatalogService) Create(ctx context.Context, kind model.CatalogKind, userID int64, name string) (*model.CatalogItem, error) {
	name, err := validateCatalogName(name)
	if err != nil {
		return nil, err
	}

	item := &model.CatalogItem{Kind: kind, Name: name, UserID: userID}
	if err := s.store.CreateCatalogItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Rename changes the name of an item owned by userID.
func (s *CatalogService) Rename(ctx context.Context, kind model.CatalogKind, userID, id int64, name string) (*model.CatalogItem, error) {
	name, err := validateCatalogName(name)
	if err != nil {
		return nil, err
	}

	item, err := s.store.GetCatalogItem(ctx, kind, id, userID)
	if err != nil {
		return nil, mapCatalogErr(err)
	}

	item.Name = name
	if err := s.store.UpdateCatalogItem(ctx, item); err != nil {
		return nil, mapCatalogErr(err)
	}
	return item, nil
}

// Delete removes an item owned by userID from every recipe and deletes it.
func (s *CatalogService) Delete(ctx context.Context, kind model.CatalogKind, userID, id int64) error {
	return mapCatalogErr(s.store.DeleteCatalogItem(ctx, kind, id, userID))
}

func validateCatalogName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrValidation)
	}
	if utf8.RuneCountInString(name) > 255 {
		return "", fmt.Errorf("%w: name must be at most 255 characters", ErrValidation)
	}
	return name, nil
}

func mapCatalogErr(err error) error {
	if errors.Is(err, repository.ErrCatalogItemNotFound) {
		return ErrNotFound
	}
	return err
}
