// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"io"

	"github.com/recipebook/recipebook/internal/model"
	"github.com/recipebook/recipebook/internal/repository"
)

// Service errors. Callers match them with errors.Is; most are wrapped with detail.
var (
	ErrValidation         = errors.New("validation failed")
	ErrDuplicateEmail     = errors.New("user with this email already exists")
	ErrNotFound           = errors.New("not found")
	ErrInvalidImage       = errors.New("upload a valid image")
	ErrInvalidCredentials = errors.New("unable to authenticate with provided credentials")
	ErrUnauthenticated    = errors.New("invalid token")
)

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	UpdateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
}

// TokenStore persists login tokens.
type TokenStore interface {
	CreateToken(ctx context.Context, token *model.AuthToken) error
	GetTokensByPrefix(ctx context.Context, prefix string) ([]*model.AuthToken, error)
	RevokeToken(ctx context.Context, id string) error
	UpdateTokenLastUsed(ctx context.Context, id string) error
}

// CatalogStore persists tags and ingredients.
type CatalogStore interface {
	CreateCatalogItem(ctx context.Context, item *model.CatalogItem) error
	GetCatalogItem(ctx context.Context, kind model.CatalogKind, id, userID int64) (*model.CatalogItem, error)
	ListCatalogItems(ctx context.Context, kind model.CatalogKind, userID int64, assignedOnly bool) ([]*model.CatalogItem, error)
	GetCatalogItemsByIDs(ctx context.Context, kind model.CatalogKind, ids []int64) ([]*model.CatalogItem, error)
	ExistingCatalogIDs(ctx context.Context, kind model.CatalogKind, ids []int64) ([]int64, error)
	UpdateCatalogItem(ctx context.Context, item *model.CatalogItem) error
	DeleteCatalogItem(ctx context.Context, kind model.CatalogKind, id, userID int64) error
}

// RecipeStore persists recipes and their tag/ingredient associations.
type RecipeStore interface {
	CreateRecipe(ctx context.Context, recipe *model.Recipe) error
	UpdateRecipe(ctx context.Context, recipe *model.Recipe) error
	SetRecipeImage(ctx context.Context, id, userID int64, image string) (previous string, err error)
	GetRecipe(ctx context.Context, id, userID int64) (*model.Recipe, error)
	ListRecipes(ctx context.Context, userID int64, filter repository.RecipeFilter) ([]*model.Recipe, error)
	DeleteRecipe(ctx context.Context, id, userID int64) error
}

// ImageStore holds uploaded image blobs.
type ImageStore interface {
	Save(ctx context.Context, recipeID int64, ext string, data []byte) (string, error)
	Delete(ctx context.Context, path string) error
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

var (
	_ UserStore    = (*repository.Repository)(nil)
	_ TokenStore   = (*repository.Repository)(nil)
	_ CatalogStore = (*repository.Repository)(nil)
	_ RecipeStore  = (*repository.Repository)(nil)
)
