// Package memstore is an in-memory stand-in for the Postgres repository and
// the media disk store, used by service and handler tests.
package memstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/recipebook/recipebook/internal/model"
	"github.com/recipebook/recipebook/internal/repository"
)

// recipeTag and recipeIngredient are join rows, as in the recipe_tags and
// recipe_ingredients tables.
type recipeTag struct {
	RecipeID int64
	TagID    int64
}

type recipeIngredient struct {
	RecipeID     int64
	IngredientID int64
}

// Store mirrors the semantics of repository.Repository in memory.
type Store struct {
	mu sync.Mutex

	nextID int64

	users       map[int64]*model.User
	tokens      map[string]*model.AuthToken
	catalog     map[model.CatalogKind]map[int64]*model.CatalogItem
	recipes     map[int64]*model.Recipe
	recipeTags  []recipeTag
	recipeIngrs []recipeIngredient

	// UserWrites counts CreateUser and UpdateUser calls.
	UserWrites int
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:  make(map[int64]*model.User),
		tokens: make(map[string]*model.AuthToken),
		catalog: map[model.CatalogKind]map[int64]*model.CatalogItem{
			model.KindTag:        {},
			model.KindIngredient: {},
		},
		recipes: make(map[int64]*model.Recipe),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// CreateUser implements service.UserStore.
func (s *Store) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return repository.ErrEmailExists
		}
	}

	user.ID = s.id()
	user.JoinedAt = time.Now().UTC()
	cp := *user
	s.users[user.ID] = &cp
	s.UserWrites++
	return nil
}

// UpdateUser implements service.UserStore.
func (s *Store) UpdateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	for _, u := range s.users {
		if u.ID != user.ID && u.Email == user.Email {
			return repository.ErrEmailExists
		}
	}

	cp := *user
	s.users[user.ID] = &cp
	s.UserWrites++
	return nil
}

// GetUserByID implements service.UserStore.
func (s *Store) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// GetUserByEmail implements service.UserStore.
func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// ListUsers implements service.UserStore.
func (s *Store) ListUsers(_ context.Context) ([]*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		users = append(users, &cp)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// CreateToken implements service.TokenStore.
func (s *Store) CreateToken(_ context.Context, token *model.AuthToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *token
	s.tokens[token.ID] = &cp
	return nil
}

// GetTokensByPrefix implements service.TokenStore.
func (s *Store) GetTokensByPrefix(_ context.Context, prefix string) ([]*model.AuthToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.AuthToken
	for _, t := range s.tokens {
		if t.TokenPrefix == prefix && !t.IsRevoked() {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

// RevokeToken implements service.TokenStore.
func (s *Store) RevokeToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[id]
	if !ok || t.IsRevoked() {
		return repository.ErrTokenNotFound
	}
	now := time.Now()
	t.RevokedAt = &now
	return nil
}

// UpdateTokenLastUsed implements service.TokenStore.
func (s *Store) UpdateTokenLastUsed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tokens[id]; ok {
		now := time.Now()
		t.LastUsedAt = &now
	}
	return nil
}

// CreateCatalogItem implements service.CatalogStore.
func (s *Store) CreateCatalogItem(_ context.Context, item *model.CatalogItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, ok := s.catalog[item.Kind]
	if !ok {
		return fmt.Errorf("unknown catalog kind %q", item.Kind)
	}
	item.ID = s.id()
	cp := *item
	items[item.ID] = &cp
	return nil
}

// GetCatalogItem implements service.CatalogStore.
func (s *Store) GetCatalogItem(_ context.Context, kind model.CatalogKind, id, userID int64) (*model.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.catalog[kind][id]
	if !ok || item.UserID != userID {
		return nil, repository.ErrCatalogItemNotFound
	}
	cp := *item
	return &cp, nil
}

// ListCatalogItems implements service.CatalogStore.
func (s *Store) ListCatalogItems(_ context.Context, kind model.CatalogKind, userID int64, assignedOnly bool) ([]*model.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := []*model.CatalogItem{}
	for _, item := range s.catalog[kind] {
		if item.UserID != userID {
			continue
		}
		if assignedOnly && !s.assignedLocked(kind, item.ID) {
			continue
		}
		cp := *item
		items = append(items, &cp)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name > items[j].Name
		}
		return items[i].ID > items[j].ID
	})
	return items, nil
}

// GetCatalogItemsByIDs implements service.CatalogStore.
func (s *Store) GetCatalogItemsByIDs(_ context.Context, kind model.CatalogKind, ids []int64) ([]*model.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := []*model.CatalogItem{}
	for _, id := range ids {
		if item, ok := s.catalog[kind][id]; ok {
			cp := *item
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

// ExistingCatalogIDs implements service.CatalogStore.
func (s *Store) ExistingCatalogIDs(_ context.Context, kind model.CatalogKind, ids []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found []int64
	for _, id := range ids {
		if _, ok := s.catalog[kind][id]; ok {
			found = append(found, id)
		}
	}
	return found, nil
}

// UpdateCatalogItem implements service.CatalogStore.
func (s *Store) UpdateCatalogItem(_ context.Context, item *model.CatalogItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.catalog[item.Kind][item.ID]
	if !ok || existing.UserID != item.UserID {
		return repository.ErrCatalogItemNotFound
	}
	existing.Name = item.Name
	return nil
}

// DeleteCatalogItem implements service.CatalogStore. Join rows cascade.
func (s *Store) DeleteCatalogItem(_ context.Context, kind model.CatalogKind, id, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.catalog[kind][id]
	if !ok || existing.UserID != userID {
		return repository.ErrCatalogItemNotFound
	}
	delete(s.catalog[kind], id)

	switch kind {
	case model.KindTag:
		s.recipeTags = slices.DeleteFunc(s.recipeTags, func(rt recipeTag) bool { return rt.TagID == id })
	case model.KindIngredient:
		s.recipeIngrs = slices.DeleteFunc(s.recipeIngrs, func(ri recipeIngredient) bool { return ri.IngredientID == id })
	}
	return nil
}

// CreateRecipe implements service.RecipeStore.
func (s *Store) CreateRecipe(_ context.Context, recipe *model.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRelatedLocked(recipe); err != nil {
		return err
	}

	recipe.ID = s.id()
	now := time.Now().UTC()
	recipe.CreatedAt, recipe.UpdatedAt = now, now
	s.storeRecipeLocked(recipe)
	return nil
}

// UpdateRecipe implements service.RecipeStore.
func (s *Store) UpdateRecipe(_ context.Context, recipe *model.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.recipes[recipe.ID]
	if !ok || existing.UserID != recipe.UserID {
		return repository.ErrRecipeNotFound
	}
	if err := s.checkRelatedLocked(recipe); err != nil {
		return err
	}

	recipe.UpdatedAt = time.Now().UTC()
	s.storeRecipeLocked(recipe)
	return nil
}

// SetRecipeImage implements service.RecipeStore.
func (s *Store) SetRecipeImage(_ context.Context, id, userID int64, image string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.recipes[id]
	if !ok || existing.UserID != userID {
		return "", repository.ErrRecipeNotFound
	}
	previous := existing.Image
	existing.Image = image
	existing.UpdatedAt = time.Now().UTC()
	return previous, nil
}

// GetRecipe implements service.RecipeStore.
func (s *Store) GetRecipe(_ context.Context, id, userID int64) (*model.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.recipes[id]
	if !ok || r.UserID != userID {
		return nil, repository.ErrRecipeNotFound
	}
	return s.loadRecipeLocked(r), nil
}

// ListRecipes implements service.RecipeStore.
func (s *Store) ListRecipes(_ context.Context, userID int64, filter repository.RecipeFilter) ([]*model.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []*model.Recipe{}
	for _, r := range s.recipes {
		if r.UserID != userID {
			continue
		}
		loaded := s.loadRecipeLocked(r)
		if len(filter.TagIDs) > 0 && !intersects(loaded.TagIDs, filter.TagIDs) {
			continue
		}
		if len(filter.IngredientIDs) > 0 && !intersects(loaded.IngredientIDs, filter.IngredientIDs) {
			continue
		}
		out = append(out, loaded)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// DeleteRecipe implements service.RecipeStore.
func (s *Store) DeleteRecipe(_ context.Context, id, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.recipes[id]
	if !ok || r.UserID != userID {
		return repository.ErrRecipeNotFound
	}
	delete(s.recipes, id)
	s.recipeTags = slices.DeleteFunc(s.recipeTags, func(rt recipeTag) bool { return rt.RecipeID == id })
	s.recipeIngrs = slices.DeleteFunc(s.recipeIngrs, func(ri recipeIngredient) bool { return ri.RecipeID == id })
	return nil
}

func (s *Store) checkRelatedLocked(recipe *model.Recipe) error {
	for _, id := range recipe.TagIDs {
		if _, ok := s.catalog[model.KindTag][id]; !ok {
			return repository.ErrRelatedNotFound
		}
	}
	for _, id := range recipe.IngredientIDs {
		if _, ok := s.catalog[model.KindIngredient][id]; !ok {
			return repository.ErrRelatedNotFound
		}
	}
	return nil
}

// storeRecipeLocked saves scalar fields and replaces the join rows.
func (s *Store) storeRecipeLocked(recipe *model.Recipe) {
	cp := *recipe
	cp.TagIDs, cp.IngredientIDs = nil, nil
	s.recipes[recipe.ID] = &cp

	s.recipeTags = slices.DeleteFunc(s.recipeTags, func(rt recipeTag) bool { return rt.RecipeID == recipe.ID })
	s.recipeIngrs = slices.DeleteFunc(s.recipeIngrs, func(ri recipeIngredient) bool { return ri.RecipeID == recipe.ID })

	for _, id := range recipe.TagIDs {
		rt := recipeTag{RecipeID: recipe.ID, TagID: id}
		if !slices.Contains(s.recipeTags, rt) {
			s.recipeTags = append(s.recipeTags, rt)
		}
	}
	for _, id := range recipe.IngredientIDs {
		ri := recipeIngredient{RecipeID: recipe.ID, IngredientID: id}
		if !slices.Contains(s.recipeIngrs, ri) {
			s.recipeIngrs = append(s.recipeIngrs, ri)
		}
	}
}

func (s *Store) loadRecipeLocked(r *model.Recipe) *model.Recipe {
	cp := *r
	cp.TagIDs = []int64{}
	cp.IngredientIDs = []int64{}
	for _, rt := range s.recipeTags {
		if rt.RecipeID == r.ID {
			cp.TagIDs = append(cp.TagIDs, rt.TagID)
		}
	}
	for _, ri := range s.recipeIngrs {
		if ri.RecipeID == r.ID {
			cp.IngredientIDs = append(cp.IngredientIDs, ri.IngredientID)
		}
	}
	slices.Sort(cp.TagIDs)
	slices.Sort(cp.IngredientIDs)
	return &cp
}

func (s *Store) assignedLocked(kind model.CatalogKind, id int64) bool {
	switch kind {
	case model.KindTag:
		return slices.ContainsFunc(s.recipeTags, func(rt recipeTag) bool { return rt.TagID == id })
	case model.KindIngredient:
		return slices.ContainsFunc(s.recipeIngrs, func(ri recipeIngredient) bool { return ri.IngredientID == id })
	}
	return false
}

func intersects(have, want []int64) bool {
	for _, id := range want {
		if slices.Contains(have, id) {
			return true
		}
	}
	return false
}

// Images is an in-memory image store.
type Images struct {
	mu    sync.Mutex
	blobs map[string][]byte
	seq   int
}

// NewImages returns an empty image store.
func NewImages() *Images {
	return &Images{blobs: make(map[string][]byte)}
}

// Save implements service.ImageStore.
func (m *Images) Save(_ context.Context, recipeID int64, ext string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	path := fmt.Sprintf("recipes/%d/img%03d.%s", recipeID, m.seq, ext)
	m.blobs[path] = bytes.Clone(data)
	return path, nil
}

// Delete implements service.ImageStore.
func (m *Images) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blobs, path)
	return nil
}

// Open implements service.ImageStore.
func (m *Images) Open(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.blobs[path]
	if !ok {
		return nil, fmt.Errorf("image %s not found", path)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Has reports whether path is stored.
func (m *Images) Has(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.blobs[path]
	return ok
}

// Paths returns stored paths with the given prefix.
func (m *Images) Paths(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for p := range m.blobs {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
