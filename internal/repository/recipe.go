package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"github.com/recipebook/recipebook/internal/model"
	"github.com/shopspring/decimal"
)

// Common errors for recipe repository operations.
var (
	ErrRecipeNotFound = errors.New("recipe not found")
	// ErrRelatedNotFound is returned when a join row references a missing tag or ingredient.
	ErrRelatedNotFound = errors.New("related tag or ingredient not found")
)

// RecipeFilter narrows ListRecipes. Empty slices do not filter.
type RecipeFilter struct {
	TagIDs        []int64
	IngredientIDs []int64
}

const recipeColumns = `
	r.id, r.user_id, r.title, r.time_minutes, r.price::text, r.link, r.image,
	ARRAY(SELECT rt.tag_id FROM recipe_tags rt WHERE rt.recipe_id = r.id ORDER BY rt.tag_id),
	ARRAY(SELECT ri.ingredient_id FROM recipe_ingredients ri WHERE ri.recipe_id = r.id ORDER BY ri.ingredient_id),
	r.created_at, r.updated_at
`

// CreateRecipe inserts a recipe and its associations in one transaction.
func (r *Repository) CreateRecipe(ctx context.Context, recipe *model.Recipe) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO recipes (user_id, title, time_minutes, price, link, image)
			VALUES ($1, $2, $3, $4::numeric, $5, $6)
			RETURNING id, created_at, updated_at
		`

		err := tx.QueryRow(ctx, query,
			recipe.UserID,
			recipe.Title,
			recipe.TimeMinutes,
			recipe.Price.StringFixed(model.PriceDecimalPlaces),
			recipe.Link,
			recipe.Image,
		).Scan(&recipe.ID, &recipe.CreatedAt, &recipe.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert recipe: %w", err)
		}

		return replaceAssociations(ctx, tx, recipe)
	})

	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrRelatedNotFound
		}
		return fmt.Errorf("failed to create recipe: %w", err)
	}

	return nil
}

// UpdateRecipe overwrites every column of an owned recipe and replaces its
// tag and ingredient sets with recipe.TagIDs and recipe.IngredientIDs.
func (r *Repository) UpdateRecipe(ctx context.Context, recipe *model.Recipe) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			UPDATE recipes
			SET title = $3, time_minutes = $4, price = $5::numeric, link = $6, image = $7, updated_at = NOW()
			WHERE id = $1 AND user_id = $2
			RETURNING updated_at
		`

		err := tx.QueryRow(ctx, query,
			recipe.ID,
			recipe.UserID,
			recipe.Title,
			recipe.TimeMinutes,
			recipe.Price.StringFixed(model.PriceDecimalPlaces),
			recipe.Link,
			recipe.Image,
		).Scan(&recipe.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrRecipeNotFound
			}
			return fmt.Errorf("update recipe: %w", err)
		}

		return replaceAssociations(ctx, tx, recipe)
	})

	if err != nil {
		if errors.Is(err, ErrRecipeNotFound) {
			return ErrRecipeNotFound
		}
		if isForeignKeyViolation(err) {
			return ErrRelatedNotFound
		}
		return fmt.Errorf("failed to update recipe: %w", err)
	}

	return nil
}

// SetRecipeImage updates only the image path of an owned recipe and returns
// the path it replaced. The row lock makes concurrent uploads see each
// other's path as previous.
func (r *Repository) SetRecipeImage(ctx context.Context, id, userID int64, image string) (string, error) {
	query := `
		WITH old AS (
			SELECT id, image FROM recipes WHERE id = $1 AND user_id = $2 FOR UPDATE
		)
		UPDATE recipes r SET image = $3, updated_at = NOW()
		FROM old
		WHERE r.id = old.id
		RETURNING old.image
	`

	var previous string
	err := r.pool.QueryRow(ctx, query, id, userID, image).Scan(&previous)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrRecipeNotFound
		}
		return "", fmt.Errorf("failed to set recipe image: %w", err)
	}

	return previous, nil
}

// GetRecipe retrieves a recipe owned by userID with its association IDs.
func (r *Repository) GetRecipe(ctx context.Context, id, userID int64) (*model.Recipe, error) {
	query := `SELECT ` + recipeColumns + ` FROM recipes r WHERE r.id = $1 AND r.user_id = $2`

	recipe, err := scanRecipe(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}

	return recipe, nil
}

// ListRecipes returns the user's recipes, newest ID first. A non-empty
// TagIDs keeps recipes carrying any of those tags; IngredientIDs likewise.
// EXISTS keeps each recipe to a single row however many IDs match.
func (r *Repository) ListRecipes(ctx context.Context, userID int64, filter RecipeFilter) ([]*model.Recipe, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + recipeColumns + ` FROM recipes r WHERE r.user_id = $1`)
	args := []any{userID}

	if len(filter.TagIDs) > 0 {
		args = append(args, pq.Array(filter.TagIDs))
		sb.WriteString(` AND EXISTS (SELECT 1 FROM recipe_tags rt WHERE rt.recipe_id = r.id AND rt.tag_id = ANY($` + strconv.Itoa(len(args)) + `))`)
	}
	if len(filter.IngredientIDs) > 0 {
		args = append(args, pq.Array(filter.IngredientIDs))
		sb.WriteString(` AND EXISTS (SELECT 1 FROM recipe_ingredients ri WHERE ri.recipe_id = r.id AND ri.ingredient_id = ANY($` + strconv.Itoa(len(args)) + `))`)
	}
	sb.WriteString(` ORDER BY r.id DESC`)

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	defer rows.Close()

	recipes := []*model.Recipe{}
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipe: %w", err)
		}
		recipes = append(recipes, recipe)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recipes: %w", err)
	}

	return recipes, nil
}

// DeleteRecipe removes an owned recipe. Join rows cascade.
func (r *Repository) DeleteRecipe(ctx context.Context, id, userID int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM recipes WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRecipeNotFound
	}

	return nil
}

func replaceAssociations(ctx context.Context, tx pgx.Tx, recipe *model.Recipe) error {
	if _, err := tx.Exec(ctx, `DELETE FROM recipe_tags WHERE recipe_id = $1`, recipe.ID); err != nil {
		return fmt.Errorf("clear recipe tags: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM recipe_ingredients WHERE recipe_id = $1`, recipe.ID); err != nil {
		return fmt.Errorf("clear recipe ingredients: %w", err)
	}

	if len(recipe.TagIDs) > 0 {
		_, err := tx.Exec(ctx, `
			INSERT INTO recipe_tags (recipe_id, tag_id)
			SELECT $1, unnest($2::bigint[])
			ON CONFLICT DO NOTHING
		`, recipe.ID, pq.Array(recipe.TagIDs))
		if err != nil {
			return fmt.Errorf("insert recipe tags: %w", err)
		}
	}

	if len(recipe.IngredientIDs) > 0 {
		_, err := tx.Exec(ctx, `
			INSERT INTO recipe_ingredients (recipe_id, ingredient_id)
			SELECT $1, unnest($2::bigint[])
			ON CONFLICT DO NOTHING
		`, recipe.ID, pq.Array(recipe.IngredientIDs))
		if err != nil {
			return fmt.Errorf("insert recipe ingredients: %w", err)
		}
	}

	return nil
}

func scanRecipe(row pgx.Row) (*model.Recipe, error) {
	var recipe model.Recipe
	var price string
	var tagIDs, ingredientIDs []int64

	err := row.Scan(
		&recipe.ID,
		&recipe.UserID,
		&recipe.Title,
		&recipe.TimeMinutes,
		&price,
		&recipe.Link,
		&recipe.Image,
		pq.Array(&tagIDs),
		pq.Array(&ingredientIDs),
		&recipe.CreatedAt,
		&recipe.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	recipe.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", price, err)
	}
	recipe.TagIDs = nonNil(tagIDs)
	recipe.IngredientIDs = nonNil(ingredientIDs)

	return &recipe, nil
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
