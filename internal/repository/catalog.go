package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"github.com/recipebook/recipebook/internal/model"
)

// ErrCatalogItemNotFound is returned when a tag or ingredient does not exist
// or belongs to another user.
var ErrCatalogItemNotFound = errors.New("catalog item not found")

// catalogTables maps a kind to its table, join table and join column.
// Only these fixed identifiers are ever interpolated into SQL.
type catalogTables struct {
	table     string
	joinTable string
	joinCol   string
}

var catalogSchema = map[model.CatalogKind]catalogTables{
	model.KindTag:        {table: "tags", joinTable: "recipe_tags", joinCol: "tag_id"},
	model.KindIngredient: {table: "ingredients", joinTable: "recipe_ingredients", joinCol: "ingredient_id"},
}

func tablesFor(kind model.CatalogKind) (catalogTables, error) {
	t, ok := catalogSchema[kind]
	if !ok {
		return catalogTables{}, fmt.Errorf("unknown catalog kind %q", kind)
	}
	return t, nil
}

// CreateCatalogItem inserts a tag or ingredient and fills in its ID.
func (r *Repository) CreateCatalogItem(ctx context.Context, item *model.CatalogItem) error {
	t, err := tablesFor(item.Kind)
	if err != nil {
		return err
	}

	query := `INSERT INTO ` + t.table + ` (name, user_id) VALUES ($1, $2) RETURNING id`
	if err := r.pool.QueryRow(ctx, query, item.Name, item.UserID).Scan(&item.ID); err != nil {
		return fmt.Errorf("failed to create %s: %w", item.Kind, err)
	}

	return nil
}

// GetCatalogItem retrieves an item owned by userID.
func (r *Repository) GetCatalogItem(ctx context.Context, kind model.CatalogKind, id, userID int64) (*model.CatalogItem, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, name, user_id FROM ` + t.table + ` WHERE id = $1 AND user_id = $2`

	item := model.CatalogItem{Kind: kind}
	err = r.pool.QueryRow(ctx, query, id, userID).Scan(&item.ID, &item.Name, &item.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCatalogItemNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", kind, err)
	}

	return &item, nil
}

// ListCatalogItems returns the user's items ordered by name descending.
// With assignedOnly, only items referenced by at least one recipe are returned.
func (r *Repository) ListCatalogItems(ctx context.Context, kind model.CatalogKind, userID int64, assignedOnly bool) ([]*model.CatalogItem, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}

	query := `SELECT c.id, c.name, c.user_id FROM ` + t.table + ` c WHERE c.user_id = $1`
	if assignedOnly {
		query += ` AND EXISTS (SELECT 1 FROM ` + t.joinTable + ` j WHERE j.` + t.joinCol + ` = c.id)`
	}
	query += ` ORDER BY c.name DESC, c.id DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.table, err)
	}
	defer rows.Close()

	return collectCatalogItems(rows, kind)
}

// GetCatalogItemsByIDs returns the items with the given IDs ordered by name.
func (r *Repository) GetCatalogItemsByIDs(ctx context.Context, kind model.CatalogKind, ids []int64) ([]*model.CatalogItem, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.CatalogItem{}, nil
	}

	query := `SELECT id, name, user_id FROM ` + t.table + ` WHERE id = ANY($1) ORDER BY name, id`

	rows, err := r.pool.Query(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get %s by ids: %w", t.table, err)
	}
	defer rows.Close()

	return collectCatalogItems(rows, kind)
}

// ExistingCatalogIDs returns the subset of ids that exist, regardless of owner.
func (r *Repository) ExistingCatalogIDs(ctx context.Context, kind model.CatalogKind, ids []int64) ([]int64, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT id FROM ` + t.table + ` WHERE id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to check %s ids: %w", t.table, err)
	}
	defer rows.Close()

	var found []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		found = append(found, id)
	}

	return found, rows.Err()
}

// UpdateCatalogItem renames an item owned by item.UserID.
func (r *Repository) UpdateCatalogItem(ctx context.Context, item *model.CatalogItem) error {
	t, err := tablesFor(item.Kind)
	if err != nil {
		return err
	}

	query := `UPDATE ` + t.table + ` SET name = $3 WHERE id = $1 AND user_id = $2`

	result, err := r.pool.Exec(ctx, query, item.ID, item.UserID, item.Name)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", item.Kind, err)
	}
	if result.RowsAffected() == 0 {
		return ErrCatalogItemNotFound
	}

	return nil
}

// DeleteCatalogItem removes an item owned by userID. Join rows cascade.
func (r *Repository) DeleteCatalogItem(ctx context.Context, kind model.CatalogKind, id, userID int64) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}

	query := `DELETE FROM ` + t.table + ` WHERE id = $1 AND user_id = $2`

	result, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	if result.RowsAffected() == 0 {
		return ErrCatalogItemNotFound
	}

	return nil
}

func collectCatalogItems(rows pgx.Rows, kind model.CatalogKind) ([]*model.CatalogItem, error) {
	items := []*model.CatalogItem{}
	for rows.Next() {
		item := &model.CatalogItem{Kind: kind}
		if err := rows.Scan(&item.ID, &item.Name, &item.UserID); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", kind, err)
	}

	return items, nil
}
