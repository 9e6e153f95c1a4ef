package model

// CatalogKind selects which catalog an entry belongs to.
type CatalogKind string

const (
	KindTag        CatalogKind = "tag"
	KindIngredient CatalogKind = "ingredient"
)

// IsValid reports whether k names a known catalog.
func (k CatalogKind) IsValid() bool {
	return k == KindTag || k == KindIngredient
}

// CatalogItem is a user-owned named entry: a tag or an ingredient.
// Both catalogs share this shape and differ only in Kind.
type CatalogItem struct {
	ID     int64       `json:"id"`
	Kind   CatalogKind `json:"-"`
	Name   string      `json:"name"`
	UserID int64       `json:"-"`
}

// String returns the entry name.
func (c *CatalogItem) String() string {
	return c.Name
}
