package models

// Ledger is a named currency-scoped workspace. Every account and
// transaction belongs to exactly one ledger.
type Ledger struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Color    string `json:"color"`
	Icon     string `json:"icon,omitempty"`
}

// Category is a two-level hierarchy: top-level categories may carry
// subcategories, subcategories may not nest further. A transaction's
// categoryId may point at either level; a dangling reference degrades
// to "Uncategorized" on display, never an error.
type Category struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Color         string          `json:"color"`
	Icon          string          `json:"icon"`
	Type          TransactionType `json:"type"`
	SubCategories []Category      `json:"subCategories,omitempty"`
}

// FindCategoryByID looks up an id across both hierarchy levels.
func FindCategoryByID(categories []Category, id string) (Category, bool) {
	for _, c := range categories {
		if c.ID == id {
			return c, true
		}
		for _, sub := range c.SubCategories {
			if sub.ID == id {
				return sub, true
			}
		}
	}
	return Category{}, false
}
