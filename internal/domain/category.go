package domain

import (
	"sort"
	"strconv"
	"strings"
)

// Well-known category ids.
const (
	CategoryFood          = 0
	CategoryTransport     = 1
	CategoryRent          = 2
	CategoryUtilities     = 3
	CategoryEntertainment = 4
	CategoryGroceries     = 5
	CategoryHealth        = 6
	CategoryBusiness      = 7
	CategoryGifts         = 8
	CategoryTravel        = 9
	CategoryEducation     = 10
	CategoryOther         = 11
	CategoryIncome        = 99

	// FirstCustomCategoryID is the lowest id handed out to user-defined categories.
	FirstCustomCategoryID = 100

	// MaxCategoryNameLength bounds user-supplied category names (in characters).
	MaxCategoryNameLength = 30
)

// Category is one entry of a user's category map.
type Category struct {
	Name   string `bson:"name" json:"name"`
	Active bool   `bson:"active" json:"active"`
}

// CategoryMap maps a category id (decimal string, as BSON keys must be strings)
// to its definition.
type CategoryMap map[string]Category

// DefaultCategories is the seed set every profile starts with.
var DefaultCategories = map[int]string{
	CategoryFood:          "🍔 Food",
	CategoryTransport:     "🚌 Transport",
	CategoryRent:          "🏠 Rent",
	CategoryUtilities:     "💡 Utilities",
	CategoryEntertainment: "🎮 Entertainment",
	CategoryGroceries:     "🛒 Groceries",
	CategoryHealth:        "💊 Health",
	CategoryBusiness:      "💼 Business",
	CategoryGifts:         "🎁 Gifts",
	CategoryTravel:        "✈️ Travel",
	CategoryEducation:     "📚 Education",
	CategoryOther:         "❓ Other",
	CategoryIncome:        "💰 Income",
}

// ProtectedCategoryWords are matched case-insensitively against the last word
// of a category name; such categories cannot be deactivated.
var ProtectedCategoryWords = []string{"income", "other"}

// CategoryKey renders an id as a map key.
func CategoryKey(id int) string {
	return strconv.Itoa(id)
}

// ParseCategoryKey converts a map key back to an id.
func ParseCategoryKey(key string) (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(key))
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// NewDefaultCategoryMap returns a fresh copy of the default categories, all active.
func NewDefaultCategoryMap() CategoryMap {
	categories := make(CategoryMap, len(DefaultCategories))
	for id, name := range DefaultCategories {
		categories[CategoryKey(id)] = Category{Name: name, Active: true}
	}
	return categories
}

// IsProtectedName reports whether a category name refers to Income or Other.
func IsProtectedName(name string) bool {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) == 0 {
		return false
	}
	last := fields[len(fields)-1]
	for _, word := range ProtectedCategoryWords {
		if last == word {
			return true
		}
	}
	return false
}

// Clone copies the map so callers can mutate it without aliasing the profile.
func (m CategoryMap) Clone() CategoryMap {
	out := make(CategoryMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Active returns the active categories keyed by id.
func (m CategoryMap) Active() map[int]string {
	active := make(map[int]string)
	for key, category := range m {
		if !category.Active {
			continue
		}
		if id, ok := ParseCategoryKey(key); ok {
			active[id] = category.Name
		}
	}
	return active
}

// Lookup returns the category stored under id, active or not.
func (m CategoryMap) Lookup(id int) (Category, bool) {
	category, ok := m[CategoryKey(id)]
	return category, ok
}

// FindByName returns the id of the category whose name matches exactly.
func (m CategoryMap) FindByName(name string) (int, bool) {
	for _, id := range m.SortedIDs() {
		if m[CategoryKey(id)].Name == name {
			return id, true
		}
	}
	return 0, false
}

// NextID allocates an id above every id ever used, never below
// FirstCustomCategoryID.
func (m CategoryMap) NextID() int {
	next := FirstCustomCategoryID
	for key := range m {
		if id, ok := ParseCategoryKey(key); ok && id >= next {
			next = id + 1
		}
	}
	return next
}

// SortedIDs lists every id in ascending order.
func (m CategoryMap) SortedIDs() []int {
	ids := make([]int, 0, len(m))
	for key := range m {
		if id, ok := ParseCategoryKey(key); ok {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// CustomActiveCount counts active categories outside the default set.
func (m CategoryMap) CustomActiveCount() int {
	count := 0
	for key, category := range m {
		id, ok := ParseCategoryKey(key)
		if !ok || !category.Active {
			continue
		}
		if _, isDefault := DefaultCategories[id]; !isDefault {
			count++
		}
	}
	return count
}
