package activities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Category enumerates the kinds of pet activity that can be recorded.
type Category string

const (
	CategoryPee   Category = "Pee"
	CategoryPoo   Category = "Poo"
	CategoryEat   Category = "Eat"
	CategoryPlay  Category = "Play"
	CategoryWalk  Category = "Walk"
	CategoryOther Category = "Other"
)

// LegacyPottyValue is the category string written by early releases before
// Pee and Poo were split. It always reads back as CategoryPee.
const LegacyPottyValue = "Potty"

var declaredCategories = []Category{
	CategoryPee,
	CategoryPoo,
	CategoryEat,
	CategoryPlay,
	CategoryWalk,
	CategoryOther,
}

// Categories returns every declared category in display order.
func Categories() []Category {
	out := make([]Category, len(declaredCategories))
	copy(out, declaredCategories)
	return out
}

// CategoryNames returns the persisted string of every declared category.
func CategoryNames() []string {
	names := make([]string, 0, len(declaredCategories))
	for _, category := range declaredCategories {
		names = append(names, string(category))
	}
	return names
}

// DecodeCategory maps a persisted category string onto a Category.
// It is total: "Potty" yields Pee and any unrecognised value yields Other.
func DecodeCategory(raw string) Category {
	if raw == LegacyPottyValue {
		return CategoryPee
	}
	for _, category := range declaredCategories {
		if string(category) == raw {
			return category
		}
	}
	return CategoryOther
}

// ParseCategory resolves user input case-insensitively. Unlike DecodeCategory
// it rejects unknown values.
func ParseCategory(input string) (Category, error) {
	normalized := strings.TrimSpace(input)
	if strings.EqualFold(normalized, LegacyPottyValue) {
		return CategoryPee, nil
	}
	for _, category := range declaredCategories {
		if strings.EqualFold(string(category), normalized) {
			return category, nil
		}
	}
	return "", fmt.Errorf("activities: unknown category %q", input)
}

// String returns the persisted representation.
func (c Category) String() string {
	return string(c)
}

// UnmarshalJSON applies DecodeCategory to mirrored and exported payloads.
func (c *Category) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		*c = CategoryOther
		return nil
	}
	*c = DecodeCategory(raw)
	return nil
}

// Scan applies DecodeCategory to every row read from SQL storage.
func (c *Category) Scan(value any) error {
	switch typed := value.(type) {
	case string:
		*c = DecodeCategory(typed)
	case []byte:
		*c = DecodeCategory(string(typed))
	default:
		*c = CategoryOther
	}
	return nil
}

// Value implements driver.Valuer.
func (c Category) Value() (driver.Value, error) {
	return string(c), nil
}
