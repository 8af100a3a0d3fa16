package domain

import (
	"strings"

	"golang.org/x/text/cases"
)

type Category string

const (
	CategoryNormal Category = "normal"
	CategoryDoS    Category = "dos"
	CategoryProbe  Category = "probe"
	CategoryR2L    Category = "r2l"
	CategoryU2R    Category = "u2r"
)

// DefaultCategory is replayed at startup and whenever a fallback is needed.
const DefaultCategory = CategoryNormal

var allCategories = []Category{
	CategoryNormal,
	CategoryDoS,
	CategoryProbe,
	CategoryR2L,
	CategoryU2R,
}

func AllCategories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

func (c Category) String() string { return string(c) }

func (c Category) Valid() bool {
	for _, known := range allCategories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) Description() string {
	switch c {
	case CategoryNormal:
		return "benign traffic"
	case CategoryDoS:
		return "denial of service"
	case CategoryProbe:
		return "probing / surveillance"
	case CategoryR2L:
		return "remote to local"
	case CategoryU2R:
		return "user to root"
	default:
		return "unknown"
	}
}

// NormalizeCategory trims and case-folds raw input without validating it.
func NormalizeCategory(raw string) string {
	return cases.Fold().String(strings.TrimSpace(raw))
}

// ParseCategory accepts any casing and surrounding whitespace.
func ParseCategory(raw string) (Category, error) {
	c := Category(NormalizeCategory(raw))
	if !c.Valid() {
		return "", &InvalidCategoryError{Input: raw}
	}
	return c, nil
}
