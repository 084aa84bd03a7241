package news

import "strings"

// Category is the closed set of content categories. Custom marks a free-form
// topic carried outside the enum; unknown strings parse to Custom so that a
// bad remote config can never fail a fetch.
type Category int

const (
	CategoryTech Category = iota
	CategoryWorld
	CategoryBusiness
	CategoryScience
	CategorySports
	CategoryEntertainment
	CategoryCustom
)

func (c Category) String() string {
	switch c {
	case CategoryTech:
		return "tech"
	case CategoryWorld:
		return "world"
	case CategoryBusiness:
		return "business"
	case CategoryScience:
		return "science"
	case CategorySports:
		return "sports"
	case CategoryEntertainment:
		return "entertainment"
	default:
		return "custom"
	}
}

// DisplayName is the human form used in prompts and post bodies.
func (c Category) DisplayName() string {
	switch c {
	case CategoryTech:
		return "Technology"
	case CategoryWorld:
		return "World News"
	case CategoryBusiness:
		return "Business"
	case CategoryScience:
		return "Science"
	case CategorySports:
		return "Sports"
	case CategoryEntertainment:
		return "Entertainment"
	default:
		return "Topic"
	}
}

func ParseCategory(s string) Category {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tech", "technology":
		return CategoryTech
	case "world", "general":
		return CategoryWorld
	case "business", "finance":
		return CategoryBusiness
	case "science":
		return CategoryScience
	case "sports", "sport":
		return CategorySports
	case "entertainment":
		return CategoryEntertainment
	default:
		return CategoryCustom
	}
}

// AllCategories lists the closed set, excluding Custom.
func AllCategories() []Category {
	return []Category{
		CategoryTech, CategoryWorld, CategoryBusiness,
		CategoryScience, CategorySports, CategoryEntertainment,
	}
}
