package domain

import "strings"

type Category string

func (c Category) String() string {
	return string(c)
}

const (
	CategoryHerbicide   Category = "herbicide"
	CategoryInsecticide Category = "insecticide"
	CategoryFungicide   Category = "fungicide"
)

// Categories lists categories in catalog presentation order.
var Categories = []Category{
	CategoryHerbicide,
	CategoryInsecticide,
	CategoryFungicide,
}

// Priority returns the position of the category in catalog order. Unknown
// categories sort after the known ones.
func (c Category) Priority() int {
	for i, known := range Categories {
		if c == known {
			return i
		}
	}
	return len(Categories)
}

func (c Category) GetCategoryName() string {
	switch c {
	case CategoryHerbicide:
		return "Herbicidas"
	case CategoryInsecticide:
		return "Insecticidas"
	case CategoryFungicide:
		return "Fungicidas"
	default:
		return "Otros"
	}
}

// ParseCategory maps free text from the feed to a category. Anything that is
// not recognizably an insecticide or fungicide is a herbicide.
func ParseCategory(text string) Category {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.HasPrefix(t, "inse"):
		return CategoryInsecticide
	case strings.HasPrefix(t, "fung"):
		return CategoryFungicide
	default:
		return CategoryHerbicide
	}
}
