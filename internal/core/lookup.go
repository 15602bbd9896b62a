package core

import "fmt"

const (
	UncategorizedName  = "Uncategorized"
	UnknownAccountName = "Unknown account"
	FallbackColor      = "#808080"
)

// CategoryName resolves a category id. A miss is not an error: the category
// may have been deleted while transactions still point to it.
func CategoryName(cats []Category, id string) string {
	if c, ok := FindCategory(cats, id); ok && c.Name != "" {
		return c.Name
	}
	return UncategorizedName
}

// FindCategory looks up a category by id.
func FindCategory(cats []Category, id string) (Category, bool) {
	if id == "" {
		return Category{}, false
	}
	for _, c := range cats {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// AccountName resolves an account id, see CategoryName.
func AccountName(accounts []Account, id string) string {
	if id == "" {
		return UnknownAccountName
	}
	for _, a := range accounts {
		if a.ID == id && a.Name != "" {
			return a.Name
		}
	}
	return UnknownAccountName
}

// ColorHex converts a packed ARGB integer into #RRGGBB. Alpha is dropped.
func ColorHex(argb int64) string {
	return fmt.Sprintf("#%06X", uint32(argb)&0xFFFFFF)
}

// CategoryColor returns the display color of a category, or FallbackColor
// when the category is unknown.
func CategoryColor(cats []Category, id string) string {
	if c, ok := FindCategory(cats, id); ok {
		return ColorHex(c.Color)
	}
	return FallbackColor
}
