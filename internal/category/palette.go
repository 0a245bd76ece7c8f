package category

import (
	"sort"

	"github.com/Veraticus/spiceflow/internal/model"
)

// Palette is the fixed set of colours assigned to categories.
var Palette = []string{
	"#3498db", "#e67e22", "#2ecc71", "#e74c3c", "#9b59b6",
	"#a0522d", "#f39c12", "#1abc9c", "#e91e63", "#00bcd4",
}

// ColorMap assigns palette colours to categories in sorted order, cycling
// when there are more categories than colours. The same set of categories
// always gets the same colours.
func ColorMap(categories []string) map[string]string {
	sorted := append([]string(nil), categories...)
	sort.Strings(sorted)

	colors := make(map[string]string, len(sorted))
	i := 0
	for _, c := range sorted {
		if _, seen := colors[c]; seen {
			continue
		}
		colors[c] = Palette[i%len(Palette)]
		i++
	}
	return colors
}

// Label returns the display form of a category: provider codes such as
// FOOD_AND_DRINK become "Food And Drink"; user labels pass through.
func Label(category string) string {
	if category == "" || !isProviderCode(category) {
		return category
	}
	return model.FormatCategoryLabel(category)
}

func isProviderCode(s string) bool {
	for _, r := range s {
		if (r < 'A' || r > 'Z') && r != '_' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
