package resolution

import (
	"fmt"

	"affiliate_sheets/internal/affiliate"

	"github.com/rs/zerolog/log"
)

// Namer turns a category id into a display name.
type Namer interface {
	Name(id string) string
}

// CategoryNames maps main category ids to display names. Ids missing from
// the map render with the "Unknown category (<id>)" fallback.
type CategoryNames map[string]string

// DefaultCategories is the starter list of main categories seen in
// productOfferV2 data.
var DefaultCategories = CategoryNames{
	"100629": "Food & Beverages",
	"100630": "Beauty & Personal Care",
	"100636": "Home & Living",
	"100637": "Fashion & Shoes",
	"100013": "Mobiles & Gadgets",
}

// Name returns the display name for id, falling back to the id itself.
func (m CategoryNames) Name(id string) string {
	key := affiliate.NormalizeID(id)
	if name, ok := m[key]; ok {
		return name
	}
	log.Debug().Str("category_id", key).Msg("No display name for category")
	return UnknownCategory(key)
}

// UnknownCategory is the fallback label for an id with no known name.
func UnknownCategory(id string) string {
	return fmt.Sprintf("Unknown category (%s)", id)
}

// NameList resolves ids in order and drops duplicate names, so two ids
// sharing a label produce it once.
func NameList(namer Namer, ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var names []string
	for _, id := range ids {
		if affiliate.NormalizeID(id) == "" {
			continue
		}
		name := namer.Name(id)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
