// Package category resolves subject classification codes to storefront
// category paths using a pre-generated category tree file.
package category

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"bookforge/internal/services"
)

// fallbackKey is the mapping entry consulted when a code has no explicit
// mapping.
const fallbackKey = "DEFAULT"

// Category is one storefront category node.
type Category struct {
	Name         string   `json:"name"`
	BrowseNodeID string   `json:"browseNodeID"`
	Level        int      `json:"level"`
	Path         []string `json:"categoryPath"`
	PathString   string   `json:"categoryPathString"`
}

type treeFile struct {
	Categories   []Category          `json:"categories_flat"`
	BISACMapping map[string][]string `json:"bisac_mapping"`
}

// Resolver maps classification codes to category paths.
type Resolver struct {
	byPath map[string]Category
	bisac  map[string][]string
}

// LoadResolver reads a category tree file. The file carries a flat category
// list and a classification-code mapping, both produced by the catalog
// conversion tooling.
func LoadResolver(path string) (*Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "category", "load", "read category file", err)
	}
	var parsed treeFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, services.Wrap(services.ErrValidation, "category", "load", "parse category file", err)
	}

	resolver := &Resolver{
		byPath: make(map[string]Category, len(parsed.Categories)),
		bisac:  make(map[string][]string, len(parsed.BISACMapping)),
	}
	for _, cat := range parsed.Categories {
		if len(cat.Path) == 0 {
			continue
		}
		resolver.byPath[pathKey(cat.Path)] = cat
	}
	for code, components := range parsed.BISACMapping {
		resolver.bisac[strings.ToUpper(strings.TrimSpace(code))] = components
	}
	return resolver, nil
}

// Resolve maps a classification code to a category. Codes without an
// explicit mapping fall back to the DEFAULT entry; a code that resolves to
// nothing at all is an error, because publishing with no category would
// leave the listing unclassified.
func (r *Resolver) Resolve(code string) (Category, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	components, ok := r.bisac[normalized]
	if !ok {
		components, ok = r.bisac[fallbackKey]
	}
	if !ok || len(components) == 0 {
		return Category{}, services.Wrap(services.ErrValidation, "category", "resolve",
			fmt.Sprintf("no category mapping for classification code %q", code), nil)
	}

	if cat, found := r.ByPath(components); found {
		return cat, nil
	}
	// The mapping names a path absent from the flat list. The path itself is
	// still enough to drive category selection.
	return Category{
		Name:       components[len(components)-1],
		Path:       components,
		PathString: strings.Join(components, " > "),
	}, nil
}

// ByPath looks up the category whose path exactly matches components.
func (r *Resolver) ByPath(components []string) (Category, bool) {
	cat, ok := r.byPath[pathKey(components)]
	return cat, ok
}

// Len reports how many categories the resolver indexed.
func (r *Resolver) Len() int {
	return len(r.byPath)
}

func pathKey(components []string) string {
	lowered := make([]string, len(components))
	for i, c := range components {
		lowered[i] = strings.ToLower(strings.TrimSpace(c))
	}
	return strings.Join(lowered, " > ")
}
