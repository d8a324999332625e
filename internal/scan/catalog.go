package scan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ajranjith/fixzit-agent/internal/config"
	"github.com/ajranjith/fixzit-agent/internal/support"
)

// metadataKey is a top-level catalog object holding generator bookkeeping,
// not translations.
const metadataKey = "_metadata"

// Catalog is one locale's translations flattened to dotted keys.
type Catalog struct {
	Locale string
	Path   string
	keys   map[string]struct{}
	// prefixes holds every proper ancestor of a key, so "orders" is known
	// when "orders.title" exists.
	prefixes map[string]struct{}
}

// LoadCatalogs reads every configured catalog relative to root.
func LoadCatalogs(root string, cfgs []config.CatalogConfig) ([]*Catalog, error) {
	out := make([]*Catalog, 0, len(cfgs))
	for _, c := range cfgs {
		cat, err := LoadCatalog(root, c)
		if err != nil {
			return nil, err
		}
		out = append(out, cat)
	}
	return out, nil
}

func LoadCatalog(root string, c config.CatalogConfig) (*Catalog, error) {
	rel := filepath.ToSlash(filepath.Clean(c.Path))
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("read %s catalog: %w", c.Locale, err)
	}
	cat, err := ParseCatalog(c.Locale, rel, data)
	if err != nil {
		return nil, err
	}
	return cat, nil
}

// ParseCatalog flattens a JSON catalog. Arrays flatten by index.
func ParseCatalog(locale, rel string, data []byte) (*Catalog, error) {
	var raw map[string]any
	if err := json.Unmarshal(support.StripBOM(data), &raw); err != nil {
		return nil, fmt.Errorf("parse %s catalog %s: %w", locale, rel, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("parse %s catalog %s: top level must be an object", locale, rel)
	}
	delete(raw, metadataKey)
	cat := &Catalog{
		Locale:   locale,
		Path:     rel,
		keys:     map[string]struct{}{},
		prefixes: map[string]struct{}{},
	}
	flatten("", raw, cat.keys)
	for k := range cat.keys {
		for i := strings.LastIndexByte(k, '.'); i > 0; i = strings.LastIndexByte(k[:i], '.') {
			cat.prefixes[k[:i]] = struct{}{}
		}
	}
	return cat, nil
}

func flatten(prefix string, v any, out map[string]struct{}) {
	join := func(k string) string {
		if prefix == "" {
			return k
		}
		return prefix + "." + k
	}
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 0 && prefix != "" {
			out[prefix] = struct{}{}
		}
		for k, child := range t {
			flatten(join(k), child, out)
		}
	case []any:
		if len(t) == 0 && prefix != "" {
			out[prefix] = struct{}{}
		}
		for i, child := range t {
			flatten(join(strconv.Itoa(i)), child, out)
		}
	default:
		if prefix != "" {
			out[prefix] = struct{}{}
		}
	}
}

// Has reports whether key is a translation or a subtree of translations.
func (c *Catalog) Has(key string) bool {
	if _, ok := c.keys[key]; ok {
		return true
	}
	_, ok := c.prefixes[key]
	return ok
}

func (c *Catalog) HasLeaf(key string) bool {
	_, ok := c.keys[key]
	return ok
}

// Keys returns the flattened keys, sorted.
func (c *Catalog) Keys() []string {
	out := make([]string, 0, len(c.keys))
	for k := range c.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) Len() int { return len(c.keys) }
