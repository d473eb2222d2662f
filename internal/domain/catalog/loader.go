package catalog

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/mangacatch/internal/domain/model"
)

// Load reads a catalog file. The parser is picked by extension (.json, else YAML).
// An empty path returns the built-in catalog.
//
// The file holds an `items` list. Each record may use either the normalized
// keys or the manifest aliases; Normalize resolves them once here.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	var parser koanf.Parser = yaml.Parser()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		parser = json.Parser()
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadCatalog, path, err)
	}

	items, err := Normalize(k.Slices("items"))
	if err != nil {
		return nil, err
	}
	return New(items)
}

// Normalize maps raw records to item types.
// Accepted aliases: id|type_id, name|display_name|character_name_ja,
// score|score_value, weight|rarity_weight, asset|image|assets.character.current.
// RarityPoint comes from rarity_point, else rarity_tier (common, rare,
// super_rare), else the numeric rarity tier 1..3.
func Normalize(records []*koanf.Koanf) ([]model.ItemType, error) {
	if len(records) == 0 {
		return nil, ErrCatalogEmpty
	}
	out := make([]model.ItemType, 0, len(records))
	for i, r := range records {
		id := first(r, "id", "type_id")
		if id == "" {
			return nil, fmt.Errorf("%w: record %d has no id", ErrInvalidItem, i)
		}
		name := first(r, "name", "display_name", "character_name_ja")
		if name == "" {
			name = id
		}
		out = append(out, model.ItemType{
			ID:             id,
			DisplayName:    name,
			ScoreValue:     firstInt(r, "score", "score_value"),
			RarityWeight:   firstInt(r, "weight", "rarity_weight"),
			RarityPoint:    rarityPoint(r),
			AssetReference: first(r, "asset", "image", "assets.character.current"),
		})
	}
	return out, nil
}

func first(k *koanf.Koanf, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(k.String(key)); v != "" {
			return v
		}
	}
	return ""
}

func firstInt(k *koanf.Koanf, keys ...string) int {
	for _, key := range keys {
		if k.Exists(key) {
			return k.Int(key)
		}
	}
	return 0
}

var tierNames = map[string]int{"common": 1, "rare": 3, "super_rare": 6}

func rarityPoint(k *koanf.Koanf) int {
	switch {
	case k.Exists("rarity_point"):
		return k.Int("rarity_point")
	case k.Exists("rarity_tier"):
		return tierNames[strings.ToLower(k.String("rarity_tier"))]
	case k.Exists("rarity"):
		return tierPoints[k.Int("rarity")]
	}
	return 0
}
