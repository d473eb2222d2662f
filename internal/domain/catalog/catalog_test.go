package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/mangacatch/internal/domain/model"
)

func TestCatalogNew(t *testing.T) {
	Convey("Given item lists", t, func() {
		Convey("When the list is empty", func() {
			_, err := New(nil)
			Convey("Then ErrCatalogEmpty is returned", func() {
				So(errors.Is(err, ErrCatalogEmpty), ShouldBeTrue)
			})
		})

		Convey("When ids repeat", func() {
			_, err := New([]model.ItemType{{ID: "a"}, {ID: "a"}})
			Convey("Then ErrDuplicateItem is returned", func() {
				So(errors.Is(err, ErrDuplicateItem), ShouldBeTrue)
			})
		})

		Convey("When a value is negative", func() {
			_, err := New([]model.ItemType{{ID: "a", RarityWeight: -1}})
			Convey("Then ErrInvalidItem is returned", func() {
				So(errors.Is(err, ErrInvalidItem), ShouldBeTrue)
			})
		})

		Convey("When items are valid", func() {
			c, err := New([]model.ItemType{{ID: "a", ScoreValue: 1}, {ID: "b", ScoreValue: 2}})
			So(err, ShouldBeNil)
			Convey("Then lookups follow catalog order", func() {
				So(c.Len(), ShouldEqual, 2)
				So(c.Position("b"), ShouldEqual, 1)
				So(c.Position("z"), ShouldEqual, -1)
				it, ok := c.Lookup("b")
				So(ok, ShouldBeTrue)
				So(it.ScoreValue, ShouldEqual, 2)
				So(c.At(0).ID, ShouldEqual, "a")
			})
		})
	})
}

func TestDefaultCatalog(t *testing.T) {
	Convey("Given the built-in catalog", t, func() {
		c := Default()
		Convey("Then every item is weighted and scored", func() {
			So(c.Len(), ShouldEqual, 10)
			for _, it := range c.Items() {
				So(it.RarityWeight, ShouldBeGreaterThan, 0)
				So(it.ScoreValue, ShouldBeGreaterThan, 0)
				So(it.RarityPoint, ShouldBeIn, []int{1, 3, 6})
			}
		})
	})
}

func TestLoad(t *testing.T) {
	Convey("Given catalog files", t, func() {
		dir := t.TempDir()

		Convey("When the path is empty", func() {
			c, err := Load("")
			So(err, ShouldBeNil)
			Convey("Then the built-in catalog is used", func() {
				So(c.Len(), ShouldEqual, Default().Len())
			})
		})

		Convey("When a YAML file uses manifest aliases", func() {
			path := filepath.Join(dir, "catalog.yaml")
			content := `
items:
  - type_id: chara_001
    character_name_ja: Yume
    score: 100
    weight: 10
    rarity_tier: common
    assets:
      character:
        current: chars/001.png
  - id: chara_005
    name: Ryo
    score_value: 300
    rarity_weight: 5
    rarity_point: 6
`
			So(os.WriteFile(path, []byte(content), 0o600), ShouldBeNil)
			c, err := Load(path)
			So(err, ShouldBeNil)

			Convey("Then records are normalized once", func() {
				want := []model.ItemType{
					{ID: "chara_001", DisplayName: "Yume", ScoreValue: 100, RarityWeight: 10, RarityPoint: 1, AssetReference: "chars/001.png"},
					{ID: "chara_005", DisplayName: "Ryo", ScoreValue: 300, RarityWeight: 5, RarityPoint: 6},
				}
				So(cmp.Diff(want, c.Items()), ShouldBeEmpty)
			})
		})

		Convey("When a JSON file uses numeric rarity tiers", func() {
			path := filepath.Join(dir, "catalog.json")
			content := `{"items":[{"id":"x","score":150,"rarity":2,"weight":8,"image":"x.png"}]}`
			So(os.WriteFile(path, []byte(content), 0o600), ShouldBeNil)
			c, err := Load(path)
			So(err, ShouldBeNil)

			Convey("Then the tier maps to rarity points", func() {
				it, _ := c.Lookup("x")
				So(it.RarityPoint, ShouldEqual, 3)
				So(it.DisplayName, ShouldEqual, "x")
				So(it.AssetReference, ShouldEqual, "x.png")
			})
		})

		Convey("When the file has no items", func() {
			path := filepath.Join(dir, "empty.yaml")
			So(os.WriteFile(path, []byte("items: []\n"), 0o600), ShouldBeNil)
			_, err := Load(path)
			Convey("Then ErrCatalogEmpty is returned", func() {
				So(errors.Is(err, ErrCatalogEmpty), ShouldBeTrue)
			})
		})

		Convey("When the file is missing", func() {
			_, err := Load(filepath.Join(dir, "missing.yaml"))
			Convey("Then ErrLoadCatalog is returned", func() {
				So(errors.Is(err, ErrLoadCatalog), ShouldBeTrue)
			})
		})
	})
}
